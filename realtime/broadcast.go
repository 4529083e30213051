package realtime

import (
	"encoding/json"
	"time"
)

// deliver stamps, marshals and sends one envelope to one connection. All
// delivery is fire-and-forget: a failed send is counted, and cleanup of the
// connection is scheduled through the same path as a liveness failure. The
// failure never propagates to the caller.
func (h *Hub) deliver(conn *Conn, env Envelope) {
	data, err := json.Marshal(env.stamped(time.Now()))
	if err != nil {
		h.log.Warn().Err(err).Str("type", env.Type).Msg("failed to marshal envelope")
		return
	}

	if err := conn.channel.Send(data); err != nil {
		h.metrics.DroppedSends.Inc()
		h.log.Debug().
			Str("conn_id", conn.ID).
			Str("type", env.Type).
			Err(err).
			Msg("send failed, scheduling cleanup")
		go h.Unregister(conn.ID)
		return
	}
	h.metrics.MessagesOut.Inc()
}

// SendToConnection sends an envelope to a single connection, best effort.
// Unknown connection ids are a silent no-op.
func (h *Hub) SendToConnection(connID string, env Envelope) {
	h.mu.RLock()
	conn, ok := h.conns[connID]
	h.mu.RUnlock()
	if !ok {
		return
	}
	h.deliver(conn, env)
}

// BroadcastToRoom sends an envelope to every current member of a room. An
// absent room is a no-op. Membership is snapshotted up front, so members
// joining or leaving mid-broadcast neither block nor break the fan-out.
func (h *Hub) BroadcastToRoom(raceID string, env Envelope) {
	h.mu.RLock()
	targets := make([]*Conn, 0, len(h.rooms[raceID]))
	for id := range h.rooms[raceID] {
		if conn, ok := h.conns[id]; ok {
			targets = append(targets, conn)
		}
	}
	h.mu.RUnlock()

	h.metrics.Broadcasts.Inc()
	for _, conn := range targets {
		h.deliver(conn, env)
	}
}

// SendToUser sends an envelope to the user's current connection, resolved
// through the user index. An unmapped user (offline, or superseded and
// cleaned up) is a silent no-op; there is no offline queueing.
func (h *Hub) SendToUser(userID string, env Envelope) {
	h.mu.RLock()
	var conn *Conn
	if id, ok := h.users[userID]; ok {
		conn = h.conns[id]
	}
	h.mu.RUnlock()
	if conn == nil {
		return
	}

	h.metrics.Broadcasts.Inc()
	h.deliver(conn, env)
}

// BroadcastToSubtype sends an envelope to every connection of the given
// subtype, regardless of room membership. Used for cross-room fan-out such
// as live location updates.
func (h *Hub) BroadcastToSubtype(sub Subtype, env Envelope) {
	h.mu.RLock()
	targets := make([]*Conn, 0)
	for _, conn := range h.conns {
		if conn.Subtype == sub {
			targets = append(targets, conn)
		}
	}
	h.mu.RUnlock()

	h.metrics.Broadcasts.Inc()
	for _, conn := range targets {
		h.deliver(conn, env)
	}
}
