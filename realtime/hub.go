package realtime

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"raceline/auth"
)

// Hub owns the three shared indices of the realtime core: the connection
// registry, the room membership index, and the user index. All three are
// mutated under a single lock so that, from any observer's viewpoint,
// unregistering a connection atomically clears it everywhere before any
// later broadcast can see a stale reference.
type Hub struct {
	log     zerolog.Logger
	metrics *Metrics

	mu    sync.RWMutex
	conns map[string]*Conn
	rooms map[string]map[string]struct{}
	users map[string]string
}

// NewHub creates an empty hub.
func NewHub(log zerolog.Logger, metrics *Metrics) *Hub {
	return &Hub{
		log:     log.With().Str("component", "hub").Logger(),
		metrics: metrics,
		conns:   make(map[string]*Conn),
		rooms:   make(map[string]map[string]struct{}),
		users:   make(map[string]string),
	}
}

// Register assigns a fresh connection id, stores the connection, and points
// the user index at it. A newer connection for the same user always wins the
// user index slot; the superseded connection is not closed here, it simply
// stops receiving user-targeted sends and dies on its own heartbeat or
// socket close. The client is greeted with a connection_established message.
func (h *Hub) Register(ch Channel, sub Subtype, identity auth.Identity) *Conn {
	conn := newConn(uuid.NewString(), ch, sub, identity, time.Now())

	h.mu.Lock()
	h.conns[conn.ID] = conn
	if conn.UserID != "" {
		h.users[conn.UserID] = conn.ID
	}
	total := len(h.conns)
	h.mu.Unlock()

	h.metrics.ConnectedClients.Inc()
	h.log.Info().
		Str("conn_id", conn.ID).
		Str("user_id", conn.UserID).
		Str("subtype", string(conn.Subtype)).
		Int("total_clients", total).
		Msg("connection registered")

	h.deliver(conn, NewEnvelope(MsgConnectionEstablished, map[string]interface{}{
		"userId":       conn.UserID,
		"connectionId": conn.ID,
		"features":     conn.features(),
	}))

	return conn
}

// Unregister removes a connection from the registry, from every room it
// joined (pruning rooms left empty), and from the user index — but only if
// the user index still points at it, so a newer connection for the same user
// is never clobbered. Unknown ids are a no-op. The underlying channel is
// closed last, outside the lock.
func (h *Hub) Unregister(connID string) {
	h.mu.Lock()
	conn, ok := h.conns[connID]
	if !ok {
		h.mu.Unlock()
		return
	}
	delete(h.conns, connID)

	for roomID, members := range h.rooms {
		if _, member := members[connID]; member {
			delete(members, connID)
			if len(members) == 0 {
				delete(h.rooms, roomID)
			}
		}
	}

	if conn.UserID != "" && h.users[conn.UserID] == connID {
		delete(h.users, conn.UserID)
	}
	total := len(h.conns)
	h.mu.Unlock()

	_ = conn.channel.Close()

	h.metrics.ConnectedClients.Dec()
	h.log.Info().
		Str("conn_id", connID).
		Str("user_id", conn.UserID).
		Int("total_clients", total).
		Msg("connection unregistered")
}

// Get returns the connection with the given id.
func (h *Hub) Get(connID string) (*Conn, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	conn, ok := h.conns[connID]
	return conn, ok
}

// Join adds a connection to a room, lazily creating the room, and confirms
// to the joining client. Joining a room twice is idempotent. Unknown
// connection ids are ignored.
func (h *Hub) Join(raceID, connID string) {
	h.mu.Lock()
	conn, ok := h.conns[connID]
	if !ok {
		h.mu.Unlock()
		return
	}
	members, ok := h.rooms[raceID]
	if !ok {
		members = make(map[string]struct{})
		h.rooms[raceID] = members
	}
	members[connID] = struct{}{}
	size := len(members)
	h.mu.Unlock()

	h.log.Debug().
		Str("race_id", raceID).
		Str("conn_id", connID).
		Int("members", size).
		Msg("connection joined room")

	h.deliver(conn, NewEnvelope(MsgJoinedRace, map[string]interface{}{"raceId": raceID}))
}

// Leave removes a connection from a room, deleting the room when its member
// set becomes empty, and confirms to the leaving client. Leaving a room the
// connection never joined is a no-op.
func (h *Hub) Leave(raceID, connID string) {
	h.mu.Lock()
	conn := h.conns[connID]
	if members, ok := h.rooms[raceID]; ok {
		delete(members, connID)
		if len(members) == 0 {
			delete(h.rooms, raceID)
		}
	}
	h.mu.Unlock()

	h.log.Debug().
		Str("race_id", raceID).
		Str("conn_id", connID).
		Msg("connection left room")

	if conn != nil {
		h.deliver(conn, NewEnvelope(MsgLeftRace, map[string]interface{}{"raceId": raceID}))
	}
}

// MembersOf returns a snapshot of a room's member connection ids. An absent
// room yields an empty slice.
func (h *Hub) MembersOf(raceID string) []string {
	h.mu.RLock()
	defer h.mu.RUnlock()

	members := make([]string, 0, len(h.rooms[raceID]))
	for id := range h.rooms[raceID] {
		members = append(members, id)
	}
	return members
}

// ResolveUser returns the connection id currently mapped to a user.
func (h *Hub) ResolveUser(userID string) (string, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	id, ok := h.users[userID]
	return id, ok
}

// Stats returns current connection and room counts.
func (h *Hub) Stats() (conns, rooms int) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.conns), len(h.rooms)
}

// CloseAll force-closes every open connection and clears all indices.
// Called on shutdown, after the heartbeat ticker has stopped.
func (h *Hub) CloseAll() {
	h.mu.Lock()
	closing := make([]*Conn, 0, len(h.conns))
	for _, conn := range h.conns {
		closing = append(closing, conn)
	}
	h.conns = make(map[string]*Conn)
	h.rooms = make(map[string]map[string]struct{})
	h.users = make(map[string]string)
	h.mu.Unlock()

	for _, conn := range closing {
		_ = conn.channel.Close()
	}
	h.metrics.ConnectedClients.Sub(float64(len(closing)))
	h.log.Info().Int("clients_closed", len(closing)).Msg("closed all connections")
}

// markPong records a pong from a connection, resetting its heartbeat state.
// Only the sending connection's own liveness is touched.
func (h *Hub) markPong(connID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if conn, ok := h.conns[connID]; ok {
		conn.lastLivenessAt = time.Now()
		conn.awaitingPong = false
		conn.missedPongs = 0
	}
}
