package realtime

import (
	"context"
	"time"
)

// RunHeartbeat pings every registered connection on a fixed interval and
// tracks which connections have answered since the previous tick.
//
// A connection that misses a pong is not force-closed: it is simply pinged
// again on the next tick with its miss count recorded. Actual removal
// happens when the underlying channel reports closed or errored (the
// transport's read deadline bounds how long a truly dead socket lingers).
//
// Cancelling the context stops the ticker and force-closes every open
// connection.
func (h *Hub) RunHeartbeat(ctx context.Context, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	h.log.Info().Dur("interval", interval).Msg("heartbeat monitor started")

	for {
		select {
		case <-ctx.Done():
			h.log.Info().Msg("heartbeat monitor stopping")
			h.CloseAll()
			return ctx.Err()

		case <-ticker.C:
			h.pingAll()
		}
	}
}

// pingAll sends a ping envelope to every connection, flagging those that
// still owed a pong from the previous tick.
func (h *Hub) pingAll() {
	h.mu.Lock()
	targets := make([]*Conn, 0, len(h.conns))
	for _, conn := range h.conns {
		if conn.awaitingPong {
			conn.missedPongs++
			h.metrics.MissedPongs.Inc()
			h.log.Debug().
				Str("conn_id", conn.ID).
				Int("missed_pongs", conn.missedPongs).
				Time("last_liveness", conn.lastLivenessAt).
				Msg("connection missed pong, re-pinging")
		}
		conn.awaitingPong = true
		targets = append(targets, conn)
	}
	h.mu.Unlock()

	env := NewEnvelope(MsgPing, map[string]interface{}{})
	for _, conn := range targets {
		h.deliver(conn, env)
	}
}
