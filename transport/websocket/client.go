package websocket

import (
	"errors"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"raceline/config"
	"raceline/realtime"
)

var (
	ErrClientClosed   = errors.New("client closed")
	ErrSendBufferFull = errors.New("send buffer full")
)

// Client adapts one gorilla/websocket connection to the realtime.Channel
// contract. Outbound messages go through a buffered channel drained by
// writePump; a full buffer means the peer is too slow and the send fails,
// which the core treats as a liveness failure.
type Client struct {
	conn *websocket.Conn
	cfg  config.Config
	log  zerolog.Logger

	// limiter throttles inbound messages; nil means unlimited. Only the
	// location endpoint sets one, since position reports arrive in bursts.
	limiter *rate.Limiter

	send      chan []byte
	done      chan struct{}
	closeOnce sync.Once
}

// NewClient wraps an upgraded connection. limiter may be nil.
func NewClient(conn *websocket.Conn, cfg config.Config, limiter *rate.Limiter, log zerolog.Logger) *Client {
	return &Client{
		conn:    conn,
		cfg:     cfg,
		log:     log,
		limiter: limiter,
		send:    make(chan []byte, cfg.SendBuffer),
		done:    make(chan struct{}),
	}
}

// Send implements realtime.Channel. It never blocks the caller.
func (c *Client) Send(data []byte) error {
	select {
	case <-c.done:
		return ErrClientClosed
	default:
	}

	select {
	case c.send <- data:
		return nil
	default:
		return ErrSendBufferFull
	}
}

// Close implements realtime.Channel. Safe to call multiple times.
func (c *Client) Close() error {
	c.closeOnce.Do(func() {
		close(c.done)
		_ = c.conn.Close()
	})
	return nil
}

// readPump forwards inbound frames to the dispatcher until the socket
// reports closed or errored, then unregisters the connection. Messages on
// one connection are processed in order. The read deadline is refreshed on
// every frame, so a connection that keeps talking never expires even if an
// individual pong gets lost.
func (c *Client) readPump(connID string, hub *realtime.Hub, dispatcher *realtime.Dispatcher) {
	defer func() {
		hub.Unregister(connID)
		_ = c.Close()
	}()

	c.conn.SetReadLimit(int64(c.cfg.MaxMessageBytes))
	_ = c.conn.SetReadDeadline(time.Now().Add(c.readWait()))

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.log.Debug().Str("conn_id", connID).Err(err).Msg("websocket read error")
			}
			return
		}
		_ = c.conn.SetReadDeadline(time.Now().Add(c.readWait()))

		if c.limiter != nil && !c.limiter.Allow() {
			continue
		}

		dispatcher.Dispatch(connID, data)
	}
}

// writePump drains the send buffer to the socket, batching whatever has
// queued up behind a single writer, until the client is closed.
func (c *Client) writePump() {
	defer func() { _ = c.Close() }()

	for {
		select {
		case <-c.done:
			_ = c.conn.SetWriteDeadline(time.Now().Add(c.cfg.WriteWait))
			_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
			return

		case msg := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(c.cfg.WriteWait))

			w, err := c.conn.NextWriter(websocket.TextMessage)
			if err != nil {
				return
			}
			_, _ = w.Write(msg)

			n := len(c.send)
			for i := 0; i < n; i++ {
				_, _ = w.Write([]byte{'\n'})
				_, _ = w.Write(<-c.send)
			}

			if err := w.Close(); err != nil {
				return
			}
		}
	}
}

// readWait bounds how long a silent connection is kept. The heartbeat
// monitor pings at HeartbeatInterval; PongWait gives the peer two intervals
// by default before the socket itself is considered dead.
func (c *Client) readWait() time.Duration {
	if c.cfg.PongWait > 0 {
		return c.cfg.PongWait
	}
	return 2 * c.cfg.HeartbeatInterval
}
