package websocket

import (
	"net/http"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"raceline/auth"
	"raceline/config"
	"raceline/realtime"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		// Allow all origins in development
		// TODO: Configure this for production
		return true
	},
}

// Handler wires raw websocket upgrades into the realtime core. One Handler
// serves all four endpoint subtypes; they share the registry and envelope
// format and differ only in the subtype recorded on the connection.
type Handler struct {
	hub        *realtime.Hub
	dispatcher *realtime.Dispatcher
	verifier   *auth.Verifier
	cfg        config.Config
	log        zerolog.Logger
}

// NewHandler creates a websocket handler.
func NewHandler(hub *realtime.Hub, dispatcher *realtime.Dispatcher, verifier *auth.Verifier, cfg config.Config, log zerolog.Logger) *Handler {
	return &Handler{
		hub:        hub,
		dispatcher: dispatcher,
		verifier:   verifier,
		cfg:        cfg,
		log:        log.With().Str("component", "ws-handler").Logger(),
	}
}

// Serve returns the http.HandlerFunc for one endpoint subtype.
//
// Identity verification runs before the upgrade: a request that fails auth
// is rejected and never reaches the registry.
func (h *Handler) Serve(sub realtime.Subtype) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		identity, err := h.verifier.Verify(r)
		if err != nil {
			h.log.Debug().Str("subtype", string(sub)).Err(err).Msg("rejecting unauthenticated upgrade")
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}

		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			h.log.Debug().Err(err).Msg("websocket upgrade failed")
			return
		}

		var limiter *rate.Limiter
		if sub == realtime.SubtypeLocation {
			limiter = rate.NewLimiter(rate.Limit(h.cfg.LocationRatePerSec), h.cfg.LocationBurst)
		}

		client := NewClient(conn, h.cfg, limiter, h.log)
		registered := h.hub.Register(client, sub, identity)

		go client.writePump()
		go client.readPump(registered.ID, h.hub, h.dispatcher)
	}
}
