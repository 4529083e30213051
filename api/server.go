package api

import (
	"encoding/json"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"raceline/realtime"
	ws "raceline/transport/websocket"
)

// Server exposes the realtime endpoints over HTTP: the four websocket
// subtypes, the internal notification glue called by the REST CRUD service
// after successful mutations, and health/metrics.
type Server struct {
	hub    *realtime.Hub
	router *mux.Router
	log    zerolog.Logger
}

// NewServer builds the router.
func NewServer(hub *realtime.Hub, wsHandler *ws.Handler, registry *prometheus.Registry, log zerolog.Logger) *Server {
	s := &Server{
		hub:    hub,
		router: mux.NewRouter(),
		log:    log.With().Str("component", "api").Logger(),
	}

	// WebSocket endpoints, one per subtype
	s.router.HandleFunc("/ws", wsHandler.Serve(realtime.SubtypeGeneral))
	s.router.HandleFunc("/ws/race", wsHandler.Serve(realtime.SubtypeRace))
	s.router.HandleFunc("/ws/location", wsHandler.Serve(realtime.SubtypeLocation))
	s.router.HandleFunc("/ws/notifications", wsHandler.Serve(realtime.SubtypeNotification))

	// Notification glue for the REST service. Delivery is fire-and-forget:
	// these return 202 whether or not anyone was there to receive it.
	internal := s.router.PathPrefix("/internal").Subrouter()
	internal.HandleFunc("/notify/users/{id}", s.handleNotifyUser).Methods("POST")
	internal.HandleFunc("/notify/races/{id}", s.handleNotifyRace).Methods("POST")

	s.router.HandleFunc("/healthz", s.handleHealth).Methods("GET")
	s.router.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))

	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// Response helpers
func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}

// notifyRequest is the body of an internal notify call.
type notifyRequest struct {
	Type string                 `json:"type"`
	Data map[string]interface{} `json:"data"`
}

func (s *Server) handleNotifyUser(w http.ResponseWriter, r *http.Request) {
	userID := mux.Vars(r)["id"]

	var req notifyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Type == "" {
		respondError(w, http.StatusBadRequest, "invalid notification body")
		return
	}

	s.hub.NotifyUser(userID, realtime.NewEnvelope(req.Type, req.Data))
	respondJSON(w, http.StatusAccepted, map[string]string{"status": "accepted"})
}

func (s *Server) handleNotifyRace(w http.ResponseWriter, r *http.Request) {
	raceID := mux.Vars(r)["id"]

	var req notifyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Type == "" {
		respondError(w, http.StatusBadRequest, "invalid notification body")
		return
	}

	s.hub.NotifyRoom(raceID, realtime.NewEnvelope(req.Type, req.Data))
	respondJSON(w, http.StatusAccepted, map[string]string{"status": "accepted"})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	conns, rooms := s.hub.Stats()
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"status":      "ok",
		"connections": conns,
		"rooms":       rooms,
	})
}
