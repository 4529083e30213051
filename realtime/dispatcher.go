package realtime

import (
	"encoding/json"

	"github.com/rs/zerolog"

	"raceline/locations"
)

// LocationSink receives accepted location updates for out-of-band storage
// (e.g. a last-position cache). May be nil when no cache is configured.
type LocationSink interface {
	RecordLocation(userID, raceID string, loc Location)
}

// Dispatcher routes inbound client messages to the hub by type tag.
//
// Unrecognized types are logged and ignored; malformed payloads are dropped
// without closing the connection. Neither ever produces an error frame back
// to the client.
type Dispatcher struct {
	hub  *Hub
	sink LocationSink
	log  zerolog.Logger
}

// NewDispatcher creates a dispatcher bound to a hub. sink may be nil.
func NewDispatcher(hub *Hub, sink LocationSink, log zerolog.Logger) *Dispatcher {
	return &Dispatcher{
		hub:  hub,
		sink: sink,
		log:  log.With().Str("component", "dispatcher").Logger(),
	}
}

// Dispatch handles one raw inbound message from the given connection.
func (d *Dispatcher) Dispatch(connID string, raw []byte) {
	var msg inboundMessage
	if err := json.Unmarshal(raw, &msg); err != nil {
		d.hub.metrics.MalformedIn.Inc()
		d.log.Debug().Str("conn_id", connID).Err(err).Msg("dropping malformed message")
		return
	}

	conn, ok := d.hub.Get(connID)
	if !ok {
		return
	}
	d.hub.metrics.MessagesIn.Inc()

	switch msg.Type {
	case MsgJoinRace:
		if raceID := msg.raceID(); raceID != "" {
			d.hub.Join(raceID, connID)
		}

	case MsgLeaveRace:
		if raceID := msg.raceID(); raceID != "" {
			d.hub.Leave(raceID, connID)
		}

	case MsgSubscribeNotifications:
		d.hub.SendToConnection(connID, NewEnvelope(MsgNotificationsEnabled, map[string]interface{}{
			"status": "subscribed",
		}))

	case MsgLocationUpdate:
		d.handleLocationUpdate(conn, msg)

	case MsgRaceUpdate:
		d.handleRaceUpdate(conn, msg)

	case MsgPong:
		d.hub.markPong(connID)

	default:
		d.log.Debug().Str("conn_id", connID).Str("type", msg.Type).Msg("ignoring unknown message type")
	}
}

// handleLocationUpdate re-broadcasts a position report to every
// location-subtype connection, tagged with the sender's user id. Updates are
// only accepted from location-subtype connections and only with coordinates
// that are actually on the planet.
func (d *Dispatcher) handleLocationUpdate(conn *Conn, msg inboundMessage) {
	if conn.Subtype != SubtypeLocation {
		d.log.Debug().
			Str("conn_id", conn.ID).
			Str("subtype", string(conn.Subtype)).
			Msg("location_update on non-location connection, ignoring")
		return
	}

	var payload locationPayload
	if err := json.Unmarshal(msg.Data, &payload); err != nil {
		d.hub.metrics.MalformedIn.Inc()
		return
	}
	if !locations.ValidLatLng(payload.Location.Lat, payload.Location.Lng) {
		return
	}

	raceID := payload.RaceID
	if raceID == "" {
		raceID = msg.RaceID
	}

	if d.sink != nil {
		d.sink.RecordLocation(conn.UserID, raceID, payload.Location)
	}

	d.hub.BroadcastToSubtype(SubtypeLocation, NewEnvelope(MsgLocationUpdate, map[string]interface{}{
		"userId":   conn.UserID,
		"raceId":   raceID,
		"location": payload.Location,
	}))
}

// handleRaceUpdate re-broadcasts a race-scoped update to the carried race's
// room. Only race-subtype connections may originate these.
func (d *Dispatcher) handleRaceUpdate(conn *Conn, msg inboundMessage) {
	if conn.Subtype != SubtypeRace {
		d.log.Debug().
			Str("conn_id", conn.ID).
			Str("subtype", string(conn.Subtype)).
			Msg("race_update on non-race connection, ignoring")
		return
	}

	raceID := msg.raceID()
	if raceID == "" {
		return
	}

	var data map[string]interface{}
	if len(msg.Data) > 0 {
		if err := json.Unmarshal(msg.Data, &data); err != nil {
			d.hub.metrics.MalformedIn.Inc()
			return
		}
	}
	if data == nil {
		data = make(map[string]interface{})
	}
	data["raceId"] = raceID
	data["userId"] = conn.UserID

	d.hub.BroadcastToRoom(raceID, NewEnvelope(MsgRaceUpdate, data))
}

// raceID resolves the race id of a message, preferring the data payload over
// the legacy top-level field.
func (m inboundMessage) raceID() string {
	if len(m.Data) > 0 {
		var payload raceIDPayload
		if err := json.Unmarshal(m.Data, &payload); err == nil && payload.RaceID != "" {
			return payload.RaceID
		}
	}
	return m.RaceID
}
