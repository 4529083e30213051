package realtime

import (
	"encoding/json"
	"time"
)

// Inbound message types recognized by the dispatcher.
const (
	MsgJoinRace               = "join_race"
	MsgLeaveRace              = "leave_race"
	MsgSubscribeNotifications = "subscribe_notifications"
	MsgRaceUpdate             = "race_update"
	MsgLocationUpdate         = "location_update"
	MsgPong                   = "pong"
)

// Outbound message types emitted by the core.
const (
	MsgConnectionEstablished = "connection_established"
	MsgJoinedRace            = "joined_race"
	MsgLeftRace              = "left_race"
	MsgNotificationsEnabled  = "notifications_subscribed"
	MsgRaceStarted           = "race_started"
	MsgRaceCompleted         = "race_completed"
	MsgFriendRequestReceived = "friend_request_received"
	MsgFriendRequestAccepted = "friend_request_accepted"
	MsgRaceInvitation        = "race_invitation"
	MsgPing                  = "ping"
)

// Envelope is the wire format for every message in either direction:
// a type tag, a structured payload, and a server-stamped timestamp.
type Envelope struct {
	Type      string      `json:"type"`
	Data      interface{} `json:"data,omitempty"`
	Timestamp string      `json:"timestamp,omitempty"`
}

// NewEnvelope builds an outbound envelope. The timestamp is stamped at send
// time by the broadcaster, so callers may hand envelopes around freely.
func NewEnvelope(msgType string, data interface{}) Envelope {
	return Envelope{Type: msgType, Data: data}
}

// stamped returns a copy of the envelope with the timestamp set to now,
// unless the caller already stamped it.
func (e Envelope) stamped(now time.Time) Envelope {
	if e.Timestamp == "" {
		e.Timestamp = now.UTC().Format(time.RFC3339)
	}
	return e
}

// inboundMessage is the lenient decode target for client messages. RaceID at
// the top level is a legacy field from older clients; the dispatcher prefers
// data.raceId when both are present.
type inboundMessage struct {
	Type   string          `json:"type"`
	Data   json.RawMessage `json:"data"`
	RaceID string          `json:"raceId"`
}

// raceIDPayload extracts raceId from a data object.
type raceIDPayload struct {
	RaceID string `json:"raceId"`
}

// locationPayload is the data object of an inbound location_update.
type locationPayload struct {
	RaceID   string   `json:"raceId"`
	Location Location `json:"location"`
}

// Location is a position report attached to location_update messages.
type Location struct {
	Lat     float64  `json:"lat"`
	Lng     float64  `json:"lng"`
	Speed   *float64 `json:"speed,omitempty"`
	Heading *float64 `json:"heading,omitempty"`
}
