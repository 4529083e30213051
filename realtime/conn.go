package realtime

import (
	"time"

	"raceline/auth"
)

// Subtype identifies which endpoint a connection came in through. All four
// share the same envelope format and registry; the subtype only gates which
// messages a connection may originate and which fan-outs it receives.
type Subtype string

const (
	SubtypeGeneral      Subtype = "general"
	SubtypeRace         Subtype = "race"
	SubtypeLocation     Subtype = "location"
	SubtypeNotification Subtype = "notification"
)

// Channel is the transport-side view of a connection: a duplex byte stream
// the core can write to and close. Implementations must be safe for
// concurrent Send calls and must return an error once closed; the core
// treats any Send error as a liveness failure.
type Channel interface {
	Send(data []byte) error
	Close() error
}

// Conn is one registered connection. It is owned exclusively by the Hub;
// liveness fields are only read or written under the hub lock.
type Conn struct {
	ID            string
	UserID        string
	Username      string
	Subtype       Subtype
	EstablishedAt time.Time

	channel Channel

	lastLivenessAt time.Time
	awaitingPong   bool
	missedPongs    int
}

func newConn(id string, ch Channel, sub Subtype, identity auth.Identity, now time.Time) *Conn {
	return &Conn{
		ID:             id,
		UserID:         identity.UserID,
		Username:       identity.Username,
		Subtype:        sub,
		EstablishedAt:  now,
		channel:        ch,
		lastLivenessAt: now,
	}
}

// features reports what the client can expect over this connection, included
// in the connection_established handshake message.
func (c *Conn) features() []string {
	switch c.Subtype {
	case SubtypeRace:
		return []string{"race_updates"}
	case SubtypeLocation:
		return []string{"location_sharing"}
	case SubtypeNotification:
		return []string{"notifications"}
	default:
		return []string{"race_updates", "notifications"}
	}
}
