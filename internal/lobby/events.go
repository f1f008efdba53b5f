package lobby

import (
	"time"

	"github.com/inklobby/inklobby/internal/broadcast"
	"github.com/inklobby/inklobby/internal/epoch"
	"github.com/inklobby/inklobby/internal/models"
)

// Event is one message on a lobby actor's inbox.
type Event interface{ isEvent() }

// Connect registers a session. The actor subscribes a broadcast receiver and
// replies with it plus the onboarding messages; Reply must have capacity so
// the actor never blocks on it.
type Connect struct {
	User  models.UserID
	Epoch epoch.Epoch[epoch.Session]
	Nick  models.Nickname
	Reply chan<- Onboarding
}

// Onboarding is the actor's answer to Connect: the session's bus subscription
// and the replay messages to put on the socket before anything else. Leave
// drops the subscription; sessions call it on exit.
type Onboarding struct {
	Rx    *broadcast.Receiver
	Leave func()
	Msgs  []models.Game
}

// Message forwards one decoded client frame.
type Message struct {
	User  models.UserID
	Epoch epoch.Epoch[epoch.Session]
	Req   models.ClientReq
}

// Disconnect marks a session gone. Idempotent; stale epochs are ignored.
type Disconnect struct {
	User  models.UserID
	Epoch epoch.Epoch[epoch.Session]
}

// Heartbeat asks the actor to ping all sockets.
type Heartbeat struct{}

// RoundEnd is the delayed round-expiry self-event. Ignored unless Round
// matches the current Drawing phase.
type RoundEnd struct {
	Round epoch.Epoch[epoch.Round]
}

func (Connect) isEvent()    {}
func (Message) isEvent()    {}
func (Disconnect) isEvent() {}
func (Heartbeat) isEvent()  {}
func (RoundEnd) isEvent()   {}

// delayed pairs a self-event with its due time for the timer service.
type delayed struct {
	at time.Time
	ev Event
}
