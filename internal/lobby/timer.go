package lobby

import (
	"time"

	"github.com/inklobby/inklobby/internal/config"
)

// runTimer is the per-lobby helper goroutine for time-driven events. The
// actor must never block sending to its own inbox, so delayed self-events are
// routed through delayCh and re-enter the inbox from here. It also drives the
// periodic heartbeat. Exits when delayCh is closed or the actor is gone.
func runTimer(delayCh <-chan delayed, inbox chan<- Event, stopped <-chan struct{}) {
	ticker := time.NewTicker(config.HeartbeatInterval)
	defer ticker.Stop()

	var queue []delayed
	for {
		var fire <-chan time.Time
		var timer *time.Timer
		if len(queue) > 0 {
			timer = time.NewTimer(time.Until(earliest(queue).at))
			fire = timer.C
		}

		select {
		case d, ok := <-delayCh:
			if !ok {
				stopTimer(timer)
				return
			}
			queue = append(queue, d)
		case <-ticker.C:
			if !push(inbox, Heartbeat{}, stopped) {
				stopTimer(timer)
				return
			}
		case <-fire:
			i := earliestIndex(queue)
			ev := queue[i].ev
			queue = append(queue[:i], queue[i+1:]...)
			if !push(inbox, ev, stopped) {
				return
			}
		}
		stopTimer(timer)
	}
}

func push(inbox chan<- Event, ev Event, stopped <-chan struct{}) bool {
	select {
	case inbox <- ev:
		return true
	case <-stopped:
		return false
	}
}

func earliestIndex(queue []delayed) int {
	best := 0
	for i, d := range queue {
		if d.at.Before(queue[best].at) {
			best = i
		}
	}
	return best
}

func earliest(queue []delayed) delayed { return queue[earliestIndex(queue)] }

func stopTimer(t *time.Timer) {
	if t != nil {
		t.Stop()
	}
}
