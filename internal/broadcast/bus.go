// Package broadcast fans lobby output out to WebSocket sessions. Publishing
// never blocks: a subscriber whose buffer is full is closed and must resume
// by reconnecting, which replays the lobby logs from scratch.
package broadcast

import (
	"errors"
	"sync"
	"sync/atomic"

	"github.com/inklobby/inklobby/internal/config"
	"github.com/inklobby/inklobby/internal/models"
)

// ErrNoReceivers reports a publish with zero live subscribers. The lobby
// actor uses it as its shutdown signal.
var ErrNoReceivers = errors.New("broadcast: no receivers")

// Receiver is one subscription. C is closed when the receiver falls behind
// or the bus shuts down; Missed reports how many envelopes were dropped.
type Receiver struct {
	C      <-chan models.Broadcast
	c      chan models.Broadcast
	missed atomic.Uint64
	closed bool
}

// Missed returns the number of envelopes dropped before the channel closed.
func (r *Receiver) Missed() uint64 { return r.missed.Load() }

// Bus is a per-lobby fan-out of Broadcast envelopes.
type Bus struct {
	mu   sync.Mutex
	subs map[*Receiver]struct{}
}

func NewBus() *Bus {
	return &Bus{subs: make(map[*Receiver]struct{})}
}

// Subscribe registers a receiver with a fixed buffer. Envelopes published
// before the subscription are not replayed.
func (b *Bus) Subscribe() *Receiver {
	ch := make(chan models.Broadcast, config.TxBroadcastBuffer)
	r := &Receiver{C: ch, c: ch}
	b.mu.Lock()
	b.subs[r] = struct{}{}
	b.mu.Unlock()
	return r
}

// Unsubscribe removes the receiver and closes its channel. Safe to call
// after the receiver has already been lag-closed.
func (b *Bus) Unsubscribe(r *Receiver) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.subs[r]; ok {
		delete(b.subs, r)
		b.close(r)
	}
}

// Publish delivers msg to every live subscriber without blocking. A
// subscriber with a full buffer is counted as missed and closed; it sees
// the buffered backlog, then the closed channel. Returns ErrNoReceivers
// when no subscriber was live at entry.
func (b *Bus) Publish(msg models.Broadcast) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if len(b.subs) == 0 {
		return ErrNoReceivers
	}
	for r := range b.subs {
		select {
		case r.c <- msg:
		default:
			r.missed.Add(1)
			delete(b.subs, r)
			b.close(r)
		}
	}
	return nil
}

// Close shuts every remaining subscriber down.
func (b *Bus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	for r := range b.subs {
		delete(b.subs, r)
		b.close(r)
	}
}

func (b *Bus) close(r *Receiver) {
	if !r.closed {
		r.closed = true
		close(r.c)
	}
}
