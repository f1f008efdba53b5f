package lobby

import (
	"context"
	"errors"
	"sync"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/inklobby/inklobby/internal/config"
	"github.com/inklobby/inklobby/internal/models"
)

// ErrLobbyClosed means the actor behind a handle exited. Callers remove the
// stale registry entry and retry the acquire.
var ErrLobbyClosed = errors.New("lobby: closed")

// Handle is a send-side reference to one lobby actor. Handles are shared;
// the identity of the underlying actor is the ID, which RemoveIfMatches
// compares to avoid racing a concurrent recreate.
type Handle struct {
	id    uuid.UUID
	name  models.LobbyName
	inbox chan Event
	done  chan struct{}
}

// Name returns the display name, case-preserved from the creating join.
func (h *Handle) Name() models.LobbyName { return h.name }

// Done is closed when the actor exits.
func (h *Handle) Done() <-chan struct{} { return h.done }

// Send enqueues an event for the actor. A full inbox blocks the caller,
// which is the intended backpressure on a busy lobby.
func (h *Handle) Send(ctx context.Context, ev Event) error {
	select {
	case h.inbox <- ev:
		return nil
	case <-h.done:
		return ErrLobbyClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Registry maps case-insensitive lobby names to live actors. Actors are
// created lazily on first acquire and never shut down from here; a dead
// actor's entry is healed by the next joiner.
type Registry struct {
	mu      sync.Mutex
	log     *logrus.Logger
	lobbies map[string]*Handle
}

func NewRegistry(log *logrus.Logger) *Registry {
	return &Registry{
		log:     log,
		lobbies: make(map[string]*Handle),
	}
}

// GetOrCreate returns the handle for name, spawning a fresh actor when none
// exists or the existing one already exited.
func (r *Registry) GetOrCreate(name models.LobbyName) *Handle {
	key := name.Key()
	r.mu.Lock()
	defer r.mu.Unlock()

	if h, ok := r.lobbies[key]; ok {
		select {
		case <-h.done:
			// Actor exited; fall through and replace the entry.
		default:
			return h
		}
	}

	h := &Handle{
		id:    uuid.New(),
		name:  name,
		inbox: make(chan Event, config.RxSharedBuffer),
		done:  make(chan struct{}),
	}
	r.lobbies[key] = h

	a := newActor(name, r.log)
	go func() {
		defer close(h.done)
		a.run(h.inbox)
	}()
	return h
}

// RemoveIfMatches deletes the entry for name only if it still refers to the
// same actor as h.
func (r *Registry) RemoveIfMatches(name models.LobbyName, h *Handle) {
	key := name.Key()
	r.mu.Lock()
	defer r.mu.Unlock()
	if cur, ok := r.lobbies[key]; ok && cur.id == h.id {
		delete(r.lobbies, key)
	}
}
