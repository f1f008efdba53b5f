// Package epoch issues process-wide monotonically increasing identifiers,
// tagged by a domain type so that values from different domains cannot be
// compared or substituted for one another.
package epoch

import "sync/atomic"

// Session tags epochs minted once per WebSocket connection. A stale session
// (pre-reconnect) holds an older Session epoch than the live one.
type Session struct{}

// Round tags epochs minted once per Drawing phase. A delayed round-end event
// carrying an old Round epoch is ignored by the lobby.
type Round struct{}

// Epoch is an opaque identifier within domain T. The zero value is never
// issued, so a default-constructed Epoch is always invalid.
type Epoch[T any] uint64

// Valid reports whether e was obtained from a Generator.
func (e Epoch[T]) Valid() bool { return e != 0 }

// Generator mints epochs for one domain. The zero Generator is ready to use.
type Generator[T any] struct {
	last atomic.Uint64
}

// Next returns a fresh epoch, strictly greater than all previously issued
// epochs of this generator.
func (g *Generator[T]) Next() Epoch[T] {
	return Epoch[T](g.last.Add(1))
}

var (
	sessions Generator[Session]
	rounds   Generator[Round]
)

// NextSession mints a process-global user-session epoch.
func NextSession() Epoch[Session] { return sessions.Next() }

// NextRound mints a process-global game-round epoch.
func NextRound() Epoch[Round] { return rounds.Next() }
