// Package models holds the shared domain and wire types: identities, game
// state, canvas events, chat/guess lines, and the JSON codec used on the
// WebSocket. The lobby actor owns the only mutable copies; everything handed
// to sessions is a snapshot.
package models

import (
	"fmt"
	"hash/fnv"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/inklobby/inklobby/internal/epoch"
)

// UserID identifies a player within a lobby. It is derived from the nickname,
// so the same nickname maps to the same player across reconnects.
type UserID uint64

// DeriveUserID hashes a nickname with FNV-1a. The hash is stable across
// processes, which is all the identity model requires.
func DeriveUserID(nick Nickname) UserID {
	h := fnv.New64a()
	h.Write([]byte(nick))
	return UserID(h.Sum64())
}

// MarshalText renders the ID as a decimal string. JSON numbers above 2^53
// lose precision in browser clients, and UserID uses the full 64 bits.
func (u UserID) MarshalText() ([]byte, error) {
	return []byte(strconv.FormatUint(uint64(u), 10)), nil
}

func (u *UserID) UnmarshalText(b []byte) error {
	v, err := strconv.ParseUint(string(b), 10, 64)
	if err != nil {
		return fmt.Errorf("invalid user id %q: %w", b, err)
	}
	*u = UserID(v)
	return nil
}

func (u UserID) String() string { return strconv.FormatUint(uint64(u), 10) }

// Nickname is the self-declared display name. Immutable once joined.
type Nickname string

// LobbyName is a room name. Lookup is case-insensitive; display preserves the
// case of the first joiner.
type LobbyName string

// Key returns the case-insensitive registry key.
func (l LobbyName) Key() string { return strings.ToLower(string(l)) }

// Lowercase is a string normalized to ASCII lowercase at construction. Word
// comparison is exact equality on this representation.
type Lowercase string

// ToLowercase normalizes s. Only ASCII letters are folded, matching the word
// list, which is plain ASCII.
func ToLowercase(s string) Lowercase {
	b := []byte(s)
	for i, c := range b {
		if c >= 'A' && c <= 'Z' {
			b[i] = c + ('a' - 'A')
		}
	}
	return Lowercase(b)
}

// PlayerStatus tracks whether the player has a live session.
type PlayerStatus string

const (
	StatusConnected    PlayerStatus = "connected"
	StatusDisconnected PlayerStatus = "disconnected"
)

// Player is one identity within a lobby. Score only decreases at game start,
// and Epoch only increases (reconnects mint a fresh one).
type Player struct {
	Nick   Nickname                   `json:"nick"`
	Epoch  epoch.Epoch[epoch.Session] `json:"epoch"`
	Status PlayerStatus               `json:"status"`
	Score  uint32                     `json:"score"`
}

// Players maps UserID to Player. Iteration order for turn advancement and
// rank tie-breaks is the sorted key order.
type Players map[UserID]Player

// Clone returns an independent copy, safe to hand to other goroutines.
func (p Players) Clone() Players {
	out := make(Players, len(p))
	for id, pl := range p {
		out[id] = pl
	}
	return out
}

// OrderedIDs returns the player IDs in stable iteration order.
func (p Players) OrderedIDs() []UserID {
	ids := make([]UserID, 0, len(p))
	for id := range p {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// NextAfter returns the first player strictly after id in iteration order,
// or ok=false when id is the last (or the map is empty).
func (p Players) NextAfter(id UserID) (UserID, bool) {
	for _, candidate := range p.OrderedIDs() {
		if candidate > id {
			return candidate, true
		}
	}
	return 0, false
}

// First returns the first player in iteration order.
func (p Players) First() (UserID, bool) {
	ids := p.OrderedIDs()
	if len(ids) == 0 {
		return 0, false
	}
	return ids[0], true
}

// GameConfig is mutable via chat commands while waiting to start.
type GameConfig struct {
	Rounds       uint8 `json:"rounds"`
	GuessSeconds uint8 `json:"guessSeconds"`
}

// PhaseKind discriminates GamePhase.
type PhaseKind string

const (
	PhaseWaitingToStart PhaseKind = "waiting_to_start"
	PhaseChoosingWord   PhaseKind = "choosing_word"
	PhaseDrawing        PhaseKind = "drawing"
)

// GamePhase is a tagged variant; only the fields of the active kind are set.
type GamePhase struct {
	Kind PhaseKind `json:"kind"`

	// ChoosingWord and Drawing.
	Round uint8 `json:"round,omitempty"`

	// ChoosingWord.
	Chooser UserID      `json:"chooser,omitempty"`
	Words   []Lowercase `json:"words,omitempty"`

	// Drawing.
	Drawer     UserID                   `json:"drawer,omitempty"`
	Word       Lowercase                `json:"word,omitempty"`
	Correct    map[UserID]uint32        `json:"correct,omitempty"`
	RoundEpoch epoch.Epoch[epoch.Round] `json:"roundEpoch,omitempty"`
	StartedAt  time.Time                `json:"startedAt,omitzero"`
}

// WaitingToStart is the initial and terminal phase.
func WaitingToStart() GamePhase {
	return GamePhase{Kind: PhaseWaitingToStart}
}

// ChoosingWord waits for chooser to pick one of the offered words.
func ChoosingWord(round uint8, chooser UserID, words []Lowercase) GamePhase {
	return GamePhase{Kind: PhaseChoosingWord, Round: round, Chooser: chooser, Words: words}
}

// Drawing runs until the round timer fires or every guesser is correct.
func Drawing(round uint8, drawer UserID, word Lowercase, roundEpoch epoch.Epoch[epoch.Round], startedAt time.Time) GamePhase {
	return GamePhase{
		Kind:       PhaseDrawing,
		Round:      round,
		Drawer:     drawer,
		Word:       word,
		Correct:    map[UserID]uint32{},
		RoundEpoch: roundEpoch,
		StartedAt:  startedAt,
	}
}

// GameState is the broadcastable game snapshot.
type GameState struct {
	Config GameConfig `json:"config"`
	Phase  GamePhase  `json:"phase"`
}

// Clone deep-copies the state, including the phase's correct-guesser map.
func (s GameState) Clone() GameState {
	out := s
	if s.Phase.Correct != nil {
		out.Phase.Correct = make(map[UserID]uint32, len(s.Phase.Correct))
		for id, pts := range s.Phase.Correct {
			out.Phase.Correct[id] = pts
		}
	}
	if s.Phase.Words != nil {
		out.Phase.Words = append([]Lowercase(nil), s.Phase.Words...)
	}
	return out
}
