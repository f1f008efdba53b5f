// Package config holds the process-level tuning constants. These are
// compile-time values; runtime options (bind address, verbosity) are wired
// through flags and environment in cmd/server.
package config

import "time"

const (
	// MaxRequestBytes caps HTTP request bodies.
	MaxRequestBytes = 4 * 1024
	// MaxWSMessageBytes caps a single WebSocket frame.
	MaxWSMessageBytes = 4 * 1024

	// RxSharedBuffer is the lobby actor inbox capacity.
	RxSharedBuffer = 64
	// TxBroadcastBuffer is the per-subscriber broadcast bus capacity.
	TxBroadcastBuffer = 256
	// TxSelfDelayedBuffer is the delayed self-event queue capacity.
	TxSelfDelayedBuffer = 4

	// HeartbeatInterval is how often idle sockets receive a heartbeat.
	HeartbeatInterval = 45 * time.Second

	// NumberOfWordsToChoose is how many words a chooser is offered.
	NumberOfWordsToChoose = 3
	// DefaultRounds is the starting round count for a new lobby.
	DefaultRounds = 3
	// DefaultGuessSeconds is the starting guess timer for a new lobby.
	DefaultGuessSeconds = 120

	// PerfectGuessScore is the time-based score for an instant correct guess.
	PerfectGuessScore = 500
	// FirstCorrectBonus rewards the first correct guesser of a round.
	FirstCorrectBonus = 50
	// MinimumGuessScore is the floor added to every correct guess.
	MinimumGuessScore = 0
)
