package models

import (
	"encoding/json"
	"fmt"

	"github.com/inklobby/inklobby/internal/epoch"
)

// GameType discriminates outbound messages.
type GameType string

const (
	GameHeartbeat    GameType = "heartbeat"
	GamePlayers      GameType = "players"
	GameStateMsg     GameType = "game_state"
	GameCanvas       GameType = "canvas"
	GameCanvasBulk   GameType = "canvas_bulk"
	GameGuess        GameType = "guess"
	GameGuessBulk    GameType = "guess_bulk"
	GameClearGuesses GameType = "clear_guesses"
)

// Game is one outbound WebSocket message. Exactly the fields of the active
// type are populated.
type Game struct {
	Type GameType `json:"type"`

	Canvas   *CanvasEvent  `json:"canvas,omitempty"`
	Canvases []CanvasEvent `json:"canvases,omitempty"`
	Guess    *Guess        `json:"guess,omitempty"`
	Guesses  []Guess       `json:"guesses,omitempty"`
	Players  Players       `json:"players,omitempty"`
	State    *GameState    `json:"state,omitempty"`
}

// Heartbeat keeps idle sockets alive.
func Heartbeat() Game { return Game{Type: GameHeartbeat} }

// PlayersSnapshot broadcasts the player roster.
func PlayersSnapshot(p Players) Game { return Game{Type: GamePlayers, Players: p} }

// StateSnapshot broadcasts the game state.
func StateSnapshot(s GameState) Game { return Game{Type: GameStateMsg, State: &s} }

// CanvasMsg forwards a single drawing operation.
func CanvasMsg(ev CanvasEvent) Game { return Game{Type: GameCanvas, Canvas: &ev} }

// CanvasBulk replays the canvas log to a joiner.
func CanvasBulk(evs []CanvasEvent) Game { return Game{Type: GameCanvasBulk, Canvases: evs} }

// GuessMsg forwards a single guess-log line.
func GuessMsg(g Guess) Game { return Game{Type: GameGuess, Guess: &g} }

// GuessBulk replays the guess log to a joiner.
func GuessBulk(gs []Guess) Game { return Game{Type: GameGuessBulk, Guesses: gs} }

// ClearGuesses wipes the client chat feed at game start.
func ClearGuesses() Game { return Game{Type: GameClearGuesses} }

// EncodeGame serializes one outbound message for a WebSocket frame.
func EncodeGame(g Game) ([]byte, error) {
	return json.Marshal(g)
}

// ReqType discriminates inbound client requests.
type ReqType string

const (
	ReqJoin   ReqType = "join"
	ReqCanvas ReqType = "canvas"
	ReqChoose ReqType = "choose"
	ReqGuess  ReqType = "guess"
	ReqRemove ReqType = "remove"
)

// ClientReq is one inbound WebSocket message.
type ClientReq struct {
	Type ReqType `json:"type"`

	// Join.
	Lobby    LobbyName `json:"lobby,omitempty"`
	Nickname Nickname  `json:"nickname,omitempty"`

	// Canvas.
	Canvas *CanvasEvent `json:"canvas,omitempty"`

	// Choose and Guess.
	Word Lowercase `json:"word,omitempty"`

	// Remove.
	Target      UserID                     `json:"target,omitempty"`
	TargetEpoch epoch.Epoch[epoch.Session] `json:"targetEpoch,omitempty"`
}

// DecodeClientReq parses one frame, rejecting unknown tags and malformed
// payloads. Decode failures terminate the offending session.
func DecodeClientReq(data []byte) (ClientReq, error) {
	var req ClientReq
	if err := json.Unmarshal(data, &req); err != nil {
		return ClientReq{}, fmt.Errorf("decode request: %w", err)
	}
	switch req.Type {
	case ReqJoin:
		if req.Lobby == "" || req.Nickname == "" {
			return ClientReq{}, fmt.Errorf("join requires lobby and nickname")
		}
	case ReqCanvas:
		if req.Canvas == nil || !req.Canvas.Type.valid() {
			return ClientReq{}, fmt.Errorf("canvas request missing or unknown event")
		}
	case ReqChoose, ReqGuess:
		// Empty words are allowed; the lobby treats them as chat or ignores
		// them by phase.
	case ReqRemove:
		if !req.TargetEpoch.Valid() {
			return ClientReq{}, fmt.Errorf("remove requires a target epoch")
		}
	default:
		return ClientReq{}, fmt.Errorf("unknown request type %q", req.Type)
	}
	return req, nil
}

// Rule addresses a broadcast envelope.
type Rule string

const (
	// RuleEveryone delivers to all sessions.
	RuleEveryone Rule = "everyone"
	// RuleExclude delivers to all sessions except the named user.
	RuleExclude Rule = "exclude"
	// RuleOnly delivers only to the named user.
	RuleOnly Rule = "only"
	// RuleKill terminates the session matching (user, epoch) exactly.
	RuleKill Rule = "kill"
)

// Broadcast is a (message, addressing-rule) envelope on the per-lobby bus.
// Sessions apply the rule before forwarding to their socket.
type Broadcast struct {
	Rule  Rule
	User  UserID
	Epoch epoch.Epoch[epoch.Session]
	Msg   Game
}

// ToEveryone addresses all sessions.
func ToEveryone(msg Game) Broadcast { return Broadcast{Rule: RuleEveryone, Msg: msg} }

// Excluding addresses all sessions but user's.
func Excluding(user UserID, msg Game) Broadcast {
	return Broadcast{Rule: RuleExclude, User: user, Msg: msg}
}

// OnlyFor addresses just user's sessions.
func OnlyFor(user UserID, msg Game) Broadcast {
	return Broadcast{Rule: RuleOnly, User: user, Msg: msg}
}

// Kill terminates the exact session identified by (user, epoch).
func Kill(user UserID, ep epoch.Epoch[epoch.Session]) Broadcast {
	return Broadcast{Rule: RuleKill, User: user, Epoch: ep}
}
