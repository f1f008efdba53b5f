// Package lobby implements the per-room coordination engine: a registry of
// named rooms, a single-writer actor per room that owns all authoritative
// game state, and the timer helper that feeds it time-driven events.
package lobby

import (
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/inklobby/inklobby/internal/broadcast"
	"github.com/inklobby/inklobby/internal/config"
	"github.com/inklobby/inklobby/internal/epoch"
	"github.com/inklobby/inklobby/internal/models"
	"github.com/inklobby/inklobby/internal/words"
)

var (
	// ErrNoPlayers means every session is gone; the actor exits and the
	// registry entry self-heals on the next join.
	ErrNoPlayers = errors.New("lobby: no connected sessions")
	// ErrNoPlayersDuringTransition means the player map emptied at a point
	// where a next turn-holder was required.
	ErrNoPlayersDuringTransition = errors.New("lobby: players empty during phase transition")
	// ErrDelayQueueFull means the timer helper stopped draining its queue.
	ErrDelayQueueFull = errors.New("lobby: delay queue full")
)

// actor owns one lobby's mutable state. It serves exactly one event at a
// time from its inbox; nothing else reads or writes players, state, or the
// logs. Snapshots handed out are clones.
type actor struct {
	name    models.LobbyName
	log     *logrus.Entry
	bus     *broadcast.Bus
	delayCh chan delayed
	stopped chan struct{}

	players tracked[models.Players]
	state   tracked[models.GameState]
	guesses []models.Guess
	canvas  []models.CanvasEvent

	// now is swappable for tests.
	now func() time.Time
}

func newActor(name models.LobbyName, log *logrus.Logger) *actor {
	return &actor{
		name:    name,
		log:     log.WithField("lobby", name),
		bus:     broadcast.NewBus(),
		delayCh: make(chan delayed, config.TxSelfDelayedBuffer),
		stopped: make(chan struct{}),
		players: newTracked(models.Players{}),
		// The first joiners see the command help at the top of the feed.
		guesses: []models.Guess{models.Help()},
		state: newTracked(models.GameState{
			Config: models.GameConfig{
				Rounds:       config.DefaultRounds,
				GuessSeconds: config.DefaultGuessSeconds,
			},
			Phase: models.WaitingToStart(),
		}),
		now: time.Now,
	}
}

// run serves the inbox until a fatal error. The lobby and its state die
// together; remaining joiners get a fresh lobby via the registry.
func (a *actor) run(inbox chan Event) {
	go runTimer(a.delayCh, inbox, a.stopped)
	defer a.bus.Close()
	defer close(a.stopped)
	defer close(a.delayCh)

	a.log.Info("lobby started")
	for ev := range inbox {
		if err := a.handle(ev); err != nil {
			a.log.WithError(err).Info("lobby shutting down")
			return
		}
	}
}

func (a *actor) handle(ev Event) error {
	switch e := ev.(type) {
	case Connect:
		if err := a.onConnect(e); err != nil {
			return err
		}
	case Message:
		if err := a.onMessage(e); err != nil {
			return err
		}
	case Disconnect:
		a.onDisconnect(e)
	case Heartbeat:
		if err := a.publish(models.ToEveryone(models.Heartbeat())); err != nil {
			return err
		}
	case RoundEnd:
		if err := a.onRoundEnd(e); err != nil {
			return err
		}
	}
	return a.closeout()
}

// publish forwards to the bus, mapping an empty bus to the fatal ErrNoPlayers.
func (a *actor) publish(b models.Broadcast) error {
	if err := a.bus.Publish(b); err != nil {
		if errors.Is(err, broadcast.ErrNoReceivers) {
			return ErrNoPlayers
		}
		return err
	}
	return nil
}

// pushGuess appends to the guess log and broadcasts the new line.
func (a *actor) pushGuess(g models.Guess) error {
	a.guesses = append(a.guesses, g)
	return a.publish(models.ToEveryone(models.GuessMsg(g)))
}

func (a *actor) onConnect(e Connect) error {
	rx := a.bus.Subscribe()
	e.Reply <- Onboarding{
		Rx:    rx,
		Leave: func() { a.bus.Unsubscribe(rx) },
		Msgs: []models.Game{
			models.StateSnapshot(a.state.Read().Clone()),
			models.GuessBulk(append([]models.Guess(nil), a.guesses...)),
			models.CanvasBulk(append([]models.CanvasEvent(nil), a.canvas...)),
		},
	}

	players := a.players.Write()
	if p, ok := (*players)[e.User]; ok {
		// Reconnect: the prior session, if still attached, is terminated.
		if p.Epoch != e.Epoch {
			if err := a.publish(models.Kill(e.User, p.Epoch)); err != nil {
				return err
			}
		}
		p.Epoch = e.Epoch
		p.Status = models.StatusConnected
		(*players)[e.User] = p
	} else {
		(*players)[e.User] = models.Player{
			Nick:   e.Nick,
			Epoch:  e.Epoch,
			Status: models.StatusConnected,
		}
	}
	a.log.WithFields(logrus.Fields{"user": e.User, "nick": e.Nick}).Info("session connected")
	return nil
}

func (a *actor) onMessage(e Message) error {
	p, ok := a.players.Read()[e.User]
	if !ok || p.Epoch != e.Epoch {
		a.log.WithFields(logrus.Fields{"user": e.User, "epoch": e.Epoch}).
			Warn("message from stale session")
		return a.publish(models.Kill(e.User, e.Epoch))
	}

	switch e.Req.Type {
	case models.ReqCanvas:
		ev := *e.Req.Canvas
		if ev.Type == models.CanvasClear {
			a.canvas = a.canvas[:0]
		} else {
			a.canvas = append(a.canvas, ev)
		}
		// The sender already drew locally.
		return a.publish(models.Excluding(e.User, models.CanvasMsg(ev)))
	case models.ReqChoose:
		return a.onChoose(e.User, e.Epoch, e.Req.Word)
	case models.ReqGuess:
		return a.onGuess(e.User, e.Req.Word)
	case models.ReqRemove:
		if t, ok := a.players.Read()[e.Req.Target]; ok && t.Epoch == e.Req.TargetEpoch {
			delete(*a.players.Write(), e.Req.Target)
			a.log.WithField("target", e.Req.Target).Info("player removed")
		}
		return nil
	default:
		// Join after the handshake, or an unknown variant.
		a.log.WithFields(logrus.Fields{"user": e.User, "req": e.Req.Type}).
			Warn("illegal request")
		return a.publish(models.Kill(e.User, e.Epoch))
	}
}

func (a *actor) onDisconnect(e Disconnect) {
	if p, ok := a.players.Read()[e.User]; ok && p.Epoch == e.Epoch {
		p.Status = models.StatusDisconnected
		(*a.players.Write())[e.User] = p
		a.log.WithField("user", e.User).Info("session disconnected")
	}
}

func (a *actor) onRoundEnd(e RoundEnd) error {
	phase := a.state.Read().Phase
	if phase.Kind != models.PhaseDrawing || phase.RoundEpoch != e.Round {
		// Stale timer; the round already ended some other way.
		return nil
	}
	if err := a.pushGuess(models.TimeExpired(phase.Word)); err != nil {
		return err
	}
	return a.roundEnd()
}

func (a *actor) onChoose(user models.UserID, ep epoch.Epoch[epoch.Session], word models.Lowercase) error {
	phase := a.state.Read().Phase
	if phase.Kind != models.PhaseChoosingWord || phase.Chooser != user || !offered(phase.Words, word) {
		a.log.WithField("user", user).Warn("illegal choose")
		return a.publish(models.Kill(user, ep))
	}
	return a.enterDrawing(phase.Round, user, word)
}

func (a *actor) onGuess(user models.UserID, text models.Lowercase) error {
	state := a.state.Read()
	switch phase := state.Phase; phase.Kind {
	case models.PhaseWaitingToStart:
		return a.onLobbyCommand(user, text)
	case models.PhaseChoosingWord:
		return a.pushGuess(models.Message(user, string(text)))
	case models.PhaseDrawing:
		if _, solved := phase.Correct[user]; solved || user == phase.Drawer {
			// Drawer and solvers chat among themselves; the client hides
			// these lines from players still guessing.
			return a.pushGuess(models.Message(user, string(text)))
		}
		if text == phase.Word {
			elapsed := a.now().Sub(phase.StartedAt)
			pts := guessScore(elapsed, state.Config.GuessSeconds, len(phase.Correct))
			a.state.Write().Phase.Correct[user] = pts
			return a.pushGuess(models.Correct(user))
		}
		if err := a.pushGuess(models.PlayerGuess(user, string(text))); err != nil {
			return err
		}
		if isCloseGuess(text, phase.Word) {
			return a.publish(models.OnlyFor(user, models.GuessMsg(models.CloseGuess(string(text)))))
		}
		return nil
	}
	return nil
}

// onLobbyCommand interprets chat while waiting to start: "start", "help",
// "rounds N", and "seconds N" are commands; anything else is chat.
func (a *actor) onLobbyCommand(user models.UserID, text models.Lowercase) error {
	switch s := string(text); {
	case s == "start":
		return a.gameStart()
	case s == "help":
		return a.publish(models.OnlyFor(user, models.GuessMsg(models.Help())))
	case strings.HasPrefix(s, "rounds "):
		n, err := parseConfigValue(strings.TrimPrefix(s, "rounds "))
		if err != nil {
			return a.pushGuess(models.System(fmt.Sprintf("invalid rounds: %v", err)))
		}
		a.state.Write().Config.Rounds = n
		return nil
	case strings.HasPrefix(s, "seconds "):
		n, err := parseConfigValue(strings.TrimPrefix(s, "seconds "))
		if err != nil {
			return a.pushGuess(models.System(fmt.Sprintf("invalid seconds: %v", err)))
		}
		a.state.Write().Config.GuessSeconds = n
		return nil
	default:
		return a.pushGuess(models.Message(user, s))
	}
}

func parseConfigValue(s string) (uint8, error) {
	n, err := strconv.ParseUint(strings.TrimSpace(s), 10, 8)
	if err != nil {
		return 0, err
	}
	if n == 0 {
		return 0, errors.New("must be at least 1")
	}
	return uint8(n), nil
}

// gameStart resets scores, clears the chat feed, and begins round one with
// the first player as chooser.
func (a *actor) gameStart() error {
	players := a.players.Write()
	for id, p := range *players {
		p.Score = 0
		(*players)[id] = p
	}
	a.guesses = a.guesses[:0]
	if err := a.publish(models.ToEveryone(models.ClearGuesses())); err != nil {
		return err
	}
	first, ok := a.players.Read().First()
	if !ok {
		return ErrNoPlayersDuringTransition
	}
	return a.enterChoosing(1, first)
}

func (a *actor) enterChoosing(round uint8, chooser models.UserID) error {
	choices := words.Choose(config.NumberOfWordsToChoose)
	a.state.Write().Phase = models.ChoosingWord(round, chooser, choices)
	return a.pushGuess(models.NowChoosing(chooser))
}

func (a *actor) enterDrawing(round uint8, drawer models.UserID, word models.Lowercase) error {
	roundEpoch := epoch.NextRound()
	now := a.now()
	a.state.Write().Phase = models.Drawing(round, drawer, word, roundEpoch, now)

	a.canvas = a.canvas[:0]
	if err := a.publish(models.ToEveryone(models.CanvasMsg(models.Clear()))); err != nil {
		return err
	}
	if err := a.pushGuess(models.NowDrawing(drawer)); err != nil {
		return err
	}

	deadline := now.Add(time.Duration(a.state.Read().Config.GuessSeconds) * time.Second)
	return a.schedule(delayed{at: deadline, ev: RoundEnd{Round: roundEpoch}})
}

// roundEnd pays out the finished turn and advances to the next chooser, the
// next round, or the end of the game.
func (a *actor) roundEnd() error {
	phase := a.state.Read().Phase

	var turnHolder models.UserID
	switch phase.Kind {
	case models.PhaseChoosingWord:
		turnHolder = phase.Chooser
	case models.PhaseDrawing:
		turnHolder = phase.Drawer
		if err := a.payOut(phase); err != nil {
			return err
		}
	default:
		return nil
	}

	players := a.players.Read()
	if next, ok := players.NextAfter(turnHolder); ok {
		return a.enterChoosing(phase.Round, next)
	}
	newRound := phase.Round + 1
	if newRound > a.state.Read().Config.Rounds {
		return a.gameEnd()
	}
	first, ok := players.First()
	if !ok {
		return ErrNoPlayersDuringTransition
	}
	return a.enterChoosing(newRound, first)
}

func (a *actor) payOut(phase models.GamePhase) error {
	ids := make([]models.UserID, 0, len(phase.Correct))
	for id := range phase.Correct {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	for _, id := range ids {
		pts := phase.Correct[id]
		if p, ok := a.players.Read()[id]; ok {
			p.Score += pts
			(*a.players.Write())[id] = p
		}
		if err := a.pushGuess(models.EarnedPoints(id, pts)); err != nil {
			return err
		}
	}

	bonus := drawerBonus(phase.Correct, len(a.players.Read()))
	if p, ok := a.players.Read()[phase.Drawer]; ok && bonus > 0 {
		p.Score += bonus
		(*a.players.Write())[phase.Drawer] = p
		if err := a.pushGuess(models.EarnedPoints(phase.Drawer, bonus)); err != nil {
			return err
		}
	}
	return nil
}

// gameEnd publishes the leaderboard and returns to the waiting phase. Equal
// scores share a dense rank.
func (a *actor) gameEnd() error {
	if err := a.pushGuess(models.GameOver()); err != nil {
		return err
	}

	players := a.players.Read()
	ids := players.OrderedIDs()
	sort.SliceStable(ids, func(i, j int) bool {
		return players[ids[i]].Score > players[ids[j]].Score
	})
	rank := 0
	var prev uint32
	for i, id := range ids {
		if i == 0 || players[id].Score != prev {
			rank++
			prev = players[id].Score
		}
		if err := a.pushGuess(models.FinalScore(rank, id, players[id].Score)); err != nil {
			return err
		}
	}

	a.state.Write().Phase = models.WaitingToStart()
	a.canvas = a.canvas[:0]
	if err := a.publish(models.ToEveryone(models.CanvasMsg(models.Clear()))); err != nil {
		return err
	}
	return a.pushGuess(models.Help())
}

// closeout runs once at the end of every handled event: sweep the phase for
// consistency with the player set, then publish changed snapshots at most
// once. This is the only place snapshots are sent.
func (a *actor) closeout() error {
	if a.players.Dirty() || a.state.Dirty() {
		if err := a.sweepPhase(); err != nil {
			return err
		}
	}
	if snap, ok := a.players.ResetIfDirty(); ok {
		if err := a.publish(models.ToEveryone(models.PlayersSnapshot(snap.Clone()))); err != nil {
			return err
		}
	}
	if snap, ok := a.state.ResetIfDirty(); ok {
		if err := a.publish(models.ToEveryone(models.StateSnapshot(snap.Clone()))); err != nil {
			return err
		}
	}
	return nil
}

// sweepPhase ends the current turn when its holder can no longer act: the
// chooser or drawer left, or every connected guesser has already solved.
// Loops because the next turn-holder may be gone as well.
func (a *actor) sweepPhase() error {
	for {
		phase := a.state.Read().Phase
		players := a.players.Read()
		switch phase.Kind {
		case models.PhaseChoosingWord:
			if connected(players, phase.Chooser) {
				return nil
			}
		case models.PhaseDrawing:
			if connected(players, phase.Drawer) && !allSolved(players, phase) {
				return nil
			}
		default:
			return nil
		}
		if err := a.roundEnd(); err != nil {
			return err
		}
	}
}

func connected(players models.Players, id models.UserID) bool {
	p, ok := players[id]
	return ok && p.Status == models.StatusConnected
}

// allSolved reports whether every connected non-drawer is in the correct
// map. Vacuously true when the drawer is the only connected player.
func allSolved(players models.Players, phase models.GamePhase) bool {
	for id, p := range players {
		if id == phase.Drawer || p.Status != models.StatusConnected {
			continue
		}
		if _, ok := phase.Correct[id]; !ok {
			return false
		}
	}
	return true
}

func offered(choices []models.Lowercase, word models.Lowercase) bool {
	for _, w := range choices {
		if w == word {
			return true
		}
	}
	return false
}

func (a *actor) schedule(d delayed) error {
	select {
	case a.delayCh <- d:
		return nil
	default:
		return ErrDelayQueueFull
	}
}
