package lobby

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/inklobby/inklobby/internal/broadcast"
	"github.com/inklobby/inklobby/internal/config"
	"github.com/inklobby/inklobby/internal/epoch"
	"github.com/inklobby/inklobby/internal/models"
)

// harness drives an actor synchronously with a controllable clock, so every
// scenario is deterministic and no goroutines are involved.
type harness struct {
	t     *testing.T
	a     *actor
	clock time.Time
}

type session struct {
	user models.UserID
	ep   epoch.Epoch[epoch.Session]
	rx   *broadcast.Receiver
}

func newHarness(t *testing.T) *harness {
	log := logrus.New()
	log.SetOutput(io.Discard)
	h := &harness{
		t:     t,
		a:     newActor("cats", log),
		clock: time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC),
	}
	h.a.now = func() time.Time { return h.clock }
	return h
}

func (h *harness) advance(d time.Duration) { h.clock = h.clock.Add(d) }

func (h *harness) join(nick models.Nickname) *session {
	h.t.Helper()
	uid := models.DeriveUserID(nick)
	ep := epoch.NextSession()
	reply := make(chan Onboarding, 1)
	require.NoError(h.t, h.a.handle(Connect{User: uid, Epoch: ep, Nick: nick, Reply: reply}))
	ob := <-reply
	require.Len(h.t, ob.Msgs, 3)
	return &session{user: uid, ep: ep, rx: ob.Rx}
}

func (h *harness) guess(s *session, text string) {
	h.t.Helper()
	require.NoError(h.t, h.a.handle(Message{User: s.user, Epoch: s.ep, Req: models.ClientReq{
		Type: models.ReqGuess,
		Word: models.ToLowercase(text),
	}}))
}

func (h *harness) choose(s *session, word models.Lowercase) {
	h.t.Helper()
	require.NoError(h.t, h.a.handle(Message{User: s.user, Epoch: s.ep, Req: models.ClientReq{
		Type: models.ReqChoose,
		Word: word,
	}}))
}

func (h *harness) phase() models.GamePhase { return h.a.state.Read().Phase }

func (h *harness) player(s *session) models.Player {
	p, ok := h.a.players.Read()[s.user]
	require.True(h.t, ok)
	return p
}

// bySession returns the session whose user the phase names, plus the other.
func bySession(holder models.UserID, a, b *session) (held, other *session) {
	if a.user == holder {
		return a, b
	}
	return b, a
}

// drain empties a receiver's pending envelopes.
func drain(rx *broadcast.Receiver) []models.Broadcast {
	var out []models.Broadcast
	for {
		select {
		case env, ok := <-rx.C:
			if !ok {
				return out
			}
			out = append(out, env)
		default:
			return out
		}
	}
}

func guessTypes(envs []models.Broadcast) []models.GuessType {
	var out []models.GuessType
	for _, env := range envs {
		if env.Msg.Type == models.GameGuess && env.Msg.Guess != nil {
			out = append(out, env.Msg.Guess.Type)
		}
	}
	return out
}

// startGame brings two players through "start" and the word choice, leaving
// the lobby in Drawing with the returned drawer and word.
func startGame(h *harness, alice, bob *session) (drawer, guesser *session, word models.Lowercase) {
	h.guess(alice, "start")
	phase := h.phase()
	require.Equal(h.t, models.PhaseChoosingWord, phase.Kind)
	require.Equal(h.t, uint8(1), phase.Round)
	require.Len(h.t, phase.Words, config.NumberOfWordsToChoose)

	chooser, other := bySession(phase.Chooser, alice, bob)
	word = phase.Words[0]
	h.choose(chooser, word)

	phase = h.phase()
	require.Equal(h.t, models.PhaseDrawing, phase.Kind)
	require.Equal(h.t, chooser.user, phase.Drawer)
	require.Equal(h.t, word, phase.Word)
	require.True(h.t, phase.RoundEpoch.Valid())
	return chooser, other, word
}

func TestTwoPlayerCorrectGuess(t *testing.T) {
	h := newHarness(t)
	alice := h.join("alice")
	bob := h.join("bob")

	drawer, guesser, word := startGame(h, alice, bob)
	drain(drawer.rx)
	drain(guesser.rx)

	h.advance(10 * time.Second)
	h.guess(guesser, string(word))

	// 110000*500/120000 + 50 first bonus.
	assert.Equal(t, uint32(508), h.player(guesser).Score)
	// All non-drawers solved, so the round ended and the drawer got the
	// full bonus (508 / 1).
	assert.Equal(t, uint32(508), h.player(drawer).Score)

	phase := h.phase()
	assert.Equal(t, models.PhaseChoosingWord, phase.Kind)
	assert.Equal(t, guesser.user, phase.Chooser)

	types := guessTypes(drain(guesser.rx))
	assert.Contains(t, types, models.GuessCorrect)
	assert.Contains(t, types, models.GuessEarnedPoints)
	assert.Contains(t, types, models.GuessNowChoosing)
	assert.NotContains(t, types, models.GuessTimeExpired)
}

func TestTimerExpiryWithoutGuess(t *testing.T) {
	h := newHarness(t)
	alice := h.join("alice")
	bob := h.join("bob")

	drawer, guesser, _ := startGame(h, alice, bob)
	roundEpoch := h.phase().RoundEpoch
	drain(drawer.rx)
	drain(guesser.rx)

	h.advance(120 * time.Second)
	require.NoError(t, h.a.handle(RoundEnd{Round: roundEpoch}))

	assert.Equal(t, uint32(0), h.player(drawer).Score)
	assert.Equal(t, uint32(0), h.player(guesser).Score)

	phase := h.phase()
	assert.Equal(t, models.PhaseChoosingWord, phase.Kind)
	assert.Equal(t, guesser.user, phase.Chooser)

	types := guessTypes(drain(guesser.rx))
	assert.Contains(t, types, models.GuessTimeExpired)
}

func TestStaleRoundEndIsIgnored(t *testing.T) {
	h := newHarness(t)
	alice := h.join("alice")
	bob := h.join("bob")

	startGame(h, alice, bob)
	phase := h.phase()

	require.NoError(t, h.a.handle(RoundEnd{Round: epoch.NextRound()}))
	assert.Equal(t, phase, h.phase(), "mismatched epoch must not end the round")
}

func TestReconnectKillsStaleSession(t *testing.T) {
	h := newHarness(t)
	alice := h.join("alice")
	drain(alice.rx)

	alice2 := h.join("alice")
	require.NotEqual(t, alice.ep, alice2.ep)

	var killed bool
	for _, env := range drain(alice.rx) {
		if env.Rule == models.RuleKill && env.User == alice.user && env.Epoch == alice.ep {
			killed = true
		}
	}
	assert.True(t, killed, "old session must receive its Kill")

	p := h.player(alice2)
	assert.Equal(t, alice2.ep, p.Epoch)
	assert.Equal(t, models.StatusConnected, p.Status)

	// A message from the stale epoch is dropped and Kill'd again.
	drain(alice2.rx)
	h.guess(alice, "hello")
	var reKilled bool
	for _, env := range drain(alice2.rx) {
		if env.Rule == models.RuleKill && env.Epoch == alice.ep {
			reKilled = true
		}
		if env.Msg.Type == models.GameGuess {
			t.Fatalf("stale message must not reach the guess log")
		}
	}
	assert.True(t, reKilled)
}

func TestCloseGuessOnlyForGuesser(t *testing.T) {
	h := newHarness(t)
	alice := h.join("alice")
	bob := h.join("bob")

	h.guess(alice, "start")
	chooser, other := bySession(h.phase().Chooser, alice, bob)
	// The offered words are random; drive the phase directly so the word
	// has a known close miss.
	require.NoError(t, h.a.enterDrawing(1, chooser.user, "cats"))
	require.NoError(t, h.a.closeout())
	drain(chooser.rx)
	drain(other.rx)

	h.guess(other, "bats")

	var sawClose bool
	for _, env := range drain(other.rx) {
		if env.Msg.Type != models.GameGuess {
			continue
		}
		switch env.Msg.Guess.Type {
		case models.GuessGuess:
			assert.Equal(t, models.RuleEveryone, env.Rule)
		case models.GuessCloseGuess:
			sawClose = true
			assert.Equal(t, models.RuleOnly, env.Rule)
			assert.Equal(t, other.user, env.User)
		}
	}
	assert.True(t, sawClose)
}

func TestRoundEndOnDrawerDisconnect(t *testing.T) {
	h := newHarness(t)
	alice := h.join("alice")
	bob := h.join("bob")

	drawer, guesser, _ := startGame(h, alice, bob)
	drain(drawer.rx)
	drain(guesser.rx)

	require.NoError(t, h.a.handle(Disconnect{User: drawer.user, Epoch: drawer.ep}))

	phase := h.phase()
	assert.Equal(t, models.PhaseChoosingWord, phase.Kind)
	assert.Equal(t, guesser.user, phase.Chooser)
	assert.Equal(t, uint32(0), h.player(drawer).Score, "no payout for an abandoned round")

	types := guessTypes(drain(guesser.rx))
	assert.NotContains(t, types, models.GuessTimeExpired, "only the timer path reveals the word")
}

func TestGameStartResetsScoresAndClearsGuesses(t *testing.T) {
	h := newHarness(t)
	alice := h.join("alice")
	bob := h.join("bob")

	h.guess(alice, "hello there")
	require.NotEmpty(t, h.a.guesses)

	players := h.a.players.Write()
	for id, p := range *players {
		p.Score = 77
		(*players)[id] = p
	}

	drain(alice.rx)
	h.guess(alice, "start")

	assert.Equal(t, uint32(0), h.player(alice).Score)
	assert.Equal(t, uint32(0), h.player(bob).Score)

	var sawClear bool
	for _, env := range drain(alice.rx) {
		if env.Msg.Type == models.GameClearGuesses {
			sawClear = true
		}
	}
	assert.True(t, sawClear)
}

func TestConfigCommands(t *testing.T) {
	h := newHarness(t)
	alice := h.join("alice")
	drain(alice.rx)

	h.guess(alice, "rounds 5")
	assert.Equal(t, uint8(5), h.a.state.Read().Config.Rounds)

	h.guess(alice, "seconds 60")
	assert.Equal(t, uint8(60), h.a.state.Read().Config.GuessSeconds)

	// Malformed values leave config unchanged and emit a System line.
	h.guess(alice, "rounds banana")
	h.guess(alice, "seconds 0")
	assert.Equal(t, uint8(5), h.a.state.Read().Config.Rounds)
	assert.Equal(t, uint8(60), h.a.state.Read().Config.GuessSeconds)

	types := guessTypes(drain(alice.rx))
	assert.Contains(t, types, models.GuessSystem)
}

func TestIdempotentDisconnect(t *testing.T) {
	h := newHarness(t)
	alice := h.join("alice")
	drain(alice.rx)

	require.NoError(t, h.a.handle(Disconnect{User: alice.user, Epoch: alice.ep}))
	assert.Equal(t, models.StatusDisconnected, h.player(alice).Status)

	// Twice, and once for a player who never joined.
	require.NoError(t, h.a.handle(Disconnect{User: alice.user, Epoch: alice.ep}))
	require.NoError(t, h.a.handle(Disconnect{User: 12345, Epoch: alice.ep}))
	assert.Equal(t, models.StatusDisconnected, h.player(alice).Status)
}

func TestRemoveRequiresMatchingEpoch(t *testing.T) {
	h := newHarness(t)
	alice := h.join("alice")
	bob := h.join("bob")

	require.NoError(t, h.a.handle(Message{User: alice.user, Epoch: alice.ep, Req: models.ClientReq{
		Type:        models.ReqRemove,
		Target:      bob.user,
		TargetEpoch: epoch.NextSession(),
	}}))
	_, ok := h.a.players.Read()[bob.user]
	assert.True(t, ok, "epoch mismatch must not remove")

	require.NoError(t, h.a.handle(Message{User: alice.user, Epoch: alice.ep, Req: models.ClientReq{
		Type:        models.ReqRemove,
		Target:      bob.user,
		TargetEpoch: bob.ep,
	}}))
	_, ok = h.a.players.Read()[bob.user]
	assert.False(t, ok)
}

func TestIllegalChooseKills(t *testing.T) {
	h := newHarness(t)
	alice := h.join("alice")
	bob := h.join("bob")

	h.guess(alice, "start")
	chooser, other := bySession(h.phase().Chooser, alice, bob)
	drain(other.rx)

	// Not the chooser.
	h.choose(other, h.phase().Words[0])
	var killed bool
	for _, env := range drain(other.rx) {
		if env.Rule == models.RuleKill && env.User == other.user && env.Epoch == other.ep {
			killed = true
		}
	}
	assert.True(t, killed)
	assert.Equal(t, models.PhaseChoosingWord, h.phase().Kind)

	// The chooser, but a word that was never offered.
	drain(chooser.rx)
	h.choose(chooser, "definitely-not-offered")
	killed = false
	for _, env := range drain(chooser.rx) {
		if env.Rule == models.RuleKill && env.User == chooser.user {
			killed = true
		}
	}
	assert.True(t, killed)
	assert.Equal(t, models.PhaseChoosingWord, h.phase().Kind)
}

func TestCanvasEventsExcludeSender(t *testing.T) {
	h := newHarness(t)
	alice := h.join("alice")
	bob := h.join("bob")
	drain(alice.rx)
	drain(bob.rx)

	line := models.Line(models.NewI12Pair(0, 0), models.NewI12Pair(10, 10), models.WidthNormal, models.Color{})
	require.NoError(t, h.a.handle(Message{User: alice.user, Epoch: alice.ep, Req: models.ClientReq{
		Type:   models.ReqCanvas,
		Canvas: &line,
	}}))

	envs := drain(bob.rx)
	require.Len(t, envs, 1)
	assert.Equal(t, models.RuleExclude, envs[0].Rule)
	assert.Equal(t, alice.user, envs[0].User)
	assert.Equal(t, models.GameCanvas, envs[0].Msg.Type)
	assert.Len(t, h.a.canvas, 1)

	// Clear truncates the replay log.
	clear := models.Clear()
	require.NoError(t, h.a.handle(Message{User: alice.user, Epoch: alice.ep, Req: models.ClientReq{
		Type:   models.ReqCanvas,
		Canvas: &clear,
	}}))
	assert.Empty(t, h.a.canvas)
}

func TestOnboardingReplaysLogs(t *testing.T) {
	h := newHarness(t)
	alice := h.join("alice")
	h.guess(alice, "first message")

	line := models.Line(models.NewI12Pair(1, 2), models.NewI12Pair(3, 4), models.WidthSmall, models.Color{R: 9})
	require.NoError(t, h.a.handle(Message{User: alice.user, Epoch: alice.ep, Req: models.ClientReq{
		Type:   models.ReqCanvas,
		Canvas: &line,
	}}))

	uid := models.DeriveUserID("bob")
	reply := make(chan Onboarding, 1)
	require.NoError(t, h.a.handle(Connect{User: uid, Epoch: epoch.NextSession(), Nick: "bob", Reply: reply}))
	ob := <-reply

	require.Len(t, ob.Msgs, 3)
	assert.Equal(t, models.GameStateMsg, ob.Msgs[0].Type)
	assert.Equal(t, models.GameGuessBulk, ob.Msgs[1].Type)
	require.Len(t, ob.Msgs[1].Guesses, 2)
	assert.Equal(t, models.GuessHelp, ob.Msgs[1].Guesses[0].Type)
	assert.Equal(t, "first message", ob.Msgs[1].Guesses[1].Text)
	assert.Equal(t, models.GameCanvasBulk, ob.Msgs[2].Type)
	assert.Len(t, ob.Msgs[2].Canvases, 1)
}

func TestFullGameProducesFinalScores(t *testing.T) {
	h := newHarness(t)
	alice := h.join("alice")
	bob := h.join("bob")

	h.guess(alice, "rounds 1")
	h.guess(alice, "start")

	// Play turns until the game returns to waiting.
	for turns := 0; h.phase().Kind != models.PhaseWaitingToStart; turns++ {
		require.Less(t, turns, 10, "game must terminate")
		phase := h.phase()
		require.Equal(t, models.PhaseChoosingWord, phase.Kind)
		chooser, other := bySession(phase.Chooser, alice, bob)
		h.choose(chooser, phase.Words[0])
		h.advance(5 * time.Second)
		h.guess(other, string(h.phase().Word))
	}

	types := guessTypes(drain(alice.rx))
	assert.Contains(t, types, models.GuessGameOver)
	assert.Contains(t, types, models.GuessFinalScore)
	assert.Contains(t, types, models.GuessHelp)
	assert.Equal(t, models.PhaseWaitingToStart, h.phase().Kind)
	assert.Empty(t, h.a.canvas)
}

func TestHeartbeatWithNoSessionsIsFatal(t *testing.T) {
	log := logrus.New()
	log.SetOutput(io.Discard)
	a := newActor("empty", log)
	err := a.handle(Heartbeat{})
	assert.ErrorIs(t, err, ErrNoPlayers)
}

func TestRegistryCaseInsensitiveAndSelfHealing(t *testing.T) {
	log := logrus.New()
	log.SetOutput(io.Discard)
	reg := NewRegistry(log)

	h1 := reg.GetOrCreate("Cats")
	h2 := reg.GetOrCreate("cATS")
	assert.Same(t, h1, h2)
	assert.Equal(t, models.LobbyName("Cats"), h2.Name())

	// With no broadcast subscribers, a heartbeat is fatal and the actor
	// exits; the registry then hands out a fresh one.
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, h1.Send(ctx, Heartbeat{}))

	select {
	case <-h1.Done():
	case <-ctx.Done():
		t.Fatal("actor did not exit")
	}

	h3 := reg.GetOrCreate("CATS")
	assert.NotSame(t, h1, h3)
	assert.Error(t, h1.Send(ctx, Heartbeat{}))
}

func TestRegistryRemoveIfMatches(t *testing.T) {
	log := logrus.New()
	log.SetOutput(io.Discard)
	reg := NewRegistry(log)

	h1 := reg.GetOrCreate("dogs")
	stale := &Handle{id: h1.id}
	reg.RemoveIfMatches("dogs", stale)
	assert.NotSame(t, h1, reg.GetOrCreate("dogs"), "matching id removes the entry")

	h2 := reg.GetOrCreate("dogs")
	reg.RemoveIfMatches("dogs", &Handle{})
	assert.Same(t, h2, reg.GetOrCreate("dogs"), "mismatched id leaves the entry")
}
