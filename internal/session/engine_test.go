package session

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"wine-tasting/internal/domain"
)

const (
	testCode     = "ABCDE"
	testDirector = uint(7)
)

type harness struct {
	store  *memStore
	cache  *memState
	engine *Engine
	game   *domain.Game
}

func newHarness(t *testing.T, wineCount int) *harness {
	t.Helper()
	store := newMemStore()
	cache := newMemState()
	game := store.seedGame(testCode, testDirector, wineCount)
	engine := NewEngine(NewRegistry(), store, store, wineStore{store}, store, cache)

	base := time.Date(2024, 5, 1, 18, 0, 0, 0, time.UTC)
	var tick, ids int64
	engine.now = func() time.Time {
		return base.Add(time.Duration(atomic.AddInt64(&tick, 1)) * time.Millisecond)
	}
	engine.newID = func() string {
		return fmt.Sprintf("player-%d", atomic.AddInt64(&ids, 1))
	}
	return &harness{store: store, cache: cache, engine: engine, game: game}
}

func (h *harness) apply(cmd Command) Result {
	return h.engine.Apply(context.Background(), cmd)
}

func (h *harness) join(t *testing.T, conn, nickname string) string {
	t.Helper()
	res := h.apply(Join{Caller: Caller{ConnID: conn}, Code: testCode, Nickname: nickname})
	require.NoError(t, res.Err)
	require.True(t, res.Joined)
	return res.PlayerID
}

func (h *harness) director() Caller {
	return Caller{ConnID: "conn-director", UserID: testDirector}
}

func (h *harness) start(t *testing.T) {
	t.Helper()
	require.NoError(t, h.apply(Start{Caller: h.director(), Code: testCode}).Err)
}

func (h *harness) room(t *testing.T) RoomState {
	t.Helper()
	st, ok := h.engine.Registry().Snapshot(testCode)
	require.True(t, ok, "room should be loaded")
	return st
}

func eventNames(res Result) []string {
	names := make([]string, 0, len(res.Events))
	for _, ev := range res.Events {
		names = append(names, ev.Event)
	}
	return names
}

func findEvent(t *testing.T, res Result, name string) Outbound {
	t.Helper()
	for _, ev := range res.Events {
		if ev.Event == name {
			return ev
		}
	}
	t.Fatalf("event %q not found in %v", name, eventNames(res))
	return Outbound{}
}

func requireError(t *testing.T, res Result, want error) {
	t.Helper()
	require.ErrorIs(t, res.Err, want)
	require.Len(t, res.Events, 1)
	ev := res.Events[0]
	assert.Equal(t, ToCaller, ev.Target)
	assert.Equal(t, EventError, ev.Event)
	assert.Equal(t, ErrorPayload{Message: want.Error()}, ev.Payload)
}

func TestJoin_UnknownGame(t *testing.T) {
	h := newHarness(t, 2)

	res := h.apply(Join{Caller: Caller{ConnID: "c1"}, Code: "ZZZZZ", Nickname: "alice"})

	requireError(t, res, ErrGameNotFound)
	assert.Equal(t, "Game not found", res.Events[0].Payload.(ErrorPayload).Message)
	assert.False(t, res.Joined)
	assert.Equal(t, 0, h.engine.Registry().Len(), "failed hydration must not leave a room behind")
}

func TestJoin_NewPlayer(t *testing.T) {
	h := newHarness(t, 2)
	h.join(t, "c1", "alice")

	res := h.apply(Join{Caller: Caller{ConnID: "c2"}, Code: " abcde ", Nickname: "  bob "})

	require.NoError(t, res.Err)
	assert.Equal(t, testCode, res.Code)
	assert.Equal(t, []string{EventJoinedAsPlayer, EventPlayerJoined, EventGameState}, eventNames(res))
	assert.Equal(t, ToCaller, res.Events[0].Target)
	assert.Equal(t, ToOthers, res.Events[1].Target)
	assert.Equal(t, ToRoom, res.Events[2].Target)

	joined := res.Events[0].Payload.(JoinedPayload)
	assert.Equal(t, "bob", joined.Nickname)
	assert.False(t, joined.IsReconnect)
	assert.False(t, joined.IsDirector)

	state := res.Events[2].Payload.(StatePayload)
	require.Len(t, state.Players, 2)
	assert.Equal(t, "alice", state.Players[0].Nickname, "players keep join order")
	assert.Equal(t, "bob", state.Players[1].Nickname)
	assert.False(t, state.IsGameStarted)
	assert.Equal(t, 1, state.CurrentWine)
	assert.Equal(t, domain.PhaseVisual, state.CurrentPhase)
}

func TestJoin_NicknameRequired(t *testing.T) {
	h := newHarness(t, 2)

	res := h.apply(Join{Caller: Caller{ConnID: "c1"}, Code: testCode, Nickname: "   "})

	requireError(t, res, ErrNicknameRequired)
	assert.Empty(t, h.room(t).Players)
}

func TestJoin_IdempotentReconnect(t *testing.T) {
	h := newHarness(t, 2)
	id := h.join(t, "c1", "alice")

	for _, conn := range []string{"c2", "c2", "c3"} {
		res := h.apply(Join{Caller: Caller{ConnID: conn}, Code: testCode, PlayerID: id, IsReconnect: true})
		require.NoError(t, res.Err)
		assert.Equal(t, id, res.PlayerID)
		assert.Equal(t, []string{EventJoinedAsPlayer, EventGameState}, eventNames(res), "reconnect must not re-broadcast player-joined")
		assert.True(t, res.Events[0].Payload.(JoinedPayload).IsReconnect)
	}

	assert.Equal(t, 1, h.store.playerCount(h.game.ID))
	players := h.room(t).Players
	require.Len(t, players, 1)
	assert.Equal(t, "c3", players[0].SessionID)
	stored, err := h.store.FindByID(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, "c3", stored.SessionID)
}

func TestJoin_FreshJoinWithConnectedNicknameConflicts(t *testing.T) {
	h := newHarness(t, 2)
	h.join(t, "c1", "alice")

	res := h.apply(Join{Caller: Caller{ConnID: "c2"}, Code: testCode, Nickname: "ALICE"})

	requireError(t, res, ErrNicknameTaken)
	assert.Len(t, h.room(t).Players, 1)
	assert.Equal(t, 1, h.store.playerCount(h.game.ID))
}

func TestJoin_ReconnectTolerantNicknameReusesPlayer(t *testing.T) {
	h := newHarness(t, 2)

	first := h.apply(Join{Caller: Caller{ConnID: "c1"}, Code: testCode, Nickname: "carol", IsReconnect: true})
	second := h.apply(Join{Caller: Caller{ConnID: "c2"}, Code: testCode, Nickname: "Carol", IsReconnect: true})

	require.NoError(t, first.Err)
	require.NoError(t, second.Err)
	assert.Equal(t, first.PlayerID, second.PlayerID)
	assert.True(t, second.Events[0].Payload.(JoinedPayload).IsReconnect)
	assert.Equal(t, 1, h.store.playerCount(h.game.ID))
}

func TestJoin_NicknameOfDisconnectedPlayerIsReconnect(t *testing.T) {
	h := newHarness(t, 2)
	id := h.join(t, "c1", "dave")
	h.apply(Disconnect{Caller: Caller{ConnID: "c1"}})

	res := h.apply(Join{Caller: Caller{ConnID: "c2"}, Code: testCode, Nickname: "dave"})

	require.NoError(t, res.Err)
	assert.Equal(t, id, res.PlayerID)
	assert.NotContains(t, eventNames(res), EventPlayerJoined)
}

func TestJoin_DirectorIsDeterministic(t *testing.T) {
	h := newHarness(t, 2)
	want := DirectorPlayerID(testDirector, testCode)
	assert.Equal(t, "director-7-ABCDE", want)

	first := h.apply(Join{Caller: Caller{ConnID: "d1", UserID: testDirector}, Code: testCode})
	second := h.apply(Join{Caller: Caller{ConnID: "d2", UserID: testDirector}, Code: testCode, Nickname: "Someone else"})

	for _, res := range []Result{first, second} {
		require.NoError(t, res.Err)
		assert.Equal(t, want, res.PlayerID)
		assert.Equal(t, EventJoinedAsDirector, res.Events[0].Event)
		assert.True(t, res.Events[0].Payload.(JoinedPayload).IsDirector)
	}
	assert.Equal(t, defaultDirectorNickname, second.Events[0].Payload.(JoinedPayload).Nickname)
	assert.Equal(t, 1, h.store.playerCount(h.game.ID))
	assert.Len(t, h.room(t).Players, 1)
}

func TestJoin_DirectorNotBlockedByPlayerNickname(t *testing.T) {
	h := newHarness(t, 2)
	h.join(t, "conn-1", "director")
	h.join(t, "conn-2", "Sommelier")

	res := h.apply(Join{Caller: h.director(), Code: testCode})
	require.NoError(t, res.Err)
	assert.True(t, res.Joined)
	assert.Equal(t, DirectorPlayerID(testDirector, testCode), res.PlayerID)
	assert.Equal(t, "Director 2", res.Events[0].Payload.(JoinedPayload).Nickname)

	other := newHarness(t, 2)
	other.join(t, "conn-1", "Sommelier")
	res = other.apply(Join{Caller: other.director(), Code: testCode, Nickname: "sommelier"})
	require.NoError(t, res.Err)
	assert.Equal(t, defaultDirectorNickname, res.Events[0].Payload.(JoinedPayload).Nickname)
	assert.Len(t, other.room(t).Players, 2)
}

func TestDirectorNicknames(t *testing.T) {
	names := directorNicknames("Host")
	assert.Equal(t, []string{"Host", "Director", "Director 2"}, names[:3])
	assert.Equal(t, "Director 9", names[len(names)-1])
	assert.Equal(t, "Director", directorNicknames(" director ")[0])
	assert.Equal(t, "Director", directorNicknames("")[0])
}

func TestJoin_PlayerCannotClaimDirectorIdentity(t *testing.T) {
	h := newHarness(t, 2)
	require.NoError(t, h.apply(Join{Caller: Caller{ConnID: "d1", UserID: testDirector}, Code: testCode}).Err)

	byID := h.apply(Join{Caller: Caller{ConnID: "c1"}, Code: testCode, PlayerID: DirectorPlayerID(testDirector, testCode), IsReconnect: true})
	requireError(t, byID, ErrNicknameRequired)

	byNickname := h.apply(Join{Caller: Caller{ConnID: "c1"}, Code: testCode, Nickname: "director", IsReconnect: true})
	requireError(t, byNickname, ErrNicknameTaken)
}

func TestDirectorCommands_Unauthorized(t *testing.T) {
	h := newHarness(t, 2)
	h.join(t, "c1", "alice")
	before := h.room(t)

	for _, caller := range []Caller{{ConnID: "c1"}, {ConnID: "c1", UserID: 99}} {
		cmds := []Command{
			Start{Caller: caller, Code: testCode},
			ChangePhase{Caller: caller, Code: testCode, Phase: domain.PhaseSmell},
			NextWine{Caller: caller, Code: testCode},
			Finish{Caller: caller, Code: testCode},
		}
		for _, cmd := range cmds {
			requireError(t, h.apply(cmd), ErrUnauthorized)
		}
	}

	after := h.room(t)
	assert.Equal(t, before.Pointer(), after.Pointer())
	assert.Equal(t, domain.GameStatusCreated, h.store.status(testCode))
	assert.Equal(t, 0, h.cache.sets)
}

func TestStart_ScenarioA(t *testing.T) {
	h := newHarness(t, 2)
	h.join(t, "c1", "alice")

	res := h.apply(Start{Caller: h.director(), Code: testCode})

	require.NoError(t, res.Err)
	require.Equal(t, []string{EventGameStarted}, eventNames(res))
	assert.Equal(t, ToRoom, res.Events[0].Target)
	state := res.Events[0].Payload.(StatePayload)
	assert.Equal(t, 1, state.CurrentWine)
	assert.Equal(t, domain.PhaseVisual, state.CurrentPhase)
	assert.True(t, state.IsGameStarted)
	assert.False(t, state.IsGameFinished)
	assert.Equal(t, domain.GameStatusInProgress, state.Game.Status)

	assert.Equal(t, domain.GameStatusInProgress, h.store.status(testCode))
	cached, ok := h.cache.pointer(testCode)
	require.True(t, ok)
	assert.Equal(t, domain.RoomPointer{CurrentWine: 1, CurrentPhase: domain.PhaseVisual, IsGameStarted: true}, cached)
}

func TestChangePhase(t *testing.T) {
	h := newHarness(t, 2)

	requireError(t, h.apply(ChangePhase{Caller: h.director(), Code: testCode, Phase: domain.PhaseSmell}), ErrGameNotStarted)

	h.start(t)
	requireError(t, h.apply(ChangePhase{Caller: h.director(), Code: testCode, Phase: "SOUND"}), ErrInvalidPhase)

	for i := 0; i < 2; i++ {
		res := h.apply(ChangePhase{Caller: h.director(), Code: testCode, Phase: domain.PhaseTaste})
		require.NoError(t, res.Err)
		assert.Equal(t, PhaseChangedPayload{Phase: domain.PhaseTaste}, findEvent(t, res, EventPhaseChanged).Payload)
	}
	assert.Equal(t, domain.PhaseTaste, h.room(t).CurrentPhase)
	cached, _ := h.cache.pointer(testCode)
	assert.Equal(t, domain.PhaseTaste, cached.CurrentPhase)
}

func TestNextWine_ResetsPhase(t *testing.T) {
	h := newHarness(t, 3)
	h.start(t)
	require.NoError(t, h.apply(ChangePhase{Caller: h.director(), Code: testCode, Phase: domain.PhaseSmell}).Err)

	res := h.apply(NextWine{Caller: h.director(), Code: testCode})

	require.NoError(t, res.Err)
	assert.Equal(t, []string{EventWineChanged, EventSubmissionsCleared}, eventNames(res))
	state := res.Events[0].Payload.(StatePayload)
	assert.Equal(t, 2, state.CurrentWine)
	assert.Equal(t, domain.PhaseVisual, state.CurrentPhase)
	assert.Equal(t, SubmissionsClearedPayload{WineNumber: 2}, res.Events[1].Payload)
	cached, _ := h.cache.pointer(testCode)
	assert.Equal(t, 2, cached.CurrentWine)
	assert.Equal(t, domain.PhaseVisual, cached.CurrentPhase)
}

func TestNextWine_ScenarioC_ExplicitFinish(t *testing.T) {
	h := newHarness(t, 2)
	alice := h.join(t, "c1", "alice")
	bob := h.join(t, "c2", "bob")
	h.start(t)

	res := h.apply(SubmitAnswer{Caller: Caller{ConnID: "c2"}, Code: testCode, PlayerID: bob, WineNumber: 1,
		CharacteristicType: domain.PhaseVisual, Answers: map[string]string{"A": "Wine 1"}})
	require.NoError(t, res.Err)

	require.NoError(t, h.apply(NextWine{Caller: h.director(), Code: testCode}).Err)
	require.NoError(t, h.apply(NextWine{Caller: h.director(), Code: testCode}).Err)

	st := h.room(t)
	assert.Equal(t, 3, st.CurrentWine, "currentWine may reach wineCount+1")
	assert.False(t, st.IsGameFinished, "exceeding the wine count does not auto-finish")

	requireError(t, h.apply(NextWine{Caller: h.director(), Code: testCode}), ErrNoMoreWines)
	assert.Equal(t, 3, h.room(t).CurrentWine)

	res = h.apply(Finish{Caller: h.director(), Code: testCode})
	require.NoError(t, res.Err)
	require.Equal(t, []string{EventGameFinished}, eventNames(res))
	state := res.Events[0].Payload.(StatePayload)
	assert.True(t, state.IsGameFinished)
	assert.True(t, state.IsGameStarted)
	require.Len(t, state.Players, 2)
	assert.Equal(t, bob, state.Players[0].ID, "players sorted by score")
	assert.Equal(t, alice, state.Players[1].ID)
	assert.Equal(t, domain.GameStatusFinished, h.store.status(testCode))
	cached, _ := h.cache.pointer(testCode)
	assert.True(t, cached.IsGameFinished)

	requireError(t, h.apply(NextWine{Caller: h.director(), Code: testCode}), ErrGameNotStarted)
}

func TestSubmitAnswer_ScenarioB_FullCredit(t *testing.T) {
	h := newHarness(t, 2)
	alice := h.join(t, "c1", "alice")
	h.start(t)

	res := h.apply(SubmitAnswer{
		Caller:             Caller{ConnID: "c1"},
		Code:               testCode,
		PlayerID:           alice,
		WineNumber:         1,
		CharacteristicType: domain.PhaseVisual,
		Answers:            map[string]string{"A": "Wine 1", "B": "Wine 1", "C": "Wine 1"},
	})

	require.NoError(t, res.Err)
	assert.Equal(t, []string{EventPlayerSubmitted, EventAnswerSubmitted, EventScoreUpdated}, eventNames(res))
	assert.Equal(t, PlayerSubmittedPayload{PlayerID: alice, Nickname: "alice", WineNumber: 1, CharacteristicType: domain.PhaseVisual}, res.Events[0].Payload)
	assert.Equal(t, ToRoom, res.Events[0].Target)
	assert.Equal(t, ToCaller, res.Events[1].Target)
	assert.Equal(t, AnswerSubmittedPayload{CorrectCount: 3, TotalQuestions: 3, RoundScore: 10, IsCorrect: true}, res.Events[1].Payload)
	assert.Equal(t, ScoreUpdatedPayload{PlayerID: alice, NewScore: 10, RoundScore: 10, CorrectCount: 3, TotalQuestions: 3}, res.Events[2].Payload)

	assert.Equal(t, 10, h.store.score(alice))
	answers := h.store.answersOf(alice)
	require.Len(t, answers, 1)
	assert.True(t, answers[0].IsCorrect)
	assert.Equal(t, "A,B,C", answers[0].Answer)
	assert.Equal(t, 10, h.room(t).Players[0].Score)
}

func TestSubmitAnswer_PartialCreditIsNotCorrect(t *testing.T) {
	h := newHarness(t, 2)
	alice := h.join(t, "c1", "alice")

	res := h.apply(SubmitAnswer{Caller: Caller{ConnID: "c1"}, Code: testCode, PlayerID: alice, WineNumber: 1,
		CharacteristicType: domain.PhaseVisual,
		Answers:            map[string]string{"A": "Wine 1", "B": "Wine 1", "X": "Wine 1", "C": "Wine 2"}})

	require.NoError(t, res.Err)
	assert.Equal(t, AnswerSubmittedPayload{CorrectCount: 2, TotalQuestions: 3, RoundScore: 7}, findEvent(t, res, EventAnswerSubmitted).Payload)
	answers := h.store.answersOf(alice)
	require.Len(t, answers, 1)
	assert.False(t, answers[0].IsCorrect)
	assert.Equal(t, 7, h.store.score(alice))
}

func TestSubmitAnswer_UpsertKeepsOneRowAndNeverLowersScore(t *testing.T) {
	h := newHarness(t, 2)
	alice := h.join(t, "c1", "alice")
	submit := func(answers map[string]string) ScoreUpdatedPayload {
		res := h.apply(SubmitAnswer{Caller: Caller{ConnID: "c1"}, Code: testCode, PlayerID: alice, WineNumber: 1,
			CharacteristicType: domain.PhaseVisual, Answers: answers})
		require.NoError(t, res.Err)
		return findEvent(t, res, EventScoreUpdated).Payload.(ScoreUpdatedPayload)
	}

	assert.Equal(t, 3, submit(map[string]string{"A": "Wine 1"}).NewScore)
	assert.Equal(t, 10, submit(map[string]string{"A": "Wine 1", "B": "Wine 1", "C": "Wine 1"}).NewScore)
	assert.Equal(t, 10, submit(map[string]string{"A": "Wine 1", "B": "Wine 1", "C": "Wine 1"}).NewScore, "resubmitting does not double count")
	assert.Equal(t, 10, submit(map[string]string{"B": "Wine 1"}).NewScore, "score never decreases")

	answers := h.store.answersOf(alice)
	require.Len(t, answers, 1)
	assert.Equal(t, "B", answers[0].Answer, "row reflects the last submission")
	assert.False(t, answers[0].IsCorrect)
}

func TestSubmitAnswer_Failures(t *testing.T) {
	h := newHarness(t, 2)
	alice := h.join(t, "c1", "alice")
	answerErr := func(t *testing.T, res Result, want error) {
		t.Helper()
		require.ErrorIs(t, res.Err, want)
		require.Len(t, res.Events, 1)
		assert.Equal(t, EventAnswerSubmitted, res.Events[0].Event)
		assert.Equal(t, ToCaller, res.Events[0].Target)
		assert.Equal(t, AnswerErrorPayload{Error: want.Error()}, res.Events[0].Payload)
	}

	t.Run("wine not found", func(t *testing.T) {
		res := h.apply(SubmitAnswer{Caller: Caller{ConnID: "c1"}, Code: testCode, PlayerID: alice, WineNumber: 9,
			CharacteristicType: domain.PhaseVisual, Answers: map[string]string{"A": "Wine 9"}})
		answerErr(t, res, ErrWineNotFound)
	})

	t.Run("spoofed player id", func(t *testing.T) {
		res := h.apply(SubmitAnswer{Caller: Caller{ConnID: "intruder"}, Code: testCode, PlayerID: alice, WineNumber: 1,
			CharacteristicType: domain.PhaseVisual, Answers: map[string]string{"A": "Wine 1"}})
		answerErr(t, res, ErrPlayerNotFound)
	})

	t.Run("invalid phase", func(t *testing.T) {
		res := h.apply(SubmitAnswer{Caller: Caller{ConnID: "c1"}, Code: testCode, PlayerID: alice, WineNumber: 1,
			CharacteristicType: "SOUND", Answers: map[string]string{"A": "Wine 1"}})
		answerErr(t, res, ErrInvalidPhase)
	})

	t.Run("store unavailable", func(t *testing.T) {
		h.store.failSubmit = true
		defer func() { h.store.failSubmit = false }()
		res := h.apply(SubmitAnswer{Caller: Caller{ConnID: "c1"}, Code: testCode, PlayerID: alice, WineNumber: 1,
			CharacteristicType: domain.PhaseVisual, Answers: map[string]string{"A": "Wine 1"}})
		answerErr(t, res, ErrDependency)
		assert.Equal(t, 0, h.store.score(alice))
		assert.Equal(t, 0, h.room(t).Players[0].Score)
	})

	t.Run("unknown game", func(t *testing.T) {
		res := h.apply(SubmitAnswer{Caller: Caller{ConnID: "c1"}, Code: "NOPE1", PlayerID: alice, WineNumber: 1,
			CharacteristicType: domain.PhaseVisual})
		answerErr(t, res, ErrGameNotFound)
	})
}

func TestStart_CacheFailureLeavesStateUnchanged(t *testing.T) {
	h := newHarness(t, 2)
	h.join(t, "c1", "alice")
	h.cache.failSet = true

	res := h.apply(Start{Caller: h.director(), Code: testCode})

	requireError(t, res, ErrDependency)
	assert.Equal(t, "Service temporarily unavailable", res.Events[0].Payload.(ErrorPayload).Message)
	st := h.room(t)
	assert.False(t, st.IsGameStarted)
	assert.Equal(t, 1, st.CurrentWine)
}

func TestStart_StoreFailure(t *testing.T) {
	h := newHarness(t, 2)
	h.store.failStatus = true

	requireError(t, h.apply(Start{Caller: h.director(), Code: testCode}), ErrDependency)
	assert.False(t, h.room(t).IsGameStarted)
	assert.Equal(t, 0, h.cache.sets)
}

func TestHydrate_FromCachedPointer(t *testing.T) {
	h := newHarness(t, 4)
	h.store.games[testCode].Status = domain.GameStatusInProgress
	require.NoError(t, h.cache.SetRoomPointer(context.Background(), testCode,
		domain.RoomPointer{CurrentWine: 3, CurrentPhase: domain.PhaseTaste, IsGameStarted: true}))

	res := h.apply(Join{Caller: Caller{ConnID: "c1"}, Code: testCode, Nickname: "alice"})

	require.NoError(t, res.Err)
	state := findEvent(t, res, EventGameState).Payload.(StatePayload)
	assert.Equal(t, 3, state.CurrentWine)
	assert.Equal(t, domain.PhaseTaste, state.CurrentPhase)
	assert.True(t, state.IsGameStarted)
}

func TestHydrate_CacheUnavailableDerivesFromStatus(t *testing.T) {
	h := newHarness(t, 2)
	h.store.games[testCode].Status = domain.GameStatusFinished
	h.cache.failGet = true

	res := h.apply(Join{Caller: Caller{ConnID: "c1"}, Code: testCode, Nickname: "alice"})

	require.NoError(t, res.Err)
	state := findEvent(t, res, EventGameState).Payload.(StatePayload)
	assert.Equal(t, 1, state.CurrentWine)
	assert.Equal(t, domain.PhaseVisual, state.CurrentPhase)
	assert.True(t, state.IsGameStarted)
	assert.True(t, state.IsGameFinished)
}

func TestDisconnect(t *testing.T) {
	h := newHarness(t, 2)
	alice := h.join(t, "c1", "alice")
	bob := h.join(t, "c2", "bob")

	res := h.apply(Disconnect{Caller: Caller{ConnID: "c1"}})

	require.NoError(t, res.Err)
	assert.Equal(t, testCode, res.Code)
	require.Equal(t, []string{EventPlayerLeft}, eventNames(res))
	assert.Equal(t, ToOthers, res.Events[0].Target)
	left := res.Events[0].Payload.(PlayerLeftPayload)
	assert.Equal(t, alice, left.Player.ID)
	require.Len(t, left.RemainingPlayers, 1)
	assert.Equal(t, bob, left.RemainingPlayers[0].ID)

	_, err := h.store.FindByID(context.Background(), alice)
	assert.NoError(t, err, "durable player survives disconnect")

	again := h.apply(Disconnect{Caller: Caller{ConnID: "c1"}, Code: testCode})
	assert.Empty(t, again.Events)
	unknown := h.apply(Disconnect{Caller: Caller{ConnID: "ghost"}})
	assert.Empty(t, unknown.Events)
}

func TestUseHint(t *testing.T) {
	h := newHarness(t, 2)
	alice := h.join(t, "c1", "alice")

	hints := make([]string, 0, 3)
	for i := 1; i <= 3; i++ {
		res := h.apply(UseHint{Caller: Caller{ConnID: "c1"}, Code: testCode, PlayerID: alice, WineNumber: 1, CharacteristicType: domain.PhaseSmell})
		require.NoError(t, res.Err)
		require.Equal(t, []string{EventHint}, eventNames(res))
		payload := res.Events[0].Payload.(HintPayload)
		assert.Equal(t, i, payload.HintsUsed)
		hints = append(hints, payload.Hint)
	}
	assert.Equal(t, []string{"D", "E", "D"}, hints)

	answers := h.store.answersOf(alice)
	require.Len(t, answers, 1)
	assert.Equal(t, 3, answers[0].HintsUsed)
	assert.Equal(t, 0, h.store.score(alice), "hints do not change the score")
}

func TestApply_ConcurrentJoinsAndSubmissions(t *testing.T) {
	h := newHarness(t, 2)
	h.start(t)

	const n = 20
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			conn := fmt.Sprintf("c%d", i)
			res := h.apply(Join{Caller: Caller{ConnID: conn}, Code: testCode, Nickname: fmt.Sprintf("player%d", i)})
			if !assert.NoError(t, res.Err) {
				return
			}
			res = h.apply(SubmitAnswer{Caller: Caller{ConnID: conn}, Code: testCode, PlayerID: res.PlayerID, WineNumber: 1,
				CharacteristicType: domain.PhaseVisual, Answers: map[string]string{"A": "Wine 1", "B": "Wine 1", "C": "Wine 1"}})
			assert.NoError(t, res.Err)
		}(i)
	}
	wg.Wait()

	st := h.room(t)
	require.Len(t, st.Players, n)
	for _, p := range st.Players {
		assert.Equal(t, 10, p.Score)
		assert.Equal(t, 10, h.store.score(p.ID))
	}
}
