package session

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"wine-tasting/internal/domain"
	"wine-tasting/internal/repository"
)

const (
	defaultDirectorNickname   = "Director"
	maxDirectorNicknameSuffix = 9
)

// Result 是一次 Apply 的结果。
type Result struct {
	Code     string     // 命令作用的房间
	PlayerID string     // join 成功后绑定的玩家
	Joined   bool       // 调用方是否成功加入了 Code 对应的房间
	Events   []Outbound // 按发送顺序排列
	Err      error      // 失败原因，已经转换成了 Events 中的错误事件
}

// Engine 是房间状态机。同一房间的命令在房间锁内串行执行，
// 持久化和缓存写入都在广播之前完成。
type Engine struct {
	registry *Registry
	games    repository.GameRepository
	players  repository.PlayerRepository
	wines    repository.WineRepository
	answers  repository.AnswerRepository
	state    repository.StateRepository

	now   func() time.Time
	newID func() string
}

// NewEngine 创建 Engine 实例
func NewEngine(
	registry *Registry,
	games repository.GameRepository,
	players repository.PlayerRepository,
	wines repository.WineRepository,
	answers repository.AnswerRepository,
	state repository.StateRepository,
) *Engine {
	if registry == nil {
		panic("Registry cannot be nil for Engine")
	}
	if games == nil || players == nil || wines == nil || answers == nil {
		panic("Durable store repositories cannot be nil for Engine")
	}
	if state == nil {
		panic("StateRepository cannot be nil for Engine")
	}
	return &Engine{
		registry: registry,
		games:    games,
		players:  players,
		wines:    wines,
		answers:  answers,
		state:    state,
		now:      time.Now,
		newID:    uuid.NewString,
	}
}

// Registry 返回引擎使用的房间注册表
func (e *Engine) Registry() *Registry {
	return e.registry
}

// NormalizeCode 统一邀请码的大小写和空白
func NormalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// Apply 执行一条命令并返回需要广播的事件。错误不会跨出单条命令。
func (e *Engine) Apply(ctx context.Context, cmd Command) Result {
	caller := cmd.From()
	code := NormalizeCode(cmd.RoomCode())
	logCtx := logrus.WithFields(logrus.Fields{
		"code":    code,
		"conn_id": caller.ConnID,
		"user_id": caller.UserID,
		"command": fmt.Sprintf("%T", cmd),
	})

	if d, ok := cmd.(Disconnect); ok {
		return e.disconnect(code, d, logCtx)
	}

	room, err := e.load(ctx, code)
	if err != nil {
		logFailure(logCtx, err)
		return failed(code, cmd, err)
	}
	defer room.mu.Unlock()

	st := &room.state
	var res Result
	switch c := cmd.(type) {
	case Join:
		res = e.join(ctx, st, c)
	case Start:
		res = e.start(ctx, st, c)
	case ChangePhase:
		res = e.changePhase(ctx, st, c)
	case NextWine:
		res = e.nextWine(ctx, st, c)
	case SubmitAnswer:
		res = e.submitAnswer(ctx, st, c)
	case UseHint:
		res = e.useHint(ctx, st, c)
	case Finish:
		res = e.finish(ctx, st, c)
	default:
		res = Result{Err: fmt.Errorf("unsupported command %T", cmd)}
	}
	res.Code = code
	st.LastActive = e.now()

	if res.Err != nil {
		logFailure(logCtx, res.Err)
		if len(res.Events) == 0 {
			res.Events = []Outbound{errorEvent(res.Err)}
		}
		return res
	}
	logCtx.WithFields(logrus.Fields{
		"current_wine":  st.CurrentWine,
		"current_phase": st.CurrentPhase,
		"events":        len(res.Events),
	}).Debug("Command applied")
	return res
}

func failed(code string, cmd Command, err error) Result {
	ev := errorEvent(err)
	if _, ok := cmd.(SubmitAnswer); ok {
		ev = toCaller(EventAnswerSubmitted, AnswerErrorPayload{Error: ClientMessage(err)})
	}
	return Result{Code: code, Err: err, Events: []Outbound{ev}}
}

func logFailure(logCtx *logrus.Entry, err error) {
	if errors.Is(err, ErrDependency) {
		logCtx.WithError(err).Error("Command failed on a dependency")
		return
	}
	logCtx.WithError(err).Warn("Command rejected")
}

func dependencyError(op string, err error) error {
	return fmt.Errorf("%w: %s: %v", ErrDependency, op, err)
}

// load 返回已加锁并完成加载的房间。第一次使用时从数据库和缓存恢复状态。
func (e *Engine) load(ctx context.Context, code string) (*Room, error) {
	if code == "" {
		return nil, ErrGameNotFound
	}
	room := e.registry.acquire(code)
	if room.loaded {
		return room, nil
	}
	if err := e.hydrate(ctx, code, &room.state); err != nil {
		e.registry.discard(code, room)
		room.mu.Unlock()
		return nil, err
	}
	room.loaded = true
	return room, nil
}

func (e *Engine) hydrate(ctx context.Context, code string, st *RoomState) error {
	game, err := e.games.FindByCode(ctx, code)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrGameNotFound
		}
		return dependencyError("find game", err)
	}
	st.Game = GameSnapshot{
		ID:         game.ID,
		Code:       game.Code,
		Status:     game.Status,
		Difficulty: game.Difficulty,
		WineCount:  game.WineCount,
		DirectorID: game.DirectorID,
	}
	st.applyPointer(pointerFromStatus(game.Status))
	st.LastActive = e.now()

	pointer, err := e.state.GetRoomPointer(ctx, code)
	switch {
	case err == nil:
		st.applyPointer(*pointer)
	case errors.Is(err, repository.ErrCacheMiss):
		logrus.WithField("code", code).Debug("No cached pointer, derived from game status")
	default:
		logrus.WithField("code", code).WithError(err).Warn("Failed to read cached pointer, derived from game status")
	}

	// 数据库状态优先于缓存
	if game.Status == domain.GameStatusFinished {
		st.IsGameStarted = true
		st.IsGameFinished = true
	}
	if st.CurrentWine < 1 {
		st.CurrentWine = 1
	}
	if !st.CurrentPhase.Valid() {
		st.CurrentPhase = domain.PhaseVisual
	}
	return nil
}

func pointerFromStatus(status domain.GameStatus) domain.RoomPointer {
	return domain.RoomPointer{
		CurrentWine:    1,
		CurrentPhase:   domain.PhaseVisual,
		IsGameStarted:  status != domain.GameStatusCreated,
		IsGameFinished: status == domain.GameStatusFinished,
	}
}

// mirror 先写缓存再修改内存状态，缓存写入失败时状态保持不变
func (e *Engine) mirror(ctx context.Context, st *RoomState, next domain.RoomPointer) error {
	if err := e.state.SetRoomPointer(ctx, st.Game.Code, next); err != nil {
		return dependencyError("mirror pointer", err)
	}
	st.applyPointer(next)
	return nil
}

func requireDirector(st *RoomState, caller Caller) error {
	if caller.UserID == 0 || caller.UserID != st.Game.DirectorID {
		return ErrUnauthorized
	}
	return nil
}

func requireInProgress(st *RoomState) error {
	if !st.IsGameStarted || st.IsGameFinished {
		return ErrGameNotStarted
	}
	return nil
}

func (e *Engine) join(ctx context.Context, st *RoomState, c Join) Result {
	var (
		player    *domain.Player
		created   bool
		err       error
		director  = c.UserID != 0 && c.UserID == st.Game.DirectorID
		nickname  = normalizeNickname(c.Nickname)
		reconnect bool
	)
	if director {
		player, created, err = e.joinDirector(ctx, st, c, nickname)
	} else {
		player, created, err = e.joinPlayer(ctx, st, c, nickname)
	}
	if err != nil {
		return Result{Err: err}
	}
	reconnect = !created

	if rp := st.findPlayer(player.ID); rp != nil {
		rp.SessionID = c.ConnID
		rp.Score = player.Score
		rp.Nickname = player.Nickname
	} else {
		st.Players = append(st.Players, RoomPlayer{
			ID:         player.ID,
			Nickname:   player.Nickname,
			Score:      player.Score,
			SessionID:  c.ConnID,
			IsDirector: director,
		})
	}

	joinedEvent := EventJoinedAsPlayer
	if director {
		joinedEvent = EventJoinedAsDirector
	}
	events := []Outbound{toCaller(joinedEvent, JoinedPayload{
		PlayerID:    player.ID,
		Nickname:    player.Nickname,
		Score:       player.Score,
		IsDirector:  director,
		IsReconnect: reconnect,
	})}
	if created {
		events = append(events, toOthers(EventPlayerJoined, PlayerJoinedPayload{
			Player:  PlayerView{ID: player.ID, Nickname: player.Nickname, Score: player.Score},
			Players: st.playerViews(),
		}))
	}
	events = append(events, toRoom(EventGameState, st.payload(st.playerViews())))

	logrus.WithFields(logrus.Fields{
		"code":      st.Game.Code,
		"player_id": player.ID,
		"director":  director,
		"reconnect": reconnect,
	}).Info("Player joined room")
	return Result{PlayerID: player.ID, Joined: true, Events: events}
}

func (e *Engine) joinDirector(ctx context.Context, st *RoomState, c Join, nickname string) (*domain.Player, bool, error) {
	id := DirectorPlayerID(c.UserID, st.Game.Code)
	for _, candidate := range directorNicknames(nickname) {
		player, created, err := e.players.Upsert(ctx, &domain.Player{
			ID:        id,
			GameID:    st.Game.ID,
			Nickname:  candidate,
			SessionID: c.ConnID,
			JoinedAt:  e.now(),
		})
		if err == nil {
			return player, created, nil
		}
		if !errors.Is(err, repository.ErrDuplicateEntry) {
			return nil, false, dependencyError("upsert director player", err)
		}
		// 昵称已被玩家占用，换一个继续试，导演不能被挡在自己的房间外
		logrus.WithFields(logrus.Fields{"code": st.Game.Code, "nickname": candidate}).Debug("Director nickname taken, trying next")
	}
	return nil, false, ErrNicknameTaken
}

// directorNicknames 返回导演派生玩家依次尝试的昵称
func directorNicknames(nickname string) []string {
	var out []string
	if nickname != "" && !sameNickname(nickname, defaultDirectorNickname) {
		out = append(out, nickname)
	}
	out = append(out, defaultDirectorNickname)
	for i := 2; i <= maxDirectorNicknameSuffix; i++ {
		out = append(out, fmt.Sprintf("%s %d", defaultDirectorNickname, i))
	}
	return out
}

func (e *Engine) joinPlayer(ctx context.Context, st *RoomState, c Join, nickname string) (*domain.Player, bool, error) {
	if nickname == "" && c.PlayerID == "" {
		return nil, false, ErrNicknameRequired
	}
	existing, err := e.players.ListByGame(ctx, st.Game.ID)
	if err != nil {
		return nil, false, dependencyError("list players", err)
	}

	identity := Identity{PlayerID: c.PlayerID, Nickname: nickname, IsReconnect: c.IsReconnect}
	match, kind := ResolvePlayer(existing, identity)
	if match != nil {
		if kind == MatchByNickname && identity.Fresh() {
			if rp := st.findPlayer(match.ID); rp != nil && rp.SessionID != "" && rp.SessionID != c.ConnID {
				return nil, false, ErrNicknameTaken
			}
		}
		if err := e.players.UpdateSession(ctx, match.ID, c.ConnID); err != nil {
			return nil, false, dependencyError("rebind player session", err)
		}
		match.SessionID = c.ConnID
		return match, false, nil
	}

	if nickname == "" {
		return nil, false, ErrNicknameRequired
	}
	if nicknameOwnedByDirector(existing, nickname) {
		return nil, false, ErrNicknameTaken
	}
	player := &domain.Player{
		ID:        e.newID(),
		GameID:    st.Game.ID,
		Nickname:  nickname,
		SessionID: c.ConnID,
		JoinedAt:  e.now(),
	}
	if err := e.players.Create(ctx, player); err != nil {
		if errors.Is(err, repository.ErrDuplicateEntry) {
			return nil, false, ErrNicknameTaken
		}
		return nil, false, dependencyError("create player", err)
	}
	return player, true, nil
}

func (e *Engine) setStatus(ctx context.Context, st *RoomState, status domain.GameStatus) error {
	if err := e.games.UpdateStatus(ctx, st.Game.Code, status); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrGameNotFound
		}
		return dependencyError("update game status", err)
	}
	st.Game.Status = status
	return nil
}

func (e *Engine) start(ctx context.Context, st *RoomState, c Start) Result {
	if err := requireDirector(st, c.Caller); err != nil {
		return Result{Err: err}
	}
	if err := e.setStatus(ctx, st, domain.GameStatusInProgress); err != nil {
		return Result{Err: err}
	}
	next := domain.RoomPointer{CurrentWine: 1, CurrentPhase: domain.PhaseVisual, IsGameStarted: true}
	if err := e.mirror(ctx, st, next); err != nil {
		return Result{Err: err}
	}
	return Result{Events: []Outbound{toRoom(EventGameStarted, st.payload(st.playerViews()))}}
}

func (e *Engine) changePhase(ctx context.Context, st *RoomState, c ChangePhase) Result {
	if err := requireDirector(st, c.Caller); err != nil {
		return Result{Err: err}
	}
	if !c.Phase.Valid() {
		return Result{Err: ErrInvalidPhase}
	}
	if err := requireInProgress(st); err != nil {
		return Result{Err: err}
	}
	next := st.Pointer()
	next.CurrentPhase = c.Phase
	if err := e.mirror(ctx, st, next); err != nil {
		return Result{Err: err}
	}
	return Result{Events: []Outbound{toRoom(EventPhaseChanged, PhaseChangedPayload{Phase: c.Phase})}}
}

func (e *Engine) nextWine(ctx context.Context, st *RoomState, c NextWine) Result {
	if err := requireDirector(st, c.Caller); err != nil {
		return Result{Err: err}
	}
	if err := requireInProgress(st); err != nil {
		return Result{Err: err}
	}
	// WineCount+1 是"已品完"的哨兵值，不会再往后走
	if st.CurrentWine > st.Game.WineCount {
		return Result{Err: ErrNoMoreWines}
	}
	next := st.Pointer()
	next.CurrentWine++
	next.CurrentPhase = domain.PhaseVisual
	if err := e.mirror(ctx, st, next); err != nil {
		return Result{Err: err}
	}
	return Result{Events: []Outbound{
		toRoom(EventWineChanged, st.payload(st.playerViews())),
		toRoom(EventSubmissionsCleared, SubmissionsClearedPayload{WineNumber: st.CurrentWine}),
	}}
}

func (e *Engine) finish(ctx context.Context, st *RoomState, c Finish) Result {
	if err := requireDirector(st, c.Caller); err != nil {
		return Result{Err: err}
	}
	if err := e.setStatus(ctx, st, domain.GameStatusFinished); err != nil {
		return Result{Err: err}
	}
	next := st.Pointer()
	next.IsGameStarted = true
	next.IsGameFinished = true
	if err := e.mirror(ctx, st, next); err != nil {
		return Result{Err: err}
	}
	return Result{Events: []Outbound{toRoom(EventGameFinished, st.payload(st.leaderboard()))}}
}

// callerPlayer 返回绑定在调用方连接上的玩家，玩家 ID 不能冒用
func callerPlayer(st *RoomState, playerID string, caller Caller) (*RoomPlayer, error) {
	rp := st.findPlayer(playerID)
	if rp == nil || rp.SessionID != caller.ConnID {
		return nil, ErrPlayerNotFound
	}
	return rp, nil
}

func (e *Engine) findWine(ctx context.Context, st *RoomState, number int) (*domain.Wine, error) {
	wine, err := e.wines.FindByNumber(ctx, st.Game.ID, number)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrWineNotFound
		}
		return nil, dependencyError("find wine", err)
	}
	return wine, nil
}

func answerError(err error) Result {
	return Result{
		Err:    err,
		Events: []Outbound{toCaller(EventAnswerSubmitted, AnswerErrorPayload{Error: ClientMessage(err)})},
	}
}

func (e *Engine) submitAnswer(ctx context.Context, st *RoomState, c SubmitAnswer) Result {
	rp, err := callerPlayer(st, c.PlayerID, c.Caller)
	if err != nil {
		return answerError(err)
	}
	if !c.CharacteristicType.Valid() {
		return answerError(ErrInvalidPhase)
	}
	wine, err := e.findWine(ctx, st, c.WineNumber)
	if err != nil {
		return answerError(err)
	}

	match := Score(wine.Characteristics.Data().For(c.CharacteristicType), c.Answers, c.WineNumber)
	roundScore := match.RoundScore()
	outcome, err := e.answers.SubmitAnswer(ctx, repository.AnswerSubmission{
		PlayerID:           rp.ID,
		WineID:             wine.ID,
		CharacteristicType: c.CharacteristicType,
		Answer:             joinSelections(c.Answers, c.WineNumber),
		Selections:         c.Answers,
		IsCorrect:          match.IsCorrect(),
		Points:             roundScore,
	})
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return answerError(ErrPlayerNotFound)
		}
		return answerError(dependencyError("submit answer", err))
	}
	rp.Score = outcome.NewScore

	logrus.WithFields(logrus.Fields{
		"code":        st.Game.Code,
		"player_id":   rp.ID,
		"wine":        c.WineNumber,
		"phase":       c.CharacteristicType,
		"matched":     match.Matched,
		"total":       match.Total,
		"credited":    outcome.Credited,
		"total_score": outcome.NewScore,
	}).Info("Answer submitted")

	return Result{Events: []Outbound{
		toRoom(EventPlayerSubmitted, PlayerSubmittedPayload{
			PlayerID:           rp.ID,
			Nickname:           rp.Nickname,
			WineNumber:         c.WineNumber,
			CharacteristicType: c.CharacteristicType,
		}),
		toCaller(EventAnswerSubmitted, AnswerSubmittedPayload{
			CorrectCount:   match.Matched,
			TotalQuestions: match.Total,
			RoundScore:     roundScore,
			IsCorrect:      match.IsCorrect(),
		}),
		toRoom(EventScoreUpdated, ScoreUpdatedPayload{
			PlayerID:       rp.ID,
			NewScore:       rp.Score,
			RoundScore:     roundScore,
			CorrectCount:   match.Matched,
			TotalQuestions: match.Total,
		}),
	}}
}

func (e *Engine) useHint(ctx context.Context, st *RoomState, c UseHint) Result {
	rp, err := callerPlayer(st, c.PlayerID, c.Caller)
	if err != nil {
		return Result{Err: err}
	}
	if !c.CharacteristicType.Valid() {
		return Result{Err: ErrInvalidPhase}
	}
	wine, err := e.findWine(ctx, st, c.WineNumber)
	if err != nil {
		return Result{Err: err}
	}
	used, err := e.answers.IncrementHints(ctx, rp.ID, wine.ID, c.CharacteristicType)
	if err != nil {
		return Result{Err: dependencyError("increment hints", err)}
	}
	correct := wine.Characteristics.Data().For(c.CharacteristicType)
	hint := ""
	if len(correct) > 0 {
		hint = correct[(used-1)%len(correct)]
	}
	return Result{Events: []Outbound{toCaller(EventHint, HintPayload{
		WineNumber:         c.WineNumber,
		CharacteristicType: c.CharacteristicType,
		Hint:               hint,
		HintsUsed:          used,
	})}}
}

// disconnect 只从内存中移除玩家，数据库记录保留以便重连
func (e *Engine) disconnect(code string, c Disconnect, logCtx *logrus.Entry) Result {
	if code == "" {
		found, ok := e.registry.FindBySession(c.ConnID)
		if !ok {
			return Result{}
		}
		code = found
	}
	room, ok := e.registry.Get(code)
	if !ok {
		return Result{Code: code}
	}
	room.mu.Lock()
	defer room.mu.Unlock()
	if room.closed || !room.loaded {
		return Result{Code: code}
	}

	st := &room.state
	idx := st.findBySession(c.ConnID)
	if idx < 0 {
		return Result{Code: code}
	}
	left := st.Players[idx]
	st.Players = append(st.Players[:idx], st.Players[idx+1:]...)
	st.LastActive = e.now()

	logCtx.WithFields(logrus.Fields{
		"code":      code,
		"player_id": left.ID,
		"remaining": len(st.Players),
	}).Info("Player left room")
	return Result{Code: code, PlayerID: left.ID, Events: []Outbound{
		toOthers(EventPlayerLeft, PlayerLeftPayload{Player: left.view(), RemainingPlayers: st.playerViews()}),
	}}
}
