package service

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"gorm.io/datatypes"

	"wine-tasting/internal/domain"
	"wine-tasting/internal/infra/ai"
	"wine-tasting/internal/repository"
)

const (
	codeAlphabet     = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	codeLength       = 5
	maxCodeAttempts  = 10
	MaxWinesPerGame  = 12
	fallbackNotice   = "AI characteristic generation is unavailable, standard characteristics were used"
	maxWineNameBytes = 191
)

// CharacteristicGenerator 为一组酒生成各阶段的标准答案
type CharacteristicGenerator interface {
	Generate(ctx context.Context, wines []ai.WineInput, difficulty domain.Difficulty) (*ai.Generation, error)
}

// CreateGameInput 是导演创建游戏时提交的内容
type CreateGameInput struct {
	Difficulty domain.Difficulty
	Wines      []ai.WineInput
}

// CreatedGame 是创建成功后返回给导演的摘要
type CreatedGame struct {
	GameID     uint              `json:"gameId"`
	Code       string            `json:"code"`
	WineCount  int               `json:"wineCount"`
	Difficulty domain.Difficulty `json:"difficulty"`
	Warning    string            `json:"warning,omitempty"`
}

// Standing 是排行榜中的一行
type Standing struct {
	Rank     int    `json:"rank"`
	PlayerID string `json:"playerId"`
	Nickname string `json:"nickname"`
	Score    int    `json:"score"`
}

// GameResults 是一局游戏的得分情况
type GameResults struct {
	Code    string            `json:"code"`
	Status  domain.GameStatus `json:"status"`
	Players []Standing        `json:"players"`
}

// AnswerView 是玩家某款酒某个阶段的最后一次提交
type AnswerView struct {
	WineNumber         int          `json:"wineNumber"`
	WineName           string       `json:"wineName"`
	CharacteristicType domain.Phase `json:"characteristicType"`
	Answer             string       `json:"answer"`
	IsCorrect          bool         `json:"isCorrect"`
	Points             int          `json:"points"`
	HintsUsed          int          `json:"hintsUsed"`
}

// PlayerReport 是单个玩家的答题记录
type PlayerReport struct {
	PlayerID string       `json:"playerId"`
	Nickname string       `json:"nickname"`
	Score    int          `json:"score"`
	Answers  []AnswerView `json:"answers"`
}

// GameService 负责游戏的创建、查询和过期清理。实时进度由 session.Engine 负责。
type GameService struct {
	games     repository.GameRepository
	players   repository.PlayerRepository
	wines     repository.WineRepository
	answers   repository.AnswerRepository
	state     repository.StateRepository
	generator CharacteristicGenerator // 可以为 nil，此时只用本地生成
	fallback  CharacteristicGenerator
	now       func() time.Time
}

// NewGameService 创建 GameService。generator 为 nil 时所有游戏都使用本地生成的特征。
func NewGameService(
	games repository.GameRepository,
	players repository.PlayerRepository,
	wines repository.WineRepository,
	answers repository.AnswerRepository,
	state repository.StateRepository,
	generator CharacteristicGenerator,
) *GameService {
	if games == nil || players == nil || wines == nil || answers == nil || state == nil {
		panic("Repositories cannot be nil for GameService")
	}
	return &GameService{
		games:     games,
		players:   players,
		wines:     wines,
		answers:   answers,
		state:     state,
		generator: generator,
		fallback:  FallbackGenerator{},
		now:       time.Now,
	}
}

// CreateGame 生成邀请码和酒款特征并保存游戏。AI 生成失败时退回本地生成，并在 Warning 中说明。
func (s *GameService) CreateGame(ctx context.Context, directorID uint, in CreateGameInput) (*CreatedGame, error) {
	logCtx := logrus.WithFields(logrus.Fields{"user_id": directorID, "difficulty": in.Difficulty, "wine_count": len(in.Wines)})

	wines, err := normalizeWines(in)
	if err != nil {
		logCtx.WithError(err).Warn("Rejected game configuration")
		return nil, err
	}

	gen, warning := s.generate(ctx, wines, in.Difficulty)

	code, err := s.generateUniqueCode(ctx)
	if err != nil {
		logCtx.WithError(err).Error("Failed to generate unique game code")
		return nil, ErrInternalServer
	}
	logCtx = logCtx.WithField("code", code)

	game := &domain.Game{
		Code:       code,
		DirectorID: directorID,
		Status:     domain.GameStatusCreated,
		Difficulty: in.Difficulty,
		WineCount:  len(wines),
	}
	records := make([]domain.Wine, len(wines))
	for i, w := range wines {
		records[i] = domain.Wine{
			Number:          i + 1,
			Name:            w.Name,
			Year:            w.Year,
			Characteristics: datatypes.NewJSONType(gen.Wines[i]),
		}
	}

	if err := s.games.CreateWithWines(ctx, game, records); err != nil {
		logCtx.WithError(err).Error("Failed to save new game")
		return nil, ErrInternalServer
	}

	// 邀请码可能在缓存里残留旧进度
	if err := s.state.DeleteRoomPointer(ctx, code); err != nil {
		logCtx.WithError(err).Warn("Failed to clear room pointer for new game")
	}

	logCtx.WithField("game_id", game.ID).Info("Game created successfully")
	return &CreatedGame{
		GameID:     game.ID,
		Code:       game.Code,
		WineCount:  game.WineCount,
		Difficulty: game.Difficulty,
		Warning:    warning,
	}, nil
}

// generate 先调用 AI，失败或结果不完整时退回本地生成
func (s *GameService) generate(ctx context.Context, wines []ai.WineInput, difficulty domain.Difficulty) (*ai.Generation, string) {
	if s.generator != nil {
		gen, err := s.generator.Generate(ctx, wines, difficulty)
		if err == nil && gen != nil && len(gen.Wines) == len(wines) {
			return gen, gen.SimilarityWarning
		}
		logrus.WithError(err).WithField("wine_count", len(wines)).Warn("AI generation failed, using fallback characteristics")
	}

	// 本地生成不会失败
	gen, _ := s.fallback.Generate(ctx, wines, difficulty)
	warnings := []string{fallbackNotice}
	if gen.SimilarityWarning != "" {
		warnings = append(warnings, gen.SimilarityWarning)
	}
	return gen, strings.Join(warnings, ". ")
}

func normalizeWines(in CreateGameInput) ([]ai.WineInput, error) {
	if !in.Difficulty.Valid() {
		return nil, fmt.Errorf("%w: unknown difficulty %q", ErrInvalidGameConfig, in.Difficulty)
	}
	if len(in.Wines) == 0 || len(in.Wines) > MaxWinesPerGame {
		return nil, fmt.Errorf("%w: a game needs between 1 and %d wines", ErrInvalidGameConfig, MaxWinesPerGame)
	}
	out := make([]ai.WineInput, len(in.Wines))
	for i, w := range in.Wines {
		name := strings.TrimSpace(w.Name)
		if name == "" || len(name) > maxWineNameBytes {
			return nil, fmt.Errorf("%w: wine %d needs a name", ErrInvalidGameConfig, i+1)
		}
		if w.Year < 0 {
			return nil, fmt.Errorf("%w: wine %d has an invalid year", ErrInvalidGameConfig, i+1)
		}
		out[i] = ai.WineInput{Name: name, Year: w.Year}
	}
	return out, nil
}

// GetGame 按邀请码查找游戏
func (s *GameService) GetGame(ctx context.Context, code string) (*domain.Game, error) {
	code = strings.ToUpper(strings.TrimSpace(code))
	game, err := s.games.FindByCode(ctx, code)
	if err != nil {
		if errors.Is(err, repository.ErrGameNotFound) {
			return nil, ErrGameNotFound
		}
		logrus.WithError(err).WithField("code", code).Error("Failed to load game")
		return nil, ErrInternalServer
	}
	return game, nil
}

// Results 返回按总分降序排列的玩家，同分按加入顺序
func (s *GameService) Results(ctx context.Context, code string) (*GameResults, error) {
	game, err := s.GetGame(ctx, code)
	if err != nil {
		return nil, err
	}
	players, err := s.players.ListByGame(ctx, game.ID)
	if err != nil {
		logrus.WithError(err).WithField("code", game.Code).Error("Failed to list players")
		return nil, ErrInternalServer
	}

	// ListByGame 已按加入顺序返回，稳定排序保留同分者的先后
	sort.SliceStable(players, func(i, j int) bool { return players[i].Score > players[j].Score })

	results := &GameResults{Code: game.Code, Status: game.Status, Players: make([]Standing, len(players))}
	for i, p := range players {
		rank := i + 1
		if i > 0 && p.Score == players[i-1].Score {
			rank = results.Players[i-1].Rank
		}
		results.Players[i] = Standing{Rank: rank, PlayerID: p.ID, Nickname: p.Nickname, Score: p.Score}
	}
	return results, nil
}

// PlayerReport 返回玩家在这局游戏中的每一次提交，按酒款和阶段排序
func (s *GameService) PlayerReport(ctx context.Context, code, playerID string) (*PlayerReport, error) {
	game, err := s.GetGame(ctx, code)
	if err != nil {
		return nil, err
	}
	logCtx := logrus.WithFields(logrus.Fields{"code": game.Code, "player_id": playerID})

	player, err := s.players.FindByID(ctx, playerID)
	if err != nil {
		if errors.Is(err, repository.ErrPlayerNotFound) {
			return nil, ErrPlayerNotFound
		}
		logCtx.WithError(err).Error("Failed to load player")
		return nil, ErrInternalServer
	}
	if player.GameID != game.ID {
		return nil, ErrPlayerNotFound
	}

	wines, err := s.wines.ListByGame(ctx, game.ID)
	if err != nil {
		logCtx.WithError(err).Error("Failed to list wines")
		return nil, ErrInternalServer
	}
	byID := make(map[uint]domain.Wine, len(wines))
	for _, w := range wines {
		byID[w.ID] = w
	}

	answers, err := s.answers.ListByPlayer(ctx, player.ID)
	if err != nil {
		logCtx.WithError(err).Error("Failed to list answers")
		return nil, ErrInternalServer
	}

	report := &PlayerReport{
		PlayerID: player.ID,
		Nickname: player.Nickname,
		Score:    player.Score,
		Answers:  make([]AnswerView, 0, len(answers)),
	}
	for _, a := range answers {
		wine := byID[a.WineID]
		report.Answers = append(report.Answers, AnswerView{
			WineNumber:         wine.Number,
			WineName:           wine.Name,
			CharacteristicType: a.CharacteristicType,
			Answer:             a.Answer,
			IsCorrect:          a.IsCorrect,
			Points:             a.Points,
			HintsUsed:          a.HintsUsed,
		})
	}
	sort.SliceStable(report.Answers, func(i, j int) bool {
		a, b := report.Answers[i], report.Answers[j]
		if a.WineNumber != b.WineNumber {
			return a.WineNumber < b.WineNumber
		}
		return phaseIndex(a.CharacteristicType) < phaseIndex(b.CharacteristicType)
	})
	return report, nil
}

func phaseIndex(p domain.Phase) int {
	for i, phase := range domain.Phases {
		if phase == p {
			return i
		}
	}
	return len(domain.Phases)
}

// ExpireStaleGames 把超过 staleAfter 没有更新的未结束游戏标记为结束，并同步缓存指针。
// 返回被结束的游戏数量。
func (s *GameService) ExpireStaleGames(ctx context.Context, staleAfter time.Duration) (int, error) {
	cutoff := s.now().Add(-staleAfter)
	codes, err := s.games.FinishStale(ctx, cutoff)
	if err != nil {
		return 0, fmt.Errorf("finish stale games: %w", err)
	}

	for _, code := range codes {
		logCtx := logrus.WithField("code", code)
		pointer := domain.RoomPointer{CurrentWine: 1, CurrentPhase: domain.PhaseVisual}
		if cached, err := s.state.GetRoomPointer(ctx, code); err == nil {
			pointer = *cached
		} else if !errors.Is(err, repository.ErrCacheMiss) {
			logCtx.WithError(err).Warn("Failed to read room pointer while expiring game")
		}
		pointer.IsGameFinished = true
		if err := s.state.SetRoomPointer(ctx, code, pointer); err != nil {
			// 数据库里已经是 FINISHED，下次加载房间时会以数据库为准
			logCtx.WithError(err).Warn("Failed to mirror expiry into room pointer")
		}
	}

	if len(codes) > 0 {
		logrus.WithFields(logrus.Fields{"count": len(codes), "cutoff": cutoff}).Info("Expired stale games")
	}
	return len(codes), nil
}

// generateUniqueCode 生成在数据库中尚未使用的邀请码
func (s *GameService) generateUniqueCode(ctx context.Context) (string, error) {
	b := make([]byte, codeLength)
	for attempt := 0; attempt < maxCodeAttempts; attempt++ {
		if _, err := rand.Read(b); err != nil {
			return "", fmt.Errorf("failed to generate random bytes: %w", err)
		}
		for i := range b {
			b[i] = codeAlphabet[int(b[i])%len(codeAlphabet)]
		}
		code := string(b)

		exists, err := s.games.IsCodeExists(ctx, code)
		if err != nil {
			return "", fmt.Errorf("database error checking game code: %w", err)
		}
		if !exists {
			return code, nil
		}
		logrus.WithField("code", code).Warnf("Generated game code already exists, retrying (attempt %d)", attempt+1)
	}
	return "", fmt.Errorf("failed to generate a unique game code after %d attempts", maxCodeAttempts)
}
