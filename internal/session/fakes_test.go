package session

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"
	"time"

	"gorm.io/datatypes"

	"wine-tasting/internal/domain"
	"wine-tasting/internal/repository"
)

var errStoreDown = errors.New("connection refused")

// memStore 是 game/player/wine/answer 存储库的内存实现
type memStore struct {
	mu      sync.Mutex
	games   map[string]*domain.Game
	players map[string]*domain.Player
	wines   []domain.Wine
	answers []domain.Answer

	failSubmit bool
	failStatus bool
}

func newMemStore() *memStore {
	return &memStore{
		games:   make(map[string]*domain.Game),
		players: make(map[string]*domain.Player),
	}
}

// seedGame 创建一局游戏，每款酒的 VISUAL 标准答案为 A,B,C，SMELL 为 D,E，TASTE 为空
func (s *memStore) seedGame(code string, directorID uint, wineCount int) *domain.Game {
	s.mu.Lock()
	defer s.mu.Unlock()
	game := &domain.Game{
		ID:         uint(len(s.games) + 1),
		Code:       code,
		DirectorID: directorID,
		Status:     domain.GameStatusCreated,
		Difficulty: domain.DifficultyNovice,
		WineCount:  wineCount,
	}
	s.games[code] = game
	for n := 1; n <= wineCount; n++ {
		s.wines = append(s.wines, domain.Wine{
			ID:     uint(len(s.wines) + 1),
			GameID: game.ID,
			Number: n,
			Name:   "Wine",
			Year:   2015,
			Characteristics: datatypes.NewJSONType(domain.Characteristics{
				Visual: []string{"A", "B", "C"},
				Smell:  []string{"D", "E"},
			}),
		})
	}
	return game
}

func (s *memStore) FindByCode(_ context.Context, code string) (*domain.Game, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	g, ok := s.games[code]
	if !ok {
		return nil, repository.ErrGameNotFound
	}
	c := *g
	return &c, nil
}

func (s *memStore) CreateWithWines(_ context.Context, game *domain.Game, wines []domain.Wine) error {
	return errors.New("not used")
}

func (s *memStore) UpdateStatus(_ context.Context, code string, status domain.GameStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failStatus {
		return errStoreDown
	}
	g, ok := s.games[code]
	if !ok {
		return repository.ErrGameNotFound
	}
	g.Status = status
	return nil
}

func (s *memStore) IsCodeExists(_ context.Context, code string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.games[code]
	return ok, nil
}

func (s *memStore) FinishStale(context.Context, time.Time) ([]string, error) {
	return nil, nil
}

func (s *memStore) FindByID(_ context.Context, id string) (*domain.Player, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.players[id]
	if !ok {
		return nil, repository.ErrPlayerNotFound
	}
	c := *p
	return &c, nil
}

func (s *memStore) ListByGame(_ context.Context, gameID uint) ([]domain.Player, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.Player
	for _, p := range s.players {
		if p.GameID == gameID {
			out = append(out, *p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].JoinedAt.Before(out[j].JoinedAt) })
	return out, nil
}

func (s *memStore) nicknameTaken(gameID uint, nickname, exceptID string) bool {
	for _, p := range s.players {
		if p.GameID == gameID && p.ID != exceptID && strings.EqualFold(p.Nickname, nickname) {
			return true
		}
	}
	return false
}

func (s *memStore) Create(_ context.Context, player *domain.Player) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.players[player.ID]; ok || s.nicknameTaken(player.GameID, player.Nickname, "") {
		return repository.ErrDuplicateEntry
	}
	c := *player
	s.players[player.ID] = &c
	return nil
}

func (s *memStore) Upsert(_ context.Context, player *domain.Player) (*domain.Player, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if p, ok := s.players[player.ID]; ok {
		p.SessionID = player.SessionID
		c := *p
		return &c, false, nil
	}
	if s.nicknameTaken(player.GameID, player.Nickname, player.ID) {
		return nil, false, repository.ErrDuplicateEntry
	}
	c := *player
	s.players[player.ID] = &c
	out := c
	return &out, true, nil
}

func (s *memStore) UpdateSession(_ context.Context, playerID, sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.players[playerID]
	if !ok {
		return repository.ErrPlayerNotFound
	}
	p.SessionID = sessionID
	return nil
}

func (s *memStore) FindByNumber(_ context.Context, gameID uint, number int) (*domain.Wine, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, w := range s.wines {
		if w.GameID == gameID && w.Number == number {
			c := w
			return &c, nil
		}
	}
	return nil, repository.ErrWineNotFound
}

func (s *memStore) ListByGameWines(gameID uint) []domain.Wine {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.Wine
	for _, w := range s.wines {
		if w.GameID == gameID {
			out = append(out, w)
		}
	}
	return out
}

func (s *memStore) findAnswer(playerID string, wineID uint, phase domain.Phase) *domain.Answer {
	for i := range s.answers {
		a := &s.answers[i]
		if a.PlayerID == playerID && a.WineID == wineID && a.CharacteristicType == phase {
			return a
		}
	}
	return nil
}

func (s *memStore) SubmitAnswer(_ context.Context, sub repository.AnswerSubmission) (repository.SubmitOutcome, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failSubmit {
		return repository.SubmitOutcome{}, errStoreDown
	}
	p, ok := s.players[sub.PlayerID]
	if !ok {
		return repository.SubmitOutcome{}, repository.ErrPlayerNotFound
	}
	a := s.findAnswer(sub.PlayerID, sub.WineID, sub.CharacteristicType)
	if a == nil {
		s.answers = append(s.answers, domain.Answer{
			ID:                 uint(len(s.answers) + 1),
			PlayerID:           sub.PlayerID,
			WineID:             sub.WineID,
			CharacteristicType: sub.CharacteristicType,
		})
		a = &s.answers[len(s.answers)-1]
	}
	credited := sub.Points - a.Points
	if credited < 0 {
		credited = 0
	}
	a.Answer = sub.Answer
	a.Selections = datatypes.NewJSONType(sub.Selections)
	a.IsCorrect = sub.IsCorrect
	a.Points += credited
	p.Score += credited
	return repository.SubmitOutcome{Credited: credited, NewScore: p.Score}, nil
}

func (s *memStore) IncrementHints(_ context.Context, playerID string, wineID uint, phase domain.Phase) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a := s.findAnswer(playerID, wineID, phase)
	if a == nil {
		s.answers = append(s.answers, domain.Answer{
			ID:                 uint(len(s.answers) + 1),
			PlayerID:           playerID,
			WineID:             wineID,
			CharacteristicType: phase,
		})
		a = &s.answers[len(s.answers)-1]
	}
	a.HintsUsed++
	return a.HintsUsed, nil
}

func (s *memStore) ListByPlayer(_ context.Context, playerID string) ([]domain.Answer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.Answer
	for _, a := range s.answers {
		if a.PlayerID == playerID {
			out = append(out, a)
		}
	}
	return out, nil
}

func (s *memStore) playerCount(gameID uint) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, p := range s.players {
		if p.GameID == gameID {
			n++
		}
	}
	return n
}

func (s *memStore) score(playerID string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	if p, ok := s.players[playerID]; ok {
		return p.Score
	}
	return -1
}

func (s *memStore) answersOf(playerID string) []domain.Answer {
	out, _ := s.ListByPlayer(context.Background(), playerID)
	return out
}

func (s *memStore) status(code string) domain.GameStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.games[code].Status
}

// wineStore 把 memStore 适配为 WineRepository (ListByGame 与 PlayerRepository 同名)
type wineStore struct{ *memStore }

func (w wineStore) ListByGame(_ context.Context, gameID uint) ([]domain.Wine, error) {
	return w.ListByGameWines(gameID), nil
}

// memState 是 StateRepository 的内存实现
type memState struct {
	mu       sync.Mutex
	pointers map[string]domain.RoomPointer
	failSet  bool
	failGet  bool
	sets     int
}

func newMemState() *memState {
	return &memState{pointers: make(map[string]domain.RoomPointer)}
}

func (m *memState) GetRoomPointer(_ context.Context, code string) (*domain.RoomPointer, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failGet {
		return nil, errStoreDown
	}
	p, ok := m.pointers[code]
	if !ok {
		return nil, repository.ErrCacheMiss
	}
	return &p, nil
}

func (m *memState) SetRoomPointer(_ context.Context, code string, pointer domain.RoomPointer) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failSet {
		return errStoreDown
	}
	m.pointers[code] = pointer
	m.sets++
	return nil
}

func (m *memState) DeleteRoomPointer(_ context.Context, code string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.pointers, code)
	return nil
}

func (m *memState) CheckRateLimit(context.Context, string, int, time.Duration) (bool, error) {
	return false, nil
}

func (m *memState) pointer(code string) (domain.RoomPointer, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.pointers[code]
	return p, ok
}
