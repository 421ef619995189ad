package http

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"wine-tasting/internal/domain"
	"wine-tasting/internal/infra/ai"
	"wine-tasting/internal/service"
)

// GameHandler 处理游戏的创建与查询
type GameHandler struct {
	gameService *service.GameService
}

// NewGameHandler 创建 GameHandler 实例
func NewGameHandler(gameService *service.GameService) *GameHandler {
	if gameService == nil {
		panic("GameService cannot be nil for GameHandler")
	}
	return &GameHandler{gameService: gameService}
}

// WineRequest 是创建游戏时的一款酒
type WineRequest struct {
	Name string `json:"name" binding:"required,max=191"`
	Year int    `json:"year" binding:"gte=0,lte=3000"`
}

// CreateGameRequest 定义创建游戏请求的结构体
type CreateGameRequest struct {
	Difficulty domain.Difficulty `json:"difficulty" binding:"required,oneof=NOVICE INTERMEDIATE EXPERT"`
	Wines      []WineRequest     `json:"wines" binding:"required,min=1,max=12,dive"`
}

// GameSummary 是公开的游戏信息，不包含酒款特征
type GameSummary struct {
	GameID     uint              `json:"gameId"`
	Code       string            `json:"code"`
	Status     domain.GameStatus `json:"status"`
	Difficulty domain.Difficulty `json:"difficulty"`
	WineCount  int               `json:"wineCount"`
}

// CreateGame 处理 POST /api/games，需要 Auth 中间件
func (h *GameHandler) CreateGame(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		logrus.Warn("Handler.CreateGame: User ID not found in context")
		ErrorResponse(c, http.StatusUnauthorized, "User not authenticated")
		return
	}
	logCtx := logrus.WithField("user_id", userID)

	var req CreateGameRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		logCtx.WithError(err).Warn("Handler.CreateGame: Invalid input format")
		ValidationErrorResponse(c, err)
		return
	}

	wines := make([]ai.WineInput, len(req.Wines))
	for i, w := range req.Wines {
		wines[i] = ai.WineInput{Name: w.Name, Year: w.Year}
	}

	created, err := h.gameService.CreateGame(c.Request.Context(), userID, service.CreateGameInput{
		Difficulty: req.Difficulty,
		Wines:      wines,
	})
	if err != nil {
		HandleServiceError(c, err)
		return
	}
	SuccessResponse(c, http.StatusCreated, created)
}

// GetGame 处理 GET /api/games/:code
func (h *GameHandler) GetGame(c *gin.Context) {
	game, err := h.gameService.GetGame(c.Request.Context(), c.Param("code"))
	if err != nil {
		HandleServiceError(c, err)
		return
	}
	SuccessResponse(c, http.StatusOK, GameSummary{
		GameID:     game.ID,
		Code:       game.Code,
		Status:     game.Status,
		Difficulty: game.Difficulty,
		WineCount:  game.WineCount,
	})
}

// GetResults 处理 GET /api/games/:code/results
func (h *GameHandler) GetResults(c *gin.Context) {
	results, err := h.gameService.Results(c.Request.Context(), c.Param("code"))
	if err != nil {
		HandleServiceError(c, err)
		return
	}
	SuccessResponse(c, http.StatusOK, results)
}

// GetPlayerReport 返回单个玩家的逐题记录
func (h *GameHandler) GetPlayerReport(c *gin.Context) {
	report, err := h.gameService.PlayerReport(c.Request.Context(), c.Param("code"), c.Param("playerId"))
	if err != nil {
		HandleServiceError(c, err)
		return
	}
	SuccessResponse(c, http.StatusOK, report)
}
