package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/pickuphub/pickup-backend/internal/models"
	"github.com/pickuphub/pickup-backend/internal/repository"
	"github.com/pickuphub/pickup-backend/internal/service"
	"github.com/pickuphub/pickup-backend/pkg/confirm"
)

type GameHandler struct {
	resolutionService *service.ResolutionService
	gameRepo          *repository.GameRepository
	finishedRepo      *repository.FinishedGameRepository
	confirmStore      *confirm.Store
}

func NewGameHandler(
	resolutionService *service.ResolutionService,
	gameRepo *repository.GameRepository,
	finishedRepo *repository.FinishedGameRepository,
	confirmStore *confirm.Store,
) *GameHandler {
	return &GameHandler{
		resolutionService: resolutionService,
		gameRepo:          gameRepo,
		finishedRepo:      finishedRepo,
		confirmStore:      confirmStore,
	}
}

// GetGame 진행 중인 게임 조회
func (h *GameHandler) GetGame(c *gin.Context) {
	id := c.Param("id")

	game, err := h.gameRepo.FindByID(id)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Failed to get game",
		})
		return
	}
	if game == nil {
		c.JSON(http.StatusNotFound, gin.H{
			"error": "Game not found",
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"game": game,
	})
}

// GetFinishedGame 종료 기록 조회 (참가자 스냅샷 포함)
func (h *GameHandler) GetFinishedGame(c *gin.Context) {
	id := c.Param("id")

	fg, err := h.finishedRepo.FindByID(id)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Failed to get finished game",
		})
		return
	}
	if fg == nil {
		c.JSON(http.StatusNotFound, gin.H{
			"error": "Finished game not found",
		})
		return
	}

	players, err := h.finishedRepo.FindPlayers(id)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Failed to get finished game players",
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"finishedGame": fg,
		"players":      players,
	})
}

// CreateConfirmToken 해소 확인 토큰 발급.
// finalize/cancel은 두 단계로 진행된다: 토큰을 먼저 발급받고, 실제 요청에
// 토큰을 실어 보낸다. 보류 상태는 redis에만 존재하며 TTL이 지나면 사라진다.
func (h *GameHandler) CreateConfirmToken(c *gin.Context) {
	var req struct {
		Action string `json:"action" binding:"required,oneof=finalize cancel"`
		GameID string `json:"gameId" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": err.Error(),
		})
		return
	}

	playerID, _ := c.Get("playerId")

	token, err := h.confirmStore.Create(c.Request.Context(), confirm.PendingAction{
		Action:  req.Action,
		GameID:  req.GameID,
		ActorID: playerID.(string),
	})
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Failed to create confirm token",
		})
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"confirmToken": token,
	})
}

// claimConfirmToken 토큰을 소모하고 action/game/actor가 일치하는지 검사
func (h *GameHandler) claimConfirmToken(c *gin.Context, token, action, gameID, actorID string) bool {
	pending, err := h.confirmStore.Claim(c.Request.Context(), token)
	if err != nil {
		if errors.Is(err, confirm.ErrTokenNotFound) {
			c.JSON(http.StatusConflict, gin.H{
				"error": "Confirm token expired or already used",
			})
			return false
		}
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Failed to claim confirm token",
		})
		return false
	}

	if pending.Action != action || pending.GameID != gameID || pending.ActorID != actorID {
		c.JSON(http.StatusForbidden, gin.H{
			"error": "Confirm token does not match this request",
		})
		return false
	}
	return true
}

// FinalizeGame 게임 종료. 참가자 또는 관리자만 호출할 수 있다.
func (h *GameHandler) FinalizeGame(c *gin.Context) {
	gameID := c.Param("id")

	var req struct {
		Outcome      string `json:"outcome" binding:"required"`
		Team         *int   `json:"team"`
		ChannelID    string `json:"channelId"`
		ConfirmToken string `json:"confirmToken" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": err.Error(),
		})
		return
	}

	playerID, _ := c.Get("playerId")
	actorID := playerID.(string)

	if !h.claimConfirmToken(c, req.ConfirmToken, "finalize", gameID, actorID) {
		return
	}

	result, err := h.resolutionService.Finalize(c.Request.Context(), service.FinalizeRequest{
		GameID:    gameID,
		ActorID:   actorID,
		Outcome:   models.Outcome(req.Outcome),
		ActorTeam: req.Team,
		ChannelID: req.ChannelID,
	})
	if err != nil {
		h.resolveError(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}

// CancelGame 게임 취소 (관리자 전용)
func (h *GameHandler) CancelGame(c *gin.Context) {
	gameID := c.Param("id")

	var req struct {
		ConfirmToken string `json:"confirmToken" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": err.Error(),
		})
		return
	}

	playerID, _ := c.Get("playerId")
	actorID := playerID.(string)

	if !h.claimConfirmToken(c, req.ConfirmToken, "cancel", gameID, actorID) {
		return
	}

	result, err := h.resolutionService.Cancel(c.Request.Context(), gameID, actorID)
	if err != nil {
		h.resolveError(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}

// resolveError 해소 에러를 HTTP 상태로 매핑
func (h *GameHandler) resolveError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrGameNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "Game not found"})
	case errors.Is(err, service.ErrAlreadyResolved):
		c.JSON(http.StatusConflict, gin.H{"error": "Game already resolved"})
	case errors.Is(err, service.ErrUnauthorized):
		c.JSON(http.StatusForbidden, gin.H{"error": "Not allowed to resolve this game"})
	case errors.Is(err, service.ErrInvalidOutcome):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, service.ErrQueueNotFound), errors.Is(err, service.ErrCategoryNotFound):
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to resolve game"})
	}
}
