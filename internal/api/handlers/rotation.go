package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/pickuphub/pickup-backend/internal/repository"
	"github.com/pickuphub/pickup-backend/internal/service"
	"github.com/pickuphub/pickup-backend/internal/websocket"
)

type RotationHandler struct {
	rotationService *service.RotationService
	rotationRepo    *repository.RotationRepository
	hub             *websocket.Hub
}

func NewRotationHandler(
	rotationService *service.RotationService,
	rotationRepo *repository.RotationRepository,
	hub *websocket.Hub,
) *RotationHandler {
	return &RotationHandler{
		rotationService: rotationService,
		rotationRepo:    rotationRepo,
		hub:             hub,
	}
}

// ListMaps 로테이션의 맵 목록 조회 (ordinal 순)
func (h *RotationHandler) ListMaps(c *gin.Context) {
	id := c.Param("id")

	rotation, err := h.rotationRepo.FindByID(id)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Failed to get rotation",
		})
		return
	}
	if rotation == nil {
		c.JSON(http.StatusNotFound, gin.H{
			"error": "Rotation not found",
		})
		return
	}

	maps, err := h.rotationRepo.FindMaps(id)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Failed to get rotation maps",
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"rotation": rotation,
		"maps":     maps,
		"total":    len(maps),
	})
}

// Advance 로테이션 포인터를 다음 맵으로 이동 (관리자 전용)
func (h *RotationHandler) Advance(c *gin.Context) {
	if !requireAdmin(c) {
		return
	}

	change, err := h.rotationService.Advance(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.rotationError(c, err)
		return
	}

	h.broadcastChange(c.Param("id"), change)
	c.JSON(http.StatusOK, change)
}

// SetNextMap 다음 맵 수동 지정 (관리자 전용)
func (h *RotationHandler) SetNextMap(c *gin.Context) {
	if !requireAdmin(c) {
		return
	}

	var req struct {
		MapID string `json:"mapId" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": err.Error(),
		})
		return
	}

	change, err := h.rotationService.SetNext(c.Request.Context(), c.Param("id"), req.MapID)
	if err != nil {
		h.rotationError(c, err)
		return
	}

	h.broadcastChange(c.Param("id"), change)
	c.JSON(http.StatusOK, change)
}

func (h *RotationHandler) broadcastChange(rotationID string, change *service.RotationChange) {
	if h.hub == nil {
		return
	}
	h.hub.Broadcast(websocket.EventMapChanged, websocket.MapChangedMessage{
		RotationID:     rotationID,
		MapFullName:    change.Entry.MapFullName,
		MapShortName:   change.Entry.MapShortName,
		AffectedQueues: change.AffectedQueues,
	})
}

func (h *RotationHandler) rotationError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrRotationNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "Rotation not found"})
	case errors.Is(err, service.ErrMapNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "Map not in rotation"})
	case errors.Is(err, service.ErrEmptyRotation):
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "Rotation has no maps"})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to change rotation"})
	}
}

// requireAdmin 인증 미들웨어가 저장한 isAdmin 플래그 확인
func requireAdmin(c *gin.Context) bool {
	isAdmin, exists := c.Get("isAdmin")
	if !exists || !isAdmin.(bool) {
		c.JSON(http.StatusForbidden, gin.H{
			"error": "Admin privileges required",
		})
		return false
	}
	return true
}
