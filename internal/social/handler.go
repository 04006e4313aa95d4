package social

import (
	"errors"
	"net/http"

	"github.com/bananalabs-oss/hatcher/internal/logger"
	"github.com/bananalabs-oss/hatcher/internal/models"
	"github.com/gin-gonic/gin"
)

type Handler struct {
	svc *Service
	log *logger.Logger
}

func NewHandler(svc *Service, log *logger.Logger) *Handler {
	return &Handler{svc: svc, log: log}
}

func (h *Handler) SyncUser(c *gin.Context) {
	var req struct {
		UserID  string `json:"user_id" binding:"required"`
		Name    string `json:"name"`
		Avatar  string `json:"avatar"`
		Level   int    `json:"level"`
		Earned  int64  `json:"earned"`
		Hatched int    `json:"hatched"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{
			Error:   "invalid_request",
			Message: "user_id is required",
		})
		return
	}

	err := h.svc.SyncUser(c.Request.Context(), &models.GlobalUser{
		UserID:  req.UserID,
		Name:    req.Name,
		Avatar:  req.Avatar,
		Level:   req.Level,
		Earned:  req.Earned,
		Hatched: req.Hatched,
	})
	if err != nil {
		h.log.Errorw("sync user failed", "user_id", req.UserID, "error", err)
		c.JSON(http.StatusInternalServerError, models.ErrorResponse{
			Error:   "sync_failed",
			Message: "Failed to sync profile",
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "success"})
}

func (h *Handler) AddFriend(c *gin.Context) {
	var req struct {
		UserID   string `json:"user_id" binding:"required"`
		FriendID string `json:"friend_id" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{
			Error:   "invalid_request",
			Message: "user_id and friend_id are required",
		})
		return
	}

	err := h.svc.AddFriend(c.Request.Context(), req.UserID, req.FriendID)
	switch {
	case errors.Is(err, ErrSelfFriend):
		c.JSON(http.StatusBadRequest, models.ErrorResponse{
			Error:   "self_friend",
			Message: "You cannot add yourself",
		})
	case errors.Is(err, ErrUserNotFound):
		c.JSON(http.StatusNotFound, models.ErrorResponse{
			Error:   "user_not_found",
			Message: "User not found",
		})
	case err != nil:
		h.log.Errorw("add friend failed", "user_id", req.UserID, "friend_id", req.FriendID, "error", err)
		c.JSON(http.StatusInternalServerError, models.ErrorResponse{
			Error:   "add_friend_failed",
			Message: "Failed to add friend",
		})
	default:
		c.JSON(http.StatusOK, gin.H{"status": "success"})
	}
}

func (h *Handler) ListFriends(c *gin.Context) {
	userID := c.Param("user_id")

	friends, err := h.svc.ListFriends(c.Request.Context(), userID)
	if err != nil {
		h.log.Errorw("list friends failed", "user_id", userID, "error", err)
		c.JSON(http.StatusInternalServerError, models.ErrorResponse{
			Error:   "fetch_failed",
			Message: "Failed to fetch friends",
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{"friends": friends})
}
