package invites

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/bananalabs-oss/hatcher/internal/logger"
	"github.com/bananalabs-oss/hatcher/internal/models"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// Profiles resolves sender display names.
type Profiles interface {
	GetUser(ctx context.Context, userID string) (*models.GlobalUser, error)
}

type Handler struct {
	store    Store
	profiles Profiles
	log      *logger.Logger
	now      func() time.Time
}

func NewHandler(store Store, profiles Profiles, log *logger.Logger) *Handler {
	return &Handler{store: store, profiles: profiles, log: log, now: time.Now}
}

func (h *Handler) Send(c *gin.Context) {
	var req struct {
		SenderID   string `json:"sender_id" binding:"required"`
		ReceiverID string `json:"receiver_id" binding:"required"`
		PartyCode  string `json:"party_code" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{
			Error:   "invalid_request",
			Message: "sender_id, receiver_id and party_code are required",
		})
		return
	}

	inv := &models.Invite{
		ID:         uuid.NewString(),
		SenderID:   req.SenderID,
		ReceiverID: req.ReceiverID,
		PartyCode:  req.PartyCode,
		Timestamp:  h.now().Unix(),
	}
	if err := h.store.Send(c.Request.Context(), inv); err != nil {
		h.log.Errorw("send invite failed", "sender_id", req.SenderID, "receiver_id", req.ReceiverID, "error", err)
		c.JSON(http.StatusInternalServerError, models.ErrorResponse{
			Error:   "send_failed",
			Message: "Failed to send invite",
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "success", "invite_id": inv.ID})
}

func (h *Handler) Check(c *gin.Context) {
	ctx := c.Request.Context()
	userID := c.Param("user_id")

	inv, err := h.store.Latest(ctx, userID, h.now())
	if errors.Is(err, ErrNoInvite) {
		c.JSON(http.StatusOK, gin.H{"has_invite": false})
		return
	}
	if err != nil {
		h.log.Errorw("check invites failed", "user_id", userID, "error", err)
		c.JSON(http.StatusInternalServerError, models.ErrorResponse{
			Error:   "fetch_failed",
			Message: "Failed to check invites",
		})
		return
	}

	senderName := ""
	if sender, err := h.profiles.GetUser(ctx, inv.SenderID); err == nil {
		senderName = sender.Name
	}

	c.JSON(http.StatusOK, gin.H{
		"has_invite": true,
		"invite": gin.H{
			"id":          inv.ID,
			"sender_id":   inv.SenderID,
			"sender_name": senderName,
			"party_code":  inv.PartyCode,
			"timestamp":   inv.Timestamp,
		},
	})
}

func (h *Handler) Clear(c *gin.Context) {
	var req struct {
		Code string `json:"code" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{
			Error:   "invalid_request",
			Message: "code is required",
		})
		return
	}

	if err := h.store.Clear(c.Request.Context(), req.Code); err != nil {
		h.log.Errorw("clear invite failed", "invite_id", req.Code, "error", err)
		c.JSON(http.StatusInternalServerError, models.ErrorResponse{
			Error:   "clear_failed",
			Message: "Failed to clear invite",
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "success"})
}
