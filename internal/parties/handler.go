package parties

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

type profileRequest struct {
	UserID  string `json:"user_id" binding:"required"`
	Name    string `json:"name"`
	Avatar  string `json:"avatar"`
	EggSkin string `json:"egg_skin"`
}

func (r profileRequest) profile() Profile {
	return Profile{UserID: r.UserID, Name: r.Name, Avatar: r.Avatar, EggSkin: r.EggSkin}
}

func success() gin.H {
	return gin.H{"status": "success"}
}

func badRequest(c *gin.Context, msg string) {
	c.JSON(http.StatusBadRequest, models.ErrorResponse{
		Error:   "invalid_request",
		Message: msg,
	})
}

func partyNotFound(c *gin.Context) {
	c.JSON(http.StatusNotFound, models.ErrorResponse{
		Error:   "party_not_found",
		Message: "Party not found",
	})
}

func (h *Handler) internalError(c *gin.Context, op string, err error) {
	h.log.Errorw(op+" failed", "error", err)
	c.JSON(http.StatusInternalServerError, models.ErrorResponse{
		Error:   op + "_failed",
		Message: "Internal error",
	})
}

func (h *Handler) ignored(op string, out Outcome, keysAndValues ...interface{}) {
	if !out.Applied {
		h.log.Debugw(op+" ignored", append([]interface{}{"reason", out.Reason}, keysAndValues...)...)
	}
}

// --- Lifecycle ---

func (h *Handler) CreateParty(c *gin.Context) {
	var req profileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "user_id is required")
		return
	}

	code, err := h.svc.CreateParty(c.Request.Context(), req.profile())
	if errors.Is(err, ErrCodeSpaceExhausted) {
		h.log.Warnw("no free party code", "user_id", req.UserID)
		c.JSON(http.StatusServiceUnavailable, models.ErrorResponse{
			Error:   "no_free_code",
			Message: "Could not allocate a party code, try again",
		})
		return
	}
	if err != nil {
		h.internalError(c, "create", err)
		return
	}

	h.log.Infow("party created", "code", code, "leader_id", req.UserID)
	c.JSON(http.StatusOK, gin.H{"status": "success", "partyCode": code})
}

func (h *Handler) JoinParty(c *gin.Context) {
	var req struct {
		profileRequest
		Code string `json:"code" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "user_id and code are required")
		return
	}

	err := h.svc.JoinParty(c.Request.Context(), req.Code, req.profile())
	if errors.Is(err, ErrPartyNotFound) {
		partyNotFound(c)
		return
	}
	if err != nil {
		h.internalError(c, "join", err)
		return
	}

	c.JSON(http.StatusOK, success())
}

func (h *Handler) LeaveParty(c *gin.Context) {
	var req profileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "user_id is required")
		return
	}

	out, err := h.svc.LeaveParty(c.Request.Context(), req.UserID)
	if err != nil {
		h.internalError(c, "leave", err)
		return
	}
	h.ignored("leave", out, "user_id", req.UserID)

	c.JSON(http.StatusOK, success())
}

func (h *Handler) GetStatus(c *gin.Context) {
	snap, err := h.svc.GetStatus(c.Request.Context(), c.Param("code"))
	if errors.Is(err, ErrPartyNotFound) {
		partyNotFound(c)
		return
	}
	if err != nil {
		h.internalError(c, "status", err)
		return
	}

	c.JSON(http.StatusOK, snap)
}

// --- Combat ---

type damageRequest struct {
	Code   string `json:"code" binding:"required"`
	UserID string `json:"user_id"`
	Damage int    `json:"damage"`
}

func (h *Handler) DealDamage(c *gin.Context) {
	var req damageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "code is required")
		return
	}

	hp, out, err := h.svc.DealDamage(c.Request.Context(), req.Code, req.UserID, req.Damage)
	if err != nil {
		h.internalError(c, "damage", err)
		return
	}
	if !out.Applied {
		h.ignored("damage", out, "code", req.Code, "user_id", req.UserID)
		c.JSON(http.StatusOK, gin.H{"status": "error"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "success", "new_hp": hp})
}

func (h *Handler) WolfDamage(c *gin.Context) {
	var req damageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "code is required")
		return
	}

	hp, out, err := h.svc.WolfDamage(c.Request.Context(), req.Code, req.Damage)
	if err != nil {
		h.internalError(c, "wolf_damage", err)
		return
	}
	h.ignored("wolf_damage", out, "code", req.Code)

	c.JSON(http.StatusOK, gin.H{"status": "success", "wolf_hp": hp})
}

// --- Mega egg ---

func (h *Handler) AddMegaTime(c *gin.Context) {
	var req struct {
		Code    string `json:"code" binding:"required"`
		Seconds int    `json:"seconds"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "code is required")
		return
	}

	out, err := h.svc.AddMegaTime(c.Request.Context(), req.Code, req.Seconds)
	if err != nil {
		h.internalError(c, "mega_add", err)
		return
	}
	h.ignored("mega_add", out, "code", req.Code)

	c.JSON(http.StatusOK, success())
}

func (h *Handler) ClaimMegaEgg(c *gin.Context) {
	var req struct {
		Code string `json:"code" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "code is required")
		return
	}

	out, err := h.svc.ClaimMegaEgg(c.Request.Context(), req.Code)
	if err != nil {
		h.internalError(c, "mega_claim", err)
		return
	}
	h.ignored("mega_claim", out, "code", req.Code)

	c.JSON(http.StatusOK, success())
}

// --- Expeditions ---

func (h *Handler) StartExpedition(c *gin.Context) {
	var req struct {
		Code     string `json:"code" binding:"required"`
		Location string `json:"location"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "code is required")
		return
	}

	end, exp, err := h.svc.StartExpedition(c.Request.Context(), req.Code, req.Location)
	if errors.Is(err, ErrPartyNotFound) {
		partyNotFound(c)
		return
	}
	if err != nil {
		h.internalError(c, "expedition_start", err)
		return
	}

	h.log.Infow("expedition started",
		"code", req.Code,
		"location", exp.Location,
		"score", exp.Score,
		"duration", exp.Duration,
		"wolf_hp", exp.WolfHp,
	)
	c.JSON(http.StatusOK, gin.H{"status": "success", "end_time": end})
}

func (h *Handler) ClaimExpedition(c *gin.Context) {
	var req struct {
		Code string `json:"code" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "code is required")
		return
	}

	score, out, err := h.svc.ClaimExpedition(c.Request.Context(), req.Code)
	if err != nil {
		h.internalError(c, "expedition_claim", err)
		return
	}
	h.ignored("expedition_claim", out, "code", req.Code)

	c.JSON(http.StatusOK, gin.H{"status": "success", "score": score})
}

// --- Game mode ---

func (h *Handler) SetActiveGame(c *gin.Context) {
	var req struct {
		Code     string `json:"code" binding:"required"`
		UserID   string `json:"user_id" binding:"required"`
		GameName string `json:"game_name" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "code, user_id and game_name are required")
		return
	}

	out, err := h.svc.SetActiveGame(c.Request.Context(), req.Code, req.UserID, req.GameName)
	if err != nil {
		h.internalError(c, "set_game", err)
		return
	}
	h.ignored("set_game", out, "code", req.Code, "user_id", req.UserID)

	c.JSON(http.StatusOK, success())
}

// --- Internal endpoints (service-to-service) ---

func (h *Handler) GetPartyByCode(c *gin.Context) {
	h.GetStatus(c)
}

func (h *Handler) GetPlayerParty(c *gin.Context) {
	player, err := h.svc.PlayerMembership(c.Request.Context(), c.Param("user_id"))
	if errors.Is(err, ErrPlayerNotFound) {
		c.JSON(http.StatusNotFound, models.ErrorResponse{
			Error:   "not_in_party",
			Message: "Player is not in a party",
		})
		return
	}
	if err != nil {
		h.internalError(c, "fetch", err)
		return
	}

	c.JSON(http.StatusOK, player)
}
