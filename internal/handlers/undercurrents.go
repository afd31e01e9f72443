package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/yungbote/meridian-backend/internal/logger"
	"github.com/yungbote/meridian-backend/internal/services"
)

type UndercurrentHandler struct {
	log           *logger.Logger
	undercurrents services.UndercurrentService
}

func NewUndercurrentHandler(baseLog *logger.Logger, undercurrents services.UndercurrentService) *UndercurrentHandler {
	return &UndercurrentHandler{
		log:           baseLog.With("handler", "UndercurrentHandler"),
		undercurrents: undercurrents,
	}
}

func (h *UndercurrentHandler) Access(c *gin.Context) {
	userID, err := uuid.Parse(c.Query("user_id"))
	if err != nil {
		RespondError(c, http.StatusBadRequest, "bad_user_id", err)
		return
	}
	access, err := h.undercurrents.CheckAccess(c.Request.Context(), userID)
	if err != nil {
		h.log.Warn("access check failed", "user_id", userID.String(), "error", err)
		RespondError(c, http.StatusInternalServerError, "access_check_failed", err)
		return
	}
	RespondOK(c, access)
}

type nextUndercurrentRequest struct {
	UserID string `json:"user_id"`
}

func (h *UndercurrentHandler) Next(c *gin.Context) {
	var req nextUndercurrentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondError(c, http.StatusBadRequest, "bad_request", err)
		return
	}
	userID, err := uuid.Parse(req.UserID)
	if err != nil {
		RespondError(c, http.StatusBadRequest, "bad_user_id", err)
		return
	}

	uc, interaction, err := h.undercurrents.GetUndercurrent(c.Request.Context(), userID)
	switch {
	case err == nil:
		RespondOK(c, gin.H{"undercurrent": uc, "interaction": interaction})
	case errors.Is(err, services.ErrNotUnlocked):
		RespondError(c, http.StatusForbidden, "not_unlocked", err)
	case errors.Is(err, services.ErrPendingResponse):
		RespondError(c, http.StatusConflict, "pending_response", err)
	case errors.Is(err, services.ErrWeeklyQuotaReached):
		RespondError(c, http.StatusConflict, "weekly_quota", err)
	default:
		// Upstream failures degrade to unavailability; internal detail stays
		// in the logs.
		h.log.Warn("undercurrent issuance failed", "user_id", userID.String(), "error", err)
		RespondError(c, http.StatusServiceUnavailable, "nothing_available", services.ErrNothingAvailable)
	}
}

type submitResponseRequest struct {
	Response string `json:"response"`
}

func (h *UndercurrentHandler) SubmitResponse(c *gin.Context) {
	interactionID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		RespondError(c, http.StatusBadRequest, "bad_interaction_id", err)
		return
	}
	var req submitResponseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondError(c, http.StatusBadRequest, "bad_request", err)
		return
	}

	interaction, err := h.undercurrents.SubmitResponse(c.Request.Context(), interactionID, req.Response)
	if err != nil {
		RespondError(c, http.StatusBadRequest, "submit_failed", err)
		return
	}
	RespondOK(c, gin.H{"interaction": interaction})
}
