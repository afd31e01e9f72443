package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/yungbote/meridian-backend/internal/logger"
	"github.com/yungbote/meridian-backend/internal/services"
)

type ReputationHandler struct {
	log        *logger.Logger
	reputation services.ReputationService
}

func NewReputationHandler(baseLog *logger.Logger, reputation services.ReputationService) *ReputationHandler {
	return &ReputationHandler{
		log:        baseLog.With("handler", "ReputationHandler"),
		reputation: reputation,
	}
}

type evaluateRequest struct {
	IntroductionID string `json:"introduction_id"`
	UserID         string `json:"user_id"`
	Trigger        string `json:"trigger"`
}

// Evaluate scores one participant of a completed introduction. The response
// never exposes the resulting scores; callers observe only acceptance.
func (h *ReputationHandler) Evaluate(c *gin.Context) {
	var req evaluateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondError(c, http.StatusBadRequest, "bad_request", err)
		return
	}
	introID, err := uuid.Parse(req.IntroductionID)
	if err != nil {
		RespondError(c, http.StatusBadRequest, "bad_introduction_id", err)
		return
	}
	userID, err := uuid.Parse(req.UserID)
	if err != nil {
		RespondError(c, http.StatusBadRequest, "bad_user_id", err)
		return
	}

	if err := h.reputation.Evaluate(c.Request.Context(), introID, userID, req.Trigger); err != nil {
		// A failed judgment call means no mutation happened; the caller only
		// needs to know the evaluation did not land.
		h.log.Warn("reputation evaluation failed",
			"introduction_id", introID.String(),
			"user_id", userID.String(),
			"error", err,
		)
		RespondError(c, http.StatusBadGateway, "evaluation_failed", err)
		return
	}
	RespondOK(c, gin.H{"status": "evaluated"})
}
