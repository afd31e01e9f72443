package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/yungbote/meridian-backend/internal/logger"
	"github.com/yungbote/meridian-backend/internal/services"
)

type PipelineHandler struct {
	log          *logger.Logger
	orchestrator services.OrchestratorService
}

func NewPipelineHandler(baseLog *logger.Logger, orchestrator services.OrchestratorService) *PipelineHandler {
	return &PipelineHandler{
		log:          baseLog.With("handler", "PipelineHandler"),
		orchestrator: orchestrator,
	}
}

type runPipelineRequest struct {
	UserID     string `json:"user_id"`
	ProcessAll bool   `json:"process_all"`
	Limit      int    `json:"limit"`
}

// Run triggers the pipeline for one user, or sweeps users with recent
// signals when process_all is set.
func (h *PipelineHandler) Run(c *gin.Context) {
	var req runPipelineRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondError(c, http.StatusBadRequest, "bad_request", err)
		return
	}

	if req.ProcessAll {
		summary, results, err := h.orchestrator.RunAll(c.Request.Context(), req.Limit)
		if err != nil {
			h.log.Error("batch sweep failed", "error", err)
			RespondError(c, http.StatusInternalServerError, "sweep_failed", err)
			return
		}
		RespondOK(c, gin.H{"summary": summary, "results": results})
		return
	}

	userID, err := uuid.Parse(req.UserID)
	if err != nil {
		RespondError(c, http.StatusBadRequest, "bad_user_id", err)
		return
	}
	result := h.orchestrator.Run(c.Request.Context(), userID)
	RespondOK(c, gin.H{"result": result})
}
