package app

import (
	"github.com/yungbote/meridian-backend/internal/handlers"
	"github.com/yungbote/meridian-backend/internal/logger"
)

type Handlers struct {
	Pipeline     *handlers.PipelineHandler
	Reputation   *handlers.ReputationHandler
	Undercurrent *handlers.UndercurrentHandler
}

func wireHandlers(log *logger.Logger, services Services) Handlers {
	log.Info("Wiring handlers...")
	return Handlers{
		Pipeline:     handlers.NewPipelineHandler(log, services.Orchestrator),
		Reputation:   handlers.NewReputationHandler(log, services.Reputation),
		Undercurrent: handlers.NewUndercurrentHandler(log, services.Undercurrents),
	}
}
