package app

import (
	"fmt"
	"os"
	"strings"

	"gorm.io/gorm"

	redisclient "github.com/yungbote/meridian-backend/internal/clients/redis"
	"github.com/yungbote/meridian-backend/internal/logger"
	"github.com/yungbote/meridian-backend/internal/services"
)

type Services struct {
	Judgment      services.JudgmentProvider
	Locker        services.PipelineLocker
	StateDeriver  services.StateDeriverService
	Gating        services.GatingService
	Evaluator     services.DecisionEvaluator
	Composer      services.MessageComposerService
	Orchestrator  services.OrchestratorService
	Reputation    services.ReputationService
	Undercurrents services.UndercurrentService
}

func wireServices(db *gorm.DB, log *logger.Logger, cfg Config, repos Repos) (Services, error) {
	log.Info("Wiring services...")

	judgment, err := services.NewJudgmentClient(log)
	if err != nil {
		return Services{}, fmt.Errorf("init judgment client: %w", err)
	}

	var locker services.PipelineLocker
	if strings.TrimSpace(os.Getenv("REDIS_ADDR")) != "" {
		locker, err = redisclient.NewPipelineLocker(log)
		if err != nil {
			return Services{}, fmt.Errorf("init redis pipeline locker: %w", err)
		}
	} else {
		log.Warn("REDIS_ADDR not set, using in-process pipeline locker")
		locker = services.NewLocalLocker()
	}

	deriver := services.NewStateDeriverService(db, log, repos.Signal, repos.UserState, repos.SentMessage)
	gating := services.NewGatingService(db, log, repos.SentMessage)
	evaluator := services.NewDecisionEvaluator(log, nil)
	composer := services.NewMessageComposerService(db, log, repos.ChatMessage, repos.SentMessage, repos.UserState)

	orchestrator := services.NewOrchestratorService(
		log,
		deriver,
		gating,
		evaluator,
		composer,
		repos.Signal,
		locker,
		cfg.BatchLimit,
		cfg.BatchWorkers,
		cfg.BatchDelay,
	)

	reputation := services.NewReputationService(db, log, repos.Introduction, repos.Reputation, judgment)
	undercurrents := services.NewUndercurrentService(
		db,
		log,
		repos.Reputation,
		repos.Undercurrent,
		repos.UndercurrentInteraction,
		repos.Introduction,
		judgment,
		reputation,
		nil,
	)

	return Services{
		Judgment:      judgment,
		Locker:        locker,
		StateDeriver:  deriver,
		Gating:        gating,
		Evaluator:     evaluator,
		Composer:      composer,
		Orchestrator:  orchestrator,
		Reputation:    reputation,
		Undercurrents: undercurrents,
	}, nil
}
