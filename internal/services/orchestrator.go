package services

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/yungbote/meridian-backend/internal/logger"
	"github.com/yungbote/meridian-backend/internal/repos"
)

// Pipeline stages reported in results. A gated or silent outcome is a
// successful terminal state, not a fault.
const (
	StageLocked       = "locked"
	StageDerive       = "derive"
	StageGated        = "gated"
	StageJudgedSilent = "judged-silent"
	StageCompose      = "compose"
	StageComposed     = "composed"
)

type PipelineResult struct {
	UserID   uuid.UUID `json:"user_id"`
	Stage    string    `json:"stage"`
	Success  bool      `json:"success"`
	Messaged bool      `json:"messaged"`
	Decision string    `json:"decision,omitempty"`
	Reason   string    `json:"reason,omitempty"`
	Error    string    `json:"error,omitempty"`
}

type BatchSummary struct {
	Total        int `json:"total"`
	Success      int `json:"success"`
	Failed       int `json:"failed"`
	Messaged     int `json:"messaged"`
	Gated        int `json:"gated"`
	JudgedSilent int `json:"judged_silent"`
}

// OrchestratorService sequences derive -> gate -> evaluate -> compose per
// user. It is the only component with side effects on conversation history,
// and it never rolls back a prior stage's durable writes: derivation is
// idempotent, so the next cycle heals partial progress.
type OrchestratorService interface {
	Run(ctx context.Context, userID uuid.UUID) PipelineResult
	RunAll(ctx context.Context, limit int) (BatchSummary, []PipelineResult, error)
}

type orchestratorService struct {
	log        *logger.Logger
	deriver    StateDeriverService
	gating     GatingService
	evaluator  DecisionEvaluator
	composer   MessageComposerService
	signalRepo repos.SignalRepo
	locker     PipelineLocker

	batchLimit   int
	batchWorkers int
	batchDelay   time.Duration
	sweepWindow  time.Duration
}

func NewOrchestratorService(
	baseLog *logger.Logger,
	deriver StateDeriverService,
	gating GatingService,
	evaluator DecisionEvaluator,
	composer MessageComposerService,
	signalRepo repos.SignalRepo,
	locker PipelineLocker,
	batchLimit int,
	batchWorkers int,
	batchDelay time.Duration,
) OrchestratorService {
	if batchLimit <= 0 {
		batchLimit = 10
	}
	if batchWorkers <= 0 {
		batchWorkers = 1
	}
	return &orchestratorService{
		log:          baseLog.With("service", "OrchestratorService"),
		deriver:      deriver,
		gating:       gating,
		evaluator:    evaluator,
		composer:     composer,
		signalRepo:   signalRepo,
		locker:       locker,
		batchLimit:   batchLimit,
		batchWorkers: batchWorkers,
		batchDelay:   batchDelay,
		sweepWindow:  48 * time.Hour,
	}
}

func (s *orchestratorService) Run(ctx context.Context, userID uuid.UUID) PipelineResult {
	acquired, release, err := s.locker.Acquire(ctx, userID)
	if err != nil {
		return PipelineResult{UserID: userID, Stage: StageLocked, Success: false, Error: err.Error()}
	}
	if !acquired {
		// Another run holds the gate; the in-flight run owns this cycle.
		return PipelineResult{UserID: userID, Stage: StageLocked, Success: true, Reason: ErrPipelineBusy.Error()}
	}
	defer release()

	state, signals, err := s.deriver.Derive(ctx, nil, userID)
	if err != nil {
		s.log.Warn("state derivation failed", "user_id", userID.String(), "error", err)
		return PipelineResult{UserID: userID, Stage: StageDerive, Success: false, Error: err.Error()}
	}
	_ = state

	gate, err := s.gating.ShouldEvaluate(ctx, nil, userID, signals)
	if err != nil {
		return PipelineResult{UserID: userID, Stage: StageGated, Success: false, Error: err.Error()}
	}
	if !gate.Proceed {
		return PipelineResult{UserID: userID, Stage: StageGated, Success: true, Reason: gate.Reason}
	}

	decision := s.evaluator.Evaluate(gate.Eligible)
	if decision.State == DecisionSilent {
		return PipelineResult{UserID: userID, Stage: StageJudgedSilent, Success: true, Decision: decision.State, Reason: decision.Reason}
	}

	if _, err := s.composer.Compose(ctx, userID, decision); err != nil {
		if errors.Is(err, ErrAlreadySentToday) {
			// Lost a race to another send between gate and write; the
			// transactional recheck held the invariant.
			return PipelineResult{UserID: userID, Stage: StageGated, Success: true, Decision: decision.State, Reason: err.Error()}
		}
		s.log.Warn("compose failed", "user_id", userID.String(), "error", err)
		return PipelineResult{UserID: userID, Stage: StageCompose, Success: false, Decision: decision.State, Error: err.Error()}
	}

	return PipelineResult{UserID: userID, Stage: StageComposed, Success: true, Messaged: true, Decision: decision.State, Reason: decision.Reason}
}

// RunAll sweeps users with signal activity inside the sweep window. Users are
// dispatched through a bounded worker pool with a fixed delay between
// launches; the delay is a backpressure valve for the shared judgment
// dependency, not a correctness requirement. One user's failure never aborts
// the sweep.
func (s *orchestratorService) RunAll(ctx context.Context, limit int) (BatchSummary, []PipelineResult, error) {
	if limit <= 0 || limit > s.batchLimit {
		limit = s.batchLimit
	}
	since := time.Now().UTC().Add(-s.sweepWindow)

	userIDs, err := s.signalRepo.ListActiveUserIDs(ctx, nil, since, limit)
	if err != nil {
		return BatchSummary{}, nil, err
	}

	var mu sync.Mutex
	results := make([]PipelineResult, 0, len(userIDs))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.batchWorkers)
	for i, userID := range userIDs {
		if i > 0 && s.batchDelay > 0 {
			select {
			case <-ctx.Done():
			case <-time.After(s.batchDelay):
			}
		}
		uid := userID
		g.Go(func() error {
			res := s.Run(gctx, uid)
			mu.Lock()
			results = append(results, res)
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()

	summary := BatchSummary{Total: len(results)}
	for _, res := range results {
		if res.Success {
			summary.Success++
		} else {
			summary.Failed++
		}
		if res.Messaged {
			summary.Messaged++
		}
		switch res.Stage {
		case StageGated:
			summary.Gated++
		case StageJudgedSilent:
			summary.JudgedSilent++
		}
	}

	s.log.Info("batch sweep finished",
		"total", summary.Total,
		"messaged", summary.Messaged,
		"gated", summary.Gated,
		"judged_silent", summary.JudgedSilent,
		"failed", summary.Failed,
	)
	return summary, results, nil
}
