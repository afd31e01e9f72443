package services

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/yungbote/meridian-backend/internal/logger"
	"github.com/yungbote/meridian-backend/internal/repos"
	"github.com/yungbote/meridian-backend/internal/types"
)

// GateResult carries the gating verdict plus the signals that survived
// filtering. A denial is policy, not an error.
type GateResult struct {
	Proceed  bool
	Reason   string
	Eligible []*types.Signal
}

// GatingService enforces global send policy before any judgment runs: one
// proactive message per calendar day, never re-nudge a signal that already
// produced a send, ignore expired signals. It knows nothing about message
// content.
type GatingService interface {
	ShouldEvaluate(ctx context.Context, tx *gorm.DB, userID uuid.UUID, signals []*types.Signal) (GateResult, error)
}

type gatingService struct {
	db       *gorm.DB
	log      *logger.Logger
	sentRepo repos.SentMessageRepo
	now      func() time.Time
}

func NewGatingService(db *gorm.DB, baseLog *logger.Logger, sentRepo repos.SentMessageRepo) GatingService {
	return &gatingService{
		db:       db,
		log:      baseLog.With("service", "GatingService"),
		sentRepo: sentRepo,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

func (s *gatingService) ShouldEvaluate(ctx context.Context, tx *gorm.DB, userID uuid.UUID, signals []*types.Signal) (GateResult, error) {
	now := s.now()
	dayStart := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)

	sentToday, err := s.sentRepo.CountSentSince(ctx, tx, userID, dayStart)
	if err != nil {
		return GateResult{}, fmt.Errorf("count sent today: %w", err)
	}
	if sentToday > 0 {
		return GateResult{Proceed: false, Reason: "daily message cap reached"}, nil
	}

	usedIDs, err := s.sentRepo.ListSignalIDs(ctx, tx, userID)
	if err != nil {
		return GateResult{}, fmt.Errorf("list nudged signal ids: %w", err)
	}
	used := make(map[uuid.UUID]bool, len(usedIDs))
	for _, id := range usedIDs {
		used[id] = true
	}

	eligible := make([]*types.Signal, 0, len(signals))
	for _, sig := range signals {
		if used[sig.ID] {
			continue
		}
		if sig.Expired(now) {
			continue
		}
		eligible = append(eligible, sig)
	}
	if len(eligible) == 0 {
		return GateResult{Proceed: false, Reason: "no actionable signals"}, nil
	}

	return GateResult{Proceed: true, Reason: "ok", Eligible: eligible}, nil
}
