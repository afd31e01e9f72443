package services

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/yungbote/meridian-backend/internal/logger"
	"github.com/yungbote/meridian-backend/internal/repos"
	"github.com/yungbote/meridian-backend/internal/types"
)

// Phase values folded into the snapshot.
const (
	CareerStateStable       = "stable"
	CareerStateInterviewing = "interviewing"
	CareerStateTransition   = "in_transition"

	TravelStateHome     = "home"
	TravelStateUpcoming = "upcoming_trip"

	EventStateNone     = "none"
	EventStateUpcoming = "upcoming"
)

// StateDeriverService folds recent signals into the per-user snapshot. The
// fold is idempotent: a failed pipeline run just re-derives on the next
// cycle. The signal cursor replaces any ambient "last processed" state.
type StateDeriverService interface {
	Derive(ctx context.Context, tx *gorm.DB, userID uuid.UUID) (*types.UserState, []*types.Signal, error)
}

type stateDeriverService struct {
	db         *gorm.DB
	log        *logger.Logger
	signalRepo repos.SignalRepo
	stateRepo  repos.UserStateRepo
	sentRepo   repos.SentMessageRepo
	window     time.Duration
	now        func() time.Time
}

func NewStateDeriverService(db *gorm.DB, baseLog *logger.Logger, signalRepo repos.SignalRepo, stateRepo repos.UserStateRepo, sentRepo repos.SentMessageRepo) StateDeriverService {
	return &stateDeriverService{
		db:         db,
		log:        baseLog.With("service", "StateDeriverService"),
		signalRepo: signalRepo,
		stateRepo:  stateRepo,
		sentRepo:   sentRepo,
		window:     14 * 24 * time.Hour,
		now:        func() time.Time { return time.Now().UTC() },
	}
}

// Derive returns the refreshed snapshot plus the full recent-signal window.
// The window (not just signals past the cursor) is returned because some
// decision rules need corroboration from older siblings.
func (s *stateDeriverService) Derive(ctx context.Context, tx *gorm.DB, userID uuid.UUID) (*types.UserState, []*types.Signal, error) {
	now := s.now()
	windowStart := now.Add(-s.window)

	signals, err := s.signalRepo.ListRecentByUser(ctx, tx, userID, windowStart)
	if err != nil {
		return nil, nil, fmt.Errorf("list recent signals: %w", err)
	}

	state, err := s.stateRepo.GetByUserID(ctx, tx, userID)
	if err != nil {
		return nil, nil, fmt.Errorf("load user state: %w", err)
	}
	if state == nil {
		state = &types.UserState{
			ID:           uuid.New(),
			UserID:       userID,
			CareerState:  CareerStateStable,
			TravelState:  TravelStateHome,
			EventState:   EventStateNone,
			FatigueScore: 0,
		}
	}

	s.fold(state, signals, now)

	nudges, err := s.sentRepo.CountSentSince(ctx, tx, userID, now.Add(-24*time.Hour))
	if err != nil {
		return nil, nil, fmt.Errorf("count recent nudges: %w", err)
	}
	state.Nudges24h = int(nudges)

	// Fatigue tracks recent proactive pressure; it decays toward zero when
	// the system has been quiet.
	state.FatigueScore = state.FatigueScore*0.5 + float64(nudges)

	cursor := state.SignalCursor
	for _, sig := range signals {
		if cursor == nil || sig.OccurredAt.After(*cursor) {
			t := sig.OccurredAt
			cursor = &t
		}
	}
	state.SignalCursor = cursor
	state.UpdatedAt = now

	if _, err := s.stateRepo.Upsert(ctx, tx, state); err != nil {
		return nil, nil, fmt.Errorf("upsert user state: %w", err)
	}
	return state, signals, nil
}

// fold recomputes the phase fields wholesale from the window; resets happen
// through re-derivation, never by explicit clearing.
func (s *stateDeriverService) fold(state *types.UserState, signals []*types.Signal, now time.Time) {
	careerState := CareerStateStable
	travelState := TravelStateHome
	travelDest := ""
	eventState := EventStateNone
	eventName := ""

	for _, sig := range signals {
		if sig.Expired(now) {
			continue
		}
		switch sig.Type {
		case types.SignalInterview:
			careerState = CareerStateInterviewing
		case types.SignalTransition:
			if careerState == CareerStateStable {
				careerState = CareerStateTransition
			}
		case types.SignalFlight:
			travelState = TravelStateUpcoming
			if dest := metadataString(sig, "destination"); dest != "" {
				travelDest = dest
			}
		case types.SignalEvent:
			eventState = EventStateUpcoming
			if name := metadataString(sig, "event_name"); name != "" {
				eventName = name
			}
		}
	}

	state.CareerState = careerState
	state.TravelState = travelState
	state.TravelDestination = travelDest
	state.EventState = eventState
	state.NextEventName = eventName
}

func metadataString(sig *types.Signal, key string) string {
	if len(sig.Metadata) == 0 {
		return ""
	}
	var meta map[string]any
	if err := json.Unmarshal(sig.Metadata, &meta); err != nil {
		return ""
	}
	if v, ok := meta[key].(string); ok {
		return v
	}
	return ""
}
