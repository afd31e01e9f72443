package services

import (
	"context"
	"fmt"
	"math/rand"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/yungbote/meridian-backend/internal/logger"
	"github.com/yungbote/meridian-backend/internal/repos"
	"github.com/yungbote/meridian-backend/internal/types"
)

// weeklyQuota bounds issuance per ISO week (Thursday-anchored, so the reset
// behaves at year boundaries).
const weeklyQuota = 2

var reflectivePrompts = []string{
	"What would invalidate this?",
	"Where have you seen the opposite hold?",
	"Who benefits if this is true?",
	"What would you do differently if you believed this fully?",
	"What's the strongest objection you can make to this?",
}

const undercurrentSchemaName = "undercurrent_synthesis"

var undercurrentSchema = map[string]any{
	"type":                 "object",
	"additionalProperties": false,
	"required":             []string{"observation", "interpretation", "uncertainty_clause"},
	"properties": map[string]any{
		"observation":        map[string]any{"type": "string"},
		"interpretation":     map[string]any{"type": "string"},
		"uncertainty_clause": map[string]any{"type": "string"},
	},
}

const undercurrentSystemPrompt = `You synthesize one "undercurrent" from anonymized fragments of recent
conversations between members: a concrete observation about a pattern in the
fragments, one interpretation of what it might mean, and an explicit
uncertainty clause naming how the interpretation could be wrong. Never
reference or identify any individual. Keep each part to one or two
sentences.`

// AccessResult is the read-side view of the content gate.
type AccessResult struct {
	Unlocked       bool                           `json:"unlocked"`
	CanReceiveNew  bool                           `json:"can_receive_new"`
	Pending        *types.UndercurrentInteraction `json:"pending,omitempty"`
	IssuedThisWeek int                            `json:"issued_this_week"`
	Reason         string                         `json:"reason"`
}

// UndercurrentService rations reflective content behind the reputation gate.
// Issuance re-validates every invariant inside the issuing transaction; the
// pending-response guard is a state-machine rule, not a cleanup job.
type UndercurrentService interface {
	CheckAccess(ctx context.Context, userID uuid.UUID) (AccessResult, error)
	GetUndercurrent(ctx context.Context, userID uuid.UUID) (*types.Undercurrent, *types.UndercurrentInteraction, error)
	SubmitResponse(ctx context.Context, interactionID uuid.UUID, responseText string) (*types.UndercurrentInteraction, error)
}

type undercurrentService struct {
	db              *gorm.DB
	log             *logger.Logger
	repRepo         repos.ReputationRepo
	ucRepo          repos.UndercurrentRepo
	interactionRepo repos.UndercurrentInteractionRepo
	introRepo       repos.IntroductionRepo
	judgment        JudgmentProvider
	reputation      ReputationService
	now             func() time.Time

	mu  sync.Mutex
	rng *rand.Rand

	// scoreWG lets tests wait for the async response-quality feedback.
	scoreWG sync.WaitGroup
}

func NewUndercurrentService(
	db *gorm.DB,
	baseLog *logger.Logger,
	repRepo repos.ReputationRepo,
	ucRepo repos.UndercurrentRepo,
	interactionRepo repos.UndercurrentInteractionRepo,
	introRepo repos.IntroductionRepo,
	judgment JudgmentProvider,
	reputation ReputationService,
	rng *rand.Rand,
) UndercurrentService {
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	return &undercurrentService{
		db:              db,
		log:             baseLog.With("service", "UndercurrentService"),
		repRepo:         repRepo,
		ucRepo:          ucRepo,
		interactionRepo: interactionRepo,
		introRepo:       introRepo,
		judgment:        judgment,
		reputation:      reputation,
		now:             func() time.Time { return time.Now().UTC() },
		rng:             rng,
	}
}

func (s *undercurrentService) CheckAccess(ctx context.Context, userID uuid.UUID) (AccessResult, error) {
	return s.checkAccess(ctx, nil, userID)
}

func (s *undercurrentService) checkAccess(ctx context.Context, tx *gorm.DB, userID uuid.UUID) (AccessResult, error) {
	record, err := s.repRepo.GetByUserID(ctx, tx, userID)
	if err != nil {
		return AccessResult{}, fmt.Errorf("load reputation record: %w", err)
	}
	if record == nil || !record.UndercurrentsUnlocked {
		return AccessResult{Unlocked: false, Reason: "undercurrents are not unlocked"}, nil
	}

	pending, err := s.interactionRepo.GetPendingByUser(ctx, tx, userID)
	if err != nil {
		return AccessResult{}, fmt.Errorf("load pending interaction: %w", err)
	}
	if pending != nil {
		return AccessResult{
			Unlocked: true,
			Pending:  pending,
			Reason:   "respond to your current undercurrent first",
		}, nil
	}

	year, week := s.now().ISOWeek()
	count, err := s.interactionRepo.CountForWeek(ctx, tx, userID, year, week)
	if err != nil {
		return AccessResult{}, fmt.Errorf("count weekly interactions: %w", err)
	}
	if count >= weeklyQuota {
		return AccessResult{
			Unlocked:       true,
			IssuedThisWeek: int(count),
			Reason:         "weekly quota reached",
		}, nil
	}

	return AccessResult{
		Unlocked:       true,
		CanReceiveNew:  true,
		IssuedThisWeek: int(count),
		Reason:         "ok",
	}, nil
}

func (s *undercurrentService) GetUndercurrent(ctx context.Context, userID uuid.UUID) (*types.Undercurrent, *types.UndercurrentInteraction, error) {
	// Cheap pre-check so a gated user never costs a judgment call.
	access, err := s.checkAccess(ctx, nil, userID)
	if err != nil {
		return nil, nil, err
	}
	if !access.Unlocked {
		return nil, nil, ErrNotUnlocked
	}
	if access.Pending != nil {
		return nil, nil, ErrPendingResponse
	}
	if !access.CanReceiveNew {
		return nil, nil, ErrWeeklyQuotaReached
	}

	// Synthesis happens before the transaction: a slow judgment call must not
	// hold row locks, and a failed one must not leave any row behind.
	uc, err := s.synthesize(ctx)
	if err != nil {
		s.log.Warn("undercurrent synthesis failed", "error", err)
		return nil, nil, ErrNothingAvailable
	}

	now := s.now()
	year, week := now.ISOWeek()

	var interaction *types.UndercurrentInteraction
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		access, err := s.checkAccess(ctx, tx, userID)
		if err != nil {
			return err
		}
		if !access.Unlocked {
			return ErrNotUnlocked
		}
		if access.Pending != nil {
			return ErrPendingResponse
		}
		if !access.CanReceiveNew {
			return ErrWeeklyQuotaReached
		}

		if _, err := s.ucRepo.Create(ctx, tx, uc); err != nil {
			return fmt.Errorf("store undercurrent: %w", err)
		}

		interaction = &types.UndercurrentInteraction{
			ID:             uuid.New(),
			UserID:         userID,
			UndercurrentID: uc.ID,
			ResponsePrompt: s.pickPrompt(),
			ViewedAt:       now,
			WeekNumber:     week,
			Year:           year,
		}
		if _, err := s.interactionRepo.Create(ctx, tx, interaction); err != nil {
			return fmt.Errorf("store interaction: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, nil, err
	}
	return uc, interaction, nil
}

func (s *undercurrentService) SubmitResponse(ctx context.Context, interactionID uuid.UUID, responseText string) (*types.UndercurrentInteraction, error) {
	responseText = strings.TrimSpace(responseText)
	if responseText == "" {
		return nil, fmt.Errorf("response text required")
	}

	var interaction *types.UndercurrentInteraction
	wrote := false
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		row, err := s.interactionRepo.GetByID(ctx, tx, interactionID)
		if err != nil {
			return fmt.Errorf("load interaction: %w", err)
		}
		if row.ResponseText != nil {
			// Duplicate submit: keep the first response, change nothing.
			interaction = row
			return nil
		}
		now := s.now()
		row.ResponseText = &responseText
		row.RespondedAt = &now
		if _, err := s.interactionRepo.Update(ctx, tx, row); err != nil {
			return fmt.Errorf("save response: %w", err)
		}
		interaction = row
		wrote = true
		return nil
	})
	if err != nil {
		return nil, err
	}
	if !wrote {
		return interaction, nil
	}

	// Quality scoring feeds reputation out of band; the caller never waits on
	// it and never observes its failure.
	s.scoreWG.Add(1)
	go s.scoreResponse(interaction.UserID, responseText)

	return interaction, nil
}

func (s *undercurrentService) scoreResponse(userID uuid.UUID, responseText string) {
	defer s.scoreWG.Done()
	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()

	out, err := s.judgment.JudgeJSON(ctx,
		`Score the quality of this reflective response from 0 to 10. Reward
specific, self-critical thinking; penalize vague agreement. Return only the
score.`,
		responseText,
		"response_quality",
		map[string]any{
			"type":                 "object",
			"additionalProperties": false,
			"required":             []string{"score"},
			"properties": map[string]any{
				"score": map[string]any{"type": "number", "minimum": 0, "maximum": 10},
			},
		},
	)
	if err != nil {
		s.log.Warn("response quality scoring failed", "user_id", userID.String(), "error", err)
		return
	}
	score, ok := floatField(out, "score")
	if !ok {
		s.log.Warn("response quality verdict malformed", "user_id", userID.String())
		return
	}
	if err := s.reputation.ApplyResponseQuality(ctx, userID, score); err != nil {
		s.log.Warn("response quality reputation update failed", "user_id", userID.String(), "error", err)
	}
}

func (s *undercurrentService) synthesize(ctx context.Context) (*types.Undercurrent, error) {
	samples, err := s.introRepo.ListRecentMessageSamples(ctx, nil, 40)
	if err != nil {
		return nil, fmt.Errorf("list theme samples: %w", err)
	}
	if len(samples) == 0 {
		return nil, ErrInsufficientEvidence
	}

	var b strings.Builder
	b.WriteString("Anonymized conversation fragments:\n")
	for _, sample := range samples {
		b.WriteString("- ")
		b.WriteString(sample)
		b.WriteString("\n")
	}

	out, err := s.judgment.JudgeJSON(ctx, undercurrentSystemPrompt, b.String(), undercurrentSchemaName, undercurrentSchema)
	if err != nil {
		return nil, err
	}
	observation, _ := out["observation"].(string)
	interpretation, _ := out["interpretation"].(string)
	uncertainty, _ := out["uncertainty_clause"].(string)
	if observation == "" || interpretation == "" || uncertainty == "" {
		return nil, fmt.Errorf("synthesis verdict malformed")
	}

	return &types.Undercurrent{
		ID:                uuid.New(),
		Observation:       observation,
		Interpretation:    interpretation,
		UncertaintyClause: uncertainty,
		CreatedAt:         s.now(),
	}, nil
}

func (s *undercurrentService) pickPrompt() string {
	s.mu.Lock()
	idx := s.rng.Intn(len(reflectivePrompts))
	s.mu.Unlock()
	return reflectivePrompts[idx]
}
