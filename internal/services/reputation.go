package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/yungbote/meridian-backend/internal/logger"
	"github.com/yungbote/meridian-backend/internal/repos"
	"github.com/yungbote/meridian-backend/internal/types"
)

// Scaling constants applied to raw judgment deltas. Asymmetry is deliberate:
// discretion decays three times faster than it grows, trust destroys faster
// than it builds.
const (
	impactGrowthScale     = 0.15
	thoughtGrowthScale    = 0.2
	thoughtDecayScale     = 0.15
	discretionGrowthScale = 0.1
	discretionDecayScale  = 0.3
	pullScale             = 0.25

	// Updates where every scaled delta sits under this floor are discarded
	// to keep marginal conversations from churning scores.
	deltaNoiseFloor = 0.05

	discretionFreezeThreshold = 20.0
	freezeWindow              = 7 * 24 * time.Hour

	unlockThreshold = 15.0

	minIntroMessages   = 5
	minSubjectMessages = 2
)

const reputationSchemaName = "introduction_reputation_verdict"

var reputationSchema = map[string]any{
	"type":                 "object",
	"additionalProperties": false,
	"required":             []string{"impact_delta", "thought_quality_delta", "discretion_delta", "pull_delta", "should_freeze", "reasoning"},
	"properties": map[string]any{
		"impact_delta":          map[string]any{"type": "number", "minimum": -1, "maximum": 1},
		"thought_quality_delta": map[string]any{"type": "number", "minimum": -1, "maximum": 1},
		"discretion_delta":      map[string]any{"type": "number", "minimum": -1, "maximum": 1},
		"pull_delta":            map[string]any{"type": "number", "minimum": -1, "maximum": 1},
		"should_freeze":         map[string]any{"type": "boolean"},
		"reasoning":             map[string]any{"type": "string"},
	},
}

const reputationSystemPrompt = `You score one participant of a peer-to-peer introduction along four axes:
impact (did they move the other person's thinking or situation forward),
thought quality (depth and originality of what they contributed),
discretion (respect for confidences and boundaries), and
pull (evidence the other person sought them out or wanted more).
Each delta is in [-1, 1] relative to a neutral conversation. Set should_freeze
only for a clear discretion violation such as leaking something shared in
confidence. Be conservative: most ordinary conversations deserve deltas near
zero.`

// ReputationService mutates the four trust scores from evaluated peer
// conversations. Callers fire-and-forget; the error return exists for
// logging and tests.
type ReputationService interface {
	Evaluate(ctx context.Context, introductionID, userID uuid.UUID, trigger string) error
	ApplyResponseQuality(ctx context.Context, userID uuid.UUID, score float64) error
}

type reputationService struct {
	db        *gorm.DB
	log       *logger.Logger
	introRepo repos.IntroductionRepo
	repRepo   repos.ReputationRepo
	judgment  JudgmentProvider
	now       func() time.Time
}

func NewReputationService(db *gorm.DB, baseLog *logger.Logger, introRepo repos.IntroductionRepo, repRepo repos.ReputationRepo, judgment JudgmentProvider) ReputationService {
	return &reputationService{
		db:        db,
		log:       baseLog.With("service", "ReputationService"),
		introRepo: introRepo,
		repRepo:   repRepo,
		judgment:  judgment,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

type rawVerdict struct {
	impact       float64
	thought      float64
	discretion   float64
	pull         float64
	shouldFreeze bool
}

func (s *reputationService) Evaluate(ctx context.Context, introductionID, userID uuid.UUID, trigger string) error {
	intro, err := s.introRepo.GetByID(ctx, nil, introductionID)
	if err != nil {
		return fmt.Errorf("load introduction: %w", err)
	}
	if intro.InitiatorID != userID && intro.RecipientID != userID {
		return fmt.Errorf("user is not a participant of introduction")
	}
	counterpartID := intro.InitiatorID
	if counterpartID == userID {
		counterpartID = intro.RecipientID
	}

	messages, err := s.introRepo.ListMessages(ctx, nil, introductionID)
	if err != nil {
		return fmt.Errorf("load introduction messages: %w", err)
	}

	// Evidence floor: never score sparse conversations, and never penalize
	// the absence of evidence.
	subjectCount := 0
	for _, m := range messages {
		if m.SenderID == userID {
			subjectCount++
		}
	}
	if len(messages) < minIntroMessages || subjectCount < minSubjectMessages {
		s.log.Debug("reputation evaluation skipped",
			"introduction_id", introductionID.String(),
			"total_messages", len(messages),
			"subject_messages", subjectCount,
		)
		return nil
	}

	userInitiated := intro.InitiatorID == userID
	isReturning := false
	if len(messages) > 1 {
		span := messages[len(messages)-1].CreatedAt.Sub(messages[0].CreatedAt)
		isReturning = span >= 24*time.Hour
	}

	var counterpartAggregate float64
	if rec, err := s.repRepo.GetByUserID(ctx, nil, counterpartID); err != nil {
		return fmt.Errorf("load counterpart reputation: %w", err)
	} else if rec != nil {
		counterpartAggregate = rec.TotalScore()
	}

	debrief, err := s.introRepo.GetDebriefByAuthor(ctx, nil, introductionID, counterpartID)
	if err != nil {
		return fmt.Errorf("load counterpart debrief: %w", err)
	}

	prompt := s.buildPrompt(userID, messages, userInitiated, isReturning, counterpartAggregate, debrief, trigger)

	out, err := s.judgment.JudgeJSON(ctx, reputationSystemPrompt, prompt, reputationSchemaName, reputationSchema)
	if err != nil {
		// Fail closed: an unreachable or confused judge never mutates scores.
		return fmt.Errorf("judgment call failed: %w", err)
	}
	verdict, err := parseVerdict(out)
	if err != nil {
		return fmt.Errorf("judgment verdict malformed: %w", err)
	}

	return s.apply(ctx, userID, verdict)
}

// ApplyResponseQuality feeds an undercurrent response score (0-10) back into
// thought quality as a small bounded delta.
func (s *reputationService) ApplyResponseQuality(ctx context.Context, userID uuid.UUID, score float64) error {
	if score < 0 {
		score = 0
	}
	if score > 10 {
		score = 10
	}
	// Map 0-10 onto a raw delta in [-1, 1] centered at 5.
	raw := (score - 5) / 5
	return s.apply(ctx, userID, rawVerdict{thought: raw})
}

// apply scales, floors, clamps and persists a verdict inside one transaction,
// re-reading the record immediately before the write.
func (s *reputationService) apply(ctx context.Context, userID uuid.UUID, verdict rawVerdict) error {
	now := s.now()
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		record, err := s.repRepo.GetByUserID(ctx, tx, userID)
		if err != nil {
			return fmt.Errorf("load reputation record: %w", err)
		}
		if record == nil {
			record = &types.ReputationRecord{
				ID:           uuid.New(),
				UserID:       userID,
				LastActiveAt: now,
			}
		}

		impact := clampRaw(verdict.impact)
		if impact < 0 {
			// Impact only grows in this design.
			impact = 0
		}
		impact *= impactGrowthScale

		thought := scaleAsymmetric(clampRaw(verdict.thought), thoughtGrowthScale, thoughtDecayScale)
		discretion := scaleAsymmetric(clampRaw(verdict.discretion), discretionGrowthScale, discretionDecayScale)
		pull := clampRaw(verdict.pull) * pullScale

		if abs(impact) < deltaNoiseFloor && abs(thought) < deltaNoiseFloor &&
			abs(discretion) < deltaNoiseFloor && abs(pull) < deltaNoiseFloor {
			s.log.Debug("reputation update below noise floor, discarded", "user_id", userID.String())
			return nil
		}

		// Freeze suspends positive effects only; violations still land.
		if record.Frozen(now) {
			if impact > 0 {
				impact = 0
			}
			if thought > 0 {
				thought = 0
			}
			if discretion > 0 {
				discretion = 0
			}
			if pull > 0 {
				pull = 0
			}
		}

		record.ImpactScore = clampScore(record.ImpactScore + impact)
		record.ThoughtQuality = clampScore(record.ThoughtQuality + thought)
		record.DiscretionScore = clampScore(record.DiscretionScore + discretion)
		record.PullScore = clampScore(record.PullScore + pull)
		record.LastActiveAt = now
		record.UpdatedAt = now

		// A freeze arms on an explicit violation, or when a decay drags
		// discretion under the threshold. Merely sitting low (records start
		// at zero) never freezes on its own.
		if verdict.shouldFreeze || (discretion < 0 && record.DiscretionScore < discretionFreezeThreshold) {
			frozenUntil := now.Add(freezeWindow)
			record.FrozenUntil = &frozenUntil
		}

		// One-way latch: unlock is never reversed by later evaluations.
		if !record.UndercurrentsUnlocked && record.TotalScore() >= unlockThreshold {
			record.UndercurrentsUnlocked = true
			unlockedAt := now
			record.UndercurrentsUnlockedAt = &unlockedAt
			s.log.Info("undercurrents unlocked", "user_id", userID.String())
		}

		if _, err := s.repRepo.Save(ctx, tx, record); err != nil {
			return fmt.Errorf("save reputation record: %w", err)
		}
		return nil
	})
}

func (s *reputationService) buildPrompt(userID uuid.UUID, messages []*types.IntroMessage, userInitiated, isReturning bool, counterpartAggregate float64, debrief *types.IntroDebrief, trigger string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Trigger: %s\n", trigger)
	fmt.Fprintf(&b, "Subject initiated the conversation: %t\n", userInitiated)
	fmt.Fprintf(&b, "Conversation spans more than one day: %t\n", isReturning)
	fmt.Fprintf(&b, "Counterpart aggregate trust score: %.1f\n", counterpartAggregate)
	if debrief != nil && debrief.Content != "" {
		fmt.Fprintf(&b, "Counterpart debrief (rating %d/5): %s\n", debrief.Rating, debrief.Content)
	}
	b.WriteString("\nTranscript (SUBJECT is the person being scored):\n")
	for _, m := range messages {
		role := "OTHER"
		if m.SenderID == userID {
			role = "SUBJECT"
		}
		fmt.Fprintf(&b, "%s: %s\n", role, m.Content)
	}
	return b.String()
}

func parseVerdict(out map[string]any) (rawVerdict, error) {
	var v rawVerdict
	var ok bool
	if v.impact, ok = floatField(out, "impact_delta"); !ok {
		return v, fmt.Errorf("missing impact_delta")
	}
	if v.thought, ok = floatField(out, "thought_quality_delta"); !ok {
		return v, fmt.Errorf("missing thought_quality_delta")
	}
	if v.discretion, ok = floatField(out, "discretion_delta"); !ok {
		return v, fmt.Errorf("missing discretion_delta")
	}
	if v.pull, ok = floatField(out, "pull_delta"); !ok {
		return v, fmt.Errorf("missing pull_delta")
	}
	freeze, ok := out["should_freeze"].(bool)
	if !ok {
		return v, fmt.Errorf("missing should_freeze")
	}
	v.shouldFreeze = freeze
	return v, nil
}

func floatField(m map[string]any, key string) (float64, bool) {
	switch t := m[key].(type) {
	case float64:
		return t, true
	case int:
		return float64(t), true
	default:
		return 0, false
	}
}

func clampRaw(v float64) float64 {
	if v < -1 {
		return -1
	}
	if v > 1 {
		return 1
	}
	return v
}

func scaleAsymmetric(raw, growth, decay float64) float64 {
	if raw >= 0 {
		return raw * growth
	}
	return raw * decay
}

func clampScore(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}
