package services

import (
	"context"
	"fmt"
	"math"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/yungbote/meridian-backend/internal/repos"
	"github.com/yungbote/meridian-backend/internal/types"
)

func newTestReputation(t *testing.T, db *gorm.DB, judgment JudgmentProvider, now time.Time) *reputationService {
	t.Helper()
	log := newTestLogger(t)
	return &reputationService{
		db:        db,
		log:       log.With("service", "ReputationService"),
		introRepo: repos.NewIntroductionRepo(db, log),
		repRepo:   repos.NewReputationRepo(db, log),
		judgment:  judgment,
		now:       func() time.Time { return now },
	}
}

// seedIntro creates an introduction with the requested message counts,
// alternating senders so ordering is realistic.
func seedIntro(t *testing.T, db *gorm.DB, subject, other uuid.UUID, subjectMsgs, otherMsgs int, base time.Time) uuid.UUID {
	t.Helper()
	intro := &types.Introduction{
		ID:          uuid.New(),
		InitiatorID: subject,
		RecipientID: other,
		StartedAt:   base,
		CreatedAt:   base,
	}
	if err := db.Create(intro).Error; err != nil {
		t.Fatalf("seed introduction: %v", err)
	}
	i := 0
	for subjectMsgs > 0 || otherMsgs > 0 {
		sender := other
		if subjectMsgs >= otherMsgs {
			sender = subject
			subjectMsgs--
		} else {
			otherMsgs--
		}
		msg := &types.IntroMessage{
			ID:             uuid.New(),
			IntroductionID: intro.ID,
			SenderID:       sender,
			Content:        fmt.Sprintf("message %d", i),
			CreatedAt:      base.Add(time.Duration(i) * time.Minute),
		}
		if err := db.Create(msg).Error; err != nil {
			t.Fatalf("seed intro message: %v", err)
		}
		i++
	}
	return intro.ID
}

func seedReputation(t *testing.T, db *gorm.DB, userID uuid.UUID, impact, thought, discretion, pull float64) *types.ReputationRecord {
	t.Helper()
	record := &types.ReputationRecord{
		ID:              uuid.New(),
		UserID:          userID,
		ImpactScore:     impact,
		ThoughtQuality:  thought,
		DiscretionScore: discretion,
		PullScore:       pull,
		LastActiveAt:    time.Now().UTC(),
	}
	if err := db.Create(record).Error; err != nil {
		t.Fatalf("seed reputation record: %v", err)
	}
	return record
}

func loadReputation(t *testing.T, db *gorm.DB, userID uuid.UUID) *types.ReputationRecord {
	t.Helper()
	var record types.ReputationRecord
	if err := db.Where("user_id = ?", userID).First(&record).Error; err != nil {
		t.Fatalf("load reputation record: %v", err)
	}
	return &record
}

func reputationRows(t *testing.T, db *gorm.DB, userID uuid.UUID) int64 {
	t.Helper()
	var count int64
	if err := db.Model(&types.ReputationRecord{}).Where("user_id = ?", userID).Count(&count).Error; err != nil {
		t.Fatalf("count reputation rows: %v", err)
	}
	return count
}

func verdictOutput(impact, thought, discretion, pull float64, freeze bool) map[string]any {
	return map[string]any{
		"impact_delta":          impact,
		"thought_quality_delta": thought,
		"discretion_delta":      discretion,
		"pull_delta":            pull,
		"should_freeze":         freeze,
		"reasoning":             "test",
	}
}

func closeTo(a, b float64) bool { return math.Abs(a-b) < 1e-9 }

func TestEvaluate_AppliesScaledGrowthDeltas(t *testing.T) {
	db := newTestDB(t)
	now := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)
	subject, other := uuid.New(), uuid.New()
	introID := seedIntro(t, db, subject, other, 3, 3, now.Add(-time.Hour))

	judge := &fakeJudgment{outputs: map[string]map[string]any{
		reputationSchemaName: verdictOutput(1, 1, 1, 1, false),
	}}
	s := newTestReputation(t, db, judge, now)

	if err := s.Evaluate(context.Background(), introID, subject, "conversation_end"); err != nil {
		t.Fatalf("Evaluate: %v", err)
	}

	record := loadReputation(t, db, subject)
	if !closeTo(record.ImpactScore, 0.15) || !closeTo(record.ThoughtQuality, 0.2) ||
		!closeTo(record.DiscretionScore, 0.1) || !closeTo(record.PullScore, 0.25) {
		t.Fatalf("unexpected scaled scores: %+v", record)
	}
	if record.FrozenUntil != nil {
		t.Fatalf("growth-only update must not freeze a fresh record")
	}
	if record.UndercurrentsUnlocked {
		t.Fatalf("total %.2f should not unlock", record.TotalScore())
	}
}

func TestEvaluate_DecayIsAsymmetric(t *testing.T) {
	db := newTestDB(t)
	now := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)
	subject, other := uuid.New(), uuid.New()
	introID := seedIntro(t, db, subject, other, 3, 3, now.Add(-time.Hour))
	seedReputation(t, db, subject, 50, 50, 50, 50)

	judge := &fakeJudgment{outputs: map[string]map[string]any{
		reputationSchemaName: verdictOutput(-1, -1, -1, -1, false),
	}}
	s := newTestReputation(t, db, judge, now)

	if err := s.Evaluate(context.Background(), introID, subject, "conversation_end"); err != nil {
		t.Fatalf("Evaluate: %v", err)
	}

	record := loadReputation(t, db, subject)
	if !closeTo(record.ImpactScore, 50) {
		t.Fatalf("impact never decays, got %v", record.ImpactScore)
	}
	if !closeTo(record.ThoughtQuality, 49.85) {
		t.Fatalf("expected thought 49.85, got %v", record.ThoughtQuality)
	}
	if !closeTo(record.DiscretionScore, 49.7) {
		t.Fatalf("expected discretion 49.7 (3x decay), got %v", record.DiscretionScore)
	}
	if !closeTo(record.PullScore, 49.75) {
		t.Fatalf("expected pull 49.75, got %v", record.PullScore)
	}
}

func TestEvaluate_NoiseFloorDiscardsMarginalUpdates(t *testing.T) {
	db := newTestDB(t)
	now := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)
	subject, other := uuid.New(), uuid.New()
	introID := seedIntro(t, db, subject, other, 3, 3, now.Add(-time.Hour))

	judge := &fakeJudgment{outputs: map[string]map[string]any{
		reputationSchemaName: verdictOutput(0.1, 0.1, 0.1, 0.1, false),
	}}
	s := newTestReputation(t, db, judge, now)

	if err := s.Evaluate(context.Background(), introID, subject, "conversation_end"); err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	if n := reputationRows(t, db, subject); n != 0 {
		t.Fatalf("discarded update must not create a record, found %d rows", n)
	}
}

func TestEvaluate_EvidenceFloorIsANoOp(t *testing.T) {
	db := newTestDB(t)
	now := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)
	judge := &fakeJudgment{outputs: map[string]map[string]any{
		reputationSchemaName: verdictOutput(1, 1, 1, 1, false),
	}}

	t.Run("too few total messages", func(t *testing.T) {
		subject, other := uuid.New(), uuid.New()
		introID := seedIntro(t, db, subject, other, 2, 2, now.Add(-time.Hour))
		s := newTestReputation(t, db, judge, now)
		if err := s.Evaluate(context.Background(), introID, subject, "conversation_end"); err != nil {
			t.Fatalf("Evaluate: %v", err)
		}
		if n := reputationRows(t, db, subject); n != 0 {
			t.Fatalf("sparse conversation must not be scored")
		}
	})

	t.Run("too few subject messages", func(t *testing.T) {
		subject, other := uuid.New(), uuid.New()
		introID := seedIntro(t, db, subject, other, 1, 5, now.Add(-time.Hour))
		s := newTestReputation(t, db, judge, now)
		if err := s.Evaluate(context.Background(), introID, subject, "conversation_end"); err != nil {
			t.Fatalf("Evaluate: %v", err)
		}
		if n := reputationRows(t, db, subject); n != 0 {
			t.Fatalf("conversation with a silent subject must not be scored")
		}
	})

	if judge.callCount(reputationSchemaName) != 0 {
		t.Fatalf("evidence floor must short-circuit before any judgment call")
	}
}

func TestEvaluate_JudgmentFailureMutatesNothing(t *testing.T) {
	db := newTestDB(t)
	now := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)
	subject, other := uuid.New(), uuid.New()
	introID := seedIntro(t, db, subject, other, 3, 3, now.Add(-time.Hour))

	judge := &fakeJudgment{errs: map[string]error{
		reputationSchemaName: fmt.Errorf("model unavailable"),
	}}
	s := newTestReputation(t, db, judge, now)

	if err := s.Evaluate(context.Background(), introID, subject, "conversation_end"); err == nil {
		t.Fatalf("expected error when judgment is unreachable")
	}
	if n := reputationRows(t, db, subject); n != 0 {
		t.Fatalf("failed judgment must never mutate scores")
	}
}

func TestEvaluate_RejectsNonParticipant(t *testing.T) {
	db := newTestDB(t)
	now := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)
	subject, other := uuid.New(), uuid.New()
	introID := seedIntro(t, db, subject, other, 3, 3, now.Add(-time.Hour))

	s := newTestReputation(t, db, &fakeJudgment{}, now)
	if err := s.Evaluate(context.Background(), introID, uuid.New(), "conversation_end"); err == nil {
		t.Fatalf("expected error for a user outside the introduction")
	}
}

func TestEvaluate_ShouldFreezeSetsWindow(t *testing.T) {
	db := newTestDB(t)
	now := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)
	subject, other := uuid.New(), uuid.New()
	introID := seedIntro(t, db, subject, other, 3, 3, now.Add(-time.Hour))
	seedReputation(t, db, subject, 50, 50, 50, 50)

	judge := &fakeJudgment{outputs: map[string]map[string]any{
		reputationSchemaName: verdictOutput(0, 0, -0.5, 0, true),
	}}
	s := newTestReputation(t, db, judge, now)

	if err := s.Evaluate(context.Background(), introID, subject, "debrief"); err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	record := loadReputation(t, db, subject)
	if record.FrozenUntil == nil || !record.FrozenUntil.Equal(now.Add(7*24*time.Hour)) {
		t.Fatalf("expected 7 day freeze window, got %v", record.FrozenUntil)
	}
}

func TestEvaluate_DiscretionDecayBelowThresholdFreezes(t *testing.T) {
	db := newTestDB(t)
	now := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)
	subject, other := uuid.New(), uuid.New()
	introID := seedIntro(t, db, subject, other, 3, 3, now.Add(-time.Hour))
	seedReputation(t, db, subject, 50, 50, 20.1, 50)

	judge := &fakeJudgment{outputs: map[string]map[string]any{
		reputationSchemaName: verdictOutput(0, 0, -1, 0, false),
	}}
	s := newTestReputation(t, db, judge, now)

	if err := s.Evaluate(context.Background(), introID, subject, "conversation_end"); err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	record := loadReputation(t, db, subject)
	if !closeTo(record.DiscretionScore, 19.8) {
		t.Fatalf("expected discretion 19.8, got %v", record.DiscretionScore)
	}
	if record.FrozenUntil == nil {
		t.Fatalf("decay under the threshold must arm a freeze")
	}
}

func TestEvaluate_LowDiscretionAloneDoesNotFreeze(t *testing.T) {
	db := newTestDB(t)
	now := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)
	subject, other := uuid.New(), uuid.New()
	introID := seedIntro(t, db, subject, other, 3, 3, now.Add(-time.Hour))

	// Fresh records start at zero; a growth-only update from there must not
	// self-freeze just because the score is still low.
	judge := &fakeJudgment{outputs: map[string]map[string]any{
		reputationSchemaName: verdictOutput(0, 0, 1, 0, false),
	}}
	s := newTestReputation(t, db, judge, now)

	if err := s.Evaluate(context.Background(), introID, subject, "conversation_end"); err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	record := loadReputation(t, db, subject)
	if record.FrozenUntil != nil {
		t.Fatalf("growth under the threshold must not freeze")
	}
}

func TestEvaluate_FreezeSuppressesPositiveDeltasOnly(t *testing.T) {
	db := newTestDB(t)
	now := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)
	subject, other := uuid.New(), uuid.New()
	introID := seedIntro(t, db, subject, other, 3, 3, now.Add(-time.Hour))

	record := seedReputation(t, db, subject, 50, 50, 50, 50)
	frozenUntil := now.Add(3 * 24 * time.Hour)
	record.FrozenUntil = &frozenUntil
	if err := db.Save(record).Error; err != nil {
		t.Fatalf("freeze seed record: %v", err)
	}

	judge := &fakeJudgment{outputs: map[string]map[string]any{
		reputationSchemaName: verdictOutput(1, -1, 0, 1, false),
	}}
	s := newTestReputation(t, db, judge, now)

	if err := s.Evaluate(context.Background(), introID, subject, "conversation_end"); err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	got := loadReputation(t, db, subject)
	if !closeTo(got.ImpactScore, 50) || !closeTo(got.PullScore, 50) {
		t.Fatalf("positive deltas must not land during a freeze: %+v", got)
	}
	if !closeTo(got.ThoughtQuality, 49.85) {
		t.Fatalf("negative deltas still land during a freeze, got %v", got.ThoughtQuality)
	}
}

func TestEvaluate_ScoresClampToBounds(t *testing.T) {
	db := newTestDB(t)
	now := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)
	subject, other := uuid.New(), uuid.New()
	introID := seedIntro(t, db, subject, other, 3, 3, now.Add(-time.Hour))
	seedReputation(t, db, subject, 99.95, 0.1, 50, 50)

	judge := &fakeJudgment{outputs: map[string]map[string]any{
		reputationSchemaName: verdictOutput(1, -1, 0, 0, false),
	}}
	s := newTestReputation(t, db, judge, now)

	if err := s.Evaluate(context.Background(), introID, subject, "conversation_end"); err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	record := loadReputation(t, db, subject)
	if record.ImpactScore != 100 {
		t.Fatalf("expected impact clamped to 100, got %v", record.ImpactScore)
	}
	if record.ThoughtQuality != 0 {
		t.Fatalf("expected thought clamped to 0, got %v", record.ThoughtQuality)
	}
}

func TestEvaluate_UnlockLatchIsOneWay(t *testing.T) {
	db := newTestDB(t)
	now := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)
	subject, other := uuid.New(), uuid.New()
	introID := seedIntro(t, db, subject, other, 3, 3, now.Add(-time.Hour))
	seedReputation(t, db, subject, 5, 5, 3, 1.9)

	judge := &fakeJudgment{outputs: map[string]map[string]any{
		reputationSchemaName: verdictOutput(0, 0, 0, 1, false),
	}}
	s := newTestReputation(t, db, judge, now)

	if err := s.Evaluate(context.Background(), introID, subject, "conversation_end"); err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	record := loadReputation(t, db, subject)
	if !record.UndercurrentsUnlocked || record.UndercurrentsUnlockedAt == nil {
		t.Fatalf("expected unlock at total %.2f", record.TotalScore())
	}

	// Later decay below the threshold must never re-lock.
	judge.outputs[reputationSchemaName] = verdictOutput(0, -1, -1, -1, false)
	if err := s.Evaluate(context.Background(), introID, subject, "conversation_end"); err != nil {
		t.Fatalf("second Evaluate: %v", err)
	}
	record = loadReputation(t, db, subject)
	if record.TotalScore() >= unlockThreshold {
		t.Fatalf("test setup: expected total below threshold, got %.2f", record.TotalScore())
	}
	if !record.UndercurrentsUnlocked {
		t.Fatalf("unlock latch reversed by negative evaluation")
	}
}

func TestApplyResponseQuality_MapsScoreToThoughtDelta(t *testing.T) {
	db := newTestDB(t)
	now := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)
	s := newTestReputation(t, db, &fakeJudgment{}, now)

	t.Run("high score grows thought quality", func(t *testing.T) {
		userID := uuid.New()
		seedReputation(t, db, userID, 10, 10, 10, 10)
		if err := s.ApplyResponseQuality(context.Background(), userID, 10); err != nil {
			t.Fatalf("ApplyResponseQuality: %v", err)
		}
		if got := loadReputation(t, db, userID).ThoughtQuality; !closeTo(got, 10.2) {
			t.Fatalf("expected 10.2, got %v", got)
		}
	})

	t.Run("low score decays thought quality", func(t *testing.T) {
		userID := uuid.New()
		seedReputation(t, db, userID, 10, 10, 10, 10)
		if err := s.ApplyResponseQuality(context.Background(), userID, 0); err != nil {
			t.Fatalf("ApplyResponseQuality: %v", err)
		}
		if got := loadReputation(t, db, userID).ThoughtQuality; !closeTo(got, 9.85) {
			t.Fatalf("expected 9.85, got %v", got)
		}
	})

	t.Run("neutral score is discarded", func(t *testing.T) {
		userID := uuid.New()
		seedReputation(t, db, userID, 10, 10, 10, 10)
		if err := s.ApplyResponseQuality(context.Background(), userID, 5); err != nil {
			t.Fatalf("ApplyResponseQuality: %v", err)
		}
		if got := loadReputation(t, db, userID).ThoughtQuality; !closeTo(got, 10) {
			t.Fatalf("neutral score must not move the score, got %v", got)
		}
	})
}
