package services

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/yungbote/meridian-backend/internal/repos"
	"github.com/yungbote/meridian-backend/internal/types"
)

func newTestOrchestrator(t *testing.T, db *gorm.DB, locker PipelineLocker) OrchestratorService {
	t.Helper()
	log := newTestLogger(t)
	signalRepo := repos.NewSignalRepo(db, log)
	stateRepo := repos.NewUserStateRepo(db, log)
	sentRepo := repos.NewSentMessageRepo(db, log)
	chatRepo := repos.NewChatMessageRepo(db, log)

	deriver := NewStateDeriverService(db, log, signalRepo, stateRepo, sentRepo)
	gating := NewGatingService(db, log, sentRepo)
	evaluator := NewDecisionEvaluator(log, nil)
	composer := NewMessageComposerService(db, log, chatRepo, sentRepo, stateRepo)

	return NewOrchestratorService(log, deriver, gating, evaluator, composer, signalRepo, locker, 10, 2, 0)
}

func TestRun_MessagesOnceThenGates(t *testing.T) {
	db := newTestDB(t)
	now := time.Now().UTC()
	userID := uuid.New()

	flight := testSignal(types.SignalFlight, now.Add(-time.Hour), inHours(now, 6), "")
	flight.UserID = userID
	seedSignal(t, db, flight)

	o := newTestOrchestrator(t, db, NewLocalLocker())

	res := o.Run(context.Background(), userID)
	if !res.Success || !res.Messaged || res.Stage != StageComposed {
		t.Fatalf("expected composed run, got %+v", res)
	}
	if res.Decision != DecisionNudge {
		t.Fatalf("expected NUDGE decision, got %q", res.Decision)
	}

	// Same day, same signals: the gate holds.
	res = o.Run(context.Background(), userID)
	if !res.Success || res.Messaged || res.Stage != StageGated {
		t.Fatalf("expected gated second run, got %+v", res)
	}

	var count int64
	if err := db.Model(&types.SentMessage{}).Where("user_id = ?", userID).Count(&count).Error; err != nil {
		t.Fatalf("count sends: %v", err)
	}
	if count != 1 {
		t.Fatalf("expected exactly one send, got %d", count)
	}
}

func TestRun_SilentWhenNoCriteriaMet(t *testing.T) {
	db := newTestDB(t)
	now := time.Now().UTC()
	userID := uuid.New()

	// In window for gating but outside every nudge horizon.
	flight := testSignal(types.SignalFlight, now.Add(-time.Hour), inHours(now, 20), "")
	flight.UserID = userID
	seedSignal(t, db, flight)

	o := newTestOrchestrator(t, db, NewLocalLocker())
	res := o.Run(context.Background(), userID)
	if !res.Success || res.Messaged || res.Stage != StageJudgedSilent {
		t.Fatalf("expected judged-silent run, got %+v", res)
	}
}

func TestRun_NoSignalsGates(t *testing.T) {
	db := newTestDB(t)
	o := newTestOrchestrator(t, db, NewLocalLocker())
	res := o.Run(context.Background(), uuid.New())
	if !res.Success || res.Stage != StageGated {
		t.Fatalf("expected gated run for a quiet user, got %+v", res)
	}
}

func TestRun_BusyLockSkipsCleanly(t *testing.T) {
	db := newTestDB(t)
	userID := uuid.New()
	locker := NewLocalLocker()

	acquired, release, err := locker.Acquire(context.Background(), userID)
	if err != nil || !acquired {
		t.Fatalf("setup acquire failed: %v", err)
	}
	defer release()

	o := newTestOrchestrator(t, db, locker)
	res := o.Run(context.Background(), userID)
	if !res.Success || res.Stage != StageLocked {
		t.Fatalf("expected clean busy skip, got %+v", res)
	}
	if res.Messaged {
		t.Fatalf("busy skip must not message")
	}
}

func TestRunAll_SummarizesBatch(t *testing.T) {
	db := newTestDB(t)
	now := time.Now().UTC()

	nudgeUser := uuid.New()
	flight := testSignal(types.SignalFlight, now.Add(-time.Hour), inHours(now, 6), "")
	flight.UserID = nudgeUser
	seedSignal(t, db, flight)

	quietUser := uuid.New()
	distant := testSignal(types.SignalEvent, now.Add(-time.Hour), inHours(now, 100), "")
	distant.UserID = quietUser
	seedSignal(t, db, distant)

	o := newTestOrchestrator(t, db, NewLocalLocker())
	summary, results, err := o.RunAll(context.Background(), 0)
	if err != nil {
		t.Fatalf("RunAll: %v", err)
	}
	if summary.Total != 2 || len(results) != 2 {
		t.Fatalf("expected both users swept, got %+v", summary)
	}
	if summary.Success != 2 || summary.Failed != 0 {
		t.Fatalf("expected clean sweep, got %+v", summary)
	}
	if summary.Messaged != 1 || summary.JudgedSilent != 1 {
		t.Fatalf("expected one message and one silent verdict, got %+v", summary)
	}
}

func TestRunAll_HonorsLimit(t *testing.T) {
	db := newTestDB(t)
	now := time.Now().UTC()

	for i := 0; i < 3; i++ {
		sig := testSignal(types.SignalObsession, now.Add(-time.Hour), nil, "chess")
		sig.UserID = uuid.New()
		seedSignal(t, db, sig)
	}

	o := newTestOrchestrator(t, db, NewLocalLocker())
	summary, _, err := o.RunAll(context.Background(), 2)
	if err != nil {
		t.Fatalf("RunAll: %v", err)
	}
	if summary.Total != 2 {
		t.Fatalf("expected limit to cap the sweep at 2, got %d", summary.Total)
	}
}
