package services

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/yungbote/meridian-backend/internal/logger"
	"github.com/yungbote/meridian-backend/internal/types"
)

func newTestLogger(t *testing.T) *logger.Logger {
	t.Helper()
	log, err := logger.New("production")
	if err != nil {
		t.Fatalf("init test logger: %v", err)
	}
	return log
}

// newTestDB opens an in-memory sqlite database pinned to a single connection
// so every query and transaction sees the same store.
func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("unwrap sql.DB: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	sqlDB.SetMaxIdleConns(1)

	if err := db.AutoMigrate(
		&types.Signal{},
		&types.UserState{},
		&types.SentMessage{},
		&types.ChatMessage{},
		&types.Introduction{},
		&types.IntroMessage{},
		&types.IntroDebrief{},
		&types.ReputationRecord{},
		&types.Undercurrent{},
		&types.UndercurrentInteraction{},
	); err != nil {
		t.Fatalf("automigrate: %v", err)
	}
	return db
}

// fakeJudgment returns canned outputs keyed by schema name and counts calls,
// standing in for the hosted judgment model.
type fakeJudgment struct {
	mu      sync.Mutex
	outputs map[string]map[string]any
	errs    map[string]error
	calls   map[string]int
}

func (f *fakeJudgment) JudgeJSON(ctx context.Context, system string, user string, schemaName string, schema map[string]any) (map[string]any, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.calls == nil {
		f.calls = make(map[string]int)
	}
	f.calls[schemaName]++
	if err := f.errs[schemaName]; err != nil {
		return nil, err
	}
	out, ok := f.outputs[schemaName]
	if !ok {
		return nil, fmt.Errorf("no canned output for schema %q", schemaName)
	}
	return out, nil
}

func (f *fakeJudgment) callCount(schemaName string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[schemaName]
}
