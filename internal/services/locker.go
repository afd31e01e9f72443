package services

import (
	"context"
	"sync"

	"github.com/google/uuid"
)

// PipelineLocker serializes pipeline runs per user so two concurrent sweeps
// cannot both pass the daily-cap gate and double-send. Release is safe to
// call once per successful acquire.
type PipelineLocker interface {
	Acquire(ctx context.Context, userID uuid.UUID) (bool, func(), error)
}

// localLocker is the single-process fallback used when no redis address is
// configured (and in tests).
type localLocker struct {
	mu   sync.Mutex
	held map[uuid.UUID]bool
}

func NewLocalLocker() PipelineLocker {
	return &localLocker{held: make(map[uuid.UUID]bool)}
}

func (l *localLocker) Acquire(ctx context.Context, userID uuid.UUID) (bool, func(), error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.held[userID] {
		return false, nil, nil
	}
	l.held[userID] = true
	release := func() {
		l.mu.Lock()
		defer l.mu.Unlock()
		delete(l.held, userID)
	}
	return true, release, nil
}
