package redis

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"

	"github.com/yungbote/meridian-backend/internal/logger"
	"github.com/yungbote/meridian-backend/internal/services"
)

// releaseScript deletes the lock only when the holder token still matches,
// so an expired-and-reacquired lock is never released by the old holder.
const releaseScript = `
if redis.call("get", KEYS[1]) == ARGV[1] then
	return redis.call("del", KEYS[1])
else
	return 0
end`

type pipelineLocker struct {
	log    *logger.Logger
	rdb    *goredis.Client
	prefix string
	ttl    time.Duration
}

// NewPipelineLocker builds the cross-process per-user lock. Requires
// REDIS_ADDR; callers fall back to the in-process locker when it is unset.
func NewPipelineLocker(log *logger.Logger) (services.PipelineLocker, error) {
	if log == nil {
		return nil, fmt.Errorf("logger required")
	}

	addr := strings.TrimSpace(os.Getenv("REDIS_ADDR"))
	if addr == "" {
		return nil, fmt.Errorf("missing REDIS_ADDR")
	}
	prefix := strings.TrimSpace(os.Getenv("REDIS_LOCK_PREFIX"))
	if prefix == "" {
		prefix = "pipeline-lock"
	}

	rdb := goredis.NewClient(&goredis.Options{
		Addr:        addr,
		DialTimeout: 5 * time.Second,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}

	return &pipelineLocker{
		log:    log.With("service", "RedisPipelineLocker"),
		rdb:    rdb,
		prefix: prefix,
		ttl:    2 * time.Minute,
	}, nil
}

func (l *pipelineLocker) Acquire(ctx context.Context, userID uuid.UUID) (bool, func(), error) {
	if l == nil || l.rdb == nil {
		return false, nil, fmt.Errorf("redis pipeline locker not initialized")
	}
	key := l.prefix + ":" + userID.String()
	token := uuid.New().String()

	ok, err := l.rdb.SetNX(ctx, key, token, l.ttl).Result()
	if err != nil {
		return false, nil, fmt.Errorf("redis setnx: %w", err)
	}
	if !ok {
		return false, nil, nil
	}

	release := func() {
		relCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := l.rdb.Eval(relCtx, releaseScript, []string{key}, token).Err(); err != nil {
			l.log.Warn("pipeline lock release failed", "user_id", userID.String(), "error", err)
		}
	}
	return true, release, nil
}
