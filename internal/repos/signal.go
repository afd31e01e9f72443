package repos

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/yungbote/meridian-backend/internal/logger"
	"github.com/yungbote/meridian-backend/internal/types"
)

// SignalRepo reads the append-only signal log. The write path exists for the
// ingestion collaborator; pipeline code never calls it.
type SignalRepo interface {
	Create(ctx context.Context, tx *gorm.DB, signals []*types.Signal) ([]*types.Signal, error)
	ListRecentByUser(ctx context.Context, tx *gorm.DB, userID uuid.UUID, since time.Time) ([]*types.Signal, error)
	ListActiveUserIDs(ctx context.Context, tx *gorm.DB, since time.Time, limit int) ([]uuid.UUID, error)
}

type signalRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewSignalRepo(db *gorm.DB, baseLog *logger.Logger) SignalRepo {
	return &signalRepo{db: db, log: baseLog.With("repo", "SignalRepo")}
}

func (r *signalRepo) Create(ctx context.Context, tx *gorm.DB, signals []*types.Signal) ([]*types.Signal, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if len(signals) == 0 {
		return []*types.Signal{}, nil
	}
	if err := transaction.WithContext(ctx).Create(&signals).Error; err != nil {
		return nil, err
	}
	return signals, nil
}

func (r *signalRepo) ListRecentByUser(ctx context.Context, tx *gorm.DB, userID uuid.UUID, since time.Time) ([]*types.Signal, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	var results []*types.Signal
	if err := transaction.WithContext(ctx).
		Where("user_id = ? AND occurred_at >= ?", userID, since).
		Order("occurred_at ASC").
		Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

func (r *signalRepo) ListActiveUserIDs(ctx context.Context, tx *gorm.DB, since time.Time, limit int) ([]uuid.UUID, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	var results []uuid.UUID
	q := transaction.WithContext(ctx).
		Model(&types.Signal{}).
		Distinct("user_id").
		Where("occurred_at >= ?", since).
		Order("user_id")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Pluck("user_id", &results).Error; err != nil {
		return nil, err
	}
	return results, nil
}
