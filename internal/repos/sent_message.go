package repos

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/yungbote/meridian-backend/internal/logger"
	"github.com/yungbote/meridian-backend/internal/types"
)

type SentMessageRepo interface {
	Create(ctx context.Context, tx *gorm.DB, record *types.SentMessage) (*types.SentMessage, error)
	CountSentSince(ctx context.Context, tx *gorm.DB, userID uuid.UUID, since time.Time) (int64, error)
	ListSignalIDs(ctx context.Context, tx *gorm.DB, userID uuid.UUID) ([]uuid.UUID, error)
	ListByUser(ctx context.Context, tx *gorm.DB, userID uuid.UUID) ([]*types.SentMessage, error)
}

type sentMessageRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewSentMessageRepo(db *gorm.DB, baseLog *logger.Logger) SentMessageRepo {
	return &sentMessageRepo{db: db, log: baseLog.With("repo", "SentMessageRepo")}
}

func (r *sentMessageRepo) Create(ctx context.Context, tx *gorm.DB, record *types.SentMessage) (*types.SentMessage, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if record.ID == uuid.Nil {
		record.ID = uuid.New()
	}
	if err := transaction.WithContext(ctx).Create(record).Error; err != nil {
		return nil, err
	}
	return record, nil
}

func (r *sentMessageRepo) CountSentSince(ctx context.Context, tx *gorm.DB, userID uuid.UUID, since time.Time) (int64, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	var count int64
	if err := transaction.WithContext(ctx).
		Model(&types.SentMessage{}).
		Where("user_id = ? AND sent_at >= ?", userID, since).
		Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

func (r *sentMessageRepo) ListSignalIDs(ctx context.Context, tx *gorm.DB, userID uuid.UUID) ([]uuid.UUID, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	var results []uuid.UUID
	if err := transaction.WithContext(ctx).
		Model(&types.SentMessage{}).
		Where("user_id = ? AND signal_id IS NOT NULL", userID).
		Pluck("signal_id", &results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

func (r *sentMessageRepo) ListByUser(ctx context.Context, tx *gorm.DB, userID uuid.UUID) ([]*types.SentMessage, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	var results []*types.SentMessage
	if err := transaction.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("sent_at DESC").
		Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}
