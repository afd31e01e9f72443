package repos

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/yungbote/meridian-backend/internal/logger"
	"github.com/yungbote/meridian-backend/internal/types"
)

type ReputationRepo interface {
	GetByUserID(ctx context.Context, tx *gorm.DB, userID uuid.UUID) (*types.ReputationRecord, error)
	Save(ctx context.Context, tx *gorm.DB, record *types.ReputationRecord) (*types.ReputationRecord, error)
}

type reputationRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewReputationRepo(db *gorm.DB, baseLog *logger.Logger) ReputationRepo {
	return &reputationRepo{db: db, log: baseLog.With("repo", "ReputationRepo")}
}

// GetByUserID returns nil without error when the user has no record yet;
// records are created lazily on first evaluation.
func (r *reputationRepo) GetByUserID(ctx context.Context, tx *gorm.DB, userID uuid.UUID) (*types.ReputationRecord, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	var result types.ReputationRecord
	err := transaction.WithContext(ctx).
		Where("user_id = ?", userID).
		First(&result).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &result, nil
}

func (r *reputationRepo) Save(ctx context.Context, tx *gorm.DB, record *types.ReputationRecord) (*types.ReputationRecord, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if record.ID == uuid.Nil {
		record.ID = uuid.New()
	}
	if err := transaction.WithContext(ctx).Save(record).Error; err != nil {
		return nil, err
	}
	return record, nil
}
