package repos

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/yungbote/meridian-backend/internal/logger"
	"github.com/yungbote/meridian-backend/internal/types"
)

type UserStateRepo interface {
	GetByUserID(ctx context.Context, tx *gorm.DB, userID uuid.UUID) (*types.UserState, error)
	Upsert(ctx context.Context, tx *gorm.DB, state *types.UserState) (*types.UserState, error)
}

type userStateRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewUserStateRepo(db *gorm.DB, baseLog *logger.Logger) UserStateRepo {
	return &userStateRepo{db: db, log: baseLog.With("repo", "UserStateRepo")}
}

// GetByUserID returns nil without error when no snapshot exists yet.
func (r *userStateRepo) GetByUserID(ctx context.Context, tx *gorm.DB, userID uuid.UUID) (*types.UserState, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	var result types.UserState
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

func (r *userStateRepo) Upsert(ctx context.Context, tx *gorm.DB, state *types.UserState) (*types.UserState, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if state.ID == uuid.Nil {
		state.ID = uuid.New()
	}
	if err := transaction.WithContext(ctx).Save(state).Error; err != nil {
		return nil, err
	}
	return state, nil
}
