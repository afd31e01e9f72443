package repos

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/yungbote/meridian-backend/internal/logger"
	"github.com/yungbote/meridian-backend/internal/types"
)

type UndercurrentRepo interface {
	Create(ctx context.Context, tx *gorm.DB, uc *types.Undercurrent) (*types.Undercurrent, error)
	GetByID(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*types.Undercurrent, error)
}

type undercurrentRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewUndercurrentRepo(db *gorm.DB, baseLog *logger.Logger) UndercurrentRepo {
	return &undercurrentRepo{db: db, log: baseLog.With("repo", "UndercurrentRepo")}
}

func (r *undercurrentRepo) Create(ctx context.Context, tx *gorm.DB, uc *types.Undercurrent) (*types.Undercurrent, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if uc.ID == uuid.Nil {
		uc.ID = uuid.New()
	}
	if err := transaction.WithContext(ctx).Create(uc).Error; err != nil {
		return nil, err
	}
	return uc, nil
}

func (r *undercurrentRepo) GetByID(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*types.Undercurrent, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	var result types.Undercurrent
	if err := transaction.WithContext(ctx).
		Where("id = ?", id).
		First(&result).Error; err != nil {
		return nil, err
	}
	return &result, nil
}

type UndercurrentInteractionRepo interface {
	Create(ctx context.Context, tx *gorm.DB, row *types.UndercurrentInteraction) (*types.UndercurrentInteraction, error)
	GetByID(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*types.UndercurrentInteraction, error)
	GetPendingByUser(ctx context.Context, tx *gorm.DB, userID uuid.UUID) (*types.UndercurrentInteraction, error)
	CountForWeek(ctx context.Context, tx *gorm.DB, userID uuid.UUID, year, week int) (int64, error)
	Update(ctx context.Context, tx *gorm.DB, row *types.UndercurrentInteraction) (*types.UndercurrentInteraction, error)
}

type undercurrentInteractionRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewUndercurrentInteractionRepo(db *gorm.DB, baseLog *logger.Logger) UndercurrentInteractionRepo {
	return &undercurrentInteractionRepo{db: db, log: baseLog.With("repo", "UndercurrentInteractionRepo")}
}

func (r *undercurrentInteractionRepo) Create(ctx context.Context, tx *gorm.DB, row *types.UndercurrentInteraction) (*types.UndercurrentInteraction, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if row.ID == uuid.Nil {
		row.ID = uuid.New()
	}
	if row.ViewedAt.IsZero() {
		row.ViewedAt = time.Now().UTC()
	}
	if err := transaction.WithContext(ctx).Create(row).Error; err != nil {
		return nil, err
	}
	return row, nil
}

func (r *undercurrentInteractionRepo) GetByID(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*types.UndercurrentInteraction, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	var result types.UndercurrentInteraction
	if err := transaction.WithContext(ctx).
		Where("id = ?", id).
		First(&result).Error; err != nil {
		return nil, err
	}
	return &result, nil
}

// GetPendingByUser returns the user's unanswered interaction, or nil when
// every issued undercurrent has a response.
func (r *undercurrentInteractionRepo) GetPendingByUser(ctx context.Context, tx *gorm.DB, userID uuid.UUID) (*types.UndercurrentInteraction, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	var result types.UndercurrentInteraction
	err := transaction.WithContext(ctx).
		Where("user_id = ? AND response_text IS NULL", userID).
		Order("viewed_at ASC").
		First(&result).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &result, nil
}

func (r *undercurrentInteractionRepo) CountForWeek(ctx context.Context, tx *gorm.DB, userID uuid.UUID, year, week int) (int64, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	var count int64
	if err := transaction.WithContext(ctx).
		Model(&types.UndercurrentInteraction{}).
		Where("user_id = ? AND year = ? AND week_number = ?", userID, year, week).
		Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

func (r *undercurrentInteractionRepo) Update(ctx context.Context, tx *gorm.DB, row *types.UndercurrentInteraction) (*types.UndercurrentInteraction, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if err := transaction.WithContext(ctx).Save(row).Error; err != nil {
		return nil, err
	}
	return row, nil
}
