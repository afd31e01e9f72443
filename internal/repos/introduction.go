package repos

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/yungbote/meridian-backend/internal/logger"
	"github.com/yungbote/meridian-backend/internal/types"
)

type IntroductionRepo interface {
	GetByID(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*types.Introduction, error)
	ListMessages(ctx context.Context, tx *gorm.DB, introductionID uuid.UUID) ([]*types.IntroMessage, error)
	GetDebriefByAuthor(ctx context.Context, tx *gorm.DB, introductionID, authorID uuid.UUID) (*types.IntroDebrief, error)
	ListRecentMessageSamples(ctx context.Context, tx *gorm.DB, limit int) ([]string, error)
}

type introductionRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewIntroductionRepo(db *gorm.DB, baseLog *logger.Logger) IntroductionRepo {
	return &introductionRepo{db: db, log: baseLog.With("repo", "IntroductionRepo")}
}

func (r *introductionRepo) GetByID(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*types.Introduction, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	var result types.Introduction
	if err := transaction.WithContext(ctx).
		Where("id = ?", id).
		First(&result).Error; err != nil {
		return nil, err
	}
	return &result, nil
}

func (r *introductionRepo) ListMessages(ctx context.Context, tx *gorm.DB, introductionID uuid.UUID) ([]*types.IntroMessage, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	var results []*types.IntroMessage
	if err := transaction.WithContext(ctx).
		Where("introduction_id = ?", introductionID).
		Order("created_at ASC").
		Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

// GetDebriefByAuthor returns nil without error when the author has not filed
// a debrief for this introduction.
func (r *introductionRepo) GetDebriefByAuthor(ctx context.Context, tx *gorm.DB, introductionID, authorID uuid.UUID) (*types.IntroDebrief, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	var result types.IntroDebrief
	err := transaction.WithContext(ctx).
		Where("introduction_id = ? AND author_id = ?", introductionID, authorID).
		First(&result).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &result, nil
}

// ListRecentMessageSamples returns recent conversation lines with no
// attribution, used as anonymized theme material for undercurrent synthesis.
func (r *introductionRepo) ListRecentMessageSamples(ctx context.Context, tx *gorm.DB, limit int) ([]string, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if limit <= 0 {
		limit = 50
	}
	var results []string
	if err := transaction.WithContext(ctx).
		Model(&types.IntroMessage{}).
		Order("created_at DESC").
		Limit(limit).
		Pluck("content", &results).Error; err != nil {
		return nil, err
	}
	return results, nil
}
