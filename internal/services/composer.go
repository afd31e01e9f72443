package services

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/yungbote/meridian-backend/internal/logger"
	"github.com/yungbote/meridian-backend/internal/repos"
	"github.com/yungbote/meridian-backend/internal/types"
)

// MessageComposerService turns an approved decision into a user-visible chat
// entry plus the SentMessage dedupe record, in one transaction. The daily cap
// is re-checked inside the same transaction as the write so two runs that
// both passed the outer gate cannot both send.
type MessageComposerService interface {
	Compose(ctx context.Context, userID uuid.UUID, decision Decision) (*types.SentMessage, error)
}

type messageComposerService struct {
	db        *gorm.DB
	log       *logger.Logger
	chatRepo  repos.ChatMessageRepo
	sentRepo  repos.SentMessageRepo
	stateRepo repos.UserStateRepo
	now       func() time.Time
}

func NewMessageComposerService(db *gorm.DB, baseLog *logger.Logger, chatRepo repos.ChatMessageRepo, sentRepo repos.SentMessageRepo, stateRepo repos.UserStateRepo) MessageComposerService {
	return &messageComposerService{
		db:        db,
		log:       baseLog.With("service", "MessageComposerService"),
		chatRepo:  chatRepo,
		sentRepo:  sentRepo,
		stateRepo: stateRepo,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

func (s *messageComposerService) Compose(ctx context.Context, userID uuid.UUID, decision Decision) (*types.SentMessage, error) {
	if decision.State == DecisionSilent {
		return nil, fmt.Errorf("cannot compose a silent decision")
	}
	if decision.Message == "" {
		return nil, fmt.Errorf("decision carries no message text")
	}

	now := s.now()
	dayStart := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)

	var record *types.SentMessage
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		sentToday, err := s.sentRepo.CountSentSince(ctx, tx, userID, dayStart)
		if err != nil {
			return fmt.Errorf("recheck daily cap: %w", err)
		}
		if sentToday > 0 {
			return ErrAlreadySentToday
		}

		meta := map[string]any{
			"decision_state": decision.State,
			"reason":         decision.Reason,
		}
		var signalID *uuid.UUID
		if decision.Signal != nil {
			id := decision.Signal.ID
			signalID = &id
			meta["signal_id"] = id.String()
			meta["signal_type"] = decision.Signal.Type
		}
		rawMeta, _ := json.Marshal(meta)

		if _, err := s.chatRepo.Create(ctx, tx, &types.ChatMessage{
			ID:        uuid.New(),
			UserID:    userID,
			Role:      "assistant",
			Type:      "proactive",
			Content:   decision.Message,
			Metadata:  datatypes.JSON(rawMeta),
			CreatedAt: now,
		}); err != nil {
			return fmt.Errorf("append chat message: %w", err)
		}

		record = &types.SentMessage{
			ID:             uuid.New(),
			UserID:         userID,
			SignalID:       signalID,
			DecisionState:  decision.State,
			MessageContent: decision.Message,
			SentAt:         now,
		}
		if _, err := s.sentRepo.Create(ctx, tx, record); err != nil {
			return fmt.Errorf("append sent message record: %w", err)
		}

		state, err := s.stateRepo.GetByUserID(ctx, tx, userID)
		if err != nil {
			return fmt.Errorf("load user state: %w", err)
		}
		if state != nil {
			state.Nudges24h++
			state.LastInteractionAt = &now
			state.UpdatedAt = now
			if _, err := s.stateRepo.Upsert(ctx, tx, state); err != nil {
				return fmt.Errorf("bump user state: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.log.Info("proactive message sent",
		"user_id", userID.String(),
		"decision_state", decision.State,
	)
	return record, nil
}
