package types

import (
	"time"

	"github.com/google/uuid"
)

// SentMessage is the append-only log of proactive sends. Its existence is the
// dedupe key: a signal that already has a row here is never nudged again, and
// at most one row exists per user per calendar day.
type SentMessage struct {
	ID             uuid.UUID  `gorm:"type:uuid;primaryKey" json:"id"`
	UserID         uuid.UUID  `gorm:"type:uuid;not null;index" json:"user_id"`
	SignalID       *uuid.UUID `gorm:"type:uuid;index" json:"signal_id,omitempty"`
	DecisionState  string     `gorm:"column:decision_state;not null" json:"decision_state"`
	MessageContent string     `gorm:"column:message_content;not null" json:"message_content"`
	SentAt         time.Time  `gorm:"column:sent_at;not null;index" json:"sent_at"`
}

func (SentMessage) TableName() string { return "sent_message" }
