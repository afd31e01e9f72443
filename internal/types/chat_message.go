package types

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// ChatMessage is a conversation entry visible to the user. The composer is
// the only pipeline component that writes here.
type ChatMessage struct {
	ID        uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	UserID    uuid.UUID      `gorm:"type:uuid;not null;index" json:"user_id"`
	Role      string         `gorm:"column:role;not null" json:"role"`
	Type      string         `gorm:"column:type;not null" json:"type"`
	Content   string         `gorm:"column:content;not null" json:"content"`
	Metadata  datatypes.JSON `gorm:"type:jsonb;column:metadata" json:"metadata"`
	CreatedAt time.Time      `gorm:"not null" json:"created_at"`
}

func (ChatMessage) TableName() string { return "chat_message" }
