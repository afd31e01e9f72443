package types

import (
	"time"

	"github.com/google/uuid"
)

// Introduction is a peer-to-peer conversation between two members. The
// reputation engine reads these; it never writes them.
type Introduction struct {
	ID            uuid.UUID  `gorm:"type:uuid;primaryKey" json:"id"`
	InitiatorID   uuid.UUID  `gorm:"type:uuid;not null;index" json:"initiator_id"`
	RecipientID   uuid.UUID  `gorm:"type:uuid;not null;index" json:"recipient_id"`
	StartedAt     time.Time  `gorm:"column:started_at;not null" json:"started_at"`
	LastMessageAt *time.Time `gorm:"column:last_message_at" json:"last_message_at,omitempty"`
	CreatedAt     time.Time  `gorm:"not null" json:"created_at"`
}

func (Introduction) TableName() string { return "introduction" }

type IntroMessage struct {
	ID             uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	IntroductionID uuid.UUID `gorm:"type:uuid;not null;index" json:"introduction_id"`
	SenderID       uuid.UUID `gorm:"type:uuid;not null;index" json:"sender_id"`
	Content        string    `gorm:"column:content;not null" json:"content"`
	CreatedAt      time.Time `gorm:"not null;index" json:"created_at"`
}

func (IntroMessage) TableName() string { return "intro_message" }

// IntroDebrief is a participant's self-reported account of how an
// introduction went, used as extra context when scoring the counterpart.
type IntroDebrief struct {
	ID             uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	IntroductionID uuid.UUID `gorm:"type:uuid;not null;index" json:"introduction_id"`
	AuthorID       uuid.UUID `gorm:"type:uuid;not null;index" json:"author_id"`
	Content        string    `gorm:"column:content" json:"content"`
	Rating         int       `gorm:"column:rating" json:"rating"`
	CreatedAt      time.Time `gorm:"not null" json:"created_at"`
}

func (IntroDebrief) TableName() string { return "intro_debrief" }
