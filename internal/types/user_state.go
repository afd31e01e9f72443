package types

import (
	"time"

	"github.com/google/uuid"
)

// UserState is the compact per-user snapshot the pipeline evaluates against.
// One row per user, mutated only by the state deriver and by the orchestrator
// after a sent message. Rows are never deleted; fields reset through
// re-derivation.
type UserState struct {
	ID                uuid.UUID  `gorm:"type:uuid;primaryKey" json:"id"`
	UserID            uuid.UUID  `gorm:"type:uuid;not null;uniqueIndex" json:"user_id"`
	CareerState       string     `gorm:"column:career_state" json:"career_state"`
	TravelState       string     `gorm:"column:travel_state" json:"travel_state"`
	TravelDestination string     `gorm:"column:travel_destination" json:"travel_destination"`
	EventState        string     `gorm:"column:event_state" json:"event_state"`
	NextEventName     string     `gorm:"column:next_event_name" json:"next_event_name"`
	TrustLevel        int        `gorm:"column:trust_level;not null" json:"trust_level"`
	FatigueScore      float64    `gorm:"column:fatigue_score;not null" json:"fatigue_score"`
	Nudges24h         int        `gorm:"column:nudges_24h;not null" json:"nudges_24h"`
	LastInteractionAt *time.Time `gorm:"column:last_interaction_at" json:"last_interaction_at,omitempty"`
	// SignalCursor marks the newest OccurredAt folded into this snapshot so
	// each derivation only walks signals it has not seen yet.
	SignalCursor *time.Time `gorm:"column:signal_cursor" json:"signal_cursor,omitempty"`
	CreatedAt    time.Time  `gorm:"not null" json:"created_at"`
	UpdatedAt    time.Time  `gorm:"not null" json:"updated_at"`
}

func (UserState) TableName() string { return "user_state" }
