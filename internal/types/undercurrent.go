package types

import (
	"time"

	"github.com/google/uuid"
)

// Undercurrent is a piece of rationed reflective content. The pool is shared
// across users, not per-user owned.
type Undercurrent struct {
	ID                uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	Observation       string    `gorm:"column:observation;not null" json:"observation"`
	Interpretation    string    `gorm:"column:interpretation;not null" json:"interpretation"`
	UncertaintyClause string    `gorm:"column:uncertainty_clause;not null" json:"uncertainty_clause"`
	CreatedAt         time.Time `gorm:"not null" json:"created_at"`
}

func (Undercurrent) TableName() string { return "undercurrent" }

// UndercurrentInteraction records one issuance of an undercurrent to a user.
// At most one row per user may have a null ResponseText at any time, and the
// per-ISO-week row count bounds new issuance.
type UndercurrentInteraction struct {
	ID             uuid.UUID  `gorm:"type:uuid;primaryKey" json:"id"`
	UserID         uuid.UUID  `gorm:"type:uuid;not null;index" json:"user_id"`
	UndercurrentID uuid.UUID  `gorm:"type:uuid;not null;index" json:"undercurrent_id"`
	ResponsePrompt string     `gorm:"column:response_prompt;not null" json:"response_prompt"`
	ResponseText   *string    `gorm:"column:response_text" json:"response_text,omitempty"`
	ViewedAt       time.Time  `gorm:"column:viewed_at;not null" json:"viewed_at"`
	RespondedAt    *time.Time `gorm:"column:responded_at" json:"responded_at,omitempty"`
	WeekNumber     int        `gorm:"column:week_number;not null;index" json:"week_number"`
	Year           int        `gorm:"column:year;not null;index" json:"year"`
	CreatedAt      time.Time  `gorm:"not null" json:"created_at"`
}

func (UndercurrentInteraction) TableName() string { return "undercurrent_interaction" }
