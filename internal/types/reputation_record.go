package types

import (
	"time"

	"github.com/google/uuid"
)

// ReputationRecord holds the four bounded trust scores for a user. Created
// lazily on first evaluation; scores only move by additive deltas and stay
// inside [0,100]. UndercurrentsUnlocked is a one-way latch.
type ReputationRecord struct {
	ID                      uuid.UUID  `gorm:"type:uuid;primaryKey" json:"id"`
	UserID                  uuid.UUID  `gorm:"type:uuid;not null;uniqueIndex" json:"user_id"`
	ImpactScore             float64    `gorm:"column:impact_score;not null" json:"impact_score"`
	ThoughtQuality          float64    `gorm:"column:thought_quality;not null" json:"thought_quality"`
	DiscretionScore         float64    `gorm:"column:discretion_score;not null" json:"discretion_score"`
	PullScore               float64    `gorm:"column:pull_score;not null" json:"pull_score"`
	FrozenUntil             *time.Time `gorm:"column:frozen_until" json:"frozen_until,omitempty"`
	UndercurrentsUnlocked   bool       `gorm:"column:undercurrents_unlocked;not null" json:"undercurrents_unlocked"`
	UndercurrentsUnlockedAt *time.Time `gorm:"column:undercurrents_unlocked_at" json:"undercurrents_unlocked_at,omitempty"`
	LastActiveAt            time.Time  `gorm:"column:last_active_at;not null" json:"last_active_at"`
	CreatedAt               time.Time  `gorm:"not null" json:"created_at"`
	UpdatedAt               time.Time  `gorm:"not null" json:"updated_at"`
}

func (ReputationRecord) TableName() string { return "reputation_record" }

// TotalScore is the cumulative trust used for the undercurrents unlock
// threshold.
func (r *ReputationRecord) TotalScore() float64 {
	return r.ImpactScore + r.ThoughtQuality + r.DiscretionScore + r.PullScore
}

// Frozen reports whether a discretion freeze window is active at t.
func (r *ReputationRecord) Frozen(t time.Time) bool {
	return r.FrozenUntil != nil && r.FrozenUntil.After(t)
}
