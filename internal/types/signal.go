package types

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// Signal types, in descending decision priority.
const (
	SignalFlight     = "FLIGHT"
	SignalInterview  = "INTERVIEW"
	SignalEvent      = "EVENT"
	SignalTransition = "TRANSITION"
	SignalObsession  = "OBSESSION"
)

// Signal is an observed piece of user evidence. Rows are written by the
// external extraction collaborator and are immutable once stored; the core
// only reads them.
type Signal struct {
	ID           uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	UserID       uuid.UUID      `gorm:"type:uuid;not null;index" json:"user_id"`
	Type         string         `gorm:"column:type;not null;index" json:"type"`
	Domain       string         `gorm:"column:domain" json:"domain"`
	Confidence   float64        `gorm:"column:confidence;not null" json:"confidence"`
	EvidenceText string         `gorm:"column:evidence_text" json:"evidence_text"`
	OccurredAt   time.Time      `gorm:"column:occurred_at;not null;index" json:"occurred_at"`
	ExpiresAt    *time.Time     `gorm:"column:expires_at;index" json:"expires_at,omitempty"`
	Metadata     datatypes.JSON `gorm:"type:jsonb;column:metadata" json:"metadata"`
	CreatedAt    time.Time      `gorm:"not null" json:"created_at"`
}

func (Signal) TableName() string { return "signal" }

// Expired reports whether the signal's expiry has already passed at t.
// Signals without an expiry never expire.
func (s *Signal) Expired(t time.Time) bool {
	return s.ExpiresAt != nil && !s.ExpiresAt.After(t)
}
