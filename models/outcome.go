package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Outcome is part of the public vocabulary (notification templates select on it).
type Outcome string

const (
	OutcomeNone     Outcome = ""
	OutcomeWon      Outcome = "WON"
	OutcomeLost     Outcome = "LOST"
	OutcomeDraw     Outcome = "DRAW"
	OutcomeNoShow   Outcome = "NO_SHOW"
	OutcomeDisputed Outcome = "DISPUTED"
)

// Reportable reports whether a participant may claim this outcome.
func (o Outcome) Reportable() bool {
	switch o {
	case OutcomeWon, OutcomeLost, OutcomeDraw, OutcomeNoShow:
		return true
	}
	return false
}

// Result reports whether o is a scoreable match result (WON, LOST or DRAW).
func (o Outcome) Result() bool {
	return o == OutcomeWon || o == OutcomeLost || o == OutcomeDraw
}

// Complement returns the opposing side's outcome: WON<->LOST, DRAW->DRAW.
func (o Outcome) Complement() (Outcome, bool) {
	switch o {
	case OutcomeWon:
		return OutcomeLost, true
	case OutcomeLost:
		return OutcomeWon, true
	case OutcomeDraw:
		return OutcomeDraw, true
	}
	return OutcomeNone, false
}

// SystemReporter marks claims written by the deferred scorer rather than a user.
const SystemReporter = "system"

// OutcomeClaim is one participant's reported result for a match.
type OutcomeClaim struct {
	ID         string    `gorm:"primaryKey;type:varchar(36)" json:"id"`
	MatchID    string    `gorm:"uniqueIndex:idx_claim_match_user;not null" json:"match_id"`
	UserID     string    `gorm:"uniqueIndex:idx_claim_match_user;index;not null" json:"user_id"`
	Outcome    Outcome   `gorm:"type:varchar(16);not null" json:"outcome"`
	ReportedBy string    `gorm:"type:varchar(64);not null" json:"reported_by"` // differs from UserID for derived claims
	ReportedAt time.Time `gorm:"not null" json:"reported_at"`

	// Processed = already consumed by the deferred scorer; never re-scored.
	Processed   bool       `gorm:"not null;index" json:"processed"`
	ProcessedAt *time.Time `json:"processed_at,omitempty"`

	Timestamps
}

func (c *OutcomeClaim) BeforeCreate(tx *gorm.DB) error {
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	return nil
}
