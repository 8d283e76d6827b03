package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// PaymentStatus is owned by the external payment gate; the engine only stores it.
type PaymentStatus string

const (
	PaymentPending   PaymentStatus = "PENDING_PAYMENT"
	PaymentConfirmed PaymentStatus = "CONFIRMED"
	PaymentFailed    PaymentStatus = "FAILED"
)

// Participant = (match, user) membership + team assignment
type Participant struct {
	ID      string `gorm:"primaryKey;type:varchar(36)" json:"id"`
	MatchID string `gorm:"uniqueIndex:idx_participant_match_user;not null" json:"match_id"`
	UserID  string `gorm:"uniqueIndex:idx_participant_match_user;index;not null" json:"user_id"`

	// 1 or 2 for team matches, nil otherwise. Fixed once set.
	Team *int `json:"team,omitempty"`

	JoinedAt      time.Time     `gorm:"not null" json:"joined_at"`
	PaymentStatus PaymentStatus `gorm:"type:varchar(24);not null" json:"payment_status"`

	Timestamps
}

func (p *Participant) BeforeCreate(tx *gorm.DB) error {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	return nil
}

// TeamNumber returns 0 for participants without a team.
func (p Participant) TeamNumber() int {
	if p.Team == nil {
		return 0
	}
	return *p.Team
}
