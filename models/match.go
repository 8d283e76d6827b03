package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// MatchStatus is part of the public vocabulary other subsystems key on.
type MatchStatus string

const (
	MatchUpcoming  MatchStatus = "UPCOMING"
	MatchOngoing   MatchStatus = "ONGOING"
	MatchCompleted MatchStatus = "COMPLETED"
	MatchCancelled MatchStatus = "CANCELLED"
)

// Terminal reports whether no further transition is possible.
func (s MatchStatus) Terminal() bool {
	return s == MatchCompleted || s == MatchCancelled
}

// CancelReason is the reason code required by the cancel operation.
type CancelReason string

const (
	CancelWeather          CancelReason = "WEATHER"
	CancelVenueUnavailable CancelReason = "VENUE_UNAVAILABLE"
	CancelNotEnoughPlayers CancelReason = "NOT_ENOUGH_PLAYERS"
	CancelPersonal         CancelReason = "PERSONAL"
	CancelOther            CancelReason = "OTHER" // requires a free-text note
)

func (r CancelReason) Valid() bool {
	switch r {
	case CancelWeather, CancelVenueUnavailable, CancelNotEnoughPlayers, CancelPersonal, CancelOther:
		return true
	}
	return false
}

// Match is a single scheduled game session between participants.
type Match struct {
	ID              string      `gorm:"primaryKey;type:varchar(36)" json:"id"`
	GameID          string      `gorm:"index;not null" json:"game_id"`
	CreatorID       string      `gorm:"index;not null" json:"creator_id"`
	ScheduledAt     time.Time   `gorm:"index;not null" json:"scheduled_at"`
	DurationMinutes int         `gorm:"not null" json:"duration_minutes"`
	EndsAt          time.Time   `gorm:"index;not null" json:"ends_at"` // ScheduledAt + DurationMinutes
	MaxParticipants int         `gorm:"not null" json:"max_participants"`
	TeamMatch       bool        `gorm:"not null" json:"team_match"`
	Status          MatchStatus `gorm:"type:varchar(16);index;not null" json:"status"`

	// Cancellation
	CancelReason *CancelReason `gorm:"type:varchar(32)" json:"cancel_reason,omitempty"`
	CancelNote   *string       `gorm:"type:text" json:"cancel_note,omitempty"`

	// Transition times come from the injected clock, not the DB
	StartedAt   *time.Time `json:"started_at,omitempty"`
	CompletedAt *time.Time `gorm:"index" json:"completed_at,omitempty"`
	CancelledAt *time.Time `json:"cancelled_at,omitempty"`

	Participants []Participant `gorm:"foreignKey:MatchID" json:"participants,omitempty"`

	Timestamps
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"` // admin deletion happens outside the engine
}

func (m *Match) BeforeCreate(tx *gorm.DB) error {
	if m.ID == "" {
		m.ID = uuid.NewString()
	}
	return nil
}
