package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// PlayerStats tracks lifetime activity counters (denormalized for profile reads)
type PlayerStats struct {
	ID           string     `gorm:"primaryKey;type:varchar(36)" json:"id"`
	UserID       string     `gorm:"uniqueIndex;not null" json:"user_id"`
	GamesPlayed  int64      `gorm:"not null" json:"games_played"`
	LastPlayedAt *time.Time `json:"last_played_at,omitempty"`

	Timestamps
}

func (PlayerStats) TableName() string { return "player_stats" }

func (s *PlayerStats) BeforeCreate(tx *gorm.DB) error {
	if s.ID == "" {
		s.ID = uuid.NewString()
	}
	return nil
}
