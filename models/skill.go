package models

import (
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// SkillLevel is a three-tier ladder: BEGINNER < INTERMEDIATE < PROFESSIONAL.
type SkillLevel string

const (
	SkillBeginner     SkillLevel = "BEGINNER"
	SkillIntermediate SkillLevel = "INTERMEDIATE"
	SkillProfessional SkillLevel = "PROFESSIONAL"
)

// Ordinal maps the ladder to 1/2/3. Unknown levels count as BEGINNER.
func (l SkillLevel) Ordinal() int {
	switch l {
	case SkillIntermediate:
		return 2
	case SkillProfessional:
		return 3
	default:
		return 1
	}
}

// LevelFromOrdinal clamps n into [1, 3].
func LevelFromOrdinal(n int) SkillLevel {
	switch {
	case n <= 1:
		return SkillBeginner
	case n == 2:
		return SkillIntermediate
	default:
		return SkillProfessional
	}
}

func (l SkillLevel) Top() bool    { return l.Ordinal() == 3 }
func (l SkillLevel) Bottom() bool { return l.Ordinal() == 1 }

// SkillRecord is a user's standing in one game. Mutated only by the rating adjuster.
type SkillRecord struct {
	ID     string     `gorm:"primaryKey;type:varchar(36)" json:"id"`
	UserID string     `gorm:"uniqueIndex:idx_skill_user_game;not null" json:"user_id"`
	GameID string     `gorm:"uniqueIndex:idx_skill_user_game;not null" json:"game_id"`
	Level  SkillLevel `gorm:"type:varchar(16);not null" json:"level"`
	Score  int        `gorm:"not null" json:"score"` // renormalized into [0,100) after every level change

	Timestamps
}

func (r *SkillRecord) BeforeCreate(tx *gorm.DB) error {
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	return nil
}

// DefaultSkill is the implicit record for a user who never played the game.
func DefaultSkill(userID, gameID string) SkillRecord {
	return SkillRecord{UserID: userID, GameID: gameID, Level: SkillBeginner, Score: 0}
}
