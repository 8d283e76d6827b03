package services

import (
	"context"
	"errors"

	"match-engine/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type SkillService struct {
	DB *gorm.DB
}

func NewSkillService(db *gorm.DB) *SkillService {
	return &SkillService{DB: db}
}

// Get returns the user's record for a game, or the implicit BEGINNER/0 default.
func (s *SkillService) Get(ctx context.Context, userID, gameID string) (models.SkillRecord, error) {
	if userID == "" || gameID == "" {
		return models.SkillRecord{}, validationf("user_id and game_id are required")
	}
	var rec models.SkillRecord
	err := s.DB.WithContext(ctx).Where("user_id = ? AND game_id = ?", userID, gameID).First(&rec).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return models.DefaultSkill(userID, gameID), nil
	}
	if err != nil {
		return models.SkillRecord{}, dbError(err, "skill record")
	}
	return rec, nil
}

// skillLevels loads the current level of each user for a game. Users without a
// record are absent from the map; callers treat that as BEGINNER.
func skillLevels(tx *gorm.DB, gameID string, userIDs []string) (map[string]models.SkillLevel, error) {
	levels := make(map[string]models.SkillLevel, len(userIDs))
	if len(userIDs) == 0 {
		return levels, nil
	}
	var recs []models.SkillRecord
	if err := tx.Where("game_id = ? AND user_id IN ?", gameID, userIDs).Find(&recs).Error; err != nil {
		return nil, dbError(err, "skill records")
	}
	for _, r := range recs {
		levels[r.UserID] = r.Level
	}
	return levels, nil
}

// lockSkill reads a record FOR UPDATE, falling back to the default.
func lockSkill(tx *gorm.DB, userID, gameID string) (models.SkillRecord, error) {
	var rec models.SkillRecord
	err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("user_id = ? AND game_id = ?", userID, gameID).
		First(&rec).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return models.DefaultSkill(userID, gameID), nil
	}
	if err != nil {
		return models.SkillRecord{}, dbError(err, "skill record")
	}
	return rec, nil
}

func saveSkill(tx *gorm.DB, rec *models.SkillRecord, adj Adjustment) error {
	rec.Level = adj.NewLevel
	rec.Score = adj.NewScore
	if rec.ID == "" {
		return dbError(tx.Create(rec).Error, "skill record")
	}
	err := tx.Model(&models.SkillRecord{}).
		Where("id = ?", rec.ID).
		Updates(map[string]any{"level": rec.Level, "score": rec.Score}).Error
	return dbError(err, "skill record")
}
