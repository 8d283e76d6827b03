package services

import (
	"context"
	"errors"
	"strings"

	"match-engine/models"

	"gorm.io/gorm"
)

// PlayerStats returns the lifetime counters for a user. Users who never
// finished a match get a zero record rather than NotFound.
func (s *MatchService) PlayerStats(ctx context.Context, userID string) (models.PlayerStats, error) {
	if strings.TrimSpace(userID) == "" {
		return models.PlayerStats{}, validationf("user_id is required")
	}
	var stats models.PlayerStats
	err := s.DB.WithContext(ctx).Where("user_id = ?", userID).First(&stats).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return models.PlayerStats{UserID: userID}, nil
	}
	if err != nil {
		return models.PlayerStats{}, dbError(err, "player stats")
	}
	return stats, nil
}
