package models

import "gorm.io/gorm"

// AutoMigrate creates or updates every table the engine owns.
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&Match{},
		&Participant{},
		&OutcomeClaim{},
		&SkillRecord{},
		&PlayerStats{},
	)
}
