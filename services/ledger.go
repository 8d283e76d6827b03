package services

import (
	"context"

	"match-engine/models"

	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// OutcomeLedger stores one outcome claim per participant per match. Claims are
// never overwritten here; only the deferred scorer mutates them.
type OutcomeLedger struct {
	DB       *gorm.DB
	Clock    clockwork.Clock
	Notifier Notifier
	Log      *zap.Logger
}

func NewOutcomeLedger(db *gorm.DB, clock clockwork.Clock, notifier Notifier, log *zap.Logger) *OutcomeLedger {
	if notifier == nil {
		notifier = NopNotifier{}
	}
	return &OutcomeLedger{DB: db, Clock: clock, Notifier: notifier, Log: log.Named("ledger")}
}

// RecordOutcome stores userID's own claim for the match.
func (l *OutcomeLedger) RecordOutcome(ctx context.Context, matchID, userID string, outcome models.Outcome) (*models.OutcomeClaim, error) {
	if !outcome.Reportable() {
		return nil, validationf("outcome %q cannot be reported", outcome)
	}
	now := l.Clock.Now().UTC()

	claim := &models.OutcomeClaim{
		MatchID:    matchID,
		UserID:     userID,
		Outcome:    outcome,
		ReportedBy: userID,
		ReportedAt: now,
	}
	var participants []models.Participant
	err := l.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		if _, participants, err = reportableMatch(tx, matchID, userID); err != nil {
			return err
		}
		var existing int64
		if err := tx.Model(&models.OutcomeClaim{}).
			Where("match_id = ? AND user_id = ?", matchID, userID).
			Count(&existing).Error; err != nil {
			return dbError(err, "outcome claim")
		}
		if existing > 0 {
			return conflictf("outcome already reported for this match")
		}
		return dbError(tx.Create(claim).Error, "outcome claim")
	})
	if err != nil {
		return nil, err
	}

	l.Log.Info("outcome recorded",
		zap.String("match_id", matchID),
		zap.String("user_id", userID),
		zap.String("outcome", string(outcome)),
	)
	l.checkComplete(ctx, matchID, participants)
	return claim, nil
}

// RecordOutcomeForAll stores the reporter's claim and the complementary claim
// for every other participant that has not reported yet. Earlier claims win:
// existing rows are never touched. Non-team matches only.
func (l *OutcomeLedger) RecordOutcomeForAll(ctx context.Context, matchID, reporterID string, outcome models.Outcome) ([]models.OutcomeClaim, error) {
	complement, ok := outcome.Complement()
	if !ok {
		return nil, validationf("outcome %q cannot be reported for all participants", outcome)
	}
	now := l.Clock.Now().UTC()

	var written []models.OutcomeClaim
	var participants []models.Participant
	err := l.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		match, roster, err := reportableMatch(tx, matchID, reporterID)
		if err != nil {
			return err
		}
		participants = roster
		if match.TeamMatch {
			return validationf("team matches must be reported per participant")
		}

		var existing []models.OutcomeClaim
		if err := tx.Where("match_id = ?", matchID).Find(&existing).Error; err != nil {
			return dbError(err, "outcome claims")
		}
		claimed := make(map[string]bool, len(existing))
		for _, c := range existing {
			claimed[c.UserID] = true
		}
		if claimed[reporterID] {
			return conflictf("outcome already reported for this match")
		}

		for _, p := range roster {
			if p.UserID != reporterID && claimed[p.UserID] {
				continue
			}
			claim := models.OutcomeClaim{
				MatchID:    matchID,
				UserID:     p.UserID,
				Outcome:    complement,
				ReportedBy: reporterID,
				ReportedAt: now,
			}
			if p.UserID == reporterID {
				claim.Outcome = outcome
			}
			res := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&claim)
			if res.Error != nil {
				return dbError(res.Error, "outcome claim")
			}
			if res.RowsAffected == 0 {
				if p.UserID == reporterID {
					return conflictf("outcome already reported for this match")
				}
				continue
			}
			written = append(written, claim)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	l.Log.Info("outcome recorded for all participants",
		zap.String("match_id", matchID),
		zap.String("reporter", reporterID),
		zap.String("outcome", string(outcome)),
		zap.Int("claims_written", len(written)),
	)
	l.checkComplete(ctx, matchID, participants)
	return written, nil
}

// ListClaims returns the claims of a match in report order.
func (l *OutcomeLedger) ListClaims(ctx context.Context, matchID string) ([]models.OutcomeClaim, error) {
	db := l.DB.WithContext(ctx)
	var match models.Match
	if err := db.Select("id").First(&match, "id = ?", matchID).Error; err != nil {
		return nil, dbError(err, "match")
	}
	claims := []models.OutcomeClaim{}
	if err := db.Where("match_id = ?", matchID).Order("reported_at ASC").Find(&claims).Error; err != nil {
		return nil, dbError(err, "outcome claims")
	}
	return claims, nil
}

// reportableMatch loads a match that accepts outcome reports from userID.
func reportableMatch(tx *gorm.DB, matchID, userID string) (*models.Match, []models.Participant, error) {
	var match models.Match
	if err := tx.First(&match, "id = ?", matchID).Error; err != nil {
		return nil, nil, dbError(err, "match")
	}
	if match.Status != models.MatchOngoing && match.Status != models.MatchCompleted {
		return nil, nil, validationf("match is %s; outcomes can be reported once it has started", match.Status)
	}
	participants, err := loadParticipants(tx, matchID)
	if err != nil {
		return nil, nil, err
	}
	for _, p := range participants {
		if p.UserID == userID {
			return &match, participants, nil
		}
	}
	return nil, nil, validationf("user is not a participant of this match")
}

// checkComplete signals results-complete once every participant has a claim.
// Read-then-compare: a race can only delay the signal to a later report.
func (l *OutcomeLedger) checkComplete(ctx context.Context, matchID string, participants []models.Participant) {
	var count int64
	err := l.DB.WithContext(ctx).Model(&models.OutcomeClaim{}).Where("match_id = ?", matchID).Count(&count).Error
	if err != nil {
		l.Log.Warn("results completeness check failed", zap.String("match_id", matchID), zap.Error(err))
		return
	}
	if len(participants) == 0 || count != int64(len(participants)) {
		return
	}
	emitAll(ctx, l.Notifier, l.Log, participants, models.SignalResultsComplete, map[string]any{
		"match_id": matchID,
	})
}
