package services

import (
	"context"
	"time"

	"match-engine/models"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const DefaultScoringDelay = 24 * time.Hour

// ScoreResult is what one ScoreMatch call did to a match.
type ScoreResult string

const (
	ScoreScored           ScoreResult = "scored"
	ScoreDisputed         ScoreResult = "disputed"
	ScoreUndecided        ScoreResult = "undecided" // no usable reports yet; revisited next sweep
	ScoreAlreadyProcessed ScoreResult = "already_processed"
)

// SweepReport summarizes one deferred scorer pass.
type SweepReport struct {
	RunID      string    `json:"run_id"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
	Examined   int       `json:"examined"`
	Scored     int       `json:"scored"`
	Disputed   int       `json:"disputed"`
	Skipped    int       `json:"skipped"`
	Failed     int       `json:"failed"`
}

// ReportArchiver stores finished sweep reports somewhere durable.
type ReportArchiver interface {
	Archive(ctx context.Context, report *SweepReport) error
}

// DeferredScorer turns outcome claims of long-completed matches into skill
// changes. It is level-triggered: every pass re-selects what still looks
// unprocessed, and the processed flag makes each write happen once.
type DeferredScorer struct {
	DB       *gorm.DB
	Clock    clockwork.Clock
	Notifier Notifier
	Policy   OpponentPolicy
	Archiver ReportArchiver // optional
	Log      *zap.Logger
	Delay    time.Duration
}

func NewDeferredScorer(db *gorm.DB, clock clockwork.Clock, notifier Notifier, policy OpponentPolicy, log *zap.Logger) *DeferredScorer {
	if notifier == nil {
		notifier = NopNotifier{}
	}
	if policy == nil {
		policy = AverageLevelPolicy{}
	}
	return &DeferredScorer{
		DB:       db,
		Clock:    clock,
		Notifier: notifier,
		Policy:   policy,
		Log:      log.Named("scorer"),
		Delay:    DefaultScoringDelay,
	}
}

// Sweep scores every completed match older than Delay that still has
// unprocessed claims. A failing match is logged and left for the next pass.
func (s *DeferredScorer) Sweep(ctx context.Context) (*SweepReport, error) {
	now := s.Clock.Now().UTC()
	report := &SweepReport{RunID: uuid.NewString(), StartedAt: now}

	var ids []string
	err := s.DB.WithContext(ctx).Model(&models.Match{}).
		Where("status = ? AND completed_at <= ?", models.MatchCompleted, now.Add(-s.Delay)).
		Where("EXISTS (SELECT 1 FROM outcome_claims c WHERE c.match_id = matches.id AND c.processed = ?)", false).
		Order("completed_at ASC").
		Pluck("id", &ids).Error
	if err != nil {
		return nil, dbError(err, "matches")
	}

	for _, id := range ids {
		if ctx.Err() != nil {
			break
		}
		report.Examined++
		result, err := s.ScoreMatch(ctx, id)
		if err != nil {
			report.Failed++
			s.Log.Error("failed to score match", zap.String("match_id", id), zap.Error(err))
			continue
		}
		switch result {
		case ScoreScored:
			report.Scored++
		case ScoreDisputed:
			report.Disputed++
		default:
			report.Skipped++
		}
	}
	report.FinishedAt = s.Clock.Now().UTC()

	s.Log.Info("scoring sweep finished",
		zap.String("run_id", report.RunID),
		zap.Int("examined", report.Examined),
		zap.Int("scored", report.Scored),
		zap.Int("disputed", report.Disputed),
		zap.Int("skipped", report.Skipped),
		zap.Int("failed", report.Failed),
	)
	if s.Archiver != nil {
		if err := s.Archiver.Archive(ctx, report); err != nil {
			s.Log.Warn("failed to archive sweep report", zap.String("run_id", report.RunID), zap.Error(err))
		}
	}
	return report, nil
}

// ScoreMatch resolves and scores a single completed match inside one
// transaction with the match row locked.
func (s *DeferredScorer) ScoreMatch(ctx context.Context, matchID string) (ScoreResult, error) {
	now := s.Clock.Now().UTC()

	var result ScoreResult
	var participants []models.Participant
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var match models.Match
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&match, "id = ?", matchID).Error; err != nil {
			return dbError(err, "match")
		}
		if match.Status != models.MatchCompleted {
			return validationf("match is %s; only completed matches are scored", match.Status)
		}

		var claims []models.OutcomeClaim
		if err := tx.Where("match_id = ?", matchID).Order("reported_at ASC").Find(&claims).Error; err != nil {
			return dbError(err, "outcome claims")
		}
		if len(claims) == 0 {
			result = ScoreUndecided
			return nil
		}
		if allProcessed(claims) {
			result = ScoreAlreadyProcessed
			return nil
		}

		var err error
		if participants, err = loadParticipants(tx, matchID); err != nil {
			return err
		}

		verdict := Resolve(participants, claims)
		switch {
		case verdict.Disputed:
			result = ScoreDisputed
			return markDisputed(tx, matchID, participants, now)
		case !verdict.Decided():
			result = ScoreUndecided
			return nil
		}

		result = ScoreScored
		return s.applyVerdict(tx, &match, participants, claims, verdict, now)
	})
	if err != nil {
		return "", err
	}

	if result == ScoreDisputed {
		emitAll(ctx, s.Notifier, s.Log, participants, models.SignalMatchDisputed, map[string]any{
			"match_id": matchID,
		})
		s.Log.Info("match disputed", zap.String("match_id", matchID))
	}
	return result, nil
}

func allProcessed(claims []models.OutcomeClaim) bool {
	for _, c := range claims {
		if !c.Processed {
			return false
		}
	}
	return true
}

// markDisputed overwrites every participant's claim with DISPUTED. Terminal.
func markDisputed(tx *gorm.DB, matchID string, participants []models.Participant, now time.Time) error {
	for _, p := range participants {
		claim := models.OutcomeClaim{
			MatchID:     matchID,
			UserID:      p.UserID,
			Outcome:     models.OutcomeDisputed,
			ReportedBy:  models.SystemReporter,
			ReportedAt:  now,
			Processed:   true,
			ProcessedAt: &now,
		}
		err := tx.Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "match_id"}, {Name: "user_id"}},
			DoUpdates: clause.Assignments(map[string]any{
				"outcome":      models.OutcomeDisputed,
				"processed":    true,
				"processed_at": now,
				"updated_at":   now,
			}),
		}).Create(&claim).Error
		if err != nil {
			return dbError(err, "outcome claim")
		}
	}
	return nil
}

// applyVerdict scores each participant at most once. Opponent levels are
// snapshotted up front so the order of updates inside the match does not
// change anyone's delta.
func (s *DeferredScorer) applyVerdict(tx *gorm.DB, match *models.Match, participants []models.Participant, claims []models.OutcomeClaim, verdict Verdict, now time.Time) error {
	ids := make([]string, 0, len(participants))
	for _, p := range participants {
		ids = append(ids, p.UserID)
	}
	levels, err := skillLevels(tx, match.GameID, ids)
	if err != nil {
		return err
	}
	claimOf := make(map[string]models.OutcomeClaim, len(claims))
	for _, c := range claims {
		claimOf[c.UserID] = c
	}

	for _, p := range participants {
		final, ok := finalOutcome(verdict, p)
		if !ok {
			continue
		}

		claim, hasClaim := claimOf[p.UserID]
		if hasClaim && claim.Processed {
			continue
		}
		claimed, err := consumeClaim(tx, match.ID, p.UserID, claim, hasClaim, final, now)
		if err != nil {
			return err
		}
		if !claimed {
			continue
		}
		if hasClaim && claim.Outcome == models.OutcomeNoShow {
			continue
		}

		opponentLevel, ok := s.Policy.OpponentLevel(opponentsOf(p, participants, verdict.TeamMatch), levels)
		if !ok {
			continue
		}
		rec, err := lockSkill(tx, p.UserID, match.GameID)
		if err != nil {
			return err
		}
		adj, err := Adjust(final, rec.Level, opponentLevel, rec.Score)
		if err != nil {
			return err
		}
		if err := saveSkill(tx, &rec, adj); err != nil {
			return err
		}
		s.Log.Debug("skill adjusted",
			zap.String("match_id", match.ID),
			zap.String("user_id", p.UserID),
			zap.String("outcome", string(final)),
			zap.Int("delta", adj.Delta),
			zap.String("level", string(adj.NewLevel)),
			zap.Int("score", adj.NewScore),
		)
	}
	return nil
}

// finalOutcome is the participant's scored outcome under the verdict.
func finalOutcome(v Verdict, p models.Participant) (models.Outcome, bool) {
	if v.TeamMatch {
		team := p.TeamNumber()
		if team != 1 && team != 2 {
			return models.OutcomeNone, false
		}
		return v.OutcomeForTeam(team)
	}
	if p.UserID == v.Reporter {
		return v.Outcome, true
	}
	return v.Outcome.Complement()
}

// consumeClaim flips processed false->true, or inserts a processed system claim
// for a participant who never reported. It reports false when a concurrent
// writer got there first.
func consumeClaim(tx *gorm.DB, matchID, userID string, claim models.OutcomeClaim, exists bool, final models.Outcome, now time.Time) (bool, error) {
	if exists {
		res := tx.Model(&models.OutcomeClaim{}).
			Where("id = ? AND processed = ?", claim.ID, false).
			Updates(map[string]any{"processed": true, "processed_at": now})
		if res.Error != nil {
			return false, dbError(res.Error, "outcome claim")
		}
		return res.RowsAffected == 1, nil
	}
	derived := models.OutcomeClaim{
		MatchID:     matchID,
		UserID:      userID,
		Outcome:     final,
		ReportedBy:  models.SystemReporter,
		ReportedAt:  now,
		Processed:   true,
		ProcessedAt: &now,
	}
	res := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&derived)
	if res.Error != nil {
		return false, dbError(res.Error, "outcome claim")
	}
	return res.RowsAffected == 1, nil
}
