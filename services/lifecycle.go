package services

import (
	"context"
	"errors"
	"strings"
	"time"

	"match-engine/models"

	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const (
	// RefundWindow is a business rule: leaving earlier than this before the
	// scheduled start is refund-eligible. Not configurable per match.
	RefundWindow = 12 * time.Hour

	DefaultCompletionBuffer = 5 * time.Minute
	MinParticipants         = 2
)

// errAlreadyTransitioned aborts a transition another sweep already applied.
var errAlreadyTransitioned = errors.New("match already transitioned")

// MatchService owns the match status state machine:
// UPCOMING -> ONGOING -> COMPLETED, and UPCOMING/ONGOING -> CANCELLED.
type MatchService struct {
	DB       *gorm.DB
	Clock    clockwork.Clock
	Notifier Notifier
	Payments PaymentAuthorizer
	Log      *zap.Logger

	// CompletionBuffer trails the scheduled end so the complete sweep never
	// races the start sweep on short matches.
	CompletionBuffer time.Duration
}

func NewMatchService(db *gorm.DB, clock clockwork.Clock, notifier Notifier, payments PaymentAuthorizer, log *zap.Logger) *MatchService {
	if notifier == nil {
		notifier = NopNotifier{}
	}
	if payments == nil {
		payments = NoChargeAuthorizer{}
	}
	return &MatchService{
		DB:               db,
		Clock:            clock,
		Notifier:         notifier,
		Payments:         payments,
		Log:              log.Named("lifecycle"),
		CompletionBuffer: DefaultCompletionBuffer,
	}
}

type CreateMatchInput struct {
	GameID          string    `json:"game_id"`
	CreatorID       string    `json:"-"`
	ScheduledAt     time.Time `json:"scheduled_at"`
	DurationMinutes int       `json:"duration_minutes"`
	MaxParticipants int       `json:"max_participants"`
	TeamMatch       bool      `json:"team_match"`
}

func (in CreateMatchInput) validate(now time.Time) error {
	switch {
	case strings.TrimSpace(in.GameID) == "":
		return validationf("game_id is required")
	case strings.TrimSpace(in.CreatorID) == "":
		return validationf("creator is required")
	case in.ScheduledAt.IsZero() || !in.ScheduledAt.After(now):
		return validationf("scheduled_at must be in the future")
	case in.DurationMinutes <= 0:
		return validationf("duration_minutes must be positive")
	case in.MaxParticipants < MinParticipants:
		return validationf("max_participants must be at least %d", MinParticipants)
	}
	return nil
}

// CreateMatch persists an UPCOMING match and seats the creator in it.
func (s *MatchService) CreateMatch(ctx context.Context, in CreateMatchInput) (*models.Match, error) {
	now := s.Clock.Now().UTC()
	if err := in.validate(now); err != nil {
		return nil, err
	}

	scheduled := in.ScheduledAt.UTC()
	match := &models.Match{
		GameID:          in.GameID,
		CreatorID:       in.CreatorID,
		ScheduledAt:     scheduled,
		DurationMinutes: in.DurationMinutes,
		EndsAt:          scheduled.Add(time.Duration(in.DurationMinutes) * time.Minute),
		MaxParticipants: in.MaxParticipants,
		TeamMatch:       in.TeamMatch,
		Status:          models.MatchUpcoming,
	}
	creator := models.Participant{
		UserID:        in.CreatorID,
		JoinedAt:      now,
		PaymentStatus: models.PaymentPending,
	}
	if in.TeamMatch {
		team := AssignTeam(nil, models.SkillBeginner)
		creator.Team = &team
	}

	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(match).Error; err != nil {
			return dbError(err, "match")
		}
		creator.MatchID = match.ID
		return dbError(tx.Create(&creator).Error, "participant")
	})
	if err != nil {
		return nil, err
	}

	s.authorizePayment(ctx, &creator)
	match.Participants = []models.Participant{creator}
	s.Log.Info("match created",
		zap.String("match_id", match.ID),
		zap.String("game_id", match.GameID),
		zap.Time("scheduled_at", match.ScheduledAt),
		zap.Bool("team_match", match.TeamMatch),
	)
	return match, nil
}

// GetMatch returns the match with participants in join order.
func (s *MatchService) GetMatch(ctx context.Context, matchID string) (*models.Match, error) {
	var match models.Match
	err := s.DB.WithContext(ctx).
		Preload("Participants", func(db *gorm.DB) *gorm.DB {
			return db.Order("joined_at ASC")
		}).
		First(&match, "id = ?", matchID).Error
	if err != nil {
		return nil, dbError(err, "match")
	}
	return &match, nil
}

// JoinMatch seats a user in an UPCOMING match. Team matches get a team from the
// balancer; the assignment is never changed afterwards.
func (s *MatchService) JoinMatch(ctx context.Context, matchID, userID string) (*models.Participant, error) {
	if strings.TrimSpace(userID) == "" {
		return nil, validationf("user is required")
	}
	now := s.Clock.Now().UTC()

	var participant models.Participant
	var others []models.Participant
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var match models.Match
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&match, "id = ?", matchID).Error; err != nil {
			return dbError(err, "match")
		}
		if match.Status != models.MatchUpcoming {
			return validationf("match is %s; only upcoming matches can be joined", match.Status)
		}

		if err := tx.Where("match_id = ?", matchID).Order("joined_at ASC").Find(&others).Error; err != nil {
			return dbError(err, "participants")
		}
		for _, p := range others {
			if p.UserID == userID {
				return conflictf("user already joined this match")
			}
		}
		if len(others) >= match.MaxParticipants {
			return conflictf("match is full")
		}

		participant = models.Participant{
			MatchID:       matchID,
			UserID:        userID,
			JoinedAt:      now,
			PaymentStatus: models.PaymentPending,
		}
		if match.TeamMatch {
			team, err := s.balance(tx, match.GameID, others, userID)
			if err != nil {
				return err
			}
			participant.Team = &team
		}
		return dbError(tx.Create(&participant).Error, "participant")
	})
	if err != nil {
		return nil, err
	}

	s.authorizePayment(ctx, &participant)
	emitAll(ctx, s.Notifier, s.Log, others, models.SignalPlayerJoined, map[string]any{
		"match_id": matchID,
		"user_id":  userID,
	})
	return &participant, nil
}

func (s *MatchService) balance(tx *gorm.DB, gameID string, seated []models.Participant, joiner string) (int, error) {
	ids := make([]string, 0, len(seated)+1)
	for _, p := range seated {
		ids = append(ids, p.UserID)
	}
	ids = append(ids, joiner)
	levels, err := skillLevels(tx, gameID, ids)
	if err != nil {
		return 0, err
	}
	members := make([]TeamMember, 0, len(seated))
	for _, p := range seated {
		members = append(members, TeamMember{Team: p.TeamNumber(), Level: levels[p.UserID]})
	}
	return AssignTeam(members, levels[joiner]), nil
}

// authorizePayment asks the payment gate once. Failures leave the participant
// in PENDING_PAYMENT.
func (s *MatchService) authorizePayment(ctx context.Context, p *models.Participant) {
	status, err := s.Payments.Authorize(ctx, p.MatchID, p.UserID)
	if err != nil {
		s.Log.Warn("payment authorization failed",
			zap.String("match_id", p.MatchID),
			zap.String("user_id", p.UserID),
			zap.Error(err),
		)
		return
	}
	if status == "" || status == p.PaymentStatus {
		return
	}
	err = s.DB.WithContext(ctx).Model(&models.Participant{}).
		Where("id = ?", p.ID).
		Update("payment_status", status).Error
	if err != nil {
		s.Log.Error("failed to store payment status", zap.String("participant_id", p.ID), zap.Error(err))
		return
	}
	p.PaymentStatus = status
}

type LeaveResult struct {
	MatchID        string `json:"match_id"`
	RefundEligible bool   `json:"refund_eligible"`
}

// LeaveMatch removes the participant row of an UPCOMING match. Leaving more
// than RefundWindow before the start is refund-eligible.
func (s *MatchService) LeaveMatch(ctx context.Context, matchID, userID string) (*LeaveResult, error) {
	now := s.Clock.Now().UTC()

	var match models.Match
	var remaining []models.Participant
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&match, "id = ?", matchID).Error; err != nil {
			return dbError(err, "match")
		}
		if match.Status != models.MatchUpcoming {
			return validationf("match is %s; only upcoming matches can be left", match.Status)
		}
		res := tx.Where("match_id = ? AND user_id = ?", matchID, userID).Delete(&models.Participant{})
		if res.Error != nil {
			return dbError(res.Error, "participant")
		}
		if res.RowsAffected == 0 {
			return validationf("user is not a participant of this match")
		}
		return dbError(tx.Where("match_id = ?", matchID).Order("joined_at ASC").Find(&remaining).Error, "participants")
	})
	if err != nil {
		return nil, err
	}

	result := &LeaveResult{
		MatchID:        matchID,
		RefundEligible: match.ScheduledAt.Sub(now) > RefundWindow,
	}
	emit(ctx, s.Notifier, s.Log, userID, models.SignalYouLeftSpot, map[string]any{
		"match_id":        matchID,
		"refund_eligible": result.RefundEligible,
	})
	emitAll(ctx, s.Notifier, s.Log, remaining, models.SignalPlayerLeft, map[string]any{
		"match_id": matchID,
		"user_id":  userID,
	})
	s.Log.Info("participant left",
		zap.String("match_id", matchID),
		zap.String("user_id", userID),
		zap.Bool("refund_eligible", result.RefundEligible),
	)
	return result, nil
}

// Actor is the caller of a privileged operation.
type Actor struct {
	UserID string
	Admin  bool
}

type CancelInput struct {
	MatchID string
	Actor   Actor
	Reason  models.CancelReason
	Note    string
}

// CancelMatch moves an UPCOMING or ONGOING match to CANCELLED. Only the creator
// or an administrator may cancel; OTHER requires a free-text note.
func (s *MatchService) CancelMatch(ctx context.Context, in CancelInput) (*models.Match, error) {
	if !in.Reason.Valid() {
		return nil, validationf("invalid cancel reason %q", in.Reason)
	}
	note := strings.TrimSpace(in.Note)
	if in.Reason == models.CancelOther && note == "" {
		return nil, validationf("a reason note is required when the reason is OTHER")
	}
	now := s.Clock.Now().UTC()

	var match models.Match
	var roster []models.Participant
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&match, "id = ?", in.MatchID).Error; err != nil {
			return dbError(err, "match")
		}
		if !in.Actor.Admin && in.Actor.UserID != match.CreatorID {
			return forbiddenf("only the match creator or an administrator can cancel")
		}
		if match.Status.Terminal() {
			return conflictf("match is already %s", match.Status)
		}

		updates := map[string]any{
			"status":        models.MatchCancelled,
			"cancel_reason": in.Reason,
			"cancelled_at":  now,
		}
		if note != "" {
			updates["cancel_note"] = note
		}
		res := tx.Model(&models.Match{}).
			Where("id = ? AND status IN ?", match.ID, []models.MatchStatus{models.MatchUpcoming, models.MatchOngoing}).
			Updates(updates)
		if res.Error != nil {
			return dbError(res.Error, "match")
		}
		if res.RowsAffected == 0 {
			return conflictf("match is no longer cancellable")
		}
		return dbError(tx.Where("match_id = ?", match.ID).Order("joined_at ASC").Find(&roster).Error, "participants")
	})
	if err != nil {
		return nil, err
	}

	match.Status = models.MatchCancelled
	match.CancelReason = &in.Reason
	if note != "" {
		match.CancelNote = &note
	}
	match.CancelledAt = &now
	match.Participants = roster

	userIDs := make([]string, 0, len(roster))
	for _, p := range roster {
		userIDs = append(userIDs, p.UserID)
	}
	emitAll(ctx, s.Notifier, s.Log, roster, models.SignalMatchCancelled, map[string]any{
		"match_id": match.ID,
		"reason":   in.Reason,
		"note":     note,
		"roster":   userIDs,
	})
	s.Log.Info("match cancelled",
		zap.String("match_id", match.ID),
		zap.String("actor", in.Actor.UserID),
		zap.String("reason", string(in.Reason)),
	)
	return &match, nil
}

// StartDueMatches moves every UPCOMING match whose start time has passed to
// ONGOING. The status compare-and-set makes overlapping sweeps harmless.
func (s *MatchService) StartDueMatches(ctx context.Context) (int, error) {
	now := s.Clock.Now().UTC()

	var due []models.Match
	err := s.DB.WithContext(ctx).
		Where("status = ? AND scheduled_at <= ?", models.MatchUpcoming, now).
		Order("scheduled_at ASC").
		Find(&due).Error
	if err != nil {
		return 0, dbError(err, "matches")
	}

	started := 0
	for _, m := range due {
		res := s.DB.WithContext(ctx).Model(&models.Match{}).
			Where("id = ? AND status = ?", m.ID, models.MatchUpcoming).
			Updates(map[string]any{"status": models.MatchOngoing, "started_at": now})
		if res.Error != nil {
			s.Log.Error("failed to start match", zap.String("match_id", m.ID), zap.Error(res.Error))
			continue
		}
		if res.RowsAffected == 0 {
			continue
		}
		started++

		participants, err := s.participants(ctx, m.ID)
		if err != nil {
			s.Log.Warn("match started but roster could not be loaded", zap.String("match_id", m.ID), zap.Error(err))
			continue
		}
		emitAll(ctx, s.Notifier, s.Log, participants, models.SignalMatchStarted, map[string]any{
			"match_id": m.ID,
		})
		s.Log.Info("match started", zap.String("match_id", m.ID))
	}
	return started, nil
}

// CompleteDueMatches moves ONGOING matches past their end (plus buffer) to
// COMPLETED and bumps each participant's games-played counter in the same
// transaction.
func (s *MatchService) CompleteDueMatches(ctx context.Context) (int, error) {
	now := s.Clock.Now().UTC()
	cutoff := now.Add(-s.CompletionBuffer)

	var due []models.Match
	err := s.DB.WithContext(ctx).
		Where("status = ? AND ends_at <= ?", models.MatchOngoing, cutoff).
		Order("ends_at ASC").
		Find(&due).Error
	if err != nil {
		return 0, dbError(err, "matches")
	}

	completed := 0
	for _, m := range due {
		var participants []models.Participant
		err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			res := tx.Model(&models.Match{}).
				Where("id = ? AND status = ?", m.ID, models.MatchOngoing).
				Updates(map[string]any{"status": models.MatchCompleted, "completed_at": now})
			if res.Error != nil {
				return res.Error
			}
			if res.RowsAffected == 0 {
				return errAlreadyTransitioned
			}
			if err := tx.Where("match_id = ?", m.ID).Order("joined_at ASC").Find(&participants).Error; err != nil {
				return err
			}
			for _, p := range participants {
				if err := bumpGamesPlayed(tx, p.UserID, now); err != nil {
					return err
				}
			}
			return nil
		})
		if errors.Is(err, errAlreadyTransitioned) {
			continue
		}
		if err != nil {
			s.Log.Error("failed to complete match", zap.String("match_id", m.ID), zap.Error(err))
			continue
		}
		completed++

		payload := map[string]any{"match_id": m.ID}
		emitAll(ctx, s.Notifier, s.Log, participants, models.SignalMatchCompleted, payload)
		emitAll(ctx, s.Notifier, s.Log, participants, models.SignalSubmitResults, payload)
		s.Log.Info("match completed", zap.String("match_id", m.ID), zap.Int("participants", len(participants)))
	}
	return completed, nil
}

func bumpGamesPlayed(tx *gorm.DB, userID string, now time.Time) error {
	stats := models.PlayerStats{UserID: userID, GamesPlayed: 1, LastPlayedAt: &now}
	return tx.Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "user_id"}},
		DoUpdates: clause.Assignments(map[string]any{
			"games_played":   gorm.Expr("player_stats.games_played + 1"),
			"last_played_at": now,
			"updated_at":     now,
		}),
	}).Create(&stats).Error
}

func (s *MatchService) participants(ctx context.Context, matchID string) ([]models.Participant, error) {
	return loadParticipants(s.DB.WithContext(ctx), matchID)
}

func loadParticipants(db *gorm.DB, matchID string) ([]models.Participant, error) {
	var participants []models.Participant
	if err := db.Where("match_id = ?", matchID).Order("joined_at ASC").Find(&participants).Error; err != nil {
		return nil, dbError(err, "participants")
	}
	return participants, nil
}
