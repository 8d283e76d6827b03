package services

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"match-engine/models"

	"github.com/glebarez/sqlite"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var t0 = time.Date(2025, time.March, 1, 12, 0, 0, 0, time.UTC)

const testGame = "chess"

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(filepath.Join(t.TempDir(), "engine.db")), &gorm.Config{
		TranslateError: true,
		Logger:         logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, models.AutoMigrate(db))
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	return db
}

type sentSignal struct {
	UserID  string
	Signal  models.SignalType
	Payload map[string]any
}

type recordingNotifier struct {
	mu   sync.Mutex
	sent []sentSignal
	fail bool
}

func (r *recordingNotifier) Emit(_ context.Context, userID string, signal models.SignalType, payload map[string]any) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.fail {
		return errors.New("notification sink down")
	}
	r.sent = append(r.sent, sentSignal{UserID: userID, Signal: signal, Payload: payload})
	return nil
}

func (r *recordingNotifier) recipients(signal models.SignalType) []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []string
	for _, s := range r.sent {
		if s.Signal == signal {
			out = append(out, s.UserID)
		}
	}
	return out
}

func (r *recordingNotifier) find(signal models.SignalType, userID string) (sentSignal, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, s := range r.sent {
		if s.Signal == signal && s.UserID == userID {
			return s, true
		}
	}
	return sentSignal{}, false
}

func (r *recordingNotifier) reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sent = nil
}

type fixture struct {
	db       *gorm.DB
	clock    *clockwork.FakeClock
	notifier *recordingNotifier
	matches  *MatchService
	ledger   *OutcomeLedger
	scorer   *DeferredScorer
	skills   *SkillService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db := newTestDB(t)
	clock := clockwork.NewFakeClockAt(t0)
	n := &recordingNotifier{}
	log := zap.NewNop()
	return &fixture{
		db:       db,
		clock:    clock,
		notifier: n,
		matches:  NewMatchService(db, clock, n, nil, log),
		ledger:   NewOutcomeLedger(db, clock, n, log),
		scorer:   NewDeferredScorer(db, clock, n, AverageLevelPolicy{}, log),
		skills:   NewSkillService(db),
	}
}

// seedMatch inserts a match in the given status with participants joined one
// second apart. teams[i] is the team of users[i]; nil means a non-team match.
func (f *fixture) seedMatch(t *testing.T, status models.MatchStatus, users []string, teams []int) *models.Match {
	t.Helper()
	now := f.clock.Now().UTC()
	m := &models.Match{
		GameID:          testGame,
		CreatorID:       users[0],
		ScheduledAt:     now.Add(-2 * time.Hour),
		DurationMinutes: 60,
		EndsAt:          now.Add(-time.Hour),
		MaxParticipants: 10,
		TeamMatch:       teams != nil,
		Status:          status,
	}
	if status == models.MatchCompleted {
		m.CompletedAt = &now
	}
	require.NoError(t, f.db.Create(m).Error)

	for i, u := range users {
		p := models.Participant{
			MatchID:       m.ID,
			UserID:        u,
			JoinedAt:      now.Add(time.Duration(i) * time.Second),
			PaymentStatus: models.PaymentConfirmed,
		}
		if teams != nil {
			team := teams[i]
			p.Team = &team
		}
		require.NoError(t, f.db.Create(&p).Error)
	}
	return m
}

func (f *fixture) setSkill(t *testing.T, userID string, level models.SkillLevel, score int) {
	t.Helper()
	rec := models.SkillRecord{UserID: userID, GameID: testGame, Level: level, Score: score}
	require.NoError(t, f.db.Create(&rec).Error)
}

func (f *fixture) skill(t *testing.T, userID string) models.SkillRecord {
	t.Helper()
	rec, err := f.skills.Get(context.Background(), userID, testGame)
	require.NoError(t, err)
	return rec
}

func (f *fixture) claims(t *testing.T, matchID string) map[string]models.OutcomeClaim {
	t.Helper()
	var list []models.OutcomeClaim
	require.NoError(t, f.db.Where("match_id = ?", matchID).Find(&list).Error)
	out := make(map[string]models.OutcomeClaim, len(list))
	for _, c := range list {
		out[c.UserID] = c
	}
	return out
}

func (f *fixture) reload(t *testing.T, matchID string) models.Match {
	t.Helper()
	var m models.Match
	require.NoError(t, f.db.First(&m, "id = ?", matchID).Error)
	return m
}

func teamOf(n int) *int { return &n }
