package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"match-engine/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeArchiver struct {
	reports []*SweepReport
	err     error
}

func (a *fakeArchiver) Archive(_ context.Context, r *SweepReport) error {
	a.reports = append(a.reports, r)
	return a.err
}

func (f *fixture) allSkills(t *testing.T) []models.SkillRecord {
	t.Helper()
	var recs []models.SkillRecord
	require.NoError(t, f.db.Order("user_id").Find(&recs).Error)
	return recs
}

func TestScorer_TwoPlayerReportForAll(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.setSkill(t, "bob", models.SkillIntermediate, 50)
	m := f.seedMatch(t, models.MatchCompleted, []string{"alice", "bob"}, nil)

	_, err := f.ledger.RecordOutcomeForAll(ctx, m.ID, "alice", models.OutcomeWon)
	require.NoError(t, err)

	f.clock.Advance(23 * time.Hour)
	report, err := f.scorer.Sweep(ctx)
	require.NoError(t, err)
	assert.Zero(t, report.Examined, "too early")
	assert.False(t, f.claims(t, m.ID)["alice"].Processed)

	f.clock.Advance(time.Hour)
	report, err = f.scorer.Sweep(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Examined)
	assert.Equal(t, 1, report.Scored)
	assert.Zero(t, report.Disputed)

	alice := f.skill(t, "alice")
	assert.Equal(t, models.SkillBeginner, alice.Level)
	assert.Equal(t, 3, alice.Score, "beat a stronger opponent")

	bob := f.skill(t, "bob")
	assert.Equal(t, models.SkillIntermediate, bob.Level)
	assert.Equal(t, 47, bob.Score, "lost to a weaker opponent")

	for user, c := range f.claims(t, m.ID) {
		assert.True(t, c.Processed, user)
		assert.NotNil(t, c.ProcessedAt, user)
		assert.NotEqual(t, models.OutcomeDisputed, c.Outcome, user)
	}
}

func TestScorer_TeamsBothClaimingWinAreDisputed(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	m := f.seedMatch(t, models.MatchCompleted, []string{"a1", "a2", "b1", "b2"}, []int{1, 1, 2, 2})
	for _, u := range []string{"a1", "a2", "b1", "b2"} {
		_, err := f.ledger.RecordOutcome(ctx, m.ID, u, models.OutcomeWon)
		require.NoError(t, err)
	}

	f.clock.Advance(DefaultScoringDelay)
	report, err := f.scorer.Sweep(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Disputed)
	assert.Zero(t, report.Scored)

	claims := f.claims(t, m.ID)
	require.Len(t, claims, 4)
	for user, c := range claims {
		assert.Equal(t, models.OutcomeDisputed, c.Outcome, user)
		assert.True(t, c.Processed, user)
	}
	assert.Empty(t, f.allSkills(t), "no skill record touched")
	assert.ElementsMatch(t, []string{"a1", "a2", "b1", "b2"}, f.notifier.recipients(models.SignalMatchDisputed))

	report, err = f.scorer.Sweep(ctx)
	require.NoError(t, err)
	assert.Zero(t, report.Examined, "disputed is terminal")
}

func TestScorer_DisputeCoversSilentParticipants(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	m := f.seedMatch(t, models.MatchCompleted, []string{"a1", "a2", "b1", "b2"}, []int{1, 1, 2, 2})
	for _, u := range []string{"a1", "b1"} {
		_, err := f.ledger.RecordOutcome(ctx, m.ID, u, models.OutcomeLost)
		require.NoError(t, err)
	}

	f.clock.Advance(DefaultScoringDelay)
	result, err := f.scorer.ScoreMatch(ctx, m.ID)
	require.NoError(t, err)
	assert.Equal(t, ScoreDisputed, result)

	claims := f.claims(t, m.ID)
	require.Len(t, claims, 4)
	assert.Equal(t, models.SystemReporter, claims["a2"].ReportedBy)
	assert.Equal(t, models.OutcomeDisputed, claims["b2"].Outcome)
}

func TestScorer_NoClaimsIsLeftAlone(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	m := f.seedMatch(t, models.MatchCompleted, []string{"alice", "bob"}, nil)
	f.clock.Advance(48 * time.Hour)

	for i := 0; i < 3; i++ {
		report, err := f.scorer.Sweep(ctx)
		require.NoError(t, err)
		assert.Zero(t, report.Examined)
		assert.Zero(t, report.Failed)
	}
	assert.Empty(t, f.claims(t, m.ID))
	assert.Empty(t, f.allSkills(t))

	result, err := f.scorer.ScoreMatch(ctx, m.ID)
	require.NoError(t, err)
	assert.Equal(t, ScoreUndecided, result)

	// a late claim makes it eligible again
	_, err = f.ledger.RecordOutcome(ctx, m.ID, "bob", models.OutcomeDraw)
	require.NoError(t, err)
	report, err := f.scorer.Sweep(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Scored)
}

func TestScorer_BelowPromotionBoundary(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.setSkill(t, "ines", models.SkillIntermediate, 98)
	m := f.seedMatch(t, models.MatchCompleted, []string{"ines", "bea"}, nil)
	_, err := f.ledger.RecordOutcome(ctx, m.ID, "ines", models.OutcomeWon)
	require.NoError(t, err)

	f.clock.Advance(DefaultScoringDelay)
	_, err = f.scorer.Sweep(ctx)
	require.NoError(t, err)

	ines := f.skill(t, "ines")
	assert.Equal(t, models.SkillIntermediate, ines.Level)
	assert.Equal(t, 99, ines.Score)

	// bea never reported; a processed system claim records her derived loss
	bea := f.claims(t, m.ID)["bea"]
	assert.Equal(t, models.OutcomeLost, bea.Outcome)
	assert.Equal(t, models.SystemReporter, bea.ReportedBy)
	assert.True(t, bea.Processed)
}

func TestScorer_IdempotentAcrossSweeps(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.setSkill(t, "a1", models.SkillProfessional, 20)
	f.setSkill(t, "b2", models.SkillIntermediate, 99)

	team := f.seedMatch(t, models.MatchCompleted, []string{"a1", "a2", "b1", "b2"}, []int{1, 1, 2, 2})
	flat := f.seedMatch(t, models.MatchCompleted, []string{"c1", "c2"}, nil)
	_, err := f.ledger.RecordOutcome(ctx, team.ID, "b1", models.OutcomeWon)
	require.NoError(t, err)
	_, err = f.ledger.RecordOutcomeForAll(ctx, flat.ID, "c2", models.OutcomeDraw)
	require.NoError(t, err)

	f.clock.Advance(DefaultScoringDelay)
	first, err := f.scorer.Sweep(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, first.Scored)
	after := f.allSkills(t)

	second, err := f.scorer.Sweep(ctx)
	require.NoError(t, err)
	assert.Zero(t, second.Examined)
	assert.Equal(t, after, f.allSkills(t))

	for _, id := range []string{team.ID, flat.ID} {
		result, err := f.scorer.ScoreMatch(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, ScoreAlreadyProcessed, result)
	}
	assert.Equal(t, after, f.allSkills(t))
}

func TestScorer_TeamOutcomeAppliesToSilentTeam(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.setSkill(t, "b1", models.SkillProfessional, 10)
	m := f.seedMatch(t, models.MatchCompleted, []string{"a1", "a2", "b1", "b2"}, []int{1, 1, 2, 2})
	_, err := f.ledger.RecordOutcome(ctx, m.ID, "a1", models.OutcomeWon)
	require.NoError(t, err)

	f.clock.Advance(DefaultScoringDelay)
	result, err := f.scorer.ScoreMatch(ctx, m.ID)
	require.NoError(t, err)
	assert.Equal(t, ScoreScored, result)

	// team 2 averages (3+1)/2 = INTERMEDIATE: a1, a2 beat a stronger side
	assert.Equal(t, 3, f.skill(t, "a1").Score)
	assert.Equal(t, 3, f.skill(t, "a2").Score)

	// team 1 is all BEGINNER: b1 (PRO) lost to weaker, b2 lost at even level
	assert.Equal(t, 7, f.skill(t, "b1").Score)
	b2 := f.skill(t, "b2")
	assert.Equal(t, models.SkillBeginner, b2.Level)
	assert.Equal(t, 0, b2.Score)

	claims := f.claims(t, m.ID)
	assert.Equal(t, models.OutcomeWon, claims["a2"].Outcome)
	assert.Equal(t, models.OutcomeLost, claims["b1"].Outcome)
	assert.Equal(t, models.OutcomeLost, claims["b2"].Outcome)
}

func TestScorer_NoShowIsProcessedWithoutAdjustment(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	m := f.seedMatch(t, models.MatchCompleted, []string{"alice", "ghost"}, nil)
	_, err := f.ledger.RecordOutcome(ctx, m.ID, "alice", models.OutcomeWon)
	require.NoError(t, err)
	_, err = f.ledger.RecordOutcome(ctx, m.ID, "ghost", models.OutcomeNoShow)
	require.NoError(t, err)

	f.clock.Advance(DefaultScoringDelay)
	result, err := f.scorer.ScoreMatch(ctx, m.ID)
	require.NoError(t, err)
	assert.Equal(t, ScoreScored, result)

	claims := f.claims(t, m.ID)
	assert.True(t, claims["ghost"].Processed)
	assert.Equal(t, models.OutcomeNoShow, claims["ghost"].Outcome)
	assert.Equal(t, 2, f.skill(t, "alice").Score)

	var count int64
	require.NoError(t, f.db.Model(&models.SkillRecord{}).Where("user_id = ?", "ghost").Count(&count).Error)
	assert.Zero(t, count)
}

func TestScorer_UndecidedStaysEligible(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	m := f.seedMatch(t, models.MatchCompleted, []string{"a1", "a2", "b1"}, []int{1, 1, 2})
	_, err := f.ledger.RecordOutcome(ctx, m.ID, "a1", models.OutcomeWon)
	require.NoError(t, err)
	_, err = f.ledger.RecordOutcome(ctx, m.ID, "a2", models.OutcomeLost)
	require.NoError(t, err)

	f.clock.Advance(DefaultScoringDelay)
	report, err := f.scorer.Sweep(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Skipped)

	claims := f.claims(t, m.ID)
	assert.Len(t, claims, 2)
	assert.False(t, claims["a1"].Processed)

	_, err = f.ledger.RecordOutcome(ctx, m.ID, "b1", models.OutcomeLost)
	require.NoError(t, err)
	report, err = f.scorer.Sweep(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Scored)
	assert.Equal(t, 2, f.skill(t, "a1").Score)
}

func TestScorer_ScoreMatchRequiresCompleted(t *testing.T) {
	f := newFixture(t)
	m := f.seedMatch(t, models.MatchOngoing, []string{"alice"}, nil)

	_, err := f.scorer.ScoreMatch(context.Background(), m.ID)
	assert.True(t, IsValidation(err))

	_, err = f.scorer.ScoreMatch(context.Background(), "missing")
	assert.True(t, IsNotFound(err))
}

func TestScorer_ArchivesReport(t *testing.T) {
	f := newFixture(t)
	archiver := &fakeArchiver{err: errors.New("bucket unavailable")}
	f.scorer.Archiver = archiver

	report, err := f.scorer.Sweep(context.Background())
	require.NoError(t, err, "archive failures are not sweep failures")
	require.Len(t, archiver.reports, 1)
	assert.Equal(t, report.RunID, archiver.reports[0].RunID)
	assert.NotEmpty(t, report.RunID)
	assert.True(t, report.StartedAt.Equal(t0))
}
