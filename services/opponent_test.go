package services

import (
	"testing"
	"time"

	"match-engine/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAverageLevelPolicy(t *testing.T) {
	opponents := []models.Participant{{UserID: "p"}, {UserID: "b"}}
	levels := map[string]models.SkillLevel{"p": models.SkillProfessional}

	// (3 + 1) / 2 = 2
	level, ok := AverageLevelPolicy{}.OpponentLevel(opponents, levels)
	require.True(t, ok)
	assert.Equal(t, models.SkillIntermediate, level)

	// (2 + 1) / 2 = 1.5 rounds up
	levels["p"] = models.SkillIntermediate
	level, _ = AverageLevelPolicy{}.OpponentLevel(opponents, levels)
	assert.Equal(t, models.SkillIntermediate, level)

	// (1 + 1 + 2) / 3 = 1.33 rounds down
	level, _ = AverageLevelPolicy{}.OpponentLevel(append(opponents, models.Participant{UserID: "c"}), map[string]models.SkillLevel{"c": models.SkillIntermediate})
	assert.Equal(t, models.SkillBeginner, level)

	_, ok = AverageLevelPolicy{}.OpponentLevel(nil, levels)
	assert.False(t, ok)
}

func TestFirstJoinedPolicy(t *testing.T) {
	opponents := []models.Participant{
		{UserID: "late", JoinedAt: t0.Add(time.Minute)},
		{UserID: "early", JoinedAt: t0},
	}
	levels := map[string]models.SkillLevel{"late": models.SkillBeginner, "early": models.SkillProfessional}

	level, ok := FirstJoinedPolicy{}.OpponentLevel(opponents, levels)
	require.True(t, ok)
	assert.Equal(t, models.SkillProfessional, level)
}

func TestPolicyByName(t *testing.T) {
	p, err := PolicyByName("")
	require.NoError(t, err)
	assert.IsType(t, AverageLevelPolicy{}, p)

	p, err = PolicyByName("first")
	require.NoError(t, err)
	assert.IsType(t, FirstJoinedPolicy{}, p)

	_, err = PolicyByName("random")
	assert.True(t, IsValidation(err))
}

func TestOpponentsOf(t *testing.T) {
	roster := teamRoster([]string{"a1", "a2"}, []string{"b1", "b2"})

	got := opponentsOf(roster[0], roster, true)
	require.Len(t, got, 2)
	assert.Equal(t, "b1", got[0].UserID)
	assert.Equal(t, "b2", got[1].UserID)

	flat := []models.Participant{{UserID: "x"}, {UserID: "y"}, {UserID: "z"}}
	assert.Len(t, opponentsOf(flat[1], flat, false), 2)
}
