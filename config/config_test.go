package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse_Defaults(t *testing.T) {
	t.Setenv("DATABASE_URL", "")
	t.Setenv("GAME_SERVICE_TOKEN", "")

	cfg, err := Parse()
	require.NoError(t, err)

	assert.Equal(t, ":5200", cfg.HTTPAddr)
	assert.Equal(t, "matches.signals", cfg.NATSSubjectPrefix)
	assert.Equal(t, time.Minute, cfg.LifecycleSweepInterval)
	assert.Equal(t, 15*time.Minute, cfg.ScorerSweepInterval)
	assert.Equal(t, 5*time.Minute, cfg.CompletionBuffer)
	assert.Equal(t, 24*time.Hour, cfg.ScoringDelay)
	assert.Equal(t, "average", cfg.OpponentPolicy)
	assert.False(t, cfg.ArchiveEnabled())
	assert.Error(t, cfg.RequireServe())
}

func TestParse_FromEnvironment(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://engine@localhost/engine")
	t.Setenv("GAME_SERVICE_TOKEN", "secret")
	t.Setenv("SCORING_DELAY", "36h")
	t.Setenv("OPPONENT_POLICY", "first")
	t.Setenv("R2_BUCKET_NAME", "reports")

	cfg, err := Parse()
	require.NoError(t, err)
	assert.Equal(t, 36*time.Hour, cfg.ScoringDelay)
	assert.Equal(t, "first", cfg.OpponentPolicy)
	assert.True(t, cfg.ArchiveEnabled())
	assert.NoError(t, cfg.RequireServe())
}

func TestParse_Invalid(t *testing.T) {
	cases := map[string]string{
		"SCORER_SWEEP_INTERVAL": "0s",
		"COMPLETION_BUFFER":     "-5m",
		"SWEEP_LOCK_TTL":        "soon",
		"OPPONENT_POLICY":       "random",
	}
	for key, value := range cases {
		t.Run(key, func(t *testing.T) {
			t.Setenv(key, value)
			_, err := Parse()
			assert.Error(t, err)
		})
	}
}
