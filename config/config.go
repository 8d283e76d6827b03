package config

import (
	"errors"
	"io/fs"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"github.com/rotisserie/eris"
)

type Config struct {
	HTTPAddr       string `env:"HTTP_ADDR" envDefault:":5200"`
	DatabaseURL    string `env:"DATABASE_URL"`
	GatewayToken   string `env:"GAME_SERVICE_TOKEN"`
	AllowedOrigins string `env:"ALLOWED_ORIGINS" envDefault:"*"`
	LogLevel       string `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat      string `env:"LOG_FORMAT" envDefault:"console"`

	// Optional transports
	RedisURL          string `env:"REDIS_URL"`
	NATSURL           string `env:"NATS_URL"`
	NATSToken         string `env:"NATS_TOKEN"`
	NATSSubjectPrefix string `env:"NATS_SUBJECT_PREFIX" envDefault:"matches.signals"`

	// Payment gate (every seat is confirmed when unset)
	PaymentServiceURL   string `env:"PAYMENT_SERVICE_URL"`
	PaymentServiceToken string `env:"PAYMENT_SERVICE_TOKEN"`

	// Sweeps
	LifecycleSweepInterval time.Duration `env:"LIFECYCLE_SWEEP_INTERVAL" envDefault:"1m"`
	ScorerSweepInterval    time.Duration `env:"SCORER_SWEEP_INTERVAL" envDefault:"15m"`
	CompletionBuffer       time.Duration `env:"COMPLETION_BUFFER" envDefault:"5m"`
	ScoringDelay           time.Duration `env:"SCORING_DELAY" envDefault:"24h"`
	SweepLockTTL           time.Duration `env:"SWEEP_LOCK_TTL" envDefault:"5m"`
	OpponentPolicy         string        `env:"OPPONENT_POLICY" envDefault:"average"`

	// Sweep report archive (disabled when the bucket is empty)
	R2AccountID       string `env:"CLOUDFLARE_ACCOUNT_ID"`
	R2AccessKeyID     string `env:"R2_ACCESS_KEY_ID"`
	R2AccessKeySecret string `env:"R2_ACCESS_KEY_SECRET"`
	R2Bucket          string `env:"R2_BUCKET_NAME"`
}

// Load reads an optional .env file and then the process environment.
// It reports whether a .env file was found.
func Load() (Config, bool, error) {
	loaded := true
	if err := godotenv.Load(); err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			return Config{}, false, eris.Wrap(err, "failed to read .env")
		}
		loaded = false
	}
	cfg, err := Parse()
	return cfg, loaded, err
}

// Parse reads the process environment only.
func Parse() (Config, error) {
	cfg := Config{}
	if err := env.Parse(&cfg); err != nil {
		return cfg, eris.Wrap(err, "failed to parse environment variables")
	}
	return cfg, cfg.Validate()
}

func (c Config) Validate() error {
	durations := map[string]time.Duration{
		"LIFECYCLE_SWEEP_INTERVAL": c.LifecycleSweepInterval,
		"SCORER_SWEEP_INTERVAL":    c.ScorerSweepInterval,
		"COMPLETION_BUFFER":        c.CompletionBuffer,
		"SCORING_DELAY":            c.ScoringDelay,
		"SWEEP_LOCK_TTL":           c.SweepLockTTL,
	}
	for name, d := range durations {
		if d <= 0 {
			return eris.Errorf("%s must be positive, got %s", name, d)
		}
	}
	switch c.OpponentPolicy {
	case "average", "first":
	default:
		return eris.Errorf("OPPONENT_POLICY must be average or first, got %q", c.OpponentPolicy)
	}
	return nil
}

// RequireServe checks the keys only the HTTP server needs.
func (c Config) RequireServe() error {
	if c.DatabaseURL == "" {
		return eris.New("DATABASE_URL is required")
	}
	if c.GatewayToken == "" {
		return eris.New("GAME_SERVICE_TOKEN is required")
	}
	return nil
}

func (c Config) ArchiveEnabled() bool { return c.R2Bucket != "" }
