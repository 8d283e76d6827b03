package main

import (
	"context"
	"strings"

	"match-engine/config"
	"match-engine/models"
	"match-engine/notify"
	"match-engine/services"
	"match-engine/utils"

	"github.com/jonboulle/clockwork"
	"github.com/redis/go-redis/v9"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// engine is the wired set of services shared by serve and sweep.
type engine struct {
	cfg   config.Config
	log   *zap.Logger
	db    *gorm.DB
	clock clockwork.Clock

	matches *services.MatchService
	ledger  *services.OutcomeLedger
	scorer  *services.DeferredScorer
	skills  *services.SkillService
	sweeps  *services.SweepRunner

	closers []func()
}

func openDatabase(dsn string) (*gorm.DB, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		TranslateError: true,
		Logger:         gormlogger.Default.LogMode(gormlogger.Warn),
	})
	if err != nil {
		return nil, eris.Wrap(err, "failed to connect to database")
	}
	if err := models.AutoMigrate(db); err != nil {
		return nil, eris.Wrap(err, "failed to migrate database")
	}
	return db, nil
}

func buildEngine(ctx context.Context, cfg config.Config, log *zap.Logger) (*engine, error) {
	if cfg.DatabaseURL == "" {
		return nil, eris.New("DATABASE_URL is required")
	}
	db, err := openDatabase(cfg.DatabaseURL)
	if err != nil {
		return nil, err
	}

	e := &engine{cfg: cfg, log: log, db: db, clock: clockwork.NewRealClock()}

	notifier, err := e.notifier()
	if err != nil {
		e.close()
		return nil, err
	}
	policy, err := services.PolicyByName(cfg.OpponentPolicy)
	if err != nil {
		e.close()
		return nil, err
	}

	var payments services.PaymentAuthorizer
	if cfg.PaymentServiceURL != "" {
		payments = services.NewPaymentServiceClient(cfg.PaymentServiceURL, cfg.PaymentServiceToken)
		log.Info("payment service enabled", zap.String("url", cfg.PaymentServiceURL))
	}

	e.matches = services.NewMatchService(db, e.clock, notifier, payments, log)
	e.matches.CompletionBuffer = cfg.CompletionBuffer
	e.ledger = services.NewOutcomeLedger(db, e.clock, notifier, log)
	e.skills = services.NewSkillService(db)
	e.scorer = services.NewDeferredScorer(db, e.clock, notifier, policy, log)
	e.scorer.Delay = cfg.ScoringDelay

	if cfg.ArchiveEnabled() {
		archiver, err := utils.NewR2Archiver(ctx, utils.R2Config{
			AccountID:       cfg.R2AccountID,
			AccessKeyID:     cfg.R2AccessKeyID,
			AccessKeySecret: cfg.R2AccessKeySecret,
			Bucket:          cfg.R2Bucket,
		})
		if err != nil {
			e.close()
			return nil, err
		}
		e.scorer.Archiver = archiver
		log.Info("sweep report archive enabled", zap.String("bucket", cfg.R2Bucket))
	}

	locker, err := e.locker(ctx)
	if err != nil {
		e.close()
		return nil, err
	}
	e.sweeps = services.NewEngineSweeps(e.matches, e.scorer, locker, cfg.SweepLockTTL, log)
	return e, nil
}

// notifier always logs signals; NATS is added when configured.
func (e *engine) notifier() (services.Notifier, error) {
	sinks := notify.Fanout{notify.NewLogNotifier(e.log)}
	if e.cfg.NATSURL == "" {
		return sinks, nil
	}
	conn, err := notify.Connect(e.cfg.NATSURL, e.cfg.NATSToken)
	if err != nil {
		return nil, err
	}
	e.closers = append(e.closers, func() { _ = conn.Drain() })
	e.log.Info("publishing signals to NATS",
		zap.String("url", e.cfg.NATSURL),
		zap.String("prefix", e.cfg.NATSSubjectPrefix),
	)
	return append(sinks, notify.NewNATSNotifier(conn, e.cfg.NATSSubjectPrefix, e.clock)), nil
}

func (e *engine) locker(ctx context.Context) (services.SweepLocker, error) {
	if strings.TrimSpace(e.cfg.RedisURL) == "" {
		return services.NopLocker{}, nil
	}
	opts, err := redis.ParseURL(e.cfg.RedisURL)
	if err != nil {
		return nil, eris.Wrap(err, "invalid REDIS_URL")
	}
	rdb := redis.NewClient(opts)
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, eris.Wrap(err, "failed to reach redis")
	}
	e.closers = append(e.closers, func() { _ = rdb.Close() })
	e.log.Info("sweep locks backed by redis")
	return services.NewRedisLocker(rdb, e.log), nil
}

func (e *engine) close() {
	for i := len(e.closers) - 1; i >= 0; i-- {
		e.closers[i]()
	}
	if sqlDB, err := e.db.DB(); err == nil {
		_ = sqlDB.Close()
	}
}
