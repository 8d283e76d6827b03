package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"match-engine/config"
	"match-engine/handlers"
	"match-engine/logging"
	"match-engine/middleware"
	"match-engine/services"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func main() {
	if err := newRootCmd().ExecuteContext(context.Background()); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "match-engine",
		Short:         "Match lifecycle, outcome ledger and deferred skill scoring",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd.Context())
		},
	}
	root.AddCommand(
		&cobra.Command{
			Use:   "serve",
			Short: "Run the HTTP API and the sweep scheduler",
			RunE: func(cmd *cobra.Command, _ []string) error {
				return runServe(cmd.Context())
			},
		},
		&cobra.Command{
			Use:       "sweep <start|complete|score>",
			Short:     "Run one sweep once and exit",
			Args:      cobra.ExactArgs(1),
			ValidArgs: []string{services.SweepStart, services.SweepComplete, services.SweepScore},
			RunE: func(cmd *cobra.Command, args []string) error {
				return runSweep(cmd.Context(), args[0])
			},
		},
	)
	return root
}

func loadConfig() (config.Config, *zap.Logger, error) {
	cfg, fromFile, err := config.Load()
	if err != nil {
		return cfg, nil, err
	}
	log := logging.New(cfg.LogLevel, cfg.LogFormat)
	if !fromFile {
		log.Info("no .env file found, reading environment variables directly")
	}
	return cfg, log, nil
}

func runServe(ctx context.Context) error {
	cfg, log, err := loadConfig()
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()
	if err := cfg.RequireServe(); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	e, err := buildEngine(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer e.close()

	sched, err := services.StartScheduler(e.clock, e.sweeps, services.SweepSchedule{
		Lifecycle: cfg.LifecycleSweepInterval,
		Scoring:   cfg.ScorerSweepInterval,
	}, log)
	if err != nil {
		return err
	}
	defer func() {
		if err := sched.Shutdown(); err != nil {
			log.Warn("scheduler shutdown", zap.Error(err))
		}
	}()

	app := fiber.New(fiber.Config{
		AppName:      "match-engine",
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
	})

	// 🔐❗ GLOBAL: Only Gateway requests allowed
	app.Use(middleware.GatewayAuthMiddleware(cfg.GatewayToken, log))

	origins := strings.Split(cfg.AllowedOrigins, ",")
	for i, o := range origins {
		origins[i] = strings.TrimSpace(o)
	}
	app.Use(cors.New(cors.Config{
		AllowOrigins: strings.Join(origins, ","),
		AllowMethods: "GET,POST,OPTIONS",
		AllowHeaders: "Origin, Content-Type, Accept, Authorization, X-Requested-With, X-Request-ID",
		MaxAge:       86400,
	}))

	h := handlers.NewMatchHandler(e.matches, e.ledger, e.skills, e.sweeps, log)
	handlers.SetupMatchRoutes(app, h, log)

	go func() {
		if err := app.Listen(cfg.HTTPAddr); err != nil {
			log.Error("server error", zap.Error(err))
			stop()
		}
	}()
	log.Info("server running", zap.String("addr", cfg.HTTPAddr), zap.Strings("origins", origins))

	<-ctx.Done()
	log.Info("shutting down server")
	return app.ShutdownWithTimeout(10 * time.Second)
}

func runSweep(ctx context.Context, name string) error {
	cfg, log, err := loadConfig()
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()

	e, err := buildEngine(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer e.close()

	result, err := e.sweeps.Run(ctx, name)
	if err != nil {
		return err
	}
	out, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(out))
	return nil
}
