package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dukerupert/chorequest/internal/backup"
	"github.com/dukerupert/chorequest/internal/clock"
	"github.com/dukerupert/chorequest/internal/config"
	"github.com/dukerupert/chorequest/internal/database"
	"github.com/dukerupert/chorequest/internal/deploy"
	"github.com/dukerupert/chorequest/internal/evidence"
	"github.com/dukerupert/chorequest/internal/goal"
	"github.com/dukerupert/chorequest/internal/jobs"
	"github.com/dukerupert/chorequest/internal/logging"
	"github.com/dukerupert/chorequest/internal/middleware"
	"github.com/dukerupert/chorequest/internal/objectstore"
	"github.com/dukerupert/chorequest/internal/push"
	"github.com/dukerupert/chorequest/internal/rollover"
	"github.com/dukerupert/chorequest/internal/secret"
	"github.com/dukerupert/chorequest/internal/server"
	"github.com/dukerupert/chorequest/internal/shop"
	"github.com/dukerupert/chorequest/internal/store"
	"github.com/dukerupert/chorequest/internal/task"
	ws "github.com/dukerupert/chorequest/internal/websocket"
)

// sentReminderRetention is how long delivered reminder markers are kept.
const sentReminderRetention = 7 * 24 * time.Hour

func main() {
	if err := run(); err != nil {
		slog.Error("chorequest exited", "error", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	logger := logging.Setup(cfg.LogLevel, cfg.LogFormat)

	db, err := database.Open(cfg.DBPath)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()

	clk := clock.New(cfg.Timezone)
	hub := ws.NewHub(logger.With("component", "websocket"))

	// Photos and backups share one bucket client; both stay off without S3.
	s3 := objectstore.New(cfg.S3)
	var photos task.PhotoUploader
	if s3 != nil {
		photos = evidence.NewUploader(s3, cfg.S3.Bucket, cfg.S3.PublicURL, clk, logger.With("component", "evidence"))
	} else {
		logger.Warn("S3 not configured, evidence uploads and backups disabled")
	}

	secretSealer := secret.NewSealer(cfg.SecretKey)
	vault := secret.NewVault(store.NewSecretStore(db), secretSealer)
	deployer := deploy.NewClient(cfg.Vercel.Token, cfg.Vercel.Project, cfg.Vercel.APIURL, vault)

	var sender push.Sender
	if cfg.Push.Enabled() {
		sender = push.NewService(cfg.Push.VAPIDPublicKey, cfg.Push.VAPIDPrivateKey, cfg.Push.Subscriber)
	} else {
		logger.Info("VAPID keys not set, push notifications disabled")
	}
	pushStore := store.NewPushStore(db)
	notifier := push.NewNotifier(sender, pushStore, store.NewTaskStore(db), clk, logger.With("component", "push"))
	reminders := push.NewScheduler(notifier, cfg.ReminderLead, logger.With("component", "reminders"))

	evaluator := rollover.NewEvaluator(db, clk, hub, logger.With("component", "rollover"))
	backups := backup.NewManager(
		backup.Config{Bucket: cfg.S3.Bucket, RetentionDays: cfg.Backup.RetentionDays},
		db, s3, secret.NewSealer(cfg.Backup.Passphrase), clk, hub, logger.With("component", "backup"),
	)
	limiter := middleware.NewRateLimiter()
	sessions := store.NewSessionStore(db)

	srv := server.New(server.Deps{
		DB:        db,
		Config:    cfg,
		Clock:     clk,
		Hub:       hub,
		Tasks:     task.NewService(db, photos, clk, hub, logger.With("component", "task")),
		Shop:      shop.NewService(db, notifier, clk, hub, logger.With("component", "shop")),
		Goals:     goal.NewService(db, hub, logger.With("component", "goal")),
		Evaluator: evaluator,
		Notifier:  notifier,
		Deployer:  deployer,
		Vault:     vault,
		Backups:   backups,
		Limiter:   limiter,
		Logger:    logger,
	})

	runner := jobs.New(cfg.Timezone, logger.With("component", "jobs"))
	schedule := []struct {
		name string
		spec string
		fn   jobs.Func
	}{
		{"rollover", cfg.RolloverSchedule, func(ctx context.Context) error {
			_, err := evaluator.Run(ctx)
			return err
		}},
		{"streak-warning", cfg.StreakWarningSchedule, func(ctx context.Context) error {
			_, err := notifier.SendStreakWarnings(ctx)
			return err
		}},
		{"backup", cfg.Backup.Schedule, func(ctx context.Context) error {
			backups.Run(ctx)
			return nil
		}},
		{"cleanup", every(cfg.SessionCleanupInterval), func(ctx context.Context) error {
			n, err := sessions.DeleteExpired()
			if err != nil {
				return fmt.Errorf("delete expired sessions: %w", err)
			}
			if n > 0 {
				logger.Info("expired sessions removed", "count", n)
			}
			if err := pushStore.CleanupSent(clk.Now().Add(-sentReminderRetention)); err != nil {
				return fmt.Errorf("clean sent reminders: %w", err)
			}
			limiter.Cleanup()
			return nil
		}},
	}
	for _, j := range schedule {
		if err := runner.Add(j.name, j.spec, j.fn); err != nil {
			return err
		}
	}

	// Catch up on any day boundaries crossed while the server was down.
	if err := runner.RunNow("rollover"); err != nil {
		logger.Error("startup rollover", "error", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	runner.Start()
	reminders.Start(ctx)

	httpServer := srv.HTTPServer(":" + cfg.Port)
	errCh := make(chan error, 1)
	go func() {
		logger.Info("chorequest listening", "addr", httpServer.Addr, "base_url", cfg.BaseURL, "timezone", cfg.Timezone.String())
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("http server: %w", err)
		}
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("http shutdown", "error", err)
	}
	reminders.Stop()
	runner.Stop(shutdownCtx)
	return nil
}

// every turns an interval into a cron spec; sub-minute values round up.
func every(d time.Duration) string {
	if d < time.Minute {
		d = time.Minute
	}
	return "@every " + d.String()
}
