package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"qaflow/audit"
	"qaflow/cache"
	"qaflow/config"
	"qaflow/db"
	"qaflow/dispute"
	"qaflow/evaluation"
	"qaflow/httpapi"
	"qaflow/identity"
	"qaflow/metrics"
	"qaflow/migrations"
	"qaflow/notify"
	"qaflow/question"
	"qaflow/settings"
	"qaflow/user"
)

func main() {
	if err := run(); err != nil {
		slog.Error("fatal", "error", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	log := newLogger(cfg.LogLevel)
	slog.SetDefault(log)

	if err := migrations.Run(cfg.DatabaseURL); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	pool, err := db.NewPool(ctx, cfg.DatabaseURL)
	if err != nil {
		return err
	}
	defer pool.Close()

	mets := metrics.New()
	store := cache.New(cfg.CacheTTL)
	sender := notify.NewLogSender(log)
	verifier := identity.NewVerifier(cfg.TokenSecret)

	questionSvc := question.NewService(question.NewRepository(pool), store)

	auditRepo := audit.NewRepository(pool)
	auditSvc := audit.NewService(auditRepo, questionSvc, cfg.LockTimeout()).
		WithCache(store).
		WithMetrics(mets)

	scorer := evaluation.NewScorer(evaluation.NewRepository(pool), auditSvc, questionSvc, log).
		WithNotifier(sender).
		WithCache(store).
		WithMetrics(mets)

	disputeSvc := dispute.NewService(dispute.NewRepository(pool)).
		WithCache(store).
		WithMetrics(mets)

	userSvc := user.NewService(user.NewRepository(pool), user.Role(cfg.DefaultRole)).
		WithCache(store)

	settingsRepo := settings.NewRepository(pool)

	reaper := audit.NewReaper(auditRepo, log, cfg.LockTimeout(), cfg.ReapInterval).
		WithCache(store).
		WithMetrics(mets)
	go reaper.Run(ctx)

	api := httpapi.NewServer(httpapi.Deps{
		Audits:    auditSvc,
		Evals:     scorer,
		Disputes:  disputeSvc,
		Questions: questionSvc,
		Users:     userSvc,
		Settings:  settingsRepo,
		Verifier:  verifier,
		Metrics:   mets,
		Pool:      pool,
		Log:       log,
	})

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           api.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("listening", "addr", cfg.Addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	log.Info("shutdown complete")
	return nil
}

func newLogger(level string) *slog.Logger {
	var lvl slog.Level
	switch level {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: lvl}))
}
