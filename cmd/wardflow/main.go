package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/wardflow/wardflow/internal/config"
	"github.com/wardflow/wardflow/internal/directory"
	v1 "github.com/wardflow/wardflow/internal/handler/v1"
	"github.com/wardflow/wardflow/internal/repository"
	"github.com/wardflow/wardflow/internal/service"
	"github.com/wardflow/wardflow/pkg/auth"
	"github.com/wardflow/wardflow/pkg/database"
	"github.com/wardflow/wardflow/pkg/logger"
	"github.com/wardflow/wardflow/pkg/metrics"
	"github.com/wardflow/wardflow/pkg/tracer"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "wardflow: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	log, err := logger.New(cfg.Log)
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()

	tp, err := tracer.Init(cfg.Tracing)
	if err != nil {
		return fmt.Errorf("initializing tracer: %w", err)
	}
	defer func() {
		if err := tp.Shutdown(context.Background()); err != nil {
			log.Warn("tracer shutdown", zap.Error(err))
		}
	}()

	db, err := database.Connect(cfg.Database)
	if err != nil {
		return err
	}
	if err := database.Migrate(db, log); err != nil {
		return err
	}

	mc := metrics.NewCollector("wardflow")

	admissionRepo := repository.NewAdmissionRepository(db, mc)
	bedRepo := repository.NewBedRepository(db, mc)
	auditRepo := repository.NewAuditRepository(db, mc)
	dir := directory.NewGormDirectory(db)

	auditSvc := service.NewAuditService(auditRepo, mc, log)
	defer auditSvc.Shutdown()

	seq := service.NewSequenceAllocator(admissionRepo)
	admissionSvc := service.NewAdmissionService(
		admissionRepo, bedRepo, seq,
		dir.Patients(), dir.Doctors(), dir.Panels(),
		auditSvc, mc, log, cfg.App.FiscalYearStartMonth,
	)
	occupancySvc := service.NewOccupancyService(bedRepo, mc)

	router := v1.NewRouter(v1.RouterDeps{
		Config:     cfg,
		Log:        log,
		Metrics:    mc,
		Verifier:   auth.NewVerifier(cfg.JWT),
		Authorizer: auth.NewRoleAuthorizer(),
		DB:         db,
		Admissions: v1.NewAdmissionHandler(admissionSvc),
		Registry:   v1.NewRegistryHandler(bedRepo, occupancySvc, dir.Patients(), dir.Doctors(), dir.Panels()),
	})

	srv := &http.Server{
		Addr:         cfg.Server.Address(),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("server listening",
			zap.String("addr", srv.Addr),
			zap.String("env", cfg.App.Environment),
			zap.String("version", cfg.App.Version),
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	select {
	case err := <-errCh:
		return fmt.Errorf("server error: %w", err)
	case <-ctx.Done():
	}

	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("graceful shutdown: %w", err)
	}

	return nil
}
