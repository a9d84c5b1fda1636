package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/moviescript/moviescript-web/internal/config"
	"github.com/moviescript/moviescript-web/internal/db"
	"github.com/moviescript/moviescript-web/internal/logging"
	"github.com/moviescript/moviescript-web/internal/predictor"
	"github.com/moviescript/moviescript-web/internal/session"
	"github.com/moviescript/moviescript-web/internal/submission"
	"github.com/moviescript/moviescript-web/internal/web"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the web server (default)",
	RunE:  runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	startTime := time.Now()

	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.close()

	cfg, logger := a.cfg, a.logger
	logger.Info("starting moviescript", "version", config.Version, "data_dir", logging.SanitizePath(cfg.DataDir()))

	if cfg.UsingDefaultSecret() {
		logger.Warn("SECRET_KEY is not set, using the insecure default")
	}

	database, err := db.New(cfg.DBPath(), logger)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	defer database.Close()

	vocab, err := submission.LoadVocabulary(cfg.VocabFile())
	if err != nil {
		return fmt.Errorf("failed to load vocabulary: %w", err)
	}

	views, err := web.NewViews()
	if err != nil {
		return fmt.Errorf("failed to load templates: %w", err)
	}

	invoker := predictor.NewInvoker(a.handle, logging.WithComponent(logger, "invoker"))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if cfg.Preload() {
		go func() {
			if _, err := a.handle.Get(ctx); err != nil {
				logger.Error("model preload failed, predictions disabled", "error", err)
			}
		}()
	}

	server := web.NewServer(web.ServerConfig{
		Addr:        cfg.Addr(),
		Pipeline:    submission.NewPipeline(invoker, logging.WithComponent(logger, "submission")),
		Store:       session.NewSQLiteStore(database.Conn(), cfg.ResultTTL()),
		Sessions:    session.NewManager(cfg.SecretKey(), false),
		Model:       a.handle,
		Vocabulary:  vocab,
		SubmitRate:  cfg.SubmitRate(),
		CORSOrigins: cfg.CORSOrigins(),
		Views:       views,
		Logger:      logger,
		StartTime:   startTime,
		Version:     config.Version,
	})

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Start()
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	select {
	case sig := <-sigCh:
		logger.Info("received shutdown signal", "signal", sig)
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("HTTP server error: %w", err)
		}
	}

	logger.Info("initiating graceful shutdown")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("failed to shutdown HTTP server", "error", err)
	}

	logger.Info("shutdown complete")
	return nil
}
