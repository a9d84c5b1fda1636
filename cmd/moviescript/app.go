package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"sync"

	"github.com/moviescript/moviescript-web/internal/config"
	"github.com/moviescript/moviescript-web/internal/hub"
	"github.com/moviescript/moviescript-web/internal/logging"
	"github.com/moviescript/moviescript-web/internal/predictor"
)

// app holds what every command shares: configuration, the logger, the
// artifact cache and the lazily initialised model handle.
type app struct {
	cfg    config.Config
	logger *slog.Logger
	handle *predictor.Handle

	cacheOnce sync.Once
	cache     *hub.Cache
	cacheErr  error
}

func newApp() (*app, error) {
	cfg, err := config.New()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	if err := os.MkdirAll(cfg.DataDir(), 0755); err != nil {
		return nil, fmt.Errorf("failed to create data dir: %w", err)
	}
	if err := os.MkdirAll(cfg.CacheDir(), 0755); err != nil {
		return nil, fmt.Errorf("failed to create cache dir: %w", err)
	}

	a := &app{
		cfg:    cfg,
		logger: logging.NewLogger(cfg.LogLevel()),
	}
	a.handle = predictor.NewHandle(a.initModel, logging.WithComponent(a.logger, "model"))
	return a, nil
}

// artifactCache builds the remote store on first use so that commands which
// never touch the hub do not need its credentials.
func (a *app) artifactCache(ctx context.Context) (*hub.Cache, error) {
	a.cacheOnce.Do(func() {
		logger := logging.WithComponent(a.logger, "hub")
		fetcher, err := hub.NewFetcher(ctx, a.cfg.HubURL(), a.cfg.Repo(), a.cfg.Revision(), a.cfg.HubToken(), logger)
		if err != nil {
			a.cacheErr = err
			return
		}
		a.cache = hub.NewCache(a.cfg.CacheDir(), fetcher, logger)
	})
	return a.cache, a.cacheErr
}

// acquireArtifacts returns the local class and weights paths.
func (a *app) acquireArtifacts(ctx context.Context) (classPath, weightsPath string, err error) {
	cache, err := a.artifactCache(ctx)
	if err != nil {
		return "", "", err
	}
	if classPath, err = cache.Acquire(ctx, a.cfg.ClassFile()); err != nil {
		return "", "", err
	}
	if weightsPath, err = cache.Acquire(ctx, a.cfg.ModelFile()); err != nil {
		return "", "", err
	}
	return classPath, weightsPath, nil
}

func (a *app) initModel(ctx context.Context) (predictor.Predictor, error) {
	logger := logging.WithComponent(a.logger, "predictor")

	if a.cfg.Predictor() == config.PredictorHTTP {
		logger.Info("using remote prediction endpoint", "url", a.cfg.PredictURL())
		return predictor.NewHTTPPredictor(a.cfg.PredictURL(), logger), nil
	}

	classPath, weightsPath, err := a.acquireArtifacts(ctx)
	if err != nil {
		return nil, err
	}
	p, err := predictor.StartProcess(ctx, predictor.ProcessConfig{
		PythonPath:  a.cfg.PythonPath(),
		ClassPath:   classPath,
		WeightsPath: weightsPath,
		Logger:      logger,
	})
	if err != nil {
		return nil, err
	}
	return p, nil
}

func (a *app) close() {
	if err := a.handle.Close(); err != nil {
		a.logger.Warn("failed to stop model", "error", err)
	}
}
