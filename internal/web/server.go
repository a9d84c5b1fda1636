// Package web serves the MovieScript form, the submit/result handoff and a
// health endpoint.
package web

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/moviescript/moviescript-web/internal/predictor"
	"github.com/moviescript/moviescript-web/internal/session"
	"github.com/moviescript/moviescript-web/internal/submission"
)

// Runner executes a submission. *submission.Pipeline satisfies it.
type Runner interface {
	Run(ctx context.Context, f submission.Form) (*submission.Outcome, error)
}

// ModelState reports the model handle lifecycle. *predictor.Handle satisfies it.
type ModelState interface {
	State() predictor.State
}

type Server struct {
	httpServer *http.Server
	logger     *slog.Logger
}

type ServerConfig struct {
	Addr        string
	Pipeline    Runner
	Store       session.Store
	Sessions    *session.Manager
	Model       ModelState
	Vocabulary  submission.Vocabulary
	SubmitRate  float64
	CORSOrigins []string
	Views       *Views
	Logger      *slog.Logger
	StartTime   time.Time
	Version     string
}

func NewServer(cfg ServerConfig) *Server {
	router := NewRouter(cfg)

	return &Server{
		httpServer: &http.Server{
			Addr:         cfg.Addr,
			Handler:      router,
			ReadTimeout:  15 * time.Second,
			WriteTimeout: 0, // predictions block for as long as the model takes
			IdleTimeout:  60 * time.Second,
		},
		logger: cfg.Logger,
	}
}

func (s *Server) Start() error {
	s.logger.Info("starting HTTP server", "addr", s.httpServer.Addr)
	err := s.httpServer.ListenAndServe()
	if err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down HTTP server")
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) Addr() string {
	return s.httpServer.Addr
}
