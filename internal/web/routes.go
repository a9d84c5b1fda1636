package web

import (
	"errors"
	"log/slog"
	"math"
	"net/http"
	"time"

	"github.com/flosch/pongo2/v6"
	"github.com/go-chi/chi/v5"
	"golang.org/x/time/rate"

	"github.com/moviescript/moviescript-web/internal/logging"
	"github.com/moviescript/moviescript-web/internal/predictor"
	"github.com/moviescript/moviescript-web/internal/session"
	"github.com/moviescript/moviescript-web/internal/submission"
)

const (
	MsgRateLimited = "Too many submissions. Please wait a moment and try again."
	MsgBadToken    = "Your session expired. Please reload the form and try again."

	maxFormBytes = 1 << 20
)

func NewRouter(cfg ServerConfig) *chi.Mux {
	r := chi.NewRouter()

	r.Use(RequestIDMiddleware())
	r.Use(RecoveryMiddleware(cfg.Logger))
	r.Use(LoggingMiddleware(cfg.Logger))
	r.Use(CORSMiddleware(cfg.CORSOrigins))
	r.Use(SecurityHeadersMiddleware())

	r.Get("/health", healthHandler(cfg))
	r.Handle("/static/*", staticHandler())

	r.Group(func(r chi.Router) {
		r.Use(cfg.Sessions.Middleware)

		r.Get("/", indexHandler(cfg))
		r.Post("/submit", submitHandler(cfg, newSubmitLimiter(cfg.SubmitRate)))
		r.Get("/result", resultHandler(cfg))
	})

	return r
}

// newSubmitLimiter allows perSecond submissions with a burst of twice that.
func newSubmitLimiter(perSecond float64) *rate.Limiter {
	if perSecond <= 0 {
		return rate.NewLimiter(rate.Inf, 0)
	}
	burst := int(math.Ceil(perSecond * 2))
	return rate.NewLimiter(rate.Limit(perSecond), burst)
}

func healthHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		uptime := int64(time.Since(cfg.StartTime).Seconds())
		model := predictor.StateIdle.String()
		if cfg.Model != nil {
			model = cfg.Model.State().String()
		}
		WriteJSON(w, http.StatusOK, HealthResponse{
			Status:  "ok",
			Version: cfg.Version,
			UptimeS: uptime,
			Model:   model,
		})
	}
}

func indexHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sid := session.IDFromContext(r.Context())
		renderForm(w, r, cfg, http.StatusOK, submission.Form{}, sid, nil)
	}
}

func submitHandler(cfg ServerConfig, limiter *rate.Limiter) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		logger := requestLogger(cfg.Logger, r)
		sid := session.IDFromContext(ctx)

		r.Body = http.MaxBytesReader(w, r.Body, maxFormBytes)
		if err := r.ParseForm(); err != nil {
			http.Error(w, "invalid form", http.StatusBadRequest)
			return
		}
		form := formFromValues(r.PostForm.Get, func(k string) []string { return r.PostForm[k] })

		if !cfg.Sessions.VerifyCSRF(sid, r.PostForm.Get(session.CSRFField)) {
			logger.Warn("csrf token rejected")
			renderForm(w, r, cfg, http.StatusForbidden, form, sid, []string{MsgBadToken})
			return
		}

		if !limiter.Allow() {
			logger.Warn("submission rate limited")
			renderForm(w, r, cfg, http.StatusTooManyRequests, form, sid, []string{MsgRateLimited})
			return
		}

		out, err := cfg.Pipeline.Run(ctx, form)
		if err != nil {
			status := statusFor(err)
			if status != http.StatusUnprocessableEntity {
				logger.Error("submission failed", "error", err, "status", status)
			}
			renderForm(w, r, cfg, status, form, sid, submission.Messages(err))
			return
		}

		pending := session.Pending{Title: out.Input.Title, Predictions: out.Result}
		if err := cfg.Store.Put(ctx, sid, pending); err != nil {
			logger.Error("failed to store result", "error", err)
			renderForm(w, r, cfg, http.StatusInternalServerError, form, sid, []string{submission.MsgFailed})
			return
		}

		http.Redirect(w, r, "/result", http.StatusSeeOther)
	}
}

func resultHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		logger := requestLogger(cfg.Logger, r)
		sid := session.IDFromContext(r.Context())

		pending, err := cfg.Store.Take(r.Context(), sid)
		if err != nil {
			logger.Error("failed to load result", "error", err)
			http.Error(w, "internal server error", http.StatusInternalServerError)
			return
		}
		if pending == nil {
			http.Redirect(w, r, "/", http.StatusSeeOther)
			return
		}

		w.Header().Set("Cache-Control", "no-store")
		err = cfg.Views.Render(w, http.StatusOK, "result.html", pongo2.Context{
			"title":       pending.Title,
			"predictions": resultRows(pending.Predictions),
		})
		if err != nil {
			logger.Error("failed to render result", "error", err)
			http.Error(w, "internal server error", http.StatusInternalServerError)
		}
	}
}

func renderForm(w http.ResponseWriter, r *http.Request, cfg ServerConfig, status int, f submission.Form, sid string, errs []string) {
	view := newFormView(cfg.Vocabulary, f, cfg.Sessions.CSRFToken(sid), errs)
	if err := cfg.Views.Render(w, status, "index.html", pongo2.Context{"form": view}); err != nil {
		requestLogger(cfg.Logger, r).Error("failed to render form", "error", err)
		http.Error(w, "internal server error", http.StatusInternalServerError)
	}
}

// statusFor maps a pipeline error to the response status.
func statusFor(err error) int {
	var verrs submission.Errors
	switch {
	case errors.As(err, &verrs):
		return http.StatusUnprocessableEntity
	case errors.Is(err, predictor.ErrModelUnavailable):
		return http.StatusServiceUnavailable
	default:
		return http.StatusBadGateway
	}
}

func requestLogger(logger *slog.Logger, r *http.Request) *slog.Logger {
	requestID, _ := r.Context().Value(RequestIDKey).(string)
	return logging.WithRequestID(logger, requestID)
}
