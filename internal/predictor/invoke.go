package predictor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"
)

// Source yields the model to invoke. *Handle is the production Source.
type Source interface {
	Get(ctx context.Context) (Predictor, error)
}

// Invoker calls the model and normalises what it returns.
type Invoker struct {
	source Source
	logger *slog.Logger
}

func NewInvoker(source Source, logger *slog.Logger) *Invoker {
	return &Invoker{source: source, logger: logger}
}

// Invoke runs one prediction. Failures to obtain the model match
// ErrModelUnavailable; failures inside the model are *InvocationError.
func (i *Invoker) Invoke(ctx context.Context, req Request) (Result, error) {
	p, err := i.source.Get(ctx)
	if err != nil {
		if !errors.Is(err, ErrModelUnavailable) {
			err = fmt.Errorf("%w: %w", ErrModelUnavailable, err)
		}
		i.logger.Warn("prediction rejected, model unavailable", "error", err)
		return nil, err
	}

	start := time.Now()
	raw, err := i.call(ctx, p, req)
	if err != nil {
		i.logger.Error("prediction error",
			"error", err,
			"duration_ms", time.Since(start).Milliseconds(),
		)
		return nil, &InvocationError{Err: err}
	}

	i.logger.Debug("prediction complete",
		"fields", len(raw),
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return Normalize(raw), nil
}

func (i *Invoker) call(ctx context.Context, p Predictor, req Request) (raw map[string]any, err error) {
	defer func() {
		if r := recover(); r != nil {
			raw, err = nil, fmt.Errorf("predictor panic: %v", r)
		}
	}()
	raw, err = p.Predict(ctx, req)
	if err == nil && raw == nil {
		err = errors.New("predictor returned no output")
	}
	return raw, err
}
