package submission

import (
	"context"
	"errors"
	"log/slog"

	"github.com/moviescript/moviescript-web/internal/predictor"
)

const (
	MsgUnavailable = "The prediction model is currently unavailable. Please try again later."
	MsgFailed      = "Prediction failed. Please try again."
)

// Invoker runs one prediction. *predictor.Invoker satisfies it.
type Invoker interface {
	Invoke(ctx context.Context, req predictor.Request) (predictor.Result, error)
}

// Outcome is a successful pipeline run.
type Outcome struct {
	Input  Input
	Result predictor.Result
}

// Pipeline validates a form and, when it is valid, invokes the model.
type Pipeline struct {
	invoker Invoker
	logger  *slog.Logger
}

func NewPipeline(invoker Invoker, logger *slog.Logger) *Pipeline {
	return &Pipeline{invoker: invoker, logger: logger}
}

// Run returns Errors for invalid input, or the invoker's error. The model
// is never called for an invalid form.
func (p *Pipeline) Run(ctx context.Context, f Form) (*Outcome, error) {
	in, err := Validate(f)
	if err != nil {
		p.logger.Debug("submission rejected", "error", err)
		return nil, err
	}

	p.logger.Info("running inference", "title", in.Title, "genres", len(in.Genres), "keywords", len(in.Keywords))
	res, err := p.invoker.Invoke(ctx, in.Request())
	if err != nil {
		return nil, err
	}
	return &Outcome{Input: in, Result: res}, nil
}

// Messages returns what the user is shown for a pipeline error.
func Messages(err error) []string {
	var verrs Errors
	switch {
	case err == nil:
		return nil
	case errors.As(err, &verrs):
		return []string(verrs)
	case errors.Is(err, predictor.ErrModelUnavailable):
		return []string{MsgUnavailable}
	default:
		return []string{MsgFailed}
	}
}
