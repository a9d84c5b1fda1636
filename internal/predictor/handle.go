package predictor

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"
)

// State describes the lifecycle of a Handle.
type State int32

const (
	StateIdle State = iota
	StateLoading
	StateReady
	StateUnavailable
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateLoading:
		return "loading"
	case StateReady:
		return "ready"
	case StateUnavailable:
		return "unavailable"
	default:
		return "unknown"
	}
}

// InitFunc constructs the model. It runs at most once per Handle.
type InitFunc func(ctx context.Context) (Predictor, error)

// Handle owns the lazily constructed model. The first Get runs the
// InitFunc; every later Get observes the same predictor or the same failure.
type Handle struct {
	init   InitFunc
	logger *slog.Logger

	// life is cancelled by Close and bounds the InitFunc.
	life context.Context
	stop context.CancelFunc

	once      sync.Once
	state     atomic.Int32
	predictor Predictor
	err       error
}

// NewHandle creates a handle that will build its predictor with init.
func NewHandle(init InitFunc, logger *slog.Logger) *Handle {
	life, stop := context.WithCancel(context.Background())
	return &Handle{init: init, logger: logger, life: life, stop: stop}
}

// Get returns the model, initialising it on first use.
// The initialisation keeps the caller's values but not its cancellation;
// only Close cancels it.
func (h *Handle) Get(ctx context.Context) (Predictor, error) {
	h.once.Do(func() {
		ctx, cancel := context.WithCancel(context.WithoutCancel(ctx))
		defer cancel()
		unbind := context.AfterFunc(h.life, cancel)
		defer unbind()
		h.load(ctx)
	})
	if h.err != nil {
		return nil, fmt.Errorf("%w: %w", ErrModelUnavailable, h.err)
	}
	return h.predictor, nil
}

// State reports the current lifecycle state without triggering initialisation.
func (h *Handle) State() State {
	return State(h.state.Load())
}

// Close cancels an initialisation in progress and waits for it, then
// releases the predictor if it holds resources. A handle that was never
// loaded is marked unavailable so nothing is constructed afterwards.
func (h *Handle) Close() error {
	h.stop()
	h.once.Do(func() {
		h.err = errHandleClosed
		h.state.Store(int32(StateUnavailable))
	})
	if closer, ok := h.predictor.(io.Closer); ok {
		return closer.Close()
	}
	return nil
}

func (h *Handle) load(ctx context.Context) {
	h.state.Store(int32(StateLoading))
	start := time.Now()

	p, err := h.safeInit(ctx)
	if err == nil && p == nil {
		err = fmt.Errorf("initialiser returned no predictor")
	}
	if err != nil {
		h.err = err
		h.state.Store(int32(StateUnavailable))
		h.logger.Error("model initialisation failed",
			"error", err,
			"duration_ms", time.Since(start).Milliseconds(),
		)
		return
	}

	h.predictor = p
	h.state.Store(int32(StateReady))
	h.logger.Info("model initialised", "duration_ms", time.Since(start).Milliseconds())
}

func (h *Handle) safeInit(ctx context.Context) (p Predictor, err error) {
	defer func() {
		if r := recover(); r != nil {
			p, err = nil, fmt.Errorf("initialiser panic: %v", r)
		}
	}()
	return h.init(ctx)
}
