package predictor

import (
	"bufio"
	"bytes"
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"sync"
	"time"

	"github.com/moviescript/moviescript-web/internal/logging"
)

const (
	maxStderrBytes      = 8 * 1024 // 8 KB tail of stderr kept for diagnostics
	defaultStartTimeout = 10 * time.Minute
	stopGracePeriod     = 5 * time.Second
)

//go:embed bridge.py
var bridgeSource string

// ProcessConfig configures the Python worker that hosts the model class.
type ProcessConfig struct {
	PythonPath   string        // path to python binary; empty = auto-detect
	ClassPath    string        // downloaded class definition file
	WeightsPath  string        // downloaded serialized weights
	StartTimeout time.Duration // time allowed for import + construction
	Logger       *slog.Logger

	// Command replaces `python -u -c <bridge>`; the class and weights paths
	// are still appended. Env is added to the inherited environment.
	Command []string
	Env     []string
}

// ProcessPredictor is a long-lived worker process speaking one JSON
// request and one JSON reply per line. Requests are serialised.
type ProcessPredictor struct {
	cmd    *exec.Cmd
	stdin  io.WriteCloser
	stdout *bufio.Reader
	pipe   *os.File
	stderr *limitedWriter
	logger *slog.Logger

	mu      sync.Mutex
	closed  bool
	exited  chan struct{}
	waitErr error
}

type readyMessage struct {
	Ready bool   `json:"ready"`
	Error string `json:"error,omitempty"`
}

type replyMessage struct {
	Predictions map[string]any `json:"predictions"`
	Error       string         `json:"error,omitempty"`
}

// StartProcess launches the worker and waits until the model reports ready.
func StartProcess(ctx context.Context, cfg ProcessConfig) (*ProcessPredictor, error) {
	name, args, err := workerCommand(cfg)
	if err != nil {
		return nil, err
	}
	args = append(args, cfg.ClassPath, cfg.WeightsPath)

	cmd := exec.Command(name, args...)
	cmd.Env = append(os.Environ(), cfg.Env...)

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("stdin pipe: %w", err)
	}

	// An *os.File stdout keeps Wait from closing the read side under us.
	pr, pw, err := os.Pipe()
	if err != nil {
		return nil, fmt.Errorf("stdout pipe: %w", err)
	}
	cmd.Stdout = pw

	stderr := &limitedWriter{limit: maxStderrBytes}
	cmd.Stderr = stderr

	if err := cmd.Start(); err != nil {
		pr.Close()
		pw.Close()
		return nil, fmt.Errorf("start model worker: %w", err)
	}
	pw.Close()

	p := &ProcessPredictor{
		cmd:    cmd,
		stdin:  stdin,
		stdout: bufio.NewReader(pr),
		pipe:   pr,
		stderr: stderr,
		logger: cfg.Logger,
		exited: make(chan struct{}),
	}
	go p.wait()

	p.logger.Info("model worker started",
		"pid", cmd.Process.Pid,
		"class", logging.SanitizePath(cfg.ClassPath),
		"weights", logging.SanitizePath(cfg.WeightsPath),
	)

	timeout := cfg.StartTimeout
	if timeout <= 0 {
		timeout = defaultStartTimeout
	}
	if err := p.awaitReady(ctx, timeout); err != nil {
		p.kill()
		return nil, err
	}

	p.logger.Info("model worker ready", "pid", cmd.Process.Pid)
	return p, nil
}

func workerCommand(cfg ProcessConfig) (string, []string, error) {
	if len(cfg.Command) > 0 {
		return cfg.Command[0], append([]string(nil), cfg.Command[1:]...), nil
	}
	python, err := resolvePython(cfg.PythonPath)
	if err != nil {
		return "", nil, fmt.Errorf("cannot locate python: %w", err)
	}
	return python, []string{"-u", "-c", bridgeSource}, nil
}

func (p *ProcessPredictor) awaitReady(ctx context.Context, timeout time.Duration) error {
	type lineResult struct {
		line []byte
		err  error
	}
	ch := make(chan lineResult, 1)
	go func() {
		line, err := p.stdout.ReadBytes('\n')
		ch <- lineResult{line, err}
	}()

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case res := <-ch:
		if res.err != nil {
			return fmt.Errorf("model worker exited before ready: %w", p.exitError())
		}
		var msg readyMessage
		if err := json.Unmarshal(res.line, &msg); err != nil {
			return fmt.Errorf("cannot parse worker handshake: %w", err)
		}
		if !msg.Ready {
			return fmt.Errorf("model construction failed: %s", msg.Error)
		}
		return nil
	case <-timer.C:
		return fmt.Errorf("model worker not ready after %s", timeout)
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Predict sends req to the worker and blocks until it replies.
func (p *ProcessPredictor) Predict(ctx context.Context, req Request) (map[string]any, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return nil, ErrWorkerExited
	}
	select {
	case <-p.exited:
		return nil, p.exitError()
	default:
	}

	line, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}
	if _, err := p.stdin.Write(append(line, '\n')); err != nil {
		return nil, fmt.Errorf("write request: %w", errors.Join(err, p.exitError()))
	}

	reply, err := p.stdout.ReadBytes('\n')
	if err != nil {
		return nil, p.exitError()
	}

	var msg replyMessage
	dec := json.NewDecoder(bytes.NewReader(reply))
	dec.UseNumber()
	if err := dec.Decode(&msg); err != nil {
		return nil, fmt.Errorf("cannot parse worker reply: %w", err)
	}
	if msg.Error != "" {
		return nil, fmt.Errorf("model raised %s", msg.Error)
	}
	if msg.Predictions == nil {
		return nil, errors.New("worker reply has no predictions")
	}
	return msg.Predictions, nil
}

// Close stops the worker, killing it if it does not exit promptly.
func (p *ProcessPredictor) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return nil
	}
	p.closed = true
	p.stdin.Close()

	select {
	case <-p.exited:
	case <-time.After(stopGracePeriod):
		p.logger.Warn("model worker did not exit, killing", "pid", p.cmd.Process.Pid)
		p.cmd.Process.Kill()
		<-p.exited
	}
	p.pipe.Close()
	p.logger.Info("model worker stopped")
	return nil
}

// StderrTail returns the last bytes the worker wrote to stderr.
func (p *ProcessPredictor) StderrTail() string {
	return p.stderr.String()
}

func (p *ProcessPredictor) wait() {
	p.waitErr = p.cmd.Wait()
	close(p.exited)
}

func (p *ProcessPredictor) kill() {
	p.cmd.Process.Kill()
	<-p.exited
	p.pipe.Close()
}

func (p *ProcessPredictor) exitError() error {
	select {
	case <-p.exited:
	case <-time.After(stopGracePeriod):
		return fmt.Errorf("%w: no reply and process still running", ErrWorkerExited)
	}
	tail := truncate(p.StderrTail(), 512)
	if p.waitErr != nil {
		return fmt.Errorf("%w: %v: %s", ErrWorkerExited, p.waitErr, tail)
	}
	return fmt.Errorf("%w: %s", ErrWorkerExited, tail)
}

// resolvePython finds a usable python binary.
func resolvePython(preferred string) (string, error) {
	if preferred != "" {
		if p, err := exec.LookPath(preferred); err == nil {
			return p, nil
		}
		return "", fmt.Errorf("configured python %q not found", preferred)
	}
	for _, name := range []string{"python3", "python"} {
		if p, err := exec.LookPath(name); err == nil {
			return p, nil
		}
	}
	return "", fmt.Errorf("no python binary found on PATH (tried python3, python)")
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return "..." + s[len(s)-maxLen:]
}

// limitedWriter is an io.Writer that keeps only the last `limit` bytes.
type limitedWriter struct {
	mu    sync.Mutex
	buf   bytes.Buffer
	limit int
}

func (lw *limitedWriter) Write(p []byte) (int, error) {
	lw.mu.Lock()
	defer lw.mu.Unlock()

	n := len(p)
	lw.buf.Write(p)
	if lw.buf.Len() > lw.limit {
		// Keep only the tail
		b := lw.buf.Bytes()
		tail := append([]byte(nil), b[len(b)-lw.limit:]...)
		lw.buf.Reset()
		lw.buf.Write(tail)
	}
	return n, nil
}

func (lw *limitedWriter) String() string {
	lw.mu.Lock()
	defer lw.mu.Unlock()
	return lw.buf.String()
}
