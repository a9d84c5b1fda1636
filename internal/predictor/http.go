package predictor

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/google/uuid"
)

// HTTPPredictor forwards predictions to a remote inference endpoint that
// accepts the Request JSON and answers with a flat JSON object.
type HTTPPredictor struct {
	url        string
	httpClient *http.Client
	logger     *slog.Logger
}

// NewHTTPPredictor creates a predictor posting to url. No client timeout is
// set; callers bound the call through the request context.
func NewHTTPPredictor(url string, logger *slog.Logger) *HTTPPredictor {
	return &HTTPPredictor{
		url:        url,
		httpClient: &http.Client{},
		logger:     logger,
	}
}

func (p *HTTPPredictor) Predict(ctx context.Context, in Request) (map[string]any, error) {
	body, err := json.Marshal(in)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Request-Id", uuid.NewString())

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, &StatusError{StatusCode: resp.StatusCode, Body: string(respBody)}
	}

	var out map[string]any
	dec := json.NewDecoder(resp.Body)
	dec.UseNumber()
	if err := dec.Decode(&out); err != nil {
		return nil, fmt.Errorf("decode prediction response: %w", err)
	}

	// Accept {"predictions": {...}} as well as the bare object.
	if len(out) == 1 {
		if inner, ok := out["predictions"].(map[string]any); ok {
			out = inner
		}
	}

	p.logger.Debug("remote prediction complete", "status", resp.StatusCode, "fields", len(out))
	return out, nil
}
