// Package hub acquires model artifacts from a remote content store and
// keeps them in a filename-keyed local cache.
package hub

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/moviescript/moviescript-web/internal/logging"
)

// Fetcher streams a named artifact from a remote store into w.
type Fetcher interface {
	Fetch(ctx context.Context, filename string, w io.Writer) error
}

// FetchError represents a non-2xx reply from the artifact hub.
type FetchError struct {
	Filename   string
	StatusCode int
	Body       string
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("fetch %s failed: HTTP %d: %s", e.Filename, e.StatusCode, e.Body)
}

// NotFound reports whether the hub said the artifact does not exist.
func (e *FetchError) NotFound() bool {
	return e.StatusCode == http.StatusNotFound
}

// HubFetcher downloads files from a Hugging Face style hub:
// GET {baseURL}/{repo}/resolve/{revision}/{filename}.
type HubFetcher struct {
	baseURL    string
	repo       string
	revision   string
	token      string
	httpClient *http.Client
	logger     *slog.Logger
}

func NewHubFetcher(baseURL, repo, revision, token string, logger *slog.Logger) *HubFetcher {
	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.ResponseHeaderTimeout = 60 * time.Second

	return &HubFetcher{
		baseURL:  strings.TrimRight(baseURL, "/"),
		repo:     strings.Trim(repo, "/"),
		revision: revision,
		token:    token,
		// Weights can be large, so only the wait for headers is bounded.
		httpClient: &http.Client{Transport: transport},
		logger:     logger,
	}
}

// URL returns the resolve URL for filename.
func (f *HubFetcher) URL(filename string) string {
	return fmt.Sprintf("%s/%s/resolve/%s/%s",
		f.baseURL, f.repo, url.PathEscape(f.revision), url.PathEscape(filename))
}

func (f *HubFetcher) Fetch(ctx context.Context, filename string, w io.Writer) error {
	u := f.URL(filename)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	if f.token != "" {
		req.Header.Set("Authorization", "Bearer "+f.token)
	}

	f.logger.Info("fetching artifact from hub",
		"url", u,
		"token", logging.SanitizeToken(f.token),
	)

	resp, err := f.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("http request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return &FetchError{Filename: filename, StatusCode: resp.StatusCode, Body: string(body)}
	}

	if _, err := io.Copy(w, resp.Body); err != nil {
		return fmt.Errorf("download %s: %w", filename, err)
	}
	return nil
}

// NewFetcher selects the store for repo: an s3://bucket/prefix repository
// is served from S3, anything else from the hub at baseURL.
func NewFetcher(ctx context.Context, baseURL, repo, revision, token string, logger *slog.Logger) (Fetcher, error) {
	if bucket, prefix, ok := ParseS3Repo(repo); ok {
		f, err := NewS3Fetcher(ctx, bucket, prefix, logger)
		if err != nil {
			return nil, err
		}
		return f, nil
	}
	if strings.Count(strings.Trim(repo, "/"), "/") != 1 {
		return nil, fmt.Errorf("repository %q must be owner/name or s3://bucket/prefix", repo)
	}
	return NewHubFetcher(baseURL, repo, revision, token, logger), nil
}
