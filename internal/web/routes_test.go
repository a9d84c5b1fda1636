package web

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"net/url"
	"regexp"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/moviescript/moviescript-web/internal/logging"
	"github.com/moviescript/moviescript-web/internal/predictor"
	"github.com/moviescript/moviescript-web/internal/session"
	"github.com/moviescript/moviescript-web/internal/submission"
)

type fakeInvoker struct {
	res   predictor.Result
	err   error
	panic bool
}

func (f *fakeInvoker) Invoke(ctx context.Context, req predictor.Request) (predictor.Result, error) {
	if f.panic {
		panic("model exploded")
	}
	return f.res, f.err
}

type memoryStore struct {
	mu      sync.Mutex
	pending map[string]session.Pending
}

func newMemoryStore() *memoryStore {
	return &memoryStore{pending: make(map[string]session.Pending)}
}

func (s *memoryStore) Put(ctx context.Context, sid string, p session.Pending) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pending[sid] = p
	return nil
}

func (s *memoryStore) Take(ctx context.Context, sid string) (*session.Pending, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.pending[sid]
	if !ok {
		return nil, nil
	}
	delete(s.pending, sid)
	return &p, nil
}

type fixedState predictor.State

func (s fixedState) State() predictor.State { return predictor.State(s) }

func testConfig(t *testing.T, inv *fakeInvoker) ServerConfig {
	t.Helper()
	views, err := NewViews()
	if err != nil {
		t.Fatalf("NewViews: %v", err)
	}
	logger := logging.Discard()
	return ServerConfig{
		Pipeline:    submission.NewPipeline(inv, logger),
		Store:       newMemoryStore(),
		Sessions:    session.NewManager("test-secret", false),
		Model:       fixedState(predictor.StateReady),
		Vocabulary:  submission.DefaultVocabulary(),
		SubmitRate:  100,
		CORSOrigins: []string{"*"},
		Views:       views,
		Logger:      logger,
		StartTime:   time.Now(),
		Version:     "test",
	}
}

func newTestServer(t *testing.T, cfg ServerConfig) (*httptest.Server, *http.Client) {
	t.Helper()
	srv := httptest.NewServer(NewRouter(cfg))
	t.Cleanup(srv.Close)

	jar, _ := cookiejar.New(nil)
	client := &http.Client{
		Jar: jar,
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}
	return srv, client
}

var csrfPattern = regexp.MustCompile(`name="csrf_token" value="([^"]+)"`)

func fetchToken(t *testing.T, srv *httptest.Server, client *http.Client) string {
	t.Helper()
	resp, err := client.Get(srv.URL + "/")
	if err != nil {
		t.Fatalf("GET /: %v", err)
	}
	body := readBody(t, resp)
	m := csrfPattern.FindStringSubmatch(body)
	if m == nil {
		t.Fatalf("no csrf token in form:\n%s", body)
	}
	return m[1]
}

func validValues(token string) url.Values {
	return url.Values{
		"csrf_token":      {token},
		"title":           {"Heat"},
		"overview":        {strings.Repeat("A crew of thieves plans one last job in the city. ", 2)},
		"genres":          {"Action", "Crime"},
		"keywords":        {"Murder"},
		"custom_keywords": {"heist"},
		"budget":          {"60,000,000"},
	}
}

func readBody(t *testing.T, resp *http.Response) string {
	t.Helper()
	defer resp.Body.Close()
	b, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	return string(b)
}

func TestIndex_RendersForm(t *testing.T) {
	srv, client := newTestServer(t, testConfig(t, &fakeInvoker{}))

	resp, err := client.Get(srv.URL + "/")
	if err != nil {
		t.Fatalf("GET /: %v", err)
	}
	body := readBody(t, resp)

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	for _, want := range []string{`value="Science Fiction"`, `value="Christmas"`, `name="csrf_token"`} {
		if !strings.Contains(body, want) {
			t.Errorf("form missing %s", want)
		}
	}
	if resp.Header.Get("X-Content-Type-Options") != "nosniff" {
		t.Error("missing security headers")
	}
}

func TestSubmit_RedirectThenResultOnce(t *testing.T) {
	inv := &fakeInvoker{res: predictor.Result{"predicted_revenue": int64(150000000), "rating": 7.25}}
	srv, client := newTestServer(t, testConfig(t, inv))
	token := fetchToken(t, srv, client)

	resp, err := client.PostForm(srv.URL+"/submit", validValues(token))
	if err != nil {
		t.Fatalf("POST /submit: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusSeeOther {
		t.Fatalf("submit status = %d, want 303", resp.StatusCode)
	}
	if loc := resp.Header.Get("Location"); loc != "/result" {
		t.Fatalf("Location = %q, want /result", loc)
	}

	resp, err = client.Get(srv.URL + "/result")
	if err != nil {
		t.Fatalf("GET /result: %v", err)
	}
	body := readBody(t, resp)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("result status = %d, want 200", resp.StatusCode)
	}
	if resp.Header.Get("Cache-Control") != "no-store" {
		t.Errorf("Cache-Control = %q, want no-store", resp.Header.Get("Cache-Control"))
	}
	for _, want := range []string{"Heat", "Predicted Revenue", "150,000,000", "7.25"} {
		if !strings.Contains(body, want) {
			t.Errorf("result page missing %q", want)
		}
	}

	resp, err = client.Get(srv.URL + "/result")
	if err != nil {
		t.Fatalf("second GET /result: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusSeeOther || resp.Header.Get("Location") != "/" {
		t.Errorf("second result = %d %q, want 303 /", resp.StatusCode, resp.Header.Get("Location"))
	}
}

func TestResult_WithoutSubmissionRedirects(t *testing.T) {
	srv, client := newTestServer(t, testConfig(t, &fakeInvoker{}))

	resp, err := client.Get(srv.URL + "/result")
	if err != nil {
		t.Fatalf("GET /result: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusSeeOther {
		t.Errorf("status = %d, want 303", resp.StatusCode)
	}
}

func TestSubmit_ValidationErrors(t *testing.T) {
	srv, client := newTestServer(t, testConfig(t, &fakeInvoker{}))
	token := fetchToken(t, srv, client)

	values := validValues(token)
	values.Set("title", "ab")
	values.Set("budget", "12")
	resp, err := client.PostForm(srv.URL+"/submit", values)
	if err != nil {
		t.Fatalf("POST /submit: %v", err)
	}
	body := readBody(t, resp)

	if resp.StatusCode != http.StatusUnprocessableEntity {
		t.Fatalf("status = %d, want 422", resp.StatusCode)
	}
	for _, want := range []string{
		submission.MsgTitleShort,
		submission.MsgBudgetRange,
		`value="ab"`,
		`value="Crime" checked`,
		`value="heist"`,
	} {
		if !strings.Contains(body, want) {
			t.Errorf("re-rendered form missing %q", want)
		}
	}
	if strings.Index(body, submission.MsgTitleShort) > strings.Index(body, submission.MsgBudgetRange) {
		t.Error("messages out of order")
	}
}

func TestSubmit_ErrorStatuses(t *testing.T) {
	tests := []struct {
		name   string
		inv    *fakeInvoker
		status int
		msg    string
	}{
		{
			"unavailable",
			&fakeInvoker{err: predictor.ErrModelUnavailable},
			http.StatusServiceUnavailable,
			submission.MsgUnavailable,
		},
		{
			"invocation",
			&fakeInvoker{err: &predictor.InvocationError{Err: errors.New("shape mismatch")}},
			http.StatusBadGateway,
			submission.MsgFailed,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv, client := newTestServer(t, testConfig(t, tt.inv))
			token := fetchToken(t, srv, client)

			resp, err := client.PostForm(srv.URL+"/submit", validValues(token))
			if err != nil {
				t.Fatalf("POST /submit: %v", err)
			}
			body := readBody(t, resp)
			if resp.StatusCode != tt.status {
				t.Errorf("status = %d, want %d", resp.StatusCode, tt.status)
			}
			if !strings.Contains(body, tt.msg) {
				t.Errorf("body missing %q", tt.msg)
			}
			if strings.Contains(body, "shape mismatch") {
				t.Error("internal error leaked to the page")
			}
		})
	}
}

func TestSubmit_RejectsMissingCSRF(t *testing.T) {
	srv, client := newTestServer(t, testConfig(t, &fakeInvoker{res: predictor.Result{}}))
	fetchToken(t, srv, client)

	resp, err := client.PostForm(srv.URL+"/submit", validValues("forged"))
	if err != nil {
		t.Fatalf("POST /submit: %v", err)
	}
	body := readBody(t, resp)
	if resp.StatusCode != http.StatusForbidden {
		t.Errorf("status = %d, want 403", resp.StatusCode)
	}
	if !strings.Contains(body, MsgBadToken) {
		t.Errorf("body missing %q", MsgBadToken)
	}
}

func TestSubmit_RateLimited(t *testing.T) {
	cfg := testConfig(t, &fakeInvoker{res: predictor.Result{"rating": 7.0}})
	cfg.SubmitRate = 0.001
	srv, client := newTestServer(t, cfg)
	token := fetchToken(t, srv, client)

	resp, err := client.PostForm(srv.URL+"/submit", validValues(token))
	if err != nil {
		t.Fatalf("first POST: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusSeeOther {
		t.Fatalf("first status = %d, want 303", resp.StatusCode)
	}

	resp, err = client.PostForm(srv.URL+"/submit", validValues(token))
	if err != nil {
		t.Fatalf("second POST: %v", err)
	}
	body := readBody(t, resp)
	if resp.StatusCode != http.StatusTooManyRequests {
		t.Errorf("second status = %d, want 429", resp.StatusCode)
	}
	if !strings.Contains(body, MsgRateLimited) {
		t.Errorf("body missing %q", MsgRateLimited)
	}
}

func TestSubmit_ZeroRateIsUnlimited(t *testing.T) {
	cfg := testConfig(t, &fakeInvoker{res: predictor.Result{"rating": 7.0}})
	cfg.SubmitRate = 0
	srv, client := newTestServer(t, cfg)
	token := fetchToken(t, srv, client)

	for i := 0; i < 5; i++ {
		resp, err := client.PostForm(srv.URL+"/submit", validValues(token))
		if err != nil {
			t.Fatalf("POST %d: %v", i, err)
		}
		resp.Body.Close()
		if resp.StatusCode != http.StatusSeeOther {
			t.Fatalf("POST %d status = %d, want 303", i, resp.StatusCode)
		}
	}
}

func TestResult_SanitisesModelStrings(t *testing.T) {
	inv := &fakeInvoker{res: predictor.Result{"verdict": `<script>alert(1)</script><b>hit</b>`}}
	srv, client := newTestServer(t, testConfig(t, inv))
	token := fetchToken(t, srv, client)

	resp, err := client.PostForm(srv.URL+"/submit", validValues(token))
	if err != nil {
		t.Fatalf("POST /submit: %v", err)
	}
	resp.Body.Close()

	resp, err = client.Get(srv.URL + "/result")
	if err != nil {
		t.Fatalf("GET /result: %v", err)
	}
	body := readBody(t, resp)
	if strings.Contains(body, "<script>") || strings.Contains(body, "<b>") {
		t.Errorf("model markup rendered unsanitised:\n%s", body)
	}
	if !strings.Contains(body, "hit") {
		t.Error("sanitised text missing")
	}
}

func TestSubmit_PanicRecovered(t *testing.T) {
	srv, client := newTestServer(t, testConfig(t, &fakeInvoker{panic: true}))
	token := fetchToken(t, srv, client)

	resp, err := client.PostForm(srv.URL+"/submit", validValues(token))
	if err != nil {
		t.Fatalf("POST /submit: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusInternalServerError {
		t.Errorf("status = %d, want 500", resp.StatusCode)
	}
}

func TestHealthHandler(t *testing.T) {
	cfg := testConfig(t, &fakeInvoker{})
	cfg.Model = fixedState(predictor.StateUnavailable)

	rr := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	healthHandler(cfg).ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("status code = %d, want %d", rr.Code, http.StatusOK)
	}
	var body HealthResponse
	if err := json.NewDecoder(rr.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Status != "ok" || body.Version != "test" || body.Model != "unavailable" {
		t.Errorf("health = %+v", body)
	}
}

func TestStatic_ServesStylesheet(t *testing.T) {
	srv, client := newTestServer(t, testConfig(t, &fakeInvoker{}))

	resp, err := client.Get(srv.URL + "/static/style.css")
	if err != nil {
		t.Fatalf("GET /static/style.css: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d, want 200", resp.StatusCode)
	}
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{submission.Errors{submission.MsgNoGenre}, http.StatusUnprocessableEntity},
		{predictor.ErrModelUnavailable, http.StatusServiceUnavailable},
		{&predictor.InvocationError{Err: errors.New("x")}, http.StatusBadGateway},
	}
	for _, tt := range tests {
		if got := statusFor(tt.err); got != tt.want {
			t.Errorf("statusFor(%v) = %d, want %d", tt.err, got, tt.want)
		}
	}
}
