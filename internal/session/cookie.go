package session

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"net/http"
	"strings"

	"github.com/google/uuid"
)

const (
	CookieName = "moviescript_session"
	CSRFField  = "csrf_token"
)

// Manager issues signed session cookies and derives CSRF tokens from them.
type Manager struct {
	secret []byte
	secure bool
}

func NewManager(secret string, secure bool) *Manager {
	return &Manager{secret: []byte(secret), secure: secure}
}

// NewID returns a fresh random session identifier.
func (m *Manager) NewID() string {
	return uuid.NewString()
}

// Sign encodes id with its signature as a cookie value.
func (m *Manager) Sign(id string) string {
	return id + "." + m.mac("session:"+id)
}

// Verify returns the session ID carried by a signed cookie value.
func (m *Manager) Verify(value string) (string, bool) {
	id, sig, ok := strings.Cut(value, ".")
	if !ok {
		return "", false
	}
	if _, err := uuid.Parse(id); err != nil {
		return "", false
	}
	if !hmac.Equal([]byte(sig), []byte(m.mac("session:"+id))) {
		return "", false
	}
	return id, true
}

// Cookie builds the session cookie for id.
func (m *Manager) Cookie(id string) *http.Cookie {
	return &http.Cookie{
		Name:     CookieName,
		Value:    m.Sign(id),
		Path:     "/",
		HttpOnly: true,
		Secure:   m.secure,
		SameSite: http.SameSiteLaxMode,
	}
}

// CSRFToken is the form token bound to session id.
func (m *Manager) CSRFToken(id string) string {
	return m.mac("csrf:" + id)
}

func (m *Manager) VerifyCSRF(id, token string) bool {
	if id == "" || token == "" {
		return false
	}
	return hmac.Equal([]byte(token), []byte(m.CSRFToken(id)))
}

func (m *Manager) mac(msg string) string {
	h := hmac.New(sha256.New, m.secret)
	h.Write([]byte(msg))
	return base64.RawURLEncoding.EncodeToString(h.Sum(nil))
}

type contextKey struct{}

// Middleware attaches the caller's session ID to the request context,
// issuing a new session cookie when none is present or it fails to verify.
func (m *Manager) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var id string
		if c, err := r.Cookie(CookieName); err == nil {
			id, _ = m.Verify(c.Value)
		}
		if id == "" {
			id = m.NewID()
			http.SetCookie(w, m.Cookie(id))
		}
		next.ServeHTTP(w, r.WithContext(WithID(r.Context(), id)))
	})
}

// WithID returns a context carrying session id.
func WithID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, contextKey{}, id)
}

// IDFromContext returns the session ID set by Middleware.
func IDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(contextKey{}).(string)
	return id
}
