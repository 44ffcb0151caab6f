// Package auth implements the single-admin login used by the back-office.
// Credentials are checked against configuration, successful logins mint an
// opaque session token stored in the key-value store with a TTL, and the
// token travels in an HttpOnly cookie.
package auth

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/inkhaven/inkhaven-backend/pkg/kv"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

// CookieName is the session cookie presented on admin requests.
const CookieName = "admin_session"

const sessionKeyPrefix = "session:"

// Manager validates credentials and tracks admin sessions.
type Manager struct {
	store         kv.Store
	logger        *zap.SugaredLogger
	username      string
	password      string
	passwordHash  string
	sessionTTL    time.Duration
	secureCookies bool
}

// Config carries the admin identity. When PasswordHash is set it takes
// precedence over the plaintext Password and is compared with bcrypt.
type Config struct {
	Username      string
	Password      string
	PasswordHash  string
	SessionTTL    time.Duration
	SecureCookies bool
}

func NewManager(store kv.Store, cfg Config, logger *zap.SugaredLogger) *Manager {
	return &Manager{
		store:         store,
		logger:        logger,
		username:      cfg.Username,
		password:      cfg.Password,
		passwordHash:  cfg.PasswordHash,
		sessionTTL:    cfg.SessionTTL,
		secureCookies: cfg.SecureCookies,
	}
}

// ValidateCredentials reports whether the supplied credentials match the
// configured admin identity. Comparisons are constant-time so response
// timing does not leak which part of the pair was wrong.
func (m *Manager) ValidateCredentials(username, password string) bool {
	userOK := subtle.ConstantTimeCompare([]byte(username), []byte(m.username)) == 1

	var passOK bool
	if m.passwordHash != "" {
		passOK = bcrypt.CompareHashAndPassword([]byte(m.passwordHash), []byte(password)) == nil
	} else {
		passOK = subtle.ConstantTimeCompare([]byte(password), []byte(m.password)) == 1
	}

	return userOK && passOK
}

// CreateSession mints a fresh session token and stores it with the
// configured TTL.
func (m *Manager) CreateSession(ctx context.Context) (string, error) {
	raw := make([]byte, 32)
	if _, err := rand.Read(raw); err != nil {
		return "", fmt.Errorf("generate session token: %w", err)
	}
	token := hex.EncodeToString(raw)

	payload := []byte(`{"createdAt":"` + time.Now().UTC().Format(time.RFC3339) + `"}`)
	if _, err := m.store.Put(ctx, sessionKeyPrefix+token, payload, kv.VersionAny, m.sessionTTL); err != nil {
		return "", fmt.Errorf("store session: %w", err)
	}
	return token, nil
}

// SessionValid reports whether a token refers to a live session.
func (m *Manager) SessionValid(ctx context.Context, token string) bool {
	if token == "" {
		return false
	}
	ok, err := m.store.Exists(ctx, sessionKeyPrefix+token)
	if err != nil {
		m.logger.Warnw("Session lookup failed", "error", err)
		return false
	}
	return ok
}

// DestroySession removes a session token. Destroying an already expired or
// unknown token is not an error.
func (m *Manager) DestroySession(ctx context.Context, token string) error {
	err := m.store.Delete(ctx, sessionKeyPrefix+token)
	if err != nil && !errors.Is(err, kv.ErrNotFound) {
		return err
	}
	return nil
}

// Authenticated reports whether the request carries a valid session cookie.
func (m *Manager) Authenticated(r *http.Request) bool {
	cookie, err := r.Cookie(CookieName)
	if err != nil {
		return false
	}
	return m.SessionValid(r.Context(), cookie.Value)
}

// SetSessionCookie attaches the session cookie to a login response.
func (m *Manager) SetSessionCookie(w http.ResponseWriter, token string) {
	http.SetCookie(w, &http.Cookie{
		Name:     CookieName,
		Value:    token,
		Path:     "/",
		MaxAge:   int(m.sessionTTL / time.Second),
		HttpOnly: true,
		Secure:   m.secureCookies,
		SameSite: http.SameSiteLaxMode,
	})
}

// ClearSessionCookie expires the session cookie on logout.
func (m *Manager) ClearSessionCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     CookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   m.secureCookies,
		SameSite: http.SameSiteLaxMode,
	})
}

// SessionToken extracts the raw token from a request, empty when absent.
func SessionToken(r *http.Request) string {
	cookie, err := r.Cookie(CookieName)
	if err != nil {
		return ""
	}
	return cookie.Value
}
