package auth

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/inkhaven/inkhaven-backend/pkg/kv/memory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

func newTestManager(t *testing.T, cfg Config) *Manager {
	t.Helper()
	store := memory.New(10 * time.Millisecond)
	t.Cleanup(func() { store.Close() })
	if cfg.SessionTTL == 0 {
		cfg.SessionTTL = time.Hour
	}
	return NewManager(store, cfg, zap.NewNop().Sugar())
}

func TestValidateCredentialsPlaintext(t *testing.T) {
	m := newTestManager(t, Config{Username: "admin", Password: "secret"})

	assert.True(t, m.ValidateCredentials("admin", "secret"))
	assert.False(t, m.ValidateCredentials("admin", "wrong"))
	assert.False(t, m.ValidateCredentials("other", "secret"))
	assert.False(t, m.ValidateCredentials("", ""))
}

func TestValidateCredentialsBcrypt(t *testing.T) {
	hash, err := bcrypt.GenerateFromPassword([]byte("secret"), bcrypt.MinCost)
	require.NoError(t, err)

	m := newTestManager(t, Config{Username: "admin", PasswordHash: string(hash)})

	assert.True(t, m.ValidateCredentials("admin", "secret"))
	assert.False(t, m.ValidateCredentials("admin", "wrong"))
}

func TestSessionLifecycle(t *testing.T) {
	m := newTestManager(t, Config{Username: "admin", Password: "secret"})
	ctx := context.Background()

	token, err := m.CreateSession(ctx)
	require.NoError(t, err)
	require.NotEmpty(t, token)

	assert.True(t, m.SessionValid(ctx, token))
	assert.False(t, m.SessionValid(ctx, "forged-token"))
	assert.False(t, m.SessionValid(ctx, ""))

	require.NoError(t, m.DestroySession(ctx, token))
	assert.False(t, m.SessionValid(ctx, token))

	// destroying again is a no-op
	require.NoError(t, m.DestroySession(ctx, token))
}

func TestSessionExpiry(t *testing.T) {
	m := newTestManager(t, Config{Username: "admin", Password: "secret", SessionTTL: 30 * time.Millisecond})
	ctx := context.Background()

	token, err := m.CreateSession(ctx)
	require.NoError(t, err)
	assert.True(t, m.SessionValid(ctx, token))

	time.Sleep(60 * time.Millisecond)
	assert.False(t, m.SessionValid(ctx, token))
}

func TestAuthenticatedFromCookie(t *testing.T) {
	m := newTestManager(t, Config{Username: "admin", Password: "secret"})
	ctx := context.Background()

	token, err := m.CreateSession(ctx)
	require.NoError(t, err)

	r := httptest.NewRequest(http.MethodGet, "/v1/admin/me", nil)
	assert.False(t, m.Authenticated(r))

	r.AddCookie(&http.Cookie{Name: CookieName, Value: token})
	assert.True(t, m.Authenticated(r))
	assert.Equal(t, token, SessionToken(r))
}

func TestSessionCookieAttributes(t *testing.T) {
	m := newTestManager(t, Config{Username: "admin", Password: "secret", SessionTTL: time.Hour})

	w := httptest.NewRecorder()
	m.SetSessionCookie(w, "tok")

	cookies := w.Result().Cookies()
	require.Len(t, cookies, 1)
	c := cookies[0]
	assert.Equal(t, CookieName, c.Name)
	assert.Equal(t, "tok", c.Value)
	assert.True(t, c.HttpOnly)
	assert.Equal(t, http.SameSiteLaxMode, c.SameSite)
	assert.Equal(t, 3600, c.MaxAge)

	w = httptest.NewRecorder()
	m.ClearSessionCookie(w)
	cookies = w.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Less(t, cookies[0].MaxAge, 0)
}
