package auth

import (
	"context"
	"database/sql"
	"encoding/gob"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/alexedwards/scs/sqlite3store"
	"github.com/alexedwards/scs/v2"

	"github.com/mrlokans/storefront/internal/config"
	"github.com/mrlokans/storefront/internal/entities"
)

// Session data keys
const (
	SessionKeyUserID   = "user_id"
	SessionKeyIssuedAt = "issued_at"
)

// ErrSessionNotLoaded means SessionLoadSave did not run for the request.
var ErrSessionNotLoaded = errors.New("session not loaded")

type sessionStateKey struct{}

type sessionState struct {
	loadErr error
}

func init() {
	gob.Register(time.Time{})
}

// SessionManager wraps scs.SessionManager with storefront-specific methods.
// It resolves cookie identities for the gate and refreshes long-lived sessions.
type SessionManager struct {
	*scs.SessionManager
	now func() time.Time
}

// NewSessionManager creates a session manager backed by the sessions table
// of the main database.
func NewSessionManager(sqlDB *sql.DB, cfg config.Auth) (*SessionManager, error) {
	_, err := sqlDB.Exec(`CREATE TABLE IF NOT EXISTS sessions (
		token TEXT PRIMARY KEY,
		data BLOB NOT NULL,
		expiry REAL NOT NULL
	);
	CREATE INDEX IF NOT EXISTS sessions_expiry_idx ON sessions(expiry);`)
	if err != nil {
		return nil, err
	}

	sm := scs.New()
	sm.Store = sqlite3store.New(sqlDB)

	lifetime := cfg.SessionLifetime
	if lifetime <= 0 {
		lifetime = 24 * time.Hour
	}
	sm.Lifetime = lifetime

	sm.Cookie.Name = "session"
	sm.Cookie.HttpOnly = true
	sm.Cookie.Secure = cfg.SecureCookies
	sm.Cookie.SameSite = http.SameSiteLaxMode // Lax so the login redirect keeps the cookie
	sm.Cookie.Path = "/"

	return &SessionManager{SessionManager: sm, now: time.Now}, nil
}

// CreateSession binds the request's session to a profile after login.
func (sm *SessionManager) CreateSession(ctx context.Context, profile *entities.Profile) error {
	// New token on privilege change prevents session fixation.
	if err := sm.RenewToken(ctx); err != nil {
		return err
	}
	sm.Put(ctx, SessionKeyUserID, int(profile.ID))
	sm.Put(ctx, SessionKeyIssuedAt, sm.now())
	return nil
}

// DestroySession removes all session data.
func (sm *SessionManager) DestroySession(ctx context.Context) error {
	return sm.Destroy(ctx)
}

// CurrentUser returns the session's user ID, or 0 when anonymous.
func (sm *SessionManager) CurrentUser(r *http.Request) (uint, error) {
	ctx := r.Context()
	state, ok := ctx.Value(sessionStateKey{}).(*sessionState)
	if !ok {
		return 0, ErrSessionNotLoaded
	}
	if state.loadErr != nil {
		return 0, fmt.Errorf("load session: %w", state.loadErr)
	}
	id := sm.GetInt(ctx, SessionKeyUserID)
	if id <= 0 {
		return 0, nil
	}
	return uint(id), nil
}

// Refresh rotates the session token once the session is older than half of
// its lifetime. Anonymous sessions are left alone.
func (sm *SessionManager) Refresh(ctx context.Context) error {
	if !sessionLoaded(ctx) || sm.GetInt(ctx, SessionKeyUserID) <= 0 {
		return nil
	}
	now := sm.now()
	issued, ok := sm.Get(ctx, SessionKeyIssuedAt).(time.Time)
	if ok && now.Sub(issued) < sm.Lifetime/2 {
		return nil
	}
	if err := sm.RenewToken(ctx); err != nil {
		return err
	}
	sm.Put(ctx, SessionKeyIssuedAt, now)
	return nil
}

func sessionLoaded(ctx context.Context) bool {
	state, ok := ctx.Value(sessionStateKey{}).(*sessionState)
	return ok && state.loadErr == nil
}
