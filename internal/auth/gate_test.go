package auth

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/mrlokans/storefront/internal/config"
	"github.com/mrlokans/storefront/internal/entities"
)

func init() {
	gin.SetMode(gin.TestMode)
}

var (
	anonymous = Identity{}
	reader    = Identity{UserID: 1, Role: entities.RoleReader}
	publisher = Identity{UserID: 2, Role: entities.RolePublisher}
	admin     = Identity{UserID: 3, Role: entities.RoleAdmin}
)

func TestPolicy_Decide(t *testing.T) {
	p := DefaultPolicy()

	tests := []struct {
		name     string
		path     string
		id       Identity
		action   Action
		location string
		status   int
	}{
		{"anonymous my-books", "/my-books", anonymous, ActionRedirect, "/login?next=%2Fmy-books", 0},
		{"anonymous cart", "/cart", anonymous, ActionRedirect, "/login?next=%2Fcart", 0},
		{"anonymous admin subpage", "/admin/users", anonymous, ActionRedirect, "/login?next=%2Fadmin%2Fusers", 0},
		{"anonymous home", "/", anonymous, ActionPass, "", 0},
		{"anonymous login", "/login", anonymous, ActionPass, "", 0},
		{"anonymous api me", "/api/me/library", anonymous, ActionReject, "", http.StatusUnauthorized},
		{"anonymous public api", "/api/books", anonymous, ActionPass, "", 0},
		{"reader login", "/login", reader, ActionRedirect, "/my-books", 0},
		{"publisher signup", "/signup", publisher, ActionRedirect, "/publisher", 0},
		{"admin login", "/login", admin, ActionRedirect, "/admin", 0},
		{"admin reset password", "/reset-password/abc", admin, ActionRedirect, "/admin", 0},
		{"reader admin", "/admin/settings", reader, ActionRedirect, "/my-books", 0},
		{"reader publisher", "/publisher", reader, ActionRedirect, "/my-books", 0},
		{"publisher admin", "/admin", publisher, ActionRedirect, "/my-books", 0},
		{"publisher own surface", "/publisher/books/4", publisher, ActionPass, "", 0},
		{"admin publisher surface", "/publisher", admin, ActionPass, "", 0},
		{"reader my-books", "/my-books", reader, ActionPass, "", 0},
		{"reader api admin", "/api/admin/users", reader, ActionReject, "", http.StatusForbidden},
		{"reader api publisher", "/api/publisher/books", reader, ActionReject, "", http.StatusForbidden},
		{"publisher api publisher", "/api/publisher/books", publisher, ActionPass, "", 0},
		{"admin api admin", "/api/admin/users", admin, ActionPass, "", 0},
		{"trailing slash", "/admin/", reader, ActionRedirect, "/my-books", 0},
		{"unknown role is anonymous", "/my-books", Identity{UserID: 9, Role: "ghost"}, ActionRedirect, "/login?next=%2Fmy-books", 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := p.Decide(tt.path, tt.id)
			assert.Equal(t, tt.action, d.Action)
			assert.Equal(t, tt.location, d.Location)
			assert.Equal(t, tt.status, d.Status)
		})
	}
}

func TestPolicy_SegmentAwarePrefix(t *testing.T) {
	p := DefaultPolicy()

	for _, path := range []string{"/administrator", "/admins", "/publishers", "/cartography", "/my-books-archive", "/loginhelp"} {
		assert.Equal(t, ActionPass, p.Decide(path, anonymous).Action, path)
		assert.Equal(t, ActionPass, p.Decide(path, reader).Action, path)
	}
}

// Following any redirect once must land on a page that passes.
func TestPolicy_NoRedirectChains(t *testing.T) {
	p := DefaultPolicy()
	paths := []string{
		"/", "/admin", "/admin/x", "/publisher", "/publisher/books", "/my-books", "/my-books/7",
		"/cart", "/login", "/signup", "/reset-password", "/forgot-password", "/books/3",
		"/api/me/cart", "/api/admin/plans", "/api/publisher/books",
	}

	for _, id := range []Identity{anonymous, reader, publisher, admin} {
		for _, path := range paths {
			d := p.Decide(path, id)
			if d.Action != ActionRedirect {
				continue
			}
			target, err := url.Parse(d.Location)
			require.NoError(t, err)

			next := p.Decide(target.Path, id)
			assert.Equal(t, ActionPass, next.Action, "%v: %s -> %s -> %s", id, path, d.Location, next.Location)
		}
	}
}

func TestPolicy_Validate(t *testing.T) {
	require.NoError(t, DefaultPolicy().Validate())

	bad := DefaultPolicy()
	bad.Fallback = "/login"
	assert.Error(t, bad.Validate())

	bad = DefaultPolicy()
	bad.PublicOnly = append(bad.PublicOnly, "/my-books")
	assert.Error(t, bad.Validate())

	bad = DefaultPolicy()
	bad.Protected = append(bad.Protected, Rule{Prefix: "/login", Require: entities.RoleReader})
	assert.Error(t, bad.Validate())
}

type fakeIdentities struct {
	id  uint
	err error
}

func (f fakeIdentities) CurrentUser(*http.Request) (uint, error) { return f.id, f.err }

type fakeRoles struct {
	roles map[uint]entities.Role
	err   error
	calls int
}

func (f *fakeRoles) RoleOf(_ context.Context, id uint) (entities.Role, error) {
	f.calls++
	if f.err != nil {
		return "", f.err
	}
	role, ok := f.roles[id]
	if !ok {
		return "", gorm.ErrRecordNotFound
	}
	return role, nil
}

type fakeRefresher struct {
	calls int
	err   error
}

func (f *fakeRefresher) Refresh(context.Context) error {
	f.calls++
	return f.err
}

func gateRouter(t *testing.T, cfg GateConfig) (*gin.Engine, *Gate) {
	t.Helper()
	gate, err := NewGate(cfg, zerolog.Nop())
	require.NoError(t, err)

	r := gin.New()
	r.Use(gate.Handler())
	handler := func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"user_id": GetUserID(c), "role": GetRole(c)})
	}
	for _, p := range []string{"/", "/login", "/my-books", "/admin", "/api/me/library", "/api/admin/users"} {
		r.GET(p, handler)
	}
	return r, gate
}

func get(r http.Handler, path string) *httptest.ResponseRecorder {
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, path, nil))
	return rr
}

func TestGate_RedirectsAndPasses(t *testing.T) {
	roles := &fakeRoles{roles: map[uint]entities.Role{1: entities.RoleReader}}
	refresher := &fakeRefresher{}
	r, _ := gateRouter(t, GateConfig{Identities: fakeIdentities{id: 1}, Roles: roles, Refresher: refresher})

	rr := get(r, "/login")
	assert.Equal(t, http.StatusFound, rr.Code)
	assert.Equal(t, "/my-books", rr.Header().Get("Location"))

	rr = get(r, "/my-books")
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `{"user_id":1,"role":"reader"}`, rr.Body.String())

	rr = get(r, "/api/admin/users")
	assert.Equal(t, http.StatusForbidden, rr.Code)
	assert.Contains(t, rr.Body.String(), `"code":"forbidden"`)

	assert.Equal(t, 3, roles.calls, "one role lookup per request")
	assert.Equal(t, 3, refresher.calls)
}

func TestGate_Anonymous(t *testing.T) {
	roles := &fakeRoles{}
	r, _ := gateRouter(t, GateConfig{Identities: fakeIdentities{}, Roles: roles})

	rr := get(r, "/my-books")
	assert.Equal(t, http.StatusFound, rr.Code)
	assert.Equal(t, "/login?next=%2Fmy-books", rr.Header().Get("Location"))

	rr = get(r, "/api/me/library")
	assert.Equal(t, http.StatusUnauthorized, rr.Code)

	rr = get(r, "/")
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Zero(t, roles.calls)
}

func TestGate_IdentityErrorRoutesAsAnonymous(t *testing.T) {
	r, gate := gateRouter(t, GateConfig{
		Identities: fakeIdentities{err: errors.New("session store down")},
		Roles:      &fakeRoles{},
	})

	rr := get(r, "/my-books")
	assert.Equal(t, http.StatusFound, rr.Code)
	assert.Equal(t, "/login?next=%2Fmy-books", rr.Header().Get("Location"))
	assert.Equal(t, int64(1), gate.Stats().IdentityFailures)
}

func TestGate_RoleLookupFailureAsAnonymous(t *testing.T) {
	r, gate := gateRouter(t, GateConfig{
		Identities: fakeIdentities{id: 1},
		Roles:      &fakeRoles{err: errors.New("database is locked")},
	})

	rr := get(r, "/")
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `{"user_id":0,"role":""}`, rr.Body.String())

	rr = get(r, "/my-books")
	assert.Equal(t, http.StatusFound, rr.Code)
	assert.Equal(t, int64(2), gate.Stats().RoleLookupFailures)
}

func TestGate_RoleLookupFailureUnavailable(t *testing.T) {
	r, gate := gateRouter(t, GateConfig{
		Identities:          fakeIdentities{id: 1},
		Roles:               &fakeRoles{err: errors.New("database is locked")},
		OnRoleLookupFailure: config.RoleLookupUnavailable,
	})

	rr := get(r, "/api/me/library")
	assert.Equal(t, http.StatusServiceUnavailable, rr.Code)
	assert.Equal(t, "5", rr.Header().Get("Retry-After"))
	assert.Contains(t, rr.Body.String(), `"retryable":true`)

	rr = get(r, "/my-books")
	assert.Equal(t, http.StatusServiceUnavailable, rr.Code)
	assert.Contains(t, rr.Body.String(), "try again")
	assert.Equal(t, int64(2), gate.Stats().RoleLookupFailures)
}

func TestGate_MissingProfileIsAnonymousNotFailure(t *testing.T) {
	r, gate := gateRouter(t, GateConfig{
		Identities:          fakeIdentities{id: 42},
		Roles:               &fakeRoles{roles: map[uint]entities.Role{}},
		OnRoleLookupFailure: config.RoleLookupUnavailable,
	})

	rr := get(r, "/my-books")
	assert.Equal(t, http.StatusFound, rr.Code)
	assert.Zero(t, gate.Stats().RoleLookupFailures)
}

func TestGate_RefreshErrorDoesNotChangeDecision(t *testing.T) {
	roles := &fakeRoles{roles: map[uint]entities.Role{3: entities.RoleAdmin}}
	refresher := &fakeRefresher{err: errors.New("renew failed")}
	r, _ := gateRouter(t, GateConfig{Identities: fakeIdentities{id: 3}, Roles: roles, Refresher: refresher})

	assert.Equal(t, http.StatusOK, get(r, "/admin").Code)

	rr := get(r, "/login")
	assert.Equal(t, http.StatusFound, rr.Code)
	assert.Equal(t, "/admin", rr.Header().Get("Location"))
	assert.Equal(t, 2, refresher.calls)
}

func TestNewGate_RequiresCollaborators(t *testing.T) {
	_, err := NewGate(GateConfig{Roles: &fakeRoles{}}, zerolog.Nop())
	assert.Error(t, err)

	bad := DefaultPolicy()
	bad.LoginPath = "/my-books"
	_, err = NewGate(GateConfig{Identities: fakeIdentities{}, Roles: &fakeRoles{}, Policy: bad}, zerolog.Nop())
	assert.Error(t, err)
}
