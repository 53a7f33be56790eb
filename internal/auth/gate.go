package auth

import (
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"path"
	"strings"
	"sync/atomic"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/mrlokans/storefront/internal/config"
	"github.com/mrlokans/storefront/internal/database"
	"github.com/mrlokans/storefront/internal/entities"
)

// Identity is the per-request result of identity and role resolution.
// The zero value is anonymous.
type Identity struct {
	UserID uint
	Role   entities.Role
}

// Authenticated reports whether the identity carries a user and a known role.
func (i Identity) Authenticated() bool {
	return i.UserID != 0 && i.Role.Valid()
}

// Action is what the gate does with a request.
type Action int

const (
	ActionPass Action = iota
	ActionRedirect
	ActionReject
)

func (a Action) String() string {
	switch a {
	case ActionRedirect:
		return "redirect"
	case ActionReject:
		return "reject"
	default:
		return "pass"
	}
}

// Decision reasons, also used as the JSON error code on rejections.
const (
	ReasonLoginRequired        = "unauthenticated"
	ReasonForbidden            = "forbidden"
	ReasonAlreadyAuthenticated = "already_authenticated"
)

// Decision is the routing outcome for one request.
type Decision struct {
	Action   Action
	Location string // redirect target
	Status   int    // HTTP status for rejections
	Reason   string
}

// Rule protects every path under Prefix. API rules answer with 401/403
// instead of redirecting.
type Rule struct {
	Prefix  string
	Require entities.Role
	API     bool
}

// Policy is the static routing table consulted for every request.
type Policy struct {
	LoginPath  string
	Fallback   string // where a signed-in user without the required role lands
	Protected  []Rule
	PublicOnly []string
}

// DefaultPolicy returns the storefront routing table.
func DefaultPolicy() *Policy {
	return &Policy{
		LoginPath: "/login",
		Fallback:  "/my-books",
		Protected: []Rule{
			{Prefix: "/admin", Require: entities.RoleAdmin},
			{Prefix: "/publisher", Require: entities.RolePublisher},
			{Prefix: "/my-books", Require: entities.RoleReader},
			{Prefix: "/cart", Require: entities.RoleReader},
			{Prefix: "/api/admin", Require: entities.RoleAdmin, API: true},
			{Prefix: "/api/publisher", Require: entities.RolePublisher, API: true},
			{Prefix: "/api/me", Require: entities.RoleReader, API: true},
		},
		PublicOnly: []string{"/login", "/signup", "/reset-password", "/forgot-password"},
	}
}

// Decide maps a request path and identity onto a routing decision. It has no
// side effects.
func (p *Policy) Decide(requestPath string, id Identity) Decision {
	clean := cleanPath(requestPath)
	rule, protected := p.match(clean)

	if !id.Authenticated() {
		if !protected {
			return Decision{Action: ActionPass}
		}
		if rule.API {
			return Decision{Action: ActionReject, Status: http.StatusUnauthorized, Reason: ReasonLoginRequired}
		}
		return Decision{Action: ActionRedirect, Location: p.loginURL(clean), Reason: ReasonLoginRequired}
	}

	if p.publicOnly(clean) {
		return Decision{Action: ActionRedirect, Location: id.Role.Home(), Reason: ReasonAlreadyAuthenticated}
	}

	if protected && !id.Role.Satisfies(rule.Require) {
		if rule.API {
			return Decision{Action: ActionReject, Status: http.StatusForbidden, Reason: ReasonForbidden}
		}
		return Decision{Action: ActionRedirect, Location: p.Fallback, Reason: ReasonForbidden}
	}

	return Decision{Action: ActionPass}
}

// Validate checks that no redirect issued by the policy leads to another
// redirect for the same identity.
func (p *Policy) Validate() error {
	if _, protected := p.match(p.LoginPath); protected {
		return fmt.Errorf("login path %q is protected", p.LoginPath)
	}
	if !p.publicOnly(p.LoginPath) {
		return fmt.Errorf("login path %q must be public-only", p.LoginPath)
	}
	for _, role := range []entities.Role{entities.RoleReader, entities.RolePublisher, entities.RoleAdmin} {
		for _, target := range []string{role.Home(), p.Fallback} {
			if d := p.Decide(target, Identity{UserID: 1, Role: role}); d.Action != ActionPass {
				return fmt.Errorf("%s landing page %q is not reachable: %s", role, target, d.Action)
			}
		}
	}
	return nil
}

func (p *Policy) match(clean string) (Rule, bool) {
	var best Rule
	found := false
	for _, r := range p.Protected {
		if hasSegmentPrefix(clean, r.Prefix) && len(r.Prefix) > len(best.Prefix) {
			best, found = r, true
		}
	}
	return best, found
}

func (p *Policy) publicOnly(clean string) bool {
	for _, prefix := range p.PublicOnly {
		if hasSegmentPrefix(clean, prefix) {
			return true
		}
	}
	return false
}

func (p *Policy) loginURL(from string) string {
	return p.LoginPath + "?next=" + url.QueryEscape(from)
}

// hasSegmentPrefix matches "/admin" against "/admin" and "/admin/x" but not
// "/administrator".
func hasSegmentPrefix(p, prefix string) bool {
	return p == prefix || strings.HasPrefix(p, prefix+"/")
}

func cleanPath(p string) string {
	if p == "" {
		return "/"
	}
	if !strings.HasPrefix(p, "/") {
		p = "/" + p
	}
	return path.Clean(p)
}

// GateConfig wires the gate's collaborators.
type GateConfig struct {
	Policy     *Policy
	Identities IdentityResolver
	Roles      RoleLookup
	Refresher  SessionRefresher // optional

	OnRoleLookupFailure config.RoleLookupFailurePolicy
}

// GateStats counts degraded resolutions since start.
type GateStats struct {
	IdentityFailures   int64 `json:"identity_failures"`
	RoleLookupFailures int64 `json:"role_lookup_failures"`
}

// Gate is the session/role middleware. It runs one identity resolution and at
// most one role lookup per request, then applies the policy.
type Gate struct {
	policy     *Policy
	identities IdentityResolver
	roles      RoleLookup
	refresher  SessionRefresher
	onFailure  config.RoleLookupFailurePolicy
	log        zerolog.Logger

	identityFailures atomic.Int64
	roleFailures     atomic.Int64
}

// NewGate validates the policy and builds the middleware.
func NewGate(cfg GateConfig, log zerolog.Logger) (*Gate, error) {
	if cfg.Identities == nil || cfg.Roles == nil {
		return nil, errors.New("gate requires an identity resolver and a role lookup")
	}
	policy := cfg.Policy
	if policy == nil {
		policy = DefaultPolicy()
	}
	if err := policy.Validate(); err != nil {
		return nil, fmt.Errorf("invalid gate policy: %w", err)
	}
	onFailure := cfg.OnRoleLookupFailure
	if onFailure == "" {
		onFailure = config.RoleLookupAsAnonymous
	}
	return &Gate{
		policy:     policy,
		identities: cfg.Identities,
		roles:      cfg.Roles,
		refresher:  cfg.Refresher,
		onFailure:  onFailure,
		log:        log.With().Str("component", "gate").Logger(),
	}, nil
}

// Stats returns the failure counters.
func (g *Gate) Stats() GateStats {
	return GateStats{
		IdentityFailures:   g.identityFailures.Load(),
		RoleLookupFailures: g.roleFailures.Load(),
	}
}

// Handler returns the gin middleware.
func (g *Gate) Handler() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, available := g.identify(c)
		if !available {
			g.unavailable(c)
			return
		}

		decision := g.policy.Decide(c.Request.URL.Path, id)

		// Refresh never feeds back into the decision above.
		if id.UserID != 0 && g.refresher != nil {
			if err := g.refresher.Refresh(c.Request.Context()); err != nil {
				g.log.Warn().Err(err).Uint("user_id", id.UserID).Msg("session refresh failed")
			}
		}

		switch decision.Action {
		case ActionRedirect:
			c.Redirect(http.StatusFound, decision.Location)
			c.Abort()
		case ActionReject:
			c.AbortWithStatusJSON(decision.Status, gin.H{
				"error": rejectionMessage(decision),
				"code":  decision.Reason,
			})
		default:
			setIdentity(c, id)
			c.Next()
		}
	}
}

// identify resolves the request identity. The second result is false only
// when the role lookup failed and the configured policy refuses to guess.
func (g *Gate) identify(c *gin.Context) (Identity, bool) {
	userID, err := g.identities.CurrentUser(c.Request)
	if err != nil {
		g.identityFailures.Add(1)
		g.log.Warn().Err(err).Str("path", c.Request.URL.Path).Msg("identity resolution failed, routing as anonymous")
		return Identity{}, true
	}
	if userID == 0 {
		return Identity{}, true
	}

	role, err := g.roles.RoleOf(c.Request.Context(), userID)
	if err != nil {
		if database.IsNotFound(err) {
			g.log.Info().Uint("user_id", userID).Msg("credential refers to a missing profile, routing as anonymous")
			return Identity{}, true
		}
		g.roleFailures.Add(1)
		g.log.Error().Err(err).
			Uint("user_id", userID).
			Str("path", c.Request.URL.Path).
			Str("policy", string(g.onFailure)).
			Msg("role lookup failed")
		return Identity{}, g.onFailure != config.RoleLookupUnavailable
	}
	if !role.Valid() {
		g.log.Warn().Uint("user_id", userID).Str("role", string(role)).Msg("unknown role, routing as anonymous")
		return Identity{}, true
	}
	return Identity{UserID: userID, Role: role}, true
}

func (g *Gate) unavailable(c *gin.Context) {
	c.Header("Retry-After", "5")
	if wantsJSON(c) {
		c.AbortWithStatusJSON(http.StatusServiceUnavailable, gin.H{
			"error":     "account service temporarily unavailable",
			"code":      "role_lookup_unavailable",
			"retryable": true,
		})
		return
	}
	c.String(http.StatusServiceUnavailable, "We could not load your account right now. Please try again in a moment.")
	c.Abort()
}

func rejectionMessage(d Decision) string {
	if d.Status == http.StatusUnauthorized {
		return "authentication required"
	}
	return "insufficient permissions"
}

func wantsJSON(c *gin.Context) bool {
	return strings.HasPrefix(c.Request.URL.Path, "/api/") ||
		strings.Contains(c.GetHeader("Accept"), "application/json")
}
