package auth

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/mrlokans/storefront/internal/entities"
)

// IdentityResolver answers "who is making this request". A zero ID with a
// nil error is a valid anonymous answer.
type IdentityResolver interface {
	CurrentUser(r *http.Request) (uint, error)
}

// RoleLookup fetches the role of an authenticated user.
type RoleLookup interface {
	RoleOf(ctx context.Context, userID uint) (entities.Role, error)
}

// SessionRefresher renews a session credential after routing is decided.
type SessionRefresher interface {
	Refresh(ctx context.Context) error
}

// TokenValidator resolves API bearer tokens.
type TokenValidator interface {
	ValidateToken(ctx context.Context, token string) (*entities.Profile, error)
}

// BearerResolver resolves identities from "Authorization: Bearer <token>".
type BearerResolver struct {
	tokens TokenValidator
}

func NewBearerResolver(tokens TokenValidator) *BearerResolver {
	return &BearerResolver{tokens: tokens}
}

// CurrentUser returns 0 for a missing, unknown or expired token. Only
// storage failures are reported as errors.
func (b *BearerResolver) CurrentUser(r *http.Request) (uint, error) {
	token, ok := bearerToken(r)
	if !ok {
		return 0, nil
	}
	profile, err := b.tokens.ValidateToken(r.Context(), token)
	if err != nil {
		if errors.Is(err, ErrInvalidToken) || errors.Is(err, ErrTokenExpired) {
			return 0, nil
		}
		return 0, err
	}
	return profile.ID, nil
}

// ChainResolver asks each resolver in turn and returns the first identity.
type ChainResolver struct {
	resolvers []IdentityResolver
}

func NewChainResolver(resolvers ...IdentityResolver) *ChainResolver {
	return &ChainResolver{resolvers: resolvers}
}

// CurrentUser reports errors only when no resolver produced an identity.
func (c *ChainResolver) CurrentUser(r *http.Request) (uint, error) {
	var errs []error
	for _, res := range c.resolvers {
		id, err := res.CurrentUser(r)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if id != 0 {
			return id, nil
		}
	}
	return 0, errors.Join(errs...)
}

func bearerToken(r *http.Request) (string, bool) {
	header := r.Header.Get("Authorization")
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
		return "", false
	}
	token := strings.TrimSpace(parts[1])
	return token, token != ""
}
