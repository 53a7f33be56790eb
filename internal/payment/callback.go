package payment

import (
	"errors"
	"fmt"
	"strings"
	"time"

	jwt "github.com/golang-jwt/jwt/v5"
)

const (
	callbackIssuer = "storefront-payments"
	callbackTTL    = 10 * time.Minute
	callbackLeeway = 30 * time.Second
)

var (
	ErrInvalidCallback   = errors.New("invalid payment callback")
	ErrCallbacksDisabled = errors.New("payment callbacks are not configured")
)

type CallbackStatus string

const (
	CallbackSucceeded CallbackStatus = "success"
	CallbackFailed    CallbackStatus = "failed"
)

// Callback is a verified provider notification.
type Callback struct {
	Reference string
	Status    CallbackStatus
}

type callbackClaims struct {
	Ref    string         `json:"ref"`
	Status CallbackStatus `json:"status"`
	jwt.RegisteredClaims
}

// CallbackSigner issues and verifies HS256 callback tokens with a shared secret.
type CallbackSigner struct {
	secret []byte
}

func NewCallbackSigner(secret string) (*CallbackSigner, error) {
	if strings.TrimSpace(secret) == "" {
		return nil, errors.New("callback secret is required")
	}
	return &CallbackSigner{secret: []byte(secret)}, nil
}

// Sign issues a callback token for reference.
func (s *CallbackSigner) Sign(reference string, status CallbackStatus) (string, error) {
	if reference == "" {
		return "", fmt.Errorf("%w: missing reference", ErrInvalidCallback)
	}
	now := time.Now().UTC()
	claims := callbackClaims{
		Ref:    reference,
		Status: status,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    callbackIssuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(callbackTTL)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
}

// Verify checks signature, issuer and expiry and returns the callback.
func (s *CallbackSigner) Verify(token string) (Callback, error) {
	var claims callbackClaims
	_, err := jwt.ParseWithClaims(strings.TrimSpace(token), &claims, func(*jwt.Token) (any, error) {
		return s.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(callbackIssuer),
		jwt.WithExpirationRequired(),
		jwt.WithLeeway(callbackLeeway),
	)
	if err != nil {
		return Callback{}, fmt.Errorf("%w: %v", ErrInvalidCallback, err)
	}
	if claims.Ref == "" {
		return Callback{}, fmt.Errorf("%w: missing reference", ErrInvalidCallback)
	}
	switch claims.Status {
	case CallbackSucceeded, CallbackFailed:
	default:
		return Callback{}, fmt.Errorf("%w: unknown status %q", ErrInvalidCallback, claims.Status)
	}
	return Callback{Reference: claims.Ref, Status: claims.Status}, nil
}
