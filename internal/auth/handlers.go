package auth

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/mrlokans/storefront/internal/entities"
)

// Auditor records authentication events.
type Auditor interface {
	LogAuth(userID uint, action string, ipAddr, userAgent string, success bool)
}

// Controller serves the JSON login, signup, logout and account endpoints.
type Controller struct {
	service  *Service
	sessions *SessionManager
	throttle *LoginThrottle
	policy   *Policy
	audit    Auditor
	log      zerolog.Logger
}

// NewController builds the auth controller. audit may be nil.
func NewController(service *Service, sessions *SessionManager, throttle *LoginThrottle, policy *Policy, audit Auditor, log zerolog.Logger) *Controller {
	if policy == nil {
		policy = DefaultPolicy()
	}
	return &Controller{
		service:  service,
		sessions: sessions,
		throttle: throttle,
		policy:   policy,
		audit:    audit,
		log:      log.With().Str("component", "auth_controller").Logger(),
	}
}

// RegisterRoutes mounts the session endpoints.
func (ac *Controller) RegisterRoutes(r gin.IRoutes) {
	r.POST("/login", ac.Login)
	r.POST("/signup", ac.Signup)
	r.POST("/logout", ac.Logout)
}

// RegisterAccountRoutes mounts endpoints for the signed-in user; r is the
// /api/me group.
func (ac *Controller) RegisterAccountRoutes(r gin.IRoutes) {
	r.GET("/profile", ac.Profile)
	r.POST("/password", ac.ChangePassword)
	r.POST("/token", ac.GenerateToken)
	r.DELETE("/token", ac.RevokeToken)
}

type loginRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
	Next     string `json:"next"`
}

// Login authenticates credentials and starts a cookie session.
func (ac *Controller) Login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "email and password are required", "code": "invalid_request"})
		return
	}
	ip := c.ClientIP()

	if ac.throttle != nil {
		if allowed, retryAfter := ac.throttle.Allow(ip, req.Email); !allowed {
			c.Header("Retry-After", retryAfter.String())
			c.JSON(http.StatusTooManyRequests, gin.H{
				"error":       "too many login attempts",
				"code":        "rate_limited",
				"retry_after": retryAfter.String(),
			})
			return
		}
	}

	profile, err := ac.service.Authenticate(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		if ac.throttle != nil {
			ac.throttle.RecordFailure(ip, req.Email)
		}
		ac.logAuth(0, "login", c, false)

		switch {
		case errors.Is(err, ErrAccountLocked):
			c.JSON(http.StatusForbidden, gin.H{"error": "account is locked, try again later", "code": "account_locked"})
		case errors.Is(err, ErrInvalidLogin):
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid email or password", "code": "invalid_credentials"})
		default:
			ac.log.Error().Err(err).Msg("login failed")
			c.JSON(http.StatusInternalServerError, gin.H{"error": "login failed", "code": "internal", "retryable": true})
		}
		return
	}

	if ac.throttle != nil {
		ac.throttle.RecordSuccess(ip, req.Email)
	}
	if err := ac.sessions.CreateSession(c.Request.Context(), profile); err != nil {
		ac.log.Error().Err(err).Uint("user_id", profile.ID).Msg("failed to create session")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to create session", "code": "internal", "retryable": true})
		return
	}
	ac.logAuth(profile.ID, "login", c, true)

	c.JSON(http.StatusOK, gin.H{
		"user":     profile,
		"redirect": ac.landingFor(profile, req.Next),
	})
}

// Signup registers a reader account and signs it in.
func (ac *Controller) Signup(c *gin.Context) {
	var req SignupInput
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body", "code": "invalid_request"})
		return
	}

	profile, err := ac.service.Signup(c.Request.Context(), req)
	if err != nil {
		switch {
		case errors.Is(err, ErrEmailTaken):
			c.JSON(http.StatusConflict, gin.H{"error": "email already registered", "code": "email_taken"})
		case errors.Is(err, ErrPasswordTooShort), errors.Is(err, ErrPasswordTooLong), errors.Is(err, ErrInvalidProfile):
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error(), "code": "invalid_request"})
		default:
			ac.log.Error().Err(err).Msg("signup failed")
			c.JSON(http.StatusInternalServerError, gin.H{"error": "signup failed", "code": "internal", "retryable": true})
		}
		return
	}

	if err := ac.sessions.CreateSession(c.Request.Context(), profile); err != nil {
		ac.log.Error().Err(err).Uint("user_id", profile.ID).Msg("failed to create session")
	}
	ac.logAuth(profile.ID, "signup", c, true)

	c.JSON(http.StatusCreated, gin.H{
		"user":     profile,
		"redirect": profile.Role.Home(),
	})
}

// Logout destroys the session.
func (ac *Controller) Logout(c *gin.Context) {
	userID := GetUserID(c)
	if err := ac.sessions.DestroySession(c.Request.Context()); err != nil {
		ac.log.Warn().Err(err).Msg("failed to destroy session")
	}
	if userID != 0 {
		ac.logAuth(userID, "logout", c, true)
	}
	c.JSON(http.StatusOK, gin.H{"redirect": ac.policy.LoginPath})
}

// Profile returns the signed-in user's profile.
func (ac *Controller) Profile(c *gin.Context) {
	profile, err := ac.service.GetProfile(c.Request.Context(), GetUserID(c))
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "profile not found", "code": "not_found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load profile", "code": "internal", "retryable": true})
		return
	}
	c.JSON(http.StatusOK, profile)
}

type changePasswordRequest struct {
	CurrentPassword string `json:"current_password" binding:"required"`
	NewPassword     string `json:"new_password" binding:"required"`
}

// ChangePassword replaces the signed-in user's password.
func (ac *Controller) ChangePassword(c *gin.Context) {
	var req changePasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "current and new password are required", "code": "invalid_request"})
		return
	}

	userID := GetUserID(c)
	err := ac.service.ChangePassword(c.Request.Context(), userID, req.CurrentPassword, req.NewPassword)
	switch {
	case err == nil:
		ac.logAuth(userID, "password_change", c, true)
		c.JSON(http.StatusOK, gin.H{"message": "password updated"})
	case errors.Is(err, ErrInvalidPassword):
		ac.logAuth(userID, "password_change", c, false)
		c.JSON(http.StatusUnauthorized, gin.H{"error": "current password is incorrect", "code": "invalid_credentials"})
	case errors.Is(err, ErrPasswordTooShort), errors.Is(err, ErrPasswordTooLong):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error(), "code": "invalid_request"})
	default:
		ac.log.Error().Err(err).Uint("user_id", userID).Msg("password change failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to update password", "code": "internal", "retryable": true})
	}
}

// GenerateToken issues a new API token for the signed-in user.
func (ac *Controller) GenerateToken(c *gin.Context) {
	userID := GetUserID(c)
	token, err := ac.service.GenerateToken(c.Request.Context(), userID)
	if err != nil {
		ac.log.Error().Err(err).Uint("user_id", userID).Msg("token generation failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to generate token", "code": "internal", "retryable": true})
		return
	}
	ac.logAuth(userID, "token_generate", c, true)
	c.JSON(http.StatusOK, gin.H{
		"token":   token,
		"message": "Store this token securely - it will not be shown again",
	})
}

// RevokeToken removes the signed-in user's API token.
func (ac *Controller) RevokeToken(c *gin.Context) {
	userID := GetUserID(c)
	if err := ac.service.RevokeToken(c.Request.Context(), userID); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to revoke token", "code": "internal", "retryable": true})
		return
	}
	ac.logAuth(userID, "token_revoke", c, true)
	c.JSON(http.StatusOK, gin.H{"message": "token revoked"})
}

// landingFor honours a local next path only when the gate would let the
// user straight through, so login never starts a redirect chain.
func (ac *Controller) landingFor(profile *entities.Profile, next string) string {
	home := profile.Role.Home()
	if !isLocalPath(next) {
		return home
	}
	id := Identity{UserID: profile.ID, Role: profile.Role}
	if ac.policy.Decide(pathOnly(next), id).Action != ActionPass {
		return home
	}
	return next
}

func (ac *Controller) logAuth(userID uint, action string, c *gin.Context, success bool) {
	if ac.audit == nil {
		return
	}
	ac.audit.LogAuth(userID, action, c.ClientIP(), c.Request.UserAgent(), success)
}

// isLocalPath rejects absolute and protocol-relative URLs.
func isLocalPath(p string) bool {
	if p == "" || !strings.HasPrefix(p, "/") || strings.HasPrefix(p, "//") {
		return false
	}
	return !strings.Contains(p, "://") && !strings.Contains(p, `\`)
}

func pathOnly(p string) string {
	if i := strings.IndexAny(p, "?#"); i >= 0 {
		return p[:i]
	}
	return p
}
