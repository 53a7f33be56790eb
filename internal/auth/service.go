package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/mrlokans/storefront/internal/config"
	"github.com/mrlokans/storefront/internal/database"
	"github.com/mrlokans/storefront/internal/entities"
)

var (
	ErrUserNotFound   = errors.New("user not found")
	ErrEmailTaken     = errors.New("email already registered")
	ErrInvalidLogin   = errors.New("invalid email or password")
	ErrInvalidToken   = errors.New("invalid token")
	ErrTokenExpired   = errors.New("token expired")
	ErrAccountLocked  = errors.New("account is locked due to too many failed login attempts")
	ErrInvalidProfile = errors.New("invalid profile")
)

const (
	defaultMaxLoginAttempts = 5
	defaultLockoutDuration  = 30 * time.Minute
)

// ProfileStore is the slice of the profile repository the service needs.
type ProfileStore interface {
	Create(ctx context.Context, p *entities.Profile) error
	GetByID(ctx context.Context, id uint) (*entities.Profile, error)
	GetByEmail(ctx context.Context, email string) (*entities.Profile, error)
	GetByTokenHash(ctx context.Context, hash string) (*entities.Profile, error)
	Count(ctx context.Context) (int64, error)
	UpdatePassword(ctx context.Context, id uint, hash string) error
	RecordFailedLogin(ctx context.Context, id uint, count int, lockedUntil *time.Time) error
	RecordLogin(ctx context.Context, id uint, at time.Time) error
	SetTokenHash(ctx context.Context, id uint, hash string) error
}

// SignupInput carries a self-service registration.
type SignupInput struct {
	Email       string `json:"email"`
	Password    string `json:"password"`
	DisplayName string `json:"display_name"`
	Phone       string `json:"phone"`
}

// Service handles accounts, passwords and API tokens.
type Service struct {
	profiles ProfileStore
	config   config.Auth
	log      zerolog.Logger
	now      func() time.Time
}

// NewService creates a new authentication service.
func NewService(profiles ProfileStore, cfg config.Auth, log zerolog.Logger) *Service {
	return &Service{
		profiles: profiles,
		config:   cfg,
		log:      log.With().Str("component", "auth").Logger(),
		now:      time.Now,
	}
}

// Signup registers a reader account. Elevated roles are granted by an admin.
func (s *Service) Signup(ctx context.Context, in SignupInput) (*entities.Profile, error) {
	return s.CreateProfile(ctx, in, entities.RoleReader)
}

// CreateProfile registers an account with an explicit role.
func (s *Service) CreateProfile(ctx context.Context, in SignupInput, role entities.Role) (*entities.Profile, error) {
	name := strings.TrimSpace(in.DisplayName)
	if name == "" {
		name = strings.SplitN(strings.TrimSpace(in.Email), "@", 2)[0]
	}

	profile, err := entities.NewProfile(strings.ToLower(strings.TrimSpace(in.Email)), name, strings.TrimSpace(in.Phone), role)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidProfile, err)
	}

	hash, err := HashPassword(in.Password, s.config.BcryptCost)
	if err != nil {
		return nil, err
	}
	profile.PasswordHash = hash

	if err := s.profiles.Create(ctx, profile); err != nil {
		if database.IsUniqueViolation(err) {
			return nil, ErrEmailTaken
		}
		return nil, fmt.Errorf("failed to create profile: %w", err)
	}
	return profile, nil
}

// Authenticate validates credentials. Too many consecutive failures lock the
// account for the configured lockout duration.
func (s *Service) Authenticate(ctx context.Context, email, password string) (*entities.Profile, error) {
	profile, err := s.profiles.GetByEmail(ctx, email)
	if err != nil {
		if database.IsNotFound(err) {
			return nil, ErrInvalidLogin
		}
		return nil, fmt.Errorf("failed to find profile: %w", err)
	}

	now := s.now()
	if profile.LockedUntil != nil && now.Before(*profile.LockedUntil) {
		return nil, ErrAccountLocked
	}

	if err := CheckPassword(password, profile.PasswordHash); err != nil {
		s.recordFailedLogin(ctx, profile, now)
		if errors.Is(err, ErrInvalidPassword) {
			return nil, ErrInvalidLogin
		}
		return nil, err
	}

	if err := s.profiles.RecordLogin(ctx, profile.ID, now); err != nil {
		s.log.Warn().Err(err).Uint("user_id", profile.ID).Msg("failed to record login")
	}
	profile.FailedLoginCount = 0
	profile.LockedUntil = nil
	profile.LastLoginAt = &now
	return profile, nil
}

func (s *Service) recordFailedLogin(ctx context.Context, profile *entities.Profile, now time.Time) {
	maxAttempts := s.config.MaxLoginAttempts
	if maxAttempts <= 0 {
		maxAttempts = defaultMaxLoginAttempts
	}
	lockout := s.config.LockoutDuration
	if lockout <= 0 {
		lockout = defaultLockoutDuration
	}

	count := profile.FailedLoginCount + 1
	var lockedUntil *time.Time
	if count >= maxAttempts {
		until := now.Add(lockout)
		lockedUntil = &until
		count = 0
		s.log.Warn().Uint("user_id", profile.ID).Time("locked_until", until).Msg("account locked")
	}
	if err := s.profiles.RecordFailedLogin(ctx, profile.ID, count, lockedUntil); err != nil {
		s.log.Warn().Err(err).Uint("user_id", profile.ID).Msg("failed to record failed login")
	}
}

// GetProfile returns a profile by ID.
func (s *Service) GetProfile(ctx context.Context, id uint) (*entities.Profile, error) {
	profile, err := s.profiles.GetByID(ctx, id)
	if err != nil {
		if database.IsNotFound(err) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	return profile, nil
}

// ValidateToken resolves a plaintext API token to its profile.
func (s *Service) ValidateToken(ctx context.Context, token string) (*entities.Profile, error) {
	if token == "" {
		return nil, ErrInvalidToken
	}
	profile, err := s.profiles.GetByTokenHash(ctx, HashToken(token))
	if err != nil {
		if database.IsNotFound(err) {
			return nil, ErrInvalidToken
		}
		return nil, err
	}
	if s.config.TokenExpiry > 0 && profile.TokenCreatedAt != nil &&
		s.now().Sub(*profile.TokenCreatedAt) > s.config.TokenExpiry {
		return nil, ErrTokenExpired
	}
	return profile, nil
}

// GenerateToken replaces the user's API token and returns the plaintext once.
func (s *Service) GenerateToken(ctx context.Context, userID uint) (string, error) {
	if _, err := s.GetProfile(ctx, userID); err != nil {
		return "", err
	}
	plaintext, hash, err := GenerateAPIToken()
	if err != nil {
		return "", fmt.Errorf("failed to generate token: %w", err)
	}
	if err := s.profiles.SetTokenHash(ctx, userID, hash); err != nil {
		return "", fmt.Errorf("failed to save token: %w", err)
	}
	return plaintext, nil
}

// RevokeToken removes the user's API token.
func (s *Service) RevokeToken(ctx context.Context, userID uint) error {
	if err := s.profiles.SetTokenHash(ctx, userID, ""); err != nil {
		return fmt.Errorf("failed to revoke token: %w", err)
	}
	return nil
}

// ChangePassword verifies the current password and stores a new one.
func (s *Service) ChangePassword(ctx context.Context, userID uint, oldPassword, newPassword string) error {
	profile, err := s.GetProfile(ctx, userID)
	if err != nil {
		return err
	}
	if err := CheckPassword(oldPassword, profile.PasswordHash); err != nil {
		return err
	}
	hash, err := HashPassword(newPassword, s.config.BcryptCost)
	if err != nil {
		return err
	}
	return s.profiles.UpdatePassword(ctx, userID, hash)
}

// HasUsers reports whether any profile exists.
func (s *Service) HasUsers(ctx context.Context) (bool, error) {
	n, err := s.profiles.Count(ctx)
	return n > 0, err
}
