package auth

import (
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"github.com/mrlokans/storefront/internal/config"
	"github.com/mrlokans/storefront/internal/database/dbtest"
	"github.com/mrlokans/storefront/internal/database/profiles"
	"github.com/mrlokans/storefront/internal/entities"
)

const testPassword = "correct horse battery"

func testAuthConfig() config.Auth {
	return config.Auth{
		SessionLifetime:  24 * time.Hour,
		TokenExpiry:      time.Hour,
		BcryptCost:       bcrypt.MinCost,
		MaxLoginAttempts: 3,
		LockoutDuration:  10 * time.Minute,
	}
}

type authFixture struct {
	db       *gorm.DB
	profiles *profiles.Repository
	service  *Service
}

func newAuthFixture(t *testing.T) *authFixture {
	t.Helper()
	db := dbtest.Open(t)
	repo := profiles.NewRepository(db)
	return &authFixture{
		db:       db,
		profiles: repo,
		service:  NewService(repo, testAuthConfig(), zerolog.Nop()),
	}
}

func (f *authFixture) createProfile(t *testing.T, email string, role entities.Role) *entities.Profile {
	t.Helper()
	p, err := f.service.CreateProfile(t.Context(), SignupInput{Email: email, Password: testPassword, DisplayName: "Test"}, role)
	require.NoError(t, err)
	return p
}
