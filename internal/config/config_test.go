package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestNewConfig_Defaults(t *testing.T) {
	cfg := NewConfig()

	assert.Equal(t, int32(8080), cfg.HTTP.Port)
	assert.Equal(t, DefaultDatabasePath, cfg.Database.Path)
	assert.Equal(t, 2*time.Second, cfg.Payment.SimulatedDelay)
	assert.Equal(t, RoleLookupAsAnonymous, cfg.Auth.RoleLookupFailure)
	assert.True(t, cfg.Auth.CSRFEnabled)
	assert.Empty(t, cfg.Payment.DeclinedPhones)
}

func TestNewConfig_FromEnv(t *testing.T) {
	t.Setenv("PORT", "9090")
	t.Setenv("PAYMENT_SIMULATED_DELAY", "150ms")
	t.Setenv("PAYMENT_DECLINED_PHONES", "254700000000, 254711111111,")
	t.Setenv("AUTH_ROLE_LOOKUP_FAILURE", "Unavailable")

	cfg := NewConfig()

	assert.Equal(t, int32(9090), cfg.HTTP.Port)
	assert.Equal(t, 150*time.Millisecond, cfg.Payment.SimulatedDelay)
	assert.Equal(t, []string{"254700000000", "254711111111"}, cfg.Payment.DeclinedPhones)
	assert.Equal(t, RoleLookupUnavailable, cfg.Auth.RoleLookupFailure)
}

func TestParseRoleLookupFailurePolicy(t *testing.T) {
	assert.Equal(t, RoleLookupAsAnonymous, ParseRoleLookupFailurePolicy(""))
	assert.Equal(t, RoleLookupAsAnonymous, ParseRoleLookupFailurePolicy("bogus"))
	assert.Equal(t, RoleLookupUnavailable, ParseRoleLookupFailurePolicy(" unavailable "))
}
