package config

import (
	"strings"
	"time"

	"github.com/spf13/viper"
)

// RoleLookupFailurePolicy decides how the gate routes a request whose
// profile role could not be fetched.
type RoleLookupFailurePolicy string

const (
	RoleLookupAsAnonymous  RoleLookupFailurePolicy = "anonymous"   // route as if logged out (default)
	RoleLookupUnavailable  RoleLookupFailurePolicy = "unavailable" // answer 503 with a retry hint
)

type (
	Config struct {
		HTTP
		Global
		Database
		Log
		Auth
		Payment
		Cart
		Redis
		Tasks
		Reconcile
		Audit
		Devotional
	}

	HTTP struct {
		Port int32
		Host string
	}
	Global struct {
		ShutdownTimeoutInSeconds int
	}
	Database struct {
		Path string
	}
	Log struct {
		Level  string // debug, info, warn, error
		Format string // json or console
	}
	Auth struct {
		SessionSecret   string
		SessionLifetime time.Duration
		TokenExpiry     time.Duration
		BcryptCost      int
		SecureCookies   bool // Set to false for local dev without HTTPS
		CSRFEnabled     bool

		// What the gate does when the role lookup errors.
		RoleLookupFailure RoleLookupFailurePolicy

		MaxLoginAttempts int           // Max failed attempts before lockout (default: 5)
		RateLimitWindow  time.Duration // Time window for counting attempts (default: 15m)
		LockoutDuration  time.Duration // How long to lock out (default: 30m)
	}
	Payment struct {
		SimulatedDelay time.Duration
		CallbackSecret string
		DeclinedPhones []string // simulator declines charges for these numbers
	}
	Cart struct {
		TTL time.Duration
	}
	Redis struct {
		URL string // empty keeps carts in process memory
	}
	Tasks struct {
		Enabled         bool
		Workers         int
		ReleaseAfter    time.Duration
		CleanupInterval time.Duration
	}
	Reconcile struct {
		Enabled  bool
		Schedule string // Cron format: "15 * * * *" = hourly at :15
	}
	Audit struct {
		RetentionDays int
		Schedule      string
	}
	Devotional struct {
		BaseURL  string // OpenAI-compatible endpoint, including /v1
		APIKey   string
		Model    string
		Schedule string // Cron format: "5 0 * * *" = daily at 00:05
	}
)

func NewConfig() *Config {
	v := viper.New()
	v.AutomaticEnv()
	v.SetDefault("port", 8080)
	v.SetDefault("host", "0.0.0.0")
	v.SetDefault("shutdown_timeout_in_seconds", 5)
	v.SetDefault("database_path", DefaultDatabasePath)

	v.SetDefault("log_level", "info")
	v.SetDefault("log_format", "json")

	// Auth defaults
	v.SetDefault("auth_session_secret", "")      // Auto-generated if empty
	v.SetDefault("auth_session_lifetime", "24h") // 24 hours
	v.SetDefault("auth_token_expiry", "720h")    // 30 days
	v.SetDefault("auth_bcrypt_cost", 12)
	v.SetDefault("auth_secure_cookies", true)
	v.SetDefault("auth_csrf_enabled", true)
	v.SetDefault("auth_role_lookup_failure", string(RoleLookupAsAnonymous))
	v.SetDefault("auth_max_login_attempts", 5)
	v.SetDefault("auth_rate_limit_window", "15m")
	v.SetDefault("auth_lockout_duration", "30m")

	// Payment simulator defaults
	v.SetDefault("payment_simulated_delay", "2s")
	v.SetDefault("payment_callback_secret", "")
	v.SetDefault("payment_declined_phones", "")

	v.SetDefault("cart_ttl", "720h")
	v.SetDefault("redis_url", "")

	// Task queue defaults
	v.SetDefault("tasks_enabled", true)
	v.SetDefault("task_workers", 2)
	v.SetDefault("task_release_after", "15m")
	v.SetDefault("task_cleanup_interval", "1h")

	v.SetDefault("reconcile_enabled", true)
	v.SetDefault("reconcile_schedule", "15 * * * *")
	v.SetDefault("audit_retention_days", 90)
	v.SetDefault("audit_cleanup_schedule", "30 3 * * *")

	v.SetDefault("devotional_base_url", "")
	v.SetDefault("devotional_api_key", "")
	v.SetDefault("devotional_model", "")
	v.SetDefault("devotional_schedule", "5 0 * * *")

	return &Config{
		HTTP: HTTP{
			Port: v.GetInt32("PORT"),
			Host: v.GetString("HOST"),
		},
		Global: Global{
			ShutdownTimeoutInSeconds: v.GetInt("SHUTDOWN_TIMEOUT_IN_SECONDS"),
		},
		Database: Database{
			Path: v.GetString("DATABASE_PATH"),
		},
		Log: Log{
			Level:  v.GetString("LOG_LEVEL"),
			Format: v.GetString("LOG_FORMAT"),
		},
		Auth: Auth{
			SessionSecret:     v.GetString("AUTH_SESSION_SECRET"),
			SessionLifetime:   v.GetDuration("AUTH_SESSION_LIFETIME"),
			TokenExpiry:       v.GetDuration("AUTH_TOKEN_EXPIRY"),
			BcryptCost:        v.GetInt("AUTH_BCRYPT_COST"),
			SecureCookies:     v.GetBool("AUTH_SECURE_COOKIES"),
			CSRFEnabled:       v.GetBool("AUTH_CSRF_ENABLED"),
			RoleLookupFailure: ParseRoleLookupFailurePolicy(v.GetString("AUTH_ROLE_LOOKUP_FAILURE")),
			MaxLoginAttempts:  v.GetInt("AUTH_MAX_LOGIN_ATTEMPTS"),
			RateLimitWindow:   v.GetDuration("AUTH_RATE_LIMIT_WINDOW"),
			LockoutDuration:   v.GetDuration("AUTH_LOCKOUT_DURATION"),
		},
		Payment: Payment{
			SimulatedDelay: v.GetDuration("PAYMENT_SIMULATED_DELAY"),
			CallbackSecret: v.GetString("PAYMENT_CALLBACK_SECRET"),
			DeclinedPhones: splitList(v.GetString("PAYMENT_DECLINED_PHONES")),
		},
		Cart: Cart{
			TTL: v.GetDuration("CART_TTL"),
		},
		Redis: Redis{
			URL: v.GetString("REDIS_URL"),
		},
		Tasks: Tasks{
			Enabled:         v.GetBool("TASKS_ENABLED"),
			Workers:         v.GetInt("TASK_WORKERS"),
			ReleaseAfter:    v.GetDuration("TASK_RELEASE_AFTER"),
			CleanupInterval: v.GetDuration("TASK_CLEANUP_INTERVAL"),
		},
		Reconcile: Reconcile{
			Enabled:  v.GetBool("RECONCILE_ENABLED"),
			Schedule: v.GetString("RECONCILE_SCHEDULE"),
		},
		Audit: Audit{
			RetentionDays: v.GetInt("AUDIT_RETENTION_DAYS"),
			Schedule:      v.GetString("AUDIT_CLEANUP_SCHEDULE"),
		},
		Devotional: Devotional{
			BaseURL:  v.GetString("DEVOTIONAL_BASE_URL"),
			APIKey:   v.GetString("DEVOTIONAL_API_KEY"),
			Model:    v.GetString("DEVOTIONAL_MODEL"),
			Schedule: v.GetString("DEVOTIONAL_SCHEDULE"),
		},
	}
}

// ParseRoleLookupFailurePolicy maps a config string onto a policy,
// falling back to RoleLookupAsAnonymous for unknown values.
func ParseRoleLookupFailurePolicy(s string) RoleLookupFailurePolicy {
	switch RoleLookupFailurePolicy(strings.ToLower(strings.TrimSpace(s))) {
	case RoleLookupUnavailable:
		return RoleLookupUnavailable
	default:
		return RoleLookupAsAnonymous
	}
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
