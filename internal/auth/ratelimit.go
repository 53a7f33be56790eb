package auth

import (
	"strings"
	"sync"
	"time"
)

// LoginThrottle limits login attempts per client IP and email using a fixed
// window. It complements the per-account lockout kept in the profile row.
type LoginThrottle struct {
	mu              sync.Mutex
	attempts        map[string]*attemptRecord
	maxAttempts     int
	windowDuration  time.Duration
	lockoutDuration time.Duration
	now             func() time.Time
	stop            chan struct{}
	stopOnce        sync.Once
}

type attemptRecord struct {
	count        int
	firstAttempt time.Time
	lockedUntil  time.Time
}

// ThrottleConfig contains configuration for the login throttle.
type ThrottleConfig struct {
	MaxAttempts     int           // default: 5
	WindowDuration  time.Duration // default: 15m
	LockoutDuration time.Duration // default: 30m
	CleanupInterval time.Duration // default: 5m; negative disables the sweeper
}

// NewLoginThrottle creates a throttle and starts its cleanup loop.
func NewLoginThrottle(cfg ThrottleConfig) *LoginThrottle {
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 5
	}
	if cfg.WindowDuration <= 0 {
		cfg.WindowDuration = 15 * time.Minute
	}
	if cfg.LockoutDuration <= 0 {
		cfg.LockoutDuration = 30 * time.Minute
	}
	if cfg.CleanupInterval == 0 {
		cfg.CleanupInterval = 5 * time.Minute
	}

	lt := &LoginThrottle{
		attempts:        make(map[string]*attemptRecord),
		maxAttempts:     cfg.MaxAttempts,
		windowDuration:  cfg.WindowDuration,
		lockoutDuration: cfg.LockoutDuration,
		now:             time.Now,
		stop:            make(chan struct{}),
	}
	if cfg.CleanupInterval > 0 {
		go lt.cleanupLoop(cfg.CleanupInterval)
	}
	return lt
}

// Stop ends the cleanup loop. Safe to call more than once.
func (lt *LoginThrottle) Stop() {
	lt.stopOnce.Do(func() { close(lt.stop) })
}

func throttleKey(ip, email string) string {
	return ip + "|" + strings.ToLower(strings.TrimSpace(email))
}

// Allow reports whether another attempt is permitted and, if not, how long
// the caller should wait.
func (lt *LoginThrottle) Allow(ip, email string) (bool, time.Duration) {
	now := lt.now()

	lt.mu.Lock()
	defer lt.mu.Unlock()

	record, ok := lt.attempts[throttleKey(ip, email)]
	if !ok {
		return true, 0
	}
	if now.Before(record.lockedUntil) {
		return false, record.lockedUntil.Sub(now)
	}
	if now.Sub(record.firstAttempt) > lt.windowDuration {
		return true, 0
	}
	return record.count < lt.maxAttempts, 0
}

// RecordFailure counts a failed attempt and reports whether it triggered a lockout.
func (lt *LoginThrottle) RecordFailure(ip, email string) bool {
	now := lt.now()
	key := throttleKey(ip, email)

	lt.mu.Lock()
	defer lt.mu.Unlock()

	record, ok := lt.attempts[key]
	if !ok || now.Sub(record.firstAttempt) > lt.windowDuration {
		record = &attemptRecord{firstAttempt: now}
		lt.attempts[key] = record
	}
	record.count++
	if record.count >= lt.maxAttempts {
		record.lockedUntil = now.Add(lt.lockoutDuration)
		return true
	}
	return false
}

// RecordSuccess forgets earlier failures.
func (lt *LoginThrottle) RecordSuccess(ip, email string) {
	lt.mu.Lock()
	delete(lt.attempts, throttleKey(ip, email))
	lt.mu.Unlock()
}

func (lt *LoginThrottle) cleanupLoop(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			lt.cleanup()
		case <-lt.stop:
			return
		}
	}
}

func (lt *LoginThrottle) cleanup() {
	now := lt.now()

	lt.mu.Lock()
	defer lt.mu.Unlock()
	for key, record := range lt.attempts {
		if now.Sub(record.firstAttempt) > lt.windowDuration && !now.Before(record.lockedUntil) {
			delete(lt.attempts, key)
		}
	}
}
