package main

import (
	"net"
	"strings"
	"sync"
	"time"
)

// AuthRateLimiter tracks failed logins per client and blocks repeat offenders
type AuthRateLimiter struct {
	mu              sync.RWMutex
	attempts        map[string]*authAttemptRecord // key: IP + "|" + email
	maxAttempts     int
	blockDuration   time.Duration
	attemptsWindow  time.Duration
	cleanupInterval time.Duration
	now             func() time.Time
	stopCleanup     chan struct{}
	stopOnce        sync.Once
}

type authAttemptRecord struct {
	firstAttempt time.Time
	lastAttempt  time.Time
	failureCount int
	blockedUntil time.Time
}

// NewAuthRateLimiter creates a limiter and starts its cleanup loop
func NewAuthRateLimiter(maxAttempts int, blockDuration, attemptsWindow time.Duration) *AuthRateLimiter {
	if maxAttempts <= 0 {
		maxAttempts = 5
	}
	rl := &AuthRateLimiter{
		attempts:        make(map[string]*authAttemptRecord),
		maxAttempts:     maxAttempts,
		blockDuration:   blockDuration,
		attemptsWindow:  attemptsWindow,
		cleanupInterval: time.Minute,
		now:             time.Now,
		stopCleanup:     make(chan struct{}),
	}
	go rl.cleanupLoop()
	return rl
}

// RecordFailure records a failed login.
// Returns (isBlocked, attemptCount).
func (rl *AuthRateLimiter) RecordFailure(ip, email string) (bool, int) {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	key := makeAttemptKey(ip, email)
	now := rl.now()

	record, ok := rl.attempts[key]
	if !ok || (now.Sub(record.firstAttempt) > rl.attemptsWindow && !now.Before(record.blockedUntil)) {
		record = &authAttemptRecord{firstAttempt: now}
		rl.attempts[key] = record
	}

	record.lastAttempt = now
	record.failureCount++

	if now.Before(record.blockedUntil) {
		return true, record.failureCount
	}
	if record.failureCount >= rl.maxAttempts {
		record.blockedUntil = now.Add(rl.blockDuration)
		return true, record.failureCount
	}
	return false, record.failureCount
}

// IsBlocked reports whether the client is blocked and until when
func (rl *AuthRateLimiter) IsBlocked(ip, email string) (bool, time.Time) {
	rl.mu.RLock()
	defer rl.mu.RUnlock()

	record, ok := rl.attempts[makeAttemptKey(ip, email)]
	if !ok {
		return false, time.Time{}
	}
	if rl.now().Before(record.blockedUntil) {
		return true, record.blockedUntil
	}
	return false, time.Time{}
}

// RecordSuccess clears the failure record
func (rl *AuthRateLimiter) RecordSuccess(ip, email string) {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	delete(rl.attempts, makeAttemptKey(ip, email))
}

func makeAttemptKey(ip, email string) string {
	return ip + "|" + strings.ToLower(strings.TrimSpace(email))
}

func (rl *AuthRateLimiter) cleanupLoop() {
	ticker := time.NewTicker(rl.cleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			rl.cleanup()
		case <-rl.stopCleanup:
			return
		}
	}
}

func (rl *AuthRateLimiter) cleanup() {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	for key, record := range rl.attempts {
		if now.After(record.blockedUntil) && now.Sub(record.lastAttempt) > rl.attemptsWindow {
			delete(rl.attempts, key)
		}
	}
}

// Stop stops the cleanup goroutine
func (rl *AuthRateLimiter) Stop() {
	rl.stopOnce.Do(func() { close(rl.stopCleanup) })
}

// extractIPFromAddr extracts IP address from remote address (removes port)
func extractIPFromAddr(remoteAddr string) string {
	host, _, err := net.SplitHostPort(remoteAddr)
	if err != nil {
		return remoteAddr
	}
	return host
}
