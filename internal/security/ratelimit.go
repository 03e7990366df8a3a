package security

import (
	"fmt"
	"net/http"
	"sync"
	"time"
)

// Action identifies a rate-limited operation
type Action string

const (
	ActionInviteCode        Action = "invite_code"
	ActionQuestVerification Action = "quest_verification"
	ActionBonusGrant        Action = "bonus_grant"
)

// Policy defines the limit for one action: at most MaxAttempts within
// Window, and once the limit is hit the caller must wait Cooldown after
// their most recent attempt. Serving the cooldown clears the recorded
// attempts, so the caller starts over with a fresh window.
type Policy struct {
	MaxAttempts int
	Window      time.Duration
	Cooldown    time.Duration
}

var policies = map[Action]Policy{
	ActionInviteCode:        {MaxAttempts: 3, Window: 60 * time.Second, Cooldown: 60 * time.Second},
	ActionQuestVerification: {MaxAttempts: 5, Window: 60 * time.Second, Cooldown: 30 * time.Second},
	ActionBonusGrant:        {MaxAttempts: 5, Window: 60 * time.Second, Cooldown: 30 * time.Second},
}

// PolicyFor returns the policy for an action
func PolicyFor(action Action) (Policy, bool) {
	p, ok := policies[action]
	return p, ok
}

// AttemptStore persists rate limit attempts so limits survive restarts
// and hold across replicas
type AttemptStore interface {
	// AttemptsSince returns the number of attempts for (userID, action)
	// at or after since, and the time of the most recent attempt.
	AttemptsSince(userID int64, action string, since time.Time) (int, *time.Time, error)
	// RecordAttempt stores one attempt at the given time
	RecordAttempt(userID int64, action string, at time.Time) error
	// ResetAttempts removes every attempt for (userID, action)
	ResetAttempts(userID int64, action string) error
	// DeleteBefore removes attempts older than cutoff
	DeleteBefore(cutoff time.Time) (int64, error)
}

// Result describes the outcome of a rate limit check
type Result struct {
	Allowed    bool
	Remaining  int
	RetryAfter time.Duration
}

// Limiter enforces per-user, per-action rate limits backed by a durable store
type Limiter struct {
	store AttemptStore
	now   func() time.Time
}

// NewLimiter creates a limiter over the given attempt store
func NewLimiter(store AttemptStore) *Limiter {
	return &Limiter{store: store, now: time.Now}
}

// Check records an attempt for (userID, action) if the policy allows it.
// While the limit is hit and the cooldown still runs, nothing is
// recorded and RetryAfter tells the caller how long to wait. Once the
// cooldown has passed since the most recent attempt the slate is wiped
// and the attempt goes through against a fresh window.
func (l *Limiter) Check(userID int64, action Action) (Result, error) {
	policy, ok := policies[action]
	if !ok {
		return Result{}, fmt.Errorf("unknown rate limit action: %s", action)
	}

	now := l.now()
	count, latest, err := l.store.AttemptsSince(userID, string(action), now.Add(-policy.Window))
	if err != nil {
		return Result{}, fmt.Errorf("failed to count attempts: %w", err)
	}

	if count >= policy.MaxAttempts {
		if latest != nil && now.Before(latest.Add(policy.Cooldown)) {
			retryAfter := latest.Add(policy.Cooldown).Sub(now)
			if retryAfter < time.Second {
				retryAfter = time.Second
			}
			return Result{Allowed: false, Remaining: 0, RetryAfter: retryAfter}, nil
		}

		// Cooldown served: the old attempts no longer count
		if err := l.store.ResetAttempts(userID, string(action)); err != nil {
			return Result{}, fmt.Errorf("failed to reset attempts: %w", err)
		}
		count = 0
	}

	if err := l.store.RecordAttempt(userID, string(action), now); err != nil {
		return Result{}, fmt.Errorf("failed to record attempt: %w", err)
	}

	return Result{Allowed: true, Remaining: policy.MaxAttempts - count - 1}, nil
}

// Cleanup removes attempts older than the longest policy window plus
// cooldown. Returns the number of rows removed.
func (l *Limiter) Cleanup() (int64, error) {
	var maxAge time.Duration
	for _, p := range policies {
		if age := p.Window + p.Cooldown; age > maxAge {
			maxAge = age
		}
	}
	return l.store.DeleteBefore(l.now().Add(-maxAge))
}

// IPLimiter is a small in-memory sliding-window limiter keyed by client
// IP, used on unauthenticated endpoints like login and registration
// where no user ID exists yet. State is per-process.
type IPLimiter struct {
	mu       sync.Mutex
	attempts map[string][]time.Time
	max      int
	window   time.Duration
	now      func() time.Time
}

// NewIPLimiter creates an IP limiter allowing max requests per window
func NewIPLimiter(max int, window time.Duration) *IPLimiter {
	return &IPLimiter{
		attempts: make(map[string][]time.Time),
		max:      max,
		window:   window,
		now:      time.Now,
	}
}

// Allow reports whether a request from ip is within the limit
func (l *IPLimiter) Allow(ip string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	cutoff := now.Add(-l.window)

	kept := l.attempts[ip][:0]
	for _, t := range l.attempts[ip] {
		if t.After(cutoff) {
			kept = append(kept, t)
		}
	}

	if len(kept) >= l.max {
		l.attempts[ip] = kept
		return false
	}

	l.attempts[ip] = append(kept, now)
	return true
}

// Sweep drops IPs with no attempts inside the window. Call periodically
// to bound memory.
func (l *IPLimiter) Sweep() {
	l.mu.Lock()
	defer l.mu.Unlock()

	cutoff := l.now().Add(-l.window)
	for ip, times := range l.attempts {
		if len(times) == 0 || !times[len(times)-1].After(cutoff) {
			delete(l.attempts, ip)
		}
	}
}

// GetClientIP extracts the client IP from the request
func GetClientIP(r *http.Request) string {
	if forwarded := r.Header.Get("X-Forwarded-For"); forwarded != "" {
		return forwarded
	}
	if realIP := r.Header.Get("X-Real-IP"); realIP != "" {
		return realIP
	}
	return r.RemoteAddr
}
