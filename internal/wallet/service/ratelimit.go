package service

import (
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/xian-network/go-uwp/pkg/protocol"
)

// Backoff parameters for the unlock endpoint. Attempt 1 is free; the delay
// required before attempt n (n >= 2) is min(2^(n-2), 60) seconds since the
// previous recorded attempt. After maxAttempts recorded failures the
// source is locked out entirely for the cool-down window.
const (
	backoffCapSeconds = 60
	maxAttempts       = protocol.DefaultLockoutAfter
)

type attemptRecord struct {
	attempts    int
	lastAttempt time.Time
	lockedUntil time.Time
}

// UnlockLimiter applies per-source exponential backoff and lockout to the
// wallet unlock operation. A rejected attempt consumes nothing: it neither
// counts as a failure nor reaches the credential check.
type UnlockLimiter struct {
	mu      sync.Mutex
	records map[string]*attemptRecord

	lockout    time.Duration
	staleAfter time.Duration
	now        func() time.Time
}

// NewUnlockLimiter creates a limiter. Zero lockout or staleAfter fall back
// to 5 and 30 minutes respectively.
func NewUnlockLimiter(lockout, staleAfter time.Duration) *UnlockLimiter {
	if lockout <= 0 {
		lockout = protocol.DefaultLockout
	}
	if staleAfter <= 0 {
		staleAfter = 30 * time.Minute
	}
	return &UnlockLimiter{
		records:    make(map[string]*attemptRecord),
		lockout:    lockout,
		staleAfter: staleAfter,
		now:        time.Now,
	}
}

// SetClock replaces the limiter clock, for tests.
func (l *UnlockLimiter) SetClock(now func() time.Time) { l.now = now }

// Check decides whether source may attempt an unlock right now. A nil
// return means the credential check may proceed; the caller must then
// report the outcome via RecordFailure or RecordSuccess.
func (l *UnlockLimiter) Check(source string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	rec, ok := l.records[source]
	if !ok {
		return nil
	}

	now := l.now()

	if !rec.lockedUntil.IsZero() {
		if now.Before(rec.lockedUntil) {
			// Attempts during lockout are rejected outright and do not
			// extend the lock. The reported wait is capped at the
			// backoff ceiling.
			remaining := int(math.Ceil(rec.lockedUntil.Sub(now).Seconds()))
			return protocol.ErrAccountLocked.WithRetryAfter(
				min(remaining, backoffCapSeconds),
				fmt.Sprintf("account locked, try again in %d seconds", remaining),
			)
		}
		// Lock has expired: the source starts over.
		delete(l.records, source)
		return nil
	}

	if rec.attempts >= maxAttempts {
		rec.lockedUntil = now.Add(l.lockout)
		remaining := int(math.Ceil(l.lockout.Seconds()))
		return protocol.ErrAccountLocked.WithRetryAfter(
			min(remaining, backoffCapSeconds),
			fmt.Sprintf("account locked, try again in %d seconds", remaining),
		)
	}

	delay := backoffDelay(rec.attempts)
	elapsed := now.Sub(rec.lastAttempt)
	if elapsed < delay {
		remaining := int(math.Ceil((delay - elapsed).Seconds()))
		return protocol.ErrTooManyAttempts.WithRetryAfter(
			remaining,
			fmt.Sprintf("too many attempts, wait %d seconds", remaining),
		)
	}

	return nil
}

// RecordFailure counts a failed credential check for source.
func (l *UnlockLimiter) RecordFailure(source string) {
	l.mu.Lock()
	defer l.mu.Unlock()

	rec, ok := l.records[source]
	if !ok {
		rec = &attemptRecord{}
		l.records[source] = rec
	}
	rec.attempts++
	rec.lastAttempt = l.now()
}

// RecordSuccess clears the record for source entirely: attempts reset to
// zero and any pending lock is dropped.
func (l *UnlockLimiter) RecordSuccess(source string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.records, source)
}

// Sweep removes records whose last attempt is older than the stale
// threshold and whose lock, if any, has expired. Returns how many records
// were pruned.
func (l *UnlockLimiter) Sweep(now time.Time) int {
	l.mu.Lock()
	defer l.mu.Unlock()

	var removed int
	for source, rec := range l.records {
		lockExpired := !rec.lockedUntil.IsZero() && !now.Before(rec.lockedUntil)
		stale := now.Sub(rec.lastAttempt) >= l.staleAfter
		if lockExpired || stale {
			delete(l.records, source)
			removed++
		}
	}
	return removed
}

// RecordCount reports the number of tracked sources.
func (l *UnlockLimiter) RecordCount() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.records)
}

// backoffDelay is the wait required after the given number of recorded
// failures: 1s after the first, doubling up to the 60 second cap.
func backoffDelay(attempts int) time.Duration {
	if attempts <= 0 {
		return 0
	}
	exp := attempts - 1
	if exp > 6 {
		// 2^6 already exceeds the cap.
		return backoffCapSeconds * time.Second
	}
	delay := time.Duration(1<<uint(exp)) * time.Second
	if delay > backoffCapSeconds*time.Second {
		return backoffCapSeconds * time.Second
	}
	return delay
}
