package service

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/xian-network/go-uwp/pkg/protocol"
)

func newTestLimiter(start time.Time) (*UnlockLimiter, *time.Time) {
	limiter := NewUnlockLimiter(5*time.Minute, 30*time.Minute)
	current := start
	limiter.SetClock(func() time.Time { return current })
	return limiter, &current
}

func TestUnlockLimiterBackoff(t *testing.T) {
	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	t.Run("first attempt is free", func(t *testing.T) {
		limiter, _ := newTestLimiter(base)
		require.NoError(t, limiter.Check("127.0.0.1"))
	})

	t.Run("delay doubles per recorded failure", func(t *testing.T) {
		limiter, current := newTestLimiter(base)

		// failures -> required wait before the next attempt
		waits := []time.Duration{
			1 * time.Second,
			2 * time.Second,
			4 * time.Second,
			8 * time.Second,
		}

		for i, wait := range waits {
			require.NoError(t, limiter.Check("10.0.0.1"))
			limiter.RecordFailure("10.0.0.1")

			// Just inside the window: rejected, and the rejection does
			// not count as an attempt.
			*current = (*current).Add(wait - 100*time.Millisecond)
			err := limiter.Check("10.0.0.1")
			require.Error(t, err, "failure %d", i+1)
			var pe *protocol.Error
			require.True(t, errors.As(err, &pe))
			require.Equal(t, protocol.CodeTooManyAttempts, pe.Code)
			require.Equal(t, 1, pe.RetryAfter)

			// Just past the window: allowed.
			*current = (*current).Add(200 * time.Millisecond)
			require.NoError(t, limiter.Check("10.0.0.1"))
		}
	})

	t.Run("rejected attempts consume nothing", func(t *testing.T) {
		limiter, current := newTestLimiter(base)

		require.NoError(t, limiter.Check("10.0.0.2"))
		limiter.RecordFailure("10.0.0.2")

		// Hammer the endpoint inside the 1s window.
		for i := 0; i < 10; i++ {
			require.Error(t, limiter.Check("10.0.0.2"))
		}

		// The wait is still the single-failure delay.
		*current = (*current).Add(time.Second)
		require.NoError(t, limiter.Check("10.0.0.2"))
	})

	t.Run("success clears the record", func(t *testing.T) {
		limiter, current := newTestLimiter(base)

		for i := 0; i < 3; i++ {
			limiter.RecordFailure("10.0.0.3")
			*current = (*current).Add(time.Minute)
		}
		limiter.RecordSuccess("10.0.0.3")

		require.Equal(t, 0, limiter.RecordCount())
		require.NoError(t, limiter.Check("10.0.0.3"))
	})
}

func TestUnlockLimiterLockout(t *testing.T) {
	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	record5Failures := func(limiter *UnlockLimiter, current *time.Time, source string) {
		for i := 0; i < 5; i++ {
			require.NoError(t, limiter.Check(source))
			limiter.RecordFailure(source)
			*current = (*current).Add(time.Minute)
		}
	}

	t.Run("sixth attempt locks out", func(t *testing.T) {
		limiter, current := newTestLimiter(base)
		record5Failures(limiter, current, "192.168.0.1")

		err := limiter.Check("192.168.0.1")
		var pe *protocol.Error
		require.True(t, errors.As(err, &pe))
		require.Equal(t, protocol.CodeAccountLocked, pe.Code)
		// Actual lock is 5 minutes, reported wait is capped at the
		// backoff ceiling.
		require.Equal(t, 60, pe.RetryAfter)
	})

	t.Run("attempts during lockout do not extend it", func(t *testing.T) {
		limiter, current := newTestLimiter(base)
		record5Failures(limiter, current, "192.168.0.2")

		require.Error(t, limiter.Check("192.168.0.2")) // applies the lock

		lockStart := *current
		for i := 0; i < 4; i++ {
			*current = (*current).Add(time.Minute)
			err := limiter.Check("192.168.0.2")
			var pe *protocol.Error
			require.True(t, errors.As(err, &pe))
			require.Equal(t, protocol.CodeAccountLocked, pe.Code)
		}

		// One second past the original lock window: allowed again.
		*current = lockStart.Add(5*time.Minute + time.Second)
		require.NoError(t, limiter.Check("192.168.0.2"))
	})

	t.Run("expired lock resets the record", func(t *testing.T) {
		limiter, current := newTestLimiter(base)
		record5Failures(limiter, current, "192.168.0.3")

		require.Error(t, limiter.Check("192.168.0.3"))
		*current = (*current).Add(6 * time.Minute)

		require.NoError(t, limiter.Check("192.168.0.3"))
		require.Equal(t, 0, limiter.RecordCount())
	})

	t.Run("reported wait shrinks as the lock ages", func(t *testing.T) {
		limiter, current := newTestLimiter(base)
		record5Failures(limiter, current, "192.168.0.4")

		require.Error(t, limiter.Check("192.168.0.4"))

		*current = (*current).Add(4*time.Minute + 30*time.Second)
		err := limiter.Check("192.168.0.4")
		var pe *protocol.Error
		require.True(t, errors.As(err, &pe))
		require.Equal(t, 30, pe.RetryAfter)
	})
}

func TestUnlockLimiterSourcesAreIndependent(t *testing.T) {
	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	limiter, _ := newTestLimiter(base)

	limiter.RecordFailure("10.1.1.1")
	require.Error(t, limiter.Check("10.1.1.1"))
	require.NoError(t, limiter.Check("10.1.1.2"))
}

func TestUnlockLimiterSweep(t *testing.T) {
	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	limiter, current := newTestLimiter(base)

	// Stale record: failures long in the past.
	limiter.RecordFailure("stale")

	// Locked record whose lock expires quickly.
	*current = base.Add(time.Minute)
	for i := 0; i < 5; i++ {
		limiter.RecordFailure("locked")
	}
	require.Error(t, limiter.Check("locked"))

	// Fresh record.
	*current = base.Add(31 * time.Minute)
	limiter.RecordFailure("fresh")

	removed := limiter.Sweep(*current)
	require.Equal(t, 2, removed, "stale and lock-expired records pruned")
	require.Equal(t, 1, limiter.RecordCount())
	require.Error(t, limiter.Check("fresh"))
}
