package service

import (
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestHousekeepingSweep(t *testing.T) {
	sessions := NewSessionStore(10, time.Millisecond)
	registry := NewRequestRegistry(sessions, nil, 10, time.Millisecond)
	limiter := NewUnlockLimiter(time.Millisecond, time.Millisecond)

	_, err := registry.Create("App", "https://a.app", nil, "", "")
	require.NoError(t, err)
	_, err = sessions.Create("App", "https://a.app", nil)
	require.NoError(t, err)
	limiter.RecordFailure("10.0.0.1")

	time.Sleep(5 * time.Millisecond)

	svc := NewHousekeepingService(registry, sessions, limiter, slog.New(slog.DiscardHandler), time.Minute)
	svc.Sweep()

	require.Equal(t, 0, registry.PendingCount())
	require.Equal(t, 0, sessions.Count())
	require.Equal(t, 0, limiter.RecordCount())
}

func TestHousekeepingStartStop(t *testing.T) {
	sessions := NewSessionStore(10, time.Hour)
	registry := NewRequestRegistry(sessions, nil, 10, time.Hour)
	limiter := NewUnlockLimiter(time.Hour, time.Hour)

	svc := NewHousekeepingService(registry, sessions, limiter, slog.New(slog.DiscardHandler), 10*time.Millisecond)
	svc.Start()
	time.Sleep(35 * time.Millisecond)

	done := make(chan struct{})
	go func() {
		svc.Stop()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("housekeeping did not stop")
	}
}
