package service

import (
	"log/slog"
	"time"
)

// HousekeepingService runs the single periodic sweep that expires pending
// requests, evicts dead sessions and prunes unlock attempt records.
type HousekeepingService struct {
	Registry *RequestRegistry
	Sessions *SessionStore
	Limiter  *UnlockLimiter
	Logger   *slog.Logger
	Interval time.Duration

	// Internal channels for lifecycle management
	stopCh chan struct{}
	doneCh chan struct{}
}

// NewHousekeepingService creates the sweep service. If interval is 0 or
// negative, defaults to 30 seconds.
func NewHousekeepingService(registry *RequestRegistry, sessions *SessionStore, limiter *UnlockLimiter, logger *slog.Logger, interval time.Duration) *HousekeepingService {
	if interval <= 0 {
		interval = 30 * time.Second
	}

	return &HousekeepingService{
		Registry: registry,
		Sessions: sessions,
		Limiter:  limiter,
		Logger:   logger,
		Interval: interval,
		stopCh:   make(chan struct{}),
		doneCh:   make(chan struct{}),
	}
}

// Start begins the background worker. Non-blocking; call Stop to shut the
// worker down.
func (s *HousekeepingService) Start() {
	go s.run()
	s.Logger.Info("housekeeping started", "interval", s.Interval)
}

// Stop shuts down the background worker. It waits for an in-progress
// sweep, but never longer than the interval, so a wedged sweep cannot
// block process exit.
func (s *HousekeepingService) Stop() {
	close(s.stopCh)
	select {
	case <-s.doneCh:
		s.Logger.Info("housekeeping stopped")
	case <-time.After(s.Interval):
		s.Logger.Warn("housekeeping did not stop in time, abandoning")
	}
}

func (s *HousekeepingService) run() {
	defer close(s.doneCh)

	ticker := time.NewTicker(s.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.Sweep()
		case <-s.stopCh:
			return
		}
	}
}

// Sweep performs one cleanup pass. Exported so tests and shutdown paths
// can run it deterministically.
func (s *HousekeepingService) Sweep() {
	now := time.Now()

	expiredRequests := s.Registry.SweepExpired(now)
	expiredSessions := s.Sessions.SweepExpired(now)
	prunedRecords := s.Limiter.Sweep(now)

	if expiredRequests > 0 || expiredSessions > 0 || prunedRecords > 0 {
		s.Logger.Info("housekeeping sweep",
			"expired_requests", expiredRequests,
			"expired_sessions", expiredSessions,
			"pruned_unlock_records", prunedRecords,
		)
	}
}
