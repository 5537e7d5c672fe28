package service

import (
	"sync"
	"time"

	"github.com/xian-network/go-uwp/internal/wallet/domain"
	"github.com/xian-network/go-uwp/pkg/cryptox"
	"github.com/xian-network/go-uwp/pkg/protocol"
)

// SessionStore holds active sessions keyed by their opaque token. Sessions
// have an absolute expiry (hard ceiling from issuance); each authenticated
// call refreshes last_activity without moving the ceiling.
type SessionStore struct {
	mu       sync.Mutex
	sessions map[string]*domain.Session

	maxSessions int
	sessionTTL  time.Duration
	now         func() time.Time
}

// NewSessionStore creates an empty store. Zero maxSessions or sessionTTL
// fall back to the protocol defaults.
func NewSessionStore(maxSessions int, sessionTTL time.Duration) *SessionStore {
	if maxSessions <= 0 {
		maxSessions = protocol.DefaultMaxSessions
	}
	if sessionTTL <= 0 {
		sessionTTL = protocol.DefaultSessionTTL
	}
	return &SessionStore{
		sessions:    make(map[string]*domain.Session),
		maxSessions: maxSessions,
		sessionTTL:  sessionTTL,
		now:         time.Now,
	}
}

// SetClock replaces the store clock, for tests.
func (s *SessionStore) SetClock(now func() time.Time) { s.now = now }

// Create mints a new session with an unguessable token. Fails with
// MAX_SESSIONS_EXCEEDED at capacity; existing sessions are never evicted
// to make room.
func (s *SessionStore) Create(appName, appURL string, permissions []protocol.Permission) (*domain.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.sessions) >= s.maxSessions {
		return nil, protocol.ErrMaxSessionsExceeded
	}

	var token string
	for {
		t, err := cryptox.GenerateToken(cryptox.TokenSize256)
		if err != nil {
			return nil, protocol.ErrServerError.WithDetail("token generation failed")
		}
		if _, taken := s.sessions[t]; !taken {
			token = t
			break
		}
		// 256-bit collision within live sessions is effectively
		// impossible, but uniqueness is an invariant, not a probability.
	}

	now := s.now()
	session := &domain.Session{
		Token:        token,
		AppName:      appName,
		AppURL:       appURL,
		Permissions:  append([]protocol.Permission(nil), permissions...),
		CreatedAt:    now,
		ExpiresAt:    now.Add(s.sessionTTL),
		LastActivity: now,
	}
	s.sessions[token] = session

	cp := *session
	return &cp, nil
}

// Validate resolves a bearer token and enforces the required permission.
// Expired sessions are evicted on the spot. On success last_activity is
// refreshed under the same lock, so a concurrent Revoke can never leave a
// validated-but-revoked result visible to the caller.
func (s *SessionStore) Validate(token string, required protocol.Permission) (*domain.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	session, ok := s.sessions[token]
	if !ok {
		return nil, protocol.ErrUnauthorized
	}

	if session.Expired(s.now()) {
		delete(s.sessions, token)
		return nil, protocol.ErrSessionExpired
	}

	if required != "" && !session.Has(required) {
		return nil, protocol.ErrForbidden
	}

	session.LastActivity = s.now()
	cp := *session
	return &cp, nil
}

// Revoke removes a session. Revoking an unknown token is a no-op.
func (s *SessionStore) Revoke(token string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, token)
}

// Count reports the number of live sessions, including ones past expiry
// that the sweep has not collected yet.
func (s *SessionStore) Count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}

// SweepExpired evicts sessions whose absolute expiry has passed and
// returns how many were removed.
func (s *SessionStore) SweepExpired(now time.Time) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	var removed int
	for token, session := range s.sessions {
		if session.Expired(now) {
			delete(s.sessions, token)
			removed++
		}
	}
	return removed
}

// RevokeAll removes every session; used during shutdown.
func (s *SessionStore) RevokeAll() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions = make(map[string]*domain.Session)
}
