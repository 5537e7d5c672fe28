package service

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/xian-network/go-uwp/pkg/protocol"
)

func TestSessionStoreCreate(t *testing.T) {
	t.Run("mints unique tokens", func(t *testing.T) {
		store := NewSessionStore(10, time.Hour)

		seen := make(map[string]bool)
		for i := 0; i < 5; i++ {
			session, err := store.Create("App", "https://a.app", []protocol.Permission{protocol.PermissionBalance})
			require.NoError(t, err)
			require.NotEmpty(t, session.Token)
			require.False(t, seen[session.Token])
			seen[session.Token] = true
		}
		require.Equal(t, 5, store.Count())
	})

	t.Run("enforces capacity without eviction", func(t *testing.T) {
		store := NewSessionStore(2, time.Hour)

		first, err := store.Create("A", "https://a.app", nil)
		require.NoError(t, err)
		_, err = store.Create("B", "https://b.app", nil)
		require.NoError(t, err)

		_, err = store.Create("C", "https://c.app", nil)
		require.ErrorIs(t, err, protocol.ErrMaxSessionsExceeded)

		// The earlier sessions are untouched.
		_, err = store.Validate(first.Token, "")
		require.NoError(t, err)
	})

	t.Run("sets absolute expiry", func(t *testing.T) {
		store := NewSessionStore(10, 30*time.Minute)
		base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
		store.SetClock(func() time.Time { return base })

		session, err := store.Create("App", "https://a.app", nil)
		require.NoError(t, err)
		require.Equal(t, base.Add(30*time.Minute), session.ExpiresAt)
	})
}

func TestSessionStoreValidate(t *testing.T) {
	t.Run("unknown token", func(t *testing.T) {
		store := NewSessionStore(10, time.Hour)

		_, err := store.Validate("bogus", "")
		require.ErrorIs(t, err, protocol.ErrUnauthorized)
	})

	t.Run("permission check", func(t *testing.T) {
		store := NewSessionStore(10, time.Hour)
		session, err := store.Create("App", "https://a.app",
			[]protocol.Permission{protocol.PermissionBalance, protocol.PermissionWalletInfo})
		require.NoError(t, err)

		_, err = store.Validate(session.Token, protocol.PermissionBalance)
		require.NoError(t, err)

		_, err = store.Validate(session.Token, protocol.PermissionSignMessage)
		require.ErrorIs(t, err, protocol.ErrForbidden)
	})

	t.Run("expiry evicts the session", func(t *testing.T) {
		store := NewSessionStore(10, time.Hour)
		base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
		current := base
		store.SetClock(func() time.Time { return current })

		session, err := store.Create("App", "https://a.app", nil)
		require.NoError(t, err)

		current = base.Add(time.Hour + time.Second)
		_, err = store.Validate(session.Token, "")
		require.ErrorIs(t, err, protocol.ErrSessionExpired)
		require.Equal(t, 0, store.Count())

		// The second read sees a missing token, not an expired one.
		_, err = store.Validate(session.Token, "")
		require.ErrorIs(t, err, protocol.ErrUnauthorized)
	})

	t.Run("activity does not extend the expiry ceiling", func(t *testing.T) {
		store := NewSessionStore(10, time.Hour)
		base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
		current := base
		store.SetClock(func() time.Time { return current })

		session, err := store.Create("App", "https://a.app", nil)
		require.NoError(t, err)

		current = base.Add(59 * time.Minute)
		validated, err := store.Validate(session.Token, "")
		require.NoError(t, err)
		require.Equal(t, current, validated.LastActivity)
		require.Equal(t, base.Add(time.Hour), validated.ExpiresAt)

		current = base.Add(61 * time.Minute)
		_, err = store.Validate(session.Token, "")
		require.ErrorIs(t, err, protocol.ErrSessionExpired)
	})
}

func TestSessionStoreRevoke(t *testing.T) {
	store := NewSessionStore(10, time.Hour)

	session, err := store.Create("App", "https://a.app", nil)
	require.NoError(t, err)

	store.Revoke(session.Token)
	_, err = store.Validate(session.Token, "")
	require.ErrorIs(t, err, protocol.ErrUnauthorized)

	// Revoking again is a no-op.
	store.Revoke(session.Token)
	require.Equal(t, 0, store.Count())
}

func TestSessionStoreSweepExpired(t *testing.T) {
	store := NewSessionStore(10, time.Hour)
	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	current := base
	store.SetClock(func() time.Time { return current })

	expiring, err := store.Create("Old", "https://old.app", nil)
	require.NoError(t, err)

	current = base.Add(30 * time.Minute)
	surviving, err := store.Create("New", "https://new.app", nil)
	require.NoError(t, err)

	current = base.Add(time.Hour + time.Minute)
	removed := store.SweepExpired(current)
	require.Equal(t, 1, removed)

	_, err = store.Validate(expiring.Token, "")
	require.ErrorIs(t, err, protocol.ErrUnauthorized)
	_, err = store.Validate(surviving.Token, "")
	require.NoError(t, err)
}

func TestSessionStoreRevokeAll(t *testing.T) {
	store := NewSessionStore(10, time.Hour)
	for i := 0; i < 3; i++ {
		_, err := store.Create("App", "https://a.app", nil)
		require.NoError(t, err)
	}

	store.RevokeAll()
	require.Equal(t, 0, store.Count())
}
