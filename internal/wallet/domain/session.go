package domain

import (
	"time"

	"github.com/xian-network/go-uwp/pkg/protocol"
)

// Session is a live scoped session issued for an approved authorization
// request. The token is an opaque random bearer credential; its permission
// set is always a subset of the originating request's.
type Session struct {
	Token        string
	AppName      string
	AppURL       string
	Permissions  []protocol.Permission
	CreatedAt    time.Time
	ExpiresAt    time.Time
	LastActivity time.Time
}

// Expired reports whether the session's absolute expiry has passed.
func (s *Session) Expired(now time.Time) bool {
	return !now.Before(s.ExpiresAt)
}

// Has reports whether the session carries the permission.
func (s *Session) Has(p protocol.Permission) bool {
	return protocol.HasPermission(s.Permissions, p)
}
