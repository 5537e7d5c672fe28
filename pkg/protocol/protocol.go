// Package protocol defines the wire-level contract of the wallet protocol:
// the versioned endpoint paths, permissions, request/response payloads and
// the error taxonomy shared by the server and the client SDK.
package protocol

import "time"

// Version is the protocol version reported by /wallet/status.
const Version = "1.0.0"

// APIPrefix is prepended to every HTTP endpoint.
const APIPrefix = "/api/v1"

// Default listener settings for a local wallet daemon.
const (
	DefaultHost = "127.0.0.1"
	DefaultPort = 8545
)

// Protocol-level defaults. Servers may override these via configuration,
// clients should not rely on exact values.
const (
	DefaultSessionTTL   = 60 * time.Minute
	DefaultRequestTTL   = 5 * time.Minute
	DefaultMaxSessions  = 10
	DefaultMaxPending   = 10
	DefaultCacheTTL     = 30 * time.Second
	DefaultLockoutAfter = 5
	DefaultLockout      = 5 * time.Minute
)

// HTTP endpoint paths, relative to the server root.
const (
	EndpointWalletStatus = APIPrefix + "/wallet/status"
	EndpointWalletInfo   = APIPrefix + "/wallet/info"
	EndpointWalletUnlock = APIPrefix + "/wallet/unlock"
	EndpointWalletLock   = APIPrefix + "/wallet/lock"

	EndpointAuthRequest = APIPrefix + "/auth/request"
	EndpointAuthStatus  = APIPrefix + "/auth/status/"  // + {request_id}
	EndpointAuthApprove = APIPrefix + "/auth/approve/" // + {request_id}
	EndpointAuthDeny    = APIPrefix + "/auth/deny/"    // + {request_id}
	EndpointAuthPending = APIPrefix + "/auth/pending"
	EndpointAuthRevoke  = APIPrefix + "/auth/revoke"

	EndpointBalance     = APIPrefix + "/balance/" // + {contract}[/{spender}]
	EndpointTransaction = APIPrefix + "/transaction"
	EndpointSign        = APIPrefix + "/sign"
	EndpointTokensAdd   = APIPrefix + "/tokens/add"
	EndpointTokens      = APIPrefix + "/tokens"

	EndpointWebSocket = "/ws/v1"
)

// WalletType identifies the kind of wallet application serving the protocol.
type WalletType string

const (
	WalletTypeDesktop  WalletType = "desktop"
	WalletTypeWeb      WalletType = "web"
	WalletTypeCLI      WalletType = "cli"
	WalletTypeHardware WalletType = "hardware"
)

// RequestStatus is the lifecycle state of an authorization request.
type RequestStatus string

const (
	StatusPending  RequestStatus = "pending"
	StatusApproved RequestStatus = "approved"
	StatusDenied   RequestStatus = "denied"
	StatusExpired  RequestStatus = "expired"
)

// Terminal reports whether the status can no longer change.
func (s RequestStatus) Terminal() bool {
	return s == StatusApproved || s == StatusDenied || s == StatusExpired
}

// Event types broadcast over the push channel to the wallet UI.
const (
	EventAuthorizationRequest  = "authorization_request"
	EventAuthorizationResolved = "authorization_resolved"
	EventWalletLocked          = "wallet_locked"
	EventWalletUnlocked        = "wallet_unlocked"
	EventShutdown              = "shutdown"
)

// Event is the envelope broadcast to push subscribers.
type Event struct {
	Type    string `json:"type"`
	Request any    `json:"request,omitempty"`
	Detail  string `json:"detail,omitempty"`
}
