package protocol

import "time"

// AuthRequest is the payload of POST /auth/request.
type AuthRequest struct {
	AppName     string       `json:"app_name"`
	AppURL      string       `json:"app_url"`
	Permissions []Permission `json:"permissions"`
	Description string       `json:"description,omitempty"`
	IconURL     string       `json:"icon_url,omitempty"`
}

// AuthRequestResponse acknowledges a newly created authorization request.
type AuthRequestResponse struct {
	RequestID string        `json:"request_id"`
	Status    RequestStatus `json:"status"`
}

// AuthStatusResponse is returned by GET /auth/status/{request_id}. The
// session token is only present once the request has been approved.
type AuthStatusResponse struct {
	RequestID    string        `json:"request_id"`
	AppName      string        `json:"app_name"`
	AppURL       string        `json:"app_url"`
	Permissions  []Permission  `json:"permissions"`
	Description  string        `json:"description,omitempty"`
	Status       RequestStatus `json:"status"`
	CreatedAt    time.Time     `json:"created_at"`
	SessionToken string        `json:"session_token,omitempty"`
	ExpiresAt    *time.Time    `json:"expires_at,omitempty"`
}

// PendingRequestInfo is one entry of GET /auth/pending, rendered by the
// wallet UI as an approval queue in insertion order.
type PendingRequestInfo struct {
	RequestID   string       `json:"request_id"`
	AppName     string       `json:"app_name"`
	AppURL      string       `json:"app_url"`
	Permissions []Permission `json:"permissions"`
	Description string       `json:"description,omitempty"`
	IconURL     string       `json:"icon_url,omitempty"`
	CreatedAt   time.Time    `json:"created_at"`
}

// UnlockRequest is the payload of POST /wallet/unlock.
type UnlockRequest struct {
	Password string `json:"password"`
}

// StatusResponse is the unauthenticated availability probe response.
type StatusResponse struct {
	Available  bool       `json:"available"`
	Locked     bool       `json:"locked"`
	WalletType WalletType `json:"wallet_type"`
	Network    string     `json:"network"`
	ChainID    string     `json:"chain_id"`
	Version    string     `json:"version"`
}

// WalletInfoResponse is returned by GET /wallet/info.
type WalletInfoResponse struct {
	Address          string     `json:"address"`
	TruncatedAddress string     `json:"truncated_address"`
	Locked           bool       `json:"locked"`
	ChainID          string     `json:"chain_id"`
	Network          string     `json:"network"`
	WalletType       WalletType `json:"wallet_type"`
	Version          string     `json:"version"`
}

// BalanceResponse is returned by GET /balance/{contract}.
type BalanceResponse struct {
	Balance  string `json:"balance"`
	Contract string `json:"contract"`
	Spender  string `json:"spender,omitempty"`
	Cached   bool   `json:"cached"`
}

// TransactionRequest is the payload of POST /transaction.
type TransactionRequest struct {
	Contract       string         `json:"contract"`
	Function       string         `json:"function"`
	Kwargs         map[string]any `json:"kwargs"`
	StampsSupplied int64          `json:"stamps_supplied,omitempty"`
}

// TransactionResult is the outcome reported by the chain client.
type TransactionResult struct {
	Success         bool     `json:"success"`
	TransactionHash string   `json:"transaction_hash,omitempty"`
	Result          any      `json:"result,omitempty"`
	Errors          []string `json:"errors,omitempty"`
	StampsUsed      int64    `json:"stamps_used,omitempty"`
}

// SignRequest is the payload of POST /sign.
type SignRequest struct {
	Message string `json:"message"`
}

// SignatureResponse is returned by POST /sign.
type SignatureResponse struct {
	Signature string `json:"signature"`
	Message   string `json:"message"`
	Address   string `json:"address"`
}

// AddTokenRequest is the payload of POST /tokens/add.
type AddTokenRequest struct {
	ContractAddress string `json:"contract_address"`
	TokenName       string `json:"token_name,omitempty"`
	TokenSymbol     string `json:"token_symbol,omitempty"`
	Decimals        int    `json:"decimals,omitempty"`
}

// TokenInfo is one entry of GET /tokens.
type TokenInfo struct {
	ContractAddress string `json:"contract_address"`
	TokenName       string `json:"token_name,omitempty"`
	TokenSymbol     string `json:"token_symbol,omitempty"`
	Decimals        int    `json:"decimals,omitempty"`
}
