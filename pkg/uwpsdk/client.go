package uwpsdk

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/xian-network/go-uwp/pkg/cachex"
	"github.com/xian-network/go-uwp/pkg/protocol"
)

// DefaultBaseURL targets a wallet daemon on the standard local port.
const DefaultBaseURL = "http://127.0.0.1:8545"

const (
	// DefaultAuthTimeout bounds how long Connect waits for the wallet's
	// owner to decide.
	DefaultAuthTimeout = 2 * time.Minute

	// pollInterval is the /auth/status polling cadence.
	pollInterval = 500 * time.Millisecond

	// probeInterval is the availability probe cadence while waiting for
	// a wallet to come up.
	probeInterval = time.Second

	cacheTTL = 30 * time.Second
)

// Client is a synchronous protocol client for one DApp identity.
type Client struct {
	BaseURL     string
	HTTPClient  *http.Client
	AppName     string
	AppURL      string
	Description string
	IconURL     string

	// AuthTimeout overrides DefaultAuthTimeout when non-zero.
	AuthTimeout time.Duration

	mu    sync.Mutex
	token string
	cache *cachex.Cache
	ws    *websocket.Conn
}

// NewClient creates a client for the wallet daemon on the default local
// address.
func NewClient(appName, appURL string) *Client {
	return &Client{
		BaseURL: DefaultBaseURL,
		HTTPClient: &http.Client{
			Timeout: 10 * time.Second,
		},
		AppName: appName,
		AppURL:  appURL,
		cache:   cachex.New(),
	}
}

// Token returns the current session token, empty when disconnected.
func (c *Client) Token() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.token
}

// SetToken resumes a previously issued session.
func (c *Client) SetToken(token string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.token = token
}

// WalletAvailable reports whether a wallet daemon answers the status
// probe.
func (c *Client) WalletAvailable(ctx context.Context) bool {
	status, err := c.Status(ctx)
	return err == nil && status.Available
}

// Status fetches the wallet's unauthenticated status.
func (c *Client) Status(ctx context.Context) (*protocol.StatusResponse, error) {
	var status protocol.StatusResponse
	if err := c.get(ctx, protocol.EndpointWalletStatus, &status); err != nil {
		return nil, err
	}
	return &status, nil
}

// WaitForWallet polls the availability probe until a wallet answers or
// the timeout elapses. This is the only call the SDK retries on its own.
func (c *Client) WaitForWallet(ctx context.Context, timeout time.Duration) error {
	deadline := time.Now().Add(timeout)
	for {
		if c.WalletAvailable(ctx) {
			return nil
		}
		if time.Now().After(deadline) {
			return fmt.Errorf("no wallet became available within %s", timeout)
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(probeInterval):
		}
	}
}

// RequestAuthorization files an authorization request and returns its id.
func (c *Client) RequestAuthorization(ctx context.Context, permissions []protocol.Permission) (string, error) {
	var resp protocol.AuthRequestResponse
	err := c.post(ctx, protocol.EndpointAuthRequest, protocol.AuthRequest{
		AppName:     c.AppName,
		AppURL:      c.AppURL,
		Permissions: permissions,
		Description: c.Description,
		IconURL:     c.IconURL,
	}, &resp)
	if err != nil {
		return "", err
	}
	return resp.RequestID, nil
}

// WaitForAuthorization polls the request until it reaches a terminal
// state or the timeout elapses. The returned status is StatusPending on
// timeout; an approved outcome stores the session token on the client.
// Transient polling failures are treated as still-pending.
func (c *Client) WaitForAuthorization(ctx context.Context, requestID string, timeout time.Duration) protocol.RequestStatus {
	deadline := time.Now().Add(timeout)
	for {
		var status protocol.AuthStatusResponse
		err := c.get(ctx, protocol.EndpointAuthStatus+requestID, &status)
		if err == nil && status.Status.Terminal() {
			if status.Status == protocol.StatusApproved {
				c.SetToken(status.SessionToken)
			}
			return status.Status
		}

		if time.Now().After(deadline) || ctx.Err() != nil {
			return protocol.StatusPending
		}
		select {
		case <-ctx.Done():
			return protocol.StatusPending
		case <-time.After(pollInterval):
		}
	}
}

// Connect drives the full authorization flow: availability probe,
// request, wait for the owner's decision. Returns protocol.ErrUserRejected
// when denied and an error wrapping the outcome when the decision never
// arrived.
func (c *Client) Connect(ctx context.Context, permissions ...protocol.Permission) error {
	if !c.WalletAvailable(ctx) {
		return fmt.Errorf("no wallet daemon at %s", c.BaseURL)
	}

	requestID, err := c.RequestAuthorization(ctx, permissions)
	if err != nil {
		return err
	}

	timeout := c.AuthTimeout
	if timeout <= 0 {
		timeout = DefaultAuthTimeout
	}

	switch status := c.WaitForAuthorization(ctx, requestID, timeout); status {
	case protocol.StatusApproved:
		// Warm the cache so the first thing a freshly connected DApp
		// renders does not round-trip.
		for _, p := range permissions {
			if p == protocol.PermissionWalletInfo {
				_, _ = c.WalletInfo(ctx)
				break
			}
		}
		return nil
	case protocol.StatusDenied:
		return protocol.ErrUserRejected
	case protocol.StatusExpired:
		return fmt.Errorf("authorization request expired before a decision")
	default:
		return fmt.Errorf("authorization not decided within %s", timeout)
	}
}

// Disconnect revokes the session and clears all client state: the
// session token, cached reads, and any open push connection. Safe to
// call when already disconnected.
func (c *Client) Disconnect(ctx context.Context) error {
	c.mu.Lock()
	token := c.token
	c.token = ""
	c.cache.Clear()
	ws := c.ws
	c.ws = nil
	c.mu.Unlock()

	if ws != nil {
		ws.Close()
	}
	if token == "" {
		return nil
	}
	return c.postWithToken(ctx, protocol.EndpointAuthRevoke, token, nil, nil)
}

// WalletInfo fetches the wallet's public info. Requires wallet_info.
func (c *Client) WalletInfo(ctx context.Context) (*protocol.WalletInfoResponse, error) {
	if cached, ok := c.cache.Get("wallet_info", cacheTTL); ok {
		info := cached.(protocol.WalletInfoResponse)
		return &info, nil
	}

	var info protocol.WalletInfoResponse
	if err := c.get(ctx, protocol.EndpointWalletInfo, &info); err != nil {
		return nil, err
	}
	c.cache.Set("wallet_info", info)
	return &info, nil
}

// Balance fetches the wallet's balance on a contract. Requires balance.
func (c *Client) Balance(ctx context.Context, contract string) (string, error) {
	return c.balance(ctx, "balance:"+contract, protocol.EndpointBalance+contract)
}

// ApprovedBalance fetches the amount approved for a spender contract.
func (c *Client) ApprovedBalance(ctx context.Context, contract, spender string) (string, error) {
	return c.balance(ctx,
		"balance:"+contract+":"+spender,
		protocol.EndpointBalance+contract+"/"+spender,
	)
}

func (c *Client) balance(ctx context.Context, key, path string) (string, error) {
	if cached, ok := c.cache.Get(key, cacheTTL); ok {
		return cached.(string), nil
	}

	var resp protocol.BalanceResponse
	if err := c.get(ctx, path, &resp); err != nil {
		return "", err
	}
	c.cache.Set(key, resp.Balance)
	return resp.Balance, nil
}

// SendTransaction submits a transaction through the wallet. Requires
// transactions. Cached balances are invalidated on success.
func (c *Client) SendTransaction(ctx context.Context, tx protocol.TransactionRequest) (*protocol.TransactionResult, error) {
	var result protocol.TransactionResult
	if err := c.post(ctx, protocol.EndpointTransaction, tx, &result); err != nil {
		return nil, err
	}
	c.cache.ClearPrefix("balance:")
	return &result, nil
}

// SignMessage asks the wallet to sign a message. Requires sign_message.
func (c *Client) SignMessage(ctx context.Context, message string) (*protocol.SignatureResponse, error) {
	var resp protocol.SignatureResponse
	err := c.post(ctx, protocol.EndpointSign, protocol.SignRequest{Message: message}, &resp)
	if err != nil {
		return nil, err
	}
	return &resp, nil
}

// AddToken registers a custom token with the wallet. Requires add_token.
func (c *Client) AddToken(ctx context.Context, req protocol.AddTokenRequest) error {
	return c.post(ctx, protocol.EndpointTokensAdd, req, nil)
}

// Tokens lists the wallet's registered tokens. Requires wallet_info.
func (c *Client) Tokens(ctx context.Context) ([]protocol.TokenInfo, error) {
	var resp struct {
		Tokens []protocol.TokenInfo `json:"tokens"`
	}
	if err := c.get(ctx, protocol.EndpointTokens, &resp); err != nil {
		return nil, err
	}
	return resp.Tokens, nil
}

// Unlock unlocks the wallet. Rate-limit errors carry the server-reported
// wait in their RetryAfter field; the SDK never retries them.
func (c *Client) Unlock(ctx context.Context, password string) error {
	return c.post(ctx, protocol.EndpointWalletUnlock, protocol.UnlockRequest{Password: password}, nil)
}

// Lock re-locks the wallet. Requires a session.
func (c *Client) Lock(ctx context.Context) error {
	return c.post(ctx, protocol.EndpointWalletLock, nil, nil)
}

func (c *Client) get(ctx context.Context, path string, out any) error {
	return c.do(ctx, http.MethodGet, path, c.Token(), nil, out)
}

func (c *Client) post(ctx context.Context, path string, body, out any) error {
	return c.do(ctx, http.MethodPost, path, c.Token(), body, out)
}

func (c *Client) postWithToken(ctx context.Context, path, token string, body, out any) error {
	return c.do(ctx, http.MethodPost, path, token, body, out)
}

func (c *Client) do(ctx context.Context, method, path, token string, body, out any) error {
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encoding request body: %w", err)
		}
		reader = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.url(path), reader)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return protocol.ErrNetworkError.WithDetail(err.Error())
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return protocol.ErrNetworkError.WithDetail("reading response failed")
	}

	if err := protocol.ParseErrorResponse(resp.StatusCode, raw); err != nil {
		return err
	}
	if out != nil {
		if err := json.Unmarshal(raw, out); err != nil {
			return fmt.Errorf("decoding response: %w", err)
		}
	}
	return nil
}

func (c *Client) url(path string) string {
	return strings.TrimSuffix(c.BaseURL, "/") + path
}
