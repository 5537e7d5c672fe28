package chain

import (
	"context"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/xian-network/go-uwp/pkg/protocol"
)

// DefaultNetworkURL is the public testnet node.
const DefaultNetworkURL = "https://testnet.xian.org"

// HTTPClient implements Client against a node's RPC endpoint. State reads
// go through abci_query; transactions go through broadcast_tx_sync.
type HTTPClient struct {
	baseURL string
	http    *http.Client
	logger  *slog.Logger
}

// NewHTTPClient creates a client for the node at baseURL. An empty
// baseURL targets the public testnet.
func NewHTTPClient(baseURL string, logger *slog.Logger) *HTTPClient {
	if baseURL == "" {
		baseURL = DefaultNetworkURL
	}
	return &HTTPClient{
		baseURL: baseURL,
		http:    &http.Client{Timeout: 10 * time.Second},
		logger:  logger,
	}
}

func (c *HTTPClient) Balance(ctx context.Context, address, contract string) (string, error) {
	value, err := c.abciQuery(ctx, fmt.Sprintf("/get/%s.balances:%s", contract, address))
	if err != nil {
		return "", err
	}
	return decimalOrZero(value), nil
}

func (c *HTTPClient) ApprovedBalance(ctx context.Context, address, contract, spender string) (string, error) {
	value, err := c.abciQuery(ctx, fmt.Sprintf("/get/%s.balances:%s:%s", contract, address, spender))
	if err != nil {
		return "", err
	}
	return decimalOrZero(value), nil
}

func (c *HTTPClient) Nonce(ctx context.Context, address string) (uint64, error) {
	value, err := c.abciQuery(ctx, "/nonce/"+address)
	if err != nil {
		return 0, err
	}
	if len(value) == 0 {
		return 0, nil
	}
	nonce, err := strconv.ParseUint(string(value), 10, 64)
	if err != nil {
		return 0, protocol.ErrNetworkError.WithDetail("node returned an unparseable nonce")
	}
	return nonce, nil
}

func (c *HTTPClient) Submit(ctx context.Context, rawTx []byte) (*protocol.TransactionResult, error) {
	query := url.Values{"tx": {`"` + hex.EncodeToString(rawTx) + `"`}}
	body, err := c.get(ctx, "/broadcast_tx_sync", query)
	if err != nil {
		return nil, err
	}

	var res struct {
		Result struct {
			Code uint32 `json:"code"`
			Hash string `json:"hash"`
			Log  string `json:"log"`
		} `json:"result"`
	}
	if err := json.Unmarshal(body, &res); err != nil {
		return nil, protocol.ErrNetworkError.WithDetail("node returned an unparseable broadcast response")
	}

	result := &protocol.TransactionResult{
		Success:         res.Result.Code == 0,
		TransactionHash: res.Result.Hash,
	}
	if res.Result.Code != 0 {
		result.Errors = []string{res.Result.Log}
		c.logger.Warn("transaction rejected by node", "code", res.Result.Code, "log", res.Result.Log)
	}
	return result, nil
}

// abciQuery runs a key-value state query and returns the decoded value,
// nil when the key does not exist.
func (c *HTTPClient) abciQuery(ctx context.Context, path string) ([]byte, error) {
	query := url.Values{"path": {`"` + path + `"`}}
	body, err := c.get(ctx, "/abci_query", query)
	if err != nil {
		return nil, err
	}

	var res struct {
		Result struct {
			Response struct {
				Code  uint32 `json:"code"`
				Value string `json:"value"`
			} `json:"response"`
		} `json:"result"`
	}
	if err := json.Unmarshal(body, &res); err != nil {
		return nil, protocol.ErrNetworkError.WithDetail("node returned an unparseable query response")
	}
	if res.Result.Response.Code != 0 {
		return nil, protocol.ErrNetworkError.WithDetail(
			fmt.Sprintf("state query failed with code %d", res.Result.Response.Code))
	}

	value, err := base64.StdEncoding.DecodeString(res.Result.Response.Value)
	if err != nil {
		return nil, protocol.ErrNetworkError.WithDetail("node returned an unparseable query value")
	}
	if string(value) == "None" {
		return nil, nil
	}
	return value, nil
}

func (c *HTTPClient) get(ctx context.Context, path string, query url.Values) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path+"?"+query.Encode(), nil)
	if err != nil {
		return nil, protocol.ErrNetworkError.WithDetail(err.Error())
	}

	resp, err := c.http.Do(req)
	if err != nil {
		c.logger.Warn("chain request failed", "path", path, "error", err)
		return nil, protocol.ErrNetworkError.WithDetail("chain node unreachable")
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, protocol.ErrNetworkError.WithDetail("reading chain node response failed")
	}
	if resp.StatusCode != http.StatusOK {
		return nil, protocol.ErrNetworkError.WithDetail(
			fmt.Sprintf("chain node returned HTTP %d", resp.StatusCode))
	}
	return body, nil
}

// decimalOrZero normalizes a raw state value to a decimal string.
func decimalOrZero(value []byte) string {
	if len(value) == 0 {
		return "0"
	}

	// Balances may be stored as a bare number or as a fixed-point
	// object {"__fixed__": "123.45"}.
	var fixed struct {
		Fixed string `json:"__fixed__"`
	}
	if err := json.Unmarshal(value, &fixed); err == nil && fixed.Fixed != "" {
		return fixed.Fixed
	}
	return string(value)
}
