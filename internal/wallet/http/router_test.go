package http

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/xian-network/go-uwp/internal/wallet/chain"
	"github.com/xian-network/go-uwp/internal/wallet/push"
	"github.com/xian-network/go-uwp/internal/wallet/service"
	"github.com/xian-network/go-uwp/pkg/cachex"
	"github.com/xian-network/go-uwp/pkg/httpx"
	"github.com/xian-network/go-uwp/pkg/protocol"
)

const testPassword = "hunter2-but-long"

type testServer struct {
	*httptest.Server
	wallet   *chain.Wallet
	mock     *chain.Mock
	registry *service.RequestRegistry
	sessions *service.SessionStore
	cache    *cachex.Cache
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()

	logger := slog.New(slog.DiscardHandler)
	wallet, err := chain.NewWalletFromSeed(bytes.Repeat([]byte{7}, 32), testPassword,
		protocol.WalletTypeCLI, chain.DefaultNetworkURL, "xian-testnet-1")
	require.NoError(t, err)

	mock := chain.NewMock()
	bus := push.NewBus(logger)
	sessions := service.NewSessionStore(10, time.Hour)
	registry := service.NewRequestRegistry(sessions, bus, 10, 5*time.Minute)
	limiter := service.NewUnlockLimiter(5*time.Minute, 30*time.Minute)
	cache := cachex.New()

	router := NewRouter(logger, httpx.DevelopmentCORS())
	router.Wallet = wallet
	router.Chain = mock
	router.Registry = registry
	router.Sessions = sessions
	router.Limiter = limiter
	router.Bus = bus
	router.Cache = cache
	router.ApplyRoutes()

	srv := httptest.NewServer(router)
	t.Cleanup(srv.Close)

	return &testServer{
		Server:   srv,
		wallet:   wallet,
		mock:     mock,
		registry: registry,
		sessions: sessions,
		cache:    cache,
	}
}

func (s *testServer) do(t *testing.T, method, path, token string, body any) (*http.Response, []byte) {
	t.Helper()

	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}

	req, err := http.NewRequest(method, s.URL+path, reader)
	require.NoError(t, err)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	resp.Body.Close()
	return resp, raw
}

// connect drives the full authorization flow and returns a session token.
func (s *testServer) connect(t *testing.T, perms ...protocol.Permission) string {
	t.Helper()

	resp, body := s.do(t, http.MethodPost, protocol.EndpointAuthRequest, "", protocol.AuthRequest{
		AppName:     "TestDApp",
		AppURL:      "https://dapp.example",
		Permissions: perms,
	})
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))

	var created protocol.AuthRequestResponse
	require.NoError(t, json.Unmarshal(body, &created))

	resp, body = s.do(t, http.MethodPost, protocol.EndpointAuthApprove+created.RequestID, "", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))

	resp, body = s.do(t, http.MethodGet, protocol.EndpointAuthStatus+created.RequestID, "", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))

	var status protocol.AuthStatusResponse
	require.NoError(t, json.Unmarshal(body, &status))
	require.Equal(t, protocol.StatusApproved, status.Status)
	require.NotEmpty(t, status.SessionToken)
	return status.SessionToken
}

func errorCode(t *testing.T, body []byte) string {
	t.Helper()
	var e struct {
		Code string `json:"error"`
	}
	require.NoError(t, json.Unmarshal(body, &e))
	return e.Code
}

func TestWalletStatus(t *testing.T) {
	srv := newTestServer(t)

	resp, body := srv.do(t, http.MethodGet, protocol.EndpointWalletStatus, "", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var status protocol.StatusResponse
	require.NoError(t, json.Unmarshal(body, &status))
	require.True(t, status.Available)
	require.True(t, status.Locked)
	require.Equal(t, protocol.WalletTypeCLI, status.WalletType)
	require.Equal(t, protocol.Version, status.Version)
}

func TestUnlockFlow(t *testing.T) {
	srv := newTestServer(t)

	t.Run("wrong password", func(t *testing.T) {
		resp, body := srv.do(t, http.MethodPost, protocol.EndpointWalletUnlock, "",
			protocol.UnlockRequest{Password: "wrong"})
		require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
		require.Equal(t, protocol.CodeUnauthorized, errorCode(t, body))
	})

	t.Run("immediate retry hits the backoff", func(t *testing.T) {
		resp, body := srv.do(t, http.MethodPost, protocol.EndpointWalletUnlock, "",
			protocol.UnlockRequest{Password: "wrong"})
		require.Equal(t, http.StatusTooManyRequests, resp.StatusCode)
		require.Equal(t, protocol.CodeTooManyAttempts, errorCode(t, body))
		require.NotEmpty(t, resp.Header.Get("Retry-After"))
	})

	t.Run("correct password after the wait", func(t *testing.T) {
		time.Sleep(1100 * time.Millisecond)
		resp, _ := srv.do(t, http.MethodPost, protocol.EndpointWalletUnlock, "",
			protocol.UnlockRequest{Password: testPassword})
		require.Equal(t, http.StatusOK, resp.StatusCode)
		require.False(t, srv.wallet.Locked())
	})

	t.Run("missing password", func(t *testing.T) {
		resp, body := srv.do(t, http.MethodPost, protocol.EndpointWalletUnlock, "",
			protocol.UnlockRequest{})
		require.Equal(t, http.StatusBadRequest, resp.StatusCode)
		require.Equal(t, protocol.CodeInvalidRequest, errorCode(t, body))
	})
}

func TestAuthorizationFlow(t *testing.T) {
	srv := newTestServer(t)

	token := srv.connect(t, protocol.PermissionWalletInfo, protocol.PermissionBalance)

	t.Run("scoped call succeeds", func(t *testing.T) {
		resp, body := srv.do(t, http.MethodGet, protocol.EndpointWalletInfo, token, nil)
		require.Equal(t, http.StatusOK, resp.StatusCode)

		var info protocol.WalletInfoResponse
		require.NoError(t, json.Unmarshal(body, &info))
		require.Equal(t, srv.wallet.Address(), info.Address)
	})

	t.Run("no token", func(t *testing.T) {
		resp, body := srv.do(t, http.MethodGet, protocol.EndpointWalletInfo, "", nil)
		require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
		require.Equal(t, protocol.CodeUnauthorized, errorCode(t, body))
	})

	t.Run("missing permission", func(t *testing.T) {
		resp, body := srv.do(t, http.MethodPost, protocol.EndpointSign, token,
			protocol.SignRequest{Message: "hi"})
		require.Equal(t, http.StatusForbidden, resp.StatusCode)
		require.Equal(t, protocol.CodeForbidden, errorCode(t, body))
	})

	t.Run("status poll is one-shot after approval", func(t *testing.T) {
		resp, body := srv.do(t, http.MethodPost, protocol.EndpointAuthRequest, "", protocol.AuthRequest{
			AppName: "Again", AppURL: "https://again.example",
		})
		require.Equal(t, http.StatusOK, resp.StatusCode)
		var created protocol.AuthRequestResponse
		require.NoError(t, json.Unmarshal(body, &created))

		resp, _ = srv.do(t, http.MethodPost, protocol.EndpointAuthApprove+created.RequestID, "", nil)
		require.Equal(t, http.StatusOK, resp.StatusCode)

		resp, _ = srv.do(t, http.MethodGet, protocol.EndpointAuthStatus+created.RequestID, "", nil)
		require.Equal(t, http.StatusOK, resp.StatusCode)

		resp, body = srv.do(t, http.MethodGet, protocol.EndpointAuthStatus+created.RequestID, "", nil)
		require.Equal(t, http.StatusNotFound, resp.StatusCode)
		require.Equal(t, protocol.CodeNotFound, errorCode(t, body))
	})

	t.Run("double approve conflicts", func(t *testing.T) {
		resp, body := srv.do(t, http.MethodPost, protocol.EndpointAuthRequest, "", protocol.AuthRequest{
			AppName: "Twice", AppURL: "https://twice.example",
		})
		require.Equal(t, http.StatusOK, resp.StatusCode)
		var created protocol.AuthRequestResponse
		require.NoError(t, json.Unmarshal(body, &created))

		resp, _ = srv.do(t, http.MethodPost, protocol.EndpointAuthApprove+created.RequestID, "", nil)
		require.Equal(t, http.StatusOK, resp.StatusCode)

		resp, body = srv.do(t, http.MethodPost, protocol.EndpointAuthApprove+created.RequestID, "", nil)
		require.Equal(t, http.StatusConflict, resp.StatusCode)
		require.Equal(t, protocol.CodeInvalidState, errorCode(t, body))
	})

	t.Run("deny yields denied status", func(t *testing.T) {
		resp, body := srv.do(t, http.MethodPost, protocol.EndpointAuthRequest, "", protocol.AuthRequest{
			AppName: "Nope", AppURL: "https://nope.example",
		})
		require.Equal(t, http.StatusOK, resp.StatusCode)
		var created protocol.AuthRequestResponse
		require.NoError(t, json.Unmarshal(body, &created))

		resp, _ = srv.do(t, http.MethodPost, protocol.EndpointAuthDeny+created.RequestID, "", nil)
		require.Equal(t, http.StatusOK, resp.StatusCode)

		resp, body = srv.do(t, http.MethodGet, protocol.EndpointAuthStatus+created.RequestID, "", nil)
		require.Equal(t, http.StatusOK, resp.StatusCode)
		var status protocol.AuthStatusResponse
		require.NoError(t, json.Unmarshal(body, &status))
		require.Equal(t, protocol.StatusDenied, status.Status)
		require.Empty(t, status.SessionToken)
	})

	t.Run("pending queue", func(t *testing.T) {
		resp, body := srv.do(t, http.MethodPost, protocol.EndpointAuthRequest, "", protocol.AuthRequest{
			AppName: "Queued", AppURL: "https://queued.example",
		})
		require.Equal(t, http.StatusOK, resp.StatusCode)
		var created protocol.AuthRequestResponse
		require.NoError(t, json.Unmarshal(body, &created))

		resp, body = srv.do(t, http.MethodGet, protocol.EndpointAuthPending, "", nil)
		require.Equal(t, http.StatusOK, resp.StatusCode)
		var pending struct {
			Requests []protocol.PendingRequestInfo `json:"requests"`
		}
		require.NoError(t, json.Unmarshal(body, &pending))
		require.Len(t, pending.Requests, 1)
		require.Equal(t, created.RequestID, pending.Requests[0].RequestID)

		srv.do(t, http.MethodPost, protocol.EndpointAuthDeny+created.RequestID, "", nil)
	})
}

func TestRevoke(t *testing.T) {
	srv := newTestServer(t)
	token := srv.connect(t, protocol.PermissionWalletInfo)

	resp, _ := srv.do(t, http.MethodPost, protocol.EndpointAuthRevoke, token, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp, body := srv.do(t, http.MethodGet, protocol.EndpointWalletInfo, token, nil)
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	require.Equal(t, protocol.CodeUnauthorized, errorCode(t, body))
}

func TestBalanceCaching(t *testing.T) {
	srv := newTestServer(t)
	srv.mock.SetBalance(srv.wallet.Address(), "currency", "100.5")
	token := srv.connect(t, protocol.PermissionBalance, protocol.PermissionTransactions)
	require.NoError(t, srv.wallet.Unlock(testPassword))

	path := protocol.EndpointBalance + "currency"

	resp, body := srv.do(t, http.MethodGet, path, token, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var first protocol.BalanceResponse
	require.NoError(t, json.Unmarshal(body, &first))
	require.Equal(t, "100.5", first.Balance)
	require.False(t, first.Cached)

	// Second read is served from cache even after the chain state moves.
	srv.mock.SetBalance(srv.wallet.Address(), "currency", "50")
	resp, body = srv.do(t, http.MethodGet, path, token, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var second protocol.BalanceResponse
	require.NoError(t, json.Unmarshal(body, &second))
	require.Equal(t, "100.5", second.Balance)
	require.True(t, second.Cached)

	// A submitted transaction invalidates cached balances.
	resp, _ = srv.do(t, http.MethodPost, protocol.EndpointTransaction, token, protocol.TransactionRequest{
		Contract: "currency",
		Function: "transfer",
		Kwargs:   map[string]any{"to": "abc", "amount": 1},
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp, body = srv.do(t, http.MethodGet, path, token, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var third protocol.BalanceResponse
	require.NoError(t, json.Unmarshal(body, &third))
	require.Equal(t, "50", third.Balance)
	require.False(t, third.Cached)
}

func TestApprovedBalance(t *testing.T) {
	srv := newTestServer(t)
	srv.mock.SetApprovedBalance(srv.wallet.Address(), "currency", "con_dapp", "25")
	token := srv.connect(t, protocol.PermissionBalance)

	resp, body := srv.do(t, http.MethodGet, protocol.EndpointBalance+"currency/con_dapp", token, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var balance protocol.BalanceResponse
	require.NoError(t, json.Unmarshal(body, &balance))
	require.Equal(t, "25", balance.Balance)
	require.Equal(t, "con_dapp", balance.Spender)
}

func TestTransaction(t *testing.T) {
	srv := newTestServer(t)
	token := srv.connect(t, protocol.PermissionTransactions)

	tx := protocol.TransactionRequest{
		Contract: "currency",
		Function: "transfer",
		Kwargs:   map[string]any{"to": "abc", "amount": 5},
	}

	t.Run("locked wallet", func(t *testing.T) {
		resp, body := srv.do(t, http.MethodPost, protocol.EndpointTransaction, token, tx)
		require.Equal(t, http.StatusLocked, resp.StatusCode)
		require.Equal(t, protocol.CodeWalletLocked, errorCode(t, body))
	})

	require.NoError(t, srv.wallet.Unlock(testPassword))

	t.Run("submitted", func(t *testing.T) {
		resp, body := srv.do(t, http.MethodPost, protocol.EndpointTransaction, token, tx)
		require.Equal(t, http.StatusOK, resp.StatusCode)

		var result protocol.TransactionResult
		require.NoError(t, json.Unmarshal(body, &result))
		require.True(t, result.Success)
		require.NotEmpty(t, result.TransactionHash)
		require.Len(t, srv.mock.Submitted(), 1)
	})

	t.Run("rejected by node", func(t *testing.T) {
		srv.mock.RejectLog = "insufficient stamps"
		defer func() { srv.mock.RejectLog = "" }()

		resp, body := srv.do(t, http.MethodPost, protocol.EndpointTransaction, token, tx)
		require.Equal(t, http.StatusBadGateway, resp.StatusCode)
		require.Equal(t, protocol.CodeTransactionFailed, errorCode(t, body))
	})

	t.Run("chain unreachable", func(t *testing.T) {
		srv.mock.SubmitErr = protocol.ErrNetworkError
		defer func() { srv.mock.SubmitErr = nil }()

		resp, body := srv.do(t, http.MethodPost, protocol.EndpointTransaction, token, tx)
		require.Equal(t, http.StatusBadGateway, resp.StatusCode)
		require.Equal(t, protocol.CodeNetworkError, errorCode(t, body))
	})

	t.Run("missing fields", func(t *testing.T) {
		resp, body := srv.do(t, http.MethodPost, protocol.EndpointTransaction, token,
			protocol.TransactionRequest{Contract: "currency"})
		require.Equal(t, http.StatusBadRequest, resp.StatusCode)
		require.Equal(t, protocol.CodeInvalidRequest, errorCode(t, body))
	})
}

func TestSignMessage(t *testing.T) {
	srv := newTestServer(t)
	token := srv.connect(t, protocol.PermissionSignMessage)
	require.NoError(t, srv.wallet.Unlock(testPassword))

	resp, body := srv.do(t, http.MethodPost, protocol.EndpointSign, token,
		protocol.SignRequest{Message: "attest me"})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var sig protocol.SignatureResponse
	require.NoError(t, json.Unmarshal(body, &sig))
	require.Equal(t, srv.wallet.Address(), sig.Address)
	require.True(t, srv.wallet.VerifyMessage("attest me", sig.Signature))
}

func TestTokens(t *testing.T) {
	srv := newTestServer(t)
	token := srv.connect(t, protocol.PermissionWalletInfo, protocol.PermissionAddToken)

	resp, _ := srv.do(t, http.MethodPost, protocol.EndpointTokensAdd, token, protocol.AddTokenRequest{
		ContractAddress: "con_mytoken",
		TokenSymbol:     "MYT",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp, body := srv.do(t, http.MethodGet, protocol.EndpointTokens, token, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var tokens struct {
		Tokens []protocol.TokenInfo `json:"tokens"`
	}
	require.NoError(t, json.Unmarshal(body, &tokens))
	require.Len(t, tokens.Tokens, 2)
	require.Equal(t, chain.CurrencyContract, tokens.Tokens[0].ContractAddress)
	require.Equal(t, "con_mytoken", tokens.Tokens[1].ContractAddress)
}

func TestLockEndpoint(t *testing.T) {
	srv := newTestServer(t)
	token := srv.connect(t)
	require.NoError(t, srv.wallet.Unlock(testPassword))

	resp, _ := srv.do(t, http.MethodPost, protocol.EndpointWalletLock, token, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.True(t, srv.wallet.Locked())

	resp, body := srv.do(t, http.MethodPost, protocol.EndpointWalletLock, "", nil)
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	require.Equal(t, protocol.CodeUnauthorized, errorCode(t, body))
}

func TestCORSHeaders(t *testing.T) {
	srv := newTestServer(t)

	req, err := http.NewRequest(http.MethodGet, srv.URL+protocol.EndpointWalletStatus, nil)
	require.NoError(t, err)
	req.Header.Set("Origin", "https://dapp.example")

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.NotEmpty(t, resp.Header.Get("Access-Control-Allow-Origin"))
}

func TestSessionExpiryOverHTTP(t *testing.T) {
	srv := newTestServer(t)

	base := time.Now()
	current := base
	srv.sessions.SetClock(func() time.Time { return current })

	token := srv.connect(t, protocol.PermissionWalletInfo)

	current = base.Add(2 * time.Hour)
	resp, body := srv.do(t, http.MethodGet, protocol.EndpointWalletInfo, token, nil)
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	require.Equal(t, protocol.CodeSessionExpired, errorCode(t, body))
}

func TestPendingCapacityOverHTTP(t *testing.T) {
	srv := newTestServer(t)

	for i := 0; i < 10; i++ {
		resp, _ := srv.do(t, http.MethodPost, protocol.EndpointAuthRequest, "", protocol.AuthRequest{
			AppName: fmt.Sprintf("App%d", i), AppURL: "https://a.example",
		})
		require.Equal(t, http.StatusOK, resp.StatusCode)
	}

	resp, body := srv.do(t, http.MethodPost, protocol.EndpointAuthRequest, "", protocol.AuthRequest{
		AppName: "Overflow", AppURL: "https://o.example",
	})
	require.Equal(t, http.StatusTooManyRequests, resp.StatusCode)
	require.Equal(t, protocol.CodeTooManyPendingRequests, errorCode(t, body))
}
