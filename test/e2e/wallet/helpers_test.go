package wallet_test

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/xian-network/go-uwp/internal/wallet/app"
	"github.com/xian-network/go-uwp/pkg/protocol"
	"github.com/xian-network/go-uwp/pkg/uwpsdk"
)

/*
 * End-to-end tests running a real wallet daemon in-process and driving
 * it through the public SDK, with a second HTTP client standing in for
 * the wallet owner's approval UI.
 */

const ownerPassword = "e2e-test-password"

func daemonConfig() app.Config {
	return app.Config{
		Host:                 "127.0.0.1",
		Port:                 0,
		WalletType:           protocol.WalletTypeCLI,
		WalletPassword:       ownerPassword,
		NetworkURL:           "http://127.0.0.1:1", // never dialed, chain mode is mock
		ChainID:              "xian-testnet-1",
		ChainMode:            "mock",
		CORSMode:             "development",
		SessionTTL:           time.Hour,
		RequestTTL:           5 * time.Minute,
		CacheTTL:             30 * time.Second,
		MaxSessions:          10,
		MaxPending:           10,
		UnlockLockout:        5 * time.Minute,
		StartupMaxRetries:    1,
		ShutdownGracePeriod:  2 * time.Second,
		HousekeepingInterval: time.Minute,
		Env:                  "dev",
		LogLevel:             "error",
		LogFormat:            "text",
	}
}

// startDaemon boots a wallet daemon on a free port and returns its base
// URL.
func startDaemon(t *testing.T) string {
	t.Helper()

	application, err := app.New(daemonConfig())
	require.NoError(t, err)
	require.NoError(t, application.Start())
	t.Cleanup(func() { _ = application.Shutdown() })

	return "http://" + application.Addr()
}

func newSDKClient(t *testing.T, baseURL string) *uwpsdk.Client {
	t.Helper()

	client := uwpsdk.NewClient("E2E DApp", "https://e2e.example")
	client.BaseURL = baseURL
	client.AuthTimeout = 10 * time.Second
	return client
}

// owner is the approval side of the flow, talking to the daemon the way
// the wallet's own UI would.
type owner struct {
	t       *testing.T
	baseURL string
	http    *http.Client
}

func newOwner(t *testing.T, baseURL string) *owner {
	return &owner{t: t, baseURL: baseURL, http: &http.Client{Timeout: 5 * time.Second}}
}

// pending returns the daemon's current approval queue. Plain error
// returns keep this callable from helper goroutines.
func (o *owner) pending() ([]protocol.PendingRequestInfo, error) {
	resp, err := o.http.Get(o.baseURL + protocol.EndpointAuthPending)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("listing pending requests: HTTP %d", resp.StatusCode)
	}

	var body struct {
		Requests []protocol.PendingRequestInfo `json:"requests"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, err
	}
	return body.Requests, nil
}

// resolveNext waits for a request to show up in the approval queue and
// resolves it. Returns the resolved request id.
func (o *owner) resolveNext(approve bool) (string, error) {
	deadline := time.Now().Add(5 * time.Second)
	for {
		requests, err := o.pending()
		if err != nil {
			return "", err
		}
		if len(requests) > 0 {
			requestID := requests[0].RequestID
			endpoint := protocol.EndpointAuthDeny
			if approve {
				endpoint = protocol.EndpointAuthApprove
			}
			resp, err := o.http.Post(o.baseURL+endpoint+requestID, "application/json", nil)
			if err != nil {
				return "", err
			}
			resp.Body.Close()
			if resp.StatusCode != http.StatusOK {
				return "", fmt.Errorf("resolving request %s: HTTP %d", requestID, resp.StatusCode)
			}
			return requestID, nil
		}
		if time.Now().After(deadline) {
			return "", fmt.Errorf("no authorization request arrived within 5s")
		}
		time.Sleep(50 * time.Millisecond)
	}
}

// resolveNextAsync resolves the next queued request from a goroutine so
// the SDK side can block in Connect. Failures are reported with Errorf,
// which is safe off the test goroutine.
func (o *owner) resolveNextAsync(approve bool) {
	go func() {
		if _, err := o.resolveNext(approve); err != nil {
			o.t.Errorf("resolving authorization request: %v", err)
		}
	}()
}

// unlock unlocks the daemon's wallet with the owner password.
func (o *owner) unlock() {
	o.t.Helper()

	body := fmt.Sprintf(`{"password":%q}`, ownerPassword)
	resp, err := o.http.Post(o.baseURL+protocol.EndpointWalletUnlock, "application/json",
		strings.NewReader(body))
	require.NoError(o.t, err)
	resp.Body.Close()
	require.Equal(o.t, http.StatusOK, resp.StatusCode)
}

func connectedClient(t *testing.T, baseURL string, perms ...protocol.Permission) *uwpsdk.Client {
	t.Helper()

	client := newSDKClient(t, baseURL)
	newOwner(t, baseURL).resolveNextAsync(true)
	require.NoError(t, client.Connect(context.Background(), perms...))
	return client
}
