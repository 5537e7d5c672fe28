package http

import (
	"net/http"

	"github.com/xian-network/go-uwp/internal/wallet/chain"
	"github.com/xian-network/go-uwp/internal/wallet/obs"
	"github.com/xian-network/go-uwp/internal/wallet/push"
	"github.com/xian-network/go-uwp/internal/wallet/service"
	"github.com/xian-network/go-uwp/pkg/httpx"
	"github.com/xian-network/go-uwp/pkg/protocol"
	"github.com/xian-network/go-uwp/pkg/slogx"
)

// StatusHandler serves the unauthenticated availability probe. DApps use
// it to discover a running wallet, so it must never require a session.
type StatusHandler struct {
	Wallet *chain.Wallet
}

func (h *StatusHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	httpx.WriteJSON(w, http.StatusOK, protocol.StatusResponse{
		Available:  true,
		Locked:     h.Wallet.Locked(),
		WalletType: h.Wallet.Type(),
		Network:    h.Wallet.NetworkURL(),
		ChainID:    h.Wallet.ChainID(),
		Version:    protocol.Version,
	})
}

// InfoHandler serves GET /wallet/info for sessions holding wallet_info.
type InfoHandler struct {
	Wallet *chain.Wallet
}

func (h *InfoHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	httpx.WriteJSON(w, http.StatusOK, protocol.WalletInfoResponse{
		Address:          h.Wallet.Address(),
		TruncatedAddress: h.Wallet.TruncatedAddress(),
		Locked:           h.Wallet.Locked(),
		ChainID:          h.Wallet.ChainID(),
		Network:          h.Wallet.NetworkURL(),
		WalletType:       h.Wallet.Type(),
		Version:          protocol.Version,
	})
}

// UnlockHandler serves POST /wallet/unlock. Every attempt runs through
// the per-source backoff limiter before the password is even looked at;
// rejected attempts are not counted as failures.
type UnlockHandler struct {
	Wallet  *chain.Wallet
	Limiter *service.UnlockLimiter
	Bus     *push.Bus
}

func (h *UnlockHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := slogx.FromContext(ctx)
	source := httpx.IPKeyExtractor(r)

	if err := h.Limiter.Check(source); err != nil {
		writeError(w, err)
		return
	}

	var req protocol.UnlockRequest
	if err := httpx.ReadJSON(r, &req); err != nil {
		protocol.ErrInvalidRequest.WithDetail(err.Error()).WriteError(w)
		return
	}
	if req.Password == "" {
		protocol.ErrInvalidRequest.WithDetail("password is required").WriteError(w)
		return
	}

	if err := h.Wallet.Unlock(req.Password); err != nil {
		h.Limiter.RecordFailure(source)
		obs.ObserveUnlockFailure()
		log.Warn("unlock failed", "source", source)
		writeError(w, err)
		return
	}

	h.Limiter.RecordSuccess(source)
	h.Bus.WalletLocked(false)
	log.Info("wallet unlocked")

	httpx.NoCache(w)
	httpx.WriteJSON(w, http.StatusOK, map[string]any{"locked": false})
}

// LockHandler serves POST /wallet/lock. Locking is always allowed and
// idempotent.
type LockHandler struct {
	Wallet *chain.Wallet
	Bus    *push.Bus
}

func (h *LockHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.Wallet.Lock()
	h.Bus.WalletLocked(true)
	slogx.FromContext(r.Context()).Info("wallet locked")

	httpx.WriteJSON(w, http.StatusOK, map[string]any{"locked": true})
}
