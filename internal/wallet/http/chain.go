package http

import (
	"net/http"
	"time"

	"github.com/xian-network/go-uwp/internal/wallet/chain"
	"github.com/xian-network/go-uwp/pkg/cachex"
	"github.com/xian-network/go-uwp/pkg/httpx"
	"github.com/xian-network/go-uwp/pkg/protocol"
	"github.com/xian-network/go-uwp/pkg/slogx"
)

// BalanceHandler serves GET /balance/{contract} and
// GET /balance/{contract}/{spender}. Responses are cached for the
// configured TTL to keep read-heavy DApps off the chain node.
type BalanceHandler struct {
	Wallet   *chain.Wallet
	Chain    chain.Client
	Cache    *cachex.Cache
	CacheTTL time.Duration
}

func (h *BalanceHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	contract := r.PathValue("contract")
	spender := r.PathValue("spender")

	key := "balance:" + contract
	if spender != "" {
		key += ":" + spender
	}

	if cached, ok := h.Cache.Get(key, h.CacheTTL); ok {
		resp := cached.(protocol.BalanceResponse)
		resp.Cached = true
		httpx.WriteJSON(w, http.StatusOK, resp)
		return
	}

	var (
		balance string
		err     error
	)
	if spender == "" {
		balance, err = h.Chain.Balance(ctx, h.Wallet.Address(), contract)
	} else {
		balance, err = h.Chain.ApprovedBalance(ctx, h.Wallet.Address(), contract, spender)
	}
	if err != nil {
		writeError(w, err)
		return
	}

	resp := protocol.BalanceResponse{
		Balance:  balance,
		Contract: contract,
		Spender:  spender,
	}
	h.Cache.Set(key, resp)
	httpx.WriteJSON(w, http.StatusOK, resp)
}

// TransactionHandler serves POST /transaction. The wallet signs the
// payload and submits it through the chain client; a submitted transfer
// invalidates every cached balance.
type TransactionHandler struct {
	Wallet *chain.Wallet
	Chain  chain.Client
	Cache  *cachex.Cache
}

func (h *TransactionHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := slogx.FromContext(ctx)

	var req protocol.TransactionRequest
	if err := httpx.ReadJSON(r, &req); err != nil {
		protocol.ErrInvalidRequest.WithDetail(err.Error()).WriteError(w)
		return
	}
	if req.Contract == "" || req.Function == "" {
		protocol.ErrInvalidRequest.WithDetail("contract and function are required").WriteError(w)
		return
	}

	nonce, err := h.Chain.Nonce(ctx, h.Wallet.Address())
	if err != nil {
		writeError(w, err)
		return
	}

	rawTx, err := h.Wallet.BuildTransaction(req, nonce)
	if err != nil {
		writeError(w, err)
		return
	}

	result, err := h.Chain.Submit(ctx, rawTx)
	if err != nil {
		writeError(w, err)
		return
	}
	if !result.Success {
		detail := "transaction rejected"
		if len(result.Errors) > 0 {
			detail = result.Errors[0]
		}
		protocol.ErrTransactionFailed.WithDetail(detail).WriteError(w)
		return
	}

	// Balances are stale the moment a transfer lands.
	h.Cache.ClearPrefix("balance:")

	log.Info("transaction submitted",
		"contract", req.Contract,
		"function", req.Function,
		"tx_hash", result.TransactionHash,
	)
	httpx.WriteJSON(w, http.StatusOK, result)
}

// SignHandler serves POST /sign.
type SignHandler struct {
	Wallet *chain.Wallet
}

func (h *SignHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	var req protocol.SignRequest
	if err := httpx.ReadJSON(r, &req); err != nil {
		protocol.ErrInvalidRequest.WithDetail(err.Error()).WriteError(w)
		return
	}
	if req.Message == "" {
		protocol.ErrInvalidRequest.WithDetail("message is required").WriteError(w)
		return
	}

	signature, err := h.Wallet.SignMessage(req.Message)
	if err != nil {
		writeError(w, err)
		return
	}

	httpx.WriteJSON(w, http.StatusOK, protocol.SignatureResponse{
		Signature: signature,
		Message:   req.Message,
		Address:   h.Wallet.Address(),
	})
}

// TokensAddHandler serves POST /tokens/add.
type TokensAddHandler struct {
	Wallet *chain.Wallet
}

func (h *TokensAddHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	var req protocol.AddTokenRequest
	if err := httpx.ReadJSON(r, &req); err != nil {
		protocol.ErrInvalidRequest.WithDetail(err.Error()).WriteError(w)
		return
	}

	err := h.Wallet.AddToken(protocol.TokenInfo{
		ContractAddress: req.ContractAddress,
		TokenName:       req.TokenName,
		TokenSymbol:     req.TokenSymbol,
		Decimals:        req.Decimals,
	})
	if err != nil {
		writeError(w, err)
		return
	}

	httpx.WriteJSON(w, http.StatusOK, map[string]any{"added": true})
}

// TokensListHandler serves GET /tokens.
type TokensListHandler struct {
	Wallet *chain.Wallet
}

func (h *TokensListHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	httpx.WriteJSON(w, http.StatusOK, map[string]any{
		"tokens": h.Wallet.Tokens(),
	})
}
