package http

import (
	"net/http"

	"github.com/xian-network/go-uwp/internal/wallet/service"
	"github.com/xian-network/go-uwp/pkg/cryptox"
	"github.com/xian-network/go-uwp/pkg/httpx"
	"github.com/xian-network/go-uwp/pkg/protocol"
	"github.com/xian-network/go-uwp/pkg/slogx"
)

// AuthRequestHandler serves POST /auth/request, the DApp's entry point
// into the authorization flow.
type AuthRequestHandler struct {
	Registry *service.RequestRegistry
}

func (h *AuthRequestHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	log := slogx.FromContext(r.Context())

	var req protocol.AuthRequest
	if err := httpx.ReadJSON(r, &req); err != nil {
		protocol.ErrInvalidRequest.WithDetail(err.Error()).WriteError(w)
		return
	}
	if req.AppName == "" || req.AppURL == "" {
		protocol.ErrInvalidRequest.WithDetail("app_name and app_url are required").WriteError(w)
		return
	}

	created, err := h.Registry.Create(req.AppName, req.AppURL, req.Permissions, req.Description, req.IconURL)
	if err != nil {
		writeError(w, err)
		return
	}

	log.Info("authorization requested",
		"request_id", created.ID,
		"app_name", created.AppName,
		"permissions", created.Permissions,
	)
	httpx.WriteJSON(w, http.StatusOK, protocol.AuthRequestResponse{
		RequestID: created.ID,
		Status:    created.Status,
	})
}

// AuthStatusHandler serves GET /auth/status/{request_id}. Terminal
// outcomes are consumed by the first poll that observes them; the session
// token rides along only on an approved outcome.
type AuthStatusHandler struct {
	Registry *service.RequestRegistry
}

func (h *AuthStatusHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	req, session, err := h.Registry.GetStatus(r.PathValue("request_id"))
	if err != nil {
		writeError(w, err)
		return
	}

	resp := protocol.AuthStatusResponse{
		RequestID:   req.ID,
		AppName:     req.AppName,
		AppURL:      req.AppURL,
		Permissions: req.Permissions,
		Description: req.Description,
		Status:      req.Status,
		CreatedAt:   req.CreatedAt,
	}
	if session != nil {
		resp.SessionToken = session.Token
		expires := session.ExpiresAt
		resp.ExpiresAt = &expires
	}

	httpx.NoCache(w)
	httpx.WriteJSON(w, http.StatusOK, resp)
}

// ApproveHandler serves POST /auth/approve/{request_id}. Reachable only
// by the wallet's own UI; the server binds to loopback and anything on
// that port is trusted as the wallet owner.
type ApproveHandler struct {
	Registry *service.RequestRegistry
}

func (h *ApproveHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	requestID := r.PathValue("request_id")
	log := slogx.FromContext(r.Context())

	session, err := h.Registry.Approve(requestID)
	if err != nil {
		writeError(w, err)
		return
	}

	log.Info("authorization approved",
		"request_id", requestID,
		"app_name", session.AppName,
		"session", cryptox.FingerprintToken(session.Token),
	)
	httpx.NoCache(w)
	httpx.WriteJSON(w, http.StatusOK, map[string]any{
		"request_id": requestID,
		"status":     protocol.StatusApproved,
	})
}

// DenyHandler serves POST /auth/deny/{request_id}.
type DenyHandler struct {
	Registry *service.RequestRegistry
}

func (h *DenyHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	requestID := r.PathValue("request_id")

	if err := h.Registry.Deny(requestID); err != nil {
		writeError(w, err)
		return
	}

	slogx.FromContext(r.Context()).Info("authorization denied", "request_id", requestID)
	httpx.WriteJSON(w, http.StatusOK, map[string]any{
		"request_id": requestID,
		"status":     protocol.StatusDenied,
	})
}

// PendingHandler serves GET /auth/pending for the wallet UI's approval
// queue, oldest first.
type PendingHandler struct {
	Registry *service.RequestRegistry
}

func (h *PendingHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	httpx.NoCache(w)
	httpx.WriteJSON(w, http.StatusOK, map[string]any{
		"requests": h.Registry.ListPending(),
	})
}

// RevokeHandler serves POST /auth/revoke: a DApp voluntarily ending its
// own session. Idempotent, always 200 for a well-formed bearer.
type RevokeHandler struct {
	Sessions *service.SessionStore
}

func (h *RevokeHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	token := bearerToken(r)
	if token == "" {
		protocol.ErrUnauthorized.WriteError(w)
		return
	}

	h.Sessions.Revoke(token)
	slogx.FromContext(r.Context()).Info("session revoked",
		"session", cryptox.FingerprintToken(token))
	httpx.NoCache(w)
	httpx.WriteJSON(w, http.StatusOK, map[string]any{"revoked": true})
}
