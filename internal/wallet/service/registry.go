package service

import (
	"sync"
	"time"

	"github.com/xian-network/go-uwp/internal/wallet/domain"
	"github.com/xian-network/go-uwp/pkg/idx"
	"github.com/xian-network/go-uwp/pkg/protocol"
)

// Notifier receives registry lifecycle events for fan-out to the wallet
// UI. The push bus implements it; tests substitute a recorder.
type Notifier interface {
	RequestCreated(info protocol.PendingRequestInfo)
	RequestResolved(requestID string, status protocol.RequestStatus)
}

// NopNotifier discards all events.
type NopNotifier struct{}

func (NopNotifier) RequestCreated(protocol.PendingRequestInfo)     {}
func (NopNotifier) RequestResolved(string, protocol.RequestStatus) {}

// resolvedRequest retains a decided request until the requesting DApp
// observes the outcome, or until the expiry sweep collects it.
type resolvedRequest struct {
	req        *domain.PendingRequest
	session    *domain.Session // non-nil only when approved
	resolvedAt time.Time
}

// RequestRegistry holds pending authorization requests and drives them
// through the pending -> {approved|denied|expired} state machine. All
// transitions happen under one lock so concurrent approve/deny calls on
// the same id can never both succeed.
type RequestRegistry struct {
	mu       sync.Mutex
	pending  map[string]*domain.PendingRequest
	order    []string // pending ids in insertion order
	resolved map[string]*resolvedRequest

	sessions *SessionStore
	notifier Notifier

	maxPending int
	requestTTL time.Duration
	now        func() time.Time
}

// NewRequestRegistry wires the registry to the session store that mints
// sessions on approval. Zero maxPending or requestTTL fall back to the
// protocol defaults.
func NewRequestRegistry(sessions *SessionStore, notifier Notifier, maxPending int, requestTTL time.Duration) *RequestRegistry {
	if maxPending <= 0 {
		maxPending = protocol.DefaultMaxPending
	}
	if requestTTL <= 0 {
		requestTTL = protocol.DefaultRequestTTL
	}
	if notifier == nil {
		notifier = NopNotifier{}
	}
	return &RequestRegistry{
		pending:    make(map[string]*domain.PendingRequest),
		resolved:   make(map[string]*resolvedRequest),
		sessions:   sessions,
		notifier:   notifier,
		maxPending: maxPending,
		requestTTL: requestTTL,
		now:        time.Now,
	}
}

// SetClock replaces the registry clock, for tests.
func (r *RequestRegistry) SetClock(now func() time.Time) { r.now = now }

// Create validates and registers a new authorization request and notifies
// the wallet UI. Permissions are deduplicated; an empty permission list is
// allowed (presence-check access).
func (r *RequestRegistry) Create(appName, appURL string, permissions []protocol.Permission, description, iconURL string) (*domain.PendingRequest, error) {
	perms, err := protocol.NormalizePermissions(permissions)
	if err != nil {
		return nil, protocol.ErrInvalidRequest.WithDetail(err.Error())
	}

	req := &domain.PendingRequest{
		ID:          idx.New().String(),
		AppName:     appName,
		AppURL:      appURL,
		Permissions: perms,
		Description: description,
		IconURL:     iconURL,
		Status:      protocol.StatusPending,
	}

	r.mu.Lock()
	if len(r.pending) >= r.maxPending {
		r.mu.Unlock()
		return nil, protocol.ErrTooManyPendingRequests
	}
	req.CreatedAt = r.now()
	r.pending[req.ID] = req
	r.order = append(r.order, req.ID)
	r.mu.Unlock()

	r.notifier.RequestCreated(req.Info())
	return req, nil
}

// GetStatus reports the current state of a request. A terminal result is
// one-shot: the first read observing it consumes the record, together with
// the session token for approved requests.
func (r *RequestRegistry) GetStatus(requestID string) (*domain.PendingRequest, *domain.Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if req, ok := r.pending[requestID]; ok {
		cp := *req
		return &cp, nil, nil
	}

	res, ok := r.resolved[requestID]
	if !ok {
		return nil, nil, protocol.ErrNotFound
	}
	delete(r.resolved, requestID)

	cp := *res.req
	return &cp, res.session, nil
}

// Approve transitions a pending request to approved and mints a session
// scoped to the request's permissions. The request leaves the pending set
// in the same critical section, so a racing deny cannot also succeed.
func (r *RequestRegistry) Approve(requestID string) (*domain.Session, error) {
	r.mu.Lock()
	req, ok := r.pending[requestID]
	if !ok {
		if _, resolved := r.resolved[requestID]; resolved {
			r.mu.Unlock()
			return nil, protocol.ErrInvalidState
		}
		r.mu.Unlock()
		return nil, protocol.ErrNotFound
	}

	session, err := r.sessions.Create(req.AppName, req.AppURL, req.Permissions)
	if err != nil {
		r.mu.Unlock()
		return nil, err
	}

	req.Status = protocol.StatusApproved
	r.removePendingLocked(requestID)
	r.resolved[requestID] = &resolvedRequest{req: req, session: session, resolvedAt: r.now()}
	r.mu.Unlock()

	r.notifier.RequestResolved(requestID, protocol.StatusApproved)
	return session, nil
}

// Deny transitions a pending request to denied. No session is created.
func (r *RequestRegistry) Deny(requestID string) error {
	r.mu.Lock()
	req, ok := r.pending[requestID]
	if !ok {
		if _, resolved := r.resolved[requestID]; resolved {
			r.mu.Unlock()
			return protocol.ErrInvalidState
		}
		r.mu.Unlock()
		return protocol.ErrNotFound
	}

	req.Status = protocol.StatusDenied
	r.removePendingLocked(requestID)
	r.resolved[requestID] = &resolvedRequest{req: req, resolvedAt: r.now()}
	r.mu.Unlock()

	r.notifier.RequestResolved(requestID, protocol.StatusDenied)
	return nil
}

// ListPending returns the pending requests in insertion order for the
// wallet UI's approval queue.
func (r *RequestRegistry) ListPending() []protocol.PendingRequestInfo {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]protocol.PendingRequestInfo, 0, len(r.order))
	for _, id := range r.order {
		if req, ok := r.pending[id]; ok {
			out = append(out, req.Info())
		}
	}
	return out
}

// PendingCount reports the number of requests awaiting a decision.
func (r *RequestRegistry) PendingCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.pending)
}

// SweepExpired expires pending requests older than the expiry window and
// collects resolved records that were never consumed. Returns the number
// of pending requests that expired.
func (r *RequestRegistry) SweepExpired(now time.Time) int {
	r.mu.Lock()

	var expired []string
	for id, req := range r.pending {
		if now.Sub(req.CreatedAt) >= r.requestTTL {
			req.Status = protocol.StatusExpired
			expired = append(expired, id)
		}
	}
	for _, id := range expired {
		r.removePendingLocked(id)
	}

	for id, res := range r.resolved {
		if now.Sub(res.resolvedAt) >= r.requestTTL {
			delete(r.resolved, id)
		}
	}
	r.mu.Unlock()

	for _, id := range expired {
		r.notifier.RequestResolved(id, protocol.StatusExpired)
	}
	return len(expired)
}

func (r *RequestRegistry) removePendingLocked(requestID string) {
	delete(r.pending, requestID)
	for i, id := range r.order {
		if id == requestID {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
}
