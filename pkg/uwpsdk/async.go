package uwpsdk

import (
	"context"
	"sync"

	"github.com/xian-network/go-uwp/pkg/protocol"
)

// AsyncClient wraps a Client for callers that want fire-and-collect
// semantics. Operations are executed one at a time in submission order
// by a single dispatch goroutine.
type AsyncClient struct {
	client *Client

	mu   sync.Mutex
	jobs chan func()
}

// NewAsyncClient wraps an existing synchronous client.
func NewAsyncClient(client *Client) *AsyncClient {
	return &AsyncClient{client: client}
}

// Client returns the wrapped synchronous client.
func (a *AsyncClient) Client() *Client {
	return a.client
}

// Close stops the dispatch loop after the queued calls drain. The
// client remains usable: the next submitted call starts a fresh loop.
func (a *AsyncClient) Close() {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.jobs != nil {
		close(a.jobs)
		a.jobs = nil
	}
}

// submit hands a job to the dispatch loop, starting one if needed. The
// lock is held across the send so a concurrent Close cannot close the
// channel mid-send; the dispatch loop drains without taking the lock, so
// a full buffer only delays the caller, never deadlocks.
func (a *AsyncClient) submit(job func()) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.jobs == nil {
		a.jobs = make(chan func(), 64)
		go dispatch(a.jobs)
	}
	a.jobs <- job
}

func dispatch(jobs <-chan func()) {
	for job := range jobs {
		job()
	}
}

// Call is a pending result of an asynchronous operation.
type Call[T any] struct {
	done  chan struct{}
	value T
	err   error
}

func newCall[T any]() *Call[T] {
	return &Call[T]{done: make(chan struct{})}
}

// Done reports whether the call has completed.
func (c *Call[T]) Done() bool {
	select {
	case <-c.done:
		return true
	default:
		return false
	}
}

// Wait blocks until the call completes or the context ends. On context
// cancellation the underlying operation keeps running; a later Wait can
// still collect it.
func (c *Call[T]) Wait(ctx context.Context) (T, error) {
	select {
	case <-c.done:
		return c.value, c.err
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}

func (c *Call[T]) complete(value T, err error) {
	c.value = value
	c.err = err
	close(c.done)
}

// run schedules fn on the dispatch loop and returns its future.
func run[T any](a *AsyncClient, fn func() (T, error)) *Call[T] {
	call := newCall[T]()
	a.submit(func() {
		call.complete(fn())
	})
	return call
}

// ConnectAsync drives the authorization flow in the background.
func ConnectAsync(a *AsyncClient, ctx context.Context, permissions ...protocol.Permission) *Call[struct{}] {
	return run(a, func() (struct{}, error) {
		return struct{}{}, a.client.Connect(ctx, permissions...)
	})
}

// StatusAsync fetches the wallet status in the background.
func StatusAsync(a *AsyncClient, ctx context.Context) *Call[*protocol.StatusResponse] {
	return run(a, func() (*protocol.StatusResponse, error) {
		return a.client.Status(ctx)
	})
}

// WalletInfoAsync fetches wallet info in the background.
func WalletInfoAsync(a *AsyncClient, ctx context.Context) *Call[*protocol.WalletInfoResponse] {
	return run(a, func() (*protocol.WalletInfoResponse, error) {
		return a.client.WalletInfo(ctx)
	})
}

// BalanceAsync fetches a balance in the background.
func BalanceAsync(a *AsyncClient, ctx context.Context, contract string) *Call[string] {
	return run(a, func() (string, error) {
		return a.client.Balance(ctx, contract)
	})
}

// ApprovedBalanceAsync fetches an approved amount in the background.
func ApprovedBalanceAsync(a *AsyncClient, ctx context.Context, contract, spender string) *Call[string] {
	return run(a, func() (string, error) {
		return a.client.ApprovedBalance(ctx, contract, spender)
	})
}

// SendTransactionAsync submits a transaction in the background.
func SendTransactionAsync(a *AsyncClient, ctx context.Context, tx protocol.TransactionRequest) *Call[*protocol.TransactionResult] {
	return run(a, func() (*protocol.TransactionResult, error) {
		return a.client.SendTransaction(ctx, tx)
	})
}

// SignMessageAsync requests a signature in the background.
func SignMessageAsync(a *AsyncClient, ctx context.Context, message string) *Call[*protocol.SignatureResponse] {
	return run(a, func() (*protocol.SignatureResponse, error) {
		return a.client.SignMessage(ctx, message)
	})
}

// TokensAsync lists tokens in the background.
func TokensAsync(a *AsyncClient, ctx context.Context) *Call[[]protocol.TokenInfo] {
	return run(a, func() ([]protocol.TokenInfo, error) {
		return a.client.Tokens(ctx)
	})
}
