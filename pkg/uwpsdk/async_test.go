package uwpsdk

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/xian-network/go-uwp/pkg/protocol"
)

func TestAsyncBalance(t *testing.T) {
	fake := newFakeWallet(t)
	client := fake.client()
	client.SetToken(fakeToken)
	async := NewAsyncClient(client)
	defer async.Close()

	call := BalanceAsync(async, context.Background(), "currency")
	balance, err := call.Wait(context.Background())
	require.NoError(t, err)
	require.Equal(t, "100.5", balance)
	require.True(t, call.Done())
}

func TestAsyncCallsRunInOrder(t *testing.T) {
	fake := newFakeWallet(t)
	client := fake.client()
	client.SetToken(fakeToken)
	async := NewAsyncClient(client)
	defer async.Close()

	ctx := context.Background()
	first := WalletInfoAsync(async, ctx)
	second := BalanceAsync(async, ctx, "currency")
	third := SignMessageAsync(async, ctx, "hello")

	sig, err := third.Wait(ctx)
	require.NoError(t, err)
	require.Equal(t, "hello", sig.Message)

	// Earlier submissions completed before the later one was executed.
	require.True(t, first.Done())
	require.True(t, second.Done())
}

func TestAsyncWaitHonorsContext(t *testing.T) {
	fake := newFakeWallet(t)
	fake.pollsBeforeDecision = 1 << 30

	client := fake.client()
	client.AuthTimeout = 5 * time.Second
	async := NewAsyncClient(client)
	defer async.Close()

	call := ConnectAsync(async, context.Background(), protocol.PermissionBalance)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err := call.Wait(ctx)
	require.ErrorIs(t, err, context.DeadlineExceeded)
	require.False(t, call.Done())
}

func TestAsyncReuseAfterClose(t *testing.T) {
	fake := newFakeWallet(t)
	client := fake.client()
	client.SetToken(fakeToken)
	async := NewAsyncClient(client)

	ctx := context.Background()
	_, err := BalanceAsync(async, ctx, "currency").Wait(ctx)
	require.NoError(t, err)

	async.Close()
	async.Close() // idempotent

	// The next call transparently starts a fresh dispatch loop.
	status, err := StatusAsync(async, ctx).Wait(ctx)
	require.NoError(t, err)
	require.True(t, status.Available)
	async.Close()
}

func TestAsyncSubmitRacesClose(t *testing.T) {
	fake := newFakeWallet(t)
	client := fake.client()
	client.SetToken(fakeToken)
	async := NewAsyncClient(client)

	ctx := context.Background()
	var wg sync.WaitGroup
	for range 4 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range 25 {
				StatusAsync(async, ctx)
			}
		}()
	}

	// Closing while submissions are in flight must never panic; each
	// Close only stops the current loop, the next submit starts a new one.
	for range 10 {
		async.Close()
	}
	wg.Wait()
	async.Close()
}

func TestAsyncErrorsPropagate(t *testing.T) {
	fake := newFakeWallet(t)
	fake.decision = protocol.StatusDenied

	client := fake.client()
	async := NewAsyncClient(client)
	defer async.Close()

	ctx := context.Background()
	_, err := ConnectAsync(async, ctx, protocol.PermissionBalance).Wait(ctx)
	require.ErrorIs(t, err, protocol.ErrUserRejected)
}
