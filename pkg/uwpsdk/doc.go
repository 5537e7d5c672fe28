/*
Package uwpsdk provides a client SDK for DApps talking to a local wallet
daemon over the universal wallet protocol.

# Client

Client is the synchronous entry point. Connect drives the full
authorization flow: it probes for a running wallet, files an
authorization request and polls until the wallet's owner approves or
denies it:

	client := uwpsdk.NewClient("My DApp", "https://mydapp.example")
	if err := client.Connect(ctx, protocol.PermissionWalletInfo, protocol.PermissionBalance); err != nil {
		// protocol.ErrUserRejected if the owner denied the request
	}

	info, err := client.WalletInfo(ctx)
	balance, err := client.Balance(ctx, "currency")

Read calls are cached briefly so polling UIs do not hammer the wallet;
submitting a transaction invalidates cached balances. Disconnect revokes
the session and clears all client state.

# AsyncClient

AsyncClient wraps a Client for event-loop style DApps. Every operation
returns immediately with a Call future; calls are executed one at a time
in request order:

	async := uwpsdk.NewAsyncClient(client)
	call := uwpsdk.BalanceAsync(async, ctx, "currency")
	// ... do other work ...
	balance, err := call.Wait(ctx)

An AsyncClient that has been closed restarts its dispatch loop
transparently on the next call.

# Events

Subscribe opens the wallet's push channel and delivers server-side
events (new authorization requests, lock state changes, shutdown) until
the context ends or the wallet closes the connection.
*/
package uwpsdk
