// Package chain talks to the Xian network on behalf of the wallet and
// holds the wallet's key material and lock state. The protocol server
// never touches the network or the private key directly.
package chain

import (
	"context"

	"github.com/xian-network/go-uwp/pkg/protocol"
)

// Client queries state and submits signed transactions to a chain node.
type Client interface {
	// Balance returns the token balance of address on contract as a
	// decimal string. Unknown accounts report "0".
	Balance(ctx context.Context, address, contract string) (string, error)

	// ApprovedBalance returns the amount address has approved spender to
	// transfer on contract.
	ApprovedBalance(ctx context.Context, address, contract, spender string) (string, error)

	// Nonce returns the next transaction nonce for address.
	Nonce(ctx context.Context, address string) (uint64, error)

	// Submit broadcasts a signed transaction. A non-nil result with
	// Success false means the node accepted the request but rejected the
	// transaction; transport failures return an error instead.
	Submit(ctx context.Context, rawTx []byte) (*protocol.TransactionResult, error)
}
