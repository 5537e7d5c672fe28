package chain

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"sync"

	"github.com/xian-network/go-uwp/pkg/protocol"
)

// Mock is an in-memory Client for tests and for running the daemon
// without a reachable node.
type Mock struct {
	mu        sync.Mutex
	balances  map[string]string
	nonces    map[string]uint64
	submitted [][]byte

	// SubmitErr, when set, is returned by every Submit call.
	SubmitErr error

	// RejectLog, when set, makes Submit report a rejected transaction
	// with this log line.
	RejectLog string
}

// NewMock creates an empty mock chain.
func NewMock() *Mock {
	return &Mock{
		balances: make(map[string]string),
		nonces:   make(map[string]uint64),
	}
}

// SetBalance seeds the balance of address on contract.
func (m *Mock) SetBalance(address, contract, balance string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.balances[balanceKey(address, contract, "")] = balance
}

// SetApprovedBalance seeds the approved amount for spender.
func (m *Mock) SetApprovedBalance(address, contract, spender, balance string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.balances[balanceKey(address, contract, spender)] = balance
}

func (m *Mock) Balance(_ context.Context, address, contract string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if b, ok := m.balances[balanceKey(address, contract, "")]; ok {
		return b, nil
	}
	return "0", nil
}

func (m *Mock) ApprovedBalance(_ context.Context, address, contract, spender string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if b, ok := m.balances[balanceKey(address, contract, spender)]; ok {
		return b, nil
	}
	return "0", nil
}

func (m *Mock) Nonce(_ context.Context, address string) (uint64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.nonces[address], nil
}

func (m *Mock) Submit(_ context.Context, rawTx []byte) (*protocol.TransactionResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.SubmitErr != nil {
		return nil, m.SubmitErr
	}
	if m.RejectLog != "" {
		return &protocol.TransactionResult{Success: false, Errors: []string{m.RejectLog}}, nil
	}

	m.submitted = append(m.submitted, rawTx)
	sum := sha256.Sum256(rawTx)
	return &protocol.TransactionResult{
		Success:         true,
		TransactionHash: strings.ToUpper(hex.EncodeToString(sum[:])),
	}, nil
}

// Submitted returns the raw transactions accepted so far.
func (m *Mock) Submitted() [][]byte {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([][]byte(nil), m.submitted...)
}

func balanceKey(address, contract, spender string) string {
	if spender == "" {
		return contract + ":" + address
	}
	return contract + ":" + address + ":" + spender
}
