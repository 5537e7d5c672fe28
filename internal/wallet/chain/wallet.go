package chain

import (
	"crypto/ed25519"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/xian-network/go-uwp/pkg/cryptox"
	"github.com/xian-network/go-uwp/pkg/protocol"
)

// CurrencyContract is the chain's native token contract.
const CurrencyContract = "currency"

// Wallet holds the key pair, lock state and token registry. It starts
// locked; a correct password is required before any signing operation.
type Wallet struct {
	mu sync.Mutex

	priv         ed25519.PrivateKey
	address      string
	passwordHash string
	locked       bool

	walletType protocol.WalletType
	networkURL string
	chainID    string

	tokens     map[string]protocol.TokenInfo
	tokenOrder []string
}

// NewWallet generates a fresh key pair protected by password.
func NewWallet(password string, walletType protocol.WalletType, networkURL, chainID string) (*Wallet, error) {
	_, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("generating wallet key: %w", err)
	}
	return newWallet(priv, password, walletType, networkURL, chainID)
}

// NewWalletFromSeed derives a deterministic wallet from a 32-byte seed.
func NewWalletFromSeed(seed []byte, password string, walletType protocol.WalletType, networkURL, chainID string) (*Wallet, error) {
	if len(seed) != ed25519.SeedSize {
		return nil, fmt.Errorf("wallet seed must be %d bytes", ed25519.SeedSize)
	}
	return newWallet(ed25519.NewKeyFromSeed(seed), password, walletType, networkURL, chainID)
}

func newWallet(priv ed25519.PrivateKey, password string, walletType protocol.WalletType, networkURL, chainID string) (*Wallet, error) {
	hash, err := cryptox.HashPassword(password)
	if err != nil {
		return nil, fmt.Errorf("hashing wallet password: %w", err)
	}

	w := &Wallet{
		priv:         priv,
		address:      hex.EncodeToString(priv.Public().(ed25519.PublicKey)),
		passwordHash: hash,
		locked:       true,
		walletType:   walletType,
		networkURL:   networkURL,
		chainID:      chainID,
		tokens:       make(map[string]protocol.TokenInfo),
	}

	// The native token is always registered.
	w.addTokenLocked(protocol.TokenInfo{
		ContractAddress: CurrencyContract,
		TokenName:       "Xian",
		TokenSymbol:     "XIAN",
		Decimals:        8,
	})
	return w, nil
}

// Address returns the hex-encoded public key.
func (w *Wallet) Address() string { return w.address }

// TruncatedAddress returns a display form of the address.
func (w *Wallet) TruncatedAddress() string {
	if len(w.address) <= 16 {
		return w.address
	}
	return w.address[:8] + "..." + w.address[len(w.address)-8:]
}

func (w *Wallet) Type() protocol.WalletType { return w.walletType }
func (w *Wallet) NetworkURL() string        { return w.networkURL }
func (w *Wallet) ChainID() string           { return w.chainID }

// Locked reports the current lock state.
func (w *Wallet) Locked() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.locked
}

// Unlock verifies the password and unlocks the wallet. Unlocking an
// already unlocked wallet still verifies the password.
func (w *Wallet) Unlock(password string) error {
	if err := cryptox.VerifyPassword(password, w.passwordHash); err != nil {
		if errors.Is(err, cryptox.ErrPasswordMismatch) {
			return protocol.ErrUnauthorized.WithDetail("invalid password")
		}
		return protocol.ErrServerError.WithDetail("password verification failed")
	}

	w.mu.Lock()
	w.locked = false
	w.mu.Unlock()
	return nil
}

// Lock locks the wallet. Idempotent.
func (w *Wallet) Lock() {
	w.mu.Lock()
	w.locked = true
	w.mu.Unlock()
}

// SignMessage signs an arbitrary message and returns the hex signature.
// Fails when the wallet is locked.
func (w *Wallet) SignMessage(message string) (string, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.locked {
		return "", protocol.ErrWalletLocked
	}
	return hex.EncodeToString(ed25519.Sign(w.priv, []byte(message))), nil
}

// VerifyMessage checks a hex signature produced by SignMessage.
func (w *Wallet) VerifyMessage(message, signature string) bool {
	sig, err := hex.DecodeString(signature)
	if err != nil {
		return false
	}
	return ed25519.Verify(w.priv.Public().(ed25519.PublicKey), []byte(message), sig)
}

// BuildTransaction assembles and signs a transaction for submission. The
// payload is serialized with sorted keys so the signature is reproducible
// by the node.
func (w *Wallet) BuildTransaction(tx protocol.TransactionRequest, nonce uint64) ([]byte, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.locked {
		return nil, protocol.ErrWalletLocked
	}

	kwargs := tx.Kwargs
	if kwargs == nil {
		kwargs = map[string]any{}
	}
	payload := map[string]any{
		"chain_id":        w.chainID,
		"contract":        tx.Contract,
		"function":        tx.Function,
		"kwargs":          kwargs,
		"nonce":           nonce,
		"sender":          w.address,
		"stamps_supplied": tx.StampsSupplied,
	}

	// Map marshaling sorts keys, which is exactly the canonical form the
	// signature covers.
	canonical, err := json.Marshal(payload)
	if err != nil {
		return nil, protocol.ErrInvalidRequest.WithDetail("transaction kwargs are not serializable")
	}

	envelope := map[string]any{
		"payload": json.RawMessage(canonical),
		"metadata": map[string]any{
			"signature": hex.EncodeToString(ed25519.Sign(w.priv, canonical)),
		},
	}
	raw, err := json.Marshal(envelope)
	if err != nil {
		return nil, protocol.ErrServerError.WithDetail("transaction serialization failed")
	}
	return raw, nil
}

// AddToken registers or updates a token in the wallet's token list.
func (w *Wallet) AddToken(info protocol.TokenInfo) error {
	if info.ContractAddress == "" {
		return protocol.ErrInvalidRequest.WithDetail("contract_address is required")
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	w.addTokenLocked(info)
	return nil
}

func (w *Wallet) addTokenLocked(info protocol.TokenInfo) {
	if _, ok := w.tokens[info.ContractAddress]; !ok {
		w.tokenOrder = append(w.tokenOrder, info.ContractAddress)
	}
	w.tokens[info.ContractAddress] = info
}

// Tokens returns the registered tokens in registration order, the native
// token first.
func (w *Wallet) Tokens() []protocol.TokenInfo {
	w.mu.Lock()
	defer w.mu.Unlock()

	out := make([]protocol.TokenInfo, 0, len(w.tokenOrder))
	for _, contract := range w.tokenOrder {
		out = append(out, w.tokens[contract])
	}
	return out
}
