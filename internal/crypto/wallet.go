package crypto

import (
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/concilium/ledgercore/internal/core"
)

// Define custom errors for WalletKey management for clearer failure states.
var (
	ErrWalletKeyInit      = errors.New("wallet key initialization error")
	ErrWalletKeyNotFound  = errors.New("wallet key file not found")
	ErrWalletKeyCorrupted = errors.New("wallet key file corrupted or invalid format")
	ErrWalletKeySave      = errors.New("failed to save wallet key")
	ErrWalletKeyLoad      = errors.New("failed to load wallet key")
)

// WalletKey wraps a secp256k1 KeyPair with its derived ledger address.
// Kept as a convenience for the CLI's keygen command; the app/contract
// packages never hold one of these themselves, only the raw KeyPair.
type WalletKey struct {
	mu      sync.RWMutex
	pair    KeyPair
	address core.Address
}

// NewWalletKey generates a fresh key pair and its derived address.
func NewWalletKey() (*WalletKey, error) {
	pair, err := CreateKeyPair()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrWalletKeyInit, err)
	}
	return &WalletKey{
		pair:    pair,
		address: AddressFromPublicKey(pair.PublicKey),
	}, nil
}

// KeyPair returns the wallet's raw key pair.
func (wk *WalletKey) KeyPair() KeyPair {
	wk.mu.RLock()
	defer wk.mu.RUnlock()
	return wk.pair
}

// Address returns the wallet's raw ledger address.
func (wk *WalletKey) Address() core.Address {
	wk.mu.RLock()
	defer wk.mu.RUnlock()
	return wk.address
}

// Save writes the private key to filePath as a single hex-encoded line.
// There is no password-based encryption here; that belongs to a
// dedicated key-file format this package doesn't define.
func (wk *WalletKey) Save(filePath string) error {
	wk.mu.RLock()
	defer wk.mu.RUnlock()

	dir := filepath.Dir(filePath)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return fmt.Errorf("%w: failed to create directory %s: %v", ErrWalletKeySave, dir, err)
	}
	line := hex.EncodeToString(wk.pair.PrivateKey[:]) + "\n"
	if err := os.WriteFile(filePath, []byte(line), 0600); err != nil {
		return fmt.Errorf("%w: failed to write wallet key to file %s: %v", ErrWalletKeySave, filePath, err)
	}
	return nil
}

// LoadWalletKey reads a private key previously written by Save and
// rebuilds the wallet's key pair and address.
func LoadWalletKey(filePath string) (*WalletKey, error) {
	raw, err := os.ReadFile(filePath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: file not found at %s", ErrWalletKeyNotFound, filePath)
		}
		return nil, fmt.Errorf("%w: failed to read file %s: %v", ErrWalletKeyLoad, filePath, err)
	}
	decoded, err := hex.DecodeString(strings.TrimSpace(string(raw)))
	if err != nil || len(decoded) != PrivateKeyLength {
		return nil, fmt.Errorf("%w: %s", ErrWalletKeyCorrupted, filePath)
	}
	var priv [PrivateKeyLength]byte
	copy(priv[:], decoded)

	pair, err := KeyPairFromPrivate(priv)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrWalletKeyCorrupted, err)
	}
	return &WalletKey{
		pair:    pair,
		address: AddressFromPublicKey(pair.PublicKey),
	}, nil
}
