// Package transaction orchestrates the app's payment flows: one dispatcher
// routing seven transaction contexts through fee calculation, balance
// validation, on-chain USDC transfer and off-chain ledger reconciliation.
package transaction

import (
	"context"
	"encoding/base64"
	"fmt"

	"github.com/gagliardetto/solana-go"

	"github.com/WeSplit-io/wesplit-core/vault"
)

// KeySource resolves signing keys: the user's personal wallet key and the
// program-controlled keys of split/shared wallets.
type KeySource interface {
	UserKey(ctx context.Context, userID string) (solana.PrivateKey, error)
	WalletKey(ctx context.Context, walletID string) (solana.PrivateKey, error)
}

const walletKeyField = "wallet_private_key"

// VaultKeySource reads keys from the secure vault. Keys are stored as
// base64 of the full 64-byte Solana private key.
type VaultKeySource struct {
	Vault *vault.Session
}

func (s *VaultKeySource) UserKey(ctx context.Context, userID string) (solana.PrivateKey, error) {
	return s.key(ctx, userID)
}

func (s *VaultKeySource) WalletKey(ctx context.Context, walletID string) (solana.PrivateKey, error) {
	return s.key(ctx, walletID)
}

func (s *VaultKeySource) key(ctx context.Context, owner string) (solana.PrivateKey, error) {
	encoded, found, err := s.Vault.Get(ctx, owner, walletKeyField)
	if err != nil {
		return nil, fmt.Errorf("failed to read key for %s: %w", owner, err)
	}
	if !found {
		return nil, fmt.Errorf("no signing key stored for %s", owner)
	}
	raw, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, fmt.Errorf("stored key for %s is corrupted: %w", owner, err)
	}
	if len(raw) != 64 {
		return nil, fmt.Errorf("invalid private key length: expected 64 bytes")
	}
	return solana.PrivateKey(raw), nil
}

// StoreKey persists a signing key through the vault.
func (s *VaultKeySource) StoreKey(ctx context.Context, owner string, key solana.PrivateKey) error {
	if len(key) != 64 {
		return fmt.Errorf("invalid private key length: expected 64 bytes")
	}
	return s.Vault.Store(ctx, owner, walletKeyField, base64.StdEncoding.EncodeToString(key))
}
