package ledger

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/WeSplit-io/wesplit-core/internal/model"
)

// AddressBook classifies destination addresses and resolves user wallets.
type AddressBook struct {
	store Store
	log   *zap.Logger
}

// NewAddressBook creates the address book over the document store.
func NewAddressBook(store Store, log *zap.Logger) *AddressBook {
	return &AddressBook{store: store, log: log}
}

// UserWalletAddress resolves the personal wallet address registered for a
// user.
func (b *AddressBook) UserWalletAddress(ctx context.Context, userID string) (string, error) {
	doc, err := b.store.Get(ctx, CollectionUserWallets, userID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return "", fmt.Errorf("no wallet registered for user %s", userID)
		}
		return "", fmt.Errorf("failed to resolve wallet for user %s: %w", userID, err)
	}
	var uw model.UserWallet
	if err := doc.Decode(&uw); err != nil {
		return "", fmt.Errorf("failed to decode user wallet %s: %w", userID, err)
	}
	return uw.WalletAddress, nil
}

// IsInternal reports whether an address belongs to an app-controlled wallet:
// one of the directly known addresses, a registered user wallet, a shared
// wallet, or a split wallet. Internal destinations are exempt from the
// withdrawal fee.
//
// A store error during the lookups classifies the address as internal. A
// wrong waiver costs the company a small fee; a wrong charge takes user
// money, so classification fails toward the user.
func (b *AddressBook) IsInternal(ctx context.Context, address string, known ...string) bool {
	for _, k := range known {
		if k != "" && k == address {
			return true
		}
	}

	for _, collection := range []string{CollectionUserWallets, CollectionSharedWallets, CollectionSplitWallets} {
		docs, err := b.store.Query(ctx, collection, []Filter{{Field: "walletAddress", Value: address}}, 1)
		if err != nil {
			b.log.Warn("internal-address lookup failed, waiving fee",
				zap.String("collection", collection),
				zap.String("address", address),
				zap.Error(err))
			return true
		}
		if len(docs) > 0 {
			return true
		}
	}
	return false
}
