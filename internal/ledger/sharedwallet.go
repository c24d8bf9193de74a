package ledger

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/WeSplit-io/wesplit-core/internal/model"
	"github.com/WeSplit-io/wesplit-core/internal/retry"
)

// SharedWallets reads and reconciles shared-wallet member ledgers.
type SharedWallets struct {
	store Store
	log   *zap.Logger
	now   func() time.Time

	mu    sync.Mutex
	cache map[string]cachedWallet
}

// NewSharedWallets creates the repository.
func NewSharedWallets(store Store, log *zap.Logger) *SharedWallets {
	return &SharedWallets{
		store: store,
		log:   log,
		now:   time.Now,
		cache: make(map[string]cachedWallet),
	}
}

// Get returns the shared wallet, serving from cache within the TTL window.
func (r *SharedWallets) Get(ctx context.Context, id string) (*model.SharedWallet, error) {
	doc, err := r.getDoc(ctx, id, true)
	if err != nil {
		return nil, err
	}
	var w model.SharedWallet
	if err := doc.Decode(&w); err != nil {
		return nil, fmt.Errorf("failed to decode shared wallet %s: %w", id, err)
	}
	w.ID = doc.ID
	return &w, nil
}

func (r *SharedWallets) getDoc(ctx context.Context, id string, useCache bool) (*Document, error) {
	if useCache {
		r.mu.Lock()
		entry, ok := r.cache[id]
		r.mu.Unlock()
		if ok && r.now().Before(entry.expires) {
			return entry.doc, nil
		}
	}

	doc, err := r.store.Get(ctx, CollectionSharedWallets, id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, fmt.Errorf("shared wallet %s not found: %w", id, err)
		}
		return nil, fmt.Errorf("failed to fetch shared wallet %s: %w", id, err)
	}

	r.mu.Lock()
	r.cache[id] = cachedWallet{doc: doc, expires: r.now().Add(walletCacheTTL)}
	r.mu.Unlock()
	return doc, nil
}

// Invalidate drops the cached record so the next read is fresh.
func (r *SharedWallets) Invalidate(id string) {
	r.mu.Lock()
	delete(r.cache, id)
	r.mu.Unlock()
}

// MemberNet returns the member's withdrawable balance:
// totalContributed - totalWithdrawn. This, not the wallet's aggregate
// balance, caps what one member may take out.
func (r *SharedWallets) MemberNet(ctx context.Context, walletID, userID string) (uint64, error) {
	w, err := r.Get(ctx, walletID)
	if err != nil {
		return 0, err
	}
	m := w.Member(userID)
	if m == nil {
		return 0, fmt.Errorf("user %s is not a member of shared wallet %s", userID, walletID)
	}
	return m.NetContributed(), nil
}

// RecordContribution accumulates a successful funding transfer into the
// member's ledger. Conditional write, one retry, cache invalidated on every
// path.
func (r *SharedWallets) RecordContribution(ctx context.Context, walletID, userID string, amountMicro uint64) error {
	return r.adjust(ctx, walletID, userID, func(m *model.SharedWalletMember) {
		m.TotalContributed += amountMicro
	})
}

// RecordWithdrawal accumulates a successful withdrawal into the member's
// ledger.
func (r *SharedWallets) RecordWithdrawal(ctx context.Context, walletID, userID string, amountMicro uint64) error {
	return r.adjust(ctx, walletID, userID, func(m *model.SharedWalletMember) {
		m.TotalWithdrawn += amountMicro
	})
}

func (r *SharedWallets) adjust(ctx context.Context, walletID, userID string, apply func(*model.SharedWalletMember)) error {
	defer r.Invalidate(walletID)

	policy := retry.Once(500 * time.Millisecond)
	err := policy.Do(ctx, func() error {
		doc, err := r.getDoc(ctx, walletID, false)
		if err != nil {
			return err
		}
		var w model.SharedWallet
		if err := doc.Decode(&w); err != nil {
			return fmt.Errorf("failed to decode shared wallet %s: %w", walletID, err)
		}
		m := w.Member(userID)
		if m == nil {
			return fmt.Errorf("user %s is not a member of shared wallet %s", userID, walletID)
		}
		apply(m)
		_, err = r.store.Update(ctx, CollectionSharedWallets, walletID, doc.Rev, &w)
		return err
	})
	if err != nil {
		r.log.Warn("member ledger update failed after retry",
			zap.String("sharedWalletId", walletID),
			zap.String("userId", userID),
			zap.Error(err))
		return fmt.Errorf("failed to update member ledger: %w", err)
	}
	return nil
}
