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

const walletCacheTTL = 5 * time.Second

type cachedWallet struct {
	doc     *Document
	expires time.Time
}

// SplitWallets reads and reconciles split-wallet records. Reads go through a
// short-lived cache; every write path invalidates it.
type SplitWallets struct {
	store Store
	log   *zap.Logger
	now   func() time.Time

	mu    sync.Mutex
	cache map[string]cachedWallet
}

// NewSplitWallets creates the repository.
func NewSplitWallets(store Store, log *zap.Logger) *SplitWallets {
	return &SplitWallets{
		store: store,
		log:   log,
		now:   time.Now,
		cache: make(map[string]cachedWallet),
	}
}

// Get returns the split wallet, serving from cache within the TTL window.
func (r *SplitWallets) Get(ctx context.Context, id string) (*model.SplitWallet, error) {
	doc, err := r.getDoc(ctx, id, true)
	if err != nil {
		return nil, err
	}
	var w model.SplitWallet
	if err := doc.Decode(&w); err != nil {
		return nil, fmt.Errorf("failed to decode split wallet %s: %w", id, err)
	}
	w.ID = doc.ID
	return &w, nil
}

func (r *SplitWallets) getDoc(ctx context.Context, id string, useCache bool) (*Document, error) {
	if useCache {
		r.mu.Lock()
		entry, ok := r.cache[id]
		r.mu.Unlock()
		if ok && r.now().Before(entry.expires) {
			return entry.doc, nil
		}
	}

	doc, err := r.store.Get(ctx, CollectionSplitWallets, id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, fmt.Errorf("split wallet %s not found: %w", id, err)
		}
		return nil, fmt.Errorf("failed to fetch split wallet %s: %w", id, err)
	}

	r.mu.Lock()
	r.cache[id] = cachedWallet{doc: doc, expires: r.now().Add(walletCacheTTL)}
	r.mu.Unlock()
	return doc, nil
}

// Invalidate drops the cached record so the next read is fresh.
func (r *SplitWallets) Invalidate(id string) {
	r.mu.Lock()
	delete(r.cache, id)
	r.mu.Unlock()
}

// CreditParticipant records a successful on-chain contribution against the
// participant's ledger entry. The amount accumulates (never overwrites) and
// is clamped to amountOwed; status flips to paid (fair) or locked (degen)
// only at full payment. The write is conditional on the document revision
// and retried once after a fixed backoff. The cache is invalidated on every
// path, including exhausted retries.
func (r *SplitWallets) CreditParticipant(ctx context.Context, walletID, userID string, amountMicro uint64, signature string, lock bool) error {
	defer r.Invalidate(walletID)

	policy := retry.Once(500 * time.Millisecond)
	err := policy.Do(ctx, func() error {
		return r.creditOnce(ctx, walletID, userID, amountMicro, signature, lock)
	})
	if err != nil {
		r.log.Warn("participant ledger update failed after retry",
			zap.String("splitWalletId", walletID),
			zap.String("userId", userID),
			zap.Error(err))
		return fmt.Errorf("failed to update participant ledger: %w", err)
	}
	return nil
}

func (r *SplitWallets) creditOnce(ctx context.Context, walletID, userID string, amountMicro uint64, signature string, lock bool) error {
	// Fresh read: the conditional write needs the current revision.
	doc, err := r.getDoc(ctx, walletID, false)
	if err != nil {
		return err
	}

	var w model.SplitWallet
	if err := doc.Decode(&w); err != nil {
		return fmt.Errorf("failed to decode split wallet %s: %w", walletID, err)
	}

	p := w.Participant(userID)
	if p == nil {
		return fmt.Errorf("user %s is not a participant of split wallet %s", userID, walletID)
	}

	p.AmountPaid += amountMicro
	if p.AmountPaid > p.AmountOwed {
		p.AmountPaid = p.AmountOwed
	}
	p.Signature = signature
	if p.AmountPaid >= p.AmountOwed {
		if lock {
			p.Status = model.StatusLocked
		} else {
			p.Status = model.StatusPaid
		}
		paidAt := r.now()
		p.PaidAt = &paidAt
	}

	if _, err := r.store.Update(ctx, CollectionSplitWallets, walletID, doc.Rev, &w); err != nil {
		return err
	}
	return nil
}
