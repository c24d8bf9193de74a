package transaction

import (
	"context"
	"testing"

	"github.com/gagliardetto/solana-go"
	"go.uber.org/zap"

	"github.com/WeSplit-io/wesplit-core/internal/client"
	"github.com/WeSplit-io/wesplit-core/internal/fees"
	"github.com/WeSplit-io/wesplit-core/internal/ledger"
	"github.com/WeSplit-io/wesplit-core/internal/model"
)

const microUSDC = uint64(1_000_000)

type fakeChain struct {
	mint     solana.PublicKey
	balances map[solana.PublicKey]uint64 // keyed by owner
	missing  map[solana.PublicKey]bool   // accounts that do not exist

	submitErr     error
	confirmStatus client.SigStatus
	submitCount   int
	lastSubmitted *solana.Transaction
}

func newFakeChain() *fakeChain {
	return &fakeChain{
		mint:          solana.MustPublicKeyFromBase58("EPjFWdd5AufqSSqeM2qN1xzybapC8G4wEGGkZwyTDt1v"),
		balances:      make(map[solana.PublicKey]uint64),
		missing:       make(map[solana.PublicKey]bool),
		confirmStatus: client.SigStatusConfirmed,
	}
}

func (c *fakeChain) Mint() solana.PublicKey { return c.mint }

func (c *fakeChain) LatestBlockhash(context.Context) (solana.Hash, error) {
	return solana.Hash{1}, nil
}

func (c *fakeChain) AccountExists(_ context.Context, account solana.PublicKey) (bool, error) {
	return !c.missing[account], nil
}

func (c *fakeChain) TokenBalance(_ context.Context, owner solana.PublicKey) (uint64, error) {
	return c.balances[owner], nil
}

func (c *fakeChain) Submit(_ context.Context, tx *solana.Transaction) (solana.Signature, error) {
	if c.submitErr != nil {
		return solana.Signature{}, c.submitErr
	}
	c.submitCount++
	c.lastSubmitted = tx
	return solana.Signature{7}, nil
}

func (c *fakeChain) SignatureStatus(context.Context, solana.Signature) (client.SigStatus, error) {
	return c.confirmStatus, nil
}

func (c *fakeChain) Confirm(context.Context, solana.Signature) (client.SigStatus, error) {
	return c.confirmStatus, nil
}

type fakeCoSigner struct {
	calls int
	err   error
}

func (s *fakeCoSigner) CoSign(_ context.Context, tx *solana.Transaction) (*solana.Transaction, error) {
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	return tx, nil
}

type fakeKeys struct {
	keys map[string]solana.PrivateKey
}

func (k *fakeKeys) UserKey(_ context.Context, userID string) (solana.PrivateKey, error) {
	return k.lookup(userID)
}

func (k *fakeKeys) WalletKey(_ context.Context, walletID string) (solana.PrivateKey, error) {
	return k.lookup(walletID)
}

func (k *fakeKeys) lookup(owner string) (solana.PrivateKey, error) {
	key, ok := k.keys[owner]
	if !ok {
		return nil, errNoKey(owner)
	}
	cp := make(solana.PrivateKey, len(key))
	copy(cp, key)
	return cp, nil
}

type errNoKey string

func (e errNoKey) Error() string { return "no signing key stored for " + string(e) }

// testEnv bundles a dispatcher over an in-memory ledger with seeded users
// and wallets.
type testEnv struct {
	chain      *fakeChain
	cosigner   *fakeCoSigner
	store      *ledger.MemStore
	dispatcher *Dispatcher
	service    *WithdrawalService

	userAddr   solana.PublicKey
	userKey    solana.PrivateKey
	splitAddr  solana.PublicKey
	sharedAddr solana.PublicKey
	feeWallet  solana.PublicKey
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	log := zap.NewNop()
	chain := newFakeChain()
	cosigner := &fakeCoSigner{}
	store := ledger.NewMemStore()

	userWallet := solana.NewWallet()
	splitWallet := solana.NewWallet()
	sharedWallet := solana.NewWallet()

	ctx := context.Background()
	mustCreate(t, store, ctx, ledger.CollectionUserWallets, "user-1", &model.UserWallet{
		UserID:        "user-1",
		WalletAddress: userWallet.PublicKey().String(),
	})
	mustCreate(t, store, ctx, ledger.CollectionSplitWallets, "split-1", &model.SplitWallet{
		ID:            "split-1",
		WalletAddress: splitWallet.PublicKey().String(),
		CreatorID:     "user-1",
		BillID:        "bill-1",
		Participants: []model.SplitParticipant{
			{UserID: "user-1", AmountOwed: 100 * microUSDC, AmountPaid: 60 * microUSDC, Status: model.StatusPending},
			{UserID: "user-2", AmountOwed: 100 * microUSDC, Status: model.StatusPending},
		},
	})
	mustCreate(t, store, ctx, ledger.CollectionSharedWallets, "shared-1", &model.SharedWallet{
		ID:            "shared-1",
		WalletAddress: sharedWallet.PublicKey().String(),
		CreatorID:     "user-1",
		Members: []model.SharedWalletMember{
			{UserID: "user-1", TotalContributed: 500 * microUSDC, TotalWithdrawn: 100 * microUSDC},
			{UserID: "user-2", TotalContributed: 50 * microUSDC},
		},
	})

	keys := &fakeKeys{keys: map[string]solana.PrivateKey{
		"user-1":   userWallet.PrivateKey,
		"user-2":   solana.NewWallet().PrivateKey,
		"split-1":  splitWallet.PrivateKey,
		"shared-1": sharedWallet.PrivateKey,
	}}

	table := fees.DefaultTable()
	feeWallet := solana.NewWallet().PublicKey()
	dispatcher := NewDispatcher(Config{
		Chain:     chain,
		CoSigner:  cosigner,
		Keys:      keys,
		Splits:    ledger.NewSplitWallets(store, log),
		Shareds:   ledger.NewSharedWallets(store, log),
		Addresses: ledger.NewAddressBook(store, log),
		Fees:      table,
		Processor: NewProcessor(chain, table, feeWallet, log),
		Log:       log,
	})

	return &testEnv{
		chain:      chain,
		cosigner:   cosigner,
		store:      store,
		dispatcher: dispatcher,
		service:    NewWithdrawalService(dispatcher),
		userAddr:   userWallet.PublicKey(),
		userKey:    userWallet.PrivateKey,
		splitAddr:  splitWallet.PublicKey(),
		sharedAddr: sharedWallet.PublicKey(),
		feeWallet:  feeWallet,
	}
}

func mustCreate(t *testing.T, store *ledger.MemStore, ctx context.Context, collection, id string, data any) {
	t.Helper()
	if _, err := store.Create(ctx, collection, id, data); err != nil {
		t.Fatalf("failed to seed %s/%s: %v", collection, id, err)
	}
}
