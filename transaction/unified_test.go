package transaction

import (
	"context"
	"testing"

	"github.com/gagliardetto/solana-go"
	"github.com/stretchr/testify/require"

	"github.com/WeSplit-io/wesplit-core/internal/model"
)

func TestWithdrawFromSplitWallet(t *testing.T) {
	env := newTestEnv(t)
	env.chain.balances[env.splitAddr] = 200 * microUSDC

	result := env.service.Withdraw(context.Background(), &model.WithdrawalParams{
		SourceType:         model.SourceSplitWallet,
		SourceID:           "split-1",
		UserID:             "user-1",
		Amount:             "100",
		DestinationAddress: env.userAddr.String(),
	})

	require.True(t, result.Success)
	require.NotEmpty(t, result.Signature)
	require.False(t, result.LedgerWarning)
}

func TestWithdrawFromSharedWallet(t *testing.T) {
	env := newTestEnv(t)
	env.chain.balances[env.sharedAddr] = 500 * microUSDC

	result := env.service.Withdraw(context.Background(), &model.WithdrawalParams{
		SourceType:         model.SourceSharedWallet,
		SourceID:           "shared-1",
		UserID:             "user-1",
		Amount:             "50",
		DestinationAddress: env.userAddr.String(),
	})

	require.True(t, result.Success)
	require.Equal(t, 1, env.cosigner.calls)
}

func TestWithdrawUnknownSourceType(t *testing.T) {
	env := newTestEnv(t)

	result := env.service.Withdraw(context.Background(), &model.WithdrawalParams{
		SourceType: "savings_account",
		SourceID:   "x",
		UserID:     "user-1",
		Amount:     "1",
	})

	require.False(t, result.Success)
	require.Equal(t, model.FailureDefinite, result.Kind)
	require.Contains(t, result.Error, "unknown withdrawal source type")
}

func TestValidateWithdrawalRejectsNonCreator(t *testing.T) {
	env := newTestEnv(t)
	env.chain.balances[env.splitAddr] = 200 * microUSDC

	v := env.service.ValidateWithdrawalBalance(context.Background(), &model.WithdrawalParams{
		SourceType:         model.SourceSplitWallet,
		SourceID:           "split-1",
		UserID:             "user-2",
		Amount:             "100",
		DestinationAddress: env.userAddr.String(),
	})

	require.False(t, v.CanWithdraw)
	require.Equal(t, "only the split creator may withdraw", v.Error)
}

func TestValidateWithdrawalDegenPair(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	// Mark the split as settled degen: loser pays, winner collects.
	doc, err := env.store.Get(ctx, "splitWallets", "split-1")
	require.NoError(t, err)
	var w model.SplitWallet
	require.NoError(t, doc.Decode(&w))
	w.DegenWinner = "user-2"
	w.DegenLoser = "user-1"
	_, err = env.store.Update(ctx, "splitWallets", "split-1", doc.Rev, &w)
	require.NoError(t, err)
	env.dispatcher.splits.Invalidate("split-1")

	env.chain.balances[env.splitAddr] = 200 * microUSDC

	params := &model.WithdrawalParams{
		SourceType:         model.SourceSplitWallet,
		SourceID:           "split-1",
		UserID:             "user-2",
		Amount:             "100",
		DestinationAddress: env.userAddr.String(),
	}
	v := env.service.ValidateWithdrawalBalance(context.Background(), params)
	require.True(t, v.CanWithdraw)

	// The creator loses their standing once a degen outcome is recorded.
	params.UserID = "user-3"
	v = env.service.ValidateWithdrawalBalance(context.Background(), params)
	require.False(t, v.CanWithdraw)
	require.Contains(t, v.Error, "winner or loser")
}

func TestValidateWithdrawalSharedExceedsContribution(t *testing.T) {
	env := newTestEnv(t)
	env.chain.balances[env.sharedAddr] = 1000 * microUSDC

	v := env.service.ValidateWithdrawalBalance(context.Background(), &model.WithdrawalParams{
		SourceType:         model.SourceSharedWallet,
		SourceID:           "shared-1",
		UserID:             "user-2", // net contribution: 50
		Amount:             "60",
		DestinationAddress: env.userAddr.String(),
	})

	require.False(t, v.CanWithdraw)
	require.Equal(t, "withdrawal exceeds your contributed balance: 50.000000 USDC available, 60.000000 USDC required", v.Error)
}

func TestValidateWithdrawalSharedFeeOnTop(t *testing.T) {
	env := newTestEnv(t)
	env.chain.balances[env.sharedAddr] = 1000 * microUSDC

	// External destination: 50 USDC plus the 2% fee exceeds user-2's net
	// contribution of exactly 50.
	v := env.service.ValidateWithdrawalBalance(context.Background(), &model.WithdrawalParams{
		SourceType:         model.SourceSharedWallet,
		SourceID:           "shared-1",
		UserID:             "user-2",
		Amount:             "50",
		DestinationAddress: solana.NewWallet().PublicKey().String(),
	})

	require.False(t, v.CanWithdraw)
	require.Equal(t, "withdrawal exceeds your contributed balance: 50.000000 USDC available, 51.000000 USDC required", v.Error)
}

func TestValidateWithdrawalSharedWithinCap(t *testing.T) {
	env := newTestEnv(t)

	v := env.service.ValidateWithdrawalBalance(context.Background(), &model.WithdrawalParams{
		SourceType:         model.SourceSharedWallet,
		SourceID:           "shared-1",
		UserID:             "user-1", // net contribution: 400
		Amount:             "100",
		DestinationAddress: env.userAddr.String(),
	})

	require.True(t, v.CanWithdraw)
	require.Equal(t, "400.000000", v.AvailableBalance)
	// Internal destination: no withdrawal fee on top.
	require.Equal(t, "100.000000", v.RequiredBalance)
}
