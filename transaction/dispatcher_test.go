package transaction

import (
	"context"
	"testing"

	"github.com/gagliardetto/solana-go"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/WeSplit-io/wesplit-core/internal/ledger"
	"github.com/WeSplit-io/wesplit-core/internal/model"
)

func sendParams(userID, amount, recipient string) *model.TransactionParams {
	return &model.TransactionParams{
		Context:  model.ContextSend,
		UserID:   userID,
		Amount:   amount,
		Currency: model.CurrencyUSDC,
		Send:     &model.SendParams{RecipientAddress: recipient},
	}
}

func TestValidateSendInsufficientBalance(t *testing.T) {
	env := newTestEnv(t)
	env.chain.balances[env.userAddr] = 10 * microUSDC

	v := env.dispatcher.ValidateTransaction(context.Background(),
		sendParams("user-1", "10", solana.NewWallet().PublicKey().String()))

	require.False(t, v.CanExecute)
	require.Equal(t, "insufficient balance: 10.000000 USDC available, 10.150000 USDC required", v.Error)
	require.Equal(t, "10.150000", v.RequiredBalance)
	require.Equal(t, "10.000000", v.AvailableBalance)
	require.Equal(t, "0.150000", v.Fee)
}

func TestValidateSendSufficientBalance(t *testing.T) {
	env := newTestEnv(t)
	env.chain.balances[env.userAddr] = 20 * microUSDC

	v := env.dispatcher.ValidateTransaction(context.Background(),
		sendParams("user-1", "10", solana.NewWallet().PublicKey().String()))

	require.True(t, v.CanExecute)
	require.Empty(t, v.Error)
	require.Equal(t, "10.150000", v.RequiredBalance)
}

func TestValidateRejectsSOL(t *testing.T) {
	env := newTestEnv(t)
	params := sendParams("user-1", "1", solana.NewWallet().PublicKey().String())
	params.Currency = model.CurrencySOL

	v := env.dispatcher.ValidateTransaction(context.Background(), params)
	require.False(t, v.CanExecute)
	require.Contains(t, v.Error, "SOL transfers are not supported")
}

func TestValidateRejectsZeroAndMalformedAmounts(t *testing.T) {
	env := newTestEnv(t)

	v := env.dispatcher.ValidateTransaction(context.Background(),
		sendParams("user-1", "0", solana.NewWallet().PublicKey().String()))
	require.False(t, v.CanExecute)
	require.Equal(t, "amount must be greater than zero", v.Error)

	v = env.dispatcher.ValidateTransaction(context.Background(),
		sendParams("user-1", "-5", solana.NewWallet().PublicKey().String()))
	require.False(t, v.CanExecute)
	require.Contains(t, v.Error, "invalid amount")

	v = env.dispatcher.ValidateTransaction(context.Background(),
		sendParams("user-1", "", solana.NewWallet().PublicKey().String()))
	require.False(t, v.CanExecute)
	require.Contains(t, v.Error, "amount is required")
}

func TestValidateSharedWithdrawCapsAtNetContribution(t *testing.T) {
	env := newTestEnv(t)
	// On-chain the wallet holds plenty; the cap is the member's own net.
	env.chain.balances[env.sharedAddr] = 1000 * microUSDC

	params := &model.TransactionParams{
		Context:  model.ContextSharedWalletWithdraw,
		UserID:   "user-1", // net contribution: 500 - 100 = 400
		Amount:   "500",
		Currency: model.CurrencyUSDC,
		Shared: &model.SharedWalletParams{
			SharedWalletID:     "shared-1",
			DestinationAddress: solana.NewWallet().PublicKey().String(),
		},
	}
	v := env.dispatcher.ValidateTransaction(context.Background(), params)
	require.False(t, v.CanExecute)
	require.Equal(t, "400.000000", v.AvailableBalance)

	params.Amount = "100"
	v = env.dispatcher.ValidateTransaction(context.Background(), params)
	require.True(t, v.CanExecute)
}

func TestValidateWithdrawFeeWaivedForInternalDestination(t *testing.T) {
	env := newTestEnv(t)
	params := &model.TransactionParams{
		Context:  model.ContextSharedWalletWithdraw,
		UserID:   "user-1",
		Amount:   "100",
		Currency: model.CurrencyUSDC,
		Shared: &model.SharedWalletParams{
			SharedWalletID:     "shared-1",
			DestinationAddress: env.userAddr.String(), // registered app wallet
		},
	}
	v := env.dispatcher.ValidateTransaction(context.Background(), params)
	require.True(t, v.CanExecute)
	require.Equal(t, "100.000000", v.RequiredBalance)
	require.Equal(t, "0.000000", v.Fee)

	params.Shared.DestinationAddress = solana.NewWallet().PublicKey().String()
	v = env.dispatcher.ValidateTransaction(context.Background(), params)
	require.Equal(t, "102.000000", v.RequiredBalance)
	require.Equal(t, "2.000000", v.Fee)
}

func TestExecuteSendSuccess(t *testing.T) {
	env := newTestEnv(t)

	result := env.dispatcher.ExecuteTransaction(context.Background(),
		sendParams("user-1", "10", solana.NewWallet().PublicKey().String()))

	require.True(t, result.Success)
	require.NotEmpty(t, result.Signature)
	require.Equal(t, result.Signature, result.TxID)
	require.Equal(t, "0.150000", result.Fee)
	require.Equal(t, "10.000000", result.NetAmount)
	require.Equal(t, 1, env.chain.submitCount)
}

func TestExecuteRejectsInvalidRecipient(t *testing.T) {
	env := newTestEnv(t)

	result := env.dispatcher.ExecuteTransaction(context.Background(),
		sendParams("user-1", "10", "not-an-address"))
	require.False(t, result.Success)
	require.Equal(t, model.FailureDefinite, result.Kind)
	require.Contains(t, result.Error, "invalid recipient address")
	require.Equal(t, 0, env.chain.submitCount)
}

func TestExecuteSubmitTimeoutIsUncertain(t *testing.T) {
	env := newTestEnv(t)
	env.chain.submitErr = context.DeadlineExceeded

	result := env.dispatcher.ExecuteTransaction(context.Background(),
		sendParams("user-1", "10", solana.NewWallet().PublicKey().String()))

	require.False(t, result.Success)
	require.Equal(t, model.FailureUncertain, result.Kind)
	require.Contains(t, result.Error, "may still complete on-chain")
	require.Contains(t, result.Error, "Check your transaction history")
}

func TestExecuteSplitContributionUpdatesLedger(t *testing.T) {
	env := newTestEnv(t)

	result := env.dispatcher.ExecuteTransaction(context.Background(), &model.TransactionParams{
		Context:  model.ContextSplitContribution,
		UserID:   "user-1", // owes 100, already paid 60
		Amount:   "40",
		Currency: model.CurrencyUSDC,
		Split:    &model.SplitParams{SplitWalletID: "split-1"},
	})

	require.True(t, result.Success)
	require.False(t, result.LedgerWarning)

	doc, err := env.store.Get(context.Background(), ledger.CollectionSplitWallets, "split-1")
	require.NoError(t, err)
	var w model.SplitWallet
	require.NoError(t, doc.Decode(&w))
	p := w.Participant("user-1")
	require.Equal(t, 100*microUSDC, p.AmountPaid)
	require.Equal(t, model.StatusPaid, p.Status)
	require.Equal(t, result.Signature, p.Signature)
}

func TestExecuteDegenLockFlipsStatusToLocked(t *testing.T) {
	env := newTestEnv(t)

	result := env.dispatcher.ExecuteTransaction(context.Background(), &model.TransactionParams{
		Context:  model.ContextDegenLock,
		UserID:   "user-2", // owes 100, paid 0
		Amount:   "100",
		Currency: model.CurrencyUSDC,
		Split:    &model.SplitParams{SplitWalletID: "split-1"},
	})

	require.True(t, result.Success)

	doc, err := env.store.Get(context.Background(), ledger.CollectionSplitWallets, "split-1")
	require.NoError(t, err)
	var w model.SplitWallet
	require.NoError(t, doc.Decode(&w))
	require.Equal(t, model.StatusLocked, w.Participant("user-2").Status)
}

func TestExecuteContributionRejectsNonParticipant(t *testing.T) {
	env := newTestEnv(t)

	result := env.dispatcher.ExecuteTransaction(context.Background(), &model.TransactionParams{
		Context:  model.ContextSplitContribution,
		UserID:   "user-3",
		Amount:   "10",
		Currency: model.CurrencyUSDC,
		Split:    &model.SplitParams{SplitWalletID: "split-1"},
	})

	require.False(t, result.Success)
	require.Equal(t, model.FailureDefinite, result.Kind)
	require.Contains(t, result.Error, "not a participant")
	require.Equal(t, 0, env.chain.submitCount)
}

func TestExecuteSharedFundingRecordsContribution(t *testing.T) {
	env := newTestEnv(t)

	result := env.dispatcher.ExecuteTransaction(context.Background(), &model.TransactionParams{
		Context:  model.ContextSharedWalletFunding,
		UserID:   "user-2",
		Amount:   "50",
		Currency: model.CurrencyUSDC,
		Shared:   &model.SharedWalletParams{SharedWalletID: "shared-1"},
	})

	require.True(t, result.Success)
	// Funding between app wallets is free.
	require.Equal(t, "0.000000", result.Fee)
	require.Equal(t, "50.000000", result.NetAmount)

	doc, err := env.store.Get(context.Background(), ledger.CollectionSharedWallets, "shared-1")
	require.NoError(t, err)
	var w model.SharedWallet
	require.NoError(t, doc.Decode(&w))
	require.Equal(t, 100*microUSDC, w.Member("user-2").TotalContributed)
}

func TestExecuteSplitWithdrawalCreatorOnly(t *testing.T) {
	env := newTestEnv(t)
	env.chain.balances[env.splitAddr] = 200 * microUSDC

	result := env.dispatcher.ExecuteTransaction(context.Background(), &model.TransactionParams{
		Context:  model.ContextSplitWithdrawal,
		UserID:   "user-2",
		Amount:   "100",
		Currency: model.CurrencyUSDC,
		Split: &model.SplitParams{
			SplitWalletID:      "split-1",
			DestinationAddress: solana.NewWallet().PublicKey().String(),
		},
	})

	require.False(t, result.Success)
	require.Equal(t, model.FailureDefinite, result.Kind)
	require.Equal(t, "only the split creator may withdraw", result.Error)
	require.Equal(t, 0, env.cosigner.calls)
}

func TestExecuteSplitWithdrawalGoesThroughCoSigner(t *testing.T) {
	env := newTestEnv(t)
	env.chain.balances[env.splitAddr] = 200 * microUSDC

	result := env.dispatcher.ExecuteTransaction(context.Background(), &model.TransactionParams{
		Context:  model.ContextSplitWithdrawal,
		UserID:   "user-1",
		Amount:   "100",
		Currency: model.CurrencyUSDC,
		Split: &model.SplitParams{
			SplitWalletID:      "split-1",
			DestinationAddress: env.userAddr.String(), // internal: no fee
		},
	})

	require.True(t, result.Success)
	require.Equal(t, 1, env.cosigner.calls)
	require.Equal(t, "0.000000", result.Fee)
	require.Equal(t, "100.000000", result.NetAmount)
}

func TestWithdrawalCreatesMissingFeeAccount(t *testing.T) {
	env := newTestEnv(t)
	env.chain.balances[env.splitAddr] = 200 * microUSDC

	feeATA, _, err := solana.FindAssociatedTokenAddress(env.feeWallet, env.chain.mint)
	require.NoError(t, err)
	env.chain.missing[feeATA] = true

	result := env.dispatcher.ExecuteTransaction(context.Background(), &model.TransactionParams{
		Context:  model.ContextSplitWithdrawal,
		UserID:   "user-1",
		Amount:   "100",
		Currency: model.CurrencyUSDC,
		Split: &model.SplitParams{
			SplitWalletID:      "split-1",
			DestinationAddress: solana.NewWallet().PublicKey().String(), // external: fee charged
		},
	})

	require.True(t, result.Success)
	// Compute budget, fee account creation, recipient transfer, fee
	// transfer. The destination account already exists and there is no memo.
	require.Len(t, env.chain.lastSubmitted.Message.Instructions, 4)
}

func TestExecuteSplitWithdrawalInsufficientOnChainBalance(t *testing.T) {
	env := newTestEnv(t)
	env.chain.balances[env.splitAddr] = 50 * microUSDC

	result := env.dispatcher.ExecuteTransaction(context.Background(), &model.TransactionParams{
		Context:  model.ContextSplitWithdrawal,
		UserID:   "user-1",
		Amount:   "100",
		Currency: model.CurrencyUSDC,
		Split: &model.SplitParams{
			SplitWalletID:      "split-1",
			DestinationAddress: env.userAddr.String(),
		},
	})

	require.False(t, result.Success)
	require.Equal(t, "insufficient balance: 50.000000 USDC available, 100.000000 USDC required", result.Error)
}

func TestExecuteSharedWithdrawalEnforcesMemberCap(t *testing.T) {
	env := newTestEnv(t)
	env.chain.balances[env.sharedAddr] = 1000 * microUSDC

	result := env.dispatcher.ExecuteTransaction(context.Background(), &model.TransactionParams{
		Context:  model.ContextSharedWalletWithdraw,
		UserID:   "user-2", // net contribution: 50
		Amount:   "100",
		Currency: model.CurrencyUSDC,
		Shared: &model.SharedWalletParams{
			SharedWalletID:     "shared-1",
			DestinationAddress: solana.NewWallet().PublicKey().String(),
		},
	})

	require.False(t, result.Success)
	require.Equal(t, model.FailureDefinite, result.Kind)
	require.Equal(t, "withdrawal exceeds your contributed balance: 50.000000 USDC available, 102.000000 USDC required", result.Error)
}

func TestSharedWithdrawalFeeCountsAgainstNetOnBothSurfaces(t *testing.T) {
	env := newTestEnv(t)
	env.chain.balances[env.sharedAddr] = 1000 * microUSDC

	// user-2's net contribution is exactly 50; an external 50 USDC
	// withdrawal needs 51 with the 2% fee on top.
	params := &model.TransactionParams{
		Context:  model.ContextSharedWalletWithdraw,
		UserID:   "user-2",
		Amount:   "50",
		Currency: model.CurrencyUSDC,
		Shared: &model.SharedWalletParams{
			SharedWalletID:     "shared-1",
			DestinationAddress: solana.NewWallet().PublicKey().String(),
		},
	}

	v := env.dispatcher.ValidateTransaction(context.Background(), params)
	require.False(t, v.CanExecute)

	result := env.dispatcher.ExecuteTransaction(context.Background(), params)
	require.False(t, result.Success)
	require.Equal(t, model.FailureDefinite, result.Kind)
	require.Equal(t, "withdrawal exceeds your contributed balance: 50.000000 USDC available, 51.000000 USDC required", result.Error)
	require.Equal(t, 0, env.chain.submitCount)

	// Internal destination waives the fee, so the full net is withdrawable
	// on both surfaces.
	params.Shared.DestinationAddress = env.userAddr.String()
	v = env.dispatcher.ValidateTransaction(context.Background(), params)
	require.True(t, v.CanExecute)

	result = env.dispatcher.ExecuteTransaction(context.Background(), params)
	require.True(t, result.Success)
}

func TestExecuteSharedWithdrawalRecordsLedger(t *testing.T) {
	env := newTestEnv(t)
	env.chain.balances[env.sharedAddr] = 500 * microUSDC

	result := env.dispatcher.ExecuteTransaction(context.Background(), &model.TransactionParams{
		Context:  model.ContextSharedWalletWithdraw,
		UserID:   "user-1",
		Amount:   "100",
		Currency: model.CurrencyUSDC,
		Shared: &model.SharedWalletParams{
			SharedWalletID:     "shared-1",
			DestinationAddress: solana.NewWallet().PublicKey().String(),
		},
	})

	require.True(t, result.Success)
	require.Equal(t, "2.000000", result.Fee)

	doc, err := env.store.Get(context.Background(), ledger.CollectionSharedWallets, "shared-1")
	require.NoError(t, err)
	var w model.SharedWallet
	require.NoError(t, doc.Decode(&w))
	// Amount plus the 2 USDC fee both left the pooled wallet.
	require.Equal(t, 202*microUSDC, w.Member("user-1").TotalWithdrawn)
}

type vetoAssessor struct {
	allowed bool
	reason  string
	err     error
}

func (a *vetoAssessor) Assess(context.Context, *model.TransactionParams) (bool, string, error) {
	return a.allowed, a.reason, a.err
}

func TestRiskAssessorVetoAndFailOpen(t *testing.T) {
	env := newTestEnv(t)
	env.chain.balances[env.userAddr] = 100 * microUSDC
	params := sendParams("user-1", "10", solana.NewWallet().PublicKey().String())

	env.dispatcher.risk = &vetoAssessor{allowed: false, reason: "daily limit reached"}
	v := env.dispatcher.ValidateTransaction(context.Background(), params)
	require.False(t, v.CanExecute)
	require.Equal(t, "daily limit reached", v.Error)

	// Assessor errors fail open.
	env.dispatcher.risk = &vetoAssessor{err: context.DeadlineExceeded}
	v = env.dispatcher.ValidateTransaction(context.Background(), params)
	require.True(t, v.CanExecute)
}

func TestExecuteRecoversFromHandlerPanic(t *testing.T) {
	// A dispatcher missing its processor panics inside the handler; the
	// boundary converts it to a definite failure instead of crashing.
	d := NewDispatcher(Config{
		Keys: &fakeKeys{keys: map[string]solana.PrivateKey{"user-1": solana.NewWallet().PrivateKey}},
		Log:  zap.NewNop(),
	})

	result := d.ExecuteTransaction(context.Background(),
		sendParams("user-1", "10", solana.NewWallet().PublicKey().String()))

	require.False(t, result.Success)
	require.Equal(t, model.FailureDefinite, result.Kind)
	require.Contains(t, result.Error, "internal error")
}
