package transaction

import (
	"context"

	"github.com/gagliardetto/solana-go"
	"go.uber.org/zap"

	"github.com/WeSplit-io/wesplit-core/internal/model"
)

// executeSharedWalletFunding moves USDC from the user's personal wallet
// into a shared wallet and accumulates the amount into the member's
// contribution ledger.
func (d *Dispatcher) executeSharedWalletFunding(ctx context.Context, params *model.TransactionParams, amountMicro uint64) model.TransactionResult {
	wallet, err := d.shareds.Get(ctx, params.Shared.SharedWalletID)
	if err != nil {
		return model.Failure(model.FailureDefinite, "%s", err.Error())
	}

	if wallet.Member(params.UserID) == nil {
		return model.Failure(model.FailureDefinite, "user %s is not a member of this shared wallet", params.UserID)
	}
	if !validAddress(wallet.WalletAddress) {
		return model.Failure(model.FailureDefinite, "shared wallet has an invalid address: %s", wallet.WalletAddress)
	}
	destination, err := solana.PublicKeyFromBase58(wallet.WalletAddress)
	if err != nil {
		return model.Failure(model.FailureDefinite, "shared wallet has an invalid address: %s", err.Error())
	}

	sender, err := d.keys.UserKey(ctx, params.UserID)
	if err != nil {
		return model.Failure(model.FailureDefinite, "failed to load signing key: %s", err.Error())
	}
	defer clear(sender)

	result := d.processor.SendUSDC(ctx, SendRequest{
		Context:     params.Context,
		Sender:      sender,
		Recipient:   destination,
		AmountMicro: amountMicro,
		Currency:    params.Currency,
		Memo:        params.Memo,
		Priority:    PriorityMedium,
	})
	if !result.Success {
		return result
	}

	if err := d.shareds.RecordContribution(ctx, wallet.ID, params.UserID, amountMicro); err != nil {
		d.log.Warn("funding landed on-chain but member ledger update failed",
			zap.String("sharedWalletId", wallet.ID),
			zap.String("signature", result.Signature),
			zap.Error(err))
		result.LedgerWarning = true
		result.Kind = model.FailureLedger
		result.Message = "funding succeeded, but your wallet view may be out of date: pull to refresh"
	}
	return result
}
