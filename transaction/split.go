package transaction

import (
	"context"

	"github.com/gagliardetto/solana-go"
	"go.uber.org/zap"

	"github.com/WeSplit-io/wesplit-core/internal/model"
)

// executeSplitContribution pays a participant's share into the split
// wallet. After the on-chain transfer the participant's ledger entry is
// credited: amounts accumulate and clamp to amountOwed, and status flips to
// paid only at full payment.
func (d *Dispatcher) executeSplitContribution(ctx context.Context, params *model.TransactionParams, amountMicro uint64) model.TransactionResult {
	return d.contribute(ctx, params, amountMicro, false)
}

// executeDegenLock locks a participant's stake in a degen split. Identical
// transfer shape; the ledger status flips to locked instead of paid.
func (d *Dispatcher) executeDegenLock(ctx context.Context, params *model.TransactionParams, amountMicro uint64) model.TransactionResult {
	return d.contribute(ctx, params, amountMicro, true)
}

func (d *Dispatcher) contribute(ctx context.Context, params *model.TransactionParams, amountMicro uint64, lock bool) model.TransactionResult {
	// One fetch per call: this record is the source of truth for the rest
	// of the handler.
	wallet, err := d.splits.Get(ctx, params.Split.SplitWalletID)
	if err != nil {
		return model.Failure(model.FailureDefinite, "%s", err.Error())
	}

	if wallet.Participant(params.UserID) == nil {
		return model.Failure(model.FailureDefinite, "user %s is not a participant of this split", params.UserID)
	}
	if !validAddress(wallet.WalletAddress) {
		return model.Failure(model.FailureDefinite, "split wallet has an invalid address: %s", wallet.WalletAddress)
	}
	destination, err := solana.PublicKeyFromBase58(wallet.WalletAddress)
	if err != nil {
		return model.Failure(model.FailureDefinite, "split wallet has an invalid address: %s", err.Error())
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

	// On-chain state is authoritative: a reconciliation failure is
	// reported as success-with-warning, never rolled back.
	if err := d.splits.CreditParticipant(ctx, wallet.ID, params.UserID, amountMicro, result.Signature, lock); err != nil {
		d.log.Warn("contribution recorded on-chain but ledger update failed",
			zap.String("splitWalletId", wallet.ID),
			zap.String("signature", result.Signature),
			zap.Error(err))
		result.LedgerWarning = true
		result.Kind = model.FailureLedger
		result.Message = "payment succeeded, but your split status may be out of date: pull to refresh"
	}
	return result
}
