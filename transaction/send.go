package transaction

import (
	"context"

	"github.com/gagliardetto/solana-go"

	"github.com/WeSplit-io/wesplit-core/internal/model"
)

// executeSend handles the 1:1 send flow.
func (d *Dispatcher) executeSend(ctx context.Context, params *model.TransactionParams, amountMicro uint64) model.TransactionResult {
	return d.directTransfer(ctx, params, amountMicro, PriorityMedium)
}

// executeMerchantPayment handles payments to merchant wallets. Same shape
// as a 1:1 send with the merchant fee rate and high priority so checkout
// does not stall.
func (d *Dispatcher) executeMerchantPayment(ctx context.Context, params *model.TransactionParams, amountMicro uint64) model.TransactionResult {
	return d.directTransfer(ctx, params, amountMicro, PriorityHigh)
}

func (d *Dispatcher) directTransfer(ctx context.Context, params *model.TransactionParams, amountMicro uint64, priority Priority) model.TransactionResult {
	if !validAddress(params.Send.RecipientAddress) {
		return model.Failure(model.FailureDefinite, "invalid recipient address: %s", params.Send.RecipientAddress)
	}
	recipient, err := solana.PublicKeyFromBase58(params.Send.RecipientAddress)
	if err != nil {
		return model.Failure(model.FailureDefinite, "invalid recipient address: %s", err.Error())
	}

	sender, err := d.keys.UserKey(ctx, params.UserID)
	if err != nil {
		return model.Failure(model.FailureDefinite, "failed to load signing key: %s", err.Error())
	}
	defer clear(sender)

	return d.processor.SendUSDC(ctx, SendRequest{
		Context:     params.Context,
		Sender:      sender,
		Recipient:   recipient,
		AmountMicro: amountMicro,
		Currency:    params.Currency,
		Memo:        params.Memo,
		Priority:    priority,
	})
}
