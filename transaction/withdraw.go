package transaction

import (
	"context"
	"fmt"

	"github.com/gagliardetto/solana-go"
	associatedtokenaccount "github.com/gagliardetto/solana-go/programs/associated-token-account"
	computebudget "github.com/gagliardetto/solana-go/programs/compute-budget"
	"github.com/gagliardetto/solana-go/programs/token"
	"go.uber.org/zap"

	"github.com/WeSplit-io/wesplit-core/internal/common"
	"github.com/WeSplit-io/wesplit-core/internal/fees"
	"github.com/WeSplit-io/wesplit-core/internal/model"
)

// executeSplitWithdrawal moves pooled funds out of a split wallet. Fair
// splits are creator-only; degen splits are restricted to the designated
// winner/loser pair. Balance comes from the live on-chain token account,
// never the off-chain totals.
func (d *Dispatcher) executeSplitWithdrawal(ctx context.Context, params *model.TransactionParams, amountMicro uint64) model.TransactionResult {
	wallet, err := d.splits.Get(ctx, params.Split.SplitWalletID)
	if err != nil {
		return model.Failure(model.FailureDefinite, "%s", err.Error())
	}

	if wallet.DegenWinner != "" || wallet.DegenLoser != "" {
		if params.UserID != wallet.DegenWinner && params.UserID != wallet.DegenLoser {
			return model.Failure(model.FailureDefinite, "only the designated winner or loser may withdraw from a degen split")
		}
	} else if params.UserID != wallet.CreatorID {
		return model.Failure(model.FailureDefinite, "only the split creator may withdraw")
	}

	if !validAddress(params.Split.DestinationAddress) {
		return model.Failure(model.FailureDefinite, "invalid destination address: %s", params.Split.DestinationAddress)
	}

	userAddr, _ := d.addresses.UserWalletAddress(ctx, params.UserID)
	internal := d.addresses.IsInternal(ctx, params.Split.DestinationAddress, userAddr, wallet.WalletAddress)
	quote := d.fees.WithdrawQuote(amountMicro, internal)

	result := d.withdrawOnChain(ctx, withdrawRequest{
		sourceWalletID:     wallet.ID,
		sourceAddress:      wallet.WalletAddress,
		destinationAddress: params.Split.DestinationAddress,
		quote:              quote,
		memo:               params.Memo,
	})
	if result.Success {
		d.splits.Invalidate(wallet.ID)
	}
	return result
}

// executeSharedWalletWithdrawal pays a member out of a shared wallet, capped
// at their own net contribution.
func (d *Dispatcher) executeSharedWalletWithdrawal(ctx context.Context, params *model.TransactionParams, amountMicro uint64) model.TransactionResult {
	wallet, err := d.shareds.Get(ctx, params.Shared.SharedWalletID)
	if err != nil {
		return model.Failure(model.FailureDefinite, "%s", err.Error())
	}

	member := wallet.Member(params.UserID)
	if member == nil {
		return model.Failure(model.FailureDefinite, "user %s is not a member of this shared wallet", params.UserID)
	}

	if !validAddress(params.Shared.DestinationAddress) {
		return model.Failure(model.FailureDefinite, "invalid destination address: %s", params.Shared.DestinationAddress)
	}

	userAddr, _ := d.addresses.UserWalletAddress(ctx, params.UserID)
	internal := d.addresses.IsInternal(ctx, params.Shared.DestinationAddress, userAddr, wallet.WalletAddress)
	quote := d.fees.WithdrawQuote(amountMicro, internal)

	// The cap is amount plus fee against the member's net contribution:
	// the fee comes out of the pooled wallet, so letting it through on a
	// bare-amount check would quietly spend other members' funds.
	if net := member.NetContributed(); quote.Total > net {
		return model.Failure(model.FailureDefinite,
			"withdrawal exceeds your contributed balance: %s USDC available, %s USDC required",
			common.MicroToUSDC(net), common.MicroToUSDC(quote.Total))
	}

	result := d.withdrawOnChain(ctx, withdrawRequest{
		sourceWalletID:     wallet.ID,
		sourceAddress:      wallet.WalletAddress,
		destinationAddress: params.Shared.DestinationAddress,
		quote:              quote,
		memo:               params.Memo,
	})
	if !result.Success {
		return result
	}

	// Record amount plus fee: both left the pooled wallet against this
	// member's share.
	if err := d.shareds.RecordWithdrawal(ctx, wallet.ID, params.UserID, quote.Total); err != nil {
		d.log.Warn("withdrawal landed on-chain but member ledger update failed",
			zap.String("sharedWalletId", wallet.ID),
			zap.String("signature", result.Signature),
			zap.Error(err))
		result.LedgerWarning = true
		result.Kind = model.FailureLedger
		result.Message = "withdrawal succeeded, but your wallet view may be out of date: pull to refresh"
	}
	return result
}

type withdrawRequest struct {
	sourceWalletID     string
	sourceAddress      string
	destinationAddress string
	quote              fees.Quote
	memo               string
}

// withdrawOnChain is the bespoke two-party build for withdrawals: the
// program-controlled source wallet signs the transfer locally, but the
// company account is always the network fee payer, so the partially-signed
// transaction goes through the backend co-signer before submission.
func (d *Dispatcher) withdrawOnChain(ctx context.Context, req withdrawRequest) model.TransactionResult {
	source, err := solana.PublicKeyFromBase58(req.sourceAddress)
	if err != nil {
		return model.Failure(model.FailureDefinite, "invalid source wallet address: %s", err.Error())
	}
	destination, err := solana.PublicKeyFromBase58(req.destinationAddress)
	if err != nil {
		return model.Failure(model.FailureDefinite, "invalid destination address: %s", err.Error())
	}

	// The fee-payer check must precede the transfer build so required
	// balance was validated against the right total.
	balance, err := d.onChainBalance(ctx, req.sourceAddress)
	if err != nil {
		return model.Failure(model.FailureTransient, "%s", err.Error())
	}
	if balance < req.quote.Total {
		return model.Failure(model.FailureDefinite,
			"insufficient balance: %s USDC available, %s USDC required",
			common.MicroToUSDC(balance), common.MicroToUSDC(req.quote.Total))
	}

	sourceKey, err := d.keys.WalletKey(ctx, req.sourceWalletID)
	if err != nil {
		return model.Failure(model.FailureDefinite, "failed to load wallet signing key: %s", err.Error())
	}
	defer clear(sourceKey)
	if !sourceKey.PublicKey().Equals(source) {
		return model.Failure(model.FailureDefinite, "wallet signing key does not match the wallet address")
	}

	tx, err := d.buildWithdrawTransfer(ctx, source, destination, req)
	if err != nil {
		return model.Failure(model.FailureTransient, "%s", err.Error())
	}

	// Sign locally with the source keypair only; the company fee-payer
	// signature is added server-side.
	if _, err := tx.PartialSign(signerFor(sourceKey)); err != nil {
		return model.Failure(model.FailureDefinite, "failed to sign withdrawal: %s", err.Error())
	}

	signed, err := d.cosigner.CoSign(ctx, tx)
	if err != nil {
		return model.Failure(model.FailureTransient, "co-signing failed, please retry: %s", err.Error())
	}

	result := d.processor.SubmitAndConfirm(ctx, signed, PriorityMedium)
	if result.Success {
		result.Fee = common.MicroToUSDC(req.quote.Fee)
		result.NetAmount = common.MicroToUSDC(req.quote.Recipient)
	}
	return result
}

func (d *Dispatcher) buildWithdrawTransfer(ctx context.Context, source, destination solana.PublicKey, req withdrawRequest) (*solana.Transaction, error) {
	mint := d.chain.Mint()
	feePayer := d.processor.feeWallet

	sourceATA, _, err := solana.FindAssociatedTokenAddress(source, mint)
	if err != nil {
		return nil, fmt.Errorf("failed to find source token account address: %w", err)
	}
	destATA, _, err := solana.FindAssociatedTokenAddress(destination, mint)
	if err != nil {
		return nil, fmt.Errorf("failed to find destination token account: %w", err)
	}

	instructions := []solana.Instruction{
		computebudget.NewSetComputeUnitPriceInstruction(PriorityMedium.unitPrice()).Build(),
	}

	destExists, err := d.chain.AccountExists(ctx, destATA)
	if err != nil {
		return nil, err
	}
	if !destExists {
		// Rent for the new token account comes out of the fee payer.
		instructions = append(instructions,
			associatedtokenaccount.NewCreateInstruction(feePayer, destination, mint).Build())
	}

	instructions = append(instructions, token.NewTransferCheckedInstruction(
		req.quote.Recipient,
		common.USDCDecimals,
		sourceATA,
		mint,
		destATA,
		source,
		[]solana.PublicKey{},
	).Build())

	if req.quote.Fee > 0 {
		feeATA, _, err := solana.FindAssociatedTokenAddress(feePayer, mint)
		if err != nil {
			return nil, fmt.Errorf("failed to find fee token account: %w", err)
		}
		feeExists, err := d.chain.AccountExists(ctx, feeATA)
		if err != nil {
			return nil, err
		}
		if !feeExists {
			instructions = append(instructions,
				associatedtokenaccount.NewCreateInstruction(feePayer, feePayer, mint).Build())
		}
		instructions = append(instructions, token.NewTransferCheckedInstruction(
			req.quote.Fee,
			common.USDCDecimals,
			sourceATA,
			mint,
			feeATA,
			source,
			[]solana.PublicKey{},
		).Build())
	}

	if req.memo != "" {
		instructions = append(instructions, memoInstruction(req.memo, source))
	}

	recent, err := d.chain.LatestBlockhash(ctx)
	if err != nil {
		return nil, err
	}

	tx, err := solana.NewTransaction(instructions, recent, solana.TransactionPayer(feePayer))
	if err != nil {
		return nil, fmt.Errorf("failed to create withdrawal transaction: %w", err)
	}
	return tx, nil
}
