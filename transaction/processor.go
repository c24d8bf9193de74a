package transaction

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/gagliardetto/solana-go"
	associatedtokenaccount "github.com/gagliardetto/solana-go/programs/associated-token-account"
	computebudget "github.com/gagliardetto/solana-go/programs/compute-budget"
	"github.com/gagliardetto/solana-go/programs/token"
	"go.uber.org/zap"

	"github.com/WeSplit-io/wesplit-core/internal/client"
	"github.com/WeSplit-io/wesplit-core/internal/common"
	"github.com/WeSplit-io/wesplit-core/internal/fees"
	"github.com/WeSplit-io/wesplit-core/internal/model"
)

// Priority selects the compute-unit price tier and how long we wait for
// confirmation before falling back to the status poll.
type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
)

const (
	defaultSubmitTimeout  = 30 * time.Second
	defaultConfirmTimeout = 8 * time.Second
	highConfirmTimeout    = 5 * time.Second

	// Bounded best-effort status poll after an inconclusive confirmation.
	statusPollAttempts = 2
	statusPollBackoff  = 1500 * time.Millisecond
)

func (p Priority) unitPrice() uint64 {
	switch p {
	case PriorityHigh:
		return 100_000
	case PriorityLow:
		return 1_000
	default:
		return 10_000
	}
}

// SendRequest describes one USDC transfer plus its company fee split.
type SendRequest struct {
	Context   model.Context
	Sender    solana.PrivateKey
	Recipient solana.PublicKey
	// AmountMicro is what the recipient receives; the company fee from the
	// fee table is charged on top.
	AmountMicro uint64
	Currency    model.Currency
	Memo        string
	Priority    Priority
}

// Processor builds, signs, submits and best-effort-confirms a single USDC
// transfer with the company fee transfer folded into the same transaction.
type Processor struct {
	chain     client.Chain
	fees      fees.Table
	feeWallet solana.PublicKey
	log       *zap.Logger

	submitTimeout  time.Duration
	confirmTimeout time.Duration
}

// ProcessorOption configures a Processor.
type ProcessorOption func(*Processor)

// WithSubmitTimeout overrides how long a submission may take before it is
// reported as uncertain.
func WithSubmitTimeout(d time.Duration) ProcessorOption {
	return func(p *Processor) { p.submitTimeout = d }
}

// WithConfirmTimeout overrides how long we wait for confirmation before
// falling back to the status poll.
func WithConfirmTimeout(d time.Duration) ProcessorOption {
	return func(p *Processor) { p.confirmTimeout = d }
}

// NewProcessor creates a processor sending company fees to feeWallet.
func NewProcessor(chain client.Chain, table fees.Table, feeWallet solana.PublicKey, log *zap.Logger, opts ...ProcessorOption) *Processor {
	p := &Processor{
		chain:          chain,
		fees:           table,
		feeWallet:      feeWallet,
		log:            log,
		submitTimeout:  defaultSubmitTimeout,
		confirmTimeout: defaultConfirmTimeout,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// confirmWindow caps the confirmation wait for high priority: those land
// faster, so don't keep the caller waiting past the point where the poll
// would answer anyway.
func (p *Processor) confirmWindow(priority Priority) time.Duration {
	if priority == PriorityHigh && p.confirmTimeout > highConfirmTimeout {
		return highConfirmTimeout
	}
	return p.confirmTimeout
}

// SendUSDC runs the full transfer protocol. Only USDC moves within the app;
// SOL-denominated requests are rejected unconditionally.
func (p *Processor) SendUSDC(ctx context.Context, req SendRequest) model.TransactionResult {
	if req.Currency == model.CurrencySOL {
		return model.Failure(model.FailureDefinite, "SOL transfers are not supported: only USDC moves within the app")
	}
	if req.AmountMicro == 0 {
		return model.Failure(model.FailureDefinite, "amount must be greater than zero")
	}

	quote := p.fees.QuoteFor(req.AmountMicro, req.Context)
	sender := req.Sender.PublicKey()

	tx, err := p.buildTransfer(ctx, sender, req.Recipient, quote, req.Memo, req.Priority)
	if err != nil {
		return model.Failure(classifyBuildError(err), "%s", err.Error())
	}

	if _, err := tx.Sign(signerFor(req.Sender)); err != nil {
		return model.Failure(model.FailureDefinite, "failed to sign transaction: %s", err.Error())
	}

	result := p.SubmitAndConfirm(ctx, tx, req.Priority)
	if result.Success {
		result.Fee = common.MicroToUSDC(quote.Fee)
		result.NetAmount = common.MicroToUSDC(quote.Recipient)
	}
	return result
}

// buildTransfer assembles the instruction list: compute budget, lazy token
// account creation, the recipient transfer, the fee transfer and the memo.
func (p *Processor) buildTransfer(ctx context.Context, sender, recipient solana.PublicKey, quote fees.Quote, memoText string, priority Priority) (*solana.Transaction, error) {
	mint := p.chain.Mint()

	sourceATA, _, err := solana.FindAssociatedTokenAddress(sender, mint)
	if err != nil {
		return nil, fmt.Errorf("failed to find source token account address: %w", err)
	}

	instructions := []solana.Instruction{
		computebudget.NewSetComputeUnitPriceInstruction(priority.unitPrice()).Build(),
	}

	destATA, createDest, err := p.resolveTokenAccount(ctx, sender, recipient, mint)
	if err != nil {
		return nil, err
	}
	if createDest != nil {
		instructions = append(instructions, createDest)
	}

	var feeATA solana.PublicKey
	if quote.Fee > 0 {
		var createFee solana.Instruction
		feeATA, createFee, err = p.resolveTokenAccount(ctx, sender, p.feeWallet, mint)
		if err != nil {
			return nil, err
		}
		if createFee != nil {
			instructions = append(instructions, createFee)
		}
	}

	instructions = append(instructions, token.NewTransferCheckedInstruction(
		quote.Recipient,
		common.USDCDecimals,
		sourceATA,
		mint,
		destATA,
		sender,
		[]solana.PublicKey{},
	).Build())

	if quote.Fee > 0 {
		instructions = append(instructions, token.NewTransferCheckedInstruction(
			quote.Fee,
			common.USDCDecimals,
			sourceATA,
			mint,
			feeATA,
			sender,
			[]solana.PublicKey{},
		).Build())
	}

	if memoText != "" {
		instructions = append(instructions, memoInstruction(memoText, sender))
	}

	recent, err := p.chain.LatestBlockhash(ctx)
	if err != nil {
		return nil, err
	}

	tx, err := solana.NewTransaction(instructions, recent, solana.TransactionPayer(sender))
	if err != nil {
		return nil, fmt.Errorf("failed to create transaction: %w", err)
	}
	return tx, nil
}

// resolveTokenAccount returns the owner's associated token account and, when
// the account does not exist yet, the instruction creating it with payer
// covering rent.
func (p *Processor) resolveTokenAccount(ctx context.Context, payer, owner, mint solana.PublicKey) (solana.PublicKey, solana.Instruction, error) {
	ata, _, err := solana.FindAssociatedTokenAddress(owner, mint)
	if err != nil {
		return solana.PublicKey{}, nil, fmt.Errorf("failed to find token account address: %w", err)
	}

	exists, err := p.chain.AccountExists(ctx, ata)
	if err != nil {
		return solana.PublicKey{}, nil, err
	}
	if exists {
		return ata, nil, nil
	}

	create := associatedtokenaccount.NewCreateInstruction(payer, owner, mint).Build()
	return ata, create, nil
}

// SubmitAndConfirm submits a fully signed transaction with the standard
// timeout race and confirmation policy. A signature obtained from a
// successful submission is authoritative: inconclusive confirmation never
// flips the result back to failure.
func (p *Processor) SubmitAndConfirm(ctx context.Context, tx *solana.Transaction, priority Priority) model.TransactionResult {
	submitCtx, cancel := context.WithTimeout(ctx, p.submitTimeout)
	defer cancel()

	sig, err := p.chain.Submit(submitCtx, tx)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(submitCtx.Err(), context.DeadlineExceeded) {
			// Genuinely ambiguous: the transaction may still land.
			// Resubmitting a payment is unsafe, so surface it as uncertain.
			return model.Failure(model.FailureUncertain,
				"transaction submission timed out after %s: it may still complete on-chain. Check your transaction history before retrying", p.submitTimeout)
		}
		if isSimulationError(err) {
			return model.Failure(model.FailureDefinite, "transaction rejected: %s", err.Error())
		}
		return model.Failure(model.FailureTransient, "network error submitting transaction, please retry: %s", err.Error())
	}

	sigStr := sig.String()
	result := model.TransactionResult{
		Success:   true,
		Signature: sigStr,
		TxID:      sigStr,
	}

	confirmCtx, cancelConfirm := context.WithTimeout(ctx, p.confirmWindow(priority))
	defer cancelConfirm()

	status, confirmErr := p.chain.Confirm(confirmCtx, sig)
	if confirmErr != nil || status == client.SigStatusUnknown {
		status = p.pollStatus(ctx, sig)
	}

	switch status {
	case client.SigStatusFailed:
		// The network reported a definite on-chain error before the
		// transfer settled.
		return model.Failure(model.FailureDefinite, "transaction %s failed on-chain", sigStr)
	case client.SigStatusUnknown:
		// Confirmation is best-effort; the accepted signature wins.
		p.log.Info("confirmation inconclusive, assuming success",
			zap.String("signature", sigStr))
		result.Message = "transaction submitted; confirmation pending"
	default:
		result.Message = "transaction confirmed"
	}
	return result
}

// pollStatus is the bounded fallback after an inconclusive confirmation.
func (p *Processor) pollStatus(ctx context.Context, sig solana.Signature) client.SigStatus {
	for attempt := 0; attempt < statusPollAttempts; attempt++ {
		status, err := p.chain.SignatureStatus(ctx, sig)
		if err == nil && status != client.SigStatusUnknown {
			return status
		}
		if attempt == statusPollAttempts-1 {
			break
		}
		select {
		case <-ctx.Done():
			return client.SigStatusUnknown
		case <-time.After(statusPollBackoff):
		}
	}
	return client.SigStatusUnknown
}

// signerFor returns a signing callback for one private key.
func signerFor(key solana.PrivateKey) func(solana.PublicKey) *solana.PrivateKey {
	return func(pub solana.PublicKey) *solana.PrivateKey {
		if key.PublicKey().Equals(pub) {
			return &key
		}
		return nil
	}
}

// memoInstruction embeds free text on-chain via the memo program.
func memoInstruction(text string, signer solana.PublicKey) solana.Instruction {
	return solana.NewInstruction(
		solana.MemoProgramID,
		solana.AccountMetaSlice{solana.Meta(signer).SIGNER()},
		[]byte(text),
	)
}

func isSimulationError(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "Transaction simulation failed") ||
		strings.Contains(msg, "custom program error") ||
		strings.Contains(msg, "insufficient funds")
}

func classifyBuildError(err error) model.FailureKind {
	msg := err.Error()
	if strings.Contains(msg, "invalid") || strings.Contains(msg, "failed to find") {
		return model.FailureDefinite
	}
	return model.FailureTransient
}
