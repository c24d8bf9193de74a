package transaction

import (
	"context"
	"fmt"
	"regexp"

	"github.com/gagliardetto/solana-go"
	"go.uber.org/zap"

	"github.com/WeSplit-io/wesplit-core/internal/client"
	"github.com/WeSplit-io/wesplit-core/internal/common"
	"github.com/WeSplit-io/wesplit-core/internal/fees"
	"github.com/WeSplit-io/wesplit-core/internal/ledger"
	"github.com/WeSplit-io/wesplit-core/internal/model"
)

// base58 alphabet, 32-44 chars: checked before any network call.
var addressPattern = regexp.MustCompile(`^[1-9A-HJ-NP-Za-km-z]{32,44}$`)

// validAddress reports whether s is syntactically a Solana public key.
func validAddress(s string) bool {
	if !addressPattern.MatchString(s) {
		return false
	}
	_, err := solana.PublicKeyFromBase58(s)
	return err == nil
}

// RiskAssessor is an optional pre-check that may veto a transaction
// outright. Its own internal errors never block execution.
type RiskAssessor interface {
	Assess(ctx context.Context, params *model.TransactionParams) (allowed bool, reason string, err error)
}

// Dispatcher is the centralized transaction handler: it validates
// balance/fee requirements per context and routes execution to the matching
// context handler. It holds no business logic of its own beyond dispatch.
type Dispatcher struct {
	chain     client.Chain
	cosigner  client.CoSigner
	keys      KeySource
	splits    *ledger.SplitWallets
	shareds   *ledger.SharedWallets
	addresses *ledger.AddressBook
	fees      fees.Table
	processor *Processor
	risk      RiskAssessor
	log       *zap.Logger
}

// Config wires the dispatcher's collaborators. Risk is optional.
type Config struct {
	Chain     client.Chain
	CoSigner  client.CoSigner
	Keys      KeySource
	Splits    *ledger.SplitWallets
	Shareds   *ledger.SharedWallets
	Addresses *ledger.AddressBook
	Fees      fees.Table
	Processor *Processor
	Risk      RiskAssessor
	Log       *zap.Logger
}

// NewDispatcher creates the dispatcher.
func NewDispatcher(cfg Config) *Dispatcher {
	return &Dispatcher{
		chain:     cfg.Chain,
		cosigner:  cfg.CoSigner,
		keys:      cfg.Keys,
		splits:    cfg.Splits,
		shareds:   cfg.Shareds,
		addresses: cfg.Addresses,
		fees:      cfg.Fees,
		processor: cfg.Processor,
		risk:      cfg.Risk,
		log:       cfg.Log,
	}
}

// ValidateTransaction is the pre-flight balance/fee check. It never
// executes anything; it reports whether the caller's available balance
// covers the context-specific required balance, with exact amounts in the
// shortfall message.
func (d *Dispatcher) ValidateTransaction(ctx context.Context, params *model.TransactionParams) model.ValidationResult {
	if err := params.Validate(); err != nil {
		return model.ValidationResult{CanExecute: false, Error: err.Error()}
	}
	if params.Currency == model.CurrencySOL {
		return model.ValidationResult{CanExecute: false, Error: "SOL transfers are not supported: only USDC moves within the app"}
	}

	amountMicro, err := common.USDCToMicro(params.Amount)
	if err != nil {
		return model.ValidationResult{CanExecute: false, Error: fmt.Sprintf("invalid amount: %s", err.Error())}
	}
	if amountMicro == 0 {
		return model.ValidationResult{CanExecute: false, Error: "amount must be greater than zero"}
	}

	if vetoed, reason := d.riskVeto(ctx, params); vetoed {
		return model.ValidationResult{CanExecute: false, Error: reason}
	}

	available, quote, err := d.requirements(ctx, params, amountMicro)
	if err != nil {
		return model.ValidationResult{CanExecute: false, Error: err.Error()}
	}

	result := model.ValidationResult{
		CanExecute:       available >= quote.Total,
		RequiredBalance:  common.MicroToUSDC(quote.Total),
		AvailableBalance: common.MicroToUSDC(available),
		Fee:              common.MicroToUSDC(quote.Fee),
	}
	if !result.CanExecute {
		result.Error = fmt.Sprintf("insufficient balance: %s USDC available, %s USDC required",
			common.MicroToUSDC(available), common.MicroToUSDC(quote.Total))
	}
	return result
}

// requirements computes (availableBalance, fee quote) for a context.
func (d *Dispatcher) requirements(ctx context.Context, params *model.TransactionParams, amountMicro uint64) (uint64, fees.Quote, error) {
	switch params.Context {
	case model.ContextSharedWalletWithdraw:
		// The cap is the member's net contribution, not the wallet's
		// aggregate balance: one member must not drain funds contributed
		// by another.
		net, err := d.shareds.MemberNet(ctx, params.Shared.SharedWalletID, params.UserID)
		if err != nil {
			return 0, fees.Quote{}, err
		}
		quote, err := d.sharedWithdrawQuote(ctx, params, amountMicro)
		if err != nil {
			return 0, fees.Quote{}, err
		}
		return net, quote, nil

	case model.ContextSplitWithdrawal:
		w, err := d.splits.Get(ctx, params.Split.SplitWalletID)
		if err != nil {
			return 0, fees.Quote{}, err
		}
		// Withdrawals trust the live on-chain balance; off-chain totals
		// are informational and may lag.
		balance, err := d.onChainBalance(ctx, w.WalletAddress)
		if err != nil {
			return 0, fees.Quote{}, err
		}
		userAddr, _ := d.addresses.UserWalletAddress(ctx, params.UserID)
		internal := d.addresses.IsInternal(ctx, params.Split.DestinationAddress, userAddr, w.WalletAddress)
		return balance, d.fees.WithdrawQuote(amountMicro, internal), nil

	default:
		addr, err := d.addresses.UserWalletAddress(ctx, params.UserID)
		if err != nil {
			return 0, fees.Quote{}, err
		}
		balance, err := d.onChainBalance(ctx, addr)
		if err != nil {
			return 0, fees.Quote{}, err
		}
		return balance, d.fees.QuoteFor(amountMicro, params.Context), nil
	}
}

func (d *Dispatcher) sharedWithdrawQuote(ctx context.Context, params *model.TransactionParams, amountMicro uint64) (fees.Quote, error) {
	w, err := d.shareds.Get(ctx, params.Shared.SharedWalletID)
	if err != nil {
		return fees.Quote{}, err
	}
	userAddr, _ := d.addresses.UserWalletAddress(ctx, params.UserID)
	internal := d.addresses.IsInternal(ctx, params.Shared.DestinationAddress, userAddr, w.WalletAddress)
	return d.fees.WithdrawQuote(amountMicro, internal), nil
}

func (d *Dispatcher) onChainBalance(ctx context.Context, address string) (uint64, error) {
	pub, err := solana.PublicKeyFromBase58(address)
	if err != nil {
		return 0, fmt.Errorf("invalid wallet address %s: %w", address, err)
	}
	balance, err := d.chain.TokenBalance(ctx, pub)
	if err != nil {
		return 0, fmt.Errorf("failed to fetch balance, please retry: %w", err)
	}
	return balance, nil
}

// riskVeto runs the optional risk assessment. Fail-open: an assessor error
// must never block an otherwise-valid transaction.
func (d *Dispatcher) riskVeto(ctx context.Context, params *model.TransactionParams) (bool, string) {
	if d.risk == nil {
		return false, ""
	}
	allowed, reason, err := d.risk.Assess(ctx, params)
	if err != nil {
		d.log.Warn("risk assessment errored, failing open", zap.Error(err))
		return false, ""
	}
	if allowed {
		return false, ""
	}
	if reason == "" {
		reason = "transaction blocked by risk assessment"
	}
	return true, reason
}

// ExecuteTransaction routes execution to the context handler. Expected
// failures come back as typed results; unexpected panics are converted to
// definite failures at this boundary rather than crossing it.
func (d *Dispatcher) ExecuteTransaction(ctx context.Context, params *model.TransactionParams) (result model.TransactionResult) {
	defer func() {
		if r := recover(); r != nil {
			d.log.Error("transaction handler panicked",
				zap.String("context", string(params.Context)),
				zap.Any("panic", r))
			result = model.Failure(model.FailureDefinite, "internal error: %v", r)
		}
	}()

	if err := params.Validate(); err != nil {
		return model.Failure(model.FailureDefinite, "%s", err.Error())
	}
	if params.Currency == model.CurrencySOL {
		return model.Failure(model.FailureDefinite, "SOL transfers are not supported: only USDC moves within the app")
	}

	amountMicro, err := common.USDCToMicro(params.Amount)
	if err != nil {
		return model.Failure(model.FailureDefinite, "invalid amount: %s", err.Error())
	}
	if amountMicro == 0 {
		return model.Failure(model.FailureDefinite, "amount must be greater than zero")
	}

	switch params.Context {
	case model.ContextSend:
		return d.executeSend(ctx, params, amountMicro)
	case model.ContextMerchantPayment:
		return d.executeMerchantPayment(ctx, params, amountMicro)
	case model.ContextSplitContribution:
		return d.executeSplitContribution(ctx, params, amountMicro)
	case model.ContextDegenLock:
		return d.executeDegenLock(ctx, params, amountMicro)
	case model.ContextSplitWithdrawal:
		return d.executeSplitWithdrawal(ctx, params, amountMicro)
	case model.ContextSharedWalletFunding:
		return d.executeSharedWalletFunding(ctx, params, amountMicro)
	case model.ContextSharedWalletWithdraw:
		return d.executeSharedWalletWithdrawal(ctx, params, amountMicro)
	default:
		return model.Failure(model.FailureDefinite, "unknown transaction context: %q", params.Context)
	}
}
