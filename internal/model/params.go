package model

import "fmt"

// Currency is the token a transaction moves
type Currency string

const (
	CurrencyUSDC Currency = "USDC"
	CurrencySOL  Currency = "SOL"
)

// Context identifies which payment flow a transaction belongs to
type Context string

const (
	ContextSend                 Context = "send_1to1"
	ContextSplitContribution    Context = "split_contribution"
	ContextSplitWithdrawal      Context = "split_withdrawal"
	ContextDegenLock            Context = "degen_lock"
	ContextSharedWalletFunding  Context = "shared_wallet_funding"
	ContextSharedWalletWithdraw Context = "shared_wallet_withdrawal"
	ContextMerchantPayment      Context = "merchant_payment"
)

// TransactionParams is the tagged union handed to the dispatcher. Context
// selects the variant; exactly one variant struct must be set for it.
type TransactionParams struct {
	Context  Context  `json:"context"`
	UserID   string   `json:"userId"`
	Amount   string   `json:"amount"` // decimal USDC string
	Currency Currency `json:"currency"`
	Memo     string   `json:"memo,omitempty"`

	Send   *SendParams         `json:"send,omitempty"`
	Split  *SplitParams        `json:"split,omitempty"`
	Shared *SharedWalletParams `json:"shared,omitempty"`
}

// SendParams covers send_1to1 and merchant_payment
type SendParams struct {
	RecipientAddress string `json:"recipientAddress"`
}

// SplitParams covers split_contribution, split_withdrawal and degen_lock
type SplitParams struct {
	SplitWalletID      string `json:"splitWalletId"`
	SplitID            string `json:"splitId,omitempty"`
	BillID             string `json:"billId,omitempty"`
	DestinationAddress string `json:"destinationAddress,omitempty"` // withdrawals only
}

// SharedWalletParams covers shared_wallet_funding and shared_wallet_withdrawal
type SharedWalletParams struct {
	SharedWalletID     string `json:"sharedWalletId"`
	DestinationAddress string `json:"destinationAddress,omitempty"` // withdrawals only
}

// Validate checks the common fields and that the variant matching the
// context is populated.
func (p *TransactionParams) Validate() error {
	if p.UserID == "" {
		return fmt.Errorf("userId is required")
	}
	if p.Amount == "" {
		return fmt.Errorf("amount is required")
	}
	if p.Currency == "" {
		p.Currency = CurrencyUSDC
	}

	switch p.Context {
	case ContextSend, ContextMerchantPayment:
		if p.Send == nil || p.Send.RecipientAddress == "" {
			return fmt.Errorf("%s requires a recipient address", p.Context)
		}
	case ContextSplitContribution, ContextDegenLock:
		if p.Split == nil || p.Split.SplitWalletID == "" {
			return fmt.Errorf("%s requires a split wallet id", p.Context)
		}
	case ContextSplitWithdrawal:
		if p.Split == nil || p.Split.SplitWalletID == "" {
			return fmt.Errorf("%s requires a split wallet id", p.Context)
		}
		if p.Split.DestinationAddress == "" {
			return fmt.Errorf("%s requires a destination address", p.Context)
		}
	case ContextSharedWalletFunding:
		if p.Shared == nil || p.Shared.SharedWalletID == "" {
			return fmt.Errorf("%s requires a shared wallet id", p.Context)
		}
	case ContextSharedWalletWithdraw:
		if p.Shared == nil || p.Shared.SharedWalletID == "" {
			return fmt.Errorf("%s requires a shared wallet id", p.Context)
		}
		if p.Shared.DestinationAddress == "" {
			return fmt.Errorf("%s requires a destination address", p.Context)
		}
	default:
		return fmt.Errorf("unknown transaction context: %q", p.Context)
	}
	return nil
}
