// Package fees is the fee table: a pure mapping from (amount, transaction
// type) to the company fee breakdown. Amounts are micro USDC throughout.
package fees

import "github.com/WeSplit-io/wesplit-core/internal/model"

// Quote is a fee breakdown. Invariants: Fee + Recipient == Total,
// Recipient <= the quoted amount, all values non-negative.
type Quote struct {
	Fee       uint64
	Recipient uint64
	Total     uint64
}

// Table holds the configured fee rates in basis points per context.
// Contributions, locks and funding move money between app wallets and are
// always free.
type Table struct {
	SendBps     uint64
	MerchantBps uint64
	WithdrawBps uint64
}

// DefaultTable mirrors the production fee schedule.
func DefaultTable() Table {
	return Table{SendBps: 150, MerchantBps: 100, WithdrawBps: 200}
}

// QuoteFor computes the fee for a transaction context. The fee is charged on
// top: the recipient receives the full amount and the sender needs
// amount + fee available.
func (t Table) QuoteFor(amountMicro uint64, ctx model.Context) Quote {
	var bps uint64
	switch ctx {
	case model.ContextSend:
		bps = t.SendBps
	case model.ContextMerchantPayment:
		bps = t.MerchantBps
	case model.ContextSplitWithdrawal, model.ContextSharedWalletWithdraw:
		bps = t.WithdrawBps
	default:
		bps = 0
	}
	fee := feeFromBps(amountMicro, bps)
	return Quote{Fee: fee, Recipient: amountMicro, Total: amountMicro + fee}
}

// WithdrawQuote is QuoteFor with the fee waived for internal destinations.
func (t Table) WithdrawQuote(amountMicro uint64, internal bool) Quote {
	if internal {
		return Quote{Fee: 0, Recipient: amountMicro, Total: amountMicro}
	}
	fee := feeFromBps(amountMicro, t.WithdrawBps)
	return Quote{Fee: fee, Recipient: amountMicro, Total: amountMicro + fee}
}

// feeFromBps applies a basis-point rate with half-up rounding.
func feeFromBps(amountMicro, bps uint64) uint64 {
	return (amountMicro*bps + 5000) / 10000
}
