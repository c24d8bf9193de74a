package model

import "fmt"

// FailureKind classifies how a transaction failed. An empty kind on a
// successful result means nothing went wrong.
type FailureKind string

const (
	// FailureDefinite is an explicit rejection: bad input, authorization
	// denial, insufficient balance, or an on-chain error status.
	FailureDefinite FailureKind = "definite"
	// FailureTransient is a network/RPC error worth retrying.
	FailureTransient FailureKind = "transient"
	// FailureUncertain means a signature may have been obtained but
	// confirmation timed out. The payment must never be resubmitted.
	FailureUncertain FailureKind = "uncertain"
	// FailureLedger means the on-chain transfer succeeded but the off-chain
	// ledger update failed after retry. The transfer stands.
	FailureLedger FailureKind = "ledger"
)

// TransactionResult is the outcome of executing a transaction.
// Invariant: Success=true implies a non-empty Signature obtained from the
// network. A signed and submitted transaction is never flipped back to
// failure by downstream verification problems.
type TransactionResult struct {
	Success       bool        `json:"success"`
	Signature     string      `json:"transactionSignature,omitempty"`
	TxID          string      `json:"txId,omitempty"`
	Fee           string      `json:"fee,omitempty"`       // decimal USDC
	NetAmount     string      `json:"netAmount,omitempty"` // decimal USDC
	Message       string      `json:"message,omitempty"`
	Error         string      `json:"error,omitempty"`
	Kind          FailureKind `json:"failureKind,omitempty"`
	// LedgerWarning is set alongside Success when the participant-status
	// update could not be persisted; clients should force a refresh.
	LedgerWarning bool `json:"ledgerWarning,omitempty"`
}

// Failure builds a failed result of the given kind.
func Failure(kind FailureKind, format string, args ...any) TransactionResult {
	return TransactionResult{Success: false, Kind: kind, Error: fmt.Sprintf(format, args...)}
}

// ValidationResult is the outcome of a pre-flight balance/fee check.
type ValidationResult struct {
	CanExecute       bool   `json:"canExecute"`
	Error            string `json:"error,omitempty"`
	RequiredBalance  string `json:"requiredBalance,omitempty"`
	AvailableBalance string `json:"availableBalance,omitempty"`
	Fee              string `json:"fee,omitempty"`
}

// WithdrawalSource identifies where a withdrawal draws from
type WithdrawalSource string

const (
	SourceSplitWallet  WithdrawalSource = "split_wallet"
	SourceSharedWallet WithdrawalSource = "shared_wallet"
)

// WithdrawalParams is the normalized shape accepted by the unified
// withdrawal service regardless of source type.
type WithdrawalParams struct {
	SourceType         WithdrawalSource `json:"sourceType"`
	SourceID           string           `json:"sourceId"`
	UserID             string           `json:"userId"`
	Amount             string           `json:"amount"`
	DestinationAddress string           `json:"destinationAddress"`
	Memo               string           `json:"memo,omitempty"`
}

// WithdrawalResult mirrors TransactionResult for the withdrawal surface.
type WithdrawalResult struct {
	Success       bool        `json:"success"`
	Signature     string      `json:"transactionSignature,omitempty"`
	Error         string      `json:"error,omitempty"`
	Kind          FailureKind `json:"failureKind,omitempty"`
	Message       string      `json:"message,omitempty"`
	LedgerWarning bool        `json:"ledgerWarning,omitempty"`
}

// WithdrawalValidation is the pre-check result for a withdrawal.
type WithdrawalValidation struct {
	CanWithdraw      bool   `json:"canWithdraw"`
	Error            string `json:"error,omitempty"`
	AvailableBalance string `json:"availableBalance,omitempty"`
	RequiredBalance  string `json:"requiredBalance,omitempty"`
}
