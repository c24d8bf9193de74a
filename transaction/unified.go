package transaction

import (
	"context"
	"fmt"

	"github.com/WeSplit-io/wesplit-core/internal/common"
	"github.com/WeSplit-io/wesplit-core/internal/model"
)

// WithdrawalService normalizes the two withdrawal sources (split wallet,
// shared wallet) into one parameter shape and one validation path before
// handing off to the dispatcher.
type WithdrawalService struct {
	dispatcher *Dispatcher
}

// NewWithdrawalService creates the unified withdrawal service.
func NewWithdrawalService(d *Dispatcher) *WithdrawalService {
	return &WithdrawalService{dispatcher: d}
}

func toTransactionParams(params *model.WithdrawalParams) (*model.TransactionParams, error) {
	switch params.SourceType {
	case model.SourceSplitWallet:
		return &model.TransactionParams{
			Context:  model.ContextSplitWithdrawal,
			UserID:   params.UserID,
			Amount:   params.Amount,
			Currency: model.CurrencyUSDC,
			Memo:     params.Memo,
			Split: &model.SplitParams{
				SplitWalletID:      params.SourceID,
				DestinationAddress: params.DestinationAddress,
			},
		}, nil
	case model.SourceSharedWallet:
		return &model.TransactionParams{
			Context:  model.ContextSharedWalletWithdraw,
			UserID:   params.UserID,
			Amount:   params.Amount,
			Currency: model.CurrencyUSDC,
			Memo:     params.Memo,
			Shared: &model.SharedWalletParams{
				SharedWalletID:     params.SourceID,
				DestinationAddress: params.DestinationAddress,
			},
		}, nil
	default:
		return nil, fmt.Errorf("unknown withdrawal source type: %q", params.SourceType)
	}
}

// Withdraw executes a withdrawal from either source type.
func (s *WithdrawalService) Withdraw(ctx context.Context, params *model.WithdrawalParams) model.WithdrawalResult {
	txParams, err := toTransactionParams(params)
	if err != nil {
		return model.WithdrawalResult{Success: false, Kind: model.FailureDefinite, Error: err.Error()}
	}

	result := s.dispatcher.ExecuteTransaction(ctx, txParams)
	return model.WithdrawalResult{
		Success:       result.Success,
		Signature:     result.Signature,
		Error:         result.Error,
		Kind:          result.Kind,
		Message:       result.Message,
		LedgerWarning: result.LedgerWarning,
	}
}

// ValidateWithdrawalBalance mirrors each source type's authorization and
// balance rules so UI layers can show actionable errors before attempting
// execution.
func (s *WithdrawalService) ValidateWithdrawalBalance(ctx context.Context, params *model.WithdrawalParams) model.WithdrawalValidation {
	txParams, err := toTransactionParams(params)
	if err != nil {
		return model.WithdrawalValidation{CanWithdraw: false, Error: err.Error()}
	}

	if err := s.authorize(ctx, params); err != nil {
		return model.WithdrawalValidation{CanWithdraw: false, Error: err.Error()}
	}

	v := s.dispatcher.ValidateTransaction(ctx, txParams)
	return model.WithdrawalValidation{
		CanWithdraw:      v.CanExecute,
		Error:            v.Error,
		AvailableBalance: v.AvailableBalance,
		RequiredBalance:  v.RequiredBalance,
	}
}

// authorize applies the per-source withdrawal authorization rules without
// touching the chain.
func (s *WithdrawalService) authorize(ctx context.Context, params *model.WithdrawalParams) error {
	switch params.SourceType {
	case model.SourceSplitWallet:
		w, err := s.dispatcher.splits.Get(ctx, params.SourceID)
		if err != nil {
			return err
		}
		if w.DegenWinner != "" || w.DegenLoser != "" {
			if params.UserID != w.DegenWinner && params.UserID != w.DegenLoser {
				return fmt.Errorf("only the designated winner or loser may withdraw from a degen split")
			}
			return nil
		}
		if params.UserID != w.CreatorID {
			return fmt.Errorf("only the split creator may withdraw")
		}
		return nil
	case model.SourceSharedWallet:
		w, err := s.dispatcher.shareds.Get(ctx, params.SourceID)
		if err != nil {
			return err
		}
		m := w.Member(params.UserID)
		if m == nil {
			return fmt.Errorf("user %s is not a member of shared wallet %s", params.UserID, params.SourceID)
		}
		amountMicro, err := common.USDCToMicro(params.Amount)
		if err != nil {
			return fmt.Errorf("invalid amount: %w", err)
		}
		// Same cap as execution: amount plus any withdrawal fee, since the
		// fee is paid out of the pooled wallet.
		userAddr, _ := s.dispatcher.addresses.UserWalletAddress(ctx, params.UserID)
		internal := s.dispatcher.addresses.IsInternal(ctx, params.DestinationAddress, userAddr, w.WalletAddress)
		quote := s.dispatcher.fees.WithdrawQuote(amountMicro, internal)
		if net := m.NetContributed(); quote.Total > net {
			return fmt.Errorf("withdrawal exceeds your contributed balance: %s USDC available, %s USDC required",
				common.MicroToUSDC(net), common.MicroToUSDC(quote.Total))
		}
		return nil
	default:
		return fmt.Errorf("unknown withdrawal source type: %q", params.SourceType)
	}
}
