package handler

import (
	"encoding/json"
	"net/http"

	"github.com/WeSplit-io/wesplit-core/internal/config"
	"github.com/WeSplit-io/wesplit-core/internal/model"
	"github.com/WeSplit-io/wesplit-core/transaction"
)

// TransactionHandler exposes the dispatcher and withdrawal service over HTTP
type TransactionHandler struct {
	dispatcher  *transaction.Dispatcher
	withdrawals *transaction.WithdrawalService
	mintAddress string
}

// NewTransactionHandler creates the handler with config values
func NewTransactionHandler(d *transaction.Dispatcher, w *transaction.WithdrawalService) *TransactionHandler {
	return &TransactionHandler{
		dispatcher:  d,
		withdrawals: w,
		mintAddress: config.Get().USDCMintAddress,
	}
}

// Validate handles POST /transactions/validate
// @Summary      Validate a transaction
// @Description  Pre-flight balance and fee check for a transaction without executing it
// @Tags         transactions
// @Accept       json
// @Produce      json
// @Param        request  body      model.TransactionParams  true  "Transaction parameters"
// @Success      200      {object}  model.ValidationResult
// @Router       /transactions/validate [post]
func (h *TransactionHandler) Validate(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed. Should be POST", http.StatusMethodNotAllowed)
		return
	}

	var params model.TransactionParams
	if err := json.NewDecoder(r.Body).Decode(&params); err != nil {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		json.NewEncoder(w).Encode(model.ErrorResponse{Error: err.Error()})
		return
	}

	result := h.dispatcher.ValidateTransaction(r.Context(), &params)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(result)
}

// Execute handles POST /transactions/execute
// @Summary      Execute a transaction
// @Description  Routes the transaction to its context handler and executes the on-chain transfer
// @Tags         transactions
// @Accept       json
// @Produce      json
// @Param        request  body      model.TransactionParams  true  "Transaction parameters"
// @Success      200      {object}  model.TransactionResult
// @Router       /transactions/execute [post]
func (h *TransactionHandler) Execute(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed. Should be POST", http.StatusMethodNotAllowed)
		return
	}

	var params model.TransactionParams
	if err := json.NewDecoder(r.Body).Decode(&params); err != nil {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		json.NewEncoder(w).Encode(model.ErrorResponse{Error: err.Error()})
		return
	}

	result := h.dispatcher.ExecuteTransaction(r.Context(), &params)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(result)
}

// Withdraw handles POST /withdrawals
// @Summary      Withdraw from a split or shared wallet
// @Description  Normalizes either withdrawal source into the dispatcher's flow and executes it
// @Tags         withdrawals
// @Accept       json
// @Produce      json
// @Param        request  body      model.WithdrawalParams  true  "Withdrawal parameters"
// @Success      200      {object}  model.WithdrawalResult
// @Router       /withdrawals [post]
func (h *TransactionHandler) Withdraw(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed. Should be POST", http.StatusMethodNotAllowed)
		return
	}

	var params model.WithdrawalParams
	if err := json.NewDecoder(r.Body).Decode(&params); err != nil {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		json.NewEncoder(w).Encode(model.ErrorResponse{Error: err.Error()})
		return
	}

	result := h.withdrawals.Withdraw(r.Context(), &params)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(result)
}

// ValidateWithdrawal handles POST /withdrawals/validate
// @Summary      Validate a withdrawal
// @Description  Mirrors the source type's authorization and balance rules without executing
// @Tags         withdrawals
// @Accept       json
// @Produce      json
// @Param        request  body      model.WithdrawalParams  true  "Withdrawal parameters"
// @Success      200      {object}  model.WithdrawalValidation
// @Router       /withdrawals/validate [post]
func (h *TransactionHandler) ValidateWithdrawal(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed. Should be POST", http.StatusMethodNotAllowed)
		return
	}

	var params model.WithdrawalParams
	if err := json.NewDecoder(r.Body).Decode(&params); err != nil {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		json.NewEncoder(w).Encode(model.ErrorResponse{Error: err.Error()})
		return
	}

	result := h.withdrawals.ValidateWithdrawalBalance(r.Context(), &params)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(result)
}

// Receive handles GET /wallets/receive
// @Summary      Build a payment request
// @Description  Generates a Solana Pay URL and QR code for receiving USDC at an address
// @Tags         wallets
// @Produce      json
// @Param        address  query     string  true   "Receiving wallet address"
// @Param        amount   query     string  false  "Requested amount in USDC"
// @Param        memo     query     string  false  "Memo to embed in the payment"
// @Success      200      {object}  model.ReceiveResponse
// @Router       /wallets/receive [get]
func (h *TransactionHandler) Receive(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed. Should be GET", http.StatusMethodNotAllowed)
		return
	}

	address := r.URL.Query().Get("address")
	amount := r.URL.Query().Get("amount")
	memo := r.URL.Query().Get("memo")

	resp, err := transaction.BuildPaymentRequest(address, h.mintAddress, amount, memo)
	if err != nil {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		json.NewEncoder(w).Encode(model.ErrorResponse{Error: err.Error()})
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(resp)
}
