package api

import (
	"net/http"

	httpSwagger "github.com/swaggo/http-swagger"

	"github.com/WeSplit-io/wesplit-core/internal/handler"
	"github.com/WeSplit-io/wesplit-core/transaction"
)

// SetupRouter sets up router with handlers
func SetupRouter(d *transaction.Dispatcher, w *transaction.WithdrawalService) http.Handler {
	txHandler := handler.NewTransactionHandler(d, w)

	mux := http.NewServeMux()

	// Swagger UI
	mux.HandleFunc("/swagger/", httpSwagger.WrapHandler)

	// Transaction endpoints
	mux.HandleFunc("/transactions/validate", txHandler.Validate)
	mux.HandleFunc("/transactions/execute", txHandler.Execute)
	mux.HandleFunc("/withdrawals", txHandler.Withdraw)
	mux.HandleFunc("/withdrawals/validate", txHandler.ValidateWithdrawal)
	mux.HandleFunc("/wallets/receive", txHandler.Receive)

	return mux
}
