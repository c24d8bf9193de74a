package main

import (
	"fmt"
	"net/http"
	"os"

	"github.com/gagliardetto/solana-go"
	"go.uber.org/zap"

	"github.com/WeSplit-io/wesplit-core/internal/api"
	"github.com/WeSplit-io/wesplit-core/internal/client"
	"github.com/WeSplit-io/wesplit-core/internal/config"
	"github.com/WeSplit-io/wesplit-core/internal/fees"
	"github.com/WeSplit-io/wesplit-core/internal/ledger"
	"github.com/WeSplit-io/wesplit-core/transaction"
	"github.com/WeSplit-io/wesplit-core/vault"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run() error {
	if err := config.Init(); err != nil {
		return err
	}
	cfg := config.Get()

	log, err := newLogger(cfg.LogEnv)
	if err != nil {
		return err
	}
	defer log.Sync()

	// The vault key derives from the operator passcode; prompt before the
	// server starts serving.
	if err := config.PromptForPasscode(); err != nil {
		return err
	}

	secretStore, err := vault.NewFileStore(cfg.VaultSecretsDir)
	if err != nil {
		return err
	}
	session := vault.NewSession(
		&vault.PasscodeKeychain{Passcode: config.GetPasscodeBytes, Store: secretStore},
		secretStore,
		log,
		vault.WithKeyTTL(cfg.VaultKeyTTL),
		vault.WithResultTTL(cfg.VaultResultTTL),
	)

	chain, err := client.NewRPCClient(cfg.SolanaRPCURL, cfg.USDCMintAddress)
	if err != nil {
		return err
	}
	cosigner, err := client.NewHTTPCoSigner(cfg.CoSignerBaseURL)
	if err != nil {
		return err
	}
	store, err := ledger.NewHTTPStore(cfg.LedgerBaseURL)
	if err != nil {
		return err
	}

	feeWallet, err := solana.PublicKeyFromBase58(cfg.CompanyFeeWallet)
	if err != nil {
		return fmt.Errorf("invalid company fee wallet: %w", err)
	}
	table := fees.Table{
		SendBps:     cfg.SendFeeBps,
		MerchantBps: cfg.MerchantFeeBps,
		WithdrawBps: cfg.WithdrawFeeBps,
	}

	dispatcher := transaction.NewDispatcher(transaction.Config{
		Chain:     chain,
		CoSigner:  cosigner,
		Keys:      &transaction.VaultKeySource{Vault: session},
		Splits:    ledger.NewSplitWallets(store, log),
		Shareds:   ledger.NewSharedWallets(store, log),
		Addresses: ledger.NewAddressBook(store, log),
		Fees:      table,
		Processor: transaction.NewProcessor(chain, table, feeWallet, log,
			transaction.WithSubmitTimeout(cfg.SubmitTimeout),
			transaction.WithConfirmTimeout(cfg.ConfirmTimeout)),
		Log:       log,
	})
	withdrawals := transaction.NewWithdrawalService(dispatcher)

	router := api.SetupRouter(dispatcher, withdrawals)

	log.Info("listening", zap.String("port", cfg.Port))
	return http.ListenAndServe(":"+cfg.Port, router)
}

func newLogger(env string) (*zap.Logger, error) {
	if env == "production" {
		return zap.NewProduction()
	}
	return zap.NewDevelopment()
}
