package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/kelseyhightower/envconfig"
	"golang.org/x/term"
)

// Config contains all configuration parameters for the application.
// Note: the vault passcode is prompted at runtime and kept in memory -
// use GetPasscodeBytes().
type Config struct {
	Port   string `envconfig:"PORT" default:"8080"`
	LogEnv string `envconfig:"LOG_ENV" default:"development"`

	SolanaRPCURL    string `envconfig:"SOLANA_RPC_URL" default:"https://api.mainnet-beta.solana.com"`
	USDCMintAddress string `envconfig:"USDC_MINT_ADDRESS" default:"EPjFWdd5AufqSSqeM2qN1xzybapC8G4wEGGkZwyTDt1v"`

	// CompanyFeeWallet receives the per-transaction company fee and pays the
	// network fee on co-signed withdrawals.
	CompanyFeeWallet string `envconfig:"COMPANY_FEE_WALLET" required:"true"`
	CoSignerBaseURL  string `envconfig:"COSIGNER_BASE_URL" required:"true"`
	LedgerBaseURL    string `envconfig:"LEDGER_BASE_URL" required:"true"`

	// Fee basis points per transaction type. Contributions, locks and
	// funding are always free; internal withdrawals are waived at runtime.
	SendFeeBps     uint64 `envconfig:"SEND_FEE_BPS" default:"150"`
	MerchantFeeBps uint64 `envconfig:"MERCHANT_FEE_BPS" default:"100"`
	WithdrawFeeBps uint64 `envconfig:"WITHDRAW_FEE_BPS" default:"200"`

	SubmitTimeout  time.Duration `envconfig:"SUBMIT_TIMEOUT" default:"30s"`
	ConfirmTimeout time.Duration `envconfig:"CONFIRM_TIMEOUT" default:"8s"`

	VaultKeyTTL     time.Duration `envconfig:"VAULT_KEY_TTL" default:"5m"`
	VaultResultTTL  time.Duration `envconfig:"VAULT_RESULT_TTL" default:"3s"`
	VaultSecretsDir string        `envconfig:"VAULT_SECRETS_DIR" default:".wesplit-secrets"`
}

// cfg is the global configuration instance
var cfg *Config

// Init loads configuration from environment variables.
func Init() error {
	cfg = &Config{}
	if err := envconfig.Process("", cfg); err != nil {
		return fmt.Errorf("failed to process config: %w", err)
	}
	return nil
}

// Get returns the global configuration instance.
// Panics if Init() was not called.
func Get() *Config {
	if cfg == nil {
		panic("config not initialized, call Init() first")
	}
	return cfg
}

var passcodeBytes []byte

// PromptForPasscode prompts the operator for the vault passcode in the terminal.
// The passcode is read without echoing (hidden input) and stored in memory.
// Call this at startup before the server begins handling requests.
func PromptForPasscode() error {
	if !term.IsTerminal(int(os.Stdin.Fd())) {
		return errors.New("stdin is not a terminal: run the app interactively to enter passcode")
	}
	fmt.Fprint(os.Stderr, "Enter vault passcode: ")
	defer fmt.Fprintln(os.Stderr)

	raw, err := term.ReadPassword(int(os.Stdin.Fd()))
	if err != nil {
		return fmt.Errorf("failed to read passcode: %w", err)
	}
	if len(raw) == 0 {
		return errors.New("passcode cannot be empty")
	}

	passcodeBytes = make([]byte, len(raw))
	copy(passcodeBytes, raw)
	clear(raw)
	return nil
}

// GetPasscodeBytes returns the passcode stored in memory (from PromptForPasscode).
// Returns an error if the passcode was not set.
// Caller must zero the returned slice after use for security.
func GetPasscodeBytes() ([]byte, error) {
	if len(passcodeBytes) == 0 {
		return nil, errors.New("passcode not set: call PromptForPasscode at startup")
	}
	out := make([]byte, len(passcodeBytes))
	copy(out, passcodeBytes)
	return out, nil
}
