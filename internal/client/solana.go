package client

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
)

// SigStatus is the on-chain view of a submitted signature.
type SigStatus int

const (
	// SigStatusUnknown: the network has not reported the signature yet.
	SigStatusUnknown SigStatus = iota
	// SigStatusConfirmed: the transaction landed without error.
	SigStatusConfirmed
	// SigStatusFailed: the transaction landed and errored.
	SigStatusFailed
)

// Chain is the RPC surface the transaction layer consumes. Implemented by
// RPCClient in production and by fakes in tests.
type Chain interface {
	Mint() solana.PublicKey
	LatestBlockhash(ctx context.Context) (solana.Hash, error)
	AccountExists(ctx context.Context, account solana.PublicKey) (bool, error)
	// TokenBalance returns the owner's USDC balance in micro units. A
	// missing associated token account reads as zero.
	TokenBalance(ctx context.Context, owner solana.PublicKey) (uint64, error)
	Submit(ctx context.Context, tx *solana.Transaction) (solana.Signature, error)
	SignatureStatus(ctx context.Context, sig solana.Signature) (SigStatus, error)
	// Confirm polls until the signature confirms, fails, or ctx expires.
	Confirm(ctx context.Context, sig solana.Signature) (SigStatus, error)
}

// RPCClient is the Solana RPC implementation of Chain.
type RPCClient struct {
	rpcClient *rpc.Client
	rpcURL    string
	mint      solana.PublicKey
}

// NewRPCClient creates a client for the given RPC endpoint and token mint.
func NewRPCClient(rpcURL, mintAddress string) (*RPCClient, error) {
	mint, err := solana.PublicKeyFromBase58(mintAddress)
	if err != nil {
		return nil, fmt.Errorf("invalid USDC mint address: %w", err)
	}
	return &RPCClient{
		rpcClient: rpc.New(rpcURL),
		rpcURL:    rpcURL,
		mint:      mint,
	}, nil
}

func (c *RPCClient) Mint() solana.PublicKey { return c.mint }

func (c *RPCClient) LatestBlockhash(ctx context.Context) (solana.Hash, error) {
	recent, err := c.rpcClient.GetLatestBlockhash(ctx, rpc.CommitmentFinalized)
	if err != nil {
		return solana.Hash{}, fmt.Errorf("failed to get recent blockhash: %w", err)
	}
	return recent.Value.Blockhash, nil
}

func (c *RPCClient) AccountExists(ctx context.Context, account solana.PublicKey) (bool, error) {
	info, err := c.rpcClient.GetAccountInfo(ctx, account)
	if err != nil {
		if isAccountNotFoundError(err) {
			return false, nil
		}
		return false, fmt.Errorf("failed to get account info: %w", err)
	}
	return info.Value != nil, nil
}

func (c *RPCClient) TokenBalance(ctx context.Context, owner solana.PublicKey) (uint64, error) {
	ata, _, err := solana.FindAssociatedTokenAddress(owner, c.mint)
	if err != nil {
		return 0, fmt.Errorf("failed to find associated token account address: %w", err)
	}

	balance, err := c.rpcClient.GetTokenAccountBalance(ctx, ata, rpc.CommitmentConfirmed)
	if err != nil {
		if isAccountNotFoundError(err) {
			return 0, nil
		}
		return 0, fmt.Errorf("failed to get token account balance: %w", err)
	}
	if balance.Value == nil {
		return 0, nil
	}

	amount, err := strconv.ParseUint(balance.Value.Amount, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("failed to parse token balance amount: %w", err)
	}
	return amount, nil
}

func (c *RPCClient) Submit(ctx context.Context, tx *solana.Transaction) (solana.Signature, error) {
	sig, err := c.rpcClient.SendTransactionWithOpts(
		ctx,
		tx,
		rpc.TransactionOpts{
			SkipPreflight:       false, // simulate at the node before accepting
			PreflightCommitment: rpc.CommitmentConfirmed,
		},
	)
	if err != nil {
		return solana.Signature{}, fmt.Errorf("failed to send transaction: %w", err)
	}
	return sig, nil
}

func (c *RPCClient) SignatureStatus(ctx context.Context, sig solana.Signature) (SigStatus, error) {
	out, err := c.rpcClient.GetSignatureStatuses(ctx, true, sig)
	if err != nil {
		return SigStatusUnknown, fmt.Errorf("failed to get signature status: %w", err)
	}
	if out == nil || len(out.Value) == 0 || out.Value[0] == nil {
		return SigStatusUnknown, nil
	}
	st := out.Value[0]
	if st.Err != nil {
		return SigStatusFailed, nil
	}
	switch st.ConfirmationStatus {
	case rpc.ConfirmationStatusConfirmed, rpc.ConfirmationStatusFinalized:
		return SigStatusConfirmed, nil
	default:
		return SigStatusUnknown, nil
	}
}

func (c *RPCClient) Confirm(ctx context.Context, sig solana.Signature) (SigStatus, error) {
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	for {
		status, err := c.SignatureStatus(ctx, sig)
		if err == nil && status != SigStatusUnknown {
			return status, nil
		}
		select {
		case <-ctx.Done():
			return SigStatusUnknown, ctx.Err()
		case <-ticker.C:
		}
	}
}

// isAccountNotFoundError checks if error indicates that the account doesn't exist
func isAccountNotFoundError(err error) bool {
	if err == nil {
		return false
	}
	errStr := err.Error()
	return strings.Contains(errStr, "could not find account") ||
		strings.Contains(errStr, "not found")
}
