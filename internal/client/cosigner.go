package client

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/google/uuid"
)

// CoSigner adds the company fee-payer signature to a partially-signed
// transaction. The fee-payer private key never exists client-side; the
// backend holds it and returns the fully signed transaction.
type CoSigner interface {
	CoSign(ctx context.Context, tx *solana.Transaction) (*solana.Transaction, error)
}

// HTTPCoSigner is the backend co-signing endpoint client.
type HTTPCoSigner struct {
	baseURL string
	client  *http.Client
}

// NewHTTPCoSigner creates a co-signer client for the given base URL.
func NewHTTPCoSigner(baseURL string) (*HTTPCoSigner, error) {
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if baseURL == "" {
		return nil, fmt.Errorf("cosigner: base URL is required")
	}
	return &HTTPCoSigner{
		baseURL: baseURL,
		client: &http.Client{
			Timeout: 15 * time.Second,
		},
	}, nil
}

type coSignRequest struct {
	Transaction string `json:"transaction"` // base64 serialized, partially signed
}

type coSignResponse struct {
	Transaction string `json:"transaction"` // base64 serialized, fully signed
	Error       string `json:"error,omitempty"`
}

// CoSign serializes the partially-signed transaction, posts it to the
// backend and deserializes the fully signed result.
func (c *HTTPCoSigner) CoSign(ctx context.Context, tx *solana.Transaction) (*solana.Transaction, error) {
	serialized, err := tx.MarshalBinary()
	if err != nil {
		return nil, fmt.Errorf("failed to serialize transaction: %w", err)
	}

	body, err := json.Marshal(coSignRequest{
		Transaction: base64.StdEncoding.EncodeToString(serialized),
	})
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/cosign", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	// Idempotency key: the backend must not double-sign a resubmitted
	// payment on a client retry.
	req.Header.Set("Idempotency-Key", uuid.NewString())

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("co-signing request failed: %w", err)
	}
	defer resp.Body.Close()

	var out coSignResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("failed to decode co-signing response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		if out.Error != "" {
			return nil, fmt.Errorf("co-signing rejected: %s", out.Error)
		}
		return nil, fmt.Errorf("co-signing failed: status %d", resp.StatusCode)
	}

	raw, err := base64.StdEncoding.DecodeString(out.Transaction)
	if err != nil {
		return nil, fmt.Errorf("failed to decode co-signed transaction: %w", err)
	}
	signed, err := solana.TransactionFromBytes(raw)
	if err != nil {
		return nil, fmt.Errorf("failed to deserialize co-signed transaction: %w", err)
	}
	return signed, nil
}
