package transaction

import (
	"encoding/base64"
	"fmt"
	"net/url"

	"github.com/skip2/go-qrcode"

	"github.com/WeSplit-io/wesplit-core/internal/common"
	"github.com/WeSplit-io/wesplit-core/internal/model"
)

// BuildPaymentRequest produces a Solana Pay style payment URL and its QR
// code for a receive screen. Amount and memo are optional.
func BuildPaymentRequest(address, mintAddress, amount, memo string) (*model.ReceiveResponse, error) {
	if !validAddress(address) {
		return nil, fmt.Errorf("invalid Solana address")
	}
	if amount != "" {
		if _, err := common.USDCToMicro(amount); err != nil {
			return nil, fmt.Errorf("invalid amount: %w", err)
		}
	}

	q := url.Values{}
	q.Set("spl-token", mintAddress)
	if amount != "" {
		q.Set("amount", amount)
	}
	if memo != "" {
		q.Set("memo", memo)
	}
	payURL := "solana:" + address + "?" + q.Encode()

	qr, err := qrcode.New(payURL, qrcode.Medium)
	if err != nil {
		return nil, fmt.Errorf("failed to create QR code: %w", err)
	}
	png, err := qr.PNG(256)
	if err != nil {
		return nil, fmt.Errorf("failed to generate PNG: %w", err)
	}

	return &model.ReceiveResponse{
		Address: address,
		URL:     payURL,
		QR:      base64.StdEncoding.EncodeToString(png),
	}, nil
}
