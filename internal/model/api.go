package model

// ReceiveResponse represents response for GET /wallets/receive
type ReceiveResponse struct {
	Address string `json:"address"`
	URL     string `json:"url"`
	QR      string `json:"qr"` // base64 PNG
}
