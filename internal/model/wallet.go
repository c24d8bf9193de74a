package model

import "time"

// ParticipantStatus is the payment state of a split participant
type ParticipantStatus string

const (
	StatusPending ParticipantStatus = "pending"
	StatusPaid    ParticipantStatus = "paid"
	StatusLocked  ParticipantStatus = "locked"
)

// SplitParticipant is one member of a bill split. Amounts are micro USDC.
// AmountPaid only ever grows and is clamped to AmountOwed.
type SplitParticipant struct {
	UserID      string            `json:"userId"`
	AmountOwed  uint64            `json:"amountOwed"`
	AmountPaid  uint64            `json:"amountPaid"`
	Status      ParticipantStatus `json:"status"`
	Signature   string            `json:"transactionSignature,omitempty"`
	PaidAt      *time.Time        `json:"paidAt,omitempty"`
}

// SplitWallet is a program-controlled keypair account pooling contributions
// for one bill, in either fair or degen mode.
type SplitWallet struct {
	ID            string             `json:"id"`
	WalletAddress string             `json:"walletAddress"`
	CreatorID     string             `json:"creatorId"`
	BillID        string             `json:"billId"`
	Participants  []SplitParticipant `json:"participants"`
	DegenWinner   string             `json:"degenWinner,omitempty"`
	DegenLoser    string             `json:"degenLoser,omitempty"`
}

// Participant returns the participant record for userID, or nil.
func (w *SplitWallet) Participant(userID string) *SplitParticipant {
	for i := range w.Participants {
		if w.Participants[i].UserID == userID {
			return &w.Participants[i]
		}
	}
	return nil
}

// SharedWalletMember tracks one member's running ledger in a shared wallet.
// Micro USDC. A member may withdraw at most
// TotalContributed - TotalWithdrawn, never the wallet's aggregate balance.
type SharedWalletMember struct {
	UserID           string `json:"userId"`
	TotalContributed uint64 `json:"totalContributed"`
	TotalWithdrawn   uint64 `json:"totalWithdrawn"`
}

// NetContributed is the member's withdrawable ceiling.
func (m *SharedWalletMember) NetContributed() uint64 {
	if m.TotalWithdrawn >= m.TotalContributed {
		return 0
	}
	return m.TotalContributed - m.TotalWithdrawn
}

// SharedWallet is a persistent multi-member pooled USDC account.
type SharedWallet struct {
	ID            string               `json:"id"`
	WalletAddress string               `json:"walletAddress"`
	CreatorID     string               `json:"creatorId"`
	Members       []SharedWalletMember `json:"members"`
}

// Member returns the member record for userID, or nil.
func (w *SharedWallet) Member(userID string) *SharedWalletMember {
	for i := range w.Members {
		if w.Members[i].UserID == userID {
			return &w.Members[i]
		}
	}
	return nil
}

// UserWallet maps an app user to their personal Solana wallet address.
type UserWallet struct {
	UserID        string `json:"userId"`
	WalletAddress string `json:"walletAddress"`
}
