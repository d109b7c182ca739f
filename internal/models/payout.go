package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/repostpay/backend/internal/money"
)

// Payout statuses
const (
	PayoutStatusPending    = "PENDING"
	PayoutStatusProcessing = "PROCESSING"
	PayoutStatusCompleted  = "COMPLETED"
	PayoutStatusFailed     = "FAILED"
)

// Payout methods
const (
	PayoutMethodNexusPay = "NEXUSPAY" // crypto wallet
	PayoutMethodMPesa    = "MPESA"
	PayoutMethodPaystack = "PAYSTACK"
	PayoutMethodBank     = "BANK"
)

var AllPayoutMethods = []string{PayoutMethodNexusPay, PayoutMethodMPesa, PayoutMethodPaystack, PayoutMethodBank}

func IsValidPayoutMethod(m string) bool { return contains(AllPayoutMethods, m) }

type Payout struct {
	ID                   uuid.UUID   `json:"id"`
	ParticipantID        uuid.UUID   `json:"participant_id"`
	Amount               money.Money `json:"amount"`
	Method               string      `json:"method"`
	WalletAddress        *string     `json:"wallet_address,omitempty"`
	PhoneNumber          *string     `json:"phone_number,omitempty"`
	BankAccount          *string     `json:"bank_account,omitempty"`
	Network              *string     `json:"network,omitempty"`
	TransactionRef       *string     `json:"transaction_ref,omitempty"`
	Status               string      `json:"status"`
	CoveredSubmissionIDs []uuid.UUID `json:"covered_submission_ids"`
	CoveredAmount        money.Money `json:"covered_amount"`
	FailureReason        *string     `json:"failure_reason,omitempty"`
	ProcessingAt         *time.Time  `json:"processing_at,omitempty"`
	ProcessedAt          *time.Time  `json:"processed_at,omitempty"`
	CreatedAt            time.Time   `json:"created_at"`
	UpdatedAt            time.Time   `json:"updated_at"`
}

func (p *Payout) IsTerminal() bool {
	return p.Status == PayoutStatusCompleted || p.Status == PayoutStatusFailed
}

// IsOpen reports whether the payout still holds its reservation.
func (p *Payout) IsOpen() bool {
	return p.Status == PayoutStatusPending || p.Status == PayoutStatusProcessing
}

// Destination returns the address the external rail should pay into.
func (p *Payout) Destination() string {
	switch p.Method {
	case PayoutMethodNexusPay:
		return DerefString(p.WalletAddress)
	case PayoutMethodMPesa, PayoutMethodPaystack:
		return DerefString(p.PhoneNumber)
	default:
		return DerefString(p.BankAccount)
	}
}

type PayoutStats struct {
	TotalPaidOut     money.Money `json:"total_paid_out"`
	PendingPayouts   money.Money `json:"pending_payouts"`
	CompletedPayouts int         `json:"completed_payouts"`
	FailedPayouts    int         `json:"failed_payouts"`
}

// DerefString returns "" for nil.
func DerefString(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
