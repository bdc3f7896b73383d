package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

type TransactionStatus string

const (
	TransactionPending    TransactionStatus = "PENDING"
	TransactionSuccessful TransactionStatus = "SUCCESSFUL"
	TransactionSplit      TransactionStatus = "SPLIT"
	TransactionPaidOut    TransactionStatus = "PAID_OUT"
)

type OwnerType string

const (
	OwnerPatient  OwnerType = "PATIENT"
	OwnerProvider OwnerType = "PROVIDER"
	OwnerPayer    OwnerType = "PAYER"
)

// VoucherSnapshot is the jsonb copy of the chain voucher carried on a
// transaction row. It is written once from the decoded mint event and only its
// status field changes afterwards (redemption flips it to CLAIMED).
type VoucherSnapshot struct {
	ID         int64           `json:"id"`
	Amount     decimal.Decimal `json:"amount"`
	Currency   string          `json:"currency"`
	OwnerID    string          `json:"ownerId"`
	ProviderID string          `json:"providerId,omitempty"`
	PatientID  string          `json:"patientId"`
	Status     VoucherStatus   `json:"status"`
}

// Value implements driver.Valuer for VoucherSnapshot
func (v VoucherSnapshot) Value() (driver.Value, error) {
	return json.Marshal(v)
}

// Scan implements sql.Scanner for VoucherSnapshot
func (v *VoucherSnapshot) Scan(value any) error {
	if value == nil {
		return nil
	}
	b, ok := value.([]byte)
	if !ok {
		return fmt.Errorf("unsupported type for VoucherSnapshot: %T", value)
	}
	return json.Unmarshal(b, v)
}

// Transaction records one funding or ownership event. amount/currency are the
// local-currency leg the patient receives; senderAmount/senderCurrency are what
// the payer funded before conversion.
type Transaction struct {
	ID              string            `json:"id" db:"id"`
	SenderAmount    decimal.Decimal   `json:"senderAmount" db:"sender_amount"`
	SenderCurrency  string            `json:"senderCurrency" db:"sender_currency"`
	Amount          decimal.Decimal   `json:"amount" db:"amount"`
	ConversionRate  decimal.Decimal   `json:"conversionRate" db:"conversion_rate"`
	Currency        string            `json:"currency" db:"currency"`
	SenderID        string            `json:"senderId" db:"sender_id"`
	OwnerID         string            `json:"ownerId" db:"owner_id"`
	OwnerType       OwnerType         `json:"ownerType" db:"owner_type"`
	ProviderID      *string           `json:"providerId" db:"provider_id"`
	Status          TransactionStatus `json:"status" db:"status"`
	StripePaymentID string            `json:"stripePaymentId" db:"stripe_payment_id"`
	Voucher         VoucherSnapshot   `json:"voucher" db:"voucher"`
	CreatedAt       time.Time         `json:"createdAt" db:"created_at"`
	UpdatedAt       time.Time         `json:"updatedAt" db:"updated_at"`
	DeletedAt       *time.Time        `json:"deletedAt,omitempty" db:"deleted_at"`
}
