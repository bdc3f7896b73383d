package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type VoucherStatus string

const (
	VoucherPending   VoucherStatus = "PENDING"
	VoucherUnclaimed VoucherStatus = "UNCLAIMED"
	VoucherClaimed   VoucherStatus = "CLAIMED"
	VoucherSplit     VoucherStatus = "SPLIT"
	VoucherBurned    VoucherStatus = "BURNED"
)

type SenderType string

const (
	SenderPayer    SenderType = "PAYER"
	SenderProvider SenderType = "PROVIDER"
)

type ReceiverType string

const (
	ReceiverPatient  ReceiverType = "PATIENT"
	ReceiverProvider ReceiverType = "PROVIDER"
)

// Voucher is the store-side record of a spendable unit of value. VID is the
// chain-assigned numeric id, VoucherHash the mint transaction reference and
// ShortenHash its first 8 characters, shared with patients as the voucher code.
type Voucher struct {
	ID            string          `json:"id" db:"id"`
	VID           int64           `json:"vid" db:"vid"`
	VoucherHash   string          `json:"voucherHash" db:"voucher_hash"`
	ShortenHash   string          `json:"shortenHash" db:"shorten_hash"`
	Value         decimal.Decimal `json:"value" db:"value"`
	SenderID      string          `json:"senderId" db:"sender_id"`
	SenderType    SenderType      `json:"senderType" db:"sender_type"`
	ReceiverID    string          `json:"receiverId" db:"receiver_id"`
	ReceiverType  ReceiverType    `json:"receiverType" db:"receiver_type"`
	Status        VoucherStatus   `json:"status" db:"status"`
	TransactionID string          `json:"transactionId" db:"transaction_id"`
	CreatedAt     time.Time       `json:"createdAt" db:"created_at"`
	UpdatedAt     time.Time       `json:"updatedAt" db:"updated_at"`
	DeletedAt     *time.Time      `json:"deletedAt,omitempty" db:"deleted_at"`
}

// ShortenHashLength is the shareable prefix taken from a mint transaction hash.
const ShortenHashLength = 8
