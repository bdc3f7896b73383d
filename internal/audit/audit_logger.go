package audit

import (
	"encoding/json"
	"log"
	"time"

	"github.com/shopspring/decimal"
)

type AuditEvent struct {
	Timestamp     time.Time       `json:"timestamp"`
	EventType     string          `json:"event_type"`
	TransactionID string          `json:"transaction_id"`
	VoucherID     int64           `json:"voucher_id,omitempty"`
	ShortenHash   string          `json:"shorten_hash,omitempty"`
	Amount        decimal.Decimal `json:"amount"`
	Status        string          `json:"status"`
	Details       any             `json:"details,omitempty"`
}

// AuditLogger writes one JSON line per voucher lifecycle event. Chain calls are
// always logged so an out-of-band reconciliation job can replay partial splits.
type AuditLogger struct{}

func NewAuditLogger() *AuditLogger {
	return &AuditLogger{}
}

func (a *AuditLogger) LogMint(transactionID string, vid int64, shortenHash string, amount decimal.Decimal) {
	a.log(AuditEvent{
		Timestamp:     time.Now(),
		EventType:     "MINT",
		TransactionID: transactionID,
		VoucherID:     vid,
		ShortenHash:   shortenHash,
		Amount:        amount,
		Status:        "SUCCESS",
	})
}

func (a *AuditLogger) LogBurn(transactionID string, vid int64, amount decimal.Decimal) {
	a.log(AuditEvent{
		Timestamp:     time.Now(),
		EventType:     "BURN",
		TransactionID: transactionID,
		VoucherID:     vid,
		Amount:        amount,
		Status:        "SUCCESS",
	})
}

func (a *AuditLogger) LogTransfer(transactionID, shortenHash, providerID string, amount decimal.Decimal) {
	a.log(AuditEvent{
		Timestamp:     time.Now(),
		EventType:     "TRANSFER",
		TransactionID: transactionID,
		ShortenHash:   shortenHash,
		Amount:        amount,
		Status:        "SUCCESS",
		Details:       map[string]string{"provider_id": providerID},
	})
}

func (a *AuditLogger) LogSplit(transactionID, shortenHash string, serviceTotal, remainder decimal.Decimal) {
	a.log(AuditEvent{
		Timestamp:     time.Now(),
		EventType:     "SPLIT",
		TransactionID: transactionID,
		ShortenHash:   shortenHash,
		Amount:        serviceTotal.Add(remainder),
		Status:        "SUCCESS",
		Details: map[string]string{
			"service_total": serviceTotal.String(),
			"remainder":     remainder.String(),
		},
	})
}

func (a *AuditLogger) LogRedeem(transactionID string, amount decimal.Decimal) {
	a.log(AuditEvent{
		Timestamp:     time.Now(),
		EventType:     "REDEEM",
		TransactionID: transactionID,
		Amount:        amount,
		Status:        "SUCCESS",
	})
}

func (a *AuditLogger) LogPayout(transactionID, providerID string, amount decimal.Decimal) {
	a.log(AuditEvent{
		Timestamp:     time.Now(),
		EventType:     "PAYOUT",
		TransactionID: transactionID,
		Amount:        amount,
		Status:        "SUCCESS",
		Details:       map[string]string{"provider_id": providerID},
	})
}

func (a *AuditLogger) LogError(transactionID, shortenHash string, err error) {
	a.log(AuditEvent{
		Timestamp:     time.Now(),
		EventType:     "ERROR",
		TransactionID: transactionID,
		ShortenHash:   shortenHash,
		Status:        "FAILED",
		Details:       map[string]string{"error": err.Error()},
	})
}

func (a *AuditLogger) log(event AuditEvent) {
	data, _ := json.Marshal(event)
	log.Printf("AUDIT: %s", string(data))
}
