package services

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/carepay/backend/internal/audit"
	"github.com/carepay/backend/internal/chain"
	"github.com/carepay/backend/internal/models"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// PaymentService turns confirmed gateway payments into freshly minted vouchers.
// The webhook transport always receives a response; processing failures are
// logged and reported as a structured error body so the gateway does not storm
// the endpoint with retries.
type PaymentService struct {
	db    *sql.DB
	chain chain.Client
	audit *audit.AuditLogger
}

func NewPaymentService(db *sql.DB, chainClient chain.Client) *PaymentService {
	return &PaymentService{
		db:    db,
		chain: chainClient,
		audit: audit.NewAuditLogger(),
	}
}

// PaymentEvent is the gateway webhook envelope. Signature verification happens
// upstream; by the time an event reaches this service it is trusted.
type PaymentEvent struct {
	ID   string `json:"id"`
	Type string `json:"type"`
	Data struct {
		Object PaymentIntent `json:"object"`
	} `json:"data"`
}

// PaymentIntent carries the confirmed payment. Amount arrives in minor units.
type PaymentIntent struct {
	ID       string            `json:"id"`
	Amount   int64             `json:"amount"`
	Currency string            `json:"currency"`
	Metadata map[string]string `json:"metadata"`
}

const eventPaymentSucceeded = "payment_intent.succeeded"

// HandleNotification handles gateway payment webhooks
// @Summary Payment gateway webhook
// @Description Mint a voucher for the patient named in a confirmed payment's metadata
// @Tags payment
// @Accept json
// @Produce json
// @Param event body PaymentEvent true "Gateway event"
// @Success 200 {object} map[string]any
// @Router /payment/notification [post]
func (s *PaymentService) HandleNotification(w http.ResponseWriter, r *http.Request) {
	var event PaymentEvent
	if err := json.NewDecoder(r.Body).Decode(&event); err != nil {
		log.Printf("[PAYMENT] Failed to decode webhook event: %v", err)
		s.respond(w, map[string]any{"error": "Failed to process webhook event"})
		return
	}

	if event.Type != eventPaymentSucceeded {
		log.Printf("[PAYMENT] Ignoring gateway event type: %s", event.Type)
		s.respond(w, map[string]any{"received": true})
		return
	}

	if err := s.processSucceededPayment(r.Context(), &event.Data.Object); err != nil {
		log.Printf("[PAYMENT] Error processing webhook event %s: %v", event.ID, err)
		s.respond(w, map[string]any{"error": "Failed to process webhook event"})
		return
	}

	s.respond(w, map[string]any{"received": true})
}

// processSucceededPayment mints a chain voucher for the patient named in the
// payment metadata and persists the resulting Transaction+Voucher pair.
func (s *PaymentService) processSucceededPayment(ctx context.Context, intent *PaymentIntent) error {
	senderID := intent.Metadata["senderId"]
	patientID := intent.Metadata["patientId"]
	if senderID == "" || patientID == "" {
		return fmt.Errorf("payment %s metadata missing senderId or patientId", intent.ID)
	}

	// Minor units to major units, round half-up to two decimals.
	amount := decimal.NewFromInt(intent.Amount).DivRound(decimal.NewFromInt(100), 2)
	currency := strings.ToUpper(intent.Currency)

	mint, err := s.chain.MintVoucher(ctx, chain.MintVoucherRequest{
		Amount:    amount,
		Currency:  currency,
		OwnerID:   patientID,
		PatientID: patientID,
	})
	if err != nil {
		return fmt.Errorf("mint voucher for payment %s: %w", intent.ID, err)
	}

	now := time.Now()
	transactionID := uuid.NewString()

	snapshot := models.VoucherSnapshot{
		ID:        mint.VoucherID,
		Amount:    mint.Amount,
		Currency:  mint.Currency,
		OwnerID:   mint.OwnerID,
		PatientID: mint.PatientID,
		Status:    models.VoucherUnclaimed,
	}

	dbTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer dbTx.Rollback()

	_, err = dbTx.ExecContext(ctx, `
		INSERT INTO transactions
			(id, sender_amount, sender_currency, amount, conversion_rate, currency,
			 sender_id, owner_id, owner_type, status, stripe_payment_id, voucher,
			 created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)`,
		transactionID, amount, currency, amount, decimal.Zero, currency,
		senderID, patientID, models.OwnerPatient, models.TransactionPending,
		intent.ID, snapshot, now, now)
	if err != nil {
		return fmt.Errorf("insert transaction for payment %s: %w", intent.ID, err)
	}

	_, err = dbTx.ExecContext(ctx, `
		INSERT INTO vouchers
			(id, vid, voucher_hash, shorten_hash, value, sender_id, sender_type,
			 receiver_id, receiver_type, status, transaction_id, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`,
		uuid.NewString(), mint.VoucherID, mint.TransactionHash, mint.ShortenHash(), mint.Amount,
		senderID, models.SenderPayer, patientID, models.ReceiverPatient,
		models.VoucherUnclaimed, transactionID, now, now)
	if err != nil {
		return fmt.Errorf("insert voucher for payment %s: %w", intent.ID, err)
	}

	if err := dbTx.Commit(); err != nil {
		return err
	}

	s.audit.LogMint(transactionID, mint.VoucherID, mint.ShortenHash(), mint.Amount)
	log.Printf("[PAYMENT] Voucher %s minted for payment %s (%s %s)",
		mint.ShortenHash(), intent.ID, amount, currency)
	return nil
}

// GetVoucherByPaymentID handles voucher lookup by payment reference
// @Summary Get voucher by payment id
// @Description Retrieve the transaction created for a gateway payment
// @Tags payment
// @Produce json
// @Param paymentId query string true "Gateway payment id"
// @Success 200 {object} models.Transaction
// @Failure 404 {object} ErrorResponse
// @Router /payment/voucher [get]
func (s *PaymentService) GetVoucherByPaymentID(w http.ResponseWriter, r *http.Request) {
	paymentID := r.URL.Query().Get("paymentId")
	if paymentID == "" {
		SendErrorResponse(w, "paymentId query parameter required", http.StatusBadRequest, nil)
		return
	}

	row := s.db.QueryRowContext(r.Context(), `
		SELECT id, sender_amount, sender_currency, amount, conversion_rate, currency,
		       sender_id, owner_id, owner_type, provider_id, status, stripe_payment_id,
		       voucher, created_at, updated_at
		FROM transactions
		WHERE stripe_payment_id = $1 AND deleted_at IS NULL`, paymentID)

	tx, err := scanTransaction(row)
	if err == sql.ErrNoRows {
		SendErrorResponse(w, "Transaction not found", http.StatusNotFound, nil)
		return
	}
	if err != nil {
		RenderError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(tx)
}

func (s *PaymentService) respond(w http.ResponseWriter, body map[string]any) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(body)
}
