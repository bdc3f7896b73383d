package services

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"

	"github.com/carepay/backend/internal/models"
	"github.com/go-chi/chi/v5"
)

// TransactionService serves funding history: everything for back-office views,
// per-sender slices for payer dashboards.
type TransactionService struct {
	db *sql.DB
}

func NewTransactionService(db *sql.DB) *TransactionService {
	return &TransactionService{db: db}
}

const transactionColumns = `id, sender_amount, sender_currency, amount, conversion_rate, currency,
	sender_id, owner_id, owner_type, provider_id, status, stripe_payment_id,
	voucher, created_at, updated_at`

// ListTransactions handles transaction history listing
// @Summary List transaction history
// @Description Get transaction history, newest first
// @Tags transactions
// @Produce json
// @Param limit query int false "Number of transactions to return (default: 50, max: 200)"
// @Success 200 {object} object{transactions=[]models.Transaction,count=int}
// @Failure 500 {object} ErrorResponse
// @Router /transactions [get]
func (ts *TransactionService) ListTransactions(w http.ResponseWriter, r *http.Request) {
	limit := 50
	if v := r.URL.Query().Get("limit"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil && parsed > 0 && parsed <= 200 {
			limit = parsed
		}
	}

	transactions, err := ts.fetchTransactions(r.Context(), `
		SELECT `+transactionColumns+`
		FROM transactions
		WHERE deleted_at IS NULL
		ORDER BY created_at DESC
		LIMIT $1`, limit)
	if err != nil {
		RenderError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"transactions": transactions,
		"count":        len(transactions),
	})
}

// GetBySender handles payer transaction history
// @Summary List transactions by sender
// @Description Get a payer's funding history, newest first
// @Tags transactions
// @Produce json
// @Param senderId path string true "Sender (payer) id"
// @Success 200 {object} object{transactions=[]models.Transaction,count=int}
// @Failure 500 {object} ErrorResponse
// @Router /transactions/sender/{senderId} [get]
func (ts *TransactionService) GetBySender(w http.ResponseWriter, r *http.Request) {
	senderID := chi.URLParam(r, "senderId")

	transactions, err := ts.fetchTransactions(r.Context(), `
		SELECT `+transactionColumns+`
		FROM transactions
		WHERE sender_id = $1 AND deleted_at IS NULL
		ORDER BY created_at DESC`, senderID)
	if err != nil {
		RenderError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"transactions": transactions,
		"count":        len(transactions),
	})
}

func (ts *TransactionService) fetchTransactions(ctx context.Context, query string, args ...any) ([]models.Transaction, error) {
	rows, err := ts.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("fetch transactions: %w", err)
	}
	defer rows.Close()

	transactions := []models.Transaction{}
	for rows.Next() {
		tx, err := scanTransaction(rows)
		if err != nil {
			return nil, err
		}
		transactions = append(transactions, *tx)
	}
	return transactions, rows.Err()
}
