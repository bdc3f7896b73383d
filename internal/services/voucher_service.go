package services

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"math/rand"
	"net/http"
	"time"

	"github.com/carepay/backend/internal/audit"
	"github.com/carepay/backend/internal/chain"
	"github.com/carepay/backend/internal/models"
	"github.com/go-chi/chi/v5"
	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/shopspring/decimal"
	"github.com/spf13/viper"
	"golang.org/x/sync/errgroup"
)

// redeemCurrency is the single currency accepted on the redemption leg,
// independent of the original funding currency.
const redeemCurrency = "CDF"

// transferCodeTTL bounds how long a staged verification code stays valid.
const transferCodeTTL = time.Hour

// splitThreshold is the unspent-remainder fraction above which a voucher is
// split instead of transferred whole. Remainders at or below 10% of face value
// are absorbed as change by the provider.
var splitThreshold = decimal.NewFromFloat(0.10)

// VoucherService runs the voucher lifecycle: summary retrieval with OTP
// issuance, transfer authorization (direct transfer or burn+split+mint) and
// batch redemption.
type VoucherService struct {
	db        *sql.DB
	redis     *redis.Client
	chain     chain.Client
	sms       SMSSender
	audit     *audit.AuditLogger
	validator *ValidationHelper
	appName   string
}

func NewVoucherService(db *sql.DB, redisClient *redis.Client, chainClient chain.Client, sms SMSSender) *VoucherService {
	viper.SetDefault("app.name", "carepay")
	return &VoucherService{
		db:        db,
		redis:     redisClient,
		chain:     chainClient,
		sms:       sms,
		audit:     audit.NewAuditLogger(),
		validator: NewValidationHelper(),
		appName:   viper.GetString("app.name"),
	}
}

// VoucherSummary is what a provider sees before requesting authorization.
type VoucherSummary struct {
	Hash               string          `json:"hash"`
	ShortenHash        string          `json:"shortenHash"`
	Amount             decimal.Decimal `json:"amount"`
	Currency           string          `json:"currency"`
	PatientNames       string          `json:"patientNames"`
	PatientPhoneNumber string          `json:"patientPhoneNumber"`
}

// AuthorizeTransferRequest is the provider's authorization submission.
// @Description Voucher transfer authorization request
type AuthorizeTransferRequest struct {
	ShortenHash  string          `json:"shortenHash" validate:"required,len=8"`
	ProviderID   string          `json:"providerId" validate:"required,uuid4"`
	SecurityCode string          `json:"securityCode" validate:"required,len=6,numeric"`
	ServiceIDs   []string        `json:"serviceIds" validate:"required,min=1,dive,uuid4"`
	Total        decimal.Decimal `json:"total"`
}

// AuthorizeTransferResult reports a successful authorization and, on the split
// path, the descendant voucher codes.
type AuthorizeTransferResult struct {
	Code     int                `json:"code"`
	Message  string             `json:"message"`
	Vouchers []DescendantVoucher `json:"vouchers,omitempty"`
}

type DescendantVoucher struct {
	ShortenHash string          `json:"shortenHash"`
	Value       decimal.Decimal `json:"value"`
	HeldBy      string          `json:"heldBy"`
}

func (s *VoucherService) transferCacheKey(shortenHash string) string {
	return fmt.Sprintf("%s:transaction:%s", s.appName, shortenHash)
}

func randomSixDigit() string {
	return fmt.Sprintf("%06d", rand.Intn(1000000))
}

// GetVoucherSummary resolves a voucher by its shareable code, stages a fresh
// verification code against it and texts the code to the patient. SMS dispatch
// is best-effort; the summary is returned regardless of delivery outcome.
func (s *VoucherService) GetVoucherSummary(ctx context.Context, shortenHash string) (*VoucherSummary, error) {
	voucher, err := s.findVoucherByShortenHash(ctx, shortenHash)
	if err != nil {
		return nil, err
	}
	if voucher == nil {
		return nil, models.ErrInvalidTransactionHash
	}

	tx, err := s.findTransactionByID(ctx, voucher.TransactionID)
	if err != nil {
		return nil, err
	}
	if tx == nil {
		return nil, models.ErrInvalidTransactionHash
	}
	if tx.ProviderID != nil {
		return nil, models.ErrVoucherUsed
	}

	patient, err := s.findPatientByID(ctx, tx.OwnerID)
	if err != nil {
		return nil, err
	}
	if patient == nil {
		return nil, models.ErrPatientNotFound
	}

	code := randomSixDigit()
	if err := s.redis.Set(ctx, s.transferCacheKey(shortenHash), code, transferCodeTTL).Err(); err != nil {
		return nil, fmt.Errorf("stage verification code: %w", err)
	}

	go func() {
		smsCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		if err := s.sms.SendTransferVerificationCode(smsCtx, patient.PhoneNumber, code, tx.Amount, tx.Currency); err != nil {
			log.Printf("[VOUCHER] Failed to deliver verification code for %s: %v", shortenHash, err)
		}
	}()

	return &VoucherSummary{
		Hash:               voucher.VoucherHash,
		ShortenHash:        voucher.ShortenHash,
		Amount:             tx.Amount,
		Currency:           tx.Currency,
		PatientNames:       patient.FirstName + " " + patient.LastName,
		PatientPhoneNumber: patient.PhoneNumber,
	}, nil
}

// AuthorizeTransfer validates the patient's verification code and either
// reassigns the voucher to the provider whole or burns it and mints two
// descendants partitioning its value. Checks run in a fixed precedence:
// existence, then verification code, then currency policy, then the
// split/transfer decision.
func (s *VoucherService) AuthorizeTransfer(ctx context.Context, req AuthorizeTransferRequest) (*AuthorizeTransferResult, error) {
	voucher, err := s.findVoucherByShortenHash(ctx, req.ShortenHash)
	if err != nil {
		return nil, err
	}
	if voucher == nil {
		return nil, models.ErrInvalidTransactionHash
	}

	var (
		tx       *models.Transaction
		provider *models.Provider
		services []models.ProviderService
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var lookupErr error
		tx, lookupErr = s.findPatientHeldTransaction(gctx, voucher.TransactionID)
		return lookupErr
	})
	g.Go(func() error {
		var lookupErr error
		provider, lookupErr = s.findProviderByID(gctx, req.ProviderID)
		return lookupErr
	})
	g.Go(func() error {
		var lookupErr error
		services, lookupErr = s.findServicesByIDs(gctx, req.ServiceIDs)
		return lookupErr
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	if tx == nil {
		return nil, models.ErrInvalidTransactionHash
	}
	if provider == nil {
		return nil, models.ErrProviderNotFound
	}
	if len(services) != len(uniqueIDs(req.ServiceIDs)) {
		return nil, models.ErrServiceNotFound
	}

	savedCode, err := s.redis.Get(ctx, s.transferCacheKey(req.ShortenHash)).Result()
	if err == redis.Nil {
		savedCode = ""
	} else if err != nil {
		return nil, fmt.Errorf("read verification code: %w", err)
	}
	if savedCode == "" || req.SecurityCode != savedCode {
		return nil, models.ErrInvalidVerificationCode
	}

	if tx.Currency != redeemCurrency {
		return nil, models.ErrWrongVoucherCurrency
	}

	serviceTotal := decimal.Zero
	for _, svc := range services {
		serviceTotal = serviceTotal.Add(svc.Price)
	}
	if !req.Total.IsZero() && !req.Total.Equal(serviceTotal) {
		log.Printf("[VOUCHER] Declared total %s differs from priced total %s for %s",
			req.Total, serviceTotal, req.ShortenHash)
	}

	remainder := voucher.Value.Sub(serviceTotal)
	if remainder.GreaterThan(voucher.Value.Mul(splitThreshold)) {
		return s.splitVoucher(ctx, voucher, tx, req.ProviderID, serviceTotal, remainder)
	}
	return s.transferVoucher(ctx, voucher, tx, req.ProviderID)
}

// transferVoucher reassigns the voucher at the application level only; the
// chain voucher stays untouched on this path.
func (s *VoucherService) transferVoucher(ctx context.Context, voucher *models.Voucher, tx *models.Transaction, providerID string) (*AuthorizeTransferResult, error) {
	result, err := s.db.ExecContext(ctx, `
		UPDATE transactions
		SET owner_type = $1, provider_id = $2, updated_at = $3
		WHERE id = $4 AND owner_type = $5`,
		models.OwnerProvider, providerID, time.Now(), tx.ID, models.OwnerPatient)
	if err != nil {
		return nil, fmt.Errorf("transfer voucher: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return nil, err
	}
	if rows == 0 {
		return nil, models.ErrVoucherConflict
	}

	s.audit.LogTransfer(tx.ID, voucher.ShortenHash, providerID, voucher.Value)

	return &AuthorizeTransferResult{
		Code:    200,
		Message: "Voucher transfer authorized successfully",
	}, nil
}

// splitVoucher burns the original chain voucher, mints one voucher for the
// consumed portion and one for the patient's change, then rewrites the store in
// a single SQL transaction. The chain sequence and the store write are not
// atomic with each other; every chain call is audit-logged so reconciliation
// can pick up a partial split.
func (s *VoucherService) splitVoucher(ctx context.Context, voucher *models.Voucher, tx *models.Transaction, providerID string, serviceTotal, remainder decimal.Decimal) (*AuthorizeTransferResult, error) {
	if _, err := s.chain.BurnVoucher(ctx, voucher.VID); err != nil {
		s.audit.LogError(tx.ID, voucher.ShortenHash, err)
		return nil, fmt.Errorf("burn voucher %d: %w", voucher.VID, err)
	}
	s.audit.LogBurn(tx.ID, voucher.VID, voucher.Value)

	first, err := s.chain.MintVoucher(ctx, chain.MintVoucherRequest{
		Amount:    serviceTotal,
		Currency:  redeemCurrency,
		OwnerID:   tx.SenderID,
		PatientID: tx.OwnerID,
	})
	if err != nil {
		s.audit.LogError(tx.ID, voucher.ShortenHash, err)
		return nil, fmt.Errorf("mint first split voucher: %w", err)
	}
	s.audit.LogMint(tx.ID, first.VoucherID, first.ShortenHash(), first.Amount)

	second, err := s.chain.MintVoucher(ctx, chain.MintVoucherRequest{
		Amount:    remainder,
		Currency:  redeemCurrency,
		OwnerID:   tx.SenderID,
		PatientID: tx.OwnerID,
	})
	if err != nil {
		s.audit.LogError(tx.ID, voucher.ShortenHash, err)
		return nil, fmt.Errorf("mint second split voucher: %w", err)
	}
	s.audit.LogMint(tx.ID, second.VoucherID, second.ShortenHash(), second.Amount)

	dbTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer dbTx.Rollback()

	result, err := dbTx.ExecContext(ctx, `
		UPDATE transactions
		SET status = $1, owner_type = $2, provider_id = NULL, updated_at = $3
		WHERE id = $4 AND status = $5`,
		models.TransactionSplit, models.OwnerProvider, time.Now(), tx.ID, models.TransactionPending)
	if err != nil {
		return nil, fmt.Errorf("mark transaction split: %w", err)
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return nil, models.ErrVoucherConflict
	}

	result, err = dbTx.ExecContext(ctx, `
		UPDATE vouchers
		SET status = $1, updated_at = $2
		WHERE id = $3 AND status = $4`,
		models.VoucherSplit, time.Now(), voucher.ID, models.VoucherUnclaimed)
	if err != nil {
		return nil, fmt.Errorf("mark voucher split: %w", err)
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return nil, models.ErrVoucherConflict
	}

	// First descendant: the portion the provider consumes.
	if err := s.insertSplitPair(ctx, dbTx, tx, first, models.OwnerProvider, &providerID); err != nil {
		return nil, err
	}
	// Second descendant: the patient's change, still patient-held.
	if err := s.insertSplitPair(ctx, dbTx, tx, second, models.OwnerPatient, nil); err != nil {
		return nil, err
	}

	if err := dbTx.Commit(); err != nil {
		return nil, fmt.Errorf("commit split: %w", err)
	}

	s.audit.LogSplit(tx.ID, voucher.ShortenHash, serviceTotal, remainder)

	return &AuthorizeTransferResult{
		Code:    200,
		Message: "Voucher transfer authorized successfully",
		Vouchers: []DescendantVoucher{
			{ShortenHash: first.ShortenHash(), Value: first.Amount, HeldBy: string(models.OwnerProvider)},
			{ShortenHash: second.ShortenHash(), Value: second.Amount, HeldBy: string(models.OwnerPatient)},
		},
	}, nil
}

// insertSplitPair persists one descendant Transaction+Voucher pair from a
// decoded mint event. The new transaction references the consumed transaction's
// id as its payment reference.
func (s *VoucherService) insertSplitPair(ctx context.Context, dbTx *sql.Tx, origin *models.Transaction, mint *chain.MintResult, ownerType models.OwnerType, providerID *string) error {
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
	if providerID != nil {
		snapshot.ProviderID = *providerID
	}

	_, err := dbTx.ExecContext(ctx, `
		INSERT INTO transactions
			(id, sender_amount, sender_currency, amount, conversion_rate, currency,
			 sender_id, owner_id, owner_type, provider_id, status, stripe_payment_id,
			 voucher, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)`,
		transactionID, mint.Amount, redeemCurrency, mint.Amount, decimal.Zero, redeemCurrency,
		origin.SenderID, origin.OwnerID, ownerType, providerID, models.TransactionPending, origin.ID,
		snapshot, now, now)
	if err != nil {
		return fmt.Errorf("insert split transaction: %w", err)
	}

	_, err = dbTx.ExecContext(ctx, `
		INSERT INTO vouchers
			(id, vid, voucher_hash, shorten_hash, value, sender_id, sender_type,
			 receiver_id, receiver_type, status, transaction_id, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`,
		uuid.NewString(), mint.VoucherID, mint.TransactionHash, mint.ShortenHash(), mint.Amount,
		origin.SenderID, models.SenderPayer, origin.OwnerID, models.ReceiverPatient,
		models.VoucherUnclaimed, transactionID, now, now)
	if err != nil {
		return fmt.Errorf("insert split voucher: %w", err)
	}

	return nil
}

// RedeemVouchers moves the given transactions from PENDING to SUCCESSFUL and
// their vouchers from UNCLAIMED to PENDING (claim initiated, awaiting on-chain
// finality). Ids not in PENDING state are skipped, which makes re-invocation
// with already-processed ids a no-op.
func (s *VoucherService) RedeemVouchers(ctx context.Context, transactionIDs []string) ([]models.Transaction, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, sender_amount, sender_currency, amount, conversion_rate, currency,
		       sender_id, owner_id, owner_type, provider_id, status, stripe_payment_id,
		       voucher, created_at, updated_at
		FROM transactions
		WHERE id = ANY($1) AND status = $2 AND deleted_at IS NULL`,
		pq.Array(transactionIDs), models.TransactionPending)
	if err != nil {
		return nil, fmt.Errorf("select redeemable transactions: %w", err)
	}
	defer rows.Close()

	var selected []models.Transaction
	for rows.Next() {
		tx, err := scanTransaction(rows)
		if err != nil {
			return nil, err
		}
		selected = append(selected, *tx)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(selected) == 0 {
		return []models.Transaction{}, nil
	}

	selectedIDs := make([]string, len(selected))
	for i, tx := range selected {
		selectedIDs[i] = tx.ID
	}

	dbTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer dbTx.Rollback()

	_, err = dbTx.ExecContext(ctx, `
		UPDATE transactions
		SET status = $1, voucher = jsonb_set(voucher, '{status}', $2), updated_at = $3
		WHERE id = ANY($4) AND status = $5`,
		models.TransactionSuccessful, `"CLAIMED"`, time.Now(), pq.Array(selectedIDs), models.TransactionPending)
	if err != nil {
		return nil, fmt.Errorf("redeem transactions: %w", err)
	}

	// TODO: push the claim on-chain; until then the store runs ahead of the ledger.
	_, err = dbTx.ExecContext(ctx, `
		UPDATE vouchers
		SET status = $1, updated_at = $2
		WHERE transaction_id = ANY($3) AND status = $4`,
		models.VoucherPending, time.Now(), pq.Array(selectedIDs), models.VoucherUnclaimed)
	if err != nil {
		return nil, fmt.Errorf("redeem vouchers: %w", err)
	}

	if err := dbTx.Commit(); err != nil {
		return nil, err
	}

	for i := range selected {
		selected[i].Status = models.TransactionSuccessful
		selected[i].Voucher.Status = models.VoucherClaimed
		s.audit.LogRedeem(selected[i].ID, selected[i].Amount)
	}
	return selected, nil
}

// GetVoucher handles voucher summary retrieval
// @Summary Get voucher summary by code
// @Description Resolve a voucher by its 8-character code, stage a verification OTP and text it to the patient
// @Tags vouchers
// @Produce json
// @Param shortenHash path string true "Voucher code"
// @Success 200 {object} VoucherSummary
// @Failure 404 {object} ErrorResponse
// @Router /vouchers/{shortenHash} [get]
func (s *VoucherService) GetVoucher(w http.ResponseWriter, r *http.Request) {
	shortenHash := chi.URLParam(r, "shortenHash")

	summary, err := s.GetVoucherSummary(r.Context(), shortenHash)
	if err != nil {
		RenderError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(summary)
}

// Authorize handles voucher transfer authorization
// @Summary Authorize a voucher transfer
// @Description Validate the patient's verification code and transfer or split the voucher
// @Tags vouchers
// @Accept json
// @Produce json
// @Param request body AuthorizeTransferRequest true "Authorization request"
// @Success 200 {object} AuthorizeTransferResult
// @Failure 400 {object} ErrorResponse
// @Failure 403 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Router /vouchers/authorize [post]
func (s *VoucherService) Authorize(w http.ResponseWriter, r *http.Request) {
	maxBytes := 1_048_576 // 1 MB
	r.Body = http.MaxBytesReader(w, r.Body, int64(maxBytes))

	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()

	var req AuthorizeTransferRequest
	if err := dec.Decode(&req); err != nil {
		SendErrorResponse(w, "Invalid request body", http.StatusBadRequest, nil)
		return
	}
	if err := dec.Decode(&struct{}{}); err != io.EOF {
		SendErrorResponse(w, "Request body must only contain a single JSON object", http.StatusBadRequest, nil)
		return
	}

	if err := s.validator.ValidateStruct(&req); err != nil {
		SendErrorResponse(w, "Validation failed", http.StatusBadRequest, err)
		return
	}

	result, err := s.AuthorizeTransfer(r.Context(), req)
	if err != nil {
		RenderError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(result)
}

// Redeem handles batch voucher redemption
// @Summary Redeem vouchers
// @Description Transition pending transactions to successful and their vouchers toward claimed
// @Tags vouchers
// @Accept json
// @Produce json
// @Param request body object{transactionIds=[]string} true "Transaction ids to redeem"
// @Success 200 {object} object{transactions=[]models.Transaction,count=int}
// @Failure 400 {object} ErrorResponse
// @Router /vouchers/redeem [post]
func (s *VoucherService) Redeem(w http.ResponseWriter, r *http.Request) {
	maxBytes := 1_048_576 // 1 MB
	r.Body = http.MaxBytesReader(w, r.Body, int64(maxBytes))

	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()

	var req struct {
		TransactionIDs []string `json:"transactionIds" validate:"required,min=1,dive,uuid4"`
	}
	if err := dec.Decode(&req); err != nil {
		SendErrorResponse(w, "Invalid request body", http.StatusBadRequest, nil)
		return
	}

	if err := s.validator.ValidateStruct(&req); err != nil {
		SendErrorResponse(w, "Validation failed", http.StatusBadRequest, err)
		return
	}

	transactions, err := s.RedeemVouchers(r.Context(), req.TransactionIDs)
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

func (s *VoucherService) findVoucherByShortenHash(ctx context.Context, shortenHash string) (*models.Voucher, error) {
	var v models.Voucher
	err := s.db.QueryRowContext(ctx, `
		SELECT id, vid, voucher_hash, shorten_hash, value, sender_id, sender_type,
		       receiver_id, receiver_type, status, transaction_id
		FROM vouchers
		WHERE shorten_hash = $1 AND deleted_at IS NULL`, shortenHash).
		Scan(&v.ID, &v.VID, &v.VoucherHash, &v.ShortenHash, &v.Value, &v.SenderID,
			&v.SenderType, &v.ReceiverID, &v.ReceiverType, &v.Status, &v.TransactionID)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find voucher by code: %w", err)
	}
	return &v, nil
}

func (s *VoucherService) findTransactionByID(ctx context.Context, id string) (*models.Transaction, error) {
	return s.findTransaction(ctx, `
		SELECT id, sender_amount, sender_currency, amount, conversion_rate, currency,
		       sender_id, owner_id, owner_type, provider_id, status, stripe_payment_id,
		       voucher, created_at, updated_at
		FROM transactions
		WHERE id = $1 AND deleted_at IS NULL`, id)
}

// findPatientHeldTransaction only matches transactions whose voucher is still
// held by the patient; already-transferred vouchers resolve to nothing.
func (s *VoucherService) findPatientHeldTransaction(ctx context.Context, id string) (*models.Transaction, error) {
	return s.findTransaction(ctx, `
		SELECT id, sender_amount, sender_currency, amount, conversion_rate, currency,
		       sender_id, owner_id, owner_type, provider_id, status, stripe_payment_id,
		       voucher, created_at, updated_at
		FROM transactions
		WHERE id = $1 AND owner_type = $2 AND deleted_at IS NULL`, id, models.OwnerPatient)
}

func (s *VoucherService) findTransaction(ctx context.Context, query string, args ...any) (*models.Transaction, error) {
	row := s.db.QueryRowContext(ctx, query, args...)
	tx, err := scanTransaction(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find transaction: %w", err)
	}
	return tx, nil
}

func (s *VoucherService) findProviderByID(ctx context.Context, id string) (*models.Provider, error) {
	var p models.Provider
	var city sql.NullString
	err := s.db.QueryRowContext(ctx, `
		SELECT id, name, email, phone, city
		FROM providers
		WHERE id = $1 AND deleted_at IS NULL`, id).
		Scan(&p.ID, &p.Name, &p.Email, &p.Phone, &city)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find provider: %w", err)
	}
	p.City = city.String
	return &p, nil
}

func (s *VoucherService) findPatientByID(ctx context.Context, id string) (*models.Patient, error) {
	var p models.Patient
	err := s.db.QueryRowContext(ctx, `
		SELECT id, first_name, last_name, phone_number
		FROM patients
		WHERE id = $1 AND deleted_at IS NULL`, id).
		Scan(&p.ID, &p.FirstName, &p.LastName, &p.PhoneNumber)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find patient: %w", err)
	}
	return &p, nil
}

func (s *VoucherService) findServicesByIDs(ctx context.Context, ids []string) ([]models.ProviderService, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, provider_id, name, price
		FROM provider_services
		WHERE id = ANY($1)`, pq.Array(uniqueIDs(ids)))
	if err != nil {
		return nil, fmt.Errorf("find services: %w", err)
	}
	defer rows.Close()

	var services []models.ProviderService
	for rows.Next() {
		var svc models.ProviderService
		if err := rows.Scan(&svc.ID, &svc.ProviderID, &svc.Name, &svc.Price); err != nil {
			return nil, err
		}
		services = append(services, svc)
	}
	return services, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTransaction(row rowScanner) (*models.Transaction, error) {
	var tx models.Transaction
	var providerID sql.NullString
	err := row.Scan(&tx.ID, &tx.SenderAmount, &tx.SenderCurrency, &tx.Amount,
		&tx.ConversionRate, &tx.Currency, &tx.SenderID, &tx.OwnerID, &tx.OwnerType,
		&providerID, &tx.Status, &tx.StripePaymentID, &tx.Voucher, &tx.CreatedAt, &tx.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if providerID.Valid {
		tx.ProviderID = &providerID.String
	}
	return &tx, nil
}

func uniqueIDs(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	unique := make([]string, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		unique = append(unique, id)
	}
	return unique
}
