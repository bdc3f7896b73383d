package services

import (
	"context"
	"database/sql"
	"encoding/json"
	"encoding/xml"
	"fmt"
	"io"
	"log"
	"net/http"
	"time"

	"github.com/carepay/backend/internal/audit"
	"github.com/carepay/backend/internal/models"
	"github.com/google/uuid"
	"github.com/moov-io/iso20022/pkg/common"
	"github.com/moov-io/iso20022/pkg/pacs_v08"
	"github.com/shopspring/decimal"
	"github.com/spf13/viper"
)

// PayoutService settles redeemed vouchers with providers. Transactions a
// provider has claimed sit in SUCCESSFUL until a payout run batches them into
// a pacs.008 credit transfer and marks them PAID_OUT.
type PayoutService struct {
	db        *sql.DB
	audit     *audit.AuditLogger
	validator *ValidationHelper
}

func NewPayoutService(db *sql.DB, auditLogger *audit.AuditLogger) *PayoutService {
	return &PayoutService{
		db:        db,
		audit:     auditLogger,
		validator: NewValidationHelper(),
	}
}

type PayoutRequest struct {
	ProviderID string `json:"providerId" validate:"required,uuid4"`
}

type PayoutResult struct {
	ProviderID     string          `json:"providerId"`
	TransactionIDs []string        `json:"transactionIds"`
	Total          decimal.Decimal `json:"total"`
	Currency       string          `json:"currency"`
	MessageType    string          `json:"messageType"`
	XML            string          `json:"xml"`
}

// CreatePayout settles a provider's claimed transactions
// @Summary Create provider payout
// @Description Batch the provider's claimed transactions into a pacs.008 credit transfer and mark them paid out
// @Tags payouts
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body PayoutRequest true "Payout request"
// @Success 200 {object} PayoutResult
// @Failure 400 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Router /payouts [post]
func (s *PayoutService) CreatePayout(w http.ResponseWriter, r *http.Request) {
	maxBytes := 1_048_576 // 1 MB
	r.Body = http.MaxBytesReader(w, r.Body, int64(maxBytes))

	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()

	var req PayoutRequest
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

	result, err := s.SettleProvider(r.Context(), req.ProviderID)
	if err != nil {
		RenderError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(result)
}

// SettleProvider collects the provider's SUCCESSFUL transactions, builds the
// pacs.008 document and flips them to PAID_OUT in one transaction. The status
// guard on the UPDATE keeps a concurrent run from paying the same batch twice.
func (s *PayoutService) SettleProvider(ctx context.Context, providerID string) (*PayoutResult, error) {
	var provider models.Provider
	err := s.db.QueryRowContext(ctx, `
		SELECT id, name, phone FROM providers WHERE id = $1 AND deleted_at IS NULL`,
		providerID).Scan(&provider.ID, &provider.Name, &provider.Phone)
	if err == sql.ErrNoRows {
		return nil, models.ErrProviderNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find provider: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, amount, currency
		FROM transactions
		WHERE provider_id = $1 AND status = $2 AND deleted_at IS NULL
		ORDER BY created_at`, providerID, models.TransactionSuccessful)
	if err != nil {
		return nil, fmt.Errorf("list claimed transactions: %w", err)
	}
	defer rows.Close()

	var lines []payoutLine
	for rows.Next() {
		var l payoutLine
		if err := rows.Scan(&l.id, &l.amount, &l.currency); err != nil {
			return nil, err
		}
		lines = append(lines, l)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(lines) == 0 {
		return nil, &models.APIError{
			Status:  http.StatusNotFound,
			Code:    "NO_CLAIMED_TRANSACTIONS",
			Message: "Provider has no claimed transactions to pay out",
		}
	}

	total := decimal.Zero
	currency := lines[0].currency
	ids := make([]string, 0, len(lines))
	for _, l := range lines {
		total = total.Add(l.amount)
		ids = append(ids, l.id)
	}

	doc, err := s.buildPacs008(provider, lines, total, currency)
	if err != nil {
		return nil, fmt.Errorf("build pacs.008: %w", err)
	}

	xmlData, err := xml.MarshalIndent(doc, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal pacs.008: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	for _, id := range ids {
		res, err := tx.ExecContext(ctx, `
			UPDATE transactions
			SET status = $1, updated_at = NOW()
			WHERE id = $2 AND status = $3`,
			models.TransactionPaidOut, id, models.TransactionSuccessful)
		if err != nil {
			return nil, fmt.Errorf("mark transaction paid out: %w", err)
		}
		affected, err := res.RowsAffected()
		if err != nil {
			return nil, err
		}
		if affected == 0 {
			return nil, models.ErrVoucherConflict
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}

	for _, l := range lines {
		s.audit.LogPayout(l.id, providerID, l.amount)
	}
	log.Printf("[PAYOUT] Settled %d transactions for provider %s, total %s %s",
		len(ids), providerID, total.String(), currency)

	return &PayoutResult{
		ProviderID:     providerID,
		TransactionIDs: ids,
		Total:          total,
		Currency:       currency,
		MessageType:    "pacs.008.001.08",
		XML:            xml.Header + string(xmlData),
	}, nil
}

type payoutLine struct {
	id       string
	amount   decimal.Decimal
	currency string
}

func (s *PayoutService) buildPacs008(provider models.Provider, lines []payoutLine, total decimal.Decimal, currency string) (*pacs_v08.FIToFICustomerCreditTransferV08, error) {
	msgID := uuid.NewString()
	now := time.Now()
	settlementDate := now

	platformBIC := viper.GetString("payout.platform_bic")
	if platformBIC == "" {
		platformBIC = "CAREPAYP"
	}

	transfers := make([]pacs_v08.CreditTransferTransaction39, 0, len(lines))
	for _, l := range lines {
		txID := common.Max35Text(l.id)
		transfers = append(transfers, pacs_v08.CreditTransferTransaction39{
			PmtId: pacs_v08.PaymentIdentification7{
				InstrId:    &txID,
				EndToEndId: txID,
				TxId:       &txID,
			},
			IntrBkSttlmAmt: pacs_v08.ActiveCurrencyAndAmount{
				Ccy:   common.ActiveCurrencyCode(currency),
				Value: l.amount.InexactFloat64(),
			},
			IntrBkSttlmDt: (*common.ISODate)(&settlementDate),
			ChrgBr:        "SLEV",
			DbtrAgt: pacs_v08.BranchAndFinancialInstitutionIdentification6{
				FinInstnId: pacs_v08.FinancialInstitutionIdentification18{
					BICFI: &[]common.BICFIDec2014Identifier{common.BICFIDec2014Identifier(platformBIC)}[0],
				},
			},
			Dbtr: pacs_v08.PartyIdentification135{
				Nm: &[]common.Max140Text{common.Max140Text("CarePay Vouchers")}[0],
			},
			CdtrAgt: pacs_v08.BranchAndFinancialInstitutionIdentification6{
				FinInstnId: pacs_v08.FinancialInstitutionIdentification18{
					ClrSysMmbId: &pacs_v08.ClearingSystemMemberIdentification2{
						MmbId: common.Max35Text(provider.ID),
					},
				},
			},
			Cdtr: pacs_v08.PartyIdentification135{
				Nm: &[]common.Max140Text{common.Max140Text(provider.Name)}[0],
			},
		})
	}

	doc := &pacs_v08.FIToFICustomerCreditTransferV08{
		GrpHdr: pacs_v08.GroupHeader93{
			MsgId:   common.Max35Text(msgID),
			CreDtTm: common.ISODateTime(now),
			NbOfTxs: common.Max15NumericText(fmt.Sprintf("%d", len(lines))),
			TtlIntrBkSttlmAmt: &pacs_v08.ActiveCurrencyAndAmount{
				Ccy:   common.ActiveCurrencyCode(currency),
				Value: total.InexactFloat64(),
			},
			IntrBkSttlmDt: (*common.ISODate)(&settlementDate),
			SttlmInf: pacs_v08.SettlementInstruction7{
				SttlmMtd: "CLRG",
			},
		},
		CdtTrfTxInf: transfers,
	}

	return doc, nil
}
