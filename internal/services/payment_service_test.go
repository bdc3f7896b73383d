package services

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/carepay/backend/internal/chain"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

func newPaymentServiceTest(t *testing.T) (*PaymentService, sqlmock.Sqlmock, *MockChainClient) {
	db, dbMock, err := sqlmock.New()
	assert.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	chainMock := &MockChainClient{}
	return NewPaymentService(db, chainMock), dbMock, chainMock
}

func webhookBody(eventType, paymentID string, amount int64, currency string, metadata map[string]string) string {
	event := map[string]any{
		"id":   "evt_test_1",
		"type": eventType,
		"data": map[string]any{
			"object": map[string]any{
				"id":       paymentID,
				"amount":   amount,
				"currency": currency,
				"metadata": metadata,
			},
		},
	}
	body, _ := json.Marshal(event)
	return string(body)
}

func TestPaymentService_HandleNotification(t *testing.T) {
	metadata := map[string]string{"senderId": testSenderID, "patientId": testPatientID}

	t.Run("succeeded payment mints a voucher", func(t *testing.T) {
		service, dbMock, chainMock := newPaymentServiceTest(t)

		// 100000 minor units at CDF: the mint request carries 1000.00.
		chainMock.On("MintVoucher", mock.Anything, mock.MatchedBy(func(req chain.MintVoucherRequest) bool {
			return req.Amount.Equal(decimal.NewFromInt(1000)) &&
				req.Currency == "CDF" &&
				req.OwnerID == testPatientID &&
				req.PatientID == testPatientID
		})).Return(&chain.MintResult{
			VoucherID: 42, Amount: decimal.NewFromInt(1000), Currency: "CDF",
			OwnerID: testPatientID, PatientID: testPatientID, Status: "UNCLAIMED",
			TransactionHash: "abcdef1234567890",
		}, nil).Once()

		dbMock.ExpectBegin()
		dbMock.ExpectExec("INSERT INTO transactions").
			WillReturnResult(sqlmock.NewResult(0, 1))
		dbMock.ExpectExec("INSERT INTO vouchers").
			WillReturnResult(sqlmock.NewResult(0, 1))
		dbMock.ExpectCommit()

		body := webhookBody("payment_intent.succeeded", "pi_test_123", 100000, "cdf", metadata)
		req := httptest.NewRequest(http.MethodPost, "/payment/notification", strings.NewReader(body))
		w := httptest.NewRecorder()

		service.HandleNotification(w, req)

		assert.Equal(t, http.StatusOK, w.Code)
		var resp map[string]any
		assert.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		assert.Equal(t, true, resp["received"])

		chainMock.AssertExpectations(t)
		assert.NoError(t, dbMock.ExpectationsWereMet())
	})

	t.Run("other event types are acknowledged without minting", func(t *testing.T) {
		service, dbMock, chainMock := newPaymentServiceTest(t)

		body := webhookBody("payment_intent.created", "pi_test_123", 100000, "cdf", metadata)
		req := httptest.NewRequest(http.MethodPost, "/payment/notification", strings.NewReader(body))
		w := httptest.NewRecorder()

		service.HandleNotification(w, req)

		assert.Equal(t, http.StatusOK, w.Code)
		var resp map[string]any
		assert.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		assert.Equal(t, true, resp["received"])
		assert.Empty(t, chainMock.Calls)
		assert.NoError(t, dbMock.ExpectationsWereMet())
	})

	t.Run("missing metadata still answers 200", func(t *testing.T) {
		service, _, chainMock := newPaymentServiceTest(t)

		body := webhookBody("payment_intent.succeeded", "pi_test_123", 100000, "cdf", nil)
		req := httptest.NewRequest(http.MethodPost, "/payment/notification", strings.NewReader(body))
		w := httptest.NewRecorder()

		service.HandleNotification(w, req)

		assert.Equal(t, http.StatusOK, w.Code)
		var resp map[string]any
		assert.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		assert.Contains(t, resp, "error")
		assert.Empty(t, chainMock.Calls)
	})

	t.Run("malformed body still answers 200", func(t *testing.T) {
		service, _, _ := newPaymentServiceTest(t)

		req := httptest.NewRequest(http.MethodPost, "/payment/notification", strings.NewReader("{not json"))
		w := httptest.NewRecorder()

		service.HandleNotification(w, req)

		assert.Equal(t, http.StatusOK, w.Code)
		var resp map[string]any
		assert.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		assert.Contains(t, resp, "error")
	})
}

func TestPaymentService_GetVoucherByPaymentID(t *testing.T) {
	t.Run("found", func(t *testing.T) {
		service, dbMock, _ := newPaymentServiceTest(t)

		dbMock.ExpectQuery("SELECT (.+) FROM transactions").
			WithArgs("pi_test_123").
			WillReturnRows(transactionRow("CDF", nil))

		req := httptest.NewRequest(http.MethodGet, "/payment/voucher?paymentId=pi_test_123", nil)
		w := httptest.NewRecorder()

		service.GetVoucherByPaymentID(w, req)

		assert.Equal(t, http.StatusOK, w.Code)
		var resp map[string]any
		assert.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		assert.Equal(t, testTxID, resp["id"])
		assert.NoError(t, dbMock.ExpectationsWereMet())
	})

	t.Run("missing paymentId parameter", func(t *testing.T) {
		service, _, _ := newPaymentServiceTest(t)

		req := httptest.NewRequest(http.MethodGet, "/payment/voucher", nil)
		w := httptest.NewRecorder()

		service.GetVoucherByPaymentID(w, req)

		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}
