package services

import (
	"context"
	"net/http"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/carepay/backend/internal/audit"
	"github.com/carepay/backend/internal/models"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func newPayoutServiceTest(t *testing.T) (*PayoutService, sqlmock.Sqlmock) {
	db, dbMock, err := sqlmock.New()
	assert.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	return NewPayoutService(db, audit.NewAuditLogger()), dbMock
}

func TestPayoutService_SettleProvider(t *testing.T) {
	t.Run("batches claimed transactions into one payout", func(t *testing.T) {
		service, dbMock := newPayoutServiceTest(t)

		txA := "1a2b3c4d-5e6f-4a7b-8c9d-0e1f2a3b4c5d"
		txB := "7a8b9c0d-1e2f-4a3b-4c5d-6e7f8a9b0c1d"

		dbMock.ExpectQuery("SELECT (.+) FROM providers").
			WithArgs(testProviderID).
			WillReturnRows(sqlmock.NewRows([]string{"id", "name", "phone"}).
				AddRow(testProviderID, "Clinique Espoir", "+243990000000"))
		dbMock.ExpectQuery("SELECT (.+) FROM transactions").
			WithArgs(testProviderID, models.TransactionSuccessful).
			WillReturnRows(sqlmock.NewRows([]string{"id", "amount", "currency"}).
				AddRow(txA, "100", "CDF").
				AddRow(txB, "250", "CDF"))

		dbMock.ExpectBegin()
		dbMock.ExpectExec("UPDATE transactions").
			WithArgs(models.TransactionPaidOut, txA, models.TransactionSuccessful).
			WillReturnResult(sqlmock.NewResult(0, 1))
		dbMock.ExpectExec("UPDATE transactions").
			WithArgs(models.TransactionPaidOut, txB, models.TransactionSuccessful).
			WillReturnResult(sqlmock.NewResult(0, 1))
		dbMock.ExpectCommit()

		result, err := service.SettleProvider(context.Background(), testProviderID)
		assert.NoError(t, err)
		assert.Equal(t, []string{txA, txB}, result.TransactionIDs)
		assert.True(t, result.Total.Equal(decimal.NewFromInt(350)))
		assert.Equal(t, "CDF", result.Currency)
		assert.Equal(t, "pacs.008.001.08", result.MessageType)
		assert.Contains(t, result.XML, "Clinique Espoir")
		assert.NoError(t, dbMock.ExpectationsWereMet())
	})

	t.Run("unknown provider", func(t *testing.T) {
		service, dbMock := newPayoutServiceTest(t)

		dbMock.ExpectQuery("SELECT (.+) FROM providers").
			WithArgs(testProviderID).
			WillReturnRows(sqlmock.NewRows([]string{"id", "name", "phone"}))

		_, err := service.SettleProvider(context.Background(), testProviderID)
		assert.ErrorIs(t, err, models.ErrProviderNotFound)
	})

	t.Run("nothing to pay out", func(t *testing.T) {
		service, dbMock := newPayoutServiceTest(t)

		dbMock.ExpectQuery("SELECT (.+) FROM providers").
			WithArgs(testProviderID).
			WillReturnRows(sqlmock.NewRows([]string{"id", "name", "phone"}).
				AddRow(testProviderID, "Clinique Espoir", "+243990000000"))
		dbMock.ExpectQuery("SELECT (.+) FROM transactions").
			WithArgs(testProviderID, models.TransactionSuccessful).
			WillReturnRows(sqlmock.NewRows([]string{"id", "amount", "currency"}))

		_, err := service.SettleProvider(context.Background(), testProviderID)
		apiErr, ok := models.AsAPIError(err)
		assert.True(t, ok)
		assert.Equal(t, http.StatusNotFound, apiErr.Status)
		assert.Equal(t, "NO_CLAIMED_TRANSACTIONS", apiErr.Code)
	})

	t.Run("concurrent payout loses the status guard", func(t *testing.T) {
		service, dbMock := newPayoutServiceTest(t)

		txA := "1a2b3c4d-5e6f-4a7b-8c9d-0e1f2a3b4c5d"

		dbMock.ExpectQuery("SELECT (.+) FROM providers").
			WithArgs(testProviderID).
			WillReturnRows(sqlmock.NewRows([]string{"id", "name", "phone"}).
				AddRow(testProviderID, "Clinique Espoir", "+243990000000"))
		dbMock.ExpectQuery("SELECT (.+) FROM transactions").
			WithArgs(testProviderID, models.TransactionSuccessful).
			WillReturnRows(sqlmock.NewRows([]string{"id", "amount", "currency"}).
				AddRow(txA, "100", "CDF"))

		dbMock.ExpectBegin()
		dbMock.ExpectExec("UPDATE transactions").
			WithArgs(models.TransactionPaidOut, txA, models.TransactionSuccessful).
			WillReturnResult(sqlmock.NewResult(0, 0))
		dbMock.ExpectRollback()

		_, err := service.SettleProvider(context.Background(), testProviderID)
		assert.ErrorIs(t, err, models.ErrVoucherConflict)
	})
}
