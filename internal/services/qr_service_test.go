package services

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/carepay/backend/internal/chain"
	"github.com/carepay/backend/internal/models"
	"github.com/go-redis/redismock/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

func newQRServiceTest(t *testing.T) (*QRService, sqlmock.Sqlmock, redismock.ClientMock, *MockChainClient) {
	db, dbMock, err := sqlmock.New()
	assert.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	redisClient, redisMock := redismock.NewClientMock()
	chainMock := new(MockChainClient)

	return NewQRService(db, redisClient, chainMock), dbMock, redisMock, chainMock
}

func TestQRService_GenerateVoucherQR(t *testing.T) {
	t.Run("stages a one-shot payload for an unclaimed voucher", func(t *testing.T) {
		service, dbMock, redisMock, chainMock := newQRServiceTest(t)

		dbMock.ExpectQuery("SELECT vid, status FROM vouchers").
			WithArgs(testShortenHash).
			WillReturnRows(sqlmock.NewRows([]string{"vid", "status"}).
				AddRow(int64(42), "UNCLAIMED"))
		chainMock.On("GetVoucherByID", mock.Anything, int64(42)).
			Return(&chain.VoucherRecord{VoucherID: 42, Status: "ACTIVE"}, nil)
		redisMock.Regexp().ExpectSet(`^qr:.+`, `.+`, 5*time.Minute).SetVal("OK")

		qrCode, qrImage, err := service.GenerateVoucherQR(context.Background(), testShortenHash)
		assert.NoError(t, err)
		assert.NotEmpty(t, qrImage)

		payload, err := base64.URLEncoding.DecodeString(qrCode)
		assert.NoError(t, err)
		var decoded map[string]any
		assert.NoError(t, json.Unmarshal(payload, &decoded))
		assert.Equal(t, testShortenHash, decoded["shortenHash"])
		assert.NotEmpty(t, decoded["nonce"])

		chainMock.AssertExpectations(t)
		assert.NoError(t, dbMock.ExpectationsWereMet())
	})

	t.Run("voucher burned on the registry", func(t *testing.T) {
		service, dbMock, _, chainMock := newQRServiceTest(t)

		dbMock.ExpectQuery("SELECT vid, status FROM vouchers").
			WithArgs(testShortenHash).
			WillReturnRows(sqlmock.NewRows([]string{"vid", "status"}).
				AddRow(int64(42), "UNCLAIMED"))
		chainMock.On("GetVoucherByID", mock.Anything, int64(42)).
			Return(&chain.VoucherRecord{VoucherID: 42, Status: chain.VoucherStatusBurned}, nil)

		_, _, err := service.GenerateVoucherQR(context.Background(), testShortenHash)
		assert.ErrorIs(t, err, models.ErrVoucherUsed)
	})

	t.Run("registry outage does not block issuance", func(t *testing.T) {
		service, dbMock, redisMock, chainMock := newQRServiceTest(t)

		dbMock.ExpectQuery("SELECT vid, status FROM vouchers").
			WithArgs(testShortenHash).
			WillReturnRows(sqlmock.NewRows([]string{"vid", "status"}).
				AddRow(int64(42), "UNCLAIMED"))
		chainMock.On("GetVoucherByID", mock.Anything, int64(42)).
			Return(nil, errors.New("registry unreachable"))
		redisMock.Regexp().ExpectSet(`^qr:.+`, `.+`, 5*time.Minute).SetVal("OK")

		_, qrImage, err := service.GenerateVoucherQR(context.Background(), testShortenHash)
		assert.NoError(t, err)
		assert.NotEmpty(t, qrImage)
	})

	t.Run("claimed voucher", func(t *testing.T) {
		service, dbMock, _, chainMock := newQRServiceTest(t)

		dbMock.ExpectQuery("SELECT vid, status FROM vouchers").
			WithArgs(testShortenHash).
			WillReturnRows(sqlmock.NewRows([]string{"vid", "status"}).
				AddRow(int64(42), "CLAIMED"))

		_, _, err := service.GenerateVoucherQR(context.Background(), testShortenHash)
		assert.ErrorIs(t, err, models.ErrVoucherUsed)
		assert.Empty(t, chainMock.Calls)
	})

	t.Run("unknown voucher code", func(t *testing.T) {
		service, dbMock, _, _ := newQRServiceTest(t)

		dbMock.ExpectQuery("SELECT vid, status FROM vouchers").
			WithArgs(testShortenHash).
			WillReturnRows(sqlmock.NewRows([]string{"vid", "status"}))

		_, _, err := service.GenerateVoucherQR(context.Background(), testShortenHash)
		assert.ErrorIs(t, err, models.ErrInvalidTransactionHash)
	})
}

func TestQRService_ProcessVoucherQR(t *testing.T) {
	t.Run("resolves and consumes a staged payload", func(t *testing.T) {
		service, _, redisMock, _ := newQRServiceTest(t)

		payload := `{"shortenHash":"` + testShortenHash + `","timestamp":1700000000,"nonce":"abc"}`
		qrData := base64.URLEncoding.EncodeToString([]byte(payload))

		redisMock.ExpectGet("qr:" + qrData).SetVal(payload)
		redisMock.ExpectDel("qr:" + qrData).SetVal(1)

		result, err := service.ProcessVoucherQR(context.Background(), qrData)
		assert.NoError(t, err)
		assert.Equal(t, testShortenHash, result["shortenHash"])
		assert.NoError(t, redisMock.ExpectationsWereMet())
	})

	t.Run("expired payload", func(t *testing.T) {
		service, _, redisMock, _ := newQRServiceTest(t)

		redisMock.ExpectGet("qr:stale").RedisNil()

		_, err := service.ProcessVoucherQR(context.Background(), "stale")
		assert.Error(t, err)
	})
}
