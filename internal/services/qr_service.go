package services

import (
	"bytes"
	"context"
	"crypto/rand"
	"database/sql"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"image/png"
	"log"
	"time"

	"github.com/carepay/backend/internal/chain"
	"github.com/carepay/backend/internal/models"
	"github.com/go-redis/redis/v8"
	"github.com/skip2/go-qrcode"
)

// QRService renders voucher codes as scannable QR images so patients can
// present vouchers at the provider desk without typing the code.
type QRService struct {
	db    *sql.DB
	redis *redis.Client
	chain chain.Client
}

func NewQRService(db *sql.DB, redisClient *redis.Client, chainClient chain.Client) *QRService {
	return &QRService{
		db:    db,
		redis: redisClient,
		chain: chainClient,
	}
}

// GenerateVoucherQR stages a one-shot QR payload for an unclaimed voucher and
// returns the payload plus a base64 PNG rendering.
func (s *QRService) GenerateVoucherQR(ctx context.Context, shortenHash string) (string, string, error) {
	var (
		vid    int64
		status models.VoucherStatus
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT vid, status FROM vouchers WHERE shorten_hash = $1 AND deleted_at IS NULL`,
		shortenHash).Scan(&vid, &status)
	if err == sql.ErrNoRows {
		return "", "", models.ErrInvalidTransactionHash
	}
	if err != nil {
		return "", "", err
	}
	if status != models.VoucherUnclaimed {
		return "", "", models.ErrVoucherUsed
	}

	// Cross-check the registry: a voucher burned on chain but not yet marked
	// locally must not be presented at the desk. Registry outages do not block
	// issuance; the transfer path re-validates everything anyway.
	if record, err := s.chain.GetVoucherByID(ctx, vid); err != nil {
		log.Printf("[QR] Registry lookup failed for voucher %d: %v", vid, err)
	} else if record.Status == chain.VoucherStatusBurned {
		return "", "", models.ErrVoucherUsed
	}

	qrData := map[string]any{
		"shortenHash": shortenHash,
		"timestamp":   time.Now().Unix(),
		"nonce":       s.generateNonce(),
	}

	jsonData, err := json.Marshal(qrData)
	if err != nil {
		return "", "", err
	}

	qrCode := base64.URLEncoding.EncodeToString(jsonData)

	key := fmt.Sprintf("qr:%s", qrCode)
	if err := s.redis.Set(ctx, key, jsonData, 5*time.Minute).Err(); err != nil {
		return "", "", err
	}

	qr, err := qrcode.New(qrCode, qrcode.Medium)
	if err != nil {
		return "", "", err
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, qr.Image(256)); err != nil {
		return "", "", err
	}

	qrImage := base64.StdEncoding.EncodeToString(buf.Bytes())

	return qrCode, qrImage, nil
}

// ProcessVoucherQR resolves a scanned QR payload back to the voucher code.
// Payloads are single-use.
func (s *QRService) ProcessVoucherQR(ctx context.Context, qrData string) (map[string]any, error) {
	key := fmt.Sprintf("qr:%s", qrData)

	data, err := s.redis.Get(ctx, key).Bytes()
	if err == redis.Nil {
		return nil, fmt.Errorf("invalid or expired QR code")
	}
	if err != nil {
		return nil, err
	}

	var result map[string]any
	if err := json.Unmarshal(data, &result); err != nil {
		return nil, err
	}

	s.redis.Del(ctx, key)

	return result, nil
}

func (s *QRService) generateNonce() string {
	b := make([]byte, 16)
	rand.Read(b)
	return base64.URLEncoding.EncodeToString(b)
}
