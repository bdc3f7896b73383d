package chain

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/shopspring/decimal"
	"github.com/spf13/viper"
)

// Client is the on-chain voucher registry. The contract mechanics live behind a
// dedicated chain service; this side only mints, burns and reads vouchers.
type Client interface {
	MintVoucher(ctx context.Context, req MintVoucherRequest) (*MintResult, error)
	BurnVoucher(ctx context.Context, vid int64) (*BurnResult, error)
	GetVoucherByID(ctx context.Context, vid int64) (*VoucherRecord, error)
}

// MintVoucherRequest describes the voucher to mint. OwnerID is the funding
// payer, PatientID the beneficiary.
type MintVoucherRequest struct {
	Amount    decimal.Decimal `json:"amount"`
	Currency  string          `json:"currency"`
	OwnerID   string          `json:"ownerId"`
	PatientID string          `json:"patientId"`
}

// MintResult is the typed decode of a mint event. TransactionHash is the chain
// transaction reference; its first 8 characters become the shareable voucher code.
type MintResult struct {
	VoucherID       int64           `json:"voucherId"`
	Amount          decimal.Decimal `json:"amount"`
	Currency        string          `json:"currency"`
	OwnerID         string          `json:"ownerId"`
	ProviderID      string          `json:"providerId"`
	PatientID       string          `json:"patientId"`
	Status          string          `json:"status"`
	TransactionHash string          `json:"transactionHash"`
}

// ShortenHash returns the shareable 8-character prefix of the mint hash.
func (m *MintResult) ShortenHash() string {
	return m.TransactionHash[:8]
}

type BurnResult struct {
	VoucherID       int64  `json:"voucherId"`
	TransactionHash string `json:"transactionHash"`
}

// VoucherStatusBurned is the registry status of a voucher consumed by a burn.
const VoucherStatusBurned = "BURNED"

type VoucherRecord struct {
	VoucherID int64           `json:"voucherId"`
	Amount    decimal.Decimal `json:"amount"`
	Currency  string          `json:"currency"`
	OwnerID   string          `json:"ownerId"`
	PatientID string          `json:"patientId"`
	Status    string          `json:"status"`
	CreatedAt time.Time       `json:"createdAt"`
	UpdatedAt time.Time       `json:"updatedAt"`
}

// HTTPClient talks JSON over HTTP to the chain service.
type HTTPClient struct {
	baseURL string
	apiKey  string
	client  *http.Client
}

func NewHTTPClient() *HTTPClient {
	viper.SetDefault("chain.base_url", "http://localhost:8545")
	viper.SetDefault("chain.timeout", 30*time.Second)

	return &HTTPClient{
		baseURL: viper.GetString("chain.base_url"),
		apiKey:  viper.GetString("chain.api_key"),
		client:  &http.Client{Timeout: viper.GetDuration("chain.timeout")},
	}
}

func (c *HTTPClient) MintVoucher(ctx context.Context, req MintVoucherRequest) (*MintResult, error) {
	var result MintResult
	if err := c.post(ctx, "/vouchers/mint", req, &result); err != nil {
		return nil, fmt.Errorf("mint voucher: %w", err)
	}
	if err := validateMintResult(&result); err != nil {
		return nil, fmt.Errorf("mint voucher: %w", err)
	}
	return &result, nil
}

func (c *HTTPClient) BurnVoucher(ctx context.Context, vid int64) (*BurnResult, error) {
	var result BurnResult
	payload := map[string]int64{"voucherId": vid}
	if err := c.post(ctx, "/vouchers/burn", payload, &result); err != nil {
		return nil, fmt.Errorf("burn voucher %d: %w", vid, err)
	}
	return &result, nil
}

func (c *HTTPClient) GetVoucherByID(ctx context.Context, vid int64) (*VoucherRecord, error) {
	url := fmt.Sprintf("%s/vouchers/%d", c.baseURL, vid)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	c.setHeaders(httpReq)

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("get voucher %d: %w", vid, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("get voucher %d: chain service returned %d: %s", vid, resp.StatusCode, body)
	}

	var record VoucherRecord
	if err := json.NewDecoder(resp.Body).Decode(&record); err != nil {
		return nil, fmt.Errorf("get voucher %d: decode response: %w", vid, err)
	}
	return &record, nil
}

func (c *HTTPClient) post(ctx context.Context, path string, payload, out any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return err
	}
	c.setHeaders(httpReq)

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("chain service returned %d: %s", resp.StatusCode, respBody)
	}

	return json.NewDecoder(resp.Body).Decode(out)
}

func (c *HTTPClient) setHeaders(req *http.Request) {
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}
}

// validateMintResult rejects mint events missing the fields the store mapping
// depends on, instead of letting absent values propagate as zero rows.
func validateMintResult(m *MintResult) error {
	if m.VoucherID == 0 {
		return fmt.Errorf("mint event missing voucher id")
	}
	if len(m.TransactionHash) < 8 {
		return fmt.Errorf("mint event transaction hash too short: %q", m.TransactionHash)
	}
	if m.Amount.IsNegative() || m.Amount.IsZero() {
		return fmt.Errorf("mint event has non-positive amount %s", m.Amount)
	}
	if m.Currency == "" || m.OwnerID == "" || m.PatientID == "" {
		return fmt.Errorf("mint event missing currency or owner fields")
	}
	return nil
}
