package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"time"

	"github.com/shopspring/decimal"
	"github.com/spf13/viper"
)

// SMSSender delivers one-time codes to patients. Delivery is best-effort: the
// engine logs failures but never fails the primary operation on them.
type SMSSender interface {
	SendTransferVerificationCode(ctx context.Context, phoneNumber, code string, amount decimal.Decimal, currency string) error
}

type SMSService struct {
	baseURL string
	apiKey  string
	sender  string
	client  *http.Client
}

func NewSMSService() *SMSService {
	viper.SetDefault("sms.base_url", "https://rest.messagebird.com")
	viper.SetDefault("sms.sender", "CarePay")
	viper.SetDefault("sms.timeout", 10*time.Second)

	return &SMSService{
		baseURL: viper.GetString("sms.base_url"),
		apiKey:  viper.GetString("sms.api_key"),
		sender:  viper.GetString("sms.sender"),
		client:  &http.Client{Timeout: viper.GetDuration("sms.timeout")},
	}
}

func (s *SMSService) SendTransferVerificationCode(ctx context.Context, phoneNumber, code string, amount decimal.Decimal, currency string) error {
	message := fmt.Sprintf(
		"Your voucher transfer code is %s. Use it to authorize payment of up to %s %s. It expires in 1 hour.",
		code, amount.StringFixed(2), currency,
	)
	return s.send(ctx, phoneNumber, message)
}

func (s *SMSService) send(ctx context.Context, phoneNumber, message string) error {
	payload := map[string]string{
		"originator": s.sender,
		"recipients": phoneNumber,
		"body":       message,
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+"/messages", bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "AccessKey "+s.apiKey)

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("sms gateway request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("sms gateway returned %d: %s", resp.StatusCode, respBody)
	}

	log.Printf("[SMS] Message dispatched to %s", phoneNumber)
	return nil
}
