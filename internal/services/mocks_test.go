package services

import (
	"context"

	"github.com/carepay/backend/internal/chain"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/mock"
)

type MockChainClient struct {
	mock.Mock
}

func (m *MockChainClient) MintVoucher(ctx context.Context, req chain.MintVoucherRequest) (*chain.MintResult, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*chain.MintResult), args.Error(1)
}

func (m *MockChainClient) BurnVoucher(ctx context.Context, vid int64) (*chain.BurnResult, error) {
	args := m.Called(ctx, vid)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*chain.BurnResult), args.Error(1)
}

func (m *MockChainClient) GetVoucherByID(ctx context.Context, vid int64) (*chain.VoucherRecord, error) {
	args := m.Called(ctx, vid)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*chain.VoucherRecord), args.Error(1)
}

type MockSMSSender struct {
	mock.Mock
}

func (m *MockSMSSender) SendTransferVerificationCode(ctx context.Context, phoneNumber, code string, amount decimal.Decimal, currency string) error {
	args := m.Called(ctx, phoneNumber, code, amount, currency)
	return args.Error(0)
}
