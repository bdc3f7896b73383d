package models

import (
	"errors"
	"net/http"
)

// APIError is the discriminated failure the engine returns to callers: an HTTP
// status, a stable reason code for client-side messaging and a human message.
type APIError struct {
	Status  int    `json:"-"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (e *APIError) Error() string {
	return e.Message
}

func notFound(code, message string) *APIError {
	return &APIError{Status: http.StatusNotFound, Code: code, Message: message}
}

func forbidden(code, message string) *APIError {
	return &APIError{Status: http.StatusForbidden, Code: code, Message: message}
}

var (
	ErrInvalidTransactionHash = notFound("INVALID_TRANSACTION_HASH", "No transaction matches the given voucher code")
	ErrVoucherUsed            = notFound("VOUCHER_USED", "Voucher has already been transferred to a provider")
	ErrProviderNotFound       = notFound("PROVIDER_NOT_FOUND", "Provider not found")
	ErrPatientNotFound        = notFound("PATIENT_NOT_FOUND", "Patient not found")
	ErrServiceNotFound        = notFound("SERVICE_NOT_FOUND", "One or more requested services do not exist")
	ErrPackageNotFound        = notFound("PACKAGE_NOT_FOUND", "Package not found")

	ErrInvalidVerificationCode = forbidden("INVALID_VOUCHER_TRANSFER_VERIFICATION_CODE", "Invalid voucher transfer verification code")
	ErrWrongVoucherCurrency    = forbidden("WRONG_VOUCHER_CURRENCY", "Voucher currency is not redeemable at this provider")
	ErrVoucherConflict         = &APIError{Status: http.StatusConflict, Code: "VOUCHER_STATE_CONFLICT", Message: "Voucher was modified by a concurrent operation"}
)

// AsAPIError unwraps err into an *APIError when it carries one.
func AsAPIError(err error) (*APIError, bool) {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr, true
	}
	return nil, false
}
