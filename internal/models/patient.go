package models

import "time"

// Patient is the beneficiary a voucher is funded for. PhoneNumber receives the
// transfer verification OTP.
type Patient struct {
	ID          string     `json:"id" db:"id"`
	FirstName   string     `json:"firstName" db:"first_name"`
	LastName    string     `json:"lastName" db:"last_name"`
	PhoneNumber string     `json:"phoneNumber" db:"phone_number"`
	Country     string     `json:"country" db:"country"`
	City        string     `json:"city" db:"city"`
	CreatedAt   time.Time  `json:"createdAt" db:"created_at"`
	UpdatedAt   time.Time  `json:"updatedAt" db:"updated_at"`
	DeletedAt   *time.Time `json:"deletedAt,omitempty" db:"deleted_at"`
}
