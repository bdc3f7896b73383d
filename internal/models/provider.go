package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Provider is a care facility that redeems vouchers.
type Provider struct {
	ID                     string     `json:"id" db:"id"`
	Name                   string     `json:"name" db:"name"`
	Email                  string     `json:"email" db:"email"`
	Phone                  string     `json:"phone" db:"phone"`
	Address                string     `json:"address" db:"address"`
	City                   string     `json:"city" db:"city"`
	PostalCode             string     `json:"postalCode" db:"postal_code"`
	BusinessType           string     `json:"businessType" db:"business_type"`
	BusinessRegistrationNo string     `json:"businessRegistrationNo" db:"business_registration_no"`
	LogoLink               string     `json:"logoLink" db:"logo_link"`
	CreatedAt              time.Time  `json:"createdAt" db:"created_at"`
	UpdatedAt              time.Time  `json:"updatedAt" db:"updated_at"`
	DeletedAt              *time.Time `json:"deletedAt,omitempty" db:"deleted_at"`
}

// ProviderService is a billable service a provider offers. Prices are in the
// provider's local currency.
type ProviderService struct {
	ID          string          `json:"id" db:"id"`
	ProviderID  string          `json:"providerId" db:"provider_id"`
	Name        string          `json:"name" db:"name"`
	Description string          `json:"description" db:"description"`
	Price       decimal.Decimal `json:"price" db:"price"`
	CreatedAt   time.Time       `json:"createdAt" db:"created_at"`
	UpdatedAt   time.Time       `json:"updatedAt" db:"updated_at"`
}

// Package groups provider services under one price.
type Package struct {
	ID          string            `json:"id" db:"id"`
	ProviderID  string            `json:"providerId" db:"provider_id"`
	Name        string            `json:"name" db:"name"`
	Description string            `json:"description" db:"description"`
	Price       decimal.Decimal   `json:"price" db:"price"`
	Services    []ProviderService `json:"services,omitempty"`
	CreatedAt   time.Time         `json:"createdAt" db:"created_at"`
	UpdatedAt   time.Time         `json:"updatedAt" db:"updated_at"`
}
