package models

import "time"

type UserRole string

const (
	RolePayer    UserRole = "PAYER"
	RoleProvider UserRole = "PROVIDER"
	RolePatient  UserRole = "PATIENT"
)

type User struct {
	ID                  string     `json:"id" example:"a9f1f1c0-6f3a-4f0e-9d1a-0c9d4a1b2c3d"` // User ID
	Email               string     `json:"email" example:"user@example.com"`                  // User email
	PhoneNumber         string     `json:"phoneNumber" example:"+243812345678"`               // User phone number
	Role                UserRole   `json:"role" example:"PROVIDER"`                           // PAYER, PROVIDER or PATIENT
	Status              string     `json:"status" example:"ACTIVE"`
	FailedLoginAttempts int        `json:"-"`
	LockedUntil         *time.Time `json:"-"`
	LastLogin           *time.Time `json:"lastLogin,omitempty"`
	CreatedAt           time.Time  `json:"createdAt"`
	UpdatedAt           time.Time  `json:"updatedAt"`
}
