package services

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/carepay/backend/internal/models"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

// PatientService manages voucher beneficiaries.
type PatientService struct {
	db        *sql.DB
	validator *ValidationHelper
}

func NewPatientService(db *sql.DB) *PatientService {
	return &PatientService{
		db:        db,
		validator: NewValidationHelper(),
	}
}

type CreatePatientRequest struct {
	FirstName   string `json:"firstName" validate:"required,min=2"`
	LastName    string `json:"lastName" validate:"required,min=2"`
	PhoneNumber string `json:"phoneNumber" validate:"required,e164"`
	Country     string `json:"country" validate:"required,len=2"`
	City        string `json:"city" validate:"max=100"`
}

// CreatePatient handles patient registration
// @Summary Register a patient
// @Tags patients
// @Accept json
// @Produce json
// @Param request body CreatePatientRequest true "Patient to create"
// @Success 201 {object} models.Patient
// @Failure 400 {object} ErrorResponse
// @Failure 409 {object} ErrorResponse
// @Router /patients [post]
func (s *PatientService) CreatePatient(w http.ResponseWriter, r *http.Request) {
	maxBytes := 1_048_576 // 1 MB
	r.Body = http.MaxBytesReader(w, r.Body, int64(maxBytes))

	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()

	var req CreatePatientRequest
	if err := dec.Decode(&req); err != nil {
		SendErrorResponse(w, "Invalid request body", http.StatusBadRequest, nil)
		return
	}
	if err := dec.Decode(&struct{}{}); err != io.EOF {
		SendErrorResponse(w, "Request body must only contain a single JSON object", http.StatusBadRequest, nil)
		return
	}

	if err := s.validator.ValidateStruct(&req); err != nil {
		SendErrorResponse(w, "Validation failed", http.StatusBadRequest, err)
		return
	}

	now := time.Now()
	patient := models.Patient{
		ID:          uuid.NewString(),
		FirstName:   req.FirstName,
		LastName:    req.LastName,
		PhoneNumber: req.PhoneNumber,
		Country:     req.Country,
		City:        req.City,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	_, err := s.db.ExecContext(r.Context(), `
		INSERT INTO patients (id, first_name, last_name, phone_number, country, city, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		patient.ID, patient.FirstName, patient.LastName, patient.PhoneNumber,
		patient.Country, patient.City, now, now)
	if err != nil {
		SendErrorResponse(w, "Phone Number Already Registered", http.StatusConflict, nil)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(patient)
}

// GetPatient handles patient lookup by id or phone number
// @Summary Get a patient
// @Tags patients
// @Produce json
// @Param patientId path string true "Patient id"
// @Success 200 {object} models.Patient
// @Failure 404 {object} ErrorResponse
// @Router /patients/{patientId} [get]
func (s *PatientService) GetPatient(w http.ResponseWriter, r *http.Request) {
	patientID := chi.URLParam(r, "patientId")

	var p models.Patient
	var country, city sql.NullString
	err := s.db.QueryRowContext(r.Context(), `
		SELECT id, first_name, last_name, phone_number, country, city, created_at, updated_at
		FROM patients
		WHERE (id::text = $1 OR phone_number = $1) AND deleted_at IS NULL`, patientID).
		Scan(&p.ID, &p.FirstName, &p.LastName, &p.PhoneNumber, &country, &city,
			&p.CreatedAt, &p.UpdatedAt)
	if err == sql.ErrNoRows {
		RenderError(w, models.ErrPatientNotFound)
		return
	}
	if err != nil {
		RenderError(w, fmt.Errorf("find patient: %w", err))
		return
	}
	p.Country = country.String
	p.City = city.String

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(p)
}
