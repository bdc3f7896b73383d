package services

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/carepay/backend/internal/models"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ProviderService manages the provider-side catalog (services, packages) and
// the provider views over voucher transactions.
type ProviderService struct {
	db        *sql.DB
	validator *ValidationHelper
}

func NewProviderService(db *sql.DB) *ProviderService {
	return &ProviderService{
		db:        db,
		validator: NewValidationHelper(),
	}
}

// CreateServiceRequest describes a billable service to add to a provider.
type CreateServiceRequest struct {
	Name        string          `json:"name" validate:"required,min=2"`
	Description string          `json:"description" validate:"max=500"`
	Price       decimal.Decimal `json:"price" validate:"required"`
}

// CreatePackageRequest groups service ids under one priced package.
type CreatePackageRequest struct {
	Name        string          `json:"name" validate:"required,min=2"`
	Description string          `json:"description" validate:"max=500"`
	Price       decimal.Decimal `json:"price" validate:"required"`
	ServiceIDs  []string        `json:"serviceIds" validate:"dive,uuid4"`
}

// RegisterProviderRequest describes a care provider joining the platform.
type RegisterProviderRequest struct {
	Name                   string `json:"name" validate:"required,min=2"`
	Email                  string `json:"email" validate:"required,email"`
	Phone                  string `json:"phone" validate:"required,e164"`
	Address                string `json:"address" validate:"max=200"`
	City                   string `json:"city" validate:"max=100"`
	PostalCode             string `json:"postalCode" validate:"max=20"`
	BusinessType           string `json:"businessType" validate:"max=100"`
	BusinessRegistrationNo string `json:"businessRegistrationNo" validate:"max=50"`
	LogoLink               string `json:"logoLink" validate:"omitempty,url"`
}

// TransactionStatistics aggregates a provider's voucher transactions by state.
type TransactionStatistics struct {
	TotalAmount          decimal.Decimal `json:"totalAmount"`
	TotalUniquePatients  int             `json:"totalUniquePatients"`
	TotalRedeemedAmount  decimal.Decimal `json:"totalRedeemedAmount"`
	TotalPendingAmount   decimal.Decimal `json:"totalPendingAmount"`
	TotalUnclaimedAmount decimal.Decimal `json:"totalUnclaimedAmount"`
}

// RegisterProvider handles provider registration
// @Summary Register a care provider
// @Description Register a clinic, hospital or pharmacy able to receive vouchers
// @Tags providers
// @Accept json
// @Produce json
// @Param request body RegisterProviderRequest true "Provider to register"
// @Success 201 {object} models.Provider
// @Failure 400 {object} ErrorResponse
// @Failure 409 {object} ErrorResponse
// @Router /providers [post]
func (ps *ProviderService) RegisterProvider(w http.ResponseWriter, r *http.Request) {
	var req RegisterProviderRequest
	if !ps.decodeBody(w, r, &req) {
		return
	}

	now := time.Now()
	provider := models.Provider{
		ID:                     uuid.NewString(),
		Name:                   req.Name,
		Email:                  req.Email,
		Phone:                  req.Phone,
		Address:                req.Address,
		City:                   req.City,
		PostalCode:             req.PostalCode,
		BusinessType:           req.BusinessType,
		BusinessRegistrationNo: req.BusinessRegistrationNo,
		LogoLink:               req.LogoLink,
		CreatedAt:              now,
		UpdatedAt:              now,
	}

	_, err := ps.db.ExecContext(r.Context(), `
		INSERT INTO providers (id, name, email, phone, address, city, postal_code,
		                       business_type, business_registration_no, logo_link, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`,
		provider.ID, provider.Name, provider.Email, provider.Phone, provider.Address,
		provider.City, provider.PostalCode, provider.BusinessType,
		provider.BusinessRegistrationNo, provider.LogoLink, now, now)
	if err != nil {
		SendErrorResponse(w, "Provider Already Registered", http.StatusConflict, nil)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(provider)
}

// CreateService handles service creation
// @Summary Add a service to a provider
// @Description Create a billable service offered by the provider
// @Tags providers
// @Accept json
// @Produce json
// @Param providerId path string true "Provider id"
// @Param request body CreateServiceRequest true "Service to create"
// @Success 201 {object} models.ProviderService
// @Failure 400 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Router /providers/{providerId}/services [post]
func (ps *ProviderService) CreateService(w http.ResponseWriter, r *http.Request) {
	providerID := chi.URLParam(r, "providerId")

	var req CreateServiceRequest
	if !ps.decodeBody(w, r, &req) {
		return
	}

	exists, err := ps.providerExists(r.Context(), providerID)
	if err != nil {
		RenderError(w, err)
		return
	}
	if !exists {
		RenderError(w, models.ErrProviderNotFound)
		return
	}

	now := time.Now()
	svc := models.ProviderService{
		ID:          uuid.NewString(),
		ProviderID:  providerID,
		Name:        req.Name,
		Description: req.Description,
		Price:       req.Price,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	_, err = ps.db.ExecContext(r.Context(), `
		INSERT INTO provider_services (id, provider_id, name, description, price, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		svc.ID, svc.ProviderID, svc.Name, svc.Description, svc.Price, now, now)
	if err != nil {
		RenderError(w, fmt.Errorf("insert service: %w", err))
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(svc)
}

// ListServices handles provider service listing
// @Summary List a provider's services
// @Tags providers
// @Produce json
// @Param providerId path string true "Provider id"
// @Success 200 {object} object{services=[]models.ProviderService,count=int}
// @Failure 500 {object} ErrorResponse
// @Router /providers/{providerId}/services [get]
func (ps *ProviderService) ListServices(w http.ResponseWriter, r *http.Request) {
	providerID := chi.URLParam(r, "providerId")

	services, err := ps.fetchServices(r.Context(), `
		SELECT id, provider_id, name, description, price, created_at, updated_at
		FROM provider_services
		WHERE provider_id = $1
		ORDER BY created_at DESC`, providerID)
	if err != nil {
		RenderError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"services": services,
		"count":    len(services),
	})
}

// CreatePackage handles package creation
// @Summary Add a package to a provider
// @Description Create a package bundling the given services under one price
// @Tags providers
// @Accept json
// @Produce json
// @Param providerId path string true "Provider id"
// @Param request body CreatePackageRequest true "Package to create"
// @Success 201 {object} models.Package
// @Failure 400 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Router /providers/{providerId}/packages [post]
func (ps *ProviderService) CreatePackage(w http.ResponseWriter, r *http.Request) {
	providerID := chi.URLParam(r, "providerId")

	var req CreatePackageRequest
	if !ps.decodeBody(w, r, &req) {
		return
	}

	exists, err := ps.providerExists(r.Context(), providerID)
	if err != nil {
		RenderError(w, err)
		return
	}
	if !exists {
		RenderError(w, models.ErrProviderNotFound)
		return
	}

	now := time.Now()
	pkg := models.Package{
		ID:          uuid.NewString(),
		ProviderID:  providerID,
		Name:        req.Name,
		Description: req.Description,
		Price:       req.Price,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	dbTx, err := ps.db.BeginTx(r.Context(), nil)
	if err != nil {
		RenderError(w, err)
		return
	}
	defer dbTx.Rollback()

	_, err = dbTx.ExecContext(r.Context(), `
		INSERT INTO packages (id, provider_id, name, description, price, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		pkg.ID, pkg.ProviderID, pkg.Name, pkg.Description, pkg.Price, now, now)
	if err != nil {
		RenderError(w, fmt.Errorf("insert package: %w", err))
		return
	}

	for _, serviceID := range req.ServiceIDs {
		if _, err := dbTx.ExecContext(r.Context(), `
			INSERT INTO package_services (package_id, service_id) VALUES ($1, $2)`,
			pkg.ID, serviceID); err != nil {
			RenderError(w, fmt.Errorf("link package service: %w", err))
			return
		}
	}

	if err := dbTx.Commit(); err != nil {
		RenderError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(pkg)
}

// ListPackages handles provider package listing
// @Summary List a provider's packages with their services
// @Tags providers
// @Produce json
// @Param providerId path string true "Provider id"
// @Success 200 {object} object{packages=[]models.Package,count=int}
// @Failure 500 {object} ErrorResponse
// @Router /providers/{providerId}/packages [get]
func (ps *ProviderService) ListPackages(w http.ResponseWriter, r *http.Request) {
	providerID := chi.URLParam(r, "providerId")
	ctx := r.Context()

	rows, err := ps.db.QueryContext(ctx, `
		SELECT id, provider_id, name, description, price, created_at, updated_at
		FROM packages
		WHERE provider_id = $1
		ORDER BY created_at DESC`, providerID)
	if err != nil {
		RenderError(w, fmt.Errorf("fetch packages: %w", err))
		return
	}
	defer rows.Close()

	packages := []models.Package{}
	for rows.Next() {
		var pkg models.Package
		if err := rows.Scan(&pkg.ID, &pkg.ProviderID, &pkg.Name, &pkg.Description,
			&pkg.Price, &pkg.CreatedAt, &pkg.UpdatedAt); err != nil {
			RenderError(w, err)
			return
		}
		packages = append(packages, pkg)
	}
	if err := rows.Err(); err != nil {
		RenderError(w, err)
		return
	}

	for i := range packages {
		services, err := ps.fetchServices(ctx, `
			SELECT s.id, s.provider_id, s.name, s.description, s.price, s.created_at, s.updated_at
			FROM provider_services s
			JOIN package_services ps ON ps.service_id = s.id
			WHERE ps.package_id = $1`, packages[i].ID)
		if err != nil {
			RenderError(w, err)
			return
		}
		packages[i].Services = services
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"packages": packages,
		"count":    len(packages),
	})
}

// AddServicesToPackage handles grouping services into an existing package
// @Summary Add services to a package
// @Tags providers
// @Accept json
// @Produce json
// @Param providerId path string true "Provider id"
// @Param packageId path string true "Package id"
// @Param request body object{serviceIds=[]string} true "Service ids to attach"
// @Success 204 "Services attached"
// @Failure 404 {object} ErrorResponse
// @Router /providers/{providerId}/packages/{packageId}/services [post]
func (ps *ProviderService) AddServicesToPackage(w http.ResponseWriter, r *http.Request) {
	providerID := chi.URLParam(r, "providerId")
	packageID := chi.URLParam(r, "packageId")

	var req struct {
		ServiceIDs []string `json:"serviceIds" validate:"required,min=1,dive,uuid4"`
	}
	if !ps.decodeBody(w, r, &req) {
		return
	}

	exists, err := ps.providerExists(r.Context(), providerID)
	if err != nil {
		RenderError(w, err)
		return
	}
	if !exists {
		RenderError(w, models.ErrProviderNotFound)
		return
	}

	var count int
	err = ps.db.QueryRowContext(r.Context(), `
		SELECT COUNT(*) FROM packages WHERE id = $1 AND provider_id = $2`,
		packageID, providerID).Scan(&count)
	if err != nil {
		RenderError(w, err)
		return
	}
	if count == 0 {
		RenderError(w, models.ErrPackageNotFound)
		return
	}

	for _, serviceID := range req.ServiceIDs {
		if _, err := ps.db.ExecContext(r.Context(), `
			INSERT INTO package_services (package_id, service_id) VALUES ($1, $2)
			ON CONFLICT DO NOTHING`, packageID, serviceID); err != nil {
			RenderError(w, fmt.Errorf("link package service: %w", err))
			return
		}
	}

	w.WriteHeader(http.StatusNoContent)
}

// ListProviders handles provider directory listing
// @Summary List recently registered providers
// @Tags providers
// @Produce json
// @Success 200 {object} object{providers=[]models.Provider,count=int}
// @Failure 500 {object} ErrorResponse
// @Router /providers [get]
func (ps *ProviderService) ListProviders(w http.ResponseWriter, r *http.Request) {
	rows, err := ps.db.QueryContext(r.Context(), `
		SELECT id, name, email, phone, address, city, business_type, logo_link, created_at
		FROM providers
		WHERE deleted_at IS NULL
		ORDER BY created_at DESC
		LIMIT 5`)
	if err != nil {
		RenderError(w, fmt.Errorf("fetch providers: %w", err))
		return
	}
	defer rows.Close()

	providers := []models.Provider{}
	for rows.Next() {
		var p models.Provider
		var address, city, businessType, logoLink sql.NullString
		if err := rows.Scan(&p.ID, &p.Name, &p.Email, &p.Phone, &address, &city,
			&businessType, &logoLink, &p.CreatedAt); err != nil {
			RenderError(w, err)
			return
		}
		p.Address = address.String
		p.City = city.String
		p.BusinessType = businessType.String
		p.LogoLink = logoLink.String
		providers = append(providers, p)
	}
	if err := rows.Err(); err != nil {
		RenderError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"providers": providers,
		"count":     len(providers),
	})
}

// GetTransactions handles provider transaction listing
// @Summary List a provider's voucher transactions
// @Tags providers
// @Produce json
// @Param providerId path string true "Provider id"
// @Success 200 {object} object{transactions=[]models.Transaction,count=int}
// @Failure 500 {object} ErrorResponse
// @Router /providers/{providerId}/transactions [get]
func (ps *ProviderService) GetTransactions(w http.ResponseWriter, r *http.Request) {
	providerID := chi.URLParam(r, "providerId")

	rows, err := ps.db.QueryContext(r.Context(), `
		SELECT id, sender_amount, sender_currency, amount, conversion_rate, currency,
		       sender_id, owner_id, owner_type, provider_id, status, stripe_payment_id,
		       voucher, created_at, updated_at
		FROM transactions
		WHERE provider_id = $1 AND deleted_at IS NULL
		ORDER BY updated_at DESC`, providerID)
	if err != nil {
		RenderError(w, fmt.Errorf("fetch provider transactions: %w", err))
		return
	}
	defer rows.Close()

	transactions := []models.Transaction{}
	for rows.Next() {
		tx, err := scanTransaction(rows)
		if err != nil {
			RenderError(w, err)
			return
		}
		transactions = append(transactions, *tx)
	}
	if err := rows.Err(); err != nil {
		RenderError(w, err)
		return
	}

	// TODO: paginate once provider volumes warrant it.
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"transactions": transactions,
		"count":        len(transactions),
	})
}

// GetStatistics handles provider transaction statistics
// @Summary Provider transaction statistics
// @Description Aggregate a provider's transactions: unclaimed (PENDING), pending payout (SUCCESSFUL) and redeemed (PAID_OUT) sums
// @Tags providers
// @Produce json
// @Param providerId path string true "Provider id"
// @Success 200 {object} TransactionStatistics
// @Failure 500 {object} ErrorResponse
// @Router /providers/{providerId}/statistics [get]
func (ps *ProviderService) GetStatistics(w http.ResponseWriter, r *http.Request) {
	providerID := chi.URLParam(r, "providerId")

	rows, err := ps.db.QueryContext(r.Context(), `
		SELECT amount, status, owner_id
		FROM transactions
		WHERE provider_id = $1 AND deleted_at IS NULL`, providerID)
	if err != nil {
		RenderError(w, fmt.Errorf("fetch provider statistics: %w", err))
		return
	}
	defer rows.Close()

	stats := TransactionStatistics{
		TotalAmount:          decimal.Zero,
		TotalRedeemedAmount:  decimal.Zero,
		TotalPendingAmount:   decimal.Zero,
		TotalUnclaimedAmount: decimal.Zero,
	}
	patients := map[string]struct{}{}

	for rows.Next() {
		var amount decimal.Decimal
		var status models.TransactionStatus
		var ownerID string
		if err := rows.Scan(&amount, &status, &ownerID); err != nil {
			RenderError(w, err)
			return
		}

		stats.TotalAmount = stats.TotalAmount.Add(amount)
		patients[ownerID] = struct{}{}

		switch status {
		case models.TransactionPending:
			stats.TotalUnclaimedAmount = stats.TotalUnclaimedAmount.Add(amount)
		case models.TransactionSuccessful:
			stats.TotalPendingAmount = stats.TotalPendingAmount.Add(amount)
		case models.TransactionPaidOut:
			stats.TotalRedeemedAmount = stats.TotalRedeemedAmount.Add(amount)
		}
	}
	if err := rows.Err(); err != nil {
		RenderError(w, err)
		return
	}
	stats.TotalUniquePatients = len(patients)

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(stats)
}

func (ps *ProviderService) providerExists(ctx context.Context, providerID string) (bool, error) {
	var count int
	err := ps.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM providers WHERE id = $1 AND deleted_at IS NULL`, providerID).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("check provider: %w", err)
	}
	return count > 0, nil
}

func (ps *ProviderService) fetchServices(ctx context.Context, query string, args ...any) ([]models.ProviderService, error) {
	rows, err := ps.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("fetch services: %w", err)
	}
	defer rows.Close()

	services := []models.ProviderService{}
	for rows.Next() {
		var svc models.ProviderService
		if err := rows.Scan(&svc.ID, &svc.ProviderID, &svc.Name, &svc.Description,
			&svc.Price, &svc.CreatedAt, &svc.UpdatedAt); err != nil {
			return nil, err
		}
		services = append(services, svc)
	}
	return services, rows.Err()
}

func (ps *ProviderService) decodeBody(w http.ResponseWriter, r *http.Request, dest any) bool {
	maxBytes := 1_048_576 // 1 MB
	r.Body = http.MaxBytesReader(w, r.Body, int64(maxBytes))

	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()

	if err := dec.Decode(dest); err != nil {
		SendErrorResponse(w, "Invalid request body", http.StatusBadRequest, nil)
		return false
	}
	if err := dec.Decode(&struct{}{}); err != io.EOF {
		SendErrorResponse(w, "Request body must only contain a single JSON object", http.StatusBadRequest, nil)
		return false
	}

	if err := ps.validator.ValidateStruct(dest); err != nil {
		SendErrorResponse(w, "Validation failed", http.StatusBadRequest, err)
		return false
	}
	return true
}
