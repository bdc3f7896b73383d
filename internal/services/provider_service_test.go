package services

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/carepay/backend/internal/models"
	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func newProviderServiceTest(t *testing.T) (*ProviderService, sqlmock.Sqlmock) {
	db, dbMock, err := sqlmock.New()
	assert.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	return NewProviderService(db), dbMock
}

func withURLParam(r *http.Request, key, value string) *http.Request {
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add(key, value)
	return r.WithContext(context.WithValue(r.Context(), chi.RouteCtxKey, rctx))
}

func TestProviderService_RegisterProvider(t *testing.T) {
	t.Run("registers a provider", func(t *testing.T) {
		service, dbMock := newProviderServiceTest(t)

		dbMock.ExpectExec("INSERT INTO providers").
			WillReturnResult(sqlmock.NewResult(0, 1))

		body := `{"name":"Clinique Espoir","email":"desk@espoir.cd","phone":"+243990000000","city":"Kinshasa","businessType":"CLINIC"}`
		req := httptest.NewRequest(http.MethodPost, "/providers", strings.NewReader(body))
		w := httptest.NewRecorder()

		service.RegisterProvider(w, req)

		assert.Equal(t, http.StatusCreated, w.Code)

		var created models.Provider
		assert.NoError(t, json.Unmarshal(w.Body.Bytes(), &created))
		assert.Equal(t, "Clinique Espoir", created.Name)
		assert.NotEmpty(t, created.ID)
		assert.NoError(t, dbMock.ExpectationsWereMet())
	})

	t.Run("duplicate email", func(t *testing.T) {
		service, dbMock := newProviderServiceTest(t)

		dbMock.ExpectExec("INSERT INTO providers").
			WillReturnError(assert.AnError)

		body := `{"name":"Clinique Espoir","email":"desk@espoir.cd","phone":"+243990000000"}`
		req := httptest.NewRequest(http.MethodPost, "/providers", strings.NewReader(body))
		w := httptest.NewRecorder()

		service.RegisterProvider(w, req)

		assert.Equal(t, http.StatusConflict, w.Code)
	})

	t.Run("rejects an invalid phone", func(t *testing.T) {
		service, _ := newProviderServiceTest(t)

		body := `{"name":"Clinique Espoir","email":"desk@espoir.cd","phone":"0990000000"}`
		req := httptest.NewRequest(http.MethodPost, "/providers", strings.NewReader(body))
		w := httptest.NewRecorder()

		service.RegisterProvider(w, req)

		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}

func TestProviderService_ListProviders(t *testing.T) {
	service, dbMock := newProviderServiceTest(t)

	// Optional columns come back NULL for providers registered with the bare
	// minimum; listing must not choke on them.
	dbMock.ExpectQuery("SELECT (.+) FROM providers").
		WillReturnRows(sqlmock.NewRows([]string{"id", "name", "email", "phone", "address",
			"city", "business_type", "logo_link", "created_at"}).
			AddRow(testProviderID, "Clinique Espoir", "desk@espoir.cd", "+243990000000",
				nil, nil, nil, nil, time.Now()))

	req := httptest.NewRequest(http.MethodGet, "/providers", nil)
	w := httptest.NewRecorder()

	service.ListProviders(w, req)

	assert.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Providers []models.Provider `json:"providers"`
		Count     int               `json:"count"`
	}
	assert.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, 1, resp.Count)
	assert.Equal(t, "", resp.Providers[0].City)
	assert.NoError(t, dbMock.ExpectationsWereMet())
}

func TestProviderService_CreateService(t *testing.T) {
	t.Run("creates a billable service", func(t *testing.T) {
		service, dbMock := newProviderServiceTest(t)

		dbMock.ExpectQuery("SELECT COUNT").
			WithArgs(testProviderID).
			WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))
		dbMock.ExpectExec("INSERT INTO provider_services").
			WillReturnResult(sqlmock.NewResult(0, 1))

		body := `{"name":"Consultation","description":"General consultation","price":"50"}`
		req := httptest.NewRequest(http.MethodPost, "/providers/"+testProviderID+"/services",
			strings.NewReader(body))
		req = withURLParam(req, "providerId", testProviderID)
		w := httptest.NewRecorder()

		service.CreateService(w, req)

		assert.Equal(t, http.StatusCreated, w.Code)

		var created models.ProviderService
		assert.NoError(t, json.Unmarshal(w.Body.Bytes(), &created))
		assert.Equal(t, "Consultation", created.Name)
		assert.Equal(t, testProviderID, created.ProviderID)
		assert.NoError(t, dbMock.ExpectationsWereMet())
	})

	t.Run("unknown provider", func(t *testing.T) {
		service, dbMock := newProviderServiceTest(t)

		dbMock.ExpectQuery("SELECT COUNT").
			WithArgs(testProviderID).
			WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(0))

		body := `{"name":"Consultation","price":"50"}`
		req := httptest.NewRequest(http.MethodPost, "/providers/"+testProviderID+"/services",
			strings.NewReader(body))
		req = withURLParam(req, "providerId", testProviderID)
		w := httptest.NewRecorder()

		service.CreateService(w, req)

		assert.Equal(t, http.StatusNotFound, w.Code)
	})

	t.Run("rejects unknown fields", func(t *testing.T) {
		service, _ := newProviderServiceTest(t)

		body := `{"name":"Consultation","price":"50","rogue":true}`
		req := httptest.NewRequest(http.MethodPost, "/providers/"+testProviderID+"/services",
			strings.NewReader(body))
		req = withURLParam(req, "providerId", testProviderID)
		w := httptest.NewRecorder()

		service.CreateService(w, req)

		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}

func TestProviderService_GetStatistics(t *testing.T) {
	service, dbMock := newProviderServiceTest(t)

	dbMock.ExpectQuery("SELECT amount, status, owner_id").
		WithArgs(testProviderID).
		WillReturnRows(sqlmock.NewRows([]string{"amount", "status", "owner_id"}).
			AddRow("100", "PENDING", testPatientID).
			AddRow("250", "SUCCESSFUL", testPatientID).
			AddRow("400", "PAID_OUT", "other-patient").
			AddRow("50", "SPLIT", testPatientID))

	req := httptest.NewRequest(http.MethodGet, "/providers/"+testProviderID+"/statistics", nil)
	req = withURLParam(req, "providerId", testProviderID)
	w := httptest.NewRecorder()

	service.GetStatistics(w, req)

	assert.Equal(t, http.StatusOK, w.Code)

	var stats TransactionStatistics
	assert.NoError(t, json.Unmarshal(w.Body.Bytes(), &stats))
	assert.True(t, stats.TotalAmount.Equal(decimal.RequireFromString("800")))
	assert.True(t, stats.TotalUnclaimedAmount.Equal(decimal.RequireFromString("100")))
	assert.True(t, stats.TotalPendingAmount.Equal(decimal.RequireFromString("250")))
	assert.True(t, stats.TotalRedeemedAmount.Equal(decimal.RequireFromString("400")))
	assert.Equal(t, 2, stats.TotalUniquePatients)
	assert.NoError(t, dbMock.ExpectationsWereMet())
}
