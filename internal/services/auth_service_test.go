package services

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/go-redis/redismock/v8"
	"github.com/golang-jwt/jwt/v5"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
)

func newAuthServiceTest(t *testing.T) (*AuthService, sqlmock.Sqlmock, redismock.ClientMock) {
	db, dbMock, err := sqlmock.New()
	assert.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	redisClient, redisMock := redismock.NewClientMock()
	viper.Set("jwt.secret_key", "test-secret")
	t.Cleanup(func() { viper.Set("jwt.secret_key", "") })

	return NewAuthService(db, redisClient), dbMock, redisMock
}

func TestPasswordHashing(t *testing.T) {
	newAuthServiceTest(t) // seeds argon2 defaults

	hashed, err := hashPassword("correct horse battery staple")
	assert.NoError(t, err)
	assert.Contains(t, hashed, "$")

	assert.True(t, verifyPassword("correct horse battery staple", hashed))
	assert.False(t, verifyPassword("wrong password", hashed))
	assert.False(t, verifyPassword("correct horse battery staple", "not-a-hash"))

	// Fresh salt per hash.
	again, err := hashPassword("correct horse battery staple")
	assert.NoError(t, err)
	assert.NotEqual(t, hashed, again)
}

func TestAuthService_Register(t *testing.T) {
	t.Run("registers a payer and returns a token", func(t *testing.T) {
		service, dbMock, _ := newAuthServiceTest(t)

		dbMock.ExpectExec("INSERT INTO users").
			WillReturnResult(sqlmock.NewResult(0, 1))

		body := `{"email":"Payer@Example.com","password":"password123","phoneNumber":"+243812345678","role":"PAYER"}`
		req := httptest.NewRequest(http.MethodPost, "/auth/register", strings.NewReader(body))
		w := httptest.NewRecorder()

		service.Register(w, req)

		assert.Equal(t, http.StatusOK, w.Code)

		var resp AuthResponse
		assert.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		assert.Equal(t, "payer@example.com", resp.User.Email)
		assert.NotEmpty(t, resp.Token)

		claims := jwt.MapClaims{}
		_, err := jwt.ParseWithClaims(resp.Token, claims, func(*jwt.Token) (any, error) {
			return []byte("test-secret"), nil
		})
		assert.NoError(t, err)
		assert.Equal(t, resp.User.ID, claims["user_id"])
		assert.Equal(t, "PAYER", claims["role"])
		assert.NoError(t, dbMock.ExpectationsWereMet())
	})

	t.Run("rejects an unknown role", func(t *testing.T) {
		service, _, _ := newAuthServiceTest(t)

		body := `{"email":"payer@example.com","password":"password123","phoneNumber":"+243812345678","role":"ADMIN"}`
		req := httptest.NewRequest(http.MethodPost, "/auth/register", strings.NewReader(body))
		w := httptest.NewRecorder()

		service.Register(w, req)

		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}

func TestAuthService_Login(t *testing.T) {
	t.Run("valid credentials", func(t *testing.T) {
		service, dbMock, _ := newAuthServiceTest(t)

		hashed, err := hashPassword("password123")
		assert.NoError(t, err)

		dbMock.ExpectQuery("SELECT (.+) FROM users").
			WithArgs("payer@example.com").
			WillReturnRows(sqlmock.NewRows([]string{"id", "email", "phone_number", "role", "status", "password"}).
				AddRow(testSenderID, "payer@example.com", "+243812345678", "PAYER", "ACTIVE", hashed))

		body := `{"email":"payer@example.com","password":"password123"}`
		req := httptest.NewRequest(http.MethodPost, "/auth/login", strings.NewReader(body))
		w := httptest.NewRecorder()

		service.Login(w, req)

		assert.Equal(t, http.StatusOK, w.Code)

		var resp AuthResponse
		assert.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		assert.Equal(t, testSenderID, resp.User.ID)
		assert.NotEmpty(t, resp.Token)
	})

	t.Run("wrong password", func(t *testing.T) {
		service, dbMock, _ := newAuthServiceTest(t)

		hashed, err := hashPassword("password123")
		assert.NoError(t, err)

		dbMock.ExpectQuery("SELECT (.+) FROM users").
			WithArgs("payer@example.com").
			WillReturnRows(sqlmock.NewRows([]string{"id", "email", "phone_number", "role", "status", "password"}).
				AddRow(testSenderID, "payer@example.com", "+243812345678", "PAYER", "ACTIVE", hashed))

		body := `{"email":"payer@example.com","password":"hunter2aa"}`
		req := httptest.NewRequest(http.MethodPost, "/auth/login", strings.NewReader(body))
		w := httptest.NewRecorder()

		service.Login(w, req)

		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})
}

func TestAuthService_Logout(t *testing.T) {
	service, _, redisMock := newAuthServiceTest(t)

	redisMock.Regexp().ExpectSet(`^blacklist:.+`, "1", 24*time.Hour).SetVal("OK")

	req := httptest.NewRequest(http.MethodPost, "/auth/logout", nil)
	req.Header.Set("Authorization", "Bearer some.jwt.token")
	w := httptest.NewRecorder()

	service.Logout(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.NoError(t, redisMock.ExpectationsWereMet())
}
