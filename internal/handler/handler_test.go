package handler_test

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/oscroos/bjugstad-utleie-webapp/internal/handler"
	"github.com/oscroos/bjugstad-utleie-webapp/pkg/config"
	"github.com/oscroos/bjugstad-utleie-webapp/pkg/database"
	"github.com/oscroos/bjugstad-utleie-webapp/pkg/jwtutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// newMockDB swaps the package database handle for a sqlmock-backed one so
// handlers under test run their real queries against scripted results.
func newMockDB(t *testing.T) sqlmock.Sqlmock {
	t.Helper()

	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err)

	gdb, err := gorm.Open(postgres.New(postgres.Config{
		Conn:                 sqlDB,
		PreferSimpleProtocol: true,
	}), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)

	database.DB = gdb
	t.Cleanup(func() { database.DB = nil })
	return mock
}

func testConfig() *config.Config {
	return &config.Config{
		JWT: config.JWTConfig{
			SigningKey:  "test-signing-key",
			Issuer:      "bjugstad-utleie-portal",
			SessionTTL:  time.Hour,
			MaxLifetime: 12 * time.Hour,
		},
		Portal: config.PortalConfig{
			BaseURL:      "http://localhost:3000",
			TermsVersion: "1.0",
		},
	}
}

// initHandlers wires the handler package the way cmd/serve does, minus the
// upstream clients. Tests that need a client call handler.Init themselves.
func initHandlers(t *testing.T, cfg *config.Config) {
	t.Helper()
	jwtutil.Initialize(&cfg.JWT)
	handler.Init(cfg, nil, nil)
}

// newRequest builds an echo context around a recorded request. A non-empty
// body is sent as JSON.
func newRequest(method, target, body string) (echo.Context, *httptest.ResponseRecorder) {
	e := echo.New()
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	} else {
		req = httptest.NewRequest(method, target, nil)
	}
	rec := httptest.NewRecorder()
	return e.NewContext(req, rec), rec
}

// signedInClaims mirrors what the auth middleware stores on the context for
// a fully onboarded user.
func signedInClaims(userID uint, role string) *jwtutil.SessionClaims {
	now := time.Now()
	lastLogin := now.Add(-24 * time.Hour)
	return &jwtutil.SessionClaims{
		UserID:        userID,
		PhoneNumber:   "+4745938863",
		Email:         "kari@example.com",
		Name:          "Kari Nordmann",
		Role:          role,
		TermsAccepted: true,
		TermsVersion:  "1.0",
		LastLoginAt:   &lastLogin,
		UserCreatedAt: now.Add(-90 * 24 * time.Hour),
		UserUpdatedAt: now.Add(-24 * time.Hour),
		AuthTime:      now.Unix(),
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Issuer:    "bjugstad-utleie-portal",
			ExpiresAt: jwt.NewNumericDate(now.Add(time.Hour)),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}
}

func TestHello(t *testing.T) {
	c, rec := newRequest(http.MethodGet, "/", "")

	require.NoError(t, handler.Hello(c))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Bjugstad Utleie portal API")
}

func TestHealthCheck(t *testing.T) {
	t.Run("basic", func(t *testing.T) {
		c, rec := newRequest(http.MethodGet, "/health", "")

		require.NoError(t, handler.HealthCheck(c))

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, rec.Body.String(), `"status":"ok"`)
	})

	t.Run("with database probe", func(t *testing.T) {
		mock := newMockDB(t)
		c, rec := newRequest(http.MethodGet, "/health?check=db", "")

		require.NoError(t, handler.HealthCheck(c))

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, rec.Body.String(), `"db_status":"ok"`)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}
