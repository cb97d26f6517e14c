package handler_test

import (
	"encoding/json"
	"net/http"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/oscroos/bjugstad-utleie-webapp/internal/handler"
	"github.com/oscroos/bjugstad-utleie-webapp/pkg/jwtutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// firstLoginClaims is what a session looks like right after the very first
// sign-in: terms never accepted and no login timestamp yet.
func firstLoginClaims(userID uint) *jwtutil.SessionClaims {
	claims := signedInClaims(userID, "customer")
	claims.TermsAccepted = false
	claims.TermsVersion = ""
	claims.LastLoginAt = nil
	return claims
}

func TestGetOnboarding(t *testing.T) {
	initHandlers(t, testConfig())

	t.Run("pending on first login", func(t *testing.T) {
		c, rec := newRequest(http.MethodGet, "/api/onboarding", "")
		c.Set("claims", firstLoginClaims(7))

		require.NoError(t, handler.GetOnboarding(c))

		require.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, rec.Body.String(), `"pending":true`)
		assert.Contains(t, rec.Body.String(), `"terms_version":"1.0"`)
	})

	t.Run("pending after a terms revision", func(t *testing.T) {
		claims := signedInClaims(7, "customer")
		claims.TermsVersion = "0.9"

		c, rec := newRequest(http.MethodGet, "/api/onboarding", "")
		c.Set("claims", claims)

		require.NoError(t, handler.GetOnboarding(c))

		require.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, rec.Body.String(), `"pending":true`)
		assert.Contains(t, rec.Body.String(), `"accepted_version":"0.9"`)
	})

	t.Run("complete", func(t *testing.T) {
		c, rec := newRequest(http.MethodGet, "/api/onboarding", "")
		c.Set("claims", signedInClaims(7, "customer"))

		require.NoError(t, handler.GetOnboarding(c))

		require.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, rec.Body.String(), `"pending":false`)
		assert.Contains(t, rec.Body.String(), `"accepted":true`)
	})
}

func TestAcceptTerms_StampsAndReissuesSession(t *testing.T) {
	initHandlers(t, testConfig())
	mock := newMockDB(t)

	claims := firstLoginClaims(7)

	mock.ExpectQuery(`SELECT \* FROM "users" WHERE "users"\."id" =`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "phone_number", "email", "name", "role", "terms_accepted", "last_login_at"}).
			AddRow(7, "+4745938863", "kari@example.com", "Kari Nordmann", "customer", false, nil))
	mock.ExpectBegin()
	mock.ExpectExec(`UPDATE "users" SET`).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	c, rec := newRequest(http.MethodPost, "/api/onboarding/accept", "")
	c.Set("claims", claims)
	require.NoError(t, handler.AcceptTerms(c))

	require.Equal(t, http.StatusOK, rec.Code)
	var body struct {
		Token string `json:"token"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))

	fresh, err := jwtutil.ValidateToken(body.Token)
	require.NoError(t, err)
	assert.True(t, fresh.TermsAccepted)
	assert.Equal(t, "1.0", fresh.TermsVersion)
	// Acceptance sets the first login timestamp; later logins key off it
	require.NotNil(t, fresh.LastLoginAt)
	assert.Equal(t, claims.AuthTime, fresh.AuthTime)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAcceptTerms_SessionWithoutAccountIsRefused(t *testing.T) {
	initHandlers(t, testConfig())

	c, rec := newRequest(http.MethodPost, "/api/onboarding/accept", "")
	c.Set("claims", firstLoginClaims(0))

	require.NoError(t, handler.AcceptTerms(c))

	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Contains(t, rec.Body.String(), "no provisioned account")
}

func TestAcceptTerms_DeletedUserIsRejected(t *testing.T) {
	initHandlers(t, testConfig())
	mock := newMockDB(t)

	mock.ExpectQuery(`SELECT \* FROM "users" WHERE "users"\."id" =`).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	c, rec := newRequest(http.MethodPost, "/api/onboarding/accept", "")
	c.Set("claims", firstLoginClaims(7))

	require.NoError(t, handler.AcceptTerms(c))

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Contains(t, rec.Body.String(), "account no longer exists")
	assert.NoError(t, mock.ExpectationsWereMet())
}
