package handler_test

import (
	"net/http"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/oscroos/bjugstad-utleie-webapp/internal/handler"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func userColumns() []string {
	return []string{"id", "phone_number", "email", "name", "role"}
}

func TestListCustomerGrants(t *testing.T) {
	initHandlers(t, testConfig())
	mock := newMockDB(t)

	// Gate: the actor holds company admin
	mock.ExpectQuery(`SELECT \* FROM "access_grants" WHERE user_id =`).
		WillReturnRows(sqlmock.NewRows(grantColumns()).
			AddRow(1, 7, 2228, "admin"))
	mock.ExpectQuery(`SELECT \* FROM "access_grants" WHERE customer_company_id =`).
		WillReturnRows(sqlmock.NewRows(grantColumns()).
			AddRow(1, 7, 2228, "admin").
			AddRow(2, 8, 2228, "user"))
	mock.ExpectQuery(`SELECT \* FROM "users" WHERE "users"\."id" IN`).
		WillReturnRows(sqlmock.NewRows(userColumns()).
			AddRow(7, "+4745938863", "kari@example.com", "Kari Nordmann", "customer").
			AddRow(8, "+4790000001", nil, "Ola Hansen", "customer"))

	c, rec := newRequest(http.MethodGet, "/api/customers/2228/users", "")
	c.SetParamNames("id")
	c.SetParamValues("2228")
	c.Set("claims", signedInClaims(7, "customer"))
	require.NoError(t, handler.ListCustomerGrants(c))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Kari Nordmann")
	assert.Contains(t, rec.Body.String(), "Ola Hansen")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestListCustomerGrants_CompanyUserIsForbidden(t *testing.T) {
	initHandlers(t, testConfig())
	mock := newMockDB(t)

	mock.ExpectQuery(`SELECT \* FROM "access_grants" WHERE user_id =`).
		WillReturnRows(sqlmock.NewRows(grantColumns()).
			AddRow(1, 7, 2228, "user"))

	c, rec := newRequest(http.MethodGet, "/api/customers/2228/users", "")
	c.SetParamNames("id")
	c.SetParamValues("2228")
	c.Set("claims", signedInClaims(7, "customer"))
	require.NoError(t, handler.ListCustomerGrants(c))

	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Contains(t, rec.Body.String(), "insufficient company role")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestReplaceCustomerGrants(t *testing.T) {
	initHandlers(t, testConfig())
	mock := newMockDB(t)

	mock.ExpectQuery(`SELECT \* FROM "access_grants" WHERE user_id =`).
		WillReturnRows(sqlmock.NewRows(grantColumns()).
			AddRow(1, 7, 2228, "admin"))

	// Replacement is one transaction: clear the company, insert the new set
	mock.ExpectBegin()
	mock.ExpectExec(`DELETE FROM "access_grants" WHERE customer_company_id =`).
		WillReturnResult(sqlmock.NewResult(0, 2))
	mock.ExpectQuery(`INSERT INTO "access_grants"`).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(10).AddRow(11))
	mock.ExpectCommit()

	// The response re-reads the stored member list
	mock.ExpectQuery(`SELECT \* FROM "access_grants" WHERE customer_company_id =`).
		WillReturnRows(sqlmock.NewRows(grantColumns()).
			AddRow(10, 8, 2228, "admin").
			AddRow(11, 9, 2228, "user"))
	mock.ExpectQuery(`SELECT \* FROM "users" WHERE "users"\."id" IN`).
		WillReturnRows(sqlmock.NewRows(userColumns()).
			AddRow(8, "+4790000001", nil, "Ola Hansen", "customer").
			AddRow(9, "+4790000002", nil, "Per Olsen", "customer"))

	// The legacy spelling for company admin must be accepted and stored
	// normalized
	body := `{"grants": [{"user_id": 8, "role": "selskapsadmin"}, {"user_id": 9, "role": "user"}]}`
	c, rec := newRequest(http.MethodPut, "/api/customers/2228/users", body)
	c.SetParamNames("id")
	c.SetParamValues("2228")
	c.Set("claims", signedInClaims(7, "customer"))
	require.NoError(t, handler.ReplaceCustomerGrants(c))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"role":"admin"`)
	assert.Contains(t, rec.Body.String(), "Per Olsen")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestReplaceCustomerGrants_UnknownRole(t *testing.T) {
	initHandlers(t, testConfig())
	mock := newMockDB(t)

	mock.ExpectQuery(`SELECT \* FROM "access_grants" WHERE user_id =`).
		WillReturnRows(sqlmock.NewRows(grantColumns()).
			AddRow(1, 7, 2228, "admin"))

	body := `{"grants": [{"user_id": 8, "role": "owner"}]}`
	c, rec := newRequest(http.MethodPut, "/api/customers/2228/users", body)
	c.SetParamNames("id")
	c.SetParamValues("2228")
	c.Set("claims", signedInClaims(7, "customer"))
	require.NoError(t, handler.ReplaceCustomerGrants(c))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRemoveCustomerUser(t *testing.T) {
	initHandlers(t, testConfig())
	mock := newMockDB(t)

	// Super admin passes the gate without a grant lookup
	mock.ExpectBegin()
	mock.ExpectExec(`DELETE FROM "access_grants" WHERE user_id =`).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	c, rec := newRequest(http.MethodDelete, "/api/customers/2228/users/8", "")
	c.SetParamNames("id", "userId")
	c.SetParamValues("2228", "8")
	c.Set("claims", signedInClaims(1, "super_admin"))
	require.NoError(t, handler.RemoveCustomerUser(c))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "user removed from customer")
	assert.NoError(t, mock.ExpectationsWereMet())
}
