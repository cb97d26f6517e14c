package handler_test

import (
	"net/http"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/oscroos/bjugstad-utleie-webapp/internal/handler"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestListAllCustomers(t *testing.T) {
	initHandlers(t, testConfig())
	mock := newMockDB(t)

	mock.ExpectQuery(`SELECT \* FROM "customer_companies"`).
		WillReturnRows(sqlmock.NewRows(companyColumns()).
			AddRow(1075, "Agder Graveservice AS", "987654321").
			AddRow(2228, "Bjugstad Maskin AS", "123456789"))

	c, rec := newRequest(http.MethodGet, "/api/admin/customers", "")
	require.NoError(t, handler.ListAllCustomers(c))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Agder Graveservice AS")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateCustomer(t *testing.T) {
	initHandlers(t, testConfig())

	t.Run("creates a mirror under the rental system id", func(t *testing.T) {
		mock := newMockDB(t)

		mock.ExpectBegin()
		mock.ExpectExec(`INSERT INTO "customer_companies"`).
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectCommit()

		body := `{"id": 2228, "name": "Bjugstad Maskin AS", "org_number": "123456789"}`
		c, rec := newRequest(http.MethodPost, "/api/admin/customers", body)
		require.NoError(t, handler.CreateCustomer(c))

		require.Equal(t, http.StatusCreated, rec.Code)
		assert.Contains(t, rec.Body.String(), `"id":2228`)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("requires the rental system id", func(t *testing.T) {
		body := `{"name": "Bjugstad Maskin AS"}`
		c, rec := newRequest(http.MethodPost, "/api/admin/customers", body)
		require.NoError(t, handler.CreateCustomer(c))

		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Contains(t, rec.Body.String(), "must match the rental system")
	})

	t.Run("duplicate id conflicts", func(t *testing.T) {
		mock := newMockDB(t)

		mock.ExpectBegin()
		mock.ExpectExec(`INSERT INTO "customer_companies"`).
			WillReturnError(&pgconn.PgError{Code: "23505"})
		mock.ExpectRollback()

		body := `{"id": 2228, "name": "Bjugstad Maskin AS"}`
		c, rec := newRequest(http.MethodPost, "/api/admin/customers", body)
		require.NoError(t, handler.CreateCustomer(c))

		assert.Equal(t, http.StatusConflict, rec.Code)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestUpdateCustomer(t *testing.T) {
	initHandlers(t, testConfig())
	mock := newMockDB(t)

	mock.ExpectQuery(`SELECT \* FROM "customer_companies" WHERE "customer_companies"\."id" =`).
		WillReturnRows(sqlmock.NewRows(companyColumns()).
			AddRow(2228, "Bjugstad Maskin AS", "123456789"))
	mock.ExpectBegin()
	mock.ExpectExec(`UPDATE "customer_companies" SET`).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	body := `{"name": "Bjugstad Maskin og Utleie AS"}`
	c, rec := newRequest(http.MethodPut, "/api/admin/customers/2228", body)
	c.SetParamNames("id")
	c.SetParamValues("2228")
	require.NoError(t, handler.UpdateCustomer(c))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDeleteCustomer_RemovesGrantsWithTheMirror(t *testing.T) {
	initHandlers(t, testConfig())
	mock := newMockDB(t)

	mock.ExpectQuery(`SELECT \* FROM "customer_companies" WHERE "customer_companies"\."id" =`).
		WillReturnRows(sqlmock.NewRows(companyColumns()).
			AddRow(2228, "Bjugstad Maskin AS", "123456789"))
	mock.ExpectBegin()
	mock.ExpectExec(`DELETE FROM "access_grants" WHERE customer_company_id =`).
		WillReturnResult(sqlmock.NewResult(0, 3))
	mock.ExpectExec(`DELETE FROM "customer_companies" WHERE`).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	c, rec := newRequest(http.MethodDelete, "/api/admin/customers/2228", "")
	c.SetParamNames("id")
	c.SetParamValues("2228")
	require.NoError(t, handler.DeleteCustomer(c))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "customer deleted")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestImportCustomers(t *testing.T) {
	cfg := testConfig()
	client := newRentalServer(t, map[string]string{
		"/customers": `[
			{"id": 2228, "name": "Bjugstad Maskin AS", "org_number": "123456789"},
			{"id": 1075, "name": "Agder Graveservice AS", "org_number": "987654321"}
		]`,
	})
	handler.Init(cfg, nil, client)
	mock := newMockDB(t)

	// 2228 is already mirrored and unchanged, 1075 is new
	mock.ExpectQuery(`SELECT \* FROM "customer_companies" WHERE "customer_companies"\."id" =`).
		WillReturnRows(sqlmock.NewRows(companyColumns()).
			AddRow(2228, "Bjugstad Maskin AS", "123456789"))
	mock.ExpectQuery(`SELECT \* FROM "customer_companies" WHERE "customer_companies"\."id" =`).
		WillReturnRows(sqlmock.NewRows(companyColumns()))
	mock.ExpectBegin()
	mock.ExpectExec(`INSERT INTO "customer_companies"`).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	c, rec := newRequest(http.MethodPost, "/api/admin/customers/import", "")
	require.NoError(t, handler.ImportCustomers(c))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"created":1`)
	assert.Contains(t, rec.Body.String(), `"updated":0`)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestListRecentLogins(t *testing.T) {
	initHandlers(t, testConfig())
	mock := newMockDB(t)

	mock.ExpectQuery(`SELECT \* FROM "login_events"`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "user_id", "provider", "created_at"}).
			AddRow(9, 7, "vipps", time.Now()).
			AddRow(8, 8, "vipps", time.Now().Add(-time.Hour)))
	mock.ExpectQuery(`SELECT \* FROM "users" WHERE "users"\."id" IN`).
		WillReturnRows(sqlmock.NewRows(userColumns()).
			AddRow(7, "+4745938863", nil, "Kari Nordmann", "customer").
			AddRow(8, "+4790000001", nil, "Ola Hansen", "customer"))

	c, rec := newRequest(http.MethodGet, "/api/admin/logins", "")
	require.NoError(t, handler.ListRecentLogins(c))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Kari Nordmann")
	assert.NoError(t, mock.ExpectationsWereMet())
}
