package rentalapi_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/oscroos/bjugstad-utleie-webapp/internal/apperr"
	"github.com/oscroos/bjugstad-utleie-webapp/pkg/config"
	"github.com/oscroos/bjugstad-utleie-webapp/pkg/rentalapi"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newClient(t *testing.T, baseURL string) *rentalapi.Client {
	t.Helper()

	client, err := rentalapi.NewClient(&config.RentalAPIConfig{
		BaseURL:         baseURL,
		Token:           "rental-token",
		SubscriptionKey: "sub-key",
	}, zap.NewNop())
	require.NoError(t, err)
	return client
}

func TestNewClient_RequiresBaseURL(t *testing.T) {
	_, err := rentalapi.NewClient(&config.RentalAPIConfig{}, zap.NewNop())
	require.Error(t, err)
	assert.Equal(t, apperr.CodeConfiguration, apperr.From(err).Code)
}

func TestGetCustomer_SendsAuthHeaders(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/customers/2228", r.URL.Path)
		assert.Equal(t, "Bearer rental-token", r.Header.Get("Authorization"))
		assert.Equal(t, "sub-key", r.Header.Get("Ocp-Apim-Subscription-Key"))

		json.NewEncoder(w).Encode(rentalapi.Customer{ID: 2228, Name: "Entreprenør AS", OrgNumber: "987654321"})
	}))
	defer server.Close()

	client := newClient(t, server.URL)

	customer, err := client.GetCustomer(context.Background(), 2228)
	require.NoError(t, err)
	assert.Equal(t, uint(2228), customer.ID)
	assert.Equal(t, "Entreprenør AS", customer.Name)
}

func TestGetCustomer_NotFound(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	client := newClient(t, server.URL)

	_, err := client.GetCustomer(context.Background(), 999)
	require.Error(t, err)
	assert.Equal(t, apperr.CodeNotFound, apperr.From(err).Code)
}

func TestGetCustomer_UpstreamError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	client := newClient(t, server.URL)

	_, err := client.GetCustomer(context.Background(), 2228)
	require.Error(t, err)
	assert.Equal(t, apperr.CodeUpstreamUnavailable, apperr.From(err).Code)
}

func TestGetMachinesByCustomer(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/customers/2228/machines", r.URL.Path)
		json.NewEncoder(w).Encode([]rentalapi.Machine{
			{ID: 1, CustomerID: 2228, Name: "Gravemaskin"},
			{ID: 2, CustomerID: 2228, Name: "Hjullaster"},
		})
	}))
	defer server.Close()

	client := newClient(t, server.URL)

	machines, err := client.GetMachinesByCustomer(context.Background(), 2228)
	require.NoError(t, err)
	require.Len(t, machines, 2)
	assert.Equal(t, "Gravemaskin", machines[0].Name)
}

func TestFetchCustomerDetails_PartialOnFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/customers/2228":
			json.NewEncoder(w).Encode(rentalapi.Customer{ID: 2228, Name: "Entreprenør AS"})
		case "/customers/1075":
			w.WriteHeader(http.StatusNotFound)
		default:
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
	}))
	defer server.Close()

	client := newClient(t, server.URL)

	customers, partial := client.FetchCustomerDetails(context.Background(), []uint{2228, 1075})

	assert.True(t, partial, "a failed id must flag the result as partial")
	require.Len(t, customers, 1)
	assert.Equal(t, uint(2228), customers[0].ID)
}

func TestFetchCustomerDetails_AllResolved(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/customers/2228":
			json.NewEncoder(w).Encode(rentalapi.Customer{ID: 2228, Name: "Entreprenør AS"})
		case "/customers/1075":
			json.NewEncoder(w).Encode(rentalapi.Customer{ID: 1075, Name: "Bygg og Anlegg AS"})
		}
	}))
	defer server.Close()

	client := newClient(t, server.URL)

	customers, partial := client.FetchCustomerDetails(context.Background(), []uint{2228, 1075})

	assert.False(t, partial)
	require.Len(t, customers, 2)
	// Order follows the requested ids, not response arrival.
	assert.Equal(t, uint(2228), customers[0].ID)
	assert.Equal(t, uint(1075), customers[1].ID)
}
