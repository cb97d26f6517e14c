package rentalapi

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/oscroos/bjugstad-utleie-webapp/internal/apperr"
	"github.com/oscroos/bjugstad-utleie-webapp/pkg/config"
	"github.com/oscroos/bjugstad-utleie-webapp/prometheus"
	"go.uber.org/zap"
)

// Client is a read-only client for the external rental-management API. It
// authenticates with a bearer token plus the API gateway subscription key,
// and never mutates upstream data.
type Client struct {
	BaseURL         string
	Token           string
	SubscriptionKey string
	HTTPClient      *http.Client
	Logger          *zap.Logger
}

// Customer is the live customer record in the rental system. The portal
// only mirrors ID, Name, and OrgNumber; the rest is fetched on demand.
type Customer struct {
	ID         uint   `json:"id"`
	Name       string `json:"name"`
	OrgNumber  string `json:"org_number"`
	Email      string `json:"email,omitempty"`
	Phone      string `json:"phone,omitempty"`
	Address    string `json:"address,omitempty"`
	PostalCode string `json:"postal_code,omitempty"`
	City       string `json:"city,omitempty"`
}

// Machine is a rentable machine in the rental system inventory.
type Machine struct {
	ID           uint     `json:"id"`
	CustomerID   uint     `json:"customer_id"`
	Name         string   `json:"name"`
	Model        string   `json:"model,omitempty"`
	SerialNumber string   `json:"serial_number,omitempty"`
	Category     string   `json:"category,omitempty"`
	Latitude     *float64 `json:"latitude,omitempty"`
	Longitude    *float64 `json:"longitude,omitempty"`
}

// Rental is a rental agreement in the rental system.
type Rental struct {
	ID         uint       `json:"id"`
	CustomerID uint       `json:"customer_id"`
	MachineID  uint       `json:"machine_id"`
	StartDate  time.Time  `json:"start_date"`
	EndDate    *time.Time `json:"end_date,omitempty"`
	Status     string     `json:"status"`
	Reference  string     `json:"reference,omitempty"`
}

// NewClient creates a rental API client from configuration. A missing base
// URL is an operator error.
func NewClient(cfg *config.RentalAPIConfig, logger *zap.Logger) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, apperr.Configuration("rental API base URL is not configured")
	}
	return &Client{
		BaseURL:         cfg.BaseURL,
		Token:           cfg.Token,
		SubscriptionKey: cfg.SubscriptionKey,
		HTTPClient:      &http.Client{Timeout: 10 * time.Second},
		Logger:          logger,
	}, nil
}

// GetCustomer fetches one customer record by rental system id.
func (c *Client) GetCustomer(ctx context.Context, id uint) (*Customer, error) {
	var customer Customer
	if err := c.get(ctx, "/customers/"+strconv.FormatUint(uint64(id), 10), &customer); err != nil {
		return nil, err
	}
	return &customer, nil
}

// ListCustomers fetches all customer records, used by the mirror sync.
func (c *Client) ListCustomers(ctx context.Context) ([]Customer, error) {
	var customers []Customer
	if err := c.get(ctx, "/customers", &customers); err != nil {
		return nil, err
	}
	return customers, nil
}

// GetMachinesByCustomer fetches the machine inventory rented to a customer.
func (c *Client) GetMachinesByCustomer(ctx context.Context, customerID uint) ([]Machine, error) {
	var machines []Machine
	path := "/customers/" + strconv.FormatUint(uint64(customerID), 10) + "/machines"
	if err := c.get(ctx, path, &machines); err != nil {
		return nil, err
	}
	return machines, nil
}

// GetRentalsByCustomer fetches the rental agreements of a customer.
func (c *Client) GetRentalsByCustomer(ctx context.Context, customerID uint) ([]Rental, error) {
	var rentals []Rental
	path := "/customers/" + strconv.FormatUint(uint64(customerID), 10) + "/rentals"
	if err := c.get(ctx, path, &rentals); err != nil {
		return nil, err
	}
	return rentals, nil
}

// FetchCustomerDetails resolves several customer records concurrently. Ids
// that fail to resolve are skipped and partial is reported true instead of
// failing the aggregate; cancellation of ctx aborts the in-flight fetches.
func (c *Client) FetchCustomerDetails(ctx context.Context, ids []uint) ([]Customer, bool) {
	results := make([]*Customer, len(ids))

	var wg sync.WaitGroup
	for i, id := range ids {
		wg.Add(1)
		go func(i int, id uint) {
			defer wg.Done()
			customer, err := c.GetCustomer(ctx, id)
			if err != nil {
				c.Logger.Warn("Customer detail fetch failed",
					zap.Uint("customer_id", id),
					zap.Error(err))
				return
			}
			results[i] = customer
		}(i, id)
	}
	wg.Wait()

	customers := make([]Customer, 0, len(ids))
	for _, r := range results {
		if r != nil {
			customers = append(customers, *r)
		}
	}
	return customers, len(customers) < len(ids)
}

// get performs an authenticated GET and decodes the JSON response into out
func (c *Client) get(ctx context.Context, path string, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.BaseURL+path, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+c.Token)
	req.Header.Set("Ocp-Apim-Subscription-Key", c.SubscriptionKey)
	req.Header.Set("Accept", "application/json")

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		c.Logger.Error("Rental API request failed",
			zap.String("path", path),
			zap.Error(err))
		prometheus.RecordUpstreamRequest("rental_api", "error")
		return apperr.UpstreamUnavailable("rental API request failed", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		prometheus.RecordUpstreamRequest("rental_api", "error")
		return apperr.UpstreamUnavailable("rental API response read failed", err)
	}

	prometheus.RecordUpstreamRequest("rental_api", strconv.Itoa(resp.StatusCode))

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return apperr.NotFound("rental API record not found")
	case resp.StatusCode != http.StatusOK:
		c.Logger.Error("Rental API returned error status",
			zap.String("path", path),
			zap.Int("status", resp.StatusCode),
			zap.String("response", string(body)))
		return apperr.UpstreamUnavailable(
			fmt.Sprintf("rental API returned %d", resp.StatusCode), nil)
	}

	if err := json.Unmarshal(body, out); err != nil {
		return apperr.UpstreamUnavailable("rental API response parse failed", err)
	}
	return nil
}
