package handler

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/oscroos/bjugstad-utleie-webapp/internal/access"
	"github.com/oscroos/bjugstad-utleie-webapp/internal/apperr"
	"github.com/oscroos/bjugstad-utleie-webapp/internal/model"
	"github.com/oscroos/bjugstad-utleie-webapp/pkg/database"
	"github.com/oscroos/bjugstad-utleie-webapp/pkg/logger"
	"github.com/oscroos/bjugstad-utleie-webapp/pkg/rentalapi"
	"github.com/oscroos/bjugstad-utleie-webapp/prometheus"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// customerView merges the mirrored identity fields with live rental API
// details when they were requested and available.
type customerView struct {
	ID        uint                `json:"id"`
	Name      string              `json:"name"`
	OrgNumber string              `json:"org_number,omitempty"`
	Details   *rentalapi.Customer `json:"details,omitempty"`
}

// ListCustomers lists the customer companies visible to the session:
// every mirror for super admins, the granted set for customer users. With
// ?details=true the live records are fetched from the rental API in
// parallel; ids that fail to resolve set the partial flag instead of
// failing the list.
func ListCustomers(c echo.Context) error {
	log := logger.FromContext(c)

	claims, err := sessionClaims(c)
	if err != nil {
		return respondError(c, err)
	}

	defer prometheus.TrackDBOperation("query")(time.Now())

	var companies []model.CustomerCompany
	if claims.Role == model.RoleSuperAdmin {
		// Test-data override: when mock company ids are configured the
		// admin's customer view narrows to exactly those companies
		query := database.GetDB().Order("name")
		if len(cfg.Auth.MockCompanyIDsForAdmin) > 0 {
			query = query.Where("id IN ?", cfg.Auth.MockCompanyIDsForAdmin)
		}
		if err := query.Find(&companies).Error; err != nil {
			log.Error("Failed to list customer companies", zap.Error(err))
			return respondError(c, err)
		}
	} else {
		ids, err := access.GrantedCustomerIDs(c.Request().Context(), database.GetDB(), claims.UserID)
		if err != nil {
			log.Error("Failed to resolve granted customers", zap.Error(err))
			return respondError(c, err)
		}
		if len(ids) == 0 {
			return c.JSON(http.StatusOK, echo.Map{"customers": []customerView{}})
		}
		if err := database.GetDB().Where("id IN ?", ids).Order("name").Find(&companies).Error; err != nil {
			log.Error("Failed to list customer companies", zap.Error(err))
			return respondError(c, err)
		}
	}

	views := make([]customerView, 0, len(companies))
	for _, company := range companies {
		views = append(views, customerView{
			ID:        company.ID,
			Name:      company.Name,
			OrgNumber: company.OrgNumber,
		})
	}

	if c.QueryParam("details") != "true" {
		return c.JSON(http.StatusOK, echo.Map{"customers": views})
	}

	client, err := requireRentalClient()
	if err != nil {
		return respondError(c, err)
	}

	ids := make([]uint, 0, len(views))
	for _, v := range views {
		ids = append(ids, v.ID)
	}
	details, partial := client.FetchCustomerDetails(c.Request().Context(), ids)

	byID := make(map[uint]*rentalapi.Customer, len(details))
	for i := range details {
		byID[details[i].ID] = &details[i]
	}
	for i := range views {
		views[i].Details = byID[views[i].ID]
	}

	return c.JSON(http.StatusOK, echo.Map{
		"customers": views,
		"partial":   partial,
	})
}

// GetCustomer returns one customer company with live details. The mirror
// row always renders; a failing rental API lookup is reported alongside it
// so the page can show the error panel without losing the base data.
func GetCustomer(c echo.Context) error {
	log := logger.FromContext(c)

	claims, err := sessionClaims(c)
	if err != nil {
		return respondError(c, err)
	}

	id, err := parseIDParam(c)
	if err != nil {
		return respondError(c, err)
	}

	if err := access.AuthorizeCompanyAccess(c.Request().Context(), database.GetDB(), claims, id, model.CompanyRoleUser); err != nil {
		prometheus.RecordAuthError("forbidden")
		return respondError(c, err)
	}

	defer prometheus.TrackDBOperation("query")(time.Now())

	var company model.CustomerCompany
	err = database.GetDB().First(&company, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return respondError(c, apperr.NotFound("customer not found"))
	}
	if err != nil {
		return respondError(c, err)
	}

	response := echo.Map{
		"customer": customerView{ID: company.ID, Name: company.Name, OrgNumber: company.OrgNumber},
	}

	if rentalClient != nil {
		details, err := rentalClient.GetCustomer(c.Request().Context(), id)
		if err != nil {
			log.Warn("Live customer details unavailable", zap.Uint("customer_id", id), zap.Error(err))
			response["details_error"] = apperr.From(err).Code
		} else {
			response["details"] = details
		}
	}

	return c.JSON(http.StatusOK, response)
}

// GetCustomerMachines proxies the machine inventory of a customer from the
// rental API.
func GetCustomerMachines(c echo.Context) error {
	claims, err := sessionClaims(c)
	if err != nil {
		return respondError(c, err)
	}

	id, err := parseIDParam(c)
	if err != nil {
		return respondError(c, err)
	}

	if err := access.AuthorizeCompanyAccess(c.Request().Context(), database.GetDB(), claims, id, model.CompanyRoleUser); err != nil {
		prometheus.RecordAuthError("forbidden")
		return respondError(c, err)
	}

	client, err := requireRentalClient()
	if err != nil {
		return respondError(c, err)
	}

	machines, err := client.GetMachinesByCustomer(c.Request().Context(), id)
	if err != nil {
		return respondError(c, err)
	}

	return c.JSON(http.StatusOK, echo.Map{"machines": machines})
}

// GetCustomerRentals proxies the rental agreements of a customer from the
// rental API.
func GetCustomerRentals(c echo.Context) error {
	claims, err := sessionClaims(c)
	if err != nil {
		return respondError(c, err)
	}

	id, err := parseIDParam(c)
	if err != nil {
		return respondError(c, err)
	}

	if err := access.AuthorizeCompanyAccess(c.Request().Context(), database.GetDB(), claims, id, model.CompanyRoleUser); err != nil {
		prometheus.RecordAuthError("forbidden")
		return respondError(c, err)
	}

	client, err := requireRentalClient()
	if err != nil {
		return respondError(c, err)
	}

	rentals, err := client.GetRentalsByCustomer(c.Request().Context(), id)
	if err != nil {
		return respondError(c, err)
	}

	return c.JSON(http.StatusOK, echo.Map{"rentals": rentals})
}

// parseIDParam parses the :id path parameter
func parseIDParam(c echo.Context) (uint, error) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		return 0, apperr.Validation("invalid id")
	}
	return uint(id), nil
}
