package handler

import (
	"errors"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/oscroos/bjugstad-utleie-webapp/internal/apperr"
	"github.com/oscroos/bjugstad-utleie-webapp/internal/jobs"
	"github.com/oscroos/bjugstad-utleie-webapp/internal/model"
	"github.com/oscroos/bjugstad-utleie-webapp/pkg/database"
	"github.com/oscroos/bjugstad-utleie-webapp/pkg/logger"
	"github.com/oscroos/bjugstad-utleie-webapp/prometheus"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// ListAllCustomers lists every mirrored customer company for the admin
// screen, regardless of grants.
func ListAllCustomers(c echo.Context) error {
	log := logger.FromContext(c)

	defer prometheus.TrackDBOperation("query")(time.Now())

	var companies []model.CustomerCompany
	if err := database.GetDB().WithContext(c.Request().Context()).Order("id").Find(&companies).Error; err != nil {
		log.Error("Failed to list customer companies", zap.Error(err))
		return respondError(c, err)
	}

	return c.JSON(http.StatusOK, echo.Map{"customers": companies})
}

// CreateCustomer creates a customer company mirror. The id is the identity
// the rental system assigned, not a generated key, so it must be supplied.
func CreateCustomer(c echo.Context) error {
	log := logger.FromContext(c)

	// Parse request
	req := new(struct {
		ID        uint   `json:"id"`
		Name      string `json:"name"`
		OrgNumber string `json:"org_number"`
	})
	if err := c.Bind(req); err != nil {
		return respondError(c, apperr.Validation("invalid request body"))
	}
	if req.ID == 0 {
		return respondError(c, apperr.Validation("id is required and must match the rental system"))
	}
	if req.Name == "" {
		return respondError(c, apperr.Validation("name is required"))
	}

	company := model.CustomerCompany{ID: req.ID, Name: req.Name, OrgNumber: req.OrgNumber}

	defer prometheus.TrackDBOperation("create")(time.Now())

	if err := database.GetDB().WithContext(c.Request().Context()).Create(&company).Error; err != nil {
		if apperr.IsUniqueViolation(err) {
			return respondError(c, apperr.Conflict("a customer with this id already exists"))
		}
		log.Error("Failed to create customer company", zap.Error(err))
		return respondError(c, err)
	}

	log.Info("Customer company created", zap.Uint("customer_id", company.ID))

	return c.JSON(http.StatusCreated, echo.Map{"customer": company})
}

// UpdateCustomer edits the mirrored name and org number of a customer
// company. The id is immutable.
func UpdateCustomer(c echo.Context) error {
	log := logger.FromContext(c)

	id, err := parseIDParam(c)
	if err != nil {
		return respondError(c, err)
	}

	// Parse request
	req := new(struct {
		Name      *string `json:"name"`
		OrgNumber *string `json:"org_number"`
	})
	if err := c.Bind(req); err != nil {
		return respondError(c, apperr.Validation("invalid request body"))
	}

	updates := map[string]interface{}{}
	if req.Name != nil {
		if *req.Name == "" {
			return respondError(c, apperr.Validation("name cannot be empty"))
		}
		updates["name"] = *req.Name
	}
	if req.OrgNumber != nil {
		updates["org_number"] = *req.OrgNumber
	}
	if len(updates) == 0 {
		return respondError(c, apperr.Validation("no editable fields in request"))
	}

	defer prometheus.TrackDBOperation("update")(time.Now())

	var company model.CustomerCompany
	err = database.GetDB().WithContext(c.Request().Context()).First(&company, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return respondError(c, apperr.NotFound("customer not found"))
	}
	if err != nil {
		return respondError(c, err)
	}

	if err := database.GetDB().WithContext(c.Request().Context()).Model(&company).Updates(updates).Error; err != nil {
		log.Error("Failed to update customer company", zap.Uint("customer_id", id), zap.Error(err))
		return respondError(c, err)
	}

	return c.JSON(http.StatusOK, echo.Map{"customer": company})
}

// DeleteCustomer removes a customer company mirror together with its
// grants. Users keep their accounts; they just lose access to this company.
func DeleteCustomer(c echo.Context) error {
	log := logger.FromContext(c)

	id, err := parseIDParam(c)
	if err != nil {
		return respondError(c, err)
	}

	defer prometheus.TrackDBOperation("delete")(time.Now())

	var company model.CustomerCompany
	err = database.GetDB().WithContext(c.Request().Context()).First(&company, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return respondError(c, apperr.NotFound("customer not found"))
	}
	if err != nil {
		return respondError(c, err)
	}

	tx := database.GetDB().WithContext(c.Request().Context()).Begin()
	if tx.Error != nil {
		return respondError(c, tx.Error)
	}
	if err := tx.Where("customer_company_id = ?", id).Delete(&model.AccessGrant{}).Error; err != nil {
		tx.Rollback()
		log.Error("Failed to delete customer grants", zap.Uint("customer_id", id), zap.Error(err))
		return respondError(c, err)
	}
	if err := tx.Delete(&model.CustomerCompany{}, id).Error; err != nil {
		tx.Rollback()
		log.Error("Failed to delete customer company", zap.Uint("customer_id", id), zap.Error(err))
		return respondError(c, err)
	}
	if err := tx.Commit().Error; err != nil {
		return respondError(c, err)
	}

	log.Info("Customer company deleted", zap.Uint("customer_id", id))

	return c.JSON(http.StatusOK, echo.Map{"message": "customer deleted"})
}

// ImportCustomers pulls the full customer list from the rental API and
// upserts the mirrors, same as the nightly sync but on demand.
func ImportCustomers(c echo.Context) error {
	log := logger.FromContext(c)

	client, err := requireRentalClient()
	if err != nil {
		return respondError(c, err)
	}

	created, updated, err := jobs.SyncCustomers(c.Request().Context(), database.GetDB(), client, log)
	if err != nil {
		log.Error("Customer import failed", zap.Error(err))
		return respondError(c, err)
	}

	log.Info("Customer import finished", zap.Int("created", created), zap.Int("updated", updated))

	return c.JSON(http.StatusOK, echo.Map{
		"created": created,
		"updated": updated,
	})
}
