package handler

import (
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/oscroos/bjugstad-utleie-webapp/internal/access"
	"github.com/oscroos/bjugstad-utleie-webapp/internal/apperr"
	"github.com/oscroos/bjugstad-utleie-webapp/internal/model"
	"github.com/oscroos/bjugstad-utleie-webapp/pkg/database"
	"github.com/oscroos/bjugstad-utleie-webapp/pkg/logger"
	"github.com/oscroos/bjugstad-utleie-webapp/prometheus"
	"go.uber.org/zap"
)

// grantView is one row of a customer company's member list.
type grantView struct {
	UserID      uint   `json:"user_id"`
	Name        string `json:"name"`
	PhoneNumber string `json:"phone_number"`
	Email       string `json:"email,omitempty"`
	Role        string `json:"role"`
}

// ListCustomerGrants lists the users of a customer company with their
// company roles. Requires company admin.
func ListCustomerGrants(c echo.Context) error {
	log := logger.FromContext(c)

	claims, err := sessionClaims(c)
	if err != nil {
		return respondError(c, err)
	}

	id, err := parseIDParam(c)
	if err != nil {
		return respondError(c, err)
	}

	if err := access.AuthorizeCompanyAccess(c.Request().Context(), database.GetDB(), claims, id, model.CompanyRoleAdmin); err != nil {
		prometheus.RecordAuthError("forbidden")
		return respondError(c, err)
	}

	views, err := customerGrantViews(c, id)
	if err != nil {
		log.Error("Failed to list customer grants", zap.Uint("customer_id", id), zap.Error(err))
		return respondError(c, err)
	}

	return c.JSON(http.StatusOK, echo.Map{"users": views})
}

// ReplaceCustomerGrants replaces the full member list of a customer company
// in one transaction. The submitted set wins over any concurrent edit, it
// is never merged. Requires company admin; an admin may remove their own
// grant here.
func ReplaceCustomerGrants(c echo.Context) error {
	log := logger.FromContext(c)

	claims, err := sessionClaims(c)
	if err != nil {
		return respondError(c, err)
	}

	id, err := parseIDParam(c)
	if err != nil {
		return respondError(c, err)
	}

	if err := access.AuthorizeCompanyAccess(c.Request().Context(), database.GetDB(), claims, id, model.CompanyRoleAdmin); err != nil {
		prometheus.RecordAuthError("forbidden")
		return respondError(c, err)
	}

	// Parse request
	req := new(struct {
		Grants []struct {
			UserID uint   `json:"user_id"`
			Role   string `json:"role"`
		} `json:"grants"`
	})
	if err := c.Bind(req); err != nil {
		return respondError(c, apperr.Validation("invalid request body"))
	}

	grants := make([]access.CustomerGrant, 0, len(req.Grants))
	for _, g := range req.Grants {
		if g.UserID == 0 {
			return respondError(c, apperr.Validation("user_id is required"))
		}
		role, err := access.NormalizeCompanyRole(g.Role)
		if err != nil {
			return respondError(c, err)
		}
		grants = append(grants, access.CustomerGrant{UserID: g.UserID, Role: role})
	}

	defer prometheus.TrackDBOperation("update")(time.Now())

	if err := access.ReplaceGrantsForCustomer(c.Request().Context(), database.GetDB(), id, grants); err != nil {
		log.Error("Failed to replace customer grants", zap.Uint("customer_id", id), zap.Error(err))
		return respondError(c, err)
	}
	prometheus.RecordGrantOperation("replace_for_customer")

	log.Info("Customer grants replaced",
		zap.Uint("customer_id", id),
		zap.Int("grants", len(grants)),
		zap.Uint("actor_id", claims.UserID))

	views, err := customerGrantViews(c, id)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"users": views})
}

// RemoveCustomerUser removes one user's grant from a customer company.
// Requires company admin. Removing a user that has no grant is a no-op.
func RemoveCustomerUser(c echo.Context) error {
	log := logger.FromContext(c)

	claims, err := sessionClaims(c)
	if err != nil {
		return respondError(c, err)
	}

	id, err := parseIDParam(c)
	if err != nil {
		return respondError(c, err)
	}

	userID, err := strconv.ParseUint(c.Param("userId"), 10, 32)
	if err != nil {
		return respondError(c, apperr.Validation("invalid user id"))
	}

	if err := access.AuthorizeCompanyAccess(c.Request().Context(), database.GetDB(), claims, id, model.CompanyRoleAdmin); err != nil {
		prometheus.RecordAuthError("forbidden")
		return respondError(c, err)
	}

	defer prometheus.TrackDBOperation("delete")(time.Now())

	if err := access.RemoveGrant(c.Request().Context(), database.GetDB(), uint(userID), id); err != nil {
		log.Error("Failed to remove customer user",
			zap.Uint("customer_id", id),
			zap.Uint64("user_id", userID),
			zap.Error(err))
		return respondError(c, err)
	}
	prometheus.RecordGrantOperation("remove")

	log.Info("User removed from customer",
		zap.Uint("customer_id", id),
		zap.Uint64("user_id", userID),
		zap.Uint("actor_id", claims.UserID))

	return c.JSON(http.StatusOK, echo.Map{"message": "user removed from customer"})
}

// customerGrantViews loads the member list of a customer company.
func customerGrantViews(c echo.Context, customerID uint) ([]grantView, error) {
	var grants []model.AccessGrant
	err := database.GetDB().WithContext(c.Request().Context()).
		Preload("User").
		Where("customer_company_id = ?", customerID).
		Find(&grants).Error
	if err != nil {
		return nil, err
	}

	views := make([]grantView, 0, len(grants))
	for _, g := range grants {
		view := grantView{UserID: g.UserID, Role: g.Role}
		if g.User.ID != 0 {
			view.Name = g.User.Name
			view.PhoneNumber = g.User.PhoneNumber
			if g.User.Email != nil {
				view.Email = *g.User.Email
			}
		}
		views = append(views, view)
	}
	return views, nil
}
