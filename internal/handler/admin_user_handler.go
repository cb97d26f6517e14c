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
	"github.com/oscroos/bjugstad-utleie-webapp/internal/reconcile"
	"github.com/oscroos/bjugstad-utleie-webapp/pkg/database"
	"github.com/oscroos/bjugstad-utleie-webapp/pkg/logger"
	"github.com/oscroos/bjugstad-utleie-webapp/prometheus"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// ListUsers lists portal users for the admin screen, with optional search
// over phone number, name, and email.
func ListUsers(c echo.Context) error {
	log := logger.FromContext(c)

	limit := 50
	if raw := c.QueryParam("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			return respondError(c, apperr.Validation("invalid limit"))
		}
		if n > 200 {
			n = 200
		}
		limit = n
	}
	offset := 0
	if raw := c.QueryParam("offset"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			return respondError(c, apperr.Validation("invalid offset"))
		}
		offset = n
	}

	defer prometheus.TrackDBOperation("query")(time.Now())

	query := database.GetDB().WithContext(c.Request().Context()).Model(&model.User{})
	if search := c.QueryParam("search"); search != "" {
		pattern := "%" + search + "%"
		query = query.Where("phone_number ILIKE ? OR name ILIKE ? OR email ILIKE ?", pattern, pattern, pattern)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		log.Error("Failed to count users", zap.Error(err))
		return respondError(c, err)
	}

	var users []model.User
	if err := query.Order("id").Limit(limit).Offset(offset).Find(&users).Error; err != nil {
		log.Error("Failed to list users", zap.Error(err))
		return respondError(c, err)
	}

	return c.JSON(http.StatusOK, echo.Map{
		"users": users,
		"total": total,
	})
}

// CreateUser provisions a portal user. Users must exist before they can
// sign in: the reconciler never creates accounts, it only matches the
// provider identity against rows created here.
func CreateUser(c echo.Context) error {
	log := logger.FromContext(c)

	// Parse request
	req := new(struct {
		PhoneNumber       string `json:"phone_number"`
		Name              string `json:"name"`
		Email             string `json:"email"`
		Role              string `json:"role"`
		AddressStreet     string `json:"address_street"`
		AddressPostalCode string `json:"address_postal_code"`
		AddressRegion     string `json:"address_region"`
	})
	if err := c.Bind(req); err != nil {
		return respondError(c, apperr.Validation("invalid request body"))
	}

	phone := reconcile.CanonicalPhone(req.PhoneNumber)
	if phone == "" {
		return respondError(c, apperr.Validation("phone_number must be digits with an optional leading +"))
	}
	if req.Name == "" {
		return respondError(c, apperr.Validation("name is required"))
	}

	role := model.RoleCustomer
	if req.Role != "" {
		normalized, err := access.NormalizeGlobalRole(req.Role)
		if err != nil {
			return respondError(c, err)
		}
		role = normalized
	}

	user := model.User{
		PhoneNumber:       phone,
		Name:              req.Name,
		Role:              role,
		AddressStreet:     req.AddressStreet,
		AddressPostalCode: req.AddressPostalCode,
		AddressRegion:     req.AddressRegion,
	}
	if req.Email != "" {
		user.Email = &req.Email
	}

	defer prometheus.TrackDBOperation("create")(time.Now())

	if err := database.GetDB().WithContext(c.Request().Context()).Create(&user).Error; err != nil {
		if apperr.IsUniqueViolation(err) {
			return respondError(c, apperr.Conflict("a user with this phone number or email already exists"))
		}
		log.Error("Failed to create user", zap.Error(err))
		return respondError(c, err)
	}

	log.Info("User created", zap.Uint("user_id", user.ID), zap.String("role", user.Role))

	return c.JSON(http.StatusCreated, echo.Map{"user": user})
}

// GetUser returns one user with their company grants.
func GetUser(c echo.Context) error {
	id, err := parseIDParam(c)
	if err != nil {
		return respondError(c, err)
	}

	defer prometheus.TrackDBOperation("query")(time.Now())

	var user model.User
	err = database.GetDB().WithContext(c.Request().Context()).First(&user, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return respondError(c, apperr.NotFound("user not found"))
	}
	if err != nil {
		return respondError(c, err)
	}

	grants, err := userGrantViews(c, user.ID)
	if err != nil {
		return respondError(c, err)
	}

	return c.JSON(http.StatusOK, echo.Map{
		"user":   user,
		"grants": grants,
	})
}

// UpdateUser edits a user's profile fields and global role. Pointer fields
// distinguish absent from empty: omitted fields keep their stored value.
// Terms and login stamps are owned by the onboarding and login flows and
// cannot be edited here.
func UpdateUser(c echo.Context) error {
	log := logger.FromContext(c)

	id, err := parseIDParam(c)
	if err != nil {
		return respondError(c, err)
	}

	// Parse request
	req := new(struct {
		PhoneNumber       *string `json:"phone_number"`
		Name              *string `json:"name"`
		Email             *string `json:"email"`
		Role              *string `json:"role"`
		AddressStreet     *string `json:"address_street"`
		AddressPostalCode *string `json:"address_postal_code"`
		AddressRegion     *string `json:"address_region"`
	})
	if err := c.Bind(req); err != nil {
		return respondError(c, apperr.Validation("invalid request body"))
	}

	updates := map[string]interface{}{}
	if req.PhoneNumber != nil {
		phone := reconcile.CanonicalPhone(*req.PhoneNumber)
		if phone == "" {
			return respondError(c, apperr.Validation("phone_number must be digits with an optional leading +"))
		}
		updates["phone_number"] = phone
	}
	if req.Name != nil {
		if *req.Name == "" {
			return respondError(c, apperr.Validation("name cannot be empty"))
		}
		updates["name"] = *req.Name
	}
	if req.Email != nil {
		if *req.Email == "" {
			updates["email"] = nil
		} else {
			updates["email"] = *req.Email
		}
	}
	if req.Role != nil {
		role, err := access.NormalizeGlobalRole(*req.Role)
		if err != nil {
			return respondError(c, err)
		}
		updates["role"] = role
	}
	if req.AddressStreet != nil {
		updates["address_street"] = *req.AddressStreet
	}
	if req.AddressPostalCode != nil {
		updates["address_postal_code"] = *req.AddressPostalCode
	}
	if req.AddressRegion != nil {
		updates["address_region"] = *req.AddressRegion
	}
	if len(updates) == 0 {
		return respondError(c, apperr.Validation("no editable fields in request"))
	}

	defer prometheus.TrackDBOperation("update")(time.Now())

	var user model.User
	err = database.GetDB().WithContext(c.Request().Context()).First(&user, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return respondError(c, apperr.NotFound("user not found"))
	}
	if err != nil {
		return respondError(c, err)
	}

	if err := database.GetDB().WithContext(c.Request().Context()).Model(&user).Updates(updates).Error; err != nil {
		if apperr.IsUniqueViolation(err) {
			return respondError(c, apperr.Conflict("a user with this phone number or email already exists"))
		}
		log.Error("Failed to update user", zap.Uint("user_id", id), zap.Error(err))
		return respondError(c, err)
	}

	log.Info("User updated", zap.Uint("user_id", user.ID))

	// Role and profile edits reach active sessions at their next silent
	// refresh, which re-reads this row
	return c.JSON(http.StatusOK, echo.Map{"user": user})
}

// DeleteUser removes a user and everything hanging off the row: grants,
// provider links, and login history go in the same transaction. Active
// sessions for the user fail at their next refresh.
func DeleteUser(c echo.Context) error {
	log := logger.FromContext(c)

	claims, err := sessionClaims(c)
	if err != nil {
		return respondError(c, err)
	}

	id, err := parseIDParam(c)
	if err != nil {
		return respondError(c, err)
	}

	if claims.UserID == id {
		return respondError(c, apperr.Validation("cannot delete your own account"))
	}

	defer prometheus.TrackDBOperation("delete")(time.Now())

	var user model.User
	err = database.GetDB().WithContext(c.Request().Context()).First(&user, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return respondError(c, apperr.NotFound("user not found"))
	}
	if err != nil {
		return respondError(c, err)
	}

	tx := database.GetDB().WithContext(c.Request().Context()).Begin()
	if tx.Error != nil {
		return respondError(c, tx.Error)
	}
	if err := tx.Where("user_id = ?", id).Delete(&model.AccessGrant{}).Error; err != nil {
		tx.Rollback()
		log.Error("Failed to delete user grants", zap.Uint("user_id", id), zap.Error(err))
		return respondError(c, err)
	}
	if err := tx.Where("user_id = ?", id).Delete(&model.ProviderAccount{}).Error; err != nil {
		tx.Rollback()
		log.Error("Failed to delete provider accounts", zap.Uint("user_id", id), zap.Error(err))
		return respondError(c, err)
	}
	if err := tx.Where("user_id = ?", id).Delete(&model.LoginEvent{}).Error; err != nil {
		tx.Rollback()
		log.Error("Failed to delete login events", zap.Uint("user_id", id), zap.Error(err))
		return respondError(c, err)
	}
	if err := tx.Delete(&model.User{}, id).Error; err != nil {
		tx.Rollback()
		log.Error("Failed to delete user", zap.Uint("user_id", id), zap.Error(err))
		return respondError(c, err)
	}
	if err := tx.Commit().Error; err != nil {
		return respondError(c, err)
	}

	log.Info("User deleted", zap.Uint("user_id", id), zap.Uint("actor_id", claims.UserID))

	return c.JSON(http.StatusOK, echo.Map{"message": "user deleted"})
}

// ReplaceUserGrants replaces the full grant set of one user across all
// customer companies. Same last-write-wins semantics as the company-scoped
// replacement.
func ReplaceUserGrants(c echo.Context) error {
	log := logger.FromContext(c)

	id, err := parseIDParam(c)
	if err != nil {
		return respondError(c, err)
	}

	// Parse request
	req := new(struct {
		Grants []struct {
			CustomerCompanyID uint   `json:"customer_company_id"`
			Role              string `json:"role"`
		} `json:"grants"`
	})
	if err := c.Bind(req); err != nil {
		return respondError(c, apperr.Validation("invalid request body"))
	}

	grants := make([]access.UserGrant, 0, len(req.Grants))
	for _, g := range req.Grants {
		if g.CustomerCompanyID == 0 {
			return respondError(c, apperr.Validation("customer_company_id is required"))
		}
		role, err := access.NormalizeCompanyRole(g.Role)
		if err != nil {
			return respondError(c, err)
		}
		grants = append(grants, access.UserGrant{CustomerCompanyID: g.CustomerCompanyID, Role: role})
	}

	var user model.User
	err = database.GetDB().WithContext(c.Request().Context()).First(&user, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return respondError(c, apperr.NotFound("user not found"))
	}
	if err != nil {
		return respondError(c, err)
	}

	defer prometheus.TrackDBOperation("update")(time.Now())

	if err := access.ReplaceGrantsForUser(c.Request().Context(), database.GetDB(), id, grants); err != nil {
		log.Error("Failed to replace user grants", zap.Uint("user_id", id), zap.Error(err))
		return respondError(c, err)
	}
	prometheus.RecordGrantOperation("replace_for_user")

	log.Info("User grants replaced", zap.Uint("user_id", id), zap.Int("grants", len(grants)))

	views, err := userGrantViews(c, id)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"grants": views})
}

// ListUserLogins returns the login history of one user, newest first.
func ListUserLogins(c echo.Context) error {
	id, err := parseIDParam(c)
	if err != nil {
		return respondError(c, err)
	}

	limit := 50
	if raw := c.QueryParam("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			return respondError(c, apperr.Validation("invalid limit"))
		}
		if n > 500 {
			n = 500
		}
		limit = n
	}

	defer prometheus.TrackDBOperation("query")(time.Now())

	var events []model.LoginEvent
	err = database.GetDB().WithContext(c.Request().Context()).
		Where("user_id = ?", id).
		Order("created_at DESC").
		Limit(limit).
		Find(&events).Error
	if err != nil {
		return respondError(c, err)
	}

	return c.JSON(http.StatusOK, echo.Map{"logins": events})
}

// userGrantView is one row of a user's grant list on the admin screen.
type userGrantView struct {
	CustomerCompanyID uint   `json:"customer_company_id"`
	CustomerName      string `json:"customer_name"`
	Role              string `json:"role"`
}

// userGrantViews loads one user's grants with company names.
func userGrantViews(c echo.Context, userID uint) ([]userGrantView, error) {
	var grants []model.AccessGrant
	err := database.GetDB().WithContext(c.Request().Context()).
		Preload("CustomerCompany").
		Where("user_id = ?", userID).
		Find(&grants).Error
	if err != nil {
		return nil, err
	}

	views := make([]userGrantView, 0, len(grants))
	for _, g := range grants {
		views = append(views, userGrantView{
			CustomerCompanyID: g.CustomerCompanyID,
			CustomerName:      g.CustomerCompany.Name,
			Role:              g.Role,
		})
	}
	return views, nil
}
