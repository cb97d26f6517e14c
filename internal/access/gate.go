package access

import (
	"context"
	"errors"

	"github.com/oscroos/bjugstad-utleie-webapp/internal/apperr"
	"github.com/oscroos/bjugstad-utleie-webapp/internal/model"
	"github.com/oscroos/bjugstad-utleie-webapp/pkg/jwtutil"
	"gorm.io/gorm"
)

// AuthorizeGlobal fails with forbidden unless the session holds exactly the
// required global role.
func AuthorizeGlobal(claims *jwtutil.SessionClaims, required string) error {
	if claims.Role != required {
		return apperr.Forbidden("insufficient role")
	}
	return nil
}

// AuthorizeCompanyAccess checks whether the session may act on a customer
// company at the required company role. A super_admin session passes for
// every company id without touching the grant table; grants are only ever
// stored for customer-role users.
func AuthorizeCompanyAccess(ctx context.Context, db *gorm.DB, claims *jwtutil.SessionClaims, customerID uint, required string) error {
	if claims.Role == model.RoleSuperAdmin {
		return nil
	}

	var grant model.AccessGrant
	err := db.WithContext(ctx).
		Where("user_id = ? AND customer_company_id = ?", claims.UserID, customerID).
		First(&grant).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return apperr.Forbidden("no access to this customer")
	}
	if err != nil {
		return err
	}

	if !CompanyRoleAtLeast(grant.Role, required) {
		return apperr.Forbidden("insufficient company role")
	}
	return nil
}

// GrantedCustomerIDs returns the customer company ids the user holds a
// grant for, for row-level filtering of list views.
func GrantedCustomerIDs(ctx context.Context, db *gorm.DB, userID uint) ([]uint, error) {
	var ids []uint
	err := db.WithContext(ctx).
		Model(&model.AccessGrant{}).
		Where("user_id = ?", userID).
		Pluck("customer_company_id", &ids).Error
	if err != nil {
		return nil, err
	}
	return ids, nil
}
