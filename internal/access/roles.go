package access

import (
	"strings"

	"github.com/oscroos/bjugstad-utleie-webapp/internal/apperr"
	"github.com/oscroos/bjugstad-utleie-webapp/internal/model"
)

// NormalizeCompanyRole maps an inbound role string onto the closed company
// role set. "selskapsadmin" is the role name the old portal used for
// company admins and still arrives from older clients; it maps to admin.
// Normalization happens once at API ingress, downstream code trusts the
// stored value.
func NormalizeCompanyRole(raw string) (string, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case model.CompanyRoleAdmin, "selskapsadmin":
		return model.CompanyRoleAdmin, nil
	case model.CompanyRoleUser:
		return model.CompanyRoleUser, nil
	}
	return "", apperr.Validation("role must be 'admin' or 'user'")
}

// NormalizeGlobalRole maps an inbound global role string onto the closed
// global role set.
func NormalizeGlobalRole(raw string) (string, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case model.RoleCustomer:
		return model.RoleCustomer, nil
	case model.RoleSuperAdmin:
		return model.RoleSuperAdmin, nil
	}
	return "", apperr.Validation("role must be 'customer' or 'super_admin'")
}

// CompanyRoleAtLeast reports whether role covers required. Admin implies
// user, never the other way around.
func CompanyRoleAtLeast(role, required string) bool {
	if role == required {
		return true
	}
	return role == model.CompanyRoleAdmin && required == model.CompanyRoleUser
}
