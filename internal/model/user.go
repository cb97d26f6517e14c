package model

import (
	"time"
)

// Global roles. A user is either a regular customer-portal user or a
// super admin with access to every customer company and admin screen.
const (
	RoleCustomer   = "customer"
	RoleSuperAdmin = "super_admin"
)

// User represents a portal user stored in the database. The phone number is
// the primary human identity key: the identity provider asserts a verified
// phone number at login and the reconciler matches on it.
type User struct {
	ID                uint       `json:"id" gorm:"primaryKey"`
	PhoneNumber       string     `json:"phone_number" gorm:"type:varchar(20);uniqueIndex;not null"`
	Email             *string    `json:"email,omitempty" gorm:"type:varchar(100);uniqueIndex"`
	Name              string     `json:"name" gorm:"type:varchar(100)"`
	Role              string     `json:"role" gorm:"type:varchar(20);not null;default:'customer'"` // 'customer' or 'super_admin'
	AddressStreet     string     `json:"address_street,omitempty" gorm:"type:varchar(255)"`
	AddressPostalCode string     `json:"address_postal_code,omitempty" gorm:"type:varchar(10)"`
	AddressRegion     string     `json:"address_region,omitempty" gorm:"type:varchar(100)"`
	TermsAccepted     bool       `json:"terms_accepted" gorm:"default:false"`
	TermsVersion      string     `json:"terms_version,omitempty" gorm:"type:varchar(20)"`
	TermsAcceptedAt   *time.Time `json:"terms_accepted_at,omitempty"`
	LastLoginAt       *time.Time `json:"last_login_at,omitempty"`
	CreatedAt         time.Time  `json:"created_at"`
	UpdatedAt         time.Time  `json:"updated_at"`
}

// IsSuperAdmin reports whether the user holds the global super_admin role.
func (u *User) IsSuperAdmin() bool {
	return u.Role == RoleSuperAdmin
}
