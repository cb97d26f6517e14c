package model

import (
	"time"
)

// Company roles. 'admin' can manage grants and users within the company,
// 'user' has read-only participation. Admin implies user.
const (
	CompanyRoleAdmin = "admin"
	CompanyRoleUser  = "user"
)

// AccessGrant associates a user with a customer company and a company-scoped
// role. At most one grant exists per (user, customer) pair; grants are
// created by administrators or company admins, never implicitly by login.
type AccessGrant struct {
	ID                uint      `json:"id" gorm:"primaryKey"`
	UserID            uint      `json:"user_id" gorm:"not null;uniqueIndex:idx_user_customer"`
	CustomerCompanyID uint      `json:"customer_company_id" gorm:"not null;uniqueIndex:idx_user_customer"`
	Role              string    `json:"role" gorm:"type:varchar(20);not null;default:'user'"` // 'admin' or 'user'
	CreatedAt         time.Time `json:"created_at"`
	UpdatedAt         time.Time `json:"updated_at"`

	// Relations
	User            User            `json:"user,omitempty" gorm:"foreignKey:UserID"`
	CustomerCompany CustomerCompany `json:"customer_company,omitempty" gorm:"foreignKey:CustomerCompanyID"`
}
