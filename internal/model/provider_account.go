package model

import (
	"time"
)

// ProviderAccount links an external identity-provider account to a portal
// user. The (provider, provider_account_id) pair identifies at most one link
// and that link belongs to exactly one user; links are never reassigned.
type ProviderAccount struct {
	ID                uint       `json:"id" gorm:"primaryKey"`
	UserID            uint       `json:"user_id" gorm:"index;not null"`
	Provider          string     `json:"provider" gorm:"type:varchar(50);not null;uniqueIndex:idx_provider_account"`
	ProviderAccountID string     `json:"provider_account_id" gorm:"type:varchar(255);not null;uniqueIndex:idx_provider_account"`
	AccessToken       string     `json:"-" gorm:"type:text"`
	RefreshToken      string     `json:"-" gorm:"type:text"`
	TokenType         string     `json:"token_type,omitempty" gorm:"type:varchar(20)"`
	Scope             string     `json:"scope,omitempty" gorm:"type:varchar(255)"`
	ExpiresAt         *time.Time `json:"expires_at,omitempty"`
	CreatedAt         time.Time  `json:"created_at"`
	UpdatedAt         time.Time  `json:"updated_at"`

	// Relations
	User User `json:"user,omitempty" gorm:"foreignKey:UserID"`
}
