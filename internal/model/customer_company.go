package model

import (
	"time"
)

// CustomerCompany mirrors a customer record from the external rental
// system. The ID is the rental system's customer id and is inserted
// explicitly; live machine and rental data is fetched from the rental API
// on demand, only the identity fields are persisted here.
type CustomerCompany struct {
	ID        uint      `json:"id" gorm:"primaryKey;autoIncrement:false"`
	Name      string    `json:"name" gorm:"type:varchar(255);not null"`
	OrgNumber string    `json:"org_number,omitempty" gorm:"type:varchar(20)"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
