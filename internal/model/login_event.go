package model

import (
	"time"
)

// LoginEvent is an append-only audit record written on every successful
// session issuance. Rows are never mutated; old rows are pruned by the
// retention job.
type LoginEvent struct {
	ID        uint      `json:"id" gorm:"primaryKey"`
	UserID    uint      `json:"user_id" gorm:"index;not null"`
	Provider  string    `json:"provider" gorm:"type:varchar(50)"`
	CreatedAt time.Time `json:"created_at"`

	// Relations
	User User `json:"user,omitempty" gorm:"foreignKey:UserID"`
}
