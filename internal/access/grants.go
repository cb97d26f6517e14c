package access

import (
	"context"

	"github.com/oscroos/bjugstad-utleie-webapp/internal/apperr"
	"github.com/oscroos/bjugstad-utleie-webapp/internal/model"
	"gorm.io/gorm"
)

// UserGrant pairs a customer company with a company role in a replacement
// set for one user. Roles must already be normalized.
type UserGrant struct {
	CustomerCompanyID uint   `json:"customer_company_id"`
	Role              string `json:"role"`
}

// CustomerGrant pairs a user with a company role in a replacement set for
// one customer company. Roles must already be normalized.
type CustomerGrant struct {
	UserID uint   `json:"user_id"`
	Role   string `json:"role"`
}

// ReplaceGrantsForUser replaces the full grant set of a user in one
// transaction: delete everything, insert the new set. Last write wins, the
// new set is never merged with prior grants. An empty set clears all
// grants. Duplicate pairs in the set fail the unique index and surface as a
// conflict.
func ReplaceGrantsForUser(ctx context.Context, db *gorm.DB, userID uint, grants []UserGrant) error {
	tx := db.WithContext(ctx).Begin()
	if tx.Error != nil {
		return tx.Error
	}

	if err := tx.Where("user_id = ?", userID).Delete(&model.AccessGrant{}).Error; err != nil {
		tx.Rollback()
		return err
	}

	if len(grants) > 0 {
		rows := make([]model.AccessGrant, 0, len(grants))
		for _, g := range grants {
			rows = append(rows, model.AccessGrant{
				UserID:            userID,
				CustomerCompanyID: g.CustomerCompanyID,
				Role:              g.Role,
			})
		}
		if err := tx.Create(&rows).Error; err != nil {
			tx.Rollback()
			if apperr.IsUniqueViolation(err) {
				return apperr.Conflict("duplicate customer in grant set")
			}
			if apperr.IsForeignKeyViolation(err) {
				return apperr.Validation("unknown customer in grant set")
			}
			return err
		}
	}

	return tx.Commit().Error
}

// ReplaceGrantsForCustomer replaces the full grant set of a customer
// company in one transaction, with the same last-write-wins semantics as
// ReplaceGrantsForUser.
func ReplaceGrantsForCustomer(ctx context.Context, db *gorm.DB, customerID uint, grants []CustomerGrant) error {
	tx := db.WithContext(ctx).Begin()
	if tx.Error != nil {
		return tx.Error
	}

	if err := tx.Where("customer_company_id = ?", customerID).Delete(&model.AccessGrant{}).Error; err != nil {
		tx.Rollback()
		return err
	}

	if len(grants) > 0 {
		rows := make([]model.AccessGrant, 0, len(grants))
		for _, g := range grants {
			rows = append(rows, model.AccessGrant{
				UserID:            g.UserID,
				CustomerCompanyID: customerID,
				Role:              g.Role,
			})
		}
		if err := tx.Create(&rows).Error; err != nil {
			tx.Rollback()
			if apperr.IsUniqueViolation(err) {
				return apperr.Conflict("duplicate user in grant set")
			}
			if apperr.IsForeignKeyViolation(err) {
				return apperr.Validation("unknown user in grant set")
			}
			return err
		}
	}

	return tx.Commit().Error
}

// RemoveGrant deletes the single grant binding a user to a customer
// company. Removing a missing grant is a no-op.
func RemoveGrant(ctx context.Context, db *gorm.DB, userID, customerID uint) error {
	return db.WithContext(ctx).
		Where("user_id = ? AND customer_company_id = ?", userID, customerID).
		Delete(&model.AccessGrant{}).Error
}
