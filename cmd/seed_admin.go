package cmd

import (
	"errors"
	"fmt"

	"github.com/oscroos/bjugstad-utleie-webapp/internal/model"
	"github.com/oscroos/bjugstad-utleie-webapp/internal/reconcile"
	"github.com/oscroos/bjugstad-utleie-webapp/pkg/config"
	"github.com/oscroos/bjugstad-utleie-webapp/pkg/database"
	"github.com/oscroos/bjugstad-utleie-webapp/pkg/logger"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var (
	seedAdminPhone string
	seedAdminName  string
	seedAdminEmail string
)

// seedAdminCmd bootstraps the first super admin. Every other user is
// provisioned through the admin screens, which need at least one admin to
// exist first.
var seedAdminCmd = &cobra.Command{
	Use:   "seed-admin",
	Short: "Create or promote a super admin user",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return fmt.Errorf("load configuration: %w", err)
		}
		logger.InitLogger(cfg)
		log := logger.GetLogger()

		if err := database.InitDB(cfg); err != nil {
			return fmt.Errorf("initialize database: %w", err)
		}

		phone := reconcile.CanonicalPhone(seedAdminPhone)
		if phone == "" {
			return fmt.Errorf("--phone must be digits with an optional leading +")
		}

		db := database.GetDB()

		var user model.User
		err = db.Where("phone_number = ?", phone).First(&user).Error
		switch {
		case errors.Is(err, gorm.ErrRecordNotFound):
			user = model.User{
				PhoneNumber: phone,
				Name:        seedAdminName,
				Role:        model.RoleSuperAdmin,
			}
			if seedAdminEmail != "" {
				user.Email = &seedAdminEmail
			}
			if err := db.Create(&user).Error; err != nil {
				return fmt.Errorf("create super admin: %w", err)
			}
			log.Info("Super admin created",
				zap.Uint("user_id", user.ID),
				zap.String("phone_number", phone))
		case err != nil:
			return fmt.Errorf("look up user: %w", err)
		default:
			if user.IsSuperAdmin() {
				log.Info("User is already a super admin", zap.Uint("user_id", user.ID))
				return nil
			}
			if err := db.Model(&user).Update("role", model.RoleSuperAdmin).Error; err != nil {
				return fmt.Errorf("promote user: %w", err)
			}
			log.Info("User promoted to super admin",
				zap.Uint("user_id", user.ID),
				zap.String("phone_number", phone))
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(seedAdminCmd)

	seedAdminCmd.Flags().StringVar(&seedAdminPhone, "phone", "", "phone number of the admin (required)")
	seedAdminCmd.Flags().StringVar(&seedAdminName, "name", "", "display name of the admin (required)")
	seedAdminCmd.Flags().StringVar(&seedAdminEmail, "email", "", "email of the admin")
	_ = seedAdminCmd.MarkFlagRequired("phone")
	_ = seedAdminCmd.MarkFlagRequired("name")
}
