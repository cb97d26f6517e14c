package cmd

import (
	"fmt"

	"github.com/oscroos/bjugstad-utleie-webapp/internal/jobs"
	"github.com/oscroos/bjugstad-utleie-webapp/pkg/config"
	"github.com/oscroos/bjugstad-utleie-webapp/pkg/database"
	"github.com/oscroos/bjugstad-utleie-webapp/pkg/logger"
	"github.com/oscroos/bjugstad-utleie-webapp/pkg/rentalapi"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// syncCustomersCmd runs the customer mirror sync once and exits, the same
// work the nightly job does.
var syncCustomersCmd = &cobra.Command{
	Use:   "sync-customers",
	Short: "Sync customer company mirrors from the rental API once",
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

		client, err := rentalapi.NewClient(&cfg.RentalAPI, log)
		if err != nil {
			return fmt.Errorf("rental API client: %w", err)
		}

		created, updated, err := jobs.SyncCustomers(cmd.Context(), database.GetDB(), client, log)
		if err != nil {
			return fmt.Errorf("sync customers: %w", err)
		}

		log.Info("Customer sync finished",
			zap.Int("created", created),
			zap.Int("updated", updated))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(syncCustomersCmd)
}
