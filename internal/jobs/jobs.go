// Package jobs runs the background maintenance work of the portal: the
// nightly customer mirror sync against the rental API and pruning of old
// login events. Schedules use six-field cron expressions with seconds.
package jobs

import (
	"context"
	"errors"
	"time"

	"github.com/oscroos/bjugstad-utleie-webapp/internal/model"
	"github.com/oscroos/bjugstad-utleie-webapp/pkg/config"
	"github.com/oscroos/bjugstad-utleie-webapp/pkg/rentalapi"
	"github.com/oscroos/bjugstad-utleie-webapp/prometheus"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// pruneSchedule runs after the customer sync window, before business hours.
const pruneSchedule = "0 30 3 * * *"

// jobTimeout bounds one run of any scheduled job.
const jobTimeout = 5 * time.Minute

// Start schedules the background jobs and starts the scheduler. The
// customer sync is skipped when no rental API client is configured, the
// prune when retention is disabled. Returns the running scheduler so the
// caller can stop it at shutdown.
func Start(cfg *config.Config, db *gorm.DB, client *rentalapi.Client, log *zap.Logger) (*cron.Cron, error) {
	c := cron.New(cron.WithSeconds())

	if client != nil {
		_, err := c.AddFunc(cfg.Jobs.CustomerSyncSchedule, func() {
			ctx, cancel := context.WithTimeout(context.Background(), jobTimeout)
			defer cancel()

			created, updated, err := SyncCustomers(ctx, db, client, log)
			if err != nil {
				log.Error("Scheduled customer sync failed", zap.Error(err))
				prometheus.RecordJobRun("customer_sync", "error")
				return
			}
			log.Info("Scheduled customer sync finished",
				zap.Int("created", created),
				zap.Int("updated", updated))
			prometheus.RecordJobRun("customer_sync", "success")
		})
		if err != nil {
			return nil, err
		}
	} else {
		log.Warn("Customer sync job disabled, rental API is not configured")
	}

	if cfg.Jobs.LoginEventRetentionDays > 0 {
		retention := cfg.Jobs.LoginEventRetentionDays
		_, err := c.AddFunc(pruneSchedule, func() {
			ctx, cancel := context.WithTimeout(context.Background(), jobTimeout)
			defer cancel()

			pruned, err := PruneLoginEvents(ctx, db, retention)
			if err != nil {
				log.Error("Login event prune failed", zap.Error(err))
				prometheus.RecordJobRun("login_event_prune", "error")
				return
			}
			log.Info("Login event prune finished", zap.Int64("pruned", pruned))
			prometheus.RecordJobRun("login_event_prune", "success")
		})
		if err != nil {
			return nil, err
		}
	}

	c.Start()
	log.Info("Background jobs scheduled",
		zap.String("customer_sync_schedule", cfg.Jobs.CustomerSyncSchedule),
		zap.Int("login_event_retention_days", cfg.Jobs.LoginEventRetentionDays))
	return c, nil
}

// SyncCustomers pulls the full customer list from the rental API and
// upserts the local mirrors. Rows are matched on the rental system id; the
// sync never deletes mirrors, removal stays an explicit admin action.
func SyncCustomers(ctx context.Context, db *gorm.DB, client *rentalapi.Client, log *zap.Logger) (created, updated int, err error) {
	customers, err := client.ListCustomers(ctx)
	if err != nil {
		return 0, 0, err
	}

	defer prometheus.TrackDBOperation("update")(time.Now())

	for _, customer := range customers {
		if customer.ID == 0 {
			log.Warn("Skipping rental customer without id", zap.String("name", customer.Name))
			continue
		}

		var existing model.CustomerCompany
		err := db.WithContext(ctx).First(&existing, customer.ID).Error
		switch {
		case errors.Is(err, gorm.ErrRecordNotFound):
			row := model.CustomerCompany{
				ID:        customer.ID,
				Name:      customer.Name,
				OrgNumber: customer.OrgNumber,
			}
			if err := db.WithContext(ctx).Create(&row).Error; err != nil {
				return created, updated, err
			}
			created++
		case err != nil:
			return created, updated, err
		default:
			if existing.Name == customer.Name && existing.OrgNumber == customer.OrgNumber {
				continue
			}
			err := db.WithContext(ctx).Model(&existing).Updates(map[string]interface{}{
				"name":       customer.Name,
				"org_number": customer.OrgNumber,
			}).Error
			if err != nil {
				return created, updated, err
			}
			updated++
		}
	}

	return created, updated, nil
}

// PruneLoginEvents deletes login events older than the retention window and
// returns how many rows went.
func PruneLoginEvents(ctx context.Context, db *gorm.DB, retentionDays int) (int64, error) {
	cutoff := time.Now().AddDate(0, 0, -retentionDays)

	defer prometheus.TrackDBOperation("delete")(time.Now())

	result := db.WithContext(ctx).
		Where("created_at < ?", cutoff).
		Delete(&model.LoginEvent{})
	return result.RowsAffected, result.Error
}
