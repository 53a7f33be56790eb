package tasks

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/mikestefanello/backlite"
	"github.com/rs/zerolog"

	"github.com/mrlokans/storefront/internal/reconcile"
)

// EntitlementScanner finds completed purchases that never received ownership.
type EntitlementScanner interface {
	Scan(ctx context.Context) (*reconcile.Report, error)
}

// ReconcileScanTask runs one reconciliation scan.
type ReconcileScanTask struct {
	Trigger string `json:"trigger"` // "schedule" or "admin"
}

// Config returns the queue configuration for reconciliation scans.
func (t ReconcileScanTask) Config() backlite.QueueConfig {
	return backlite.QueueConfig{
		Name:        "reconcile_scan",
		MaxAttempts: 3,
		Backoff:     time.Minute,
		Timeout:     5 * time.Minute,
		Retention: &backlite.Retention{
			Duration: 7 * 24 * time.Hour,
			Data:     &backlite.RetainData{OnlyFailed: true},
		},
	}
}

// ReconcileScanProcessor creates a processor function for ReconcileScanTask.
func ReconcileScanProcessor(scanner EntitlementScanner, log zerolog.Logger) backlite.QueueProcessor[ReconcileScanTask] {
	return func(ctx context.Context, task ReconcileScanTask) error {
		if scanner == nil {
			return errors.New("reconciliation scanner not configured")
		}

		report, err := scanner.Scan(ctx)
		if err != nil {
			return fmt.Errorf("reconcile scan: %w", err)
		}

		event := log.Info()
		if report.NewIssues > 0 {
			event = log.Warn()
		}
		event.Str("trigger", task.Trigger).
			Int("checked", report.Checked).
			Int("new_issues", report.NewIssues).
			Msg("reconciliation scan finished")
		return nil
	}
}

// NewReconcileScanQueue creates a backlite queue for reconciliation scans.
func NewReconcileScanQueue(scanner EntitlementScanner, log zerolog.Logger) backlite.Queue {
	return backlite.NewQueue(ReconcileScanProcessor(scanner, log))
}
