// Package coordinator records backfill intent for upgrade steps whose DDL
// adds schema capacity without migrating existing rows. The coordinator never
// performs the backfill itself: it scans the affected table and durably pairs
// each matching row with a job handle from the external queue, inside the
// same transaction as the step's DDL, then hands off entirely.
package coordinator

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	migrator "github.com/getpup/schema-migrator"
	"github.com/getpup/schema-migrator/metrics"
	"github.com/getpup/schema-migrator/store"
)

// Config holds configuration for the Coordinator.
type Config struct {
	// Queue is the external job system to obtain job handles from (required).
	Queue migrator.Queue

	// Logger is for observability (optional).
	Logger migrator.Logger
}

// Coordinator enqueues deferred row-level data migration for upgrade steps.
type Coordinator struct {
	config Config
}

// New creates a new Coordinator with the given configuration.
func New(cfg Config) *Coordinator {
	return &Coordinator{config: cfg}
}

// EnqueueBackfill scans the step's resource table by its declared predicate
// and records one work item per matching row, each referencing a fresh job
// handle. It writes through the caller's transaction so the schema change and
// the backfill-intent records commit or roll back together.
//
// Invoking the coordinator twice for the same step is safe and side-effect
// free: rows that already have a work item are skipped before any job is
// enqueued, so re-invocation leaks nothing into the external queue. The work
// table's uniqueness constraint on resource_id remains the backstop for rows
// a concurrent transaction records in between. Returns the number of work
// items recorded.
func (c *Coordinator) EnqueueBackfill(ctx context.Context, tx store.Tx, step migrator.Step) (int, error) {
	spec := step.Backfill
	if spec == nil {
		return 0, nil
	}

	if err := validateSpec(spec); err != nil {
		return 0, fmt.Errorf("invalid backfill spec for step %d->%d: %w", step.FromVersion, step.ToVersion, err)
	}

	ids, err := tx.SelectResourceIDs(ctx, *spec)
	if err != nil {
		return 0, fmt.Errorf("failed to scan %s for backfill: %w", spec.ResourceTable, err)
	}

	payload := migrator.JobPayload{
		WorkTable:   spec.WorkTable,
		Description: spec.Description,
	}

	enqueued := 0
	for _, resourceID := range ids {
		exists, err := tx.WorkItemExists(ctx, spec.WorkTable, resourceID)
		if err != nil {
			return 0, fmt.Errorf("failed to check for existing work item: %w", err)
		}
		if exists {
			if c.config.Logger != nil {
				c.config.Logger.Debug(ctx, "work item already recorded, skipping",
					"workTable", spec.WorkTable,
					"resourceID", resourceID)
			}
			continue
		}

		jobID, err := c.config.Queue.Enqueue(ctx, payload)
		if err != nil {
			return 0, fmt.Errorf("failed to enqueue backfill job: %w", err)
		}

		item := migrator.WorkItem{
			ID:         uuid.New().String(),
			JobID:      jobID,
			ResourceID: resourceID,
			WorkTable:  spec.WorkTable,
			State:      migrator.WorkItemStateCreated,
		}

		err = tx.InsertWorkItem(ctx, item)
		if errors.Is(err, migrator.ErrDuplicateWorkItem) {
			if c.config.Logger != nil {
				c.config.Logger.Debug(ctx, "work item already recorded, skipping",
					"workTable", spec.WorkTable,
					"resourceID", resourceID)
			}
			continue
		}
		if err != nil {
			return 0, fmt.Errorf("failed to record work item for resource %s: %w", resourceID, err)
		}
		enqueued++
	}

	metrics.WorkItemsEnqueuedTotal.WithLabelValues(spec.WorkTable).Add(float64(enqueued))

	if c.config.Logger != nil {
		c.config.Logger.Info(ctx, "backfill enqueued",
			"workTable", spec.WorkTable,
			"resourceTable", spec.ResourceTable,
			"workItems", enqueued,
			"skipped", len(ids)-enqueued)
	}

	return enqueued, nil
}

// validateSpec validates every identifier the spec will interpolate into SQL.
func validateSpec(spec *migrator.BackfillSpec) error {
	if err := migrator.ValidateIdentifier(spec.ResourceTable, "ResourceTable"); err != nil {
		return err
	}
	if err := migrator.ValidateIdentifier(spec.ResourceIDColumn, "ResourceIDColumn"); err != nil {
		return err
	}
	return migrator.ValidateIdentifier(spec.WorkTable, "WorkTable")
}
