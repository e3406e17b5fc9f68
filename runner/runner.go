// Package runner applies the chain of outstanding upgrade steps to a
// database, one transaction per step. Mutual exclusion between runners racing
// on the same database comes from the version ledger's compare-and-set write,
// not from any process-level lock: the loser of a race observes a version
// conflict, re-reads, and recomputes what remains.
package runner

import (
	"context"
	"errors"
	"fmt"

	migrator "github.com/getpup/schema-migrator"
	"github.com/getpup/schema-migrator/coordinator"
	"github.com/getpup/schema-migrator/metrics"
	"github.com/getpup/schema-migrator/registry"
	"github.com/getpup/schema-migrator/store"
)

// Config holds configuration for the Runner.
type Config struct {
	// Store is the persistence backend for the ledger and work items (required).
	Store store.Store

	// Registry is the validated set of upgrade steps (required).
	Registry *registry.Registry

	// Dialect selects which chain of steps to apply (required).
	Dialect migrator.Dialect

	// Coordinator records backfill intent for steps that declare one.
	// Required only if any step in the chain carries a BackfillSpec.
	Coordinator *coordinator.Coordinator

	// MaxConflictRetries bounds how often a run re-reads the ledger after a
	// version conflict before surfacing it as fatal (default: 3).
	MaxConflictRetries int

	// Logger is for observability (optional).
	Logger migrator.Logger
}

// Runner applies outstanding upgrade steps sequentially.
type Runner struct {
	config Config
}

// Compile-time check that Runner implements migrator.Runner.
var _ migrator.Runner = (*Runner)(nil)

// New creates a new Runner with the given configuration.
// Applies the default for MaxConflictRetries if zero.
func New(cfg Config) *Runner {
	if cfg.MaxConflictRetries == 0 {
		cfg.MaxConflictRetries = 3
	}
	return &Runner{config: cfg}
}

// Run reads the current schema version, asks the registry for the remaining
// steps, and applies them strictly in order, one transaction per step. Steps
// are never skipped, reordered, or applied out of sequence.
//
// A version conflict means another runner advanced the ledger first; the run
// re-reads and recomputes, bounded by MaxConflictRetries. If the other runner
// finished the chain, the recomputation finds nothing left and the run
// succeeds as a no-op.
func (r *Runner) Run(ctx context.Context) error {
	dialect := string(r.config.Dialect)

	conflicts := 0
	for {
		current, err := r.config.Store.CurrentVersion(ctx)
		if err != nil {
			metrics.RunsTotal.WithLabelValues(dialect, "failed").Inc()
			return fmt.Errorf("failed to read current schema version: %w", err)
		}

		steps, err := r.config.Registry.StepsFrom(r.config.Dialect, current)
		if err != nil {
			metrics.RunsTotal.WithLabelValues(dialect, "failed").Inc()
			return err
		}

		if len(steps) == 0 {
			if r.config.Logger != nil {
				r.config.Logger.Info(ctx, "schema already at latest version", "dialect", dialect, "version", current)
			}
			metrics.CurrentSchemaVersion.WithLabelValues(dialect).Set(float64(current))
			metrics.RunsTotal.WithLabelValues(dialect, "success").Inc()
			return nil
		}

		if r.config.Logger != nil {
			r.config.Logger.Info(ctx, "starting migration run",
				"dialect", dialect,
				"currentVersion", current,
				"targetVersion", r.config.Registry.LatestVersion(),
				"steps", len(steps))
		}

		err = r.applyChain(ctx, steps)
		if err == nil {
			metrics.CurrentSchemaVersion.WithLabelValues(dialect).Set(float64(r.config.Registry.LatestVersion()))
			metrics.RunsTotal.WithLabelValues(dialect, "success").Inc()
			return nil
		}

		if errors.Is(err, migrator.ErrVersionConflict) {
			metrics.VersionConflictsTotal.WithLabelValues(dialect).Inc()
			conflicts++
			if conflicts > r.config.MaxConflictRetries {
				metrics.RunsTotal.WithLabelValues(dialect, "conflict").Inc()
				return fmt.Errorf("ledger kept moving after %d re-reads, likely a concurrent-writer bug: %w",
					conflicts, migrator.ErrVersionConflict)
			}
			if r.config.Logger != nil {
				r.config.Logger.Info(ctx, "another runner advanced the ledger, re-reading",
					"dialect", dialect, "attempt", conflicts)
			}
			continue
		}

		metrics.RunsTotal.WithLabelValues(dialect, "failed").Inc()
		return err
	}
}

// applyChain applies each step in order and stops at the first failure.
// Steps committed before the failure remain applied; the next run resumes
// from the advanced ledger value.
func (r *Runner) applyChain(ctx context.Context, steps []migrator.Step) error {
	for _, step := range steps {
		if err := r.applyStep(ctx, step); err != nil {
			return err
		}

		metrics.StepsAppliedTotal.WithLabelValues(string(r.config.Dialect)).Inc()
		if r.config.Logger != nil {
			r.config.Logger.Info(ctx, "upgrade step committed",
				"dialect", string(r.config.Dialect),
				"fromVersion", step.FromVersion,
				"toVersion", step.ToVersion)
		}
	}
	return nil
}

// applyStep runs one step inside a single transaction: the DDL statements,
// the backfill-intent records if the step declares a backfill, and the ledger
// advance commit or roll back together.
func (r *Runner) applyStep(ctx context.Context, step migrator.Step) error {
	tx, err := r.config.Store.Begin(ctx)
	if err != nil {
		return &migrator.MigrationError{AtVersion: step.FromVersion, Cause: err}
	}
	defer func() {
		_ = tx.Rollback()
	}()

	for _, stmt := range step.Statements {
		if err := tx.Exec(ctx, stmt); err != nil {
			return &migrator.MigrationError{AtVersion: step.FromVersion, Cause: err}
		}
	}

	if step.Backfill != nil {
		if r.config.Coordinator == nil {
			return &migrator.MigrationError{
				AtVersion: step.FromVersion,
				Cause:     fmt.Errorf("step %d->%d declares a backfill but no coordinator is configured", step.FromVersion, step.ToVersion),
			}
		}
		if _, err := r.config.Coordinator.EnqueueBackfill(ctx, tx, step); err != nil {
			return &migrator.MigrationError{AtVersion: step.FromVersion, Cause: err}
		}
	}

	if err := tx.AdvanceVersion(ctx, step.FromVersion, step.ToVersion); err != nil {
		if errors.Is(err, migrator.ErrVersionConflict) || errors.Is(err, migrator.ErrNotBootstrapped) {
			return err
		}
		return &migrator.MigrationError{AtVersion: step.FromVersion, Cause: err}
	}

	if err := tx.Commit(); err != nil {
		// Stores that stage writes can only detect the compare-and-set race
		// at commit; the conflict passes through untranslated either way.
		if errors.Is(err, migrator.ErrVersionConflict) {
			return err
		}
		return &migrator.MigrationError{AtVersion: step.FromVersion, Cause: err}
	}

	return nil
}
