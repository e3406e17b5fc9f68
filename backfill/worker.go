// Package backfill drains work tables produced by the coordinator. Workers
// claim items exclusively through the store's row-level locking, invoke the
// handler, and mark items completed. Delivery is at-least-once: a crash after
// a partial row mutation leaves the item unfinished and it will be handed to
// a worker again, so handlers must be idempotent.
package backfill

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	migrator "github.com/getpup/schema-migrator"
	"github.com/getpup/schema-migrator/metrics"
	"github.com/getpup/schema-migrator/store"
)

// Handler performs the row-level data migration for one claimed work item.
type Handler interface {
	// Backfill transforms the resource the item references. It must be
	// idempotent; the same item may be delivered more than once.
	Backfill(ctx context.Context, item migrator.WorkItem) error
}

// HandlerFunc adapts a function to the Handler interface.
type HandlerFunc func(ctx context.Context, item migrator.WorkItem) error

// Backfill calls the wrapped function.
func (f HandlerFunc) Backfill(ctx context.Context, item migrator.WorkItem) error {
	return f(ctx, item)
}

// Config holds configuration for the worker Pool.
type Config struct {
	// Store is the persistence backend holding the work table (required).
	Store store.Store

	// WorkTable is the work table to drain (required).
	WorkTable string

	// Handler performs the backfill for each claimed item (required).
	Handler Handler

	// Workers is the number of concurrent workers (default: 4).
	Workers int

	// PollInterval is how long an idle worker waits before re-checking for
	// work (default: 1s).
	PollInterval time.Duration

	// Logger is for observability (optional).
	Logger migrator.Logger
}

// Pool runs concurrent backfill workers over one work table.
// Handler failures are logged and surfaced but never touch the schema change
// that spawned the work: schema and backfill failure domains stay decoupled.
type Pool struct {
	config   Config
	failures atomic.Int64
}

// New creates a new Pool with the given configuration.
// Applies defaults for Workers and PollInterval if zero.
func New(cfg Config) *Pool {
	if cfg.Workers == 0 {
		cfg.Workers = 4
	}
	if cfg.PollInterval == 0 {
		cfg.PollInterval = time.Second
	}
	return &Pool{config: cfg}
}

// Run processes work items until the context is cancelled.
// Idle workers poll at the configured interval. Returns nil on cancellation.
func (p *Pool) Run(ctx context.Context) error {
	return p.run(ctx, false)
}

// Drain processes work items until the work table has no unclaimed items
// left, then returns. Returns an error if any handler invocation failed.
func (p *Pool) Drain(ctx context.Context) error {
	if err := p.run(ctx, true); err != nil {
		return err
	}
	if n := p.failures.Load(); n > 0 {
		return fmt.Errorf("%d work items failed in table %s", n, p.config.WorkTable)
	}
	return nil
}

func (p *Pool) run(ctx context.Context, drain bool) error {
	group, ctx := errgroup.WithContext(ctx)
	for i := 0; i < p.config.Workers; i++ {
		group.Go(func() error {
			return p.worker(ctx, drain)
		})
	}
	return group.Wait()
}

func (p *Pool) worker(ctx context.Context, drain bool) error {
	for {
		if err := ctx.Err(); err != nil {
			if drain {
				return err
			}
			return nil
		}

		item, err := p.config.Store.ClaimWorkItem(ctx, p.config.WorkTable)
		if errors.Is(err, migrator.ErrNoWorkAvailable) {
			if drain {
				return nil
			}
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(p.config.PollInterval):
				continue
			}
		}
		if err != nil {
			return fmt.Errorf("failed to claim work item: %w", err)
		}

		metrics.WorkItemsClaimedTotal.WithLabelValues(p.config.WorkTable).Inc()
		p.process(ctx, item)
	}
}

func (p *Pool) process(ctx context.Context, item migrator.WorkItem) {
	if err := p.config.Handler.Backfill(ctx, item); err != nil {
		p.failures.Add(1)
		metrics.WorkItemErrorsTotal.WithLabelValues(p.config.WorkTable).Inc()
		if p.config.Logger != nil {
			p.config.Logger.Error(ctx, "backfill handler failed",
				"workTable", p.config.WorkTable,
				"workID", item.ID,
				"resourceID", item.ResourceID,
				"error", err)
		}
		return
	}

	if err := p.config.Store.CompleteWorkItem(ctx, p.config.WorkTable, item.ID); err != nil {
		p.failures.Add(1)
		metrics.WorkItemErrorsTotal.WithLabelValues(p.config.WorkTable).Inc()
		if p.config.Logger != nil {
			p.config.Logger.Error(ctx, "failed to mark work item completed",
				"workTable", p.config.WorkTable,
				"workID", item.ID,
				"error", err)
		}
		return
	}

	metrics.WorkItemsCompletedTotal.WithLabelValues(p.config.WorkTable).Inc()
	if p.config.Logger != nil {
		p.config.Logger.Debug(ctx, "work item completed",
			"workTable", p.config.WorkTable,
			"workID", item.ID,
			"resourceID", item.ResourceID)
	}
}
