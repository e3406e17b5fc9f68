package migrator

import "context"

// Runner advances a database schema through its versioned upgrade chain.
// Exactly one run may make progress against a given database at a time;
// concurrent runners are excluded by the version ledger's compare-and-set
// semantics rather than by any process-level lock.
type Runner interface {
	// Run applies all outstanding upgrade steps in order, one transaction per
	// step. Each transaction carries the step's DDL, the backfill-intent
	// records for steps that declare one, and the ledger advance, so the three
	// commit or roll back together.
	//
	// Run returns nil when the schema is at the latest known version,
	// including when there was nothing to do. It returns:
	// - *MigrationError if a step failed; earlier committed steps remain
	//   applied and the run is safe to repeat after the cause is fixed.
	// - ErrVersionConflict if another runner kept advancing the ledger past
	//   the bounded re-read retries.
	// - ErrNotBootstrapped if the ledger row does not exist yet.
	Run(ctx context.Context) error
}

// Queue is the boundary to the external job system. The engine only needs the
// capability to durably enqueue a job and receive its handle; execution,
// retry, and backoff policy belong to the job system. Delivery is assumed
// at-least-once, so job bodies must be idempotent.
type Queue interface {
	// Enqueue durably records a job and returns its handle.
	// It never blocks on job execution.
	Enqueue(ctx context.Context, payload JobPayload) (string, error)
}
