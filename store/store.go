package store

import (
	"context"

	migrator "github.com/getpup/schema-migrator"
)

// VersionKey is the config-table row name holding the current schema version
// as a string-encoded integer.
const VersionKey = "VERSION"

// Store provides persistence for the version ledger and backfill work items.
// Implementations must be safe for concurrent access from multiple runners
// and workers.
type Store interface {
	// Bootstrap creates the config table if it does not exist and seeds the
	// version row with initialVersion if it is absent. Idempotent: an existing
	// version row is never overwritten.
	Bootstrap(ctx context.Context, initialVersion int) error

	// CurrentVersion returns the schema version outside any transaction.
	// Returns migrator.ErrNotBootstrapped if the version row does not exist.
	CurrentVersion(ctx context.Context) (int, error)

	// Begin opens a schema-level transaction. The caller must Commit or
	// Rollback the returned Tx.
	Begin(ctx context.Context) (Tx, error)

	// ClaimWorkItem exclusively claims one created work item from the given
	// work table, using row-level locking so two workers never claim the same
	// item. Returns migrator.ErrNoWorkAvailable if none is unclaimed.
	ClaimWorkItem(ctx context.Context, workTable string) (migrator.WorkItem, error)

	// CompleteWorkItem marks a claimed work item as completed.
	// Returns migrator.ErrWorkItemNotFound if the item does not exist.
	CompleteWorkItem(ctx context.Context, workTable, workID string) error

	// PendingWorkItems returns all items in the work table that are not yet
	// completed, in creation order. Returns an empty slice if none exist.
	PendingWorkItems(ctx context.Context, workTable string) ([]migrator.WorkItem, error)
}

// Tx is one schema-level transaction. Schema DDL, the ledger advance, and
// backfill-intent records written through the same Tx commit or roll back
// together; no partial visibility of a step is permitted to other connections.
type Tx interface {
	// CurrentVersion reads the version row inside this transaction.
	// Returns migrator.ErrNotBootstrapped if the version row does not exist.
	CurrentVersion(ctx context.Context) (int, error)

	// AdvanceVersion performs a compare-and-set write of the version row.
	// Returns migrator.ErrVersionConflict if the stored value no longer
	// equals expected at write time (or, for stores that can only detect the
	// race at commit, the conflict surfaces from Commit instead).
	AdvanceVersion(ctx context.Context, expected, next int) error

	// Exec executes one DDL statement inside this transaction.
	Exec(ctx context.Context, stmt string) error

	// SelectResourceIDs returns the IDs of the rows the spec's predicate
	// selects from its resource table, in stable order.
	SelectResourceIDs(ctx context.Context, spec migrator.BackfillSpec) ([]string, error)

	// WorkItemExists reports whether a work item already exists for the given
	// resource ID in the work table, including items written earlier in this
	// transaction.
	WorkItemExists(ctx context.Context, workTable, resourceID string) (bool, error)

	// InsertWorkItem records one work item in item.WorkTable.
	// Returns migrator.ErrDuplicateWorkItem if an item already exists for the
	// same resource ID.
	InsertWorkItem(ctx context.Context, item migrator.WorkItem) error

	// Commit makes the transaction's effects visible atomically.
	Commit() error

	// Rollback discards the transaction's effects. Safe to call after Commit.
	Rollback() error
}
