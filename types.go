package migrator

import "time"

// Dialect identifies a SQL backend whose schema-operation syntax a step targets.
type Dialect string

const (
	// DialectPostgres is the PostgreSQL backend.
	DialectPostgres Dialect = "postgres"

	// DialectMySQL is the MySQL/MariaDB backend.
	DialectMySQL Dialect = "mysql"

	// DialectSQLite is the SQLite backend.
	DialectSQLite Dialect = "sqlite"
)

// ConnectionMetadata describes a live database connection for dialect resolution.
type ConnectionMetadata struct {
	// Product is the server's reported product string (e.g. "PostgreSQL 15.4 on x86_64").
	Product string

	// DriverName is the database/sql driver name the connection was opened with.
	// Used as a fallback when the product string is empty.
	DriverName string
}

// Step is one atomic schema transformation from FromVersion to FromVersion+1
// for a single dialect. Steps for a dialect must form a single unbroken chain.
type Step struct {
	// Dialect is the SQL backend this step's statements are written for.
	Dialect Dialect

	// FromVersion is the schema version this step applies on top of.
	FromVersion int

	// ToVersion is the schema version after this step commits.
	// Must equal FromVersion+1.
	ToVersion int

	// Statements is the ordered list of DDL statements to execute.
	Statements []string

	// Backfill, if non-nil, declares deferred row-level data migration
	// to be enqueued in the same transaction as the DDL.
	Backfill *BackfillSpec
}

// BackfillSpec declares deferred per-row data migration for a step whose DDL
// only adds capacity (e.g. a defaulted column) without touching existing rows.
type BackfillSpec struct {
	// ResourceTable is the table whose rows need backfilling.
	ResourceTable string

	// ResourceIDColumn is the primary key column of ResourceTable.
	ResourceIDColumn string

	// Predicate is an optional SQL condition selecting the rows to backfill.
	// Empty means all rows.
	Predicate string

	// WorkTable is the table holding one WorkItem per selected row. It must
	// carry a uniqueness constraint on resource_id and a cascading foreign
	// key to ResourceTable, as created by the step's own DDL.
	WorkTable string

	// Description is carried into the job payload for operator visibility.
	Description string
}

// WorkItemState is the lifecycle state of a WorkItem.
type WorkItemState string

const (
	// WorkItemStateCreated indicates the item is recorded but not yet claimed.
	WorkItemStateCreated WorkItemState = "created"

	// WorkItemStateClaimed indicates a worker holds the item exclusively.
	WorkItemStateClaimed WorkItemState = "claimed"

	// WorkItemStateCompleted indicates the item's backfill has been performed.
	WorkItemStateCompleted WorkItemState = "completed"
)

// WorkItem is a durable record of one unit of deferred data migration,
// tied to a job handle and the resource row it will transform.
// Deleting the resource row removes the item (cascading foreign key); that is
// the only cancellation path.
type WorkItem struct {
	// ID is the unique identifier of this work item (UUID).
	ID string

	// JobID is the handle of the external job referencing this item.
	JobID string

	// ResourceID identifies the row in the owning resource table.
	ResourceID string

	// WorkTable is the table the item is stored in.
	WorkTable string

	// State is the current lifecycle state.
	State WorkItemState

	// CreatedAt is when the item was recorded.
	CreatedAt time.Time
}

// JobPayload is the opaque payload handed to the external job queue when
// backfill work is enqueued.
type JobPayload struct {
	// WorkTable is the work table the job should drain items from.
	WorkTable string

	// Description is a human-readable summary of the work.
	Description string
}
