// Package sqlite provides the SQLite implementation of the store contract.
// SQLite serializes writers, so claiming relies on a single UPDATE with a
// subquery rather than row-level locks. Foreign keys must be enabled on the
// connection (`_foreign_keys=on`) for work-item cascade deletes to apply.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"

	"github.com/mattn/go-sqlite3"

	migrator "github.com/getpup/schema-migrator"
	"github.com/getpup/schema-migrator/store"
)

// Config configures the table names used by the store.
type Config struct {
	// ConfigTable is the name of the two-column table holding named
	// configuration values, including the schema version row.
	ConfigTable string
}

// DefaultConfig returns the default table configuration.
func DefaultConfig() Config {
	return Config{
		ConfigTable: "schema_config",
	}
}

// Store is a SQLite implementation of store.Store.
type Store struct {
	db          *sql.DB
	configTable string
}

// Compile-time check that Store implements store.Store.
var _ store.Store = (*Store)(nil)

// New creates a new SQLite store with default table names.
func New(db *sql.DB) *Store {
	return NewWithConfig(db, DefaultConfig())
}

// NewWithConfig creates a new SQLite store with custom table names.
func NewWithConfig(db *sql.DB, config Config) *Store {
	return &Store{
		db:          db,
		configTable: config.ConfigTable,
	}
}

// Bootstrap creates the config table if needed and seeds the version row with
// initialVersion if absent. An existing version row is never overwritten.
func (s *Store) Bootstrap(ctx context.Context, initialVersion int) error {
	if err := migrator.ValidateIdentifier(s.configTable, "ConfigTable"); err != nil {
		return err
	}

	create := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			name TEXT PRIMARY KEY,
			value TEXT NOT NULL
		)
	`, s.configTable)
	if _, err := s.db.ExecContext(ctx, create); err != nil {
		return fmt.Errorf("failed to create config table: %w", err)
	}

	seed := fmt.Sprintf(`INSERT OR IGNORE INTO %s (name, value) VALUES (?, ?)`, s.configTable)
	if _, err := s.db.ExecContext(ctx, seed, store.VersionKey, strconv.Itoa(initialVersion)); err != nil {
		return fmt.Errorf("failed to seed version row: %w", err)
	}

	return nil
}

// CurrentVersion returns the schema version outside any transaction.
func (s *Store) CurrentVersion(ctx context.Context) (int, error) {
	query := fmt.Sprintf(`SELECT value FROM %s WHERE name = ?`, s.configTable)

	var raw string
	err := s.db.QueryRowContext(ctx, query, store.VersionKey).Scan(&raw)
	if err == sql.ErrNoRows {
		return 0, migrator.ErrNotBootstrapped
	}
	if err != nil {
		return 0, fmt.Errorf("failed to read schema version: %w", err)
	}

	return parseVersion(raw)
}

// Begin opens a schema-level transaction.
func (s *Store) Begin(ctx context.Context) (store.Tx, error) {
	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	return &tx{tx: sqlTx, configTable: s.configTable}, nil
}

// ClaimWorkItem exclusively claims the oldest created item in the work table.
func (s *Store) ClaimWorkItem(ctx context.Context, workTable string) (migrator.WorkItem, error) {
	if err := migrator.ValidateIdentifier(workTable, "workTable"); err != nil {
		return migrator.WorkItem{}, err
	}

	query := fmt.Sprintf(`
		UPDATE %s SET state = 'claimed'
		WHERE work_id = (
			SELECT work_id FROM %s
			WHERE state = 'created'
			ORDER BY created_at
			LIMIT 1
		)
		RETURNING work_id, job_id, resource_id, state, created_at
	`, workTable, workTable)

	item := migrator.WorkItem{WorkTable: workTable}
	var state string
	err := s.db.QueryRowContext(ctx, query).Scan(
		&item.ID,
		&item.JobID,
		&item.ResourceID,
		&state,
		&item.CreatedAt,
	)
	if err == sql.ErrNoRows {
		return migrator.WorkItem{}, migrator.ErrNoWorkAvailable
	}
	if err != nil {
		return migrator.WorkItem{}, fmt.Errorf("failed to claim work item: %w", err)
	}

	item.State = migrator.WorkItemState(state)
	return item, nil
}

// CompleteWorkItem marks a claimed work item as completed.
func (s *Store) CompleteWorkItem(ctx context.Context, workTable, workID string) error {
	if err := migrator.ValidateIdentifier(workTable, "workTable"); err != nil {
		return err
	}

	query := fmt.Sprintf(`UPDATE %s SET state = 'completed' WHERE work_id = ?`, workTable)

	result, err := s.db.ExecContext(ctx, query, workID)
	if err != nil {
		return fmt.Errorf("failed to complete work item: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check rows affected: %w", err)
	}

	if rowsAffected == 0 {
		return migrator.ErrWorkItemNotFound
	}

	return nil
}

// PendingWorkItems returns items that are not yet completed, in creation order.
func (s *Store) PendingWorkItems(ctx context.Context, workTable string) ([]migrator.WorkItem, error) {
	if err := migrator.ValidateIdentifier(workTable, "workTable"); err != nil {
		return nil, err
	}

	query := fmt.Sprintf(`
		SELECT work_id, job_id, resource_id, state, created_at
		FROM %s
		WHERE state != 'completed'
		ORDER BY created_at
	`, workTable)

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list pending work items: %w", err)
	}
	defer func() {
		_ = rows.Close()
	}()

	var items []migrator.WorkItem
	for rows.Next() {
		item := migrator.WorkItem{WorkTable: workTable}
		var state string
		err := rows.Scan(
			&item.ID,
			&item.JobID,
			&item.ResourceID,
			&state,
			&item.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan work item: %w", err)
		}
		item.State = migrator.WorkItemState(state)
		items = append(items, item)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating work items: %w", err)
	}

	return items, nil
}

// tx is a SQLite schema-level transaction.
type tx struct {
	tx          *sql.Tx
	configTable string
}

func (t *tx) CurrentVersion(ctx context.Context) (int, error) {
	query := fmt.Sprintf(`SELECT value FROM %s WHERE name = ?`, t.configTable)

	var raw string
	err := t.tx.QueryRowContext(ctx, query, store.VersionKey).Scan(&raw)
	if err == sql.ErrNoRows {
		return 0, migrator.ErrNotBootstrapped
	}
	if err != nil {
		return 0, fmt.Errorf("failed to read schema version: %w", err)
	}

	return parseVersion(raw)
}

// AdvanceVersion compare-and-sets the version row. A concurrent runner that
// already advanced the row makes the UPDATE match zero rows, which is
// reported as migrator.ErrVersionConflict.
func (t *tx) AdvanceVersion(ctx context.Context, expected, next int) error {
	query := fmt.Sprintf(`
		UPDATE %s SET value = ?
		WHERE name = ? AND value = ?
	`, t.configTable)

	result, err := t.tx.ExecContext(ctx, query, strconv.Itoa(next), store.VersionKey, strconv.Itoa(expected))
	if err != nil {
		return fmt.Errorf("failed to advance schema version: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check rows affected: %w", err)
	}

	if rowsAffected == 0 {
		if _, err := t.CurrentVersion(ctx); err != nil {
			return err
		}
		return migrator.ErrVersionConflict
	}

	return nil
}

func (t *tx) Exec(ctx context.Context, stmt string) error {
	if _, err := t.tx.ExecContext(ctx, stmt); err != nil {
		return fmt.Errorf("failed to execute statement: %w", err)
	}
	return nil
}

func (t *tx) SelectResourceIDs(ctx context.Context, spec migrator.BackfillSpec) ([]string, error) {
	if err := migrator.ValidateIdentifier(spec.ResourceTable, "ResourceTable"); err != nil {
		return nil, err
	}
	if err := migrator.ValidateIdentifier(spec.ResourceIDColumn, "ResourceIDColumn"); err != nil {
		return nil, err
	}

	query := fmt.Sprintf(`SELECT %s FROM %s`, spec.ResourceIDColumn, spec.ResourceTable)
	if spec.Predicate != "" {
		query += " WHERE " + spec.Predicate
	}
	query += fmt.Sprintf(" ORDER BY %s", spec.ResourceIDColumn)

	rows, err := t.tx.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to select resource IDs: %w", err)
	}
	defer func() {
		_ = rows.Close()
	}()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan resource ID: %w", err)
		}
		ids = append(ids, id)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating resource IDs: %w", err)
	}

	return ids, nil
}

func (t *tx) WorkItemExists(ctx context.Context, workTable, resourceID string) (bool, error) {
	if err := migrator.ValidateIdentifier(workTable, "workTable"); err != nil {
		return false, err
	}

	query := fmt.Sprintf(`SELECT 1 FROM %s WHERE resource_id = ?`, workTable)

	var one int
	err := t.tx.QueryRowContext(ctx, query, resourceID).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to check for existing work item: %w", err)
	}

	return true, nil
}

func (t *tx) InsertWorkItem(ctx context.Context, item migrator.WorkItem) error {
	if err := migrator.ValidateIdentifier(item.WorkTable, "WorkTable"); err != nil {
		return err
	}

	// INSERT OR IGNORE keeps the enclosing transaction healthy when the
	// coordinator is invoked twice for the same step; the caller sees the
	// duplicate as a sentinel and skips the row.
	query := fmt.Sprintf(`
		INSERT OR IGNORE INTO %s (work_id, job_id, resource_id, state, created_at)
		VALUES (?, ?, ?, 'created', datetime('now'))
	`, item.WorkTable)

	result, err := t.tx.ExecContext(ctx, query, item.ID, item.JobID, item.ResourceID)
	if err != nil {
		var sqliteErr sqlite3.Error
		if errors.As(err, &sqliteErr) && sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique {
			return migrator.ErrDuplicateWorkItem
		}
		return fmt.Errorf("failed to insert work item: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return migrator.ErrDuplicateWorkItem
	}

	return nil
}

func (t *tx) Commit() error {
	if err := t.tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

func (t *tx) Rollback() error {
	if err := t.tx.Rollback(); err != nil && err != sql.ErrTxDone {
		return fmt.Errorf("failed to roll back transaction: %w", err)
	}
	return nil
}

func parseVersion(raw string) (int, error) {
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("malformed version value %q: %w", raw, err)
	}
	return v, nil
}
