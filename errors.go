package migrator

import (
	"errors"
	"fmt"
)

var (
	// ErrUnsupportedDialect indicates the connection's backend matches none of
	// the known dialects. There is no safe default; the operator must supply a
	// recognized database backend.
	ErrUnsupportedDialect = errors.New("unsupported dialect")

	// ErrVersionConflict indicates the ledger's stored version changed between
	// read and compare-and-set write. Another runner advanced the schema first;
	// callers should re-read the current version and recompute the remaining
	// steps rather than retry the write blindly.
	ErrVersionConflict = errors.New("version conflict")

	// ErrNotBootstrapped indicates the ledger row does not exist yet.
	// The store's Bootstrap must run before migrations can.
	ErrNotBootstrapped = errors.New("schema version not bootstrapped")

	// ErrDuplicateWorkItem indicates a work item already exists for the
	// resource row. Enqueueing the same step twice is tolerated by skipping
	// the duplicate.
	ErrDuplicateWorkItem = errors.New("duplicate work item")

	// ErrNoWorkAvailable indicates no unclaimed work item exists in the
	// work table right now.
	ErrNoWorkAvailable = errors.New("no work available")

	// ErrWorkItemNotFound indicates the specified work item does not exist.
	ErrWorkItemNotFound = errors.New("work item not found")
)

// RegistryError indicates the available upgrade steps do not form a valid
// linear chain. It is fatal at load time and signals a packaging defect,
// never auto-corrected.
type RegistryError struct {
	// Dialect is the dialect whose chain is invalid, empty for
	// cross-dialect parity violations.
	Dialect Dialect

	// Reason describes the violation (gap, branch, or parity mismatch).
	Reason string
}

func (e *RegistryError) Error() string {
	if e.Dialect == "" {
		return fmt.Sprintf("invalid upgrade step registry: %s", e.Reason)
	}
	return fmt.Sprintf("invalid upgrade step registry for dialect %s: %s", e.Dialect, e.Reason)
}

// MigrationError indicates a step failed to apply. The failing step's
// transaction was rolled back in full; steps committed earlier remain applied
// and the run is idempotent to repeat once the cause is fixed.
type MigrationError struct {
	// AtVersion is the ledger version the failing step was applying on top of.
	AtVersion int

	// Cause is the underlying failure.
	Cause error
}

func (e *MigrationError) Error() string {
	return fmt.Sprintf("migration failed at version %d: %v", e.AtVersion, e.Cause)
}

func (e *MigrationError) Unwrap() error {
	return e.Cause
}
