// Package memory provides an in-memory implementation of the store contract
// for testing. Transactions are staged and applied atomically at Commit, so
// compare-and-set conflicts between overlapping transactions surface exactly
// as they do against a real database: the first committer wins.
package memory

import (
	"context"
	"fmt"
	"sync"
	"time"

	migrator "github.com/getpup/schema-migrator"
	"github.com/getpup/schema-migrator/store"
)

// Store is an in-memory implementation of store.Store for testing.
// It is safe for concurrent use.
//
// The store models just enough of a relational database for the engine's
// contract to be testable independent of any SQL backend: a config table,
// resource tables with rows, and work tables bound to a resource table by a
// cascading foreign key. Predicates on BackfillSpec are not evaluated; every
// row of the resource table is selected.
type Store struct {
	mu     sync.Mutex
	config map[string]string

	// resource table -> ordered row IDs
	resources map[string][]string

	// work table -> owning resource table (the foreign key binding)
	workTables map[string]string

	// work table -> ordered items
	items map[string][]migrator.WorkItem

	executedDDL []string
}

// Compile-time check that Store implements store.Store.
var _ store.Store = (*Store)(nil)

// New creates a new in-memory store with initialized state.
func New() *Store {
	return &Store{
		config:     make(map[string]string),
		resources:  make(map[string][]string),
		workTables: make(map[string]string),
		items:      make(map[string][]migrator.WorkItem),
	}
}

// Bootstrap seeds the version row with initialVersion if it is absent.
func (s *Store) Bootstrap(ctx context.Context, initialVersion int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.config[store.VersionKey]; !ok {
		s.config[store.VersionKey] = fmt.Sprintf("%d", initialVersion)
	}
	return nil
}

// CurrentVersion returns the committed schema version.
func (s *Store) CurrentVersion(ctx context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.versionLocked()
}

func (s *Store) versionLocked() (int, error) {
	raw, ok := s.config[store.VersionKey]
	if !ok {
		return 0, migrator.ErrNotBootstrapped
	}
	var v int
	if _, err := fmt.Sscanf(raw, "%d", &v); err != nil {
		return 0, fmt.Errorf("malformed version value %q: %w", raw, err)
	}
	return v, nil
}

// Begin opens a staged transaction. Its reads see the state as of Begin;
// its writes apply atomically at Commit.
func (s *Store) Begin(ctx context.Context) (store.Tx, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	snapshot, snapErr := s.versionLocked()
	return &tx{
		store:           s,
		snapshotVersion: snapshot,
		snapshotErr:     snapErr,
	}, nil
}

// ClaimWorkItem exclusively claims the oldest created item in the work table.
func (s *Store) ClaimWorkItem(ctx context.Context, workTable string) (migrator.WorkItem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	list := s.items[workTable]
	for i := range list {
		if list[i].State == migrator.WorkItemStateCreated {
			list[i].State = migrator.WorkItemStateClaimed
			return list[i], nil
		}
	}
	return migrator.WorkItem{}, migrator.ErrNoWorkAvailable
}

// CompleteWorkItem marks a claimed work item as completed.
func (s *Store) CompleteWorkItem(ctx context.Context, workTable, workID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	list := s.items[workTable]
	for i := range list {
		if list[i].ID == workID {
			list[i].State = migrator.WorkItemStateCompleted
			return nil
		}
	}
	return migrator.ErrWorkItemNotFound
}

// PendingWorkItems returns items that are not yet completed, in creation order.
func (s *Store) PendingWorkItems(ctx context.Context, workTable string) ([]migrator.WorkItem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var pending []migrator.WorkItem
	for _, item := range s.items[workTable] {
		if item.State != migrator.WorkItemStateCompleted {
			pending = append(pending, item)
		}
	}
	return pending, nil
}

// InsertResources adds rows to a resource table, creating the table if needed.
// Test helper; a SQL store's resource tables are created by upgrade-step DDL.
func (s *Store) InsertResources(table string, ids ...string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.resources[table] = append(s.resources[table], ids...)
}

// BindWorkTable declares that workTable references resourceTable with a
// cascading foreign key, as the step DDL would in a real database.
func (s *Store) BindWorkTable(workTable, resourceTable string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.workTables[workTable] = resourceTable
}

// DeleteResource removes a row from a resource table and cascades the delete
// to work items in every work table bound to it.
func (s *Store) DeleteResource(table, id string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rows := s.resources[table]
	for i, r := range rows {
		if r == id {
			s.resources[table] = append(rows[:i], rows[i+1:]...)
			break
		}
	}

	for workTable, owner := range s.workTables {
		if owner != table {
			continue
		}
		kept := s.items[workTable][:0]
		for _, item := range s.items[workTable] {
			if item.ResourceID != id {
				kept = append(kept, item)
			}
		}
		s.items[workTable] = kept
	}
}

// ExecutedDDL returns every DDL statement committed so far, in order.
func (s *Store) ExecutedDDL() []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	return append([]string(nil), s.executedDDL...)
}

// WorkItems returns every item in the work table regardless of state.
func (s *Store) WorkItems(workTable string) []migrator.WorkItem {
	s.mu.Lock()
	defer s.mu.Unlock()

	return append([]migrator.WorkItem(nil), s.items[workTable]...)
}

// tx is a staged in-memory transaction.
type tx struct {
	store           *Store
	snapshotVersion int
	snapshotErr     error

	stagedDDL   []string
	stagedItems []migrator.WorkItem
	cas         *casWrite
	done        bool
}

type casWrite struct {
	expected int
	next     int
}

func (t *tx) CurrentVersion(ctx context.Context) (int, error) {
	if t.snapshotErr != nil {
		return 0, t.snapshotErr
	}
	return t.snapshotVersion, nil
}

func (t *tx) AdvanceVersion(ctx context.Context, expected, next int) error {
	if t.snapshotErr != nil {
		return t.snapshotErr
	}
	if t.snapshotVersion != expected {
		return migrator.ErrVersionConflict
	}
	t.cas = &casWrite{expected: expected, next: next}
	return nil
}

func (t *tx) Exec(ctx context.Context, stmt string) error {
	t.stagedDDL = append(t.stagedDDL, stmt)
	return nil
}

func (t *tx) SelectResourceIDs(ctx context.Context, spec migrator.BackfillSpec) ([]string, error) {
	t.store.mu.Lock()
	defer t.store.mu.Unlock()

	return append([]string(nil), t.store.resources[spec.ResourceTable]...), nil
}

func (t *tx) WorkItemExists(ctx context.Context, workTable, resourceID string) (bool, error) {
	t.store.mu.Lock()
	for _, existing := range t.store.items[workTable] {
		if existing.ResourceID == resourceID {
			t.store.mu.Unlock()
			return true, nil
		}
	}
	t.store.mu.Unlock()

	for _, staged := range t.stagedItems {
		if staged.WorkTable == workTable && staged.ResourceID == resourceID {
			return true, nil
		}
	}
	return false, nil
}

func (t *tx) InsertWorkItem(ctx context.Context, item migrator.WorkItem) error {
	t.store.mu.Lock()
	committed := t.store.items[item.WorkTable]
	for _, existing := range committed {
		if existing.ResourceID == item.ResourceID {
			t.store.mu.Unlock()
			return migrator.ErrDuplicateWorkItem
		}
	}
	t.store.mu.Unlock()

	for _, staged := range t.stagedItems {
		if staged.WorkTable == item.WorkTable && staged.ResourceID == item.ResourceID {
			return migrator.ErrDuplicateWorkItem
		}
	}

	t.stagedItems = append(t.stagedItems, item)
	return nil
}

// Commit applies the staged writes atomically. The compare-and-set on the
// version row is re-validated against committed state here: the first of two
// overlapping transactions to commit wins, the second gets ErrVersionConflict.
func (t *tx) Commit() error {
	if t.done {
		return fmt.Errorf("transaction already finished")
	}
	t.done = true

	t.store.mu.Lock()
	defer t.store.mu.Unlock()

	if t.cas != nil {
		current, err := t.store.versionLocked()
		if err != nil {
			return err
		}
		if current != t.cas.expected {
			return migrator.ErrVersionConflict
		}
	}

	for _, item := range t.stagedItems {
		for _, existing := range t.store.items[item.WorkTable] {
			if existing.ResourceID == item.ResourceID {
				return migrator.ErrDuplicateWorkItem
			}
		}
	}

	t.store.executedDDL = append(t.store.executedDDL, t.stagedDDL...)
	for _, item := range t.stagedItems {
		if item.CreatedAt.IsZero() {
			item.CreatedAt = time.Now()
		}
		t.store.items[item.WorkTable] = append(t.store.items[item.WorkTable], item)
	}
	if t.cas != nil {
		t.store.config[store.VersionKey] = fmt.Sprintf("%d", t.cas.next)
	}

	return nil
}

func (t *tx) Rollback() error {
	t.done = true
	t.stagedDDL = nil
	t.stagedItems = nil
	t.cas = nil
	return nil
}
