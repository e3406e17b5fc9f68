package store

import (
	"context"
	"sync"

	migrator "github.com/getpup/schema-migrator"
)

// MockStore is a configurable mock implementation of Store for use in tests.
// It allows setting up expected return values, tracking method calls, and
// injecting errors for testing error paths.
type MockStore struct {
	mu sync.RWMutex

	// BootstrapFunc is called by Bootstrap if set.
	BootstrapFunc func(ctx context.Context, initialVersion int) error

	// CurrentVersionFunc is called by CurrentVersion if set.
	CurrentVersionFunc func(ctx context.Context) (int, error)

	// BeginFunc is called by Begin if set.
	BeginFunc func(ctx context.Context) (Tx, error)

	// ClaimWorkItemFunc is called by ClaimWorkItem if set.
	ClaimWorkItemFunc func(ctx context.Context, workTable string) (migrator.WorkItem, error)

	// CompleteWorkItemFunc is called by CompleteWorkItem if set.
	CompleteWorkItemFunc func(ctx context.Context, workTable, workID string) error

	// PendingWorkItemsFunc is called by PendingWorkItems if set.
	PendingWorkItemsFunc func(ctx context.Context, workTable string) ([]migrator.WorkItem, error)

	// Call tracking
	BootstrapCalls        []BootstrapCall
	CurrentVersionCalls   int
	BeginCalls            int
	ClaimWorkItemCalls    []ClaimWorkItemCall
	CompleteWorkItemCalls []CompleteWorkItemCall
	PendingWorkItemsCalls []PendingWorkItemsCall
}

// Call tracking structs
type BootstrapCall struct {
	InitialVersion int
}

type ClaimWorkItemCall struct {
	WorkTable string
}

type CompleteWorkItemCall struct {
	WorkTable string
	WorkID    string
}

type PendingWorkItemsCall struct {
	WorkTable string
}

// NewMockStore creates a new MockStore with no behavior configured.
// Unconfigured methods return zero values.
func NewMockStore() *MockStore {
	return &MockStore{}
}

func (m *MockStore) Bootstrap(ctx context.Context, initialVersion int) error {
	m.mu.Lock()
	m.BootstrapCalls = append(m.BootstrapCalls, BootstrapCall{InitialVersion: initialVersion})
	m.mu.Unlock()

	if m.BootstrapFunc != nil {
		return m.BootstrapFunc(ctx, initialVersion)
	}
	return nil
}

func (m *MockStore) CurrentVersion(ctx context.Context) (int, error) {
	m.mu.Lock()
	m.CurrentVersionCalls++
	m.mu.Unlock()

	if m.CurrentVersionFunc != nil {
		return m.CurrentVersionFunc(ctx)
	}
	return 0, nil
}

func (m *MockStore) Begin(ctx context.Context) (Tx, error) {
	m.mu.Lock()
	m.BeginCalls++
	m.mu.Unlock()

	if m.BeginFunc != nil {
		return m.BeginFunc(ctx)
	}
	return &MockTx{}, nil
}

func (m *MockStore) ClaimWorkItem(ctx context.Context, workTable string) (migrator.WorkItem, error) {
	m.mu.Lock()
	m.ClaimWorkItemCalls = append(m.ClaimWorkItemCalls, ClaimWorkItemCall{WorkTable: workTable})
	m.mu.Unlock()

	if m.ClaimWorkItemFunc != nil {
		return m.ClaimWorkItemFunc(ctx, workTable)
	}
	return migrator.WorkItem{}, migrator.ErrNoWorkAvailable
}

func (m *MockStore) CompleteWorkItem(ctx context.Context, workTable, workID string) error {
	m.mu.Lock()
	m.CompleteWorkItemCalls = append(m.CompleteWorkItemCalls, CompleteWorkItemCall{WorkTable: workTable, WorkID: workID})
	m.mu.Unlock()

	if m.CompleteWorkItemFunc != nil {
		return m.CompleteWorkItemFunc(ctx, workTable, workID)
	}
	return nil
}

func (m *MockStore) PendingWorkItems(ctx context.Context, workTable string) ([]migrator.WorkItem, error) {
	m.mu.Lock()
	m.PendingWorkItemsCalls = append(m.PendingWorkItemsCalls, PendingWorkItemsCall{WorkTable: workTable})
	m.mu.Unlock()

	if m.PendingWorkItemsFunc != nil {
		return m.PendingWorkItemsFunc(ctx, workTable)
	}
	return nil, nil
}

// MockTx is a configurable mock implementation of Tx for use in tests.
type MockTx struct {
	mu sync.RWMutex

	// CurrentVersionFunc is called by CurrentVersion if set.
	CurrentVersionFunc func(ctx context.Context) (int, error)

	// AdvanceVersionFunc is called by AdvanceVersion if set.
	AdvanceVersionFunc func(ctx context.Context, expected, next int) error

	// ExecFunc is called by Exec if set.
	ExecFunc func(ctx context.Context, stmt string) error

	// SelectResourceIDsFunc is called by SelectResourceIDs if set.
	SelectResourceIDsFunc func(ctx context.Context, spec migrator.BackfillSpec) ([]string, error)

	// WorkItemExistsFunc is called by WorkItemExists if set.
	WorkItemExistsFunc func(ctx context.Context, workTable, resourceID string) (bool, error)

	// InsertWorkItemFunc is called by InsertWorkItem if set.
	InsertWorkItemFunc func(ctx context.Context, item migrator.WorkItem) error

	// CommitFunc is called by Commit if set.
	CommitFunc func() error

	// RollbackFunc is called by Rollback if set.
	RollbackFunc func() error

	// Call tracking
	CurrentVersionCalls int
	AdvanceVersionCalls []AdvanceVersionCall
	ExecCalls           []string
	SelectCalls         []migrator.BackfillSpec
	WorkItemExistsCalls []WorkItemExistsCall
	InsertWorkItemCalls []migrator.WorkItem
	CommitCalls         int
	RollbackCalls       int
}

type AdvanceVersionCall struct {
	Expected int
	Next     int
}

type WorkItemExistsCall struct {
	WorkTable  string
	ResourceID string
}

func (t *MockTx) CurrentVersion(ctx context.Context) (int, error) {
	t.mu.Lock()
	t.CurrentVersionCalls++
	t.mu.Unlock()

	if t.CurrentVersionFunc != nil {
		return t.CurrentVersionFunc(ctx)
	}
	return 0, nil
}

func (t *MockTx) AdvanceVersion(ctx context.Context, expected, next int) error {
	t.mu.Lock()
	t.AdvanceVersionCalls = append(t.AdvanceVersionCalls, AdvanceVersionCall{Expected: expected, Next: next})
	t.mu.Unlock()

	if t.AdvanceVersionFunc != nil {
		return t.AdvanceVersionFunc(ctx, expected, next)
	}
	return nil
}

func (t *MockTx) Exec(ctx context.Context, stmt string) error {
	t.mu.Lock()
	t.ExecCalls = append(t.ExecCalls, stmt)
	t.mu.Unlock()

	if t.ExecFunc != nil {
		return t.ExecFunc(ctx, stmt)
	}
	return nil
}

func (t *MockTx) SelectResourceIDs(ctx context.Context, spec migrator.BackfillSpec) ([]string, error) {
	t.mu.Lock()
	t.SelectCalls = append(t.SelectCalls, spec)
	t.mu.Unlock()

	if t.SelectResourceIDsFunc != nil {
		return t.SelectResourceIDsFunc(ctx, spec)
	}
	return nil, nil
}

func (t *MockTx) WorkItemExists(ctx context.Context, workTable, resourceID string) (bool, error) {
	t.mu.Lock()
	t.WorkItemExistsCalls = append(t.WorkItemExistsCalls, WorkItemExistsCall{WorkTable: workTable, ResourceID: resourceID})
	t.mu.Unlock()

	if t.WorkItemExistsFunc != nil {
		return t.WorkItemExistsFunc(ctx, workTable, resourceID)
	}
	return false, nil
}

func (t *MockTx) InsertWorkItem(ctx context.Context, item migrator.WorkItem) error {
	t.mu.Lock()
	t.InsertWorkItemCalls = append(t.InsertWorkItemCalls, item)
	t.mu.Unlock()

	if t.InsertWorkItemFunc != nil {
		return t.InsertWorkItemFunc(ctx, item)
	}
	return nil
}

func (t *MockTx) Commit() error {
	t.mu.Lock()
	t.CommitCalls++
	t.mu.Unlock()

	if t.CommitFunc != nil {
		return t.CommitFunc()
	}
	return nil
}

func (t *MockTx) Rollback() error {
	t.mu.Lock()
	t.RollbackCalls++
	t.mu.Unlock()

	if t.RollbackFunc != nil {
		return t.RollbackFunc()
	}
	return nil
}
