package backfill

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	migrator "github.com/getpup/schema-migrator"
	storememory "github.com/getpup/schema-migrator/store/memory"
)

func seedWorkItems(t *testing.T, st *storememory.Store, workTable string, resources ...string) {
	t.Helper()

	ctx := context.Background()
	require.NoError(t, st.Bootstrap(ctx, 1))

	tx, err := st.Begin(ctx)
	require.NoError(t, err)
	for _, resource := range resources {
		require.NoError(t, tx.InsertWorkItem(ctx, migrator.WorkItem{
			ID:         "w-" + resource,
			JobID:      "job-" + resource,
			ResourceID: resource,
			WorkTable:  workTable,
			State:      migrator.WorkItemStateCreated,
		}))
	}
	require.NoError(t, tx.Commit())
}

func TestDrain_CompletesAllItemsExactlyOnce(t *testing.T) {
	ctx := context.Background()
	st := storememory.New()
	seedWorkItems(t, st, "wt", "event-1", "event-2", "event-3", "event-4", "event-5")

	var mu sync.Mutex
	handled := make(map[string]int)

	pool := New(Config{
		Store:     st,
		WorkTable: "wt",
		Handler: HandlerFunc(func(ctx context.Context, item migrator.WorkItem) error {
			mu.Lock()
			handled[item.ResourceID]++
			mu.Unlock()
			return nil
		}),
		Workers: 3,
	})

	require.NoError(t, pool.Drain(ctx))

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, handled, 5)
	for resource, count := range handled {
		assert.Equal(t, 1, count, "resource %s handled more than once", resource)
	}

	pending, err := st.PendingWorkItems(ctx, "wt")
	require.NoError(t, err)
	assert.Empty(t, pending)
}

func TestDrain_HandlerFailureLeavesItemUnfinished(t *testing.T) {
	ctx := context.Background()
	st := storememory.New()
	seedWorkItems(t, st, "wt", "event-1", "event-2")

	pool := New(Config{
		Store:     st,
		WorkTable: "wt",
		Handler: HandlerFunc(func(ctx context.Context, item migrator.WorkItem) error {
			if item.ResourceID == "event-1" {
				return errors.New("resource data is malformed")
			}
			return nil
		}),
		Workers: 1,
	})

	err := pool.Drain(ctx)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "1 work items failed")

	// The failed item stays claimed for an external retry; the good one completed.
	pending, perr := st.PendingWorkItems(ctx, "wt")
	require.NoError(t, perr)
	require.Len(t, pending, 1)
	assert.Equal(t, "event-1", pending[0].ResourceID)
	assert.Equal(t, migrator.WorkItemStateClaimed, pending[0].State)
}

func TestRun_StopsOnContextCancel(t *testing.T) {
	st := storememory.New()
	require.NoError(t, st.Bootstrap(context.Background(), 1))

	pool := New(Config{
		Store:     st,
		WorkTable: "wt",
		Handler: HandlerFunc(func(ctx context.Context, item migrator.WorkItem) error {
			return nil
		}),
		Workers:      2,
		PollInterval: 10 * time.Millisecond,
	})

	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() {
		done <- pool.Run(ctx)
	}()

	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("pool did not stop after context cancellation")
	}
}

func TestRun_PicksUpLateWork(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	st := storememory.New()
	require.NoError(t, st.Bootstrap(ctx, 1))

	handled := make(chan string, 1)
	pool := New(Config{
		Store:     st,
		WorkTable: "wt",
		Handler: HandlerFunc(func(ctx context.Context, item migrator.WorkItem) error {
			handled <- item.ResourceID
			return nil
		}),
		Workers:      1,
		PollInterval: 5 * time.Millisecond,
	})

	done := make(chan error, 1)
	go func() {
		done <- pool.Run(ctx)
	}()

	// Work arrives after the pool is already polling.
	tx, err := st.Begin(ctx)
	require.NoError(t, err)
	require.NoError(t, tx.InsertWorkItem(ctx, migrator.WorkItem{
		ID:         "w-1",
		ResourceID: "event-late",
		WorkTable:  "wt",
		State:      migrator.WorkItemStateCreated,
	}))
	require.NoError(t, tx.Commit())

	select {
	case resource := <-handled:
		assert.Equal(t, "event-late", resource)
	case <-time.After(2 * time.Second):
		t.Fatal("pool never picked up the late work item")
	}

	cancel()
	assert.NoError(t, <-done)
}
