package memory

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	migrator "github.com/getpup/schema-migrator"
)

func TestBootstrap_SeedsVersionOnce(t *testing.T) {
	ctx := context.Background()
	s := New()

	require.NoError(t, s.Bootstrap(ctx, 44))

	v, err := s.CurrentVersion(ctx)
	require.NoError(t, err)
	assert.Equal(t, 44, v)

	// Re-bootstrapping must not rewind an existing ledger.
	require.NoError(t, s.Bootstrap(ctx, 1))

	v, err = s.CurrentVersion(ctx)
	require.NoError(t, err)
	assert.Equal(t, 44, v)
}

func TestCurrentVersion_NotBootstrapped(t *testing.T) {
	s := New()

	_, err := s.CurrentVersion(context.Background())
	assert.ErrorIs(t, err, migrator.ErrNotBootstrapped)
}

func TestTx_CommitAppliesStagedWrites(t *testing.T) {
	ctx := context.Background()
	s := New()
	require.NoError(t, s.Bootstrap(ctx, 44))

	tx, err := s.Begin(ctx)
	require.NoError(t, err)

	require.NoError(t, tx.Exec(ctx, "ALTER TABLE calendar_object ADD COLUMN dataversion INTEGER"))
	require.NoError(t, tx.AdvanceVersion(ctx, 44, 45))

	// Nothing is visible until Commit.
	assert.Empty(t, s.ExecutedDDL())
	v, err := s.CurrentVersion(ctx)
	require.NoError(t, err)
	assert.Equal(t, 44, v)

	require.NoError(t, tx.Commit())

	assert.Equal(t, []string{"ALTER TABLE calendar_object ADD COLUMN dataversion INTEGER"}, s.ExecutedDDL())
	v, err = s.CurrentVersion(ctx)
	require.NoError(t, err)
	assert.Equal(t, 45, v)
}

func TestTx_RollbackDiscardsStagedWrites(t *testing.T) {
	ctx := context.Background()
	s := New()
	require.NoError(t, s.Bootstrap(ctx, 44))

	tx, err := s.Begin(ctx)
	require.NoError(t, err)

	require.NoError(t, tx.Exec(ctx, "CREATE TABLE group_attendee (group_id TEXT)"))
	require.NoError(t, tx.AdvanceVersion(ctx, 44, 45))
	require.NoError(t, tx.Rollback())

	assert.Empty(t, s.ExecutedDDL())
	v, err := s.CurrentVersion(ctx)
	require.NoError(t, err)
	assert.Equal(t, 44, v)
}

func TestTx_AdvanceVersionWrongExpected(t *testing.T) {
	ctx := context.Background()
	s := New()
	require.NoError(t, s.Bootstrap(ctx, 44))

	tx, err := s.Begin(ctx)
	require.NoError(t, err)
	defer tx.Rollback()

	assert.ErrorIs(t, tx.AdvanceVersion(ctx, 43, 44), migrator.ErrVersionConflict)
}

func TestTx_OverlappingCommitsFirstWins(t *testing.T) {
	ctx := context.Background()
	s := New()
	require.NoError(t, s.Bootstrap(ctx, 44))

	// Both transactions snapshot version 44 before either commits.
	tx1, err := s.Begin(ctx)
	require.NoError(t, err)
	tx2, err := s.Begin(ctx)
	require.NoError(t, err)

	require.NoError(t, tx1.Exec(ctx, "ALTER TABLE a ADD COLUMN x INTEGER"))
	require.NoError(t, tx1.AdvanceVersion(ctx, 44, 45))
	require.NoError(t, tx2.Exec(ctx, "ALTER TABLE a ADD COLUMN x INTEGER"))
	require.NoError(t, tx2.AdvanceVersion(ctx, 44, 45))

	require.NoError(t, tx1.Commit())
	assert.ErrorIs(t, tx2.Commit(), migrator.ErrVersionConflict)

	// Only the winner's writes landed.
	v, err := s.CurrentVersion(ctx)
	require.NoError(t, err)
	assert.Equal(t, 45, v)
	assert.Len(t, s.ExecutedDDL(), 1)
}

func TestTx_InsertWorkItemRejectsDuplicates(t *testing.T) {
	ctx := context.Background()
	s := New()
	require.NoError(t, s.Bootstrap(ctx, 44))

	tx, err := s.Begin(ctx)
	require.NoError(t, err)

	item := migrator.WorkItem{
		ID:         "w-1",
		JobID:      "job-1",
		ResourceID: "event-1",
		WorkTable:  "calendar_object_upgrade_work",
		State:      migrator.WorkItemStateCreated,
	}
	require.NoError(t, tx.InsertWorkItem(ctx, item))

	// Same resource staged twice in one transaction.
	dup := item
	dup.ID = "w-2"
	assert.ErrorIs(t, tx.InsertWorkItem(ctx, dup), migrator.ErrDuplicateWorkItem)

	require.NoError(t, tx.Commit())

	// Same resource in a later transaction.
	tx2, err := s.Begin(ctx)
	require.NoError(t, err)
	defer tx2.Rollback()
	assert.ErrorIs(t, tx2.InsertWorkItem(ctx, dup), migrator.ErrDuplicateWorkItem)

	assert.Len(t, s.WorkItems("calendar_object_upgrade_work"), 1)
}

func TestTx_WorkItemExists(t *testing.T) {
	ctx := context.Background()
	s := New()
	require.NoError(t, s.Bootstrap(ctx, 44))

	tx, err := s.Begin(ctx)
	require.NoError(t, err)

	exists, err := tx.WorkItemExists(ctx, "wt", "event-1")
	require.NoError(t, err)
	assert.False(t, exists)

	require.NoError(t, tx.InsertWorkItem(ctx, migrator.WorkItem{
		ID:         "w-1",
		ResourceID: "event-1",
		WorkTable:  "wt",
		State:      migrator.WorkItemStateCreated,
	}))

	// Staged items are visible inside the transaction before Commit.
	exists, err = tx.WorkItemExists(ctx, "wt", "event-1")
	require.NoError(t, err)
	assert.True(t, exists)

	require.NoError(t, tx.Commit())

	tx2, err := s.Begin(ctx)
	require.NoError(t, err)
	defer tx2.Rollback()

	exists, err = tx2.WorkItemExists(ctx, "wt", "event-1")
	require.NoError(t, err)
	assert.True(t, exists)

	exists, err = tx2.WorkItemExists(ctx, "wt", "event-2")
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestDeleteResource_CascadesToWorkItems(t *testing.T) {
	ctx := context.Background()
	s := New()
	require.NoError(t, s.Bootstrap(ctx, 44))
	s.InsertResources("calendar_object", "event-1", "event-2")
	s.BindWorkTable("calendar_object_upgrade_work", "calendar_object")

	tx, err := s.Begin(ctx)
	require.NoError(t, err)
	for i, resource := range []string{"event-1", "event-2"} {
		require.NoError(t, tx.InsertWorkItem(ctx, migrator.WorkItem{
			ID:         "w-" + resource,
			JobID:      "job-" + resource,
			ResourceID: resource,
			WorkTable:  "calendar_object_upgrade_work",
			State:      migrator.WorkItemStateCreated,
			CreatedAt:  time.Now().Add(time.Duration(i) * time.Millisecond),
		}))
	}
	require.NoError(t, tx.Commit())

	s.DeleteResource("calendar_object", "event-1")

	items := s.WorkItems("calendar_object_upgrade_work")
	require.Len(t, items, 1)
	assert.Equal(t, "event-2", items[0].ResourceID)
}

func TestClaimWorkItem_Lifecycle(t *testing.T) {
	ctx := context.Background()
	s := New()
	require.NoError(t, s.Bootstrap(ctx, 44))

	tx, err := s.Begin(ctx)
	require.NoError(t, err)
	require.NoError(t, tx.InsertWorkItem(ctx, migrator.WorkItem{
		ID:         "w-1",
		ResourceID: "event-1",
		WorkTable:  "wt",
		State:      migrator.WorkItemStateCreated,
	}))
	require.NoError(t, tx.Commit())

	claimed, err := s.ClaimWorkItem(ctx, "wt")
	require.NoError(t, err)
	assert.Equal(t, "w-1", claimed.ID)
	assert.Equal(t, migrator.WorkItemStateClaimed, claimed.State)

	// A claimed item cannot be claimed again.
	_, err = s.ClaimWorkItem(ctx, "wt")
	assert.ErrorIs(t, err, migrator.ErrNoWorkAvailable)

	pending, err := s.PendingWorkItems(ctx, "wt")
	require.NoError(t, err)
	assert.Len(t, pending, 1)

	require.NoError(t, s.CompleteWorkItem(ctx, "wt", "w-1"))

	pending, err = s.PendingWorkItems(ctx, "wt")
	require.NoError(t, err)
	assert.Empty(t, pending)
}

func TestCompleteWorkItem_UnknownID(t *testing.T) {
	s := New()

	err := s.CompleteWorkItem(context.Background(), "wt", "missing")
	assert.ErrorIs(t, err, migrator.ErrWorkItemNotFound)
}
