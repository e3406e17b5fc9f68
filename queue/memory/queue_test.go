package memory

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	migrator "github.com/getpup/schema-migrator"
)

func TestEnqueue_ReturnsDistinctHandles(t *testing.T) {
	ctx := context.Background()
	q := New()

	payload := migrator.JobPayload{
		WorkTable:   "calendar_object_upgrade_work",
		Description: "rewrite calendar objects",
	}

	first, err := q.Enqueue(ctx, payload)
	require.NoError(t, err)
	second, err := q.Enqueue(ctx, payload)
	require.NoError(t, err)

	assert.NotEmpty(t, first)
	assert.NotEmpty(t, second)
	assert.NotEqual(t, first, second)
}

func TestJobs_PreservesOrderAndPayloads(t *testing.T) {
	ctx := context.Background()
	q := New()

	a, err := q.Enqueue(ctx, migrator.JobPayload{WorkTable: "wt_a", Description: "first"})
	require.NoError(t, err)
	b, err := q.Enqueue(ctx, migrator.JobPayload{WorkTable: "wt_b", Description: "second"})
	require.NoError(t, err)

	jobs := q.Jobs()
	require.Len(t, jobs, 2)
	assert.Equal(t, a, jobs[0].ID)
	assert.Equal(t, "wt_a", jobs[0].Payload.WorkTable)
	assert.Equal(t, b, jobs[1].ID)
	assert.Equal(t, "second", jobs[1].Payload.Description)
}
