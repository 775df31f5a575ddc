package dispatch

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJobStoreIdempotencyIndex(t *testing.T) {
	store := NewMemoryJobStore()
	require.NoError(t, store.CreateJob(&Job{
		ID:             "job-1",
		Queue:          QueueRender,
		IdempotencyKey: "rep-1:render",
		Status:         JobStatusPending,
		CreatedAt:      time.Now().UTC(),
	}))

	found, err := store.FindByIdempotencyKey("rep-1:render")
	require.NoError(t, err)
	require.NotNil(t, found)
	assert.Equal(t, "job-1", found.ID)

	missing, err := store.FindByIdempotencyKey("rep-2:render")
	require.NoError(t, err)
	assert.Nil(t, missing)

	// Deleting the job releases its key
	require.NoError(t, store.DeleteJob("job-1"))
	found, err = store.FindByIdempotencyKey("rep-1:render")
	require.NoError(t, err)
	assert.Nil(t, found)
}

func TestJobStoreReturnsCopies(t *testing.T) {
	store := NewMemoryJobStore()
	require.NoError(t, store.CreateJob(&Job{
		ID:        "job-1",
		Queue:     QueueRender,
		Status:    JobStatusPending,
		CreatedAt: time.Now().UTC(),
	}))

	first, err := store.GetJob("job-1")
	require.NoError(t, err)
	first.Status = JobStatusDead

	second, err := store.GetJob("job-1")
	require.NoError(t, err)
	assert.Equal(t, JobStatusPending, second.Status)
}

func TestJobStoreListFilters(t *testing.T) {
	store := NewMemoryJobStore()
	now := time.Now().UTC()

	require.NoError(t, store.CreateJob(&Job{ID: "a", Queue: QueueRender, Status: JobStatusPending, CreatedAt: now}))
	require.NoError(t, store.CreateJob(&Job{ID: "b", Queue: QueueAnalysis, Status: JobStatusDead, CreatedAt: now}))
	require.NoError(t, store.CreateJob(&Job{ID: "c", Queue: QueueRender, Status: JobStatusDead, CreatedAt: now.Add(-2 * time.Hour)}))

	dead, err := store.ListJobs(JobFilter{Status: JobStatusDead})
	require.NoError(t, err)
	assert.Len(t, dead, 2)

	renderDead, err := store.ListJobs(JobFilter{Queue: QueueRender, Status: JobStatusDead})
	require.NoError(t, err)
	require.Len(t, renderDead, 1)
	assert.Equal(t, "c", renderDead[0].ID)

	recent, err := store.ListJobs(JobFilter{Since: now.Add(-time.Hour)})
	require.NoError(t, err)
	assert.Len(t, recent, 2)
}

func TestJobStoreCleanupOldJobs(t *testing.T) {
	store := NewMemoryJobStore()
	old := time.Now().UTC().Add(-48 * time.Hour)

	require.NoError(t, store.CreateJob(&Job{ID: "done-old", Status: JobStatusCompleted, CreatedAt: old, IdempotencyKey: "k1"}))
	require.NoError(t, store.CreateJob(&Job{ID: "dead-old", Status: JobStatusDead, CreatedAt: old}))
	require.NoError(t, store.CreateJob(&Job{ID: "pending-old", Status: JobStatusPending, CreatedAt: old}))
	require.NoError(t, store.CreateJob(&Job{ID: "done-new", Status: JobStatusCompleted, CreatedAt: time.Now().UTC()}))

	deleted, err := store.CleanupOldJobs(24 * time.Hour)
	require.NoError(t, err)
	assert.Equal(t, 2, deleted)

	// Pending jobs are never cleaned up regardless of age
	_, err = store.GetJob("pending-old")
	assert.NoError(t, err)

	_, err = store.GetJob("done-new")
	assert.NoError(t, err)

	// Cleaned job released its idempotency key
	found, err := store.FindByIdempotencyKey("k1")
	require.NoError(t, err)
	assert.Nil(t, found)
}
