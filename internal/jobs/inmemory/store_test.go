package inmemory

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/dvloznov/expense-tracker/internal/jobs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStore_SaveAndGetCopies(t *testing.T) {
	ctx := context.Background()
	s := NewStore()

	job := &jobs.Job{JobID: "j1", UserID: "u1", Status: jobs.JobStatusPending}
	require.NoError(t, s.SaveJob(ctx, job))

	job.Status = jobs.JobStatusRunning
	got, err := s.GetJob(ctx, "j1")
	require.NoError(t, err)
	assert.Equal(t, jobs.JobStatusPending, got.Status)

	got.Status = jobs.JobStatusFailed
	again, err := s.GetJob(ctx, "j1")
	require.NoError(t, err)
	assert.Equal(t, jobs.JobStatusPending, again.Status)
}

func TestStore_Errors(t *testing.T) {
	ctx := context.Background()
	s := NewStore()

	assert.Error(t, s.SaveJob(ctx, &jobs.Job{}))

	_, err := s.GetJob(ctx, "missing")
	assert.ErrorIs(t, err, jobs.ErrJobNotFound)

	err = s.UpdateJobStatus(ctx, "missing", jobs.JobStatusFailed, "boom")
	assert.ErrorIs(t, err, jobs.ErrJobNotFound)
}

func TestStore_ListJobs(t *testing.T) {
	ctx := context.Background()
	s := NewStore()
	base := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)

	for i := 0; i < 5; i++ {
		typ := jobs.JobTypeIngestMessage
		if i%2 == 1 {
			typ = jobs.JobTypeExportEntry
		}
		require.NoError(t, s.SaveJob(ctx, &jobs.Job{
			JobID:     fmt.Sprintf("j%d", i),
			Type:      typ,
			UserID:    "u1",
			Status:    jobs.JobStatusCompleted,
			CreatedAt: base.Add(time.Duration(i) * time.Minute),
		}))
	}
	require.NoError(t, s.SaveJob(ctx, &jobs.Job{JobID: "other", UserID: "u2", CreatedAt: base}))
	require.NoError(t, s.UpdateJobStatus(ctx, "j4", jobs.JobStatusFailed, "boom"))

	all, err := s.ListJobs(ctx, jobs.JobFilter{UserID: "u1"})
	require.NoError(t, err)
	require.Len(t, all, 5)
	assert.Equal(t, "j4", all[0].JobID, "newest first")
	assert.Equal(t, "boom", all[0].Error)

	ingest, err := s.ListJobs(ctx, jobs.JobFilter{UserID: "u1", Type: jobs.JobTypeIngestMessage})
	require.NoError(t, err)
	assert.Len(t, ingest, 3)

	failed, err := s.ListJobs(ctx, jobs.JobFilter{Status: jobs.JobStatusFailed})
	require.NoError(t, err)
	assert.Len(t, failed, 1)

	page, err := s.ListJobs(ctx, jobs.JobFilter{UserID: "u1", Limit: 2, Offset: 1})
	require.NoError(t, err)
	require.Len(t, page, 2)
	assert.Equal(t, "j3", page[0].JobID)

	empty, err := s.ListJobs(ctx, jobs.JobFilter{UserID: "u1", Offset: 10})
	require.NoError(t, err)
	assert.Empty(t, empty)
}
