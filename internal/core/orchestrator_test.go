package core

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeStager struct {
	staged []string
	err    error
}

func (f *fakeStager) Stage(localPath string) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	f.staged = append(f.staged, localPath)
	return "/remote/spool/" + localPath, nil
}

func newTestOrchestrator(executor Executor, stager Stager) (*Orchestrator, *JobStore, *Bus) {
	bus := NewBus(100)
	store := NewJobStore(nil, bus)
	source := func() (Stager, error) {
		if stager == nil {
			return nil, fmt.Errorf("no session")
		}
		return stager, nil
	}
	return NewOrchestrator(store, executor, source, bus), store, bus
}

func submitOutput(id string) string {
	return fmt.Sprintf("request id is %s (1 file(s))\n", id)
}

func TestOrchestrator_SubmitSingleCopy(t *testing.T) {
	executor := &fakeExecutor{
		respond: func(command string) (string, error) {
			return submitOutput("labprint-1"), nil
		},
	}
	stager := &fakeStager{}
	orchestrator, store, _ := newTestOrchestrator(executor, stager)

	jobs, result, err := orchestrator.Submit(context.Background(), "doc.pdf", "labprint", DefaultSettings())
	require.NoError(t, err)
	require.Len(t, jobs, 1)
	assert.Equal(t, 1, result.SuccessCount)
	assert.Equal(t, 0, result.FailureCount)

	job, err := store.Get(jobs[0].ID)
	require.NoError(t, err)
	assert.Equal(t, JobStatusQueued, job.Status)
	assert.Equal(t, "labprint-1", job.RemoteID)
	assert.Equal(t, "doc.pdf", job.Name)

	require.Len(t, stager.staged, 1)
	require.Len(t, executor.calls, 1)
	assert.True(t, strings.HasPrefix(executor.calls[0], "lp "))
	assert.Contains(t, executor.calls[0], "-d labprint")
}

func TestOrchestrator_SubmitFansOutCopies(t *testing.T) {
	n := 0
	executor := &fakeExecutor{
		respond: func(command string) (string, error) {
			n++
			return submitOutput(fmt.Sprintf("labprint-%d", n)), nil
		},
	}
	orchestrator, store, _ := newTestOrchestrator(executor, &fakeStager{})

	settings := DefaultSettings()
	settings.Copies = 3

	jobs, result, err := orchestrator.Submit(context.Background(), "doc.pdf", "labprint", settings)
	require.NoError(t, err)
	require.Len(t, jobs, 3)
	assert.Equal(t, 3, result.SuccessCount)

	remoteIDs := make(map[string]bool)
	for i, created := range jobs {
		job, err := store.Get(created.ID)
		require.NoError(t, err)

		// Each copy is its own single-copy job with a distinct remote id.
		assert.Equal(t, 1, job.Settings.Copies)
		assert.Equal(t, fmt.Sprintf("doc.pdf (copy %d/3)", i+1), job.Name)
		assert.Equal(t, JobStatusQueued, job.Status)
		remoteIDs[job.RemoteID] = true
	}
	assert.Len(t, remoteIDs, 3)

	for _, command := range executor.calls {
		assert.Contains(t, command, "-n 1")
	}
}

func TestOrchestrator_SubmitPartialFailure(t *testing.T) {
	n := 0
	executor := &fakeExecutor{
		respond: func(command string) (string, error) {
			n++
			if n == 2 {
				return "", fmt.Errorf("lp: queue rejected the job")
			}
			return submitOutput(fmt.Sprintf("labprint-%d", n)), nil
		},
	}
	orchestrator, store, _ := newTestOrchestrator(executor, &fakeStager{})

	settings := DefaultSettings()
	settings.Copies = 3

	jobs, result, err := orchestrator.Submit(context.Background(), "doc.pdf", "labprint", settings)
	require.Error(t, err)

	var submitErr *SubmitError
	require.ErrorAs(t, err, &submitErr)
	assert.Equal(t, 2, submitErr.SuccessCount)
	assert.Equal(t, 1, submitErr.FailureCount)
	assert.Equal(t, []int{2}, submitErr.FailedCopies)

	assert.Equal(t, 2, result.SuccessCount)
	assert.Equal(t, 1, result.FailureCount)

	failed, err := store.Get(jobs[1].ID)
	require.NoError(t, err)
	assert.Equal(t, JobStatusFailed, failed.Status)
	assert.Contains(t, failed.ErrorMessage, "queue rejected")

	// The copies around the failed one are unaffected.
	first, _ := store.Get(jobs[0].ID)
	third, _ := store.Get(jobs[2].ID)
	assert.Equal(t, JobStatusQueued, first.Status)
	assert.Equal(t, JobStatusQueued, third.Status)
}

func TestOrchestrator_StagingFailureStopsJob(t *testing.T) {
	executor := &fakeExecutor{}
	stager := &fakeStager{err: fmt.Errorf("sftp: permission denied")}
	orchestrator, store, _ := newTestOrchestrator(executor, stager)

	jobs, _, err := orchestrator.Submit(context.Background(), "doc.pdf", "labprint", DefaultSettings())
	require.Error(t, err)

	job, getErr := store.Get(jobs[0].ID)
	require.NoError(t, getErr)
	assert.Equal(t, JobStatusFailed, job.Status)
	assert.Contains(t, job.ErrorMessage, "permission denied")

	// The submit command is never issued for a file that failed to stage.
	assert.Equal(t, 0, executor.callCount())
}

func TestOrchestrator_NoSessionFailsJob(t *testing.T) {
	executor := &fakeExecutor{}
	orchestrator, store, _ := newTestOrchestrator(executor, nil)

	jobs, _, err := orchestrator.Submit(context.Background(), "doc.pdf", "labprint", DefaultSettings())
	require.Error(t, err)

	job, getErr := store.Get(jobs[0].ID)
	require.NoError(t, getErr)
	assert.Equal(t, JobStatusFailed, job.Status)
}

func TestOrchestrator_CancelPendingIsLocal(t *testing.T) {
	executor := &fakeExecutor{}
	orchestrator, store, _ := newTestOrchestrator(executor, &fakeStager{})

	job := NewJob("doc.pdf", "/tmp/doc.pdf", "labprint", DefaultSettings())
	require.NoError(t, store.Create(job))

	require.NoError(t, orchestrator.Cancel(context.Background(), job.ID))

	got, err := store.Get(job.ID)
	require.NoError(t, err)
	assert.Equal(t, JobStatusCancelled, got.Status)

	// No remote id was ever captured, so no remote command is issued.
	assert.Equal(t, 0, executor.callCount())
}

func TestOrchestrator_CancelQueuedIssuesRemoteCancel(t *testing.T) {
	executor := &fakeExecutor{}
	orchestrator, store, _ := newTestOrchestrator(executor, &fakeStager{})

	job := NewJob("doc.pdf", "/tmp/doc.pdf", "labprint", DefaultSettings())
	job.Status = JobStatusQueued
	job.RemoteID = "labprint-42"
	store.Load([]*PrintJob{job})

	require.NoError(t, orchestrator.Cancel(context.Background(), job.ID))

	got, _ := store.Get(job.ID)
	assert.Equal(t, JobStatusCancelled, got.Status)

	require.Len(t, executor.calls, 1)
	assert.Equal(t, "cancel labprint-42", executor.calls[0])
}

func TestOrchestrator_CancelFailureRecordsError(t *testing.T) {
	executor := &fakeExecutor{
		respond: func(command string) (string, error) {
			return "", fmt.Errorf("not connected to remote host")
		},
	}
	orchestrator, store, _ := newTestOrchestrator(executor, &fakeStager{})

	job := NewJob("doc.pdf", "/tmp/doc.pdf", "labprint", DefaultSettings())
	job.Status = JobStatusQueued
	job.RemoteID = "labprint-42"
	store.Load([]*PrintJob{job})

	err := orchestrator.Cancel(context.Background(), job.ID)
	require.Error(t, err)

	got, _ := store.Get(job.ID)
	assert.Equal(t, JobStatusFailed, got.Status)
	assert.Contains(t, got.ErrorMessage, "not connected")
}

func TestOrchestrator_CancelTerminalRejected(t *testing.T) {
	orchestrator, store, _ := newTestOrchestrator(&fakeExecutor{}, &fakeStager{})

	job := NewJob("doc.pdf", "/tmp/doc.pdf", "labprint", DefaultSettings())
	job.Status = JobStatusCompleted
	store.Load([]*PrintJob{job})

	err := orchestrator.Cancel(context.Background(), job.ID)
	assert.ErrorIs(t, err, ErrJobTerminal)
}

func TestOrchestrator_SnapshotDrivesTracking(t *testing.T) {
	_, store, bus := newTestOrchestrator(&fakeExecutor{}, &fakeStager{})

	job := NewJob("doc.pdf", "/tmp/doc.pdf", "labprint", DefaultSettings())
	job.Status = JobStatusQueued
	job.RemoteID = "labprint-42"
	store.Load([]*PrintJob{job})

	// Present in the pending listing: being worked on.
	bus.Publish(Event{Type: EventSnapshotPublished, Snapshot: &QueueSnapshot{
		Queue:       "labprint",
		RefreshedAt: time.Now(),
		Entries:     []QueueEntry{{RemoteID: "labprint-42"}},
	}})

	got, _ := store.Get(job.ID)
	assert.Equal(t, JobStatusPrinting, got.Status)

	// Gone from the listing: left the queue, treated as completed.
	bus.Publish(Event{Type: EventSnapshotPublished, Snapshot: &QueueSnapshot{
		Queue:       "labprint",
		RefreshedAt: time.Now(),
	}})

	got, _ = store.Get(job.ID)
	assert.Equal(t, JobStatusCompleted, got.Status)
}

func TestOrchestrator_ErroredSnapshotProvesNothing(t *testing.T) {
	_, store, bus := newTestOrchestrator(&fakeExecutor{}, &fakeStager{})

	job := NewJob("doc.pdf", "/tmp/doc.pdf", "labprint", DefaultSettings())
	job.Status = JobStatusQueued
	job.RemoteID = "labprint-42"
	store.Load([]*PrintJob{job})

	// An empty listing that failed must not complete the job.
	bus.Publish(Event{Type: EventSnapshotPublished, Snapshot: &QueueSnapshot{
		Queue: "labprint",
		Error: "exit status 1",
	}})

	got, _ := store.Get(job.ID)
	assert.Equal(t, JobStatusQueued, got.Status)
}

func TestOrchestrator_StaleSnapshotDoesNotComplete(t *testing.T) {
	_, store, bus := newTestOrchestrator(&fakeExecutor{}, &fakeStager{})

	job := NewJob("doc.pdf", "/tmp/doc.pdf", "labprint", DefaultSettings())
	job.Status = JobStatusQueued
	job.RemoteID = "labprint-42"
	store.Load([]*PrintJob{job})

	// A listing captured before the job's submit finished cannot show
	// the remote id; its absence there proves nothing.
	bus.Publish(Event{Type: EventSnapshotPublished, Snapshot: &QueueSnapshot{
		Queue:       "labprint",
		RefreshedAt: job.UpdatedAt.Add(-time.Minute),
	}})

	got, _ := store.Get(job.ID)
	assert.Equal(t, JobStatusQueued, got.Status)

	// The next listing taken after the transition completes the job.
	bus.Publish(Event{Type: EventSnapshotPublished, Snapshot: &QueueSnapshot{
		Queue:       "labprint",
		RefreshedAt: time.Now(),
	}})

	got, _ = store.Get(job.ID)
	assert.Equal(t, JobStatusCompleted, got.Status)
}

func TestOrchestrator_SnapshotIgnoresOtherQueues(t *testing.T) {
	_, store, bus := newTestOrchestrator(&fakeExecutor{}, &fakeStager{})

	job := NewJob("doc.pdf", "/tmp/doc.pdf", "labprint", DefaultSettings())
	job.Status = JobStatusQueued
	job.RemoteID = "labprint-42"
	store.Load([]*PrintJob{job})

	bus.Publish(Event{Type: EventSnapshotPublished, Snapshot: &QueueSnapshot{
		Queue: "other",
	}})

	got, _ := store.Get(job.ID)
	assert.Equal(t, JobStatusQueued, got.Status)
}
