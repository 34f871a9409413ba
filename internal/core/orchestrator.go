package core

import (
	"context"
	"fmt"
	"log"
	"path/filepath"
	"sync"
)

// Stager makes a local file reachable by the remote shell and returns
// the remote path.
type Stager interface {
	Stage(localPath string) (string, error)
}

// StagerSource hands out the stager for the current session, or an
// error when no session is live. The stager is recreated on every
// reconnect, so the orchestrator never holds one across connections.
type StagerSource func() (Stager, error)

// SubmitResult summarizes a multi-copy submission. The caller-facing
// result is a success only when FailureCount is zero.
type SubmitResult struct {
	SuccessCount int   `json:"success_count"`
	FailureCount int   `json:"failure_count"`
	FailedCopies []int `json:"failed_copies,omitempty"`
}

// Orchestrator drives each print job through the remote pipeline:
// stage the file, submit it, then track the remote job through queue
// snapshots. It owns transition legality; the store only records.
type Orchestrator struct {
	store    *JobStore
	executor Executor
	stagers  StagerSource

	// transitionMu serializes status transitions so a concurrent cancel
	// and pipeline step cannot interleave their check-then-update.
	transitionMu sync.Mutex
}

func NewOrchestrator(store *JobStore, executor Executor, stagers StagerSource, bus *Bus) *Orchestrator {
	o := &Orchestrator{
		store:    store,
		executor: executor,
		stagers:  stagers,
	}
	if bus != nil {
		bus.Subscribe(func(event Event) {
			if event.Type == EventSnapshotPublished && event.Snapshot != nil {
				o.applySnapshot(*event.Snapshot)
			}
		})
	}
	return o
}

// Submit fans a request for N copies out into N independent
// single-copy submissions, so copy k can fail, complete, or be
// cancelled without affecting the rest. All created jobs are returned
// alongside the aggregate result; the error is a SubmitError when any
// copy failed.
func (o *Orchestrator) Submit(ctx context.Context, filePath, queue string, settings PrintSettings) ([]*PrintJob, SubmitResult, error) {
	copies := settings.Copies
	if copies < 1 {
		copies = 1
	}

	perCopy := settings
	perCopy.Copies = 1

	jobs := make([]*PrintJob, 0, copies)
	for i := 0; i < copies; i++ {
		name := filepath.Base(filePath)
		if copies > 1 {
			name = fmt.Sprintf("%s (copy %d/%d)", name, i+1, copies)
		}
		job := NewJob(name, filePath, queue, perCopy)
		if err := o.store.Create(job); err != nil {
			return jobs, SubmitResult{}, err
		}
		jobs = append(jobs, job)
	}

	result := SubmitResult{}
	var firstErr error
	for i, job := range jobs {
		if err := o.runJob(ctx, job.ID); err != nil {
			result.FailureCount++
			result.FailedCopies = append(result.FailedCopies, i+1)
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		result.SuccessCount++
	}

	if result.FailureCount > 0 {
		return jobs, result, &SubmitError{
			SuccessCount:  result.SuccessCount,
			FailureCount:  result.FailureCount,
			FailedCopies:  result.FailedCopies,
			FirstCauseErr: firstErr,
		}
	}
	return jobs, result, nil
}

// runJob executes the stage and submit steps for one job. A failure at
// any step marks the job failed and stops; there is no automatic retry,
// the caller resubmits if wanted.
func (o *Orchestrator) runJob(ctx context.Context, jobID string) error {
	proceed, err := o.advance(jobID, JobStatusUploading, nil)
	if err != nil {
		return err
	}
	if !proceed {
		return nil
	}

	job, err := o.store.Get(jobID)
	if err != nil {
		return err
	}

	stager, err := o.stagers()
	if err != nil {
		stageErr := &StagingError{FilePath: job.FilePath, Err: err}
		o.fail(jobID, stageErr.Error())
		return stageErr
	}

	remotePath, err := stager.Stage(job.FilePath)
	if err != nil {
		stageErr := &StagingError{FilePath: job.FilePath, Err: err}
		o.fail(jobID, stageErr.Error())
		return stageErr
	}

	command := BuildSubmitCommand(remotePath, job.Queue, job.Settings)
	output, err := o.executor.Execute(ctx, command)
	if err != nil {
		o.fail(jobID, err.Error())
		return err
	}

	remoteID, ok := ParseSubmitOutput(output)
	if !ok {
		log.Printf("[orchestrator] no remote id in submit output for job %s", jobID)
	}

	proceed, err = o.advance(jobID, JobStatusQueued, &remoteID)
	if err != nil {
		return err
	}
	if !proceed {
		// Cancelled while the submit command was in flight: the remote
		// job may exist now, so issue a best-effort remote cancel.
		if remoteID != "" {
			if _, cancelErr := o.executor.Execute(ctx, BuildCancelCommand(remoteID)); cancelErr != nil {
				log.Printf("[orchestrator] best-effort cancel of %s failed: %v", remoteID, cancelErr)
			}
		}
	}
	return nil
}

// Cancel stops a job. Jobs without a captured remote id are cancelled
// purely locally; queued or printing jobs get a remote cancel command.
// A failing remote cancel marks the job failed with the error recorded
// rather than silently losing it.
func (o *Orchestrator) Cancel(ctx context.Context, jobID string) error {
	job, err := o.store.Get(jobID)
	if err != nil {
		return err
	}

	if job.Status.Terminal() {
		return fmt.Errorf("%w: %s is %s", ErrJobTerminal, jobID, job.Status)
	}

	if job.RemoteID == "" {
		_, err := o.advance(jobID, JobStatusCancelled, nil)
		return err
	}

	if _, err := o.executor.Execute(ctx, BuildCancelCommand(job.RemoteID)); err != nil {
		o.fail(jobID, err.Error())
		return err
	}

	_, err = o.advance(jobID, JobStatusCancelled, nil)
	return err
}

// applySnapshot infers queued-to-printing and printing-to-completed
// transitions from a queue listing. A job present in the pending
// listing is being worked on; a tracked job that disappeared from the
// listing has left the queue and is treated as completed. Snapshots
// that carry an error prove nothing and are skipped, and a listing
// captured before a job's last transition cannot prove the job has
// left the queue.
func (o *Orchestrator) applySnapshot(snapshot QueueSnapshot) {
	if snapshot.Error != "" {
		return
	}

	present := make(map[string]bool, len(snapshot.Entries))
	for _, entry := range snapshot.Entries {
		present[entry.RemoteID] = true
	}

	for _, job := range o.store.List() {
		if job.Queue != snapshot.Queue || job.RemoteID == "" {
			continue
		}

		stale := snapshot.RefreshedAt.Before(job.UpdatedAt)

		switch job.Status {
		case JobStatusQueued:
			if present[job.RemoteID] {
				o.advance(job.ID, JobStatusPrinting, nil)
			} else if !stale {
				o.advance(job.ID, JobStatusCompleted, nil)
			}
		case JobStatusPrinting:
			if !present[job.RemoteID] && !stale {
				o.advance(job.ID, JobStatusCompleted, nil)
			}
		}
	}
}

// advance applies one guarded transition. It returns proceed=false
// without error when the job was cancelled underneath the pipeline,
// which is the signal to stop further steps quietly.
func (o *Orchestrator) advance(jobID string, to JobStatus, remoteID *string) (bool, error) {
	o.transitionMu.Lock()
	defer o.transitionMu.Unlock()

	job, err := o.store.Get(jobID)
	if err != nil {
		return false, err
	}

	if job.Status == JobStatusCancelled && to != JobStatusCancelled {
		return false, nil
	}

	if !validTransition(job.Status, to) {
		return false, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, job.Status, to)
	}

	patch := JobPatch{Status: &to}
	if remoteID != nil && *remoteID != "" {
		patch.RemoteID = remoteID
	}
	if _, err := o.store.Update(jobID, patch); err != nil {
		return false, err
	}
	return true, nil
}

func (o *Orchestrator) fail(jobID, message string) {
	o.transitionMu.Lock()
	defer o.transitionMu.Unlock()

	job, err := o.store.Get(jobID)
	if err != nil {
		return
	}
	if job.Status.Terminal() {
		return
	}

	status := JobStatusFailed
	o.store.Update(jobID, JobPatch{Status: &status, ErrorMessage: &message})
}

func validTransition(from, to JobStatus) bool {
	switch from {
	case JobStatusPending:
		return to == JobStatusUploading || to == JobStatusCancelled || to == JobStatusFailed
	case JobStatusUploading:
		return to == JobStatusQueued || to == JobStatusFailed || to == JobStatusCancelled
	case JobStatusQueued:
		return to == JobStatusPrinting || to == JobStatusCompleted || to == JobStatusFailed || to == JobStatusCancelled
	case JobStatusPrinting:
		return to == JobStatusCompleted || to == JobStatusFailed || to == JobStatusCancelled
	default:
		return false
	}
}
