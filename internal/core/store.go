package core

import (
	"fmt"
	"log"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// JobPersister mirrors store mutations into durable storage. Optional;
// the one-shot CLI runs the store purely in memory.
type JobPersister interface {
	InsertJob(job *PrintJob) error
	UpdateJob(job *PrintJob) error
	DeleteJob(id string) error
}

// JobStore is the shared mutable collection of job records. It applies
// patches last-write-wins and hands out copies so readers never observe
// a record mid-mutation. Transition legality is the orchestrator's
// responsibility, not the store's.
type JobStore struct {
	mu        sync.RWMutex
	jobs      map[string]*PrintJob
	persister JobPersister
	bus       *Bus
}

func NewJobStore(persister JobPersister, bus *Bus) *JobStore {
	return &JobStore{
		jobs:      make(map[string]*PrintJob),
		persister: persister,
		bus:       bus,
	}
}

// NewJob builds an unsubmitted job record in pending state.
func NewJob(name, filePath, queue string, settings PrintSettings) *PrintJob {
	now := time.Now()
	return &PrintJob{
		ID:        uuid.NewString(),
		Name:      name,
		FilePath:  filePath,
		Queue:     queue,
		Settings:  settings,
		Status:    JobStatusPending,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// Load seeds the store with previously persisted jobs. No persistence
// writes and no events; this is startup recovery, not a mutation.
func (s *JobStore) Load(jobs []*PrintJob) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, job := range jobs {
		copied := *job
		s.jobs[job.ID] = &copied
	}
}

func (s *JobStore) Create(job *PrintJob) error {
	s.mu.Lock()
	if _, exists := s.jobs[job.ID]; exists {
		s.mu.Unlock()
		return fmt.Errorf("job %s already exists", job.ID)
	}
	stored := *job
	s.jobs[job.ID] = &stored
	s.mu.Unlock()

	if s.persister != nil {
		if err := s.persister.InsertJob(job); err != nil {
			log.Printf("[store] failed to persist job %s: %v", job.ID, err)
		}
	}
	s.publish(job)
	return nil
}

func (s *JobStore) Update(id string, patch JobPatch) (*PrintJob, error) {
	s.mu.Lock()
	job, exists := s.jobs[id]
	if !exists {
		s.mu.Unlock()
		return nil, ErrJobNotFound
	}

	if patch.Status != nil {
		job.Status = *patch.Status
	}
	if patch.RemoteID != nil {
		job.RemoteID = *patch.RemoteID
	}
	if patch.ErrorMessage != nil {
		job.ErrorMessage = *patch.ErrorMessage
	}
	job.UpdatedAt = time.Now()

	updated := *job
	s.mu.Unlock()

	if s.persister != nil {
		if err := s.persister.UpdateJob(&updated); err != nil {
			log.Printf("[store] failed to persist job %s: %v", id, err)
		}
	}
	s.publish(&updated)
	return &updated, nil
}

func (s *JobStore) Get(id string) (*PrintJob, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	job, exists := s.jobs[id]
	if !exists {
		return nil, ErrJobNotFound
	}
	copied := *job
	return &copied, nil
}

// List returns all jobs ordered by creation time, newest first.
func (s *JobStore) List() []*PrintJob {
	s.mu.RLock()
	jobs := make([]*PrintJob, 0, len(s.jobs))
	for _, job := range s.jobs {
		copied := *job
		jobs = append(jobs, &copied)
	}
	s.mu.RUnlock()

	sort.Slice(jobs, func(i, j int) bool {
		if jobs[i].CreatedAt.Equal(jobs[j].CreatedAt) {
			return jobs[i].ID > jobs[j].ID
		}
		return jobs[i].CreatedAt.After(jobs[j].CreatedAt)
	})
	return jobs
}

func (s *JobStore) Remove(id string) error {
	s.mu.Lock()
	if _, exists := s.jobs[id]; !exists {
		s.mu.Unlock()
		return ErrJobNotFound
	}
	delete(s.jobs, id)
	s.mu.Unlock()

	if s.persister != nil {
		if err := s.persister.DeleteJob(id); err != nil {
			log.Printf("[store] failed to delete persisted job %s: %v", id, err)
		}
	}
	return nil
}

func (s *JobStore) publish(job *PrintJob) {
	if s.bus == nil {
		return
	}
	copied := *job
	s.bus.Publish(Event{Type: EventJobUpdated, Job: &copied})
}
