package archive

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sync"
	"time"

	"sshprint/internal/core"
	"sshprint/internal/db"
)

// Archiver moves terminal jobs older than the retention window out of
// the live database into monthly JSON files. Keeps listJobs responses
// small without losing history.
type Archiver struct {
	archivePath string
	archiveDays int
	stopCh      chan struct{}
	mu          sync.Mutex
}

type Config struct {
	ArchivePath string
	ArchiveDays int
}

type archivedJob struct {
	Job        *core.PrintJob `json:"job"`
	ArchivedAt time.Time      `json:"archived_at"`
}

func NewArchiver(config Config) (*Archiver, error) {
	if config.ArchivePath == "" {
		config.ArchivePath = "./data/archives"
	}
	if config.ArchiveDays <= 0 {
		config.ArchiveDays = 30
	}

	if err := os.MkdirAll(config.ArchivePath, 0755); err != nil {
		return nil, fmt.Errorf("failed to create archive directory: %w", err)
	}

	return &Archiver{
		archivePath: config.ArchivePath,
		archiveDays: config.ArchiveDays,
		stopCh:      make(chan struct{}),
	}, nil
}

func (a *Archiver) Start() {
	go a.runDailyArchive()
}

func (a *Archiver) Stop() {
	close(a.stopCh)
}

func (a *Archiver) runDailyArchive() {
	ticker := time.NewTicker(24 * time.Hour)
	defer ticker.Stop()

	for {
		select {
		case <-a.stopCh:
			return
		case <-ticker.C:
			if err := a.RunArchive(); err != nil {
				log.Printf("[archive] run failed: %v", err)
			}
		}
	}
}

func (a *Archiver) RunArchive() error {
	a.mu.Lock()
	defer a.mu.Unlock()

	ctx := context.Background()
	cutoff := time.Now().AddDate(0, 0, -a.archiveDays)

	jobs, err := db.Jobs.ListTerminalJobsBefore(ctx, cutoff)
	if err != nil {
		return fmt.Errorf("failed to get jobs for archival: %w", err)
	}

	if len(jobs) == 0 {
		return nil
	}

	archiveFile := filepath.Join(a.archivePath, fmt.Sprintf("jobs_%s.jsonl", time.Now().Format("2006_01")))

	f, err := os.OpenFile(archiveFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return fmt.Errorf("failed to open archive file: %w", err)
	}
	defer f.Close()

	encoder := json.NewEncoder(f)
	now := time.Now()
	for _, job := range jobs {
		if err := encoder.Encode(archivedJob{Job: job, ArchivedAt: now}); err != nil {
			return fmt.Errorf("failed to write archive entry: %w", err)
		}
	}

	for _, job := range jobs {
		if err := db.Jobs.DeleteJob(ctx, job.ID); err != nil {
			return fmt.Errorf("failed to delete archived job %s: %w", job.ID, err)
		}
		if err := db.Archive.CreateArchiveJob(ctx, &db.ArchiveJob{
			OriginalJobID: job.ID,
			ArchiveFile:   filepath.Base(archiveFile),
		}); err != nil {
			return fmt.Errorf("failed to record archived job %s: %w", job.ID, err)
		}
	}

	log.Printf("[archive] archived %d jobs to %s", len(jobs), filepath.Base(archiveFile))
	return nil
}
