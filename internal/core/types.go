package core

import "time"

type JobStatus string

const (
	JobStatusPending   JobStatus = "pending"
	JobStatusUploading JobStatus = "uploading"
	JobStatusQueued    JobStatus = "queued"
	JobStatusPrinting  JobStatus = "printing"
	JobStatusCompleted JobStatus = "completed"
	JobStatusFailed    JobStatus = "failed"
	JobStatusCancelled JobStatus = "cancelled"
)

// Terminal reports whether a job in this status can never change again.
func (s JobStatus) Terminal() bool {
	switch s {
	case JobStatusCompleted, JobStatusFailed, JobStatusCancelled:
		return true
	default:
		return false
	}
}

type DuplexMode string

const (
	DuplexOff       DuplexMode = "one-sided"
	DuplexLongEdge  DuplexMode = "two-sided-long-edge"
	DuplexShortEdge DuplexMode = "two-sided-short-edge"
)

type Orientation string

const (
	OrientationPortrait  Orientation = "portrait"
	OrientationLandscape Orientation = "landscape"
)

// PrintSettings is the per-job settings snapshot. PageRange uses the
// usual "1-4,7" form; empty means all pages.
type PrintSettings struct {
	Copies        int         `json:"copies" yaml:"copies"`
	Duplex        DuplexMode  `json:"duplex" yaml:"duplex"`
	PaperSize     string      `json:"paper_size" yaml:"paper_size"`
	Orientation   Orientation `json:"orientation" yaml:"orientation"`
	PagesPerSheet int         `json:"pages_per_sheet" yaml:"pages_per_sheet"`
	PageRange     string      `json:"page_range" yaml:"page_range"`
}

// DefaultSettings is a single portrait A4 simplex copy.
func DefaultSettings() PrintSettings {
	return PrintSettings{
		Copies:        1,
		Duplex:        DuplexOff,
		PaperSize:     "A4",
		Orientation:   OrientationPortrait,
		PagesPerSheet: 1,
	}
}

// PrintJob is one tracked submission. A multi-copy request fans out
// into one PrintJob per copy so each copy fails, completes, and cancels
// independently.
type PrintJob struct {
	ID           string        `json:"id"`
	Name         string        `json:"name"`
	FilePath     string        `json:"file_path"`
	Queue        string        `json:"queue"`
	Settings     PrintSettings `json:"settings"`
	Status       JobStatus     `json:"status"`
	RemoteID     string        `json:"remote_id,omitempty"`
	ErrorMessage string        `json:"error_message,omitempty"`
	CreatedAt    time.Time     `json:"created_at"`
	UpdatedAt    time.Time     `json:"updated_at"`
}

// JobPatch is a partial update applied by the store. Nil fields are
// left untouched; set fields win last-write-wins.
type JobPatch struct {
	Status       *JobStatus
	RemoteID     *string
	ErrorMessage *string
}

// QueueEntry is one parsed line of a remote pending-job listing.
type QueueEntry struct {
	RemoteID  string `json:"remote_id"`
	Owner     string `json:"owner"`
	SizeBytes int64  `json:"size_bytes"`
	Raw       string `json:"raw"`
}

// QueueSnapshot is the full authoritative pending-job state of one
// queue at one instant. Snapshots are replaced wholesale on each poll,
// never merged.
type QueueSnapshot struct {
	Queue       string       `json:"queue"`
	Entries     []QueueEntry `json:"entries"`
	RefreshedAt time.Time    `json:"refreshed_at"`
	Error       string       `json:"error,omitempty"`
}

// Draft is a not-yet-submitted job's editable settings, keyed by source
// file path. Revising the same path supersedes the draft; creating the
// real job removes it.
type Draft struct {
	FilePath  string        `json:"file_path"`
	Queue     string        `json:"queue"`
	Settings  PrintSettings `json:"settings"`
	UpdatedAt time.Time     `json:"updated_at"`
}
