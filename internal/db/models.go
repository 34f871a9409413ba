package db

import "time"

type Setting struct {
	Key       string    `json:"key"`
	Value     string    `json:"value"`
	Encrypted bool      `json:"encrypted"`
	UpdatedAt time.Time `json:"updated_at"`
}

type Webhook struct {
	ID         int64     `json:"id"`
	Name       string    `json:"name"`
	URL        string    `json:"url"`
	Secret     string    `json:"secret,omitempty"`
	EventsJSON string    `json:"events_json"`
	Enabled    bool      `json:"enabled"`
	CreatedAt  time.Time `json:"created_at"`
}

type ArchiveJob struct {
	ID            int64     `json:"id"`
	OriginalJobID string    `json:"original_job_id"`
	ArchiveFile   string    `json:"archive_file"`
	ArchivedAt    time.Time `json:"archived_at"`
}
