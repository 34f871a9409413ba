package db

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"sshprint/internal/core"
)

type JobOperations struct{}

func (o *JobOperations) CreateJob(ctx context.Context, job *core.PrintJob) error {
	settingsJSON, err := json.Marshal(job.Settings)
	if err != nil {
		return fmt.Errorf("failed to marshal job settings: %w", err)
	}

	_, err = GetDB().ExecContext(ctx, InsertJob,
		job.ID, job.Name, job.FilePath, job.Queue, string(settingsJSON),
		string(job.Status), job.RemoteID, job.ErrorMessage,
		job.CreatedAt, job.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to create job: %w", err)
	}
	return nil
}

func (o *JobOperations) GetJobByID(ctx context.Context, id string) (*core.PrintJob, error) {
	row := GetDB().QueryRowContext(ctx, GetJobByID, id)
	job, err := scanJob(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, sql.ErrNoRows
		}
		return nil, fmt.Errorf("failed to get job: %w", err)
	}
	return job, nil
}

func (o *JobOperations) ListJobs(ctx context.Context) ([]*core.PrintJob, error) {
	rows, err := GetDB().QueryContext(ctx, ListJobs)
	if err != nil {
		return nil, fmt.Errorf("failed to list jobs: %w", err)
	}
	defer rows.Close()
	return scanJobs(rows)
}

func (o *JobOperations) ListTerminalJobsBefore(ctx context.Context, cutoff time.Time) ([]*core.PrintJob, error) {
	rows, err := GetDB().QueryContext(ctx, ListTerminalJobsBefore, cutoff)
	if err != nil {
		return nil, fmt.Errorf("failed to list terminal jobs: %w", err)
	}
	defer rows.Close()
	return scanJobs(rows)
}

func (o *JobOperations) UpdateJob(ctx context.Context, job *core.PrintJob) error {
	_, err := GetDB().ExecContext(ctx, UpdateJob,
		string(job.Status), job.RemoteID, job.ErrorMessage, job.UpdatedAt, job.ID)
	if err != nil {
		return fmt.Errorf("failed to update job: %w", err)
	}
	return nil
}

func (o *JobOperations) DeleteJob(ctx context.Context, id string) error {
	_, err := GetDB().ExecContext(ctx, DeleteJob, id)
	if err != nil {
		return fmt.Errorf("failed to delete job: %w", err)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanJob(row rowScanner) (*core.PrintJob, error) {
	job := &core.PrintJob{}
	var settingsJSON, status string
	if err := row.Scan(
		&job.ID, &job.Name, &job.FilePath, &job.Queue, &settingsJSON,
		&status, &job.RemoteID, &job.ErrorMessage,
		&job.CreatedAt, &job.UpdatedAt); err != nil {
		return nil, err
	}
	job.Status = core.JobStatus(status)
	if err := json.Unmarshal([]byte(settingsJSON), &job.Settings); err != nil {
		return nil, fmt.Errorf("failed to unmarshal job settings: %w", err)
	}
	return job, nil
}

func scanJobs(rows *sql.Rows) ([]*core.PrintJob, error) {
	var jobs []*core.PrintJob
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan job: %w", err)
		}
		jobs = append(jobs, job)
	}
	return jobs, rows.Err()
}

// JobPersister adapts job operations to the in-memory store's
// write-through hook.
type JobPersister struct{}

func (p *JobPersister) InsertJob(job *core.PrintJob) error {
	return Jobs.CreateJob(context.Background(), job)
}

func (p *JobPersister) UpdateJob(job *core.PrintJob) error {
	return Jobs.UpdateJob(context.Background(), job)
}

func (p *JobPersister) DeleteJob(id string) error {
	return Jobs.DeleteJob(context.Background(), id)
}

type DraftOperations struct{}

func (o *DraftOperations) SaveDraft(ctx context.Context, d *core.Draft) error {
	settingsJSON, err := json.Marshal(d.Settings)
	if err != nil {
		return fmt.Errorf("failed to marshal draft settings: %w", err)
	}

	if d.UpdatedAt.IsZero() {
		d.UpdatedAt = time.Now()
	}

	_, err = GetDB().ExecContext(ctx, UpsertDraft,
		d.FilePath, d.Queue, string(settingsJSON), d.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to save draft: %w", err)
	}
	return nil
}

func (o *DraftOperations) GetDraft(ctx context.Context, filePath string) (*core.Draft, error) {
	d := &core.Draft{}
	var settingsJSON string
	err := GetDB().QueryRowContext(ctx, GetDraftByPath, filePath).Scan(
		&d.FilePath, &d.Queue, &settingsJSON, &d.UpdatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, sql.ErrNoRows
		}
		return nil, fmt.Errorf("failed to get draft: %w", err)
	}
	if err := json.Unmarshal([]byte(settingsJSON), &d.Settings); err != nil {
		return nil, fmt.Errorf("failed to unmarshal draft settings: %w", err)
	}
	return d, nil
}

func (o *DraftOperations) ListDrafts(ctx context.Context) ([]*core.Draft, error) {
	rows, err := GetDB().QueryContext(ctx, ListDrafts)
	if err != nil {
		return nil, fmt.Errorf("failed to list drafts: %w", err)
	}
	defer rows.Close()

	var drafts []*core.Draft
	for rows.Next() {
		d := &core.Draft{}
		var settingsJSON string
		if err := rows.Scan(&d.FilePath, &d.Queue, &settingsJSON, &d.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan draft: %w", err)
		}
		if err := json.Unmarshal([]byte(settingsJSON), &d.Settings); err != nil {
			return nil, fmt.Errorf("failed to unmarshal draft settings: %w", err)
		}
		drafts = append(drafts, d)
	}
	return drafts, rows.Err()
}

func (o *DraftOperations) DeleteDraft(ctx context.Context, filePath string) error {
	_, err := GetDB().ExecContext(ctx, DeleteDraft, filePath)
	if err != nil {
		return fmt.Errorf("failed to delete draft: %w", err)
	}
	return nil
}

type SettingsOperations struct{}

func (o *SettingsOperations) GetSetting(ctx context.Context, key string) (*Setting, error) {
	s := &Setting{}
	var encrypted int
	err := GetDB().QueryRowContext(ctx, GetSetting, key).Scan(
		&s.Key, &s.Value, &encrypted, &s.UpdatedAt)
	if err != nil {
		return nil, err
	}
	s.Encrypted = encrypted == 1
	return s, nil
}

func (o *SettingsOperations) SetSetting(ctx context.Context, key, value string, encrypted bool) error {
	encryptedInt := 0
	if encrypted {
		encryptedInt = 1
	}
	_, err := GetDB().ExecContext(ctx, UpsertSetting, key, value, encryptedInt)
	if err != nil {
		return fmt.Errorf("failed to set setting %s: %w", key, err)
	}
	return nil
}

func (o *SettingsOperations) DeleteSetting(ctx context.Context, key string) error {
	_, err := GetDB().ExecContext(ctx, DeleteSetting, key)
	if err != nil {
		return fmt.Errorf("failed to delete setting %s: %w", key, err)
	}
	return nil
}

type WebhookOperations struct{}

func (o *WebhookOperations) CreateWebhook(ctx context.Context, w *Webhook) error {
	enabled := 0
	if w.Enabled {
		enabled = 1
	}
	result, err := GetDB().ExecContext(ctx, InsertWebhook,
		w.Name, w.URL, w.Secret, w.EventsJSON, enabled)
	if err != nil {
		return fmt.Errorf("failed to create webhook: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get webhook id: %w", err)
	}
	w.ID = id
	return nil
}

func (o *WebhookOperations) GetWebhookByID(ctx context.Context, id int64) (*Webhook, error) {
	w := &Webhook{}
	var enabled int
	err := GetDB().QueryRowContext(ctx, GetWebhookByID, id).Scan(
		&w.ID, &w.Name, &w.URL, &w.Secret, &w.EventsJSON, &enabled, &w.CreatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, sql.ErrNoRows
		}
		return nil, fmt.Errorf("failed to get webhook: %w", err)
	}
	w.Enabled = enabled == 1
	return w, nil
}

func (o *WebhookOperations) ListWebhooks(ctx context.Context) ([]*Webhook, error) {
	rows, err := GetDB().QueryContext(ctx, ListWebhooks)
	if err != nil {
		return nil, fmt.Errorf("failed to list webhooks: %w", err)
	}
	defer rows.Close()
	return scanWebhooks(rows)
}

func (o *WebhookOperations) ListWebhooksForEvent(ctx context.Context, event string) ([]*Webhook, error) {
	pattern := fmt.Sprintf("%%\"%s\"%%", event)
	rows, err := GetDB().QueryContext(ctx, ListWebhooksForEvent, pattern)
	if err != nil {
		return nil, fmt.Errorf("failed to list webhooks for event: %w", err)
	}
	defer rows.Close()
	return scanWebhooks(rows)
}

func (o *WebhookOperations) UpdateWebhook(ctx context.Context, w *Webhook) error {
	enabled := 0
	if w.Enabled {
		enabled = 1
	}
	_, err := GetDB().ExecContext(ctx, UpdateWebhook,
		w.Name, w.URL, w.Secret, w.EventsJSON, enabled, w.ID)
	if err != nil {
		return fmt.Errorf("failed to update webhook: %w", err)
	}
	return nil
}

func (o *WebhookOperations) DeleteWebhook(ctx context.Context, id int64) error {
	_, err := GetDB().ExecContext(ctx, DeleteWebhook, id)
	if err != nil {
		return fmt.Errorf("failed to delete webhook: %w", err)
	}
	return nil
}

func scanWebhooks(rows *sql.Rows) ([]*Webhook, error) {
	var webhooks []*Webhook
	for rows.Next() {
		w := &Webhook{}
		var enabled int
		if err := rows.Scan(&w.ID, &w.Name, &w.URL, &w.Secret, &w.EventsJSON, &enabled, &w.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan webhook: %w", err)
		}
		w.Enabled = enabled == 1
		webhooks = append(webhooks, w)
	}
	return webhooks, rows.Err()
}

type ArchiveOperations struct{}

func (o *ArchiveOperations) CreateArchiveJob(ctx context.Context, a *ArchiveJob) error {
	result, err := GetDB().ExecContext(ctx, InsertArchiveJob, a.OriginalJobID, a.ArchiveFile)
	if err != nil {
		return fmt.Errorf("failed to create archive job: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get archive job id: %w", err)
	}
	a.ID = id
	return nil
}

func (o *ArchiveOperations) GetArchiveJobs(ctx context.Context, limit, offset int) ([]*ArchiveJob, error) {
	rows, err := GetDB().QueryContext(ctx, ListArchiveJobs, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to get archive jobs: %w", err)
	}
	defer rows.Close()

	var archives []*ArchiveJob
	for rows.Next() {
		a := &ArchiveJob{}
		if err := rows.Scan(&a.ID, &a.OriginalJobID, &a.ArchiveFile, &a.ArchivedAt); err != nil {
			return nil, fmt.Errorf("failed to scan archive job: %w", err)
		}
		archives = append(archives, a)
	}
	return archives, rows.Err()
}

var (
	Jobs     = &JobOperations{}
	Drafts   = &DraftOperations{}
	Settings = &SettingsOperations{}
	Webhooks = &WebhookOperations{}
	Archive  = &ArchiveOperations{}
)
