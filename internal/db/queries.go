package db

const (
	InsertJob = `
		INSERT INTO print_jobs (id, name, file_path, queue_name, settings_json, status, remote_id, error_message, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	GetJobByID = `
		SELECT id, name, file_path, queue_name, settings_json, status, remote_id, error_message, created_at, updated_at
		FROM print_jobs WHERE id = ?
	`

	ListJobs = `
		SELECT id, name, file_path, queue_name, settings_json, status, remote_id, error_message, created_at, updated_at
		FROM print_jobs ORDER BY created_at DESC
	`

	ListJobsByStatus = `
		SELECT id, name, file_path, queue_name, settings_json, status, remote_id, error_message, created_at, updated_at
		FROM print_jobs WHERE status = ? ORDER BY created_at DESC
	`

	ListTerminalJobsBefore = `
		SELECT id, name, file_path, queue_name, settings_json, status, remote_id, error_message, created_at, updated_at
		FROM print_jobs
		WHERE status IN ('completed', 'failed', 'cancelled') AND updated_at < ?
		ORDER BY updated_at ASC
	`

	UpdateJob = `
		UPDATE print_jobs SET
			status = ?, remote_id = ?, error_message = ?, updated_at = ?
		WHERE id = ?
	`

	DeleteJob = `DELETE FROM print_jobs WHERE id = ?`
)

const (
	UpsertDraft = `
		INSERT INTO drafts (file_path, queue_name, settings_json, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(file_path) DO UPDATE SET
			queue_name = excluded.queue_name,
			settings_json = excluded.settings_json,
			updated_at = excluded.updated_at
	`

	GetDraftByPath = `
		SELECT file_path, queue_name, settings_json, updated_at
		FROM drafts WHERE file_path = ?
	`

	ListDrafts = `
		SELECT file_path, queue_name, settings_json, updated_at
		FROM drafts ORDER BY updated_at DESC
	`

	DeleteDraft = `DELETE FROM drafts WHERE file_path = ?`
)

const (
	GetSetting    = `SELECT key, value, encrypted, updated_at FROM settings WHERE key = ?`
	UpsertSetting = `
		INSERT INTO settings (key, value, encrypted, updated_at)
		VALUES (?, ?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(key) DO UPDATE SET
			value = excluded.value,
			encrypted = excluded.encrypted,
			updated_at = CURRENT_TIMESTAMP
	`
	DeleteSetting = `DELETE FROM settings WHERE key = ?`
)

const (
	InsertWebhook = `
		INSERT INTO webhooks (name, url, secret, events_json, enabled)
		VALUES (?, ?, ?, ?, ?)
	`

	GetWebhookByID = `
		SELECT id, name, url, secret, events_json, enabled, created_at
		FROM webhooks WHERE id = ?
	`

	ListWebhooks = `
		SELECT id, name, url, secret, events_json, enabled, created_at
		FROM webhooks ORDER BY name ASC
	`

	ListWebhooksForEvent = `
		SELECT id, name, url, secret, events_json, enabled, created_at
		FROM webhooks WHERE enabled = 1 AND events_json LIKE ?
	`

	UpdateWebhook = `
		UPDATE webhooks SET name = ?, url = ?, secret = ?, events_json = ?, enabled = ?
		WHERE id = ?
	`

	DeleteWebhook = `DELETE FROM webhooks WHERE id = ?`
)

const (
	InsertArchiveJob = `
		INSERT INTO archived_jobs (original_job_id, archive_file)
		VALUES (?, ?)
	`

	ListArchiveJobs = `
		SELECT id, original_job_id, archive_file, archived_at
		FROM archived_jobs ORDER BY archived_at DESC LIMIT ? OFFSET ?
	`
)
