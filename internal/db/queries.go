package db

const printerColumns = `id, name, description, printer_type, ip_address, port, supports_color, supports_duplex, max_paper_size, status, is_default, is_active, total_pages_printed, last_seen_at, created_at, updated_at`

const (
	InsertPrinter = `
		INSERT INTO printers (id, name, description, printer_type, ip_address, port, supports_color, supports_duplex, max_paper_size, status, is_default, is_active)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	GetPrinterByID = `
		SELECT ` + printerColumns + `
		FROM printers WHERE id = ?
	`

	ListPrinters = `
		SELECT ` + printerColumns + `
		FROM printers ORDER BY name ASC
	`

	ListActivePrinters = `
		SELECT ` + printerColumns + `
		FROM printers WHERE is_active = 1 ORDER BY name ASC
	`

	ListAvailablePrinters = `
		SELECT ` + printerColumns + `
		FROM printers
		WHERE is_active = 1 AND status = 'online'
		  AND (? = 0 OR supports_color = 1)
		  AND (? = 0 OR supports_duplex = 1)
		ORDER BY is_default DESC, name ASC
	`

	UpdatePrinter = `
		UPDATE printers SET
			name = ?, description = ?, printer_type = ?, ip_address = ?, port = ?,
			supports_color = ?, supports_duplex = ?, max_paper_size = ?,
			is_default = ?, is_active = ?, updated_at = CURRENT_TIMESTAMP
		WHERE id = ?
	`

	UpdatePrinterStatus = `
		UPDATE printers SET status = ?, last_seen_at = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?
	`

	AddPrinterPagesPrinted = `
		UPDATE printers SET total_pages_printed = total_pages_printed + ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?
	`
)

const (
	InsertFile = `
		INSERT INTO files (id, user_id, filename, file_type, page_count) VALUES (?, ?, ?, ?, ?)
	`

	GetFileByID = `
		SELECT id, user_id, filename, file_type, page_count, created_at FROM files WHERE id = ?
	`
)

const jobColumns = `id, user_id, file_id, printer_id, copies, pages, color_mode, paper_size, print_quality, duplex, collate_pages, orientation, status, priority, total_pages, total_cost, tokens_required, tokens_deducted, pages_printed, progress_percentage, error_message, retry_count, max_retries, submitted_at, started_at, completed_at`

const (
	InsertJob = `
		INSERT INTO print_jobs (id, user_id, file_id, printer_id, copies, pages, color_mode, paper_size, print_quality, duplex, collate_pages, orientation, status, priority, total_pages, total_cost, tokens_required, tokens_deducted, submitted_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	GetJobByID = `
		SELECT ` + jobColumns + `
		FROM print_jobs WHERE id = ?
	`

	ListJobsByUser = `
		SELECT ` + jobColumns + `
		FROM print_jobs WHERE user_id = ? ORDER BY submitted_at DESC LIMIT ? OFFSET ?
	`

	ListJobsByStatus = `
		SELECT ` + jobColumns + `
		FROM print_jobs WHERE status = ? ORDER BY priority ASC, submitted_at ASC LIMIT ? OFFSET ?
	`

	ListActiveJobsByPrinter = `
		SELECT ` + jobColumns + `
		FROM print_jobs
		WHERE printer_id = ? AND status IN ('pending', 'queued', 'processing', 'printing')
		ORDER BY submitted_at ASC
	`

	ListFailedJobsByPrinter = `
		SELECT ` + jobColumns + `
		FROM print_jobs WHERE printer_id = ? AND status = 'failed' ORDER BY submitted_at ASC
	`

	ListPendingJobsBefore = `
		SELECT ` + jobColumns + `
		FROM print_jobs WHERE status = 'pending' AND submitted_at < ? ORDER BY submitted_at ASC
	`

	ListStuckJobsBefore = `
		SELECT ` + jobColumns + `
		FROM print_jobs
		WHERE status IN ('processing', 'printing') AND started_at IS NOT NULL AND started_at < ?
		ORDER BY started_at ASC
	`

	ListAbandonedJobsBefore = `
		SELECT ` + jobColumns + `
		FROM print_jobs WHERE status IN ('pending', 'failed') AND submitted_at < ? ORDER BY submitted_at ASC
	`

	ListArchivableJobs = `
		SELECT ` + jobColumns + `
		FROM print_jobs
		WHERE status IN ('completed', 'cancelled', 'failed') AND completed_at IS NOT NULL AND completed_at < ?
		ORDER BY completed_at ASC
	`

	CountJobsByStatus = `
		SELECT status, COUNT(*) FROM print_jobs GROUP BY status
	`

	DeleteJob = `DELETE FROM print_jobs WHERE id = ?`
)

const (
	InsertUser = `
		INSERT INTO users (id, email, wallet_balance, tokens) VALUES (?, ?, ?, ?)
	`

	GetUserByID = `
		SELECT id, email, wallet_balance, tokens, created_at, updated_at FROM users WHERE id = ?
	`

	// DebitWallet only applies when the balance covers the amount;
	// callers check the affected-row count for an atomic result.
	DebitWallet = `
		UPDATE users SET wallet_balance = ROUND(wallet_balance - ?, 2), updated_at = CURRENT_TIMESTAMP
		WHERE id = ? AND wallet_balance >= ?
	`

	CreditWallet = `
		UPDATE users SET wallet_balance = ROUND(wallet_balance + ?, 2), updated_at = CURRENT_TIMESTAMP
		WHERE id = ?
	`
)

const (
	InsertLedgerEntry = `
		INSERT INTO ledger_entries (id, user_id, amount, reason, reference, balance_after, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`

	ListLedgerEntriesByUser = `
		SELECT id, user_id, amount, reason, reference, balance_after, created_at
		FROM ledger_entries WHERE user_id = ? ORDER BY created_at DESC, rowid DESC LIMIT ? OFFSET ?
	`

	ListLedgerEntriesByReference = `
		SELECT id, user_id, amount, reason, reference, balance_after, created_at
		FROM ledger_entries WHERE reference = ? ORDER BY created_at ASC, rowid ASC
	`
)

const (
	InsertNotification = `
		INSERT INTO notifications (id, user_id, title, message, category, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`

	ListNotificationsByUser = `
		SELECT id, user_id, title, message, category, is_read, created_at
		FROM notifications WHERE user_id = ? ORDER BY created_at DESC, rowid DESC LIMIT ? OFFSET ?
	`

	MarkNotificationRead = `
		UPDATE notifications SET is_read = 1 WHERE id = ? AND user_id = ?
	`
)

const (
	InsertWebhook = `
		INSERT INTO webhooks (name, url, secret, events_json, enabled)
		VALUES (?, ?, ?, ?, ?)
	`

	ListWebhooksForEvent = `
		SELECT id, name, url, secret, events_json, enabled, created_at
		FROM webhooks WHERE enabled = 1 AND events_json LIKE ?
	`

	ListWebhooks = `
		SELECT id, name, url, secret, events_json, enabled, created_at
		FROM webhooks ORDER BY name ASC
	`

	DeleteWebhook = `DELETE FROM webhooks WHERE id = ?`
)

const (
	GetSetting = `SELECT value, updated_at FROM settings WHERE key = ?`

	SetSetting = `
		INSERT INTO settings (key, value, updated_at)
		VALUES (?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = CURRENT_TIMESTAMP
	`
)
