package db

import (
	"time"
)

type User struct {
	ID            string    `json:"id"`
	Email         string    `json:"email"`
	WalletBalance float64   `json:"wallet_balance"`
	Tokens        int       `json:"tokens"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

type File struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	Filename  string    `json:"filename"`
	FileType  string    `json:"file_type"`
	PageCount int       `json:"page_count"`
	CreatedAt time.Time `json:"created_at"`
}

type Printer struct {
	ID                string     `json:"id"`
	Name              string     `json:"name"`
	Description       string     `json:"description"`
	PrinterType       string     `json:"printer_type"`
	IPAddress         string     `json:"ip_address"`
	Port              int        `json:"port"`
	SupportsColor     bool       `json:"supports_color"`
	SupportsDuplex    bool       `json:"supports_duplex"`
	MaxPaperSize      string     `json:"max_paper_size"`
	Status            string     `json:"status"`
	IsDefault         bool       `json:"is_default"`
	IsActive          bool       `json:"is_active"`
	TotalPagesPrinted int64      `json:"total_pages_printed"`
	LastSeenAt        *time.Time `json:"last_seen_at,omitempty"`
	CreatedAt         time.Time  `json:"created_at"`
	UpdatedAt         time.Time  `json:"updated_at"`
}

type PrintJob struct {
	ID                 string     `json:"id"`
	UserID             string     `json:"user_id"`
	FileID             string     `json:"file_id"`
	PrinterID          string     `json:"printer_id,omitempty"`
	Copies             int        `json:"copies"`
	Pages              string     `json:"pages"`
	ColorMode          string     `json:"color_mode"`
	PaperSize          string     `json:"paper_size"`
	PrintQuality       string     `json:"print_quality"`
	Duplex             bool       `json:"duplex"`
	Collate            bool       `json:"collate"`
	Orientation        string     `json:"orientation"`
	Status             string     `json:"status"`
	Priority           int        `json:"priority"`
	TotalPages         int        `json:"total_pages"`
	TotalCost          float64    `json:"total_cost"`
	TokensRequired     int        `json:"tokens_required"`
	TokensDeducted     bool       `json:"tokens_deducted"`
	PagesPrinted       int        `json:"pages_printed"`
	ProgressPercentage int        `json:"progress_percentage"`
	ErrorMessage       string     `json:"error_message,omitempty"`
	RetryCount         int        `json:"retry_count"`
	MaxRetries         int        `json:"max_retries"`
	SubmittedAt        time.Time  `json:"submitted_at"`
	StartedAt          *time.Time `json:"started_at,omitempty"`
	CompletedAt        *time.Time `json:"completed_at,omitempty"`
}

type LedgerEntry struct {
	ID           string    `json:"id"`
	UserID       string    `json:"user_id"`
	Amount       float64   `json:"amount"`
	Reason       string    `json:"reason"`
	Reference    string    `json:"reference,omitempty"`
	BalanceAfter float64   `json:"balance_after"`
	CreatedAt    time.Time `json:"created_at"`
}

type Notification struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	Title     string    `json:"title"`
	Message   string    `json:"message"`
	Category  string    `json:"category"`
	IsRead    bool      `json:"is_read"`
	CreatedAt time.Time `json:"created_at"`
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

type Setting struct {
	Key       string    `json:"key"`
	Value     string    `json:"value"`
	UpdatedAt time.Time `json:"updated_at"`
}
