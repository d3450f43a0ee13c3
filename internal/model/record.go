package model

import "time"

// Status marks whether a record takes part in search.
type Status string

const (
	StatusActive   Status = "active"
	StatusInactive Status = "inactive"
)

// Record is a persisted, deduplicated representation of one imported row.
type Record struct {
	ID         int64     `json:"id"`
	ExternalID string    `json:"external_id"`
	Payload    Payload   `json:"raw_payload"`
	Status     Status    `json:"status"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// PreviewRow is a parsed row awaiting operator review. It is never persisted.
type PreviewRow struct {
	Index      int     `json:"index"`
	ExternalID string  `json:"external_id"`
	Source     Payload `json:"original_row"`
}

// Subject identifies who a usage counter belongs to.
type Subject struct {
	UserID string `json:"user_id"`
	IP     string `json:"ip_address"`
}

// UsageCounter tracks accepted queries for a subject.
type UsageCounter struct {
	Subject
	DailyCount       int       `json:"daily_count"`
	MonthlyCount     int       `json:"monthly_count"`
	LastResetDaily   time.Time `json:"last_reset_daily"`
	LastResetMonthly time.Time `json:"last_reset_monthly"`
}
