package model

import "time"

// Report lifecycle states.
const (
	ReportPending = "pending"
	ReportRunning = "running"
	ReportReady   = "ready"
	ReportFailed  = "failed"
)

// Report tracks one asynchronous report job. Payload holds the CSV once the
// job is ready and is never rewritten afterwards.
type Report struct {
	ID        string `gorm:"primaryKey;size:36"`
	Status    string `gorm:"size:16;not null;index"`
	Payload   []byte
	Error     string `gorm:"not null"`
	CreatedAt time.Time
	UpdatedAt time.Time
}
