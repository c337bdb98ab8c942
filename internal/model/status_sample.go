package model

import "time"

// StatusSample is one status observation. ID follows ingestion order, which
// breaks ties between samples that share an instant.
type StatusSample struct {
	ID         int64     `gorm:"primaryKey;autoIncrement"`
	SiteID     string    `gorm:"size:64;not null;index"`
	ObservedAt time.Time `gorm:"not null;index"`
	Status     string    `gorm:"size:16;not null"`
}
