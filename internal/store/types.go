package store

import (
	"errors"

	"uptime-report-backend/internal/model"
)

var (
	// ErrReportNotFound is returned for an unknown report id.
	ErrReportNotFound = errors.New("report not found")
	// ErrInvalidTransition is returned when a report is not in a state the
	// requested transition starts from.
	ErrInvalidTransition = errors.New("invalid report state transition")
)

// Dataset is a complete import: every site, status sample and business-hours
// rule. Samples keep ingestion order.
type Dataset struct {
	Sites   []model.Site
	Samples []model.StatusSample
	Hours   []model.BusinessHours
}
