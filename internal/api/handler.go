package api

import (
	"context"

	"uptime-report-backend/internal/ingest"
	"uptime-report-backend/internal/jobs"
)

// Importer reloads the dataset.
type Importer interface {
	ImportOnce(ctx context.Context) (*ingest.Stats, error)
}

// Reports submits and polls report jobs.
type Reports interface {
	Submit(ctx context.Context) (string, error)
	Poll(ctx context.Context, id string) (*jobs.Status, error)
}

// Handler holds shared dependencies for API handlers.
type Handler struct {
	importer Importer
	reports  Reports
}

// NewHandler creates a new API handler.
func NewHandler(importer Importer, reports Reports) *Handler {
	return &Handler{
		importer: importer,
		reports:  reports,
	}
}
