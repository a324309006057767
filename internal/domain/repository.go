package domain

import (
	"context"
	"time"
)

// ProjectRecord is a persisted project with the items of its latest batch.
type ProjectRecord struct {
	ID          string
	Config      ProjectConfig
	BatchStatus BatchStatus
	Images      []GeneratedImage
	UpdatedAt   time.Time
}

// StyleReference records one style analysis run.
type StyleReference struct {
	ID          string
	ProjectID   string
	ImageCount  int
	StylePrompt string
	CreatedAt   time.Time
}

// ProjectRepository persists the session project. Images are stored in batch
// order; ReplaceImages starts a new batch and UpdateImage records settlements.
type ProjectRepository interface {
	SaveProject(ctx context.Context, projectID string, cfg ProjectConfig) error
	ReplaceImages(ctx context.Context, projectID string, images []GeneratedImage) error
	UpdateImage(ctx context.Context, projectID string, img GeneratedImage) error
	SaveBatchStatus(ctx context.Context, projectID string, status BatchStatus) error
	LoadProject(ctx context.Context, projectID string) (*ProjectRecord, error)
	SaveStyleReference(ctx context.Context, ref StyleReference) error
}
