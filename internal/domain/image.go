package domain

import "time"

// ImageStatus enumerates the lifecycle of a single generated image.
type ImageStatus string

const (
	ImageStatusPending   ImageStatus = "PENDING"
	ImageStatusCompleted ImageStatus = "COMPLETED"
	ImageStatusFailed    ImageStatus = "FAILED"
)

// Terminal reports whether the status is a settled outcome.
func (s ImageStatus) Terminal() bool {
	return s == ImageStatusCompleted || s == ImageStatusFailed
}

// BatchStatus enumerates the aggregate state of a batch.
type BatchStatus string

const (
	BatchStatusIdle       BatchStatus = "IDLE"
	BatchStatusGenerating BatchStatus = "GENERATING"
	BatchStatusCompleted  BatchStatus = "COMPLETED"
	BatchStatusFailed     BatchStatus = "FAILED"
)

// Artifact is a generated image payload.
type Artifact struct {
	Data     []byte `json:"-"`
	MIMEType string `json:"mime_type"`
}

// Empty reports whether the artifact carries no bytes.
func (a *Artifact) Empty() bool {
	return a == nil || len(a.Data) == 0
}

// GeneratedImage is one slot of a batch. ID, SectionID and Prompt are fixed at
// placeholder creation; Artifact, CreatedAt, Status and Error change together.
type GeneratedImage struct {
	ID        string      `json:"id"`
	SectionID string      `json:"section_id"`
	Artifact  *Artifact   `json:"artifact,omitempty"`
	Prompt    string      `json:"prompt"`
	CreatedAt time.Time   `json:"created_at"`
	Status    ImageStatus `json:"status"`
	Error     string      `json:"error,omitempty"`
}

// Exportable reports whether the image may appear in an export archive.
func (g GeneratedImage) Exportable() bool {
	return g.Status == ImageStatusCompleted && !g.Artifact.Empty()
}
