package repo

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"time"

	"asseto/internal/domain"
	"asseto/internal/infra"
	"asseto/internal/sqlinline"
)

// ProjectRepositoryPG implements domain.ProjectRepository on top of the SQL
// runner. Image bytes are stored base64 encoded.
type ProjectRepositoryPG struct {
	sql infra.SQLExecutor
}

// NewProjectRepository creates a new project repository backed by PostgreSQL.
func NewProjectRepository(sql infra.SQLExecutor) *ProjectRepositoryPG {
	return &ProjectRepositoryPG{sql: sql}
}

// EnsureSchema creates the tables when they do not exist yet.
func EnsureSchema(ctx context.Context, sql infra.SQLExecutor) error {
	for _, stmt := range sqlinline.Schema {
		if _, err := sql.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("ensure schema: %w", err)
		}
	}
	return nil
}

// atomic runs fn in a transaction when the executor supports one.
func (r *ProjectRepositoryPG) atomic(ctx context.Context, fn func(infra.SQLExecutor) error) error {
	if tx, ok := r.sql.(infra.TxExecutor); ok {
		return tx.InTx(ctx, fn)
	}
	return fn(r.sql)
}

// SaveProject upserts the project config and rewrites its sections.
func (r *ProjectRepositoryPG) SaveProject(ctx context.Context, projectID string, cfg domain.ProjectConfig) error {
	raw, err := json.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("encode project: %w", err)
	}
	return r.atomic(ctx, func(sql infra.SQLExecutor) error {
		if _, err := sql.Exec(ctx, sqlinline.QUpsertProject, projectID, cfg.Name, raw); err != nil {
			return fmt.Errorf("upsert project: %w", err)
		}
		if _, err := sql.Exec(ctx, sqlinline.QDeleteSections, projectID); err != nil {
			return fmt.Errorf("clear sections: %w", err)
		}
		for i, s := range cfg.Sections {
			if _, err := sql.Exec(ctx, sqlinline.QInsertSection, projectID, s.ID, i, s.Name, s.Description, s.ImageCount); err != nil {
				return fmt.Errorf("insert section %s: %w", s.ID, err)
			}
		}
		return nil
	})
}

// ReplaceImages drops the previous batch and stores images in order.
func (r *ProjectRepositoryPG) ReplaceImages(ctx context.Context, projectID string, images []domain.GeneratedImage) error {
	return r.atomic(ctx, func(sql infra.SQLExecutor) error {
		return replaceImages(ctx, sql, projectID, images)
	})
}

func replaceImages(ctx context.Context, sql infra.SQLExecutor, projectID string, images []domain.GeneratedImage) error {
	if _, err := sql.Exec(ctx, sqlinline.QDeleteGeneratedImages, projectID); err != nil {
		return fmt.Errorf("clear images: %w", err)
	}
	for i, img := range images {
		mime, data := encodeArtifact(img.Artifact)
		if _, err := sql.Exec(ctx, sqlinline.QInsertGeneratedImage,
			projectID,
			img.ID,
			img.SectionID,
			i,
			img.Prompt,
			string(img.Status),
			img.Error,
			mime,
			data,
			img.CreatedAt,
		); err != nil {
			return fmt.Errorf("insert image %s: %w", img.ID, err)
		}
	}
	return nil
}

// UpdateImage records the settled fields of one image. Images of a replaced
// batch no longer exist and are ignored.
func (r *ProjectRepositoryPG) UpdateImage(ctx context.Context, projectID string, img domain.GeneratedImage) error {
	mime, data := encodeArtifact(img.Artifact)
	_, err := r.sql.Exec(ctx, sqlinline.QUpdateGeneratedImage,
		projectID,
		img.ID,
		string(img.Status),
		img.Error,
		mime,
		data,
		img.CreatedAt,
	)
	return err
}

// SaveBatchStatus stores the aggregate status of the latest batch.
func (r *ProjectRepositoryPG) SaveBatchStatus(ctx context.Context, projectID string, status domain.BatchStatus) error {
	_, err := r.sql.Exec(ctx, sqlinline.QUpdateBatchStatus, projectID, string(status))
	return err
}

// LoadProject returns the stored project with its images, or domain.ErrNotFound.
func (r *ProjectRepositoryPG) LoadProject(ctx context.Context, projectID string) (*domain.ProjectRecord, error) {
	var (
		raw       []byte
		status    string
		updatedAt time.Time
	)
	if err := r.sql.QueryRow(ctx, sqlinline.QSelectProject, projectID).Scan(&raw, &status, &updatedAt); err != nil {
		if infra.IsNoRows(err) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	rec := &domain.ProjectRecord{ID: projectID, BatchStatus: domain.BatchStatus(status), UpdatedAt: updatedAt}
	if err := json.Unmarshal(raw, &rec.Config); err != nil {
		return nil, fmt.Errorf("decode project: %w", err)
	}

	rows, err := r.sql.Query(ctx, sqlinline.QSelectGeneratedImages, projectID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var (
			img        domain.GeneratedImage
			imgStatus  string
			mime, data string
		)
		if err := rows.Scan(&img.ID, &img.SectionID, &img.Prompt, &imgStatus, &img.Error, &mime, &data, &img.CreatedAt); err != nil {
			return nil, err
		}
		img.Status = domain.ImageStatus(imgStatus)
		if data != "" {
			decoded, err := base64.StdEncoding.DecodeString(data)
			if err != nil {
				return nil, fmt.Errorf("decode image %s: %w", img.ID, err)
			}
			img.Artifact = &domain.Artifact{Data: decoded, MIMEType: mime}
		}
		rec.Images = append(rec.Images, img)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return rec, nil
}

// SaveStyleReference records a style analysis result.
func (r *ProjectRepositoryPG) SaveStyleReference(ctx context.Context, ref domain.StyleReference) error {
	_, err := r.sql.Exec(ctx, sqlinline.QInsertStyleReference, ref.ID, ref.ProjectID, ref.ImageCount, ref.StylePrompt, ref.CreatedAt)
	return err
}

func encodeArtifact(a *domain.Artifact) (string, string) {
	if a.Empty() {
		return "", ""
	}
	return a.MIMEType, base64.StdEncoding.EncodeToString(a.Data)
}

var _ domain.ProjectRepository = (*ProjectRepositoryPG)(nil)
