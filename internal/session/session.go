// Package session wires the state store, scheduler, regenerator, packager and
// text collaborators around the single active project.
package session

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"asseto/internal/batch"
	"asseto/internal/domain"
	"asseto/internal/export"
	"asseto/internal/infra"
	"asseto/internal/providers/image"
	"asseto/internal/providers/prompt"
	"asseto/internal/state"
)

// DefaultProjectID identifies the session project in the repository.
const DefaultProjectID = "default"

// interruptedReason is recorded on items that were pending when the process
// stopped.
const interruptedReason = "generation interrupted before completion"

var (
	// ErrStyleUnavailable is returned when no style extractor is configured.
	ErrStyleUnavailable = errors.New("style analysis unavailable")
	// ErrNoReferenceImages is returned when a style analysis gets no images.
	ErrNoReferenceImages = errors.New("no reference images")
)

// Options configures a Session. Only Generator is required.
type Options struct {
	Generator         image.Generator
	Refiner           prompt.Refiner
	StyleExtractor    prompt.StyleExtractor
	Repository        domain.ProjectRepository
	ProjectID         string
	Concurrency       int
	Timeout           time.Duration
	ExportConcurrency int
	JPEGQuality       int
	Logger            *infra.Logger
	Now               func() time.Time
	NewID             func() string
}

// Status summarizes the latest batch.
type Status struct {
	BatchID    string             `json:"batch_id,omitempty"`
	Generation uint64             `json:"generation"`
	Status     domain.BatchStatus `json:"status"`
	Progress   state.Progress     `json:"progress"`
}

// Session owns the active project and everything generated for it.
type Session struct {
	store       *state.Store
	scheduler   *batch.Scheduler
	regenerator *batch.Regenerator
	packager    *export.Packager
	refiner     prompt.Refiner
	styles      prompt.StyleExtractor
	persist     *persister
	logger      *infra.Logger
	projectID   string
	now         func() time.Time
	newID       func() string

	ctx    context.Context
	cancel context.CancelFunc

	mu      sync.Mutex
	current *batch.Batch
}

// New builds a session. With a repository the stored project and its latest
// batch are restored; otherwise the session starts from the default project.
func New(ctx context.Context, opts Options) (*Session, error) {
	if opts.Generator == nil {
		return nil, errors.New("session: generator is required")
	}
	s := &Session{
		refiner:   opts.Refiner,
		styles:    opts.StyleExtractor,
		logger:    opts.Logger,
		projectID: strings.TrimSpace(opts.ProjectID),
		now:       opts.Now,
		newID:     opts.NewID,
	}
	if s.refiner == nil {
		s.refiner = prompt.NewStaticRefiner()
	}
	if s.logger == nil {
		s.logger = infra.NopLogger()
	}
	if s.projectID == "" {
		s.projectID = DefaultProjectID
	}
	if s.now == nil {
		s.now = time.Now
	}
	if s.newID == nil {
		s.newID = uuid.NewString
	}
	s.store = state.NewStore(domain.DefaultProject(s.newID))

	var err error
	s.scheduler, err = batch.NewScheduler(s.store, batch.Options{
		Generator:   opts.Generator,
		Concurrency: opts.Concurrency,
		Timeout:     opts.Timeout,
		Logger:      s.logger,
		Now:         s.now,
		NewID:       s.newID,
		OnLaunch:    s.onLaunch,
		OnSettle:    s.onSettle,
		OnFinish:    s.onFinish,
	})
	if err != nil {
		return nil, err
	}
	s.regenerator, err = batch.NewRegenerator(s.store, batch.Options{
		Generator: opts.Generator,
		Timeout:   opts.Timeout,
		Logger:    s.logger,
		Now:       s.now,
		OnSettle:  s.onSettle,
	})
	if err != nil {
		return nil, err
	}
	s.packager, err = export.NewPackager(s.store, export.Options{
		Concurrency: opts.ExportConcurrency,
		JPEGQuality: opts.JPEGQuality,
		Logger:      s.logger,
	})
	if err != nil {
		return nil, err
	}

	s.ctx, s.cancel = context.WithCancel(context.Background())
	if opts.Repository != nil {
		s.persist = newPersister(opts.Repository, s.logger)
		if err := s.restore(ctx); err != nil {
			s.cancel()
			_ = s.persist.close(context.Background())
			return nil, err
		}
	}
	return s, nil
}

func (s *Session) restore(ctx context.Context) error {
	rec, err := s.persist.repo.LoadProject(ctx, s.projectID)
	if errors.Is(err, domain.ErrNotFound) {
		project := s.store.Project()
		s.logger.Info().Str("project_id", s.projectID).Msg("session: no stored project, saving default")
		s.enqueueProject(project)
		return nil
	}
	if err != nil {
		return fmt.Errorf("session: load project: %w", err)
	}

	items, status, interrupted := recoverInterrupted(rec.Images, rec.BatchStatus, s.now())
	generation := s.store.Restore(rec.Config, items, status)
	s.logger.Info().
		Str("project_id", s.projectID).
		Int("items", len(items)).
		Str("status", string(status)).
		Bool("interrupted", interrupted).
		Msg("session: project restored")
	if interrupted {
		id := s.projectID
		s.persist.enqueue(persistOp{name: "replace_images", generation: generation, run: func(ctx context.Context, repo domain.ProjectRepository) error {
			return repo.ReplaceImages(ctx, id, items)
		}})
		s.enqueueStatus(generation, status)
	}
	return nil
}

// recoverInterrupted fails items that were still pending when the previous
// process stopped, together with their batch.
func recoverInterrupted(images []domain.GeneratedImage, status domain.BatchStatus, now time.Time) ([]domain.GeneratedImage, domain.BatchStatus, bool) {
	out := make([]domain.GeneratedImage, len(images))
	interrupted := status == domain.BatchStatusGenerating
	for i, img := range images {
		if img.Status == domain.ImageStatusPending {
			img.Status = domain.ImageStatusFailed
			img.Error = interruptedReason
			img.Artifact = nil
			img.CreatedAt = now
			interrupted = true
		}
		out[i] = img
	}
	if interrupted {
		status = domain.BatchStatusFailed
	}
	if status == "" {
		status = domain.BatchStatusIdle
	}
	return out, status, interrupted
}

// Close cancels running jobs and flushes pending repository writes.
func (s *Session) Close(ctx context.Context) error {
	s.cancel()
	s.mu.Lock()
	current := s.current
	s.mu.Unlock()
	if current != nil {
		if _, err := current.Wait(ctx); err != nil {
			return err
		}
	}
	if s.persist != nil {
		return s.persist.close(ctx)
	}
	return nil
}

// Project returns the current project config.
func (s *Session) Project() domain.ProjectConfig {
	return s.store.Project()
}

// UpdateProject validates and installs cfg. Existing items are kept; the next
// batch and every regeneration use the new config.
func (s *Session) UpdateProject(ctx context.Context, cfg domain.ProjectConfig) (domain.ProjectConfig, error) {
	if err := cfg.Validate(); err != nil {
		return domain.ProjectConfig{}, err
	}
	cfg = cfg.Clone()
	s.store.SetProject(cfg)
	s.enqueueProject(cfg)
	return cfg, nil
}

// StartBatch launches a batch for the current project. Jobs run under the
// session lifetime, not ctx.
func (s *Session) StartBatch(ctx context.Context) (*batch.Batch, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return s.scheduler.Launch(s.ctx, s.store.Project())
}

// Wait blocks until the latest batch settled and returns its status.
func (s *Session) Wait(ctx context.Context) (domain.BatchStatus, error) {
	s.mu.Lock()
	current := s.current
	s.mu.Unlock()
	if current == nil {
		return s.store.Snapshot().Status, nil
	}
	return current.Wait(ctx)
}

// Status reports the aggregate state of the latest batch.
func (s *Session) Status() Status {
	snap := s.store.Snapshot()
	out := Status{
		Generation: snap.Generation,
		Status:     snap.Status,
		Progress:   state.ProgressOf(snap),
	}
	s.mu.Lock()
	if s.current != nil && s.current.Generation == snap.Generation {
		out.BatchID = s.current.ID
	}
	s.mu.Unlock()
	return out
}

// Images returns the items of the latest batch in batch order.
func (s *Session) Images() []domain.GeneratedImage {
	return s.store.Snapshot().Images()
}

// Image returns one item.
func (s *Session) Image(id string) (domain.GeneratedImage, error) {
	img, ok := s.store.Snapshot().Get(id)
	if !ok {
		return domain.GeneratedImage{}, fmt.Errorf("%w: image %q", domain.ErrNotFound, id)
	}
	return img, nil
}

// Regenerate re-runs generation for one settled item.
func (s *Session) Regenerate(ctx context.Context, id string) (batch.Outcome, error) {
	return s.regenerator.Regenerate(ctx, id)
}

// ExportAll packages every completed image.
func (s *Session) ExportAll(ctx context.Context, format domain.ExportFormat) (export.Result, error) {
	return s.packager.ExportAll(ctx, format)
}

// ExportSection packages the completed images of one section.
func (s *Session) ExportSection(ctx context.Context, sectionID string, format domain.ExportFormat) (export.Result, error) {
	return s.packager.ExportSection(ctx, sectionID, format)
}

// Download converts one completed image.
func (s *Session) Download(id string, format domain.ExportFormat) (string, []byte, error) {
	img, err := s.Image(id)
	if err != nil {
		return "", nil, err
	}
	return s.packager.ConvertImage(img, format)
}

// RefineDescription rewrites the project description with the refiner and
// stores the result. A blank answer leaves the description unchanged.
func (s *Session) RefineDescription(ctx context.Context, locale string) (domain.ProjectConfig, error) {
	project := s.store.Project()
	refined := s.refiner.Refine(ctx, prompt.RefineRequest{Text: project.Description, Locale: locale})
	if strings.TrimSpace(refined) == "" || refined == project.Description {
		return project, nil
	}
	project.Description = refined
	return s.UpdateProject(ctx, project)
}

// SuggestSection fills the description of a section with a suggested visual.
func (s *Session) SuggestSection(ctx context.Context, sectionID, locale string) (domain.ProjectConfig, error) {
	project := s.store.Project()
	idx := -1
	for i, sec := range project.Sections {
		if sec.ID == sectionID {
			idx = i
			break
		}
	}
	if idx < 0 {
		return domain.ProjectConfig{}, fmt.Errorf("%w: section %q", domain.ErrNotFound, sectionID)
	}
	details := s.refiner.SuggestSectionDetails(ctx, prompt.SectionRequest{
		SectionName:    project.Sections[idx].Name,
		ProjectContext: project.EffectiveCategory(),
		Locale:         locale,
	})
	if strings.TrimSpace(details) == "" {
		return project, nil
	}
	project.Sections[idx].Description = details
	return s.UpdateProject(ctx, project)
}

// AnalyzeStyle extracts a style prompt from reference images and switches the
// project to the image reference style.
func (s *Session) AnalyzeStyle(ctx context.Context, images []prompt.ReferenceImage) (domain.ProjectConfig, error) {
	if s.styles == nil {
		return domain.ProjectConfig{}, ErrStyleUnavailable
	}
	usable := 0
	for _, img := range images {
		if len(img.Data) > 0 {
			usable++
		}
	}
	if usable == 0 {
		return domain.ProjectConfig{}, ErrNoReferenceImages
	}
	style, err := s.styles.Analyze(ctx, images, "")
	if err != nil {
		return domain.ProjectConfig{}, fmt.Errorf("%w: %w", domain.ErrProviderFailure, err)
	}
	if strings.TrimSpace(style) == "" {
		return domain.ProjectConfig{}, fmt.Errorf("%w: empty style description", domain.ErrProviderFailure)
	}

	project := s.store.Project()
	project.Style = domain.StyleImageReference
	project.StylePrompt = style
	updated, err := s.UpdateProject(ctx, project)
	if err != nil {
		return domain.ProjectConfig{}, err
	}
	if s.persist != nil {
		ref := domain.StyleReference{
			ID:          uuid.NewString(),
			ProjectID:   s.projectID,
			ImageCount:  min(usable, prompt.MaxStyleImages),
			StylePrompt: style,
			CreatedAt:   s.now(),
		}
		s.persist.enqueue(persistOp{name: "save_style_reference", run: func(ctx context.Context, repo domain.ProjectRepository) error {
			return repo.SaveStyleReference(ctx, ref)
		}})
	}
	return updated, nil
}

func (s *Session) onLaunch(b *batch.Batch) {
	s.mu.Lock()
	if s.current == nil || b.Generation > s.current.Generation {
		s.current = b
	}
	s.mu.Unlock()
	if s.persist == nil {
		return
	}
	id := s.projectID
	project := b.Project.Clone()
	items := append([]domain.GeneratedImage(nil), b.Items...)
	s.persist.enqueue(persistOp{name: "launch", generation: b.Generation, run: func(ctx context.Context, repo domain.ProjectRepository) error {
		if err := repo.SaveProject(ctx, id, project); err != nil {
			return err
		}
		if err := repo.ReplaceImages(ctx, id, items); err != nil {
			return err
		}
		return repo.SaveBatchStatus(ctx, id, domain.BatchStatusGenerating)
	}})
}

func (s *Session) onSettle(generation uint64, img domain.GeneratedImage) {
	if s.persist == nil {
		return
	}
	id := s.projectID
	s.persist.enqueue(persistOp{name: "update_image", key: fmt.Sprintf("image/%d/%s", generation, img.ID), generation: generation, run: func(ctx context.Context, repo domain.ProjectRepository) error {
		return repo.UpdateImage(ctx, id, img)
	}})
}

func (s *Session) onFinish(b *batch.Batch, status domain.BatchStatus) {
	if s.persist == nil {
		return
	}
	s.enqueueStatus(b.Generation, status)
}

func (s *Session) enqueueStatus(generation uint64, status domain.BatchStatus) {
	id := s.projectID
	s.persist.enqueue(persistOp{name: "batch_status", key: fmt.Sprintf("status/%d", generation), generation: generation, run: func(ctx context.Context, repo domain.ProjectRepository) error {
		return repo.SaveBatchStatus(ctx, id, status)
	}})
}

func (s *Session) enqueueProject(project domain.ProjectConfig) {
	if s.persist == nil {
		return
	}
	id := s.projectID
	s.persist.enqueue(persistOp{name: "save_project", run: func(ctx context.Context, repo domain.ProjectRepository) error {
		return repo.SaveProject(ctx, id, project)
	}})
}
