// Package batch expands a project into generation jobs, runs them against an
// image generator and settles each result into the state store. It also
// regenerates single items in place.
package batch

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/semaphore"

	"asseto/internal/domain"
	"asseto/internal/infra"
	"asseto/internal/providers/image"
	"asseto/internal/state"
)

const (
	defaultConcurrency = 4
	defaultTimeout     = 90 * time.Second
)

// Placeholder reserves one slot of a batch before its job runs.
type Placeholder struct {
	ID        string
	SectionID string
	Slot      int
}

// PromptBuilder renders the generation prompt for one section.
type PromptBuilder func(project domain.ProjectConfig, section domain.SectionConfig) string

// Options configures a Scheduler. Only Generator is required.
type Options struct {
	Generator   image.Generator
	Prompts     PromptBuilder
	Concurrency int
	Timeout     time.Duration
	Logger      *infra.Logger
	Now         func() time.Time
	NewID       func() string
	// OnLaunch is called once the placeholders of a batch are installed,
	// before any of its jobs runs.
	OnLaunch func(b *Batch)
	// OnSettle is called after a settlement was merged into the store.
	OnSettle func(generation uint64, img domain.GeneratedImage)
	// OnFinish is called with the aggregate status once every job settled.
	OnFinish func(b *Batch, status domain.BatchStatus)
}

// Scheduler launches batches. It is safe for concurrent use.
type Scheduler struct {
	store       *state.Store
	generator   image.Generator
	prompts     PromptBuilder
	concurrency int
	timeout     time.Duration
	logger      *infra.Logger
	now         func() time.Time
	newID       func() string
	onLaunch    func(*Batch)
	onSettle    func(uint64, domain.GeneratedImage)
	onFinish    func(*Batch, domain.BatchStatus)
}

// Batch is a launched set of jobs.
type Batch struct {
	ID         string
	Generation uint64
	Project    domain.ProjectConfig
	Items      []domain.GeneratedImage

	done   chan struct{}
	status domain.BatchStatus
}

// Done is closed once every job of the batch has settled.
func (b *Batch) Done() <-chan struct{} {
	return b.done
}

// Wait blocks until the batch settles or ctx ends.
func (b *Batch) Wait(ctx context.Context) (domain.BatchStatus, error) {
	select {
	case <-b.done:
		return b.status, nil
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

// NewScheduler builds a scheduler writing into store.
func NewScheduler(store *state.Store, opts Options) (*Scheduler, error) {
	if store == nil {
		return nil, errors.New("batch: store is required")
	}
	if opts.Generator == nil {
		return nil, errors.New("batch: generator is required")
	}
	s := &Scheduler{
		store:       store,
		generator:   opts.Generator,
		prompts:     opts.Prompts,
		concurrency: opts.Concurrency,
		timeout:     opts.Timeout,
		logger:      opts.Logger,
		now:         opts.Now,
		newID:       opts.NewID,
		onLaunch:    opts.OnLaunch,
		onSettle:    opts.OnSettle,
		onFinish:    opts.OnFinish,
	}
	if s.prompts == nil {
		s.prompts = image.BuildSectionPrompt
	}
	if s.concurrency < 1 {
		s.concurrency = defaultConcurrency
	}
	if s.timeout <= 0 {
		s.timeout = defaultTimeout
	}
	if s.logger == nil {
		s.logger = infra.NopLogger()
	}
	if s.now == nil {
		s.now = time.Now
	}
	if s.newID == nil {
		s.newID = uuid.NewString
	}
	return s, nil
}

// ExpandBatch produces one placeholder per requested image, in section order
// then slot order. Every placeholder gets a fresh id from newID.
func ExpandBatch(project domain.ProjectConfig, newID func() string) []Placeholder {
	out := make([]Placeholder, 0, project.TotalImages())
	for _, section := range project.Sections {
		for slot := 0; slot < section.ImageCount; slot++ {
			out = append(out, Placeholder{ID: newID(), SectionID: section.ID, Slot: slot})
		}
	}
	return out
}

// Launch validates project, replaces the store contents with fresh PENDING
// placeholders under a new generation and starts the jobs. It returns once the
// placeholders are installed. Jobs run under ctx, so callers launching from a
// request should pass a context that outlives it.
func (s *Scheduler) Launch(ctx context.Context, project domain.ProjectConfig) (*Batch, error) {
	if err := project.Validate(); err != nil {
		return nil, err
	}
	project = project.Clone()

	placeholders := ExpandBatch(project, s.newID)
	items := make([]domain.GeneratedImage, 0, len(placeholders))
	prompts := make(map[string]string, len(project.Sections))
	for _, p := range placeholders {
		prompt, ok := prompts[p.SectionID]
		if !ok {
			section, _ := project.Section(p.SectionID)
			prompt = s.prompts(project, section)
			prompts[p.SectionID] = prompt
		}
		items = append(items, domain.GeneratedImage{
			ID:        p.ID,
			SectionID: p.SectionID,
			Prompt:    prompt,
			CreatedAt: s.now(),
			Status:    domain.ImageStatusPending,
		})
	}

	b := &Batch{
		ID:      s.newID(),
		Project: project,
		Items:   items,
		done:    make(chan struct{}),
	}
	b.Generation = s.store.Begin(project, items)

	s.logger.Info().
		Str("batch_id", b.ID).
		Uint64("generation", b.Generation).
		Int("items", len(items)).
		Int("concurrency", s.concurrency).
		Msg("batch: launched")

	if s.onLaunch != nil {
		s.onLaunch(b)
	}
	go func() {
		b.status = s.RunBatch(ctx, b)
		close(b.done)
	}()
	return b, nil
}

// Run launches a batch and waits for it to settle.
func (s *Scheduler) Run(ctx context.Context, project domain.ProjectConfig) (*Batch, domain.BatchStatus, error) {
	b, err := s.Launch(ctx, project)
	if err != nil {
		return nil, "", err
	}
	<-b.done
	return b, b.status, nil
}

// RunBatch runs every job of b with at most Concurrency calls in flight and
// returns once all of them settled. Job failures never fail the batch; only a
// fault in the orchestration itself, including cancellation of ctx before all
// jobs were started, yields BatchStatusFailed. Every item is settled either way.
func (s *Scheduler) RunBatch(ctx context.Context, b *Batch) (status domain.BatchStatus) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error().
				Str("batch_id", b.ID).
				Interface("panic", r).
				Msg("batch: orchestration fault")
			status = domain.BatchStatusFailed
		}
		current := s.store.Finish(b.Generation, status)
		s.logger.Info().
			Str("batch_id", b.ID).
			Uint64("generation", b.Generation).
			Str("status", string(status)).
			Bool("current", current).
			Msg("batch: settled")
		if s.onFinish != nil {
			s.onFinish(b, status)
		}
	}()

	aspect := b.Project.TargetAspectRatio()
	sem := semaphore.NewWeighted(int64(s.concurrency))
	var wg sync.WaitGroup
	var aborted error

	for _, item := range b.Items {
		if err := sem.Acquire(ctx, 1); err != nil {
			aborted = err
			s.settle(b.ID, b.Generation, item, image.Asset{}, fmt.Errorf("batch aborted: %w", err))
			continue
		}
		wg.Add(1)
		go func(item domain.GeneratedImage) {
			defer wg.Done()
			defer sem.Release(1)
			asset, err := s.generate(ctx, item, aspect)
			s.settle(b.ID, b.Generation, item, asset, err)
		}(item)
	}
	wg.Wait()

	if aborted != nil {
		return domain.BatchStatusFailed
	}
	return domain.BatchStatusCompleted
}

type generateResult struct {
	asset image.Asset
	err   error
}

func (s *Scheduler) generate(ctx context.Context, item domain.GeneratedImage, aspect string) (image.Asset, error) {
	return invoke(ctx, s.generator, s.timeout, image.GenerateRequest{
		Prompt:      item.Prompt,
		AspectRatio: aspect,
		RequestID:   item.ID,
	})
}

// invoke performs one generator call bounded by timeout. A generator that
// ignores its context is abandoned when the timeout fires, and a panic inside
// the generator is reported as an error.
func invoke(ctx context.Context, gen image.Generator, timeout time.Duration, req image.GenerateRequest) (image.Asset, error) {
	jobCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	results := make(chan generateResult, 1)
	go func() {
		var res generateResult
		defer func() {
			if r := recover(); r != nil {
				res = generateResult{err: fmt.Errorf("panic: %v", r)}
			}
			results <- res
		}()
		res.asset, res.err = gen.Generate(jobCtx, req)
	}()

	select {
	case res := <-results:
		if res.err != nil {
			return image.Asset{}, fmt.Errorf("%w: %w", domain.ErrProviderFailure, res.err)
		}
		if len(res.asset.Data) == 0 {
			return image.Asset{}, fmt.Errorf("%w: %w", domain.ErrProviderFailure, image.ErrEmptyImage)
		}
		return res.asset, nil
	case <-jobCtx.Done():
		return image.Asset{}, fmt.Errorf("%w: %w", domain.ErrProviderFailure, jobCtx.Err())
	}
}

// settle converts a job outcome into a settlement and merges it.
func (s *Scheduler) settle(batchID string, generation uint64, item domain.GeneratedImage, asset image.Asset, err error) {
	st := settlementFor(generation, item.ID, asset, err, s.now())
	img, applied := s.store.Apply(st)

	evt := s.logger.Debug()
	if err != nil {
		evt = s.logger.Warn().Err(err)
	}
	evt.Str("batch_id", batchID).
		Uint64("generation", generation).
		Str("image_id", item.ID).
		Str("section_id", item.SectionID).
		Str("status", string(st.Patch.Status)).
		Bool("applied", applied).
		Msg("batch: job settled")

	if applied {
		notify(s.logger, s.onSettle, generation, img)
	}
}

// notify runs the settle hook, containing any panic it raises.
func notify(logger *infra.Logger, hook func(uint64, domain.GeneratedImage), generation uint64, img domain.GeneratedImage) {
	if hook == nil {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			logger.Error().Str("image_id", img.ID).Interface("panic", r).Msg("batch: settle hook panicked")
		}
	}()
	hook(generation, img)
}

func settlementFor(generation uint64, id string, asset image.Asset, err error, now time.Time) state.Settlement {
	patch := state.Patch{CreatedAt: now, Status: domain.ImageStatusFailed}
	switch {
	case err != nil:
		patch.Error = err.Error()
	case len(asset.Data) == 0:
		patch.Error = domain.ErrNoArtifact.Error()
	default:
		mime := asset.MIMEType
		if mime == "" {
			mime = "image/png"
		}
		patch.Status = domain.ImageStatusCompleted
		patch.Artifact = &domain.Artifact{Data: asset.Data, MIMEType: mime}
	}
	return state.Settlement{Generation: generation, ImageID: id, Patch: patch}
}
