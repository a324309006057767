package batch

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/sync/singleflight"

	"asseto/internal/domain"
	"asseto/internal/infra"
	"asseto/internal/providers/image"
	"asseto/internal/state"
)

// Outcome describes a regeneration attempt. When Replaced is false, Image is
// the item exactly as it was before the call and Reason says why.
type Outcome struct {
	Image    domain.GeneratedImage
	Replaced bool
	Reason   string
}

// Regenerator re-runs generation for a single item. Overlapping calls for the
// same item of the same generation share one generator call.
type Regenerator struct {
	store     *state.Store
	generator image.Generator
	timeout   time.Duration
	logger    *infra.Logger
	now       func() time.Time
	onSettle  func(uint64, domain.GeneratedImage)
	group     singleflight.Group
}

// NewRegenerator builds a regenerator over store. Only Generator, Timeout,
// Logger, Now and OnSettle are used.
func NewRegenerator(store *state.Store, opts Options) (*Regenerator, error) {
	if store == nil {
		return nil, errors.New("batch: store is required")
	}
	if opts.Generator == nil {
		return nil, errors.New("batch: generator is required")
	}
	r := &Regenerator{
		store:     store,
		generator: opts.Generator,
		timeout:   opts.Timeout,
		logger:    opts.Logger,
		now:       opts.Now,
		onSettle:  opts.OnSettle,
	}
	if r.timeout <= 0 {
		r.timeout = defaultTimeout
	}
	if r.logger == nil {
		r.logger = infra.NopLogger()
	}
	if r.now == nil {
		r.now = time.Now
	}
	return r, nil
}

// Regenerate issues one generator call with the item's stored prompt and the
// current project's aspect ratio. On success the item is replaced in place;
// on any failure it is left untouched. The returned error is only set when
// the item does not exist or is still pending.
//
// Overlapping callers share one generator call, detached from their contexts
// and bounded by the regenerator's timeout. A caller whose ctx ends first gets
// the original item back with the context error as Reason.
func (r *Regenerator) Regenerate(ctx context.Context, id string) (Outcome, error) {
	snap := r.store.Snapshot()
	original, ok := snap.Get(id)
	if !ok {
		return Outcome{}, fmt.Errorf("%w: image %q", domain.ErrNotFound, id)
	}
	if original.Status == domain.ImageStatusPending {
		return Outcome{Image: original}, fmt.Errorf("%w: image %q", domain.ErrPending, id)
	}

	key := fmt.Sprintf("%d/%s", snap.Generation, id)
	shared := context.WithoutCancel(ctx)
	ch := r.group.DoChan(key, func() (any, error) {
		return r.run(shared, snap.Generation, original, snap.Project.TargetAspectRatio()), nil
	})
	select {
	case res := <-ch:
		return res.Val.(Outcome), nil
	case <-ctx.Done():
		return Outcome{Image: original, Reason: ctx.Err().Error()}, nil
	}
}

func (r *Regenerator) run(ctx context.Context, generation uint64, original domain.GeneratedImage, aspect string) Outcome {
	log := r.logger.With().
		Str("image_id", original.ID).
		Uint64("generation", generation).
		Logger()

	asset, err := invoke(ctx, r.generator, r.timeout, image.GenerateRequest{
		Prompt:      original.Prompt,
		AspectRatio: aspect,
		RequestID:   original.ID,
	})
	if err != nil {
		log.Warn().Err(err).Msg("regenerate: generation failed, keeping previous image")
		return Outcome{Image: original, Reason: err.Error()}
	}

	img, applied := r.store.Apply(settlementFor(generation, original.ID, asset, nil, r.now()))
	if !applied {
		log.Info().Msg("regenerate: batch replaced while regenerating, result discarded")
		return Outcome{Image: original, Reason: domain.ErrStaleGeneration.Error()}
	}
	log.Debug().Msg("regenerate: image replaced")

	notify(r.logger, r.onSettle, generation, img)
	return Outcome{Image: img, Replaced: true}
}
