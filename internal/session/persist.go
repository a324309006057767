package session

import (
	"context"
	"sync"
	"time"

	"asseto/internal/domain"
	"asseto/internal/infra"
)

const persistTimeout = 10 * time.Second

// persistOp is one queued repository write. Ops with a generation older than
// the newest one already handled belong to a replaced batch and are dropped.
// Generation 0 marks writes that are not tied to a batch. A pending op with
// the same non-empty key is overwritten in place by a newer one.
type persistOp struct {
	name       string
	key        string
	generation uint64
	run        func(ctx context.Context, repo domain.ProjectRepository) error
}

// persister applies repository writes one at a time in submission order.
// enqueue never blocks: a slow repository only grows the pending list, which
// stays bounded because per-image writes are keyed. Failures are logged and
// never reach the caller.
type persister struct {
	repo    domain.ProjectRepository
	logger  *infra.Logger
	timeout time.Duration

	mu      sync.Mutex
	closed  bool
	pending []persistOp
	keyed   map[string]int
	wake    chan struct{}
	done    chan struct{}

	latest uint64 // owned by run
}

func newPersister(repo domain.ProjectRepository, logger *infra.Logger) *persister {
	if logger == nil {
		logger = infra.NopLogger()
	}
	p := &persister{
		repo:    repo,
		logger:  logger,
		timeout: persistTimeout,
		keyed:   make(map[string]int),
		wake:    make(chan struct{}, 1),
		done:    make(chan struct{}),
	}
	go p.run()
	return p
}

func (p *persister) enqueue(op persistOp) {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		p.logger.Warn().Str("op", op.name).Msg("persist: queue closed, dropping write")
		return
	}
	if i, ok := p.keyed[op.key]; ok && op.key != "" {
		p.pending[i] = op
		p.mu.Unlock()
		return
	}
	if op.key != "" {
		p.keyed[op.key] = len(p.pending)
	}
	p.pending = append(p.pending, op)
	p.mu.Unlock()
	p.signal()
}

func (p *persister) signal() {
	select {
	case p.wake <- struct{}{}:
	default:
	}
}

// take hands the pending ops to the caller and reports whether the queue was
// closed at that point.
func (p *persister) take() ([]persistOp, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	ops := p.pending
	p.pending = nil
	clear(p.keyed)
	return ops, p.closed
}

func (p *persister) run() {
	defer close(p.done)
	p.logger.Debug().Msg("persist: started")
	for {
		ops, closed := p.take()
		if len(ops) == 0 {
			if closed {
				p.logger.Debug().Msg("persist: stopped")
				return
			}
			<-p.wake
			continue
		}
		for _, op := range ops {
			p.handle(op)
		}
	}
}

func (p *persister) handle(op persistOp) {
	if op.generation != 0 {
		if op.generation < p.latest {
			p.logger.Debug().
				Str("op", op.name).
				Uint64("generation", op.generation).
				Uint64("latest", p.latest).
				Msg("persist: skip stale write")
			return
		}
		p.latest = op.generation
	}
	ctx, cancel := context.WithTimeout(context.Background(), p.timeout)
	defer cancel()
	if err := op.run(ctx, p.repo); err != nil {
		p.logger.Error().Err(err).Str("op", op.name).Uint64("generation", op.generation).Msg("persist: write failed")
	}
}

// close stops accepting writes and waits until the queue drained or ctx ends.
func (p *persister) close(ctx context.Context) error {
	p.mu.Lock()
	p.closed = true
	p.mu.Unlock()
	p.signal()
	select {
	case <-p.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
