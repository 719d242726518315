package sdruntime

import (
	"context"
	"sync"
)

// PooledContext is an SDContext checked out of a ContextPool.
type PooledContext struct {
	*SDContext
	poolID int
}

// ContextPool hands out up to maxSize engine contexts. Contexts are
// created lazily on Acquire and reused after Release.
type ContextPool struct {
	mu        sync.Mutex
	contexts  chan *PooledContext
	maxSize   int
	modelPath string
	closed    bool
	created   int
	nextID    int
}

// NewContextPool returns an empty pool. maxSize must be positive.
func NewContextPool(maxSize int, modelPath string) (*ContextPool, error) {
	if maxSize <= 0 {
		return nil, ErrInvalidParams
	}

	return &ContextPool{
		contexts:  make(chan *PooledContext, maxSize),
		maxSize:   maxSize,
		modelPath: modelPath,
		nextID:    1,
	}, nil
}

// Acquire returns an idle context, creates one if the pool has capacity,
// or waits for a Release until ctx is done.
//
// Errors: ErrContextPoolClosed, ErrAcquireTimeout, or a LoadModel error.
func (p *ContextPool) Acquire(ctx context.Context) (*PooledContext, error) {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil, ErrContextPoolClosed
	}

	select {
	case pc := <-p.contexts:
		p.mu.Unlock()
		return pc, nil
	default:
	}

	if p.created < p.maxSize {
		poolID := p.nextID
		p.nextID++
		p.created++
		p.mu.Unlock()

		sdCtx, err := LoadModel(p.modelPath)
		if err != nil {
			p.mu.Lock()
			p.created--
			p.mu.Unlock()
			return nil, err
		}

		return &PooledContext{SDContext: sdCtx, poolID: poolID}, nil
	}
	p.mu.Unlock()

	select {
	case pc, ok := <-p.contexts:
		if !ok || pc == nil {
			return nil, ErrContextPoolClosed
		}
		p.mu.Lock()
		defer p.mu.Unlock()
		if p.closed {
			FreeContext(pc.SDContext)
			return nil, ErrContextPoolClosed
		}
		return pc, nil

	case <-ctx.Done():
		return nil, ErrAcquireTimeout
	}
}

// Release returns pc to the pool, or frees it if the pool is closed.
// Passing nil is a no-op.
func (p *ContextPool) Release(pc *PooledContext) {
	if pc == nil {
		return
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		FreeContext(pc.SDContext)
		p.created--
		return
	}

	select {
	case p.contexts <- pc:
	default:
		FreeContext(pc.SDContext)
		p.created--
	}
}

// Close frees all idle contexts. Contexts still checked out are freed on
// Release. Close is idempotent.
func (p *ContextPool) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return nil
	}

	p.closed = true
	close(p.contexts)

	for pc := range p.contexts {
		if pc != nil && pc.SDContext != nil {
			FreeContext(pc.SDContext)
			p.created--
		}
	}

	return nil
}

// idle returns the number of idle contexts.
func (p *ContextPool) idle() int {
	return len(p.contexts)
}

// live returns the number of live contexts, idle or acquired.
func (p *ContextPool) live() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.created
}
