package corpus

import (
	"context"
	"strconv"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/kirillkom/manual-assistant/internal/core/domain"
	"github.com/kirillkom/manual-assistant/internal/core/ports"
)

// Cached serves corpus snapshots from memory for ttl. Concurrent misses
// share one scan. Callers must not modify the returned slice.
type Cached struct {
	source ports.CorpusScanner
	ttl    time.Duration
	now    func() time.Time

	group singleflight.Group

	mu         sync.RWMutex
	snapshot   []domain.Passage
	loadedAt   time.Time
	populated  bool
	generation uint64
}

func NewCached(source ports.CorpusScanner, ttl time.Duration) *Cached {
	return &Cached{source: source, ttl: ttl, now: time.Now}
}

// ScanPassages returns the cached snapshot or loads a new one. The shared
// scan is detached from any single caller's cancellation; each caller still
// stops waiting when its own ctx is done.
func (c *Cached) ScanPassages(ctx context.Context) ([]domain.Passage, error) {
	if c.ttl <= 0 {
		return c.source.ScanPassages(ctx)
	}
	snap, gen, ok := c.fresh()
	if ok {
		return snap, nil
	}

	scanCtx := context.WithoutCancel(ctx)
	ch := c.group.DoChan("scan-"+strconv.FormatUint(gen, 10), func() (any, error) {
		if snap, _, ok := c.fresh(); ok {
			return snap, nil
		}
		passages, err := c.source.ScanPassages(scanCtx)
		if err != nil {
			return nil, err
		}
		c.store(gen, passages)
		return passages, nil
	})

	select {
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.([]domain.Passage), nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Invalidate forces the next scan to hit the source. A scan already in
// flight still answers its waiters but is not kept as the snapshot.
func (c *Cached) Invalidate() {
	c.mu.Lock()
	c.populated = false
	c.snapshot = nil
	c.generation++
	c.mu.Unlock()
}

func (c *Cached) store(gen uint64, passages []domain.Passage) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if gen != c.generation {
		return
	}
	c.snapshot = passages
	c.loadedAt = c.now()
	c.populated = true
}

func (c *Cached) fresh() ([]domain.Passage, uint64, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if !c.populated || c.now().Sub(c.loadedAt) >= c.ttl {
		return nil, c.generation, false
	}
	return c.snapshot, c.generation, true
}
