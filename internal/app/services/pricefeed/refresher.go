package pricefeed

import (
	"context"
	"sync"
	"time"

	"github.com/VoltGrid-Network/settlement_layer/internal/app/system"
	"github.com/VoltGrid-Network/settlement_layer/pkg/logger"
)

var _ system.Service = (*Refresher)(nil)

// Refresher keeps the cache warm by refreshing it on a fixed interval so the
// purchase path normally never waits on the external feed.
type Refresher struct {
	cache    *Cache
	log      *logger.Logger
	interval time.Duration

	mu      sync.Mutex
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	running bool
}

// NewRefresher creates a lifecycle-managed cache refresher.
func NewRefresher(cache *Cache, interval time.Duration, log *logger.Logger) *Refresher {
	if log == nil {
		log = logger.NewDefault("pricefeed-refresher")
	}
	if interval <= 0 {
		interval = 30 * time.Second
	}
	return &Refresher{
		cache:    cache,
		log:      log,
		interval: interval,
	}
}

func (r *Refresher) Name() string { return "pricefeed-refresher" }

func (r *Refresher) Start(ctx context.Context) error {
	r.mu.Lock()
	if r.running {
		r.mu.Unlock()
		return nil
	}
	runCtx, cancel := context.WithCancel(ctx)
	r.cancel = cancel
	r.running = true
	r.mu.Unlock()

	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		ticker := time.NewTicker(r.interval)
		defer ticker.Stop()

		r.tick(runCtx)
		for {
			select {
			case <-runCtx.Done():
				return
			case <-ticker.C:
				r.tick(runCtx)
			}
		}
	}()

	r.log.Info("price feed refresher started")
	return nil
}

func (r *Refresher) Stop(ctx context.Context) error {
	r.mu.Lock()
	if !r.running {
		r.mu.Unlock()
		return nil
	}
	cancel := r.cancel
	r.running = false
	r.cancel = nil
	r.mu.Unlock()

	if cancel != nil {
		cancel()
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		r.wg.Wait()
	}()

	select {
	case <-done:
	case <-ctx.Done():
		return ctx.Err()
	}

	r.log.Info("price feed refresher stopped")
	return nil
}

func (r *Refresher) tick(ctx context.Context) {
	if r.cache == nil {
		return
	}
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	r.cache.Refresh(ctx)
}
