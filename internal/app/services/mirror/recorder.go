// Package mirror copies settled transactions from the event stream into the
// off-chain store that dashboards render from. The engine never reads this
// mirror back.
package mirror

import (
	"context"
	"sync"
	"time"

	"github.com/VoltGrid-Network/settlement_layer/internal/app/events"
	"github.com/VoltGrid-Network/settlement_layer/internal/app/storage"
	"github.com/VoltGrid-Network/settlement_layer/internal/app/system"
	"github.com/VoltGrid-Network/settlement_layer/pkg/logger"
)

var _ system.Service = (*Recorder)(nil)

// Recorder subscribes to the bus and persists purchase settlements.
type Recorder struct {
	bus   *events.Bus
	store storage.TransactionStore
	log   *logger.Logger

	mu      sync.Mutex
	cancel  context.CancelFunc
	unsub   func()
	wg      sync.WaitGroup
	running bool
}

// NewRecorder creates a lifecycle-managed mirror recorder.
func NewRecorder(bus *events.Bus, store storage.TransactionStore, log *logger.Logger) *Recorder {
	if log == nil {
		log = logger.NewDefault("mirror")
	}
	return &Recorder{bus: bus, store: store, log: log}
}

func (r *Recorder) Name() string { return "transaction-mirror" }

func (r *Recorder) Start(ctx context.Context) error {
	r.mu.Lock()
	if r.running {
		r.mu.Unlock()
		return nil
	}
	runCtx, cancel := context.WithCancel(ctx)
	ch, unsub := r.bus.Subscribe(256)
	r.cancel = cancel
	r.unsub = unsub
	r.running = true
	r.mu.Unlock()

	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		for {
			select {
			case <-runCtx.Done():
				return
			case evt, ok := <-ch:
				if !ok {
					return
				}
				r.handle(runCtx, evt)
			}
		}
	}()

	r.log.Info("transaction mirror started")
	return nil
}

func (r *Recorder) Stop(ctx context.Context) error {
	r.mu.Lock()
	if !r.running {
		r.mu.Unlock()
		return nil
	}
	cancel := r.cancel
	unsub := r.unsub
	r.running = false
	r.cancel = nil
	r.unsub = nil
	r.mu.Unlock()

	if unsub != nil {
		unsub()
	}
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
	return nil
}

func (r *Recorder) handle(ctx context.Context, evt events.Event) {
	if evt.Type != events.TypePurchaseSettled {
		return
	}
	settled, ok := evt.Data.(events.PurchaseSettled)
	if !ok {
		r.log.WithField("event_id", evt.ID).Warn("purchase event with unexpected payload")
		return
	}

	writeCtx, cancelWrite := context.WithTimeout(ctx, 5*time.Second)
	defer cancelWrite()

	if err := r.store.RecordTransaction(writeCtx, settled.Transaction); err != nil {
		r.log.WithError(err).
			WithField("index", settled.Transaction.Index).
			Warn("mirror write failed")
		return
	}
	r.log.WithField("index", settled.Transaction.Index).Debug("transaction mirrored")
}
