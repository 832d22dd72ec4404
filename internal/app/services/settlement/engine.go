// Package settlement implements the energy settlement engine: authorization
// registry, two-phase supply addition, commit-reveal purchases, pull-payment
// refunds and the pause circuit breaker.
//
// A single Engine value owns all settlement state. One mutex serialises the
// public operations, so each runs to completion before the next begins; that
// mirrors the one-call-at-a-time execution model of the environment this
// protocol settles against. There is no ambient or global state.
package settlement

import (
	"context"
	"sync"
	"time"

	"github.com/holiman/uint256"

	"github.com/VoltGrid-Network/settlement_layer/internal/app/domain/party"
	"github.com/VoltGrid-Network/settlement_layer/internal/app/domain/pricefeed"
	"github.com/VoltGrid-Network/settlement_layer/internal/app/domain/settlement"
	"github.com/VoltGrid-Network/settlement_layer/internal/app/events"
	"github.com/VoltGrid-Network/settlement_layer/pkg/logger"
)

// Clock supplies the engine's logical time. Cooldowns, delays and expiry
// windows are evaluated against it, never against a wall clock read mid-call.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now().UTC() }

// PriceSource yields the cached USD price used to convert cents into wei.
type PriceSource interface {
	Cached(ctx context.Context) (pricefeed.Quote, error)
}

// Transferor executes the outbound value transfer for refund withdrawals.
// It is the only path by which value ever leaves the engine.
type Transferor interface {
	Transfer(ctx context.Context, to party.Address, amountWei *uint256.Int) error
}

// Config carries the protocol constants. These vary per deployment and are
// loaded from configuration, not hard-coded.
type Config struct {
	AddDelay       time.Duration // two-phase supply confirmation delay
	CommitCooldown time.Duration // minimum spacing between commits per party
	RevealWindow   time.Duration // commitment lifetime
	UnitPriceCents uint64        // USD cents per energy unit
}

func (c Config) withDefaults() Config {
	if c.AddDelay <= 0 {
		c.AddDelay = 120 * time.Second
	}
	if c.CommitCooldown <= 0 {
		c.CommitCooldown = 5 * time.Minute
	}
	if c.RevealWindow <= 0 {
		c.RevealWindow = 5 * time.Minute
	}
	if c.UnitPriceCents == 0 {
		c.UnitPriceCents = 50
	}
	return c
}

// Engine is the settlement core. All exported methods are safe for concurrent
// use; each executes as one atomic state transition.
type Engine struct {
	cfg      Config
	owner    party.Address
	clock    Clock
	price    PriceSource
	transfer Transferor
	bus      *events.Bus
	log      *logger.Logger

	mu           sync.Mutex
	paused       bool
	authorized   map[party.Address]bool
	parties      []party.Address // enumerable registry, swap-and-pop removal
	available    uint64
	pending      *settlement.PendingAdd
	commitments  map[party.Address]settlement.Commitment
	lastCommitAt map[party.Address]time.Time
	refunds      map[party.Address]*uint256.Int
	transactions []settlement.Transaction
	withdrawing  map[party.Address]bool // reentrancy guard for Withdraw
}

// Option customises engine construction.
type Option func(*Engine)

// WithClock overrides the logical clock (tests).
func WithClock(clock Clock) Option {
	return func(e *Engine) {
		if clock != nil {
			e.clock = clock
		}
	}
}

// WithBus attaches the event bus the engine publishes state transitions to.
func WithBus(bus *events.Bus) Option {
	return func(e *Engine) { e.bus = bus }
}

// NewEngine constructs an engine owned by the given supplier address. The
// owner is seeded as an authorized party.
func NewEngine(owner party.Address, cfg Config, price PriceSource, transfer Transferor, log *logger.Logger, opts ...Option) (*Engine, error) {
	if owner.IsZero() {
		return nil, settlement.ErrInvalidPartyAddress
	}
	if log == nil {
		log = logger.NewDefault("settlement")
	}

	e := &Engine{
		cfg:          cfg.withDefaults(),
		owner:        owner,
		clock:        systemClock{},
		price:        price,
		transfer:     transfer,
		log:          log,
		authorized:   make(map[party.Address]bool),
		commitments:  make(map[party.Address]settlement.Commitment),
		lastCommitAt: make(map[party.Address]time.Time),
		refunds:      make(map[party.Address]*uint256.Int),
		withdrawing:  make(map[party.Address]bool),
	}
	for _, opt := range opts {
		opt(e)
	}

	e.authorized[owner] = true
	e.parties = append(e.parties, owner)
	return e, nil
}

// Owner returns the supplying authority's address.
func (e *Engine) Owner() party.Address { return e.owner }

// Pause trips the circuit breaker, disabling Commit and Reveal. Owner-only;
// admin operations remain available while paused.
func (e *Engine) Pause(caller party.Address) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if err := e.requireOwner(caller); err != nil {
		return err
	}
	if e.paused {
		return nil
	}
	e.paused = true
	e.log.WithField("caller", caller).Warn("settlement paused")
	e.publish(events.TypePauseChanged, events.PauseChanged{Paused: true})
	return nil
}

// Unpause re-enables the purchase path. Owner-only.
func (e *Engine) Unpause(caller party.Address) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if err := e.requireOwner(caller); err != nil {
		return err
	}
	if !e.paused {
		return nil
	}
	e.paused = false
	e.log.WithField("caller", caller).Info("settlement unpaused")
	e.publish(events.TypePauseChanged, events.PauseChanged{Paused: false})
	return nil
}

// Paused reports the circuit breaker state.
func (e *Engine) Paused() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.paused
}

// TransactionCount returns the number of settled transactions.
func (e *Engine) TransactionCount() uint64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return uint64(len(e.transactions))
}

// TransactionByIndex returns a settled transaction by its record index.
func (e *Engine) TransactionByIndex(index uint64) (settlement.Transaction, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if index >= uint64(len(e.transactions)) {
		return settlement.Transaction{}, false
	}
	return e.transactions[index], true
}

// Guards. Each is a pure precondition check called at the top of an operation
// with the engine lock held.

func (e *Engine) requireOwner(caller party.Address) error {
	if caller != e.owner {
		return settlement.ErrUnauthorizedCaller
	}
	return nil
}

func (e *Engine) requireAuthorized(caller party.Address) error {
	if !e.authorized[caller] {
		return settlement.ErrPartyNotAuthorized
	}
	return nil
}

func (e *Engine) requireNotPaused() error {
	if e.paused {
		return settlement.ErrEnforcedPause
	}
	return nil
}

func (e *Engine) publish(typ events.Type, data any) {
	if e.bus == nil {
		return
	}
	e.bus.Publish(events.Event{Type: typ, Timestamp: e.clock.Now(), Data: data})
}
