package settlement

import (
	"github.com/VoltGrid-Network/settlement_layer/internal/app/domain/party"
	"github.com/VoltGrid-Network/settlement_layer/internal/app/domain/settlement"
	"github.com/VoltGrid-Network/settlement_layer/internal/app/events"
)

// RequestAdd opens a two-phase supply addition. Owner-only. Only one pending
// request may exist at a time; the delay window lets out-of-band metering
// verification happen before the inventory becomes purchasable.
func (e *Engine) RequestAdd(caller party.Address, units uint64) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if err := e.requireOwner(caller); err != nil {
		return err
	}
	if units == 0 {
		return settlement.ErrZeroUnits
	}
	if e.pending != nil {
		return settlement.ErrPendingRequestExists
	}

	now := e.clock.Now()
	e.pending = &settlement.PendingAdd{Units: units, RequestedAt: now}

	e.log.WithField("units", units).Info("supply addition requested")
	e.publish(events.TypeSupplyAddRequested, events.SupplyAddRequested{Units: units, RequestedAt: now})
	return nil
}

// ConfirmAdd completes a pending supply addition once the delay has elapsed.
// Owner-only. The confirmed units must match the pending request exactly.
func (e *Engine) ConfirmAdd(caller party.Address, units uint64) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if err := e.requireOwner(caller); err != nil {
		return err
	}
	if e.pending == nil {
		return settlement.ErrNoPendingRequest
	}
	if e.clock.Now().Before(e.pending.RequestedAt.Add(e.cfg.AddDelay)) {
		return settlement.ErrDelayNotElapsed
	}
	if units != e.pending.Units {
		return settlement.ErrAmountMismatch
	}

	e.available += units
	e.pending = nil

	e.log.WithField("units", units).
		WithField("available", e.available).
		Info("supply addition confirmed")
	e.publish(events.TypeSupplyAddConfirmed, events.SupplyAddConfirmed{Units: units, Available: e.available})
	return nil
}

// AvailableUnits returns the purchasable inventory.
func (e *Engine) AvailableUnits() uint64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.available
}

// PendingAdd returns the in-flight supply request, if any.
func (e *Engine) PendingAdd() (settlement.PendingAdd, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.pending == nil {
		return settlement.PendingAdd{}, false
	}
	return *e.pending, true
}
