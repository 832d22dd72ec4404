package settlement

import (
	"context"
	"fmt"

	"github.com/holiman/uint256"

	"github.com/VoltGrid-Network/settlement_layer/internal/app/domain/party"
	"github.com/VoltGrid-Network/settlement_layer/internal/app/domain/settlement"
	"github.com/VoltGrid-Network/settlement_layer/internal/app/events"
	"github.com/VoltGrid-Network/settlement_layer/internal/app/metrics"
)

func (e *Engine) creditRefundLocked(p party.Address, amount *uint256.Int) {
	if existing, ok := e.refunds[p]; ok {
		existing.Add(existing, amount)
		return
	}
	e.refunds[p] = amount.Clone()
}

// RefundOf returns the caller's withdrawable balance.
func (e *Engine) RefundOf(p party.Address) *uint256.Int {
	e.mu.Lock()
	defer e.mu.Unlock()

	if owed, ok := e.refunds[p]; ok {
		return owed.Clone()
	}
	return uint256.NewInt(0)
}

// Withdraw pays out the caller's refund balance. The ledger entry is zeroed
// before the outbound transfer; a failed transfer restores it and fails the
// whole call, so the balance is never lost. The engine lock is released
// around the transfer, and the per-party guard rejects a reentrant Withdraw
// issued from inside the transfer itself.
func (e *Engine) Withdraw(ctx context.Context, caller party.Address) (*uint256.Int, error) {
	e.mu.Lock()
	if e.withdrawing[caller] {
		e.mu.Unlock()
		metrics.RecordRefundWithdrawal("reentrant")
		return nil, settlement.ErrReentrantCall
	}

	owed, ok := e.refunds[caller]
	if !ok || owed.IsZero() {
		e.mu.Unlock()
		metrics.RecordRefundWithdrawal("empty")
		return nil, settlement.ErrNoRefundsAvailable
	}

	delete(e.refunds, caller)
	e.withdrawing[caller] = true
	e.mu.Unlock()

	var transferErr error
	if e.transfer == nil {
		transferErr = fmt.Errorf("no transferor configured")
	} else {
		transferErr = e.transfer.Transfer(ctx, caller, owed.Clone())
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	delete(e.withdrawing, caller)

	if transferErr != nil {
		e.creditRefundLocked(caller, owed)
		e.log.WithError(transferErr).
			WithField("party", caller).
			Warn("refund transfer failed; balance restored")
		metrics.RecordRefundWithdrawal("failed")
		return nil, fmt.Errorf("%w: %v", settlement.ErrPaymentFailed, transferErr)
	}

	e.log.WithField("party", caller).
		WithField("amount_wei", owed.Dec()).
		Info("refund withdrawn")
	metrics.RecordRefundWithdrawal("paid")
	e.publish(events.TypeRefundWithdrawn, events.RefundWithdrawn{Party: caller, AmountWei: owed.Dec()})
	return owed.Clone(), nil
}
