package settlement

import (
	"context"

	"github.com/holiman/uint256"

	"github.com/VoltGrid-Network/settlement_layer/internal/app/domain/party"
	"github.com/VoltGrid-Network/settlement_layer/internal/app/domain/settlement"
	"github.com/VoltGrid-Network/settlement_layer/internal/app/events"
	"github.com/VoltGrid-Network/settlement_layer/internal/app/metrics"
)

// paymentScale converts a USD-cents cost into wei against an 8-decimal USD
// price: 10^18 (wei per ether) * 10^8 (price decimals) / 10^2 (cents per
// dollar) = 10^24.
var paymentScale = new(uint256.Int).Mul(uint256.NewInt(1e12), uint256.NewInt(1e12))

// RequiredPaymentWei computes the wei owed for units of energy at the given
// unit price and the cached 8-decimal USD price.
func RequiredPaymentWei(units, unitPriceCents uint64, priceScaled int64) (*uint256.Int, error) {
	if priceScaled <= 0 {
		return nil, settlement.ErrInvalidEthPrice
	}

	cost := new(uint256.Int).Mul(uint256.NewInt(units), uint256.NewInt(unitPriceCents))
	cost.Mul(cost, paymentScale)
	return cost.Div(cost, uint256.NewInt(uint64(priceScaled))), nil
}

// Reveal discloses the parameters behind the caller's commitment and settles
// the purchase with the attached value. All validation happens before any
// state mutation, and the overpayment becomes a ledger credit rather than an
// outbound transfer, so the operation performs no external calls that could
// re-enter it.
func (e *Engine) Reveal(ctx context.Context, caller party.Address, units, nonce uint64, value *uint256.Int) (settlement.Receipt, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if value == nil {
		value = uint256.NewInt(0)
	}

	if err := e.requireAuthorized(caller); err != nil {
		metrics.RecordSettlement("rejected", 0)
		return settlement.Receipt{}, err
	}
	if err := e.requireNotPaused(); err != nil {
		metrics.RecordSettlement("rejected", 0)
		return settlement.Receipt{}, err
	}

	commitment, ok := e.commitments[caller]
	if !ok || commitment.Hash != ComputeCommitment(caller, units, nonce) {
		metrics.RecordSettlement("rejected", 0)
		return settlement.Receipt{}, settlement.ErrInvalidCommitment
	}

	now := e.clock.Now()
	if now.After(commitment.CreatedAt.Add(e.cfg.RevealWindow)) {
		metrics.RecordSettlement("rejected", 0)
		return settlement.Receipt{}, settlement.ErrCommitmentExpired
	}

	if units > e.available {
		metrics.RecordSettlement("rejected", 0)
		return settlement.Receipt{}, &settlement.InsufficientEnergyError{Requested: units, Available: e.available}
	}

	quote, err := e.price.Cached(ctx)
	if err != nil {
		metrics.RecordSettlement("rejected", 0)
		return settlement.Receipt{}, err
	}
	required, err := RequiredPaymentWei(units, e.cfg.UnitPriceCents, quote.PriceScaled)
	if err != nil {
		metrics.RecordSettlement("rejected", 0)
		return settlement.Receipt{}, err
	}
	if value.Lt(required) {
		metrics.RecordSettlement("rejected", 0)
		return settlement.Receipt{}, &settlement.PaymentTooSmallError{Provided: value.Clone(), Required: required.Clone()}
	}

	// All checks passed; mutate.
	e.available -= units

	tx := settlement.Transaction{
		Index:          uint64(len(e.transactions)),
		Buyer:          caller,
		Units:          units,
		UnitPriceCents: e.cfg.UnitPriceCents,
		EthPriceScaled: quote.PriceScaled,
		Timestamp:      now,
	}
	e.transactions = append(e.transactions, tx)

	delete(e.commitments, caller)

	refund := new(uint256.Int).Sub(value, required)
	if !refund.IsZero() {
		e.creditRefundLocked(caller, refund)
	}

	e.log.WithField("buyer", caller).
		WithField("units", units).
		WithField("index", tx.Index).
		WithField("required_wei", required.Dec()).
		Info("purchase settled")
	metrics.RecordSettlement("settled", units)
	e.publish(events.TypePurchaseSettled, events.PurchaseSettled{
		Transaction: tx,
		PaidWei:     value.Dec(),
		RefundWei:   refund.Dec(),
	})

	return settlement.Receipt{
		Transaction: tx,
		PaidWei:     value.Clone(),
		RequiredWei: required,
		RefundWei:   refund,
	}, nil
}
