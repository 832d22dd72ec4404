package settlement

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/holiman/uint256"

	"github.com/VoltGrid-Network/settlement_layer/internal/app/domain/settlement"
)

// 100 units x 50 cents at $2000.00: 5000 cents * 10^24 / 2e11 = 2.5e16 wei.
const exactPaymentWei = "25000000000000000"

func TestRequiredPaymentWei(t *testing.T) {
	cases := []struct {
		name        string
		units       uint64
		cents       uint64
		priceScaled int64
		want        string
	}{
		{"hundred units at 2000usd", 100, 50, 2000 * 1e8, exactPaymentWei},
		{"single unit at 2000usd", 1, 50, 2000 * 1e8, "250000000000000"},
		{"division floors", 1, 50, 3000 * 1e8, "1666666666666666"},
		{"zero units", 0, 50, 2000 * 1e8, "0"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := RequiredPaymentWei(tc.units, tc.cents, tc.priceScaled)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got.Dec() != tc.want {
				t.Fatalf("expected %s wei, got %s", tc.want, got.Dec())
			}
		})
	}

	for _, bad := range []int64{0, -1} {
		if _, err := RequiredPaymentWei(1, 50, bad); !errors.Is(err, settlement.ErrInvalidEthPrice) {
			t.Fatalf("price %d: expected ErrInvalidEthPrice, got %v", bad, err)
		}
	}
}

// commitPurchase funds the supply, authorizes the buyer and records a
// commitment for the given parameters.
func (env *testEnv) commitPurchase(t *testing.T, units, nonce uint64) {
	t.Helper()
	env.fundSupply(t, 500)
	env.authorizeBuyer(t, testBuyer)
	if err := env.engine.Commit(testBuyer, ComputeCommitment(testBuyer, units, nonce)); err != nil {
		t.Fatalf("commit: %v", err)
	}
}

func mustWei(t *testing.T, dec string) *uint256.Int {
	t.Helper()
	v, err := uint256.FromDecimal(dec)
	if err != nil {
		t.Fatalf("parse wei %q: %v", dec, err)
	}
	return v
}

func TestReveal_ExactPayment(t *testing.T) {
	env := newTestEnv(t)
	env.commitPurchase(t, 100, 12345)

	receipt, err := env.engine.Reveal(context.Background(), testBuyer, 100, 12345, mustWei(t, exactPaymentWei))
	if err != nil {
		t.Fatalf("reveal: %v", err)
	}

	if got := env.engine.AvailableUnits(); got != 400 {
		t.Fatalf("expected 400 units remaining, got %d", got)
	}
	if receipt.RequiredWei.Dec() != exactPaymentWei {
		t.Fatalf("unexpected required wei %s", receipt.RequiredWei.Dec())
	}
	if !receipt.RefundWei.IsZero() {
		t.Fatalf("exact payment must not create a refund, got %s", receipt.RefundWei.Dec())
	}
	if !env.engine.RefundOf(testBuyer).IsZero() {
		t.Fatal("refund ledger must stay empty on exact payment")
	}

	tx := receipt.Transaction
	if tx.Index != 0 || tx.Buyer != testBuyer || tx.Units != 100 ||
		tx.UnitPriceCents != 50 || tx.EthPriceScaled != testPriceScaled {
		t.Fatalf("unexpected transaction record: %+v", tx)
	}
	if count := env.engine.TransactionCount(); count != 1 {
		t.Fatalf("expected 1 transaction, got %d", count)
	}
	stored, ok := env.engine.TransactionByIndex(0)
	if !ok || stored != tx {
		t.Fatalf("stored transaction mismatch: %+v ok=%v", stored, ok)
	}
}

func TestReveal_CommitmentIsSingleUse(t *testing.T) {
	env := newTestEnv(t)
	env.commitPurchase(t, 100, 12345)

	value := mustWei(t, exactPaymentWei)
	if _, err := env.engine.Reveal(context.Background(), testBuyer, 100, 12345, value); err != nil {
		t.Fatalf("first reveal: %v", err)
	}
	if _, err := env.engine.Reveal(context.Background(), testBuyer, 100, 12345, value); !errors.Is(err, settlement.ErrInvalidCommitment) {
		t.Fatalf("expected ErrInvalidCommitment on replay, got %v", err)
	}
	if _, ok := env.engine.CommitmentOf(testBuyer); ok {
		t.Fatal("consumed commitment must be deleted")
	}
}

func TestReveal_WrongParametersLeaveCommitmentIntact(t *testing.T) {
	env := newTestEnv(t)
	env.commitPurchase(t, 100, 12345)
	value := mustWei(t, exactPaymentWei)

	if _, err := env.engine.Reveal(context.Background(), testBuyer, 100, 99999, value); !errors.Is(err, settlement.ErrInvalidCommitment) {
		t.Fatalf("wrong nonce: expected ErrInvalidCommitment, got %v", err)
	}
	if _, err := env.engine.Reveal(context.Background(), testBuyer, 101, 12345, value); !errors.Is(err, settlement.ErrInvalidCommitment) {
		t.Fatalf("wrong units: expected ErrInvalidCommitment, got %v", err)
	}

	if _, ok := env.engine.CommitmentOf(testBuyer); !ok {
		t.Fatal("failed reveal must not consume the commitment")
	}
	if got := env.engine.AvailableUnits(); got != 500 {
		t.Fatalf("failed reveal must not touch inventory, got %d", got)
	}

	if _, err := env.engine.Reveal(context.Background(), testBuyer, 100, 12345, value); err != nil {
		t.Fatalf("correct reveal after failures: %v", err)
	}
}

func TestReveal_Expiry(t *testing.T) {
	env := newTestEnv(t)
	env.commitPurchase(t, 100, 12345)
	value := mustWei(t, exactPaymentWei)

	env.clock.Advance(5*time.Minute + time.Second)
	if _, err := env.engine.Reveal(context.Background(), testBuyer, 100, 12345, value); !errors.Is(err, settlement.ErrCommitmentExpired) {
		t.Fatalf("expected ErrCommitmentExpired, got %v", err)
	}
	if got := env.engine.AvailableUnits(); got != 500 {
		t.Fatalf("expired reveal must not touch inventory, got %d", got)
	}
}

func TestReveal_AtWindowBoundary(t *testing.T) {
	env := newTestEnv(t)
	env.commitPurchase(t, 100, 12345)

	env.clock.Advance(5 * time.Minute)
	if _, err := env.engine.Reveal(context.Background(), testBuyer, 100, 12345, mustWei(t, exactPaymentWei)); err != nil {
		t.Fatalf("reveal at window boundary: %v", err)
	}
}

func TestReveal_InsufficientEnergy(t *testing.T) {
	env := newTestEnv(t)
	env.fundSupply(t, 50)
	env.authorizeBuyer(t, testBuyer)
	if err := env.engine.Commit(testBuyer, ComputeCommitment(testBuyer, 100, 1)); err != nil {
		t.Fatalf("commit: %v", err)
	}

	_, err := env.engine.Reveal(context.Background(), testBuyer, 100, 1, mustWei(t, exactPaymentWei))
	if !errors.Is(err, settlement.ErrInsufficientEnergy) {
		t.Fatalf("expected ErrInsufficientEnergy, got %v", err)
	}
	var insufficient *settlement.InsufficientEnergyError
	if !errors.As(err, &insufficient) {
		t.Fatalf("expected typed error, got %T", err)
	}
	if insufficient.Requested != 100 || insufficient.Available != 50 {
		t.Fatalf("unexpected error detail: %+v", insufficient)
	}
}

func TestReveal_PaymentTooSmall(t *testing.T) {
	env := newTestEnv(t)
	env.commitPurchase(t, 100, 12345)

	short := mustWei(t, exactPaymentWei)
	short.SubUint64(short, 1)

	_, err := env.engine.Reveal(context.Background(), testBuyer, 100, 12345, short)
	if !errors.Is(err, settlement.ErrPaymentTooSmall) {
		t.Fatalf("expected ErrPaymentTooSmall, got %v", err)
	}
	var tooSmall *settlement.PaymentTooSmallError
	if !errors.As(err, &tooSmall) {
		t.Fatalf("expected typed error, got %T", err)
	}
	if tooSmall.Required.Dec() != exactPaymentWei || !tooSmall.Provided.Eq(short) {
		t.Fatalf("unexpected error detail: provided=%s required=%s", tooSmall.Provided.Dec(), tooSmall.Required.Dec())
	}

	if got := env.engine.AvailableUnits(); got != 500 {
		t.Fatalf("rejected payment must not touch inventory, got %d", got)
	}
	if _, ok := env.engine.CommitmentOf(testBuyer); !ok {
		t.Fatal("rejected payment must not consume the commitment")
	}
}

func TestReveal_OverpaymentCreditsRefund(t *testing.T) {
	env := newTestEnv(t)
	env.commitPurchase(t, 100, 12345)

	paid := mustWei(t, exactPaymentWei)
	paid.Mul(paid, uint256.NewInt(2))

	receipt, err := env.engine.Reveal(context.Background(), testBuyer, 100, 12345, paid)
	if err != nil {
		t.Fatalf("reveal: %v", err)
	}
	if receipt.RefundWei.Dec() != exactPaymentWei {
		t.Fatalf("expected refund %s, got %s", exactPaymentWei, receipt.RefundWei.Dec())
	}
	if got := env.engine.RefundOf(testBuyer); got.Dec() != exactPaymentWei {
		t.Fatalf("ledger should hold the overpayment, got %s", got.Dec())
	}
	if len(env.transfer.transfers) != 0 {
		t.Fatal("reveal must never perform an outbound transfer")
	}
}

func TestReveal_PriceFailures(t *testing.T) {
	env := newTestEnv(t)
	env.commitPurchase(t, 100, 12345)
	value := mustWei(t, exactPaymentWei)

	env.price.err = settlement.ErrPriceFeedStale
	if _, err := env.engine.Reveal(context.Background(), testBuyer, 100, 12345, value); !errors.Is(err, settlement.ErrPriceFeedStale) {
		t.Fatalf("expected ErrPriceFeedStale, got %v", err)
	}

	env.price.err = nil
	env.price.quote.PriceScaled = 0
	if _, err := env.engine.Reveal(context.Background(), testBuyer, 100, 12345, value); !errors.Is(err, settlement.ErrInvalidEthPrice) {
		t.Fatalf("expected ErrInvalidEthPrice, got %v", err)
	}

	if got := env.engine.AvailableUnits(); got != 500 {
		t.Fatalf("price failures must not touch inventory, got %d", got)
	}
}

func TestReveal_Paused(t *testing.T) {
	env := newTestEnv(t)
	env.commitPurchase(t, 100, 12345)
	if err := env.engine.Pause(testOwner); err != nil {
		t.Fatalf("pause: %v", err)
	}
	if _, err := env.engine.Reveal(context.Background(), testBuyer, 100, 12345, mustWei(t, exactPaymentWei)); !errors.Is(err, settlement.ErrEnforcedPause) {
		t.Fatalf("expected ErrEnforcedPause, got %v", err)
	}
}

func TestReveal_NilValueTreatedAsZero(t *testing.T) {
	env := newTestEnv(t)
	env.commitPurchase(t, 100, 12345)
	if _, err := env.engine.Reveal(context.Background(), testBuyer, 100, 12345, nil); !errors.Is(err, settlement.ErrPaymentTooSmall) {
		t.Fatalf("expected ErrPaymentTooSmall, got %v", err)
	}
}

func TestReveal_InventoryConservation(t *testing.T) {
	env := newTestEnv(t)
	env.fundSupply(t, 500)
	env.authorizeBuyer(t, testBuyer)

	var settled uint64
	for i, units := range []uint64{100, 200, 50} {
		nonce := uint64(i + 1)
		if err := env.engine.Commit(testBuyer, ComputeCommitment(testBuyer, units, nonce)); err != nil {
			t.Fatalf("commit %d: %v", i, err)
		}
		required, err := RequiredPaymentWei(units, 50, testPriceScaled)
		if err != nil {
			t.Fatalf("price %d: %v", i, err)
		}
		if _, err := env.engine.Reveal(context.Background(), testBuyer, units, nonce, required); err != nil {
			t.Fatalf("reveal %d: %v", i, err)
		}
		settled += units
		env.clock.Advance(5 * time.Minute) // clear the commit cooldown
	}

	if got := env.engine.AvailableUnits(); got != 500-settled {
		t.Fatalf("inventory not conserved: available=%d settled=%d", got, settled)
	}
	if count := env.engine.TransactionCount(); count != 3 {
		t.Fatalf("expected 3 transactions, got %d", count)
	}
}
