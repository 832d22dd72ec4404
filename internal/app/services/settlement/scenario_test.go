package settlement

import (
	"context"
	"testing"
	"time"

	"github.com/holiman/uint256"
	"github.com/stretchr/testify/require"

	"github.com/VoltGrid-Network/settlement_layer/internal/app/domain/party"
	"github.com/VoltGrid-Network/settlement_layer/internal/app/domain/settlement"
)

// End-to-end protocol walkthroughs: supply addition through settlement and
// refund withdrawal, exercising the full operation sequence a deployment sees.

func TestScenario_ExactPaymentSettlement(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	// Supplier stages 500 units and confirms after the delay.
	require.NoError(t, env.engine.RequestAdd(testOwner, 500))
	env.clock.Advance(2 * time.Minute)
	require.NoError(t, env.engine.ConfirmAdd(testOwner, 500))
	require.EqualValues(t, 500, env.engine.AvailableUnits())

	// Buyer is admitted and commits to 100 units with nonce 12345.
	require.NoError(t, env.engine.Authorize(testOwner, testBuyer))
	require.NoError(t, env.engine.Commit(testBuyer, ComputeCommitment(testBuyer, 100, 12345)))

	// At $2000.00 the bill is 0.025 ETH; the buyer pays exactly that.
	required, err := RequiredPaymentWei(100, 50, testPriceScaled)
	require.NoError(t, err)
	require.Equal(t, exactPaymentWei, required.Dec())

	receipt, err := env.engine.Reveal(ctx, testBuyer, 100, 12345, required)
	require.NoError(t, err)

	require.EqualValues(t, 400, env.engine.AvailableUnits())
	require.EqualValues(t, 1, env.engine.TransactionCount())
	require.Equal(t, testBuyer, receipt.Transaction.Buyer)
	require.EqualValues(t, 100, receipt.Transaction.Units)
	require.True(t, receipt.RefundWei.IsZero())
	require.True(t, env.engine.RefundOf(testBuyer).IsZero())
}

func TestScenario_OverpaymentRefundLifecycle(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	require.NoError(t, env.engine.RequestAdd(testOwner, 500))
	env.clock.Advance(2 * time.Minute)
	require.NoError(t, env.engine.ConfirmAdd(testOwner, 500))
	require.NoError(t, env.engine.Authorize(testOwner, testBuyer))
	require.NoError(t, env.engine.Commit(testBuyer, ComputeCommitment(testBuyer, 100, 12345)))

	required, err := RequiredPaymentWei(100, 50, testPriceScaled)
	require.NoError(t, err)
	paid := new(uint256.Int).Mul(required, uint256.NewInt(2))

	receipt, err := env.engine.Reveal(ctx, testBuyer, 100, 12345, paid)
	require.NoError(t, err)
	require.True(t, receipt.RefundWei.Eq(required), "overpayment should be credited exactly")
	require.True(t, env.engine.RefundOf(testBuyer).Eq(required))

	// The payout gateway tries to re-enter Withdraw mid-transfer; the inner
	// call is rejected and the outer payout still completes once.
	var innerErr error
	env.transfer.onCall = func(callCtx context.Context, to party.Address, _ *uint256.Int) {
		_, innerErr = env.engine.Withdraw(callCtx, to)
	}

	paidOut, err := env.engine.Withdraw(ctx, testBuyer)
	require.NoError(t, err)
	require.True(t, paidOut.Eq(required))
	require.ErrorIs(t, innerErr, settlement.ErrReentrantCall)
	require.Len(t, env.transfer.transfers, 1)
	require.True(t, env.engine.RefundOf(testBuyer).IsZero())

	_, err = env.engine.Withdraw(ctx, testBuyer)
	require.ErrorIs(t, err, settlement.ErrNoRefundsAvailable)
}
