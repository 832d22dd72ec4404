package settlement

import (
	"errors"
	"fmt"

	"github.com/holiman/uint256"
)

// Every failure mode callers can branch on is a distinct error kind. Dashboards
// map these to differentiated guidance ("wait for cooldown" vs "insufficient
// inventory"), so a single generic failure string is not acceptable.
var (
	ErrUnauthorizedCaller       = errors.New("caller is not the pool owner")
	ErrPartyNotAuthorized       = errors.New("party is not authorized to purchase")
	ErrInvalidPartyAddress      = errors.New("invalid party address")
	ErrPartyAlreadyAuthorized   = errors.New("party already authorized")
	ErrPartyNotFound            = errors.New("party not found in authorized list")
	ErrZeroUnits                = errors.New("units must be positive")
	ErrPendingRequestExists     = errors.New("a pending supply request already exists")
	ErrNoPendingRequest         = errors.New("no pending supply request")
	ErrDelayNotElapsed          = errors.New("supply confirmation delay not elapsed")
	ErrAmountMismatch           = errors.New("confirmed units do not match pending request")
	ErrCommitmentCooldownActive = errors.New("commitment cooldown active")
	ErrInvalidCommitment        = errors.New("commitment missing or does not match revealed parameters")
	ErrCommitmentExpired        = errors.New("commitment expired")
	ErrInsufficientEnergy       = errors.New("insufficient energy available")
	ErrPaymentTooSmall          = errors.New("payment amount too small")
	ErrPriceFeedStale           = errors.New("cached price is stale")
	ErrInvalidEthPrice          = errors.New("price feed returned an invalid price")
	ErrNoRefundsAvailable       = errors.New("no refunds available")
	ErrPaymentFailed            = errors.New("refund payment failed")
	ErrEnforcedPause            = errors.New("settlement is paused")
	ErrReentrantCall            = errors.New("reentrant call rejected")
)

// InsufficientEnergyError carries the offending values so callers can react
// without re-deriving context. errors.Is(err, ErrInsufficientEnergy) matches.
type InsufficientEnergyError struct {
	Requested uint64
	Available uint64
}

func (e *InsufficientEnergyError) Error() string {
	return fmt.Sprintf("insufficient energy available: requested %d, available %d", e.Requested, e.Available)
}

func (e *InsufficientEnergyError) Is(target error) bool { return target == ErrInsufficientEnergy }

// PaymentTooSmallError carries provided versus required payment in wei.
// errors.Is(err, ErrPaymentTooSmall) matches.
type PaymentTooSmallError struct {
	Provided *uint256.Int
	Required *uint256.Int
}

func (e *PaymentTooSmallError) Error() string {
	return fmt.Sprintf("payment amount too small: provided %s wei, required %s wei", e.Provided, e.Required)
}

func (e *PaymentTooSmallError) Is(target error) bool { return target == ErrPaymentTooSmall }
