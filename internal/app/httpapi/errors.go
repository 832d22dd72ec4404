package httpapi

import (
	"errors"
	"net/http"

	"github.com/VoltGrid-Network/settlement_layer/internal/app/domain/settlement"
)

// classify maps engine errors to an HTTP status and a stable kind string.
func classify(err error) (int, string) {
	switch {
	case errors.Is(err, settlement.ErrUnauthorizedCaller):
		return http.StatusForbidden, "unauthorized_caller"
	case errors.Is(err, settlement.ErrPartyNotAuthorized):
		return http.StatusForbidden, "party_not_authorized"
	case errors.Is(err, settlement.ErrInvalidPartyAddress):
		return http.StatusBadRequest, "invalid_party_address"
	case errors.Is(err, settlement.ErrPartyAlreadyAuthorized):
		return http.StatusConflict, "party_already_authorized"
	case errors.Is(err, settlement.ErrPartyNotFound):
		return http.StatusNotFound, "party_not_found"
	case errors.Is(err, settlement.ErrZeroUnits):
		return http.StatusBadRequest, "zero_units"
	case errors.Is(err, settlement.ErrPendingRequestExists):
		return http.StatusConflict, "pending_request_exists"
	case errors.Is(err, settlement.ErrNoPendingRequest):
		return http.StatusNotFound, "no_pending_request"
	case errors.Is(err, settlement.ErrDelayNotElapsed):
		return http.StatusTooEarly, "delay_not_elapsed"
	case errors.Is(err, settlement.ErrAmountMismatch):
		return http.StatusBadRequest, "amount_mismatch"
	case errors.Is(err, settlement.ErrCommitmentCooldownActive):
		return http.StatusTooEarly, "commitment_cooldown_active"
	case errors.Is(err, settlement.ErrInvalidCommitment):
		return http.StatusUnprocessableEntity, "invalid_commitment"
	case errors.Is(err, settlement.ErrCommitmentExpired):
		return http.StatusGone, "commitment_expired"
	case errors.Is(err, settlement.ErrInsufficientEnergy):
		return http.StatusConflict, "insufficient_energy"
	case errors.Is(err, settlement.ErrPaymentTooSmall):
		return http.StatusPaymentRequired, "payment_too_small"
	case errors.Is(err, settlement.ErrPriceFeedStale):
		return http.StatusServiceUnavailable, "price_feed_stale"
	case errors.Is(err, settlement.ErrInvalidEthPrice):
		return http.StatusServiceUnavailable, "invalid_eth_price"
	case errors.Is(err, settlement.ErrNoRefundsAvailable):
		return http.StatusNotFound, "no_refunds_available"
	case errors.Is(err, settlement.ErrPaymentFailed):
		return http.StatusBadGateway, "payment_failed"
	case errors.Is(err, settlement.ErrEnforcedPause):
		return http.StatusServiceUnavailable, "enforced_pause"
	case errors.Is(err, settlement.ErrReentrantCall):
		return http.StatusConflict, "reentrant_call"
	default:
		return http.StatusInternalServerError, "internal"
	}
}
