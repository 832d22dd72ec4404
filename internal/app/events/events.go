// Package events carries the settlement layer's in-process event stream.
// The engine is the only publisher; dashboards, the transaction mirror and the
// websocket API consume it.
package events

import (
	"time"

	"github.com/VoltGrid-Network/settlement_layer/internal/app/domain/party"
	"github.com/VoltGrid-Network/settlement_layer/internal/app/domain/settlement"
)

// Type identifies the kind of state transition an event reports.
type Type string

const (
	TypeAuthorizationChanged Type = "authorization_changed"
	TypeSupplyAddRequested   Type = "supply_add_requested"
	TypeSupplyAddConfirmed   Type = "supply_add_confirmed"
	TypePurchaseSettled      Type = "purchase_settled"
	TypeRefundWithdrawn      Type = "refund_withdrawn"
	TypePauseChanged         Type = "pause_changed"
)

// Event is a single emitted state transition.
type Event struct {
	ID        string    `json:"id"`
	Type      Type      `json:"type"`
	Timestamp time.Time `json:"timestamp"`
	Data      any       `json:"data"`
}

// AuthorizationChanged reports a party entering or leaving the registry.
type AuthorizationChanged struct {
	Party      party.Address `json:"party"`
	Authorized bool          `json:"authorized"`
}

// SupplyAddRequested reports the opening of a two-phase supply addition.
type SupplyAddRequested struct {
	Units       uint64    `json:"units"`
	RequestedAt time.Time `json:"requested_at"`
}

// SupplyAddConfirmed reports a completed supply addition.
type SupplyAddConfirmed struct {
	Units     uint64 `json:"units"`
	Available uint64 `json:"available"`
}

// PurchaseSettled reports a successful reveal. Wei amounts are decimal strings
// because they exceed what JSON numbers can represent losslessly.
type PurchaseSettled struct {
	Transaction settlement.Transaction `json:"transaction"`
	PaidWei     string                 `json:"paid_wei"`
	RefundWei   string                 `json:"refund_wei"`
}

// RefundWithdrawn reports a completed pull-payment withdrawal.
type RefundWithdrawn struct {
	Party     party.Address `json:"party"`
	AmountWei string        `json:"amount_wei"`
}

// PauseChanged reports the circuit breaker toggling.
type PauseChanged struct {
	Paused bool `json:"paused"`
}
