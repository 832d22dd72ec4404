// Package settlement defines the core records and error taxonomy of the
// energy settlement engine.
package settlement

import (
	"time"

	"github.com/holiman/uint256"

	"github.com/VoltGrid-Network/settlement_layer/internal/app/domain/party"
)

// Transaction is an immutable record of one settled purchase. Index is the
// engine's monotonically increasing record count.
type Transaction struct {
	Index          uint64        `json:"index"`
	Buyer          party.Address `json:"buyer"`
	Units          uint64        `json:"units"`
	UnitPriceCents uint64        `json:"unit_price_cents"`
	EthPriceScaled int64         `json:"eth_price_scaled"` // USD with 8 decimals, at settlement
	Timestamp      time.Time     `json:"timestamp"`
}

// PendingAdd is the single in-flight supply addition request.
type PendingAdd struct {
	Units       uint64    `json:"units"`
	RequestedAt time.Time `json:"requested_at"`
}

// Commitment is a party's one-slot purchase commitment.
type Commitment struct {
	Hash      [32]byte
	CreatedAt time.Time
}

// Receipt reports the outcome of a successful reveal.
type Receipt struct {
	Transaction Transaction
	PaidWei     *uint256.Int
	RequiredWei *uint256.Int
	RefundWei   *uint256.Int
}
