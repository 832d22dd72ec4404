// Package pricefeed defines the data shapes exchanged with the external USD
// price feed and the cached quote used for settlement.
package pricefeed

import "time"

// RoundData mirrors the external feed's latest-round read. Price carries
// 8 decimals (a price of $2000.00 is 200000000000).
type RoundData struct {
	RoundID         uint64
	Price           int64
	StartedAt       time.Time
	UpdatedAt       time.Time
	AnsweredInRound uint64
}

// PriceDecimals is the fixed scale of RoundData.Price and Quote.PriceScaled.
const PriceDecimals = 8

// Quote is the last known-good price held by the cache.
type Quote struct {
	PriceScaled int64     `json:"price_scaled"`
	UpdatedAt   time.Time `json:"updated_at"`
}
