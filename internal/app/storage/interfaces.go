// Package storage declares the persistence interfaces for the off-chain
// transaction mirror. The engine is the source of truth and never reads the
// mirror back; these stores exist for dashboard rendering and audit.
package storage

import (
	"context"

	"github.com/VoltGrid-Network/settlement_layer/internal/app/domain/party"
	"github.com/VoltGrid-Network/settlement_layer/internal/app/domain/settlement"
)

// TransactionStore persists mirrored settlement transactions. Recording the
// same index twice must be idempotent: the mirror may replay events.
type TransactionStore interface {
	RecordTransaction(ctx context.Context, tx settlement.Transaction) error
	GetTransaction(ctx context.Context, index uint64) (settlement.Transaction, error)
	CountTransactions(ctx context.Context) (uint64, error)
	ListTransactionsByBuyer(ctx context.Context, buyer party.Address) ([]settlement.Transaction, error)
}
