// Package memory is the in-memory implementation of the storage interfaces.
// It is safe for concurrent use and primarily intended for tests and local
// development.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/VoltGrid-Network/settlement_layer/internal/app/domain/party"
	"github.com/VoltGrid-Network/settlement_layer/internal/app/domain/settlement"
	"github.com/VoltGrid-Network/settlement_layer/internal/app/storage"
)

// Store is an in-memory transaction mirror.
type Store struct {
	mu           sync.RWMutex
	transactions map[uint64]settlement.Transaction
}

var _ storage.TransactionStore = (*Store)(nil)

// New creates an empty store.
func New() *Store {
	return &Store{transactions: make(map[uint64]settlement.Transaction)}
}

func (s *Store) RecordTransaction(_ context.Context, tx settlement.Transaction) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	// Replays carry identical records; keep the first.
	if _, exists := s.transactions[tx.Index]; exists {
		return nil
	}
	s.transactions[tx.Index] = tx
	return nil
}

func (s *Store) GetTransaction(_ context.Context, index uint64) (settlement.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	tx, ok := s.transactions[index]
	if !ok {
		return settlement.Transaction{}, fmt.Errorf("transaction %d not found", index)
	}
	return tx, nil
}

func (s *Store) CountTransactions(_ context.Context) (uint64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return uint64(len(s.transactions)), nil
}

func (s *Store) ListTransactionsByBuyer(_ context.Context, buyer party.Address) ([]settlement.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]settlement.Transaction, 0)
	for _, tx := range s.transactions {
		if buyer == party.Zero || tx.Buyer == buyer {
			result = append(result, tx)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Index < result[j].Index })
	return result, nil
}
