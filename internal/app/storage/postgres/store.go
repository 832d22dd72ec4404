// Package postgres implements the storage interfaces backed by PostgreSQL.
//
// Schema:
//
//	CREATE TABLE settlement_transactions (
//	    index            BIGINT PRIMARY KEY,
//	    id               UUID NOT NULL,
//	    buyer            TEXT NOT NULL,
//	    units            BIGINT NOT NULL,
//	    unit_price_cents BIGINT NOT NULL,
//	    eth_price_scaled BIGINT NOT NULL,
//	    settled_at       TIMESTAMPTZ NOT NULL
//	);
//	CREATE INDEX settlement_transactions_buyer_idx ON settlement_transactions (buyer);
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/VoltGrid-Network/settlement_layer/internal/app/domain/party"
	"github.com/VoltGrid-Network/settlement_layer/internal/app/domain/settlement"
	"github.com/VoltGrid-Network/settlement_layer/internal/app/storage"
)

// Store persists the transaction mirror in PostgreSQL.
type Store struct {
	db *sql.DB
}

var _ storage.TransactionStore = (*Store)(nil)

// New creates a Store using the provided database handle.
func New(db *sql.DB) *Store {
	return &Store{db: db}
}

func (s *Store) RecordTransaction(ctx context.Context, tx settlement.Transaction) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO settlement_transactions
			(index, id, buyer, units, unit_price_cents, eth_price_scaled, settled_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (index) DO NOTHING
	`, int64(tx.Index), uuid.NewString(), tx.Buyer.String(), int64(tx.Units),
		int64(tx.UnitPriceCents), tx.EthPriceScaled, tx.Timestamp)
	if err != nil {
		return fmt.Errorf("record transaction %d: %w", tx.Index, err)
	}
	return nil
}

func (s *Store) GetTransaction(ctx context.Context, index uint64) (settlement.Transaction, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT index, buyer, units, unit_price_cents, eth_price_scaled, settled_at
		FROM settlement_transactions
		WHERE index = $1
	`, int64(index))

	tx, err := scanTransaction(row)
	if errors.Is(err, sql.ErrNoRows) {
		return settlement.Transaction{}, fmt.Errorf("transaction %d not found", index)
	}
	return tx, err
}

func (s *Store) CountTransactions(ctx context.Context) (uint64, error) {
	var count int64
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM settlement_transactions`).Scan(&count); err != nil {
		return 0, fmt.Errorf("count transactions: %w", err)
	}
	return uint64(count), nil
}

func (s *Store) ListTransactionsByBuyer(ctx context.Context, buyer party.Address) ([]settlement.Transaction, error) {
	query := `
		SELECT index, buyer, units, unit_price_cents, eth_price_scaled, settled_at
		FROM settlement_transactions
	`
	args := []any{}
	if buyer != party.Zero {
		query += ` WHERE buyer = $1`
		args = append(args, buyer.String())
	}
	query += ` ORDER BY index`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list transactions: %w", err)
	}
	defer rows.Close()

	result := make([]settlement.Transaction, 0)
	for rows.Next() {
		tx, err := scanTransaction(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, tx)
	}
	return result, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanTransaction(row scanner) (settlement.Transaction, error) {
	var (
		tx    settlement.Transaction
		index int64
		buyer string
		units int64
		cents int64
	)
	if err := row.Scan(&index, &buyer, &units, &cents, &tx.EthPriceScaled, &tx.Timestamp); err != nil {
		return settlement.Transaction{}, err
	}
	tx.Index = uint64(index)
	tx.Buyer = party.Normalize(buyer)
	tx.Units = uint64(units)
	tx.UnitPriceCents = uint64(cents)
	return tx, nil
}
