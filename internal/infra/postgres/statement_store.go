package postgres

import (
	"context"
	"database/sql"

	"github.com/higorocha/SistemaWebAlencarFrutas-sub009/internal/domain"
)

// StatementStore persists matched statement entries. Implements
// port.StatementStore. The natural key (document number, raw entry
// date, lot number) is a unique index per account.
type StatementStore struct {
	db *sql.DB
}

// NewStatementStore creates the store.
func NewStatementStore(db *sql.DB) *StatementStore {
	return &StatementStore{db: db}
}

// EntryExists checks the natural key before insert.
func (s *StatementStore) EntryExists(ctx context.Context, accountID string, key domain.NaturalKey) (bool, error) {
	var exists bool
	err := s.db.QueryRowContext(ctx,
		`SELECT EXISTS (
			SELECT 1 FROM statement_entries
			WHERE account_id = $1 AND document_number = $2 AND entry_date_raw = $3 AND lot_number = $4
		)`,
		accountID, key.DocumentNumber, key.EntryDateRaw, key.LotNumber,
	).Scan(&exists)
	return exists, err
}

// InsertEntry stores one matched entry.
func (s *StatementStore) InsertEntry(ctx context.Context, e *domain.StatementEntry) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO statement_entries
		(id, account_id, document_number, entry_date_raw, lot_number, amount,
		 counterpart_raw, info, matched_client_id, linked_order_id, processed, linked, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13)`,
		e.ID, e.AccountID, e.DocumentNumber, e.EntryDateRaw, e.LotNumber, e.Amount,
		e.CounterpartRaw, e.Info, e.MatchedClientID, e.LinkedOrderID, e.Processed, e.Linked, e.CreatedAt,
	)
	return err
}
