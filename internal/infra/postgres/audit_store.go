package postgres

import (
	"context"
	"database/sql"

	"github.com/higorocha/SistemaWebAlencarFrutas-sub009/internal/domain"
)

// AuditStore appends slip audit rows. Implements port.AuditSink.
// The table is insert-only; nothing in this system reads it back.
type AuditStore struct {
	db *sql.DB
}

// NewAuditStore creates the sink.
func NewAuditStore(db *sql.DB) *AuditStore {
	return &AuditStore{db: db}
}

// Append inserts one audit row.
func (s *AuditStore) Append(ctx context.Context, e *domain.BankSlipLogEntry) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO bank_slip_logs
		(id, slip_id, operation, description, before_state, after_state, actor_id, source_ip, error_msg, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)`,
		e.ID, e.SlipID, string(e.Operation), e.Description, e.Before, e.After, e.ActorID, e.SourceIP, e.ErrorMsg, e.CreatedAt,
	)
	return err
}
