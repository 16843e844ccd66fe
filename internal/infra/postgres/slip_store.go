package postgres

import (
	"context"
	"database/sql"
	"errors"

	"github.com/higorocha/SistemaWebAlencarFrutas-sub009/internal/domain"
)

// SlipStore persists the bank-slip mirror. Implements port.SlipStore.
type SlipStore struct {
	db *sql.DB
}

// NewSlipStore creates the store.
func NewSlipStore(db *sql.DB) *SlipStore {
	return &SlipStore{db: db}
}

const slipColumns = `id, order_id, account_id, agreement_id, amount, issue_date, due_date,
payment_date, write_off_at, status, our_number, title_number, our_number_matches,
barcode, digit_line, pix_qr_code, pix_tx_id,
payer_name, payer_tax_id, payer_address, payer_city, payer_state, payer_postal_code,
raw_request, raw_response,
created_by, altered_by, written_off_by, paid_marked_by,
via_webhook, webhook_at, webhook_ip, created_at, updated_at`

// CreateSlip inserts the local mirror row. A unique index on our_number
// backs the global uniqueness invariant.
func (s *SlipStore) CreateSlip(ctx context.Context, slip *domain.BankSlip) error {
	_, err := s.db.ExecContext(ctx, `INSERT INTO bank_slips (`+slipColumns+`) VALUES
($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19,$20,$21,$22,$23,$24,$25,$26,$27,$28,$29,$30,$31,$32,$33,$34)`,
		slip.ID, slip.OrderID, slip.AccountID, slip.AgreementID, slip.Amount, slip.IssueDate, slip.DueDate,
		slip.PaymentDate, slip.WriteOffAt, string(slip.Status), slip.OurNumber, slip.TitleNumber, slip.OurNumberMatches,
		slip.Barcode, slip.DigitLine, slip.PixQRCode, slip.PixTxID,
		slip.Payer.Name, slip.Payer.TaxID, slip.Payer.Address, slip.Payer.City, slip.Payer.State, slip.Payer.PostalCode,
		slip.RawRequest, slip.RawResponse,
		slip.CreatedBy, slip.AlteredBy, slip.WrittenBy, slip.PaidMarkBy,
		slip.ViaWebhook, slip.WebhookAt, slip.WebhookIP, slip.CreatedAt, slip.UpdatedAt,
	)
	return err
}

func (s *SlipStore) scanSlip(row *sql.Row) (*domain.BankSlip, error) {
	var slip domain.BankSlip
	var status string
	var paymentDate, writeOffAt, webhookAt sql.NullTime
	var matches sql.NullBool

	err := row.Scan(
		&slip.ID, &slip.OrderID, &slip.AccountID, &slip.AgreementID, &slip.Amount, &slip.IssueDate, &slip.DueDate,
		&paymentDate, &writeOffAt, &status, &slip.OurNumber, &slip.TitleNumber, &matches,
		&slip.Barcode, &slip.DigitLine, &slip.PixQRCode, &slip.PixTxID,
		&slip.Payer.Name, &slip.Payer.TaxID, &slip.Payer.Address, &slip.Payer.City, &slip.Payer.State, &slip.Payer.PostalCode,
		&slip.RawRequest, &slip.RawResponse,
		&slip.CreatedBy, &slip.AlteredBy, &slip.WrittenBy, &slip.PaidMarkBy,
		&slip.ViaWebhook, &webhookAt, &slip.WebhookIP, &slip.CreatedAt, &slip.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	slip.Status = domain.SlipStatus(status)
	if paymentDate.Valid {
		slip.PaymentDate = &paymentDate.Time
	}
	if writeOffAt.Valid {
		slip.WriteOffAt = &writeOffAt.Time
	}
	if webhookAt.Valid {
		slip.WebhookAt = &webhookAt.Time
	}
	if matches.Valid {
		m := matches.Bool
		slip.OurNumberMatches = &m
	}
	return &slip, nil
}

// GetSlip fetches one slip by id.
func (s *SlipStore) GetSlip(ctx context.Context, id string) (*domain.BankSlip, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+slipColumns+` FROM bank_slips WHERE id = $1`, id)
	slip, err := s.scanSlip(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, &domain.ErrNotFound{Resource: "bank slip", ID: id}
	}
	return slip, err
}

// GetSlipByOurNumber fetches one slip by its our-number.
func (s *SlipStore) GetSlipByOurNumber(ctx context.Context, ourNumber string) (*domain.BankSlip, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+slipColumns+` FROM bank_slips WHERE our_number = $1`, ourNumber)
	slip, err := s.scanSlip(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, &domain.ErrNotFound{Resource: "bank slip", ID: ourNumber}
	}
	return slip, err
}

// UpdateSlip rewrites the mutable columns of a slip row.
func (s *SlipStore) UpdateSlip(ctx context.Context, slip *domain.BankSlip) error {
	_, err := s.db.ExecContext(ctx, `UPDATE bank_slips SET
amount=$2, due_date=$3, payment_date=$4, write_off_at=$5, status=$6, title_number=$7,
our_number_matches=$8, raw_response=$9, altered_by=$10, written_off_by=$11, paid_marked_by=$12,
via_webhook=$13, webhook_at=$14, webhook_ip=$15, updated_at=$16
WHERE id = $1`,
		slip.ID,
		slip.Amount, slip.DueDate, slip.PaymentDate, slip.WriteOffAt, string(slip.Status), slip.TitleNumber,
		slip.OurNumberMatches, slip.RawResponse, slip.AlteredBy, slip.WrittenBy, slip.PaidMarkBy,
		slip.ViaWebhook, slip.WebhookAt, slip.WebhookIP, slip.UpdatedAt,
	)
	return err
}

// OurNumberExists checks the global uniqueness invariant before insert.
func (s *SlipStore) OurNumberExists(ctx context.Context, ourNumber string) (bool, error) {
	var exists bool
	err := s.db.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM bank_slips WHERE our_number = $1)`, ourNumber,
	).Scan(&exists)
	return exists, err
}

// NextTitleNumber returns max(title_number)+1 among the order's slips.
func (s *SlipStore) NextTitleNumber(ctx context.Context, orderID string) (int64, error) {
	var next int64
	err := s.db.QueryRowContext(ctx,
		`SELECT COALESCE(MAX(title_number), 0) + 1 FROM bank_slips WHERE order_id = $1`, orderID,
	).Scan(&next)
	return next, err
}

// NextOurNumberSequence advances the per-agreement counter behind
// client-assigned our-numbers. The upsert makes the increment atomic,
// so concurrent issuers never see the same value.
func (s *SlipStore) NextOurNumberSequence(ctx context.Context, agreementID string) (int64, error) {
	var next int64
	err := s.db.QueryRowContext(ctx,
		`INSERT INTO our_number_sequences (agreement_id, value) VALUES ($1, 1)
		 ON CONFLICT (agreement_id) DO UPDATE SET value = our_number_sequences.value + 1
		 RETURNING value`, agreementID,
	).Scan(&next)
	return next, err
}
