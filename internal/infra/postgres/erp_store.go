package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/higorocha/SistemaWebAlencarFrutas-sub009/internal/domain"
)

// inPlaceholders renders "$1,$2,..." for a dynamic IN clause and the
// matching args slice.
func inPlaceholders(values []string) (string, []any) {
	marks := make([]string, len(values))
	args := make([]any, len(values))
	for i, v := range values {
		marks[i] = fmt.Sprintf("$%d", i+1)
		args[i] = v
	}
	return strings.Join(marks, ","), args
}

// ERPStore reads the ERP collaborator tables (clients, orders, payments,
// users) and writes the two aggregates settlement owns. Implements
// port.ClientStore, port.OrderStore, port.PaymentStore and port.UserStore.
type ERPStore struct {
	db *sql.DB
}

// NewERPStore creates the store.
func NewERPStore(db *sql.DB) *ERPStore {
	return &ERPStore{db: db}
}

// --- Clients ---

const clientColumns = `id, name, COALESCE(cpf,''), COALESCE(cnpj,''),
COALESCE(address,''), COALESCE(city,''), COALESCE(state,''), COALESCE(postal_code,'')`

func scanClient(scan func(...any) error) (domain.Client, error) {
	var c domain.Client
	err := scan(&c.ID, &c.Name, &c.CPF, &c.CNPJ, &c.Address, &c.City, &c.State, &c.PostalCode)
	return c, err
}

// GetClient fetches one ERP client.
func (s *ERPStore) GetClient(ctx context.Context, id string) (*domain.Client, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+clientColumns+` FROM clients WHERE id = $1`, id)
	c, err := scanClient(row.Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, &domain.ErrNotFound{Resource: "client", ID: id}
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// GetClients fetches several clients by id.
func (s *ERPStore) GetClients(ctx context.Context, ids []string) ([]domain.Client, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	marks, args := inPlaceholders(ids)
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+clientColumns+` FROM clients WHERE id IN (`+marks+`)`, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.Client
	for rows.Next() {
		c, err := scanClient(rows.Scan)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// ListClientsWithTaxID returns every client carrying a CPF or CNPJ.
func (s *ERPStore) ListClientsWithTaxID(ctx context.Context) ([]domain.Client, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+clientColumns+` FROM clients WHERE COALESCE(cpf,'') <> '' OR COALESCE(cnpj,'') <> ''`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.Client
	for rows.Next() {
		c, err := scanClient(rows.Scan)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// --- Orders ---

// GetOrder fetches the order aggregate.
func (s *ERPStore) GetOrder(ctx context.Context, id string) (*domain.Order, error) {
	var o domain.Order
	var status string
	err := s.db.QueryRowContext(ctx,
		`SELECT id, client_id, total_amount, received_amount, status FROM orders WHERE id = $1`, id,
	).Scan(&o.ID, &o.ClientID, &o.TotalAmount, &o.ReceivedAmount, &status)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, &domain.ErrNotFound{Resource: "order", ID: id}
	}
	if err != nil {
		return nil, err
	}
	o.Status = domain.OrderStatus(status)
	return &o, nil
}

// UpdateOrderTotals writes the recomputed consolidated amount and status.
func (s *ERPStore) UpdateOrderTotals(ctx context.Context, orderID string, received float64, status domain.OrderStatus) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE orders SET received_amount = $2, status = $3 WHERE id = $1`,
		orderID, received, string(status),
	)
	return err
}

// --- Payments ---

// CreatePayment inserts one settlement payment.
func (s *ERPStore) CreatePayment(ctx context.Context, p *domain.Payment) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO payments (id, order_id, slip_id, amount, method, payment_date)
		VALUES ($1,$2,$3,$4,$5,$6)`,
		p.ID, p.OrderID, p.SlipID, p.Amount, p.Method, p.Date,
	)
	return err
}

// ListPaymentsByOrder returns every payment of an order.
func (s *ERPStore) ListPaymentsByOrder(ctx context.Context, orderID string) ([]domain.Payment, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, order_id, slip_id, amount, method, payment_date FROM payments WHERE order_id = $1`, orderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.Payment
	for rows.Next() {
		var p domain.Payment
		if err := rows.Scan(&p.ID, &p.OrderID, &p.SlipID, &p.Amount, &p.Method, &p.Date); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// PaymentExistsForSlip backs the exactly-once settlement guard.
func (s *ERPStore) PaymentExistsForSlip(ctx context.Context, slipID string) (bool, error) {
	var exists bool
	err := s.db.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM payments WHERE slip_id = $1)`, slipID,
	).Scan(&exists)
	return exists, err
}

// --- Users ---

// ListUsersByRoles returns users in any of the given roles.
func (s *ERPStore) ListUsersByRoles(ctx context.Context, roles []string) ([]domain.User, error) {
	if len(roles) == 0 {
		return nil, nil
	}
	marks, args := inPlaceholders(roles)
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, role FROM users WHERE role IN (`+marks+`)`, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.User
	for rows.Next() {
		var u domain.User
		if err := rows.Scan(&u.ID, &u.Role); err != nil {
			return nil, err
		}
		out = append(out, u)
	}
	return out, rows.Err()
}
