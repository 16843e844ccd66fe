package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/higorocha/SistemaWebAlencarFrutas-sub009/internal/bankfmt"
	"github.com/higorocha/SistemaWebAlencarFrutas-sub009/internal/domain"
	"github.com/higorocha/SistemaWebAlencarFrutas-sub009/internal/infra/observability"
	"github.com/higorocha/SistemaWebAlencarFrutas-sub009/internal/infra/resilience"
	"github.com/higorocha/SistemaWebAlencarFrutas-sub009/internal/port"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

var settlementTracer = otel.Tracer("service/settlement")

// SettleInput carries one payment confirmation into the engine.
type SettleInput struct {
	SlipID      string
	PaymentDate time.Time
	RawPayload  string
	ViaWebhook  bool
	ActorID     string
	SourceIP    string
}

// SettlementService turns a payment confirmation into exactly one
// payment record, marks the slip PAID and recomputes the order totals.
// The order recompute is serialized per order id.
type SettlementService struct {
	slips    port.SlipStore
	orders   port.OrderStore
	payments port.PaymentStore
	users    port.UserStore
	notifier port.Notifier
	audit    port.AuditSink
	locks    *resilience.KeyedMutex
	metrics  *observability.Metrics
	logger   *zap.Logger
}

// NewSettlementService creates the settlement engine.
func NewSettlementService(
	slips port.SlipStore,
	orders port.OrderStore,
	payments port.PaymentStore,
	users port.UserStore,
	notifier port.Notifier,
	audit port.AuditSink,
	metrics *observability.Metrics,
	logger *zap.Logger,
) *SettlementService {
	return &SettlementService{
		slips:    slips,
		orders:   orders,
		payments: payments,
		users:    users,
		notifier: notifier,
		audit:    audit,
		locks:    &resilience.KeyedMutex{},
		metrics:  metrics,
		logger:   logger,
	}
}

// Settle records the payment of a slip. The slip mutation is
// unconditional: every confirmation flips the mirror to PAID, stores
// the raw payload and stamps its provenance, so a webhook arriving
// after a manual settle still leaves its mark. Only the payment row
// and the order recompute are guarded against repetition; repeated
// confirmations report paymentCreated=false. The state-machine
// mutation window does not apply here; the money already moved.
func (s *SettlementService) Settle(ctx context.Context, in SettleInput) (*domain.BankSlip, bool, error) {
	ctx, span := settlementTracer.Start(ctx, "SettlementService.Settle")
	defer span.End()
	span.SetAttributes(
		attribute.String("slip.id", in.SlipID),
		attribute.Bool("via_webhook", in.ViaWebhook),
	)

	slip, err := s.slips.GetSlip(ctx, in.SlipID)
	if err != nil {
		return nil, false, err
	}

	s.locks.Lock(slip.OrderID)
	defer s.locks.Unlock(slip.OrderID)

	before := marshalState(slip)
	now := time.Now()
	slip.Status = domain.SlipPaid
	slip.PaymentDate = &in.PaymentDate
	if in.ActorID != "" {
		slip.PaidMarkBy = in.ActorID
	}
	if in.RawPayload != "" {
		slip.RawResponse = in.RawPayload
	}
	if in.ViaWebhook {
		slip.ViaWebhook = true
		slip.WebhookAt = &now
		slip.WebhookIP = in.SourceIP
	}
	slip.UpdatedAt = now

	// Mirror first. A failure here leaves no payment row behind, so a
	// retry of the same confirmation can still converge the slip.
	if err := s.slips.UpdateSlip(ctx, slip); err != nil {
		return nil, false, err
	}

	op := domain.SlipLogPaidManual
	if in.ViaWebhook {
		op = domain.SlipLogPaidWebhook
	}
	s.appendAudit(ctx, &domain.BankSlipLogEntry{
		SlipID:      slip.ID,
		Operation:   op,
		Description: fmt.Sprintf("payment of %.2f confirmed", slip.Amount),
		Before:      before,
		After:       marshalState(slip),
		ActorID:     in.ActorID,
		SourceIP:    in.SourceIP,
	})

	exists, err := s.payments.PaymentExistsForSlip(ctx, slip.ID)
	if err != nil {
		return nil, false, err
	}
	if exists {
		s.metrics.IncrSettlement("repeated")
		s.logger.Info("settlement repeated, payment already recorded",
			zap.String("slip_id", slip.ID),
		)
		return slip, false, nil
	}

	payment := &domain.Payment{
		ID:      uuid.New().String(),
		OrderID: slip.OrderID,
		SlipID:  slip.ID,
		Amount:  slip.Amount,
		Method:  "boleto",
		Date:    in.PaymentDate,
	}
	if err := s.payments.CreatePayment(ctx, payment); err != nil {
		return nil, false, err
	}

	order, err := s.recomputeOrder(ctx, slip.OrderID)
	if err != nil {
		return nil, false, err
	}

	s.metrics.IncrSettlement("created")
	s.logger.Info("slip settled",
		zap.String("slip_id", slip.ID),
		zap.String("order_id", order.ID),
		zap.String("order_status", string(order.Status)),
		zap.Bool("via_webhook", in.ViaWebhook),
	)

	s.notifyPrivileged(ctx, slip, order)
	return slip, true, nil
}

// recomputeOrder sums the order's payments and derives the consolidated
// status. Comparisons happen after rounding to cents. Caller must hold
// the order lock.
func (s *SettlementService) recomputeOrder(ctx context.Context, orderID string) (*domain.Order, error) {
	order, err := s.orders.GetOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	payments, err := s.payments.ListPaymentsByOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}

	var received float64
	for _, p := range payments {
		received += p.Amount
	}
	received = bankfmt.RoundCents(received)
	total := bankfmt.RoundCents(order.TotalAmount)

	status := domain.OrderAwaiting
	switch {
	case received >= total && total > 0:
		status = domain.OrderFinalized
	case received > 0:
		status = domain.OrderPartial
	}

	if err := s.orders.UpdateOrderTotals(ctx, orderID, received, status); err != nil {
		return nil, err
	}
	order.ReceivedAmount = received
	order.Status = status
	return order, nil
}

// notifyPrivileged fans the settlement out to admin and finance users.
// Notification is fire-and-forget; failures are logged and swallowed.
func (s *SettlementService) notifyPrivileged(ctx context.Context, slip *domain.BankSlip, order *domain.Order) {
	users, err := s.users.ListUsersByRoles(ctx, domain.PrivilegedRoles)
	if err != nil {
		s.logger.Error("settlement notification fan-out failed", zap.Error(err))
		return
	}

	payload := map[string]any{
		"event":        "slip_paid",
		"slip_id":      slip.ID,
		"our_number":   slip.OurNumber,
		"order_id":     order.ID,
		"order_status": string(order.Status),
		"amount":       slip.Amount,
	}
	for _, u := range users {
		if err := s.notifier.Notify(ctx, u.ID, payload); err != nil {
			s.logger.Error("settlement notification failed",
				zap.String("user_id", u.ID),
				zap.Error(err),
			)
		}
	}
}

// appendAudit writes an audit row best-effort.
func (s *SettlementService) appendAudit(ctx context.Context, e *domain.BankSlipLogEntry) {
	e.ID = uuid.New().String()
	e.CreatedAt = time.Now()
	if err := s.audit.Append(ctx, e); err != nil {
		s.logger.Error("audit append failed",
			zap.String("slip_id", e.SlipID),
			zap.String("operation", string(e.Operation)),
			zap.Error(err),
		)
	}
}
