package service

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/higorocha/SistemaWebAlencarFrutas-sub009/internal/bankfmt"
	"github.com/higorocha/SistemaWebAlencarFrutas-sub009/internal/domain"
	"github.com/higorocha/SistemaWebAlencarFrutas-sub009/internal/infra/observability"
	"github.com/higorocha/SistemaWebAlencarFrutas-sub009/internal/port"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

var boletoTracer = otel.Tracer("service/boleto")

// settler is the slice of the settlement engine the slip lifecycle
// needs when a verification discovers a payment.
type settler interface {
	Settle(ctx context.Context, in SettleInput) (*domain.BankSlip, bool, error)
}

// BoletoService drives the slip lifecycle: create, query, list, alter,
// write off and manual payment verification.
type BoletoService struct {
	bank       port.BoletoBank
	slips      port.SlipStore
	creds      port.CredentialStore
	accounts   port.AccountStore
	agreements port.AgreementStore
	orders     port.OrderStore
	clients    port.ClientStore
	audit      port.AuditSink
	settlement settler
	metrics    *observability.Metrics
	logger     *zap.Logger
}

// NewBoletoService creates the slip lifecycle service.
func NewBoletoService(
	bank port.BoletoBank,
	slips port.SlipStore,
	creds port.CredentialStore,
	accounts port.AccountStore,
	agreements port.AgreementStore,
	orders port.OrderStore,
	clients port.ClientStore,
	audit port.AuditSink,
	settlement settler,
	metrics *observability.Metrics,
	logger *zap.Logger,
) *BoletoService {
	return &BoletoService{
		bank:       bank,
		slips:      slips,
		creds:      creds,
		accounts:   accounts,
		agreements: agreements,
		orders:     orders,
		clients:    clients,
		audit:      audit,
		settlement: settlement,
		metrics:    metrics,
		logger:     logger,
	}
}

// CreateSlipInput is the request to issue a new slip for an order.
type CreateSlipInput struct {
	AccountID string
	OrderID   string
	Amount    float64
	DueDate   time.Time
	ActorID   string
	SourceIP  string
}

// CreateSlip issues a boleto at the bank and persists the local mirror
// with status OPEN.
func (s *BoletoService) CreateSlip(ctx context.Context, in CreateSlipInput) (*domain.BankSlip, error) {
	ctx, span := boletoTracer.Start(ctx, "BoletoService.CreateSlip")
	defer span.End()
	span.SetAttributes(
		attribute.String("account.id", in.AccountID),
		attribute.String("order.id", in.OrderID),
	)

	if in.Amount <= 0 {
		return nil, &domain.ErrValidation{Field: "amount", Message: "must be positive"}
	}
	if bankfmt.DayBefore(in.DueDate, time.Now()) {
		return nil, &domain.ErrValidation{Field: "due_date", Message: "must not be in the past"}
	}

	account, err := s.accounts.GetAccount(ctx, in.AccountID)
	if err != nil {
		return nil, err
	}
	agreement, err := s.agreements.GetAgreementForAccount(ctx, in.AccountID)
	if err != nil {
		return nil, err
	}
	cred, err := s.creds.GetCredentialForAccount(ctx, in.AccountID, domain.ModalityBilling)
	if err != nil {
		return nil, err
	}

	order, err := s.orders.GetOrder(ctx, in.OrderID)
	if err != nil {
		return nil, err
	}
	client, err := s.clients.GetClient(ctx, order.ClientID)
	if err != nil {
		return nil, err
	}
	payer, err := payerFromClient(client)
	if err != nil {
		return nil, err
	}

	titleNumber, err := s.slips.NextTitleNumber(ctx, order.ID)
	if err != nil {
		return nil, err
	}

	var ourNumber string
	if agreement.Numbering == domain.NumberingByClient {
		seq, err := s.slips.NextOurNumberSequence(ctx, agreement.ID)
		if err != nil {
			return nil, err
		}
		ourNumber = buildOurNumber(agreement.AgreementNumber, seq)
		exists, err := s.slips.OurNumberExists(ctx, ourNumber)
		if err != nil {
			return nil, err
		}
		if exists {
			return nil, &domain.ErrDuplicate{Key: "our_number " + ourNumber}
		}
	}

	issueDate := time.Now()
	issueReq := &domain.SlipIssueRequest{
		Agreement:   *agreement,
		Account:     *account,
		Payer:       payer,
		Amount:      in.Amount,
		IssueDate:   issueDate,
		DueDate:     in.DueDate,
		TitleNumber: titleNumber,
		OurNumber:   ourNumber,
	}
	if err := validateIssueRequest(issueReq); err != nil {
		return nil, err
	}

	result, err := s.bank.CreateSlip(ctx, cred, issueReq)
	if err != nil {
		s.logger.Error("slip registration failed at bank",
			zap.String("order_id", order.ID),
			zap.Error(err),
		)
		return nil, err
	}

	now := time.Now()
	slip := &domain.BankSlip{
		ID:          uuid.New().String(),
		OrderID:     order.ID,
		AccountID:   account.ID,
		AgreementID: agreement.ID,
		Amount:      in.Amount,
		IssueDate:   issueDate,
		DueDate:     in.DueDate,
		Status:      domain.SlipOpen,
		OurNumber:   result.OurNumber,
		TitleNumber: titleNumber,
		Barcode:     result.Barcode,
		DigitLine:   result.DigitLine,
		PixQRCode:   result.PixQRCode,
		PixTxID:     result.PixTxID,
		Payer:       payer,
		RawRequest:  result.RawRequest,
		RawResponse: result.RawResponse,
		CreatedBy:   in.ActorID,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if ourNumber != "" {
		match := result.OurNumber == ourNumber
		slip.OurNumberMatches = &match
		if !match {
			s.logger.Warn("bank echoed a different our-number",
				zap.String("sent", ourNumber),
				zap.String("received", result.OurNumber),
			)
		}
	}

	if err := s.slips.CreateSlip(ctx, slip); err != nil {
		return nil, err
	}

	s.appendAudit(ctx, &domain.BankSlipLogEntry{
		SlipID:      slip.ID,
		Operation:   domain.SlipLogCreate,
		Description: fmt.Sprintf("slip %s issued for order %s", slip.OurNumber, order.ID),
		After:       marshalState(slip),
		ActorID:     in.ActorID,
		SourceIP:    in.SourceIP,
	})

	s.logger.Info("slip created",
		zap.String("slip_id", slip.ID),
		zap.String("our_number", slip.OurNumber),
		zap.String("order_id", order.ID),
	)
	return slip, nil
}

// QuerySlip fetches the bank's current view of a slip and refreshes the
// local mirror. A slip unknown locally is a not-found, never fabricated.
func (s *BoletoService) QuerySlip(ctx context.Context, accountID, ourNumber string) (*domain.BankSlip, error) {
	ctx, span := boletoTracer.Start(ctx, "BoletoService.QuerySlip")
	defer span.End()
	span.SetAttributes(attribute.String("slip.our_number", ourNumber))

	slip, err := s.slips.GetSlipByOurNumber(ctx, ourNumber)
	if err != nil {
		return nil, err
	}
	agreement, err := s.agreements.GetAgreementForAccount(ctx, accountID)
	if err != nil {
		return nil, err
	}
	cred, err := s.creds.GetCredentialForAccount(ctx, accountID, domain.ModalityBilling)
	if err != nil {
		return nil, err
	}

	state, err := s.bank.QuerySlip(ctx, cred, ourNumber, agreement.AgreementNumber)
	if err != nil {
		return nil, err
	}
	return s.applyBankState(ctx, slip, state)
}

// applyBankState mirrors the bank's view locally when the status moved.
// An unchanged status touches nothing and writes no audit entry.
func (s *BoletoService) applyBankState(ctx context.Context, slip *domain.BankSlip, state *domain.SlipBankState) (*domain.BankSlip, error) {
	newStatus := state.Status()
	if newStatus == slip.Status {
		return slip, nil
	}

	before := marshalState(slip)
	slip.Status = newStatus
	slip.RawResponse = state.Raw
	if newStatus == domain.SlipPaid && slip.PaymentDate == nil {
		d := resolvePaymentDate(state)
		slip.PaymentDate = &d
	}
	if newStatus == domain.SlipWrittenOff && slip.WriteOffAt == nil {
		now := time.Now()
		slip.WriteOffAt = &now
	}
	slip.UpdatedAt = time.Now()

	if err := s.slips.UpdateSlip(ctx, slip); err != nil {
		return nil, err
	}

	s.appendAudit(ctx, &domain.BankSlipLogEntry{
		SlipID:      slip.ID,
		Operation:   domain.SlipLogStatusRefresh,
		Description: fmt.Sprintf("status refreshed from bank: %s", newStatus),
		Before:      before,
		After:       marshalState(slip),
	})
	return slip, nil
}

// SlipByOurNumber reads the local mirror without touching the bank.
func (s *BoletoService) SlipByOurNumber(ctx context.Context, ourNumber string) (*domain.BankSlip, error) {
	return s.slips.GetSlipByOurNumber(ctx, ourNumber)
}

// ListSlips lists slips on the bank side for the account's agreement.
func (s *BoletoService) ListSlips(ctx context.Context, accountID string, f domain.SlipListFilters) ([]domain.SlipSummary, error) {
	ctx, span := boletoTracer.Start(ctx, "BoletoService.ListSlips")
	defer span.End()
	span.SetAttributes(attribute.String("account.id", accountID))

	account, err := s.accounts.GetAccount(ctx, accountID)
	if err != nil {
		return nil, err
	}
	agreement, err := s.agreements.GetAgreementForAccount(ctx, accountID)
	if err != nil {
		return nil, err
	}
	cred, err := s.creds.GetCredentialForAccount(ctx, accountID, domain.ModalityBilling)
	if err != nil {
		return nil, err
	}
	return s.bank.ListSlips(ctx, cred, *account, agreement.AgreementNumber, f)
}

// AlterSlip applies a partial alteration at the bank and mirrors the
// accepted fields locally.
func (s *BoletoService) AlterSlip(ctx context.Context, accountID, ourNumber string, alt *domain.SlipAlteration, actorID, sourceIP string) (*domain.BankSlip, error) {
	ctx, span := boletoTracer.Start(ctx, "BoletoService.AlterSlip")
	defer span.End()
	span.SetAttributes(attribute.String("slip.our_number", ourNumber))

	if alt == nil || alt.Empty() {
		return nil, &domain.ErrValidation{Field: "alteration", Message: "no fields to change"}
	}

	slip, err := s.slips.GetSlipByOurNumber(ctx, ourNumber)
	if err != nil {
		return nil, err
	}
	if err := mutationGuard(slip, domain.MutationAlter); err != nil {
		return nil, err
	}

	agreement, err := s.agreements.GetAgreementForAccount(ctx, accountID)
	if err != nil {
		return nil, err
	}
	cred, err := s.creds.GetCredentialForAccount(ctx, accountID, domain.ModalityBilling)
	if err != nil {
		return nil, err
	}

	if err := s.bank.AlterSlip(ctx, cred, ourNumber, agreement.AgreementNumber, alt); err != nil {
		return nil, err
	}

	before := marshalState(slip)
	if alt.DueDate != nil {
		slip.DueDate = *alt.DueDate
	}
	if alt.Amount != nil {
		slip.Amount = *alt.Amount
	}
	if alt.TitleNumber != nil {
		slip.TitleNumber = *alt.TitleNumber
	}
	slip.AlteredBy = actorID
	slip.UpdatedAt = time.Now()

	if err := s.slips.UpdateSlip(ctx, slip); err != nil {
		return nil, err
	}

	s.appendAudit(ctx, &domain.BankSlipLogEntry{
		SlipID:      slip.ID,
		Operation:   domain.SlipLogAlter,
		Description: "slip altered at bank",
		Before:      before,
		After:       marshalState(slip),
		ActorID:     actorID,
		SourceIP:    sourceIP,
	})
	return slip, nil
}

// WriteOffSlip cancels a slip at the bank. A bank answer saying the slip
// is already written off converges the local mirror instead of failing.
func (s *BoletoService) WriteOffSlip(ctx context.Context, accountID, ourNumber, actorID, sourceIP string) (*domain.BankSlip, error) {
	ctx, span := boletoTracer.Start(ctx, "BoletoService.WriteOffSlip")
	defer span.End()
	span.SetAttributes(attribute.String("slip.our_number", ourNumber))

	slip, err := s.slips.GetSlipByOurNumber(ctx, ourNumber)
	if err != nil {
		return nil, err
	}
	if err := mutationGuard(slip, domain.MutationWriteOff); err != nil {
		return nil, err
	}

	agreement, err := s.agreements.GetAgreementForAccount(ctx, accountID)
	if err != nil {
		return nil, err
	}
	cred, err := s.creds.GetCredentialForAccount(ctx, accountID, domain.ModalityBilling)
	if err != nil {
		return nil, err
	}

	if err := s.bank.WriteOffSlip(ctx, cred, ourNumber, agreement.AgreementNumber); err != nil {
		bankErr, ok := err.(*domain.ErrBankAPI)
		if !ok || !domain.IsAlreadyWrittenOffMessage(bankErr.Messages()) {
			return nil, err
		}
		s.logger.Info("slip already written off at bank, converging mirror",
			zap.String("our_number", ourNumber),
		)
	}

	before := marshalState(slip)
	now := time.Now()
	slip.Status = domain.SlipWrittenOff
	slip.WriteOffAt = &now
	slip.WrittenBy = actorID
	slip.UpdatedAt = now

	if err := s.slips.UpdateSlip(ctx, slip); err != nil {
		return nil, err
	}

	s.appendAudit(ctx, &domain.BankSlipLogEntry{
		SlipID:      slip.ID,
		Operation:   domain.SlipLogWriteOff,
		Description: "slip written off",
		Before:      before,
		After:       marshalState(slip),
		ActorID:     actorID,
		SourceIP:    sourceIP,
	})
	return slip, nil
}

// VerifyManual asks the bank for the slip's current state. A paid slip
// runs settlement; any other state only refreshes the local mirror.
// Safe to call repeatedly: a slip that already settled reports
// paymentCreated=false.
func (s *BoletoService) VerifyManual(ctx context.Context, accountID, ourNumber, actorID, sourceIP string) (*domain.BankSlip, bool, error) {
	ctx, span := boletoTracer.Start(ctx, "BoletoService.VerifyManual")
	defer span.End()
	span.SetAttributes(attribute.String("slip.our_number", ourNumber))

	slip, err := s.slips.GetSlipByOurNumber(ctx, ourNumber)
	if err != nil {
		return nil, false, err
	}
	agreement, err := s.agreements.GetAgreementForAccount(ctx, accountID)
	if err != nil {
		return nil, false, err
	}
	cred, err := s.creds.GetCredentialForAccount(ctx, accountID, domain.ModalityBilling)
	if err != nil {
		return nil, false, err
	}

	state, err := s.bank.QuerySlip(ctx, cred, ourNumber, agreement.AgreementNumber)
	if err != nil {
		return nil, false, err
	}

	if state.Status() != domain.SlipPaid {
		refreshed, err := s.applyBankState(ctx, slip, state)
		if err != nil {
			return nil, false, err
		}
		return refreshed, false, nil
	}

	return s.settlement.Settle(ctx, SettleInput{
		SlipID:      slip.ID,
		PaymentDate: resolvePaymentDate(state),
		RawPayload:  state.Raw,
		ViaWebhook:  false,
		ActorID:     actorID,
		SourceIP:    sourceIP,
	})
}

// ============================================================
// Helpers
// ============================================================

// payerRequired lists the client fields a slip cannot be issued without.
var payerRequired = []struct {
	name string
	get  func(*domain.Client) string
}{
	{"name", func(c *domain.Client) string { return c.Name }},
	{"tax_id", func(c *domain.Client) string { return c.TaxID() }},
	{"address", func(c *domain.Client) string { return c.Address }},
	{"city", func(c *domain.Client) string { return c.City }},
	{"state", func(c *domain.Client) string { return c.State }},
	{"postal_code", func(c *domain.Client) string { return c.PostalCode }},
}

// payerFromClient snapshots the client as a slip payer, refusing clients
// that lack any of the mandatory fields.
func payerFromClient(c *domain.Client) (domain.PayerSnapshot, error) {
	var missing []string
	for _, f := range payerRequired {
		if f.get(c) == "" {
			missing = append(missing, f.name)
		}
	}
	if len(missing) > 0 {
		return domain.PayerSnapshot{}, &domain.ErrIncompleteClient{ClientID: c.ID, Missing: missing}
	}

	taxID := bankfmt.Digits(c.TaxID())
	length := bankfmt.CPFLen
	if c.CNPJ != "" {
		length = bankfmt.CNPJLen
	}
	return domain.PayerSnapshot{
		Name:       c.Name,
		TaxID:      bankfmt.PadTaxID(taxID, length),
		Address:    c.Address,
		City:       c.City,
		State:      c.State,
		PostalCode: bankfmt.Digits(c.PostalCode),
	}, nil
}

// buildOurNumber composes the client-assigned our-number: "000", the
// seven-digit agreement number and the ten-digit per-agreement sequence.
func buildOurNumber(agreementNumber, seq int64) string {
	return fmt.Sprintf("000%07d%010d", agreementNumber, seq)
}

// validateIssueRequest runs the field-level rule set before the payload
// goes to the bank, so predictable rejections never burn a bank call.
func validateIssueRequest(r *domain.SlipIssueRequest) error {
	switch {
	case r.Agreement.AgreementNumber <= 0:
		return &domain.ErrValidation{Field: "agreement_number", Message: "must be positive"}
	case r.Agreement.WalletCode <= 0:
		return &domain.ErrValidation{Field: "wallet_code", Message: "must be positive"}
	case r.TitleNumber <= 0:
		return &domain.ErrValidation{Field: "title_number", Message: "must be positive"}
	case len(r.OurNumber) > 20:
		return &domain.ErrValidation{Field: "our_number", Message: "must be at most 20 characters"}
	case len(r.Payer.TaxID) != bankfmt.CPFLen && len(r.Payer.TaxID) != bankfmt.CNPJLen:
		return &domain.ErrValidation{Field: "payer.tax_id", Message: "must have 11 or 14 digits"}
	case bankfmt.DayBefore(r.DueDate, r.IssueDate):
		return &domain.ErrValidation{Field: "due_date", Message: "must not precede the issue date"}
	}
	return nil
}

// mutationGuard enforces the slip state machine plus the minimum-age
// window on alterations and write-offs.
func mutationGuard(slip *domain.BankSlip, kind domain.MutationKind) error {
	if !domain.CanMutate(slip.Status, kind) {
		return &domain.ErrMutationNotAllowed{
			OurNumber: slip.OurNumber,
			Status:    slip.Status,
			Kind:      kind,
		}
	}
	if age := time.Since(slip.CreatedAt); age < domain.MutationMinAge {
		return &domain.ErrMutationNotAllowed{
			OurNumber: slip.OurNumber,
			Status:    slip.Status,
			Kind:      kind,
			Remaining: (domain.MutationMinAge - age).Round(time.Second).String(),
		}
	}
	return nil
}

// paymentDateExtractors is the ordered fallback chain for the payment
// date of a paid slip. First extractor to produce a parseable date wins.
var paymentDateExtractors = []func(*domain.SlipBankState) (time.Time, bool){
	func(s *domain.SlipBankState) (time.Time, bool) { return bankfmt.ParseDottedDate(s.ReceiptDate) },
	func(s *domain.SlipBankState) (time.Time, bool) { return bankfmt.ParseDottedDate(s.SettlementDate) },
	func(s *domain.SlipBankState) (time.Time, bool) { return bankfmt.ParseDottedDate(s.PaymentDate) },
	func(s *domain.SlipBankState) (time.Time, bool) { return bankfmt.ParseDottedDate(s.ScheduleTimestamp) },
}

// resolvePaymentDate walks the extractor chain, defaulting to now.
func resolvePaymentDate(state *domain.SlipBankState) time.Time {
	for _, extract := range paymentDateExtractors {
		if d, ok := extract(state); ok {
			return d
		}
	}
	return time.Now()
}

// marshalState serializes a slip for the audit trail.
func marshalState(slip *domain.BankSlip) string {
	b, err := json.Marshal(slip)
	if err != nil {
		return ""
	}
	return string(b)
}

// appendAudit writes an audit row best-effort. Audit failures are logged
// and swallowed; they never fail the operation they document.
func (s *BoletoService) appendAudit(ctx context.Context, e *domain.BankSlipLogEntry) {
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
