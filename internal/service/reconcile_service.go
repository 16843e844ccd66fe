package service

import (
	"context"
	"strconv"
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

var reconcileTracer = otel.Tracer("service/reconcile")

// ReconcileService matches raw statement credits against ERP clients by
// tax id and persists each match once.
type ReconcileService struct {
	clients port.ClientStore
	entries port.StatementStore
	metrics *observability.Metrics
	logger  *zap.Logger
}

// NewReconcileService creates the matcher.
func NewReconcileService(clients port.ClientStore, entries port.StatementStore, metrics *observability.Metrics, logger *zap.Logger) *ReconcileService {
	return &ReconcileService{clients: clients, entries: entries, metrics: metrics, logger: logger}
}

// taxIDExtractors is the ordered fallback chain for pulling a tax-id
// candidate out of a raw statement entry: structured counterpart field
// first, then the narrative text, then the complement.
var taxIDExtractors = []func(*domain.RawStatementEntry) (string, bool){
	func(e *domain.RawStatementEntry) (string, bool) {
		if e.CounterpartID <= 0 {
			return "", false
		}
		return strconv.FormatInt(e.CounterpartID, 10), true
	},
	func(e *domain.RawStatementEntry) (string, bool) {
		return bankfmt.ExtractTaxIDRun(e.CounterpartText)
	},
	func(e *domain.RawStatementEntry) (string, bool) {
		return bankfmt.ExtractTaxIDRun(e.InfoComplement)
	},
}

// Reconcile matches the given raw entries against clients and persists
// the matched credits, skipping entries already stored under their
// natural key. Unmatched and debit entries are dropped. A non-empty
// clientIDs list restricts matching to those candidates; an empty list
// matches against every client with a tax id.
func (s *ReconcileService) Reconcile(ctx context.Context, accountID string, clientIDs []string, raw []domain.RawStatementEntry) (*domain.ReconciliationResult, error) {
	ctx, span := reconcileTracer.Start(ctx, "ReconcileService.Reconcile")
	defer span.End()
	span.SetAttributes(
		attribute.String("account.id", accountID),
		attribute.Int("entries", len(raw)),
		attribute.Int("candidates", len(clientIDs)),
	)

	lookup, err := s.buildLookup(ctx, clientIDs)
	if err != nil {
		return nil, err
	}

	result := &domain.ReconciliationResult{Found: len(raw)}
	seenClients := make(map[string]bool)

	for i := range raw {
		entry := &raw[i]
		if !entry.Credit() {
			continue
		}

		clientID, taxID, ok := s.match(entry, lookup)
		if !ok {
			s.metrics.AddReconEntries("unmatched", 1)
			continue
		}
		result.Matched++

		exists, err := s.entries.EntryExists(ctx, accountID, entry.Key())
		if err != nil {
			return nil, err
		}
		if exists {
			result.Duplicates++
			s.metrics.AddReconEntries("duplicate", 1)
			continue
		}

		now := time.Now()
		stored := &domain.StatementEntry{
			ID:              uuid.New().String(),
			AccountID:       accountID,
			DocumentNumber:  entry.DocumentNumber,
			EntryDateRaw:    entry.EntryDateRaw,
			LotNumber:       entry.LotNumber,
			Amount:          entry.Amount,
			CounterpartRaw:  taxID,
			Info:            entry.InfoComplement,
			MatchedClientID: clientID,
			Processed:       true,
			Linked:          false,
			CreatedAt:       now,
		}
		if err := s.entries.InsertEntry(ctx, stored); err != nil {
			return nil, err
		}
		result.Saved++
		s.metrics.AddReconEntries("saved", 1)

		if !seenClients[clientID] {
			seenClients[clientID] = true
			result.ClientsWithNews = append(result.ClientsWithNews, clientID)
		}
	}

	s.logger.Info("reconciliation pass done",
		zap.String("account_id", accountID),
		zap.Int("found", result.Found),
		zap.Int("matched", result.Matched),
		zap.Int("saved", result.Saved),
		zap.Int("duplicates", result.Duplicates),
	)
	return result, nil
}

// buildLookup indexes the candidate clients by normalized tax id. CPFs
// are padded to 11 digits and CNPJs to 14, so statement values that
// dropped leading zeros still match.
func (s *ReconcileService) buildLookup(ctx context.Context, clientIDs []string) (map[string]string, error) {
	var clients []domain.Client
	var err error
	if len(clientIDs) > 0 {
		clients, err = s.clients.GetClients(ctx, clientIDs)
	} else {
		clients, err = s.clients.ListClientsWithTaxID(ctx)
	}
	if err != nil {
		return nil, err
	}

	lookup := make(map[string]string, len(clients))
	for _, c := range clients {
		if c.CPF != "" {
			lookup[bankfmt.PadTaxID(bankfmt.Digits(c.CPF), bankfmt.CPFLen)] = c.ID
		}
		if c.CNPJ != "" {
			lookup[bankfmt.PadTaxID(bankfmt.Digits(c.CNPJ), bankfmt.CNPJLen)] = c.ID
		}
	}
	return lookup, nil
}

// match walks the extractor chain and tries each candidate as a CPF and
// then as a CNPJ, re-padding for both widths.
func (s *ReconcileService) match(entry *domain.RawStatementEntry, lookup map[string]string) (clientID, taxID string, ok bool) {
	for _, extract := range taxIDExtractors {
		candidate, found := extract(entry)
		if !found {
			continue
		}
		digits := bankfmt.Digits(candidate)
		if digits == "" {
			continue
		}

		for _, width := range []int{bankfmt.CPFLen, bankfmt.CNPJLen} {
			if len(digits) > width {
				continue
			}
			padded := bankfmt.PadTaxID(digits, width)
			if id, hit := lookup[padded]; hit {
				return id, padded, true
			}
		}
	}
	return "", "", false
}
