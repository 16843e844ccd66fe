package service

import (
	"context"
	"fmt"
	"time"

	"github.com/higorocha/SistemaWebAlencarFrutas-sub009/internal/domain"
	"github.com/higorocha/SistemaWebAlencarFrutas-sub009/internal/infra/observability"
	"github.com/higorocha/SistemaWebAlencarFrutas-sub009/internal/port"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

var statementTracer = otel.Tracer("service/statement")

// StatementService pulls account statements from the bank, walking the
// paged protocol, and serves a cached month-to-date view.
type StatementService struct {
	bank     port.StatementBank
	creds    port.CredentialStore
	accounts port.AccountStore
	monthly  port.Cache[[]domain.RawStatementEntry]
	metrics  *observability.Metrics
	logger   *zap.Logger
}

// NewStatementService creates the statement service.
func NewStatementService(bank port.StatementBank, creds port.CredentialStore, accounts port.AccountStore, monthly port.Cache[[]domain.RawStatementEntry], metrics *observability.Metrics, logger *zap.Logger) *StatementService {
	return &StatementService{
		bank:     bank,
		creds:    creds,
		accounts: accounts,
		monthly:  monthly,
		metrics:  metrics,
		logger:   logger,
	}
}

// Fetch pulls every statement entry of the account in [start, end],
// following the bank's page pointers until an empty page or no pointer.
// Only the statement-modality credential may call this API.
func (s *StatementService) Fetch(ctx context.Context, accountID string, start, end time.Time) ([]domain.RawStatementEntry, error) {
	ctx, span := statementTracer.Start(ctx, "StatementService.Fetch")
	defer span.End()
	span.SetAttributes(attribute.String("account.id", accountID))

	if end.Before(start) {
		return nil, &domain.ErrValidation{Field: "period", Message: "end must not precede start"}
	}

	account, err := s.accounts.GetAccount(ctx, accountID)
	if err != nil {
		return nil, err
	}
	cred, err := s.creds.GetCredentialForAccount(ctx, accountID, domain.ModalityStatement)
	if err != nil {
		return nil, err
	}

	var all []domain.RawStatementEntry
	for page := 1; ; {
		pg, err := s.bank.FetchStatementPage(ctx, cred, *account, start, end, page)
		if err != nil {
			return nil, err
		}
		if len(pg.Entries) == 0 {
			break
		}
		all = append(all, pg.Entries...)
		if pg.NextPage <= page {
			break
		}
		page = pg.NextPage
	}

	s.logger.Debug("statement fetched",
		zap.String("account_id", accountID),
		zap.Int("entries", len(all)),
	)
	return all, nil
}

// FetchMonthly returns the current month's statement up to yesterday.
// On the first day of a month it covers the entire previous month. The
// result is cached per account and calendar day.
func (s *StatementService) FetchMonthly(ctx context.Context, accountID string) ([]domain.RawStatementEntry, error) {
	ctx, span := statementTracer.Start(ctx, "StatementService.FetchMonthly")
	defer span.End()
	span.SetAttributes(attribute.String("account.id", accountID))

	now := time.Now()
	start, end := monthlyRange(now)

	key := fmt.Sprintf("monthly:%s:%s", accountID, now.Format("2006-01-02"))
	if entries, ok := s.monthly.Get(key); ok {
		s.metrics.IncrCacheHit("monthly_statement")
		return entries, nil
	}
	s.metrics.IncrCacheMiss("monthly_statement")

	entries, err := s.Fetch(ctx, accountID, start, end)
	if err != nil {
		return nil, err
	}

	endOfDay := time.Date(now.Year(), now.Month(), now.Day(), 23, 59, 59, 0, now.Location())
	s.monthly.Set(key, entries, time.Until(endOfDay))
	return entries, nil
}

// monthlyRange computes the month-to-date window: first of the current
// month through yesterday, or the whole previous month on the 1st.
func monthlyRange(now time.Time) (start, end time.Time) {
	if now.Day() == 1 {
		firstOfThis := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, now.Location())
		start = firstOfThis.AddDate(0, -1, 0)
		end = firstOfThis.AddDate(0, 0, -1)
		return start, end
	}
	start = time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, now.Location())
	end = now.AddDate(0, 0, -1)
	return start, end
}
