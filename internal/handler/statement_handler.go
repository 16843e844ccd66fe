package handler

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/higorocha/SistemaWebAlencarFrutas-sub009/internal/domain"
	"github.com/higorocha/SistemaWebAlencarFrutas-sub009/internal/service"

	"github.com/go-chi/chi/v5"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

// ============================================================
// Statement — /v1/accounts/{accountID}/extrato
// ============================================================

// parsePeriod reads the inicio/fim query pair. Both absent means the
// caller wants the cached month-to-date view.
func parsePeriod(r *http.Request) (start, end time.Time, monthly bool, err error) {
	q := r.URL.Query()
	sv, ev := q.Get("inicio"), q.Get("fim")
	if sv == "" && ev == "" {
		return time.Time{}, time.Time{}, true, nil
	}
	if start, err = time.Parse("2006-01-02", sv); err != nil {
		return
	}
	end, err = time.Parse("2006-01-02", ev)
	return
}

// fetchEntries resolves the requested window against the statement
// service, using the monthly cached view when no window was given.
func fetchEntries(r *http.Request, svc *service.StatementService, accountID string) ([]domain.RawStatementEntry, error) {
	start, end, monthly, err := parsePeriod(r)
	if err != nil {
		return nil, &domain.ErrValidation{Field: "period", Message: "inicio and fim must be YYYY-MM-DD"}
	}
	if monthly {
		return svc.FetchMonthly(r.Context(), accountID)
	}
	return svc.Fetch(r.Context(), accountID, start, end)
}

func fetchStatementHandler(svc *service.StatementService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /v1/accounts/{accountID}/extrato")
		defer span.End()

		accountID := chi.URLParam(r, "accountID")
		span.SetAttributes(attribute.String("account.id", accountID))

		entries, err := fetchEntries(r.WithContext(ctx), svc, accountID)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"lancamentos": entries, "total": len(entries)})
	}
}

// reconcileRequest optionally restricts matching to a candidate client
// set. An absent or empty body means every client with a tax id.
type reconcileRequest struct {
	ClientIDs []string `json:"clientes"`
}

func reconcileStatementHandler(statements *service.StatementService, matcher *service.ReconcileService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "POST /v1/accounts/{accountID}/extrato/conciliar")
		defer span.End()

		accountID := chi.URLParam(r, "accountID")
		span.SetAttributes(attribute.String("account.id", accountID))

		var req reconcileRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}

		entries, err := fetchEntries(r.WithContext(ctx), statements, accountID)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}

		result, err := matcher.Reconcile(ctx, accountID, req.ClientIDs, entries)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, result)
	}
}
