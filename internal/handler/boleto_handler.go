package handler

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/higorocha/SistemaWebAlencarFrutas-sub009/internal/domain"
	"github.com/higorocha/SistemaWebAlencarFrutas-sub009/internal/service"

	"github.com/go-chi/chi/v5"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

// ============================================================
// Slip lifecycle — /v1/accounts/{accountID}/boletos
// ============================================================

type createSlipRequest struct {
	OrderID string  `json:"order_id"`
	Amount  float64 `json:"amount"`
	DueDate string  `json:"due_date"` // YYYY-MM-DD
}

func createSlipHandler(svc *service.BoletoService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "POST /v1/accounts/{accountID}/boletos")
		defer span.End()

		accountID := chi.URLParam(r, "accountID")
		span.SetAttributes(attribute.String("account.id", accountID))

		var req createSlipRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		if req.OrderID == "" {
			writeError(w, http.StatusBadRequest, "order_id is required")
			return
		}
		dueDate, err := time.Parse("2006-01-02", req.DueDate)
		if err != nil {
			writeError(w, http.StatusBadRequest, "due_date must be YYYY-MM-DD")
			return
		}

		slip, err := svc.CreateSlip(ctx, service.CreateSlipInput{
			AccountID: accountID,
			OrderID:   req.OrderID,
			Amount:    req.Amount,
			DueDate:   dueDate,
			ActorID:   actorFrom(r),
			SourceIP:  r.RemoteAddr,
		})
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusCreated, slip)
	}
}

func querySlipHandler(svc *service.BoletoService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /v1/accounts/{accountID}/boletos/{ourNumber}")
		defer span.End()

		slip, err := svc.QuerySlip(ctx, chi.URLParam(r, "accountID"), chi.URLParam(r, "ourNumber"))
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, slip)
	}
}

func listSlipsHandler(svc *service.BoletoService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /v1/accounts/{accountID}/boletos")
		defer span.End()

		var f domain.SlipListFilters
		q := r.URL.Query()
		if v := q.Get("situacao"); v != "" {
			code, err := strconv.Atoi(v)
			if err != nil {
				writeError(w, http.StatusBadRequest, "situacao must be numeric")
				return
			}
			f.StatusCode = code
		}
		if v := q.Get("vencimento_de"); v != "" {
			t, err := time.Parse("2006-01-02", v)
			if err != nil {
				writeError(w, http.StatusBadRequest, "vencimento_de must be YYYY-MM-DD")
				return
			}
			f.DueFrom = &t
		}
		if v := q.Get("vencimento_ate"); v != "" {
			t, err := time.Parse("2006-01-02", v)
			if err != nil {
				writeError(w, http.StatusBadRequest, "vencimento_ate must be YYYY-MM-DD")
				return
			}
			f.DueTo = &t
		}

		summaries, err := svc.ListSlips(ctx, chi.URLParam(r, "accountID"), f)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"boletos": summaries, "total": len(summaries)})
	}
}

type alterSlipRequest struct {
	DueDate        *string  `json:"due_date,omitempty"`
	Amount         *float64 `json:"amount,omitempty"`
	InterestOn     *bool    `json:"interest_on,omitempty"`
	PenaltyOn      *bool    `json:"penalty_on,omitempty"`
	AcceptanceDays *int     `json:"acceptance_days,omitempty"`
	TitleNumber    *int64   `json:"title_number,omitempty"`
}

func alterSlipHandler(svc *service.BoletoService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "PATCH /v1/accounts/{accountID}/boletos/{ourNumber}")
		defer span.End()

		var req alterSlipRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}

		alt := &domain.SlipAlteration{
			Amount:         req.Amount,
			InterestOn:     req.InterestOn,
			PenaltyOn:      req.PenaltyOn,
			AcceptanceDays: req.AcceptanceDays,
			TitleNumber:    req.TitleNumber,
		}
		if req.DueDate != nil {
			t, err := time.Parse("2006-01-02", *req.DueDate)
			if err != nil {
				writeError(w, http.StatusBadRequest, "due_date must be YYYY-MM-DD")
				return
			}
			alt.DueDate = &t
		}

		slip, err := svc.AlterSlip(ctx, chi.URLParam(r, "accountID"), chi.URLParam(r, "ourNumber"), alt, actorFrom(r), r.RemoteAddr)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, slip)
	}
}

func writeOffSlipHandler(svc *service.BoletoService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "POST /v1/accounts/{accountID}/boletos/{ourNumber}/baixa")
		defer span.End()

		slip, err := svc.WriteOffSlip(ctx, chi.URLParam(r, "accountID"), chi.URLParam(r, "ourNumber"), actorFrom(r), r.RemoteAddr)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, slip)
	}
}

func verifySlipHandler(svc *service.BoletoService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "POST /v1/accounts/{accountID}/boletos/{ourNumber}/verificar")
		defer span.End()

		slip, created, err := svc.VerifyManual(ctx, chi.URLParam(r, "accountID"), chi.URLParam(r, "ourNumber"), actorFrom(r), r.RemoteAddr)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"boleto":          slip,
			"payment_created": created,
		})
	}
}
