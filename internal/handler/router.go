package handler

import (
	"net/http"
	"time"

	"github.com/higorocha/SistemaWebAlencarFrutas-sub009/internal/infra/observability"
	"github.com/higorocha/SistemaWebAlencarFrutas-sub009/internal/service"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	"go.uber.org/zap"
)

var tracer = otel.Tracer("handler")

// Services bundles everything the router exposes.
type Services struct {
	Boletos    *service.BoletoService
	Statements *service.StatementService
	Reconciler *service.ReconcileService
	Settlement *service.SettlementService
	Tokens     *service.TokenService
}

// NewRouter creates the HTTP router with all routes and middleware.
func NewRouter(svcs Services, metrics *observability.Metrics, logger *zap.Logger) http.Handler {
	r := chi.NewRouter()

	// --- Middleware ---
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(observability.RequestLogger(logger))
	r.Use(observability.TracingMiddleware)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Heartbeat("/ping"))

	// --- Operational endpoints ---
	r.Get("/healthz", healthzHandler())
	r.Handle("/metrics", promhttp.HandlerFor(metrics.Registry, promhttp.HandlerOpts{}))

	// --- Bank callbacks ---
	r.Post("/webhooks/banco/pagamentos", paymentWebhookHandler(svcs.Boletos, svcs.Settlement, logger))

	// --- API v1 ---
	r.Route("/v1", func(r chi.Router) {

		// =============================================
		// Boletos (slip lifecycle)
		// =============================================
		r.Route("/accounts/{accountID}/boletos", func(r chi.Router) {
			r.Post("/", createSlipHandler(svcs.Boletos, logger))
			r.Get("/", listSlipsHandler(svcs.Boletos, logger))
			r.Get("/{ourNumber}", querySlipHandler(svcs.Boletos, logger))
			r.Patch("/{ourNumber}", alterSlipHandler(svcs.Boletos, logger))
			r.Post("/{ourNumber}/baixa", writeOffSlipHandler(svcs.Boletos, logger))
			r.Post("/{ourNumber}/verificar", verifySlipHandler(svcs.Boletos, logger))
		})

		// =============================================
		// Extrato (statement + reconciliation)
		// =============================================
		r.Get("/accounts/{accountID}/extrato", fetchStatementHandler(svcs.Statements, logger))
		r.Post("/accounts/{accountID}/extrato/conciliar", reconcileStatementHandler(svcs.Statements, svcs.Reconciler, logger))

		// =============================================
		// Operations
		// =============================================
		r.Get("/metrics/integracao", integrationMetricsHandler(metrics))
		r.Delete("/tokens", clearTokensHandler(svcs.Tokens))
	})

	return r
}

func healthzHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{
			"status": "healthy",
			"time":   time.Now().Format(time.RFC3339),
		})
	}
}

func integrationMetricsHandler(metrics *observability.Metrics) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, metrics.Snapshot())
	}
}

func clearTokensHandler(tokens *service.TokenService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		tokens.Clear(r.Context())
		w.WriteHeader(http.StatusNoContent)
	}
}
