package handler

import (
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/higorocha/SistemaWebAlencarFrutas-sub009/internal/bankfmt"
	"github.com/higorocha/SistemaWebAlencarFrutas-sub009/internal/service"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

// ============================================================
// Bank payment webhook — POST /webhooks/banco/pagamentos
// ============================================================

// webhookPayment is the bank's payment notification. Field names follow
// the bank's payload; the date arrives in DD.MM.YYYY form.
type webhookPayment struct {
	OurNumber   string  `json:"numeroTituloCobranca"`
	PaymentDate string  `json:"dataLiquidacao"`
	Amount      float64 `json:"valorPago"`
}

func paymentWebhookHandler(slips *service.BoletoService, settlement *service.SettlementService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "POST /webhooks/banco/pagamentos")
		defer span.End()

		body, err := io.ReadAll(r.Body)
		if err != nil {
			writeError(w, http.StatusBadRequest, "unreadable body")
			return
		}

		var payload webhookPayment
		if err := json.Unmarshal(body, &payload); err != nil || payload.OurNumber == "" {
			logger.Warn("malformed payment webhook", zap.ByteString("body", body))
			writeError(w, http.StatusBadRequest, "malformed payment notification")
			return
		}
		span.SetAttributes(attribute.String("slip.our_number", payload.OurNumber))

		slip, err := slips.SlipByOurNumber(ctx, payload.OurNumber)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}

		paymentDate, ok := bankfmt.ParseDottedDate(payload.PaymentDate)
		if !ok {
			logger.Warn("webhook payment date unparseable, using receipt time",
				zap.String("raw", payload.PaymentDate),
			)
			paymentDate = time.Now()
		}

		updated, created, err := settlement.Settle(ctx, service.SettleInput{
			SlipID:      slip.ID,
			PaymentDate: paymentDate,
			RawPayload:  string(body),
			ViaWebhook:  true,
			SourceIP:    r.RemoteAddr,
		})
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}

		writeJSON(w, http.StatusOK, map[string]any{
			"boleto":          updated.OurNumber,
			"status":          updated.Status,
			"payment_created": created,
		})
	}
}
