package handler_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/higorocha/SistemaWebAlencarFrutas-sub009/internal/domain"
	"github.com/higorocha/SistemaWebAlencarFrutas-sub009/internal/handler"
	"github.com/higorocha/SistemaWebAlencarFrutas-sub009/internal/infra/cache"
	"github.com/higorocha/SistemaWebAlencarFrutas-sub009/internal/infra/memstore"
	"github.com/higorocha/SistemaWebAlencarFrutas-sub009/internal/infra/observability"
	"github.com/higorocha/SistemaWebAlencarFrutas-sub009/internal/service"

	"go.uber.org/zap"
)

// --- Mock bank ---

type stubBank struct {
	queryState *domain.SlipBankState
}

func (b *stubBank) CreateSlip(_ context.Context, _ *domain.Credential, req *domain.SlipIssueRequest) (*domain.SlipIssueResult, error) {
	return &domain.SlipIssueResult{
		OurNumber: req.OurNumber,
		Barcode:   "00190000090123456789012345678901234567890123",
		DigitLine: "00190.00009 01234.567890 12345.678901 2 34567890123456",
	}, nil
}

func (b *stubBank) QuerySlip(_ context.Context, _ *domain.Credential, _ string, _ int64) (*domain.SlipBankState, error) {
	return b.queryState, nil
}

func (b *stubBank) ListSlips(_ context.Context, _ *domain.Credential, _ domain.BankAccount, _ int64, _ domain.SlipListFilters) ([]domain.SlipSummary, error) {
	return nil, nil
}

func (b *stubBank) AlterSlip(_ context.Context, _ *domain.Credential, _ string, _ int64, _ *domain.SlipAlteration) error {
	return nil
}

func (b *stubBank) WriteOffSlip(_ context.Context, _ *domain.Credential, _ string, _ int64) error {
	return nil
}

func (b *stubBank) FetchStatementPage(_ context.Context, _ *domain.Credential, _ domain.BankAccount, _, _ time.Time, _ int) (*domain.StatementPage, error) {
	return &domain.StatementPage{}, nil
}

// --- Fixture ---

type routerFixture struct {
	router http.Handler
	slips  *memstore.SlipStore
	erp    *memstore.ERPStore
	bank   *stubBank
}

func newRouterFixture(t *testing.T) *routerFixture {
	t.Helper()

	config := memstore.NewConfigStore()
	config.Accounts["acc-1"] = &domain.BankAccount{ID: "acc-1", Branch: "452", AccountNumber: "123873"}
	config.Agreements["acc-1"] = &domain.BillingAgreement{
		ID: "agr-1", AccountID: "acc-1", AgreementNumber: 3128557,
		WalletCode: 17, VariationCode: 35, Numbering: domain.NumberingByClient,
	}
	config.Credentials["cred-billing"] = &domain.Credential{
		ID: "cred-billing", AccountID: "acc-1", Modality: domain.ModalityBilling,
		ClientID: "client", ClientSecret: "secret", DeveloperAppKey: "appkey",
	}
	config.Credentials["cred-statement"] = &domain.Credential{
		ID: "cred-statement", AccountID: "acc-1", Modality: domain.ModalityStatement,
		ClientID: "client", ClientSecret: "secret", DeveloperAppKey: "appkey",
	}

	erp := memstore.NewERPStore()
	erp.Clients["cli-1"] = &domain.Client{
		ID: "cli-1", Name: "Fazenda Boa Vista LTDA", CPF: "12345678901",
		Address: "Rua das Mangueiras 10", City: "Fortaleza", State: "CE", PostalCode: "60000-000",
	}
	erp.Orders["ord-1"] = &domain.Order{ID: "ord-1", ClientID: "cli-1", TotalAmount: 150, Status: domain.OrderAwaiting}

	slips := memstore.NewSlipStore()
	audit := memstore.NewAuditSink()
	metrics := observability.NewMetrics()
	logger := zap.NewNop()
	bank := &stubBank{}

	settlement := service.NewSettlementService(slips, erp, erp, erp, memstore.NewLogNotifier(), audit, metrics, logger)
	boletos := service.NewBoletoService(bank, slips, config, config, config, erp, erp, audit, settlement, metrics, logger)
	statements := service.NewStatementService(bank, config, config,
		cache.New[[]domain.RawStatementEntry](time.Minute), metrics, logger)
	reconciler := service.NewReconcileService(erp, memstore.NewStatementStore(), metrics, logger)
	tokens := service.NewTokenService(config, nil, service.NewMemoryTokenStore(cache.New[domain.Token](time.Minute)), metrics, logger)

	router := handler.NewRouter(handler.Services{
		Boletos:    boletos,
		Statements: statements,
		Reconciler: reconciler,
		Settlement: settlement,
		Tokens:     tokens,
	}, metrics, logger)

	return &routerFixture{router: router, slips: slips, erp: erp, bank: bank}
}

func (f *routerFixture) seedSlip(t *testing.T, age time.Duration) *domain.BankSlip {
	t.Helper()

	now := time.Now()
	slip := &domain.BankSlip{
		ID: "slip-1", OrderID: "ord-1", AccountID: "acc-1", AgreementID: "agr-1",
		Amount: 150, IssueDate: now.Add(-age), DueDate: now.AddDate(0, 1, 0),
		Status: domain.SlipOpen, OurNumber: "00031285570000000001", TitleNumber: 1,
		CreatedAt: now.Add(-age), UpdatedAt: now.Add(-age),
	}
	if err := f.slips.CreateSlip(context.Background(), slip); err != nil {
		t.Fatalf("seed slip: %v", err)
	}
	return slip
}

// --- Tests ---

func TestHealthz(t *testing.T) {
	f := newRouterFixture(t)

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", rec.Code)
	}
}

func TestMetricsEndpoints(t *testing.T) {
	f := newRouterFixture(t)

	for _, path := range []string{"/metrics", "/v1/metrics/integracao"} {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		rec := httptest.NewRecorder()
		f.router.ServeHTTP(rec, req)
		if rec.Code != http.StatusOK {
			t.Errorf("%s: expected 200, got %d", path, rec.Code)
		}
	}
}

func TestCreateSlipEndpoint(t *testing.T) {
	f := newRouterFixture(t)

	due := time.Now().AddDate(0, 1, 0).Format("2006-01-02")
	body := `{"order_id":"ord-1","amount":150,"due_date":"` + due + `"}`
	req := httptest.NewRequest(http.MethodPost, "/v1/accounts/acc-1/boletos", strings.NewReader(body))
	req.Header.Set("X-Actor-Id", "user-9")
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)

	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
	if !strings.Contains(rec.Body.String(), `"status":"OPEN"`) {
		t.Errorf("expected OPEN slip in response, got %s", rec.Body.String())
	}
}

func TestCreateSlipEndpoint_IncompleteClient(t *testing.T) {
	f := newRouterFixture(t)
	f.erp.Clients["cli-1"].PostalCode = ""

	due := time.Now().AddDate(0, 1, 0).Format("2006-01-02")
	body := `{"order_id":"ord-1","amount":150,"due_date":"` + due + `"}`
	req := httptest.NewRequest(http.MethodPost, "/v1/accounts/acc-1/boletos", strings.NewReader(body))
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "postal_code") {
		t.Errorf("expected missing field in body, got %s", rec.Body.String())
	}
}

func TestWriteOffEndpoint_InsideWindowRejected(t *testing.T) {
	f := newRouterFixture(t)
	slip := f.seedSlip(t, 5*time.Minute)

	req := httptest.NewRequest(http.MethodPost, "/v1/accounts/acc-1/boletos/"+slip.OurNumber+"/baixa", nil)
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %d: %s", rec.Code, rec.Body.String())
	}
}

func TestQuerySlipEndpoint_UnknownIs404(t *testing.T) {
	f := newRouterFixture(t)
	f.bank.queryState = &domain.SlipBankState{StatusCode: 1}

	req := httptest.NewRequest(http.MethodGet, "/v1/accounts/acc-1/boletos/00000000000000000000", nil)
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
}

func TestPaymentWebhook_SettlesOnce(t *testing.T) {
	f := newRouterFixture(t)
	slip := f.seedSlip(t, time.Hour)

	body := `{"numeroTituloCobranca":"` + slip.OurNumber + `","dataLiquidacao":"15.03.2024","valorPago":150.00}`

	req := httptest.NewRequest(http.MethodPost, "/webhooks/banco/pagamentos", strings.NewReader(body))
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if !strings.Contains(rec.Body.String(), `"payment_created":true`) {
		t.Fatalf("expected payment_created=true, got %s", rec.Body.String())
	}

	// Repeated delivery must be absorbed.
	req = httptest.NewRequest(http.MethodPost, "/webhooks/banco/pagamentos", strings.NewReader(body))
	rec = httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 on repeat, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `"payment_created":false`) {
		t.Fatalf("expected payment_created=false on repeat, got %s", rec.Body.String())
	}

	order, _ := f.erp.GetOrder(context.Background(), "ord-1")
	if order.Status != domain.OrderFinalized {
		t.Errorf("expected order FINALIZED, got %s", order.Status)
	}
}

func TestPaymentWebhook_MalformedBody(t *testing.T) {
	f := newRouterFixture(t)

	req := httptest.NewRequest(http.MethodPost, "/webhooks/banco/pagamentos", strings.NewReader(`{"oops"`))
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}
