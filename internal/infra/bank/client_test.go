package bank_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/higorocha/SistemaWebAlencarFrutas-sub009/internal/domain"
	"github.com/higorocha/SistemaWebAlencarFrutas-sub009/internal/infra/bank"
	"github.com/higorocha/SistemaWebAlencarFrutas-sub009/internal/infra/observability"
	"github.com/higorocha/SistemaWebAlencarFrutas-sub009/internal/infra/resilience"

	"go.uber.org/zap"
)

type staticTokens struct{}

func (staticTokens) GetToken(_ context.Context, _ string) (domain.Token, error) {
	return domain.Token{AccessToken: "test-token", ExpiresAt: time.Now().Add(time.Hour)}, nil
}

func (staticTokens) ForceRefresh(_ context.Context, _ string) (domain.Token, error) {
	return domain.Token{AccessToken: "test-token", ExpiresAt: time.Now().Add(time.Hour)}, nil
}

func testCredential() *domain.Credential {
	return &domain.Credential{
		ID:              "cred-1",
		AccountID:       "acc-1",
		ClientID:        "client",
		ClientSecret:    "secret",
		DeveloperAppKey: "appkey",
	}
}

func newTestClient(t *testing.T, h http.HandlerFunc) (*bank.Client, *httptest.Server) {
	t.Helper()

	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)

	client := bank.NewClient(
		srv.Client(),
		srv.URL,
		staticTokens{},
		resilience.NewCircuitBreaker("bank-test"),
		resilience.Config{MaxRetries: 0, InitialBackoff: time.Millisecond},
		observability.NewMetrics(),
		zap.NewNop(),
	)
	return client, srv
}

func TestCreateSlip_WireFormat(t *testing.T) {
	var captured map[string]any
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Query().Get("gw-dev-app-key"); got != "appkey" {
			t.Errorf("expected app key in query, got %q", got)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer test-token" {
			t.Errorf("expected bearer token, got %q", got)
		}
		json.NewDecoder(r.Body).Decode(&captured)
		json.NewEncoder(w).Encode(map[string]any{
			"numero":              "00031285570000000001",
			"codigoBarraNumerico": "0019000009",
			"linhaDigitavel":      "00190.00009",
		})
	})

	result, err := client.CreateSlip(context.Background(), testCredential(), &domain.SlipIssueRequest{
		Agreement:   domain.BillingAgreement{AgreementNumber: 3128557, WalletCode: 17, VariationCode: 35},
		Payer:       domain.PayerSnapshot{Name: "Payer", TaxID: "12345678901"},
		Amount:      150.75,
		IssueDate:   time.Date(2024, 3, 5, 0, 0, 0, 0, time.UTC),
		DueDate:     time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC),
		TitleNumber: 1,
		OurNumber:   "00031285570000000001",
	})
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	// Day without leading zero, month always two digits.
	if captured["dataEmissao"] != "5032024" {
		t.Errorf("expected issue date 5032024, got %v", captured["dataEmissao"])
	}
	if captured["dataVencimento"] != "15032024" {
		t.Errorf("expected due date 15032024, got %v", captured["dataVencimento"])
	}
	// Integer cents.
	if captured["valorOriginal"] != float64(15075) {
		t.Errorf("expected 15075 cents, got %v", captured["valorOriginal"])
	}
	if result.OurNumber != "00031285570000000001" {
		t.Errorf("unexpected our-number %q", result.OurNumber)
	}
}

func TestQuerySlip_NotFound(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})

	_, err := client.QuerySlip(context.Background(), testCredential(), "123", 3128557)
	if _, ok := err.(*domain.ErrNotFound); !ok {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestQuerySlip_AuthExpired(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	})

	_, err := client.QuerySlip(context.Background(), testCredential(), "123", 3128557)
	authErr, ok := err.(*domain.ErrAuthExpired)
	if !ok {
		t.Fatalf("expected ErrAuthExpired, got %v", err)
	}
	if authErr.CredentialID != "cred-1" {
		t.Errorf("expected credential id in error, got %q", authErr.CredentialID)
	}
}

func TestListSlips_ContinuationProtocol(t *testing.T) {
	var indices []string
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		idx := r.URL.Query().Get("indice")
		indices = append(indices, idx)

		if idx == "0" {
			json.NewEncoder(w).Encode(map[string]any{
				"boletos": []map[string]any{
					{"numeroBoletoBB": "A", "codigoEstadoTituloCobranca": 1, "valorOriginalTituloCobranca": 10.0},
					{"numeroBoletoBB": "B", "codigoEstadoTituloCobranca": 6, "valorOriginalTituloCobranca": 20.0},
				},
				"indicadorContinuidade": "S",
				"proximoIndice":         300,
			})
			return
		}
		json.NewEncoder(w).Encode(map[string]any{
			"boletos": []map[string]any{
				{"numeroBoletoBB": "C", "codigoEstadoTituloCobranca": 7, "valorOriginalTituloCobranca": 30.0},
			},
			"indicadorContinuidade": "N",
		})
	})

	out, err := client.ListSlips(context.Background(), testCredential(), domain.BankAccount{Branch: "452", AccountNumber: "123873"}, 3128557, domain.SlipListFilters{})
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if len(out) != 3 {
		t.Fatalf("expected 3 summaries, got %d", len(out))
	}
	if len(indices) != 2 || indices[0] != "0" || indices[1] != "300" {
		t.Errorf("expected continuation indices [0 300], got %v", indices)
	}
}

func TestListSlips_404MeansEmpty(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})

	out, err := client.ListSlips(context.Background(), testCredential(), domain.BankAccount{}, 3128557, domain.SlipListFilters{})
	if err != nil {
		t.Fatalf("expected no error for empty listing, got %v", err)
	}
	if len(out) != 0 {
		t.Fatalf("expected empty listing, got %d", len(out))
	}
}

func TestWriteOffSlip_StructuredErrorsPassThrough(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnprocessableEntity)
		json.NewEncoder(w).Encode(map[string]any{
			"erros": []map[string]string{
				{"codigo": "4874915", "mensagem": "Boleto já baixado"},
			},
		})
	})

	err := client.WriteOffSlip(context.Background(), testCredential(), "123", 3128557)
	bankErr, ok := err.(*domain.ErrBankAPI)
	if !ok {
		t.Fatalf("expected ErrBankAPI, got %v", err)
	}
	if len(bankErr.Errors) != 1 || bankErr.Errors[0].Code != "4874915" {
		t.Fatalf("expected the bank's error list verbatim, got %+v", bankErr.Errors)
	}
}

func TestFetchStatementPage_RequestShape(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		if q.Get("dataInicioSolicitacao") != "1032024" {
			t.Errorf("expected start 1032024, got %q", q.Get("dataInicioSolicitacao"))
		}
		if q.Get("quantidadeRegistroPaginaSolicitacao") != "200" {
			t.Errorf("expected page size 200, got %q", q.Get("quantidadeRegistroPaginaSolicitacao"))
		}
		if r.URL.Path != "/conta-corrente/agencia/452/conta/123873" {
			t.Errorf("unexpected path %q", r.URL.Path)
		}
		json.NewEncoder(w).Encode(map[string]any{
			"listaLancamento": []map[string]any{
				{"numeroDocumento": 1, "indicadorSinalLancamento": "C", "valorLancamento": 100.0},
			},
			"numeroPaginaProximo": 0,
		})
	})

	page, err := client.FetchStatementPage(
		context.Background(), testCredential(),
		domain.BankAccount{Branch: "452", AccountNumber: "123873"},
		time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC),
		time.Date(2024, 3, 31, 0, 0, 0, 0, time.UTC),
		1,
	)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if len(page.Entries) != 1 || !page.Entries[0].Credit() {
		t.Fatalf("expected one credit entry, got %+v", page.Entries)
	}
}

func TestGrant_ExpiryAppliesSkew(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil {
			t.Fatalf("parse form: %v", err)
		}
		if r.PostForm.Get("grant_type") != "client_credentials" {
			t.Errorf("expected client_credentials grant, got %q", r.PostForm.Get("grant_type"))
		}
		if user, pass, ok := r.BasicAuth(); !ok || user != "client" || pass != "secret" {
			t.Error("expected HTTP basic credentials")
		}
		json.NewEncoder(w).Encode(map[string]any{"access_token": "tok", "expires_in": 600})
	}))
	defer srv.Close()

	auth := bank.NewAuthClient(srv.Client(), srv.URL, zap.NewNop())
	before := time.Now()
	tok, err := auth.Grant(context.Background(), testCredential())
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	// 600s minus the 60s safety skew.
	min := before.Add(530 * time.Second)
	max := time.Now().Add(545 * time.Second)
	if tok.ExpiresAt.Before(min) || tok.ExpiresAt.After(max) {
		t.Errorf("expected expiry ~540s out, got %v", time.Until(tok.ExpiresAt))
	}
}
