package service_test

import (
	"context"
	"testing"

	"github.com/higorocha/SistemaWebAlencarFrutas-sub009/internal/domain"
	"github.com/higorocha/SistemaWebAlencarFrutas-sub009/internal/infra/memstore"
	"github.com/higorocha/SistemaWebAlencarFrutas-sub009/internal/infra/observability"
	"github.com/higorocha/SistemaWebAlencarFrutas-sub009/internal/service"

	"go.uber.org/zap"
)

func newReconcileFixture(t *testing.T) (*service.ReconcileService, *memstore.ERPStore, *memstore.StatementStore) {
	t.Helper()

	erp := memstore.NewERPStore()
	erp.Clients["cli-cnpj"] = &domain.Client{ID: "cli-cnpj", Name: "Distribuidora Norte", CNPJ: "52641514000120"}
	// Stored without the leading zeros the bank reports.
	erp.Clients["cli-cpf"] = &domain.Client{ID: "cli-cpf", Name: "João Pereira", CPF: "123456789"}

	entries := memstore.NewStatementStore()
	svc := service.NewReconcileService(erp, entries, observability.NewMetrics(), zap.NewNop())
	return svc, erp, entries
}

func TestReconcile_MatchesStructuredCounterpartField(t *testing.T) {
	svc, _, entries := newReconcileFixture(t)

	raw := []domain.RawStatementEntry{{
		DocumentNumber: 101,
		EntryDateRaw:   "15032024",
		LotNumber:      7,
		DirectionFlag:  "C",
		Amount:         1200.50,
		CounterpartID:  52641514000120,
	}}

	result, err := svc.Reconcile(context.Background(), "acc-1", nil, raw)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if result.Matched != 1 || result.Saved != 1 {
		t.Fatalf("expected 1 matched and saved, got %+v", result)
	}

	stored := entries.Entries("acc-1")
	if len(stored) != 1 {
		t.Fatalf("expected 1 stored entry, got %d", len(stored))
	}
	if stored[0].MatchedClientID != "cli-cnpj" {
		t.Errorf("expected match to cli-cnpj, got %q", stored[0].MatchedClientID)
	}
	if stored[0].CounterpartRaw != "52641514000120" {
		t.Errorf("expected normalized tax id, got %q", stored[0].CounterpartRaw)
	}
}

func TestReconcile_PadsShortCPFFromNarrativeText(t *testing.T) {
	svc, _, entries := newReconcileFixture(t)

	// The client record lost its leading zeros; the statement text carries
	// the full 11-digit form. Both sides normalize to the same key.
	raw := []domain.RawStatementEntry{{
		DocumentNumber:  102,
		EntryDateRaw:    "5032024",
		LotNumber:       1,
		DirectionFlag:   "C",
		Amount:          300,
		CounterpartText: "PIX RECEBIDO 00123456789 JOAO PEREIRA",
	}}

	result, err := svc.Reconcile(context.Background(), "acc-1", nil, raw)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if result.Saved != 1 {
		t.Fatalf("expected 1 saved, got %+v", result)
	}

	stored := entries.Entries("acc-1")
	if stored[0].MatchedClientID != "cli-cpf" {
		t.Errorf("expected match to cli-cpf, got %q", stored[0].MatchedClientID)
	}
	if stored[0].CounterpartRaw != "00123456789" {
		t.Errorf("expected padded tax id, got %q", stored[0].CounterpartRaw)
	}
}

func TestReconcile_IgnoresDebitsAndUnmatched(t *testing.T) {
	svc, _, entries := newReconcileFixture(t)

	raw := []domain.RawStatementEntry{
		{DocumentNumber: 103, EntryDateRaw: "15032024", LotNumber: 1, DirectionFlag: "D", Amount: 50, CounterpartID: 52641514000120},
		{DocumentNumber: 104, EntryDateRaw: "15032024", LotNumber: 1, DirectionFlag: "C", Amount: 75, CounterpartID: 99999999999},
		{DocumentNumber: 105, EntryDateRaw: "15032024", LotNumber: 1, DirectionFlag: "C", Amount: 10},
	}

	result, err := svc.Reconcile(context.Background(), "acc-1", nil, raw)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if result.Found != 3 || result.Matched != 0 || result.Saved != 0 {
		t.Fatalf("expected nothing matched, got %+v", result)
	}
	if len(entries.Entries("acc-1")) != 0 {
		t.Fatal("expected nothing persisted")
	}
}

func TestReconcile_SecondPassSavesNothing(t *testing.T) {
	svc, _, _ := newReconcileFixture(t)

	raw := []domain.RawStatementEntry{{
		DocumentNumber: 106,
		EntryDateRaw:   "15032024",
		LotNumber:      2,
		DirectionFlag:  "C",
		Amount:         500,
		CounterpartID:  52641514000120,
	}}

	first, err := svc.Reconcile(context.Background(), "acc-1", nil, raw)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if first.Saved != 1 || first.Duplicates != 0 {
		t.Fatalf("unexpected first pass: %+v", first)
	}

	second, err := svc.Reconcile(context.Background(), "acc-1", nil, raw)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if second.Saved != 0 || second.Duplicates != 1 {
		t.Fatalf("expected pure duplicates on second pass, got %+v", second)
	}
}

func TestReconcile_RestrictsToCandidateClients(t *testing.T) {
	svc, _, entries := newReconcileFixture(t)

	raw := []domain.RawStatementEntry{{
		DocumentNumber: 110,
		EntryDateRaw:   "15032024",
		LotNumber:      3,
		DirectionFlag:  "C",
		Amount:         800,
		CounterpartID:  52641514000120,
	}}

	// The credit belongs to cli-cnpj, which is outside the candidate set.
	result, err := svc.Reconcile(context.Background(), "acc-1", []string{"cli-cpf"}, raw)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if result.Matched != 0 || result.Saved != 0 {
		t.Fatalf("expected no match outside the candidate set, got %+v", result)
	}
	if len(entries.Entries("acc-1")) != 0 {
		t.Fatal("expected nothing persisted")
	}

	result, err = svc.Reconcile(context.Background(), "acc-1", []string{"cli-cnpj"}, raw)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if result.Saved != 1 {
		t.Fatalf("expected a match inside the candidate set, got %+v", result)
	}
	if entries.Entries("acc-1")[0].MatchedClientID != "cli-cnpj" {
		t.Errorf("expected match to cli-cnpj, got %q", entries.Entries("acc-1")[0].MatchedClientID)
	}
}

func TestReconcile_ReportsClientsWithNews(t *testing.T) {
	svc, _, _ := newReconcileFixture(t)

	raw := []domain.RawStatementEntry{
		{DocumentNumber: 107, EntryDateRaw: "15032024", LotNumber: 1, DirectionFlag: "C", Amount: 100, CounterpartID: 52641514000120},
		{DocumentNumber: 108, EntryDateRaw: "15032024", LotNumber: 1, DirectionFlag: "C", Amount: 200, CounterpartID: 52641514000120},
		{DocumentNumber: 109, EntryDateRaw: "15032024", LotNumber: 1, DirectionFlag: "C", Amount: 300, CounterpartText: "TED 00123456789"},
	}

	result, err := svc.Reconcile(context.Background(), "acc-1", nil, raw)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if len(result.ClientsWithNews) != 2 {
		t.Fatalf("expected 2 distinct clients, got %v", result.ClientsWithNews)
	}
}
