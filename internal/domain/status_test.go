package domain_test

import (
	"testing"

	"github.com/higorocha/SistemaWebAlencarFrutas-sub009/internal/domain"
)

func TestStatusFromBankCode(t *testing.T) {
	tests := []struct {
		code int
		want domain.SlipStatus
	}{
		{1, domain.SlipOpen},
		{6, domain.SlipPaid},
		{7, domain.SlipWrittenOff},
		{10, domain.SlipPaid},
		{11, domain.SlipPaid},
		{12, domain.SlipPaid},
		{18, domain.SlipPaid},
		{99, domain.SlipOpen}, // unknown codes never lock the lifecycle
	}
	for _, tt := range tests {
		if got := domain.StatusFromBankCode(tt.code); got != tt.want {
			t.Errorf("code %d: expected %s, got %s", tt.code, tt.want, got)
		}
	}
}

func TestStatusFromBankText(t *testing.T) {
	tests := []struct {
		text string
		want domain.SlipStatus
	}{
		{"Título liquidado no caixa", domain.SlipPaid},
		{"BAIXADO POR SOLICITACAO", domain.SlipWrittenOff},
		{"Boleto vencido", domain.SlipOverdue},
		{"ERRO NO PROCESSAMENTO", domain.SlipError},
		{"registrado", domain.SlipOpen},
	}
	for _, tt := range tests {
		if got := domain.StatusFromBankText(tt.text); got != tt.want {
			t.Errorf("%q: expected %s, got %s", tt.text, tt.want, got)
		}
	}
}

func TestBankStatePrefersNumericCode(t *testing.T) {
	state := &domain.SlipBankState{StatusCode: 6, StatusText: "VENCIDO"}
	if got := state.Status(); got != domain.SlipPaid {
		t.Errorf("expected numeric code to win, got %s", got)
	}

	state = &domain.SlipBankState{StatusText: "LIQUIDADO"}
	if got := state.Status(); got != domain.SlipPaid {
		t.Errorf("expected text fallback, got %s", got)
	}
}

func TestCanMutate(t *testing.T) {
	mutable := []domain.SlipStatus{domain.SlipOpen, domain.SlipProcessing}
	for _, st := range mutable {
		if !domain.CanMutate(st, domain.MutationAlter) || !domain.CanMutate(st, domain.MutationWriteOff) {
			t.Errorf("expected %s to accept both mutations", st)
		}
	}

	frozen := []domain.SlipStatus{domain.SlipPaid, domain.SlipWrittenOff, domain.SlipOverdue, domain.SlipError}
	for _, st := range frozen {
		if domain.CanMutate(st, domain.MutationAlter) || domain.CanMutate(st, domain.MutationWriteOff) {
			t.Errorf("expected %s to reject mutations", st)
		}
	}
}

func TestIsAlreadyWrittenOffMessage(t *testing.T) {
	yes := []string{
		"Boleto já baixado",
		"TITULO JA BAIXADO NO SISTEMA",
		"baixa ja efetuada",
		"Título cancelado",
	}
	for _, msg := range yes {
		if !domain.IsAlreadyWrittenOffMessage(msg) {
			t.Errorf("expected %q to classify as already written off", msg)
		}
	}

	no := []string{"Convênio inválido", "Boleto vencido", ""}
	for _, msg := range no {
		if domain.IsAlreadyWrittenOffMessage(msg) {
			t.Errorf("expected %q not to classify", msg)
		}
	}
}
