package bank

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"github.com/higorocha/SistemaWebAlencarFrutas-sub009/internal/bankfmt"
	"github.com/higorocha/SistemaWebAlencarFrutas-sub009/internal/domain"

	"go.opentelemetry.io/otel/attribute"
)

// Wire types of the boleto API. Currency values travel as integer cents
// and dates in the bank's concatenated D(D)MMYYYY form.

type wirePayer struct {
	Name       string `json:"nome"`
	TaxID      string `json:"numeroInscricao"`
	Address    string `json:"endereco"`
	City       string `json:"cidade"`
	State      string `json:"uf"`
	PostalCode string `json:"cep"`
}

type wireInterest struct {
	Type       int     `json:"tipo"`
	MonthlyPct float64 `json:"porcentagem"`
}

type wirePenalty struct {
	Type      int     `json:"tipo"`
	Pct       float64 `json:"porcentagem"`
	GraceDays int     `json:"quantidadeDiasCarencia"`
}

type wireCreateRequest struct {
	AgreementNumber int64         `json:"numeroConvenio"`
	WalletCode      int           `json:"numeroCarteira"`
	VariationCode   int           `json:"numeroVariacaoCarteira"`
	IssueDate       string        `json:"dataEmissao"`
	DueDate         string        `json:"dataVencimento"`
	AmountCents     int64         `json:"valorOriginal"`
	TitleNumber     int64         `json:"numeroTituloBeneficiario"`
	OurNumber       string        `json:"numeroTituloCliente,omitempty"`
	Interest        *wireInterest `json:"jurosMora,omitempty"`
	Penalty         *wirePenalty  `json:"multa,omitempty"`
	Payer           wirePayer     `json:"pagador"`
}

type wireCreateResponse struct {
	OurNumber string `json:"numero"`
	Barcode   string `json:"codigoBarraNumerico"`
	DigitLine string `json:"linhaDigitavel"`
	QRCode    struct {
		EMV  string `json:"emv"`
		TxID string `json:"txId"`
	} `json:"qrCode"`
}

// CreateSlip registers a boleto at the bank.
func (c *Client) CreateSlip(ctx context.Context, cred *domain.Credential, req *domain.SlipIssueRequest) (*domain.SlipIssueResult, error) {
	ctx, span := tracer.Start(ctx, "Bank.CreateSlip")
	defer span.End()
	span.SetAttributes(attribute.Int64("agreement.number", req.Agreement.AgreementNumber))

	wire := wireCreateRequest{
		AgreementNumber: req.Agreement.AgreementNumber,
		WalletCode:      req.Agreement.WalletCode,
		VariationCode:   req.Agreement.VariationCode,
		IssueDate:       bankfmt.RequestDate(req.IssueDate),
		DueDate:         bankfmt.RequestDate(req.DueDate),
		AmountCents:     bankfmt.ToCents(req.Amount),
		TitleNumber:     req.TitleNumber,
		OurNumber:       req.OurNumber,
		Payer: wirePayer{
			Name:       req.Payer.Name,
			TaxID:      req.Payer.TaxID,
			Address:    req.Payer.Address,
			City:       req.Payer.City,
			State:      req.Payer.State,
			PostalCode: req.Payer.PostalCode,
		},
	}
	if req.Agreement.MonthlyInterestPct > 0 {
		wire.Interest = &wireInterest{Type: 2, MonthlyPct: req.Agreement.MonthlyInterestPct}
	}
	if req.Agreement.PenaltyPct > 0 {
		wire.Penalty = &wirePenalty{
			Type:      2,
			Pct:       req.Agreement.PenaltyPct,
			GraceDays: req.Agreement.GracePeriodDays,
		}
	}

	rawReq, _ := json.Marshal(wire)

	status, body, err := c.do(ctx, cred, "create_slip", http.MethodPost, "/boletos", nil, wire)
	if err != nil {
		return nil, err
	}
	if status < 200 || status >= 300 {
		return nil, c.classify(cred, "create_slip", status, body)
	}

	var resp wireCreateResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, &domain.ErrExternalService{Service: "bank/create_slip", Err: err}
	}

	return &domain.SlipIssueResult{
		OurNumber:   resp.OurNumber,
		Barcode:     resp.Barcode,
		DigitLine:   resp.DigitLine,
		PixQRCode:   resp.QRCode.EMV,
		PixTxID:     resp.QRCode.TxID,
		RawRequest:  string(rawReq),
		RawResponse: string(body),
	}, nil
}

type wireSlipState struct {
	StatusCode        int    `json:"codigoEstadoTituloCobranca"`
	StatusText        string `json:"textoEstadoTituloCobranca"`
	ReceiptDate       string `json:"dataRecebimentoTitulo"`
	SettlementDate    string `json:"dataCreditoLiquidacao"`
	PaymentDate       string `json:"dataPagamento"`
	ScheduleTimestamp string `json:"horarioAgendamentoPagamento"`
}

// QuerySlip fetches the bank's current view of one slip.
func (c *Client) QuerySlip(ctx context.Context, cred *domain.Credential, ourNumber string, agreementNumber int64) (*domain.SlipBankState, error) {
	ctx, span := tracer.Start(ctx, "Bank.QuerySlip")
	defer span.End()
	span.SetAttributes(attribute.String("slip.our_number", ourNumber))

	query := url.Values{}
	query.Set("numeroConvenio", strconv.FormatInt(agreementNumber, 10))

	status, body, err := c.do(ctx, cred, "query_slip", http.MethodGet, "/boletos/"+ourNumber, query, nil)
	if err != nil {
		return nil, err
	}
	if status == http.StatusNotFound {
		return nil, &domain.ErrNotFound{Resource: "bank slip", ID: ourNumber}
	}
	if status < 200 || status >= 300 {
		return nil, c.classify(cred, "query_slip", status, body)
	}

	var ws wireSlipState
	if err := json.Unmarshal(body, &ws); err != nil {
		return nil, &domain.ErrExternalService{Service: "bank/query_slip", Err: err}
	}

	return &domain.SlipBankState{
		StatusCode:        ws.StatusCode,
		StatusText:        ws.StatusText,
		ReceiptDate:       ws.ReceiptDate,
		SettlementDate:    ws.SettlementDate,
		PaymentDate:       ws.PaymentDate,
		ScheduleTimestamp: ws.ScheduleTimestamp,
		Raw:               string(body),
	}, nil
}

type wireListResponse struct {
	Slips []struct {
		OurNumber  string  `json:"numeroBoletoBB"`
		StatusCode int     `json:"codigoEstadoTituloCobranca"`
		Amount     float64 `json:"valorOriginalTituloCobranca"`
		DueDateRaw string  `json:"dataVencimentoTituloCobranca"`
	} `json:"boletos"`
	ContinuationFlag string `json:"indicadorContinuidade"` // "S" while more pages exist
	NextIndex        int    `json:"proximoIndice"`
}

// listSafetyCap bounds the continuation-index loop.
const listSafetyCap = 1000

// ListSlips pages through the bank's listing with the continuation-index
// protocol. The bank encodes "no results" as HTTP 404, so that case
// yields an empty list, not an error.
func (c *Client) ListSlips(ctx context.Context, cred *domain.Credential, account domain.BankAccount, agreementNumber int64, f domain.SlipListFilters) ([]domain.SlipSummary, error) {
	ctx, span := tracer.Start(ctx, "Bank.ListSlips")
	defer span.End()

	var out []domain.SlipSummary
	index := 0
	for {
		query := url.Values{}
		query.Set("numeroConvenio", strconv.FormatInt(agreementNumber, 10))
		query.Set("agenciaBeneficiario", account.Branch)
		query.Set("contaBeneficiario", account.AccountNumber)
		query.Set("indice", strconv.Itoa(index))
		if f.StatusCode != 0 {
			query.Set("codigoEstadoTituloCobranca", strconv.Itoa(f.StatusCode))
		}
		if f.DueFrom != nil {
			query.Set("dataInicioVencimento", bankfmt.RequestDate(*f.DueFrom))
		}
		if f.DueTo != nil {
			query.Set("dataFimVencimento", bankfmt.RequestDate(*f.DueTo))
		}

		status, body, err := c.do(ctx, cred, "list_slips", http.MethodGet, "/boletos", query, nil)
		if err != nil {
			return nil, err
		}
		if status == http.StatusNotFound {
			return out, nil
		}
		if status < 200 || status >= 300 {
			return nil, c.classify(cred, "list_slips", status, body)
		}

		var page wireListResponse
		if err := json.Unmarshal(body, &page); err != nil {
			return nil, &domain.ErrExternalService{Service: "bank/list_slips", Err: err}
		}

		for _, s := range page.Slips {
			out = append(out, domain.SlipSummary{
				OurNumber:  s.OurNumber,
				StatusCode: s.StatusCode,
				Amount:     s.Amount,
				DueDateRaw: s.DueDateRaw,
			})
		}

		if page.ContinuationFlag != "S" || len(out) >= listSafetyCap {
			return out, nil
		}
		index = page.NextIndex
	}
}

type wireAlterDate struct {
	NewDueDate string `json:"novaDataVencimento"`
}

type wireAlterAmount struct {
	NewAmountCents int64 `json:"novoValorNominal"`
}

type wireAlterAcceptance struct {
	Days int `json:"quantidadeDiasAceite"`
}

type wireAlterTitleNumber struct {
	Number int64 `json:"codigoSeuNumero"`
}

type wireAlterRequest struct {
	AgreementNumber int64 `json:"numeroConvenio"`

	DueDateFlag string         `json:"indicadorNovaDataVencimento,omitempty"`
	DueDate     *wireAlterDate `json:"alteracaoData,omitempty"`

	AmountFlag string           `json:"indicadorNovoValorNominal,omitempty"`
	Amount     *wireAlterAmount `json:"alteracaoValor,omitempty"`

	InterestFlag   string               `json:"indicadorCobrarJuros,omitempty"`
	PenaltyFlag    string               `json:"indicadorCobrarMulta,omitempty"`
	AcceptanceFlag string               `json:"indicadorAlterarPrazoBoletoVencido,omitempty"`
	Acceptance     *wireAlterAcceptance `json:"alteracaoPrazo,omitempty"`

	TitleNumberFlag string                `json:"indicadorAlterarSeuNumero,omitempty"`
	TitleNumber     *wireAlterTitleNumber `json:"alteracaoSeuNumero,omitempty"`
}

func yesNo(b bool) string {
	if b {
		return "S"
	}
	return "N"
}

// AlterSlip sends a partial update; each changed field raises its own
// indicator flag so untouched fields stay untouched at the bank.
func (c *Client) AlterSlip(ctx context.Context, cred *domain.Credential, ourNumber string, agreementNumber int64, alt *domain.SlipAlteration) error {
	ctx, span := tracer.Start(ctx, "Bank.AlterSlip")
	defer span.End()
	span.SetAttributes(attribute.String("slip.our_number", ourNumber))

	wire := wireAlterRequest{AgreementNumber: agreementNumber}
	if alt.DueDate != nil {
		wire.DueDateFlag = "S"
		wire.DueDate = &wireAlterDate{NewDueDate: bankfmt.RequestDate(*alt.DueDate)}
	}
	if alt.Amount != nil {
		wire.AmountFlag = "S"
		wire.Amount = &wireAlterAmount{NewAmountCents: bankfmt.ToCents(*alt.Amount)}
	}
	if alt.InterestOn != nil {
		wire.InterestFlag = yesNo(*alt.InterestOn)
	}
	if alt.PenaltyOn != nil {
		wire.PenaltyFlag = yesNo(*alt.PenaltyOn)
	}
	if alt.AcceptanceDays != nil {
		wire.AcceptanceFlag = "S"
		wire.Acceptance = &wireAlterAcceptance{Days: *alt.AcceptanceDays}
	}
	if alt.TitleNumber != nil {
		wire.TitleNumberFlag = "S"
		wire.TitleNumber = &wireAlterTitleNumber{Number: *alt.TitleNumber}
	}

	status, body, err := c.do(ctx, cred, "alter_slip", http.MethodPatch, "/boletos/"+ourNumber, nil, wire)
	if err != nil {
		return err
	}
	if status == http.StatusNotFound {
		return &domain.ErrNotFound{Resource: "bank slip", ID: ourNumber}
	}
	if status < 200 || status >= 300 {
		return c.classify(cred, "alter_slip", status, body)
	}
	return nil
}

// WriteOffSlip asks the bank to close a still-open slip.
func (c *Client) WriteOffSlip(ctx context.Context, cred *domain.Credential, ourNumber string, agreementNumber int64) error {
	ctx, span := tracer.Start(ctx, "Bank.WriteOffSlip")
	defer span.End()
	span.SetAttributes(attribute.String("slip.our_number", ourNumber))

	payload := map[string]int64{"numeroConvenio": agreementNumber}
	path := fmt.Sprintf("/boletos/%s/baixar", ourNumber)

	status, body, err := c.do(ctx, cred, "write_off_slip", http.MethodPost, path, nil, payload)
	if err != nil {
		return err
	}
	if status == http.StatusNotFound {
		return &domain.ErrNotFound{Resource: "bank slip", ID: ourNumber}
	}
	if status < 200 || status >= 300 {
		return c.classify(cred, "write_off_slip", status, body)
	}
	return nil
}
