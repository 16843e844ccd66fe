package bank

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/higorocha/SistemaWebAlencarFrutas-sub009/internal/bankfmt"
	"github.com/higorocha/SistemaWebAlencarFrutas-sub009/internal/domain"

	"go.opentelemetry.io/otel/attribute"
)

// statementPageSize is fixed by the bank's API contract.
const statementPageSize = 200

type wireStatementResponse struct {
	Entries  []domain.RawStatementEntry `json:"listaLancamento"`
	NextPage int                        `json:"numeroPaginaProximo"`
}

// FetchStatementPage requests one page of statement entries for the
// account and date range. NextPage is zero when the bank reports no
// further page.
func (c *Client) FetchStatementPage(ctx context.Context, cred *domain.Credential, account domain.BankAccount, start, end time.Time, page int) (*domain.StatementPage, error) {
	ctx, span := tracer.Start(ctx, "Bank.FetchStatementPage")
	defer span.End()
	span.SetAttributes(
		attribute.String("account.id", account.ID),
		attribute.Int("page", page),
	)

	query := url.Values{}
	query.Set("dataInicioSolicitacao", bankfmt.RequestDate(start))
	query.Set("dataFimSolicitacao", bankfmt.RequestDate(end))
	query.Set("numeroPaginaSolicitacao", strconv.Itoa(page))
	query.Set("quantidadeRegistroPaginaSolicitacao", strconv.Itoa(statementPageSize))

	path := fmt.Sprintf("/conta-corrente/agencia/%s/conta/%s", account.Branch, account.AccountNumber)

	status, body, err := c.do(ctx, cred, "fetch_statement", http.MethodGet, path, query, nil)
	if err != nil {
		return nil, err
	}
	if status == http.StatusNotFound {
		return &domain.StatementPage{}, nil
	}
	if status < 200 || status >= 300 {
		return nil, c.classify(cred, "fetch_statement", status, body)
	}

	var resp wireStatementResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, &domain.ErrExternalService{Service: "bank/fetch_statement", Err: err}
	}

	return &domain.StatementPage{Entries: resp.Entries, NextPage: resp.NextPage}, nil
}
