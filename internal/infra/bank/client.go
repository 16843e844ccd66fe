// Package bank adapts the external bank's two HTTP APIs (boleto
// issuance and account statement) plus its OAuth2 token endpoint.
// All wire formats live here; services see only domain types.
package bank

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/higorocha/SistemaWebAlencarFrutas-sub009/internal/domain"
	"github.com/higorocha/SistemaWebAlencarFrutas-sub009/internal/infra/observability"
	"github.com/higorocha/SistemaWebAlencarFrutas-sub009/internal/infra/resilience"
	"github.com/higorocha/SistemaWebAlencarFrutas-sub009/internal/port"

	"github.com/sony/gobreaker"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

var tracer = otel.Tracer("bank")

// appKeyParam is the developer-application-key query parameter every
// bank API call must carry.
const appKeyParam = "gw-dev-app-key"

// ============================================================
// OAuth2 token endpoint
// ============================================================

// AuthClient performs OAuth2 client-credentials grants at the bank's
// auth endpoint. It implements port.TokenGranter.
type AuthClient struct {
	httpClient *http.Client
	authURL    string
	logger     *zap.Logger
}

// NewAuthClient creates the grant client.
func NewAuthClient(httpClient *http.Client, authURL string, logger *zap.Logger) *AuthClient {
	return &AuthClient{httpClient: httpClient, authURL: authURL, logger: logger}
}

type grantResponse struct {
	AccessToken string `json:"access_token"`
	ExpiresIn   int    `json:"expires_in"`
}

type grantError struct {
	Error            string `json:"error"`
	ErrorDescription string `json:"error_description"`
}

// tokenSkew is subtracted from expires_in to absorb clock skew between
// us and the bank.
const tokenSkew = 60 * time.Second

// Grant exchanges the credential for an access token.
func (a *AuthClient) Grant(ctx context.Context, cred *domain.Credential) (domain.Token, error) {
	ctx, span := tracer.Start(ctx, "Bank.Grant")
	defer span.End()
	span.SetAttributes(attribute.String("credential.id", cred.ID))

	form := url.Values{}
	form.Set("grant_type", "client_credentials")
	form.Set("scope", cred.Scope)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.authURL, strings.NewReader(form.Encode()))
	if err != nil {
		return domain.Token{}, &domain.ErrExternalService{Service: "bank/auth", Err: err}
	}
	req.SetBasicAuth(cred.ClientID, cred.ClientSecret)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	issuedAt := time.Now()
	resp, err := a.httpClient.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return domain.Token{}, &domain.ErrTimeout{Operation: "token grant"}
		}
		return domain.Token{}, &domain.ErrExternalService{Service: "bank/auth", Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return domain.Token{}, &domain.ErrExternalService{Service: "bank/auth", Err: err}
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var ge grantError
		_ = json.Unmarshal(body, &ge)
		msg := ge.ErrorDescription
		if msg == "" {
			msg = ge.Error
		}
		if msg == "" {
			msg = fmt.Sprintf("status %d", resp.StatusCode)
		}
		a.logger.Warn("bank rejected token grant",
			zap.String("credential_id", cred.ID),
			zap.Int("status", resp.StatusCode),
			zap.String("provider_error", msg),
		)
		return domain.Token{}, &domain.ErrExternalService{
			Service: "bank/auth",
			Err:     fmt.Errorf("grant rejected: %s", msg),
		}
	}

	var gr grantResponse
	if err := json.Unmarshal(body, &gr); err != nil {
		return domain.Token{}, &domain.ErrExternalService{Service: "bank/auth", Err: err}
	}
	if gr.AccessToken == "" || gr.ExpiresIn <= 0 {
		return domain.Token{}, &domain.ErrExternalService{
			Service: "bank/auth",
			Err:     errors.New("grant response missing access_token/expires_in"),
		}
	}

	return domain.Token{
		AccessToken: gr.AccessToken,
		ExpiresAt:   issuedAt.Add(time.Duration(gr.ExpiresIn)*time.Second - tokenSkew),
	}, nil
}

// ============================================================
// API client
// ============================================================

// Client calls the bank's REST APIs with bearer tokens from the token
// provider. It implements port.BoletoBank and port.StatementBank.
type Client struct {
	httpClient *http.Client
	baseURL    string
	tokens     port.TokenProvider
	cb         *gobreaker.CircuitBreaker
	cfg        resilience.Config
	metrics    *observability.Metrics
	logger     *zap.Logger
}

// NewClient creates the bank API client.
func NewClient(httpClient *http.Client, baseURL string, tokens port.TokenProvider, cb *gobreaker.CircuitBreaker, cfg resilience.Config, metrics *observability.Metrics, logger *zap.Logger) *Client {
	return &Client{
		httpClient: httpClient,
		baseURL:    baseURL,
		tokens:     tokens,
		cb:         cb,
		cfg:        cfg,
		metrics:    metrics,
		logger:     logger,
	}
}

type bankErrorEnvelope struct {
	Erros []domain.BankError `json:"erros"`
}

// do executes one authenticated bank call. Transport failures go through
// the circuit breaker and the retry policy; definitive responses (any
// HTTP status) are returned exactly once, never retried.
func (c *Client) do(ctx context.Context, cred *domain.Credential, op, method, path string, query url.Values, payload any) (int, []byte, error) {
	start := time.Now()
	defer func() { c.metrics.RecordBankRequest(op, time.Since(start)) }()

	tok, err := c.tokens.GetToken(ctx, cred.ID)
	if err != nil {
		return 0, nil, err
	}

	var reqBody []byte
	if payload != nil {
		reqBody, err = json.Marshal(payload)
		if err != nil {
			return 0, nil, &domain.ErrExternalService{Service: "bank/" + op, Err: err}
		}
	}

	if query == nil {
		query = url.Values{}
	}
	query.Set(appKeyParam, cred.DeveloperAppKey)
	fullURL := fmt.Sprintf("%s%s?%s", c.baseURL, path, query.Encode())

	var status int
	var respBody []byte

	_, err = c.cb.Execute(func() (any, error) {
		return nil, resilience.RetryWithBackoff(ctx, c.cfg, func() error {
			var rd io.Reader
			if reqBody != nil {
				rd = bytes.NewReader(reqBody)
			}
			req, reqErr := http.NewRequestWithContext(ctx, method, fullURL, rd)
			if reqErr != nil {
				return reqErr
			}
			req.Header.Set("Authorization", "Bearer "+tok.AccessToken)
			if reqBody != nil {
				req.Header.Set("Content-Type", "application/json")
			}

			resp, doErr := c.httpClient.Do(req)
			if doErr != nil {
				c.logger.Warn("bank request failed",
					zap.String("operation", op),
					zap.String("method", method),
					zap.Error(doErr),
				)
				return doErr
			}
			defer resp.Body.Close()

			b, readErr := io.ReadAll(resp.Body)
			if readErr != nil {
				return readErr
			}
			status = resp.StatusCode
			respBody = b
			return nil
		})
	})
	if err != nil {
		c.metrics.IncrBankError("transport")
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return 0, nil, &domain.ErrCircuitOpen{Service: "bank"}
		}
		if errors.Is(err, context.DeadlineExceeded) {
			return 0, nil, &domain.ErrTimeout{Operation: op}
		}
		return 0, nil, &domain.ErrExternalService{Service: "bank/" + op, Err: err}
	}

	c.logger.Debug("bank request done",
		zap.String("operation", op),
		zap.Int("status", status),
	)
	return status, respBody, nil
}

// classify converts a definitive non-2xx response into the error
// taxonomy. 404 handling differs per operation, so callers check the
// status themselves before calling this.
func (c *Client) classify(cred *domain.Credential, op string, status int, body []byte) error {
	if status == http.StatusUnauthorized {
		c.metrics.IncrBankError("auth_expired")
		return &domain.ErrAuthExpired{CredentialID: cred.ID}
	}

	var envelope bankErrorEnvelope
	if err := json.Unmarshal(body, &envelope); err == nil && len(envelope.Erros) > 0 {
		c.metrics.IncrBankError("structured")
		return &domain.ErrBankAPI{StatusCode: status, Errors: envelope.Erros}
	}

	c.metrics.IncrBankError("unexpected")
	return &domain.ErrExternalService{
		Service: "bank/" + op,
		Err:     fmt.Errorf("unexpected status %d: %s", status, string(body)),
	}
}
