// Package port defines the interfaces (ports) for external dependencies.
// Following hexagonal architecture, these ports decouple the domain/service
// layer from concrete implementations.
package port

import (
	"context"
	"time"

	"github.com/higorocha/SistemaWebAlencarFrutas-sub009/internal/domain"
)

// ============================================================
// Bank adapter
// ============================================================

// TokenGranter performs an OAuth2 client-credentials grant at the bank.
type TokenGranter interface {
	Grant(ctx context.Context, cred *domain.Credential) (domain.Token, error)
}

// TokenProvider hands out cached bank tokens by credential id.
type TokenProvider interface {
	GetToken(ctx context.Context, credentialID string) (domain.Token, error)
	ForceRefresh(ctx context.Context, credentialID string) (domain.Token, error)
}

// BoletoBank is the bank's slip-issuance API.
type BoletoBank interface {
	CreateSlip(ctx context.Context, cred *domain.Credential, req *domain.SlipIssueRequest) (*domain.SlipIssueResult, error)
	QuerySlip(ctx context.Context, cred *domain.Credential, ourNumber string, agreementNumber int64) (*domain.SlipBankState, error)
	ListSlips(ctx context.Context, cred *domain.Credential, account domain.BankAccount, agreementNumber int64, f domain.SlipListFilters) ([]domain.SlipSummary, error)
	AlterSlip(ctx context.Context, cred *domain.Credential, ourNumber string, agreementNumber int64, alt *domain.SlipAlteration) error
	WriteOffSlip(ctx context.Context, cred *domain.Credential, ourNumber string, agreementNumber int64) error
}

// StatementBank is the bank's account-statement API.
type StatementBank interface {
	FetchStatementPage(ctx context.Context, cred *domain.Credential, account domain.BankAccount, start, end time.Time, page int) (*domain.StatementPage, error)
}

// ============================================================
// Token cache backend
// ============================================================

// TokenStore is the pluggable backend of the token cache. The default is
// an in-process TTL map; a Redis implementation exists for horizontally
// scaled deployments.
type TokenStore interface {
	Get(ctx context.Context, key string) (domain.Token, bool)
	Set(ctx context.Context, key string, tok domain.Token, ttl time.Duration)
	Delete(ctx context.Context, key string)
	Clear(ctx context.Context)
}

// Cache provides generic caching with a per-entry TTL.
type Cache[T any] interface {
	Get(key string) (T, bool)
	Set(key string, value T, ttl time.Duration)
	Delete(key string)
}

// ============================================================
// Local persistence (owned by this system)
// ============================================================

// SlipStore persists the local bank-slip mirror.
type SlipStore interface {
	CreateSlip(ctx context.Context, slip *domain.BankSlip) error
	GetSlip(ctx context.Context, id string) (*domain.BankSlip, error)
	GetSlipByOurNumber(ctx context.Context, ourNumber string) (*domain.BankSlip, error)
	UpdateSlip(ctx context.Context, slip *domain.BankSlip) error
	OurNumberExists(ctx context.Context, ourNumber string) (bool, error)
	// NextTitleNumber returns max(title_number)+1 among the order's slips.
	NextTitleNumber(ctx context.Context, orderID string) (int64, error)
	// NextOurNumberSequence atomically advances the agreement's
	// our-number counter and returns the new value.
	NextOurNumberSequence(ctx context.Context, agreementID string) (int64, error)
}

// StatementStore persists matched statement entries.
type StatementStore interface {
	EntryExists(ctx context.Context, accountID string, key domain.NaturalKey) (bool, error)
	InsertEntry(ctx context.Context, entry *domain.StatementEntry) error
}

// AuditSink receives append-only slip audit entries. Fire-and-forget:
// callers never inspect the result beyond logging it themselves.
type AuditSink interface {
	Append(ctx context.Context, entry *domain.BankSlipLogEntry) error
}

// ============================================================
// ERP collaborators (external aggregates)
// ============================================================

// CredentialStore resolves bank credentials.
type CredentialStore interface {
	GetCredential(ctx context.Context, id string) (*domain.Credential, error)
	GetCredentialForAccount(ctx context.Context, accountID string, modality domain.CredentialModality) (*domain.Credential, error)
}

// AccountStore resolves local bank-account mirrors.
type AccountStore interface {
	GetAccount(ctx context.Context, id string) (*domain.BankAccount, error)
}

// AgreementStore resolves billing agreements.
type AgreementStore interface {
	GetAgreementForAccount(ctx context.Context, accountID string) (*domain.BillingAgreement, error)
}

// ClientStore reads ERP clients.
type ClientStore interface {
	GetClient(ctx context.Context, id string) (*domain.Client, error)
	GetClients(ctx context.Context, ids []string) ([]domain.Client, error)
	ListClientsWithTaxID(ctx context.Context) ([]domain.Client, error)
}

// OrderStore reads and updates the ERP order aggregate.
type OrderStore interface {
	GetOrder(ctx context.Context, id string) (*domain.Order, error)
	UpdateOrderTotals(ctx context.Context, orderID string, received float64, status domain.OrderStatus) error
}

// PaymentStore persists settlement payments.
type PaymentStore interface {
	CreatePayment(ctx context.Context, p *domain.Payment) error
	ListPaymentsByOrder(ctx context.Context, orderID string) ([]domain.Payment, error)
	PaymentExistsForSlip(ctx context.Context, slipID string) (bool, error)
}

// UserStore lists ERP users for notification fan-out.
type UserStore interface {
	ListUsersByRoles(ctx context.Context, roles []string) ([]domain.User, error)
}

// Notifier pushes a notification to one user. Fire-and-forget: failures
// are observable only through the implementation's own logging.
type Notifier interface {
	Notify(ctx context.Context, userID string, payload map[string]any) error
}
