package postgres

import (
	"context"
	"database/sql"
	"errors"

	"github.com/higorocha/SistemaWebAlencarFrutas-sub009/internal/domain"
)

// ConfigStore reads bank credentials, accounts and billing agreements.
// Implements port.CredentialStore, port.AccountStore and
// port.AgreementStore.
type ConfigStore struct {
	db *sql.DB
}

// NewConfigStore creates the store.
func NewConfigStore(db *sql.DB) *ConfigStore {
	return &ConfigStore{db: db}
}

const credentialColumns = `id, bank_code, account_id, modality, client_id, client_secret, developer_app_key, scope`

func scanCredential(scan func(...any) error) (domain.Credential, error) {
	var c domain.Credential
	var modality string
	err := scan(&c.ID, &c.BankCode, &c.AccountID, &modality, &c.ClientID, &c.ClientSecret, &c.DeveloperAppKey, &c.Scope)
	c.Modality = domain.CredentialModality(modality)
	return c, err
}

// GetCredential fetches a credential by id.
func (s *ConfigStore) GetCredential(ctx context.Context, id string) (*domain.Credential, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+credentialColumns+` FROM bank_credentials WHERE id = $1`, id)
	c, err := scanCredential(row.Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, &domain.ErrNotFound{Resource: "credential", ID: id}
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// GetCredentialForAccount resolves the credential of one account and
// modality. There is no fallback to another account's credential.
func (s *ConfigStore) GetCredentialForAccount(ctx context.Context, accountID string, modality domain.CredentialModality) (*domain.Credential, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+credentialColumns+` FROM bank_credentials WHERE account_id = $1 AND modality = $2`,
		accountID, string(modality))
	c, err := scanCredential(row.Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, &domain.ErrNotFound{Resource: "credential", ID: accountID + "/" + string(modality)}
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// GetAccount fetches a local bank-account mirror.
func (s *ConfigStore) GetAccount(ctx context.Context, id string) (*domain.BankAccount, error) {
	var a domain.BankAccount
	err := s.db.QueryRowContext(ctx,
		`SELECT id, branch, account_number FROM bank_accounts WHERE id = $1`, id,
	).Scan(&a.ID, &a.Branch, &a.AccountNumber)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, &domain.ErrNotFound{Resource: "account", ID: id}
	}
	if err != nil {
		return nil, err
	}
	return &a, nil
}

// GetAgreementForAccount fetches the billing agreement of an account.
func (s *ConfigStore) GetAgreementForAccount(ctx context.Context, accountID string) (*domain.BillingAgreement, error) {
	var a domain.BillingAgreement
	var numbering string
	err := s.db.QueryRowContext(ctx,
		`SELECT id, account_id, agreement_number, wallet_code, variation_code, numbering,
		 monthly_interest_pct, penalty_pct, grace_period_days
		 FROM billing_agreements WHERE account_id = $1`, accountID,
	).Scan(&a.ID, &a.AccountID, &a.AgreementNumber, &a.WalletCode, &a.VariationCode, &numbering,
		&a.MonthlyInterestPct, &a.PenaltyPct, &a.GracePeriodDays)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, &domain.ErrNotFound{Resource: "billing agreement", ID: accountID}
	}
	if err != nil {
		return nil, err
	}
	a.Numbering = domain.NumberingMode(numbering)
	return &a, nil
}
