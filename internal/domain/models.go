// Package domain defines the core business entities for the bank
// integration: credentials, billing agreements, bank slips (boletos),
// statement entries (extrato) and settlement records. These models are
// independent of the bank's wire formats and of persistence.
package domain

import "time"

// ============================================================
// Credentials / Accounts / Agreements
// ============================================================

// CredentialModality selects which of the bank's two APIs a credential
// is allowed to call.
type CredentialModality string

const (
	ModalityBilling   CredentialModality = "billing"   // boleto issuance API
	ModalityStatement CredentialModality = "statement" // account statement API
)

// Credential holds the OAuth2 client-credentials material for one
// (bank, account, modality) tuple. Immutable at runtime except rotation.
type Credential struct {
	ID              string             `json:"id"`
	BankCode        string             `json:"bank_code"`
	AccountID       string             `json:"account_id"`
	Modality        CredentialModality `json:"modality"`
	ClientID        string             `json:"client_id"`
	ClientSecret    string             `json:"-"`
	DeveloperAppKey string             `json:"-"`
	Scope           string             `json:"scope"`
}

// Complete reports whether the credential carries everything needed to
// perform a token grant and call the bank.
func (c *Credential) Complete() bool {
	return c.ClientID != "" && c.ClientSecret != "" && c.DeveloperAppKey != ""
}

// Token is a bank access token held by the token cache.
type Token struct {
	AccessToken string    `json:"access_token"`
	ExpiresAt   time.Time `json:"expires_at"`
}

// Valid reports whether the token is still usable at the given instant.
func (t Token) Valid(now time.Time) bool {
	return t.AccessToken != "" && now.Before(t.ExpiresAt)
}

// BankAccount is the local mirror of a current account at the bank.
type BankAccount struct {
	ID            string `json:"id"`
	Branch        string `json:"branch"`
	AccountNumber string `json:"account_number"`
}

// NumberingMode says who assigns the "nosso número" of a new slip.
type NumberingMode string

const (
	NumberingByBank   NumberingMode = "bank"
	NumberingByClient NumberingMode = "client"
)

// BillingAgreement ("convênio") is the contract with the bank that
// parametrizes slip issuance. Read-only input to payload construction.
type BillingAgreement struct {
	ID              string        `json:"id"`
	AccountID       string        `json:"account_id"`
	AgreementNumber int64         `json:"agreement_number"`
	WalletCode      int           `json:"wallet_code"`
	VariationCode   int           `json:"variation_code"`
	Numbering       NumberingMode `json:"numbering"`
	// MonthlyInterestPct > 0 enables the interest block on new slips.
	MonthlyInterestPct float64 `json:"monthly_interest_pct"`
	// PenaltyPct > 0 enables the one-off penalty block.
	PenaltyPct      float64 `json:"penalty_pct"`
	GracePeriodDays int     `json:"grace_period_days"`
}

// ============================================================
// Bank slips (boletos)
// ============================================================

// PayerSnapshot freezes the payer data used on a slip at creation time.
type PayerSnapshot struct {
	Name       string `json:"name"`
	TaxID      string `json:"tax_id"` // CPF or CNPJ, digits only
	Address    string `json:"address"`
	City       string `json:"city"`
	State      string `json:"state"`
	PostalCode string `json:"postal_code"`
}

// BankSlip is the local mirror of a boleto issued at the bank.
// Rows are never physically deleted; terminal states close the lifecycle.
type BankSlip struct {
	ID          string     `json:"id"`
	OrderID     string     `json:"order_id"`
	AccountID   string     `json:"account_id"`
	AgreementID string     `json:"agreement_id"`
	Amount      float64    `json:"amount"`
	IssueDate   time.Time  `json:"issue_date"`
	DueDate     time.Time  `json:"due_date"`
	PaymentDate *time.Time `json:"payment_date,omitempty"`
	WriteOffAt  *time.Time `json:"write_off_at,omitempty"`

	Status SlipStatus `json:"status"`

	// OurNumber is globally unique across all slips (<= 20 chars).
	OurNumber string `json:"our_number"`
	// TitleNumber is the beneficiary-side numbering, monotonic per order.
	TitleNumber int64 `json:"title_number"`
	// OurNumberMatches records whether the bank echoed back the same
	// our-number we sent on creation (client numbering only).
	OurNumberMatches *bool `json:"our_number_matches,omitempty"`

	Barcode   string `json:"barcode,omitempty"`
	DigitLine string `json:"digit_line,omitempty"`
	PixQRCode string `json:"pix_qr_code,omitempty"`
	PixTxID   string `json:"pix_tx_id,omitempty"`

	Payer PayerSnapshot `json:"payer"`

	RawRequest  string `json:"-"`
	RawResponse string `json:"-"`

	CreatedBy  string `json:"created_by,omitempty"`
	AlteredBy  string `json:"altered_by,omitempty"`
	WrittenBy  string `json:"written_off_by,omitempty"`
	PaidMarkBy string `json:"paid_marked_by,omitempty"`

	// Webhook provenance.
	ViaWebhook bool       `json:"via_webhook"`
	WebhookAt  *time.Time `json:"webhook_at,omitempty"`
	WebhookIP  string     `json:"webhook_ip,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// MutationMinAge is how long a slip must exist before alteration or
// write-off is accepted; the bank rejects earlier mutations anyway.
const MutationMinAge = 30 * time.Minute

// SlipLogOperation identifies what a BankSlipLogEntry documents.
type SlipLogOperation string

const (
	SlipLogCreate        SlipLogOperation = "create"
	SlipLogAlter         SlipLogOperation = "alter"
	SlipLogWriteOff      SlipLogOperation = "write_off"
	SlipLogPaidManual    SlipLogOperation = "paid_manual"
	SlipLogPaidWebhook   SlipLogOperation = "paid_webhook"
	SlipLogStatusRefresh SlipLogOperation = "status_refresh"
)

// BankSlipLogEntry is an append-only audit row. Writing it is always
// best-effort: a logging failure never fails the operation it documents.
type BankSlipLogEntry struct {
	ID          string           `json:"id"`
	SlipID      string           `json:"slip_id"`
	Operation   SlipLogOperation `json:"operation"`
	Description string           `json:"description"`
	Before      string           `json:"before,omitempty"`
	After       string           `json:"after,omitempty"`
	ActorID     string           `json:"actor_id,omitempty"`
	SourceIP    string           `json:"source_ip,omitempty"`
	ErrorMsg    string           `json:"error_msg,omitempty"`
	CreatedAt   time.Time        `json:"created_at"`
}

// ============================================================
// Statement (extrato)
// ============================================================

// RawStatementEntry is one ledger line exactly as the bank reports it,
// before matching. Field names follow the bank's payload.
type RawStatementEntry struct {
	DocumentNumber  int64   `json:"numeroDocumento"`
	EntryDateRaw    string  `json:"dataLancamento"` // bank's D(D)MMYYYY form
	LotNumber       int64   `json:"numeroLote"`
	DirectionFlag   string  `json:"indicadorSinalLancamento"` // "C" credit, "D" debit
	Amount          float64 `json:"valorLancamento"`
	CounterpartID   int64   `json:"numeroCpfCnpjContrapartida"`
	CounterpartText string  `json:"textoDescricaoHistorico"`
	InfoComplement  string  `json:"textoInformacaoComplementar"`
}

// Credit reports whether the entry is a credit into the account.
func (e *RawStatementEntry) Credit() bool { return e.DirectionFlag == "C" }

// NaturalKey identifies a statement entry as issued by the bank. At most
// one stored row may exist per key.
type NaturalKey struct {
	DocumentNumber int64
	EntryDateRaw   string
	LotNumber      int64
}

// Key returns the entry's natural key.
func (e *RawStatementEntry) Key() NaturalKey {
	return NaturalKey{DocumentNumber: e.DocumentNumber, EntryDateRaw: e.EntryDateRaw, LotNumber: e.LotNumber}
}

// StatementEntry is a matched, persisted statement line.
type StatementEntry struct {
	ID              string    `json:"id"`
	AccountID       string    `json:"account_id"`
	DocumentNumber  int64     `json:"document_number"`
	EntryDateRaw    string    `json:"entry_date_raw"`
	LotNumber       int64     `json:"lot_number"`
	Amount          float64   `json:"amount"`
	CounterpartRaw  string    `json:"counterpart_raw"`
	Info            string    `json:"info,omitempty"`
	MatchedClientID string    `json:"matched_client_id,omitempty"`
	LinkedOrderID   string    `json:"linked_order_id,omitempty"`
	Processed       bool      `json:"processed"`
	Linked          bool      `json:"linked"`
	CreatedAt       time.Time `json:"created_at"`
}

// ReconciliationResult summarizes one matching pass.
type ReconciliationResult struct {
	Found           int      `json:"found"`
	Matched         int      `json:"matched"`
	Saved           int      `json:"saved"`
	Duplicates      int      `json:"duplicates"`
	ClientsWithNews []string `json:"clients_with_news"`
}

// ============================================================
// ERP collaborators
// ============================================================

// Client is the ERP client record, read-only here. Either CPF or CNPJ is
// populated, digits only, possibly without leading zeros.
type Client struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	CPF        string `json:"cpf,omitempty"`
	CNPJ       string `json:"cnpj,omitempty"`
	Address    string `json:"address,omitempty"`
	City       string `json:"city,omitempty"`
	State      string `json:"state,omitempty"`
	PostalCode string `json:"postal_code,omitempty"`
}

// TaxID returns whichever tax identifier the client carries.
func (c *Client) TaxID() string {
	if c.CNPJ != "" {
		return c.CNPJ
	}
	return c.CPF
}

// OrderStatus is the consolidated payment status of an ERP order.
type OrderStatus string

const (
	OrderAwaiting  OrderStatus = "AWAITING_PAYMENT"
	OrderPartial   OrderStatus = "PARTIALLY_PAID"
	OrderFinalized OrderStatus = "FINALIZED"
)

// Order is the ERP order aggregate consumed by settlement.
type Order struct {
	ID             string      `json:"id"`
	ClientID       string      `json:"client_id"`
	TotalAmount    float64     `json:"total_amount"`
	ReceivedAmount float64     `json:"received_amount"`
	Status         OrderStatus `json:"status"`
}

// Payment is the settlement record; at most one payment per slip.
type Payment struct {
	ID      string    `json:"id"`
	OrderID string    `json:"order_id"`
	SlipID  string    `json:"slip_id"`
	Amount  float64   `json:"amount"`
	Method  string    `json:"method"`
	Date    time.Time `json:"date"`
}

// User is the minimal ERP user view needed for notification fan-out.
type User struct {
	ID   string `json:"id"`
	Role string `json:"role"`
}

// PrivilegedRoles receive settlement notifications.
var PrivilegedRoles = []string{"admin", "finance"}

// ============================================================
// Requests
// ============================================================

// SlipAlteration is a partial update; nil fields are left untouched.
// Each non-nil field turns on its own indicator flag in the bank payload.
type SlipAlteration struct {
	DueDate        *time.Time `json:"due_date,omitempty"`
	Amount         *float64   `json:"amount,omitempty"`
	InterestOn     *bool      `json:"interest_on,omitempty"`
	PenaltyOn      *bool      `json:"penalty_on,omitempty"`
	AcceptanceDays *int       `json:"acceptance_days,omitempty"`
	TitleNumber    *int64     `json:"title_number,omitempty"`
}

// Empty reports whether the alteration requests no change at all.
func (a *SlipAlteration) Empty() bool {
	return a.DueDate == nil && a.Amount == nil && a.InterestOn == nil &&
		a.PenaltyOn == nil && a.AcceptanceDays == nil && a.TitleNumber == nil
}

// SlipListFilters narrows a bank-side slip listing.
type SlipListFilters struct {
	StatusCode int        `json:"status_code,omitempty"`
	DueFrom    *time.Time `json:"due_from,omitempty"`
	DueTo      *time.Time `json:"due_to,omitempty"`
}
