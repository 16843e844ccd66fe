package domain

import "time"

// Transfer types exchanged with the bank adapter. The adapter owns the
// wire encoding; services see only these.

// SlipIssueRequest is everything the bank needs to register a boleto.
type SlipIssueRequest struct {
	Agreement   BillingAgreement
	Account     BankAccount
	Payer       PayerSnapshot
	Amount      float64
	IssueDate   time.Time
	DueDate     time.Time
	TitleNumber int64
	// OurNumber is empty when the agreement delegates numbering to the
	// bank.
	OurNumber string
}

// SlipIssueResult is the bank's answer to a successful registration.
type SlipIssueResult struct {
	OurNumber   string
	Barcode     string
	DigitLine   string
	PixQRCode   string
	PixTxID     string
	RawRequest  string
	RawResponse string
}

// SlipBankState is the bank's current view of a slip. The date fields
// feed the payment-date fallback chain and arrive in DD.MM.YYYY form.
type SlipBankState struct {
	StatusCode        int
	StatusText        string
	ReceiptDate       string // data do recebimento
	SettlementDate    string // data do crédito da liquidação
	PaymentDate       string // generic payment date
	ScheduleTimestamp string
	Raw               string
}

// Status resolves the bank state to the local enum, preferring the
// numeric code and falling back to the legacy text form.
func (s *SlipBankState) Status() SlipStatus {
	if s.StatusCode != 0 {
		return StatusFromBankCode(s.StatusCode)
	}
	return StatusFromBankText(s.StatusText)
}

// SlipSummary is one row of a bank-side slip listing.
type SlipSummary struct {
	OurNumber  string
	StatusCode int
	Amount     float64
	DueDateRaw string
}

// StatementPage is one page of statement entries. NextPage is zero when
// the bank reports no further page.
type StatementPage struct {
	Entries  []RawStatementEntry
	NextPage int
}
