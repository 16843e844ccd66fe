package domain

import (
	"fmt"
	"strings"
)

// Error types for consistent error handling across the integration.

// ErrNotFound indicates a resource was not found.
type ErrNotFound struct {
	Resource string
	ID       string
}

func (e *ErrNotFound) Error() string {
	return fmt.Sprintf("%s not found: %s", e.Resource, e.ID)
}

// ErrValidation indicates a validation error (bad input).
type ErrValidation struct {
	Field   string
	Message string
}

func (e *ErrValidation) Error() string {
	return fmt.Sprintf("validation error on '%s': %s", e.Field, e.Message)
}

// ErrIncompleteClient indicates the ERP client lacks fields required to
// issue a slip. Missing lists the offending fields.
type ErrIncompleteClient struct {
	ClientID string
	Missing  []string
}

func (e *ErrIncompleteClient) Error() string {
	return fmt.Sprintf("client %s is missing required fields: %s", e.ClientID, strings.Join(e.Missing, ", "))
}

// ErrAuthExpired indicates the bank rejected our token (HTTP 401).
// The caller may retry after forcing a token refresh; no automatic
// retry is performed.
type ErrAuthExpired struct {
	CredentialID string
}

func (e *ErrAuthExpired) Error() string {
	return fmt.Sprintf("bank token expired for credential %s", e.CredentialID)
}

// BankError is one structured error item returned by the bank.
type BankError struct {
	Code    string `json:"codigo"`
	Message string `json:"mensagem"`
}

// ErrBankAPI carries the bank's structured error list through verbatim.
type ErrBankAPI struct {
	StatusCode int
	Errors     []BankError
}

func (e *ErrBankAPI) Error() string {
	if len(e.Errors) == 0 {
		return fmt.Sprintf("bank returned status %d", e.StatusCode)
	}
	parts := make([]string, 0, len(e.Errors))
	for _, be := range e.Errors {
		parts = append(parts, fmt.Sprintf("[%s] %s", be.Code, be.Message))
	}
	return fmt.Sprintf("bank returned status %d: %s", e.StatusCode, strings.Join(parts, "; "))
}

// Messages concatenates every bank error message, used by the write-off
// idempotence classification.
func (e *ErrBankAPI) Messages() string {
	parts := make([]string, 0, len(e.Errors))
	for _, be := range e.Errors {
		parts = append(parts, be.Message)
	}
	return strings.Join(parts, "; ")
}

// ErrExternalService indicates an unexpected transport or parse failure
// talking to an external service.
type ErrExternalService struct {
	Service string
	Err     error
}

func (e *ErrExternalService) Error() string {
	return fmt.Sprintf("external service error [%s]: %v", e.Service, e.Err)
}

func (e *ErrExternalService) Unwrap() error {
	return e.Err
}

// ErrTimeout indicates an operation exceeded its deadline.
type ErrTimeout struct {
	Operation string
}

func (e *ErrTimeout) Error() string {
	return fmt.Sprintf("operation timed out: %s", e.Operation)
}

// ErrCircuitOpen indicates the circuit breaker is open.
type ErrCircuitOpen struct {
	Service string
}

func (e *ErrCircuitOpen) Error() string {
	return fmt.Sprintf("circuit breaker open for service: %s", e.Service)
}

// ErrDuplicate indicates a uniqueness violation (e.g. our-number reuse).
type ErrDuplicate struct {
	Key string
}

func (e *ErrDuplicate) Error() string {
	return fmt.Sprintf("duplicate: %s", e.Key)
}

// ErrMutationNotAllowed indicates the slip state machine rejected an
// alteration or write-off.
type ErrMutationNotAllowed struct {
	OurNumber string
	Status    SlipStatus
	Kind      MutationKind
	Remaining string // set when only the 30-minute window blocks it
}

func (e *ErrMutationNotAllowed) Error() string {
	if e.Remaining != "" {
		return fmt.Sprintf("%s on slip %s not allowed yet: wait %s", e.Kind, e.OurNumber, e.Remaining)
	}
	return fmt.Sprintf("%s on slip %s not allowed in status %s", e.Kind, e.OurNumber, e.Status)
}
