// Package memstore provides in-memory implementations of the
// persistence ports. They back the service when no database is
// configured and keep the service tests free of infrastructure.
package memstore

import (
	"context"
	"sync"

	"github.com/higorocha/SistemaWebAlencarFrutas-sub009/internal/domain"
)

// SlipStore is an in-memory port.SlipStore.
type SlipStore struct {
	mu    sync.RWMutex
	slips map[string]*domain.BankSlip
	seqs  map[string]int64 // agreementID -> our-number sequence
}

// NewSlipStore creates an empty slip store.
func NewSlipStore() *SlipStore {
	return &SlipStore{
		slips: make(map[string]*domain.BankSlip),
		seqs:  make(map[string]int64),
	}
}

func (s *SlipStore) CreateSlip(_ context.Context, slip *domain.BankSlip) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, existing := range s.slips {
		if existing.OurNumber == slip.OurNumber {
			return &domain.ErrDuplicate{Key: "our_number " + slip.OurNumber}
		}
	}
	cp := *slip
	s.slips[slip.ID] = &cp
	return nil
}

func (s *SlipStore) GetSlip(_ context.Context, id string) (*domain.BankSlip, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	slip, ok := s.slips[id]
	if !ok {
		return nil, &domain.ErrNotFound{Resource: "bank slip", ID: id}
	}
	cp := *slip
	return &cp, nil
}

func (s *SlipStore) GetSlipByOurNumber(_ context.Context, ourNumber string) (*domain.BankSlip, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, slip := range s.slips {
		if slip.OurNumber == ourNumber {
			cp := *slip
			return &cp, nil
		}
	}
	return nil, &domain.ErrNotFound{Resource: "bank slip", ID: ourNumber}
}

func (s *SlipStore) UpdateSlip(_ context.Context, slip *domain.BankSlip) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.slips[slip.ID]; !ok {
		return &domain.ErrNotFound{Resource: "bank slip", ID: slip.ID}
	}
	cp := *slip
	s.slips[slip.ID] = &cp
	return nil
}

func (s *SlipStore) OurNumberExists(_ context.Context, ourNumber string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, slip := range s.slips {
		if slip.OurNumber == ourNumber {
			return true, nil
		}
	}
	return false, nil
}

func (s *SlipStore) NextTitleNumber(_ context.Context, orderID string) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var max int64
	for _, slip := range s.slips {
		if slip.OrderID == orderID && slip.TitleNumber > max {
			max = slip.TitleNumber
		}
	}
	return max + 1, nil
}

func (s *SlipStore) NextOurNumberSequence(_ context.Context, agreementID string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.seqs[agreementID]++
	return s.seqs[agreementID], nil
}

// StatementStore is an in-memory port.StatementStore.
type StatementStore struct {
	mu      sync.RWMutex
	entries map[string][]*domain.StatementEntry // accountID -> entries
}

// NewStatementStore creates an empty statement store.
func NewStatementStore() *StatementStore {
	return &StatementStore{entries: make(map[string][]*domain.StatementEntry)}
}

func (s *StatementStore) EntryExists(_ context.Context, accountID string, key domain.NaturalKey) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, e := range s.entries[accountID] {
		if e.DocumentNumber == key.DocumentNumber && e.EntryDateRaw == key.EntryDateRaw && e.LotNumber == key.LotNumber {
			return true, nil
		}
	}
	return false, nil
}

func (s *StatementStore) InsertEntry(_ context.Context, entry *domain.StatementEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cp := *entry
	s.entries[entry.AccountID] = append(s.entries[entry.AccountID], &cp)
	return nil
}

// Entries returns a copy of everything stored for an account.
func (s *StatementStore) Entries(accountID string) []domain.StatementEntry {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]domain.StatementEntry, 0, len(s.entries[accountID]))
	for _, e := range s.entries[accountID] {
		out = append(out, *e)
	}
	return out
}

// AuditSink is an in-memory port.AuditSink.
type AuditSink struct {
	mu      sync.Mutex
	Entries []domain.BankSlipLogEntry
}

// NewAuditSink creates an empty sink.
func NewAuditSink() *AuditSink {
	return &AuditSink{}
}

func (s *AuditSink) Append(_ context.Context, entry *domain.BankSlipLogEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.Entries = append(s.Entries, *entry)
	return nil
}

// ConfigStore is an in-memory credential/account/agreement store.
type ConfigStore struct {
	mu          sync.RWMutex
	Credentials map[string]*domain.Credential
	Accounts    map[string]*domain.BankAccount
	Agreements  map[string]*domain.BillingAgreement // keyed by account id
}

// NewConfigStore creates an empty config store.
func NewConfigStore() *ConfigStore {
	return &ConfigStore{
		Credentials: make(map[string]*domain.Credential),
		Accounts:    make(map[string]*domain.BankAccount),
		Agreements:  make(map[string]*domain.BillingAgreement),
	}
}

func (s *ConfigStore) GetCredential(_ context.Context, id string) (*domain.Credential, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	c, ok := s.Credentials[id]
	if !ok {
		return nil, &domain.ErrNotFound{Resource: "credential", ID: id}
	}
	return c, nil
}

func (s *ConfigStore) GetCredentialForAccount(_ context.Context, accountID string, modality domain.CredentialModality) (*domain.Credential, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, c := range s.Credentials {
		if c.AccountID == accountID && c.Modality == modality {
			return c, nil
		}
	}
	return nil, &domain.ErrNotFound{Resource: "credential", ID: accountID + "/" + string(modality)}
}

func (s *ConfigStore) GetAccount(_ context.Context, id string) (*domain.BankAccount, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	a, ok := s.Accounts[id]
	if !ok {
		return nil, &domain.ErrNotFound{Resource: "account", ID: id}
	}
	return a, nil
}

func (s *ConfigStore) GetAgreementForAccount(_ context.Context, accountID string) (*domain.BillingAgreement, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	a, ok := s.Agreements[accountID]
	if !ok {
		return nil, &domain.ErrNotFound{Resource: "billing agreement", ID: accountID}
	}
	return a, nil
}

// ERPStore is an in-memory view of the ERP collaborator tables.
type ERPStore struct {
	mu       sync.RWMutex
	Clients  map[string]*domain.Client
	Orders   map[string]*domain.Order
	Users    []domain.User
	payments map[string][]*domain.Payment // orderID -> payments
}

// NewERPStore creates an empty ERP store.
func NewERPStore() *ERPStore {
	return &ERPStore{
		Clients:  make(map[string]*domain.Client),
		Orders:   make(map[string]*domain.Order),
		payments: make(map[string][]*domain.Payment),
	}
}

func (s *ERPStore) GetClient(_ context.Context, id string) (*domain.Client, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	c, ok := s.Clients[id]
	if !ok {
		return nil, &domain.ErrNotFound{Resource: "client", ID: id}
	}
	return c, nil
}

func (s *ERPStore) GetClients(_ context.Context, ids []string) ([]domain.Client, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []domain.Client
	for _, id := range ids {
		if c, ok := s.Clients[id]; ok {
			out = append(out, *c)
		}
	}
	return out, nil
}

func (s *ERPStore) ListClientsWithTaxID(_ context.Context) ([]domain.Client, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []domain.Client
	for _, c := range s.Clients {
		if c.TaxID() != "" {
			out = append(out, *c)
		}
	}
	return out, nil
}

func (s *ERPStore) GetOrder(_ context.Context, id string) (*domain.Order, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	o, ok := s.Orders[id]
	if !ok {
		return nil, &domain.ErrNotFound{Resource: "order", ID: id}
	}
	cp := *o
	return &cp, nil
}

func (s *ERPStore) UpdateOrderTotals(_ context.Context, orderID string, received float64, status domain.OrderStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	o, ok := s.Orders[orderID]
	if !ok {
		return &domain.ErrNotFound{Resource: "order", ID: orderID}
	}
	o.ReceivedAmount = received
	o.Status = status
	return nil
}

func (s *ERPStore) CreatePayment(_ context.Context, p *domain.Payment) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cp := *p
	s.payments[p.OrderID] = append(s.payments[p.OrderID], &cp)
	return nil
}

func (s *ERPStore) ListPaymentsByOrder(_ context.Context, orderID string) ([]domain.Payment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]domain.Payment, 0, len(s.payments[orderID]))
	for _, p := range s.payments[orderID] {
		out = append(out, *p)
	}
	return out, nil
}

func (s *ERPStore) PaymentExistsForSlip(_ context.Context, slipID string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, ps := range s.payments {
		for _, p := range ps {
			if p.SlipID == slipID {
				return true, nil
			}
		}
	}
	return false, nil
}

func (s *ERPStore) ListUsersByRoles(_ context.Context, roles []string) ([]domain.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	want := make(map[string]bool, len(roles))
	for _, r := range roles {
		want[r] = true
	}
	var out []domain.User
	for _, u := range s.Users {
		if want[u.Role] {
			out = append(out, u)
		}
	}
	return out, nil
}

// LogNotifier is a port.Notifier that only records the fan-out.
type LogNotifier struct {
	mu   sync.Mutex
	Sent []string // user ids
}

// NewLogNotifier creates an empty notifier.
func NewLogNotifier() *LogNotifier {
	return &LogNotifier{}
}

func (n *LogNotifier) Notify(_ context.Context, userID string, _ map[string]any) error {
	n.mu.Lock()
	defer n.mu.Unlock()

	n.Sent = append(n.Sent, userID)
	return nil
}
