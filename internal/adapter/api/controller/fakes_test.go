package controller

import (
	"context"
	"sync"

	"github.com/hugohenrick/nfse-emissor/internal/domain/customer"
	"github.com/hugohenrick/nfse-emissor/internal/domain/invoice"
	"github.com/hugohenrick/nfse-emissor/internal/emission"
	"github.com/hugohenrick/nfse-emissor/pkg/errs"
)

type memoryCustomers struct {
	mu   sync.Mutex
	byID map[string]*customer.Customer
}

func newMemoryCustomers(cs ...*customer.Customer) *memoryCustomers {
	m := &memoryCustomers{byID: map[string]*customer.Customer{}}
	for _, c := range cs {
		m.byID[c.ID] = c
	}
	return m
}

func (m *memoryCustomers) Create(_ context.Context, c *customer.Customer) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.byID {
		if existing.TenantID == c.TenantID && existing.Document == c.Document {
			return &errs.ConflictError{Resource: "cliente", Message: "documento já cadastrado"}
		}
	}
	m.byID[c.ID] = c
	return nil
}

func (m *memoryCustomers) FindByID(_ context.Context, tenantID, id string) (*customer.Customer, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.byID[id]
	if !ok || c.TenantID != tenantID {
		return nil, errs.ErrNotFound
	}
	return c, nil
}

func (m *memoryCustomers) FindByDocument(_ context.Context, tenantID, document string) (*customer.Customer, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, c := range m.byID {
		if c.TenantID == tenantID && c.Document == document {
			return c, nil
		}
	}
	return nil, errs.ErrNotFound
}

func (m *memoryCustomers) List(_ context.Context, tenantID string, _, _ int) ([]*customer.Customer, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*customer.Customer
	for _, c := range m.byID {
		if c.TenantID == tenantID {
			out = append(out, c)
		}
	}
	return out, nil
}

func (m *memoryCustomers) Update(_ context.Context, c *customer.Customer) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.byID[c.ID] = c
	return nil
}

func (m *memoryCustomers) Delete(_ context.Context, tenantID, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.byID[id]
	if !ok || c.TenantID != tenantID {
		return errs.ErrNotFound
	}
	delete(m.byID, id)
	return nil
}

type memoryInvoices struct {
	mu   sync.Mutex
	byID map[string]*invoice.Invoice
}

func newMemoryInvoices(invs ...*invoice.Invoice) *memoryInvoices {
	m := &memoryInvoices{byID: map[string]*invoice.Invoice{}}
	for _, inv := range invs {
		m.byID[inv.ID] = inv
	}
	return m
}

func (m *memoryInvoices) Create(_ context.Context, inv *invoice.Invoice) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.byID[inv.ID] = inv
	return nil
}

func (m *memoryInvoices) FindByID(_ context.Context, tenantID, id string) (*invoice.Invoice, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	inv, ok := m.byID[id]
	if !ok || inv.TenantID != tenantID {
		return nil, errs.ErrNotFound
	}
	return inv, nil
}

func (m *memoryInvoices) List(_ context.Context, tenantID string, f invoice.Filter) ([]*invoice.Invoice, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*invoice.Invoice
	for _, inv := range m.byID {
		if inv.TenantID == tenantID && (f.Status == "" || inv.Status == f.Status) {
			out = append(out, inv)
		}
	}
	return out, nil
}

func (m *memoryInvoices) Update(_ context.Context, inv *invoice.Invoice) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.byID[inv.ID] = inv
	return nil
}

func (m *memoryInvoices) Delete(_ context.Context, tenantID, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.byID[id]; !ok {
		return errs.ErrNotFound
	}
	delete(m.byID, id)
	return nil
}

func (m *memoryInvoices) ListByStatus(_ context.Context, status invoice.Status, _ int) ([]*invoice.Invoice, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*invoice.Invoice
	for _, inv := range m.byID {
		if inv.Status == status {
			out = append(out, inv)
		}
	}
	return out, nil
}

// stubService devolve respostas fixas e registra a última chamada
type stubService struct {
	inv      *invoice.Invoice
	outcome  *emission.Outcome
	err      error
	lastCall string
	lastArg  string
}

func (s *stubService) record(call, arg string) { s.lastCall, s.lastArg = call, arg }

func (s *stubService) Submit(_ context.Context, _, id string) (*invoice.Invoice, error) {
	s.record("submit", id)
	return s.inv, s.err
}

func (s *stubService) Emit(_ context.Context, _, id string) (*emission.Outcome, error) {
	s.record("emit", id)
	return s.outcome, s.err
}

func (s *stubService) PollStatus(_ context.Context, _, id string) (*invoice.Invoice, error) {
	s.record("poll", id)
	return s.inv, s.err
}

func (s *stubService) RetrieveArtifact(_ context.Context, _, id string) (*invoice.Invoice, error) {
	s.record("artifact", id)
	return s.inv, s.err
}

func (s *stubService) Cancel(_ context.Context, _, _, reason string) (*invoice.Invoice, error) {
	s.record("cancel", reason)
	return s.inv, s.err
}

func (s *stubService) Revert(_ context.Context, _, id string) (*invoice.Invoice, error) {
	s.record("revert", id)
	return s.inv, s.err
}

func (s *stubService) Copy(_ context.Context, _, id string) (*invoice.Invoice, error) {
	s.record("copy", id)
	return s.inv, s.err
}

func (s *stubService) DeleteDraft(_ context.Context, _, id string) error {
	s.record("delete", id)
	return s.err
}

func (s *stubService) SendByEmail(_ context.Context, _, _, to string) error {
	s.record("email", to)
	return s.err
}
