package emission

import (
	"context"
	"sync"

	"github.com/hugohenrick/nfse-emissor/internal/domain/customer"
	"github.com/hugohenrick/nfse-emissor/internal/domain/invoice"
	"github.com/hugohenrick/nfse-emissor/internal/domain/tenant"
	"github.com/hugohenrick/nfse-emissor/pkg/errs"
)

type memInvoices struct {
	mu   sync.Mutex
	data map[string]invoice.Invoice
}

func newMemInvoices() *memInvoices {
	return &memInvoices{data: make(map[string]invoice.Invoice)}
}

func clone(inv *invoice.Invoice) invoice.Invoice {
	cp := *inv
	cp.Items = append([]invoice.Item(nil), inv.Items...)
	return cp
}

func (r *memInvoices) Create(_ context.Context, inv *invoice.Invoice) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.data[inv.ID] = clone(inv)
	return nil
}

func (r *memInvoices) FindByID(_ context.Context, tenantID, id string) (*invoice.Invoice, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	inv, ok := r.data[id]
	if !ok || inv.TenantID != tenantID {
		return nil, errs.ErrNotFound
	}
	cp := clone(&inv)
	return &cp, nil
}

func (r *memInvoices) List(_ context.Context, tenantID string, f invoice.Filter) ([]*invoice.Invoice, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*invoice.Invoice
	for _, inv := range r.data {
		if inv.TenantID == tenantID && (f.Status == "" || inv.Status == f.Status) {
			cp := clone(&inv)
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (r *memInvoices) Update(_ context.Context, inv *invoice.Invoice) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.data[inv.ID]; !ok {
		return errs.ErrNotFound
	}
	r.data[inv.ID] = clone(inv)
	return nil
}

func (r *memInvoices) Delete(_ context.Context, tenantID, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	inv, ok := r.data[id]
	if !ok || inv.TenantID != tenantID {
		return errs.ErrNotFound
	}
	delete(r.data, id)
	return nil
}

func (r *memInvoices) ListByStatus(_ context.Context, status invoice.Status, limit int) ([]*invoice.Invoice, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*invoice.Invoice
	for _, inv := range r.data {
		if inv.Status == status && (limit <= 0 || len(out) < limit) {
			cp := clone(&inv)
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (r *memInvoices) get(id string) invoice.Invoice {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.data[id]
}

type memTenants struct {
	mu   sync.Mutex
	data map[string]tenant.Tenant
}

func newMemTenants(ts ...*tenant.Tenant) *memTenants {
	r := &memTenants{data: make(map[string]tenant.Tenant)}
	for _, t := range ts {
		r.data[t.ID] = *t
	}
	return r
}

func (r *memTenants) Create(_ context.Context, t *tenant.Tenant) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.data[t.ID] = *t
	return nil
}

func (r *memTenants) FindByID(_ context.Context, id string) (*tenant.Tenant, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.data[id]
	if !ok {
		return nil, errs.ErrNotFound
	}
	return &t, nil
}

func (r *memTenants) FindByDocument(_ context.Context, document string) (*tenant.Tenant, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, t := range r.data {
		if t.Document == document {
			return &t, nil
		}
	}
	return nil, errs.ErrNotFound
}

func (r *memTenants) List(context.Context, int, int) ([]*tenant.Tenant, error) {
	return nil, nil
}

func (r *memTenants) Update(_ context.Context, t *tenant.Tenant) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.data[t.ID] = *t
	return nil
}

func (r *memTenants) UpdateStatus(_ context.Context, id string, status tenant.Status) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.data[id]
	if !ok {
		return errs.ErrNotFound
	}
	t.Status = status
	r.data[id] = t
	return nil
}

func (r *memTenants) ProviderOf(_ context.Context, id string) (tenant.Provider, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.data[id]
	if !ok {
		return "", errs.ErrNotFound
	}
	return t.Provider, nil
}

func (r *memTenants) Exists(_ context.Context, id string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.data[id]
	return ok, nil
}

type memCustomers struct {
	data map[string]customer.Customer
}

func newMemCustomers(cs ...*customer.Customer) *memCustomers {
	r := &memCustomers{data: make(map[string]customer.Customer)}
	for _, c := range cs {
		r.data[c.ID] = *c
	}
	return r
}

func (r *memCustomers) Create(_ context.Context, c *customer.Customer) error {
	r.data[c.ID] = *c
	return nil
}

func (r *memCustomers) FindByID(_ context.Context, tenantID, id string) (*customer.Customer, error) {
	c, ok := r.data[id]
	if !ok || c.TenantID != tenantID {
		return nil, errs.ErrNotFound
	}
	return &c, nil
}

func (r *memCustomers) FindByDocument(context.Context, string, string) (*customer.Customer, error) {
	return nil, errs.ErrNotFound
}

func (r *memCustomers) List(context.Context, string, int, int) ([]*customer.Customer, error) {
	return nil, nil
}

func (r *memCustomers) Update(_ context.Context, c *customer.Customer) error {
	r.data[c.ID] = *c
	return nil
}

func (r *memCustomers) Delete(_ context.Context, _, id string) error {
	delete(r.data, id)
	return nil
}

type memSequence struct {
	mu   sync.Mutex
	last map[string]int64
}

func (r *memSequence) NextNumber(_ context.Context, tenantID string) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.last[tenantID]++
	return r.last[tenantID], nil
}
