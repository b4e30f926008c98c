package controller

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hugohenrick/nfse-emissor/internal/adapter/api/dto"
	"github.com/hugohenrick/nfse-emissor/internal/domain/customer"
	"github.com/hugohenrick/nfse-emissor/internal/domain/invoice"
	"github.com/hugohenrick/nfse-emissor/internal/emission"
	"github.com/hugohenrick/nfse-emissor/pkg/errs"
	"github.com/hugohenrick/nfse-emissor/pkg/logger"
)

const testTenant = "tenant-1"

func init() {
	gin.SetMode(gin.TestMode)
}

func newRouter() *gin.Engine {
	r := gin.New()
	r.Use(func(c *gin.Context) {
		c.Set("tenant_id", testTenant)
		c.Next()
	})
	return r
}

func doJSON(t *testing.T, r http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func draftInvoice(t *testing.T) *invoice.Invoice {
	t.Helper()
	inv, err := invoice.NewInvoice(testTenant, "", "1", time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC), []invoice.Item{{
		Code:        "01.07",
		Description: "Suporte técnico",
		Quantity:    decimal.NewFromInt(1),
		UnitValue:   decimal.NewFromInt(1000),
		TaxRate:     decimal.NewFromInt(2),
	}})
	require.NoError(t, err)
	return inv
}

func invoiceBody(customerID string) map[string]any {
	return map[string]any{
		"customer_id": customerID,
		"competence":  "2026-03-01",
		"items": []map[string]any{{
			"code":        "01.07",
			"description": "Suporte técnico",
			"quantity":    "2",
			"unit_value":  "500.00",
			"tax_rate":    "2",
		}},
	}
}

func TestStatusOf(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"validation", errs.NewValidationError("items", "vazio"), http.StatusBadRequest},
		{"format", &errs.FormatError{Err: errors.New("xml")}, http.StatusBadRequest},
		{"certificate", &errs.CertificateError{Kind: errs.CertificateExpired}, http.StatusUnprocessableEntity},
		{"transition", &errs.TransitionError{From: "draft", Trigger: "cancel"}, http.StatusConflict},
		{"conflict", &errs.ConflictError{Resource: "tenant"}, http.StatusConflict},
		{"outcome unknown", &errs.ProtocolError{Provider: "national", Err: errs.ErrOutcomeUnknown}, http.StatusGatewayTimeout},
		{"protocol", &errs.ProtocolError{Provider: "national", StatusCode: 500}, http.StatusBadGateway},
		{"not found", fmt.Errorf("nota: %w", errs.ErrNotFound), http.StatusNotFound},
		{"domain sentinel", customer.ErrInvalidDocument, http.StatusBadRequest},
		{"not editable", invoice.ErrNotEditable, http.StatusConflict},
		{"internal", errors.New("conexão recusada"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, statusOf(tt.err))
		})
	}
}

func TestInvoiceController_CreateDraft(t *testing.T) {
	invoices := newMemoryInvoices()
	c := NewInvoiceController(invoices, newMemoryCustomers(), &stubService{}, logger.NewNop())
	r := newRouter()
	r.POST("/invoices", c.Create)

	rec := doJSON(t, r, http.MethodPost, "/invoices", invoiceBody(""))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var resp dto.InvoiceResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, string(invoice.StatusDraft), resp.Status)
	assert.Equal(t, "2026-03-01", resp.Competence)
	assert.True(t, decimal.NewFromInt(1000).Equal(resp.ServiceValue))
	assert.True(t, decimal.NewFromInt(20).Equal(resp.ISSValue))
	assert.Empty(t, resp.Number)

	stored, err := invoices.FindByID(context.Background(), testTenant, resp.ID)
	require.NoError(t, err)
	assert.Len(t, stored.Items, 1)
}

func TestInvoiceController_CreateRejectsInput(t *testing.T) {
	tests := []struct {
		name string
		body map[string]any
		want int
	}{
		{"unknown customer", invoiceBody("missing"), http.StatusNotFound},
		{"no items", map[string]any{"competence": "2026-03-01"}, http.StatusBadRequest},
		{"bad competence", func() map[string]any {
			b := invoiceBody("")
			b["competence"] = "03/2026"
			return b
		}(), http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			invoices := newMemoryInvoices()
			c := NewInvoiceController(invoices, newMemoryCustomers(), &stubService{}, logger.NewNop())
			r := newRouter()
			r.POST("/invoices", c.Create)

			rec := doJSON(t, r, http.MethodPost, "/invoices", tt.body)
			assert.Equal(t, tt.want, rec.Code, rec.Body.String())
			assert.Empty(t, invoices.byID)
		})
	}
}

func TestInvoiceController_UpdateAuthorizedIsConflict(t *testing.T) {
	inv := draftInvoice(t)
	inv.Status = invoice.StatusAuthorized
	c := NewInvoiceController(newMemoryInvoices(inv), newMemoryCustomers(), &stubService{}, logger.NewNop())
	r := newRouter()
	r.PUT("/invoices/:id", c.Update)

	rec := doJSON(t, r, http.MethodPut, "/invoices/"+inv.ID, invoiceBody(""))
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestInvoiceController_SubmitErrors(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"ok", nil, http.StatusOK},
		{"outcome unknown", &errs.ProtocolError{Provider: "national", Err: errs.ErrOutcomeUnknown}, http.StatusGatewayTimeout},
		{"provider failure", &errs.ProtocolError{Provider: "national", StatusCode: 503}, http.StatusBadGateway},
		{"wrong state", &errs.TransitionError{From: "authorized", Trigger: "submit"}, http.StatusConflict},
		{"certificate", &errs.CertificateError{Kind: errs.CertificateExpired}, http.StatusUnprocessableEntity},
		{"not found", errs.ErrNotFound, http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			inv := draftInvoice(t)
			inv.Status = invoice.StatusSubmitted
			svc := &stubService{inv: inv, err: tt.err}
			c := NewInvoiceController(newMemoryInvoices(), newMemoryCustomers(), svc, logger.NewNop())
			r := newRouter()
			r.POST("/invoices/:id/submit", c.Submit)

			rec := doJSON(t, r, http.MethodPost, "/invoices/"+inv.ID+"/submit", nil)
			assert.Equal(t, tt.want, rec.Code)
			assert.Equal(t, "submit", svc.lastCall)
			assert.Equal(t, inv.ID, svc.lastArg)

			if tt.err != nil {
				var resp dto.ErrorResponse
				require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
				assert.Equal(t, tt.want, resp.Code)
			}
		})
	}
}

func TestInvoiceController_EmitReturnsWarnings(t *testing.T) {
	inv := draftInvoice(t)
	inv.Status = invoice.StatusSubmitted
	svc := &stubService{outcome: &emission.Outcome{Invoice: inv, Warnings: []string{"nota ainda em processamento"}}}
	c := NewInvoiceController(newMemoryInvoices(), newMemoryCustomers(), svc, logger.NewNop())
	r := newRouter()
	r.POST("/invoices/:id/emit", c.Emit)

	rec := doJSON(t, r, http.MethodPost, "/invoices/"+inv.ID+"/emit", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp dto.EmitResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, string(invoice.StatusSubmitted), resp.Invoice.Status)
	assert.Equal(t, []string{"nota ainda em processamento"}, resp.Warnings)
}

func TestInvoiceController_CancelRequiresReason(t *testing.T) {
	svc := &stubService{}
	c := NewInvoiceController(newMemoryInvoices(), newMemoryCustomers(), svc, logger.NewNop())
	r := newRouter()
	r.POST("/invoices/:id/cancel", c.Cancel)

	rec := doJSON(t, r, http.MethodPost, "/invoices/abc/cancel", map[string]string{"reason": "curto"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Empty(t, svc.lastCall)
}

func TestInvoiceController_EmailWithoutBody(t *testing.T) {
	svc := &stubService{}
	c := NewInvoiceController(newMemoryInvoices(), newMemoryCustomers(), svc, logger.NewNop())
	r := newRouter()
	r.POST("/invoices/:id/email", c.Email)

	rec := doJSON(t, r, http.MethodPost, "/invoices/abc/email", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "email", svc.lastCall)
	assert.Empty(t, svc.lastArg)
}

func TestInvoiceController_DeleteDelegatesToService(t *testing.T) {
	svc := &stubService{err: invoice.ErrNotEditable}
	c := NewInvoiceController(newMemoryInvoices(), newMemoryCustomers(), svc, logger.NewNop())
	r := newRouter()
	r.DELETE("/invoices/:id", c.Delete)

	rec := doJSON(t, r, http.MethodDelete, "/invoices/abc", nil)
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "delete", svc.lastCall)
}

func TestCustomerController_Create(t *testing.T) {
	existing, err := customer.NewCustomer(testTenant, "Cliente Antigo", "11222333000181", "")
	require.NoError(t, err)

	tests := []struct {
		name string
		body map[string]any
		want int
	}{
		{"created", map[string]any{"name": "Maria", "document": "529.982.247-25", "email": "maria@example.com"}, http.StatusCreated},
		{"duplicate document", map[string]any{"name": "Outro", "document": "11.222.333/0001-81"}, http.StatusConflict},
		{"invalid document", map[string]any{"name": "Outro", "document": "123"}, http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := NewCustomerController(newMemoryCustomers(existing), logger.NewNop())
			r := newRouter()
			r.POST("/customers", c.Create)

			rec := doJSON(t, r, http.MethodPost, "/customers", tt.body)
			assert.Equal(t, tt.want, rec.Code, rec.Body.String())
		})
	}
}

func TestCustomerController_GetIsTenantScoped(t *testing.T) {
	other, err := customer.NewCustomer("tenant-2", "Cliente", "52998224725", "")
	require.NoError(t, err)
	c := NewCustomerController(newMemoryCustomers(other), logger.NewNop())
	r := newRouter()
	r.GET("/customers/:id", c.Get)

	rec := doJSON(t, r, http.MethodGet, "/customers/"+other.ID, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
