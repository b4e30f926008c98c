package dto

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/hugohenrick/nfse-emissor/internal/domain/invoice"
)

const competenceLayout = "2006-01-02"

// InvoiceItemRequest representa uma linha de serviço
type InvoiceItemRequest struct {
	Code        string          `json:"code" binding:"required" example:"01.07"`
	Description string          `json:"description" binding:"required"`
	Quantity    decimal.Decimal `json:"quantity" swaggertype:"string" example:"1"`
	UnitValue   decimal.Decimal `json:"unit_value" swaggertype:"string" example:"1000.00"`
	TaxRate     decimal.Decimal `json:"tax_rate" swaggertype:"string" example:"2.00"`
}

// WithheldRequest representa os valores retidos na fonte
type WithheldRequest struct {
	ISS    decimal.Decimal `json:"iss" swaggertype:"string"`
	PIS    decimal.Decimal `json:"pis" swaggertype:"string"`
	COFINS decimal.Decimal `json:"cofins" swaggertype:"string"`
	INSS   decimal.Decimal `json:"inss" swaggertype:"string"`
	IR     decimal.Decimal `json:"ir" swaggertype:"string"`
	CSLL   decimal.Decimal `json:"csll" swaggertype:"string"`
}

// InvoiceRequest representa a estrutura de dados para criação/atualização de rascunho
type InvoiceRequest struct {
	CustomerID  string `json:"customer_id"`
	Series      string `json:"series" example:"1"`
	Competence  string `json:"competence" example:"2026-03-01"`
	Description string `json:"description"`
	// ServiceValue é opcional; quando ausente vale a soma dos itens
	ServiceValue *decimal.Decimal     `json:"service_value,omitempty" swaggertype:"string"`
	Deductions   decimal.Decimal      `json:"deductions" swaggertype:"string"`
	Withheld     WithheldRequest      `json:"withheld"`
	ISSWithheld  bool                 `json:"iss_withheld"`
	Items        []InvoiceItemRequest `json:"items" binding:"required,min=1,dive"`
}

// CompetenceDate interpreta a competência no formato AAAA-MM-DD
func (r InvoiceRequest) CompetenceDate() (time.Time, error) {
	if r.Competence == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse(competenceLayout, r.Competence)
	if err != nil {
		return time.Time{}, fmt.Errorf("competência inválida, use AAAA-MM-DD: %w", err)
	}
	return t, nil
}

// ToItems converte os itens da requisição
func (r InvoiceRequest) ToItems() []invoice.Item {
	items := make([]invoice.Item, 0, len(r.Items))
	for _, it := range r.Items {
		items = append(items, invoice.Item{
			Code:        it.Code,
			Description: it.Description,
			Quantity:    it.Quantity,
			UnitValue:   it.UnitValue,
			TaxRate:     it.TaxRate,
		})
	}
	return items
}

// Apply copia para a nota os campos que não vêm dos itens
func (r InvoiceRequest) Apply(inv *invoice.Invoice) {
	inv.Description = r.Description
	inv.Deductions = r.Deductions
	inv.ISSWithheld = r.ISSWithheld
	inv.Withheld = invoice.Withheld{
		ISS:    r.Withheld.ISS,
		PIS:    r.Withheld.PIS,
		COFINS: r.Withheld.COFINS,
		INSS:   r.Withheld.INSS,
		IR:     r.Withheld.IR,
		CSLL:   r.Withheld.CSLL,
	}
	if r.ServiceValue != nil {
		inv.ServiceValue = *r.ServiceValue
	} else {
		inv.ServiceValue = inv.ItemsTotal()
	}
}

// CancelRequest representa o pedido de cancelamento
type CancelRequest struct {
	Reason string `json:"reason" binding:"required,min=15"`
}

// EmailRequest representa o envio da nota por e-mail. Sem destinatário usa o e-mail do tomador.
type EmailRequest struct {
	To string `json:"to" binding:"omitempty,email"`
}

// InvoiceResponse representa a estrutura de dados de resposta para nota
type InvoiceResponse struct {
	ID               string           `json:"id"`
	CustomerID       string           `json:"customer_id,omitempty"`
	Series           string           `json:"series"`
	Competence       string           `json:"competence"`
	Description      string           `json:"description,omitempty"`
	ServiceValue     decimal.Decimal  `json:"service_value" swaggertype:"string"`
	Deductions       decimal.Decimal  `json:"deductions" swaggertype:"string"`
	ISSValue         decimal.Decimal  `json:"iss_value" swaggertype:"string"`
	NetValue         decimal.Decimal  `json:"net_value" swaggertype:"string"`
	ISSWithheld      bool             `json:"iss_withheld"`
	Withheld         invoice.Withheld `json:"withheld"`
	Items            []invoice.Item   `json:"items"`
	Status           string           `json:"status"`
	Number           string           `json:"number,omitempty"`
	VerificationCode string           `json:"verification_code,omitempty"`
	DPSID            string           `json:"dps_id,omitempty"`
	AccessKeyNFSe    string           `json:"access_key_nfse,omitempty"`
	RejectionReason  string           `json:"rejection_reason,omitempty"`
	CancelReason     string           `json:"cancel_reason,omitempty"`
	HasPDF           bool             `json:"has_pdf"`
	SubmittedAt      *time.Time       `json:"submitted_at,omitempty"`
	AuthorizedAt     *time.Time       `json:"authorized_at,omitempty"`
	CancelledAt      *time.Time       `json:"cancelled_at,omitempty"`
	CreatedAt        time.Time        `json:"created_at"`
	UpdatedAt        time.Time        `json:"updated_at"`
}

// InvoiceListResponse representa a resposta de listagem de notas
type InvoiceListResponse struct {
	Invoices []InvoiceResponse `json:"invoices"`
	Page     int               `json:"page"`
	PageSize int               `json:"page_size"`
}

// EmitResponse representa o resultado da emissão completa
type EmitResponse struct {
	Invoice  InvoiceResponse `json:"invoice"`
	Warnings []string        `json:"warnings,omitempty"`
}

// ToInvoiceResponse converte uma nota para o formato de resposta
func ToInvoiceResponse(inv *invoice.Invoice) InvoiceResponse {
	return InvoiceResponse{
		ID:               inv.ID,
		CustomerID:       inv.CustomerID,
		Series:           inv.Series,
		Competence:       inv.Competence.Format(competenceLayout),
		Description:      inv.Description,
		ServiceValue:     inv.ServiceValue,
		Deductions:       inv.Deductions,
		ISSValue:         inv.ISSValue(),
		NetValue:         inv.NetValue(),
		ISSWithheld:      inv.ISSWithheld,
		Withheld:         inv.Withheld,
		Items:            inv.Items,
		Status:           string(inv.Status),
		Number:           inv.Number,
		VerificationCode: inv.VerificationCode,
		DPSID:            inv.DPSID,
		AccessKeyNFSe:    inv.AccessKeyNFSe,
		RejectionReason:  inv.RejectionReason,
		CancelReason:     inv.CancelReason,
		HasPDF:           inv.PDFPath != "",
		SubmittedAt:      inv.SubmittedAt,
		AuthorizedAt:     inv.AuthorizedAt,
		CancelledAt:      inv.CancelledAt,
		CreatedAt:        inv.CreatedAt,
		UpdatedAt:        inv.UpdatedAt,
	}
}

// ToInvoiceListResponse converte uma lista de notas para o formato de resposta
func ToInvoiceListResponse(invoices []*invoice.Invoice, page, pageSize int) InvoiceListResponse {
	response := InvoiceListResponse{
		Invoices: make([]InvoiceResponse, 0, len(invoices)),
		Page:     page,
		PageSize: pageSize,
	}
	for _, inv := range invoices {
		response.Invoices = append(response.Invoices, ToInvoiceResponse(inv))
	}
	return response
}
