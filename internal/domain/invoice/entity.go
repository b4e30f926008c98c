package invoice

import (
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/hugohenrick/nfse-emissor/pkg/errs"
)

var (
	ErrNoItems        = errors.New("a nota precisa de pelo menos um item de serviço")
	ErrNotEditable    = errors.New("somente notas em rascunho podem ser alteradas")
	ErrEmptyTenantID  = errors.New("tenant ID é obrigatório")
	ErrEmptyReason    = errors.New("motivo é obrigatório")
	ErrNotCancellable = errors.New("somente notas autorizadas podem ser canceladas")

	ErrMissingAccessKey = errors.New("autorização sem chave de acesso da NFSe")
)

// Withheld são os valores retidos na fonte, por tributo
type Withheld struct {
	ISS    decimal.Decimal `json:"iss"`
	PIS    decimal.Decimal `json:"pis"`
	COFINS decimal.Decimal `json:"cofins"`
	INSS   decimal.Decimal `json:"inss"`
	IR     decimal.Decimal `json:"ir"`
	CSLL   decimal.Decimal `json:"csll"`
}

// Total soma as retenções federais e, quando retido, o ISS
func (w Withheld) Total(issWithheld bool) decimal.Decimal {
	total := w.PIS.Add(w.COFINS).Add(w.INSS).Add(w.IR).Add(w.CSLL)
	if issWithheld {
		total = total.Add(w.ISS)
	}
	return total
}

// Item é uma linha de serviço da nota
type Item struct {
	ID          string          `json:"id"`
	Code        string          `json:"code"` // Código de classificação do serviço (ex.: 01.07)
	Description string          `json:"description"`
	Quantity    decimal.Decimal `json:"quantity"`
	UnitValue   decimal.Decimal `json:"unit_value"`
	TaxRate     decimal.Decimal `json:"tax_rate"` // Alíquota em percentual
}

// Total retorna quantidade × valor unitário, arredondado em 2 casas
func (i Item) Total() decimal.Decimal {
	return i.Quantity.Mul(i.UnitValue).Round(2)
}

// Validate verifica os valores do item
func (i Item) Validate() error {
	if i.Description == "" {
		return errs.NewValidationError("items.description", "descrição do serviço é obrigatória")
	}
	if i.Code == "" {
		return errs.NewValidationError("items.code", "código do serviço é obrigatório")
	}
	if !i.Quantity.IsPositive() {
		return errs.NewValidationError("items.quantity", "quantidade deve ser positiva")
	}
	if !i.UnitValue.IsPositive() {
		return errs.NewValidationError("items.unit_value", "valor unitário deve ser positivo")
	}
	if i.TaxRate.IsNegative() {
		return errs.NewValidationError("items.tax_rate", "alíquota não pode ser negativa")
	}
	return nil
}

// Invoice representa uma NFSe, do rascunho até a autorização
type Invoice struct {
	ID          string    `json:"id"`
	TenantID    string    `json:"tenant_id"`
	CustomerID  string    `json:"customer_id,omitempty"` // Vazio quando o tomador não é identificado
	Series      string    `json:"series"`
	Competence  time.Time `json:"competence"`
	Description string    `json:"description,omitempty"`

	ServiceValue decimal.Decimal `json:"service_value"`
	Deductions   decimal.Decimal `json:"deductions"`
	Withheld     Withheld        `json:"withheld"`
	ISSWithheld  bool            `json:"iss_withheld"`
	Items        []Item          `json:"items"`

	Status           Status     `json:"status"`
	Number           string     `json:"number,omitempty"`
	VerificationCode string     `json:"verification_code,omitempty"`
	DPSID            string     `json:"dps_id,omitempty"`
	ReceiptNumber    string     `json:"receipt_number,omitempty"`
	AccessKeyDPS     string     `json:"access_key_dps,omitempty"`
	AccessKeyNFSe    string     `json:"access_key_nfse,omitempty"`
	ProviderResponse string     `json:"-"`
	PDFPath          string     `json:"pdf_path,omitempty"`
	RejectionReason  string     `json:"rejection_reason,omitempty"`
	CancelReason     string     `json:"cancel_reason,omitempty"`
	SubmittedAt      *time.Time `json:"submitted_at,omitempty"`
	AuthorizedAt     *time.Time `json:"authorized_at,omitempty"`
	CancelledAt      *time.Time `json:"cancelled_at,omitempty"`
	CreatedAt        time.Time  `json:"created_at"`
	UpdatedAt        time.Time  `json:"updated_at"`
}

// NewInvoice cria uma nova nota em rascunho. Quando o valor do serviço não é informado,
// ele é a soma dos itens.
func NewInvoice(tenantID, customerID, series string, competence time.Time, items []Item) (*Invoice, error) {
	if tenantID == "" {
		return nil, ErrEmptyTenantID
	}
	if series == "" {
		series = "1"
	}
	if competence.IsZero() {
		competence = time.Now()
	}

	now := time.Now()
	inv := &Invoice{
		ID:         uuid.New().String(),
		TenantID:   tenantID,
		CustomerID: customerID,
		Series:     series,
		Competence: competence,
		Status:     StatusDraft,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if err := inv.SetItems(items); err != nil {
		return nil, err
	}
	inv.ServiceValue = inv.ItemsTotal()
	return inv, nil
}

// SetItems substitui os itens de uma nota em rascunho
func (inv *Invoice) SetItems(items []Item) error {
	if !inv.IsEditable() {
		return ErrNotEditable
	}
	if len(items) == 0 {
		return ErrNoItems
	}
	for idx := range items {
		if err := items[idx].Validate(); err != nil {
			return err
		}
		if items[idx].ID == "" {
			items[idx].ID = uuid.New().String()
		}
	}
	inv.Items = items
	inv.UpdatedAt = time.Now()
	return nil
}

// ItemsTotal soma o total de todos os itens
func (inv *Invoice) ItemsTotal() decimal.Decimal {
	total := decimal.Zero
	for _, it := range inv.Items {
		total = total.Add(it.Total())
	}
	return total
}

// TaxRate retorna a alíquota do primeiro item, usada no bloco de tributação
func (inv *Invoice) TaxRate() decimal.Decimal {
	if len(inv.Items) == 0 {
		return decimal.Zero
	}
	return inv.Items[0].TaxRate
}

// ISSValue calcula o ISS: valor do serviço × alíquota / 100
func (inv *Invoice) ISSValue() decimal.Decimal {
	return inv.ServiceValue.Mul(inv.TaxRate()).Div(decimal.NewFromInt(100)).Round(2)
}

// NetValue é o valor líquido: serviço menos as retenções
func (inv *Invoice) NetValue() decimal.Decimal {
	return inv.ServiceValue.Sub(inv.Withheld.Total(inv.ISSWithheld)).Round(2)
}

// Validate verifica os dados da nota antes de qualquer chamada de rede
func (inv *Invoice) Validate() error {
	if inv.TenantID == "" {
		return errs.NewValidationError("tenant_id", "tenant é obrigatório")
	}
	if len(inv.Items) == 0 {
		return errs.NewValidationError("items", ErrNoItems.Error())
	}
	for _, it := range inv.Items {
		if err := it.Validate(); err != nil {
			return err
		}
	}
	if !inv.ServiceValue.IsPositive() {
		return errs.NewValidationError("service_value", "valor do serviço deve ser positivo")
	}
	if inv.Deductions.IsNegative() {
		return errs.NewValidationError("deductions", "deduções não podem ser negativas")
	}
	if inv.Deductions.GreaterThan(inv.ServiceValue) {
		return errs.NewValidationError("deductions", "deduções maiores que o valor do serviço")
	}
	return nil
}

// IsEditable verifica se a nota ainda pode ser alterada ou excluída
func (inv *Invoice) IsEditable() bool {
	return inv.Status == StatusDraft || inv.Status == ""
}

// HasIdentifiedCustomer indica se a nota tem tomador identificado
func (inv *Invoice) HasIdentifiedCustomer() bool {
	return inv.CustomerID != ""
}

// Copy cria um novo rascunho com o mesmo conteúdo e sem nenhum campo de ciclo de vida
func (inv *Invoice) Copy() *Invoice {
	now := time.Now()
	items := make([]Item, len(inv.Items))
	for i, it := range inv.Items {
		it.ID = uuid.New().String()
		items[i] = it
	}
	return &Invoice{
		ID:           uuid.New().String(),
		TenantID:     inv.TenantID,
		CustomerID:   inv.CustomerID,
		Series:       inv.Series,
		Competence:   inv.Competence,
		Description:  inv.Description,
		ServiceValue: inv.ServiceValue,
		Deductions:   inv.Deductions,
		Withheld:     inv.Withheld,
		ISSWithheld:  inv.ISSWithheld,
		Items:        items,
		Status:       StatusDraft,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
}
