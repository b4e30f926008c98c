// Package dps gera o XML da Declaração de Prestação de Serviço a partir da nota.
package dps

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/beevik/etree"
	"github.com/shopspring/decimal"

	"github.com/hugohenrick/nfse-emissor/internal/domain/customer"
	"github.com/hugohenrick/nfse-emissor/internal/domain/invoice"
	"github.com/hugohenrick/nfse-emissor/internal/domain/tenant"
	"github.com/hugohenrick/nfse-emissor/pkg/errs"
)

const (
	// Namespace do leiaute nacional da NFSe
	Namespace = "http://www.sped.fazenda.gov.br/nfse"
	// Version é a versão do leiaute gerado
	Version = "1.00"

	serviceCodeWidth = 6
	seriesWidth      = 5
	dpsNumberWidth   = 15
	idTimeLayout     = "20060102150405"
	// Horário de Brasília, usado em dhEmi
	emissionLayout = "2006-01-02T15:04:05-07:00"
)

// Regimes do Simples Nacional (opSimpNac)
const (
	SimplesNotOpting = "1"
	SimplesMEI       = "2"
	SimplesMEEPP     = "3"
)

var (
	municipalCodePattern = regexp.MustCompile(`^[0-9]{7}$`)
	brt                  = time.FixedZone("BRT", -3*60*60)
)

// Document é a DPS gerada, antes da assinatura
type Document struct {
	ID  string
	XML []byte
}

// Generator gera documentos DPS com ordem de elementos determinística
type Generator struct {
	Clock      func() time.Time
	AppVersion string
	// ForceMEI classifica todo prestador como MEI, independente do regime cadastrado.
	// Reproduz o comportamento antigo e fica desligado por padrão.
	ForceMEI bool
}

// NewGenerator cria uma nova instância de Generator
func NewGenerator(appVersion string, forceMEI bool) *Generator {
	return &Generator{Clock: time.Now, AppVersion: appVersion, ForceMEI: forceMEI}
}

// Generate monta a DPS. O tomador é opcional: nil gera a nota sem o bloco toma.
func (g *Generator) Generate(inv *invoice.Invoice, t *tenant.Tenant, tomador *customer.Customer) (*Document, error) {
	if err := g.validate(inv, t); err != nil {
		return nil, err
	}

	now := time.Now
	if g.Clock != nil {
		now = g.Clock
	}
	issuedAt := now().In(brt)
	id := DocumentID(issuedAt, t.Document, inv.Series, inv.Number)

	doc := etree.NewDocument()
	doc.CreateProcInst("xml", `version="1.0" encoding="UTF-8"`)

	root := doc.CreateElement("DPS")
	root.CreateAttr("xmlns", Namespace)
	root.CreateAttr("versao", Version)
	root.CreateAttr("Id", id)

	text(root, "tpAmb", t.Environment.TpAmb())
	text(root, "dhEmi", issuedAt.Format(emissionLayout))
	text(root, "verAplic", g.AppVersion)
	text(root, "serie", inv.Series)
	text(root, "nDPS", strings.TrimLeft(inv.Number, "0"))
	text(root, "dCompet", inv.Competence.Format("2006-01"))

	prest := root.CreateElement("prest")
	text(prest, "CNPJ", tenant.OnlyDigits(t.Document))
	if t.MunicipalRegistration != "" {
		text(prest, "IM", t.MunicipalRegistration)
	}
	text(prest, "xNome", t.Name)
	text(prest, "cMun", t.MunicipalCode)

	if tomador != nil {
		toma := root.CreateElement("toma")
		if tomador.IsCompany() {
			text(toma, "CNPJ", tomador.Document)
		} else {
			text(toma, "CPF", tomador.Document)
		}
		text(toma, "xNome", tomador.Name)
		if tomador.Email != "" {
			text(toma, "email", tomador.Email)
		}
	}

	item := inv.Items[0]
	serv := root.CreateElement("serv")
	text(serv, "cTribNac", ServiceCode(item.Code))
	text(serv, "xDescServ", description(inv, item))
	text(serv, "cLocPrestacao", t.MunicipalCode)
	text(serv, "qtd", item.Quantity.StringFixed(4))
	text(serv, "vUnit", money(item.UnitValue))

	valores := root.CreateElement("valores")
	text(valores, "vServ", money(inv.ServiceValue))
	text(valores, "vDR", money(inv.Deductions))
	trib := valores.CreateElement("trib")
	text(trib, "pAliq", inv.TaxRate().StringFixed(2))
	text(trib, "vISSQN", money(inv.ISSValue()))
	text(trib, "tpRetISSQN", retentionType(inv.ISSWithheld))
	text(trib, "vRetIRRF", money(inv.Withheld.IR))
	text(trib, "vRetCSLL", money(inv.Withheld.CSLL))
	text(trib, "vRetCP", money(inv.Withheld.INSS))
	text(trib, "vPis", money(inv.Withheld.PIS))
	text(trib, "vCofins", money(inv.Withheld.COFINS))
	text(valores, "vLiq", money(inv.NetValue()))

	reg := root.CreateElement("regTrib")
	text(reg, "opSimpNac", g.simplesOption(t.TaxRegime))
	text(reg, "regEspTrib", fmt.Sprintf("%d", t.TaxRegime.SpecialTaxation))
	text(reg, "incentFisc", flag(t.TaxRegime.FiscalIncentive))

	out, err := doc.WriteToBytes()
	if err != nil {
		return nil, &errs.FormatError{Op: "serializar DPS", Err: err}
	}
	return &Document{ID: id, XML: out}, nil
}

func (g *Generator) validate(inv *invoice.Invoice, t *tenant.Tenant) error {
	if inv == nil {
		return errs.NewValidationError("invoice", "nota não informada")
	}
	if t == nil {
		return errs.NewValidationError("tenant", "empresa emissora não informada")
	}
	if err := inv.Validate(); err != nil {
		return err
	}
	if tenant.OnlyDigits(t.Document) == "" {
		return errs.NewValidationError("tenant.document", "CNPJ do prestador é obrigatório")
	}
	if !municipalCodePattern.MatchString(t.MunicipalCode) {
		return errs.NewValidationError("tenant.municipal_code", "código IBGE do município do prestador deve ter 7 dígitos")
	}
	return nil
}

func (g *Generator) simplesOption(r tenant.TaxRegime) string {
	switch {
	case g.ForceMEI, r.MEI:
		return SimplesMEI
	case !r.SimplesNacional:
		return SimplesNotOpting
	default:
		return SimplesMEEPP
	}
}

// DocumentID monta o identificador da DPS: "DPS" + CNPJ do prestador + série (5) +
// número da DPS (15) + data/hora. Série e número alocado distinguem notas do mesmo
// prestador; a data/hora distingue reenvios da mesma nota após reverter uma rejeição.
func DocumentID(at time.Time, taxID, series, number string) string {
	return "DPS" + tenant.OnlyDigits(taxID) +
		leftPad(tenant.OnlyDigits(series), seriesWidth) +
		leftPad(tenant.OnlyDigits(number), dpsNumberWidth) +
		at.Format(idTimeLayout)
}

func leftPad(s string, width int) string {
	if len(s) >= width {
		return s
	}
	return strings.Repeat("0", width-len(s)) + s
}

// ServiceCode normaliza o código de classificação: sem separadores e com zeros à esquerda
func ServiceCode(code string) string {
	return leftPad(tenant.OnlyDigits(code), serviceCodeWidth)
}

func description(inv *invoice.Invoice, item invoice.Item) string {
	if inv.Description != "" {
		return inv.Description
	}
	return item.Description
}

func money(v decimal.Decimal) string {
	return v.StringFixed(2)
}

func retentionType(withheld bool) string {
	if withheld {
		return "2"
	}
	return "1"
}

func flag(b bool) string {
	if b {
		return "1"
	}
	return "2"
}

func text(parent *etree.Element, tag, value string) *etree.Element {
	el := parent.CreateElement(tag)
	el.SetText(value)
	return el
}
