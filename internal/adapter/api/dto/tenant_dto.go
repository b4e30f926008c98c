package dto

import (
	"time"

	"github.com/hugohenrick/nfse-emissor/internal/domain/fiscal"
	"github.com/hugohenrick/nfse-emissor/internal/domain/tenant"
)

// AddressRequest representa o endereço do prestador
type AddressRequest struct {
	Street     string `json:"street"`
	Number     string `json:"number"`
	Complement string `json:"complement"`
	District   string `json:"district"`
	City       string `json:"city"`
	State      string `json:"state"`
	ZipCode    string `json:"zip_code"`
}

// TaxRegimeRequest representa os indicadores de regime tributário
type TaxRegimeRequest struct {
	SimplesNacional bool `json:"simples_nacional"`
	MEI             bool `json:"mei"`
	SpecialTaxation int  `json:"special_taxation" binding:"min=0,max=6"`
	FiscalIncentive bool `json:"fiscal_incentive"`
}

// TenantRequest representa a estrutura de dados para criação/atualização de tenant
type TenantRequest struct {
	Name                  string           `json:"name" binding:"required"`
	Document              string           `json:"document" binding:"required"`
	Email                 string           `json:"email"`
	Phone                 string           `json:"phone"`
	MunicipalCode         string           `json:"municipal_code" binding:"required,len=7,numeric"`
	MunicipalRegistration string           `json:"municipal_registration"`
	Provider              string           `json:"provider" binding:"omitempty,oneof=national thirdparty_b" enums:"national,thirdparty_b"`
	Environment           string           `json:"environment" binding:"omitempty,oneof=production homologation" enums:"production,homologation"`
	TaxRegime             TaxRegimeRequest `json:"tax_regime"`
	Address               AddressRequest   `json:"address"`
}

// ToAddress converte o endereço da requisição
func (r TenantRequest) ToAddress() tenant.Address {
	return tenant.NewAddress(r.Address.Street, r.Address.Number, r.Address.Complement,
		r.Address.District, r.Address.City, r.Address.State, r.Address.ZipCode, "BR")
}

// ToTaxRegime converte o regime tributário da requisição
func (r TenantRequest) ToTaxRegime() tenant.TaxRegime {
	return tenant.TaxRegime{
		SimplesNacional: r.TaxRegime.SimplesNacional,
		MEI:             r.TaxRegime.MEI,
		SpecialTaxation: r.TaxRegime.SpecialTaxation,
		FiscalIncentive: r.TaxRegime.FiscalIncentive,
	}
}

// EnvironmentOrDefault retorna o ambiente informado ou homologação
func (r TenantRequest) EnvironmentOrDefault() fiscal.FiscalEnvironment {
	if r.Environment == "" {
		return fiscal.Homologation
	}
	return fiscal.FiscalEnvironment(r.Environment)
}

// TenantStatusRequest representa a mudança de status do tenant
type TenantStatusRequest struct {
	Status string `json:"status" binding:"required,oneof=active inactive blocked"`
}

// APICredentialsRequest representa as credenciais do provedor terceiro
type APICredentialsRequest struct {
	ClientID     string `json:"client_id"`
	ClientSecret string `json:"client_secret" binding:"required"`
}

// CertificateResponse descreve o certificado aceito, sem expor o conteúdo
type CertificateResponse struct {
	Subject   string    `json:"subject"`
	ExpiresAt time.Time `json:"expires_at"`
	Strategy  string    `json:"strategy"`
}

// TenantResponse representa a estrutura de dados de resposta para tenant
type TenantResponse struct {
	ID                    string           `json:"id"`
	Name                  string           `json:"name"`
	Document              string           `json:"document"`
	Email                 string           `json:"email"`
	Phone                 string           `json:"phone"`
	Status                string           `json:"status"`
	MunicipalCode         string           `json:"municipal_code"`
	MunicipalRegistration string           `json:"municipal_registration,omitempty"`
	Provider              string           `json:"provider"`
	Environment           string           `json:"environment"`
	TaxRegime             tenant.TaxRegime `json:"tax_regime"`
	Address               tenant.Address   `json:"address"`
	HasCertificate        bool             `json:"has_certificate"`
	HasAPICredentials     bool             `json:"has_api_credentials"`
	CertificateExpiresAt  *time.Time       `json:"certificate_expires_at,omitempty"`
	CreatedAt             time.Time        `json:"created_at"`
	UpdatedAt             time.Time        `json:"updated_at"`
}

// TenantListResponse representa a resposta de listagem de tenants
type TenantListResponse struct {
	Tenants  []TenantResponse `json:"tenants"`
	Page     int              `json:"page"`
	PageSize int              `json:"page_size"`
}

// ToTenantResponse converte um modelo de domínio em uma resposta DTO
func ToTenantResponse(t *tenant.Tenant) TenantResponse {
	return TenantResponse{
		ID:                    t.ID,
		Name:                  t.Name,
		Document:              t.Document,
		Email:                 t.Email,
		Phone:                 t.Phone,
		Status:                string(t.Status),
		MunicipalCode:         t.MunicipalCode,
		MunicipalRegistration: t.MunicipalRegistration,
		Provider:              string(t.Provider),
		Environment:           string(t.Environment),
		TaxRegime:             t.TaxRegime,
		Address:               t.Address,
		HasCertificate:        t.HasCertificate(),
		HasAPICredentials:     t.APIClientSecret != "",
		CertificateExpiresAt:  t.CertificateExpiresAt,
		CreatedAt:             t.CreatedAt,
		UpdatedAt:             t.UpdatedAt,
	}
}

// ToTenantListResponse converte uma lista de tenants para o formato de resposta
func ToTenantListResponse(tenants []*tenant.Tenant, page, pageSize int) TenantListResponse {
	response := TenantListResponse{
		Tenants:  make([]TenantResponse, 0, len(tenants)),
		Page:     page,
		PageSize: pageSize,
	}
	for _, t := range tenants {
		response.Tenants = append(response.Tenants, ToTenantResponse(t))
	}
	return response
}
