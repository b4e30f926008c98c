package tenant

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/hugohenrick/nfse-emissor/internal/domain/fiscal"
	"github.com/hugohenrick/nfse-emissor/pkg/vault"
)

var (
	ErrEmptyID            = errors.New("id não pode ser vazio")
	ErrEmptyName          = errors.New("nome não pode ser vazio")
	ErrEmptyDocument      = errors.New("documento não pode ser vazio")
	ErrInvalidDocument    = errors.New("documento inválido")
	ErrInvalidTenantID    = errors.New("ID de tenant inválido")
	ErrTenantNotActive    = errors.New("tenant não está ativo")
	ErrDuplicateDocument  = errors.New("já existe um tenant com este documento")
	ErrInvalidMunicipal   = errors.New("código do município deve ter 7 dígitos")
	ErrInvalidProvider    = errors.New("provedor de emissão inválido")
	ErrInvalidSpecialCode = errors.New("regime especial de tributação deve estar entre 0 e 6")
)

var municipalCodePattern = regexp.MustCompile(`^[0-9]{7}$`)

// Status representa o estado do tenant
type Status string

const (
	StatusActive   Status = "active"
	StatusInactive Status = "inactive"
	StatusBlocked  Status = "blocked"
)

// Provider identifica o provedor que emite as notas do tenant
type Provider string

const (
	ProviderNational    Provider = "national"
	ProviderThirdPartyB Provider = "thirdparty_b"
)

// Valid verifica se o provedor é conhecido
func (p Provider) Valid() bool {
	return p == ProviderNational || p == ProviderThirdPartyB
}

// TaxRegime agrupa os indicadores de regime tributário usados na DPS
type TaxRegime struct {
	SimplesNacional bool `json:"simples_nacional"`
	MEI             bool `json:"mei"`
	// SpecialTaxation é o código do regime especial de tributação (0 a 6)
	SpecialTaxation int  `json:"special_taxation"`
	FiscalIncentive bool `json:"fiscal_incentive"`
}

// Tenant representa uma empresa emissora no sistema multi-tenant
type Tenant struct {
	ID                    string                   `json:"id"`
	Name                  string                   `json:"name"`
	Document              string                   `json:"document"` // CNPJ da empresa
	Email                 string                   `json:"email"`
	Phone                 string                   `json:"phone"`
	Status                Status                   `json:"status"`
	Address               Address                  `json:"address"`
	MunicipalCode         string                   `json:"municipal_code"` // Código IBGE do município
	MunicipalRegistration string                   `json:"municipal_registration,omitempty"`
	Provider              Provider                 `json:"provider"`
	Environment           fiscal.FiscalEnvironment `json:"environment"`
	TaxRegime             TaxRegime                `json:"tax_regime"`

	// Segredos cifrados pelo cofre. Nunca são expostos ao serializar para JSON.
	CertificateData     string `json:"-"`
	CertificatePassword string `json:"-"`
	APIClientID         string `json:"-"`
	APIClientSecret     string `json:"-"`

	CertificateExpiresAt *time.Time `json:"certificate_expires_at,omitempty"`
	CreatedAt            time.Time  `json:"created_at"`
	UpdatedAt            time.Time  `json:"updated_at"`
}

// Credentials são os segredos decifrados, usados apenas dentro do pipeline de emissão
type Credentials struct {
	CertificateBase64   string
	CertificatePassword string
	ClientID            string
	ClientSecret        string
}

// String omite os segredos para que nunca apareçam em logs
func (c Credentials) String() string {
	return "tenant.Credentials{***}"
}

// NewTenant cria um novo tenant
func NewTenant(name, document, email, municipalCode string, provider Provider) (*Tenant, error) {
	if name == "" {
		return nil, ErrEmptyName
	}

	document = OnlyDigits(document)
	if document == "" {
		return nil, ErrEmptyDocument
	}
	if len(document) != 14 && len(document) != 11 {
		return nil, ErrInvalidDocument
	}

	if !municipalCodePattern.MatchString(municipalCode) {
		return nil, ErrInvalidMunicipal
	}

	if provider == "" {
		provider = ProviderNational
	}
	if !provider.Valid() {
		return nil, ErrInvalidProvider
	}

	now := time.Now()
	return &Tenant{
		ID:            uuid.New().String(),
		Name:          name,
		Document:      document,
		Email:         email,
		Status:        StatusActive,
		MunicipalCode: municipalCode,
		Provider:      provider,
		Environment:   fiscal.Homologation,
		CreatedAt:     now,
		UpdatedAt:     now,
	}, nil
}

// IsActive verifica se o tenant está ativo
func (t *Tenant) IsActive() bool {
	return t.Status == StatusActive
}

// Activate ativa o tenant
func (t *Tenant) Activate() {
	t.Status = StatusActive
	t.UpdatedAt = time.Now()
}

// Deactivate desativa o tenant
func (t *Tenant) Deactivate() {
	t.Status = StatusInactive
	t.UpdatedAt = time.Now()
}

// Block bloqueia o tenant
func (t *Tenant) Block() {
	t.Status = StatusBlocked
	t.UpdatedAt = time.Now()
}

// Update atualiza os dados cadastrais do tenant
func (t *Tenant) Update(name, email, phone string) error {
	if name == "" {
		return ErrEmptyName
	}

	t.Name = name
	t.Email = email
	t.Phone = phone
	t.UpdatedAt = time.Now()
	return nil
}

// UpdateFiscalProfile atualiza município, provedor, ambiente e regime tributário
func (t *Tenant) UpdateFiscalProfile(municipalCode, municipalRegistration string, provider Provider, env fiscal.FiscalEnvironment, regime TaxRegime) error {
	if !municipalCodePattern.MatchString(municipalCode) {
		return ErrInvalidMunicipal
	}
	if !provider.Valid() {
		return ErrInvalidProvider
	}
	if regime.SpecialTaxation < 0 || regime.SpecialTaxation > 6 {
		return ErrInvalidSpecialCode
	}
	if env != fiscal.Production && env != fiscal.Homologation {
		return fmt.Errorf("ambiente inválido: %s", env)
	}

	t.MunicipalCode = municipalCode
	t.MunicipalRegistration = municipalRegistration
	t.Provider = provider
	t.Environment = env
	t.TaxRegime = regime
	t.UpdatedAt = time.Now()
	return nil
}

// SetCertificate cifra e armazena o certificado (Base64 do .pfx) e sua senha
func (t *Tenant) SetCertificate(v *vault.Vault, blobB64, password string, expiresAt time.Time) error {
	if strings.TrimSpace(blobB64) == "" {
		return errors.New("certificado não pode estar vazio")
	}

	data, err := v.Encrypt(blobB64)
	if err != nil {
		return fmt.Errorf("falha ao cifrar certificado: %w", err)
	}
	pass, err := v.Encrypt(password)
	if err != nil {
		return fmt.Errorf("falha ao cifrar senha do certificado: %w", err)
	}

	t.CertificateData = data
	t.CertificatePassword = pass
	t.CertificateExpiresAt = &expiresAt
	t.UpdatedAt = time.Now()
	return nil
}

// SetAPICredentials cifra e armazena as credenciais de API do provedor
func (t *Tenant) SetAPICredentials(v *vault.Vault, clientID, clientSecret string) error {
	id, err := v.EncryptIfNotEmpty(clientID)
	if err != nil {
		return fmt.Errorf("falha ao cifrar client id: %w", err)
	}
	secret, err := v.EncryptIfNotEmpty(clientSecret)
	if err != nil {
		return fmt.Errorf("falha ao cifrar client secret: %w", err)
	}

	t.APIClientID = id
	t.APIClientSecret = secret
	t.UpdatedAt = time.Now()
	return nil
}

// HasCertificate verifica se há certificado cadastrado
func (t *Tenant) HasCertificate() bool {
	return t.CertificateData != ""
}

// Credentials decifra os segredos do tenant
func (t *Tenant) Credentials(v *vault.Vault) (*Credentials, error) {
	blob, err := v.DecryptIfNotEmpty(t.CertificateData)
	if err != nil {
		return nil, fmt.Errorf("falha ao decifrar certificado: %w", err)
	}
	pass, err := v.DecryptIfNotEmpty(t.CertificatePassword)
	if err != nil {
		return nil, fmt.Errorf("falha ao decifrar senha do certificado: %w", err)
	}
	id, err := v.DecryptIfNotEmpty(t.APIClientID)
	if err != nil {
		return nil, fmt.Errorf("falha ao decifrar client id: %w", err)
	}
	secret, err := v.DecryptIfNotEmpty(t.APIClientSecret)
	if err != nil {
		return nil, fmt.Errorf("falha ao decifrar client secret: %w", err)
	}

	return &Credentials{
		CertificateBase64:   blob,
		CertificatePassword: pass,
		ClientID:            id,
		ClientSecret:        secret,
	}, nil
}

// OnlyDigits remove tudo que não for dígito (pontuação de CNPJ/CPF)
func OnlyDigits(s string) string {
	var b strings.Builder
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}
