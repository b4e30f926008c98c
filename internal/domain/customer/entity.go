package customer

import (
	"errors"
	"net/mail"
	"strings"
	"time"

	"github.com/google/uuid"
)

var (
	ErrEmptyName       = errors.New("nome não pode ser vazio")
	ErrEmptyDocument   = errors.New("documento não pode ser vazio")
	ErrInvalidDocument = errors.New("documento inválido")
	ErrInvalidEmail    = errors.New("email inválido")
)

// PersonType define o tipo de pessoa (física ou jurídica)
type PersonType string

const (
	PersonTypePF PersonType = "PF" // Pessoa Física
	PersonTypePJ PersonType = "PJ" // Pessoa Jurídica
)

// Status representa o estado do cliente
type Status string

const (
	StatusActive   Status = "active"
	StatusInactive Status = "inactive"
)

// Address representa o endereço do tomador
type Address struct {
	Street     string `json:"street"`     // Logradouro
	Number     string `json:"number"`     // Número
	Complement string `json:"complement"` // Complemento
	District   string `json:"district"`   // Bairro
	City       string `json:"city"`       // Cidade
	State      string `json:"state"`      // Estado
	ZipCode    string `json:"zip_code"`   // CEP
	CityCode   string `json:"city_code"`  // Código IBGE da Cidade
}

// Customer representa o tomador do serviço
type Customer struct {
	ID         string     `json:"id"`
	TenantID   string     `json:"tenant_id"`
	PersonType PersonType `json:"person_type"`
	Name       string     `json:"name"`     // Nome/Razão Social
	Document   string     `json:"document"` // CPF/CNPJ, somente dígitos
	Email      string     `json:"email"`
	Phone      string     `json:"phone"`
	Address    Address    `json:"address"`
	Status     Status     `json:"status"`
	CreatedAt  time.Time  `json:"created_at"`
	UpdatedAt  time.Time  `json:"updated_at"`
}

// NewCustomer cria um novo cliente. O tipo de pessoa é deduzido do tamanho do documento.
func NewCustomer(tenantID, name, document, email string) (*Customer, error) {
	if name == "" {
		return nil, ErrEmptyName
	}

	document = onlyDigits(document)
	if document == "" {
		return nil, ErrEmptyDocument
	}

	var personType PersonType
	switch len(document) {
	case 11:
		personType = PersonTypePF
	case 14:
		personType = PersonTypePJ
	default:
		return nil, ErrInvalidDocument
	}

	if email != "" {
		if _, err := mail.ParseAddress(email); err != nil {
			return nil, ErrInvalidEmail
		}
	}

	now := time.Now()
	return &Customer{
		ID:         uuid.New().String(),
		TenantID:   tenantID,
		PersonType: personType,
		Name:       name,
		Document:   document,
		Email:      email,
		Status:     StatusActive,
		CreatedAt:  now,
		UpdatedAt:  now,
	}, nil
}

// IsActive verifica se o cliente está ativo
func (c *Customer) IsActive() bool {
	return c.Status == StatusActive
}

// IsCompany verifica se o tomador é pessoa jurídica
func (c *Customer) IsCompany() bool {
	return c.PersonType == PersonTypePJ
}

// Update atualiza os dados do cliente
func (c *Customer) Update(name, email, phone string, address Address) error {
	if name == "" {
		return ErrEmptyName
	}
	if email != "" {
		if _, err := mail.ParseAddress(email); err != nil {
			return ErrInvalidEmail
		}
	}

	c.Name = name
	c.Email = email
	c.Phone = phone
	c.Address = address
	c.UpdatedAt = time.Now()
	return nil
}

func onlyDigits(s string) string {
	var b strings.Builder
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}
