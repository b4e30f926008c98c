package dto

import (
	"time"

	"github.com/hugohenrick/nfse-emissor/internal/domain/customer"
)

// CustomerAddressRequest representa o endereço do tomador
type CustomerAddressRequest struct {
	Street     string `json:"street"`
	Number     string `json:"number"`
	Complement string `json:"complement"`
	District   string `json:"district"`
	City       string `json:"city"`
	State      string `json:"state"`
	ZipCode    string `json:"zip_code"`
	CityCode   string `json:"city_code" binding:"omitempty,len=7,numeric"`
}

// CustomerRequest representa a estrutura de dados para criação/atualização de cliente
type CustomerRequest struct {
	Name     string                 `json:"name" binding:"required"`
	Document string                 `json:"document" binding:"required"`
	Email    string                 `json:"email" binding:"omitempty,email"`
	Phone    string                 `json:"phone"`
	Address  CustomerAddressRequest `json:"address"`
}

// ToAddress converte o endereço da requisição
func (r CustomerRequest) ToAddress() customer.Address {
	return customer.Address{
		Street:     r.Address.Street,
		Number:     r.Address.Number,
		Complement: r.Address.Complement,
		District:   r.Address.District,
		City:       r.Address.City,
		State:      r.Address.State,
		ZipCode:    r.Address.ZipCode,
		CityCode:   r.Address.CityCode,
	}
}

// CustomerResponse representa a estrutura de dados de resposta para cliente
type CustomerResponse struct {
	ID         string           `json:"id"`
	PersonType string           `json:"person_type"`
	Name       string           `json:"name"`
	Document   string           `json:"document"`
	Email      string           `json:"email,omitempty"`
	Phone      string           `json:"phone,omitempty"`
	Address    customer.Address `json:"address"`
	Status     string           `json:"status"`
	CreatedAt  time.Time        `json:"created_at"`
	UpdatedAt  time.Time        `json:"updated_at"`
}

// CustomerListResponse representa a resposta de listagem de clientes
type CustomerListResponse struct {
	Customers []CustomerResponse `json:"customers"`
	Page      int                `json:"page"`
	PageSize  int                `json:"page_size"`
}

// ToCustomerResponse converte um cliente para o formato de resposta
func ToCustomerResponse(c *customer.Customer) CustomerResponse {
	return CustomerResponse{
		ID:         c.ID,
		PersonType: string(c.PersonType),
		Name:       c.Name,
		Document:   c.Document,
		Email:      c.Email,
		Phone:      c.Phone,
		Address:    c.Address,
		Status:     string(c.Status),
		CreatedAt:  c.CreatedAt,
		UpdatedAt:  c.UpdatedAt,
	}
}

// ToCustomerListResponse converte uma lista de clientes para o formato de resposta
func ToCustomerListResponse(customers []*customer.Customer, page, pageSize int) CustomerListResponse {
	response := CustomerListResponse{
		Customers: make([]CustomerResponse, 0, len(customers)),
		Page:      page,
		PageSize:  pageSize,
	}
	for _, c := range customers {
		response.Customers = append(response.Customers, ToCustomerResponse(c))
	}
	return response
}
