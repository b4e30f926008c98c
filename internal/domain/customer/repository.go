package customer

import (
	"context"
)

// Repository define a interface para operações de repositório de clientes
type Repository interface {
	// Create cria um novo cliente
	Create(ctx context.Context, c *Customer) error

	// FindByID busca um cliente do tenant pelo ID
	FindByID(ctx context.Context, tenantID, id string) (*Customer, error)

	// FindByDocument busca um cliente pelo documento (CPF/CNPJ)
	FindByDocument(ctx context.Context, tenantID, document string) (*Customer, error)

	// List lista os clientes de um tenant com paginação
	List(ctx context.Context, tenantID string, limit, offset int) ([]*Customer, error)

	// Update atualiza os dados de um cliente existente
	Update(ctx context.Context, c *Customer) error

	// Delete remove um cliente
	Delete(ctx context.Context, tenantID, id string) error
}
