package invoice

import (
	"context"
)

// Filter define os filtros de listagem de notas
type Filter struct {
	Status Status
	Limit  int
	Offset int
}

// Repository define a interface para operações de repositório de notas
type Repository interface {
	// Create cria uma nova nota com seus itens
	Create(ctx context.Context, inv *Invoice) error

	// FindByID busca uma nota do tenant pelo ID, com os itens
	FindByID(ctx context.Context, tenantID, id string) (*Invoice, error)

	// List lista as notas de um tenant
	List(ctx context.Context, tenantID string, f Filter) ([]*Invoice, error)

	// Update grava o rascunho e os campos de ciclo de vida
	Update(ctx context.Context, inv *Invoice) error

	// Delete remove uma nota em rascunho
	Delete(ctx context.Context, tenantID, id string) error

	// ListByStatus lista notas de todos os tenants em uma situação (usado pela reconsulta em lote)
	ListByStatus(ctx context.Context, status Status, limit int) ([]*Invoice, error)
}
