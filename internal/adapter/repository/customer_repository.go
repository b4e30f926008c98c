package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/hugohenrick/nfse-emissor/internal/domain/customer"
	"github.com/hugohenrick/nfse-emissor/pkg/errs"
)

const customerColumns = `id, tenant_id, person_type, name, document, email, phone, address,
	status, created_at, updated_at`

// CustomerRepository implementa customer.Repository. Toda consulta é filtrada pelo tenant.
type CustomerRepository struct {
	db PgxPool
}

// NewCustomerRepository cria uma nova instância de CustomerRepository
func NewCustomerRepository(db PgxPool) *CustomerRepository {
	return &CustomerRepository{db: db}
}

// Create implementa customer.Repository.Create
func (r *CustomerRepository) Create(ctx context.Context, c *customer.Customer) error {
	address, err := json.Marshal(c.Address)
	if err != nil {
		return fmt.Errorf("falha ao converter endereço para JSON: %w", err)
	}

	_, err = r.db.Exec(ctx,
		`INSERT INTO customers (`+customerColumns+`) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		c.ID, c.TenantID, string(c.PersonType), c.Name, c.Document, c.Email, c.Phone, address,
		string(c.Status), c.CreatedAt, c.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return &errs.ConflictError{Resource: "cliente", Message: "cliente com mesmo documento já existe"}
		}
		return fmt.Errorf("falha ao criar cliente: %w", err)
	}
	return nil
}

// FindByID implementa customer.Repository.FindByID
func (r *CustomerRepository) FindByID(ctx context.Context, tenantID, id string) (*customer.Customer, error) {
	row := r.db.QueryRow(ctx,
		`SELECT `+customerColumns+` FROM customers WHERE tenant_id = $1 AND id = $2`, tenantID, id)
	c, err := scanCustomer(row)
	if err != nil {
		return nil, notFound(err, "cliente")
	}
	return c, nil
}

// FindByDocument implementa customer.Repository.FindByDocument
func (r *CustomerRepository) FindByDocument(ctx context.Context, tenantID, document string) (*customer.Customer, error) {
	row := r.db.QueryRow(ctx,
		`SELECT `+customerColumns+` FROM customers WHERE tenant_id = $1 AND document = $2`, tenantID, document)
	c, err := scanCustomer(row)
	if err != nil {
		return nil, notFound(err, "cliente")
	}
	return c, nil
}

// List implementa customer.Repository.List
func (r *CustomerRepository) List(ctx context.Context, tenantID string, limit, offset int) ([]*customer.Customer, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := r.db.Query(ctx,
		`SELECT `+customerColumns+` FROM customers WHERE tenant_id = $1 ORDER BY name LIMIT $2 OFFSET $3`,
		tenantID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("falha ao listar clientes: %w", err)
	}
	defer rows.Close()

	var customers []*customer.Customer
	for rows.Next() {
		c, err := scanCustomer(rows)
		if err != nil {
			return nil, fmt.Errorf("falha ao ler cliente: %w", err)
		}
		customers = append(customers, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("falha ao iterar clientes: %w", err)
	}
	return customers, nil
}

// Update implementa customer.Repository.Update
func (r *CustomerRepository) Update(ctx context.Context, c *customer.Customer) error {
	address, err := json.Marshal(c.Address)
	if err != nil {
		return fmt.Errorf("falha ao converter endereço para JSON: %w", err)
	}
	c.UpdatedAt = time.Now()

	tag, err := r.db.Exec(ctx,
		`UPDATE customers SET name = $3, email = $4, phone = $5, address = $6, status = $7, updated_at = $8
		WHERE tenant_id = $1 AND id = $2`,
		c.TenantID, c.ID, c.Name, c.Email, c.Phone, address, string(c.Status), c.UpdatedAt)
	if err != nil {
		return fmt.Errorf("falha ao atualizar cliente: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("cliente: %w", errs.ErrNotFound)
	}
	return nil
}

// Delete implementa customer.Repository.Delete
func (r *CustomerRepository) Delete(ctx context.Context, tenantID, id string) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM customers WHERE tenant_id = $1 AND id = $2`, tenantID, id)
	if err != nil {
		return fmt.Errorf("falha ao excluir cliente: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("cliente: %w", errs.ErrNotFound)
	}
	return nil
}

func scanCustomer(row scanner) (*customer.Customer, error) {
	var (
		c                  customer.Customer
		personType, status string
		address            []byte
	)
	err := row.Scan(&c.ID, &c.TenantID, &personType, &c.Name, &c.Document, &c.Email, &c.Phone,
		&address, &status, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if len(address) > 0 {
		if err := json.Unmarshal(address, &c.Address); err != nil {
			return nil, fmt.Errorf("falha ao converter endereço do JSON: %w", err)
		}
	}
	c.PersonType = customer.PersonType(personType)
	c.Status = customer.Status(status)
	return &c, nil
}
