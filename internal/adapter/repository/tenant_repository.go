package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/hugohenrick/nfse-emissor/internal/domain/fiscal"
	"github.com/hugohenrick/nfse-emissor/internal/domain/tenant"
	"github.com/hugohenrick/nfse-emissor/pkg/errs"
)

const tenantColumns = `id, name, document, email, phone, status, address, municipal_code,
	municipal_registration, provider, environment, simples_nacional, mei, special_taxation,
	fiscal_incentive, certificate_data, certificate_password, api_client_id, api_client_secret,
	certificate_expires_at, created_at, updated_at`

// TenantRepository implementa tenant.Repository sobre PostgreSQL.
// Os segredos chegam cifrados pelo cofre e são gravados como estão.
type TenantRepository struct {
	db PgxPool
}

// NewTenantRepository cria uma nova instância de TenantRepository
func NewTenantRepository(db PgxPool) *TenantRepository {
	return &TenantRepository{db: db}
}

// Create implementa tenant.Repository.Create
func (r *TenantRepository) Create(ctx context.Context, t *tenant.Tenant) error {
	address, err := json.Marshal(t.Address)
	if err != nil {
		return fmt.Errorf("falha ao converter endereço para JSON: %w", err)
	}

	_, err = r.db.Exec(ctx,
		`INSERT INTO tenants (`+tenantColumns+`) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14,
			$15, $16, $17, $18, $19, $20, $21, $22
		)`,
		t.ID, t.Name, t.Document, t.Email, t.Phone, string(t.Status), address, t.MunicipalCode,
		t.MunicipalRegistration, string(t.Provider), string(t.Environment), t.TaxRegime.SimplesNacional,
		t.TaxRegime.MEI, t.TaxRegime.SpecialTaxation, t.TaxRegime.FiscalIncentive,
		t.CertificateData, t.CertificatePassword, t.APIClientID, t.APIClientSecret,
		t.CertificateExpiresAt, t.CreatedAt, t.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return &errs.ConflictError{Resource: "tenant", Message: tenant.ErrDuplicateDocument.Error()}
		}
		return fmt.Errorf("falha ao criar tenant: %w", err)
	}
	return nil
}

// FindByID implementa tenant.Repository.FindByID
func (r *TenantRepository) FindByID(ctx context.Context, id string) (*tenant.Tenant, error) {
	row := r.db.QueryRow(ctx, `SELECT `+tenantColumns+` FROM tenants WHERE id = $1`, id)
	t, err := scanTenant(row)
	if err != nil {
		return nil, notFound(err, "tenant")
	}
	return t, nil
}

// FindByDocument implementa tenant.Repository.FindByDocument
func (r *TenantRepository) FindByDocument(ctx context.Context, document string) (*tenant.Tenant, error) {
	row := r.db.QueryRow(ctx, `SELECT `+tenantColumns+` FROM tenants WHERE document = $1`, document)
	t, err := scanTenant(row)
	if err != nil {
		return nil, notFound(err, "tenant")
	}
	return t, nil
}

// List implementa tenant.Repository.List
func (r *TenantRepository) List(ctx context.Context, limit, offset int) ([]*tenant.Tenant, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := r.db.Query(ctx,
		`SELECT `+tenantColumns+` FROM tenants ORDER BY name LIMIT $1 OFFSET $2`, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("falha ao listar tenants: %w", err)
	}
	defer rows.Close()

	var tenants []*tenant.Tenant
	for rows.Next() {
		t, err := scanTenant(rows)
		if err != nil {
			return nil, fmt.Errorf("falha ao ler tenant: %w", err)
		}
		tenants = append(tenants, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("falha ao iterar tenants: %w", err)
	}
	return tenants, nil
}

// Update implementa tenant.Repository.Update
func (r *TenantRepository) Update(ctx context.Context, t *tenant.Tenant) error {
	address, err := json.Marshal(t.Address)
	if err != nil {
		return fmt.Errorf("falha ao converter endereço para JSON: %w", err)
	}
	t.UpdatedAt = time.Now()

	tag, err := r.db.Exec(ctx,
		`UPDATE tenants SET
			name = $2, email = $3, phone = $4, status = $5, address = $6, municipal_code = $7,
			municipal_registration = $8, provider = $9, environment = $10, simples_nacional = $11,
			mei = $12, special_taxation = $13, fiscal_incentive = $14, certificate_data = $15,
			certificate_password = $16, api_client_id = $17, api_client_secret = $18,
			certificate_expires_at = $19, updated_at = $20
		WHERE id = $1`,
		t.ID, t.Name, t.Email, t.Phone, string(t.Status), address, t.MunicipalCode,
		t.MunicipalRegistration, string(t.Provider), string(t.Environment), t.TaxRegime.SimplesNacional,
		t.TaxRegime.MEI, t.TaxRegime.SpecialTaxation, t.TaxRegime.FiscalIncentive,
		t.CertificateData, t.CertificatePassword, t.APIClientID, t.APIClientSecret,
		t.CertificateExpiresAt, t.UpdatedAt)
	if err != nil {
		return fmt.Errorf("falha ao atualizar tenant: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("tenant: %w", errs.ErrNotFound)
	}
	return nil
}

// UpdateStatus implementa tenant.Repository.UpdateStatus
func (r *TenantRepository) UpdateStatus(ctx context.Context, id string, status tenant.Status) error {
	tag, err := r.db.Exec(ctx,
		`UPDATE tenants SET status = $2, updated_at = $3 WHERE id = $1`,
		id, string(status), time.Now())
	if err != nil {
		return fmt.Errorf("falha ao atualizar status do tenant: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("tenant: %w", errs.ErrNotFound)
	}
	return nil
}

// ProviderOf implementa tenant.Repository.ProviderOf
func (r *TenantRepository) ProviderOf(ctx context.Context, id string) (tenant.Provider, error) {
	var provider string
	err := r.db.QueryRow(ctx, `SELECT provider FROM tenants WHERE id = $1`, id).Scan(&provider)
	if err != nil {
		return "", notFound(err, "tenant")
	}
	return tenant.Provider(provider), nil
}

// Exists implementa tenant.Repository.Exists
func (r *TenantRepository) Exists(ctx context.Context, id string) (bool, error) {
	var exists bool
	err := r.db.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM tenants WHERE id = $1)`, id).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("falha ao verificar existência do tenant: %w", err)
	}
	return exists, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanTenant(row scanner) (*tenant.Tenant, error) {
	var (
		t                             tenant.Tenant
		status, provider, environment string
		address                       []byte
	)
	err := row.Scan(
		&t.ID, &t.Name, &t.Document, &t.Email, &t.Phone, &status, &address, &t.MunicipalCode,
		&t.MunicipalRegistration, &provider, &environment, &t.TaxRegime.SimplesNacional,
		&t.TaxRegime.MEI, &t.TaxRegime.SpecialTaxation, &t.TaxRegime.FiscalIncentive,
		&t.CertificateData, &t.CertificatePassword, &t.APIClientID, &t.APIClientSecret,
		&t.CertificateExpiresAt, &t.CreatedAt, &t.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if len(address) > 0 {
		if err := json.Unmarshal(address, &t.Address); err != nil {
			return nil, fmt.Errorf("falha ao converter endereço do JSON: %w", err)
		}
	}
	t.Status = tenant.Status(status)
	t.Provider = tenant.Provider(provider)
	t.Environment = fiscal.FiscalEnvironment(environment)
	return &t, nil
}
