package repository

import (
	"context"
	"errors"

	"github.com/hugohenrick/nfse-emissor/internal/domain/tenant"
	"github.com/hugohenrick/nfse-emissor/pkg/errs"
)

// TenantValidator verifica se o tenant da requisição existe e está ativo
type TenantValidator struct {
	repository tenant.Repository
}

// NewTenantValidator cria uma nova instância de TenantValidator
func NewTenantValidator(repository tenant.Repository) *TenantValidator {
	return &TenantValidator{
		repository: repository,
	}
}

// ValidateTenant verifica se um tenant existe e está ativo
func (v *TenantValidator) ValidateTenant(ctx context.Context, tenantID string) (bool, error) {
	t, err := v.repository.FindByID(ctx, tenantID)
	if err != nil {
		if errors.Is(err, errs.ErrNotFound) {
			return false, nil
		}
		return false, err
	}
	return t.IsActive(), nil
}
