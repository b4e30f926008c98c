package tenant

import "errors"

// Erros comuns relacionados a operações de tenant
var (
	// ErrTenantNotSpecified ocorre quando o cabeçalho tenant-id não é enviado
	ErrTenantNotSpecified = errors.New("o cabeçalho 'tenant-id' é obrigatório")

	// ErrTenantNotActive ocorre quando o tenant não existe ou não está ativo
	ErrTenantNotActive = errors.New("o tenant informado não existe ou está inativo")
)
