package fiscal

import (
	"context"
)

// SequenceRepository define o contador atômico de numeração por tenant
type SequenceRepository interface {
	// NextNumber incrementa e retorna o próximo número do tenant.
	// Na primeira chamada o contador parte do maior número já existente nas notas do tenant.
	NextNumber(ctx context.Context, tenantID string) (int64, error)
}
