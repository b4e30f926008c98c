package repository

import (
	"context"
	"fmt"
	"time"
)

// O primeiro uso semeia o contador com o maior número numérico já gravado nas notas do tenant.
// O conflito em tenant_id serializa chamadas concorrentes na própria linha do contador.
const nextNumberSQL = `INSERT INTO nfse_sequences (tenant_id, last_number, updated_at)
	VALUES ($1, (
		SELECT COALESCE(MAX(number::BIGINT), 0) + 1 FROM invoices
		WHERE tenant_id = $1 AND number ~ '^[0-9]{1,15}$'
	), $2)
	ON CONFLICT (tenant_id) DO UPDATE SET
		last_number = nfse_sequences.last_number + 1,
		updated_at = EXCLUDED.updated_at
	RETURNING last_number`

// SequenceRepository implementa fiscal.SequenceRepository
type SequenceRepository struct {
	db PgxPool
}

// NewSequenceRepository cria uma nova instância de SequenceRepository
func NewSequenceRepository(db PgxPool) *SequenceRepository {
	return &SequenceRepository{db: db}
}

// NextNumber implementa fiscal.SequenceRepository.NextNumber
func (r *SequenceRepository) NextNumber(ctx context.Context, tenantID string) (int64, error) {
	var next int64
	if err := r.db.QueryRow(ctx, nextNumberSQL, tenantID, time.Now()).Scan(&next); err != nil {
		return 0, fmt.Errorf("falha ao incrementar numeração da NFSe: %w", err)
	}
	return next, nil
}
