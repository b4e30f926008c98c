package fiscal

import (
	"context"
	"errors"
	"fmt"

	"github.com/hugohenrick/nfse-emissor/internal/lock"
)

// Allocator produz o número sequencial da nota, serializado por tenant
type Allocator struct {
	Repo   SequenceRepository
	Locker lock.Locker
}

// NewAllocator cria uma nova instância de Allocator
func NewAllocator(repo SequenceRepository, locker lock.Locker) *Allocator {
	if locker == nil {
		locker = lock.NewMemoryLocker()
	}
	return &Allocator{Repo: repo, Locker: locker}
}

// NextNumber retorna o próximo número já formatado
func (a *Allocator) NextNumber(ctx context.Context, tenantID string) (string, error) {
	if tenantID == "" {
		return "", errors.New("tenant ID é obrigatório")
	}

	unlock, err := a.Locker.Lock(ctx, "sequence:"+tenantID)
	if err != nil {
		return "", fmt.Errorf("falha ao obter lock de numeração: %w", err)
	}
	defer unlock()

	n, err := a.Repo.NextNumber(ctx, tenantID)
	if err != nil {
		return "", fmt.Errorf("falha ao alocar número: %w", err)
	}
	return FormatNumber(n), nil
}
