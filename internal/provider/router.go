package provider

import (
	"context"

	"github.com/hugohenrick/nfse-emissor/internal/domain/tenant"
	"github.com/hugohenrick/nfse-emissor/pkg/logger"
)

// SelectionReader lê o provedor configurado para o tenant
type SelectionReader interface {
	ProviderOf(ctx context.Context, tenantID string) (tenant.Provider, error)
}

// Router escolhe o provedor de emissão de cada tenant
type Router struct {
	selection SelectionReader
	clients   map[tenant.Provider]Client
	fallback  Client
	log       logger.Logger
}

// NewRouter cria uma nova instância de Router. O provedor nacional é o padrão.
func NewRouter(selection SelectionReader, log logger.Logger, national Client, others ...Client) *Router {
	if log == nil {
		log = logger.NewNop()
	}
	clients := map[tenant.Provider]Client{tenant.Provider(national.Name()): national}
	for _, c := range others {
		clients[tenant.Provider(c.Name())] = c
	}
	return &Router{selection: selection, clients: clients, fallback: national, log: log}
}

// ResolveProvider retorna o cliente do provedor do tenant. Falha de leitura, provedor
// desconhecido ou não registrado resultam no provedor nacional.
func (r *Router) ResolveProvider(ctx context.Context, tenantID string) Client {
	p, err := r.selection.ProviderOf(ctx, tenantID)
	if err != nil {
		r.log.Warn("falha ao ler provedor do tenant, usando provedor nacional", "tenant_id", tenantID, "error", err)
		return r.fallback
	}
	c, ok := r.clients[p]
	if !ok {
		if p != "" {
			r.log.Warn("provedor não registrado, usando provedor nacional", "tenant_id", tenantID, "provider", string(p))
		}
		return r.fallback
	}
	return c
}
