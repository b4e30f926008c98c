package tenant

import (
	"context"

	"github.com/gin-gonic/gin"
)

// ginKey é a chave gravada no gin.Context pelo TenantMiddleware
const ginKey = "tenant_id"

type tenantKey struct{}

// WithTenantID devolve uma cópia de ctx com o tenant da requisição
func WithTenantID(ctx context.Context, tenantID string) context.Context {
	return context.WithValue(ctx, tenantKey{}, tenantID)
}

// TenantIDFromContext lê o tenant gravado por WithTenantID. Vazio quando ausente.
func TenantIDFromContext(ctx context.Context) string {
	tenantID, _ := ctx.Value(tenantKey{}).(string)
	return tenantID
}

// GetTenantID retorna o tenant validado pelo TenantMiddleware. Sem valor no gin.Context,
// usa o contexto da requisição.
func GetTenantID(c *gin.Context) string {
	if tenantID := c.GetString(ginKey); tenantID != "" {
		return tenantID
	}
	if c.Request == nil {
		return ""
	}
	return TenantIDFromContext(c.Request.Context())
}
