package tenant

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/hugohenrick/nfse-emissor/internal/adapter/api/dto"
)

// HeaderName é o cabeçalho que identifica o tenant em cada requisição
const HeaderName = "tenant-id"

// TenantValidator define a interface para validação de tenant
type TenantValidator interface {
	ValidateTenant(ctx context.Context, tenantID string) (bool, error)
}

// TenantMiddleware cria um middleware para validação do tenant
func TenantMiddleware(validator TenantValidator) gin.HandlerFunc {
	return func(c *gin.Context) {
		tenantID := c.GetHeader(HeaderName)
		if tenantID == "" {
			c.AbortWithStatusJSON(http.StatusBadRequest, dto.NewErrorResponse(
				http.StatusBadRequest,
				"Tenant ID não fornecido",
				ErrTenantNotSpecified.Error(),
			))
			return
		}

		valid, err := validator.ValidateTenant(c.Request.Context(), tenantID)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusInternalServerError, dto.NewErrorResponse(
				http.StatusInternalServerError,
				"Erro ao validar tenant",
				err.Error(),
			))
			return
		}

		if !valid {
			c.AbortWithStatusJSON(http.StatusForbidden, dto.NewErrorResponse(
				http.StatusForbidden,
				"Tenant inválido",
				ErrTenantNotActive.Error(),
			))
			return
		}

		c.Set(ginKey, tenantID)
		c.Request = c.Request.WithContext(WithTenantID(c.Request.Context(), tenantID))

		c.Next()
	}
}
