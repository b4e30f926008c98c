package route

import (
	"github.com/gin-gonic/gin"

	"github.com/hugohenrick/nfse-emissor/internal/adapter/api/controller"
)

// SetupTenantRoutes configura as rotas para o módulo de tenants
func SetupTenantRoutes(router *gin.RouterGroup, tenantController *controller.TenantController) {
	tenantRouter := router.Group("/tenants")
	{
		tenantRouter.POST("", tenantController.Create)
		tenantRouter.GET("", tenantController.List)
		tenantRouter.GET("/:id", tenantController.GetByID)
		tenantRouter.PUT("/:id", tenantController.Update)
		tenantRouter.PATCH("/:id/status", tenantController.UpdateStatus)

		// Segredos usados na emissão
		tenantRouter.PUT("/:id/certificate", tenantController.UploadCertificate)
		tenantRouter.PUT("/:id/api-credentials", tenantController.SetAPICredentials)
	}
}
