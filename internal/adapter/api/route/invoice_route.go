package route

import (
	"github.com/gin-gonic/gin"

	"github.com/hugohenrick/nfse-emissor/internal/adapter/api/controller"
)

// RegisterInvoiceRoutes registra as rotas de notas e do ciclo de emissão
func RegisterInvoiceRoutes(r *gin.RouterGroup, invoiceController *controller.InvoiceController) {
	invoices := r.Group("/invoices")
	{
		invoices.POST("", invoiceController.Create)
		invoices.GET("", invoiceController.List)
		invoices.GET("/:id", invoiceController.Get)
		invoices.PUT("/:id", invoiceController.Update)
		invoices.DELETE("/:id", invoiceController.Delete)

		invoices.POST("/:id/submit", invoiceController.Submit)
		invoices.POST("/:id/emit", invoiceController.Emit)
		invoices.POST("/:id/status", invoiceController.Poll)
		invoices.GET("/:id/pdf", invoiceController.PDF)
		invoices.POST("/:id/cancel", invoiceController.Cancel)
		invoices.POST("/:id/revert", invoiceController.Revert)
		invoices.POST("/:id/copy", invoiceController.Copy)
		invoices.POST("/:id/email", invoiceController.Email)
	}
}
