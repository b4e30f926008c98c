package controller

import (
	"context"
	"fmt"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/hugohenrick/nfse-emissor/internal/adapter/api/dto"
	"github.com/hugohenrick/nfse-emissor/internal/domain/customer"
	"github.com/hugohenrick/nfse-emissor/internal/domain/invoice"
	"github.com/hugohenrick/nfse-emissor/internal/emission"
	"github.com/hugohenrick/nfse-emissor/pkg/logger"
	"github.com/hugohenrick/nfse-emissor/pkg/tenant"
)

// EmissionService são as operações do pipeline de emissão usadas pela API
type EmissionService interface {
	Submit(ctx context.Context, tenantID, invoiceID string) (*invoice.Invoice, error)
	Emit(ctx context.Context, tenantID, invoiceID string) (*emission.Outcome, error)
	PollStatus(ctx context.Context, tenantID, invoiceID string) (*invoice.Invoice, error)
	RetrieveArtifact(ctx context.Context, tenantID, invoiceID string) (*invoice.Invoice, error)
	Cancel(ctx context.Context, tenantID, invoiceID, reason string) (*invoice.Invoice, error)
	Revert(ctx context.Context, tenantID, invoiceID string) (*invoice.Invoice, error)
	Copy(ctx context.Context, tenantID, invoiceID string) (*invoice.Invoice, error)
	DeleteDraft(ctx context.Context, tenantID, invoiceID string) error
	SendByEmail(ctx context.Context, tenantID, invoiceID, to string) error
}

// InvoiceController gerencia as requisições relacionadas a notas
type InvoiceController struct {
	invoiceRepo  invoice.Repository
	customerRepo customer.Repository
	service      EmissionService
	logger       logger.Logger
}

// NewInvoiceController cria uma nova instância de InvoiceController
func NewInvoiceController(invoiceRepo invoice.Repository, customerRepo customer.Repository, service EmissionService, log logger.Logger) *InvoiceController {
	return &InvoiceController{
		invoiceRepo:  invoiceRepo,
		customerRepo: customerRepo,
		service:      service,
		logger:       log,
	}
}

// Create cria uma nota em rascunho
// @Summary Criar rascunho
// @Tags invoices
// @Accept json
// @Produce json
// @Param tenant-id header string true "ID do tenant"
// @Param invoice body dto.InvoiceRequest true "Dados da nota"
// @Success 201 {object} dto.InvoiceResponse
// @Failure 400 {object} dto.ErrorResponse
// @Failure 404 {object} dto.ErrorResponse
// @Router /invoices [post]
func (c *InvoiceController) Create(ctx *gin.Context) {
	var req dto.InvoiceRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		bindError(ctx, err)
		return
	}
	tenantID := tenant.GetTenantID(ctx)

	competence, err := req.CompetenceDate()
	if err != nil {
		bindError(ctx, err)
		return
	}
	if err := c.checkCustomer(ctx.Request.Context(), tenantID, req.CustomerID); err != nil {
		respondError(ctx, c.logger, "tomador inválido", err)
		return
	}

	inv, err := invoice.NewInvoice(tenantID, req.CustomerID, req.Series, competence, req.ToItems())
	if err != nil {
		respondError(ctx, c.logger, "erro ao criar nota", err)
		return
	}
	req.Apply(inv)
	if err := inv.Validate(); err != nil {
		respondError(ctx, c.logger, "nota inválida", err)
		return
	}

	if err := c.invoiceRepo.Create(ctx.Request.Context(), inv); err != nil {
		respondError(ctx, c.logger, "erro ao salvar nota", err)
		return
	}
	ctx.JSON(http.StatusCreated, dto.ToInvoiceResponse(inv))
}

// Get retorna uma nota pelo ID
// @Summary Buscar nota
// @Tags invoices
// @Produce json
// @Param tenant-id header string true "ID do tenant"
// @Param id path string true "ID da nota"
// @Success 200 {object} dto.InvoiceResponse
// @Failure 404 {object} dto.ErrorResponse
// @Router /invoices/{id} [get]
func (c *InvoiceController) Get(ctx *gin.Context) {
	inv, err := c.invoiceRepo.FindByID(ctx.Request.Context(), tenant.GetTenantID(ctx), ctx.Param("id"))
	if err != nil {
		respondError(ctx, c.logger, "nota não encontrada", err)
		return
	}
	ctx.JSON(http.StatusOK, dto.ToInvoiceResponse(inv))
}

// List retorna as notas do tenant
// @Summary Listar notas
// @Tags invoices
// @Produce json
// @Param tenant-id header string true "ID do tenant"
// @Param status query string false "Situação" Enums(draft, submitted, authorized, rejected, cancelled)
// @Param page query int false "Número da página"
// @Param page_size query int false "Tamanho da página"
// @Success 200 {object} dto.InvoiceListResponse
// @Router /invoices [get]
func (c *InvoiceController) List(ctx *gin.Context) {
	page, _ := strconv.Atoi(ctx.DefaultQuery("page", "1"))
	pageSize, _ := strconv.Atoi(ctx.DefaultQuery("page_size", "10"))
	p := dto.GetPagination(page, pageSize)

	invoices, err := c.invoiceRepo.List(ctx.Request.Context(), tenant.GetTenantID(ctx), invoice.Filter{
		Status: invoice.Status(ctx.Query("status")),
		Limit:  p.PageSize,
		Offset: p.Offset(),
	})
	if err != nil {
		respondError(ctx, c.logger, "erro ao listar notas", err)
		return
	}
	ctx.JSON(http.StatusOK, dto.ToInvoiceListResponse(invoices, p.Page, p.PageSize))
}

// Update altera uma nota em rascunho
// @Summary Atualizar rascunho
// @Tags invoices
// @Accept json
// @Produce json
// @Param tenant-id header string true "ID do tenant"
// @Param id path string true "ID da nota"
// @Param invoice body dto.InvoiceRequest true "Dados da nota"
// @Success 200 {object} dto.InvoiceResponse
// @Failure 400 {object} dto.ErrorResponse
// @Failure 409 {object} dto.ErrorResponse
// @Router /invoices/{id} [put]
func (c *InvoiceController) Update(ctx *gin.Context) {
	var req dto.InvoiceRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		bindError(ctx, err)
		return
	}
	tenantID := tenant.GetTenantID(ctx)

	inv, err := c.invoiceRepo.FindByID(ctx.Request.Context(), tenantID, ctx.Param("id"))
	if err != nil {
		respondError(ctx, c.logger, "nota não encontrada", err)
		return
	}
	if err := inv.SetItems(req.ToItems()); err != nil {
		respondError(ctx, c.logger, "erro ao atualizar nota", err)
		return
	}
	competence, err := req.CompetenceDate()
	if err != nil {
		bindError(ctx, err)
		return
	}
	if err := c.checkCustomer(ctx.Request.Context(), tenantID, req.CustomerID); err != nil {
		respondError(ctx, c.logger, "tomador inválido", err)
		return
	}

	inv.CustomerID = req.CustomerID
	if req.Series != "" {
		inv.Series = req.Series
	}
	if !competence.IsZero() {
		inv.Competence = competence
	}
	req.Apply(inv)
	if err := inv.Validate(); err != nil {
		respondError(ctx, c.logger, "nota inválida", err)
		return
	}

	if err := c.invoiceRepo.Update(ctx.Request.Context(), inv); err != nil {
		respondError(ctx, c.logger, "erro ao salvar nota", err)
		return
	}
	ctx.JSON(http.StatusOK, dto.ToInvoiceResponse(inv))
}

// Delete exclui uma nota em rascunho
// @Summary Excluir rascunho
// @Tags invoices
// @Param tenant-id header string true "ID do tenant"
// @Param id path string true "ID da nota"
// @Success 204
// @Failure 409 {object} dto.ErrorResponse
// @Router /invoices/{id} [delete]
func (c *InvoiceController) Delete(ctx *gin.Context) {
	if err := c.service.DeleteDraft(ctx.Request.Context(), tenant.GetTenantID(ctx), ctx.Param("id")); err != nil {
		respondError(ctx, c.logger, "erro ao excluir nota", err)
		return
	}
	ctx.Status(http.StatusNoContent)
}

// Submit envia a DPS ao provedor
// @Summary Enviar DPS
// @Description Gera, assina e envia a DPS. Um envio sem resposta mantém a nota em rascunho para nova tentativa.
// @Tags invoices
// @Produce json
// @Param tenant-id header string true "ID do tenant"
// @Param id path string true "ID da nota"
// @Success 200 {object} dto.InvoiceResponse
// @Failure 409 {object} dto.ErrorResponse
// @Failure 422 {object} dto.ErrorResponse
// @Failure 502 {object} dto.ErrorResponse
// @Failure 504 {object} dto.ErrorResponse
// @Router /invoices/{id}/submit [post]
func (c *InvoiceController) Submit(ctx *gin.Context) {
	inv, err := c.service.Submit(ctx.Request.Context(), tenant.GetTenantID(ctx), ctx.Param("id"))
	if err != nil {
		respondError(ctx, c.logger, "erro ao enviar nota", err)
		return
	}
	ctx.JSON(http.StatusOK, dto.ToInvoiceResponse(inv))
}

// Emit envia, consulta a situação e baixa o PDF
// @Summary Emitir nota
// @Tags invoices
// @Produce json
// @Param tenant-id header string true "ID do tenant"
// @Param id path string true "ID da nota"
// @Success 200 {object} dto.EmitResponse
// @Failure 409 {object} dto.ErrorResponse
// @Failure 422 {object} dto.ErrorResponse
// @Failure 502 {object} dto.ErrorResponse
// @Router /invoices/{id}/emit [post]
func (c *InvoiceController) Emit(ctx *gin.Context) {
	out, err := c.service.Emit(ctx.Request.Context(), tenant.GetTenantID(ctx), ctx.Param("id"))
	if err != nil {
		respondError(ctx, c.logger, "erro ao emitir nota", err)
		return
	}
	ctx.JSON(http.StatusOK, dto.EmitResponse{
		Invoice:  dto.ToInvoiceResponse(out.Invoice),
		Warnings: out.Warnings,
	})
}

// Poll consulta a situação de uma nota enviada
// @Summary Consultar situação
// @Tags invoices
// @Produce json
// @Param tenant-id header string true "ID do tenant"
// @Param id path string true "ID da nota"
// @Success 200 {object} dto.InvoiceResponse
// @Failure 409 {object} dto.ErrorResponse
// @Failure 502 {object} dto.ErrorResponse
// @Router /invoices/{id}/status [post]
func (c *InvoiceController) Poll(ctx *gin.Context) {
	inv, err := c.service.PollStatus(ctx.Request.Context(), tenant.GetTenantID(ctx), ctx.Param("id"))
	if err != nil {
		respondError(ctx, c.logger, "erro ao consultar nota", err)
		return
	}
	ctx.JSON(http.StatusOK, dto.ToInvoiceResponse(inv))
}

// PDF devolve o DANFSe da nota autorizada, baixando do provedor quando ainda não existe
// @Summary Baixar PDF
// @Tags invoices
// @Produce application/pdf
// @Param tenant-id header string true "ID do tenant"
// @Param id path string true "ID da nota"
// @Success 200 {file} file
// @Failure 409 {object} dto.ErrorResponse
// @Failure 502 {object} dto.ErrorResponse
// @Router /invoices/{id}/pdf [get]
func (c *InvoiceController) PDF(ctx *gin.Context) {
	tenantID := tenant.GetTenantID(ctx)
	inv, err := c.invoiceRepo.FindByID(ctx.Request.Context(), tenantID, ctx.Param("id"))
	if err != nil {
		respondError(ctx, c.logger, "nota não encontrada", err)
		return
	}
	if inv.PDFPath == "" {
		inv, err = c.service.RetrieveArtifact(ctx.Request.Context(), tenantID, inv.ID)
		if err != nil {
			respondError(ctx, c.logger, "erro ao obter PDF", err)
			return
		}
	}
	ctx.FileAttachment(inv.PDFPath, fmt.Sprintf("NFSe-%s.pdf", inv.Number))
}

// Cancel cancela uma nota autorizada
// @Summary Cancelar nota
// @Tags invoices
// @Accept json
// @Produce json
// @Param tenant-id header string true "ID do tenant"
// @Param id path string true "ID da nota"
// @Param cancel body dto.CancelRequest true "Motivo"
// @Success 200 {object} dto.InvoiceResponse
// @Failure 400 {object} dto.ErrorResponse
// @Failure 409 {object} dto.ErrorResponse
// @Failure 502 {object} dto.ErrorResponse
// @Router /invoices/{id}/cancel [post]
func (c *InvoiceController) Cancel(ctx *gin.Context) {
	var req dto.CancelRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		bindError(ctx, err)
		return
	}

	inv, err := c.service.Cancel(ctx.Request.Context(), tenant.GetTenantID(ctx), ctx.Param("id"), req.Reason)
	if err != nil {
		respondError(ctx, c.logger, "erro ao cancelar nota", err)
		return
	}
	ctx.JSON(http.StatusOK, dto.ToInvoiceResponse(inv))
}

// Revert devolve uma nota rejeitada para rascunho
// @Summary Reverter para rascunho
// @Tags invoices
// @Produce json
// @Param tenant-id header string true "ID do tenant"
// @Param id path string true "ID da nota"
// @Success 200 {object} dto.InvoiceResponse
// @Failure 409 {object} dto.ErrorResponse
// @Router /invoices/{id}/revert [post]
func (c *InvoiceController) Revert(ctx *gin.Context) {
	inv, err := c.service.Revert(ctx.Request.Context(), tenant.GetTenantID(ctx), ctx.Param("id"))
	if err != nil {
		respondError(ctx, c.logger, "erro ao reverter nota", err)
		return
	}
	ctx.JSON(http.StatusOK, dto.ToInvoiceResponse(inv))
}

// Copy cria um novo rascunho a partir de uma nota existente
// @Summary Copiar nota
// @Tags invoices
// @Produce json
// @Param tenant-id header string true "ID do tenant"
// @Param id path string true "ID da nota"
// @Success 201 {object} dto.InvoiceResponse
// @Failure 404 {object} dto.ErrorResponse
// @Router /invoices/{id}/copy [post]
func (c *InvoiceController) Copy(ctx *gin.Context) {
	inv, err := c.service.Copy(ctx.Request.Context(), tenant.GetTenantID(ctx), ctx.Param("id"))
	if err != nil {
		respondError(ctx, c.logger, "erro ao copiar nota", err)
		return
	}
	ctx.JSON(http.StatusCreated, dto.ToInvoiceResponse(inv))
}

// Email envia o PDF da nota autorizada por e-mail
// @Summary Enviar por e-mail
// @Tags invoices
// @Accept json
// @Produce json
// @Param tenant-id header string true "ID do tenant"
// @Param id path string true "ID da nota"
// @Param email body dto.EmailRequest false "Destinatário"
// @Success 200 {object} dto.SuccessResponse
// @Failure 400 {object} dto.ErrorResponse
// @Failure 409 {object} dto.ErrorResponse
// @Router /invoices/{id}/email [post]
func (c *InvoiceController) Email(ctx *gin.Context) {
	var req dto.EmailRequest
	if ctx.Request.ContentLength > 0 {
		if err := ctx.ShouldBindJSON(&req); err != nil {
			bindError(ctx, err)
			return
		}
	}

	if err := c.service.SendByEmail(ctx.Request.Context(), tenant.GetTenantID(ctx), ctx.Param("id"), req.To); err != nil {
		respondError(ctx, c.logger, "erro ao enviar e-mail", err)
		return
	}
	ctx.JSON(http.StatusOK, dto.NewSuccessResponse("e-mail enviado", nil))
}

func (c *InvoiceController) checkCustomer(ctx context.Context, tenantID, customerID string) error {
	if customerID == "" {
		return nil
	}
	_, err := c.customerRepo.FindByID(ctx, tenantID, customerID)
	return err
}
