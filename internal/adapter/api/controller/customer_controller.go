package controller

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/hugohenrick/nfse-emissor/internal/adapter/api/dto"
	customerdomain "github.com/hugohenrick/nfse-emissor/internal/domain/customer"
	"github.com/hugohenrick/nfse-emissor/pkg/logger"
	"github.com/hugohenrick/nfse-emissor/pkg/tenant"
)

// CustomerController gerencia as requisições relacionadas a tomadores
type CustomerController struct {
	customerRepo customerdomain.Repository
	logger       logger.Logger
}

// NewCustomerController cria uma nova instância de CustomerController
func NewCustomerController(customerRepo customerdomain.Repository, log logger.Logger) *CustomerController {
	return &CustomerController{
		customerRepo: customerRepo,
		logger:       log,
	}
}

// Create cria um novo cliente
// @Summary Criar cliente
// @Description Cadastra um tomador de serviço do tenant
// @Tags customers
// @Accept json
// @Produce json
// @Param tenant-id header string true "ID do tenant"
// @Param customer body dto.CustomerRequest true "Dados do cliente"
// @Success 201 {object} dto.CustomerResponse
// @Failure 400 {object} dto.ErrorResponse
// @Failure 409 {object} dto.ErrorResponse
// @Router /customers [post]
func (c *CustomerController) Create(ctx *gin.Context) {
	var req dto.CustomerRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		bindError(ctx, err)
		return
	}

	customer, err := customerdomain.NewCustomer(tenant.GetTenantID(ctx), req.Name, req.Document, req.Email)
	if err != nil {
		respondError(ctx, c.logger, "erro ao criar cliente", err)
		return
	}
	customer.Phone = req.Phone
	customer.Address = req.ToAddress()

	if err := c.customerRepo.Create(ctx.Request.Context(), customer); err != nil {
		respondError(ctx, c.logger, "erro ao salvar cliente", err)
		return
	}
	ctx.JSON(http.StatusCreated, dto.ToCustomerResponse(customer))
}

// Get retorna um cliente pelo ID
// @Summary Buscar cliente
// @Tags customers
// @Produce json
// @Param tenant-id header string true "ID do tenant"
// @Param id path string true "ID do cliente"
// @Success 200 {object} dto.CustomerResponse
// @Failure 404 {object} dto.ErrorResponse
// @Router /customers/{id} [get]
func (c *CustomerController) Get(ctx *gin.Context) {
	customer, err := c.customerRepo.FindByID(ctx.Request.Context(), tenant.GetTenantID(ctx), ctx.Param("id"))
	if err != nil {
		respondError(ctx, c.logger, "cliente não encontrado", err)
		return
	}
	ctx.JSON(http.StatusOK, dto.ToCustomerResponse(customer))
}

// List retorna a lista de clientes
// @Summary Listar clientes
// @Tags customers
// @Produce json
// @Param tenant-id header string true "ID do tenant"
// @Param page query int false "Número da página"
// @Param page_size query int false "Tamanho da página"
// @Success 200 {object} dto.CustomerListResponse
// @Router /customers [get]
func (c *CustomerController) List(ctx *gin.Context) {
	page, _ := strconv.Atoi(ctx.DefaultQuery("page", "1"))
	pageSize, _ := strconv.Atoi(ctx.DefaultQuery("page_size", "10"))
	p := dto.GetPagination(page, pageSize)

	customers, err := c.customerRepo.List(ctx.Request.Context(), tenant.GetTenantID(ctx), p.PageSize, p.Offset())
	if err != nil {
		respondError(ctx, c.logger, "erro ao listar clientes", err)
		return
	}
	ctx.JSON(http.StatusOK, dto.ToCustomerListResponse(customers, p.Page, p.PageSize))
}

// Update atualiza um cliente
// @Summary Atualizar cliente
// @Tags customers
// @Accept json
// @Produce json
// @Param tenant-id header string true "ID do tenant"
// @Param id path string true "ID do cliente"
// @Param customer body dto.CustomerRequest true "Dados do cliente"
// @Success 200 {object} dto.CustomerResponse
// @Failure 400 {object} dto.ErrorResponse
// @Failure 404 {object} dto.ErrorResponse
// @Router /customers/{id} [put]
func (c *CustomerController) Update(ctx *gin.Context) {
	var req dto.CustomerRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		bindError(ctx, err)
		return
	}

	customer, err := c.customerRepo.FindByID(ctx.Request.Context(), tenant.GetTenantID(ctx), ctx.Param("id"))
	if err != nil {
		respondError(ctx, c.logger, "cliente não encontrado", err)
		return
	}
	if err := customer.Update(req.Name, req.Email, req.Phone, req.ToAddress()); err != nil {
		respondError(ctx, c.logger, "erro ao atualizar cliente", err)
		return
	}
	if err := c.customerRepo.Update(ctx.Request.Context(), customer); err != nil {
		respondError(ctx, c.logger, "erro ao salvar cliente", err)
		return
	}
	ctx.JSON(http.StatusOK, dto.ToCustomerResponse(customer))
}

// Delete remove um cliente
// @Summary Excluir cliente
// @Tags customers
// @Param tenant-id header string true "ID do tenant"
// @Param id path string true "ID do cliente"
// @Success 204
// @Failure 404 {object} dto.ErrorResponse
// @Router /customers/{id} [delete]
func (c *CustomerController) Delete(ctx *gin.Context) {
	if err := c.customerRepo.Delete(ctx.Request.Context(), tenant.GetTenantID(ctx), ctx.Param("id")); err != nil {
		respondError(ctx, c.logger, "erro ao excluir cliente", err)
		return
	}
	ctx.Status(http.StatusNoContent)
}
