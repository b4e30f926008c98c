package controller

import (
	"encoding/base64"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/hugohenrick/nfse-emissor/internal/adapter/api/dto"
	"github.com/hugohenrick/nfse-emissor/internal/domain/tenant"
	"github.com/hugohenrick/nfse-emissor/pkg/errs"
	"github.com/hugohenrick/nfse-emissor/pkg/logger"
	"github.com/hugohenrick/nfse-emissor/pkg/pkcs12"
	"github.com/hugohenrick/nfse-emissor/pkg/vault"
)

// maxCertificateSize limita o upload do arquivo .pfx
const maxCertificateSize = 64 << 10

// TenantController gerencia as requisições relacionadas a tenants
type TenantController struct {
	tenantRepo tenant.Repository
	vault      *vault.Vault
	loader     *pkcs12.Loader
	logger     logger.Logger
	now        func() time.Time
}

// NewTenantController cria uma nova instância de TenantController
func NewTenantController(tenantRepo tenant.Repository, v *vault.Vault, loader *pkcs12.Loader, log logger.Logger) *TenantController {
	if loader == nil {
		loader = pkcs12.NewLoader()
	}
	return &TenantController{
		tenantRepo: tenantRepo,
		vault:      v,
		loader:     loader,
		logger:     log,
		now:        time.Now,
	}
}

// Create cria um novo tenant
// @Summary Criar tenant
// @Description Cadastra uma empresa emissora
// @Tags tenants
// @Accept json
// @Produce json
// @Param tenant body dto.TenantRequest true "Dados do tenant"
// @Success 201 {object} dto.TenantResponse
// @Failure 400 {object} dto.ErrorResponse
// @Failure 409 {object} dto.ErrorResponse
// @Failure 500 {object} dto.ErrorResponse
// @Router /tenants [post]
func (c *TenantController) Create(ctx *gin.Context) {
	var req dto.TenantRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		bindError(ctx, err)
		return
	}

	t, err := tenant.NewTenant(req.Name, req.Document, req.Email, req.MunicipalCode, tenant.Provider(req.Provider))
	if err != nil {
		respondError(ctx, c.logger, "erro ao criar tenant", err)
		return
	}
	t.Phone = req.Phone
	t.Address = req.ToAddress()
	if err := t.UpdateFiscalProfile(req.MunicipalCode, req.MunicipalRegistration, t.Provider,
		req.EnvironmentOrDefault(), req.ToTaxRegime()); err != nil {
		respondError(ctx, c.logger, "erro ao criar tenant", err)
		return
	}

	if err := c.tenantRepo.Create(ctx.Request.Context(), t); err != nil {
		respondError(ctx, c.logger, "erro ao salvar tenant", err)
		return
	}

	c.logger.Info("tenant criado", "tenant_id", t.ID, "provider", t.Provider)
	ctx.JSON(http.StatusCreated, dto.ToTenantResponse(t))
}

// GetByID retorna um tenant pelo ID
// @Summary Buscar tenant
// @Tags tenants
// @Produce json
// @Param id path string true "ID do tenant"
// @Success 200 {object} dto.TenantResponse
// @Failure 404 {object} dto.ErrorResponse
// @Router /tenants/{id} [get]
func (c *TenantController) GetByID(ctx *gin.Context) {
	t, err := c.tenantRepo.FindByID(ctx.Request.Context(), ctx.Param("id"))
	if err != nil {
		respondError(ctx, c.logger, "tenant não encontrado", err)
		return
	}
	ctx.JSON(http.StatusOK, dto.ToTenantResponse(t))
}

// List retorna a lista de tenants
// @Summary Listar tenants
// @Tags tenants
// @Produce json
// @Param page query int false "Número da página"
// @Param page_size query int false "Tamanho da página"
// @Success 200 {object} dto.TenantListResponse
// @Router /tenants [get]
func (c *TenantController) List(ctx *gin.Context) {
	page, _ := strconv.Atoi(ctx.DefaultQuery("page", "1"))
	pageSize, _ := strconv.Atoi(ctx.DefaultQuery("page_size", "10"))
	p := dto.GetPagination(page, pageSize)

	tenants, err := c.tenantRepo.List(ctx.Request.Context(), p.PageSize, p.Offset())
	if err != nil {
		respondError(ctx, c.logger, "erro ao listar tenants", err)
		return
	}
	ctx.JSON(http.StatusOK, dto.ToTenantListResponse(tenants, p.Page, p.PageSize))
}

// Update atualiza os dados cadastrais e o perfil fiscal
// @Summary Atualizar tenant
// @Tags tenants
// @Accept json
// @Produce json
// @Param id path string true "ID do tenant"
// @Param tenant body dto.TenantRequest true "Dados do tenant"
// @Success 200 {object} dto.TenantResponse
// @Failure 400 {object} dto.ErrorResponse
// @Failure 404 {object} dto.ErrorResponse
// @Router /tenants/{id} [put]
func (c *TenantController) Update(ctx *gin.Context) {
	var req dto.TenantRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		bindError(ctx, err)
		return
	}

	t, err := c.tenantRepo.FindByID(ctx.Request.Context(), ctx.Param("id"))
	if err != nil {
		respondError(ctx, c.logger, "tenant não encontrado", err)
		return
	}

	provider := tenant.Provider(req.Provider)
	if provider == "" {
		provider = t.Provider
	}
	if err := t.Update(req.Name, req.Email, req.Phone); err != nil {
		respondError(ctx, c.logger, "erro ao atualizar tenant", err)
		return
	}
	if err := t.UpdateFiscalProfile(req.MunicipalCode, req.MunicipalRegistration, provider,
		req.EnvironmentOrDefault(), req.ToTaxRegime()); err != nil {
		respondError(ctx, c.logger, "erro ao atualizar tenant", err)
		return
	}
	t.Address = req.ToAddress()

	if err := c.tenantRepo.Update(ctx.Request.Context(), t); err != nil {
		respondError(ctx, c.logger, "erro ao salvar tenant", err)
		return
	}
	ctx.JSON(http.StatusOK, dto.ToTenantResponse(t))
}

// UpdateStatus ativa, desativa ou bloqueia um tenant
// @Summary Atualizar status do tenant
// @Tags tenants
// @Accept json
// @Produce json
// @Param id path string true "ID do tenant"
// @Param status body dto.TenantStatusRequest true "Novo status"
// @Success 200 {object} dto.SuccessResponse
// @Failure 404 {object} dto.ErrorResponse
// @Router /tenants/{id}/status [patch]
func (c *TenantController) UpdateStatus(ctx *gin.Context) {
	var req dto.TenantStatusRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		bindError(ctx, err)
		return
	}

	if err := c.tenantRepo.UpdateStatus(ctx.Request.Context(), ctx.Param("id"), tenant.Status(req.Status)); err != nil {
		respondError(ctx, c.logger, "erro ao atualizar status do tenant", err)
		return
	}
	ctx.JSON(http.StatusOK, dto.NewSuccessResponse("status atualizado", gin.H{"status": req.Status}))
}

// UploadCertificate recebe o certificado A1 (.pfx) e sua senha
// @Summary Enviar certificado digital
// @Description O certificado é aberto antes de ser aceito; apenas o container cifrado é armazenado
// @Tags tenants
// @Accept multipart/form-data
// @Produce json
// @Param id path string true "ID do tenant"
// @Param certificate formData file true "Arquivo .pfx"
// @Param password formData string true "Senha do certificado"
// @Success 200 {object} dto.CertificateResponse
// @Failure 400 {object} dto.ErrorResponse
// @Failure 422 {object} dto.ErrorResponse
// @Router /tenants/{id}/certificate [put]
func (c *TenantController) UploadCertificate(ctx *gin.Context) {
	fileHeader, err := ctx.FormFile("certificate")
	if err != nil {
		bindError(ctx, fmt.Errorf("arquivo do certificado não enviado: %w", err))
		return
	}
	if fileHeader.Size > maxCertificateSize {
		bindError(ctx, fmt.Errorf("certificado maior que %d bytes", maxCertificateSize))
		return
	}

	file, err := fileHeader.Open()
	if err != nil {
		respondError(ctx, c.logger, "erro ao abrir certificado", err)
		return
	}
	defer file.Close()

	raw, err := io.ReadAll(io.LimitReader(file, maxCertificateSize))
	if err != nil {
		respondError(ctx, c.logger, "erro ao ler certificado", err)
		return
	}
	blob := base64.StdEncoding.EncodeToString(raw)
	password := ctx.PostForm("password")

	cert, err := c.loader.Load(blob, password)
	if err != nil {
		respondError(ctx, c.logger, "certificado recusado", err)
		return
	}
	if cert.IsExpired(c.now()) {
		respondError(ctx, c.logger, "certificado recusado",
			&errs.CertificateError{Kind: errs.CertificateExpired, Err: fmt.Errorf("vencido em %s", cert.NotAfter().Format(time.DateOnly))})
		return
	}

	t, err := c.tenantRepo.FindByID(ctx.Request.Context(), ctx.Param("id"))
	if err != nil {
		respondError(ctx, c.logger, "tenant não encontrado", err)
		return
	}
	if err := t.SetCertificate(c.vault, blob, password, cert.NotAfter()); err != nil {
		respondError(ctx, c.logger, "erro ao armazenar certificado", err)
		return
	}
	if err := c.tenantRepo.Update(ctx.Request.Context(), t); err != nil {
		respondError(ctx, c.logger, "erro ao salvar tenant", err)
		return
	}

	c.logger.Info("certificado atualizado", "tenant_id", t.ID, "expires_at", cert.NotAfter(), "strategy", cert.Strategy)
	ctx.JSON(http.StatusOK, dto.CertificateResponse{
		Subject:   cert.Subject(),
		ExpiresAt: cert.NotAfter(),
		Strategy:  cert.Strategy,
	})
}

// SetAPICredentials grava as credenciais do provedor terceiro
// @Summary Definir credenciais de API
// @Tags tenants
// @Accept json
// @Produce json
// @Param id path string true "ID do tenant"
// @Param credentials body dto.APICredentialsRequest true "Credenciais"
// @Success 200 {object} dto.SuccessResponse
// @Failure 404 {object} dto.ErrorResponse
// @Router /tenants/{id}/api-credentials [put]
func (c *TenantController) SetAPICredentials(ctx *gin.Context) {
	var req dto.APICredentialsRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		bindError(ctx, err)
		return
	}

	t, err := c.tenantRepo.FindByID(ctx.Request.Context(), ctx.Param("id"))
	if err != nil {
		respondError(ctx, c.logger, "tenant não encontrado", err)
		return
	}
	if err := t.SetAPICredentials(c.vault, req.ClientID, req.ClientSecret); err != nil {
		respondError(ctx, c.logger, "erro ao armazenar credenciais", err)
		return
	}
	if err := c.tenantRepo.Update(ctx.Request.Context(), t); err != nil {
		respondError(ctx, c.logger, "erro ao salvar tenant", err)
		return
	}
	ctx.JSON(http.StatusOK, dto.NewSuccessResponse("credenciais atualizadas", nil))
}
