package main

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	"github.com/hugohenrick/nfse-emissor/docs"
	"github.com/hugohenrick/nfse-emissor/internal/adapter/api/controller"
	"github.com/hugohenrick/nfse-emissor/internal/adapter/api/route"
	"github.com/hugohenrick/nfse-emissor/internal/app"
	"github.com/hugohenrick/nfse-emissor/internal/config"
	"github.com/hugohenrick/nfse-emissor/pkg/logger"
	"github.com/hugohenrick/nfse-emissor/pkg/tenant"
)

const shutdownTimeout = 15 * time.Second

// App representa a aplicação e suas dependências
type App struct {
	cfg       *config.Config
	log       logger.Logger
	container *app.Container
	router    *gin.Engine
}

// NewApp cria uma nova instância do aplicativo
func NewApp(ctx context.Context, cfg *config.Config, log logger.Logger) (*App, error) {
	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	container, err := app.NewContainer(ctx, cfg, log, registry)
	if err != nil {
		return nil, err
	}

	// Configurar router com modo correto
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery(), cors.New(cors.Config{
		AllowAllOrigins: true,
		AllowMethods:    []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:    []string{"Origin", "Content-Type", "Accept", tenant.HeaderName},
		ExposeHeaders:   []string{"Content-Disposition"},
		MaxAge:          12 * time.Hour,
	}))

	a := &App{cfg: cfg, log: log, container: container, router: router}
	a.setupRoutes(registry)
	return a, nil
}

func (a *App) setupRoutes(registry *prometheus.Registry) {
	c := a.container

	a.router.GET("/health", a.health)
	a.router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(registry, promhttp.HandlerOpts{})))

	docs.SwaggerInfo.BasePath = "/api/v1"
	a.router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	api := a.router.Group("/api/v1")

	// Cadastro de tenants não exige o cabeçalho tenant-id
	route.SetupTenantRoutes(api, controller.NewTenantController(c.Tenants, c.Vault, c.Certificates, a.log))

	// Rotas que precisam do tenant
	tenantScoped := api.Group("")
	tenantScoped.Use(tenant.TenantMiddleware(c.Validator))
	route.RegisterCustomerRoutes(tenantScoped, controller.NewCustomerController(c.Customers, a.log))
	route.RegisterInvoiceRoutes(tenantScoped, controller.NewInvoiceController(c.Invoices, c.Customers, c.Service, a.log))
}

func (a *App) health(ctx *gin.Context) {
	if err := a.container.DB.Ping(ctx.Request.Context()); err != nil {
		ctx.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable", "error": err.Error()})
		return
	}
	ctx.JSON(http.StatusOK, gin.H{
		"status":  "ok",
		"version": a.cfg.NFSe.AppVersion,
	})
}

// Run atende requisições até o contexto ser cancelado
func (a *App) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              ":" + a.cfg.HTTPPort,
		Handler:           a.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		a.log.Info("servidor iniciado", "port", a.cfg.HTTPPort)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	a.log.Info("encerrando servidor")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

// Close libera os recursos da aplicação
func (a *App) Close() {
	a.container.Close()
}
