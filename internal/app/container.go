// Package app monta as dependências compartilhadas pela API e pelo nfsectl.
package app

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"

	"github.com/hugohenrick/nfse-emissor/internal/adapter/repository"
	"github.com/hugohenrick/nfse-emissor/internal/config"
	"github.com/hugohenrick/nfse-emissor/internal/domain/fiscal"
	"github.com/hugohenrick/nfse-emissor/internal/emission"
	"github.com/hugohenrick/nfse-emissor/internal/infrastructure/database"
	"github.com/hugohenrick/nfse-emissor/internal/lock"
	"github.com/hugohenrick/nfse-emissor/internal/notification"
	"github.com/hugohenrick/nfse-emissor/internal/nfse/dps"
	"github.com/hugohenrick/nfse-emissor/internal/nfse/xmlsign"
	"github.com/hugohenrick/nfse-emissor/internal/provider"
	"github.com/hugohenrick/nfse-emissor/internal/storage"
	"github.com/hugohenrick/nfse-emissor/pkg/logger"
	"github.com/hugohenrick/nfse-emissor/pkg/pkcs12"
	"github.com/hugohenrick/nfse-emissor/pkg/vault"
)

// Container reúne os componentes de longa duração da aplicação
type Container struct {
	Config *config.Config
	Logger logger.Logger

	DB    *pgxpool.Pool
	Redis *redis.Client

	Vault        *vault.Vault
	Certificates *pkcs12.Loader

	Tenants   *repository.TenantRepository
	Customers *repository.CustomerRepository
	Invoices  *repository.InvoiceRepository
	Validator *repository.TenantValidator

	Service *emission.Service
}

// NewContainer conecta ao banco, confere a versão do schema e monta o serviço de emissão
func NewContainer(ctx context.Context, cfg *config.Config, log logger.Logger, reg prometheus.Registerer) (*Container, error) {
	v, err := vault.New(cfg.NFSe.MasterSecret)
	if err != nil {
		return nil, fmt.Errorf("falha ao inicializar cofre: %w", err)
	}

	status, err := database.CheckSchema(cfg.Database)
	if err != nil {
		return nil, err
	}
	if err := status.CheckVersion(cfg.Database.SchemaVersion); err != nil {
		return nil, err
	}

	pool, err := database.NewPostgresPool(ctx, cfg.Database)
	if err != nil {
		return nil, err
	}

	c := &Container{
		Config:       cfg,
		Logger:       log,
		DB:           pool,
		Vault:        v,
		Certificates: pkcs12.NewLoader(),
		Tenants:      repository.NewTenantRepository(pool),
		Customers:    repository.NewCustomerRepository(pool),
		Invoices:     repository.NewInvoiceRepository(pool),
	}
	c.Validator = repository.NewTenantValidator(c.Tenants)

	locker, err := c.locker(ctx)
	if err != nil {
		c.Close()
		return nil, err
	}

	national := provider.NewNationalClient(provider.NationalConfig{
		BaseURLs:  cfg.NFSe.NationalBaseURL,
		TokenURLs: cfg.NFSe.NationalTokenURL,
		Scope:     cfg.NFSe.NationalScope,
		Timeout:   cfg.NFSe.HTTPTimeout,
	}, log)
	thirdParty := provider.NewThirdPartyClient(provider.ThirdPartyConfig{
		BaseURL:         cfg.NFSe.ThirdPartyBaseURL,
		DefaultAPIToken: cfg.NFSe.ThirdPartyDefaultAPIToken,
		Timeout:         cfg.NFSe.HTTPTimeout,
	}, log)

	c.Service = emission.NewService(emission.Dependencies{
		Invoices:     c.Invoices,
		Tenants:      c.Tenants,
		Customers:    c.Customers,
		Vault:        v,
		Certificates: c.Certificates,
		Allocator:    fiscal.NewAllocator(repository.NewSequenceRepository(pool), locker),
		Generator:    dps.NewGenerator(cfg.NFSe.AppVersion, cfg.NFSe.ForceMEI),
		Signer:       xmlsign.NewSigner(),
		Providers:    provider.NewRouter(c.Tenants, log, national, thirdParty),
		Tokens:       provider.NewTokenCache(),
		Store:        storage.NewFileStore(cfg.NFSe.StorageDir, cfg.NFSe.XMLSnapshots, log),
		Mailer:       notification.NewLogMailer(log),
		Metrics:      emission.NewMetrics(reg),
		Logger:       log,
	}, emission.Config{})

	return c, nil
}

// locker usa o Redis quando configurado, para que várias instâncias compartilhem a
// numeração; sem Redis o lock vale apenas para este processo.
func (c *Container) locker(ctx context.Context) (lock.Locker, error) {
	if !c.Config.Redis.Enabled() {
		c.Logger.Warn("REDIS_ADDR não configurado, usando lock em memória")
		return lock.NewMemoryLocker(), nil
	}

	c.Redis = redis.NewClient(&redis.Options{
		Addr:     c.Config.Redis.Addr,
		Password: c.Config.Redis.Password,
		DB:       c.Config.Redis.DB,
	})
	if err := c.Redis.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("falha ao conectar ao redis: %w", err)
	}
	return lock.NewRedisLocker(c.Redis, c.Config.Redis.LockTTL, c.Logger)
}

// Close libera as conexões abertas
func (c *Container) Close() {
	if c.Redis != nil {
		_ = c.Redis.Close()
	}
	if c.DB != nil {
		c.DB.Close()
	}
}
