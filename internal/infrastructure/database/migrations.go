package database

import (
	"errors"
	"fmt"
	"path/filepath"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"

	"github.com/hugohenrick/nfse-emissor/internal/config"
	"github.com/hugohenrick/nfse-emissor/pkg/logger"
)

var (
	// ErrSchemaOutdated ocorre quando o banco está abaixo da versão exigida pela aplicação
	ErrSchemaOutdated = errors.New("schema do banco desatualizado, execute as migrações")

	// ErrSchemaDirty ocorre quando uma migração anterior falhou no meio
	ErrSchemaDirty = errors.New("schema do banco em estado inconsistente (dirty)")
)

// SchemaStatus é a versão de migração aplicada no banco
type SchemaStatus struct {
	Version uint
	Dirty   bool
}

// CheckVersion compara a versão aplicada com a mínima exigida
func (s SchemaStatus) CheckVersion(required uint) error {
	if s.Dirty {
		return fmt.Errorf("%w: versão %d", ErrSchemaDirty, s.Version)
	}
	if s.Version < required {
		return fmt.Errorf("%w: aplicada %d, exigida %d", ErrSchemaOutdated, s.Version, required)
	}
	return nil
}

func newMigrate(cfg config.DatabaseConfig) (*migrate.Migrate, error) {
	path := cfg.MigrationsPath
	if path == "" {
		path = "migrations"
	}
	sourceURL := "file://" + filepath.ToSlash(path)

	m, err := migrate.New(sourceURL, cfg.ConnectionString())
	if err != nil {
		return nil, fmt.Errorf("falha ao criar migrate: %w", err)
	}
	return m, nil
}

// RunMigrations aplica todas as migrações pendentes
func RunMigrations(cfg config.DatabaseConfig, log logger.Logger) error {
	m, err := newMigrate(cfg)
	if err != nil {
		return err
	}
	defer m.Close()

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("falha ao aplicar migrações: %w", err)
	}

	version, dirty, err := m.Version()
	if err != nil {
		return fmt.Errorf("falha ao ler versão do schema: %w", err)
	}
	log.Info("migrações aplicadas", "version", version, "dirty", dirty)
	return nil
}

// RollbackMigration desfaz a última migração aplicada
func RollbackMigration(cfg config.DatabaseConfig) error {
	m, err := newMigrate(cfg)
	if err != nil {
		return err
	}
	defer m.Close()

	if err := m.Steps(-1); err != nil {
		return fmt.Errorf("falha ao desfazer migração: %w", err)
	}
	return nil
}

// CheckSchema recusa iniciar a aplicação com o banco abaixo da versão exigida
func CheckSchema(cfg config.DatabaseConfig) (SchemaStatus, error) {
	m, err := newMigrate(cfg)
	if err != nil {
		return SchemaStatus{}, err
	}
	defer m.Close()

	version, dirty, err := m.Version()
	if err != nil {
		if errors.Is(err, migrate.ErrNilVersion) {
			status := SchemaStatus{}
			return status, status.CheckVersion(cfg.SchemaVersion)
		}
		return SchemaStatus{}, fmt.Errorf("falha ao ler versão do schema: %w", err)
	}

	status := SchemaStatus{Version: version, Dirty: dirty}
	return status, status.CheckVersion(cfg.SchemaVersion)
}
