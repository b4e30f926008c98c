// Package config carrega a configuração da aplicação a partir do ambiente.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// ErrMissingMasterSecret ocorre quando NFSE_MASTER_SECRET não foi definida
var ErrMissingMasterSecret = errors.New("NFSE_MASTER_SECRET não configurada")

// Config agrupa toda a configuração da aplicação
type Config struct {
	HTTPPort  string
	LogLevel  string
	LogFormat string

	Database DatabaseConfig
	Redis    RedisConfig
	NFSe     NFSeConfig
}

// DatabaseConfig contém as configurações para conexão com o PostgreSQL
type DatabaseConfig struct {
	URL             string
	Host            string
	Port            int
	User            string
	Password        string
	Name            string
	SSLMode         string
	MaxConnections  int32
	MinConnections  int32
	MaxConnLifetime time.Duration
	MigrationsPath  string
	// SchemaVersion é a versão mínima de migração exigida para iniciar
	SchemaVersion uint
}

// ConnectionString retorna a URL de conexão para o PostgreSQL
func (c DatabaseConfig) ConnectionString() string {
	if c.URL != "" {
		return c.URL
	}
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.User, c.Password, c.Host, c.Port, c.Name, c.SSLMode)
}

// RedisConfig contém as configurações do Redis usado para locks distribuídos
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	LockTTL  time.Duration
}

// Enabled indica se o Redis foi configurado
func (c RedisConfig) Enabled() bool {
	return c.Addr != ""
}

// NFSeConfig contém as configurações do pipeline de emissão
type NFSeConfig struct {
	MasterSecret string
	AppVersion   string
	ForceMEI     bool
	HTTPTimeout  time.Duration

	NationalBaseURL           map[string]string
	NationalTokenURL          map[string]string
	NationalScope             string
	ThirdPartyBaseURL         string
	ThirdPartyDefaultAPIToken string

	StorageDir   string
	XMLSnapshots bool
	PollBatch    int
}

// Load lê o arquivo .env (quando existir) e as variáveis de ambiente
func Load() (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v)

	cfg := &Config{
		HTTPPort:  v.GetString("HTTP_PORT"),
		LogLevel:  v.GetString("LOG_LEVEL"),
		LogFormat: v.GetString("LOG_FORMAT"),
		Database: DatabaseConfig{
			URL:             v.GetString("DATABASE_URL"),
			Host:            v.GetString("DB_HOST"),
			Port:            v.GetInt("DB_PORT"),
			User:            v.GetString("DB_USER"),
			Password:        v.GetString("DB_PASSWORD"),
			Name:            v.GetString("DB_NAME"),
			SSLMode:         v.GetString("DB_SSL_MODE"),
			MaxConnections:  v.GetInt32("DB_MAX_CONNECTIONS"),
			MinConnections:  v.GetInt32("DB_MIN_CONNECTIONS"),
			MaxConnLifetime: v.GetDuration("DB_MAX_LIFETIME"),
			MigrationsPath:  v.GetString("DB_MIGRATIONS_PATH"),
			SchemaVersion:   v.GetUint("DB_SCHEMA_VERSION"),
		},
		Redis: RedisConfig{
			Addr:     v.GetString("REDIS_ADDR"),
			Password: v.GetString("REDIS_PASSWORD"),
			DB:       v.GetInt("REDIS_DB"),
			LockTTL:  v.GetDuration("REDIS_LOCK_TTL"),
		},
		NFSe: NFSeConfig{
			MasterSecret: v.GetString("NFSE_MASTER_SECRET"),
			AppVersion:   v.GetString("NFSE_APP_VERSION"),
			ForceMEI:     v.GetBool("NFSE_FORCE_MEI"),
			HTTPTimeout:  v.GetDuration("NFSE_HTTP_TIMEOUT"),
			NationalBaseURL: map[string]string{
				"production":   v.GetString("NFSE_NATIONAL_URL_PRODUCTION"),
				"homologation": v.GetString("NFSE_NATIONAL_URL_HOMOLOGATION"),
			},
			NationalTokenURL: map[string]string{
				"production":   v.GetString("NFSE_NATIONAL_TOKEN_URL_PRODUCTION"),
				"homologation": v.GetString("NFSE_NATIONAL_TOKEN_URL_HOMOLOGATION"),
			},
			NationalScope:             v.GetString("NFSE_NATIONAL_SCOPE"),
			ThirdPartyBaseURL:         v.GetString("NFSE_THIRDPARTY_URL"),
			ThirdPartyDefaultAPIToken: v.GetString("NFSE_THIRDPARTY_API_TOKEN"),
			StorageDir:                v.GetString("NFSE_STORAGE_DIR"),
			XMLSnapshots:              v.GetBool("NFSE_XML_SNAPSHOTS"),
			PollBatch:                 v.GetInt("NFSE_POLL_BATCH"),
		},
	}

	if cfg.NFSe.MasterSecret == "" {
		return nil, ErrMissingMasterSecret
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("HTTP_PORT", "8080")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")

	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", 5432)
	v.SetDefault("DB_USER", "postgres")
	v.SetDefault("DB_PASSWORD", "postgres")
	v.SetDefault("DB_NAME", "nfse_emissor")
	v.SetDefault("DB_SSL_MODE", "disable")
	v.SetDefault("DB_MAX_CONNECTIONS", 10)
	v.SetDefault("DB_MIN_CONNECTIONS", 1)
	v.SetDefault("DB_MAX_LIFETIME", time.Hour)
	v.SetDefault("DB_MIGRATIONS_PATH", "migrations")
	v.SetDefault("DB_SCHEMA_VERSION", 3)

	v.SetDefault("REDIS_DB", 0)
	v.SetDefault("REDIS_LOCK_TTL", 30*time.Second)

	v.SetDefault("NFSE_APP_VERSION", "nfse-emissor-1.0")
	v.SetDefault("NFSE_FORCE_MEI", false)
	v.SetDefault("NFSE_HTTP_TIMEOUT", 30*time.Second)
	v.SetDefault("NFSE_NATIONAL_URL_PRODUCTION", "https://sefin.nfse.gov.br/SefinNacional")
	v.SetDefault("NFSE_NATIONAL_URL_HOMOLOGATION", "https://sefin.producaorestrita.nfse.gov.br/SefinNacional")
	v.SetDefault("NFSE_NATIONAL_TOKEN_URL_PRODUCTION", "https://sefin.nfse.gov.br/oauth2/token")
	v.SetDefault("NFSE_NATIONAL_TOKEN_URL_HOMOLOGATION", "https://sefin.producaorestrita.nfse.gov.br/oauth2/token")
	v.SetDefault("NFSE_THIRDPARTY_URL", "https://api.nfse-terceiro.com.br")
	v.SetDefault("NFSE_STORAGE_DIR", "storage/nfse")
	v.SetDefault("NFSE_XML_SNAPSHOTS", false)
	v.SetDefault("NFSE_POLL_BATCH", 50)
}
