package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("NFSE_MASTER_SECRET", "segredo")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 30*time.Second, cfg.NFSe.HTTPTimeout)
	assert.False(t, cfg.NFSe.ForceMEI)
	assert.False(t, cfg.Redis.Enabled())
	assert.NotEmpty(t, cfg.NFSe.NationalTokenURL["homologation"])
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("NFSE_MASTER_SECRET", "segredo")
	t.Setenv("NFSE_HTTP_TIMEOUT", "5s")
	t.Setenv("NFSE_FORCE_MEI", "true")
	t.Setenv("REDIS_ADDR", "localhost:6379")
	t.Setenv("DATABASE_URL", "postgres://u:p@db:5432/x")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 5*time.Second, cfg.NFSe.HTTPTimeout)
	assert.True(t, cfg.NFSe.ForceMEI)
	assert.True(t, cfg.Redis.Enabled())
	assert.Equal(t, "postgres://u:p@db:5432/x", cfg.Database.ConnectionString())
}

func TestLoad_MissingMasterSecret(t *testing.T) {
	t.Setenv("NFSE_MASTER_SECRET", "")

	_, err := Load()
	assert.ErrorIs(t, err, ErrMissingMasterSecret)
}
