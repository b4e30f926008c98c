// Package cmd contém os comandos de operação do nfsectl.
package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/hugohenrick/nfse-emissor/internal/config"
	"github.com/hugohenrick/nfse-emissor/pkg/logger"
)

var (
	version = "1.0.0"

	verbose bool
)

var rootCmd = &cobra.Command{
	Use:   "nfsectl",
	Short: "Ferramentas de operação do emissor de NFSe",
	Long: `nfsectl executa tarefas de operação fora da API HTTP.

Exemplos:
  # Reconsultar notas enviadas que ainda aguardam resposta do provedor
  nfsectl poll-pending --batch 100

  # Cifrar um segredo com a NFSE_MASTER_SECRET (lido da entrada padrão)
  echo -n 'senha-do-certificado' | nfsectl encrypt`,
	Version:       version,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute executa o comando raiz
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Log em nível debug")
}

func loadConfig() (*config.Config, logger.Logger, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, fmt.Errorf("falha ao carregar configuração: %w", err)
	}
	level := cfg.LogLevel
	if verbose {
		level = "debug"
	}
	zl, err := logger.New(logger.Config{Level: level, Format: cfg.LogFormat})
	if err != nil {
		return nil, nil, fmt.Errorf("falha ao criar logger: %w", err)
	}
	return cfg, zl, nil
}
