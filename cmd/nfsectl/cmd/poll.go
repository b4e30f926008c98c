package cmd

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/hugohenrick/nfse-emissor/internal/app"
)

var pollBatch int

var pollCmd = &cobra.Command{
	Use:   "poll-pending",
	Short: "Reconsulta a situação das notas enviadas",
	Long: `Consulta no provedor as notas em situação "enviada" de todos os tenants.

Notas autorizadas têm o PDF baixado. Falhas em notas individuais são
reportadas ao final sem interromper as demais.`,
	Args: cobra.NoArgs,
	RunE: runPoll,
}

func init() {
	pollCmd.Flags().IntVar(&pollBatch, "batch", 0, "Máximo de notas por execução (padrão: NFSE_POLL_BATCH)")
	rootCmd.AddCommand(pollCmd)
}

func runPoll(cmd *cobra.Command, _ []string) error {
	cfg, log, err := loadConfig()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	container, err := app.NewContainer(ctx, cfg, log, prometheus.NewRegistry())
	if err != nil {
		return err
	}
	defer container.Close()

	batch := pollBatch
	if batch <= 0 {
		batch = cfg.NFSe.PollBatch
	}

	resolved, err := container.Service.PollPending(ctx, batch)
	fmt.Fprintf(cmd.OutOrStdout(), "notas resolvidas: %d\n", resolved)
	return err
}
