package cmd

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/hugohenrick/nfse-emissor/pkg/vault"
)

// maxSecretSize comporta um certificado .pfx em base64
const maxSecretSize = 256 << 10

var encryptCmd = &cobra.Command{
	Use:   "encrypt",
	Short: "Cifra um segredo para gravação direta no banco",
	Long: `Lê o segredo da entrada padrão e imprime o texto cifrado com a
NFSE_MASTER_SECRET, no mesmo formato usado para senhas e certificados.

O segredo nunca é ecoado.`,
	Args: cobra.NoArgs,
	RunE: runEncrypt,
}

func init() {
	rootCmd.AddCommand(encryptCmd)
}

func runEncrypt(cmd *cobra.Command, _ []string) error {
	cfg, _, err := loadConfig()
	if err != nil {
		return err
	}
	v, err := vault.New(cfg.NFSe.MasterSecret)
	if err != nil {
		return err
	}

	raw, err := io.ReadAll(io.LimitReader(cmd.InOrStdin(), maxSecretSize))
	if err != nil {
		return fmt.Errorf("falha ao ler segredo: %w", err)
	}
	secret := strings.TrimRight(string(raw), "\r\n")
	if secret == "" {
		return errors.New("segredo vazio")
	}

	ciphertext, err := v.Encrypt(secret)
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), ciphertext)
	return nil
}
