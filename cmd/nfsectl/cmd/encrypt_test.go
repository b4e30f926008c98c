package cmd

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hugohenrick/nfse-emissor/pkg/vault"
)

func TestEncrypt(t *testing.T) {
	t.Setenv("NFSE_MASTER_SECRET", "segredo-de-teste")

	tests := []struct {
		name    string
		input   string
		wantErr bool
	}{
		{"secret with newline", "senha-do-pfx\n", false},
		{"empty input", "\n", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var out bytes.Buffer
			rootCmd.SetIn(strings.NewReader(tt.input))
			rootCmd.SetOut(&out)
			rootCmd.SetArgs([]string{"encrypt"})

			err := Execute()
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)

			ciphertext := strings.TrimSpace(out.String())
			assert.NotContains(t, ciphertext, "senha-do-pfx")

			v, err := vault.New("segredo-de-teste")
			require.NoError(t, err)
			plain, err := v.Decrypt(ciphertext)
			require.NoError(t, err)
			assert.Equal(t, "senha-do-pfx", plain)
		})
	}
}
