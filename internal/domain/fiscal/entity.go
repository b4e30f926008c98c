package fiscal

import (
	"fmt"
	"strconv"
	"strings"
)

// FiscalEnvironment define o ambiente do emissor de NFSe
type FiscalEnvironment string

const (
	Production   FiscalEnvironment = "production"
	Homologation FiscalEnvironment = "homologation"
)

// TpAmb retorna o código do ambiente usado na DPS (1 produção, 2 homologação)
func (e FiscalEnvironment) TpAmb() string {
	if e == Production {
		return "1"
	}
	return "2"
}

// NumberWidth é a quantidade de dígitos do número da nota
const NumberWidth = 6

// FormatNumber formata o número sequencial com zeros à esquerda
func FormatNumber(n int64) string {
	return fmt.Sprintf("%0*d", NumberWidth, n)
}

// ParseNumber interpreta um número de nota armazenado. Valores vazios ou não numéricos valem zero.
func ParseNumber(s string) int64 {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0
	}
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil || n < 0 {
		return 0
	}
	return n
}

// MaxNumber retorna o maior número válido entre os informados
func MaxNumber(numbers []string) int64 {
	var max int64
	for _, s := range numbers {
		if n := ParseNumber(s); n > max {
			max = n
		}
	}
	return max
}
