// Package provider implementa os provedores de emissão de NFSe e a seleção por tenant.
package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"strconv"
	"strings"
	"time"

	"github.com/hugohenrick/nfse-emissor/internal/domain/fiscal"
	"github.com/hugohenrick/nfse-emissor/pkg/pkcs12"
)

// Códigos de status (cStat) usados pelos provedores
const (
	StatusAuthorized = "100"
	StatusReceived   = "103"
	StatusProcessing = "105"
)

// DefaultTimeout é o limite padrão de cada chamada HTTP ao provedor
const DefaultTimeout = 30 * time.Second

// Session carrega o contexto de emissão de um tenant: identificação, certificado e credenciais decifradas
type Session struct {
	TenantID     string
	TaxID        string
	Environment  fiscal.FiscalEnvironment
	Certificate  *pkcs12.Certificate
	ClientID     string
	ClientSecret string
}

// Token é o token de acesso devolvido pelo provedor
type Token struct {
	AccessToken string
	// ExpiresIn é zero quando o provedor não informa a validade
	ExpiresIn time.Duration
}

// Situation é a situação normalizada de uma DPS no provedor
type Situation string

const (
	SituationProcessing Situation = "processing"
	SituationAuthorized Situation = "authorized"
	SituationRejected   Situation = "rejected"
	// SituationNotFound indica que o provedor não conhece a DPS consultada
	SituationNotFound Situation = "not_found"
)

// AccessKeys são as chaves de acesso da DPS e da NFSe
type AccessKeys struct {
	DPS  string
	NFSe string
}

// EmitRequest é a DPS assinada a ser enviada
type EmitRequest struct {
	DPSID     string
	SignedXML []byte
}

// Result é a resposta normalizada de envio ou consulta
type Result struct {
	Situation        Situation
	ReceiptNumber    string
	StatusCode       string
	Message          string
	AccessKeys       AccessKeys
	Number           string
	VerificationCode string
	Raw              string
}

// EmitResult é a resposta ao envio da DPS
type EmitResult = Result

// StatusResult é a resposta de uma consulta de situação
type StatusResult = Result

// QueryRequest identifica a nota a consultar. AccessKeys.NFSe tem precedência.
type QueryRequest struct {
	DPSID      string
	AccessKeys AccessKeys
}

// CancelRequest é o pedido de cancelamento de uma NFSe autorizada
type CancelRequest struct {
	AccessKeyNFSe string
	Reason        string
}

// CancelResult é a resposta ao pedido de cancelamento
type CancelResult struct {
	Accepted   bool
	StatusCode string
	Message    string
	Raw        string
}

// Client é o contrato comum dos provedores de emissão
type Client interface {
	Name() string
	ObtainToken(ctx context.Context, s *Session) (*Token, error)
	Emit(ctx context.Context, s *Session, token string, req EmitRequest) (*EmitResult, error)
	PollProcessingStatus(ctx context.Context, s *Session, token, receiptNumber string) (*StatusResult, error)
	QueryStatus(ctx context.Context, s *Session, token string, q QueryRequest) (*StatusResult, error)
	DownloadArtifact(ctx context.Context, s *Session, token, accessKeyNFSe string) ([]byte, error)
	Cancel(ctx context.Context, s *Session, token string, req CancelRequest) (*CancelResult, error)
}

// SituationOf classifica um código de status. Em respostas definitivas, qualquer código
// diferente de autorizado ou em processamento significa rejeição.
func SituationOf(code string) Situation {
	switch strings.TrimSpace(code) {
	case StatusAuthorized:
		return SituationAuthorized
	case StatusReceived, StatusProcessing, "":
		return SituationProcessing
	default:
		return SituationRejected
	}
}

// code aceita valores JSON numéricos ou texto (ex.: 100 ou "100")
type code string

func (c *code) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if bytes.Equal(b, []byte("null")) {
		*c = ""
		return nil
	}
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*c = code(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return err
	}
	if i, err := strconv.ParseInt(string(n), 10, 64); err == nil {
		*c = code(strconv.FormatInt(i, 10))
		return nil
	}
	*c = code(n)
	return nil
}

func (c code) String() string { return string(c) }

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
