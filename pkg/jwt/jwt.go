package jwt

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/hugohenrick/nfse-emissor/pkg/errs"
	"github.com/hugohenrick/nfse-emissor/pkg/pkcs12"
)

// AssertionTTL é a validade da asserção enviada ao endpoint de token
const AssertionTTL = 5 * time.Minute

var (
	// ErrUnknownAudience é retornado quando o ambiente não tem endpoint de token configurado
	ErrUnknownAudience = errors.New("endpoint de token não configurado para o ambiente")
	// ErrNotRSAKey é retornado quando o certificado não possui chave RSA
	ErrNotRSAKey = errors.New("asserção exige chave privada RSA")
)

// Claims representa as claims da asserção jwt-bearer
type Claims struct {
	CNPJ     string `json:"cnpj"`
	Ambiente string `json:"ambiente"`
	jwt.RegisteredClaims
}

// AssertionIssuer emite asserções JWT RS256 assinadas com o certificado do contribuinte
type AssertionIssuer struct {
	// Audiences mapeia ambiente (production, homologation) para a URL do endpoint de token
	Audiences map[string]string
	Clock     func() time.Time
}

// NewAssertionIssuer cria uma nova instância de AssertionIssuer
func NewAssertionIssuer(audiences map[string]string) *AssertionIssuer {
	return &AssertionIssuer{Audiences: audiences, Clock: time.Now}
}

// IssueAssertion gera a asserção identificando o contribuinte pelo CNPJ
func (a *AssertionIssuer) IssueAssertion(cert *pkcs12.Certificate, taxID, environment string) (string, error) {
	if cert == nil {
		return "", &errs.CryptoError{Op: "emitir asserção", Err: errors.New("certificado ausente")}
	}
	key, ok := cert.RSAKey()
	if !ok {
		return "", &errs.CryptoError{Op: "emitir asserção", Err: ErrNotRSAKey}
	}
	aud, ok := a.Audiences[environment]
	if !ok || aud == "" {
		return "", &errs.CryptoError{Op: "emitir asserção", Err: fmt.Errorf("%w: %s", ErrUnknownAudience, environment)}
	}

	now := time.Now
	if a.Clock != nil {
		now = a.Clock
	}
	issuedAt := now()

	claims := Claims{
		CNPJ:     taxID,
		Ambiente: environment,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    taxID,
			Subject:   taxID,
			Audience:  jwt.ClaimStrings{aud},
			ID:        uuid.NewString(),
			IssuedAt:  jwt.NewNumericDate(issuedAt),
			ExpiresAt: jwt.NewNumericDate(issuedAt.Add(AssertionTTL)),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodRS256, claims)
	signed, err := token.SignedString(key)
	if err != nil {
		return "", &errs.CryptoError{Op: "assinar asserção", Err: err}
	}
	return signed, nil
}
