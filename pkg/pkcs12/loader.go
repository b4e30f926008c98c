package pkcs12

import (
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	"github.com/hugohenrick/nfse-emissor/pkg/errs"
	gopkcs12 "software.sslmate.com/src/go-pkcs12"
)

// MinContainerSize é o tamanho mínimo plausível de um .pfx com chave e certificado
const MinContainerSize = 512

// legacyColumnCaps são tamanhos em que a coluna antiga truncava o Base64 silenciosamente
var legacyColumnCaps = []int{4000, 8000}

var errPrivateKeyMissing = errors.New("pkcs12: private key missing")

// Strategy é uma forma de abrir o container PKCS#12
type Strategy struct {
	Name string
	Open func(der []byte, password string) (*Certificate, error)
}

// DefaultStrategies é a lista ordenada usada por Load
var DefaultStrategies = []Strategy{
	{Name: "chain", Open: openChain},
	{Name: "single", Open: openSingle},
	{Name: "pem", Open: openPEM},
	{Name: "trimmed-password", Open: openTrimmedPassword},
}

// Loader abre certificados tentando cada estratégia em ordem
type Loader struct {
	Strategies []Strategy
}

// NewLoader cria um Loader com as estratégias padrão
func NewLoader() *Loader {
	return &Loader{Strategies: DefaultStrategies}
}

// Load carrega o certificado com as estratégias padrão
func Load(blobB64, password string) (*Certificate, error) {
	return NewLoader().Load(blobB64, password)
}

// Load decodifica o Base64 e abre o container com a primeira estratégia que produzir
// um certificado com chave privada extraível.
func (l *Loader) Load(blobB64, password string) (*Certificate, error) {
	der, encodedLen, err := decodeBlob(blobB64)
	if err != nil {
		return nil, err
	}

	var causes []error
	for _, s := range l.Strategies {
		cert, err := s.Open(der, password)
		if err != nil {
			causes = append(causes, fmt.Errorf("%s: %w", s.Name, err))
			continue
		}
		if cert == nil || cert.Leaf == nil || cert.PrivateKey == nil {
			causes = append(causes, fmt.Errorf("%s: %w", s.Name, errPrivateKeyMissing))
			continue
		}
		cert.Strategy = s.Name
		return cert, nil
	}

	err = classify(causes)
	// Um container cortado exatamente no limite da coluna antiga costuma decodificar
	// como Base64 válido e falhar apenas na leitura do ASN.1.
	if errs.IsCertificateKind(err, errs.CertificateMalformed) && isLegacyCap(encodedLen) {
		return nil, &errs.CertificateError{Kind: errs.CertificateTruncated, Err: errors.Unwrap(err)}
	}
	return nil, err
}

func decodeBlob(blobB64 string) ([]byte, int, error) {
	cleaned := strings.Map(func(r rune) rune {
		switch r {
		case '\n', '\r', '\t', ' ':
			return -1
		}
		return r
	}, blobB64)

	if cleaned == "" {
		return nil, 0, &errs.CertificateError{Kind: errs.CertificateMissing}
	}

	der, err := base64.StdEncoding.DecodeString(cleaned)
	if err != nil {
		der, err = base64.RawStdEncoding.DecodeString(strings.TrimRight(cleaned, "="))
	}
	if err != nil {
		if isLegacyCap(len(cleaned)) {
			return nil, 0, &errs.CertificateError{Kind: errs.CertificateTruncated, Err: err}
		}
		return nil, 0, &errs.CertificateError{Kind: errs.CertificateMalformed, Err: fmt.Errorf("base64 inválido: %w", err)}
	}

	if len(der) < MinContainerSize {
		return nil, 0, &errs.CertificateError{
			Kind: errs.CertificateTruncated,
			Err:  fmt.Errorf("container com %d bytes, mínimo esperado %d", len(der), MinContainerSize),
		}
	}
	return der, len(cleaned), nil
}

func isLegacyCap(n int) bool {
	for _, c := range legacyColumnCaps {
		if n == c {
			return true
		}
	}
	return false
}

// classify escolhe a causa mais específica entre as falhas das estratégias.
// Senha incorreta tem precedência sobre chave ausente, que tem precedência sobre container inválido.
func classify(causes []error) error {
	joined := errors.Join(causes...)
	for _, c := range causes {
		if errors.Is(c, gopkcs12.ErrIncorrectPassword) || errors.Is(c, gopkcs12.ErrDecryption) {
			return &errs.CertificateError{Kind: errs.CertificateWrongPassword, Err: gopkcs12.ErrIncorrectPassword}
		}
	}
	for _, c := range causes {
		if errors.Is(c, errPrivateKeyMissing) || errors.Is(c, ErrUnsupportedKey) ||
			strings.Contains(c.Error(), "private key missing") {
			return &errs.CertificateError{Kind: errs.CertificateNoPrivateKey, Err: joined}
		}
	}
	return &errs.CertificateError{Kind: errs.CertificateMalformed, Err: joined}
}

func openChain(der []byte, password string) (*Certificate, error) {
	key, leaf, ca, err := gopkcs12.DecodeChain(der, password)
	if err != nil {
		return nil, err
	}
	signer, err := asSigner(key)
	if err != nil {
		return nil, err
	}
	return &Certificate{Leaf: leaf, CACerts: ca, PrivateKey: signer}, nil
}

func openSingle(der []byte, password string) (*Certificate, error) {
	key, leaf, err := gopkcs12.Decode(der, password)
	if err != nil {
		return nil, err
	}
	signer, err := asSigner(key)
	if err != nil {
		return nil, err
	}
	return &Certificate{Leaf: leaf, PrivateKey: signer}, nil
}

func openPEM(der []byte, password string) (*Certificate, error) {
	blocks, err := ToPEM(der, password)
	if err != nil {
		return nil, err
	}
	return fromPEM(blocks)
}

func openTrimmedPassword(der []byte, password string) (*Certificate, error) {
	trimmed := strings.TrimSpace(password)
	if trimmed == password {
		return nil, errors.New("senha sem espaços para remover")
	}
	return openChain(der, trimmed)
}
