package pkcs12

import (
	"crypto"
	"crypto/ecdsa"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"errors"
	"time"

	gopkcs12 "software.sslmate.com/src/go-pkcs12"
)

// ErrUnsupportedKey ocorre quando a chave privada não é RSA nem EC
var ErrUnsupportedKey = errors.New("pkcs12: chave privada não suportada")

// Certificate é o certificado digital carregado, com acesso à chave privada para assinatura
type Certificate struct {
	Leaf       *x509.Certificate
	CACerts    []*x509.Certificate
	PrivateKey crypto.Signer
	// Strategy indica qual estratégia conseguiu abrir o container
	Strategy string
}

// NotAfter retorna a data de validade do certificado
func (c *Certificate) NotAfter() time.Time {
	return c.Leaf.NotAfter
}

// Subject retorna o titular do certificado
func (c *Certificate) Subject() string {
	return c.Leaf.Subject.String()
}

// IsExpired verifica se o certificado está vencido na data informada
func (c *Certificate) IsExpired(now time.Time) bool {
	return now.After(c.Leaf.NotAfter)
}

// RSAKey retorna a chave privada RSA, se houver
func (c *Certificate) RSAKey() (*rsa.PrivateKey, bool) {
	k, ok := c.PrivateKey.(*rsa.PrivateKey)
	return k, ok
}

// ECKey retorna a chave privada EC, se houver
func (c *Certificate) ECKey() (*ecdsa.PrivateKey, bool) {
	k, ok := c.PrivateKey.(*ecdsa.PrivateKey)
	return k, ok
}

// ToPEM converte um certificado PKCS12 para blocos PEM
func ToPEM(pfxData []byte, password string) ([]*pem.Block, error) {
	// Decodificar o arquivo PKCS12
	privateKey, certificate, caCerts, err := gopkcs12.DecodeChain(pfxData, password)
	if err != nil {
		return nil, err
	}

	var blocks []*pem.Block

	if certificate != nil {
		blocks = append(blocks, &pem.Block{
			Type:  "CERTIFICATE",
			Bytes: certificate.Raw,
		})
	}

	// Certificados da cadeia (CA)
	for _, cert := range caCerts {
		blocks = append(blocks, &pem.Block{
			Type:  "CERTIFICATE",
			Bytes: cert.Raw,
		})
	}

	if privateKey != nil {
		pkData, err := x509.MarshalPKCS8PrivateKey(privateKey)
		if err != nil {
			return nil, err
		}
		blocks = append(blocks, &pem.Block{
			Type:  "PRIVATE KEY",
			Bytes: pkData,
		})
	}

	return blocks, nil
}

// fromPEM reconstrói o certificado a partir dos blocos gerados por ToPEM.
// O primeiro bloco CERTIFICATE é o certificado do titular.
func fromPEM(blocks []*pem.Block) (*Certificate, error) {
	cert := &Certificate{}
	for _, b := range blocks {
		switch b.Type {
		case "CERTIFICATE":
			c, err := x509.ParseCertificate(b.Bytes)
			if err != nil {
				return nil, err
			}
			if cert.Leaf == nil {
				cert.Leaf = c
			} else {
				cert.CACerts = append(cert.CACerts, c)
			}
		case "PRIVATE KEY":
			key, err := x509.ParsePKCS8PrivateKey(b.Bytes)
			if err != nil {
				return nil, err
			}
			signer, err := asSigner(key)
			if err != nil {
				return nil, err
			}
			cert.PrivateKey = signer
		}
	}
	if cert.Leaf == nil {
		return nil, errors.New("pkcs12: nenhum certificado no container")
	}
	return cert, nil
}

func asSigner(key interface{}) (crypto.Signer, error) {
	switch k := key.(type) {
	case *rsa.PrivateKey:
		return k, nil
	case *ecdsa.PrivateKey:
		return k, nil
	case nil:
		return nil, errPrivateKeyMissing
	default:
		return nil, ErrUnsupportedKey
	}
}
