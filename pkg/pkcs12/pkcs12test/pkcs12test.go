// Package pkcs12test gera certificados autoassinados para testes.
package pkcs12test

import (
	"crypto"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/base64"
	"math/big"
	"testing"
	"time"

	gopkcs12 "software.sslmate.com/src/go-pkcs12"
)

// Bundle agrupa o container gerado e o material usado para criá-lo
type Bundle struct {
	DER      []byte
	Base64   string
	Password string
	Key      crypto.Signer
	Cert     *x509.Certificate
}

// RSA gera um container PKCS#12 com chave RSA 2048
func RSA(t testing.TB, password string) *Bundle {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("gerar chave RSA: %v", err)
	}
	return build(t, key, password, time.Now().Add(365*24*time.Hour))
}

// ExpiredRSA gera um container PKCS#12 cujo certificado já venceu
func ExpiredRSA(t testing.TB, password string) *Bundle {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("gerar chave RSA: %v", err)
	}
	return build(t, key, password, time.Now().Add(-24*time.Hour))
}

// EC gera um container PKCS#12 com chave ECDSA P-256
func EC(t testing.TB, password string) *Bundle {
	t.Helper()
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		t.Fatalf("gerar chave EC: %v", err)
	}
	return build(t, key, password, time.Now().Add(365*24*time.Hour))
}

func build(t testing.TB, key crypto.Signer, password string, notAfter time.Time) *Bundle {
	t.Helper()
	tmpl := &x509.Certificate{
		SerialNumber: big.NewInt(time.Now().UnixNano()),
		Subject: pkix.Name{
			CommonName:   "EMPRESA TESTE LTDA:12345678000195",
			Organization: []string{"ICP-Brasil"},
			Country:      []string{"BR"},
		},
		NotBefore:   notAfter.Add(-2 * 365 * 24 * time.Hour),
		NotAfter:    notAfter,
		KeyUsage:    x509.KeyUsageDigitalSignature,
		ExtKeyUsage: []x509.ExtKeyUsage{x509.ExtKeyUsageClientAuth},
	}

	der, err := x509.CreateCertificate(rand.Reader, tmpl, tmpl, key.Public(), key)
	if err != nil {
		t.Fatalf("criar certificado: %v", err)
	}
	cert, err := x509.ParseCertificate(der)
	if err != nil {
		t.Fatalf("ler certificado: %v", err)
	}

	pfx, err := gopkcs12.Modern.Encode(key, cert, nil, password)
	if err != nil {
		t.Fatalf("codificar pkcs12: %v", err)
	}

	return &Bundle{
		DER:      pfx,
		Base64:   base64.StdEncoding.EncodeToString(pfx),
		Password: password,
		Key:      key,
		Cert:     cert,
	}
}
