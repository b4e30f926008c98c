// Package vault cifra e decifra segredos armazenados (senha do certificado,
// certificado e credenciais de API) com AES-256-CBC.
package vault

import (
	"bytes"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"

	"github.com/hugohenrick/nfse-emissor/pkg/errs"
)

// ErrEmptySecret ocorre quando a chave mestra não foi configurada
var ErrEmptySecret = errors.New("chave mestra do cofre não configurada")

// Vault cifra segredos com uma chave derivada da chave mestra configurada
type Vault struct {
	key []byte
}

// New cria um novo Vault. A chave AES-256 é o SHA-256 da chave mestra.
func New(masterSecret string) (*Vault, error) {
	if masterSecret == "" {
		return nil, ErrEmptySecret
	}
	sum := sha256.Sum256([]byte(masterSecret))
	return &Vault{key: sum[:]}, nil
}

// Encrypt cifra o texto e retorna Base64(IV || ciphertext). Um IV aleatório é gerado por chamada.
func (v *Vault) Encrypt(plaintext string) (string, error) {
	block, err := aes.NewCipher(v.key)
	if err != nil {
		return "", &errs.CryptoError{Op: "criar cifra", Err: err}
	}

	iv := make([]byte, aes.BlockSize)
	if _, err := rand.Read(iv); err != nil {
		return "", &errs.CryptoError{Op: "gerar IV", Err: err}
	}

	padded := pad([]byte(plaintext), aes.BlockSize)
	out := make([]byte, aes.BlockSize+len(padded))
	copy(out, iv)
	cipher.NewCBCEncrypter(block, iv).CryptBlocks(out[aes.BlockSize:], padded)

	return base64.StdEncoding.EncodeToString(out), nil
}

// Decrypt decifra um valor produzido por Encrypt.
// Retorna *errs.FormatError para entrada mal codificada e *errs.CryptoError quando a
// decifragem falha (chave errada ou dado corrompido).
func (v *Vault) Decrypt(ciphertextB64 string) (string, error) {
	raw, err := base64.StdEncoding.DecodeString(ciphertextB64)
	if err != nil {
		return "", &errs.FormatError{Op: "decodificar base64", Err: err}
	}
	if len(raw) < 2*aes.BlockSize || len(raw)%aes.BlockSize != 0 {
		return "", &errs.FormatError{Op: "tamanho do texto cifrado", Err: fmt.Errorf("%d bytes", len(raw))}
	}

	block, err := aes.NewCipher(v.key)
	if err != nil {
		return "", &errs.CryptoError{Op: "criar cifra", Err: err}
	}

	iv, body := raw[:aes.BlockSize], raw[aes.BlockSize:]
	plain := make([]byte, len(body))
	cipher.NewCBCDecrypter(block, iv).CryptBlocks(plain, body)

	unpadded, err := unpad(plain, aes.BlockSize)
	if err != nil {
		return "", &errs.CryptoError{Op: "decifrar", Err: err}
	}
	return string(unpadded), nil
}

// EncryptIfNotEmpty cifra o valor somente quando ele não está vazio
func (v *Vault) EncryptIfNotEmpty(plaintext string) (string, error) {
	if plaintext == "" {
		return "", nil
	}
	return v.Encrypt(plaintext)
}

// DecryptIfNotEmpty decifra o valor somente quando ele não está vazio
func (v *Vault) DecryptIfNotEmpty(ciphertextB64 string) (string, error) {
	if ciphertextB64 == "" {
		return "", nil
	}
	return v.Decrypt(ciphertextB64)
}

func pad(data []byte, size int) []byte {
	n := size - len(data)%size
	return append(data, bytes.Repeat([]byte{byte(n)}, n)...)
}

func unpad(data []byte, size int) ([]byte, error) {
	if len(data) == 0 || len(data)%size != 0 {
		return nil, errors.New("padding inválido")
	}
	n := int(data[len(data)-1])
	if n == 0 || n > size || n > len(data) {
		return nil, errors.New("padding inválido")
	}
	for _, b := range data[len(data)-n:] {
		if int(b) != n {
			return nil, errors.New("padding inválido")
		}
	}
	return data[:len(data)-n], nil
}
