// Package errs define a taxonomia de erros do pipeline de emissão de NFSe.
package errs

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrNotFound ocorre quando o registro solicitado não existe
	ErrNotFound = errors.New("registro não encontrado")

	// ErrOutcomeUnknown ocorre quando o envio não obteve resposta do provedor
	// (timeout ou falha de transporte). O resultado real deve ser resolvido por consulta.
	ErrOutcomeUnknown = errors.New("resultado do envio indeterminado")
)

// ValidationError representa dados inválidos detectados antes de qualquer chamada de rede
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return "validação: " + e.Message
	}
	return fmt.Sprintf("validação: %s: %s", e.Field, e.Message)
}

// NewValidationError cria um novo ValidationError
func NewValidationError(field, message string) *ValidationError {
	return &ValidationError{Field: field, Message: message}
}

// CertificateErrorKind classifica a falha de carregamento do certificado
type CertificateErrorKind string

const (
	CertificateMissing       CertificateErrorKind = "missing"
	CertificateWrongPassword CertificateErrorKind = "wrong_password"
	CertificateMalformed     CertificateErrorKind = "malformed"
	CertificateTruncated     CertificateErrorKind = "truncated"
	CertificateNoPrivateKey  CertificateErrorKind = "no_private_key"
	CertificateExpired       CertificateErrorKind = "expired"
)

// CertificateError representa uma falha ao carregar ou usar o certificado digital
type CertificateError struct {
	Kind CertificateErrorKind
	Err  error
}

func (e *CertificateError) Error() string {
	if e.Err == nil {
		return "certificado: " + e.Remediation()
	}
	return fmt.Sprintf("certificado: %s: %v", e.Remediation(), e.Err)
}

func (e *CertificateError) Unwrap() error { return e.Err }

// Remediation retorna a orientação exibida ao usuário para cada tipo de falha
func (e *CertificateError) Remediation() string {
	switch e.Kind {
	case CertificateMissing:
		return "nenhum certificado digital cadastrado para a empresa"
	case CertificateWrongPassword:
		return "senha do certificado incorreta, verifique a senha informada no cadastro"
	case CertificateTruncated:
		return "certificado armazenado está incompleto, envie o arquivo .pfx novamente"
	case CertificateNoPrivateKey:
		return "o arquivo não contém uma chave privada RSA ou EC, exporte o .pfx incluindo a chave privada"
	case CertificateExpired:
		return "certificado digital vencido, cadastre um certificado válido"
	default:
		return "arquivo de certificado inválido ou corrompido, envie um arquivo .pfx/.p12 válido"
	}
}

// IsCertificateKind verifica se err é um CertificateError do tipo informado
func IsCertificateKind(err error, kind CertificateErrorKind) bool {
	var ce *CertificateError
	return errors.As(err, &ce) && ce.Kind == kind
}

// CryptoError representa falha criptográfica (chave, decifragem, assinatura).
// É tratado como dado corrompido e nunca deve ser ignorado.
type CryptoError struct {
	Op  string
	Err error
}

func (e *CryptoError) Error() string {
	if e.Err == nil {
		return "criptografia: " + e.Op
	}
	return fmt.Sprintf("criptografia: %s: %v", e.Op, e.Err)
}

func (e *CryptoError) Unwrap() error { return e.Err }

// FormatError representa uma entrada com codificação inválida
type FormatError struct {
	Op  string
	Err error
}

func (e *FormatError) Error() string {
	if e.Err == nil {
		return "formato inválido: " + e.Op
	}
	return fmt.Sprintf("formato inválido: %s: %v", e.Op, e.Err)
}

func (e *FormatError) Unwrap() error { return e.Err }

// ProtocolError representa uma resposta inesperada de um provedor de emissão.
// Payload guarda o corpo bruto devolvido pelo provedor para diagnóstico.
type ProtocolError struct {
	Provider   string
	Endpoint   string
	StatusCode int
	Payload    string
	Err        error
}

func (e *ProtocolError) Error() string {
	var b strings.Builder
	b.WriteString("protocolo")
	if e.Provider != "" {
		b.WriteString(" [" + e.Provider + "]")
	}
	if e.Endpoint != "" {
		b.WriteString(" " + e.Endpoint)
	}
	if e.StatusCode != 0 {
		fmt.Fprintf(&b, ": status %d", e.StatusCode)
	}
	if e.Err != nil {
		b.WriteString(": " + e.Err.Error())
	}
	return b.String()
}

func (e *ProtocolError) Unwrap() error { return e.Err }

// ConflictError representa violação de unicidade (ex.: CNPJ duplicado)
type ConflictError struct {
	Resource string
	Message  string
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("conflito em %s: %s", e.Resource, e.Message)
}

// TransitionError representa uma transição de situação não permitida
type TransitionError struct {
	From    string
	Trigger string
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("transição %q não permitida a partir da situação %q", e.Trigger, e.From)
}
