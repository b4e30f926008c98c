// Package notification define o envio de e-mails com a NFSe autorizada.
package notification

import (
	"context"
	"errors"
	"net/mail"

	"github.com/hugohenrick/nfse-emissor/pkg/logger"
)

// ErrInvalidRecipient ocorre quando o destinatário não é um e-mail válido
var ErrInvalidRecipient = errors.New("destinatário de e-mail inválido")

// Attachment é um arquivo anexado à mensagem
type Attachment struct {
	Name        string
	ContentType string
	Data        []byte
}

// Message é a mensagem a ser entregue ao tomador
type Message struct {
	To          string
	Subject     string
	Body        string
	Attachments []Attachment
}

// Validate verifica o destinatário
func (m Message) Validate() error {
	if _, err := mail.ParseAddress(m.To); err != nil {
		return ErrInvalidRecipient
	}
	return nil
}

// Mailer entrega mensagens. A entrega em si fica a cargo da implementação configurada.
type Mailer interface {
	Send(ctx context.Context, msg Message) error
}

// LogMailer apenas registra a mensagem no log
type LogMailer struct {
	log logger.Logger
}

// NewLogMailer cria uma nova instância de LogMailer
func NewLogMailer(log logger.Logger) *LogMailer {
	if log == nil {
		log = logger.NewNop()
	}
	return &LogMailer{log: log}
}

// Send registra o envio
func (m *LogMailer) Send(_ context.Context, msg Message) error {
	if err := msg.Validate(); err != nil {
		return err
	}
	names := make([]string, 0, len(msg.Attachments))
	for _, a := range msg.Attachments {
		names = append(names, a.Name)
	}
	m.log.Info("e-mail de NFSe enfileirado", "to", msg.To, "subject", msg.Subject, "attachments", names)
	return nil
}
