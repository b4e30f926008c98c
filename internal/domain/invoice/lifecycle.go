package invoice

import (
	"strings"
	"time"

	"github.com/qmuntal/stateless"

	"github.com/hugohenrick/nfse-emissor/pkg/errs"
)

// Status é a situação da nota
type Status string

const (
	StatusDraft      Status = "draft"
	StatusSubmitted  Status = "submitted"
	StatusAuthorized Status = "authorized"
	StatusRejected   Status = "rejected"
	StatusCancelled  Status = "cancelled"
)

// Trigger é um evento que move a nota entre situações
type Trigger string

const (
	TriggerSubmit    Trigger = "submit"
	TriggerAuthorize Trigger = "authorize"
	TriggerReject    Trigger = "reject"
	TriggerCancel    Trigger = "cancel"
	TriggerRevert    Trigger = "revert"
)

// AllStatuses lista todas as situações conhecidas
var AllStatuses = []Status{StatusDraft, StatusSubmitted, StatusAuthorized, StatusRejected, StatusCancelled}

// AllTriggers lista todos os eventos conhecidos
var AllTriggers = []Trigger{TriggerSubmit, TriggerAuthorize, TriggerReject, TriggerCancel, TriggerRevert}

func newMachine(from Status) *stateless.StateMachine {
	sm := stateless.NewStateMachine(from)

	sm.Configure(StatusDraft).
		Permit(TriggerSubmit, StatusSubmitted).
		Permit(TriggerAuthorize, StatusAuthorized).
		Permit(TriggerReject, StatusRejected)

	sm.Configure(StatusSubmitted).
		Permit(TriggerAuthorize, StatusAuthorized).
		Permit(TriggerReject, StatusRejected)

	sm.Configure(StatusAuthorized).
		Permit(TriggerCancel, StatusCancelled)

	sm.Configure(StatusRejected).
		Permit(TriggerRevert, StatusDraft)

	sm.Configure(StatusCancelled)

	return sm
}

// Next retorna a situação resultante do evento a partir de from, sem alterar nada.
// Pares não previstos na tabela retornam *errs.TransitionError.
func Next(from Status, trigger Trigger) (Status, error) {
	if from == "" {
		from = StatusDraft
	}
	sm := newMachine(from)
	if err := sm.Fire(trigger); err != nil {
		return from, &errs.TransitionError{From: string(from), Trigger: string(trigger)}
	}
	return sm.MustState().(Status), nil
}

// CanFire verifica se o evento é permitido na situação atual da nota
func (inv *Invoice) CanFire(trigger Trigger) bool {
	_, err := Next(inv.Status, trigger)
	return err == nil
}

func (inv *Invoice) fire(trigger Trigger) error {
	next, err := Next(inv.Status, trigger)
	if err != nil {
		return err
	}
	inv.Status = next
	inv.UpdatedAt = time.Now()
	return nil
}

// Authorization são os dados devolvidos pelo provedor quando a nota é autorizada
type Authorization struct {
	Number           string
	VerificationCode string
	AccessKeyDPS     string
	AccessKeyNFSe    string
	Raw              string
}

// RecordDPS registra o identificador da DPS gerada para a nota, antes do envio.
// A situação não muda; um envio sem resposta é resolvido depois pela chave registrada.
func (inv *Invoice) RecordDPS(dpsID, accessKeyDPS string) error {
	if !inv.IsEditable() {
		return &errs.TransitionError{From: string(inv.Status), Trigger: string(TriggerSubmit)}
	}
	inv.DPSID = dpsID
	if accessKeyDPS != "" {
		inv.AccessKeyDPS = accessKeyDPS
	}
	inv.UpdatedAt = time.Now()
	return nil
}

// MarkSubmitted registra que o provedor recebeu a DPS para processamento
func (inv *Invoice) MarkSubmitted(receiptNumber, accessKeyDPS, raw string, at time.Time) error {
	if err := inv.fire(TriggerSubmit); err != nil {
		return err
	}
	inv.ReceiptNumber = receiptNumber
	if accessKeyDPS != "" {
		inv.AccessKeyDPS = accessKeyDPS
	}
	inv.ProviderResponse = raw
	inv.SubmittedAt = &at
	return nil
}

// MarkAuthorized registra a autorização com chaves e código de verificação.
// Sem a chave de acesso da NFSe a nota não é autorizada e nada muda.
// O número alocado na emissão é mantido; o número do provedor só é usado
// quando a nota ainda não tem número.
func (inv *Invoice) MarkAuthorized(a Authorization, at time.Time) error {
	if strings.TrimSpace(a.AccessKeyNFSe) == "" {
		return errs.NewValidationError("access_key_nfse", ErrMissingAccessKey.Error())
	}
	from := inv.Status
	if err := inv.fire(TriggerAuthorize); err != nil {
		return err
	}
	if inv.Number == "" && a.Number != "" {
		inv.Number = a.Number
	}
	if a.VerificationCode != "" {
		inv.VerificationCode = a.VerificationCode
	}
	if a.AccessKeyDPS != "" {
		inv.AccessKeyDPS = a.AccessKeyDPS
	}
	inv.AccessKeyNFSe = a.AccessKeyNFSe
	inv.ProviderResponse = a.Raw
	inv.RejectionReason = ""
	if from == StatusDraft && inv.SubmittedAt == nil {
		inv.SubmittedAt = &at
	}
	inv.AuthorizedAt = &at
	return nil
}

// MarkRejected registra a rejeição com o motivo devolvido pelo provedor, sem alterações
func (inv *Invoice) MarkRejected(reason, raw string) error {
	if err := inv.fire(TriggerReject); err != nil {
		return err
	}
	inv.RejectionReason = reason
	inv.ProviderResponse = raw
	return nil
}

// Cancel cancela uma nota autorizada. O motivo é obrigatório.
func (inv *Invoice) Cancel(reason string, at time.Time) error {
	if strings.TrimSpace(reason) == "" {
		return errs.NewValidationError("reason", ErrEmptyReason.Error())
	}
	if err := inv.fire(TriggerCancel); err != nil {
		return err
	}
	inv.CancelReason = reason
	inv.CancelledAt = &at
	return nil
}

// Revert devolve uma nota rejeitada ao rascunho. O número já alocado é mantido
// para ser reutilizado no próximo envio.
func (inv *Invoice) Revert() error {
	if err := inv.fire(TriggerRevert); err != nil {
		return err
	}
	inv.DPSID = ""
	inv.ReceiptNumber = ""
	inv.AccessKeyDPS = ""
	inv.AccessKeyNFSe = ""
	inv.VerificationCode = ""
	inv.ProviderResponse = ""
	inv.RejectionReason = ""
	inv.SubmittedAt = nil
	return nil
}
