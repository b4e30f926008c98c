// Package emission orquestra a emissão de NFSe: geração da DPS, assinatura, envio ao
// provedor, consulta de situação, download do PDF e cancelamento.
package emission

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/hashicorp/go-multierror"
	"golang.org/x/sync/errgroup"

	"github.com/hugohenrick/nfse-emissor/internal/domain/customer"
	"github.com/hugohenrick/nfse-emissor/internal/domain/fiscal"
	"github.com/hugohenrick/nfse-emissor/internal/domain/invoice"
	"github.com/hugohenrick/nfse-emissor/internal/domain/tenant"
	"github.com/hugohenrick/nfse-emissor/internal/nfse/dps"
	"github.com/hugohenrick/nfse-emissor/internal/nfse/xmlsign"
	"github.com/hugohenrick/nfse-emissor/internal/notification"
	"github.com/hugohenrick/nfse-emissor/internal/provider"
	"github.com/hugohenrick/nfse-emissor/internal/storage"
	"github.com/hugohenrick/nfse-emissor/pkg/errs"
	"github.com/hugohenrick/nfse-emissor/pkg/logger"
	"github.com/hugohenrick/nfse-emissor/pkg/pkcs12"
	"github.com/hugohenrick/nfse-emissor/pkg/vault"
)

const (
	defaultStepTimeout  = 45 * time.Second
	defaultPollAttempts = 3
	defaultPollInterval = 2 * time.Second
	pollConcurrency     = 4
	defaultStorageDir   = "storage/nfse"
)

// ProviderResolver escolhe o cliente do provedor de cada tenant
type ProviderResolver interface {
	ResolveProvider(ctx context.Context, tenantID string) provider.Client
}

// Dependencies reúne os colaboradores do serviço de emissão
type Dependencies struct {
	Invoices     invoice.Repository
	Tenants      tenant.Repository
	Customers    customer.Repository
	Vault        *vault.Vault
	Certificates *pkcs12.Loader
	Allocator    *fiscal.Allocator
	Generator    *dps.Generator
	Signer       *xmlsign.Signer
	Providers    ProviderResolver
	Tokens       *provider.TokenCache
	Store        *storage.FileStore
	Mailer       notification.Mailer
	Metrics      *Metrics
	Logger       logger.Logger
}

// Config controla tempos limite e a consulta de situação feita por Emit
type Config struct {
	// StepTimeout limita cada chamada ao provedor
	StepTimeout time.Duration
	// PollAttempts é o número de consultas feitas por Emit enquanto a DPS estiver em processamento
	PollAttempts int
	PollInterval time.Duration
}

// Outcome é o resultado de Emit. Falhas na consulta ou no download do PDF viram avisos
// e não desfazem o envio.
type Outcome struct {
	Invoice  *invoice.Invoice
	Warnings []string
}

// Service executa as operações do ciclo de vida da nota
type Service struct {
	Dependencies
	cfg Config
	now func() time.Time
}

// NewService cria uma nova instância de Service
func NewService(deps Dependencies, cfg Config) *Service {
	if cfg.StepTimeout <= 0 {
		cfg.StepTimeout = defaultStepTimeout
	}
	if cfg.PollAttempts <= 0 {
		cfg.PollAttempts = defaultPollAttempts
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = defaultPollInterval
	}
	if deps.Logger == nil {
		deps.Logger = logger.NewNop()
	}
	if deps.Certificates == nil {
		deps.Certificates = pkcs12.NewLoader()
	}
	if deps.Generator == nil {
		deps.Generator = dps.NewGenerator("", false)
	}
	if deps.Signer == nil {
		deps.Signer = xmlsign.NewSigner()
	}
	if deps.Tokens == nil {
		deps.Tokens = provider.NewTokenCache()
	}
	if deps.Store == nil {
		deps.Store = storage.NewFileStore(defaultStorageDir, false, deps.Logger)
	}
	if deps.Mailer == nil {
		deps.Mailer = notification.NewLogMailer(deps.Logger)
	}
	return &Service{Dependencies: deps, cfg: cfg, now: time.Now}
}

// Submit gera, assina e envia a DPS da nota em rascunho.
//
// Quando um envio anterior ficou sem resposta, a nota continua em rascunho com o Id da DPS
// registrado e o próximo Submit consulta o provedor por essa chave antes de reenviar.
func (s *Service) Submit(ctx context.Context, tenantID, invoiceID string) (*invoice.Invoice, error) {
	inv, t, err := s.load(ctx, tenantID, invoiceID)
	if err != nil {
		return nil, err
	}
	if !inv.CanFire(invoice.TriggerSubmit) {
		return inv, &errs.TransitionError{From: string(inv.Status), Trigger: string(invoice.TriggerSubmit)}
	}
	if err := inv.Validate(); err != nil {
		s.Metrics.record("submit", "invalid")
		return inv, err
	}
	if !t.IsActive() {
		return inv, errs.NewValidationError("tenant", "empresa inativa não pode emitir notas")
	}

	tomador, err := s.customerOf(ctx, inv)
	if err != nil {
		return inv, err
	}

	session, err := s.session(t)
	if err != nil {
		s.Metrics.record("submit", "certificate")
		return inv, err
	}
	client := s.Providers.ResolveProvider(ctx, tenantID)

	if inv.DPSID != "" {
		resolved, err := s.resolvePending(ctx, client, session, t, inv)
		if err != nil {
			return inv, err
		}
		if resolved {
			return inv, nil
		}
	}

	if inv.Number == "" {
		number, err := s.Allocator.NextNumber(ctx, tenantID)
		if err != nil {
			return inv, err
		}
		inv.Number = number
		if err := s.Invoices.Update(ctx, inv); err != nil {
			return inv, fmt.Errorf("falha ao registrar número da nota: %w", err)
		}
	}

	doc, err := s.Generator.Generate(inv, t, tomador)
	if err != nil {
		return inv, err
	}
	s.snapshot(t, doc.ID, storage.StagePreSign, doc.XML)

	signed, err := s.Signer.Sign(doc.XML, session.Certificate)
	if err != nil {
		return inv, err
	}
	s.snapshot(t, doc.ID, storage.StageSigned, signed)

	token, err := s.token(ctx, client, session)
	if err != nil {
		return inv, err
	}

	if err := inv.RecordDPS(doc.ID, ""); err != nil {
		return inv, err
	}
	if err := s.Invoices.Update(ctx, inv); err != nil {
		return inv, fmt.Errorf("falha ao registrar DPS: %w", err)
	}

	if err := ctx.Err(); err != nil {
		return inv, err
	}

	callCtx, cancel := context.WithTimeout(ctx, s.cfg.StepTimeout)
	started := time.Now()
	res, err := client.Emit(callCtx, session, token, provider.EmitRequest{DPSID: doc.ID, SignedXML: signed})
	cancel()
	s.Metrics.observe(client.Name(), "emit", started)

	persistCtx := context.WithoutCancel(ctx)
	if err != nil {
		s.snapshot(t, doc.ID, storage.StageSendError, signed)
		s.forgetTokenOn(err, client, session)
		if errors.Is(err, errs.ErrOutcomeUnknown) {
			s.Metrics.record("submit", "unknown")
			s.Logger.Warn("envio sem resposta do provedor, situação será consultada no próximo envio",
				"tenant_id", tenantID, "invoice_id", inv.ID, "dps_id", doc.ID, "error", err)
			return inv, err
		}
		var pe *errs.ProtocolError
		if errors.As(err, &pe) {
			return s.rejectOnSubmit(persistCtx, inv, pe)
		}
		s.Metrics.record("submit", "error")
		return inv, err
	}

	if err := s.apply(inv, res); err != nil {
		return inv, err
	}
	if inv.Status == invoice.StatusRejected {
		s.snapshot(t, doc.ID, storage.StageSendError, signed)
	}
	if err := s.Invoices.Update(persistCtx, inv); err != nil {
		return inv, fmt.Errorf("falha ao salvar resultado do envio: %w", err)
	}

	s.Metrics.record("submit", string(inv.Status))
	s.Logger.Info("DPS enviada", "tenant_id", tenantID, "invoice_id", inv.ID, "number", inv.Number,
		"status", string(inv.Status), "provider", client.Name())
	return inv, nil
}

// rejectOnSubmit registra como rejeitada a nota cujo envio foi recusado pelo provedor,
// guardando o corpo da resposta como motivo.
func (s *Service) rejectOnSubmit(ctx context.Context, inv *invoice.Invoice, pe *errs.ProtocolError) (*invoice.Invoice, error) {
	reason := strings.TrimSpace(pe.Payload)
	if reason == "" {
		reason = pe.Error()
	}
	if err := inv.MarkRejected(reason, pe.Payload); err != nil {
		return inv, err
	}
	if err := s.Invoices.Update(ctx, inv); err != nil {
		return inv, fmt.Errorf("falha ao salvar rejeição do envio: %w", err)
	}
	s.Metrics.record("submit", string(invoice.StatusRejected))
	s.Logger.Warn("envio recusado pelo provedor", "tenant_id", inv.TenantID, "invoice_id", inv.ID,
		"provider", pe.Provider, "status_code", pe.StatusCode)
	return inv, nil
}

// resolvePending consulta a DPS de um envio anterior sem resposta. Retorna false quando o
// provedor não a conhece e um novo envio é seguro.
func (s *Service) resolvePending(ctx context.Context, client provider.Client, session *provider.Session, t *tenant.Tenant, inv *invoice.Invoice) (bool, error) {
	token, err := s.token(ctx, client, session)
	if err != nil {
		return false, err
	}

	callCtx, cancel := context.WithTimeout(ctx, s.cfg.StepTimeout)
	res, err := client.QueryStatus(callCtx, session, token, provider.QueryRequest{
		DPSID:      inv.DPSID,
		AccessKeys: provider.AccessKeys{DPS: inv.AccessKeyDPS},
	})
	cancel()
	if err != nil {
		s.forgetTokenOn(err, client, session)
		s.snapshotPayload(t, inv.DPSID, err)
		return false, fmt.Errorf("falha ao consultar envio pendente: %w", err)
	}
	if res.Situation == provider.SituationNotFound {
		s.Logger.Info("DPS pendente desconhecida pelo provedor, reenviando", "invoice_id", inv.ID, "dps_id", inv.DPSID)
		return false, nil
	}

	if err := s.apply(inv, res); err != nil {
		return false, err
	}
	if err := s.Invoices.Update(context.WithoutCancel(ctx), inv); err != nil {
		return false, fmt.Errorf("falha ao salvar situação do envio pendente: %w", err)
	}
	s.Metrics.record("submit", "recovered")
	return true, nil
}

// PollStatus consulta a situação de uma nota enviada. Em processamento nada muda;
// falhas mantêm a nota como enviada e retornam o erro.
func (s *Service) PollStatus(ctx context.Context, tenantID, invoiceID string) (*invoice.Invoice, error) {
	inv, t, err := s.load(ctx, tenantID, invoiceID)
	if err != nil {
		return nil, err
	}
	if inv.Status != invoice.StatusSubmitted {
		return inv, &errs.TransitionError{From: string(inv.Status), Trigger: "poll"}
	}

	session, err := s.session(t)
	if err != nil {
		return inv, err
	}
	client := s.Providers.ResolveProvider(ctx, tenantID)
	token, err := s.token(ctx, client, session)
	if err != nil {
		return inv, err
	}

	callCtx, cancel := context.WithTimeout(ctx, s.cfg.StepTimeout)
	started := time.Now()
	var res *provider.StatusResult
	if inv.ReceiptNumber != "" {
		res, err = client.PollProcessingStatus(callCtx, session, token, inv.ReceiptNumber)
	} else {
		res, err = client.QueryStatus(callCtx, session, token, provider.QueryRequest{
			DPSID:      inv.DPSID,
			AccessKeys: provider.AccessKeys{DPS: inv.AccessKeyDPS},
		})
	}
	cancel()
	s.Metrics.observe(client.Name(), "poll", started)

	if err != nil {
		s.forgetTokenOn(err, client, session)
		s.snapshotPayload(t, inv.DPSID, err)
		s.Metrics.record("poll", "error")
		return inv, err
	}

	switch situationOf(res) {
	case provider.SituationProcessing:
		s.Metrics.record("poll", "processing")
		return inv, nil
	case provider.SituationNotFound:
		s.Metrics.record("poll", "error")
		return inv, fmt.Errorf("provedor não localizou a DPS %s: %w", inv.DPSID, errs.ErrNotFound)
	}

	if err := s.apply(inv, res); err != nil {
		return inv, err
	}
	if err := s.Invoices.Update(context.WithoutCancel(ctx), inv); err != nil {
		return inv, fmt.Errorf("falha ao salvar situação da nota: %w", err)
	}
	s.Metrics.record("poll", string(inv.Status))
	return inv, nil
}

// RetrieveArtifact baixa e armazena o PDF de uma nota autorizada
func (s *Service) RetrieveArtifact(ctx context.Context, tenantID, invoiceID string) (*invoice.Invoice, error) {
	inv, t, err := s.load(ctx, tenantID, invoiceID)
	if err != nil {
		return nil, err
	}
	if inv.Status != invoice.StatusAuthorized {
		return inv, &errs.TransitionError{From: string(inv.Status), Trigger: "download"}
	}
	if inv.AccessKeyNFSe == "" {
		return inv, errs.NewValidationError("access_key_nfse", "nota autorizada sem chave de acesso")
	}

	tomador, err := s.customerOf(ctx, inv)
	if err != nil {
		return inv, err
	}
	session, err := s.session(t)
	if err != nil {
		return inv, err
	}
	client := s.Providers.ResolveProvider(ctx, tenantID)
	token, err := s.token(ctx, client, session)
	if err != nil {
		return inv, err
	}

	callCtx, cancel := context.WithTimeout(ctx, s.cfg.StepTimeout)
	started := time.Now()
	pdf, err := client.DownloadArtifact(callCtx, session, token, inv.AccessKeyNFSe)
	cancel()
	s.Metrics.observe(client.Name(), "download", started)
	if err != nil {
		s.forgetTokenOn(err, client, session)
		s.Metrics.record("download", "error")
		return inv, err
	}

	name := ""
	if tomador != nil {
		name = tomador.Name
	}
	path, err := s.Store.SavePDF(session.TaxID, inv.Number, name, pdf)
	if err != nil {
		s.Logger.Warn("falha ao armazenar PDF da NFSe", "invoice_id", inv.ID, "error", err)
		s.Metrics.record("download", "storage_error")
		return inv, err
	}

	inv.PDFPath = path
	inv.UpdatedAt = s.now()
	if err := s.Invoices.Update(context.WithoutCancel(ctx), inv); err != nil {
		return inv, fmt.Errorf("falha ao salvar caminho do PDF: %w", err)
	}
	s.Metrics.record("download", "ok")
	return inv, nil
}

// Emit executa envio, consulta e download. Falhas depois do envio são devolvidas como avisos.
func (s *Service) Emit(ctx context.Context, tenantID, invoiceID string) (*Outcome, error) {
	inv, err := s.Submit(ctx, tenantID, invoiceID)
	out := &Outcome{Invoice: inv}
	if err != nil {
		return out, err
	}

	for attempt := 1; out.Invoice.Status == invoice.StatusSubmitted && attempt <= s.cfg.PollAttempts; attempt++ {
		if attempt > 1 && !s.wait(ctx) {
			out.Warnings = append(out.Warnings, "consulta de situação interrompida: "+ctx.Err().Error())
			break
		}
		polled, err := s.PollStatus(ctx, tenantID, invoiceID)
		if err != nil {
			out.Warnings = append(out.Warnings, "falha ao consultar situação: "+err.Error())
			break
		}
		out.Invoice = polled
	}
	if out.Invoice.Status == invoice.StatusSubmitted && len(out.Warnings) == 0 {
		out.Warnings = append(out.Warnings, "nota ainda em processamento no provedor")
	}

	if out.Invoice.Status == invoice.StatusAuthorized && out.Invoice.PDFPath == "" {
		withPDF, err := s.RetrieveArtifact(ctx, tenantID, invoiceID)
		if err != nil {
			out.Warnings = append(out.Warnings, "falha ao obter PDF: "+err.Error())
		} else {
			out.Invoice = withPDF
		}
	}
	return out, nil
}

// Cancel cancela uma nota autorizada no provedor e localmente
func (s *Service) Cancel(ctx context.Context, tenantID, invoiceID, reason string) (*invoice.Invoice, error) {
	if strings.TrimSpace(reason) == "" {
		return nil, errs.NewValidationError("reason", invoice.ErrEmptyReason.Error())
	}
	inv, t, err := s.load(ctx, tenantID, invoiceID)
	if err != nil {
		return nil, err
	}
	if !inv.CanFire(invoice.TriggerCancel) {
		return inv, &errs.TransitionError{From: string(inv.Status), Trigger: string(invoice.TriggerCancel)}
	}

	session, err := s.session(t)
	if err != nil {
		return inv, err
	}
	client := s.Providers.ResolveProvider(ctx, tenantID)
	token, err := s.token(ctx, client, session)
	if err != nil {
		return inv, err
	}
	if err := ctx.Err(); err != nil {
		return inv, err
	}

	callCtx, cancel := context.WithTimeout(ctx, s.cfg.StepTimeout)
	started := time.Now()
	res, err := client.Cancel(callCtx, session, token, provider.CancelRequest{AccessKeyNFSe: inv.AccessKeyNFSe, Reason: reason})
	cancel()
	s.Metrics.observe(client.Name(), "cancel", started)
	if err != nil {
		s.forgetTokenOn(err, client, session)
		s.Metrics.record("cancel", "error")
		return inv, err
	}
	if !res.Accepted {
		s.Metrics.record("cancel", "refused")
		return inv, &errs.ProtocolError{
			Provider: client.Name(),
			Endpoint: "cancelamento",
			Payload:  res.Raw,
			Err:      fmt.Errorf("cancelamento recusado: %s", res.Message),
		}
	}

	if err := inv.Cancel(reason, s.now()); err != nil {
		return inv, err
	}
	if err := s.Invoices.Update(context.WithoutCancel(ctx), inv); err != nil {
		return inv, fmt.Errorf("falha ao salvar cancelamento: %w", err)
	}
	s.Metrics.record("cancel", "ok")
	return inv, nil
}

// Revert devolve uma nota rejeitada ao rascunho
func (s *Service) Revert(ctx context.Context, tenantID, invoiceID string) (*invoice.Invoice, error) {
	inv, err := s.Invoices.FindByID(ctx, tenantID, invoiceID)
	if err != nil {
		return nil, err
	}
	if err := inv.Revert(); err != nil {
		return inv, err
	}
	if err := s.Invoices.Update(ctx, inv); err != nil {
		return inv, fmt.Errorf("falha ao salvar nota revertida: %w", err)
	}
	return inv, nil
}

// Copy cria um novo rascunho com o conteúdo de qualquer nota
func (s *Service) Copy(ctx context.Context, tenantID, invoiceID string) (*invoice.Invoice, error) {
	inv, err := s.Invoices.FindByID(ctx, tenantID, invoiceID)
	if err != nil {
		return nil, err
	}
	cp := inv.Copy()
	if err := s.Invoices.Create(ctx, cp); err != nil {
		return nil, fmt.Errorf("falha ao criar cópia da nota: %w", err)
	}
	return cp, nil
}

// DeleteDraft exclui uma nota que ainda está em rascunho
func (s *Service) DeleteDraft(ctx context.Context, tenantID, invoiceID string) error {
	inv, err := s.Invoices.FindByID(ctx, tenantID, invoiceID)
	if err != nil {
		return err
	}
	if !inv.IsEditable() {
		return &errs.TransitionError{From: string(inv.Status), Trigger: "delete"}
	}
	if inv.DPSID != "" {
		return errs.NewValidationError("dps_id", "nota com envio pendente de confirmação não pode ser excluída")
	}
	return s.Invoices.Delete(ctx, tenantID, invoiceID)
}

// SendByEmail envia a nota autorizada ao e-mail informado ou, em branco, ao e-mail do tomador
func (s *Service) SendByEmail(ctx context.Context, tenantID, invoiceID, to string) error {
	inv, err := s.Invoices.FindByID(ctx, tenantID, invoiceID)
	if err != nil {
		return err
	}
	if inv.Status != invoice.StatusAuthorized {
		return &errs.TransitionError{From: string(inv.Status), Trigger: "email"}
	}

	tomador, err := s.customerOf(ctx, inv)
	if err != nil {
		return err
	}
	if strings.TrimSpace(to) == "" && tomador != nil {
		to = tomador.Email
	}
	if strings.TrimSpace(to) == "" {
		return errs.NewValidationError("to", "nenhum e-mail de destino informado")
	}

	msg := notification.Message{
		To:      to,
		Subject: fmt.Sprintf("NFSe %s", inv.Number),
		Body: fmt.Sprintf("NFSe número %s, código de verificação %s, valor R$ %s.",
			inv.Number, inv.VerificationCode, inv.ServiceValue.StringFixed(2)),
	}
	if inv.PDFPath != "" {
		pdf, err := s.Store.Read(inv.PDFPath)
		if err != nil {
			s.Logger.Warn("PDF da nota indisponível para anexo", "invoice_id", inv.ID, "error", err)
		} else {
			msg.Attachments = append(msg.Attachments, notification.Attachment{
				Name:        fmt.Sprintf("NFSe-%s.pdf", inv.Number),
				ContentType: "application/pdf",
				Data:        pdf,
			})
		}
	}

	if err := s.Mailer.Send(ctx, msg); err != nil {
		if errors.Is(err, notification.ErrInvalidRecipient) {
			return errs.NewValidationError("to", err.Error())
		}
		return fmt.Errorf("falha ao enviar e-mail: %w", err)
	}
	return nil
}

// PollPending reconsulta notas enviadas de todos os tenants e retorna quantas saíram de
// "enviada". Os erros de cada nota são agregados.
func (s *Service) PollPending(ctx context.Context, limit int) (int, error) {
	pending, err := s.Invoices.ListByStatus(ctx, invoice.StatusSubmitted, limit)
	if err != nil {
		return 0, fmt.Errorf("falha ao listar notas pendentes: %w", err)
	}

	var (
		mu       sync.Mutex
		resolved int
		result   *multierror.Error
	)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(pollConcurrency)
	for _, p := range pending {
		p := p
		g.Go(func() error {
			inv, err := s.PollStatus(gctx, p.TenantID, p.ID)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				result = multierror.Append(result, fmt.Errorf("nota %s: %w", p.ID, err))
				return nil
			}
			if inv.Status != invoice.StatusSubmitted {
				resolved++
			}
			return nil
		})
	}
	_ = g.Wait()

	return resolved, result.ErrorOrNil()
}

// situationOf trata como em processamento uma autorização que ainda não trouxe a chave de
// acesso da NFSe. A nota só é autorizada com a chave em mãos.
func situationOf(res *provider.Result) provider.Situation {
	if res.Situation == provider.SituationAuthorized && strings.TrimSpace(res.AccessKeys.NFSe) == "" {
		return provider.SituationProcessing
	}
	return res.Situation
}

// apply aplica ao estado da nota o resultado normalizado do provedor
func (s *Service) apply(inv *invoice.Invoice, res *provider.Result) error {
	now := s.now()
	switch situationOf(res) {
	case provider.SituationAuthorized:
		return inv.MarkAuthorized(invoice.Authorization{
			Number:           res.Number,
			VerificationCode: res.VerificationCode,
			AccessKeyDPS:     res.AccessKeys.DPS,
			AccessKeyNFSe:    res.AccessKeys.NFSe,
			Raw:              res.Raw,
		}, now)
	case provider.SituationProcessing:
		if inv.Status == invoice.StatusSubmitted {
			return nil
		}
		return inv.MarkSubmitted(res.ReceiptNumber, res.AccessKeys.DPS, res.Raw, now)
	default:
		reason := res.Message
		if reason == "" {
			reason = "rejeitada pelo provedor (cStat " + res.StatusCode + ")"
		}
		return inv.MarkRejected(reason, res.Raw)
	}
}

func (s *Service) load(ctx context.Context, tenantID, invoiceID string) (*invoice.Invoice, *tenant.Tenant, error) {
	inv, err := s.Invoices.FindByID(ctx, tenantID, invoiceID)
	if err != nil {
		return nil, nil, err
	}
	t, err := s.Tenants.FindByID(ctx, tenantID)
	if err != nil {
		return inv, nil, err
	}
	return inv, t, nil
}

func (s *Service) customerOf(ctx context.Context, inv *invoice.Invoice) (*customer.Customer, error) {
	if !inv.HasIdentifiedCustomer() {
		return nil, nil
	}
	c, err := s.Customers.FindByID(ctx, inv.TenantID, inv.CustomerID)
	if err != nil {
		return nil, fmt.Errorf("falha ao carregar tomador: %w", err)
	}
	return c, nil
}

// session decifra as credenciais do tenant e carrega o certificado, recusando certificados vencidos
func (s *Service) session(t *tenant.Tenant) (*provider.Session, error) {
	if !t.HasCertificate() {
		return nil, &errs.CertificateError{Kind: errs.CertificateMissing}
	}
	creds, err := t.Credentials(s.Vault)
	if err != nil {
		return nil, err
	}
	cert, err := s.Certificates.Load(creds.CertificateBase64, creds.CertificatePassword)
	if err != nil {
		return nil, err
	}
	if cert.IsExpired(s.now()) {
		return nil, &errs.CertificateError{
			Kind: errs.CertificateExpired,
			Err:  fmt.Errorf("validade encerrada em %s", cert.NotAfter().Format("02/01/2006")),
		}
	}
	return &provider.Session{
		TenantID:     t.ID,
		TaxID:        tenant.OnlyDigits(t.Document),
		Environment:  t.Environment,
		Certificate:  cert,
		ClientID:     creds.ClientID,
		ClientSecret: creds.ClientSecret,
	}, nil
}

func (s *Service) token(ctx context.Context, client provider.Client, session *provider.Session) (string, error) {
	callCtx, cancel := context.WithTimeout(ctx, s.cfg.StepTimeout)
	defer cancel()
	started := time.Now()
	token, err := s.Tokens.GetOrFetch(callCtx, tokenKey(client, session), func(ctx context.Context) (*provider.Token, error) {
		return client.ObtainToken(ctx, session)
	})
	s.Metrics.observe(client.Name(), "token", started)
	if err != nil {
		return "", fmt.Errorf("falha ao obter token de acesso: %w", err)
	}
	return token, nil
}

func (s *Service) forgetTokenOn(err error, client provider.Client, session *provider.Session) {
	if errors.Is(err, provider.ErrUnauthorized) {
		s.Tokens.Invalidate(tokenKey(client, session))
	}
}

func tokenKey(client provider.Client, session *provider.Session) string {
	return client.Name() + ":" + session.TenantID
}

func (s *Service) snapshot(t *tenant.Tenant, dpsID string, stage storage.Stage, xml []byte) {
	if _, err := s.Store.SaveSnapshot(tenant.OnlyDigits(t.Document), dpsID, stage, xml, s.now()); err != nil {
		s.Logger.Warn("falha ao salvar snapshot de XML", "dps_id", dpsID, "stage", string(stage), "error", err)
	}
}

func (s *Service) snapshotPayload(t *tenant.Tenant, dpsID string, err error) {
	var pe *errs.ProtocolError
	if dpsID == "" || !errors.As(err, &pe) || pe.Payload == "" {
		return
	}
	s.snapshot(t, dpsID, storage.StageQueryError, []byte(pe.Payload))
}

func (s *Service) wait(ctx context.Context) bool {
	timer := time.NewTimer(s.cfg.PollInterval)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
