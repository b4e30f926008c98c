package provider

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/hashicorp/go-multierror"

	"github.com/hugohenrick/nfse-emissor/internal/domain/tenant"
	"github.com/hugohenrick/nfse-emissor/pkg/errs"
	"github.com/hugohenrick/nfse-emissor/pkg/jwt"
	"github.com/hugohenrick/nfse-emissor/pkg/logger"
)

const (
	nationalName  = string(tenant.ProviderNational)
	jwtBearer     = "urn:ietf:params:oauth:grant-type:jwt-bearer"
	payloadLimit  = 4000
	cancelEventID = "e101101"
)

// Caminhos alternativos tentados quando o endpoint de token configurado não responde
var tokenFallbackPaths = []string{"/oauth2/token", "/oauth/token", "/token"}

// ErrUnauthorized indica que o provedor recusou o token de acesso
var ErrUnauthorized = errors.New("token de acesso recusado pelo provedor")

// NationalConfig contém os endereços do emissor nacional por ambiente
type NationalConfig struct {
	BaseURLs  map[string]string
	TokenURLs map[string]string
	Scope     string
	Timeout   time.Duration
}

// NationalClient fala com a API do emissor nacional
type NationalClient struct {
	http   *resty.Client
	cfg    NationalConfig
	issuer *jwt.AssertionIssuer
	log    logger.Logger
}

// NewNationalClient cria uma nova instância de NationalClient
func NewNationalClient(cfg NationalConfig, log logger.Logger) *NationalClient {
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if log == nil {
		log = logger.NewNop()
	}
	return &NationalClient{
		http:   resty.New().SetTimeout(cfg.Timeout),
		cfg:    cfg,
		issuer: jwt.NewAssertionIssuer(cfg.TokenURLs),
		log:    log,
	}
}

// Name retorna o identificador do provedor
func (n *NationalClient) Name() string { return nationalName }

type tokenRequest struct {
	GrantType    string `json:"grant_type"`
	Assertion    string `json:"assertion"`
	ClientID     string `json:"client_id,omitempty"`
	ClientSecret string `json:"client_secret,omitempty"`
	Scope        string `json:"scope,omitempty"`
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int64  `json:"expires_in"`
}

type nationalError struct {
	Codigo    code   `json:"codigo"`
	Descricao string `json:"descricao"`
}

type nationalResponse struct {
	Protocolo         string          `json:"protocolo"`
	IDDps             string          `json:"idDps"`
	ChaveAcesso       string          `json:"chaveAcesso"`
	Situacao          string          `json:"situacao"`
	CodigoStatus      code            `json:"codigoStatus"`
	Motivo            string          `json:"motivo"`
	NumeroNfse        string          `json:"numeroNfse"`
	CodigoVerificacao string          `json:"codigoVerificacao"`
	Erros             []nationalError `json:"erros"`
}

func (r nationalResponse) result(raw string) *Result {
	res := &Result{
		ReceiptNumber:    r.Protocolo,
		StatusCode:       r.CodigoStatus.String(),
		Message:          r.message(),
		Number:           r.NumeroNfse,
		VerificationCode: r.CodigoVerificacao,
		Raw:              raw,
		AccessKeys:       AccessKeys{DPS: r.IDDps},
	}

	switch {
	case len(r.Erros) > 0:
		res.Situation = SituationRejected
	default:
		res.Situation = nationalSituation(r.Situacao, res.StatusCode)
	}

	if res.Situation == SituationAuthorized {
		res.AccessKeys.NFSe = r.ChaveAcesso
	} else if res.AccessKeys.DPS == "" {
		res.AccessKeys.DPS = r.ChaveAcesso
	}
	return res
}

func (r nationalResponse) message() string {
	parts := make([]string, 0, len(r.Erros)+1)
	if r.Motivo != "" {
		parts = append(parts, r.Motivo)
	}
	for _, e := range r.Erros {
		if e.Codigo != "" {
			parts = append(parts, e.Codigo.String()+" - "+e.Descricao)
		} else {
			parts = append(parts, e.Descricao)
		}
	}
	return strings.Join(parts, "; ")
}

func nationalSituation(situacao, statusCode string) Situation {
	switch strings.ToUpper(strings.TrimSpace(situacao)) {
	case "AUTORIZADA", "AUTORIZADO", "EMITIDA":
		return SituationAuthorized
	case "REJEITADA", "REJEITADO", "ERRO":
		return SituationRejected
	case "PROCESSANDO", "EM_PROCESSAMENTO", "RECEBIDA", "RECEBIDO":
		return SituationProcessing
	}
	return SituationOf(statusCode)
}

// ObtainToken troca a asserção JWT assinada pelo certificado por um token de acesso.
// O endpoint configurado é tentado primeiro e, em 404/405 ou falha de transporte,
// os caminhos alternativos no mesmo host.
func (n *NationalClient) ObtainToken(ctx context.Context, s *Session) (*Token, error) {
	env := string(s.Environment)
	assertion, err := n.issuer.IssueAssertion(s.Certificate, s.TaxID, env)
	if err != nil {
		return nil, err
	}

	body := tokenRequest{
		GrantType:    jwtBearer,
		Assertion:    assertion,
		ClientID:     s.ClientID,
		ClientSecret: s.ClientSecret,
		Scope:        n.cfg.Scope,
	}

	var attempts *multierror.Error
	for _, endpoint := range tokenCandidates(n.cfg.TokenURLs[env]) {
		resp, err := n.http.R().
			SetContext(ctx).
			SetHeader("Accept", "application/json").
			SetBody(body).
			Post(endpoint)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			attempts = multierror.Append(attempts, fmt.Errorf("%s: %w", endpoint, err))
			continue
		}

		status := resp.StatusCode()
		if status == http.StatusNotFound || status == http.StatusMethodNotAllowed {
			attempts = multierror.Append(attempts, fmt.Errorf("%s: status %d", endpoint, status))
			continue
		}
		if !resp.IsSuccess() {
			return nil, &errs.ProtocolError{
				Provider:   nationalName,
				Endpoint:   endpoint,
				StatusCode: status,
				Payload:    truncate(resp.String(), payloadLimit),
				Err:        errors.New("endpoint de token recusou a asserção"),
			}
		}

		var tr tokenResponse
		if err := json.Unmarshal(resp.Body(), &tr); err != nil || tr.AccessToken == "" {
			return nil, &errs.ProtocolError{
				Provider:   nationalName,
				Endpoint:   endpoint,
				StatusCode: status,
				Payload:    truncate(resp.String(), payloadLimit),
				Err:        errors.New("resposta de token sem access_token"),
			}
		}

		n.log.Debug("token de acesso obtido", "tenant_id", s.TenantID, "endpoint", endpoint)
		return &Token{AccessToken: tr.AccessToken, ExpiresIn: time.Duration(tr.ExpiresIn) * time.Second}, nil
	}

	return nil, &errs.ProtocolError{
		Provider: nationalName,
		Endpoint: n.cfg.TokenURLs[env],
		Err:      fmt.Errorf("nenhum endpoint de token respondeu: %w", attempts.ErrorOrNil()),
	}
}

// Emit envia a DPS assinada
func (n *NationalClient) Emit(ctx context.Context, s *Session, token string, req EmitRequest) (*EmitResult, error) {
	endpoint := n.baseURL(s) + "/nfse"
	resp, err := n.http.R().
		SetContext(ctx).
		SetAuthToken(token).
		SetHeader("Content-Type", "application/xml").
		SetHeader("Accept", "application/json").
		SetBody(req.SignedXML).
		Post(endpoint)
	if err != nil {
		return nil, &errs.ProtocolError{Provider: nationalName, Endpoint: endpoint, Err: fmt.Errorf("%w: %v", errs.ErrOutcomeUnknown, err)}
	}
	if err := n.checkTransport(endpoint, resp, true); err != nil {
		return nil, err
	}

	var r nationalResponse
	if err := json.Unmarshal(resp.Body(), &r); err != nil {
		if resp.IsSuccess() {
			return nil, n.protocolError(endpoint, resp, fmt.Errorf("%w: resposta ilegível: %v", errs.ErrOutcomeUnknown, err))
		}
		return &EmitResult{Situation: SituationRejected, Message: truncate(resp.String(), payloadLimit), Raw: resp.String()}, nil
	}

	res := r.result(resp.String())
	if !resp.IsSuccess() {
		res.Situation = SituationRejected
		if res.Message == "" {
			res.Message = truncate(resp.String(), payloadLimit)
		}
	}
	if res.AccessKeys.DPS == "" {
		res.AccessKeys.DPS = req.DPSID
	}
	return res, nil
}

// PollProcessingStatus consulta a situação do processamento pelo protocolo de recebimento
func (n *NationalClient) PollProcessingStatus(ctx context.Context, s *Session, token, receiptNumber string) (*StatusResult, error) {
	endpoint := n.baseURL(s) + "/dps/" + url.PathEscape(receiptNumber) + "/situacao"
	return n.getStatus(ctx, endpoint, token, false)
}

// QueryStatus consulta pela chave da NFSe ou, na falta dela, pela chave/Id da DPS
func (n *NationalClient) QueryStatus(ctx context.Context, s *Session, token string, q QueryRequest) (*StatusResult, error) {
	var endpoint string
	switch {
	case q.AccessKeys.NFSe != "":
		endpoint = n.baseURL(s) + "/nfse/" + url.PathEscape(q.AccessKeys.NFSe)
	case q.AccessKeys.DPS != "":
		endpoint = n.baseURL(s) + "/dps/" + url.PathEscape(q.AccessKeys.DPS)
	case q.DPSID != "":
		endpoint = n.baseURL(s) + "/dps/" + url.PathEscape(q.DPSID)
	default:
		return nil, errs.NewValidationError("chave", "informe a chave da NFSe ou da DPS")
	}
	return n.getStatus(ctx, endpoint, token, true)
}

func (n *NationalClient) getStatus(ctx context.Context, endpoint, token string, notFoundIsResult bool) (*StatusResult, error) {
	resp, err := n.http.R().
		SetContext(ctx).
		SetAuthToken(token).
		SetHeader("Accept", "application/json").
		Get(endpoint)
	if err != nil {
		return nil, &errs.ProtocolError{Provider: nationalName, Endpoint: endpoint, Err: err}
	}
	if notFoundIsResult && resp.StatusCode() == http.StatusNotFound {
		return &StatusResult{Situation: SituationNotFound, Raw: resp.String()}, nil
	}
	if err := n.checkTransport(endpoint, resp, false); err != nil {
		return nil, err
	}
	if !resp.IsSuccess() {
		return nil, n.protocolError(endpoint, resp, errors.New("consulta recusada"))
	}

	var r nationalResponse
	if err := json.Unmarshal(resp.Body(), &r); err != nil {
		return nil, n.protocolError(endpoint, resp, fmt.Errorf("resposta ilegível: %w", err))
	}
	return r.result(resp.String()), nil
}

// DownloadArtifact baixa o PDF (DANFSe) da nota autorizada
func (n *NationalClient) DownloadArtifact(ctx context.Context, s *Session, token, accessKeyNFSe string) ([]byte, error) {
	endpoint := n.baseURL(s) + "/danfse/" + url.PathEscape(accessKeyNFSe)
	resp, err := n.http.R().
		SetContext(ctx).
		SetAuthToken(token).
		SetHeader("Accept", "application/pdf").
		Get(endpoint)
	if err != nil {
		return nil, &errs.ProtocolError{Provider: nationalName, Endpoint: endpoint, Err: err}
	}
	if err := n.checkTransport(endpoint, resp, false); err != nil {
		return nil, err
	}
	if !resp.IsSuccess() || len(resp.Body()) == 0 {
		return nil, n.protocolError(endpoint, resp, errors.New("PDF indisponível"))
	}
	return resp.Body(), nil
}

// Cancel registra o evento de cancelamento da NFSe
func (n *NationalClient) Cancel(ctx context.Context, s *Session, token string, req CancelRequest) (*CancelResult, error) {
	endpoint := n.baseURL(s) + "/nfse/" + url.PathEscape(req.AccessKeyNFSe) + "/eventos"
	resp, err := n.http.R().
		SetContext(ctx).
		SetAuthToken(token).
		SetHeader("Accept", "application/json").
		SetBody(map[string]string{
			"tipoEvento": cancelEventID,
			"cnpjAutor":  s.TaxID,
			"motivo":     req.Reason,
		}).
		Post(endpoint)
	if err != nil {
		return nil, &errs.ProtocolError{Provider: nationalName, Endpoint: endpoint, Err: err}
	}
	if err := n.checkTransport(endpoint, resp, false); err != nil {
		return nil, err
	}

	var r nationalResponse
	_ = json.Unmarshal(resp.Body(), &r)
	return &CancelResult{
		Accepted:   resp.IsSuccess() && len(r.Erros) == 0,
		StatusCode: r.CodigoStatus.String(),
		Message:    r.message(),
		Raw:        resp.String(),
	}, nil
}

// checkTransport trata 401/403 e erros 5xx, comuns a todas as chamadas
func (n *NationalClient) checkTransport(endpoint string, resp *resty.Response, submit bool) error {
	status := resp.StatusCode()
	switch {
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return n.protocolError(endpoint, resp, ErrUnauthorized)
	case status >= 500 && submit:
		return n.protocolError(endpoint, resp, errs.ErrOutcomeUnknown)
	case status >= 500:
		return n.protocolError(endpoint, resp, errors.New("erro interno do provedor"))
	}
	return nil
}

func (n *NationalClient) protocolError(endpoint string, resp *resty.Response, err error) error {
	return &errs.ProtocolError{
		Provider:   nationalName,
		Endpoint:   endpoint,
		StatusCode: resp.StatusCode(),
		Payload:    truncate(resp.String(), payloadLimit),
		Err:        err,
	}
}

func (n *NationalClient) baseURL(s *Session) string {
	return strings.TrimRight(n.cfg.BaseURLs[string(s.Environment)], "/")
}

func tokenCandidates(configured string) []string {
	if configured == "" {
		return nil
	}
	candidates := []string{configured}
	u, err := url.Parse(configured)
	if err != nil || u.Host == "" {
		return candidates
	}
	origin := u.Scheme + "://" + u.Host
	for _, p := range tokenFallbackPaths {
		c := origin + p
		if c != configured {
			candidates = append(candidates, c)
		}
	}
	return candidates
}
