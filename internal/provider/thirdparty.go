package provider

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/hugohenrick/nfse-emissor/internal/domain/tenant"
	"github.com/hugohenrick/nfse-emissor/pkg/errs"
	"github.com/hugohenrick/nfse-emissor/pkg/logger"
)

const thirdPartyName = string(tenant.ProviderThirdPartyB)

// Códigos de aceite do evento de cancelamento
const (
	statusCancelRegistered = "135"
	statusCancelHomologado = "101"
)

// ThirdPartyConfig contém o endereço e o token padrão do provedor terceirizado
type ThirdPartyConfig struct {
	BaseURL         string
	DefaultAPIToken string
	Timeout         time.Duration
}

// ThirdPartyClient fala com o provedor terceirizado, autenticado por token de API por tenant
type ThirdPartyClient struct {
	http *resty.Client
	cfg  ThirdPartyConfig
	log  logger.Logger
}

// NewThirdPartyClient cria uma nova instância de ThirdPartyClient
func NewThirdPartyClient(cfg ThirdPartyConfig, log logger.Logger) *ThirdPartyClient {
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if log == nil {
		log = logger.NewNop()
	}
	return &ThirdPartyClient{
		http: resty.New().
			SetTimeout(cfg.Timeout).
			SetBaseURL(strings.TrimRight(cfg.BaseURL, "/")).
			SetHeader("Accept", "application/json"),
		cfg: cfg,
		log: log,
	}
}

// Name retorna o identificador do provedor
func (c *ThirdPartyClient) Name() string { return thirdPartyName }

type thirdPartyResponse struct {
	ChDPS   string `json:"chDPS"`
	ChNFSe  string `json:"chNFSe"`
	NsNRec  string `json:"nsNRec"`
	CStat   code   `json:"cStat"`
	XMotivo string `json:"xMotivo"`
	NNFSe   string `json:"nNFSe"`
	CVerif  string `json:"cVerif"`
	PDF     string `json:"pdf"`
}

func (r thirdPartyResponse) result(raw string) *Result {
	res := &Result{
		Situation:        SituationOf(r.CStat.String()),
		ReceiptNumber:    r.NsNRec,
		StatusCode:       r.CStat.String(),
		Message:          r.XMotivo,
		AccessKeys:       AccessKeys{DPS: r.ChDPS, NFSe: r.ChNFSe},
		Number:           r.NNFSe,
		VerificationCode: r.CVerif,
		Raw:              raw,
	}
	if res.Situation != SituationAuthorized {
		res.AccessKeys.NFSe = ""
	}
	return res
}

// ObtainToken não chama a rede: o token é o segredo de API do tenant ou o token padrão
func (c *ThirdPartyClient) ObtainToken(_ context.Context, s *Session) (*Token, error) {
	token := s.ClientSecret
	if token == "" {
		token = c.cfg.DefaultAPIToken
	}
	if token == "" {
		return nil, errs.NewValidationError("api_client_secret", "token de API do provedor não configurado")
	}
	return &Token{AccessToken: token}, nil
}

// Emit envia a DPS assinada codificada em Base64
func (c *ThirdPartyClient) Emit(ctx context.Context, s *Session, token string, req EmitRequest) (*EmitResult, error) {
	const endpoint = "/v1/nfse/emitir"
	resp, err := c.post(ctx, token, endpoint, map[string]string{
		"cnpj":      s.TaxID,
		"tpAmb":     s.Environment.TpAmb(),
		"dpsId":     req.DPSID,
		"xmlBase64": base64.StdEncoding.EncodeToString(req.SignedXML),
	})
	if err != nil {
		return nil, &errs.ProtocolError{Provider: thirdPartyName, Endpoint: endpoint, Err: fmt.Errorf("%w: %v", errs.ErrOutcomeUnknown, err)}
	}
	if err := c.checkTransport(endpoint, resp, true); err != nil {
		return nil, err
	}

	var r thirdPartyResponse
	if err := json.Unmarshal(resp.Body(), &r); err != nil {
		if resp.IsSuccess() {
			return nil, c.protocolError(endpoint, resp, fmt.Errorf("%w: resposta ilegível: %v", errs.ErrOutcomeUnknown, err))
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

// PollProcessingStatus consulta o recibo de processamento (nsNRec)
func (c *ThirdPartyClient) PollProcessingStatus(ctx context.Context, s *Session, token, receiptNumber string) (*StatusResult, error) {
	return c.status(ctx, token, "/v1/nfse/recibo", map[string]string{
		"cnpj":   s.TaxID,
		"nsNRec": receiptNumber,
	}, false)
}

// QueryStatus consulta pela chave da NFSe ou da DPS
func (c *ThirdPartyClient) QueryStatus(ctx context.Context, s *Session, token string, q QueryRequest) (*StatusResult, error) {
	body := map[string]string{"cnpj": s.TaxID}
	switch {
	case q.AccessKeys.NFSe != "":
		body["chNFSe"] = q.AccessKeys.NFSe
	case q.AccessKeys.DPS != "":
		body["chDPS"] = q.AccessKeys.DPS
	case q.DPSID != "":
		body["chDPS"] = q.DPSID
	default:
		return nil, errs.NewValidationError("chave", "informe a chave da NFSe ou da DPS")
	}
	return c.status(ctx, token, "/v1/nfse/consulta", body, true)
}

func (c *ThirdPartyClient) status(ctx context.Context, token, endpoint string, body map[string]string, notFoundIsResult bool) (*StatusResult, error) {
	resp, err := c.post(ctx, token, endpoint, body)
	if err != nil {
		return nil, &errs.ProtocolError{Provider: thirdPartyName, Endpoint: endpoint, Err: err}
	}
	if notFoundIsResult && resp.StatusCode() == http.StatusNotFound {
		return &StatusResult{Situation: SituationNotFound, Raw: resp.String()}, nil
	}
	if err := c.checkTransport(endpoint, resp, false); err != nil {
		return nil, err
	}
	if !resp.IsSuccess() {
		return nil, c.protocolError(endpoint, resp, errors.New("consulta recusada"))
	}

	var r thirdPartyResponse
	if err := json.Unmarshal(resp.Body(), &r); err != nil {
		return nil, c.protocolError(endpoint, resp, fmt.Errorf("resposta ilegível: %w", err))
	}
	return r.result(resp.String()), nil
}

// DownloadArtifact baixa o PDF, devolvido em Base64 no campo pdf
func (c *ThirdPartyClient) DownloadArtifact(ctx context.Context, s *Session, token, accessKeyNFSe string) ([]byte, error) {
	const endpoint = "/v1/nfse/pdf"
	resp, err := c.post(ctx, token, endpoint, map[string]string{
		"cnpj":   s.TaxID,
		"chNFSe": accessKeyNFSe,
	})
	if err != nil {
		return nil, &errs.ProtocolError{Provider: thirdPartyName, Endpoint: endpoint, Err: err}
	}
	if err := c.checkTransport(endpoint, resp, false); err != nil {
		return nil, err
	}
	if !resp.IsSuccess() {
		return nil, c.protocolError(endpoint, resp, errors.New("PDF indisponível"))
	}

	var r thirdPartyResponse
	if err := json.Unmarshal(resp.Body(), &r); err != nil || r.PDF == "" {
		return nil, c.protocolError(endpoint, resp, errors.New("resposta sem PDF"))
	}
	pdf, err := base64.StdEncoding.DecodeString(r.PDF)
	if err != nil {
		return nil, c.protocolError(endpoint, resp, fmt.Errorf("PDF em base64 inválido: %w", err))
	}
	return pdf, nil
}

// Cancel solicita o cancelamento. O pedido é aceito com cStat 135 ou 101.
func (c *ThirdPartyClient) Cancel(ctx context.Context, s *Session, token string, req CancelRequest) (*CancelResult, error) {
	const endpoint = "/v1/nfse/cancelar"
	resp, err := c.post(ctx, token, endpoint, map[string]string{
		"cnpj":   s.TaxID,
		"chNFSe": req.AccessKeyNFSe,
		"xJust":  req.Reason,
	})
	if err != nil {
		return nil, &errs.ProtocolError{Provider: thirdPartyName, Endpoint: endpoint, Err: err}
	}
	if err := c.checkTransport(endpoint, resp, false); err != nil {
		return nil, err
	}

	var r thirdPartyResponse
	_ = json.Unmarshal(resp.Body(), &r)
	status := r.CStat.String()
	return &CancelResult{
		Accepted:   resp.IsSuccess() && (status == statusCancelRegistered || status == statusCancelHomologado),
		StatusCode: status,
		Message:    r.XMotivo,
		Raw:        resp.String(),
	}, nil
}

func (c *ThirdPartyClient) post(ctx context.Context, token, endpoint string, body interface{}) (*resty.Response, error) {
	return c.http.R().
		SetContext(ctx).
		SetHeader("X-Api-Token", token).
		SetBody(body).
		Post(endpoint)
}

func (c *ThirdPartyClient) checkTransport(endpoint string, resp *resty.Response, submit bool) error {
	status := resp.StatusCode()
	switch {
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return c.protocolError(endpoint, resp, ErrUnauthorized)
	case status >= 500 && submit:
		return c.protocolError(endpoint, resp, errs.ErrOutcomeUnknown)
	case status >= 500:
		return c.protocolError(endpoint, resp, errors.New("erro interno do provedor"))
	}
	return nil
}

func (c *ThirdPartyClient) protocolError(endpoint string, resp *resty.Response, err error) error {
	return &errs.ProtocolError{
		Provider:   thirdPartyName,
		Endpoint:   endpoint,
		StatusCode: resp.StatusCode(),
		Payload:    truncate(resp.String(), payloadLimit),
		Err:        err,
	}
}
