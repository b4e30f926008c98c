package provider

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hugohenrick/nfse-emissor/internal/domain/fiscal"
	"github.com/hugohenrick/nfse-emissor/pkg/errs"
	"github.com/hugohenrick/nfse-emissor/pkg/pkcs12"
	"github.com/hugohenrick/nfse-emissor/pkg/pkcs12/pkcs12test"
)

func testSession(t *testing.T) *Session {
	t.Helper()
	b := pkcs12test.RSA(t, "1234")
	return &Session{
		TenantID:    "tenant-1",
		TaxID:       "12345678000195",
		Environment: fiscal.Homologation,
		Certificate: &pkcs12.Certificate{Leaf: b.Cert, PrivateKey: b.Key},
	}
}

func newNational(srvURL string) *NationalClient {
	return NewNationalClient(NationalConfig{
		BaseURLs:  map[string]string{"homologation": srvURL + "/api"},
		TokenURLs: map[string]string{"homologation": srvURL + "/custom/token"},
		Timeout:   5 * time.Second,
	}, nil)
}

func TestNationalClient_ObtainToken_FallsBackToAlternatePaths(t *testing.T) {
	var tried []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		tried = append(tried, r.URL.Path)
		if r.URL.Path != "/oauth2/token" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		var body tokenRequest
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, jwtBearer, body.GrantType)
		assert.NotEmpty(t, body.Assertion)
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"access_token":"tok-1","token_type":"Bearer","expires_in":600}`)
	}))
	defer srv.Close()

	tok, err := newNational(srv.URL).ObtainToken(context.Background(), testSession(t))
	require.NoError(t, err)
	assert.Equal(t, "tok-1", tok.AccessToken)
	assert.Equal(t, 600*time.Second, tok.ExpiresIn)
	assert.Equal(t, []string{"/custom/token", "/oauth2/token"}, tried)
}

func TestNationalClient_ObtainToken_AllEndpointsFail(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusMethodNotAllowed)
	}))
	defer srv.Close()

	_, err := newNational(srv.URL).ObtainToken(context.Background(), testSession(t))
	var pe *errs.ProtocolError
	require.True(t, errors.As(err, &pe))
	assert.Equal(t, nationalName, pe.Provider)
}

func TestNationalClient_ObtainToken_RejectedAssertion(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = io.WriteString(w, `{"error":"invalid_grant"}`)
	}))
	defer srv.Close()

	_, err := newNational(srv.URL).ObtainToken(context.Background(), testSession(t))
	var pe *errs.ProtocolError
	require.True(t, errors.As(err, &pe))
	assert.Equal(t, http.StatusBadRequest, pe.StatusCode)
	assert.Contains(t, pe.Payload, "invalid_grant")
}

func TestNationalClient_Emit(t *testing.T) {
	cases := []struct {
		name          string
		status        int
		body          string
		wantSituation Situation
		wantMessage   string
		wantUnknown   bool
	}{
		{
			name:          "autorizada",
			status:        http.StatusOK,
			body:          `{"situacao":"AUTORIZADA","codigoStatus":100,"idDps":"DPS1","chaveAcesso":"NFSE-KEY","numeroNfse":"7","codigoVerificacao":"ABC123"}`,
			wantSituation: SituationAuthorized,
		},
		{
			name:          "em processamento",
			status:        http.StatusAccepted,
			body:          `{"situacao":"PROCESSANDO","protocolo":"PROT-9"}`,
			wantSituation: SituationProcessing,
		},
		{
			name:          "rejeitada com erros",
			status:        http.StatusBadRequest,
			body:          `{"erros":[{"codigo":"E001","descricao":"CNPJ do prestador inválido"}]}`,
			wantSituation: SituationRejected,
			wantMessage:   "E001 - CNPJ do prestador inválido",
		},
		{
			name:          "rejeitada sem json",
			status:        http.StatusUnprocessableEntity,
			body:          `schema inválido`,
			wantSituation: SituationRejected,
			wantMessage:   "schema inválido",
		},
		{
			name:        "erro do servidor",
			status:      http.StatusServiceUnavailable,
			body:        `indisponível`,
			wantUnknown: true,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				assert.Equal(t, "/api/nfse", r.URL.Path)
				assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))
				assert.Equal(t, "application/xml", r.Header.Get("Content-Type"))
				body, _ := io.ReadAll(r.Body)
				assert.Equal(t, "<DPS/>", string(body))
				w.WriteHeader(tc.status)
				_, _ = io.WriteString(w, tc.body)
			}))
			defer srv.Close()

			res, err := newNational(srv.URL).Emit(context.Background(), testSession(t), "tok", EmitRequest{DPSID: "DPS1", SignedXML: []byte("<DPS/>")})
			if tc.wantUnknown {
				assert.ErrorIs(t, err, errs.ErrOutcomeUnknown)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.wantSituation, res.Situation)
			assert.Equal(t, "DPS1", res.AccessKeys.DPS)
			if tc.wantMessage != "" {
				assert.Equal(t, tc.wantMessage, res.Message)
			}
			if tc.wantSituation == SituationAuthorized {
				assert.Equal(t, "NFSE-KEY", res.AccessKeys.NFSe)
				assert.Equal(t, "7", res.Number)
				assert.Equal(t, "ABC123", res.VerificationCode)
			}
			if tc.wantSituation == SituationProcessing {
				assert.Equal(t, "PROT-9", res.ReceiptNumber)
			}
		})
	}
}

func TestNationalClient_Emit_Unauthorized(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	_, err := newNational(srv.URL).Emit(context.Background(), testSession(t), "tok", EmitRequest{DPSID: "DPS1", SignedXML: []byte("<DPS/>")})
	assert.ErrorIs(t, err, ErrUnauthorized)
	assert.False(t, errors.Is(err, errs.ErrOutcomeUnknown))
}

func TestNationalClient_Emit_TransportFailureIsUnknown(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	url := srv.URL
	srv.Close()

	_, err := newNational(url).Emit(context.Background(), testSession(t), "tok", EmitRequest{DPSID: "DPS1", SignedXML: []byte("<DPS/>")})
	assert.ErrorIs(t, err, errs.ErrOutcomeUnknown)
}

func TestNationalClient_QueryAndPoll(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/dps/PROT-9/situacao":
			_, _ = io.WriteString(w, `{"situacao":"AUTORIZADA","chaveAcesso":"NFSE-KEY","numeroNfse":"42"}`)
		case "/api/nfse/NFSE-KEY":
			_, _ = io.WriteString(w, `{"codigoStatus":"100","chaveAcesso":"NFSE-KEY"}`)
		case "/api/dps/DPS-DESCONHECIDA":
			w.WriteHeader(http.StatusNotFound)
		default:
			w.WriteHeader(http.StatusInternalServerError)
		}
	}))
	defer srv.Close()

	c := newNational(srv.URL)
	s := testSession(t)
	ctx := context.Background()

	polled, err := c.PollProcessingStatus(ctx, s, "tok", "PROT-9")
	require.NoError(t, err)
	assert.Equal(t, SituationAuthorized, polled.Situation)
	assert.Equal(t, "42", polled.Number)

	queried, err := c.QueryStatus(ctx, s, "tok", QueryRequest{AccessKeys: AccessKeys{NFSe: "NFSE-KEY", DPS: "ignorada"}})
	require.NoError(t, err)
	assert.Equal(t, SituationAuthorized, queried.Situation)

	missing, err := c.QueryStatus(ctx, s, "tok", QueryRequest{DPSID: "DPS-DESCONHECIDA"})
	require.NoError(t, err)
	assert.Equal(t, SituationNotFound, missing.Situation)

	_, err = c.PollProcessingStatus(ctx, s, "tok", "OUTRO")
	var pe *errs.ProtocolError
	require.True(t, errors.As(err, &pe))
	assert.Equal(t, http.StatusInternalServerError, pe.StatusCode)

	_, err = c.QueryStatus(ctx, s, "tok", QueryRequest{})
	var ve *errs.ValidationError
	assert.True(t, errors.As(err, &ve))
}

func TestNationalClient_DownloadAndCancel(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.URL.Path == "/api/danfse/NFSE-KEY":
			w.Header().Set("Content-Type", "application/pdf")
			_, _ = io.WriteString(w, "%PDF-1.4 conteudo")
		case r.URL.Path == "/api/nfse/NFSE-KEY/eventos" && r.Method == http.MethodPost:
			var body map[string]string
			assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
			assert.Equal(t, cancelEventID, body["tipoEvento"])
			assert.Equal(t, "erro de digitação", body["motivo"])
			_, _ = io.WriteString(w, `{"codigoStatus":135,"motivo":"evento registrado"}`)
		case r.URL.Path == "/api/nfse/OUTRA/eventos":
			w.WriteHeader(http.StatusBadRequest)
			_, _ = io.WriteString(w, `{"erros":[{"codigo":"E840","descricao":"prazo de cancelamento expirado"}]}`)
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer srv.Close()

	c := newNational(srv.URL)
	s := testSession(t)
	ctx := context.Background()

	pdf, err := c.DownloadArtifact(ctx, s, "tok", "NFSE-KEY")
	require.NoError(t, err)
	assert.Equal(t, "%PDF-1.4 conteudo", string(pdf))

	_, err = c.DownloadArtifact(ctx, s, "tok", "INEXISTENTE")
	assert.Error(t, err)

	ok, err := c.Cancel(ctx, s, "tok", CancelRequest{AccessKeyNFSe: "NFSE-KEY", Reason: "erro de digitação"})
	require.NoError(t, err)
	assert.True(t, ok.Accepted)
	assert.Equal(t, "135", ok.StatusCode)

	refused, err := c.Cancel(ctx, s, "tok", CancelRequest{AccessKeyNFSe: "OUTRA", Reason: "x"})
	require.NoError(t, err)
	assert.False(t, refused.Accepted)
	assert.Equal(t, "E840 - prazo de cancelamento expirado", refused.Message)
}

func TestTokenCandidates(t *testing.T) {
	assert.Nil(t, tokenCandidates(""))
	assert.Equal(t, []string{
		"https://auth.example.gov.br/connect/token",
		"https://auth.example.gov.br/oauth2/token",
		"https://auth.example.gov.br/oauth/token",
		"https://auth.example.gov.br/token",
	}, tokenCandidates("https://auth.example.gov.br/connect/token"))
	assert.Equal(t, []string{
		"https://auth.example.gov.br/token",
		"https://auth.example.gov.br/oauth2/token",
		"https://auth.example.gov.br/oauth/token",
	}, tokenCandidates("https://auth.example.gov.br/token"))
}
