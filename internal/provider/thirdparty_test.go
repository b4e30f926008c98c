package provider

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hugohenrick/nfse-emissor/pkg/errs"
)

func newThirdParty(srvURL, defaultToken string) *ThirdPartyClient {
	return NewThirdPartyClient(ThirdPartyConfig{BaseURL: srvURL + "/", DefaultAPIToken: defaultToken}, nil)
}

func TestThirdPartyClient_ObtainToken(t *testing.T) {
	s := testSession(t)

	tok, err := newThirdParty("http://localhost", "padrao").ObtainToken(context.Background(), s)
	require.NoError(t, err)
	assert.Equal(t, "padrao", tok.AccessToken)

	s.ClientSecret = "do-tenant"
	tok, err = newThirdParty("http://localhost", "padrao").ObtainToken(context.Background(), s)
	require.NoError(t, err)
	assert.Equal(t, "do-tenant", tok.AccessToken)

	s.ClientSecret = ""
	_, err = newThirdParty("http://localhost", "").ObtainToken(context.Background(), s)
	var ve *errs.ValidationError
	assert.True(t, errors.As(err, &ve))
}

func TestThirdPartyClient_Emit(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/nfse/emitir", r.URL.Path)
		assert.Equal(t, "tok-b", r.Header.Get("X-Api-Token"))

		var body map[string]string
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		xml, err := base64.StdEncoding.DecodeString(body["xmlBase64"])
		assert.NoError(t, err)
		assert.Equal(t, "<DPS/>", string(xml))
		assert.Equal(t, "2", body["tpAmb"])

		_, _ = io.WriteString(w, `{"cStat":"100","xMotivo":"Autorizado","chDPS":"DPS-KEY","chNFSe":"NFSE-KEY","nNFSe":"15","cVerif":"V1"}`)
	}))
	defer srv.Close()

	res, err := newThirdParty(srv.URL, "").Emit(context.Background(), testSession(t), "tok-b", EmitRequest{DPSID: "DPS1", SignedXML: []byte("<DPS/>")})
	require.NoError(t, err)
	assert.Equal(t, SituationAuthorized, res.Situation)
	assert.Equal(t, AccessKeys{DPS: "DPS-KEY", NFSe: "NFSE-KEY"}, res.AccessKeys)
	assert.Equal(t, "15", res.Number)
	assert.Equal(t, "V1", res.VerificationCode)
}

func TestThirdPartyClient_Emit_Outcomes(t *testing.T) {
	cases := []struct {
		name          string
		status        int
		body          string
		wantSituation Situation
		wantUnknown   bool
	}{
		{name: "recebido", status: http.StatusOK, body: `{"cStat":103,"nsNRec":"REC-1"}`, wantSituation: SituationProcessing},
		{name: "rejeitado", status: http.StatusOK, body: `{"cStat":"225","xMotivo":"Falha no schema"}`, wantSituation: SituationRejected},
		{name: "erro de negócio", status: http.StatusBadRequest, body: `{"cStat":"999","xMotivo":"Rejeição"}`, wantSituation: SituationRejected},
		{name: "indisponível", status: http.StatusBadGateway, body: ``, wantUnknown: true},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(tc.status)
				_, _ = io.WriteString(w, tc.body)
			}))
			defer srv.Close()

			res, err := newThirdParty(srv.URL, "").Emit(context.Background(), testSession(t), "tok", EmitRequest{DPSID: "DPS1", SignedXML: []byte("<DPS/>")})
			if tc.wantUnknown {
				assert.ErrorIs(t, err, errs.ErrOutcomeUnknown)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.wantSituation, res.Situation)
			assert.Empty(t, res.AccessKeys.NFSe)
		})
	}
}

func TestThirdPartyClient_StatusPdfAndCancel(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body map[string]string
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))

		switch r.URL.Path {
		case "/v1/nfse/recibo":
			assert.Equal(t, "REC-1", body["nsNRec"])
			_, _ = io.WriteString(w, `{"cStat":"105"}`)
		case "/v1/nfse/consulta":
			if body["chDPS"] == "DPS-SUMIDA" {
				w.WriteHeader(http.StatusNotFound)
				return
			}
			_, _ = io.WriteString(w, `{"cStat":"100","chNFSe":"NFSE-KEY","nNFSe":"15"}`)
		case "/v1/nfse/pdf":
			_, _ = io.WriteString(w, `{"pdf":"`+base64.StdEncoding.EncodeToString([]byte("%PDF-1.7"))+`"}`)
		case "/v1/nfse/cancelar":
			assert.Equal(t, "serviço não prestado", body["xJust"])
			_, _ = io.WriteString(w, `{"cStat":"135","xMotivo":"Evento registrado"}`)
		}
	}))
	defer srv.Close()

	c := newThirdParty(srv.URL, "")
	s := testSession(t)
	ctx := context.Background()

	polled, err := c.PollProcessingStatus(ctx, s, "tok", "REC-1")
	require.NoError(t, err)
	assert.Equal(t, SituationProcessing, polled.Situation)

	queried, err := c.QueryStatus(ctx, s, "tok", QueryRequest{DPSID: "DPS1"})
	require.NoError(t, err)
	assert.Equal(t, SituationAuthorized, queried.Situation)
	assert.Equal(t, "NFSE-KEY", queried.AccessKeys.NFSe)

	missing, err := c.QueryStatus(ctx, s, "tok", QueryRequest{DPSID: "DPS-SUMIDA"})
	require.NoError(t, err)
	assert.Equal(t, SituationNotFound, missing.Situation)

	pdf, err := c.DownloadArtifact(ctx, s, "tok", "NFSE-KEY")
	require.NoError(t, err)
	assert.Equal(t, "%PDF-1.7", string(pdf))

	cancel, err := c.Cancel(ctx, s, "tok", CancelRequest{AccessKeyNFSe: "NFSE-KEY", Reason: "serviço não prestado"})
	require.NoError(t, err)
	assert.True(t, cancel.Accepted)
}
