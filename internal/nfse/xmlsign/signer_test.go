package xmlsign

import (
	"crypto"
	"crypto/ecdsa"
	"crypto/rsa"
	"crypto/sha256"
	"encoding/base64"
	"math/big"
	"strings"
	"testing"

	"github.com/beevik/etree"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hugohenrick/nfse-emissor/pkg/errs"
	"github.com/hugohenrick/nfse-emissor/pkg/pkcs12"
	"github.com/hugohenrick/nfse-emissor/pkg/pkcs12/pkcs12test"
)

const sample = `<?xml version="1.0" encoding="UTF-8"?><DPS xmlns="http://www.sped.fazenda.gov.br/nfse" versao="1.00" Id="DPS20240510143000abc"><serie>1</serie><nDPS>7</nDPS><prest><xNome>Prestadora &amp; Cia</xNome></prest></DPS>`

func load(t *testing.T, b *pkcs12test.Bundle) *pkcs12.Certificate {
	t.Helper()
	cert, err := pkcs12.Load(b.Base64, b.Password)
	require.NoError(t, err)
	return cert
}

func parse(t *testing.T, xml []byte) *etree.Element {
	t.Helper()
	doc := etree.NewDocument()
	require.NoError(t, doc.ReadFromBytes(xml))
	return doc.Root()
}

func signatures(root *etree.Element) []*etree.Element {
	var out []*etree.Element
	for _, c := range root.ChildElements() {
		if c.Tag == "Signature" {
			out = append(out, c)
		}
	}
	return out
}

func TestSign_RSA(t *testing.T) {
	b := pkcs12test.RSA(t, "senha")
	cert := load(t, b)
	s := NewSigner()

	signed, err := s.Sign([]byte(sample), cert)
	require.NoError(t, err)

	root := parse(t, signed)
	sigs := signatures(root)
	require.Len(t, sigs, 1)
	sig := sigs[0]

	children := root.ChildElements()
	assert.Same(t, sig, children[len(children)-1], "Signature deve ser o último filho da raiz")
	assert.Equal(t, Namespace, sig.SelectAttrValue("xmlns", ""))

	ref := sig.FindElement("SignedInfo/Reference")
	require.NotNil(t, ref)
	assert.Equal(t, "#DPS20240510143000abc", ref.SelectAttrValue("URI", ""))

	transforms := ref.FindElements("Transforms/Transform")
	require.Len(t, transforms, 2)
	assert.Equal(t, C14N10, transforms[0].SelectAttrValue("Algorithm", ""))
	assert.Equal(t, EnvelopedSignature, transforms[1].SelectAttrValue("Algorithm", ""))
	assert.Equal(t, RSASHA256, sig.FindElement("SignedInfo/SignatureMethod").SelectAttrValue("Algorithm", ""))

	digest, err := s.Digest(root)
	require.NoError(t, err)
	assert.Equal(t, digest, ref.SelectElement("DigestValue").Text())

	canonical, err := s.CanonicalSignedInfo(sig)
	require.NoError(t, err)
	sum := sha256.Sum256(canonical)
	value, err := base64.StdEncoding.DecodeString(sig.SelectElement("SignatureValue").Text())
	require.NoError(t, err)
	assert.NoError(t, rsa.VerifyPKCS1v15(b.Key.Public().(*rsa.PublicKey), crypto.SHA256, sum[:], value))

	certText := sig.FindElement("KeyInfo/X509Data/X509Certificate").Text()
	assert.Equal(t, base64.StdEncoding.EncodeToString(b.Cert.Raw), certText)
}

func TestSign_ECDSA(t *testing.T) {
	b := pkcs12test.EC(t, "senha")
	s := NewSigner()

	signed, err := s.Sign([]byte(sample), load(t, b))
	require.NoError(t, err)

	sig := signatures(parse(t, signed))[0]
	assert.Equal(t, ECDSASHA256, sig.FindElement("SignedInfo/SignatureMethod").SelectAttrValue("Algorithm", ""))

	canonical, err := s.CanonicalSignedInfo(sig)
	require.NoError(t, err)
	sum := sha256.Sum256(canonical)
	value, err := base64.StdEncoding.DecodeString(sig.SelectElement("SignatureValue").Text())
	require.NoError(t, err)
	require.Len(t, value, 64)

	r := new(big.Int).SetBytes(value[:32])
	sv := new(big.Int).SetBytes(value[32:])
	assert.True(t, ecdsa.Verify(b.Key.Public().(*ecdsa.PublicKey), sum[:], r, sv))
}

func TestSign_GeneratesIDWhenMissing(t *testing.T) {
	cert := load(t, pkcs12test.RSA(t, "senha"))

	signed, err := NewSigner().Sign([]byte(`<Lote><item>1</item></Lote>`), cert)
	require.NoError(t, err)

	root := parse(t, signed)
	id := root.SelectAttrValue("Id", "")
	require.True(t, strings.HasPrefix(id, "Lote-"), "id gerado: %s", id)
	assert.Len(t, id, len("Lote-")+16)
	assert.Equal(t, "#"+id, root.FindElement("Signature/SignedInfo/Reference").SelectAttrValue("URI", ""))
}

func TestSign_ResigningKeepsSingleSignature(t *testing.T) {
	cert := load(t, pkcs12test.RSA(t, "senha"))
	s := NewSigner()

	once, err := s.Sign([]byte(sample), cert)
	require.NoError(t, err)
	twice, err := s.Sign(once, cert)
	require.NoError(t, err)

	root := parse(t, twice)
	assert.Len(t, signatures(root), 1)

	digest, err := s.Digest(root)
	require.NoError(t, err)
	assert.Equal(t, digest, root.FindElement("Signature/SignedInfo/Reference/DigestValue").Text())
}

func TestSign_Errors(t *testing.T) {
	cert := load(t, pkcs12test.RSA(t, "senha"))
	s := NewSigner()

	_, err := s.Sign([]byte(sample), nil)
	var ce *errs.CryptoError
	assert.ErrorAs(t, err, &ce)

	_, err = s.Sign([]byte(sample), &pkcs12.Certificate{Leaf: cert.Leaf})
	assert.ErrorAs(t, err, &ce)
	assert.ErrorIs(t, err, ErrNoPrivateKey)

	_, err = s.Sign([]byte("não é xml <"), cert)
	var fe *errs.FormatError
	assert.ErrorAs(t, err, &fe)
}
