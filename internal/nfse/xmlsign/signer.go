// Package xmlsign assina documentos XML com assinatura envelopada (XMLDSig).
package xmlsign

import (
	"crypto"
	"crypto/ecdsa"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"math/big"

	"github.com/beevik/etree"
	dsig "github.com/russellhaering/goxmldsig"

	"github.com/hugohenrick/nfse-emissor/pkg/errs"
	"github.com/hugohenrick/nfse-emissor/pkg/pkcs12"
)

// Identificadores de algoritmo do XMLDSig
const (
	Namespace          = "http://www.w3.org/2000/09/xmldsig#"
	C14N10             = "http://www.w3.org/TR/2001/REC-xml-c14n-20010315"
	EnvelopedSignature = "http://www.w3.org/2000/09/xmldsig#enveloped-signature"
	DigestSHA256       = "http://www.w3.org/2001/04/xmlenc#sha256"
	RSASHA256          = "http://www.w3.org/2001/04/xmldsig-more#rsa-sha256"
	ECDSASHA256        = "http://www.w3.org/2001/04/xmldsig-more#ecdsa-sha256"

	idAttr = "Id"
)

var (
	ErrNoCertificate = errors.New("certificado não informado")
	ErrNoPrivateKey  = errors.New("certificado sem chave privada")
	ErrUnsupported   = errors.New("tipo de chave privada não suportado para assinatura")
)

// Signer produz a assinatura envelopada sobre o elemento raiz
type Signer struct {
	canonicalizer dsig.Canonicalizer
}

// NewSigner cria uma nova instância de Signer com canonicalização C14N 1.0 inclusiva
func NewSigner() *Signer {
	return &Signer{canonicalizer: dsig.MakeC14N10RecCanonicalizer()}
}

// Sign assina o documento e retorna o XML com exatamente um elemento Signature,
// último filho da raiz, referenciando o Id da raiz.
func (s *Signer) Sign(xml []byte, cert *pkcs12.Certificate) ([]byte, error) {
	if cert == nil || cert.Leaf == nil {
		return nil, &errs.CryptoError{Op: "assinar XML", Err: ErrNoCertificate}
	}
	if cert.PrivateKey == nil {
		return nil, &errs.CryptoError{Op: "assinar XML", Err: ErrNoPrivateKey}
	}
	method, err := signatureMethod(cert.PrivateKey)
	if err != nil {
		return nil, &errs.CryptoError{Op: "assinar XML", Err: err}
	}

	doc := etree.NewDocument()
	if err := doc.ReadFromBytes(xml); err != nil {
		return nil, &errs.FormatError{Op: "ler XML", Err: err}
	}
	root := doc.Root()
	if root == nil {
		return nil, &errs.FormatError{Op: "ler XML", Err: errors.New("documento sem elemento raiz")}
	}

	removeSignatures(root)

	id, err := ensureID(root)
	if err != nil {
		return nil, &errs.CryptoError{Op: "gerar Id", Err: err}
	}

	digest, err := s.digest(root)
	if err != nil {
		return nil, err
	}

	signedInfo := buildSignedInfo(id, method, digest)
	detached := signedInfo.Copy()
	detached.CreateAttr("xmlns", Namespace)
	canonical, err := s.canonicalizer.Canonicalize(detached)
	if err != nil {
		return nil, &errs.CryptoError{Op: "canonicalizar SignedInfo", Err: err}
	}

	sigValue, err := sign(cert.PrivateKey, canonical)
	if err != nil {
		return nil, &errs.CryptoError{Op: "calcular assinatura", Err: err}
	}

	sig := etree.NewElement("Signature")
	sig.CreateAttr("xmlns", Namespace)
	sig.AddChild(signedInfo)
	sig.CreateElement("SignatureValue").SetText(base64.StdEncoding.EncodeToString(sigValue))
	sig.CreateElement("KeyInfo").
		CreateElement("X509Data").
		CreateElement("X509Certificate").
		SetText(base64.StdEncoding.EncodeToString(cert.Leaf.Raw))
	root.AddChild(sig)

	out, err := doc.WriteToBytes()
	if err != nil {
		return nil, &errs.FormatError{Op: "serializar XML assinado", Err: err}
	}
	return out, nil
}

// Digest calcula o DigestValue (Base64 do SHA-256) da raiz canonicalizada sem assinatura
func (s *Signer) Digest(root *etree.Element) (string, error) {
	el := root.Copy()
	removeSignatures(el)
	return s.digest(el)
}

// CanonicalSignedInfo retorna a forma canônica do SignedInfo como ele foi assinado
func (s *Signer) CanonicalSignedInfo(signature *etree.Element) ([]byte, error) {
	si := signature.SelectElement("SignedInfo")
	if si == nil {
		return nil, errors.New("SignedInfo ausente")
	}
	detached := si.Copy()
	if detached.SelectAttr("xmlns") == nil {
		detached.CreateAttr("xmlns", Namespace)
	}
	return s.canonicalizer.Canonicalize(detached)
}

func (s *Signer) digest(root *etree.Element) (string, error) {
	canonical, err := s.canonicalizer.Canonicalize(root)
	if err != nil {
		return "", &errs.CryptoError{Op: "canonicalizar documento", Err: err}
	}
	sum := sha256.Sum256(canonical)
	return base64.StdEncoding.EncodeToString(sum[:]), nil
}

func buildSignedInfo(id, method, digest string) *etree.Element {
	si := etree.NewElement("SignedInfo")
	si.CreateElement("CanonicalizationMethod").CreateAttr("Algorithm", C14N10)
	si.CreateElement("SignatureMethod").CreateAttr("Algorithm", method)

	ref := si.CreateElement("Reference")
	ref.CreateAttr("URI", "#"+id)
	transforms := ref.CreateElement("Transforms")
	transforms.CreateElement("Transform").CreateAttr("Algorithm", C14N10)
	transforms.CreateElement("Transform").CreateAttr("Algorithm", EnvelopedSignature)
	ref.CreateElement("DigestMethod").CreateAttr("Algorithm", DigestSHA256)
	ref.CreateElement("DigestValue").SetText(digest)
	return si
}

func removeSignatures(root *etree.Element) {
	for _, child := range root.ChildElements() {
		if child.Tag == "Signature" {
			root.RemoveChild(child)
		}
	}
}

func ensureID(root *etree.Element) (string, error) {
	if id := root.SelectAttrValue(idAttr, ""); id != "" {
		return id, nil
	}
	suffix := make([]byte, 8)
	if _, err := rand.Read(suffix); err != nil {
		return "", err
	}
	id := root.Tag + "-" + hex.EncodeToString(suffix)
	root.CreateAttr(idAttr, id)
	return id, nil
}

func signatureMethod(key crypto.Signer) (string, error) {
	switch key.(type) {
	case *rsa.PrivateKey:
		return RSASHA256, nil
	case *ecdsa.PrivateKey:
		return ECDSASHA256, nil
	default:
		return "", ErrUnsupported
	}
}

func sign(key crypto.Signer, canonical []byte) ([]byte, error) {
	sum := sha256.Sum256(canonical)
	switch k := key.(type) {
	case *rsa.PrivateKey:
		return rsa.SignPKCS1v15(rand.Reader, k, crypto.SHA256, sum[:])
	case *ecdsa.PrivateKey:
		r, s, err := ecdsa.Sign(rand.Reader, k, sum[:])
		if err != nil {
			return nil, err
		}
		// XMLDSig usa r||s com largura fixa, não a codificação ASN.1
		size := (k.Curve.Params().BitSize + 7) / 8
		return append(fixed(r, size), fixed(s, size)...), nil
	default:
		return nil, ErrUnsupported
	}
}

func fixed(n *big.Int, size int) []byte {
	out := make([]byte, size)
	n.FillBytes(out)
	return out
}
