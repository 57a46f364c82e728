// Package mdoc implements the ISO/IEC 18013-5 mdoc/mDL data model: the
// DeviceResponse returned by a device, its IssuerSigned/DeviceSigned
// halves, the MobileSecurityObject, and the digest/device-authentication
// calculations the issuer and verifier both need. Wire-format parsing
// throughout uses internal/cborx's DataItem to keep the exact bytes a
// digest was computed over, and delegates every cryptographic
// operation to a hostctx.CryptoContext rather than calling into
// crypto/* directly.
package mdoc

import (
	"context"
	"crypto/ecdsa"
	"crypto/ed25519"
	"crypto/elliptic"
	"crypto/x509"
	"math/big"
	"time"

	"github.com/kokukuma/mdoc-verifier/hostctx"
	"github.com/kokukuma/mdoc-verifier/internal/cborx"
	"github.com/kokukuma/mdoc-verifier/internal/cosex"
)

type DocType string

type NameSpace string

type ElementIdentifier string

type ElementValue = any

// DeviceResponse is the top-level structure a device returns in
// response to a request for one or more documents (ISO/IEC 18013-5
// §8.3.2.1.2.2).
type DeviceResponse struct {
	Version        string          `cbor:"version"`
	Documents      []Document      `cbor:"documents,omitempty"`
	DocumentErrors []DocumentError `cbor:"documentErrors,omitempty"`
	Status         uint            `cbor:"status"`
}

// GetDocument returns the first document of the given DocType.
func (d *DeviceResponse) GetDocument(docType DocType) (*Document, error) {
	for i := range d.Documents {
		if d.Documents[i].DocType == docType {
			return &d.Documents[i], nil
		}
	}
	return nil, hostctx.New(hostctx.ErrDocTypeNotFound, "no document with docType %s", docType)
}

type Document struct {
	DocType      DocType      `cbor:"docType"`
	IssuerSigned IssuerSigned `cbor:"issuerSigned"`
	DeviceSigned DeviceSigned `cbor:"deviceSigned"`
	Errors       Errors       `cbor:"errors,omitempty"`
}

// GetElementValue returns the disclosed value of one element, or an
// error if the namespace or element was never disclosed.
func (d *Document) GetElementValue(namespace NameSpace, elementIdentifier ElementIdentifier) (ElementValue, error) {
	if d.DocType == "" {
		return nil, hostctx.New(hostctx.ErrMissingField, "document has no docType")
	}
	items, err := d.IssuerSigned.GetIssuerSignedItems(namespace)
	if err != nil {
		return nil, err
	}
	for _, item := range items {
		if item.ElementIdentifier == elementIdentifier {
			if tag, ok := item.ElementValue.(cborx.Tag); ok {
				return tag.Content, nil
			}
			return item.ElementValue, nil
		}
	}
	return nil, hostctx.New(hostctx.ErrMissingField, "element %s not found in namespace %s", elementIdentifier, namespace)
}

// IssuerSigned is the issuer-signed half of a Document: the disclosed
// namespace/element data plus the IssuerAuth COSE_Sign1 over the MSO.
type IssuerSigned struct {
	NameSpaces IssuerNameSpaces `cbor:"nameSpaces,omitempty"`
	IssuerAuth cosex.Sign1      `cbor:"issuerAuth"`
}

func (i *IssuerSigned) GetNameSpaces() []NameSpace {
	nss := make([]NameSpace, 0, len(i.NameSpaces))
	for ns := range i.NameSpaces {
		nss = append(nss, ns)
	}
	return nss
}

// GetIssuerSignedItems parses every IssuerSignedItem in a namespace.
func (i *IssuerSigned) GetIssuerSignedItems(ns NameSpace) ([]IssuerSignedItem, error) {
	items, ok := i.NameSpaces[ns]
	if !ok || len(items) == 0 {
		return nil, hostctx.New(hostctx.ErrMissingField, "namespace %s not found", ns)
	}
	out := make([]IssuerSignedItem, 0, len(items))
	for _, di := range items {
		item, err := di.Value()
		if err != nil {
			return nil, hostctx.Wrap(hostctx.ErrInvalidMajorType, err, "failed to parse issuer signed item")
		}
		out = append(out, item)
	}
	return out, nil
}

func (i *IssuerSigned) Algorithm() (hostctx.SignAlg, error) {
	coseAlg, err := i.IssuerAuth.Algorithm()
	if err != nil {
		return "", err
	}
	return cosex.CoseToAlg(coseAlg)
}

// DocumentSigningCertificateChain returns the x5chain carried in
// IssuerAuth's unprotected headers, leaf certificate first.
func (i *IssuerSigned) DocumentSigningCertificateChain() ([]*x509.Certificate, error) {
	unprotected := i.IssuerAuth.Unprotected()
	if unprotected == nil {
		return nil, hostctx.New(hostctx.ErrMissingField, "issuerAuth missing unprotected headers")
	}

	rawX5Chain, ok := unprotected[cosex.HeaderLabelX5Chain]
	if !ok {
		return nil, hostctx.New(hostctx.ErrMissingField, "x5chain not found in unprotected headers")
	}

	var chainBytes [][]byte
	switch v := rawX5Chain.(type) {
	case [][]byte:
		chainBytes = v
	case []byte:
		chainBytes = [][]byte{v}
	default:
		return nil, hostctx.New(hostctx.ErrInvalidMajorType, "unexpected x5chain type: %T", rawX5Chain)
	}
	if len(chainBytes) == 0 {
		return nil, hostctx.New(hostctx.ErrMissingField, "empty x5chain")
	}

	certs := make([]*x509.Certificate, 0, len(chainBytes))
	for _, der := range chainBytes {
		cert, err := x509.ParseCertificate(der)
		if err != nil {
			return nil, hostctx.Wrap(hostctx.ErrInvalidPEM, err, "failed to parse x5chain certificate")
		}
		certs = append(certs, cert)
	}
	return certs, nil
}

// DocumentSigningCertificate returns the leaf (document signing)
// certificate from the x5chain.
func (i *IssuerSigned) DocumentSigningCertificate() (*x509.Certificate, error) {
	certs, err := i.DocumentSigningCertificateChain()
	if err != nil {
		return nil, err
	}
	return certs[0], nil
}

// MobileSecurityObject unwraps and parses the MSO carried as tag-24
// embedded CBOR inside IssuerAuth's payload.
func (i *IssuerSigned) MobileSecurityObject() (*MobileSecurityObject, error) {
	payload := i.IssuerAuth.Payload()
	if payload == nil {
		return nil, hostctx.New(hostctx.ErrMissingField, "issuerAuth missing payload")
	}

	var tagged cborx.Tag
	if err := cborx.Unmarshal(payload, &tagged); err != nil {
		return nil, hostctx.Wrap(hostctx.ErrInvalidMajorType, err, "failed to unmarshal tagged mso payload")
	}
	content, ok := tagged.Content.([]byte)
	if !ok {
		return nil, hostctx.New(hostctx.ErrInvalidMajorType, "unexpected mso tag content type: %T", tagged.Content)
	}

	var mso MobileSecurityObject
	if err := cborx.Unmarshal(content, &mso); err != nil {
		return nil, hostctx.Wrap(hostctx.ErrInvalidMajorType, err, "failed to unmarshal mobile security object")
	}
	return &mso, nil
}

type IssuerNameSpaces map[NameSpace][]cborx.DataItem[IssuerSignedItem]

type IssuerSignedItem struct {
	DigestID          DigestID          `cbor:"digestID"`
	Random            []byte            `cbor:"random"`
	ElementIdentifier ElementIdentifier `cbor:"elementIdentifier"`
	ElementValue      ElementValue      `cbor:"elementValue"`
}

// Digest computes the value digest for this item exactly as stored
// on the wire: tag-24 wrap the preserved bytes, then hash through ctx
// (spec.md §4.4/§6: digesting is a CryptoContext capability, never a
// direct crypto/sha256 call).
func Digest(ctx context.Context, crypto hostctx.CryptoContext, item cborx.DataItem[IssuerSignedItem], alg string) ([]byte, error) {
	tagged, err := item.TaggedBytes()
	if err != nil {
		return nil, hostctx.Wrap(hostctx.ErrInvalidMajorType, err, "failed to build tagged issuer signed item bytes")
	}
	digest, err := crypto.Digest(ctx, hostctx.DigestAlg(alg), tagged)
	if err != nil {
		return nil, hostctx.WrapCapability(err, "digest computation failed")
	}
	return digest, nil
}

type MobileSecurityObject struct {
	Version         string        `cbor:"version"`
	DigestAlgorithm string        `cbor:"digestAlgorithm"`
	ValueDigests    ValueDigests  `cbor:"valueDigests"`
	DeviceKeyInfo   DeviceKeyInfo `cbor:"deviceKeyInfo"`
	DocType         DocType       `cbor:"docType"`
	ValidityInfo    ValidityInfo  `cbor:"validityInfo"`
}

func (m *MobileSecurityObject) DigestAlg() string {
	return m.DigestAlgorithm
}

// DeviceKey reconstructs the device's public key from the MSO's
// COSE_Key, dispatching on its kty (EC2 or OKP).
func (m *MobileSecurityObject) DeviceKey() (any, error) {
	if m == nil || m.DeviceKeyInfo.DeviceKey == nil {
		return nil, hostctx.New(hostctx.ErrKeyNotSet, "device key not available in mso")
	}
	k := m.DeviceKeyInfo.DeviceKey
	switch k.Kty {
	case KtyEC2:
		return k.ToECDSAPublicKey()
	case KtyOKP:
		return k.ToEd25519PublicKey()
	default:
		return nil, hostctx.New(hostctx.ErrKeyTypeMismatch, "unsupported device key kty: %d", k.Kty)
	}
}

func (m *MobileSecurityObject) GetDigest(ns NameSpace, digestID DigestID) (DigestBytes, error) {
	digests, ok := m.ValueDigests[ns]
	if !ok {
		return nil, hostctx.New(hostctx.ErrMissingField, "value digests not found for namespace %s", ns)
	}
	digest, ok := digests[digestID]
	if !ok {
		return nil, hostctx.New(hostctx.ErrMissingField, "digest not found: ns=%s digestID=%d", ns, digestID)
	}
	return digest, nil
}

func (m *MobileSecurityObject) KeyAuthorizations() (*KeyAuthorizations, error) {
	if m == nil || m.DeviceKeyInfo.KeyAuthorizations == nil {
		return nil, hostctx.New(hostctx.ErrMissingField, "device key authorizations not available")
	}
	return m.DeviceKeyInfo.KeyAuthorizations, nil
}

type DeviceKeyInfo struct {
	DeviceKey         *COSEKey           `cbor:"deviceKey"`
	KeyAuthorizations *KeyAuthorizations `cbor:"keyAuthorizations,omitempty"`
	KeyInfo           *KeyInfo           `cbor:"keyInfo,omitempty"`
}

// COSEKey is the wire-format COSE_Key carried inside DeviceKeyInfo.
// It lists the same nine COSE_Key parameters in the same order as
// internal/josekey.COSEKey, but holds crv as an integer under its own
// names; this package does not convert between the two. Unlike the
// JWK-conversion side, this struct carries the cbor struct tags the
// wire format actually needs.
type COSEKey struct {
	Kty       int64  `cbor:"1,keyasint,omitempty"`
	Kid       []byte `cbor:"2,keyasint,omitempty"`
	Alg       int64  `cbor:"3,keyasint,omitempty"`
	KeyOpts   int64  `cbor:"4,keyasint,omitempty"`
	IV        []byte `cbor:"5,keyasint,omitempty"`
	Crv       int64  `cbor:"-1,keyasint,omitempty"`
	X         []byte `cbor:"-2,keyasint,omitempty"`
	Y         []byte `cbor:"-3,keyasint,omitempty"`
	D         []byte `cbor:"-4,keyasint,omitempty"`
}

// Kty values per RFC 9053 Table 17 (mirrors internal/josekey).
const (
	KtyOKP = 1
	KtyEC2 = 2
)

// Curve integers per RFC 9053 Table 18 (mirrors internal/josekey).
const (
	CurveP256    = 1
	CurveP384    = 2
	CurveP521    = 3
	CurveEd25519 = 6
)

func (k *COSEKey) ToECDSAPublicKey() (*ecdsa.PublicKey, error) {
	if k.Kty != KtyEC2 {
		return nil, hostctx.New(hostctx.ErrKeyTypeMismatch, "not an EC2 cose key: kty=%d", k.Kty)
	}
	var curve elliptic.Curve
	switch k.Crv {
	case CurveP256:
		curve = elliptic.P256()
	case CurveP384:
		curve = elliptic.P384()
	case CurveP521:
		curve = elliptic.P521()
	default:
		return nil, hostctx.New(hostctx.ErrUnsupportedCurveOID, "unsupported curve: %d", k.Crv)
	}
	if len(k.X) == 0 || len(k.Y) == 0 {
		return nil, hostctx.New(hostctx.ErrMissingField, "ec2 cose key missing x/y coordinates")
	}
	return &ecdsa.PublicKey{
		Curve: curve,
		X:     new(big.Int).SetBytes(k.X),
		Y:     new(big.Int).SetBytes(k.Y),
	}, nil
}

func (k *COSEKey) ToEd25519PublicKey() (ed25519.PublicKey, error) {
	if k.Kty != KtyOKP {
		return nil, hostctx.New(hostctx.ErrKeyTypeMismatch, "not an OKP cose key: kty=%d", k.Kty)
	}
	if k.Crv != CurveEd25519 {
		return nil, hostctx.New(hostctx.ErrUnsupportedCurveOID, "unsupported okp curve: %d", k.Crv)
	}
	return ed25519.PublicKey(k.X), nil
}

// FromECDSAPublicKey builds a wire COSEKey (kty=EC2) from a device's
// public key, the inverse of ToECDSAPublicKey.
func FromECDSAPublicKey(pub *ecdsa.PublicKey) (*COSEKey, error) {
	var crv int64
	switch pub.Curve {
	case elliptic.P256():
		crv = CurveP256
	case elliptic.P384():
		crv = CurveP384
	case elliptic.P521():
		crv = CurveP521
	default:
		return nil, hostctx.New(hostctx.ErrUnsupportedCurveOID, "unsupported ecdsa curve")
	}
	size := (pub.Curve.Params().BitSize + 7) / 8
	return &COSEKey{
		Kty: KtyEC2,
		Crv: crv,
		X:   pub.X.FillBytes(make([]byte, size)),
		Y:   pub.Y.FillBytes(make([]byte, size)),
	}, nil
}

type KeyAuthorizations struct {
	NameSpaces   []NameSpace                       `cbor:"nameSpaces,omitempty"`
	DataElements map[NameSpace][]ElementIdentifier `cbor:"dataElements,omitempty"`
}

type KeyInfo map[int]any

type ValueDigests map[NameSpace]DigestIDs

type DigestIDs map[DigestID]DigestBytes

type ValidityInfo struct {
	Signed         time.Time `cbor:"signed"`
	ValidFrom      time.Time `cbor:"validFrom"`
	ValidUntil     time.Time `cbor:"validUntil"`
	ExpectedUpdate time.Time `cbor:"expectedUpdate,omitempty"`
}

type DigestID uint32

type DigestBytes []byte

// DeviceSigned is the device-signed half of a Document: the device's
// own namespace disclosures, authenticated by either a signature or a
// MAC (spec.md §4.6).
type DeviceSigned struct {
	NameSpaces cborx.DataItem[DeviceNameSpaces] `cbor:"nameSpaces"`
	DeviceAuth DeviceAuth                       `cbor:"deviceAuth"`
}

type DeviceNameSpaces map[NameSpace]DeviceSignedItems

type DeviceSignedItems map[ElementIdentifier]ElementValue

func (d *DeviceSigned) Algorithm() (hostctx.SignAlg, error) {
	if d.DeviceAuth.DeviceSignature == nil {
		return "", hostctx.New(hostctx.ErrMissingField, "device signature not present")
	}
	coseAlg, err := d.DeviceAuth.DeviceSignature.Algorithm()
	if err != nil {
		return "", err
	}
	return cosex.CoseToAlg(coseAlg)
}

// DeviceAuthenticationBytes builds the DeviceAuthentication structure
// (spec.md §4.6): ["DeviceAuthentication", sessionTranscript, docType,
// tag24(DeviceNameSpaces)], tag-24 wrapped once more as a whole.
func (d *DeviceSigned) DeviceAuthenticationBytes(docType DocType, sessionTranscript []byte) ([]byte, error) {
	if len(sessionTranscript) == 0 {
		return nil, hostctx.New(hostctx.ErrHandoverNotSet, "session transcript is empty")
	}

	namespacesTagged, err := d.NameSpaces.TaggedBytes()
	if err != nil {
		return nil, hostctx.Wrap(hostctx.ErrInvalidMajorType, err, "failed to build tagged device namespaces bytes")
	}

	deviceAuthentication := []any{
		"DeviceAuthentication",
		cborx.RawMessage(sessionTranscript),
		docType,
		cborx.RawMessage(namespacesTagged),
	}

	da, err := cborx.Marshal(deviceAuthentication)
	if err != nil {
		return nil, hostctx.Wrap(hostctx.ErrInvalidMajorType, err, "failed to marshal device authentication")
	}

	tagged, err := cborx.Marshal(cborx.Tag{Number: cborx.TagEmbeddedCBOR, Content: da})
	if err != nil {
		return nil, hostctx.Wrap(hostctx.ErrInvalidMajorType, err, "failed to marshal tagged device authentication")
	}
	return tagged, nil
}

type DeviceAuth struct {
	DeviceSignature *cosex.Sign1 `cbor:"deviceSignature,omitempty"`
	DeviceMac       *cosex.Mac0  `cbor:"deviceMac,omitempty"`
}

type DocumentError map[DocType]ErrorCode

type Errors map[NameSpace]ErrorItems

type ErrorItems map[ElementIdentifier]ErrorCode

type ErrorCode int
