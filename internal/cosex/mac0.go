package cosex

import (
	"context"

	"github.com/kokukuma/mdoc-verifier/hostctx"
	"github.com/kokukuma/mdoc-verifier/internal/cborx"
)

// Mac0 is COSE_Mac0 (spec.md §3): protected headers are always the
// deterministic CBOR encoding of the header map (held directly as
// bytes, same shape as Sign1's protected_headers_bytes); the MAC is
// computed over the Mac-structure ["MAC0", protected, external_aad,
// payload]. go-cose does not expose a Mac0 type, so the wire codec
// here is hand-rolled over internal/cborx, following the same
// array-of-fields shape go-cose uses for Sign1Message.
type Mac0 struct {
	Protected   []byte                 `cbor:"-"`
	Unprotected map[interface{}]interface{} `cbor:"-"`
	Payload     []byte                 `cbor:"-"`
	Tag         []byte                 `cbor:"-"`
}

// wireMac0 is the literal 4-element COSE_Mac0 array.
type wireMac0 struct {
	_           struct{} `cbor:",toarray"`
	Protected   []byte
	Unprotected map[interface{}]interface{}
	Payload     []byte
	Tag         []byte
}

// HeaderLabelAlgorithm/HeaderLabelKeyID mirror RFC 9052 Table 2,
// reused here so Mac0 protected headers line up with the Sign1
// header-label constants go-cose exposes.
const (
	HeaderLabelAlgorithm = 1
	HeaderLabelKeyID     = 4
)

// AlgorithmHMAC256 is COSE algorithm label 5: HMAC 256/256 (RFC 9053
// §3.2). spec.md §4.7 requires device MAC to use exactly this alg.
const AlgorithmHMAC256 = 5

// NewMac0 builds a Mac0 with a protected header containing only alg,
// matching the minimal header shape the teacher's Sign1 usage favors.
func NewMac0(alg int64, payload []byte) (*Mac0, error) {
	protected, err := cborx.Marshal(map[interface{}]interface{}{HeaderLabelAlgorithm: alg})
	if err != nil {
		return nil, hostctx.Wrap(hostctx.ErrInvalidMajorType, err, "failed to encode mac0 protected header")
	}
	return &Mac0{Protected: protected, Payload: payload}, nil
}

func (m *Mac0) macStructure(externalAAD []byte) ([]byte, error) {
	if externalAAD == nil {
		externalAAD = []byte{}
	}
	structure := []interface{}{
		"MAC0",
		m.Protected,
		externalAAD,
		m.Payload,
	}
	b, err := cborx.Marshal(structure)
	if err != nil {
		return nil, hostctx.Wrap(hostctx.ErrInvalidMajorType, err, "failed to encode mac0 mac-structure")
	}
	return b, nil
}

// Compute MACs the Mac-structure with hmacKey as given; it derives no
// key itself (callers obtain the key beforehand, e.g. through
// CryptoContext.CalculateEphemeralMacKey). It always runs Digest-free
// HMAC through CryptoContext.Sign with alg "HS256".
func (m *Mac0) Compute(ctx context.Context, crypto hostctx.CryptoContext, hmacKey []byte, externalAAD []byte) error {
	structure, err := m.macStructure(externalAAD)
	if err != nil {
		return err
	}
	tag, err := crypto.Sign(ctx, "HS256", hmacKey, structure)
	if err != nil {
		return hostctx.WrapCapability(err, "hmac computation failed")
	}
	m.Tag = tag
	return nil
}

// Verify recomputes the Mac-structure and checks the MAC through ctx.
func (m *Mac0) Verify(ctx context.Context, crypto hostctx.CryptoContext, hmacKey []byte, externalAAD []byte) error {
	structure, err := m.macStructure(externalAAD)
	if err != nil {
		return err
	}
	ok, err := crypto.Verify(ctx, "HS256", hmacKey, structure, m.Tag)
	if err != nil {
		return hostctx.WrapCapability(err, "hmac verification failed")
	}
	if !ok {
		return hostctx.New(hostctx.ErrMacInvalid, "device mac did not verify")
	}
	return nil
}

// Algorithm reads label 1 from the protected header bytes.
func (m *Mac0) Algorithm() (int64, error) {
	var hdr map[int64]int64
	if err := cborx.Unmarshal(m.Protected, &hdr); err != nil {
		return 0, hostctx.Wrap(hostctx.ErrMissingField, err, "failed to decode mac0 protected header")
	}
	alg, ok := hdr[HeaderLabelAlgorithm]
	if !ok {
		return 0, hostctx.New(hostctx.ErrMissingField, "mac0 protected header missing alg")
	}
	return alg, nil
}

// MarshalCBOR encodes the 4-element COSE_Mac0 array.
func (m Mac0) MarshalCBOR() ([]byte, error) {
	return cborx.Marshal(wireMac0{
		Protected:   m.Protected,
		Unprotected: m.Unprotected,
		Payload:     m.Payload,
		Tag:         m.Tag,
	})
}

// UnmarshalCBOR decodes the 4-element COSE_Mac0 array.
func (m *Mac0) UnmarshalCBOR(data []byte) error {
	var w wireMac0
	if err := cborx.Unmarshal(data, &w); err != nil {
		return err
	}
	m.Protected = w.Protected
	m.Unprotected = w.Unprotected
	m.Payload = w.Payload
	m.Tag = w.Tag
	return nil
}
