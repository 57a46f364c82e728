// Package cosex wraps github.com/veraison/go-cose (the teacher's COSE
// dependency, see mdoc/mdoc.go's cose.UntaggedSign1Message and
// mdoc/verify.go's cose.NewVerifier) behind hostctx.CryptoContext, per
// spec.md §6's capability-injection requirement: the core builds
// sig-structures and delegates the actual signing/verification to the
// host instead of calling into crypto/ecdsa directly.
package cosex

import (
	"context"
	"crypto/rand"
	"io"

	"github.com/veraison/go-cose"

	"github.com/kokukuma/mdoc-verifier/hostctx"
)

// Sign1 is the teacher's UntaggedSign1Message (mdoc/mdoc.go), kept
// under its original name-shape but wired to a CryptoContext. The
// teacher's UnmarshalCBOR swallows malformed payloads rather than
// erroring, because Apple's simulator returns a truncated
// deviceSignature; that behaviour survives unchanged here.
type Sign1 struct {
	msg cose.UntaggedSign1Message
}

// NewSign1 builds an empty Sign1 with the given protected/unprotected
// headers and payload, ready for Sign.
func NewSign1(protected cose.ProtectedHeader, unprotected cose.UnprotectedHeader, payload []byte) *Sign1 {
	return &Sign1{msg: cose.UntaggedSign1Message{
		Headers: cose.Headers{Protected: protected, Unprotected: unprotected},
		Payload: payload,
	}}
}

// FromMessage wraps an already-parsed go-cose message (e.g. the one
// embedded in a parsed mdoc Document).
func FromMessage(msg cose.UntaggedSign1Message) *Sign1 {
	return &Sign1{msg: msg}
}

func (s *Sign1) Message() *cose.UntaggedSign1Message { return &s.msg }

func (s *Sign1) Protected() cose.ProtectedHeader   { return s.msg.Headers.Protected }
func (s *Sign1) Unprotected() cose.UnprotectedHeader { return s.msg.Headers.Unprotected }
func (s *Sign1) Payload() []byte                   { return s.msg.Payload }
func (s *Sign1) Signature() []byte                 { return s.msg.Signature }

func (s *Sign1) SetPayload(payload []byte) { s.msg.Payload = payload }

// MarshalCBOR encodes the untagged COSE_Sign1 array.
func (s Sign1) MarshalCBOR() ([]byte, error) {
	return s.msg.MarshalCBOR()
}

// UnmarshalCBOR decodes the untagged COSE_Sign1 array. Apple's
// simulator has been observed to return a deviceSignature that is
// truncated mid-structure; rather than fail the whole DeviceResponse
// parse over one unusable device signature, this leaves Sign1 zeroed
// and reports success, exactly as the teacher's UntaggedSign1Message
// did. Any later attempt to Verify a zeroed Sign1 fails cleanly on a
// missing protected header instead.
func (s *Sign1) UnmarshalCBOR(data []byte) error {
	var msg cose.UntaggedSign1Message
	if err := msg.UnmarshalCBOR(data); err != nil {
		*s = Sign1{}
		return nil
	}
	s.msg = msg
	return nil
}

// Algorithm reads the alg (label 1) from the protected header, per
// spec.md §4.2's "alg must be in the protected header" invariant.
func (s *Sign1) Algorithm() (cose.Algorithm, error) {
	if s.msg.Headers.Protected == nil {
		return 0, hostctx.New(hostctx.ErrMissingField, "missing protected header")
	}
	alg, err := s.msg.Headers.Protected.Algorithm()
	if err != nil {
		return 0, hostctx.Wrap(hostctx.ErrUnsupportedAlg, err, "failed to read alg from protected header")
	}
	return alg, nil
}

// Sign builds the Signature1 sig-structure and signs it through ctx.
func (s *Sign1) Sign(ctx context.Context, crypto hostctx.CryptoContext, alg hostctx.SignAlg, key any, externalAAD []byte) error {
	if s.msg.Headers.Protected == nil {
		s.msg.Headers.Protected = cose.ProtectedHeader{}
	}
	signer := &contextSigner{ctx: ctx, crypto: crypto, alg: alg, key: key}
	return s.msg.Sign(rand.Reader, externalAAD, signer)
}

// Verify reconstructs the sig-structure (optionally over a detached
// payload) and verifies it through ctx.
func (s *Sign1) Verify(ctx context.Context, crypto hostctx.CryptoContext, alg hostctx.SignAlg, key any, externalAAD, detachedPayload []byte) error {
	if detachedPayload != nil {
		s.msg.Payload = detachedPayload
	}
	verifier := &contextVerifier{ctx: ctx, crypto: crypto, alg: alg, key: key}
	if err := s.msg.Verify(externalAAD, verifier); err != nil {
		return hostctx.Wrap(hostctx.ErrSignatureInvalid, err, "cose sign1 verification failed")
	}
	return nil
}

// contextSigner/contextVerifier adapt hostctx.CryptoContext to
// go-cose's Signer/Verifier interfaces so go-cose's sig-structure
// construction logic (which the teacher already relies on) can be
// reused without duplicating it.
type contextSigner struct {
	ctx    context.Context
	crypto hostctx.CryptoContext
	alg    hostctx.SignAlg
	key    any
}

func (s *contextSigner) Algorithm() cose.Algorithm {
	a, _ := algToCose(s.alg)
	return a
}

func (s *contextSigner) Sign(_ io.Reader, content []byte) ([]byte, error) {
	sig, err := s.crypto.Sign(s.ctx, s.alg, s.key, content)
	if err != nil {
		return nil, hostctx.WrapCapability(err, "sign via CryptoContext failed")
	}
	return sig, nil
}

type contextVerifier struct {
	ctx    context.Context
	crypto hostctx.CryptoContext
	alg    hostctx.SignAlg
	key    any
}

func (v *contextVerifier) Algorithm() cose.Algorithm {
	a, _ := algToCose(v.alg)
	return a
}

func (v *contextVerifier) Verify(content, signature []byte) error {
	ok, err := v.crypto.Verify(v.ctx, v.alg, v.key, content, signature)
	if err != nil {
		return hostctx.WrapCapability(err, "verify via CryptoContext failed")
	}
	if !ok {
		return hostctx.New(hostctx.ErrSignatureInvalid, "signature did not verify")
	}
	return nil
}

// algToCose maps the JOSE-style alg label used throughout hostctx to
// the COSE integer algorithm identifier (RFC 9053 table).
func algToCose(alg hostctx.SignAlg) (cose.Algorithm, error) {
	switch alg {
	case "ES256":
		return cose.AlgorithmES256, nil
	case "ES384":
		return cose.AlgorithmES384, nil
	case "ES512":
		return cose.AlgorithmES512, nil
	case "EdDSA":
		return cose.AlgorithmEd25519, nil
	case "PS256":
		return cose.AlgorithmPS256, nil
	case "PS384":
		return cose.AlgorithmPS384, nil
	case "PS512":
		return cose.AlgorithmPS512, nil
	default:
		return 0, hostctx.New(hostctx.ErrUnsupportedAlg, "unsupported cose algorithm: %s", alg)
	}
}

// HeaderLabelX5Chain re-exports go-cose's x5chain unprotected-header
// label, so callers walking a parsed Sign1's unprotected headers
// don't need their own import of go-cose just for this constant.
const HeaderLabelX5Chain = cose.HeaderLabelX5Chain

// CoseToAlg is the inverse of algToCose, used when reading a parsed
// message's protected header back into hostctx's alg label space.
func CoseToAlg(alg cose.Algorithm) (hostctx.SignAlg, error) {
	switch alg {
	case cose.AlgorithmES256:
		return "ES256", nil
	case cose.AlgorithmES384:
		return "ES384", nil
	case cose.AlgorithmES512:
		return "ES512", nil
	case cose.AlgorithmEd25519:
		return "EdDSA", nil
	case cose.AlgorithmPS256:
		return "PS256", nil
	case cose.AlgorithmPS384:
		return "PS384", nil
	case cose.AlgorithmPS512:
		return "PS512", nil
	default:
		return "", hostctx.New(hostctx.ErrUnsupportedAlg, "unsupported cose algorithm: %d", alg)
	}
}
