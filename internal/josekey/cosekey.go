// Package josekey provides the bidirectional COSE_Key <-> JWK mapping
// (spec.md §4.3) and the PEM/SPKI/PKCS8/X.509 key-import plus
// algorithm-dispatch layer (spec.md §4.5) that both the mdoc engine
// and the JARM envelope depend on.
//
// The COSE_Key struct below follows the parameter layout of
// mdoc/mdoc.go's COSEKey (same nine parameters, same order); the mdoc
// package keeps its own type and does not use this one. This package
// adds the JWK side of the mapping, grounded on
// github.com/lestrrat-go/jwx/v2/jwk — the JWK dependency
// TBD54566975-ssi-service already leans on throughout its DID/OIDC
// key handling.
package josekey

import (
	"crypto/ecdsa"
	"crypto/ed25519"
	"crypto/elliptic"
	"math/big"

	"github.com/lestrrat-go/jwx/v2/jwa"
	"github.com/lestrrat-go/jwx/v2/jwk"

	"github.com/kokukuma/mdoc-verifier/hostctx"
)

// Curve integers per RFC 9053 Table 18/23.
const (
	CurveP256         = 1
	CurveP384         = 2
	CurveP521         = 3
	CurveX25519       = 4
	CurveX448         = 5
	CurveEd25519      = 6
	CurveEd448        = 7
	CurveBrainpoolP256 = 8
	CurveBrainpoolP384 = 9
	CurveBrainpoolP512 = 10
)

// Kty values per RFC 9053 Table 17.
const (
	KtyOKP = 1
	KtyEC2 = 2
	KtySymmetric = 4
)

// COSEKey has the parameters of mdoc.COSEKey (mdoc/mdoc.go) in the
// same order, with crv/x generalized to CrvOrNOrK/XOrE so the same
// slots carry RSA and symmetric key material. The mdoc package does
// not share this type or its parsing code.
type COSEKey struct {
	Kty       int64
	Kid       []byte
	Alg       int64
	KeyOpts   int64
	IV        []byte
	CrvOrNOrK []byte // K for symmetric, Crv (as a 1-byte big-endian int) for EC/OKP, N for RSA modulus
	XOrE      []byte
	Y         []byte
	D         []byte
}

// ToRaw returns the uncompressed EC point 0x04||X||Y for P-curves, or
// the raw OKP point/scalar, suitable as ECDH input (spec.md §4.3).
func (k *COSEKey) ToRaw() ([]byte, error) {
	switch k.Kty {
	case KtyEC2:
		raw := make([]byte, 0, 1+len(k.XOrE)+len(k.Y))
		raw = append(raw, 0x04)
		raw = append(raw, k.XOrE...)
		raw = append(raw, k.Y...)
		return raw, nil
	case KtyOKP:
		return k.XOrE, nil
	default:
		return nil, hostctx.New(hostctx.ErrKeyTypeMismatch, "unsupported kty for raw extraction: %d", k.Kty)
	}
}

// ToECDSAPublicKey reconstructs a crypto/ecdsa public key for the
// P-256/P-384/P-521 curves, generalizing the teacher's
// mdoc/mdoc.go:parseECDSA.
func (k *COSEKey) ToECDSAPublicKey() (*ecdsa.PublicKey, error) {
	if k.Kty != KtyEC2 {
		return nil, hostctx.New(hostctx.ErrKeyTypeMismatch, "not an EC2 cose key: kty=%d", k.Kty)
	}
	curve, err := curveFromCOSE(crvFromBytes(k.CrvOrNOrK))
	if err != nil {
		return nil, err
	}
	if len(k.XOrE) == 0 || len(k.Y) == 0 {
		return nil, hostctx.New(hostctx.ErrMissingField, "ec2 cose key missing x/y coordinates")
	}
	return &ecdsa.PublicKey{
		Curve: curve,
		X:     new(big.Int).SetBytes(k.XOrE),
		Y:     new(big.Int).SetBytes(k.Y),
	}, nil
}

// ToEd25519PublicKey reconstructs a crypto/ed25519 public key for an
// OKP COSE_Key on curve Ed25519.
func (k *COSEKey) ToEd25519PublicKey() (ed25519.PublicKey, error) {
	if k.Kty != KtyOKP {
		return nil, hostctx.New(hostctx.ErrKeyTypeMismatch, "not an OKP cose key: kty=%d", k.Kty)
	}
	if crvFromBytes(k.CrvOrNOrK) != CurveEd25519 {
		return nil, hostctx.New(hostctx.ErrUnsupportedCurveOID, "unsupported okp curve: %d", crvFromBytes(k.CrvOrNOrK))
	}
	return ed25519.PublicKey(k.XOrE), nil
}

func crvFromBytes(b []byte) int64 {
	var v int64
	for _, by := range b {
		v = v<<8 | int64(by)
	}
	return v
}

func curveFromCOSE(crv int64) (elliptic.Curve, error) {
	switch crv {
	case CurveP256:
		return elliptic.P256(), nil
	case CurveP384:
		return elliptic.P384(), nil
	case CurveP521:
		return elliptic.P521(), nil
	default:
		return nil, hostctx.New(hostctx.ErrUnsupportedCurveOID, "unsupported ec curve: %d", crv)
	}
}

func coseCurveFromECDSA(curve elliptic.Curve) (int64, error) {
	switch curve {
	case elliptic.P256():
		return CurveP256, nil
	case elliptic.P384():
		return CurveP384, nil
	case elliptic.P521():
		return CurveP521, nil
	default:
		return 0, hostctx.New(hostctx.ErrUnsupportedCurveOID, "unsupported ecdsa curve")
	}
}

// FromECDSAPublicKey builds a COSEKey (kty=EC2) from a crypto/ecdsa
// public key, the inverse of ToECDSAPublicKey.
func FromECDSAPublicKey(pub *ecdsa.PublicKey) (*COSEKey, error) {
	crv, err := coseCurveFromECDSA(pub.Curve)
	if err != nil {
		return nil, err
	}
	size := (pub.Curve.Params().BitSize + 7) / 8
	return &COSEKey{
		Kty:       KtyEC2,
		CrvOrNOrK: big.NewInt(crv).Bytes(),
		XOrE:      pub.X.FillBytes(make([]byte, size)),
		Y:         pub.Y.FillBytes(make([]byte, size)),
	}, nil
}

// FromEd25519PublicKey builds a COSEKey (kty=OKP, crv=Ed25519).
func FromEd25519PublicKey(pub ed25519.PublicKey) *COSEKey {
	return &COSEKey{
		Kty:       KtyOKP,
		CrvOrNOrK: big.NewInt(CurveEd25519).Bytes(),
		XOrE:      []byte(pub),
	}
}

// ToJWK converts a COSEKey to a lestrrat-go/jwx JWK, completing the
// total bidirectional mapping spec.md §4.3 requires for every
// supported curve.
func (k *COSEKey) ToJWK() (jwk.Key, error) {
	var raw any
	var err error
	switch k.Kty {
	case KtyEC2:
		raw, err = k.ToECDSAPublicKey()
	case KtyOKP:
		raw, err = k.ToEd25519PublicKey()
	default:
		return nil, hostctx.New(hostctx.ErrKeyTypeMismatch, "unsupported kty for jwk conversion: %d", k.Kty)
	}
	if err != nil {
		return nil, err
	}

	key, err := jwk.FromRaw(raw)
	if err != nil {
		return nil, hostctx.Wrap(hostctx.ErrInvalidPEM, err, "failed to build jwk from cose key")
	}
	if len(k.Kid) > 0 {
		_ = key.Set(jwk.KeyIDKey, string(k.Kid))
	}
	return key, nil
}

// FromJWK converts a JWK back to a COSEKey, the other half of the
// total bidirectional mapping.
func FromJWK(key jwk.Key) (*COSEKey, error) {
	switch key.KeyType() {
	case jwa.EC:
		var pub ecdsa.PublicKey
		if err := key.Raw(&pub); err != nil {
			return nil, hostctx.Wrap(hostctx.ErrInvalidPEM, err, "failed to extract ecdsa key from jwk")
		}
		ck, err := FromECDSAPublicKey(&pub)
		if err != nil {
			return nil, err
		}
		if kid := key.KeyID(); kid != "" {
			ck.Kid = []byte(kid)
		}
		return ck, nil
	case jwa.OKP:
		var pub ed25519.PublicKey
		if err := key.Raw(&pub); err != nil {
			return nil, hostctx.Wrap(hostctx.ErrInvalidPEM, err, "failed to extract ed25519 key from jwk")
		}
		ck := FromEd25519PublicKey(pub)
		if kid := key.KeyID(); kid != "" {
			ck.Kid = []byte(kid)
		}
		return ck, nil
	default:
		return nil, hostctx.New(hostctx.ErrKeyTypeMismatch, "unsupported jwk key type: %s", key.KeyType())
	}
}
