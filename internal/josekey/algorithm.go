package josekey

import (
	"crypto"

	"github.com/kokukuma/mdoc-verifier/hostctx"
)

// Scheme identifies the signature/encryption family an alg label
// dispatches to, per spec.md §4.5's table.
type Scheme string

const (
	SchemeRSAPSS   Scheme = "RSA-PSS"
	SchemeRSAPKCS1 Scheme = "RSASSA-PKCS1-v1_5"
	SchemeRSAOAEP  Scheme = "RSA-OAEP"
	SchemeECDSA    Scheme = "ECDSA"
	SchemeEdDSA    Scheme = "EdDSA"
	SchemeECDH     Scheme = "ECDH"
	SchemeHMAC     Scheme = "HMAC"
	SchemeAESGCM   Scheme = "AES-GCM"
	SchemeAESKW    Scheme = "AES-KW"
)

// AlgParams is one row of spec.md §4.5's algorithm dispatch table.
type AlgParams struct {
	Scheme    Scheme
	Hash      crypto.Hash // zero if not hash-based (e.g. EdDSA, AES-KW)
	KeyBits   int         // AES key length in bits, where applicable
	CurveHint string      // "" unless the alg name fixes a curve (ECDSA variants)
}

// algTable is spec.md §4.5's table, verbatim.
var algTable = map[hostctx.SignAlg]AlgParams{
	"PS256": {Scheme: SchemeRSAPSS, Hash: crypto.SHA256},
	"PS384": {Scheme: SchemeRSAPSS, Hash: crypto.SHA384},
	"PS512": {Scheme: SchemeRSAPSS, Hash: crypto.SHA512},

	"RS256": {Scheme: SchemeRSAPKCS1, Hash: crypto.SHA256},
	"RS384": {Scheme: SchemeRSAPKCS1, Hash: crypto.SHA384},
	"RS512": {Scheme: SchemeRSAPKCS1, Hash: crypto.SHA512},

	"RSA-OAEP":     {Scheme: SchemeRSAOAEP, Hash: crypto.SHA1},
	"RSA-OAEP-256": {Scheme: SchemeRSAOAEP, Hash: crypto.SHA256},
	"RSA-OAEP-384": {Scheme: SchemeRSAOAEP, Hash: crypto.SHA384},
	"RSA-OAEP-512": {Scheme: SchemeRSAOAEP, Hash: crypto.SHA512},

	"ES256": {Scheme: SchemeECDSA, Hash: crypto.SHA256, CurveHint: "P-256"},
	"ES384": {Scheme: SchemeECDSA, Hash: crypto.SHA384, CurveHint: "P-384"},
	"ES512": {Scheme: SchemeECDSA, Hash: crypto.SHA512, CurveHint: "P-521"},

	"EdDSA": {Scheme: SchemeEdDSA},

	"ECDH-ES":           {Scheme: SchemeECDH},
	"ECDH-ES+A128KW":    {Scheme: SchemeECDH, KeyBits: 128},
	"ECDH-ES+A192KW":    {Scheme: SchemeECDH, KeyBits: 192},
	"ECDH-ES+A256KW":    {Scheme: SchemeECDH, KeyBits: 256},

	"HS256": {Scheme: SchemeHMAC, Hash: crypto.SHA256},
	"HS384": {Scheme: SchemeHMAC, Hash: crypto.SHA384},
	"HS512": {Scheme: SchemeHMAC, Hash: crypto.SHA512},

	"A128GCM": {Scheme: SchemeAESGCM, KeyBits: 128},
	"A192GCM": {Scheme: SchemeAESGCM, KeyBits: 192},
	"A256GCM": {Scheme: SchemeAESGCM, KeyBits: 256},

	"A128GCMKW": {Scheme: SchemeAESGCM, KeyBits: 128},
	"A192GCMKW": {Scheme: SchemeAESGCM, KeyBits: 192},
	"A256GCMKW": {Scheme: SchemeAESGCM, KeyBits: 256},

	"A128KW": {Scheme: SchemeAESKW, KeyBits: 128},
	"A192KW": {Scheme: SchemeAESKW, KeyBits: 192},
	"A256KW": {Scheme: SchemeAESKW, KeyBits: 256},
}

// Lookup resolves alg to its dispatch parameters (spec.md §4.5),
// returning an UnsupportedAlg error for anything not in the table.
func Lookup(alg hostctx.SignAlg) (AlgParams, error) {
	p, ok := algTable[alg]
	if !ok {
		return AlgParams{}, hostctx.New(hostctx.ErrUnsupportedAlg, "unsupported alg: %s", alg)
	}
	return p, nil
}

// MinRSAModulusBits is the minimum modulusLength spec.md §4.5 allows
// for RSA key generation; anything smaller is rejected.
const MinRSAModulusBits = 2048

// ValidateRSAModulusLength enforces spec.md §4.5's RSA generation floor.
func ValidateRSAModulusLength(bits int) error {
	if bits < MinRSAModulusBits {
		return hostctx.New(hostctx.ErrInvalidModulusLength, "rsa modulus length %d below minimum %d", bits, MinRSAModulusBits)
	}
	return nil
}
