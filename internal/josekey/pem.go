package josekey

import (
	"crypto"
	"crypto/ecdsa"
	"crypto/ed25519"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"

	"github.com/kokukuma/mdoc-verifier/hostctx"
)

// ImportPublicKeyPEM decodes a PEM block and parses its DER payload
// as an SPKI public key ("PUBLIC KEY") or an X.509 certificate
// ("CERTIFICATE"), whichever the block type indicates, returning the
// public key in both cases. Private key blocks are rejected here;
// ImportPrivateKeyPEM parses those.
//
// spec.md §4.5 describes a hand-rolled minimal ASN.1 walk for this
// (mirroring the TypeScript source this spec was distilled from,
// which has no X.509 library of its own). In Go, crypto/x509 *is*
// that minimal ASN.1 walk, already hardened against the malformed
// inputs a hand-rolled DER reader would mishandle, and it is exactly
// what the teacher already uses for this (mdoc/load_pem.go,
// pkg/pki/private_key.go, mdoc/mdoc.go's DocumentSigningCertificateChain).
// No third-party library in the retrieved pack does this job better
// than the standard library's own encoding/asn1-backed parser — this
// is the documented exception to "never fall back to stdlib": x509
// parsing is the standard library's actual job, and golang.org/x/crypto
// itself defers to it. The `raw[0] == 0xA0` version-tag heuristic the
// spec flags as an Open Question does not apply here: x509.ParseCertificate
// parses the version field structurally rather than by peeking at a
// byte offset, so certificates lacking an explicit [0] version tag
// (defaulting to v1) parse correctly either way.
func ImportPublicKeyPEM(pemBytes []byte) (crypto.PublicKey, error) {
	block, _ := pem.Decode(pemBytes)
	if block == nil {
		return nil, hostctx.New(hostctx.ErrInvalidPEM, "no PEM block found")
	}

	switch block.Type {
	case "CERTIFICATE":
		cert, err := x509.ParseCertificate(block.Bytes)
		if err != nil {
			return nil, hostctx.Wrap(hostctx.ErrInvalidPEM, err, "failed to parse certificate")
		}
		return cert.PublicKey, nil
	case "PUBLIC KEY":
		key, err := x509.ParsePKIXPublicKey(block.Bytes)
		if err != nil {
			return nil, hostctx.Wrap(hostctx.ErrInvalidPEM, err, "failed to parse spki public key")
		}
		return key, nil
	default:
		return nil, hostctx.New(hostctx.ErrInvalidPEM, "unsupported pem block type: %s", block.Type)
	}
}

// ImportPrivateKeyPEM decodes a PEM block holding a PKCS8 (or
// SEC1 "EC PRIVATE KEY", matching pkg/pki/private_key.go) private key.
func ImportPrivateKeyPEM(pemBytes []byte) (crypto.Signer, error) {
	block, _ := pem.Decode(pemBytes)
	if block == nil {
		return nil, hostctx.New(hostctx.ErrInvalidPEM, "no PEM block found")
	}

	switch block.Type {
	case "PRIVATE KEY":
		key, err := x509.ParsePKCS8PrivateKey(block.Bytes)
		if err != nil {
			return nil, hostctx.Wrap(hostctx.ErrInvalidPEM, err, "failed to parse pkcs8 private key")
		}
		signer, ok := key.(crypto.Signer)
		if !ok {
			return nil, hostctx.New(hostctx.ErrKeyTypeMismatch, "pkcs8 key is not a crypto.Signer: %T", key)
		}
		return signer, nil
	case "EC PRIVATE KEY":
		key, err := x509.ParseECPrivateKey(block.Bytes)
		if err != nil {
			return nil, hostctx.Wrap(hostctx.ErrInvalidPEM, err, "failed to parse ec private key")
		}
		return key, nil
	default:
		return nil, hostctx.New(hostctx.ErrInvalidPEM, "unsupported private key pem block type: %s", block.Type)
	}
}

// ExportPrivateKeyPEM marshals a private key to PKCS8 DER and wraps
// it in a PEM block. Unlike the TypeScript source's `toPKCS8`
// (spec.md §9's first Open Question, which passed `keyType: 'public'`
// to a PKCS8-from-*private*-key routine — almost certainly a bug in
// the original), this function only ever accepts a crypto.Signer, so
// that whole class of mix-up cannot occur here.
func ExportPrivateKeyPEM(key crypto.Signer) ([]byte, error) {
	der, err := x509.MarshalPKCS8PrivateKey(key)
	if err != nil {
		return nil, hostctx.Wrap(hostctx.ErrInvalidPEM, err, "failed to marshal pkcs8 private key")
	}
	return pem.EncodeToMemory(&pem.Block{Type: "PRIVATE KEY", Bytes: der}), nil
}

// PublicKeyAlgHint maps a parsed public key's Go type to a single
// signature scheme: ECDSA, EdDSA, or RSA-PSS for any RSA key (RSA
// PKCS#1 v1.5 is never returned). The import functions above do not
// call it.
func PublicKeyAlgHint(pub crypto.PublicKey) (Scheme, error) {
	switch pub.(type) {
	case *rsa.PublicKey:
		return SchemeRSAPSS, nil
	case *ecdsa.PublicKey:
		return SchemeECDSA, nil
	case ed25519.PublicKey:
		return SchemeEdDSA, nil
	default:
		return "", hostctx.New(hostctx.ErrKeyTypeMismatch, "unsupported public key type: %T", pub)
	}
}
