package hostctx

import (
	"context"
	"crypto/x509"
)

// DigestAlg names a digest algorithm, e.g. "SHA-256", "SHA-384", "SHA-512".
type DigestAlg string

// SignAlg names a signing/MAC algorithm by its JOSE/COSE label, e.g.
// "ES256", "EdDSA", "PS256", "HS256".
type SignAlg string

// CryptoContext is the only source of cryptographic primitives the
// core reaches for. Implementations may route calls through blocking
// or cooperative tasks; the contract is simply that the call returns
// when the result is ready (spec.md §5).
type CryptoContext interface {
	Digest(ctx context.Context, alg DigestAlg, data []byte) ([]byte, error)

	Sign(ctx context.Context, alg SignAlg, key any, data []byte) ([]byte, error)
	Verify(ctx context.Context, alg SignAlg, key any, data, sig []byte) (bool, error)

	// CalculateEphemeralMacKey derives the 32-byte HMAC key used for
	// device MAC authentication: ECDH(devicePriv, readerPub) fed
	// through HKDF-SHA-256 with salt = SHA-256(sessionTranscriptBytes)
	// and info = "EMacKey" (spec.md §4.6/§6).
	CalculateEphemeralMacKey(ctx context.Context, devicePrivate, readerPublic any, sessionTranscriptBytes []byte) ([]byte, error)

	GetRandomValues(ctx context.Context, n int) ([]byte, error)
}

// X509Context is the certificate-chain capability the Verifier (C8)
// delegates to; the core never implements chain-building or
// revocation logic itself (spec.md §1, §6).
type X509Context interface {
	ValidateCertificateChain(ctx context.Context, certificates []*x509.Certificate, trustAnchors *x509.CertPool) error
	GetPublicKey(ctx context.Context, cert *x509.Certificate, alg SignAlg) (any, error)
	GetIssuerName(ctx context.Context, cert *x509.Certificate) (string, error)
	GetCertificateData(ctx context.Context, cert *x509.Certificate) (map[string]string, error)
	GetCertificateValidityData(ctx context.Context, cert *x509.Certificate) (notBefore, notAfter string, err error)
}

// JoseContext is the JWE/JWS capability the JARM envelope (C9)
// delegates to.
type JoseContext interface {
	EncryptCompact(ctx context.Context, alg, enc string, key any, payload []byte) (string, error)
	DecryptCompact(ctx context.Context, jwe string, resolveKey func(kid string) (any, error)) ([]byte, error)
	SignJWT(ctx context.Context, alg SignAlg, key any, claims map[string]any) (string, error)
	VerifyJWT(ctx context.Context, jws string, resolveKey func(kid string) (any, error)) (map[string]any, error)
	ImportJWK(ctx context.Context, jwk []byte) (any, error)
}

// AuthRequestLookup is the OpenID4VP collaborator (spec.md §6) used by
// the JARM envelope to re-fetch the original authorization request
// parameters keyed by the response's state.
type AuthRequestLookup interface {
	GetParams(ctx context.Context, responseParams map[string]any) (map[string]any, error)
}
