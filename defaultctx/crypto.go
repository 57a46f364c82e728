package defaultctx

import (
	"context"
	"crypto"
	"crypto/ecdh"
	"crypto/ecdsa"
	"crypto/ed25519"
	"crypto/hmac"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"crypto/sha512"
	"hash"
	"io"

	"golang.org/x/crypto/hkdf"

	"github.com/kokukuma/mdoc-verifier/hostctx"
	"github.com/kokukuma/mdoc-verifier/internal/josekey"
)

// CryptoContext is the default hostctx.CryptoContext, dispatching
// through the algorithm table in internal/josekey and doing the
// actual math with crypto/ecdsa, crypto/ed25519, crypto/rsa and
// crypto/hmac. Digest dispatch covers SHA-256/384/512, unlike the
// teacher's pkg/hash.Digest (SHA-384 commented out there); ephemeral
// MAC key derivation is grounded on pkg/pki/private_key.go's use of
// crypto/ecdh.
type CryptoContext struct{}

var _ hostctx.CryptoContext = CryptoContext{}

// Digest hashes data with the named digest algorithm.
func (CryptoContext) Digest(ctx context.Context, alg hostctx.DigestAlg, data []byte) ([]byte, error) {
	h, err := newHasher(alg)
	if err != nil {
		return nil, err
	}
	h.Write(data)
	return h.Sum(nil), nil
}

func newHasher(alg hostctx.DigestAlg) (hash.Hash, error) {
	switch alg {
	case "SHA-256":
		return sha256.New(), nil
	case "SHA-384":
		return sha512.New384(), nil
	case "SHA-512":
		return sha512.New(), nil
	default:
		return nil, hostctx.New(hostctx.ErrUnsupportedAlg, "unsupported digest algorithm: %s", alg)
	}
}

// Sign dispatches to the signer matching alg. For HMAC algs, key must
// be a []byte secret; for ECDSA/EdDSA/RSA algs, key must be the
// matching crypto.Signer-backed private key.
func (CryptoContext) Sign(ctx context.Context, alg hostctx.SignAlg, key any, data []byte) ([]byte, error) {
	params, err := josekey.Lookup(alg)
	if err != nil {
		return nil, err
	}

	switch params.Scheme {
	case josekey.SchemeHMAC:
		secret, ok := key.([]byte)
		if !ok {
			return nil, hostctx.New(hostctx.ErrKeyTypeMismatch, "hmac key must be []byte, got %T", key)
		}
		mac := hmac.New(hashFor(params.Hash), secret)
		mac.Write(data)
		return mac.Sum(nil), nil

	case josekey.SchemeECDSA:
		priv, ok := key.(*ecdsa.PrivateKey)
		if !ok {
			return nil, hostctx.New(hostctx.ErrKeyTypeMismatch, "ecdsa key must be *ecdsa.PrivateKey, got %T", key)
		}
		digest := sumHash(params.Hash, data)
		return ecdsa.SignASN1(rand.Reader, priv, digest)

	case josekey.SchemeEdDSA:
		priv, ok := key.(ed25519.PrivateKey)
		if !ok {
			return nil, hostctx.New(hostctx.ErrKeyTypeMismatch, "eddsa key must be ed25519.PrivateKey, got %T", key)
		}
		return ed25519.Sign(priv, data), nil

	case josekey.SchemeRSAPSS:
		priv, ok := key.(*rsa.PrivateKey)
		if !ok {
			return nil, hostctx.New(hostctx.ErrKeyTypeMismatch, "rsa key must be *rsa.PrivateKey, got %T", key)
		}
		if err := josekey.ValidateRSAModulusLength(priv.N.BitLen()); err != nil {
			return nil, err
		}
		digest := sumHash(params.Hash, data)
		return rsa.SignPSS(rand.Reader, priv, params.Hash, digest, nil)

	case josekey.SchemeRSAPKCS1:
		priv, ok := key.(*rsa.PrivateKey)
		if !ok {
			return nil, hostctx.New(hostctx.ErrKeyTypeMismatch, "rsa key must be *rsa.PrivateKey, got %T", key)
		}
		if err := josekey.ValidateRSAModulusLength(priv.N.BitLen()); err != nil {
			return nil, err
		}
		digest := sumHash(params.Hash, data)
		return rsa.SignPKCS1v15(rand.Reader, priv, params.Hash, digest)

	default:
		return nil, hostctx.New(hostctx.ErrUnsupportedAlg, "alg %s is not a signing scheme", alg)
	}
}

// Verify dispatches the same way as Sign, returning false (not an
// error) on a mismatched signature.
func (CryptoContext) Verify(ctx context.Context, alg hostctx.SignAlg, key any, data, sig []byte) (bool, error) {
	params, err := josekey.Lookup(alg)
	if err != nil {
		return false, err
	}

	switch params.Scheme {
	case josekey.SchemeHMAC:
		secret, ok := key.([]byte)
		if !ok {
			return false, hostctx.New(hostctx.ErrKeyTypeMismatch, "hmac key must be []byte, got %T", key)
		}
		mac := hmac.New(hashFor(params.Hash), secret)
		mac.Write(data)
		return hmac.Equal(mac.Sum(nil), sig), nil

	case josekey.SchemeECDSA:
		pub, ok := key.(*ecdsa.PublicKey)
		if !ok {
			return false, hostctx.New(hostctx.ErrKeyTypeMismatch, "ecdsa key must be *ecdsa.PublicKey, got %T", key)
		}
		digest := sumHash(params.Hash, data)
		return ecdsa.VerifyASN1(pub, digest, sig), nil

	case josekey.SchemeEdDSA:
		pub, ok := key.(ed25519.PublicKey)
		if !ok {
			return false, hostctx.New(hostctx.ErrKeyTypeMismatch, "eddsa key must be ed25519.PublicKey, got %T", key)
		}
		return ed25519.Verify(pub, data, sig), nil

	case josekey.SchemeRSAPSS:
		pub, ok := key.(*rsa.PublicKey)
		if !ok {
			return false, hostctx.New(hostctx.ErrKeyTypeMismatch, "rsa key must be *rsa.PublicKey, got %T", key)
		}
		digest := sumHash(params.Hash, data)
		return rsa.VerifyPSS(pub, params.Hash, digest, sig, nil) == nil, nil

	case josekey.SchemeRSAPKCS1:
		pub, ok := key.(*rsa.PublicKey)
		if !ok {
			return false, hostctx.New(hostctx.ErrKeyTypeMismatch, "rsa key must be *rsa.PublicKey, got %T", key)
		}
		digest := sumHash(params.Hash, data)
		return rsa.VerifyPKCS1v15(pub, params.Hash, digest, sig) == nil, nil

	default:
		return false, hostctx.New(hostctx.ErrUnsupportedAlg, "alg %s is not a signing scheme", alg)
	}
}

// CalculateEphemeralMacKey derives the 32-byte HMAC key for device MAC
// authentication: ECDH(devicePrivate, readerPublic) fed through
// HKDF-SHA-256 with salt = SHA-256(sessionTranscriptBytes) and info =
// "EMacKey" (spec.md §4.6). ECDH itself is grounded on
// pkg/pki/private_key.go, which already loads device keys as
// crypto/ecdh private keys for exactly this purpose.
func (c CryptoContext) CalculateEphemeralMacKey(ctx context.Context, devicePrivate, readerPublic any, sessionTranscriptBytes []byte) ([]byte, error) {
	priv, ok := devicePrivate.(*ecdh.PrivateKey)
	if !ok {
		return nil, hostctx.New(hostctx.ErrKeyTypeMismatch, "device private key must be *ecdh.PrivateKey, got %T", devicePrivate)
	}
	pub, ok := readerPublic.(*ecdh.PublicKey)
	if !ok {
		return nil, hostctx.New(hostctx.ErrKeyTypeMismatch, "reader public key must be *ecdh.PublicKey, got %T", readerPublic)
	}

	shared, err := priv.ECDH(pub)
	if err != nil {
		return nil, hostctx.WrapCapability(err, "ecdh key agreement failed")
	}

	salt, err := c.Digest(ctx, "SHA-256", sessionTranscriptBytes)
	if err != nil {
		return nil, err
	}

	reader := hkdf.New(sha256.New, shared, salt, []byte("EMacKey"))
	key := make([]byte, 32)
	if _, err := io.ReadFull(reader, key); err != nil {
		return nil, hostctx.WrapCapability(err, "hkdf expansion failed")
	}
	return key, nil
}

// GetRandomValues returns n cryptographically random bytes.
func (CryptoContext) GetRandomValues(ctx context.Context, n int) ([]byte, error) {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		return nil, hostctx.WrapCapability(err, "failed to read random bytes")
	}
	return b, nil
}

func hashFor(h crypto.Hash) func() hash.Hash {
	return h.New
}

func sumHash(h crypto.Hash, data []byte) []byte {
	hasher := h.New()
	hasher.Write(data)
	return hasher.Sum(nil)
}
