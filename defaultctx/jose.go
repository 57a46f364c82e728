package defaultctx

import (
	"context"
	"crypto/ecdsa"
	"fmt"

	"github.com/golang-jwt/jwt/v5"
	"github.com/lestrrat-go/jwx/v2/jwk"
	josev2 "gopkg.in/square/go-jose.v2"

	"github.com/kokukuma/mdoc-verifier/hostctx"
	"github.com/kokukuma/mdoc-verifier/internal/josekey"
)

// JoseContext is the default hostctx.JoseContext. JWE compact
// encrypt/decrypt is grounded on gopkg.in/square/go-jose.v2, the same
// library openid4vp/parser.go:ParseDirectPostJWT already uses to
// decrypt a direct_post.jwt response. JWT signing is grounded on
// openid4vp/jar.go's RequestObject.Sign, promoted from the archived
// github.com/dgrijalva/jwt-go to its maintained successor
// github.com/golang-jwt/jwt/v5 (same author lineage, near-identical
// API). ImportJWK is grounded on internal/josekey's use of
// github.com/lestrrat-go/jwx/v2/jwk.
type JoseContext struct{}

var _ hostctx.JoseContext = JoseContext{}

// EncryptCompact produces a 5-segment JWE compact serialization.
func (JoseContext) EncryptCompact(ctx context.Context, alg, enc string, key any, payload []byte) (string, error) {
	recipient := josev2.Recipient{
		Algorithm: josev2.KeyAlgorithm(alg),
		Key:       key,
	}
	encrypter, err := josev2.NewEncrypter(josev2.ContentEncryption(enc), recipient, nil)
	if err != nil {
		return "", hostctx.Wrap(hostctx.ErrUnsupportedAlg, err, "failed to build jwe encrypter for alg=%s enc=%s", alg, enc)
	}

	jwe, err := encrypter.Encrypt(payload)
	if err != nil {
		return "", hostctx.WrapCapability(err, "jwe encryption failed")
	}

	compact, err := jwe.CompactSerialize()
	if err != nil {
		return "", hostctx.WrapCapability(err, "failed to serialize jwe")
	}
	return compact, nil
}

// DecryptCompact parses and decrypts a JWE compact serialization.
// resolveKey is consulted with the JWE header's kid, falling back to
// an empty kid lookup when the header carries none.
func (JoseContext) DecryptCompact(ctx context.Context, jweCompact string, resolveKey func(kid string) (any, error)) ([]byte, error) {
	jwe, err := josev2.ParseEncrypted(jweCompact)
	if err != nil {
		return nil, hostctx.Wrap(hostctx.ErrNotSignedOrEncrypted, err, "failed to parse jwe compact serialization")
	}

	key, err := resolveKey(jwe.Header.KeyID)
	if err != nil {
		return nil, hostctx.WrapCapability(err, "failed to resolve decryption key for kid=%s", jwe.Header.KeyID)
	}

	plaintext, err := jwe.Decrypt(key)
	if err != nil {
		return nil, hostctx.Wrap(hostctx.ErrSignatureInvalid, err, "jwe decryption failed")
	}
	return plaintext, nil
}

// SignJWT signs claims as a 3-segment JWS compact serialization.
// Only SignAlg "ES256" is currently wired (the mdoc/JARM flows this
// module implements only ever need a reader's ECDSA signing key); any
// other alg returns ErrUnsupportedAlg.
func (JoseContext) SignJWT(ctx context.Context, alg hostctx.SignAlg, key any, claims map[string]any) (string, error) {
	if alg != "ES256" {
		return "", hostctx.New(hostctx.ErrUnsupportedAlg, "jwt signing alg not wired: %s", alg)
	}
	priv, ok := key.(*ecdsa.PrivateKey)
	if !ok {
		return "", hostctx.New(hostctx.ErrKeyTypeMismatch, "jwt signing key must be *ecdsa.PrivateKey, got %T", key)
	}

	token := jwt.NewWithClaims(jwt.SigningMethodES256, jwt.MapClaims(claims))
	token.Header["kid"] = fmt.Sprintf("%x", CalcKID(&priv.PublicKey))

	signed, err := token.SignedString(priv)
	if err != nil {
		return "", hostctx.WrapCapability(err, "jwt signing failed")
	}
	return signed, nil
}

// VerifyJWT parses and verifies a JWS compact serialization, returning
// its claims.
func (JoseContext) VerifyJWT(ctx context.Context, jws string, resolveKey func(kid string) (any, error)) (map[string]any, error) {
	var resolveErr error
	token, err := jwt.Parse(jws, func(t *jwt.Token) (any, error) {
		kid, _ := t.Header["kid"].(string)
		key, err := resolveKey(kid)
		if err != nil {
			resolveErr = err
			return nil, err
		}
		return key, nil
	})
	if resolveErr != nil {
		return nil, hostctx.WrapCapability(resolveErr, "failed to resolve verification key")
	}
	if err != nil {
		return nil, hostctx.Wrap(hostctx.ErrSignatureInvalid, err, "jwt verification failed")
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok || !token.Valid {
		return nil, hostctx.New(hostctx.ErrSignatureInvalid, "jwt is not valid")
	}
	return map[string]any(claims), nil
}

// ImportJWK parses a single JWK's raw JSON into its native Go key
// type (e.g. *ecdsa.PublicKey, ed25519.PublicKey).
func (JoseContext) ImportJWK(ctx context.Context, jwkBytes []byte) (any, error) {
	key, err := jwk.ParseKey(jwkBytes)
	if err != nil {
		return nil, hostctx.Wrap(hostctx.ErrInvalidPEM, err, "failed to parse jwk")
	}

	cosekey, err := josekey.FromJWK(key)
	if err != nil {
		return nil, err
	}
	switch cosekey.Kty {
	case josekey.KtyEC2:
		return cosekey.ToECDSAPublicKey()
	case josekey.KtyOKP:
		return cosekey.ToEd25519PublicKey()
	default:
		return nil, hostctx.New(hostctx.ErrKeyTypeMismatch, "unsupported jwk kty: %d", cosekey.Kty)
	}
}
