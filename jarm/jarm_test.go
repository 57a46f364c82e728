package jarm

import (
	"context"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"encoding/json"
	"testing"
	"time"

	"github.com/kokukuma/mdoc-verifier/defaultctx"
	"github.com/kokukuma/mdoc-verifier/hostctx"
)

// fakeLookup stands in for the relying party's stored authorization
// request, keyed by state (spec.md §4.8's openid4vp.authRequest.getParams).
type fakeLookup struct {
	params map[string]any
}

func (f fakeLookup) GetParams(ctx context.Context, responseParams map[string]any) (map[string]any, error) {
	return f.params, nil
}

func testClaims(state string) map[string]any {
	return map[string]any{
		"vp_token": "deadbeef",
		"state":    state,
		"iss":      "https://relying-party.example",
		"aud":      "https://client.example",
		"exp":      float64(time.Now().Add(time.Hour).Unix()),
	}
}

func TestParseSigned(t *testing.T) {
	ctx := context.Background()
	jose := defaultctx.JoseContext{}
	rpKey, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		t.Fatalf("GenerateKey: %v", err)
	}

	claims := testClaims("abc123")
	jws, err := jose.SignJWT(ctx, "ES256", rpKey, claims)
	if err != nil {
		t.Fatalf("SignJWT: %v", err)
	}

	env := New(jose, fakeLookup{params: map[string]any{"state": "abc123"}})
	result, err := env.Parse(ctx, jws, nil, func(kid string) (any, error) { return &rpKey.PublicKey, nil })
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if result.Type != TypeSigned {
		t.Errorf("Type = %s, want %s", result.Type, TypeSigned)
	}
	if result.AuthResponseParams["state"] != "abc123" {
		t.Errorf("state = %v, want abc123", result.AuthResponseParams["state"])
	}
}

func TestParseEncrypted(t *testing.T) {
	ctx := context.Background()
	jose := defaultctx.JoseContext{}
	readerKey, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		t.Fatalf("GenerateKey: %v", err)
	}

	claims := testClaims("enc-state")
	payload, err := json.Marshal(claims)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	jwe, err := jose.EncryptCompact(ctx, "ECDH-ES", "A128CBC-HS256", &readerKey.PublicKey, payload)
	if err != nil {
		t.Fatalf("EncryptCompact: %v", err)
	}

	env := New(jose, fakeLookup{params: map[string]any{"state": "enc-state"}})
	result, err := env.Parse(ctx, jwe, func(kid string) (any, error) { return readerKey, nil }, nil)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if result.Type != TypeEncrypted {
		t.Errorf("Type = %s, want %s", result.Type, TypeEncrypted)
	}
}

func TestParseSignedEncrypted(t *testing.T) {
	ctx := context.Background()
	jose := defaultctx.JoseContext{}
	rpKey, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		t.Fatalf("GenerateKey (rp): %v", err)
	}
	readerKey, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		t.Fatalf("GenerateKey (reader): %v", err)
	}

	claims := testClaims("both-state")
	jws, err := jose.SignJWT(ctx, "ES256", rpKey, claims)
	if err != nil {
		t.Fatalf("SignJWT: %v", err)
	}
	jwe, err := jose.EncryptCompact(ctx, "ECDH-ES", "A128CBC-HS256", &readerKey.PublicKey, []byte(jws))
	if err != nil {
		t.Fatalf("EncryptCompact: %v", err)
	}

	env := New(jose, fakeLookup{params: map[string]any{"state": "both-state"}})
	result, err := env.Parse(ctx, jwe,
		func(kid string) (any, error) { return readerKey, nil },
		func(kid string) (any, error) { return &rpKey.PublicKey, nil },
	)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if result.Type != TypeSignedEncrypted {
		t.Errorf("Type = %s, want %s", result.Type, TypeSignedEncrypted)
	}
}

func TestParseRejectsStateMismatch(t *testing.T) {
	ctx := context.Background()
	jose := defaultctx.JoseContext{}
	rpKey, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		t.Fatalf("GenerateKey: %v", err)
	}

	jws, err := jose.SignJWT(ctx, "ES256", rpKey, testClaims("actual-state"))
	if err != nil {
		t.Fatalf("SignJWT: %v", err)
	}

	env := New(jose, fakeLookup{params: map[string]any{"state": "expected-state"}})
	_, err = env.Parse(ctx, jws, nil, func(kid string) (any, error) { return &rpKey.PublicKey, nil })
	if !hostctx.Is(err, hostctx.ErrStateMismatch) {
		t.Fatalf("err = %v, want ErrStateMismatch", err)
	}
}

func TestParseRejectsErrorResponse(t *testing.T) {
	ctx := context.Background()
	jose := defaultctx.JoseContext{}
	rpKey, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		t.Fatalf("GenerateKey: %v", err)
	}

	claims := map[string]any{
		"error":             "access_denied",
		"error_description": "user declined",
		"state":             "abc123",
	}
	jws, err := jose.SignJWT(ctx, "ES256", rpKey, claims)
	if err != nil {
		t.Fatalf("SignJWT: %v", err)
	}

	env := New(jose, fakeLookup{params: map[string]any{"state": "abc123"}})
	_, err = env.Parse(ctx, jws, nil, func(kid string) (any, error) { return &rpKey.PublicKey, nil })
	if !hostctx.Is(err, hostctx.ErrReceivedErrorResponse) {
		t.Fatalf("err = %v, want ErrReceivedErrorResponse", err)
	}
}

func TestParseRejectsUnsignedUnencrypted(t *testing.T) {
	env := New(defaultctx.JoseContext{}, fakeLookup{})
	_, err := env.Parse(context.Background(), `{"state":"abc"}`, nil, nil)
	if !hostctx.Is(err, hostctx.ErrNotSignedOrEncrypted) {
		t.Fatalf("err = %v, want ErrNotSignedOrEncrypted", err)
	}
}
