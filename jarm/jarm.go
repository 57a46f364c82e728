// Package jarm implements the JWT-Secured Authorization Response Mode
// envelope (C9): detect whether an OpenID4VP authorization response is
// JWE-encrypted, JWS-signed, or both; decrypt/verify accordingly; and
// bind the extracted params back to the original authorization
// request. Grounded on openid4vp/parser.go's ParseDirectPostJWT (JWE
// detect + decrypt) and openid4vp/jar.go's JWT signing counterpart,
// generalized from one fixed shape into the full decrypt-then-verify
// state machine spec.md §4.8 names.
package jarm

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/kokukuma/mdoc-verifier/hostctx"
)

// ResponseType reports which envelope shape a response actually took.
type ResponseType string

const (
	TypeSigned          ResponseType = "signed"
	TypeEncrypted       ResponseType = "encrypted"
	TypeSignedEncrypted ResponseType = "signed encrypted"
)

// Result is what Envelope.Parse returns on success.
type Result struct {
	AuthRequestParams  map[string]any
	AuthResponseParams map[string]any
	Type               ResponseType
}

// Envelope is the JARM decrypt-then-verify state machine, delegating
// JWE/JWS mechanics to hostctx.JoseContext and state binding to
// hostctx.AuthRequestLookup.
type Envelope struct {
	jose   hostctx.JoseContext
	lookup hostctx.AuthRequestLookup
}

func New(jose hostctx.JoseContext, lookup hostctx.AuthRequestLookup) *Envelope {
	return &Envelope{jose: jose, lookup: lookup}
}

// Parse runs the state machine in spec.md §4.8: detect form by
// segment count (5 → JWE, 3 → JWS, otherwise reject), decrypt/verify
// as needed, then validate the extracted params against the original
// authorization request.
func (e *Envelope) Parse(
	ctx context.Context,
	response string,
	resolveDecryptKey func(kid string) (any, error),
	resolveVerifyKey func(kid string) (any, error),
) (*Result, error) {
	switch segmentCount(response) {
	case 5:
		plaintext, err := e.jose.DecryptCompact(ctx, response, resolveDecryptKey)
		if err != nil {
			return nil, err
		}
		if segmentCount(string(plaintext)) == 3 {
			claims, err := e.jose.VerifyJWT(ctx, string(plaintext), resolveVerifyKey)
			if err != nil {
				return nil, err
			}
			return e.validate(ctx, claims, TypeSignedEncrypted)
		}
		var claims map[string]any
		if err := json.Unmarshal(plaintext, &claims); err != nil {
			return nil, hostctx.Wrap(hostctx.ErrInvalidMajorType, err, "failed to parse decrypted jarm payload as json")
		}
		return e.validate(ctx, claims, TypeEncrypted)

	case 3:
		claims, err := e.jose.VerifyJWT(ctx, response, resolveVerifyKey)
		if err != nil {
			return nil, err
		}
		return e.validate(ctx, claims, TypeSigned)

	default:
		return nil, hostctx.New(hostctx.ErrNotSignedOrEncrypted, "jarm response is neither a jwe nor a jws compact serialization")
	}
}

// validate enforces spec.md §4.8's validate step: an error response
// raises ReceivedErrorResponse before any structural check; otherwise
// iss/aud/exp must be present (strict parse_params) and state must
// match the original authorization request.
func (e *Envelope) validate(ctx context.Context, claims map[string]any, typ ResponseType) (*Result, error) {
	if errVal, ok := claims["error"]; ok {
		return nil, hostctx.New(hostctx.ErrReceivedErrorResponse, "authorization response carries an error: %v (%v)", errVal, claims["error_description"])
	}

	for _, required := range [...]string{"iss", "aud", "exp"} {
		if _, ok := claims[required]; !ok {
			return nil, hostctx.New(hostctx.ErrMissingField, "jarm response missing required claim %q", required)
		}
	}

	reqParams, err := e.lookup.GetParams(ctx, claims)
	if err != nil {
		return nil, hostctx.WrapCapability(err, "failed to resolve original authorization request params")
	}

	reqState, _ := reqParams["state"].(string)
	respState, _ := claims["state"].(string)
	if reqState != respState {
		return nil, hostctx.New(hostctx.ErrStateMismatch, "authorization request state %q does not match response state %q", reqState, respState)
	}

	return &Result{
		AuthRequestParams:  reqParams,
		AuthResponseParams: claims,
		Type:               typ,
	}, nil
}

// segmentCount counts '.'-separated base64url segments, the shape
// spec.md §4.8 dispatches on (5 = JWE compact, 3 = JWS compact). A
// string holding any character outside the base64url alphabet and '.'
// (for example a JSON object) is not a compact serialization and
// yields 0.
func segmentCount(s string) int {
	for _, r := range s {
		switch {
		case r >= 'A' && r <= 'Z', r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '-', r == '_', r == '.':
		default:
			return 0
		}
	}
	return strings.Count(s, ".") + 1
}
