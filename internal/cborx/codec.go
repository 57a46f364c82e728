// Package cborx is a thin, mdoc-specialised layer over
// github.com/fxamacker/cbor/v2 (the same CBOR dependency the teacher
// uses throughout mdoc/mdoc.go). It fixes a single deterministic
// encode mode and adds the DataItem[T] "bytes-wrapping-CBOR" wrapper
// that ISO/IEC 18013-5 relies on for bit-exact digest computation.
package cborx

import (
	"fmt"

	"github.com/fxamacker/cbor/v2"

	"github.com/kokukuma/mdoc-verifier/hostctx"
)

// encMode is deterministic per RFC 8949 §4.2.1 (shortest integer
// form, definite-length items, shortest float form) but, unlike the
// RFC's "core deterministic encoding", does NOT sort map keys: mdoc
// structures are defined with a fixed field order and re-sorting them
// would silently break the issuer's signature. This mirrors what the
// teacher already relies on implicitly by round-tripping
// cbor.RawMessage/cbor.Tag without ever asking the library to
// re-order anything.
var encMode = mustEncMode()

func mustEncMode() cbor.EncMode {
	opts := cbor.EncOptions{
		Sort:          cbor.SortNone,
		ShortestFloat: cbor.ShortestFloat16,
		IndefLength:   cbor.IndefLengthForbidden,
		TimeTag:       cbor.EncTagNone,
	}
	mode, err := opts.EncMode()
	if err != nil {
		panic(fmt.Sprintf("cborx: invalid encode options: %v", err))
	}
	return mode
}

// decMode rejects indefinite-length items and enforces the fixed
// nesting/array limits 18013-5 structures never exceed.
var decMode = mustDecMode()

func mustDecMode() cbor.DecMode {
	opts := cbor.DecOptions{
		IndefLength:   cbor.IndefLengthForbidden,
		DupMapKey:     cbor.DupMapKeyEnforcedAPF,
		MaxArrayElements: 1 << 20,
		MaxMapPairs:      1 << 20,
	}
	mode, err := opts.DecMode()
	if err != nil {
		panic(fmt.Sprintf("cborx: invalid decode options: %v", err))
	}
	return mode
}

// Marshal deterministically encodes v.
func Marshal(v interface{}) ([]byte, error) {
	b, err := encMode.Marshal(v)
	if err != nil {
		return nil, hostctx.Wrap(hostctx.ErrInvalidMajorType, err, "cbor encode failed")
	}
	return b, nil
}

// Unmarshal decodes data into v, classifying the common failure
// modes spec.md §4.1/§7 names.
func Unmarshal(data []byte, v interface{}) error {
	if len(data) == 0 {
		return hostctx.New(hostctx.ErrTruncatedInput, "empty input")
	}
	if err := decMode.Unmarshal(data, v); err != nil {
		return classifyDecodeError(err)
	}
	return nil
}

func classifyDecodeError(err error) error {
	msg := err.Error()
	switch {
	case containsAny(msg, "unexpected EOF", "EOF", "short"):
		return hostctx.Wrap(hostctx.ErrTruncatedInput, err, "truncated cbor input")
	case containsAny(msg, "indefinite"):
		return hostctx.Wrap(hostctx.ErrUnsupportedIndefiniteForm, err, "indefinite-length item not supported")
	case containsAny(msg, "major type", "invalid type"):
		return hostctx.Wrap(hostctx.ErrInvalidMajorType, err, "unexpected cbor major type")
	default:
		return hostctx.Wrap(hostctx.ErrInvalidMajorType, err, "cbor decode failed")
	}
}

func containsAny(s string, subs ...string) bool {
	for _, sub := range subs {
		if len(sub) > 0 && stringContains(s, sub) {
			return true
		}
	}
	return false
}

func stringContains(s, sub string) bool {
	for i := 0; i+len(sub) <= len(s); i++ {
		if s[i:i+len(sub)] == sub {
			return true
		}
	}
	return false
}

// RawMessage re-exports cbor.RawMessage: an undecoded slice of CBOR
// bytes held verbatim, exactly as the teacher's
// IssuerSignedItemBytes/DeviceNameSpacesBytes types use it.
type RawMessage = cbor.RawMessage

// Tag re-exports cbor.Tag for constructing tagged values (tag 24
// embedded CBOR, tag 1004 full-date) inline.
type Tag = cbor.Tag

const (
	// TagEmbeddedCBOR is RFC 8949's "encoded CBOR data item" tag,
	// used throughout mdoc for IssuerSignedItem/MSO/DeviceAuthentication
	// byte-string wrapping.
	TagEmbeddedCBOR uint64 = 24

	// TagFullDate is the full-date (no time-of-day) tag used for
	// birth_date/issue_date/expiry_date style elements.
	TagFullDate uint64 = 1004
)
