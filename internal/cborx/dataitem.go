package cborx

import (
	"fmt"
)

// DataItem is a value of logical type T whose on-wire form is CBOR
// tag 24 wrapping the byte string of T's deterministic CBOR encoding
// (spec.md §3). The invariant this type exists to uphold: the byte
// string is held verbatim, decoding re-parses it lazily, and encoding
// always emits the cached bytes rather than re-serialising the parsed
// value. This is what makes digest computation and re-encoding
// bit-exact, generalising the teacher's hand-written
// IssuerSignedItemBytes/DataItem<T> pairing (mdoc/mdoc.go) to any T.
type DataItem[T any] struct {
	bytes  []byte // deterministic CBOR encoding of the wrapped value
	cached *T
}

// FromValue computes v's deterministic encoding and caches both the
// bytes and the value.
func FromValue[T any](v T) (DataItem[T], error) {
	b, err := Marshal(v)
	if err != nil {
		return DataItem[T]{}, fmt.Errorf("dataitem: encode value: %w", err)
	}
	return DataItem[T]{bytes: b, cached: &v}, nil
}

// FromBytes stores raw deterministic-CBOR bytes without parsing them.
// The first call to Value parses and caches the result.
func FromBytes[T any](b []byte) DataItem[T] {
	cp := make([]byte, len(b))
	copy(cp, b)
	return DataItem[T]{bytes: cp}
}

// Bytes returns the held deterministic CBOR encoding, verbatim.
func (d DataItem[T]) Bytes() []byte {
	return d.bytes
}

// Value lazily parses the held bytes into T, caching the result.
func (d *DataItem[T]) Value() (T, error) {
	if d.cached != nil {
		return *d.cached, nil
	}
	var v T
	if err := Unmarshal(d.bytes, &v); err != nil {
		var zero T
		return zero, fmt.Errorf("dataitem: decode value: %w", err)
	}
	d.cached = &v
	return v, nil
}

// TaggedBytes returns the bytes of tag 24 wrapping the held
// deterministic encoding — the actual wire form embedded inside a
// parent structure (e.g. an IssuerNameSpaces array entry).
func (d DataItem[T]) TaggedBytes() ([]byte, error) {
	return Marshal(Tag{Number: TagEmbeddedCBOR, Content: d.bytes})
}

// MarshalCBOR implements cbor.Marshaler by emitting the tag-24-wrapped
// cached bytes, never re-serialising the parsed value.
func (d DataItem[T]) MarshalCBOR() ([]byte, error) {
	return d.TaggedBytes()
}

// UnmarshalCBOR implements cbor.Unmarshaler by unwrapping tag 24 (if
// present) and retaining the inner bytes verbatim without parsing.
func (d *DataItem[T]) UnmarshalCBOR(data []byte) error {
	var tag Tag
	if err := Unmarshal(data, &tag); err == nil && tag.Number == TagEmbeddedCBOR {
		if content, ok := tag.Content.([]byte); ok {
			d.bytes = content
			d.cached = nil
			return nil
		}
	}
	// Some producers (and at least one mobile OS simulator, per the
	// teacher's UntaggedSign1Message comment) omit the tag wrapper;
	// accept the raw bytes directly rather than failing closed.
	cp := make([]byte, len(data))
	copy(cp, data)
	d.bytes = cp
	d.cached = nil
	return nil
}
