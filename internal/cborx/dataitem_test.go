package cborx

import (
	"bytes"
	"testing"
)

type sample struct {
	A int    `cbor:"1,keyasint"`
	B string `cbor:"2,keyasint"`
}

func TestDataItemRoundTrip(t *testing.T) {
	di, err := FromValue(sample{A: 7, B: "hello"})
	if err != nil {
		t.Fatalf("FromValue: %v", err)
	}

	tagged, err := di.TaggedBytes()
	if err != nil {
		t.Fatalf("TaggedBytes: %v", err)
	}

	var decoded DataItem[sample]
	if err := Unmarshal(tagged, &decoded); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}

	v, err := decoded.Value()
	if err != nil {
		t.Fatalf("Value: %v", err)
	}
	if v.A != 7 || v.B != "hello" {
		t.Fatalf("got %+v", v)
	}

	reEncoded, err := Marshal(decoded)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	if !bytes.Equal(reEncoded, tagged) {
		t.Fatalf("re-encoding is not byte-exact: got %x want %x", reEncoded, tagged)
	}
}

func TestDataItemFromBytesNeverReencodesPayload(t *testing.T) {
	inner, err := Marshal(sample{A: 1, B: "x"})
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}

	di := FromBytes[sample](inner)
	if !bytes.Equal(di.Bytes(), inner) {
		t.Fatalf("FromBytes must retain bytes verbatim")
	}

	tagged, err := di.TaggedBytes()
	if err != nil {
		t.Fatalf("TaggedBytes: %v", err)
	}
	want, err := Marshal(Tag{Number: TagEmbeddedCBOR, Content: inner})
	if err != nil {
		t.Fatalf("Marshal tag: %v", err)
	}
	if !bytes.Equal(tagged, want) {
		t.Fatalf("tagged bytes mismatch: got %x want %x", tagged, want)
	}
}

func TestUnmarshalTruncatedInput(t *testing.T) {
	var v sample
	err := Unmarshal(nil, &v)
	if err == nil {
		t.Fatal("expected error for empty input")
	}
}
