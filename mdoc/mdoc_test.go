package mdoc

import (
	"bytes"
	"context"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"testing"
	"time"

	"github.com/veraison/go-cose"

	"github.com/kokukuma/mdoc-verifier/defaultctx"
	"github.com/kokukuma/mdoc-verifier/internal/cborx"
	"github.com/kokukuma/mdoc-verifier/internal/cosex"
)

func mustGenerateP256(t *testing.T) (*ecdsa.PublicKey, *ecdsa.PrivateKey) {
	t.Helper()
	priv, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		t.Fatalf("GenerateKey: %v", err)
	}
	return &priv.PublicKey, priv
}

func TestIssuerSignedItemDigestRoundTrip(t *testing.T) {
	item := IssuerSignedItem{
		DigestID:          1,
		Random:            []byte("random-salt"),
		ElementIdentifier: "given_name",
		ElementValue:      "Erika",
	}
	di, err := cborx.FromValue(item)
	if err != nil {
		t.Fatalf("FromValue: %v", err)
	}

	crypto := defaultctx.CryptoContext{}
	d1, err := Digest(context.Background(), crypto, di, "SHA-256")
	if err != nil {
		t.Fatalf("Digest: %v", err)
	}
	d2, err := Digest(context.Background(), crypto, di, "SHA-256")
	if err != nil {
		t.Fatalf("Digest (again): %v", err)
	}
	if string(d1) != string(d2) {
		t.Fatal("digest of the same item bytes must be deterministic")
	}
	if len(d1) != 32 {
		t.Fatalf("expected a 32-byte sha256 digest, got %d", len(d1))
	}
}

func TestDeviceResponseGetDocumentNotFound(t *testing.T) {
	dr := DeviceResponse{Documents: []Document{{DocType: "org.iso.18013.5.1.mDL"}}}
	if _, err := dr.GetDocument("org.iso.18013.5.1.other"); err == nil {
		t.Fatal("expected an error for a missing docType")
	}
	doc, err := dr.GetDocument("org.iso.18013.5.1.mDL")
	if err != nil {
		t.Fatalf("GetDocument: %v", err)
	}
	if doc.DocType != "org.iso.18013.5.1.mDL" {
		t.Fatalf("unexpected doctype: %s", doc.DocType)
	}
}

func TestCOSEKeyECDSARoundTrip(t *testing.T) {
	pub, priv := mustGenerateP256(t)
	ck, err := FromECDSAPublicKey(pub)
	if err != nil {
		t.Fatalf("FromECDSAPublicKey: %v", err)
	}
	got, err := ck.ToECDSAPublicKey()
	if err != nil {
		t.Fatalf("ToECDSAPublicKey: %v", err)
	}
	if got.X.Cmp(pub.X) != 0 || got.Y.Cmp(pub.Y) != 0 {
		t.Fatal("round-tripped device key does not match original")
	}
	_ = priv
}

func TestDeviceAuthenticationBytesRequiresSessionTranscript(t *testing.T) {
	ds := DeviceSigned{}
	if _, err := ds.DeviceAuthenticationBytes("org.iso.18013.5.1.mDL", nil); err == nil {
		t.Fatal("expected an error for an empty session transcript")
	}
}

// buildDeviceResponseFixture assembles a full DeviceResponse (issuer-signed
// + device-signed, signature variant) the way verifier_test.go's
// buildSignedDocument does, inlined here to avoid an import cycle
// (verifier already imports mdoc).
func buildDeviceResponseFixture(t *testing.T) DeviceResponse {
	t.Helper()
	ctx := context.Background()
	crypto := defaultctx.CryptoContext{}
	const testDocType DocType = "org.iso.18013.5.1.mDL"
	const testNamespace NameSpace = "org.iso.18013.5.1"

	authority, err := defaultctx.NewTestIssuingAuthority()
	if err != nil {
		t.Fatalf("NewTestIssuingAuthority: %v", err)
	}

	devicePriv, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		t.Fatalf("GenerateKey (device): %v", err)
	}

	item := IssuerSignedItem{
		DigestID:          1,
		Random:            []byte("0123456789abcdef"),
		ElementIdentifier: "given_name",
		ElementValue:      "Erika",
	}
	di, err := cborx.FromValue(item)
	if err != nil {
		t.Fatalf("FromValue: %v", err)
	}
	digest, err := Digest(ctx, crypto, di, "SHA-256")
	if err != nil {
		t.Fatalf("Digest: %v", err)
	}

	deviceCOSEKey, err := FromECDSAPublicKey(&devicePriv.PublicKey)
	if err != nil {
		t.Fatalf("FromECDSAPublicKey: %v", err)
	}

	now := time.Now().UTC().Truncate(time.Second)
	mso := MobileSecurityObject{
		Version:         "1.0",
		DigestAlgorithm: "SHA-256",
		ValueDigests: ValueDigests{
			testNamespace: DigestIDs{1: DigestBytes(digest)},
		},
		DeviceKeyInfo: DeviceKeyInfo{DeviceKey: deviceCOSEKey},
		DocType:       testDocType,
		ValidityInfo: ValidityInfo{
			Signed:     now,
			ValidFrom:  now,
			ValidUntil: now.Add(24 * time.Hour),
		},
	}
	msoBytes, err := cborx.Marshal(mso)
	if err != nil {
		t.Fatalf("Marshal mso: %v", err)
	}
	taggedMSO, err := cborx.Marshal(cborx.Tag{Number: cborx.TagEmbeddedCBOR, Content: msoBytes})
	if err != nil {
		t.Fatalf("Marshal tagged mso: %v", err)
	}

	issuerAuth := cosex.NewSign1(cose.ProtectedHeader{}, cose.UnprotectedHeader{
		cosex.HeaderLabelX5Chain: [][]byte{authority.DocSignCert.Raw},
	}, taggedMSO)
	if err := issuerAuth.Sign(ctx, crypto, "ES256", authority.DocSignKey, nil); err != nil {
		t.Fatalf("issuerAuth.Sign: %v", err)
	}

	issuerSigned := IssuerSigned{
		NameSpaces: IssuerNameSpaces{
			testNamespace: {di},
		},
		IssuerAuth: *issuerAuth,
	}

	deviceNameSpaces, err := cborx.FromValue(DeviceNameSpaces{})
	if err != nil {
		t.Fatalf("FromValue device namespaces: %v", err)
	}
	deviceSigned := DeviceSigned{NameSpaces: deviceNameSpaces}

	sessionTranscript := []byte{0x80}
	deviceAuthBytes, err := deviceSigned.DeviceAuthenticationBytes(testDocType, sessionTranscript)
	if err != nil {
		t.Fatalf("DeviceAuthenticationBytes: %v", err)
	}

	deviceSig := cosex.NewSign1(cose.ProtectedHeader{}, cose.UnprotectedHeader{}, deviceAuthBytes)
	if err := deviceSig.Sign(ctx, crypto, "ES256", devicePriv, nil); err != nil {
		t.Fatalf("deviceSig.Sign: %v", err)
	}
	deviceSig.SetPayload(nil)
	deviceSigned.DeviceAuth = DeviceAuth{DeviceSignature: deviceSig}

	doc := Document{
		DocType:      testDocType,
		IssuerSigned: issuerSigned,
		DeviceSigned: deviceSigned,
	}
	return DeviceResponse{Version: "1.0", Documents: []Document{doc}, Status: 0}
}

// TestDeviceResponseCBORRoundTrip is the universal invariant the whole
// DataItem design exists to uphold (spec.md §3/§4.4/§8(#1)): encoding a
// decoded DeviceResponse must reproduce the original bytes exactly, not
// just a semantically-equivalent re-encoding, since digests and
// signatures are computed over the original issuer-authored bytes.
func TestDeviceResponseCBORRoundTrip(t *testing.T) {
	dr := buildDeviceResponseFixture(t)

	encoded, err := cborx.Marshal(dr)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}

	var decoded DeviceResponse
	if err := cborx.Unmarshal(encoded, &decoded); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}

	reencoded, err := cborx.Marshal(decoded)
	if err != nil {
		t.Fatalf("Marshal (again): %v", err)
	}

	if !bytes.Equal(encoded, reencoded) {
		t.Fatalf("round trip not byte-exact:\n  original: %x\n  re-encoded: %x", encoded, reencoded)
	}
}
