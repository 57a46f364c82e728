package builder

import (
	"context"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"testing"
	"time"

	"github.com/veraison/go-cose"

	"github.com/kokukuma/mdoc-verifier/defaultctx"
	"github.com/kokukuma/mdoc-verifier/document"
	"github.com/kokukuma/mdoc-verifier/internal/cborx"
	"github.com/kokukuma/mdoc-verifier/internal/cosex"
	"github.com/kokukuma/mdoc-verifier/mdoc"
)

const testDocType mdoc.DocType = "org.iso.18013.5.1.mDL"
const testNamespace mdoc.NameSpace = "org.iso.18013.5.1"

// buildFullIssuerSigned signs every element an issuer might disclose,
// so tests can exercise selective disclosure down to a subset.
func buildFullIssuerSigned(t *testing.T, crypto defaultctx.CryptoContext, authority *defaultctx.TestIssuingAuthority, devicePub *ecdsa.PublicKey) mdoc.IssuerSigned {
	t.Helper()
	return buildIssuerSignedWithElements(t, crypto, authority, devicePub, []mdoc.IssuerSignedItem{
		{DigestID: 1, Random: []byte("0123456789abcdef"), ElementIdentifier: "given_name", ElementValue: "Erika"},
		{DigestID: 2, Random: []byte("fedcba9876543210"), ElementIdentifier: "family_name", ElementValue: "Mustermann"},
	})
}

// buildIssuerSignedWithElements signs an arbitrary set of elements, so
// tests can exercise disclosure logic (like the age_over_NN fallback
// search) against fixtures buildFullIssuerSigned's fixed set can't.
func buildIssuerSignedWithElements(t *testing.T, crypto defaultctx.CryptoContext, authority *defaultctx.TestIssuingAuthority, devicePub *ecdsa.PublicKey, elements []mdoc.IssuerSignedItem) mdoc.IssuerSigned {
	t.Helper()
	ctx := context.Background()

	nameSpaces := mdoc.IssuerNameSpaces{}
	digests := mdoc.DigestIDs{}
	for _, el := range elements {
		di, err := cborx.FromValue(el)
		if err != nil {
			t.Fatalf("FromValue: %v", err)
		}
		digest, err := mdoc.Digest(ctx, crypto, di, "SHA-256")
		if err != nil {
			t.Fatalf("Digest: %v", err)
		}
		nameSpaces[testNamespace] = append(nameSpaces[testNamespace], di)
		digests[el.DigestID] = mdoc.DigestBytes(digest)
	}

	deviceCOSEKey, err := mdoc.FromECDSAPublicKey(devicePub)
	if err != nil {
		t.Fatalf("FromECDSAPublicKey: %v", err)
	}

	now := time.Now().UTC().Truncate(time.Second)
	mso := mdoc.MobileSecurityObject{
		Version:         "1.0",
		DigestAlgorithm: "SHA-256",
		ValueDigests:    mdoc.ValueDigests{testNamespace: digests},
		DeviceKeyInfo:   mdoc.DeviceKeyInfo{DeviceKey: deviceCOSEKey},
		DocType:         testDocType,
		ValidityInfo: mdoc.ValidityInfo{
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

	return mdoc.IssuerSigned{NameSpaces: nameSpaces, IssuerAuth: *issuerAuth}
}

func testPresentationDefinition() document.PresentationDefinition {
	return document.PresentationDefinition{
		ID: "test-pd",
		InputDescriptors: []document.InputDescriptor{
			{
				ID: string(testDocType),
				Constraints: document.Constraints{
					Fields: []document.PathField{
						{Path: []string{"$['org.iso.18013.5.1']['given_name']"}},
					},
				},
			},
		},
	}
}

func TestBuildDocumentSignatureVariant(t *testing.T) {
	ctx := context.Background()
	crypto := defaultctx.CryptoContext{}

	authority, err := defaultctx.NewTestIssuingAuthority()
	if err != nil {
		t.Fatalf("NewTestIssuingAuthority: %v", err)
	}
	devicePriv, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		t.Fatalf("GenerateKey: %v", err)
	}

	fullIssuerSigned := buildFullIssuerSigned(t, crypto, authority, &devicePriv.PublicKey)
	pd := testPresentationDefinition()
	sessionTranscript := []byte{0x80}

	b := New(crypto)
	doc, err := b.BuildDocument(ctx, testDocType, fullIssuerSigned, nil, pd, sessionTranscript,
		SignatureAuthenticator{Alg: "ES256", Key: devicePriv})
	if err != nil {
		t.Fatalf("BuildDocument: %v", err)
	}

	items, err := doc.IssuerSigned.GetIssuerSignedItems(testNamespace)
	if err != nil {
		t.Fatalf("GetIssuerSignedItems: %v", err)
	}
	if len(items) != 1 {
		t.Fatalf("expected exactly 1 disclosed element, got %d", len(items))
	}
	if items[0].ElementIdentifier != "given_name" {
		t.Errorf("disclosed element = %s, want given_name", items[0].ElementIdentifier)
	}

	if doc.DeviceSigned.DeviceAuth.DeviceSignature == nil {
		t.Fatal("expected a device signature")
	}
	if doc.DeviceSigned.DeviceAuth.DeviceMac != nil {
		t.Fatal("did not expect a device mac")
	}
}

func TestBuildDocumentMACVariant(t *testing.T) {
	ctx := context.Background()
	crypto := defaultctx.CryptoContext{}

	authority, err := defaultctx.NewTestIssuingAuthority()
	if err != nil {
		t.Fatalf("NewTestIssuingAuthority: %v", err)
	}
	devicePriv, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		t.Fatalf("GenerateKey (device): %v", err)
	}
	readerPriv, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		t.Fatalf("GenerateKey (reader): %v", err)
	}

	fullIssuerSigned := buildFullIssuerSigned(t, crypto, authority, &devicePriv.PublicKey)
	pd := testPresentationDefinition()
	sessionTranscript := []byte{0x80}

	deviceECDHPriv, err := devicePriv.ECDH()
	if err != nil {
		t.Fatalf("devicePriv.ECDH: %v", err)
	}
	readerECDHPub, err := readerPriv.PublicKey.ECDH()
	if err != nil {
		t.Fatalf("readerPriv.PublicKey.ECDH: %v", err)
	}

	b := New(crypto)
	doc, err := b.BuildDocument(ctx, testDocType, fullIssuerSigned, nil, pd, sessionTranscript,
		MACAuthenticator{
			DevicePrivateKey:  deviceECDHPriv,
			ReaderPublicKey:   readerECDHPub,
			SessionTranscript: sessionTranscript,
		})
	if err != nil {
		t.Fatalf("BuildDocument: %v", err)
	}
	if doc.DeviceSigned.DeviceAuth.DeviceMac == nil {
		t.Fatal("expected a device mac")
	}
	alg, err := doc.DeviceSigned.DeviceAuth.DeviceMac.Algorithm()
	if err != nil {
		t.Fatalf("Algorithm: %v", err)
	}
	if alg != cosex.AlgorithmHMAC256 {
		t.Errorf("mac alg = %d, want %d", alg, cosex.AlgorithmHMAC256)
	}
}

func TestBuildDocumentRejectsMissingElement(t *testing.T) {
	ctx := context.Background()
	crypto := defaultctx.CryptoContext{}

	authority, err := defaultctx.NewTestIssuingAuthority()
	if err != nil {
		t.Fatalf("NewTestIssuingAuthority: %v", err)
	}
	devicePriv, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		t.Fatalf("GenerateKey: %v", err)
	}

	fullIssuerSigned := buildFullIssuerSigned(t, crypto, authority, &devicePriv.PublicKey)
	pd := document.PresentationDefinition{
		InputDescriptors: []document.InputDescriptor{
			{
				ID: string(testDocType),
				Constraints: document.Constraints{
					Fields: []document.PathField{
						{Path: []string{"$['org.iso.18013.5.1']['nonexistent_field']"}},
					},
				},
			},
		},
	}

	b := New(crypto)
	_, err = b.BuildDocument(ctx, testDocType, fullIssuerSigned, nil, pd, []byte{0x80},
		SignatureAuthenticator{Alg: "ES256", Key: devicePriv})
	if err == nil {
		t.Fatal("expected an error for a requested element the issuer never signed")
	}
}

func TestRequestedElementsRejectsEmptyPresentationDefinition(t *testing.T) {
	_, err := RequestedElements(document.PresentationDefinition{})
	if err == nil {
		t.Fatal("expected an error for an empty presentation definition")
	}
}

func TestRequestedElementsRejectsDuplicateDescriptorID(t *testing.T) {
	pd := document.PresentationDefinition{
		InputDescriptors: []document.InputDescriptor{
			{ID: "dup"},
			{ID: "dup"},
		},
	}
	_, err := RequestedElements(pd)
	if err == nil {
		t.Fatal("expected an error for a duplicate input descriptor id")
	}
}

// pdRequesting builds a single-field presentation definition, the
// shape the age_over_NN fallback tests need repeatedly.
func pdRequesting(elementIdentifier string) document.PresentationDefinition {
	return document.PresentationDefinition{
		InputDescriptors: []document.InputDescriptor{
			{
				ID: string(testDocType),
				Constraints: document.Constraints{
					Fields: []document.PathField{
						{Path: []string{"$['org.iso.18013.5.1']['" + elementIdentifier + "']"}},
					},
				},
			},
		},
	}
}

func TestSelectDisclosuresAgeOverFallback(t *testing.T) {
	crypto := defaultctx.CryptoContext{}

	authority, err := defaultctx.NewTestIssuingAuthority()
	if err != nil {
		t.Fatalf("NewTestIssuingAuthority: %v", err)
	}
	devicePriv, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		t.Fatalf("GenerateKey: %v", err)
	}

	tests := []struct {
		name      string
		elements  []mdoc.IssuerSignedItem
		requestNN string
		wantFound bool
		wantID    mdoc.ElementIdentifier
		wantValue any
	}{
		{
			name: "smallest true at or above NN wins",
			elements: []mdoc.IssuerSignedItem{
				{DigestID: 1, Random: []byte("0000000000000000"), ElementIdentifier: "age_over_18", ElementValue: true},
				{DigestID: 2, Random: []byte("1111111111111111"), ElementIdentifier: "age_over_25", ElementValue: true},
			},
			requestNN: "age_over_21",
			wantFound: true,
			wantID:    "age_over_25",
			wantValue: true,
		},
		{
			name: "falls back to largest false at or below NN when no true candidate qualifies",
			elements: []mdoc.IssuerSignedItem{
				{DigestID: 1, Random: []byte("2222222222222222"), ElementIdentifier: "age_over_16", ElementValue: false},
				{DigestID: 2, Random: []byte("3333333333333333"), ElementIdentifier: "age_over_18", ElementValue: false},
			},
			requestNN: "age_over_21",
			wantFound: true,
			wantID:    "age_over_18",
			wantValue: false,
		},
		{
			name: "omits the field when neither rule matches",
			elements: []mdoc.IssuerSignedItem{
				{DigestID: 1, Random: []byte("4444444444444444"), ElementIdentifier: "age_over_25", ElementValue: false},
			},
			requestNN: "age_over_21",
			wantFound: false,
		},
		{
			name: "exact match short-circuits the fallback search",
			elements: []mdoc.IssuerSignedItem{
				{DigestID: 1, Random: []byte("5555555555555555"), ElementIdentifier: "age_over_21", ElementValue: false},
				{DigestID: 2, Random: []byte("6666666666666666"), ElementIdentifier: "age_over_30", ElementValue: true},
			},
			requestNN: "age_over_21",
			wantFound: true,
			wantID:    "age_over_21",
			wantValue: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			issuerSigned := buildIssuerSignedWithElements(t, crypto, authority, &devicePriv.PublicKey, tt.elements)
			pd := pdRequesting(tt.requestNN)

			selected, err := SelectDisclosures(issuerSigned.NameSpaces, testDocType, pd)
			if err != nil {
				t.Fatalf("SelectDisclosures: %v", err)
			}

			items := selected[testNamespace]
			if !tt.wantFound {
				if len(items) != 0 {
					t.Fatalf("expected the field to be omitted, got %d disclosed items", len(items))
				}
				return
			}

			if len(items) != 1 {
				t.Fatalf("expected exactly 1 disclosed element, got %d", len(items))
			}
			item, err := items[0].Value()
			if err != nil {
				t.Fatalf("Value: %v", err)
			}
			if item.ElementIdentifier != tt.wantID {
				t.Errorf("disclosed element = %s, want %s", item.ElementIdentifier, tt.wantID)
			}
			if item.ElementValue != tt.wantValue {
				t.Errorf("disclosed value = %v, want %v", item.ElementValue, tt.wantValue)
			}
		})
	}
}
