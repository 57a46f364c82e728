// Command mdoctool demonstrates the full issuance → presentation →
// verification → JARM wrapping flow this module implements, entirely
// in-process. It replaces the teacher's HTTP demo server
// (cmd/server), which is out of scope here (spec.md §1 excludes
// transport); this keeps the same log.Println/log.Fatal reporting
// style the teacher's cmd/ packages use.
package main

import (
	"context"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"flag"
	"log"
	"time"

	"github.com/kokukuma/mdoc-verifier/builder"
	"github.com/kokukuma/mdoc-verifier/defaultctx"
	"github.com/kokukuma/mdoc-verifier/document"
	"github.com/kokukuma/mdoc-verifier/hostctx"
	"github.com/kokukuma/mdoc-verifier/internal/cborx"
	"github.com/kokukuma/mdoc-verifier/internal/cosex"
	"github.com/kokukuma/mdoc-verifier/jarm"
	"github.com/kokukuma/mdoc-verifier/mdoc"
	"github.com/kokukuma/mdoc-verifier/pkg/pki"
	"github.com/kokukuma/mdoc-verifier/verifier"

	"github.com/google/uuid"
	"github.com/veraison/go-cose"
)

const docType mdoc.DocType = "org.iso.18013.5.1.mDL"
const namespace mdoc.NameSpace = "org.iso.18013.5.1"

func main() {
	readerKeyPath := flag.String("reader-key", "", "PEM file holding an EC reader private key; when set, the demo uses MAC device authentication (ECDH with this key) instead of signature authentication")
	flag.Parse()

	ctx := context.Background()
	crypto := defaultctx.CryptoContext{}

	authority, err := defaultctx.NewTestIssuingAuthority()
	if err != nil {
		log.Fatalf("issuing authority: %v", err)
	}
	log.Println("issued document signing certificate:", authority.DocSignCert.Subject)

	devicePriv, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		log.Fatalf("generate device key: %v", err)
	}

	issuerSigned, err := issue(ctx, crypto, authority, &devicePriv.PublicKey)
	if err != nil {
		log.Fatalf("issue: %v", err)
	}
	log.Println("issuer signed", len(issuerSigned.NameSpaces[namespace]), "elements")

	pd := document.PresentationDefinition{
		ID: "mdl-age-check",
		InputDescriptors: []document.InputDescriptor{
			{
				ID: string(docType),
				Constraints: document.Constraints{
					Fields: []document.PathField{
						{Path: []string{"$['org.iso.18013.5.1']['given_name']"}},
					},
				},
			},
		},
	}
	sessionTranscript := []byte{0x80}

	auth, err := deviceAuthenticator(devicePriv, sessionTranscript, *readerKeyPath)
	if err != nil {
		log.Fatalf("device authenticator: %v", err)
	}

	b := builder.New(crypto)
	doc, err := b.BuildDocument(ctx, docType, issuerSigned, nil, pd, sessionTranscript, auth)
	if err != nil {
		log.Fatalf("build device response: %v", err)
	}
	log.Println("device disclosed", len(doc.IssuerSigned.NameSpaces[namespace]), "of the issued elements")

	var verifierOpts []verifier.Option
	if *readerKeyPath != "" {
		readerPriv, err := pki.LoadPrivateKey(*readerKeyPath)
		if err != nil {
			log.Fatalf("load reader key: %v", err)
		}
		verifierOpts = append(verifierOpts, verifier.ReaderEphemeralKey(readerPriv))
	}
	v := verifier.New(crypto, defaultctx.X509Context{}, authority.TrustAnchors(), verifierOpts...)
	dr := mdoc.DeviceResponse{Version: "1.0", Documents: []mdoc.Document{doc}, Status: 0}

	var failed int
	err = v.VerifyDeviceResponse(ctx, dr, sessionTranscript, func(a verifier.Assessment) {
		status := "PASS"
		if a.Status == verifier.StatusFailed {
			status = "FAIL"
			failed++
		}
		log.Printf("[%s] %s/%s: %s", status, a.Category, a.Check, a.Reason)
	})
	if err != nil {
		log.Fatalf("verify: %v", err)
	}
	if failed > 0 {
		log.Fatalf("%d check(s) failed", failed)
	}
	log.Println("device response verified")

	if err := demoJARM(ctx, crypto); err != nil {
		log.Fatalf("jarm demo: %v", err)
	}
}

// deviceAuthenticator picks the device-authentication variant to
// demonstrate. With no --reader-key flag it signs with the device key
// directly; given a PEM path it loads a reader private key via
// pkg/pki.LoadPrivateKey and runs the MAC variant instead, deriving the
// reader's ECDH public share to hand to the builder.
func deviceAuthenticator(devicePriv *ecdsa.PrivateKey, sessionTranscript []byte, readerKeyPath string) (builder.DeviceAuthenticator, error) {
	if readerKeyPath == "" {
		return builder.SignatureAuthenticator{Alg: "ES256", Key: devicePriv}, nil
	}

	readerPriv, err := pki.LoadPrivateKey(readerKeyPath)
	if err != nil {
		return nil, err
	}
	devicePrivECDH, err := devicePriv.ECDH()
	if err != nil {
		return nil, err
	}
	return builder.MACAuthenticator{
		DevicePrivateKey:  devicePrivECDH,
		ReaderPublicKey:   readerPriv.PublicKey(),
		SessionTranscript: sessionTranscript,
	}, nil
}

// issue signs a small MSO covering three disclosable elements, the way
// a driving licence authority's back end would.
func issue(ctx context.Context, crypto hostctx.CryptoContext, authority *defaultctx.TestIssuingAuthority, devicePub *ecdsa.PublicKey) (mdoc.IssuerSigned, error) {
	elements := []mdoc.IssuerSignedItem{
		{DigestID: 1, Random: randomBytes(16), ElementIdentifier: "given_name", ElementValue: "Erika"},
		{DigestID: 2, Random: randomBytes(16), ElementIdentifier: "family_name", ElementValue: "Mustermann"},
		{DigestID: 3, Random: randomBytes(16), ElementIdentifier: "age_over_21", ElementValue: true},
	}

	nameSpaces := mdoc.IssuerNameSpaces{}
	digests := mdoc.DigestIDs{}
	for _, el := range elements {
		di, err := cborx.FromValue(el)
		if err != nil {
			return mdoc.IssuerSigned{}, err
		}
		digest, err := mdoc.Digest(ctx, crypto, di, "SHA-256")
		if err != nil {
			return mdoc.IssuerSigned{}, err
		}
		nameSpaces[namespace] = append(nameSpaces[namespace], di)
		digests[el.DigestID] = mdoc.DigestBytes(digest)
	}

	deviceCOSEKey, err := mdoc.FromECDSAPublicKey(devicePub)
	if err != nil {
		return mdoc.IssuerSigned{}, err
	}

	now := time.Now().UTC().Truncate(time.Second)
	mso := mdoc.MobileSecurityObject{
		Version:         "1.0",
		DigestAlgorithm: "SHA-256",
		ValueDigests:    mdoc.ValueDigests{namespace: digests},
		DeviceKeyInfo:   mdoc.DeviceKeyInfo{DeviceKey: deviceCOSEKey},
		DocType:         docType,
		ValidityInfo: mdoc.ValidityInfo{
			Signed:     now,
			ValidFrom:  now,
			ValidUntil: now.Add(365 * 24 * time.Hour),
		},
	}
	msoBytes, err := cborx.Marshal(mso)
	if err != nil {
		return mdoc.IssuerSigned{}, err
	}
	taggedMSO, err := cborx.Marshal(cborx.Tag{Number: cborx.TagEmbeddedCBOR, Content: msoBytes})
	if err != nil {
		return mdoc.IssuerSigned{}, err
	}

	issuerAuth := cosex.NewSign1(cose.ProtectedHeader{}, cose.UnprotectedHeader{
		cosex.HeaderLabelX5Chain: [][]byte{authority.DocSignCert.Raw},
	}, taggedMSO)
	if err := issuerAuth.Sign(ctx, crypto, "ES256", authority.DocSignKey, nil); err != nil {
		return mdoc.IssuerSigned{}, err
	}

	return mdoc.IssuerSigned{NameSpaces: nameSpaces, IssuerAuth: *issuerAuth}, nil
}

// demoJARM signs and encrypts a small authorization response the way
// a wallet returning an OpenID4VP presentation would, then runs it
// back through the JARM envelope's decrypt-then-verify state machine.
func demoJARM(ctx context.Context, crypto hostctx.CryptoContext) error {
	jose := defaultctx.JoseContext{}

	rpKey, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		return err
	}
	readerKey, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		return err
	}

	state := uuid.New().String()
	claims := map[string]any{
		"vp_token": "deadbeef",
		"state":    state,
		"iss":      "https://relying-party.example",
		"aud":      "https://client.example",
		"exp":      float64(time.Now().Add(time.Hour).Unix()),
	}
	jws, err := jose.SignJWT(ctx, "ES256", rpKey, claims)
	if err != nil {
		return err
	}
	jwe, err := jose.EncryptCompact(ctx, "ECDH-ES", "A128CBC-HS256", &readerKey.PublicKey, []byte(jws))
	if err != nil {
		return err
	}

	env := jarm.New(jose, demoLookup{state: state})
	result, err := env.Parse(ctx, jwe,
		func(kid string) (any, error) { return readerKey, nil },
		func(kid string) (any, error) { return &rpKey.PublicKey, nil },
	)
	if err != nil {
		return err
	}
	log.Printf("jarm envelope parsed as %q, state=%v", result.Type, result.AuthResponseParams["state"])
	return nil
}

type demoLookup struct{ state string }

func (d demoLookup) GetParams(ctx context.Context, responseParams map[string]any) (map[string]any, error) {
	return map[string]any{"state": d.state}, nil
}

func randomBytes(n int) []byte {
	b := make([]byte, n)
	_, _ = rand.Read(b)
	return b
}
