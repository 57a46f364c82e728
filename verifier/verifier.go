// Package verifier implements the mdoc Verifier (spec.md §4.7),
// generalizing the teacher's mdoc/verify.go five-step Verify method
// into a fixed sequence of categorized, non-fatal checks reported to
// a caller-supplied assessment sink instead of failing fast on the
// first mismatch.
package verifier

import (
	"context"
	"crypto/ecdh"
	"crypto/ecdsa"
	"crypto/x509"
	"strings"
	"time"

	"github.com/kokukuma/mdoc-verifier/hostctx"
	"github.com/kokukuma/mdoc-verifier/internal/cosex"
	"github.com/kokukuma/mdoc-verifier/mdoc"
)

// Category is one of the four fixed assessment categories spec.md
// §4.7 names.
type Category string

const (
	CategoryDocumentFormat Category = "DOCUMENT_FORMAT"
	CategoryIssuerAuth     Category = "ISSUER_AUTH"
	CategoryDeviceAuth     Category = "DEVICE_AUTH"
	CategoryDataIntegrity  Category = "DATA_INTEGRITY"
)

type Status string

const (
	StatusPassed  Status = "PASSED"
	StatusFailed  Status = "FAILED"
	StatusSkipped Status = "SKIPPED"
)

// Assessment is one emitted check result.
type Assessment struct {
	Category Category
	Check    string
	Status   Status
	Reason   string
}

// AssessmentSink receives every Assessment the Verifier emits, in the
// fixed order spec.md §4.7 lists them. It is the ambient observability
// seam this module uses in place of a structured-logging dependency:
// callers that want the checks logged wire a sink that does so.
type AssessmentSink func(Assessment)

type Option func(*Verifier)

func AllowSelfSignedCert() Option {
	return func(v *Verifier) { v.allowSelfCert = true }
}

func WithSignCurrentTime(t time.Time) Option {
	return func(v *Verifier) { v.signCurrentTime = t }
}

func WithCertCurrentTime(t time.Time) Option {
	return func(v *Verifier) { v.certCurrentTime = t }
}

func SkipCertificateChain() Option {
	return func(v *Verifier) { v.skipCertChain = true }
}

func SkipDeviceAuth() Option {
	return func(v *Verifier) { v.skipDeviceAuth = true }
}

func SkipIssuerAuth() Option {
	return func(v *Verifier) { v.skipIssuerAuth = true }
}

func SkipValidityWindow() Option {
	return func(v *Verifier) { v.skipValidityWindow = true }
}

// ReaderEphemeralKey supplies the reader-side ECDH private key needed
// to derive the device MAC key for the MAC device-auth variant
// (spec.md §4.7's "require the reader's ephemeral private key").
func ReaderEphemeralKey(key any) Option {
	return func(v *Verifier) { v.readerEphemeralKey = key }
}

// Verifier runs the fixed check sequence spec.md §4.7 describes,
// delegating cryptography to a hostctx.CryptoContext and certificate
// chain validation to a hostctx.X509Context (spec.md §6).
type Verifier struct {
	crypto  hostctx.CryptoContext
	x509ctx hostctx.X509Context
	roots   *x509.CertPool

	allowSelfCert       bool
	skipCertChain       bool
	skipDeviceAuth      bool
	skipIssuerAuth      bool
	skipValidityWindow  bool
	signCurrentTime     time.Time
	certCurrentTime     time.Time
	readerEphemeralKey  any
}

func New(crypto hostctx.CryptoContext, x509ctx hostctx.X509Context, roots *x509.CertPool, opts ...Option) *Verifier {
	v := &Verifier{
		crypto:          crypto,
		x509ctx:         x509ctx,
		roots:           roots,
		signCurrentTime: time.Now(),
		certCurrentTime: time.Now(),
	}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

// VerifyDeviceResponse runs the document-format checks and then
// VerifyDocument over every document in the response.
func (v *Verifier) VerifyDeviceResponse(ctx context.Context, dr mdoc.DeviceResponse, sessionTranscript []byte, sink AssessmentSink) error {
	if sink == nil {
		sink = func(Assessment) {}
	}

	if dr.Version == "" {
		sink(Assessment{CategoryDocumentFormat, "version present", StatusFailed, "version is empty"})
		return hostctx.New(hostctx.ErrMissingField, "device response missing version")
	}
	sink(Assessment{CategoryDocumentFormat, "version present", StatusPassed, ""})

	if compareVersions(dr.Version, "1.0") < 0 {
		sink(Assessment{CategoryDocumentFormat, "version >= 1.0", StatusFailed, "version " + dr.Version + " is below 1.0"})
	} else {
		sink(Assessment{CategoryDocumentFormat, "version >= 1.0", StatusPassed, ""})
	}

	if len(dr.Documents) == 0 {
		sink(Assessment{CategoryDocumentFormat, "documents non-empty", StatusFailed, "no documents present"})
		return hostctx.New(hostctx.ErrMissingField, "device response has no documents")
	}
	sink(Assessment{CategoryDocumentFormat, "documents non-empty", StatusPassed, ""})

	for i := range dr.Documents {
		if err := v.VerifyDocument(ctx, dr.Documents[i], sessionTranscript, sink); err != nil {
			return err
		}
	}
	return nil
}

// VerifyDocument runs the issuer-auth, device-auth, and data-integrity
// stages over a single document.
func (v *Verifier) VerifyDocument(ctx context.Context, doc mdoc.Document, sessionTranscript []byte, sink AssessmentSink) error {
	mso, err := doc.IssuerSigned.MobileSecurityObject()
	if err != nil {
		sink(Assessment{CategoryIssuerAuth, "mso parses", StatusFailed, err.Error()})
		return hostctx.Wrap(hostctx.ErrInvalidMajorType, err, "failed to parse mobile security object")
	}
	sink(Assessment{CategoryIssuerAuth, "mso parses", StatusPassed, ""})

	cert, err := v.verifyIssuerAuth(ctx, doc.IssuerSigned, mso, sink)
	if err != nil {
		return err
	}

	v.verifyDeviceAuth(ctx, mso, doc, sessionTranscript, sink)
	v.verifyDataIntegrity(ctx, doc.IssuerSigned, mso, cert, sink)

	return nil
}

func (v *Verifier) verifyIssuerAuth(ctx context.Context, issuerSigned mdoc.IssuerSigned, mso *mdoc.MobileSecurityObject, sink AssessmentSink) (*x509.Certificate, error) {
	if v.skipIssuerAuth {
		sink(Assessment{CategoryIssuerAuth, "issuer auth", StatusSkipped, ""})
		return nil, nil
	}

	certs, err := issuerSigned.DocumentSigningCertificateChain()
	if err != nil {
		sink(Assessment{CategoryIssuerAuth, "x5chain[0] present", StatusFailed, err.Error()})
		return nil, err
	}
	sink(Assessment{CategoryIssuerAuth, "x5chain[0] present", StatusPassed, ""})

	alg, err := issuerSigned.Algorithm()
	if err != nil {
		sink(Assessment{CategoryIssuerAuth, "alg supported", StatusFailed, err.Error()})
		return certs[0], err
	}
	sink(Assessment{CategoryIssuerAuth, "alg supported", StatusPassed, ""})

	if v.skipCertChain {
		sink(Assessment{CategoryIssuerAuth, "certificate chain trusted", StatusSkipped, ""})
	} else {
		roots := v.roots
		if v.allowSelfCert {
			// Trust the chain's own root, per the teacher's
			// AllowSelfCert option: useful for test fixtures signed
			// by a CA that never made it into the configured pool.
			roots = x509.NewCertPool()
			roots.AddCert(certs[len(certs)-1])
		}
		if err := v.x509ctx.ValidateCertificateChain(ctx, certs, roots); err != nil {
			sink(Assessment{CategoryIssuerAuth, "certificate chain trusted", StatusFailed, err.Error()})
		} else {
			sink(Assessment{CategoryIssuerAuth, "certificate chain trusted", StatusPassed, ""})
		}
	}

	pubKey, err := v.x509ctx.GetPublicKey(ctx, certs[0], alg)
	if err != nil {
		sink(Assessment{CategoryIssuerAuth, "signature verifies", StatusFailed, err.Error()})
		return certs[0], nil
	}
	if err := issuerSigned.IssuerAuth.Verify(ctx, v.crypto, alg, pubKey, nil, nil); err != nil {
		sink(Assessment{CategoryIssuerAuth, "signature verifies", StatusFailed, err.Error()})
	} else {
		sink(Assessment{CategoryIssuerAuth, "signature verifies", StatusPassed, ""})
	}

	if v.skipValidityWindow {
		sink(Assessment{CategoryIssuerAuth, "validity window", StatusSkipped, ""})
	} else {
		notBefore, notAfter, err := v.x509ctx.GetCertificateValidityData(ctx, certs[0])
		if err != nil {
			sink(Assessment{CategoryIssuerAuth, "validity window", StatusFailed, err.Error()})
		} else {
			v.checkValidityWindow(mso, notBefore, notAfter, sink)
		}
	}

	if len(certs[0].Subject.Country) == 0 {
		sink(Assessment{CategoryIssuerAuth, "subject DN has countryName", StatusFailed, "subject DN missing countryName"})
	} else {
		sink(Assessment{CategoryIssuerAuth, "subject DN has countryName", StatusPassed, ""})
	}

	return certs[0], nil
}

func (v *Verifier) checkValidityWindow(mso *mdoc.MobileSecurityObject, notBefore, notAfter string, sink AssessmentSink) {
	nb, errNb := time.Parse(time.RFC3339, notBefore)
	na, errNa := time.Parse(time.RFC3339, notAfter)
	if errNb != nil || errNa != nil {
		sink(Assessment{CategoryIssuerAuth, "validity window", StatusFailed, "unable to parse certificate validity bounds"})
		return
	}

	signed := mso.ValidityInfo.Signed
	if signed.Before(nb) || signed.After(na) {
		sink(Assessment{CategoryIssuerAuth, "signed within cert validity", StatusFailed, "signed date outside certificate validity window"})
	} else {
		sink(Assessment{CategoryIssuerAuth, "signed within cert validity", StatusPassed, ""})
	}

	if v.signCurrentTime.Before(mso.ValidityInfo.ValidFrom) || v.signCurrentTime.After(mso.ValidityInfo.ValidUntil) {
		sink(Assessment{CategoryIssuerAuth, "current time within validFrom/validUntil", StatusFailed, "current time outside mso validity window"})
	} else {
		sink(Assessment{CategoryIssuerAuth, "current time within validFrom/validUntil", StatusPassed, ""})
	}
}

func (v *Verifier) verifyDeviceAuth(ctx context.Context, mso *mdoc.MobileSecurityObject, doc mdoc.Document, sessionTranscript []byte, sink AssessmentSink) {
	if v.skipDeviceAuth {
		sink(Assessment{CategoryDeviceAuth, "device auth", StatusSkipped, ""})
		return
	}

	sig := doc.DeviceSigned.DeviceAuth.DeviceSignature
	mac := doc.DeviceSigned.DeviceAuth.DeviceMac
	if (sig == nil) == (mac == nil) {
		sink(Assessment{CategoryDeviceAuth, "exactly one of deviceSignature/deviceMac present", StatusFailed, "device auth must carry exactly one variant"})
		return
	}
	sink(Assessment{CategoryDeviceAuth, "exactly one of deviceSignature/deviceMac present", StatusPassed, ""})

	deviceAuthBytes, err := doc.DeviceSigned.DeviceAuthenticationBytes(doc.DocType, sessionTranscript)
	if err != nil {
		sink(Assessment{CategoryDeviceAuth, "device authentication bytes", StatusFailed, err.Error()})
		return
	}
	sink(Assessment{CategoryDeviceAuth, "device authentication bytes", StatusPassed, ""})

	deviceKey, err := mso.DeviceKey()
	if err != nil {
		sink(Assessment{CategoryDeviceAuth, "device key available", StatusFailed, err.Error()})
		return
	}
	sink(Assessment{CategoryDeviceAuth, "device key available", StatusPassed, ""})

	if sig != nil {
		alg, err := doc.DeviceSigned.Algorithm()
		if err != nil {
			sink(Assessment{CategoryDeviceAuth, "device signature verifies", StatusFailed, err.Error()})
			return
		}
		if err := sig.Verify(ctx, v.crypto, alg, deviceKey, nil, deviceAuthBytes); err != nil {
			sink(Assessment{CategoryDeviceAuth, "device signature verifies", StatusFailed, err.Error()})
		} else {
			sink(Assessment{CategoryDeviceAuth, "device signature verifies", StatusPassed, ""})
		}
		return
	}

	macAlg, err := mac.Algorithm()
	if err != nil || macAlg != cosex.AlgorithmHMAC256 {
		sink(Assessment{CategoryDeviceAuth, "device mac alg is HMAC 256/256", StatusFailed, "Device MAC must use alg 5 (HMAC 256/256)"})
		return
	}
	sink(Assessment{CategoryDeviceAuth, "device mac alg is HMAC 256/256", StatusPassed, ""})

	if v.readerEphemeralKey == nil {
		sink(Assessment{CategoryDeviceAuth, "reader ephemeral key available", StatusFailed, "reader ephemeral private key not configured"})
		return
	}
	ecdhDeviceKey, err := toECDHPublicKey(deviceKey)
	if err != nil {
		sink(Assessment{CategoryDeviceAuth, "mac key derivation", StatusFailed, err.Error()})
		return
	}
	hmacKey, err := v.crypto.CalculateEphemeralMacKey(ctx, v.readerEphemeralKey, ecdhDeviceKey, sessionTranscript)
	if err != nil {
		sink(Assessment{CategoryDeviceAuth, "mac key derivation", StatusFailed, err.Error()})
		return
	}
	sink(Assessment{CategoryDeviceAuth, "mac key derivation", StatusPassed, ""})

	mac.Payload = deviceAuthBytes
	if err := mac.Verify(ctx, v.crypto, hmacKey, nil); err != nil {
		sink(Assessment{CategoryDeviceAuth, "device mac verifies", StatusFailed, err.Error()})
	} else {
		sink(Assessment{CategoryDeviceAuth, "device mac verifies", StatusPassed, ""})
	}
}

func (v *Verifier) verifyDataIntegrity(ctx context.Context, issuerSigned mdoc.IssuerSigned, mso *mdoc.MobileSecurityObject, cert *x509.Certificate, sink AssessmentSink) {
	if err := validateDigestAlg(mso.DigestAlg()); err != nil {
		sink(Assessment{CategoryDataIntegrity, "digestAlgorithm supported", StatusFailed, err.Error()})
		return
	}
	sink(Assessment{CategoryDataIntegrity, "digestAlgorithm supported", StatusPassed, ""})

	for ns, items := range issuerSigned.NameSpaces {
		digestIDs, ok := mso.ValueDigests[ns]
		if !ok {
			sink(Assessment{CategoryDataIntegrity, "valueDigests[ns] exists", StatusFailed, "namespace " + string(ns) + " missing from mso valueDigests"})
			continue
		}
		sink(Assessment{CategoryDataIntegrity, "valueDigests[ns] exists", StatusPassed, string(ns)})

		for _, di := range items {
			item, err := di.Value()
			if err != nil {
				sink(Assessment{CategoryDataIntegrity, "digest matches", StatusFailed, err.Error()})
				continue
			}
			expected, ok := digestIDs[item.DigestID]
			if !ok {
				sink(Assessment{CategoryDataIntegrity, "digest matches", StatusFailed, "no digest entry for digestID"})
				continue
			}
			calc, err := mdoc.Digest(ctx, v.crypto, di, mso.DigestAlg())
			if err != nil {
				sink(Assessment{CategoryDataIntegrity, "digest matches", StatusFailed, err.Error()})
				continue
			}
			if string(calc) != string(expected) {
				sink(Assessment{CategoryDataIntegrity, "digest matches", StatusFailed, "digest mismatch for element " + string(item.ElementIdentifier)})
				continue
			}
			sink(Assessment{CategoryDataIntegrity, "digest matches", StatusPassed, string(item.ElementIdentifier)})

			if ns == "org.iso.18013.5.1" {
				v.checkSubjectCoupling(item, cert, sink)
			}
		}
	}
}

func (v *Verifier) checkSubjectCoupling(item mdoc.IssuerSignedItem, cert *x509.Certificate, sink AssessmentSink) {
	if cert == nil {
		return
	}
	switch item.ElementIdentifier {
	case "issuing_country":
		if country, ok := item.ElementValue.(string); ok {
			if len(cert.Subject.Country) == 0 || cert.Subject.Country[0] != country {
				sink(Assessment{CategoryDataIntegrity, "issuing_country matches certificate", StatusFailed, "issuing_country does not match DS certificate countryName"})
			} else {
				sink(Assessment{CategoryDataIntegrity, "issuing_country matches certificate", StatusPassed, ""})
			}
		}
	case "issuing_jurisdiction":
		if jurisdiction, ok := item.ElementValue.(string); ok {
			if len(cert.Subject.Province) == 0 || cert.Subject.Province[0] != jurisdiction {
				sink(Assessment{CategoryDataIntegrity, "issuing_jurisdiction matches certificate", StatusFailed, "issuing_jurisdiction does not match DS certificate stateOrProvinceName"})
			} else {
				sink(Assessment{CategoryDataIntegrity, "issuing_jurisdiction matches certificate", StatusPassed, ""})
			}
		}
	}
}

func validateDigestAlg(alg string) error {
	switch alg {
	case "SHA-256", "SHA-384", "SHA-512":
		return nil
	default:
		return hostctx.New(hostctx.ErrUnsupportedAlg, "unsupported digest algorithm: %s", alg)
	}
}

// compareVersions does a lexicographic dotted-segment compare, per
// spec.md §4.7's "version >= 1.0 (lexicographic dotted compare)".
func compareVersions(a, b string) int {
	as := strings.Split(a, ".")
	bs := strings.Split(b, ".")
	for i := 0; i < len(as) || i < len(bs); i++ {
		var av, bv string
		if i < len(as) {
			av = as[i]
		}
		if i < len(bs) {
			bv = bs[i]
		}
		if av != bv {
			if av < bv {
				return -1
			}
			return 1
		}
	}
	return 0
}

// toECDHPublicKey adapts an mdoc device key (typically an
// *ecdsa.PublicKey from mdoc.MobileSecurityObject.DeviceKey) to the
// crypto/ecdh representation CryptoContext.CalculateEphemeralMacKey
// requires for the MAC device-auth variant.
func toECDHPublicKey(key any) (*ecdh.PublicKey, error) {
	switch k := key.(type) {
	case *ecdh.PublicKey:
		return k, nil
	case *ecdsa.PublicKey:
		pub, err := k.ECDH()
		if err != nil {
			return nil, hostctx.Wrap(hostctx.ErrKeyTypeMismatch, err, "device key is not a valid ecdh public key")
		}
		return pub, nil
	default:
		return nil, hostctx.New(hostctx.ErrKeyTypeMismatch, "device key %T is not ecdh-capable", key)
	}
}
