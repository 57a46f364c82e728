// Package builder assembles a mdoc.DeviceResponse from the full set of
// an issuer's disclosable elements, a Presentation Definition
// describing what a verifier asked for, and a device authentication
// method (signature or MAC). The teacher (kokukuma-mdoc-verifier) only
// ever verifies a DeviceResponse; this package is new, grounded on
// mdoc.DeviceSigned.DeviceAuthenticationBytes for the wire structure
// device authentication signs/MACs over and on
// document.PresentationDefinition/PathField for the requested-field
// shape (spec.md §4.6).
package builder

import (
	"context"
	"fmt"
	"regexp"
	"strconv"

	"github.com/veraison/go-cose"

	"github.com/kokukuma/mdoc-verifier/document"
	"github.com/kokukuma/mdoc-verifier/hostctx"
	"github.com/kokukuma/mdoc-verifier/internal/cborx"
	"github.com/kokukuma/mdoc-verifier/internal/cosex"
	"github.com/kokukuma/mdoc-verifier/mdoc"
)

// pathFieldRe matches the "$['namespace']['elementIdentifier']" shape
// document.formatPathField produces (document/credential.go).
var pathFieldRe = regexp.MustCompile(`^\$\['([^']+)'\]\['([^']+)'\]$`)

// ageOverRe matches the "age_over_NN" element identifier shape
// (ISO/IEC 18013-5 Table B.1), used by the fallback search below.
var ageOverRe = regexp.MustCompile(`^age_over_(\d+)$`)

// parseAgeOverNN reports the NN in an "age_over_NN" element identifier.
func parseAgeOverNN(el mdoc.ElementIdentifier) (int, bool) {
	m := ageOverRe.FindStringSubmatch(string(el))
	if m == nil {
		return 0, false
	}
	nn, err := strconv.Atoi(m[1])
	if err != nil {
		return 0, false
	}
	return nn, true
}

// ageOverFallback implements spec.md §4.6's age_over_NN selection: among
// the namespace's actual age_over_<k> items, prefer the smallest k>=nn
// whose value is true, else the largest k<=nn whose value is false,
// else report no match (the caller omits the field, it does not error).
func ageOverFallback(items []cborx.DataItem[mdoc.IssuerSignedItem], nn int) (cborx.DataItem[mdoc.IssuerSignedItem], bool, error) {
	type candidate struct {
		k     int
		di    cborx.DataItem[mdoc.IssuerSignedItem]
		value bool
	}

	var candidates []candidate
	for _, di := range items {
		item, err := di.Value()
		if err != nil {
			return cborx.DataItem[mdoc.IssuerSignedItem]{}, false, hostctx.Wrap(hostctx.ErrInvalidMajorType, err, "failed to parse issuer signed item")
		}
		k, ok := parseAgeOverNN(item.ElementIdentifier)
		if !ok {
			continue
		}
		value, ok := item.ElementValue.(bool)
		if !ok {
			continue
		}
		candidates = append(candidates, candidate{k: k, di: di, value: value})
	}

	var smallestTrueAtOrAbove *candidate
	for i := range candidates {
		c := &candidates[i]
		if !c.value || c.k < nn {
			continue
		}
		if smallestTrueAtOrAbove == nil || c.k < smallestTrueAtOrAbove.k {
			smallestTrueAtOrAbove = c
		}
	}
	if smallestTrueAtOrAbove != nil {
		return smallestTrueAtOrAbove.di, true, nil
	}

	var largestFalseAtOrBelow *candidate
	for i := range candidates {
		c := &candidates[i]
		if c.value || c.k > nn {
			continue
		}
		if largestFalseAtOrBelow == nil || c.k > largestFalseAtOrBelow.k {
			largestFalseAtOrBelow = c
		}
	}
	if largestFalseAtOrBelow != nil {
		return largestFalseAtOrBelow.di, true, nil
	}

	return cborx.DataItem[mdoc.IssuerSignedItem]{}, false, nil
}

// parsePathField extracts the namespace/elementIdentifier pair a
// PathField.Path entry addresses. Only the single-segment mdoc path
// shape is supported; anything else is a caller error, not a data
// error, since Presentation Definitions this package is asked to
// satisfy are always mdoc-shaped (spec.md §1 scopes non-mdoc formats
// out).
func parsePathField(path string) (mdoc.NameSpace, mdoc.ElementIdentifier, error) {
	m := pathFieldRe.FindStringSubmatch(path)
	if m == nil {
		return "", "", hostctx.New(hostctx.ErrMissingField, "unsupported presentation definition path: %s", path)
	}
	return mdoc.NameSpace(m[1]), mdoc.ElementIdentifier(m[2]), nil
}

// RequestedElements flattens a PresentationDefinition into the set of
// namespace/element pairs it asks for, keyed by docType. A duplicate
// InputDescriptor ID is a builder error (hostctx.ErrDuplicateInputDescriptorId)
// since it makes "which descriptor did this document satisfy" ambiguous.
func RequestedElements(pd document.PresentationDefinition) (map[mdoc.DocType][]elementRef, error) {
	if len(pd.InputDescriptors) == 0 {
		return nil, hostctx.New(hostctx.ErrEmptyPresentationDefinition, "presentation definition has no input descriptors")
	}

	seen := make(map[string]bool, len(pd.InputDescriptors))
	out := make(map[mdoc.DocType][]elementRef)
	for _, desc := range pd.InputDescriptors {
		if seen[desc.ID] {
			return nil, hostctx.New(hostctx.ErrDuplicateInputDescriptorId, "duplicate input descriptor id: %s", desc.ID)
		}
		seen[desc.ID] = true

		docType := mdoc.DocType(desc.ID)
		for _, f := range desc.Constraints.Fields {
			for _, p := range f.Path {
				ns, el, err := parsePathField(p)
				if err != nil {
					return nil, err
				}
				out[docType] = append(out[docType], elementRef{
					Namespace:      ns,
					Element:        el,
					IntentToRetain: f.IntentToRetain,
				})
			}
		}
	}
	return out, nil
}

type elementRef struct {
	Namespace      mdoc.NameSpace
	Element        mdoc.ElementIdentifier
	IntentToRetain bool
}

// SelectDisclosures filters an issuer's full set of namespace items
// down to only those a PresentationDefinition's input descriptor for
// docType actually requested, preserving each item's original
// DataItem bytes so digests stay verifiable (spec.md §4.4/§8's
// round-trip invariant). Selecting an element the issuer never signed
// is a builder error, not a silent omission, with one exception: a
// requested age_over_NN falls back to a signed age_over_<k> that
// answers it, and is omitted when none does.
func SelectDisclosures(full mdoc.IssuerNameSpaces, docType mdoc.DocType, pd document.PresentationDefinition) (mdoc.IssuerNameSpaces, error) {
	requested, err := RequestedElements(pd)
	if err != nil {
		return nil, err
	}
	refs, ok := requested[docType]
	if !ok {
		return nil, hostctx.New(hostctx.ErrDocTypeNotFound, "presentation definition has no input descriptor for docType %s", docType)
	}

	out := make(mdoc.IssuerNameSpaces, len(refs))
	for _, ref := range refs {
		items, ok := full[ref.Namespace]
		if !ok {
			return nil, hostctx.New(hostctx.ErrMissingField, "namespace %s not present in issuer signed items", ref.Namespace)
		}
		found := false
		for _, di := range items {
			item, err := di.Value()
			if err != nil {
				return nil, hostctx.Wrap(hostctx.ErrInvalidMajorType, err, "failed to parse issuer signed item")
			}
			if item.ElementIdentifier != ref.Element {
				continue
			}
			out[ref.Namespace] = append(out[ref.Namespace], di)
			found = true
			break
		}
		if found {
			continue
		}

		if nn, ok := parseAgeOverNN(ref.Element); ok {
			di, ok, err := ageOverFallback(items, nn)
			if err != nil {
				return nil, err
			}
			if ok {
				out[ref.Namespace] = append(out[ref.Namespace], di)
			}
			// no age_over_<k> satisfies the request: omit per spec.md §4.6,
			// not a missing-field error.
			continue
		}

		return nil, hostctx.New(hostctx.ErrMissingField, "requested element %s/%s not found among issuer signed items", ref.Namespace, ref.Element)
	}
	return out, nil
}

// DeviceAuthenticator produces the DeviceAuth half of a DeviceSigned
// structure, given the exact bytes device authentication signs or
// MACs over (mdoc.DeviceSigned.DeviceAuthenticationBytes).
type DeviceAuthenticator interface {
	Authenticate(ctx context.Context, crypto hostctx.CryptoContext, deviceAuthenticationBytes []byte) (mdoc.DeviceAuth, error)
}

// SignatureAuthenticator authenticates a device response with a
// COSE_Sign1 over DeviceAuthenticationBytes, signed by the device's
// own private key (spec.md §4.6 signature variant).
type SignatureAuthenticator struct {
	Alg hostctx.SignAlg
	Key any
}

func (s SignatureAuthenticator) Authenticate(ctx context.Context, crypto hostctx.CryptoContext, deviceAuthenticationBytes []byte) (mdoc.DeviceAuth, error) {
	if s.Key == nil {
		return mdoc.DeviceAuth{}, hostctx.New(hostctx.ErrKeyNotSet, "device signing key not set")
	}
	sig := cosex.NewSign1(cose.ProtectedHeader{}, cose.UnprotectedHeader{}, deviceAuthenticationBytes)
	if err := sig.Sign(ctx, crypto, s.Alg, s.Key, nil); err != nil {
		return mdoc.DeviceAuth{}, err
	}
	sig.SetPayload(nil) // detached, matching the wire format a verifier expects
	return mdoc.DeviceAuth{DeviceSignature: sig}, nil
}

// MACAuthenticator authenticates a device response with a COSE_Mac0
// over DeviceAuthenticationBytes, keyed by an ECDH+HKDF-derived
// ephemeral MAC key (spec.md §4.6 MAC variant, alg label 5, HMAC
// 256/256).
type MACAuthenticator struct {
	DevicePrivateKey  any
	ReaderPublicKey   any
	SessionTranscript []byte
}

func (m MACAuthenticator) Authenticate(ctx context.Context, crypto hostctx.CryptoContext, deviceAuthenticationBytes []byte) (mdoc.DeviceAuth, error) {
	if m.DevicePrivateKey == nil || m.ReaderPublicKey == nil {
		return mdoc.DeviceAuth{}, hostctx.New(hostctx.ErrKeyNotSet, "device mac requires both a device private key and a reader public key")
	}
	hmacKey, err := crypto.CalculateEphemeralMacKey(ctx, m.DevicePrivateKey, m.ReaderPublicKey, m.SessionTranscript)
	if err != nil {
		return mdoc.DeviceAuth{}, hostctx.WrapCapability(err, "failed to derive ephemeral mac key")
	}
	mac, err := cosex.NewMac0(cosex.AlgorithmHMAC256, deviceAuthenticationBytes)
	if err != nil {
		return mdoc.DeviceAuth{}, err
	}
	if err := mac.Compute(ctx, crypto, hmacKey, nil); err != nil {
		return mdoc.DeviceAuth{}, err
	}
	mac.Payload = nil // detached, matching the wire format a verifier expects
	return mdoc.DeviceAuth{DeviceMac: mac}, nil
}

// Builder assembles DeviceResponse documents from an issuer's full
// disclosure set.
type Builder struct {
	crypto hostctx.CryptoContext
}

func New(crypto hostctx.CryptoContext) *Builder {
	return &Builder{crypto: crypto}
}

// BuildDocument selects the elements pd requests for docType out of
// fullIssuerSigned, attaches deviceNameSpaces (the device's own,
// typically empty, disclosures), and authenticates the result via
// auth.
func (b *Builder) BuildDocument(
	ctx context.Context,
	docType mdoc.DocType,
	fullIssuerSigned mdoc.IssuerSigned,
	deviceNameSpaces mdoc.DeviceNameSpaces,
	pd document.PresentationDefinition,
	sessionTranscript []byte,
	auth DeviceAuthenticator,
) (mdoc.Document, error) {
	if len(sessionTranscript) == 0 {
		return mdoc.Document{}, hostctx.New(hostctx.ErrHandoverNotSet, "session transcript is empty")
	}

	selected, err := SelectDisclosures(fullIssuerSigned.NameSpaces, docType, pd)
	if err != nil {
		return mdoc.Document{}, err
	}

	if deviceNameSpaces == nil {
		deviceNameSpaces = mdoc.DeviceNameSpaces{}
	}
	nsItem, err := cborx.FromValue(deviceNameSpaces)
	if err != nil {
		return mdoc.Document{}, hostctx.Wrap(hostctx.ErrInvalidMajorType, err, "failed to encode device namespaces")
	}

	deviceSigned := mdoc.DeviceSigned{NameSpaces: nsItem}
	daBytes, err := deviceSigned.DeviceAuthenticationBytes(docType, sessionTranscript)
	if err != nil {
		return mdoc.Document{}, err
	}

	deviceAuth, err := auth.Authenticate(ctx, b.crypto, daBytes)
	if err != nil {
		return mdoc.Document{}, err
	}
	deviceSigned.DeviceAuth = deviceAuth

	return mdoc.Document{
		DocType: docType,
		IssuerSigned: mdoc.IssuerSigned{
			NameSpaces: selected,
			IssuerAuth: fullIssuerSigned.IssuerAuth,
		},
		DeviceSigned: deviceSigned,
	}, nil
}

// BuildResponse wraps one or more built documents into a top-level
// DeviceResponse, status 0 (OK) per ISO/IEC 18013-5 Table 8.
func BuildResponse(docs ...mdoc.Document) mdoc.DeviceResponse {
	return mdoc.DeviceResponse{
		Version:   "1.0",
		Documents: docs,
		Status:    0,
	}
}

// String is a tiny debug helper so a caller building up a
// DeviceResponse from a CLI (cmd/mdoctool) can print what it selected.
func (r elementRef) String() string {
	return fmt.Sprintf("%s/%s", r.Namespace, r.Element)
}
