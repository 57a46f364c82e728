package defaultctx

import (
	"context"
	"crypto/ecdsa"
	"crypto/ed25519"
	"crypto/rsa"
	"crypto/x509"
	"fmt"

	"github.com/kokukuma/mdoc-verifier/hostctx"
)

// X509Context is the default hostctx.X509Context, built directly on
// crypto/x509's chain verification -- generalizing the certificate
// checks the teacher ran inline inside mdoc/verify.go's
// verifyCertificate.
type X509Context struct{}

var _ hostctx.X509Context = X509Context{}

// ValidateCertificateChain verifies certificates[0] (the leaf) up to
// trustAnchors, using any intermediates present in certificates[1:].
func (X509Context) ValidateCertificateChain(ctx context.Context, certificates []*x509.Certificate, trustAnchors *x509.CertPool) error {
	if len(certificates) == 0 {
		return hostctx.New(hostctx.ErrMissingField, "certificate chain is empty")
	}

	intermediates := x509.NewCertPool()
	for _, cert := range certificates[1:] {
		intermediates.AddCert(cert)
	}

	opts := x509.VerifyOptions{
		Roots:         trustAnchors,
		Intermediates: intermediates,
		KeyUsages:     []x509.ExtKeyUsage{x509.ExtKeyUsageAny},
	}

	if _, err := certificates[0].Verify(opts); err != nil {
		return hostctx.Wrap(hostctx.ErrCapabilityFailure, err, "certificate chain verification failed")
	}
	return nil
}

// GetPublicKey extracts the leaf certificate's public key if it is an
// ECDSA, Ed25519 or RSA key. alg is not consulted: the key is not
// checked against the scheme alg dispatches to.
func (X509Context) GetPublicKey(ctx context.Context, cert *x509.Certificate, alg hostctx.SignAlg) (any, error) {
	switch pub := cert.PublicKey.(type) {
	case *ecdsa.PublicKey:
		return pub, nil
	case ed25519.PublicKey:
		return pub, nil
	case *rsa.PublicKey:
		return pub, nil
	default:
		return nil, hostctx.New(hostctx.ErrKeyTypeMismatch, "unsupported certificate public key type: %T", cert.PublicKey)
	}
}

// GetIssuerName returns the certificate's issuer common name.
func (X509Context) GetIssuerName(ctx context.Context, cert *x509.Certificate) (string, error) {
	if cert == nil {
		return "", hostctx.New(hostctx.ErrMissingField, "certificate is nil")
	}
	return cert.Issuer.CommonName, nil
}

// GetCertificateData returns a small set of human-readable fields
// describing the certificate, for verifier assessment reporting.
func (X509Context) GetCertificateData(ctx context.Context, cert *x509.Certificate) (map[string]string, error) {
	if cert == nil {
		return nil, hostctx.New(hostctx.ErrMissingField, "certificate is nil")
	}
	return map[string]string{
		"subject":      cert.Subject.CommonName,
		"issuer":       cert.Issuer.CommonName,
		"serialNumber": cert.SerialNumber.String(),
		"keyUsage":     fmt.Sprintf("%d", cert.KeyUsage),
	}, nil
}

// GetCertificateValidityData returns the certificate's NotBefore and
// NotAfter bounds, formatted per RFC 3339.
func (X509Context) GetCertificateValidityData(ctx context.Context, cert *x509.Certificate) (notBefore, notAfter string, err error) {
	if cert == nil {
		return "", "", hostctx.New(hostctx.ErrMissingField, "certificate is nil")
	}
	return cert.NotBefore.Format("2006-01-02T15:04:05Z07:00"), cert.NotAfter.Format("2006-01-02T15:04:05Z07:00"), nil
}
