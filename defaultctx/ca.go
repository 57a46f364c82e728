package defaultctx

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/sha256"
	"crypto/x509"
	"crypto/x509/pkix"
	"math/big"
	"time"

	"github.com/kokukuma/mdoc-verifier/hostctx"
)

// TestIssuingAuthority is an in-memory root CA plus one end-entity
// (document signing) certificate, for use in tests and in
// cmd/mdoctool's demo mode. It generalizes the teacher's
// internal/cryptoroot package, which wrote the same two-certificate
// chain to disk on first run; here nothing touches the filesystem,
// since tests must not depend on repo-local state surviving between
// runs.
type TestIssuingAuthority struct {
	RootKey  *ecdsa.PrivateKey
	RootCert *x509.Certificate

	DocSignKey  *ecdsa.PrivateKey
	DocSignCert *x509.Certificate
}

// NewTestIssuingAuthority builds a fresh root CA and a document
// signing certificate issued by it, both on P-256.
func NewTestIssuingAuthority() (*TestIssuingAuthority, error) {
	rootKey, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		return nil, hostctx.WrapCapability(err, "failed to generate root key")
	}
	rootCert, err := createRootCertificate(rootKey)
	if err != nil {
		return nil, err
	}

	docKey, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		return nil, hostctx.WrapCapability(err, "failed to generate document signing key")
	}
	docCert, err := createEndEntityCertificate(docKey, rootCert, rootKey)
	if err != nil {
		return nil, err
	}

	return &TestIssuingAuthority{
		RootKey:     rootKey,
		RootCert:    rootCert,
		DocSignKey:  docKey,
		DocSignCert: docCert,
	}, nil
}

// TrustAnchors returns a cert pool containing only the root CA.
func (a *TestIssuingAuthority) TrustAnchors() *x509.CertPool {
	pool := x509.NewCertPool()
	pool.AddCert(a.RootCert)
	return pool
}

// CalcKID derives a subject/authority key identifier from an ECDSA
// public key the way the teacher's internal/cryptoroot package did:
// SHA-256 of the uncompressed point.
func CalcKID(pub *ecdsa.PublicKey) []byte {
	b := elliptic.Marshal(pub.Curve, pub.X, pub.Y)
	sum := sha256.Sum256(b)
	return sum[:]
}

func createRootCertificate(key *ecdsa.PrivateKey) (*x509.Certificate, error) {
	template := x509.Certificate{
		SerialNumber:          big.NewInt(1),
		Subject:               pkix.Name{CommonName: "mdoc-verifier test root CA"},
		NotBefore:             time.Now().Add(-time.Hour),
		NotAfter:              time.Now().AddDate(10, 0, 0),
		KeyUsage:              x509.KeyUsageCertSign | x509.KeyUsageCRLSign,
		BasicConstraintsValid: true,
		IsCA:                  true,
		MaxPathLen:            1,
		SubjectKeyId:          CalcKID(&key.PublicKey),
	}

	der, err := x509.CreateCertificate(rand.Reader, &template, &template, &key.PublicKey, key)
	if err != nil {
		return nil, hostctx.WrapCapability(err, "failed to create root certificate")
	}
	cert, err := x509.ParseCertificate(der)
	if err != nil {
		return nil, hostctx.Wrap(hostctx.ErrInvalidPEM, err, "failed to parse freshly created root certificate")
	}
	return cert, nil
}

func createEndEntityCertificate(key *ecdsa.PrivateKey, parent *x509.Certificate, parentKey *ecdsa.PrivateKey) (*x509.Certificate, error) {
	template := x509.Certificate{
		SerialNumber: big.NewInt(2),
		Subject: pkix.Name{
			CommonName: "mdoc-verifier test document signer",
			Country:    []string{"US"},
			Province:   []string{"CA"},
		},
		NotBefore:             time.Now().Add(-time.Hour),
		NotAfter:              time.Now().AddDate(1, 0, 0),
		KeyUsage:              x509.KeyUsageDigitalSignature,
		IsCA:                  false,
		SubjectKeyId:          CalcKID(&key.PublicKey),
		AuthorityKeyId:        CalcKID(&parentKey.PublicKey),
	}

	der, err := x509.CreateCertificate(rand.Reader, &template, parent, &key.PublicKey, parentKey)
	if err != nil {
		return nil, hostctx.WrapCapability(err, "failed to create document signing certificate")
	}
	cert, err := x509.ParseCertificate(der)
	if err != nil {
		return nil, hostctx.Wrap(hostctx.ErrInvalidPEM, err, "failed to parse freshly created document signing certificate")
	}
	return cert, nil
}
