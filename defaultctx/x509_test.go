package defaultctx

import (
	"context"
	"crypto/x509"
	"testing"
)

func TestValidateCertificateChain(t *testing.T) {
	authority, err := NewTestIssuingAuthority()
	if err != nil {
		t.Fatalf("NewTestIssuingAuthority: %v", err)
	}

	x509ctx := X509Context{}
	chain := []*x509.Certificate{authority.DocSignCert}

	if err := x509ctx.ValidateCertificateChain(context.Background(), chain, authority.TrustAnchors()); err != nil {
		t.Fatalf("expected document signing cert to validate against its own root: %v", err)
	}

	untrusted, err := NewTestIssuingAuthority()
	if err != nil {
		t.Fatalf("NewTestIssuingAuthority (untrusted): %v", err)
	}
	if err := x509ctx.ValidateCertificateChain(context.Background(), chain, untrusted.TrustAnchors()); err == nil {
		t.Fatal("expected validation to fail against an unrelated root")
	}
}

func TestValidateCertificateChainEmpty(t *testing.T) {
	x509ctx := X509Context{}
	if err := x509ctx.ValidateCertificateChain(context.Background(), nil, x509.NewCertPool()); err == nil {
		t.Fatal("expected an error for an empty certificate chain")
	}
}

func TestGetCertificateValidityData(t *testing.T) {
	authority, err := NewTestIssuingAuthority()
	if err != nil {
		t.Fatalf("NewTestIssuingAuthority: %v", err)
	}

	x509ctx := X509Context{}
	notBefore, notAfter, err := x509ctx.GetCertificateValidityData(context.Background(), authority.DocSignCert)
	if err != nil {
		t.Fatalf("GetCertificateValidityData: %v", err)
	}
	if notBefore == "" || notAfter == "" {
		t.Fatal("expected non-empty validity bounds")
	}
}
