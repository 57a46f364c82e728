package josekey

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"testing"
)

func TestPrivateKeyPEMRoundTrip(t *testing.T) {
	priv, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		t.Fatalf("GenerateKey: %v", err)
	}

	pemBytes, err := ExportPrivateKeyPEM(priv)
	if err != nil {
		t.Fatalf("ExportPrivateKeyPEM: %v", err)
	}

	signer, err := ImportPrivateKeyPEM(pemBytes)
	if err != nil {
		t.Fatalf("ImportPrivateKeyPEM: %v", err)
	}

	gotPub, ok := signer.Public().(*ecdsa.PublicKey)
	if !ok {
		t.Fatalf("expected *ecdsa.PublicKey, got %T", signer.Public())
	}
	if gotPub.X.Cmp(priv.PublicKey.X) != 0 || gotPub.Y.Cmp(priv.PublicKey.Y) != 0 {
		t.Fatal("round-tripped private key does not match original public key")
	}
}

func TestImportPublicKeyPEMUnsupportedBlock(t *testing.T) {
	bogus := []byte("-----BEGIN NOT A KEY-----\nAAAA\n-----END NOT A KEY-----\n")
	if _, err := ImportPublicKeyPEM(bogus); err == nil {
		t.Fatal("expected an error for an unsupported pem block type")
	}
}

func TestImportPublicKeyPEMNoBlock(t *testing.T) {
	if _, err := ImportPublicKeyPEM([]byte("not pem at all")); err == nil {
		t.Fatal("expected an error when no pem block is present")
	}
}

func TestPublicKeyAlgHint(t *testing.T) {
	priv, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		t.Fatalf("GenerateKey: %v", err)
	}
	scheme, err := PublicKeyAlgHint(&priv.PublicKey)
	if err != nil {
		t.Fatalf("PublicKeyAlgHint: %v", err)
	}
	if scheme != SchemeECDSA {
		t.Fatalf("expected SchemeECDSA, got %s", scheme)
	}
}
