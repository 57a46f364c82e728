package cosex

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"testing"

	"github.com/kokukuma/mdoc-verifier/hostctx"
)

func TestMac0ComputeVerifyRoundTrip(t *testing.T) {
	key := []byte("0123456789abcdef0123456789abcde")
	m, err := NewMac0(AlgorithmHMAC256, []byte("payload"))
	if err != nil {
		t.Fatalf("NewMac0: %v", err)
	}

	crypto := &testHMACCryptoContext{key: key}
	if err := m.Compute(context.Background(), crypto, key, nil); err != nil {
		t.Fatalf("Compute: %v", err)
	}

	if err := m.Verify(context.Background(), crypto, key, nil); err != nil {
		t.Fatalf("Verify: %v", err)
	}

	// Tamper with the tag; verification must fail.
	m.Tag[0] ^= 0xFF
	if err := m.Verify(context.Background(), crypto, key, nil); err == nil {
		t.Fatal("expected verify to fail after tampering with tag")
	}
}

// testHMACCryptoContext implements just enough of hostctx.CryptoContext
// for Mac0's Compute/Verify to exercise real HMAC-SHA256 math.
type testHMACCryptoContext struct{ key []byte }

func (c *testHMACCryptoContext) Digest(ctx context.Context, alg hostctx.DigestAlg, data []byte) ([]byte, error) {
	return nil, nil
}

func (c *testHMACCryptoContext) Sign(ctx context.Context, alg hostctx.SignAlg, key any, data []byte) ([]byte, error) {
	h := hmac.New(sha256.New, key.([]byte))
	h.Write(data)
	return h.Sum(nil), nil
}

func (c *testHMACCryptoContext) Verify(ctx context.Context, alg hostctx.SignAlg, key any, data, sig []byte) (bool, error) {
	h := hmac.New(sha256.New, key.([]byte))
	h.Write(data)
	return hmac.Equal(h.Sum(nil), sig), nil
}

func (c *testHMACCryptoContext) CalculateEphemeralMacKey(ctx context.Context, devicePrivate, readerPublic any, sessionTranscriptBytes []byte) ([]byte, error) {
	return c.key, nil
}

func (c *testHMACCryptoContext) GetRandomValues(ctx context.Context, n int) ([]byte, error) {
	return make([]byte, n), nil
}
