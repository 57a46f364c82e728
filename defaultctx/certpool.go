// Package defaultctx provides concrete CryptoContext, X509Context, and
// JoseContext implementations (spec.md §6) built on the standard
// library plus the same third-party crypto stack the rest of this
// module already depends on. Callers that don't need to route key
// operations through a remote HSM or enclave can wire these straight
// into verifier.Verifier, builder, and jarm.
package defaultctx

import (
	"crypto/x509"
	"log"
	"os"
	"path/filepath"
	"strings"

	"github.com/kokukuma/mdoc-verifier/hostctx"
)

// LoadRootCertificate reads a single PEM file of one or more CA
// certificates into a cert pool, generalizing the teacher's
// mdoc/load_pem.go:GetRootCertificate.
func LoadRootCertificate(path string) (*x509.CertPool, error) {
	pemBytes, err := os.ReadFile(path)
	if err != nil {
		return nil, hostctx.Wrap(hostctx.ErrInvalidPEM, err, "failed to read root certificate file: %s", path)
	}

	roots := x509.NewCertPool()
	if ok := roots.AppendCertsFromPEM(pemBytes); !ok {
		return nil, hostctx.New(hostctx.ErrInvalidPEM, "no certificates found in %s", path)
	}
	return roots, nil
}

// LoadRootCertificates reads every *.pem file in a directory into a
// single cert pool, generalizing GetRootCertificates.
func LoadRootCertificates(dirPath string) (*x509.CertPool, error) {
	pems, err := loadCertificatesFromDirectory(dirPath)
	if err != nil {
		return nil, err
	}

	roots := x509.NewCertPool()
	for name, pemBytes := range pems {
		if ok := roots.AppendCertsFromPEM(pemBytes); !ok {
			log.Printf("defaultctx: failed to load pem: %s", name)
		}
	}
	return roots, nil
}

func loadCertificatesFromDirectory(dirPath string) (map[string][]byte, error) {
	pems := map[string][]byte{}

	files, err := os.ReadDir(dirPath)
	if err != nil {
		return nil, hostctx.Wrap(hostctx.ErrInvalidPEM, err, "failed to read directory: %s", dirPath)
	}

	for _, file := range files {
		if file.IsDir() || !strings.HasSuffix(file.Name(), ".pem") {
			continue
		}
		filePath := filepath.Join(dirPath, file.Name())
		data, err := os.ReadFile(filePath)
		if err != nil {
			log.Printf("defaultctx: failed to read file: %s, err: %v", filePath, err)
			continue
		}
		pems[file.Name()] = data
	}
	if len(pems) == 0 {
		return nil, hostctx.New(hostctx.ErrInvalidPEM, "no .pem files found under %s", dirPath)
	}
	return pems, nil
}
