// Package keystore provides the file-based signing credential implementation
package keystore

import (
	"context"
	"crypto"
	"crypto/ecdsa"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/sirosfoundation/go-saml2/pkg/xmlsec"
)

// FileProvider implements Provider using PEM files on disk
//
// This is intended for development and testing only. In production,
// use PKCS#11 key storage.
//
// Key files are expected at: {keyDir}/{issuer}/{keyID}.key
// Certificate files at: {keyDir}/{issuer}/{keyID}.crt
type FileProvider struct {
	keyDir string
	mu     sync.RWMutex
	creds  map[string]*xmlsec.SigningCredentials
}

// NewFileProvider creates a new file-based credential provider
func NewFileProvider(keyDir string) (*FileProvider, error) {
	info, err := os.Stat(keyDir)
	if err != nil {
		return nil, fmt.Errorf("checking key directory: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("key directory is not a directory: %s", keyDir)
	}

	return &FileProvider{
		keyDir: keyDir,
		creds:  make(map[string]*xmlsec.SigningCredentials),
	}, nil
}

// Credentials returns signing credentials for the specified issuer and key ID
func (p *FileProvider) Credentials(ctx context.Context, issuer, keyID string) (*xmlsec.SigningCredentials, error) {
	cacheKey := issuer + ":" + keyID

	// Check cache first
	p.mu.RLock()
	if creds, ok := p.creds[cacheKey]; ok {
		p.mu.RUnlock()
		return creds, nil
	}
	p.mu.RUnlock()

	// Load from disk
	creds, err := p.loadCredentials(issuer, keyID)
	if err != nil {
		return nil, err
	}

	// Cache them
	p.mu.Lock()
	p.creds[cacheKey] = creds
	p.mu.Unlock()

	return creds, nil
}

// VerificationKeys returns verification keys for all of the issuer's certificates
func (p *FileProvider) VerificationKeys(ctx context.Context, issuer string) ([]xmlsec.VerificationKey, error) {
	issuerDir := filepath.Join(p.keyDir, issuer)
	entries, err := os.ReadDir(issuerDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading issuer directory: %w", err)
	}

	var keys []xmlsec.VerificationKey
	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != ".crt" {
			continue
		}
		keyID := entry.Name()[:len(entry.Name())-4]
		cert, err := loadCertificate(filepath.Join(issuerDir, entry.Name()))
		if err != nil {
			continue
		}
		key, err := xmlsec.NewCertificateVerificationKey(cert, keyID)
		if err != nil {
			continue // Skip non-RSA certificates
		}
		keys = append(keys, key)
	}
	return keys, nil
}

// ListKeys returns metadata for all of the issuer's keys
func (p *FileProvider) ListKeys(ctx context.Context, issuer string) ([]KeyInfo, error) {
	issuerDir := filepath.Join(p.keyDir, issuer)
	entries, err := os.ReadDir(issuerDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading issuer directory: %w", err)
	}

	var keys []KeyInfo
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		if filepath.Ext(name) != ".key" {
			continue
		}
		keyID := name[:len(name)-4]

		// Try to load the certificate for metadata
		cert, err := loadCertificate(filepath.Join(issuerDir, keyID+".crt"))
		if err != nil {
			continue // Skip keys without certificates
		}

		keys = append(keys, KeyInfo{
			KeyID:              keyID,
			Algorithm:          keyAlgorithmName(cert.PublicKey),
			KeySize:            keySize(cert.PublicKey),
			NotBefore:          cert.NotBefore,
			NotAfter:           cert.NotAfter,
			CertificateSubject: cert.Subject.String(),
		})
	}

	return keys, nil
}

// Close releases resources
func (p *FileProvider) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.creds = make(map[string]*xmlsec.SigningCredentials)
	return nil
}

func (p *FileProvider) loadCredentials(issuer, keyID string) (*xmlsec.SigningCredentials, error) {
	keyPath := filepath.Join(p.keyDir, issuer, keyID+".key")
	certPath := filepath.Join(p.keyDir, issuer, keyID+".crt")

	// Load private key
	keyPEM, err := os.ReadFile(keyPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrKeyNotFound
		}
		return nil, fmt.Errorf("reading key file: %w", err)
	}

	key, err := parsePrivateKey(keyPEM)
	if err != nil {
		return nil, fmt.Errorf("parsing private key: %w", err)
	}

	// Load certificate
	cert, err := loadCertificate(certPath)
	if err != nil {
		return nil, fmt.Errorf("loading certificate: %w", err)
	}

	return &xmlsec.SigningCredentials{
		Signer:             key,
		Certificate:        cert,
		KeyID:              keyID,
		SignatureAlgorithm: xmlsec.AlgorithmRSASHA256,
		DigestAlgorithm:    xmlsec.AlgorithmDigestSHA256,
	}, nil
}

func parsePrivateKey(pemData []byte) (crypto.Signer, error) {
	block, _ := pem.Decode(pemData)
	if block == nil {
		return nil, fmt.Errorf("no PEM block found")
	}

	switch block.Type {
	case "RSA PRIVATE KEY":
		return x509.ParsePKCS1PrivateKey(block.Bytes)
	case "EC PRIVATE KEY":
		return x509.ParseECPrivateKey(block.Bytes)
	case "PRIVATE KEY":
		key, err := x509.ParsePKCS8PrivateKey(block.Bytes)
		if err != nil {
			return nil, err
		}
		signer, ok := key.(crypto.Signer)
		if !ok {
			return nil, fmt.Errorf("key is not a signer")
		}
		return signer, nil
	default:
		return nil, fmt.Errorf("unsupported key type: %s", block.Type)
	}
}

func loadCertificate(path string) (*x509.Certificate, error) {
	certPEM, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading certificate file: %w", err)
	}

	block, _ := pem.Decode(certPEM)
	if block == nil {
		return nil, fmt.Errorf("no PEM block found")
	}

	return x509.ParseCertificate(block.Bytes)
}

func keyAlgorithmName(pub crypto.PublicKey) string {
	switch pub.(type) {
	case *ecdsa.PublicKey:
		return "EC"
	case *rsa.PublicKey:
		return "RSA"
	default:
		return "Unknown"
	}
}

func keySize(pub crypto.PublicKey) int {
	switch k := pub.(type) {
	case *ecdsa.PublicKey:
		return k.Curve.Params().BitSize
	case *rsa.PublicKey:
		return k.N.BitLen()
	default:
		return 0
	}
}
