//go:build pkcs11

// Package keystore provides the PKCS#11 signing credential implementation
package keystore

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/ThalesGroup/crypto11"

	"github.com/sirosfoundation/go-saml2/pkg/xmlsec"
)

// PKCS11Provider implements Provider using a PKCS#11 token (HSM/smart card)
type PKCS11Provider struct {
	ctx             *crypto11.Context
	keyLabelPattern string
	mu              sync.RWMutex
	creds           map[string]*xmlsec.SigningCredentials
}

// PKCS11Config holds configuration for the PKCS#11 provider
type PKCS11Config struct {
	// ModulePath is the path to the PKCS#11 library (.so/.dylib/.dll)
	ModulePath string

	// SlotID is the slot number to use (optional if SlotLabel is provided)
	SlotID *uint

	// SlotLabel is the token label to search for (optional if SlotID is provided)
	SlotLabel string

	// PIN is the user PIN for authentication
	PIN string

	// KeyLabelPattern is the pattern for key labels.
	// Use {issuer} and {key-id} as placeholders, e.g., "{issuer}-{key-id}-signing"
	KeyLabelPattern string
}

// NewPKCS11Provider creates a new PKCS#11 credential provider
func NewPKCS11Provider(cfg *PKCS11Config) (*PKCS11Provider, error) {
	config := &crypto11.Config{
		Path: cfg.ModulePath,
		Pin:  cfg.PIN,
	}

	if cfg.SlotID != nil {
		slotID := int(*cfg.SlotID)
		config.SlotNumber = &slotID
	}
	if cfg.SlotLabel != "" {
		config.TokenLabel = cfg.SlotLabel
	}

	ctx, err := crypto11.Configure(config)
	if err != nil {
		return nil, fmt.Errorf("configuring PKCS#11: %w", err)
	}

	pattern := cfg.KeyLabelPattern
	if pattern == "" {
		pattern = "{issuer}-{key-id}-signing"
	}

	return &PKCS11Provider{
		ctx:             ctx,
		keyLabelPattern: pattern,
		creds:           make(map[string]*xmlsec.SigningCredentials),
	}, nil
}

// Credentials returns signing credentials for the specified issuer and key ID
func (p *PKCS11Provider) Credentials(ctx context.Context, issuer, keyID string) (*xmlsec.SigningCredentials, error) {
	cacheKey := issuer + ":" + keyID

	p.mu.RLock()
	if creds, ok := p.creds[cacheKey]; ok {
		p.mu.RUnlock()
		return creds, nil
	}
	p.mu.RUnlock()

	label := p.keyLabel(issuer, keyID)
	signer, err := p.ctx.FindKeyPair(nil, []byte(label))
	if err != nil {
		return nil, fmt.Errorf("finding key pair %q: %w", label, err)
	}
	if signer == nil {
		return nil, ErrKeyNotFound
	}

	creds := &xmlsec.SigningCredentials{
		Signer:             signer,
		KeyID:              keyID,
		SignatureAlgorithm: xmlsec.AlgorithmRSASHA256,
		DigestAlgorithm:    xmlsec.AlgorithmDigestSHA256,
	}
	if cert, err := p.ctx.FindCertificate(nil, []byte(label), nil); err == nil && cert != nil {
		creds.Certificate = cert
	}

	p.mu.Lock()
	p.creds[cacheKey] = creds
	p.mu.Unlock()

	return creds, nil
}

// VerificationKeys returns verification keys for the issuer's certificates
func (p *PKCS11Provider) VerificationKeys(ctx context.Context, issuer string) ([]xmlsec.VerificationKey, error) {
	keys, err := p.ListKeys(ctx, issuer)
	if err != nil {
		return nil, err
	}
	var out []xmlsec.VerificationKey
	for _, info := range keys {
		label := p.keyLabel(issuer, info.KeyID)
		cert, err := p.ctx.FindCertificate(nil, []byte(label), nil)
		if err != nil || cert == nil {
			continue
		}
		key, err := xmlsec.NewCertificateVerificationKey(cert, info.KeyID)
		if err != nil {
			continue
		}
		out = append(out, key)
	}
	return out, nil
}

// ListKeys returns metadata for the issuer's keys
func (p *PKCS11Provider) ListKeys(ctx context.Context, issuer string) ([]KeyInfo, error) {
	certs, err := p.ctx.FindAllPairedCertificates()
	if err != nil {
		return nil, fmt.Errorf("enumerating certificates: %w", err)
	}

	prefix := p.keyLabelPrefix(issuer)
	var keys []KeyInfo
	for _, chain := range certs {
		if len(chain.Certificate) == 0 {
			continue
		}
		cert := chain.Leaf
		if cert == nil {
			continue
		}
		label := cert.Subject.CommonName
		if prefix != "" && !strings.HasPrefix(label, prefix) {
			continue
		}
		keys = append(keys, KeyInfo{
			KeyID:              strings.TrimPrefix(label, prefix),
			Algorithm:          keyAlgorithmName(cert.PublicKey),
			KeySize:            keySize(cert.PublicKey),
			NotBefore:          cert.NotBefore,
			NotAfter:           cert.NotAfter,
			CertificateSubject: cert.Subject.String(),
		})
	}
	return keys, nil
}

// Close releases the PKCS#11 context
func (p *PKCS11Provider) Close() error {
	p.mu.Lock()
	p.creds = make(map[string]*xmlsec.SigningCredentials)
	p.mu.Unlock()
	return p.ctx.Close()
}

func (p *PKCS11Provider) keyLabel(issuer, keyID string) string {
	label := strings.ReplaceAll(p.keyLabelPattern, "{issuer}", issuer)
	return strings.ReplaceAll(label, "{key-id}", keyID)
}

func (p *PKCS11Provider) keyLabelPrefix(issuer string) string {
	label := strings.ReplaceAll(p.keyLabelPattern, "{issuer}", issuer)
	if i := strings.Index(label, "{key-id}"); i >= 0 {
		return label[:i]
	}
	return label
}
