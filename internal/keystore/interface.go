// Package keystore provides signing key management for the token service
//
// This package defines a unified interface for sourcing SAML signing
// credentials that can be implemented by different backends:
//
//   - PKCS#11: Keys stored in hardware security modules (HSM) or smart cards
//   - File-based: Keys loaded from PEM files (development only)
//
// The abstraction allows the token service to issue assertions without
// knowing the underlying key storage mechanism.
package keystore

import (
	"context"
	"errors"
	"time"

	"github.com/sirosfoundation/go-saml2/pkg/xmlsec"
)

// Common errors
var (
	ErrKeyNotFound = errors.New("signing key not found")
	ErrKeyLocked   = errors.New("signing key is locked")
	ErrPINRequired = errors.New("PIN required to unlock key")
)

// Provider sources signing credentials and verification keys for an issuer
//
// Implementations must be safe for concurrent use.
type Provider interface {
	// Credentials returns signing credentials for the issuer's key.
	// The key identifier is written into issued signatures so relying
	// parties can select the matching verification key.
	Credentials(ctx context.Context, issuer, keyID string) (*xmlsec.SigningCredentials, error)

	// VerificationKeys returns the verification keys for all of the
	// issuer's certificates. Certificates are public; no authentication
	// is required.
	VerificationKeys(ctx context.Context, issuer string) ([]xmlsec.VerificationKey, error)

	// ListKeys returns metadata for all of the issuer's keys.
	ListKeys(ctx context.Context, issuer string) ([]KeyInfo, error)

	// Close releases any resources held by the provider.
	Close() error
}

// KeyInfo describes a signing key
type KeyInfo struct {
	// KeyID is the unique identifier for this key within the issuer
	KeyID string

	// Algorithm is the key algorithm name ("RSA", "EC")
	Algorithm string

	// KeySize is the key size in bits
	KeySize int

	// NotBefore and NotAfter are the certificate validity bounds
	NotBefore time.Time
	NotAfter  time.Time

	// CertificateSubject is the certificate subject DN
	CertificateSubject string
}
