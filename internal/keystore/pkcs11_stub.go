//go:build !pkcs11

// Package keystore provides a stub for PKCS#11 when not compiled with the pkcs11 tag.
package keystore

import (
	"context"
	"errors"

	"github.com/sirosfoundation/go-saml2/pkg/xmlsec"
)

// PKCS11Provider is a stub that returns an error when PKCS#11 support is not compiled in.
type PKCS11Provider struct{}

// PKCS11Config holds configuration for the PKCS#11 provider
type PKCS11Config struct {
	ModulePath      string
	SlotID          *uint
	SlotLabel       string
	PIN             string
	KeyLabelPattern string
}

// ErrPKCS11NotSupported is returned when PKCS#11 operations are attempted
// but the binary was not compiled with PKCS#11 support.
var ErrPKCS11NotSupported = errors.New("PKCS#11 support not compiled in (build with -tags pkcs11)")

// NewPKCS11Provider returns an error because PKCS#11 is not compiled in.
func NewPKCS11Provider(cfg *PKCS11Config) (*PKCS11Provider, error) {
	return nil, ErrPKCS11NotSupported
}

// Credentials returns ErrPKCS11NotSupported.
func (p *PKCS11Provider) Credentials(ctx context.Context, issuer, keyID string) (*xmlsec.SigningCredentials, error) {
	return nil, ErrPKCS11NotSupported
}

// VerificationKeys returns ErrPKCS11NotSupported.
func (p *PKCS11Provider) VerificationKeys(ctx context.Context, issuer string) ([]xmlsec.VerificationKey, error) {
	return nil, ErrPKCS11NotSupported
}

// ListKeys returns ErrPKCS11NotSupported.
func (p *PKCS11Provider) ListKeys(ctx context.Context, issuer string) ([]KeyInfo, error) {
	return nil, ErrPKCS11NotSupported
}

// Close is a no-op.
func (p *PKCS11Provider) Close() error { return nil }
