// Package keystore provides the factory for creating credential providers
package keystore

import (
	"fmt"

	"github.com/sirosfoundation/go-saml2/internal/config"
)

// NewProvider creates a Provider based on the configuration
func NewProvider(cfg *config.SigningConfig) (Provider, error) {
	switch cfg.Mode {
	case "pkcs11":
		return newPKCS11Provider(cfg)
	case "file":
		return newFileProvider(cfg)
	default:
		return nil, fmt.Errorf("unknown signing mode: %s", cfg.Mode)
	}
}

func newPKCS11Provider(cfg *config.SigningConfig) (Provider, error) {
	p11cfg := &PKCS11Config{
		ModulePath:      cfg.PKCS11.ModulePath,
		SlotLabel:       cfg.PKCS11.SlotLabel,
		PIN:             cfg.PKCS11.PIN,
		KeyLabelPattern: cfg.PKCS11.KeyLabelPattern,
	}
	if cfg.PKCS11.SlotID > 0 {
		slotID := cfg.PKCS11.SlotID
		p11cfg.SlotID = &slotID
	}
	return NewPKCS11Provider(p11cfg)
}

func newFileProvider(cfg *config.SigningConfig) (Provider, error) {
	keyDir := cfg.File.KeyDir
	if keyDir == "" {
		keyDir = "./keys"
	}
	return NewFileProvider(keyDir)
}
