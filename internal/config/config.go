// Package config handles configuration loading for the token service.
//
// Configuration is loaded from a YAML file with support for environment
// variable expansion (${VAR} or $VAR syntax). This allows sensitive values
// like PKCS#11 PINs to be injected at runtime.
//
// # Configuration Sections
//
//   - server: HTTP server settings (port, TLS, base path)
//   - issuer: token issuance (issuer name, signing key ID, token lifetime)
//   - validation: inbound validation (clock skew, valid issuers/audiences)
//   - signing: key management mode (file or pkcs11)
//
// # Example Configuration
//
//	server:
//	  port: 8443
//	  tls:
//	    enabled: true
//	    certFile: /etc/ssl/server.crt
//	    keyFile: /etc/ssl/server.key
//
//	issuer:
//	  name: https://sts.example.com/
//	  keyId: sts-signing-1
//	  tokenLifetime: 1h
//
//	validation:
//	  clockSkew: 5m
//	  validIssuers:
//	    - https://idp.partner.example/
//	  validAudiences:
//	    - urn:rp:example
//
//	signing:
//	  mode: pkcs11
//	  pkcs11:
//	    modulePath: /usr/lib/softhsm/libsofthsm2.so
//	    pin: ${HSM_PIN}
//
// See [Load] for loading configuration from a file.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration structure
type Config struct {
	Server     ServerConfig     `yaml:"server"`
	Issuer     IssuerConfig     `yaml:"issuer"`
	Validation ValidationConfig `yaml:"validation"`
	Signing    SigningConfig    `yaml:"signing"`
}

// ServerConfig holds HTTP server settings
type ServerConfig struct {
	Port     int    `yaml:"port"`
	BasePath string `yaml:"basePath"`
	TLS      struct {
		Enabled  bool   `yaml:"enabled"`
		CertFile string `yaml:"certFile"`
		KeyFile  string `yaml:"keyFile"`
	} `yaml:"tls"`
}

// IssuerConfig holds token issuance settings
type IssuerConfig struct {
	// Name is the issuer URI written on issued assertions
	Name string `yaml:"name"`

	// KeyID selects the signing key and is written into issued signatures
	KeyID string `yaml:"keyId"`

	// TokenLifetime bounds issued assertions (NotOnOrAfter = now + lifetime)
	TokenLifetime time.Duration `yaml:"tokenLifetime"`
}

// ValidationConfig holds inbound validation settings
type ValidationConfig struct {
	ClockSkew      time.Duration `yaml:"clockSkew"`
	MaxTokenSize   int           `yaml:"maxTokenSize"`
	ValidIssuers   []string      `yaml:"validIssuers"`
	ValidAudiences []string      `yaml:"validAudiences"`
}

// SigningConfig holds signing key management settings
type SigningConfig struct {
	// Mode determines how signing keys are managed
	// - "pkcs11": Keys stored in PKCS#11 token (HSM/smart card)
	// - "file": Keys loaded from PEM files (development only)
	Mode string `yaml:"mode"`

	// PKCS11 mode settings
	PKCS11 PKCS11Config `yaml:"pkcs11"`

	// File mode settings (development only)
	File FileKeyConfig `yaml:"file"`
}

// PKCS11Config holds PKCS#11 HSM settings
type PKCS11Config struct {
	// Path to the PKCS#11 library (.so/.dylib/.dll)
	ModulePath string `yaml:"modulePath"`
	// Slot ID or label to use
	SlotID    uint   `yaml:"slotId"`
	SlotLabel string `yaml:"slotLabel"`
	// User PIN
	PIN string `yaml:"pin"`
	// Key label pattern, e.g. "{issuer}-{key-id}-signing"
	KeyLabelPattern string `yaml:"keyLabelPattern"`
}

// FileKeyConfig holds PEM file key settings
type FileKeyConfig struct {
	KeyDir string `yaml:"keyDir"`
}

// Load reads and parses the configuration file, expanding environment
// variables, and applies defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	expanded := os.ExpandEnv(string(data))

	cfg := &Config{}
	if err := yaml.Unmarshal([]byte(expanded), cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	cfg.applyDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Server.Port == 0 {
		c.Server.Port = 8080
	}
	if c.Server.BasePath == "" {
		c.Server.BasePath = "/"
	}
	if c.Issuer.TokenLifetime == 0 {
		c.Issuer.TokenLifetime = time.Hour
	}
	if c.Validation.ClockSkew == 0 {
		c.Validation.ClockSkew = 5 * time.Minute
	}
	if c.Signing.Mode == "" {
		c.Signing.Mode = "file"
	}
	if c.Signing.File.KeyDir == "" {
		c.Signing.File.KeyDir = "./keys"
	}
}

func (c *Config) validate() error {
	if c.Issuer.Name == "" {
		return fmt.Errorf("issuer.name is required")
	}
	if c.Issuer.KeyID == "" {
		return fmt.Errorf("issuer.keyId is required")
	}
	if c.Validation.MaxTokenSize < 0 {
		return fmt.Errorf("validation.maxTokenSize must be positive")
	}
	switch c.Signing.Mode {
	case "file", "pkcs11":
	default:
		return fmt.Errorf("unknown signing mode: %s", c.Signing.Mode)
	}
	if c.Server.TLS.Enabled {
		if c.Server.TLS.CertFile == "" || c.Server.TLS.KeyFile == "" {
			return fmt.Errorf("tls requires certFile and keyFile")
		}
	}
	return nil
}
