package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoad(t *testing.T) {
	path := writeConfig(t, `
server:
  port: 9443
issuer:
  name: https://sts.example.com/
  keyId: sts-1
  tokenLifetime: 30m
validation:
  clockSkew: 2m
  validAudiences:
    - urn:rp:example
signing:
  mode: file
  file:
    keyDir: /tmp/keys
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 9443, cfg.Server.Port)
	assert.Equal(t, "https://sts.example.com/", cfg.Issuer.Name)
	assert.Equal(t, "sts-1", cfg.Issuer.KeyID)
	assert.Equal(t, 30*time.Minute, cfg.Issuer.TokenLifetime)
	assert.Equal(t, 2*time.Minute, cfg.Validation.ClockSkew)
	assert.Equal(t, []string{"urn:rp:example"}, cfg.Validation.ValidAudiences)
	assert.Equal(t, "file", cfg.Signing.Mode)
	assert.Equal(t, "/tmp/keys", cfg.Signing.File.KeyDir)
}

func TestLoad_Defaults(t *testing.T) {
	path := writeConfig(t, `
issuer:
  name: https://sts.example.com/
  keyId: sts-1
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "/", cfg.Server.BasePath)
	assert.Equal(t, time.Hour, cfg.Issuer.TokenLifetime)
	assert.Equal(t, 5*time.Minute, cfg.Validation.ClockSkew)
	assert.Equal(t, "file", cfg.Signing.Mode)
	assert.Equal(t, "./keys", cfg.Signing.File.KeyDir)
}

func TestLoad_EnvExpansion(t *testing.T) {
	t.Setenv("TEST_HSM_PIN", "123456")
	path := writeConfig(t, `
issuer:
  name: https://sts.example.com/
  keyId: sts-1
signing:
  mode: pkcs11
  pkcs11:
    modulePath: /usr/lib/softhsm/libsofthsm2.so
    pin: ${TEST_HSM_PIN}
`)

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "123456", cfg.Signing.PKCS11.PIN)
}

func TestLoad_Validation(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{
			name:    "missing issuer name",
			content: "issuer:\n  keyId: sts-1\n",
		},
		{
			name:    "missing key id",
			content: "issuer:\n  name: https://sts.example.com/\n",
		},
		{
			name:    "unknown signing mode",
			content: "issuer:\n  name: x\n  keyId: k\nsigning:\n  mode: vault\n",
		},
		{
			name:    "tls without files",
			content: "issuer:\n  name: x\n  keyId: k\nserver:\n  tls:\n    enabled: true\n",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tc.content))
			assert.Error(t, err)
		})
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}
