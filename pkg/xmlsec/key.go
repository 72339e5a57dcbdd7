// Copyright (c) 2025 SIROS Foundation
// SPDX-License-Identifier: BSD-2-Clause

package xmlsec

import (
	"crypto"
	"crypto/rsa"
	"crypto/x509"
	"errors"
	"fmt"
)

// Algorithm URIs for XML signatures
const (
	AlgorithmRSASHA1   = "http://www.w3.org/2000/09/xmldsig#rsa-sha1"
	AlgorithmRSASHA256 = "http://www.w3.org/2001/04/xmldsig-more#rsa-sha256"
	AlgorithmRSASHA384 = "http://www.w3.org/2001/04/xmldsig-more#rsa-sha384"
	AlgorithmRSASHA512 = "http://www.w3.org/2001/04/xmldsig-more#rsa-sha512"

	// Digest algorithms
	AlgorithmDigestSHA1   = "http://www.w3.org/2000/09/xmldsig#sha1"
	AlgorithmDigestSHA256 = "http://www.w3.org/2001/04/xmlenc#sha256"
	AlgorithmDigestSHA384 = "http://www.w3.org/2001/04/xmlenc#sha384"
	AlgorithmDigestSHA512 = "http://www.w3.org/2001/04/xmlenc#sha512"

	// Canonicalization and transform algorithms
	AlgorithmC14N               = "http://www.w3.org/2001/10/xml-exc-c14n#"
	AlgorithmC14NWithComments   = "http://www.w3.org/2001/10/xml-exc-c14n#WithComments"
	AlgorithmEnvelopedSignature = "http://www.w3.org/2000/09/xmldsig#enveloped-signature"
)

var (
	// ErrUnsupportedAlgorithm is returned for signature or digest algorithm
	// URIs this package does not implement
	ErrUnsupportedAlgorithm = errors.New("unsupported algorithm")
	// ErrKeyMismatch is returned when a signature does not verify under a key
	ErrKeyMismatch = errors.New("signature does not verify under key")
)

// VerificationKey verifies raw signature bytes over a signed byte stream.
//
// Implementations are borrowed by a validation call and must not be mutated
// for its duration.
type VerificationKey interface {
	// KeyID returns the key identifier used to match a signature's KeyInfo,
	// or "" when the key carries none.
	KeyID() string

	// Verify checks signature over signed using the given XML signature
	// algorithm URI. A nil return means the signature is valid.
	Verify(algorithm string, signed, signature []byte) error
}

// RSAVerificationKey verifies RSA PKCS#1 v1.5 XML signatures.
type RSAVerificationKey struct {
	keyID string
	pub   *rsa.PublicKey
	cert  *x509.Certificate
}

// NewRSAVerificationKey wraps an RSA public key with a key identifier.
func NewRSAVerificationKey(pub *rsa.PublicKey, keyID string) *RSAVerificationKey {
	return &RSAVerificationKey{keyID: keyID, pub: pub}
}

// NewCertificateVerificationKey wraps the RSA public key of a certificate.
func NewCertificateVerificationKey(cert *x509.Certificate, keyID string) (*RSAVerificationKey, error) {
	if cert == nil {
		return nil, fmt.Errorf("certificate is required")
	}
	pub, ok := cert.PublicKey.(*rsa.PublicKey)
	if !ok {
		return nil, fmt.Errorf("certificate does not contain RSA public key")
	}
	return &RSAVerificationKey{keyID: keyID, pub: pub, cert: cert}, nil
}

// KeyID returns the configured key identifier.
func (k *RSAVerificationKey) KeyID() string { return k.keyID }

// Certificate returns the certificate the key was built from, if any.
func (k *RSAVerificationKey) Certificate() *x509.Certificate { return k.cert }

// Public returns the underlying RSA public key.
func (k *RSAVerificationKey) Public() *rsa.PublicKey { return k.pub }

// Verify checks an RSA PKCS#1 v1.5 signature.
func (k *RSAVerificationKey) Verify(algorithm string, signed, signature []byte) error {
	hash, err := hashForSignatureAlgorithm(algorithm)
	if err != nil {
		return err
	}
	h := hash.New()
	h.Write(signed)
	if err := rsa.VerifyPKCS1v15(k.pub, hash, h.Sum(nil), signature); err != nil {
		return fmt.Errorf("%w: %v", ErrKeyMismatch, err)
	}
	return nil
}

// SigningCredentials bundle the private key material used to sign an
// assertion. Signer is any crypto.Signer (file-loaded key, PKCS#11 handle).
type SigningCredentials struct {
	Signer      crypto.Signer
	Certificate *x509.Certificate

	// KeyID is written into the signature's KeyInfo as the key name so
	// verifiers can select the matching verification key.
	KeyID string

	// SignatureAlgorithm defaults to RSA-SHA256 when empty.
	SignatureAlgorithm string

	// DigestAlgorithm defaults to SHA-256 when empty.
	DigestAlgorithm string
}

// EncryptingCredentials describe assertion encryption key material.
// Encryption is not implemented; the token handler rejects descriptors
// carrying these at build time.
type EncryptingCredentials struct {
	Certificate      *x509.Certificate
	KeyWrapAlgorithm string
}

// signatureAlgorithm returns the effective signature algorithm URI.
func (c *SigningCredentials) signatureAlgorithm() string {
	if c.SignatureAlgorithm == "" {
		return AlgorithmRSASHA256
	}
	return c.SignatureAlgorithm
}

// digestAlgorithm returns the effective digest algorithm URI.
func (c *SigningCredentials) digestAlgorithm() string {
	if c.DigestAlgorithm == "" {
		return AlgorithmDigestSHA256
	}
	return c.DigestAlgorithm
}

// VerificationKey derives the matching verification key from the signer's
// public half, carrying the credentials' key identifier.
func (c *SigningCredentials) VerificationKey() (*RSAVerificationKey, error) {
	pub, ok := c.Signer.Public().(*rsa.PublicKey)
	if !ok {
		return nil, fmt.Errorf("expected *rsa.PublicKey, got %T", c.Signer.Public())
	}
	return &RSAVerificationKey{keyID: c.KeyID, pub: pub, cert: c.Certificate}, nil
}

func hashForSignatureAlgorithm(algorithm string) (crypto.Hash, error) {
	switch algorithm {
	case AlgorithmRSASHA1:
		return crypto.SHA1, nil
	case AlgorithmRSASHA256:
		return crypto.SHA256, nil
	case AlgorithmRSASHA384:
		return crypto.SHA384, nil
	case AlgorithmRSASHA512:
		return crypto.SHA512, nil
	default:
		return 0, fmt.Errorf("%w: %s", ErrUnsupportedAlgorithm, algorithm)
	}
}

func hashForDigestAlgorithm(algorithm string) (crypto.Hash, error) {
	switch algorithm {
	case AlgorithmDigestSHA1:
		return crypto.SHA1, nil
	case AlgorithmDigestSHA256:
		return crypto.SHA256, nil
	case AlgorithmDigestSHA384:
		return crypto.SHA384, nil
	case AlgorithmDigestSHA512:
		return crypto.SHA512, nil
	default:
		return 0, fmt.Errorf("%w: %s", ErrUnsupportedAlgorithm, algorithm)
	}
}
