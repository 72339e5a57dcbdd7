// Copyright (c) 2025 SIROS Foundation
// SPDX-License-Identifier: BSD-2-Clause

package token

import (
	"bytes"
	"fmt"
	"io"

	"github.com/beevik/etree"

	"github.com/sirosfoundation/go-saml2/pkg/claims"
	"github.com/sirosfoundation/go-saml2/pkg/saml"
	"github.com/sirosfoundation/go-saml2/pkg/xmlsec"
)

// DefaultMaxTokenSize is the input size gate applied when the handler
// configuration does not set one.
const DefaultMaxTokenSize = 2 * 1024 * 1024

// SecurityToken wraps an assertion together with the signing credentials a
// created token will be signed with on write.
type SecurityToken struct {
	Assertion *saml.Assertion

	// SigningCredentials are set by CreateToken from the descriptor and
	// consumed by WriteToken. Nil for validated inbound tokens.
	SigningCredentials *xmlsec.SigningCredentials
}

// HandlerConfig holds construction options for a Handler. Zero values
// select the defaults.
type HandlerConfig struct {
	Serializer       *saml.Serializer
	TransformFactory xmlsec.TransformFactory

	// MaxTokenSize gates input length in bytes. Zero selects
	// DefaultMaxTokenSize; values below 1 are rejected.
	MaxTokenSize int
}

// Handler is the SAML 2.0 security token handler. Construct once and share;
// it is safe for concurrent use as long as the Set* methods are not called
// with validations in flight.
type Handler struct {
	serializer   *saml.Serializer
	transforms   xmlsec.TransformFactory
	maxTokenSize int
}

// NewHandler creates a handler from the given configuration.
func NewHandler(config HandlerConfig) (*Handler, error) {
	if config.MaxTokenSize < 0 {
		return nil, fmt.Errorf("%w: max token size must be at least 1", ErrInvalidConfiguration)
	}
	h := &Handler{
		serializer:   config.Serializer,
		transforms:   config.TransformFactory,
		maxTokenSize: config.MaxTokenSize,
	}
	if h.serializer == nil {
		h.serializer = &saml.Serializer{}
	}
	if h.transforms == nil {
		h.transforms = xmlsec.NewDefaultTransformFactory()
	}
	if h.maxTokenSize == 0 {
		h.maxTokenSize = DefaultMaxTokenSize
	}
	return h, nil
}

// MaxTokenSize returns the configured input size gate in bytes.
func (h *Handler) MaxTokenSize() int { return h.maxTokenSize }

// SetMaxTokenSize reconfigures the input size gate. Must not be called
// concurrently with in-flight validations.
func (h *Handler) SetMaxTokenSize(n int) error {
	if n < 1 {
		return fmt.Errorf("%w: max token size must be at least 1", ErrInvalidConfiguration)
	}
	h.maxTokenSize = n
	return nil
}

// SetSerializer reconfigures the assertion serializer. Must not be called
// concurrently with in-flight validations.
func (h *Handler) SetSerializer(s *saml.Serializer) error {
	if s == nil {
		return fmt.Errorf("%w: serializer is required", ErrInvalidConfiguration)
	}
	h.serializer = s
	return nil
}

// SetTransformFactory reconfigures the canonicalization transform factory.
// Must not be called concurrently with in-flight validations.
func (h *Handler) SetTransformFactory(tf xmlsec.TransformFactory) error {
	if tf == nil {
		return fmt.Errorf("%w: transform factory is required", ErrInvalidConfiguration)
	}
	h.transforms = tf
	return nil
}

// CanReadToken reports whether the bytes look like a readable SAML 2.0
// assertion: within the size gate, well-formed, rooted at
// {urn:oasis:names:tc:SAML:2.0:assertion}Assertion. It never fails.
func (h *Handler) CanReadToken(token []byte) bool {
	if len(token) == 0 || len(token) > h.maxTokenSize {
		return false
	}
	if len(bytes.TrimSpace(token)) == 0 {
		return false
	}
	doc := etree.NewDocument()
	if err := doc.ReadFromBytes(token); err != nil {
		return false
	}
	return h.serializer.IsAssertion(doc.Root())
}

// ReadToken parses the bytes into a security token without validating it.
func (h *Handler) ReadToken(token []byte) (*SecurityToken, error) {
	assertion, err := h.readAssertion(token)
	if err != nil {
		return nil, err
	}
	return &SecurityToken{Assertion: assertion}, nil
}

// readAssertion applies the size gate and parses the assertion DOM.
func (h *Handler) readAssertion(token []byte) (*saml.Assertion, error) {
	if len(token) > h.maxTokenSize {
		return nil, fmt.Errorf("%w: %d bytes, maximum %d", ErrOversizeInput, len(token), h.maxTokenSize)
	}
	doc := etree.NewDocument()
	if err := doc.ReadFromBytes(token); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	root := doc.Root()
	if !h.serializer.IsAssertion(root) {
		return nil, fmt.Errorf("%w: root element is not a SAML 2.0 Assertion", ErrMalformed)
	}
	assertion, err := h.serializer.ReadAssertion(root)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	return assertion, nil
}

// ValidateToken runs the full validation pipeline over the token bytes and
// returns the claims identity together with the validated token. A nil
// error means every stage passed; any failure is terminal and leaves no
// state behind.
func (h *Handler) ValidateToken(token []byte, params *ValidationParameters) (*claims.Identity, *SecurityToken, error) {
	if params == nil {
		return nil, nil, fmt.Errorf("%w: validation parameters are required", ErrInvalidConfiguration)
	}

	assertion, err := h.validateSignature(token, params)
	if err != nil {
		return nil, nil, err
	}

	if err := validateConditions(assertion, params); err != nil {
		return nil, nil, err
	}
	if err := validateSubject(assertion, params); err != nil {
		return nil, nil, err
	}

	issuerValidator := params.IssuerValidator
	if issuerValidator == nil {
		issuerValidator = ValidateIssuer
	}
	issuer, err := issuerValidator(assertion.Issuer.Value, assertion, params)
	if err != nil {
		return nil, nil, err
	}
	if issuer == "" {
		issuer = DefaultIssuer
	}

	if assertion.Conditions != nil && assertion.Conditions.OneTimeUse && params.ReplayValidator != nil {
		expires := assertion.Conditions.NotOnOrAfter
		if err := params.ReplayValidator(token, expires, params); err != nil {
			return nil, nil, err
		}
	}

	tok := &SecurityToken{Assertion: assertion}
	identity, err := h.createIdentity(assertion, issuer, tok, params)
	if err != nil {
		return nil, nil, err
	}
	return identity, tok, nil
}

// WriteToken renders the token as XML, signing it when the token carries
// signing credentials.
func (h *Handler) WriteToken(tok *SecurityToken) ([]byte, error) {
	if tok == nil || tok.Assertion == nil {
		return nil, fmt.Errorf("%w: token with an assertion is required", ErrInvalidConfiguration)
	}
	doc, err := h.serializer.WriteAssertion(tok.Assertion)
	if err != nil {
		return nil, err
	}
	if tok.SigningCredentials != nil {
		root := doc.Root()
		issuerEl := root.SelectElement("Issuer")
		if err := xmlsec.SignElement(root, issuerEl, tok.SigningCredentials, h.transforms); err != nil {
			return nil, err
		}
	}
	return doc.WriteToBytes()
}

// WriteTokenTo writes the rendered token to w.
func (h *Handler) WriteTokenTo(w io.Writer, tok *SecurityToken) error {
	out, err := h.WriteToken(tok)
	if err != nil {
		return err
	}
	_, err = w.Write(out)
	return err
}
