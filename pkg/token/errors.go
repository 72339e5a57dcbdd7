// Copyright (c) 2025 SIROS Foundation
// SPDX-License-Identifier: BSD-2-Clause

package token

import (
	"errors"
	"fmt"
	"strings"

	"github.com/sirosfoundation/go-saml2/pkg/claims"
)

// Stable error kinds raised by the handler. Errors produced by the
// caller-supplied validators are surfaced unchanged, not wrapped in these.
var (
	// ErrInvalidConfiguration is returned for unusable handler or
	// descriptor configuration (max token size < 1, nil serializer)
	ErrInvalidConfiguration = errors.New("ST0001: invalid configuration")

	// ErrOversizeInput is returned when token bytes exceed MaxTokenSize
	ErrOversizeInput = errors.New("ST0101: token length exceeds maximum token size")

	// ErrMalformed is returned when the input is not a well-formed SAML
	// 2.0 assertion
	ErrMalformed = errors.New("ST0102: token is not a well-formed SAML 2.0 assertion")

	// ErrMissingSignature is returned when the assertion is unsigned and
	// signed tokens are required
	ErrMissingSignature = errors.New("ST0201: assertion is not signed and signed tokens are required")

	// ErrInvalidSignature is returned when signature verification failed
	// under every candidate key, or a signature validator override
	// returned an unusable result
	ErrInvalidSignature = errors.New("ST0202: signature verification failed")

	// ErrSignatureKeyNotFound is returned when the signature names a key
	// identifier no candidate key carries. The issuer's key material has
	// likely rolled; refresh it.
	ErrSignatureKeyNotFound = errors.New("ST0203: no candidate key matches the signature key identifier")

	// ErrMissingSubject is returned for inbound assertions without a subject
	ErrMissingSubject = errors.New("ST0301: assertion has no subject")

	// ErrMissingIssuer is returned for outbound descriptors without an issuer
	ErrMissingIssuer = errors.New("ST0302: token descriptor has no issuer")

	// ErrDuplicateNameID is returned when an outbound identity carries
	// more than one name identifier claim
	ErrDuplicateNameID = errors.New("ST0303: identity carries more than one name identifier claim")

	// ErrInvalidLifetime is returned by the default lifetime validator
	ErrInvalidLifetime = errors.New("ST0401: assertion lifetime is not valid")

	// ErrInvalidAudience is returned by the default audience validator
	ErrInvalidAudience = errors.New("ST0402: audience restriction was not satisfied")

	// ErrInvalidIssuer is returned by the default issuer validator
	ErrInvalidIssuer = errors.New("ST0403: issuer is not trusted")

	// ErrTokenReplayed is returned by replay validators for a token
	// presented more than once
	ErrTokenReplayed = errors.New("ST0404: token has already been presented")

	// ErrRequiresOverride is returned when a one-time-use condition is
	// present and no ReplayValidator is configured, and whenever a
	// proxy-restriction condition is present (no validator option
	// overrides the proxy-restriction check)
	ErrRequiresOverride = errors.New("ST0405: condition requires an overriding validator")

	// ErrUnsupportedAuthnContext is returned when an authentication
	// context uses a declaration reference
	ErrUnsupportedAuthnContext = errors.New("ST0501: authentication context declaration references are not supported")

	// ErrEncryptionNotSupported is returned for descriptors carrying
	// encrypting credentials
	ErrEncryptionNotSupported = errors.New("ST0601: encrypting credentials are not supported")
)

// Re-exported claim-layer kinds so callers can classify every validation
// failure against this package alone.
var (
	ErrInvalidNameFormat   = claims.ErrInvalidNameFormat
	ErrNestedActorConflict = claims.ErrNestedActorConflict
)

// SignatureVerificationError aggregates the outcome of trial verification:
// which keys were tried, in order, and why each failed. It unwraps to
// ErrInvalidSignature.
type SignatureVerificationError struct {
	// KeysTried holds the key identifiers of the candidates, in trial
	// order; "(no key id)" for keys without one.
	KeysTried []string

	// KeyErrors holds the per-key verification failures, index-aligned
	// with KeysTried.
	KeyErrors []error

	// EmptyKeySet is set when no candidate keys existed at all.
	EmptyKeySet bool
}

func (e *SignatureVerificationError) Error() string {
	if e.EmptyKeySet {
		return fmt.Sprintf("%v: no candidate verification keys", ErrInvalidSignature)
	}
	var b strings.Builder
	fmt.Fprintf(&b, "%v: tried %d key(s):", ErrInvalidSignature, len(e.KeysTried))
	for i, kid := range e.KeysTried {
		fmt.Fprintf(&b, " [%s: %v]", kid, e.KeyErrors[i])
	}
	return b.String()
}

func (e *SignatureVerificationError) Unwrap() error {
	return ErrInvalidSignature
}
