// Copyright (c) 2025 SIROS Foundation
// SPDX-License-Identifier: BSD-2-Clause

package token

import (
	"time"

	"github.com/sirosfoundation/go-saml2/pkg/claims"
	"github.com/sirosfoundation/go-saml2/pkg/saml"
	"github.com/sirosfoundation/go-saml2/pkg/xmlsec"
)

// DefaultClockSkew is the validity window slack applied by the default
// lifetime validator.
const DefaultClockSkew = 5 * time.Minute

// DefaultIssuer is the resolved issuer recorded on claims when the issuer
// validator returns an empty string.
const DefaultIssuer = "LOCAL AUTHORITY"

// ValidationParameters configure one validation call. The callbacks replace
// individual checks of the pipeline (signature verification, key
// resolution, lifetime, audience, issuer, replay, identity creation); a nil
// callback selects the package default. The subject-presence check and the
// proxy-restriction check have no callback. Keys and parameters are
// borrowed for the duration of the call and must not be mutated
// concurrently with it.
type ValidationParameters struct {
	// RequireSignedTokens rejects unsigned assertions. Defaults to true
	// via NewValidationParameters.
	RequireSignedTokens bool

	// IssuerSigningKey is the single configured verification key.
	IssuerSigningKey xmlsec.VerificationKey

	// IssuerSigningKeys is the configured verification key collection,
	// scanned after IssuerSigningKey.
	IssuerSigningKeys []xmlsec.VerificationKey

	// IssuerSigningKeyResolver, when set, replaces the internal key
	// resolution entirely; the returned keys are tried verbatim, in order.
	// kid is the signature's key identifier, or "" when it carries none.
	IssuerSigningKeyResolver func(token []byte, assertion *saml.Assertion, kid string, params *ValidationParameters) []xmlsec.VerificationKey

	// SignatureValidator, when set, replaces reading and signature
	// verification for the whole token. Returning a nil assertion without
	// an error fails ErrInvalidSignature.
	SignatureValidator func(token []byte, params *ValidationParameters) (*saml.Assertion, error)

	// AudienceValidator replaces the default audience check. It is
	// invoked once per audience restriction.
	AudienceValidator func(audiences []string, assertion *saml.Assertion, params *ValidationParameters) error

	// IssuerValidator replaces the default issuer check. It returns the
	// resolved issuer recorded on every claim; "" selects DefaultIssuer.
	IssuerValidator func(issuer string, assertion *saml.Assertion, params *ValidationParameters) (string, error)

	// LifetimeValidator replaces the default lifetime check. It receives
	// condition or subject-confirmation boundaries; either may be nil.
	LifetimeValidator func(notBefore, notOnOrAfter *time.Time, assertion *saml.Assertion, params *ValidationParameters) error

	// ReplayValidator accepts or rejects a one-time-use token. Without
	// one, one-time-use assertions fail ErrRequiresOverride. The replay
	// package provides a drop-in window cache.
	ReplayValidator func(token []byte, expires *time.Time, params *ValidationParameters) error

	// IdentityFactory creates the identity the translator populates.
	// Defaults to claims.NewIdentity.
	IdentityFactory func(assertion *saml.Assertion, issuer string) *claims.Identity

	// ValidIssuer and ValidIssuers configure the default issuer validator.
	ValidIssuer  string
	ValidIssuers []string

	// ValidAudiences configures the default audience validator.
	ValidAudiences []string

	// ClockSkew is honored by the default lifetime validator.
	ClockSkew time.Duration

	// SaveSigninToken retains the validated token on the identity's
	// BootstrapToken.
	SaveSigninToken bool

	// Now overrides the validation clock. Defaults to time.Now.
	Now func() time.Time
}

// NewValidationParameters returns parameters with the package defaults:
// signed tokens required, five minutes of clock skew.
func NewValidationParameters() *ValidationParameters {
	return &ValidationParameters{
		RequireSignedTokens: true,
		ClockSkew:           DefaultClockSkew,
	}
}

func (p *ValidationParameters) now() time.Time {
	if p.Now != nil {
		return p.Now()
	}
	return time.Now()
}
