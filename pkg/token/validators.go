// Copyright (c) 2025 SIROS Foundation
// SPDX-License-Identifier: BSD-2-Clause

package token

import (
	"fmt"
	"time"

	"github.com/sirosfoundation/go-saml2/pkg/saml"
)

// ValidateLifetime is the default lifetime stage. The boundaries define the
// half-open interval [notBefore, notOnOrAfter); either may be nil. The
// configured clock skew widens the window on both ends.
func ValidateLifetime(notBefore, notOnOrAfter *time.Time, _ *saml.Assertion, params *ValidationParameters) error {
	now := params.now()
	if notBefore != nil && now.Add(params.ClockSkew).Before(*notBefore) {
		return fmt.Errorf("%w: not valid before %s", ErrInvalidLifetime, saml.FormatDateTime(*notBefore))
	}
	if notOnOrAfter != nil && !now.Add(-params.ClockSkew).Before(*notOnOrAfter) {
		return fmt.Errorf("%w: not valid on or after %s", ErrInvalidLifetime, saml.FormatDateTime(*notOnOrAfter))
	}
	return nil
}

// ValidateAudience is the default audience stage: at least one audience of
// the restriction must equal (ordinal) one of the configured valid
// audiences.
func ValidateAudience(audiences []string, _ *saml.Assertion, params *ValidationParameters) error {
	if len(params.ValidAudiences) == 0 {
		return fmt.Errorf("%w: no valid audiences configured", ErrInvalidAudience)
	}
	for _, audience := range audiences {
		for _, valid := range params.ValidAudiences {
			if audience == valid {
				return nil
			}
		}
	}
	return fmt.Errorf("%w: token audiences %v", ErrInvalidAudience, audiences)
}

// ValidateIssuer is the default issuer stage: the assertion issuer must
// equal (ordinal) the configured valid issuer or one of the valid issuers.
// The accepted issuer is returned and recorded on every claim.
func ValidateIssuer(issuer string, _ *saml.Assertion, params *ValidationParameters) (string, error) {
	if issuer == "" {
		return "", fmt.Errorf("%w: assertion issuer is empty", ErrInvalidIssuer)
	}
	if params.ValidIssuer == "" && len(params.ValidIssuers) == 0 {
		return "", fmt.Errorf("%w: no valid issuers configured", ErrInvalidIssuer)
	}
	if issuer == params.ValidIssuer {
		return issuer, nil
	}
	for _, valid := range params.ValidIssuers {
		if issuer == valid {
			return issuer, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidIssuer, issuer)
}
