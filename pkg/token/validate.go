// Copyright (c) 2025 SIROS Foundation
// SPDX-License-Identifier: BSD-2-Clause

package token

import (
	"fmt"

	"github.com/sirosfoundation/go-saml2/pkg/saml"
)

// validateConditions enforces the assertion's Conditions element: lifetime,
// one-time-use and proxy-restriction policy, and each audience restriction.
func validateConditions(assertion *saml.Assertion, params *ValidationParameters) error {
	conditions := assertion.Conditions
	if conditions == nil {
		return nil
	}

	lifetimeValidator := params.LifetimeValidator
	if lifetimeValidator == nil {
		lifetimeValidator = ValidateLifetime
	}
	if conditions.NotBefore != nil || conditions.NotOnOrAfter != nil {
		if err := lifetimeValidator(conditions.NotBefore, conditions.NotOnOrAfter, assertion, params); err != nil {
			return err
		}
	}

	// A replay-aware deployment supplies a ReplayValidator; without one a
	// one-time-use assertion cannot be honored.
	if conditions.OneTimeUse && params.ReplayValidator == nil {
		return fmt.Errorf("%w: assertion is marked one-time-use", ErrRequiresOverride)
	}
	if conditions.ProxyRestriction != nil {
		return fmt.Errorf("%w: assertion carries a proxy restriction", ErrRequiresOverride)
	}

	audienceValidator := params.AudienceValidator
	if audienceValidator == nil {
		audienceValidator = ValidateAudience
	}
	for _, restriction := range conditions.AudienceRestrictions {
		if err := audienceValidator(restriction.Audiences, assertion, params); err != nil {
			return err
		}
	}

	return nil
}

// validateSubject requires a subject and checks the lifetime of each
// subject confirmation's data.
func validateSubject(assertion *saml.Assertion, params *ValidationParameters) error {
	if assertion.Subject == nil {
		return ErrMissingSubject
	}

	lifetimeValidator := params.LifetimeValidator
	if lifetimeValidator == nil {
		lifetimeValidator = ValidateLifetime
	}
	for _, confirmation := range assertion.Subject.Confirmations {
		if confirmation.Data == nil {
			continue
		}
		if confirmation.Data.NotBefore == nil && confirmation.Data.NotOnOrAfter == nil {
			continue
		}
		if err := lifetimeValidator(confirmation.Data.NotBefore, confirmation.Data.NotOnOrAfter, assertion, params); err != nil {
			return err
		}
	}
	return nil
}
