// Copyright (c) 2025 SIROS Foundation
// SPDX-License-Identifier: BSD-2-Clause

package token

import (
	"fmt"

	"github.com/sirosfoundation/go-saml2/pkg/claims"
	"github.com/sirosfoundation/go-saml2/pkg/saml"
)

// createIdentity translates a validated assertion into a claims identity.
//
// Statements are walked in document order; attribute statements are
// processed immediately, authentication statements are deferred until after
// every attribute statement so the claim set is stable when authentication
// claims are written. Authorization decision statements contribute nothing.
func (h *Handler) createIdentity(assertion *saml.Assertion, issuer string, tok *SecurityToken, params *ValidationParameters) (*claims.Identity, error) {
	identity := claims.NewIdentity()
	if params.IdentityFactory != nil {
		identity = params.IdentityFactory(assertion, issuer)
		if identity == nil {
			return nil, fmt.Errorf("%w: identity factory returned nil", ErrInvalidConfiguration)
		}
	}

	if assertion.Subject != nil && assertion.Subject.NameID != nil {
		addNameIDClaim(identity, assertion.Subject.NameID, issuer)
	}

	var deferred []*saml.AuthnStatement
	for _, stmt := range assertion.Statements {
		switch st := stmt.(type) {
		case *saml.AttributeStatement:
			if err := addAttributeClaims(identity, st, issuer); err != nil {
				return nil, err
			}
		case *saml.AuthnStatement:
			deferred = append(deferred, st)
		default:
			// AuthzDecisionStatement and unknown variants are preserved on
			// the token but contribute no claims.
		}
	}
	for _, st := range deferred {
		if err := addAuthnClaims(identity, st, issuer); err != nil {
			return nil, err
		}
	}

	if params.SaveSigninToken {
		identity.BootstrapToken = tok
	}

	return identity, nil
}

// addNameIDClaim emits the NameIdentifier claim with the SAML name-id
// qualifiers carried as claim properties.
func addNameIDClaim(identity *claims.Identity, nameID *saml.NameID, issuer string) {
	c := claims.Claim{
		Type:           claims.ClaimTypeNameIdentifier,
		Value:          nameID.Value,
		ValueType:      claims.ValueTypeString,
		Issuer:         issuer,
		OriginalIssuer: issuer,
	}
	if nameID.Format != "" {
		c.SetProperty(claims.PropertyNameIDFormat, nameID.Format)
	}
	if nameID.NameQualifier != "" {
		c.SetProperty(claims.PropertyNameQualifier, nameID.NameQualifier)
	}
	if nameID.SPNameQualifier != "" {
		c.SetProperty(claims.PropertySPNameQualifier, nameID.SPNameQualifier)
	}
	if nameID.SPProvidedID != "" {
		c.SetProperty(claims.PropertySPProvidedID, nameID.SPProvidedID)
	}
	identity.AddClaim(c)
}

// addAttributeClaims emits claims for an attribute statement. An attribute
// named with the Actor claim type attaches the decoded delegation chain
// instead; a second one is a hard error.
func addAttributeClaims(identity *claims.Identity, stmt *saml.AttributeStatement, issuer string) error {
	for _, attr := range stmt.Attributes {
		if attr.Name == claims.ClaimTypeActor {
			if identity.Actor != nil {
				return claims.ErrNestedActorConflict
			}
			if len(attr.Values) == 0 {
				return fmt.Errorf("%w: actor attribute has no value", ErrMalformed)
			}
			actor, err := claims.DecodeActor(attr.Values[0], issuer)
			if err != nil {
				return err
			}
			identity.Actor = actor
			continue
		}
		for _, c := range claims.ClaimsFromAttribute(attr, issuer) {
			identity.AddClaim(c)
		}
	}
	return nil
}

// addAuthnClaims emits the authentication method and instant claims for an
// authentication statement.
func addAuthnClaims(identity *claims.Identity, stmt *saml.AuthnStatement, issuer string) error {
	if stmt.Context.DeclRef != "" {
		return fmt.Errorf("%w: %q", ErrUnsupportedAuthnContext, stmt.Context.DeclRef)
	}
	if stmt.Context.ClassRef != "" {
		identity.AddClaim(claims.Claim{
			Type:           claims.ClaimTypeAuthenticationMethod,
			Value:          stmt.Context.ClassRef,
			ValueType:      claims.ValueTypeString,
			Issuer:         issuer,
			OriginalIssuer: issuer,
		})
	}
	identity.AddClaim(claims.Claim{
		Type:           claims.ClaimTypeAuthenticationInstant,
		Value:          saml.FormatDateTime(stmt.AuthnInstant),
		ValueType:      claims.ValueTypeDateTime,
		Issuer:         issuer,
		OriginalIssuer: issuer,
	})
	return nil
}
