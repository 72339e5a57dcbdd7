// Copyright (c) 2025 SIROS Foundation
// SPDX-License-Identifier: BSD-2-Clause

package token

import (
	"fmt"
	"net/url"
	"time"

	"github.com/sirosfoundation/go-saml2/pkg/claims"
	"github.com/sirosfoundation/go-saml2/pkg/saml"
	"github.com/sirosfoundation/go-saml2/pkg/xmlsec"
)

// Descriptor describes the token to issue.
type Descriptor struct {
	// Issuer is the issuing authority. Required.
	Issuer string

	// Subject is the identity the assertion attests to.
	Subject *claims.Identity

	// NotBefore and Expires bound the assertion's validity.
	NotBefore *time.Time
	Expires   *time.Time

	// Audience, when set, adds a single audience restriction.
	Audience string

	// AuthenticationContext, when set, emits an authentication statement.
	AuthenticationContext *AuthenticationContext

	// SigningCredentials sign the assertion on write.
	SigningCredentials *xmlsec.SigningCredentials

	// EncryptingCredentials are not supported and rejected at build time.
	EncryptingCredentials *xmlsec.EncryptingCredentials
}

// AuthenticationContext describes the authentication event an issued
// assertion reports.
type AuthenticationContext struct {
	ClassRef     string
	Instant      time.Time
	SessionIndex string
}

// CreateToken builds an unsigned token from the descriptor. Signing
// happens on write, through the serializer and the transform factory.
func (h *Handler) CreateToken(d *Descriptor) (*SecurityToken, error) {
	if d == nil {
		return nil, fmt.Errorf("%w: token descriptor is required", ErrInvalidConfiguration)
	}
	if d.EncryptingCredentials != nil {
		return nil, ErrEncryptionNotSupported
	}
	if d.Issuer == "" {
		return nil, ErrMissingIssuer
	}

	assertion := &saml.Assertion{
		ID:           saml.NewID(),
		IssueInstant: time.Now().UTC(),
		Issuer:       &saml.NameID{Value: d.Issuer},
	}

	subject, err := buildSubject(d.Subject)
	if err != nil {
		return nil, err
	}
	assertion.Subject = subject

	if d.NotBefore != nil || d.Expires != nil || d.Audience != "" {
		conditions := &saml.Conditions{
			NotBefore:    d.NotBefore,
			NotOnOrAfter: d.Expires,
		}
		if d.Audience != "" {
			conditions.AudienceRestrictions = []saml.AudienceRestriction{
				{Audiences: []string{d.Audience}},
			}
		}
		assertion.Conditions = conditions
	}

	if d.Subject != nil {
		stmt, err := buildAttributeStatement(d.Subject)
		if err != nil {
			return nil, err
		}
		if stmt != nil {
			assertion.Statements = append(assertion.Statements, stmt)
		}
	}

	if ac := d.AuthenticationContext; ac != nil {
		instant := ac.Instant
		if instant.IsZero() {
			instant = time.Now().UTC()
		}
		assertion.Statements = append(assertion.Statements, &saml.AuthnStatement{
			AuthnInstant: instant,
			SessionIndex: ac.SessionIndex,
			Context:      saml.AuthnContext{ClassRef: ac.ClassRef},
		})
	}

	return &SecurityToken{
		Assertion:          assertion,
		SigningCredentials: d.SigningCredentials,
	}, nil
}

// buildSubject materializes the subject from the identity's single name
// identifier claim and always attaches a bearer confirmation.
func buildSubject(identity *claims.Identity) (*saml.Subject, error) {
	subject := &saml.Subject{
		Confirmations: []saml.SubjectConfirmation{
			{Method: saml.ConfirmationMethodBearer},
		},
	}
	if identity == nil {
		return subject, nil
	}

	nameIDClaims := identity.FindAll(claims.ClaimTypeNameIdentifier)
	if len(nameIDClaims) > 1 {
		return nil, ErrDuplicateNameID
	}
	if len(nameIDClaims) == 1 {
		c := nameIDClaims[0]
		nameID := &saml.NameID{
			Value:           c.Value,
			NameQualifier:   c.Property(claims.PropertyNameQualifier),
			SPNameQualifier: c.Property(claims.PropertySPNameQualifier),
			SPProvidedID:    c.Property(claims.PropertySPProvidedID),
		}
		// The format property rides along only when it is an absolute URI.
		if format := c.Property(claims.PropertyNameIDFormat); format != "" {
			if u, err := url.Parse(format); err == nil && u.IsAbs() {
				nameID.Format = format
			}
		}
		subject.NameID = nameID
	}
	return subject, nil
}

// buildAttributeStatement flattens the identity's claims (name identifier
// and authentication claims excluded) into a single attribute statement,
// attaching the encoded actor chain when the identity delegates. Nil when
// nothing would be emitted.
func buildAttributeStatement(identity *claims.Identity) (*saml.AttributeStatement, error) {
	filtered := make([]claims.Claim, 0, len(identity.Claims))
	for _, c := range identity.Claims {
		switch c.Type {
		case claims.ClaimTypeNameIdentifier,
			claims.ClaimTypeAuthenticationInstant,
			claims.ClaimTypeAuthenticationMethod:
			continue
		}
		filtered = append(filtered, c)
	}

	attrs, err := claims.AttributesFromClaims(filtered)
	if err != nil {
		return nil, err
	}

	if identity.Actor != nil {
		blob, err := claims.EncodeActor(identity.Actor)
		if err != nil {
			return nil, err
		}
		attrs = append(attrs, saml.Attribute{
			Name:    claims.ClaimTypeActor,
			XSIType: claims.ValueTypeString,
			Values:  []string{blob},
		})
	}

	if len(attrs) == 0 {
		return nil, nil
	}
	return &saml.AttributeStatement{Attributes: attrs}, nil
}
