// Copyright (c) 2025 SIROS Foundation
// SPDX-License-Identifier: BSD-2-Clause

/*
Package gosaml2 implements construction and validation of signed SAML 2.0
assertions ("security tokens") and their translation to and from a
claims-based identity model.

# Overview

go-saml2 is a Go implementation of the SAML 2.0 assertion processing
pipeline used by security token services and relying parties: it builds
signed assertions from a description of an authenticated principal, and it
reads, verifies, and validates incoming assertions, producing a claims
identity with full delegation (actor) support.

# Specifications Implemented

  - OASIS SAML 2.0 Core: https://docs.oasis-open.org/security/saml/v2.0/saml-core-2.0-os.pdf
  - XML Signature Syntax and Processing: https://www.w3.org/TR/xmldsig-core1/
  - Exclusive XML Canonicalization: https://www.w3.org/TR/xml-exc-c14n/

# Package Structure

The library is organized into the following packages:

	github.com/sirosfoundation/go-saml2/pkg/token   - Security token handler (validate, issue)
	github.com/sirosfoundation/go-saml2/pkg/saml    - SAML 2.0 assertion model and serializer
	github.com/sirosfoundation/go-saml2/pkg/xmlsec  - Keys, XML signatures, canonicalization transforms
	github.com/sirosfoundation/go-saml2/pkg/claims  - Claims identity model and actor (delegation) codec
	github.com/sirosfoundation/go-saml2/pkg/replay  - One-time-use token replay window

# Quick Start

To validate a SAML 2.0 assertion:

	import (
	    "github.com/sirosfoundation/go-saml2/pkg/token"
	    "github.com/sirosfoundation/go-saml2/pkg/xmlsec"
	)

	handler, _ := token.NewHandler(token.HandlerConfig{})

	params := token.NewValidationParameters()
	params.IssuerSigningKey = xmlsec.NewRSAVerificationKey(idpKey, "idp-signing-1")
	params.ValidIssuer = "https://idp.example/"
	params.ValidAudiences = []string{"urn:rp:example"}

	identity, tok, err := handler.ValidateToken(assertionXML, params)

To issue one:

	tok, _ := handler.CreateToken(&token.Descriptor{
	    Issuer:             "https://idp.example/",
	    Subject:            identity,
	    Expires:            &expires,
	    Audience:           "urn:rp:example",
	    SigningCredentials: creds,
	})
	assertionXML, err := handler.WriteToken(tok)

# Security Notes

Only the bearer subject-confirmation method is produced. Encrypted
assertions are not produced or consumed. Signature verification performs
trial verification against the configured candidate keys and reports
per-key failures; a signature whose key identifier matches no configured
key fails with a distinct error so callers can refresh issuer metadata.

# License

BSD-2-Clause License
*/
package gosaml2
