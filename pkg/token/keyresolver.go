// Copyright (c) 2025 SIROS Foundation
// SPDX-License-Identifier: BSD-2-Clause

package token

import (
	"github.com/sirosfoundation/go-saml2/pkg/saml"
	"github.com/sirosfoundation/go-saml2/pkg/xmlsec"
)

// signatureKeyID returns the key identifier carried in the assertion
// signature's KeyInfo, or "".
func signatureKeyID(assertion *saml.Assertion) string {
	if assertion.Signature == nil || assertion.Signature.KeyInfo == nil {
		return ""
	}
	return assertion.Signature.KeyInfo.KeyID
}

// resolveSigningKey maps the signature's key identifier to a configured
// verification key: the single issuer signing key first, then the key
// collection in order, under byte-exact comparison. Nil when the signature
// carries no identifier or nothing matches.
func resolveSigningKey(assertion *saml.Assertion, params *ValidationParameters) xmlsec.VerificationKey {
	kid := signatureKeyID(assertion)
	if kid == "" {
		return nil
	}
	if params.IssuerSigningKey != nil && params.IssuerSigningKey.KeyID() == kid {
		return params.IssuerSigningKey
	}
	for _, key := range params.IssuerSigningKeys {
		if key != nil && key.KeyID() == kid {
			return key
		}
	}
	return nil
}
