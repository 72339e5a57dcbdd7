// Copyright (c) 2025 SIROS Foundation
// SPDX-License-Identifier: BSD-2-Clause

package token

import (
	"fmt"

	"github.com/sirosfoundation/go-saml2/pkg/saml"
	"github.com/sirosfoundation/go-saml2/pkg/xmlsec"
)

// validateSignature reads the token and verifies its signature against the
// candidate keys in order. On success the verified key is stamped onto the
// assertion; that is the only mutation. On failure the assertion is not
// returned and carries no partial state.
func (h *Handler) validateSignature(token []byte, params *ValidationParameters) (*saml.Assertion, error) {
	if params.SignatureValidator != nil {
		assertion, err := params.SignatureValidator(token, params)
		if err != nil {
			return nil, err
		}
		if assertion == nil {
			return nil, fmt.Errorf("%w: signature validator returned no assertion", ErrInvalidSignature)
		}
		return assertion, nil
	}

	assertion, err := h.readAssertion(token)
	if err != nil {
		return nil, err
	}

	if assertion.Signature == nil {
		if params.RequireSignedTokens {
			return nil, ErrMissingSignature
		}
		return assertion, nil
	}

	kid := signatureKeyID(assertion)

	var candidates []xmlsec.VerificationKey
	switch {
	case params.IssuerSigningKeyResolver != nil:
		candidates = params.IssuerSigningKeyResolver(token, assertion, kid, params)
	default:
		if key := resolveSigningKey(assertion, params); key != nil {
			candidates = []xmlsec.VerificationKey{key}
		} else {
			if params.IssuerSigningKey != nil {
				candidates = append(candidates, params.IssuerSigningKey)
			}
			candidates = append(candidates, params.IssuerSigningKeys...)
		}
	}

	assertion.Signature.SignedInfo.SetTransformFactory(h.transforms)

	if len(candidates) == 0 {
		return nil, &SignatureVerificationError{EmptyKeySet: true}
	}

	keysTried := make([]string, 0, len(candidates))
	keyErrors := make([]error, 0, len(candidates))
	kidMatched := false
	for _, key := range candidates {
		if key == nil {
			continue
		}
		if kid != "" && key.KeyID() == kid {
			kidMatched = true
		}
		err := xmlsec.VerifySignature(assertion.Element(), assertion.Signature, key)
		if err == nil {
			assertion.SigningKey = key
			return assertion, nil
		}
		keyID := key.KeyID()
		if keyID == "" {
			keyID = "(no key id)"
		}
		keysTried = append(keysTried, keyID)
		keyErrors = append(keyErrors, err)
	}

	if len(keysTried) == 0 {
		return nil, &SignatureVerificationError{EmptyKeySet: true}
	}
	if kid != "" && !kidMatched {
		return nil, fmt.Errorf("%w: key identifier %q", ErrSignatureKeyNotFound, kid)
	}
	return nil, &SignatureVerificationError{KeysTried: keysTried, KeyErrors: keyErrors}
}
