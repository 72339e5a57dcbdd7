// Copyright (c) 2025 SIROS Foundation
// SPDX-License-Identifier: BSD-2-Clause

package xmlsec

import (
	"crypto/subtle"
	"errors"
	"fmt"

	"github.com/beevik/etree"
)

var (
	// ErrDigestMismatch is returned when the signed reference digest does
	// not match the document content
	ErrDigestMismatch = errors.New("reference digest does not match document content")
	// ErrReferenceNotFound is returned when no reference targets the
	// element being verified
	ErrReferenceNotFound = errors.New("no signature reference targets the element")
)

// VerifySignature checks sig over el under key. el must be the element the
// signature envelops (the assertion); exactly one reference must target it,
// by its ID or as the whole document ("" URI).
//
// The reference digest is recomputed through the signature's declared
// transform chain, then the canonicalized SignedInfo is verified against
// the signature value under key. Neither el nor sig is mutated.
func VerifySignature(el *etree.Element, sig *Signature, key VerificationKey) error {
	if sig == nil || sig.SignedInfo == nil {
		return fmt.Errorf("signature is not populated")
	}
	tf := sig.SignedInfo.transformFactory()

	id := el.SelectAttrValue("ID", "")
	ref, err := findReference(sig.SignedInfo, id)
	if err != nil {
		return err
	}

	input, err := serializeSubtree(el)
	if err != nil {
		return fmt.Errorf("serializing signed element: %w", err)
	}
	for _, tr := range ref.Transforms {
		transform, err := tf.CreateTransform(tr.Algorithm)
		if err != nil {
			return err
		}
		if input, err = transform.Apply(input, tr.PrefixList); err != nil {
			return err
		}
	}

	hash, err := hashForDigestAlgorithm(ref.DigestMethod)
	if err != nil {
		return err
	}
	h := hash.New()
	h.Write(input)
	if subtle.ConstantTimeCompare(h.Sum(nil), ref.DigestValue) != 1 {
		return ErrDigestMismatch
	}

	// Canonicalize the original SignedInfo element, not a reconstruction:
	// whitespace and prefix choices in the source document are part of the
	// signed byte stream.
	signedInfoEl := sig.element.SelectElement("SignedInfo")
	if signedInfoEl == nil {
		return fmt.Errorf("signature element has no SignedInfo")
	}
	signedInfoBytes, err := canonicalizeSignedInfo(
		signedInfoEl, sig.SignedInfo.CanonicalizationPrefixList, tf)
	if err != nil {
		return err
	}

	return key.Verify(sig.SignedInfo.SignatureMethod, signedInfoBytes, sig.SignatureValue)
}

func findReference(si *SignedInfo, id string) (*Reference, error) {
	var found *Reference
	for i := range si.References {
		uri := si.References[i].URI
		if uri == "" || (id != "" && uri == "#"+id) {
			if found != nil {
				return nil, fmt.Errorf("more than one signature reference targets the element (ID %q)", id)
			}
			found = &si.References[i]
		}
	}
	if found == nil {
		return nil, fmt.Errorf("%w (ID %q)", ErrReferenceNotFound, id)
	}
	return found, nil
}
