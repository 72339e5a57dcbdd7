// Copyright (c) 2025 SIROS Foundation
// SPDX-License-Identifier: BSD-2-Clause

package xmlsec

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"

	"github.com/beevik/etree"
)

// SignElement computes an enveloped XML signature over el and inserts the
// ds:Signature element after the reference element refSibling (the SAML
// schema places Signature directly after Issuer). el must carry a non-empty
// ID attribute; the single reference targets it with the
// enveloped-signature and exclusive-canonicalization transforms.
func SignElement(el, refSibling *etree.Element, creds *SigningCredentials, tf TransformFactory) error {
	if creds == nil || creds.Signer == nil {
		return fmt.Errorf("signing credentials with a signer are required")
	}
	if tf == nil {
		tf = NewDefaultTransformFactory()
	}

	id := el.SelectAttrValue("ID", "")
	if id == "" {
		return fmt.Errorf("element has no ID attribute to reference")
	}

	sigAlg := creds.signatureAlgorithm()
	digAlg := creds.digestAlgorithm()

	// Build the Signature template with digest and value placeholders.
	sig := etree.NewElement("ds:Signature")
	sig.CreateAttr("xmlns:ds", "http://www.w3.org/2000/09/xmldsig#")

	signedInfo := sig.CreateElement("ds:SignedInfo")

	c14nMethod := signedInfo.CreateElement("ds:CanonicalizationMethod")
	c14nMethod.CreateAttr("Algorithm", AlgorithmC14N)

	sigMethod := signedInfo.CreateElement("ds:SignatureMethod")
	sigMethod.CreateAttr("Algorithm", sigAlg)

	ref := signedInfo.CreateElement("ds:Reference")
	ref.CreateAttr("URI", "#"+id)
	transforms := ref.CreateElement("ds:Transforms")
	enveloped := transforms.CreateElement("ds:Transform")
	enveloped.CreateAttr("Algorithm", AlgorithmEnvelopedSignature)
	c14n := transforms.CreateElement("ds:Transform")
	c14n.CreateAttr("Algorithm", AlgorithmC14N)

	digestMethod := ref.CreateElement("ds:DigestMethod")
	digestMethod.CreateAttr("Algorithm", digAlg)
	digestValue := ref.CreateElement("ds:DigestValue")

	sigValue := sig.CreateElement("ds:SignatureValue")

	keyInfo := sig.CreateElement("ds:KeyInfo")
	if creds.KeyID != "" {
		keyName := keyInfo.CreateElement("ds:KeyName")
		keyName.SetText(creds.KeyID)
	}
	if creds.Certificate != nil {
		x509Data := keyInfo.CreateElement("ds:X509Data")
		certEl := x509Data.CreateElement("ds:X509Certificate")
		certEl.SetText(base64.StdEncoding.EncodeToString(creds.Certificate.Raw))
	}

	if refSibling != nil && refSibling.Parent() == el {
		el.InsertChildAt(refSibling.Index()+1, sig)
	} else {
		el.AddChild(sig)
	}

	// Digest the element with the Signature placeholder removed, exactly as
	// a verifier will.
	digest, err := digestElement(el, digAlg, tf)
	if err != nil {
		return err
	}
	digestValue.SetText(base64.StdEncoding.EncodeToString(digest))

	// Canonicalize SignedInfo and sign its hash.
	signedInfoBytes, err := canonicalizeSignedInfo(signedInfo, "", tf)
	if err != nil {
		return err
	}
	hash, err := hashForSignatureAlgorithm(sigAlg)
	if err != nil {
		return err
	}
	h := hash.New()
	h.Write(signedInfoBytes)
	signature, err := creds.Signer.Sign(rand.Reader, h.Sum(nil), hash)
	if err != nil {
		return fmt.Errorf("signing failed: %w", err)
	}
	sigValue.SetText(base64.StdEncoding.EncodeToString(signature))

	return nil
}

// digestElement serializes el, applies the enveloped-signature and
// exclusive-canonicalization transforms, and hashes the result.
func digestElement(el *etree.Element, digestAlgorithm string, tf TransformFactory) ([]byte, error) {
	input, err := serializeSubtree(el)
	if err != nil {
		return nil, fmt.Errorf("serializing signed element: %w", err)
	}
	for _, algorithm := range []string{AlgorithmEnvelopedSignature, AlgorithmC14N} {
		transform, err := tf.CreateTransform(algorithm)
		if err != nil {
			return nil, err
		}
		if input, err = transform.Apply(input, ""); err != nil {
			return nil, err
		}
	}
	hash, err := hashForDigestAlgorithm(digestAlgorithm)
	if err != nil {
		return nil, err
	}
	h := hash.New()
	h.Write(input)
	return h.Sum(nil), nil
}

// canonicalizeSignedInfo canonicalizes a ds:SignedInfo element with the
// exclusive canonicalization algorithm.
func canonicalizeSignedInfo(signedInfo *etree.Element, prefixList string, tf TransformFactory) ([]byte, error) {
	input, err := serializeSubtree(signedInfo)
	if err != nil {
		return nil, fmt.Errorf("serializing SignedInfo: %w", err)
	}
	transform, err := tf.CreateTransform(AlgorithmC14N)
	if err != nil {
		return nil, err
	}
	return transform.Apply(input, prefixList)
}
