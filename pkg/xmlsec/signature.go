// Copyright (c) 2025 SIROS Foundation
// SPDX-License-Identifier: BSD-2-Clause

package xmlsec

import (
	"encoding/base64"
	"fmt"
	"strings"

	"github.com/beevik/etree"
)

// Signature is the parsed form of a ds:Signature element. It is populated
// on parse and verified at most once; the source element is retained so
// verification canonicalizes the original byte stream.
type Signature struct {
	SignedInfo     *SignedInfo
	SignatureValue []byte
	KeyInfo        *KeyInfo

	element *etree.Element
}

// Element returns the source ds:Signature element.
func (s *Signature) Element() *etree.Element { return s.element }

// SignedInfo describes what was signed and how.
type SignedInfo struct {
	CanonicalizationMethod     string
	CanonicalizationPrefixList string
	SignatureMethod            string
	References                 []Reference

	transforms TransformFactory
}

// SetTransformFactory installs the factory used to realize this signature's
// transform chain during verification.
func (si *SignedInfo) SetTransformFactory(tf TransformFactory) {
	si.transforms = tf
}

// transformFactory returns the installed factory, defaulting when unset.
func (si *SignedInfo) transformFactory() TransformFactory {
	if si.transforms == nil {
		return NewDefaultTransformFactory()
	}
	return si.transforms
}

// Reference is one signed reference within SignedInfo.
type Reference struct {
	URI          string
	Transforms   []TransformRef
	DigestMethod string
	DigestValue  []byte
}

// TransformRef names one transform in a reference's chain.
type TransformRef struct {
	Algorithm  string
	PrefixList string
}

// KeyInfo carries the signature's key identification hints.
type KeyInfo struct {
	// KeyID is the ds:KeyName content, the key identifier verifiers match
	// candidate keys against. Empty when the signature carries none.
	KeyID string

	// X509Certificate is the DER certificate embedded in ds:X509Data, if any.
	X509Certificate []byte
}

// ReadSignature parses a ds:Signature element.
func ReadSignature(el *etree.Element) (*Signature, error) {
	if el == nil {
		return nil, fmt.Errorf("signature element is nil")
	}

	signedInfoEl := el.SelectElement("SignedInfo")
	if signedInfoEl == nil {
		return nil, fmt.Errorf("Signature has no SignedInfo")
	}

	si := &SignedInfo{}
	if c14n := signedInfoEl.SelectElement("CanonicalizationMethod"); c14n != nil {
		si.CanonicalizationMethod = c14n.SelectAttrValue("Algorithm", "")
		if incl := c14n.SelectElement("InclusiveNamespaces"); incl != nil {
			si.CanonicalizationPrefixList = incl.SelectAttrValue("PrefixList", "")
		}
	}
	if si.CanonicalizationMethod == "" {
		return nil, fmt.Errorf("SignedInfo has no CanonicalizationMethod")
	}
	if sm := signedInfoEl.SelectElement("SignatureMethod"); sm != nil {
		si.SignatureMethod = sm.SelectAttrValue("Algorithm", "")
	}
	if si.SignatureMethod == "" {
		return nil, fmt.Errorf("SignedInfo has no SignatureMethod")
	}

	for _, refEl := range signedInfoEl.SelectElements("Reference") {
		ref := Reference{URI: refEl.SelectAttrValue("URI", "")}
		if transforms := refEl.SelectElement("Transforms"); transforms != nil {
			for _, tEl := range transforms.SelectElements("Transform") {
				tr := TransformRef{Algorithm: tEl.SelectAttrValue("Algorithm", "")}
				if incl := tEl.SelectElement("InclusiveNamespaces"); incl != nil {
					tr.PrefixList = incl.SelectAttrValue("PrefixList", "")
				}
				ref.Transforms = append(ref.Transforms, tr)
			}
		}
		if dm := refEl.SelectElement("DigestMethod"); dm != nil {
			ref.DigestMethod = dm.SelectAttrValue("Algorithm", "")
		}
		if dv := refEl.SelectElement("DigestValue"); dv != nil {
			digest, err := base64.StdEncoding.DecodeString(strings.TrimSpace(dv.Text()))
			if err != nil {
				return nil, fmt.Errorf("decoding DigestValue: %w", err)
			}
			ref.DigestValue = digest
		}
		si.References = append(si.References, ref)
	}
	if len(si.References) == 0 {
		return nil, fmt.Errorf("SignedInfo has no Reference")
	}

	sigValueEl := el.SelectElement("SignatureValue")
	if sigValueEl == nil {
		return nil, fmt.Errorf("Signature has no SignatureValue")
	}
	sigValue, err := base64.StdEncoding.DecodeString(strings.TrimSpace(sigValueEl.Text()))
	if err != nil {
		return nil, fmt.Errorf("decoding SignatureValue: %w", err)
	}

	sig := &Signature{
		SignedInfo:     si,
		SignatureValue: sigValue,
		element:        el,
	}

	if keyInfoEl := el.SelectElement("KeyInfo"); keyInfoEl != nil {
		ki := &KeyInfo{}
		if keyName := keyInfoEl.SelectElement("KeyName"); keyName != nil {
			ki.KeyID = strings.TrimSpace(keyName.Text())
		}
		if x509Data := keyInfoEl.SelectElement("X509Data"); x509Data != nil {
			if certEl := x509Data.SelectElement("X509Certificate"); certEl != nil {
				der, err := base64.StdEncoding.DecodeString(
					strings.Join(strings.Fields(certEl.Text()), ""))
				if err != nil {
					return nil, fmt.Errorf("decoding X509Certificate: %w", err)
				}
				ki.X509Certificate = der
			}
		}
		sig.KeyInfo = ki
	}

	return sig, nil
}
