// Copyright (c) 2025 SIROS Foundation
// SPDX-License-Identifier: BSD-2-Clause

package xmlsec

import (
	"errors"
	"fmt"

	"github.com/beevik/etree"
	"github.com/leifj/signedxml"
)

// ErrUnsupportedTransform is returned for transform algorithm URIs the
// factory does not produce.
var ErrUnsupportedTransform = errors.New("unsupported transform algorithm")

// Transform turns a serialized XML fragment into the byte stream a digest
// or signature is computed over. Transforms chain in document order.
type Transform interface {
	Apply(input []byte, prefixList string) ([]byte, error)
}

// TransformFactory produces transforms by algorithm URI. A factory is
// installed on each signature's SignedInfo before verification so signing
// and verification share one canonicalization pipeline.
type TransformFactory interface {
	CreateTransform(algorithm string) (Transform, error)
}

// DefaultTransformFactory produces the transforms required for SAML 2.0
// enveloped signatures: exclusive canonicalization (with and without
// comments) and the enveloped-signature transform.
type DefaultTransformFactory struct{}

// NewDefaultTransformFactory returns the default factory.
func NewDefaultTransformFactory() *DefaultTransformFactory {
	return &DefaultTransformFactory{}
}

// CreateTransform returns the transform for the given algorithm URI.
func (f *DefaultTransformFactory) CreateTransform(algorithm string) (Transform, error) {
	switch algorithm {
	case AlgorithmC14N:
		return excC14NTransform{}, nil
	case AlgorithmC14NWithComments:
		return excC14NTransform{withComments: true}, nil
	case AlgorithmEnvelopedSignature:
		return envelopedTransform{}, nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedTransform, algorithm)
	}
}

// excC14NTransform delegates to signedxml's exclusive canonicalization.
type excC14NTransform struct {
	withComments bool
}

func (t excC14NTransform) Apply(input []byte, prefixList string) ([]byte, error) {
	transformXML := ""
	if prefixList != "" {
		transformXML = fmt.Sprintf(
			`<Transform Algorithm=%q><InclusiveNamespaces xmlns="%s" PrefixList=%q/></Transform>`,
			AlgorithmC14N, AlgorithmC14N, prefixList)
	}
	c14n := signedxml.ExclusiveCanonicalization{WithComments: t.withComments}
	out, err := c14n.Process(string(input), transformXML)
	if err != nil {
		return nil, fmt.Errorf("exclusive canonicalization failed: %w", err)
	}
	return []byte(out), nil
}

// envelopedTransform removes the enclosing ds:Signature element.
type envelopedTransform struct{}

func (envelopedTransform) Apply(input []byte, _ string) ([]byte, error) {
	env := signedxml.EnvelopedSignature{}
	out, err := env.Process(string(input), "")
	if err != nil {
		return nil, fmt.Errorf("enveloped-signature transform failed: %w", err)
	}
	return []byte(out), nil
}

// serializeSubtree renders el (and its sub-tree) as a standalone XML
// fragment, re-declaring namespace prefixes inherited from ancestors so the
// fragment canonicalizes the same way it did in its original document.
func serializeSubtree(el *etree.Element) ([]byte, error) {
	copied := el.Copy()

	declared := make(map[string]bool)
	for _, attr := range copied.Attr {
		if attr.Space == "xmlns" || (attr.Space == "" && attr.Key == "xmlns") {
			declared[attr.Key] = true
		}
	}
	for parent := el.Parent(); parent != nil; parent = parent.Parent() {
		for _, attr := range parent.Attr {
			if attr.Space != "xmlns" && !(attr.Space == "" && attr.Key == "xmlns") {
				continue
			}
			if !declared[attr.Key] {
				copied.CreateAttr(attr.FullKey(), attr.Value)
				declared[attr.Key] = true
			}
		}
	}

	doc := etree.NewDocument()
	doc.SetRoot(copied)
	return doc.WriteToBytes()
}
