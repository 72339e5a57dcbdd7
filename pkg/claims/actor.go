// Copyright (c) 2025 SIROS Foundation
// SPDX-License-Identifier: BSD-2-Clause

package claims

import (
	"errors"
	"fmt"

	"github.com/beevik/etree"

	"github.com/sirosfoundation/go-saml2/pkg/saml"
)

// ErrNestedActorConflict is returned when a delegation level carries more
// than one actor attribute. One actor per identity.
var ErrNestedActorConflict = errors.New("more than one actor at a delegation level")

// EncodeActor serializes a delegated identity as the XML blob carried in
// an Actor claim attribute:
//
//	<Actor>
//	  <saml:Attribute Name="...">
//	    <saml:AttributeValue>...</saml:AttributeValue>
//	  </saml:Attribute>
//	</Actor>
//
// The actor's claims (name identifier excluded) become attributes; when the
// actor has its own actor, its blob recurses as the last attribute.
func EncodeActor(actor *Identity) (string, error) {
	if actor == nil {
		return "", fmt.Errorf("actor identity is nil")
	}

	inner := make([]Claim, 0, len(actor.Claims))
	for _, c := range actor.Claims {
		if c.Type == ClaimTypeNameIdentifier {
			continue
		}
		inner = append(inner, c)
	}
	attrs, err := AttributesFromClaims(inner)
	if err != nil {
		return "", err
	}
	if actor.Actor != nil {
		blob, err := EncodeActor(actor.Actor)
		if err != nil {
			return "", err
		}
		attrs = append(attrs, saml.Attribute{
			Name:    ClaimTypeActor,
			XSIType: ValueTypeString,
			Values:  []string{blob},
		})
	}

	doc := etree.NewDocument()
	root := doc.CreateElement("Actor")
	root.CreateAttr("xmlns:saml", saml.NsAssertion)
	var serializer saml.Serializer
	for _, attr := range attrs {
		serializer.WriteAttribute(root, attr)
	}
	return doc.WriteToString()
}

// DecodeActor parses an Actor claim blob into an identity whose claims
// carry the given issuer. An inner attribute named with the Actor claim
// type recurses; a second one at the same level fails
// ErrNestedActorConflict.
func DecodeActor(blob, issuer string) (*Identity, error) {
	doc := etree.NewDocument()
	if err := doc.ReadFromString(blob); err != nil {
		return nil, fmt.Errorf("parsing actor blob: %w", err)
	}
	root := doc.Root()
	if root == nil || root.Tag != "Actor" {
		return nil, fmt.Errorf("actor blob root is not an Actor element")
	}

	identity := NewIdentity()
	var serializer saml.Serializer
	for _, attrEl := range root.ChildElements() {
		if attrEl.Tag != "Attribute" {
			continue
		}
		attr, err := serializer.ReadAttribute(attrEl)
		if err != nil {
			return nil, err
		}
		if attr.Name == ClaimTypeActor {
			if identity.Actor != nil {
				return nil, ErrNestedActorConflict
			}
			if len(attr.Values) == 0 {
				return nil, fmt.Errorf("actor attribute has no value")
			}
			nested, err := DecodeActor(attr.Values[0], issuer)
			if err != nil {
				return nil, err
			}
			identity.Actor = nested
			continue
		}
		for _, c := range ClaimsFromAttribute(attr, issuer) {
			identity.AddClaim(c)
		}
	}
	return identity, nil
}
