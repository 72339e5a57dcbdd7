// Copyright (c) 2025 SIROS Foundation
// SPDX-License-Identifier: BSD-2-Clause

package claims

import (
	"errors"
	"fmt"
	"net/url"

	"github.com/sirosfoundation/go-saml2/pkg/saml"
)

// ErrInvalidNameFormat is returned when a claim's attribute name format
// property is not an absolute URI.
var ErrInvalidNameFormat = errors.New("attribute name format is not an absolute URI")

// attributeKey is the equality key attributes collapse under.
type attributeKey struct {
	name           string
	xsiType        string
	originalIssuer string
}

// AttributesFromClaims flattens claims into SAML attributes and collapses
// attributes with equal (Name, XSIType, OriginalIssuer) into one attribute
// whose values concatenate in original order. Collapsing is stable:
// attribute order follows first appearance.
//
// A claim's OriginalIssuer is copied onto the attribute only when it
// differs from the claim's Issuer. The attribute name format property must
// be an absolute URI.
func AttributesFromClaims(claimList []Claim) ([]saml.Attribute, error) {
	var attrs []saml.Attribute
	index := make(map[attributeKey]int)

	for _, c := range claimList {
		attr := saml.Attribute{
			Name:    c.Type,
			XSIType: c.ValueType,
		}
		if c.OriginalIssuer != "" && c.OriginalIssuer != c.Issuer {
			attr.OriginalIssuer = c.OriginalIssuer
		}
		if format := c.Property(PropertyAttributeNameFormat); format != "" {
			u, err := url.Parse(format)
			if err != nil || !u.IsAbs() {
				return nil, fmt.Errorf("%w: %q", ErrInvalidNameFormat, format)
			}
			attr.NameFormat = format
		}
		if displayName := c.Property(PropertyAttributeDisplayName); displayName != "" {
			attr.FriendlyName = displayName
		}

		key := attributeKey{name: attr.Name, xsiType: attr.XSIType, originalIssuer: attr.OriginalIssuer}
		if i, ok := index[key]; ok {
			attrs[i].Values = append(attrs[i].Values, c.Value)
			continue
		}
		attr.Values = []string{c.Value}
		index[key] = len(attrs)
		attrs = append(attrs, attr)
	}

	return attrs, nil
}

// ClaimsFromAttribute expands a SAML attribute into one claim per value.
// issuer becomes the claim issuer; the original issuer falls back to the
// issuer when the attribute carries none. An empty xsi:type defaults to
// xs:string.
func ClaimsFromAttribute(attr saml.Attribute, issuer string) []Claim {
	valueType := attr.XSIType
	if valueType == "" {
		valueType = ValueTypeString
	}
	originalIssuer := attr.OriginalIssuer
	if originalIssuer == "" {
		originalIssuer = issuer
	}

	out := make([]Claim, 0, len(attr.Values))
	for _, value := range attr.Values {
		c := Claim{
			Type:           attr.Name,
			Value:          value,
			ValueType:      valueType,
			Issuer:         issuer,
			OriginalIssuer: originalIssuer,
		}
		if attr.NameFormat != "" {
			c.SetProperty(PropertyAttributeNameFormat, attr.NameFormat)
		}
		if attr.FriendlyName != "" {
			c.SetProperty(PropertyAttributeDisplayName, attr.FriendlyName)
		}
		out = append(out, c)
	}
	return out
}
