// Copyright (c) 2025 SIROS Foundation
// SPDX-License-Identifier: BSD-2-Clause

package claims

// Well-known claim type URIs
const (
	ClaimTypeNameIdentifier = "http://schemas.xmlsoap.org/ws/2005/05/identity/claims/nameidentifier"
	ClaimTypeName           = "http://schemas.xmlsoap.org/ws/2005/05/identity/claims/name"
	ClaimTypeEmail          = "http://schemas.xmlsoap.org/ws/2005/05/identity/claims/emailaddress"
	ClaimTypeUPN            = "http://schemas.xmlsoap.org/ws/2005/05/identity/claims/upn"
	ClaimTypeRole           = "http://schemas.microsoft.com/ws/2008/06/identity/claims/role"

	ClaimTypeAuthenticationInstant = "http://schemas.microsoft.com/ws/2008/06/identity/claims/authenticationinstant"
	ClaimTypeAuthenticationMethod  = "http://schemas.microsoft.com/ws/2008/06/identity/claims/authenticationmethod"

	// ClaimTypeActor carries a delegated identity encoded as an XML blob;
	// see EncodeActor and DecodeActor.
	ClaimTypeActor = "http://schemas.xmlsoap.org/ws/2009/09/identity/claims/actor"
)

// Claim value type URIs (XML Schema)
const (
	ValueTypeString   = "http://www.w3.org/2001/XMLSchema#string"
	ValueTypeDateTime = "http://www.w3.org/2001/XMLSchema#dateTime"
)

// Claim property keys for SAML-specific metadata carried alongside a claim
const (
	claimPropertyBase = "http://schemas.xmlsoap.org/ws/2005/05/identity/claimproperties/"

	PropertyNameIDFormat    = claimPropertyBase + "format"
	PropertyNameQualifier   = claimPropertyBase + "namequalifier"
	PropertySPNameQualifier = claimPropertyBase + "spnamequalifier"
	PropertySPProvidedID    = claimPropertyBase + "spprovidedid"

	PropertyAttributeNameFormat  = claimPropertyBase + "attributename"
	PropertyAttributeDisplayName = claimPropertyBase + "displayname"
)

// Claim is a typed attribute-value pair attributed to an issuer.
type Claim struct {
	// Type is the claim type URI.
	Type string

	// Value is the claim value, always a string at this layer.
	Value string

	// ValueType is the XML Schema type URI of Value.
	ValueType string

	// Issuer is the authority that issued the containing token.
	Issuer string

	// OriginalIssuer is the authority the claim originates from when it
	// was re-issued; equal to Issuer otherwise.
	OriginalIssuer string

	// Properties carries SAML-specific claim metadata (name-id format,
	// attribute friendly name, and similar) keyed by the Property* URIs.
	Properties map[string]string
}

// Property returns the named property, or "" when absent.
func (c *Claim) Property(key string) string {
	if c.Properties == nil {
		return ""
	}
	return c.Properties[key]
}

// SetProperty sets a claim property, allocating the map on first use.
func (c *Claim) SetProperty(key, value string) {
	if c.Properties == nil {
		c.Properties = make(map[string]string)
	}
	c.Properties[key] = value
}

// Identity is a bag of claims representing an authenticated party, with an
// optional nested actor identity for delegation chains. At most one actor
// per identity; deeper chains nest through the actor's own Actor.
type Identity struct {
	Claims []Claim

	Actor *Identity

	// BootstrapToken retains the validated security token when the
	// validation parameters request it.
	BootstrapToken any
}

// NewIdentity returns an empty identity.
func NewIdentity() *Identity {
	return &Identity{}
}

// AddClaim appends a claim to the identity.
func (i *Identity) AddClaim(c Claim) {
	i.Claims = append(i.Claims, c)
}

// FindAll returns the claims of the given type in insertion order.
func (i *Identity) FindAll(claimType string) []Claim {
	var found []Claim
	for _, c := range i.Claims {
		if c.Type == claimType {
			found = append(found, c)
		}
	}
	return found
}

// First returns the first claim of the given type, or nil.
func (i *Identity) First(claimType string) *Claim {
	for idx := range i.Claims {
		if i.Claims[idx].Type == claimType {
			return &i.Claims[idx]
		}
	}
	return nil
}
