// Copyright (c) 2025 SIROS Foundation
// SPDX-License-Identifier: BSD-2-Clause

package saml

import (
	"time"

	"github.com/beevik/etree"

	"github.com/sirosfoundation/go-saml2/pkg/xmlsec"
)

// Namespace constants for SAML 2.0 assertions
const (
	NsAssertion = "urn:oasis:names:tc:SAML:2.0:assertion"
	NsXMLDSig   = "http://www.w3.org/2000/09/xmldsig#"
	NsXSI       = "http://www.w3.org/2001/XMLSchema-instance"
	NsXSD       = "http://www.w3.org/2001/XMLSchema"
)

// Subject confirmation methods
const (
	// ConfirmationMethodBearer asserts that possession of the token confers
	// the subject's identity. It is the only method this library produces.
	ConfirmationMethodBearer = "urn:oasis:names:tc:SAML:2.0:cm:bearer"
)

// Version is the SAML version written on every assertion
const Version = "2.0"

// DateTimeFormat is the canonical XML dateTime form (UTC, millisecond
// precision) used for IssueInstant, condition boundaries, and
// authentication instants.
const DateTimeFormat = "2006-01-02T15:04:05.000Z"

// dateTimeLayouts are the accepted layouts on the read path. SAML peers
// vary in fractional-second precision and zone notation.
var dateTimeLayouts = []string{
	DateTimeFormat,
	"2006-01-02T15:04:05Z",
	time.RFC3339Nano,
	time.RFC3339,
}

// Assertion is the root of the SAML 2.0 assertion tree.
//
// On the inbound path an Assertion is produced by Serializer.ReadAssertion
// and mutated only to attach the verified signing key. On the outbound path
// it is assembled by the token handler and consumed by the writer.
type Assertion struct {
	ID           string
	IssueInstant time.Time
	Issuer       *NameID
	Subject      *Subject
	Conditions   *Conditions
	Advice       *Advice
	Statements   []Statement

	// Signature is populated on parse and verified at most once.
	Signature *xmlsec.Signature

	// SigningKey is the key that verified the signature. It is set by the
	// token handler on successful verification and is nil otherwise.
	SigningKey xmlsec.VerificationKey

	root *etree.Element
}

// Element returns the source element the assertion was parsed from, or nil
// for assertions assembled in memory. Signature verification canonicalizes
// this exact sub-tree.
func (a *Assertion) Element() *etree.Element {
	return a.root
}

// NameID identifies a subject or issuer.
type NameID struct {
	Value           string
	Format          string
	NameQualifier   string
	SPNameQualifier string
	SPProvidedID    string
}

// Subject holds the assertion subject and its confirmations.
type Subject struct {
	NameID        *NameID
	Confirmations []SubjectConfirmation
}

// SubjectConfirmation binds the assertion to the presenting party.
type SubjectConfirmation struct {
	Method string
	NameID *NameID
	Data   *SubjectConfirmationData
}

// SubjectConfirmationData constrains a subject confirmation.
type SubjectConfirmationData struct {
	NotBefore    *time.Time
	NotOnOrAfter *time.Time
	Recipient    string
	InResponseTo string
	Address      string
}

// Conditions constrain the validity of an assertion. NotBefore and
// NotOnOrAfter define the half-open interval [NotBefore, NotOnOrAfter).
type Conditions struct {
	NotBefore            *time.Time
	NotOnOrAfter         *time.Time
	AudienceRestrictions []AudienceRestriction
	OneTimeUse           bool
	ProxyRestriction     *ProxyRestriction
}

// AudienceRestriction is one set of audience URIs the assertion is valid for.
type AudienceRestriction struct {
	Audiences []string
}

// ProxyRestriction limits onward assertion issuance by the relying party.
type ProxyRestriction struct {
	Count     *int
	Audiences []string
}

// Advice carries additional issuer guidance. It is preserved verbatim.
type Advice struct {
	XML string
}

// Statement is one of the assertion statement variants.
type Statement interface {
	isStatement()
}

// AttributeStatement carries subject attributes.
type AttributeStatement struct {
	Attributes []Attribute
}

func (*AttributeStatement) isStatement() {}

// Attribute is a named, possibly multi-valued subject attribute.
//
// OriginalIssuer records the authority the attribute originates from when
// it differs from the assertion issuer. Two attributes collapse into one
// when their (Name, XSIType, OriginalIssuer) triples are equal.
type Attribute struct {
	Name           string
	NameFormat     string
	FriendlyName   string
	XSIType        string
	OriginalIssuer string
	Values         []string
}

// AuthnStatement describes an authentication event.
type AuthnStatement struct {
	AuthnInstant        time.Time
	SessionIndex        string
	SessionNotOnOrAfter *time.Time
	SubjectLocality     *SubjectLocality
	Context             AuthnContext
}

func (*AuthnStatement) isStatement() {}

// AuthnContext identifies how the subject authenticated.
type AuthnContext struct {
	ClassRef string
	DeclRef  string
}

// SubjectLocality records where the subject authenticated from.
type SubjectLocality struct {
	Address string
	DNSName string
}

// AuthzDecisionStatement carries an authorization decision. It contributes
// no claims; the statement is preserved for pass-through.
type AuthzDecisionStatement struct {
	Resource string
	Decision string
	Actions  []Action
	Evidence string
}

func (*AuthzDecisionStatement) isStatement() {}

// Action is one action within an authorization decision.
type Action struct {
	Namespace string
	Value     string
}

// UnknownStatement preserves a statement variant the serializer does not
// model. It is re-emitted verbatim on write and contributes no claims.
type UnknownStatement struct {
	XML string
}

func (*UnknownStatement) isStatement() {}

// FormatDateTime renders t in the canonical XML dateTime form (UTC).
func FormatDateTime(t time.Time) string {
	return t.UTC().Format(DateTimeFormat)
}

// ParseDateTime parses a SAML dateTime value in any accepted layout.
func ParseDateTime(s string) (time.Time, error) {
	var err error
	for _, layout := range dateTimeLayouts {
		var t time.Time
		if t, err = time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, err
}
