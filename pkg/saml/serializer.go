// Copyright (c) 2025 SIROS Foundation
// SPDX-License-Identifier: BSD-2-Clause

package saml

import (
	"fmt"
	"strings"
	"time"

	"github.com/beevik/etree"
	"github.com/google/uuid"

	"github.com/sirosfoundation/go-saml2/pkg/xmlsec"
)

// NewID generates an assertion ID. The leading underscore keeps the value a
// valid XML NCName regardless of the first UUID character.
func NewID() string {
	return "_" + uuid.New().String()
}

// Serializer reads and writes SAML 2.0 assertions over an etree DOM.
//
// The zero value is ready to use. A Serializer holds no state and is safe
// for concurrent use.
type Serializer struct{}

// IsAssertion reports whether el is a SAML 2.0 Assertion start element.
func (s *Serializer) IsAssertion(el *etree.Element) bool {
	return el != nil && el.Tag == "Assertion" && el.NamespaceURI() == NsAssertion
}

// ReadAssertion parses an Assertion element into the model. The source
// element is retained on the result for signature verification.
func (s *Serializer) ReadAssertion(el *etree.Element) (*Assertion, error) {
	if !s.IsAssertion(el) {
		return nil, fmt.Errorf("element is not a %s Assertion", NsAssertion)
	}
	if v := el.SelectAttrValue("Version", ""); v != Version {
		return nil, fmt.Errorf("unsupported SAML version %q", v)
	}

	a := &Assertion{
		ID:   el.SelectAttrValue("ID", ""),
		root: el,
	}
	if a.ID == "" {
		return nil, fmt.Errorf("Assertion has no ID")
	}
	instant, err := ParseDateTime(el.SelectAttrValue("IssueInstant", ""))
	if err != nil {
		return nil, fmt.Errorf("parsing IssueInstant: %w", err)
	}
	a.IssueInstant = instant

	issuerEl := el.SelectElement("Issuer")
	if issuerEl == nil || strings.TrimSpace(issuerEl.Text()) == "" {
		return nil, fmt.Errorf("Assertion has no Issuer")
	}
	a.Issuer = readNameID(issuerEl)

	if sigEl := el.SelectElement("Signature"); sigEl != nil {
		sig, err := xmlsec.ReadSignature(sigEl)
		if err != nil {
			return nil, fmt.Errorf("parsing Signature: %w", err)
		}
		a.Signature = sig
	}

	if subjectEl := el.SelectElement("Subject"); subjectEl != nil {
		subject, err := readSubject(subjectEl)
		if err != nil {
			return nil, err
		}
		a.Subject = subject
	}

	if condEl := el.SelectElement("Conditions"); condEl != nil {
		conditions, err := readConditions(condEl)
		if err != nil {
			return nil, err
		}
		a.Conditions = conditions
	}

	if adviceEl := el.SelectElement("Advice"); adviceEl != nil {
		raw, err := rawXML(adviceEl)
		if err != nil {
			return nil, err
		}
		a.Advice = &Advice{XML: raw}
	}

	for _, child := range el.ChildElements() {
		switch child.Tag {
		case "Issuer", "Signature", "Subject", "Conditions", "Advice":
			continue
		case "AttributeStatement":
			stmt, err := s.readAttributeStatement(child)
			if err != nil {
				return nil, err
			}
			a.Statements = append(a.Statements, stmt)
		case "AuthnStatement":
			stmt, err := readAuthnStatement(child)
			if err != nil {
				return nil, err
			}
			a.Statements = append(a.Statements, stmt)
		case "AuthzDecisionStatement":
			stmt, err := readAuthzDecisionStatement(child)
			if err != nil {
				return nil, err
			}
			a.Statements = append(a.Statements, stmt)
		default:
			raw, err := rawXML(child)
			if err != nil {
				return nil, err
			}
			a.Statements = append(a.Statements, &UnknownStatement{XML: raw})
		}
	}

	return a, nil
}

// WriteAssertion renders the assertion as a standalone document. The
// Signature field is not written; signing attaches it to the rendered DOM.
func (s *Serializer) WriteAssertion(a *Assertion) (*etree.Document, error) {
	if a.Issuer == nil || a.Issuer.Value == "" {
		return nil, fmt.Errorf("assertion has no issuer")
	}
	if a.ID == "" {
		return nil, fmt.Errorf("assertion has no ID")
	}

	doc := etree.NewDocument()
	root := doc.CreateElement("saml:Assertion")
	root.CreateAttr("xmlns:saml", NsAssertion)
	root.CreateAttr("ID", a.ID)
	root.CreateAttr("Version", Version)
	root.CreateAttr("IssueInstant", FormatDateTime(a.IssueInstant))

	writeNameID(root, "saml:Issuer", a.Issuer)

	if a.Subject != nil {
		writeSubject(root, a.Subject)
	}
	if a.Conditions != nil {
		writeConditions(root, a.Conditions)
	}
	if a.Advice != nil {
		if err := appendRawXML(root, a.Advice.XML); err != nil {
			return nil, fmt.Errorf("writing Advice: %w", err)
		}
	}

	for _, stmt := range a.Statements {
		switch st := stmt.(type) {
		case *AttributeStatement:
			attrStmtEl := root.CreateElement("saml:AttributeStatement")
			for _, attr := range st.Attributes {
				s.WriteAttribute(attrStmtEl, attr)
			}
		case *AuthnStatement:
			writeAuthnStatement(root, st)
		case *AuthzDecisionStatement:
			writeAuthzDecisionStatement(root, st)
		case *UnknownStatement:
			if err := appendRawXML(root, st.XML); err != nil {
				return nil, fmt.Errorf("writing statement: %w", err)
			}
		default:
			return nil, fmt.Errorf("unsupported statement type %T", stmt)
		}
	}

	return doc, nil
}

// ReadAttribute parses a saml:Attribute element.
func (s *Serializer) ReadAttribute(el *etree.Element) (Attribute, error) {
	attr := Attribute{
		Name:           el.SelectAttrValue("Name", ""),
		NameFormat:     el.SelectAttrValue("NameFormat", ""),
		FriendlyName:   el.SelectAttrValue("FriendlyName", ""),
		OriginalIssuer: el.SelectAttrValue("OriginalIssuer", ""),
	}
	if attr.Name == "" {
		return Attribute{}, fmt.Errorf("Attribute has no Name")
	}
	for _, valueEl := range el.SelectElements("AttributeValue") {
		if attr.XSIType == "" {
			attr.XSIType = readXSIType(valueEl)
		}
		attr.Values = append(attr.Values, valueEl.Text())
	}
	return attr, nil
}

// WriteAttribute appends a saml:Attribute element under parent.
func (s *Serializer) WriteAttribute(parent *etree.Element, attr Attribute) {
	el := parent.CreateElement("saml:Attribute")
	el.CreateAttr("Name", attr.Name)
	if attr.NameFormat != "" {
		el.CreateAttr("NameFormat", attr.NameFormat)
	}
	if attr.FriendlyName != "" {
		el.CreateAttr("FriendlyName", attr.FriendlyName)
	}
	if attr.OriginalIssuer != "" {
		el.CreateAttr("OriginalIssuer", attr.OriginalIssuer)
	}
	for _, value := range attr.Values {
		valueEl := el.CreateElement("saml:AttributeValue")
		writeXSIType(valueEl, attr.XSIType)
		valueEl.SetText(value)
	}
}

func readNameID(el *etree.Element) *NameID {
	return &NameID{
		Value:           strings.TrimSpace(el.Text()),
		Format:          el.SelectAttrValue("Format", ""),
		NameQualifier:   el.SelectAttrValue("NameQualifier", ""),
		SPNameQualifier: el.SelectAttrValue("SPNameQualifier", ""),
		SPProvidedID:    el.SelectAttrValue("SPProvidedID", ""),
	}
}

func writeNameID(parent *etree.Element, tag string, nameID *NameID) {
	el := parent.CreateElement(tag)
	if nameID.Format != "" {
		el.CreateAttr("Format", nameID.Format)
	}
	if nameID.NameQualifier != "" {
		el.CreateAttr("NameQualifier", nameID.NameQualifier)
	}
	if nameID.SPNameQualifier != "" {
		el.CreateAttr("SPNameQualifier", nameID.SPNameQualifier)
	}
	if nameID.SPProvidedID != "" {
		el.CreateAttr("SPProvidedID", nameID.SPProvidedID)
	}
	el.SetText(nameID.Value)
}

func readSubject(el *etree.Element) (*Subject, error) {
	subject := &Subject{}
	if nameIDEl := el.SelectElement("NameID"); nameIDEl != nil {
		subject.NameID = readNameID(nameIDEl)
	}
	for _, confEl := range el.SelectElements("SubjectConfirmation") {
		conf := SubjectConfirmation{
			Method: confEl.SelectAttrValue("Method", ""),
		}
		if conf.Method == "" {
			return nil, fmt.Errorf("SubjectConfirmation has no Method")
		}
		if nameIDEl := confEl.SelectElement("NameID"); nameIDEl != nil {
			conf.NameID = readNameID(nameIDEl)
		}
		if dataEl := confEl.SelectElement("SubjectConfirmationData"); dataEl != nil {
			data := &SubjectConfirmationData{
				Recipient:    dataEl.SelectAttrValue("Recipient", ""),
				InResponseTo: dataEl.SelectAttrValue("InResponseTo", ""),
				Address:      dataEl.SelectAttrValue("Address", ""),
			}
			var err error
			if data.NotBefore, err = readOptionalTime(dataEl, "NotBefore"); err != nil {
				return nil, err
			}
			if data.NotOnOrAfter, err = readOptionalTime(dataEl, "NotOnOrAfter"); err != nil {
				return nil, err
			}
			conf.Data = data
		}
		subject.Confirmations = append(subject.Confirmations, conf)
	}
	return subject, nil
}

func writeSubject(parent *etree.Element, subject *Subject) {
	el := parent.CreateElement("saml:Subject")
	if subject.NameID != nil {
		writeNameID(el, "saml:NameID", subject.NameID)
	}
	for _, conf := range subject.Confirmations {
		confEl := el.CreateElement("saml:SubjectConfirmation")
		confEl.CreateAttr("Method", conf.Method)
		if conf.NameID != nil {
			writeNameID(confEl, "saml:NameID", conf.NameID)
		}
		if conf.Data != nil {
			dataEl := confEl.CreateElement("saml:SubjectConfirmationData")
			if conf.Data.NotBefore != nil {
				dataEl.CreateAttr("NotBefore", FormatDateTime(*conf.Data.NotBefore))
			}
			if conf.Data.NotOnOrAfter != nil {
				dataEl.CreateAttr("NotOnOrAfter", FormatDateTime(*conf.Data.NotOnOrAfter))
			}
			if conf.Data.Recipient != "" {
				dataEl.CreateAttr("Recipient", conf.Data.Recipient)
			}
			if conf.Data.InResponseTo != "" {
				dataEl.CreateAttr("InResponseTo", conf.Data.InResponseTo)
			}
			if conf.Data.Address != "" {
				dataEl.CreateAttr("Address", conf.Data.Address)
			}
		}
	}
}

func readConditions(el *etree.Element) (*Conditions, error) {
	conditions := &Conditions{}
	var err error
	if conditions.NotBefore, err = readOptionalTime(el, "NotBefore"); err != nil {
		return nil, err
	}
	if conditions.NotOnOrAfter, err = readOptionalTime(el, "NotOnOrAfter"); err != nil {
		return nil, err
	}
	for _, restrictionEl := range el.SelectElements("AudienceRestriction") {
		restriction := AudienceRestriction{}
		for _, audienceEl := range restrictionEl.SelectElements("Audience") {
			restriction.Audiences = append(restriction.Audiences, strings.TrimSpace(audienceEl.Text()))
		}
		conditions.AudienceRestrictions = append(conditions.AudienceRestrictions, restriction)
	}
	if el.SelectElement("OneTimeUse") != nil {
		conditions.OneTimeUse = true
	}
	if proxyEl := el.SelectElement("ProxyRestriction"); proxyEl != nil {
		proxy := &ProxyRestriction{}
		if countStr := proxyEl.SelectAttrValue("Count", ""); countStr != "" {
			var count int
			if _, err := fmt.Sscanf(countStr, "%d", &count); err != nil {
				return nil, fmt.Errorf("parsing ProxyRestriction Count: %w", err)
			}
			proxy.Count = &count
		}
		for _, audienceEl := range proxyEl.SelectElements("Audience") {
			proxy.Audiences = append(proxy.Audiences, strings.TrimSpace(audienceEl.Text()))
		}
		conditions.ProxyRestriction = proxy
	}
	return conditions, nil
}

func writeConditions(parent *etree.Element, conditions *Conditions) {
	el := parent.CreateElement("saml:Conditions")
	if conditions.NotBefore != nil {
		el.CreateAttr("NotBefore", FormatDateTime(*conditions.NotBefore))
	}
	if conditions.NotOnOrAfter != nil {
		el.CreateAttr("NotOnOrAfter", FormatDateTime(*conditions.NotOnOrAfter))
	}
	for _, restriction := range conditions.AudienceRestrictions {
		restrictionEl := el.CreateElement("saml:AudienceRestriction")
		for _, audience := range restriction.Audiences {
			audienceEl := restrictionEl.CreateElement("saml:Audience")
			audienceEl.SetText(audience)
		}
	}
	if conditions.OneTimeUse {
		el.CreateElement("saml:OneTimeUse")
	}
	if conditions.ProxyRestriction != nil {
		proxyEl := el.CreateElement("saml:ProxyRestriction")
		if conditions.ProxyRestriction.Count != nil {
			proxyEl.CreateAttr("Count", fmt.Sprintf("%d", *conditions.ProxyRestriction.Count))
		}
		for _, audience := range conditions.ProxyRestriction.Audiences {
			audienceEl := proxyEl.CreateElement("saml:Audience")
			audienceEl.SetText(audience)
		}
	}
}

func (s *Serializer) readAttributeStatement(el *etree.Element) (*AttributeStatement, error) {
	stmt := &AttributeStatement{}
	for _, attrEl := range el.SelectElements("Attribute") {
		attr, err := s.ReadAttribute(attrEl)
		if err != nil {
			return nil, err
		}
		stmt.Attributes = append(stmt.Attributes, attr)
	}
	return stmt, nil
}

func readAuthnStatement(el *etree.Element) (*AuthnStatement, error) {
	stmt := &AuthnStatement{
		SessionIndex: el.SelectAttrValue("SessionIndex", ""),
	}
	instant, err := ParseDateTime(el.SelectAttrValue("AuthnInstant", ""))
	if err != nil {
		return nil, fmt.Errorf("parsing AuthnInstant: %w", err)
	}
	stmt.AuthnInstant = instant
	if stmt.SessionNotOnOrAfter, err = readOptionalTime(el, "SessionNotOnOrAfter"); err != nil {
		return nil, err
	}
	if localityEl := el.SelectElement("SubjectLocality"); localityEl != nil {
		stmt.SubjectLocality = &SubjectLocality{
			Address: localityEl.SelectAttrValue("Address", ""),
			DNSName: localityEl.SelectAttrValue("DNSName", ""),
		}
	}
	if contextEl := el.SelectElement("AuthnContext"); contextEl != nil {
		if classRefEl := contextEl.SelectElement("AuthnContextClassRef"); classRefEl != nil {
			stmt.Context.ClassRef = strings.TrimSpace(classRefEl.Text())
		}
		if declRefEl := contextEl.SelectElement("AuthnContextDeclRef"); declRefEl != nil {
			stmt.Context.DeclRef = strings.TrimSpace(declRefEl.Text())
		}
	}
	return stmt, nil
}

func writeAuthnStatement(parent *etree.Element, stmt *AuthnStatement) {
	el := parent.CreateElement("saml:AuthnStatement")
	el.CreateAttr("AuthnInstant", FormatDateTime(stmt.AuthnInstant))
	if stmt.SessionIndex != "" {
		el.CreateAttr("SessionIndex", stmt.SessionIndex)
	}
	if stmt.SessionNotOnOrAfter != nil {
		el.CreateAttr("SessionNotOnOrAfter", FormatDateTime(*stmt.SessionNotOnOrAfter))
	}
	if stmt.SubjectLocality != nil {
		localityEl := el.CreateElement("saml:SubjectLocality")
		if stmt.SubjectLocality.Address != "" {
			localityEl.CreateAttr("Address", stmt.SubjectLocality.Address)
		}
		if stmt.SubjectLocality.DNSName != "" {
			localityEl.CreateAttr("DNSName", stmt.SubjectLocality.DNSName)
		}
	}
	contextEl := el.CreateElement("saml:AuthnContext")
	if stmt.Context.ClassRef != "" {
		classRefEl := contextEl.CreateElement("saml:AuthnContextClassRef")
		classRefEl.SetText(stmt.Context.ClassRef)
	}
	if stmt.Context.DeclRef != "" {
		declRefEl := contextEl.CreateElement("saml:AuthnContextDeclRef")
		declRefEl.SetText(stmt.Context.DeclRef)
	}
}

func readAuthzDecisionStatement(el *etree.Element) (*AuthzDecisionStatement, error) {
	stmt := &AuthzDecisionStatement{
		Resource: el.SelectAttrValue("Resource", ""),
		Decision: el.SelectAttrValue("Decision", ""),
	}
	for _, actionEl := range el.SelectElements("Action") {
		stmt.Actions = append(stmt.Actions, Action{
			Namespace: actionEl.SelectAttrValue("Namespace", ""),
			Value:     strings.TrimSpace(actionEl.Text()),
		})
	}
	if evidenceEl := el.SelectElement("Evidence"); evidenceEl != nil {
		raw, err := rawXML(evidenceEl)
		if err != nil {
			return nil, err
		}
		stmt.Evidence = raw
	}
	return stmt, nil
}

func writeAuthzDecisionStatement(parent *etree.Element, stmt *AuthzDecisionStatement) {
	el := parent.CreateElement("saml:AuthzDecisionStatement")
	el.CreateAttr("Resource", stmt.Resource)
	el.CreateAttr("Decision", stmt.Decision)
	for _, action := range stmt.Actions {
		actionEl := el.CreateElement("saml:Action")
		if action.Namespace != "" {
			actionEl.CreateAttr("Namespace", action.Namespace)
		}
		actionEl.SetText(action.Value)
	}
	if stmt.Evidence != "" {
		// Best effort passthrough; Evidence was captured verbatim on read.
		_ = appendRawXML(el, stmt.Evidence)
	}
}

func readOptionalTime(el *etree.Element, attr string) (*time.Time, error) {
	value := el.SelectAttrValue(attr, "")
	if value == "" {
		return nil, nil
	}
	t, err := ParseDateTime(value)
	if err != nil {
		return nil, fmt.Errorf("parsing %s: %w", attr, err)
	}
	return &t, nil
}

// readXSIType resolves the xsi:type attribute of an AttributeValue to
// "<namespace>#<local>" when its prefix is declared in scope (for any
// namespace, not only XML Schema); otherwise the raw QName is returned.
func readXSIType(el *etree.Element) string {
	var qname string
	for _, attr := range el.Attr {
		if attr.Key == "type" && attr.Space == "xsi" {
			qname = attr.Value
			break
		}
	}
	if qname == "" {
		return ""
	}
	prefix, local, found := strings.Cut(qname, ":")
	if !found {
		return qname
	}
	for scope := el; scope != nil; scope = scope.Parent() {
		for _, attr := range scope.Attr {
			if attr.Space == "xmlns" && attr.Key == prefix {
				return attr.Value + "#" + local
			}
		}
	}
	return qname
}

// writeXSIType writes an xsi:type attribute when the value type is a
// schema-qualified URI ("<ns>#<local>" with the XML Schema namespace).
func writeXSIType(el *etree.Element, xsiType string) {
	ns, local, found := strings.Cut(xsiType, "#")
	if !found || ns != NsXSD {
		return
	}
	el.CreateAttr("xmlns:xsi", NsXSI)
	el.CreateAttr("xmlns:xs", NsXSD)
	el.CreateAttr("xsi:type", "xs:"+local)
}

// rawXML renders el verbatim for pass-through preservation.
func rawXML(el *etree.Element) (string, error) {
	doc := etree.NewDocument()
	doc.SetRoot(el.Copy())
	return doc.WriteToString()
}

// appendRawXML parses a preserved fragment and appends it under parent.
func appendRawXML(parent *etree.Element, raw string) error {
	doc := etree.NewDocument()
	if err := doc.ReadFromString(raw); err != nil {
		return err
	}
	root := doc.Root()
	if root == nil {
		return fmt.Errorf("fragment has no root element")
	}
	parent.AddChild(root.Copy())
	return nil
}
