// Copyright (c) 2025 SIROS Foundation
// SPDX-License-Identifier: BSD-2-Clause

// Package saml provides the SAML 2.0 assertion data model and its XML
// serializer.
//
// The model mirrors the OASIS SAML 2.0 core schema
// (urn:oasis:names:tc:SAML:2.0:assertion): Assertion, Subject, NameID,
// SubjectConfirmation, Conditions, and the statement variants
// (AttributeStatement, AuthnStatement, AuthzDecisionStatement). Statement
// variants the serializer does not recognize are preserved as raw XML and
// re-emitted verbatim.
//
// The Serializer reads and writes assertions over an etree DOM. On the read
// path the source element is retained on the Assertion so that signature
// verification can canonicalize the exact signed sub-tree.
package saml
