// Copyright (c) 2025 SIROS Foundation
// SPDX-License-Identifier: BSD-2-Clause

// Package xmlsec provides the cryptographic surface for SAML 2.0 token
// processing: verification keys, signing credentials, the XML signature
// model, and the canonicalization transform pipeline.
//
// Canonicalization is delegated to the signedxml package (exclusive XML
// canonicalization and the enveloped-signature transform); this package
// wires those algorithms into a TransformFactory that signing and
// verification both consume, so the two paths always agree on the signed
// byte stream.
//
// Keys are deliberately opaque: a VerificationKey only verifies bytes and
// reports its key identifier. Trust decisions (which keys are candidates
// for a given issuer) belong to the caller.
package xmlsec
