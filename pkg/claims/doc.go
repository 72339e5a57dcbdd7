// Copyright (c) 2025 SIROS Foundation
// SPDX-License-Identifier: BSD-2-Clause

// Package claims provides the claims-based identity model SAML 2.0
// assertions are translated to and from: typed claims attributed to an
// issuer, identities as claim bags with an optional delegated actor, and
// the codec that carries a nested actor identity as an XML attribute blob.
//
// Claim types and claim property keys follow the WS-* identity claim URIs
// so identities interoperate with other claims-based token formats.
package claims
