// Copyright (c) 2025 SIROS Foundation
// SPDX-License-Identifier: BSD-2-Clause

// Package token implements the SAML 2.0 security token handler: issuing
// signed assertions from a token descriptor, and reading, verifying, and
// validating incoming assertions into a claims identity.
//
// Validation runs as a fixed pipeline: parse, signature verification
// against the candidate keys, condition and subject validation, issuer
// resolution, replay validation, claims translation. Signature
// verification, key resolution, and the lifetime, audience, issuer and
// replay checks are replaceable through the ValidationParameters callbacks;
// a nil callback selects the default free-function validator. The
// subject-presence check and the proxy-restriction check are not
// replaceable. Any stage failure is terminal and leaves no observable
// state behind.
//
// A Handler is reentrant and safe for concurrent validations once
// constructed. The configuration setters exist for legacy API parity and
// must not race in-flight validations; treat the handler as immutable
// after construction.
package token
