// Copyright (c) 2025 SIROS Foundation
// SPDX-License-Identifier: BSD-2-Clause

// Package replay provides an in-memory replay window for one-time-use
// SAML 2.0 assertions. A Cache remembers presented tokens for a bounded
// window and rejects re-presentation; it plugs into the token handler as
// the ReplayValidator stage.
//
// The cache is in-process. Deployments that validate tokens across several
// processes need a shared store behind their own ReplayValidator.
package replay
