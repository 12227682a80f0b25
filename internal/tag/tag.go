// SPDX-License-Identifier: MIT
//
// Copyright (C) 2020-2025 Daniel Bourdrez. All Rights Reserved.
//
// This source code is licensed under the MIT license found in the
// LICENSE file in the root directory of this source tree or at
// https://spdx.org/licenses/MIT.html

// Package tag holds the domain separation labels and context string fragments used throughout the
// OPRF and OPAQUE-3DH derivations, as fixed by RFC 9497 and RFC 9807.
package tag

const (
	// OPRF is the prefix of the OPRF context string, as defined in RFC 9497 Section 3.2.
	OPRF = "OPRFV1-"

	// DeriveKeyPair is the info string fed to hash-to-scalar when rejection-sampling an OPRF key pair.
	DeriveKeyPair = "OPAQUE-DeriveKeyPair"

	// ExpandOPRF labels the HKDF-Expand call that derives the per-credential OPRF seed.
	ExpandOPRF = "OprfKey"

	// DerivePrivateKey is the info string used to derive the client's long-term AKE key pair.
	DerivePrivateKey = "OPAQUE-DeriveDiffieHellmanKeyPair"

	// ExpandPrivateKey labels the HKDF-Expand call that derives the envelope's private-key seed.
	ExpandPrivateKey = "PrivateKey"

	// AuthKey labels the HKDF-Expand call that derives the envelope authentication key.
	AuthKey = "AuthKey"

	// ExportKey labels the HKDF-Expand call that derives the client's export key.
	ExportKey = "ExportKey"

	// MaskingKey labels the HKDF-Expand call that derives the response-masking key.
	MaskingKey = "MaskingKey"

	// CredentialResponsePad labels the HKDF-Expand call that derives the masking one-time pad.
	CredentialResponsePad = "CredentialResponsePad"

	// LabelPrefix prefixes every TLS-style Expand-Label used in the 3DH key schedule.
	LabelPrefix = "OPAQUE-"

	// Handshake labels the derivation of the handshake secret from the 3DH IKM.
	Handshake = "HandshakeSecret"

	// SessionKey labels the derivation of the final session key from the 3DH IKM.
	SessionKey = "SessionKey"

	// MacServer labels the derivation of the server MAC key from the handshake secret.
	MacServer = "ServerMAC"

	// MacClient labels the derivation of the client MAC key from the handshake secret.
	MacClient = "ClientMAC"

	// VersionTag is the fixed preamble prefix, "OPAQUEv1-", mixed into the 3DH transcript.
	VersionTag = "OPAQUEv1-"

	// FakeClientKey labels the derivation of the deterministic fake client key used by generateFakeKE2.
	FakeClientKey = "FakeClientKey"

	// FakeMaskingKey labels the derivation of the deterministic fake masking key used by generateFakeKE2.
	FakeMaskingKey = "FakeMaskingKey"
)
