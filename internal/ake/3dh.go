// SPDX-License-Identifier: MIT
//
// Copyright (C) 2020-2025 Daniel Bourdrez. All Rights Reserved.
//
// This source code is licensed under the MIT license found in the
// LICENSE file in the root directory of this source tree or at
// https://spdx.org/licenses/MIT.html

// Package ake implements the OPAQUE-3DH authenticated key exchange of RFC 9807 Section 6.3: the
// triple-Diffie-Hellman key agreement, transcript/preamble assembly, and the TLS-style
// HKDF-Expand-Label key schedule that turns the raw DH shares into a session key and two MAC keys.
package ake

import (
	"github.com/bytemare/ecc"

	"github.com/wyne-labs/opaque/internal"
	"github.com/wyne-labs/opaque/internal/encoding"
	"github.com/wyne-labs/opaque/internal/tag"
	"github.com/wyne-labs/opaque/message"
)

// KeyGen returns a fresh private/public key pair in the given group, for use as a static AKE key.
func KeyGen(g ecc.Group) (sk, pk []byte) {
	scalar := g.NewScalar().Random()
	return scalar.Encode(), g.Base().Multiply(scalar).Encode()
}

// Identities holds the (possibly nil) application identities bound into the 3DH transcript. A nil
// identity defaults to the corresponding party's public key, per RFC 9807 Section 6.3.2.
type Identities struct {
	ClientIdentity []byte
	ServerIdentity []byte
}

// SetIdentities fills in any nil identity with the matching public key.
func (id *Identities) SetIdentities(clientPublicKey, serverPublicKey []byte) {
	if id.ClientIdentity == nil {
		id.ClientIdentity = clientPublicKey
	}

	if id.ServerIdentity == nil {
		id.ServerIdentity = serverPublicKey
	}
}

// Options lets a caller force the ephemeral key share or nonce that would otherwise be drawn from
// the CSPRNG. Its sole purpose is deterministic test-vector reproduction: the default constructors
// never populate it, and production code should leave it at its zero value.
type Options struct {
	KeyShareSeed []byte
	Nonce        []byte
	NonceLength  uint32
}

func setEphemeral(g ecc.Group, opts Options) (scalar *ecc.Scalar, nonce []byte) {
	if len(opts.KeyShareSeed) != 0 {
		scalar = g.NewScalar()
		if err := scalar.Decode(opts.KeyShareSeed); err != nil {
			scalar = g.NewScalar().Random()
		}
	} else {
		scalar = g.NewScalar().Random()
	}

	nonceLen := int(opts.NonceLength)
	if nonceLen == 0 {
		nonceLen = internal.NonceLength
	}

	nonce = opts.Nonce
	if len(nonce) == 0 {
		nonce = internal.RandomBytes(nonceLen)
	}

	return scalar, nonce
}

// buildLabel assembles the HKDF-Expand-Label info string:
// I2OSP(length,2) || lv("OPAQUE-" || label, 1) || lv(context, 1).
func buildLabel(length int, label, context []byte) []byte {
	prefixed := encoding.Concatenate([]byte(tag.LabelPrefix), label)

	return encoding.Concat3(
		encoding.I2OSP(length, 2),
		encoding.EncodeVectorLen(prefixed, 1),
		encoding.EncodeVectorLen(context, 1),
	)
}

func expandLabel(kdf *internal.KDF, secret, label, context []byte, length int) []byte {
	return kdf.Expand(secret, buildLabel(length, label, context), length)
}

// preamble assembles the OPAQUE-3DH transcript both sides authenticate against:
//
//	"OPAQUEv1-" || lv(context) || lv(clientIdentity) || ke1.Serialize() ||
//	lv(serverIdentity) || credentialResponse.Serialize() || serverNonce || serverAkePublicKey
func preamble(
	conf *internal.Configuration,
	ids *Identities,
	ke1 *message.KE1,
	credentialResponse *message.CredentialResponse,
	serverNonce []byte,
	serverAkePublicKey *ecc.Element,
) []byte {
	return encoding.Concatenate(
		[]byte(tag.VersionTag),
		encoding.EncodeVector(conf.Context),
		encoding.EncodeVector(ids.ClientIdentity),
		ke1.Serialize(),
		encoding.EncodeVector(ids.ServerIdentity),
		credentialResponse.Serialize(),
		serverNonce,
		serverAkePublicKey.Encode(),
	)
}

type macKeys struct {
	server, client []byte
}

// deriveKeys runs the OPAQUE-3DH key schedule: HKDF-Extract over the triple-DH IKM, followed by
// two HKDF-Expand-Label calls bound to the preamble hash (handshake secret and session key), and two
// more with an empty context that derive the per-direction MAC keys from the handshake secret.
func deriveKeys(conf *internal.Configuration, ikm, preambleHash []byte) (keys macKeys, sessionKey []byte) {
	prk := conf.KDF.Extract(nil, ikm)
	nh := conf.Hash.Size()

	handshakeSecret := expandLabel(conf.KDF, prk, []byte(tag.Handshake), preambleHash, nh)
	sessionKey = expandLabel(conf.KDF, prk, []byte(tag.SessionKey), preambleHash, nh)

	nm := conf.MAC.Size()
	keys.server = expandLabel(conf.KDF, handshakeSecret, []byte(tag.MacServer), nil, nm)
	keys.client = expandLabel(conf.KDF, handshakeSecret, []byte(tag.MacClient), nil, nm)

	return keys, sessionKey
}

// k3dh serializes three scalar-multiplication results in order, forming the triple-DH IKM
// dh1 || dh2 || dh3. Each party supplies its own scalar/point pairing for the mirrored computation.
func k3dh(p1 *ecc.Element, s1 *ecc.Scalar, p2 *ecc.Element, s2 *ecc.Scalar, p3 *ecc.Element, s3 *ecc.Scalar) []byte {
	return encoding.Concat3(p1.Multiply(s1).Encode(), p2.Multiply(s2).Encode(), p3.Multiply(s3).Encode())
}

// core3DH runs the shared half of the key exchange once both sides agree on ikm and the preamble:
// it derives the session key and both MAC keys, and returns serverMac plus a closure that finishes
// clientMac once serverMac is known. Per RFC 9807 Section 6.3.3 this is asymmetric: clientMac
// authenticates hash(preamble || serverMac), a fresh hash over the concatenation, not a
// continuation of the hash state used for preambleHash.
func core3DH(conf *internal.Configuration, ikm, preambleBytes []byte) (sessionKey, serverMac []byte, finishClientMac func(serverMac []byte) []byte) {
	preambleHash := conf.Hash.Hash(preambleBytes)
	keys, sessionKey := deriveKeys(conf, ikm, preambleHash)

	serverMac = conf.MAC.MAC(keys.server, preambleHash)

	finishClientMac = func(sMac []byte) []byte {
		transcript3 := conf.Hash.Hash(preambleBytes, sMac)
		return conf.MAC.MAC(keys.client, transcript3)
	}

	return sessionKey, serverMac, finishClientMac
}
