// SPDX-License-Identifier: MIT
//
// Copyright (C) 2020-2025 Daniel Bourdrez. All Rights Reserved.
//
// This source code is licensed under the MIT license found in the
// LICENSE file in the root directory of this source tree or at
// https://spdx.org/licenses/MIT.html

// Package keyrecovery implements the OPAQUE envelope: the authenticated container that carries
// the client's long-term AKE key pair and identity binding from registration through to every
// subsequent login, as specified in RFC 9807 Section 4.1 (Envelope) and Section 4.2 (CreateEnvelope
// / RecoverEnvelope).
package keyrecovery

import (
	"github.com/bytemare/ecc"

	"github.com/wyne-labs/opaque/internal"
	"github.com/wyne-labs/opaque/internal/encoding"
	"github.com/wyne-labs/opaque/internal/tag"
	"github.com/wyne-labs/opaque/message"
)

// CleartextCredentials is the (serverPublicKey, clientIdentity, serverIdentity) triple bound into
// the envelope's authentication tag. Identities default to the respective public key when absent.
type CleartextCredentials struct {
	ServerPublicKey []byte
	ClientIdentity  []byte
	ServerIdentity  []byte
}

func newCleartextCredentials(serverPublicKey, clientPublicKey, clientIdentity, serverIdentity []byte) *CleartextCredentials {
	if clientIdentity == nil {
		clientIdentity = clientPublicKey
	}

	if serverIdentity == nil {
		serverIdentity = serverPublicKey
	}

	return &CleartextCredentials{
		ServerPublicKey: serverPublicKey,
		ClientIdentity:  clientIdentity,
		ServerIdentity:  serverIdentity,
	}
}

// serialize encodes the cleartext credentials with the same length-prefixed vector scheme used in
// the 3DH preamble, so both store and recover hash the exact same bytes under HMAC.
func (c *CleartextCredentials) serialize() []byte {
	return encoding.Concatenate(
		c.ServerPublicKey,
		encoding.EncodeVector(c.ClientIdentity),
		encoding.EncodeVector(c.ServerIdentity),
	)
}

func deriveAuthKeyPair(conf *internal.Configuration, randomizedPwd, nonce []byte) (*ecc.Scalar, *ecc.Element) {
	seed := conf.KDF.Expand(randomizedPwd, encoding.SuffixString(nonce, tag.ExpandPrivateKey), internal.SeedLength)

	sk, pk, err := conf.OPRF.DeriveKeyPair(seed, []byte(tag.DerivePrivateKey))
	if err != nil {
		// Unreachable in practice: rejection sampling fails with probability ~2^-2048.
		panic(err)
	}

	return sk, pk
}

func deriveKeys(conf *internal.Configuration, randomizedPwd, nonce []byte) (authKey, exportKey []byte) {
	authKey = conf.KDF.Expand(randomizedPwd, encoding.SuffixString(nonce, tag.AuthKey), conf.Hash.Size())
	exportKey = conf.KDF.Expand(randomizedPwd, encoding.SuffixString(nonce, tag.ExportKey), conf.Hash.Size())

	return authKey, exportKey
}

// Store builds a fresh Envelope from a freshly computed randomizedPwd, per RFC 9807 Section 4.2's
// CreateEnvelope. It returns the envelope, the client's long-term public key, the masking key that
// will later hide the credential response, and the client's export key.
func Store(
	conf *internal.Configuration,
	randomizedPwd, serverPublicKey, clientIdentity, serverIdentity, nonce []byte,
) (envU *message.Envelope, clientPublicKey, maskingKey, exportKey []byte) {
	if nonce == nil {
		nonce = internal.RandomBytes(conf.NonceLen)
	}

	maskingKey = conf.KDF.Expand(randomizedPwd, []byte(tag.MaskingKey), conf.Hash.Size())

	_, pk := deriveAuthKeyPair(conf, randomizedPwd, nonce)
	clientPublicKey = pk.Encode()

	authKey, exportKey := deriveKeys(conf, randomizedPwd, nonce)

	cleartext := newCleartextCredentials(serverPublicKey, clientPublicKey, clientIdentity, serverIdentity)
	authTag := conf.MAC.MAC(authKey, nonce, cleartext.serialize())

	return &message.Envelope{Nonce: nonce, AuthTag: authTag}, clientPublicKey, maskingKey, exportKey
}

// Recover verifies and opens an Envelope against a freshly (re-)computed randomizedPwd, per RFC
// 9807 Section 4.2's RecoverEnvelope. On success it returns the client's long-term key pair, the
// cleartext credentials that were bound into the tag, and the client's export key. A tag mismatch
// is reported as internal.ErrAuthenticationFailed and MUST NOT be distinguished from any other
// authentication failure by the caller.
func Recover(
	conf *internal.Configuration,
	randomizedPwd, serverPublicKey, clientIdentity, serverIdentity []byte,
	envU *message.Envelope,
) (clientSecretKey *ecc.Scalar, clientPublicKey *ecc.Element, cleartext *CleartextCredentials, exportKey []byte, err error) {
	authKey, exportKey := deriveKeys(conf, randomizedPwd, envU.Nonce)

	sk, pk := deriveAuthKeyPair(conf, randomizedPwd, envU.Nonce)

	cleartext = newCleartextCredentials(serverPublicKey, pk.Encode(), clientIdentity, serverIdentity)
	expectedTag := conf.MAC.MAC(authKey, envU.Nonce, cleartext.serialize())

	if !conf.MAC.Equal(expectedTag, envU.AuthTag) {
		return nil, nil, nil, nil, internal.ErrAuthenticationFailed
	}

	return sk, pk, cleartext, exportKey, nil
}
