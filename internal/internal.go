// SPDX-License-Identifier: MIT
//
// Copyright (C) 2020-2025 Daniel Bourdrez. All Rights Reserved.
//
// This source code is licensed under the MIT license found in the
// LICENSE file in the root directory of this source tree or at
// https://spdx.org/licenses/MIT.html

// Package internal holds the configuration, key-derivation and hashing plumbing shared by the
// oprf, ake, keyrecovery and masking packages. Nothing here is part of the public API.
package internal

import (
	"crypto"
	"crypto/hmac"
	"crypto/rand"
	"errors"
	"hash"
	"io"

	"golang.org/x/crypto/hkdf"

	"github.com/bytemare/ecc"
	bmhash "github.com/bytemare/hash"
	"github.com/bytemare/ksf"

	"github.com/wyne-labs/opaque/internal/encoding"
	"github.com/wyne-labs/opaque/internal/oprf"
)

const (
	// NonceLength is the length, in bytes, of every nonce used in OPAQUE (envelope, masking, AKE).
	NonceLength = 32

	// SeedLength is the length, in bytes, of the seed fed to DeriveDiffieHellmanKeyPair when building
	// an envelope. RFC 9807 Section 4.1.2 fixes this independently of the chosen cipher suite.
	SeedLength = 32
)

var (
	// ErrConfigurationInvalidLength is returned when a serialized Configuration is too short to decode.
	ErrConfigurationInvalidLength = errors.New("invalid encoded configuration length")

	// ErrAuthenticationFailed is returned whenever a MAC or AEAD tag fails to verify: envelope
	// recovery, server MAC validation in KE2, or client MAC validation in KE3. The three are folded
	// into a single error so a transport layer cannot distinguish the failing stage from the outside.
	ErrAuthenticationFailed = errors.New("authentication failed")
)

// RandomBytes returns length bytes read from a CSPRNG (wrapper for crypto/rand).
func RandomBytes(length int) []byte {
	b := make([]byte, length)
	if _, err := rand.Read(b); err != nil {
		panic(err)
	}

	return b
}

// Configuration gathers every algorithm choice that must be identical on both ends of a protocol
// run: the OPRF and AKE groups, the KDF/MAC/Hash instances, the key-stretching function, and the
// application context string mixed into the 3DH transcript.
type Configuration struct {
	KDF          *KDF
	MAC          *Mac
	Hash         *Hash
	KSF          *KSF
	OPRF         oprf.Identifier
	Group        ecc.Group
	Context      []byte
	NonceLen     int
	EnvelopeSize int
}

// Hash wraps a crypto.Hash. Its one-shot Hash method computes the 3DH transcript digests
// (preambleHash, and the clientMac's "preamble || serverMac" input) as fresh hashes; Write and Sum
// drive a separate running hash that the 3DH code does not use.
type Hash struct {
	id crypto.Hash
	h  hash.Hash
}

// NewHash returns a Hash instance for the given crypto.Hash identifier.
func NewHash(id crypto.Hash) *Hash {
	return &Hash{id: id, h: id.New()}
}

// Write appends data to the running hash.
func (h *Hash) Write(data ...[]byte) {
	for _, d := range data {
		_, _ = h.h.Write(d)
	}
}

// Sum returns the current digest without resetting the running hash.
func (h *Hash) Sum() []byte {
	return h.h.Sum(nil)
}

// Hash returns the one-shot digest of the concatenation of data.
func (h *Hash) Hash(data ...[]byte) []byte {
	hh := h.id.New()
	for _, d := range data {
		_, _ = hh.Write(d)
	}

	return hh.Sum(nil)
}

// Size returns the digest size Nh, in bytes, of the underlying hash function.
func (h *Hash) Size() int {
	return h.id.Size()
}

// Available reports whether id identifies a hash function usable as KDF, MAC, or Hash instance.
func Available(id crypto.Hash) bool {
	return bmhash.Hashing(id).Available()
}

// KDF wraps RFC 5869 HKDF over a fixed hash function, exposing the Extract/Expand split the
// OPAQUE-3DH key schedule and envelope derivations are built on.
type KDF struct {
	id crypto.Hash
}

// NewKDF returns a KDF instance bound to the given hash function.
func NewKDF(id crypto.Hash) *KDF {
	return &KDF{id: id}
}

// Size returns the KDF's output block size Nh, in bytes.
func (k *KDF) Size() int {
	return k.id.Size()
}

// Extract implements HKDF-Extract(salt, ikm). A nil salt is replaced, per RFC 5869, by Nh zero bytes.
func (k *KDF) Extract(salt, ikm []byte) []byte {
	if salt == nil {
		salt = make([]byte, k.id.Size())
	}

	mac := hmac.New(k.id.New, salt)
	_, _ = mac.Write(ikm)

	return mac.Sum(nil)
}

// Expand implements HKDF-Expand(prk, info, length).
func (k *KDF) Expand(prk, info []byte, length int) []byte {
	out := make([]byte, length)

	r := hkdf.Expand(k.id.New, prk, info)
	if _, err := io.ReadFull(r, out); err != nil {
		panic(err)
	}

	return out
}

// Mac wraps HMAC over a fixed hash function, with constant-time tag comparison.
type Mac struct {
	id crypto.Hash
}

// NewMac returns a Mac instance bound to the given hash function.
func NewMac(id crypto.Hash) *Mac {
	return &Mac{id: id}
}

// Size returns the MAC output size Nm, in bytes.
func (m *Mac) Size() int {
	return m.id.Size()
}

// MAC returns HMAC(key, data...).
func (m *Mac) MAC(key []byte, data ...[]byte) []byte {
	mac := hmac.New(m.id.New, key)
	for _, d := range data {
		_, _ = mac.Write(d)
	}

	return mac.Sum(nil)
}

// Equal reports whether a and b are equal, in constant time.
func (m *Mac) Equal(a, b []byte) bool {
	return hmac.Equal(a, b)
}

// KSF wraps the configured key-stretching function (identity or Argon2id) applied to OPRF output
// before it is mixed into the randomized password.
type KSF struct {
	id     ksf.Identifier
	params [3]int
}

// NewKSF returns a KSF instance for the given identifier, with the library's default parameters.
// Call Parameterize to override them (e.g. for Argon2id memory/iterations/parallelism).
func NewKSF(id ksf.Identifier) *KSF {
	return &KSF{id: id}
}

// Parameterize overrides the tuning parameters forwarded to the underlying KSF implementation.
// For Argon2id these are (memory in KiB, iterations, parallelism); ignored by Identity.
func (k *KSF) Parameterize(memory, iterations, parallelism int) {
	k.params = [3]int{memory, iterations, parallelism}
}

// Harden stretches input to outputLength bytes using the configured KSF and a fixed, all-zero
// salt. The salt MUST stay zero: per-record salting would make randomizedPwd non-deterministic
// across registration and login, which breaks the protocol.
func (k *KSF) Harden(input []byte, outputLength int) []byte {
	salt := make([]byte, 32)

	if k.id == 0 || k.id == ksf.Identity {
		return append([]byte{}, input...)
	}

	if k.params[0] == 0 {
		return k.id.Get().Harden(input, salt, outputLength)
	}

	return k.id.Get().Parameterize(k.params[0], k.params[1], k.params[2]).Harden(input, salt, outputLength)
}

// RandomizedPassword derives the per-credential secret from a freshly computed OPRF output, per
// RFC 9807 Section 4.1.1: HKDF-Extract of the output concatenated with its KSF-stretched form.
// This is the seed every envelope and session-key derivation is rooted in.
func (c *Configuration) RandomizedPassword(oprfOutput []byte) []byte {
	stretched := c.KSF.Harden(oprfOutput, c.Hash.Size())
	return c.KDF.Extract(nil, encoding.Concatenate(oprfOutput, stretched))
}
