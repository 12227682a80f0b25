// SPDX-License-Identifier: MIT
//
// Copyright (C) 2020-2025 Daniel Bourdrez. All Rights Reserved.
//
// This source code is licensed under the MIT license found in the
// LICENSE file in the root directory of this source tree or at
// https://spdx.org/licenses/MIT.html

// Package opaque implements OPAQUE-3DH (RFC 9807), an asymmetric password-authenticated key
// exchange protocol secure against pre-computation attacks: a client authenticates to a server
// without the server ever learning the password. The OPRF half (RFC 9497) and the hash-to-curve
// primitives it depends on (RFC 9380) live in internal/oprf and, beneath that, in the
// github.com/bytemare/ecc group library.
package opaque

import (
	"crypto"
	"errors"
	"fmt"

	"github.com/bytemare/ecc"
	"github.com/bytemare/hash"
	"github.com/bytemare/ksf"

	"github.com/wyne-labs/opaque/internal"
	"github.com/wyne-labs/opaque/internal/ake"
	"github.com/wyne-labs/opaque/internal/encoding"
	"github.com/wyne-labs/opaque/internal/oprf"
	"github.com/wyne-labs/opaque/message"
)

// Group identifies the prime-order group with hash-to-curve capability to use in OPRF and AKE.
type Group byte

const (
	// RistrettoSha512 identifies the Ristretto255 group and SHA-512. RFC 9807 defines no AKE
	// ciphersuite for this group; per Section 9's open question it is exposed here regardless,
	// since the state machines below only depend on generic group operations. New deployments
	// should prefer one of the NIST curves unless they document a concrete reason not to.
	RistrettoSha512 = Group(ecc.Ristretto255Sha512)

	// P256Sha256 identifies the NIST P-256 group and SHA-256.
	P256Sha256 = Group(ecc.P256Sha256)

	// P384Sha512 identifies the NIST P-384 group and SHA-384.
	P384Sha512 = Group(ecc.P384Sha384)

	// P521Sha512 identifies the NIST P-521 group and SHA-512.
	P521Sha512 = Group(ecc.P521Sha512)
)

// Available returns whether the Group byte is recognized in this implementation. This allows to fail early when
// working with multiple versions not using the same configuration and ecc.
func (g Group) Available() bool {
	return g == RistrettoSha512 ||
		g == P256Sha256 ||
		g == P384Sha512 ||
		g == P521Sha512
}

// OPRF returns the OPRF Identifier used in the Ciphersuite.
func (g Group) OPRF() oprf.Identifier {
	return oprf.IDFromGroup(g.Group())
}

// Group returns the EC Group used in the Ciphersuite.
func (g Group) Group() ecc.Group {
	return ecc.Group(g)
}

// HashToGroupSecp256k1 exposes RFC 9380 hash-to-curve for secp256k1 directly, bypassing OPRF and
// OPAQUE. RFC 9807 defines no AKE ciphersuite for secp256k1, and RFC 9497 Section 4 pairs no OPRF
// suite with it either, so it is never reachable through Group or Configuration above. This is the
// only supported entry point for secp256k1's hash-to-curve map in this package.
func HashToGroupSecp256k1(msg, dst []byte) *ecc.Element {
	return ecc.Secp256k1Sha256.HashToGroup(msg, dst)
}

const confIDsLength = 6

var (
	errInvalidOPRFid = errors.New("invalid OPRF group id")
	errInvalidKDFid  = errors.New("invalid KDF id")
	errInvalidMACid  = errors.New("invalid MAC id")
	errInvalidHASHid = errors.New("invalid Hash id")
	errInvalidKSFid  = errors.New("invalid KSF id")
	errInvalidAKEid  = errors.New("invalid AKE group id")

	// ErrAuthenticationFailed is returned by every OPAQUE operation that verifies a MAC or
	// authentication tag: envelope recovery, server MAC verification in GenerateKE3, and client
	// MAC verification in LoginFinish. All three failure stages map to this single error so a
	// transport built on this package cannot leak which one failed.
	ErrAuthenticationFailed = internal.ErrAuthenticationFailed

	// ErrStateAlreadyUsed is returned when a one-shot state object (ClientRegistrationState,
	// ClientAuthState, or the Server's own per-login state) is driven a second time. Every such
	// state is consumed by its single finishing call, per Section 4.7.6.
	ErrStateAlreadyUsed = errors.New("opaque: state object has already been consumed")
)

// KSFParameters tunes the Argon2id key-stretching function applied to OPRF output before it is
// mixed into the randomized password. It has no effect when Configuration.KSF is ksf.Identity.
// Client and server MUST agree on these values: a mismatch produces an AuthenticationFailed
// indistinguishable from a wrong password, per Section 4.6.
type KSFParameters struct {
	MemoryKiB   int
	Iterations  int
	Parallelism int
}

// Configuration represents an OPAQUE configuration. Note that OPRF and AKE are recommended to be the same,
// as well as KDF, MAC, Hash should be the same.
type Configuration struct {
	Context   []byte
	KDF       crypto.Hash    `json:"kdf"`
	MAC       crypto.Hash    `json:"mac"`
	Hash      crypto.Hash    `json:"hash"`
	KSF       ksf.Identifier `json:"ksf"`
	KSFParams *KSFParameters `json:"ksfParams,omitempty"`
	OPRF      Group          `json:"oprf"`
	AKE       Group          `json:"group"`
}

// DefaultConfiguration returns a default configuration with strong parameters.
func DefaultConfiguration() *Configuration {
	return &Configuration{
		OPRF:    P256Sha256,
		AKE:     P256Sha256,
		KSF:     ksf.Argon2id,
		KDF:     crypto.SHA256,
		MAC:     crypto.SHA256,
		Hash:    crypto.SHA256,
		Context: nil,
	}
}

// Client returns a newly instantiated Client from the Configuration.
func (c *Configuration) Client() (*Client, error) {
	return NewClient(c)
}

// Server returns a newly instantiated Server from the Configuration.
func (c *Configuration) Server() (*Server, error) {
	return NewServer(c)
}

// GenerateOPRFSeed returns an OPRF seed valid in the given configuration.
func (c *Configuration) GenerateOPRFSeed() []byte {
	return RandomBytes(hash.Hashing(c.Hash).Size())
}

// KeyGen returns a key pair in the AKE group.
func (c *Configuration) KeyGen() (secretKey, publicKey []byte) {
	return ake.KeyGen(ecc.Group(c.AKE))
}

// verify returns an error on the first non-compliant parameter, nil otherwise.
func (c *Configuration) verify() error {
	if !c.OPRF.Available() || !c.OPRF.OPRF().Available() {
		return errInvalidOPRFid
	}

	if !c.AKE.Available() || !c.AKE.Group().Available() {
		return errInvalidAKEid
	}

	if !hash.Hashing(c.KDF).Available() {
		return errInvalidKDFid
	}

	if !hash.Hashing(c.MAC).Available() {
		return errInvalidMACid
	}

	if !hash.Hashing(c.Hash).Available() {
		return errInvalidHASHid
	}

	if c.KSF != 0 && !c.KSF.Available() {
		return errInvalidKSFid
	}

	return nil
}

// toInternal builds the internal representation of the configuration parameters.
func (c *Configuration) toInternal() (*internal.Configuration, error) {
	if err := c.verify(); err != nil {
		return nil, err
	}

	g := c.AKE.Group()
	o := c.OPRF.OPRF()
	mac := internal.NewMac(c.MAC)
	k := internal.NewKSF(c.KSF)

	if c.KSFParams != nil {
		k.Parameterize(c.KSFParams.MemoryKiB, c.KSFParams.Iterations, c.KSFParams.Parallelism)
	}

	ip := &internal.Configuration{
		OPRF:         o,
		Group:        g,
		KSF:          k,
		KDF:          internal.NewKDF(c.KDF),
		MAC:          mac,
		Hash:         internal.NewHash(c.Hash),
		NonceLen:     internal.NonceLength,
		EnvelopeSize: internal.NonceLength + mac.Size(),
		Context:      c.Context,
	}

	return ip, nil
}

// Deserializer returns a pointer to a Deserializer structure allowing deserialization of messages in the given
// configuration.
func (c *Configuration) Deserializer() (*Deserializer, error) {
	conf, err := c.toInternal()
	if err != nil {
		return nil, err
	}

	return &Deserializer{conf: conf}, nil
}

// Serialize returns the byte encoding of the Configuration structure.
func (c *Configuration) Serialize() []byte {
	ids := []byte{
		byte(c.OPRF),
		byte(c.AKE),
		byte(c.KSF),
		byte(c.KDF),
		byte(c.MAC),
		byte(c.Hash),
	}

	return encoding.Concatenate(ids, encoding.EncodeVector(c.Context))
}

// DeserializeConfiguration decodes the input and returns a Configuration structure.
func DeserializeConfiguration(encoded []byte) (*Configuration, error) {
	// corresponds to the configuration length + 2-byte encoding of empty context
	if len(encoded) < confIDsLength+2 {
		return nil, internal.ErrConfigurationInvalidLength
	}

	ctx, _, err := encoding.DecodeVector(encoded[confIDsLength:])
	if err != nil {
		return nil, fmt.Errorf("decoding the configuration context: %w", err)
	}

	c := &Configuration{
		OPRF:    Group(encoded[0]),
		AKE:     Group(encoded[1]),
		KSF:     ksf.Identifier(encoded[2]),
		KDF:     crypto.Hash(encoded[3]),
		MAC:     crypto.Hash(encoded[4]),
		Hash:    crypto.Hash(encoded[5]),
		Context: ctx,
	}

	if err2 := c.verify(); err2 != nil {
		return nil, err2
	}

	return c, nil
}

// ClientRecord is a server-side structure enabling the storage of user relevant information.
type ClientRecord struct {
	*message.RegistrationRecord
	CredentialIdentifier []byte
	ClientIdentity       []byte
}

// GetFakeRecord creates a fake Client record to be used when no existing client record exists, to
// defend against client enumeration. Unlike the deterministic fields Server.generateFakeKE2
// derives from the OPRF seed, this one is freshly randomized each call: use it for a placeholder
// record that will never actually be fed into GenerateKE2, whose own enumeration defense supplies
// its own fake fields (see Section 4.7.7).
func (c *Configuration) GetFakeRecord(credentialIdentifier []byte) (*ClientRecord, error) {
	i, err := c.toInternal()
	if err != nil {
		return nil, err
	}

	scalar := i.Group.NewScalar().Random()
	publicKey := i.Group.Base().Multiply(scalar)

	regRecord := &message.RegistrationRecord{
		PublicKey:  publicKey,
		MaskingKey: RandomBytes(i.Hash.Size()),
		Envelope:   &message.Envelope{Nonce: make([]byte, i.NonceLen), AuthTag: make([]byte, i.MAC.Size())},
	}

	return &ClientRecord{
		CredentialIdentifier: credentialIdentifier,
		ClientIdentity:       nil,
		RegistrationRecord:   regRecord,
	}, nil
}

// RandomBytes returns random bytes of length len (wrapper for crypto/rand).
func RandomBytes(length int) []byte {
	return internal.RandomBytes(length)
}
