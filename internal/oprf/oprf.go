// SPDX-License-Identifier: MIT
//
// Copyright (C) 2020-2025 Daniel Bourdrez. All Rights Reserved.
//
// This source code is licensed under the MIT license found in the
// LICENSE file in the root directory of this source tree or at
// https://spdx.org/licenses/MIT.html

// Package oprf implements the base (non-verifiable, non-partial) mode of the Oblivious
// Pseudorandom Function from RFC 9497 Section 3.3.1, parameterized over a github.com/bytemare/ecc
// prime-order group. The group itself supplies RFC 9380 hash-to-curve, constant-time field
// arithmetic, and expand_message_xmd; this package only adds the OPRF-specific context strings,
// domain-separation tags, and the blind/evaluate/finalize/deriveKeyPair operations built on top.
package oprf

import (
	"crypto"
	"errors"

	"github.com/bytemare/ecc"

	"github.com/wyne-labs/opaque/internal/encoding"
)

// ErrDeriveKeyPair is returned when DeriveKeyPair's rejection-sampling counter is exhausted.
// This is essentially unreachable: the per-suite probability is on the order of 2^-2048.
var ErrDeriveKeyPair = errors.New("oprf: exhausted rejection-sampling counter")

// ErrInvalidPoint wraps every element-deserialization failure: wrong length, off-curve coordinates,
// the identity element, or (for non-prime-order curves) a point outside the prime-order subgroup.
var ErrInvalidPoint = errors.New("oprf: invalid group element")

const (
	mode          = byte(0x00) // base, non-verifiable mode, per RFC 9497 Section 3.2.
	maxDeriveIter = 256
)

// Identifier identifies an OPRF(mode 0) ciphersuite: a prime-order group plus its paired hash
// function, as listed in RFC 9497 Section 4.
type Identifier byte

const (
	// RistrettoSha512 is OPRF(ristretto255, SHA-512).
	RistrettoSha512 Identifier = Identifier(ecc.Ristretto255Sha512)

	// P256Sha256 is OPRF(P-256, SHA-256).
	P256Sha256 Identifier = Identifier(ecc.P256Sha256)

	// P384Sha384 is OPRF(P-384, SHA-384).
	P384Sha384 Identifier = Identifier(ecc.P384Sha384)

	// P521Sha512 is OPRF(P-521, SHA-512).
	P521Sha512 Identifier = Identifier(ecc.P521Sha512)
)

// IDFromGroup returns the OPRF Identifier paired with the given group, following the fixed
// (group, hash) association of the supported cipher suites.
func IDFromGroup(g ecc.Group) Identifier {
	return Identifier(g)
}

// Available reports whether the Identifier names one of the ciphersuites this package supports.
func (i Identifier) Available() bool {
	switch i {
	case RistrettoSha512, P256Sha256, P384Sha384, P521Sha512:
		return i.Group().Available()
	default:
		return false
	}
}

// Group returns the prime-order group backing this ciphersuite.
func (i Identifier) Group() ecc.Group {
	return ecc.Group(i)
}

// Hash returns the hash function paired with this ciphersuite's group, per RFC 9497 Section 4.
func (i Identifier) Hash() crypto.Hash {
	switch i {
	case P256Sha256:
		return crypto.SHA256
	case P384Sha384:
		return crypto.SHA384
	case P521Sha512, RistrettoSha512:
		return crypto.SHA512
	default:
		return 0
	}
}

// suiteID returns the wire name used in the OPRF context string, e.g. "P256-SHA256".
func (i Identifier) suiteID() string {
	switch i {
	case RistrettoSha512:
		return "ristretto255-SHA512"
	case P256Sha256:
		return "P256-SHA256"
	case P384Sha384:
		return "P384-SHA384"
	case P521Sha512:
		return "P521-SHA512"
	default:
		return ""
	}
}

// contextString builds "OPRFV1-" || I2OSP(mode, 1) || "-" || suiteID, per RFC 9497 Section 3.2.
func (i Identifier) contextString() []byte {
	return encoding.Concatenate([]byte("OPRFV1-"), []byte{mode}, []byte("-"), []byte(i.suiteID()))
}

func (i Identifier) dst(prefix string) []byte {
	return encoding.Concatenate([]byte(prefix), i.contextString())
}

// hashToGroupDST returns the domain separation tag for HashToGroup calls.
func (i Identifier) hashToGroupDST() []byte { return i.dst("HashToGroup-") }

// hashToScalarDST returns the domain separation tag for HashToScalar calls.
func (i Identifier) hashToScalarDST() []byte { return i.dst("HashToScalar-") }

// deriveKeyPairDST returns the domain separation tag for DeriveKeyPair calls. Note the absence of
// a "-" separator before the context string: this is intentional, matching RFC 9497 Section 3.2.
func (i Identifier) deriveKeyPairDST() []byte {
	return encoding.Concatenate([]byte("DeriveKeyPair"), i.contextString())
}

// RandomScalar returns a uniformly random non-zero scalar in the group's order.
func (i Identifier) RandomScalar() *ecc.Scalar {
	return i.Group().NewScalar().Random()
}

// Blind runs the client side of Blind(input): it samples a fresh blinding scalar, maps input onto
// the group via hash_to_curve, and returns both the blind and the blinded element to send the server.
func (i Identifier) Blind(input []byte) (blind *ecc.Scalar, blindedElement *ecc.Element) {
	blind = i.RandomScalar()
	h := i.Group().HashToGroup(input, i.hashToGroupDST())

	return blind, h.Multiply(blind)
}

// BlindWith is the deterministic variant of Blind, for test-vector reproduction: the caller
// supplies the blind instead of sampling one.
func (i Identifier) BlindWith(input []byte, blind *ecc.Scalar) (blindedElement *ecc.Element) {
	h := i.Group().HashToGroup(input, i.hashToGroupDST())
	return h.Multiply(blind)
}

// Evaluate runs the server side: blindEvaluate(oprfKey, blindedElement) = oprfKey * blindedElement.
func (i Identifier) Evaluate(oprfKey *ecc.Scalar, blindedElement *ecc.Element) *ecc.Element {
	return blindedElement.Multiply(oprfKey)
}

// Finalize completes the client side, recovering F(oprfKey, input) from the server's evaluated
// element and the blind used to produce it. The output is Nh bytes.
func (i Identifier) Finalize(input []byte, blind *ecc.Scalar, evaluatedElement *ecc.Element) []byte {
	n := evaluatedElement.Multiply(blind.Invert())
	encodedN := n.Encode()

	h := i.Hash().New()
	_, _ = h.Write(encoding.I2OSP(len(input), 2))
	_, _ = h.Write(input)
	_, _ = h.Write(encoding.I2OSP(len(encodedN), 2))
	_, _ = h.Write(encodedN)
	_, _ = h.Write([]byte("Finalize"))

	return h.Sum(nil)
}

// DeriveKeyPair deterministically derives an OPRF key pair from seed and info by rejection
// sampling hash_to_scalar(seed || I2OSP(len(info),2) || info || I2OSP(counter,1)) until it is
// non-zero, per RFC 9497 Section 3.2. It fails only if every counter value in [0,256) yields zero,
// which does not happen in practice.
func (i Identifier) DeriveKeyPair(seed, info []byte) (*ecc.Scalar, *ecc.Element, error) {
	deriveInput := encoding.Concatenate(seed, encoding.I2OSP(len(info), 2), info)

	for counter := 0; counter < maxDeriveIter; counter++ {
		sk := i.Group().HashToScalar(encoding.Concatenate(deriveInput, encoding.I2OSP(counter, 1)), i.deriveKeyPairDST())
		if !sk.IsZero() {
			pk := i.Group().Base().Multiply(sk)
			return sk, pk, nil
		}
	}

	return nil, nil, ErrDeriveKeyPair
}

// DecodeElement deserializes an element, returning ErrInvalidPoint on any malformed or identity
// input. For h=1 curves (every supported Weierstrass curve) an on-curve, non-identity point is
// automatically in the prime-order subgroup, so no separate subgroup check is required; ristretto255
// decoding already only accepts canonical prime-order-subgroup encodings.
func (i Identifier) DecodeElement(data []byte) (*ecc.Element, error) {
	e := i.Group().NewElement()
	if err := e.Decode(data); err != nil {
		return nil, ErrInvalidPoint
	}

	if e.IsIdentity() {
		return nil, ErrInvalidPoint
	}

	return e, nil
}

// DecodeScalar deserializes a scalar of the group's fixed width.
func (i Identifier) DecodeScalar(data []byte) (*ecc.Scalar, error) {
	s := i.Group().NewScalar()
	if err := s.Decode(data); err != nil {
		return nil, ErrInvalidPoint
	}

	return s, nil
}
