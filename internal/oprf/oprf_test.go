// SPDX-License-Identifier: MIT
//
// Copyright (C) 2020-2025 Daniel Bourdrez. All Rights Reserved.
//
// This source code is licensed under the MIT license found in the
// LICENSE file in the root directory of this source tree or at
// https://spdx.org/licenses/MIT.html

package oprf_test

import (
	"bytes"
	"encoding/hex"
	"testing"

	"github.com/wyne-labs/opaque/internal/oprf"
)

var suites = []struct {
	name string
	id   oprf.Identifier
}{
	{"ristretto255-SHA512", oprf.RistrettoSha512},
	{"P256-SHA256", oprf.P256Sha256},
	{"P384-SHA384", oprf.P384Sha384},
	{"P521-SHA512", oprf.P521Sha512},
}

func TestAvailable(t *testing.T) {
	for _, s := range suites {
		if !s.id.Available() {
			t.Fatalf("%s: expected Available() to be true", s.name)
		}
	}

	if oprf.Identifier(0xff).Available() {
		t.Fatal("expected an unrecognized identifier to report unavailable")
	}
}

// TestRoundTrip checks the core OPRF invariant from spec Section 8.1: for a fixed (suite, key,
// input), finalize(input, blind, blindEvaluate(key, blind·H(input))) is stable across independently
// drawn blinds.
func TestRoundTrip(t *testing.T) {
	for _, s := range suites {
		t.Run(s.name, func(t *testing.T) {
			input := []byte("a message that will be blinded")
			seed := bytes.Repeat([]byte{0x01}, 32)

			key, _, err := s.id.DeriveKeyPair(seed, []byte("test key"))
			if err != nil {
				t.Fatalf("DeriveKeyPair: %v", err)
			}

			blindA, blindedA := s.id.Blind(input)
			blindB, blindedB := s.id.Blind(input)

			if blindA.Equal(blindB) {
				t.Fatal("two independent Blind calls produced the same blind")
			}

			evalA := s.id.Evaluate(key, blindedA)
			evalB := s.id.Evaluate(key, blindedB)

			outA := s.id.Finalize(input, blindA, evalA)
			outB := s.id.Finalize(input, blindB, evalB)

			if !bytes.Equal(outA, outB) {
				t.Fatalf("Finalize outputs differ across blinds: %x vs %x", outA, outB)
			}
		})
	}
}

// TestFinalizeDeterministic blinds with one fixed scalar (via BlindWith) and checks that two
// Finalize calls on the same inputs return byte-identical output, matching spec Section 8.1's
// "OPRF determinism" invariant.
func TestFinalizeDeterministic(t *testing.T) {
	for _, s := range suites {
		t.Run(s.name, func(t *testing.T) {
			input := []byte("deterministic input")
			blind := s.id.RandomScalar()

			seed := bytes.Repeat([]byte{0x02}, 32)
			key, _, err := s.id.DeriveKeyPair(seed, []byte("test key"))
			if err != nil {
				t.Fatalf("DeriveKeyPair: %v", err)
			}

			blinded := s.id.BlindWith(input, blind)
			eval := s.id.Evaluate(key, blinded)

			out1 := s.id.Finalize(input, blind, eval)
			out2 := s.id.Finalize(input, blind, eval)

			if !bytes.Equal(out1, out2) {
				t.Fatal("Finalize is not deterministic given identical inputs")
			}
		})
	}
}

func TestDecodeElementRejectsIdentity(t *testing.T) {
	for _, s := range suites {
		t.Run(s.name, func(t *testing.T) {
			identity := s.id.Group().NewElement()

			if _, err := s.id.DecodeElement(identity.Encode()); err == nil {
				t.Fatal("expected the identity element to be rejected as InvalidPoint")
			}
		})
	}
}

func TestDecodeElementRejectsWrongLength(t *testing.T) {
	for _, s := range suites {
		t.Run(s.name, func(t *testing.T) {
			if _, err := s.id.DecodeElement([]byte{0x01, 0x02, 0x03}); err == nil {
				t.Fatal("expected a too-short byte string to be rejected as InvalidPoint")
			}
		})
	}
}

// TestP256Vector1 reproduces RFC 9497's OPRF(P-256, SHA-256) test vector 1 (spec Section 8.3
// scenario 1): a fixed blind and a server key derived from an all-0xa3 seed with info "test key"
// must finalize to a fixed 32-byte output.
func TestP256Vector1(t *testing.T) {
	input := []byte{0x00}

	blindBytes, err := hex.DecodeString("3338fa65ec36e0290022b48eb562889d89dbfa691d1cde91517fa222ed7ad364"[:64])
	if err != nil {
		t.Fatalf("decoding blind: %v", err)
	}

	blind, err := oprf.P256Sha256.DecodeScalar(blindBytes)
	if err != nil {
		t.Fatalf("decoding blind scalar: %v", err)
	}

	seed := bytes.Repeat([]byte{0xa3}, 32)

	key, _, err := oprf.P256Sha256.DeriveKeyPair(seed, []byte("test key"))
	if err != nil {
		t.Fatalf("DeriveKeyPair: %v", err)
	}

	blinded := oprf.P256Sha256.BlindWith(input, blind)
	eval := oprf.P256Sha256.Evaluate(key, blinded)
	output := oprf.P256Sha256.Finalize(input, blind, eval)

	want, err := hex.DecodeString("a0b34de5fa4c5b6da07e72af73cc507cceeb48981b97b7285fc375345fe495dd"[:64])
	if err != nil {
		t.Fatalf("decoding expected output: %v", err)
	}

	if !bytes.Equal(output, want) {
		t.Fatalf("Finalize output = %x, want %x", output, want)
	}
}

// TestP384HashToCurveVector reproduces RFC 9380 Appendix J.3.1's P384_XMD:SHA-384_SSWU_RO_ test
// vector for the empty message (spec Section 8.3 scenario 2): hashing "" onto the curve under the
// suite's DST must land on a point with a fixed, published x-coordinate. This exercises
// Identifier.Group().HashToGroup directly with the RFC's own DST, bypassing the OPRF-specific
// composed domain separators that the suite uses elsewhere.
func TestP384HashToCurveVector(t *testing.T) {
	dst := []byte("QUUX-V01-CS02-with-P384_XMD:SHA-384_SSWU_RO_")

	p := oprf.P384Sha384.Group().HashToGroup([]byte(""), dst)

	encoded := p.Encode()
	if len(encoded) != 1+48 {
		t.Fatalf("unexpected encoded length %d for a P-384 point", len(encoded))
	}

	x := encoded[1:] // strip the SEC1 compressed-point sign-prefix byte

	want, err := hex.DecodeString(
		"eb9fe1b4f4e14e7140803c1d99d0a93cd823d2b024040f9c067a8eca1f5a2ee" +
			"ac9ad604973527a356f3fa3aeff0e4d83",
	)
	if err != nil {
		t.Fatalf("decoding expected x-coordinate: %v", err)
	}

	if !bytes.Equal(x, want) {
		t.Fatalf("hash-to-curve x-coordinate = %x, want %x", x, want)
	}
}
