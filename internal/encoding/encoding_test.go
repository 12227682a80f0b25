// SPDX-License-Identifier: MIT
//
// Copyright (C) 2020-2025 Daniel Bourdrez. All Rights Reserved.
//
// This source code is licensed under the MIT license found in the
// LICENSE file in the root directory of this source tree or at
// https://spdx.org/licenses/MIT.html

package encoding_test

import (
	"bytes"
	"testing"

	"github.com/wyne-labs/opaque/internal/encoding"
)

func TestI2OSP(t *testing.T) {
	tests := []struct {
		name   string
		n      int
		length int
		want   []byte
	}{
		{"zero", 0, 2, []byte{0x00, 0x00}},
		{"one byte", 0xab, 1, []byte{0xab}},
		{"two bytes", 0x0102, 2, []byte{0x01, 0x02}},
		{"max single byte", 255, 1, []byte{0xff}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := encoding.I2OSP(tt.n, tt.length)
			if !bytes.Equal(got, tt.want) {
				t.Fatalf("I2OSP(%d, %d) = %x, want %x", tt.n, tt.length, got, tt.want)
			}
		})
	}
}

func TestI2OSPOverflowPanics(t *testing.T) {
	defer func() {
		if r := recover(); r == nil {
			t.Fatal("expected I2OSP to panic on overflow")
		}
	}()

	encoding.I2OSP(256, 1)
}

func TestOS2IP(t *testing.T) {
	got := encoding.OS2IP([]byte{0x01, 0x00})
	if got.Int64() != 256 {
		t.Fatalf("OS2IP = %v, want 256", got)
	}
}

func TestEncodeDecodeVector(t *testing.T) {
	payload := []byte("hello opaque")
	encoded := encoding.EncodeVector(payload)

	decoded, read, err := encoding.DecodeVector(encoded)
	if err != nil {
		t.Fatalf("DecodeVector: %v", err)
	}

	if read != len(encoded) {
		t.Fatalf("read = %d, want %d", read, len(encoded))
	}

	if !bytes.Equal(decoded, payload) {
		t.Fatalf("decoded = %q, want %q", decoded, payload)
	}
}

func TestDecodeVectorTruncated(t *testing.T) {
	if _, _, err := encoding.DecodeVector([]byte{0x00}); err == nil {
		t.Fatal("expected error decoding truncated vector header")
	}

	if _, _, err := encoding.DecodeVector([]byte{0x00, 0x05, 0x01}); err == nil {
		t.Fatal("expected error decoding vector shorter than its declared length")
	}
}

func TestXor(t *testing.T) {
	a := []byte{0x0f, 0xf0, 0xaa}
	b := []byte{0xf0, 0x0f, 0x55}

	got, err := encoding.Xor(a, b)
	if err != nil {
		t.Fatalf("Xor: %v", err)
	}

	want := []byte{0xff, 0xff, 0xff}
	if !bytes.Equal(got, want) {
		t.Fatalf("Xor = %x, want %x", got, want)
	}

	// Xor is its own inverse.
	back, err := encoding.Xor(got, b)
	if err != nil {
		t.Fatalf("Xor: %v", err)
	}

	if !bytes.Equal(back, a) {
		t.Fatalf("Xor(Xor(a,b),b) = %x, want %x", back, a)
	}
}

func TestXorLengthMismatch(t *testing.T) {
	if _, err := encoding.Xor([]byte{0x01}, []byte{0x01, 0x02}); err == nil {
		t.Fatal("expected error xoring mismatched lengths")
	}
}

func TestConcatenateAndConcat3Agree(t *testing.T) {
	a, b, c := []byte("a"), []byte("bb"), []byte("ccc")

	got3 := encoding.Concat3(a, b, c)
	gotN := encoding.Concatenate(a, b, c)

	if !bytes.Equal(got3, gotN) {
		t.Fatalf("Concat3 = %x, Concatenate = %x", got3, gotN)
	}
}

func TestSuffixString(t *testing.T) {
	got := encoding.SuffixString([]byte("cred"), "OprfKey")
	want := []byte("credOprfKey")

	if !bytes.Equal(got, want) {
		t.Fatalf("SuffixString = %q, want %q", got, want)
	}
}
