// SPDX-License-Identifier: MIT
//
// Copyright (C) 2020-2025 Daniel Bourdrez. All Rights Reserved.
//
// This source code is licensed under the MIT license found in the
// LICENSE file in the root directory of this source tree or at
// https://spdx.org/licenses/MIT.html

// Package encoding implements the wire-format primitives shared by the OPRF and OPAQUE-3DH messages:
// RFC 8017 I2OSP/OS2IP, length-prefixed vectors, and byte-slice concatenation helpers.
package encoding

import (
	"errors"
	"math/big"
)

// ErrI2OSPOverflow is returned when an integer does not fit in the requested number of octets.
var ErrI2OSPOverflow = errors.New("encoding: integer too large for requested length")

// ErrVectorTooShort is returned when a length-prefixed vector can't be decoded from the input.
var ErrVectorTooShort = errors.New("encoding: truncated length-prefixed vector")

// ErrXorLengthMismatch is returned when two slices handed to Xor have different lengths.
var ErrXorLengthMismatch = errors.New("encoding: mismatched lengths in xor")

// I2OSP encodes n as a big-endian byte string of exactly length bytes, per RFC 8017 Section 4.1.
// It panics if n does not fit in length octets, mirroring the "programmer error" treatment the
// OPAQUE and hash-to-curve call sites rely on: every call site here passes a statically bounded n.
func I2OSP(n, length int) []byte {
	if n < 0 || length <= 0 {
		panic(ErrI2OSPOverflow)
	}

	out := make([]byte, length)
	v := n

	for i := length - 1; i >= 0; i-- {
		out[i] = byte(v & 0xff)
		v >>= 8
	}

	if v != 0 {
		panic(ErrI2OSPOverflow)
	}

	return out
}

// OS2IP decodes a big-endian byte string into a non-negative integer, per RFC 8017 Section 4.2.
func OS2IP(b []byte) *big.Int {
	return new(big.Int).SetBytes(b)
}

// Concatenate returns the concatenation of all given byte slices in a freshly allocated buffer.
func Concatenate(slices ...[]byte) []byte {
	length := 0
	for _, s := range slices {
		length += len(s)
	}

	out := make([]byte, 0, length)
	for _, s := range slices {
		out = append(out, s...)
	}

	return out
}

// Concat3 concatenates exactly three byte slices. It exists alongside Concatenate because the 3DH
// transcript assembly is on a hot path and benefits from not allocating a variadic slice.
func Concat3(a, b, c []byte) []byte {
	out := make([]byte, 0, len(a)+len(b)+len(c))
	out = append(out, a...)
	out = append(out, b...)

	return append(out, c...)
}

// EncodeVectorLen prepends data with its length encoded over lengthBytes octets ("lv(x)" in the
// OPAQUE-3DH preamble construction, generalized to an arbitrary prefix width).
func EncodeVectorLen(data []byte, lengthBytes int) []byte {
	return Concatenate(I2OSP(len(data), lengthBytes), data)
}

// EncodeVector prepends data with its length encoded as a 2-byte big-endian integer.
func EncodeVector(data []byte) []byte {
	return EncodeVectorLen(data, 2)
}

// DecodeVector reads a 2-byte length prefix followed by that many bytes from data, and returns the
// decoded payload together with the number of input bytes consumed.
func DecodeVector(data []byte) (vector []byte, read int, err error) {
	if len(data) < 2 {
		return nil, 0, ErrVectorTooShort
	}

	length := int(data[0])<<8 | int(data[1])
	if len(data) < 2+length {
		return nil, 0, ErrVectorTooShort
	}

	return data[2 : 2+length], 2 + length, nil
}

// SuffixString appends a plain (non-length-prefixed) string suffix to data.
func SuffixString(data []byte, suffix string) []byte {
	return Concatenate(data, []byte(suffix))
}

// Xor returns a xored with b into a new buffer. Both slices must have equal length.
func Xor(a, b []byte) ([]byte, error) {
	if len(a) != len(b) {
		return nil, ErrXorLengthMismatch
	}

	out := make([]byte, len(a))
	for i := range a {
		out[i] = a[i] ^ b[i]
	}

	return out, nil
}
