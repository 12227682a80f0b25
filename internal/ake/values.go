// SPDX-License-Identifier: MIT
//
// Copyright (C) 2020-2025 Daniel Bourdrez. All Rights Reserved.
//
// This source code is licensed under the MIT license found in the
// LICENSE file in the root directory of this source tree or at
// https://spdx.org/licenses/MIT.html

package ake

import "github.com/bytemare/ecc"

// values holds the ephemeral key share and nonce common to both the client and server sides of a
// single 3DH exchange.
type values struct {
	ephemeralSecretKey *ecc.Scalar
	nonce              []byte
}

// setOptions populates the ephemeral secret and nonce from opts if they haven't been set already
// (deterministic test-vector reproduction), or from the CSPRNG otherwise, and returns the
// corresponding ephemeral public key.
func (v *values) setOptions(g ecc.Group, opts Options) *ecc.Element {
	if v.ephemeralSecretKey == nil {
		v.ephemeralSecretKey, v.nonce = setEphemeral(g, opts)
	}

	return g.Base().Multiply(v.ephemeralSecretKey)
}

// flush clears the ephemeral key share and nonce.
func (v *values) flush() {
	v.ephemeralSecretKey = nil
	v.nonce = nil
}
