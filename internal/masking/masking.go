// SPDX-License-Identifier: MIT
//
// Copyright (C) 2020-2025 Daniel Bourdrez. All Rights Reserved.
//
// This source code is licensed under the MIT license found in the
// LICENSE file in the root directory of this source tree or at
// https://spdx.org/licenses/MIT.html

// Package masking hides the server's public key and the client's envelope behind a one-time pad
// derived from the record's maskingKey, per RFC 9807 Section 4.3's CredentialResponse construction.
// This prevents a passive observer of CredentialResponse from fingerprinting registered accounts by
// their server-key echo or envelope length before the OPRF has been inverted.
package masking

import (
	"github.com/wyne-labs/opaque/internal"
	"github.com/wyne-labs/opaque/internal/encoding"
	"github.com/wyne-labs/opaque/internal/tag"
)

// Mask derives a fresh one-time pad from maskingKey and maskingNonce and XORs it over
// serverPublicKey || envelope, returning the nonce used (generating one if nonce is empty) and the
// masked response. The pad's length always equals Npk + envelope size, so the caller's inputs must
// already be validated to be of that combined length.
func Mask(conf *internal.Configuration, maskingNonce, maskingKey, serverPublicKey, envelope []byte) (nonce, maskedResponse []byte) {
	if len(maskingNonce) == 0 {
		maskingNonce = internal.RandomBytes(conf.NonceLen)
	}

	plaintext := encoding.Concatenate(serverPublicKey, envelope)
	pad := conf.KDF.Expand(maskingKey, encoding.SuffixString(maskingNonce, tag.CredentialResponsePad), len(plaintext))

	masked, err := encoding.Xor(pad, plaintext)
	if err != nil {
		// Unreachable: pad and plaintext are both sized to len(plaintext) above.
		panic(err)
	}

	return maskingNonce, masked
}

// Unmask reverses Mask on the client side, recovering serverPublicKey || envelope from
// maskedResponse given the maskingKey the client derived from its own OPRF output.
func Unmask(conf *internal.Configuration, maskingNonce, maskingKey, maskedResponse []byte) ([]byte, error) {
	pad := conf.KDF.Expand(maskingKey, encoding.SuffixString(maskingNonce, tag.CredentialResponsePad), len(maskedResponse))
	return encoding.Xor(pad, maskedResponse)
}
