// SPDX-License-Identifier: MIT
//
// Copyright (C) 2020-2025 Daniel Bourdrez. All Rights Reserved.
//
// This source code is licensed under the MIT license found in the
// LICENSE file in the root directory of this source tree or at
// https://spdx.org/licenses/MIT.html

package ake

import (
	"github.com/bytemare/ecc"

	"github.com/wyne-labs/opaque/internal"
	"github.com/wyne-labs/opaque/message"
)

// Client exposes the client's AKE functions and holds its per-session state. A Client value is
// meant to back exactly one authentication attempt: Start() then Finalize() must each be called
// exactly once, in order.
type Client struct {
	values
}

// NewClient returns a new, empty, 3DH client.
func NewClient() *Client {
	return &Client{}
}

// Start produces the AKE half of KE1: a fresh ephemeral key share and nonce. The caller is
// responsible for attaching the OPRF CredentialRequest to the returned message.
func (c *Client) Start(g ecc.Group, options Options) *message.KE1 {
	epkc := c.setOptions(g, options)

	return &message.KE1{
		ClientNonce:          c.nonce,
		ClientPublicKeyshare: epkc,
	}
}

// Finalize verifies ke2's server MAC and, on success, computes the client's KE3 message and the
// shared session key. A server MAC mismatch is reported as internal.ErrAuthenticationFailed, and
// MUST NOT be distinguishable by the caller from an envelope recovery failure.
func (c *Client) Finalize(
	conf *internal.Configuration,
	identities *Identities,
	clientSecretKey *ecc.Scalar,
	serverPublicKey *ecc.Element,
	ke1 *message.KE1,
	ke2 *message.KE2,
) (ke3 *message.KE3, sessionKey []byte, err error) {
	ikm := k3dh(
		ke2.ServerPublicKeyshare, c.ephemeralSecretKey,
		serverPublicKey, c.ephemeralSecretKey,
		ke2.ServerPublicKeyshare, clientSecretKey,
	)

	p := preamble(conf, identities, ke1, ke2.CredentialResponse, ke2.ServerNonce, ke2.ServerPublicKeyshare)
	sessionKey, serverMac, finishClientMac := core3DH(conf, ikm, p)

	if !conf.MAC.Equal(serverMac, ke2.ServerMac) {
		return nil, nil, internal.ErrAuthenticationFailed
	}

	return &message.KE3{ClientMac: finishClientMac(ke2.ServerMac)}, sessionKey, nil
}
