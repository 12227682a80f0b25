// SPDX-License-Identifier: MIT
//
// Copyright (C) 2020-2025 Daniel Bourdrez. All Rights Reserved.
//
// This source code is licensed under the MIT license found in the
// LICENSE file in the root directory of this source tree or at
// https://spdx.org/licenses/MIT.html

package ake

import (
	"errors"

	"github.com/bytemare/ecc"

	"github.com/wyne-labs/opaque/internal"
	"github.com/wyne-labs/opaque/message"
)

var errStateNotEmpty = errors.New("ake: existing state is not empty")

// Server exposes the server's AKE functions and holds its per-session state. A Server value is
// meant to back exactly one login attempt: Response() may only be called once, after which only
// Finalize() is valid.
type Server struct {
	values
	clientMac []byte
	sessionKey []byte
}

// NewServer returns a new, empty, 3DH server.
func NewServer() *Server {
	return &Server{}
}

// Response produces the server's KE2 message: it mirrors the client's triple-DH computation using
// the server's ephemeral and static keys plus the client's ephemeral and static public keys, then
// derives the session key and both transcript MACs.
func (s *Server) Response(
	conf *internal.Configuration,
	identities *Identities,
	serverSecretKey *ecc.Scalar,
	clientPublicKey *ecc.Element,
	ke1 *message.KE1,
	response *message.CredentialResponse,
	options Options,
) *message.KE2 {
	epks := s.setOptions(conf.Group, options)

	ikm := k3dh(
		ke1.ClientPublicKeyshare, s.ephemeralSecretKey,
		ke1.ClientPublicKeyshare, serverSecretKey,
		clientPublicKey, s.ephemeralSecretKey,
	)

	p := preamble(conf, identities, ke1, response, s.nonce, epks)
	sessionKey, serverMac, finishClientMac := core3DH(conf, ikm, p)

	s.sessionKey = sessionKey
	s.clientMac = finishClientMac(serverMac)

	return &message.KE2{
		CredentialResponse:   response,
		ServerNonce:          s.nonce,
		ServerPublicKeyshare: epks,
		ServerMac:            serverMac,
	}
}

// Finalize verifies the authentication tag contained in ke3, in constant time.
func (s *Server) Finalize(conf *internal.Configuration, ke3 *message.KE3) bool {
	return conf.MAC.Equal(s.clientMac, ke3.ClientMac)
}

// SessionKey returns the shared session key established by a previous, successful call to Response.
func (s *Server) SessionKey() []byte {
	return s.sessionKey
}

// ExpectedMAC returns the client MAC a previous call to Response expects to see in KE3.
func (s *Server) ExpectedMAC() []byte {
	return s.clientMac
}

// SerializeState returns the server's session state (expected client MAC and session key) so it
// can be persisted between the KE2 and KE3 legs of a stateless request handler.
func (s *Server) SerializeState() []byte {
	state := make([]byte, 0, len(s.clientMac)+len(s.sessionKey))
	state = append(state, s.clientMac...)

	return append(state, s.sessionKey...)
}

// SetState restores a previously serialized session state. It fails if state has already been set.
func (s *Server) SetState(clientMac, sessionKey []byte) error {
	if len(s.clientMac) != 0 || len(s.sessionKey) != 0 {
		return errStateNotEmpty
	}

	s.clientMac = clientMac
	s.sessionKey = sessionKey

	return nil
}

// Flush clears all session-related internal AKE values.
func (s *Server) Flush() {
	s.flush()
	s.clientMac = nil
	s.sessionKey = nil
}
