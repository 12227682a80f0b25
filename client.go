// SPDX-License-Identifier: MIT
//
// Copyright (C) 2020-2025 Daniel Bourdrez. All Rights Reserved.
//
// This source code is licensed under the MIT license found in the
// LICENSE file in the root directory of this source tree or at
// https://spdx.org/licenses/MIT.html

package opaque

import (
	"github.com/bytemare/ecc"

	"github.com/wyne-labs/opaque/internal"
	"github.com/wyne-labs/opaque/internal/ake"
	"github.com/wyne-labs/opaque/internal/keyrecovery"
	"github.com/wyne-labs/opaque/internal/masking"
	"github.com/wyne-labs/opaque/internal/tag"
	"github.com/wyne-labs/opaque/message"
)

// Client runs the client side of OPAQUE registration and authentication for a fixed Configuration.
// A Client value is immutable once built and safe to share across goroutines; the state objects it
// produces (ClientRegistrationState, ClientAuthState) are not.
type Client struct {
	conf *internal.Configuration
}

// NewClient returns a Client instantiation given the application Configuration.
func NewClient(c *Configuration) (*Client, error) {
	if c == nil {
		c = DefaultConfiguration()
	}

	conf, err := c.toInternal()
	if err != nil {
		return nil, err
	}

	return &Client{conf: conf}, nil
}

// KeyGen returns a fresh AKE key pair in the client's configured group.
func (c *Client) KeyGen() (secretKey, publicKey []byte) {
	return ake.KeyGen(c.conf.Group)
}

// ClientRegistrationState holds the blind and password of a registration attempt between
// CreateRegistrationRequest and FinalizeRegistration. It is single-use: a second call to
// FinalizeRegistration returns ErrStateAlreadyUsed. The password buffer is zeroed once consumed.
type ClientRegistrationState struct {
	conf     *internal.Configuration
	blind    *ecc.Scalar
	password []byte
	done     bool
}

// CreateRegistrationRequest starts registration: it blinds password with a fresh random scalar and
// returns the resulting state together with the message to send the server.
func (c *Client) CreateRegistrationRequest(password []byte) (*ClientRegistrationState, *message.RegistrationRequest) {
	blind, blinded := c.conf.OPRF.Blind(password)
	return c.newRegistrationState(blind, password, blinded)
}

// CreateRegistrationRequestDeterministic is the deterministic variant of CreateRegistrationRequest,
// for test-vector reproduction: the caller supplies the blind instead of sampling one. It is never
// reachable from NewClient/CreateRegistrationRequest and MUST NOT be used outside of tests.
func (c *Client) CreateRegistrationRequestDeterministic(
	password []byte,
	blind *ecc.Scalar,
) (*ClientRegistrationState, *message.RegistrationRequest) {
	blinded := c.conf.OPRF.BlindWith(password, blind)
	return c.newRegistrationState(blind, password, blinded)
}

func (c *Client) newRegistrationState(
	blind *ecc.Scalar,
	password []byte,
	blinded *ecc.Element,
) (*ClientRegistrationState, *message.RegistrationRequest) {
	state := &ClientRegistrationState{
		conf:     c.conf,
		blind:    blind,
		password: append([]byte{}, password...),
	}

	return state, &message.RegistrationRequest{BlindedMessage: blinded}
}

// FinalizeRegistration completes registration against the server's RegistrationResponse, producing
// the RegistrationRecord to upload and the client's export key. A nil serverIdentity/clientIdentity
// defaults to the corresponding party's AKE public key, per RFC 9807 Section 4.7.2.
func (s *ClientRegistrationState) FinalizeRegistration(
	resp *message.RegistrationResponse,
	serverIdentity, clientIdentity []byte,
) (*message.RegistrationRecord, []byte, error) {
	return s.finalizeRegistration(resp, serverIdentity, clientIdentity, nil)
}

// FinalizeRegistrationDeterministic is the deterministic variant of FinalizeRegistration: the caller
// supplies the envelope nonce instead of drawing it from the CSPRNG. For test-vector reproduction
// only; production code should call FinalizeRegistration.
func (s *ClientRegistrationState) FinalizeRegistrationDeterministic(
	resp *message.RegistrationResponse,
	serverIdentity, clientIdentity, envelopeNonce []byte,
) (*message.RegistrationRecord, []byte, error) {
	return s.finalizeRegistration(resp, serverIdentity, clientIdentity, envelopeNonce)
}

func (s *ClientRegistrationState) finalizeRegistration(
	resp *message.RegistrationResponse,
	serverIdentity, clientIdentity, envelopeNonce []byte,
) (*message.RegistrationRecord, []byte, error) {
	if s.done {
		return nil, nil, ErrStateAlreadyUsed
	}

	s.done = true
	defer s.zero()

	oprfOutput := s.conf.OPRF.Finalize(s.password, s.blind, resp.EvaluatedMessage)
	randomizedPwd := s.conf.RandomizedPassword(oprfOutput)

	serverPublicKey := resp.Pks.Encode()

	envU, clientPublicKey, maskingKey, exportKey := keyrecovery.Store(
		s.conf, randomizedPwd, serverPublicKey, clientIdentity, serverIdentity, envelopeNonce,
	)

	pk := s.conf.Group.NewElement()
	if err := pk.Decode(clientPublicKey); err != nil {
		// Unreachable: clientPublicKey was just produced by this call's own group arithmetic.
		panic(err)
	}

	record := &message.RegistrationRecord{
		PublicKey:  pk,
		MaskingKey: maskingKey,
		Envelope:   envU,
	}

	return record, exportKey, nil
}

func (s *ClientRegistrationState) zero() {
	for i := range s.password {
		s.password[i] = 0
	}

	s.password = nil
	s.blind = nil
}

// ClientAuthState holds the blind, password, ephemeral AKE key, and KE1 of a login attempt between
// GenerateKE1 and GenerateKE3. It is single-use: a second call to GenerateKE3 returns
// ErrStateAlreadyUsed. The password buffer is zeroed once consumed.
type ClientAuthState struct {
	conf     *internal.Configuration
	ake      *ake.Client
	blind    *ecc.Scalar
	password []byte
	ke1      *message.KE1
	done     bool
}

// GenerateKE1 starts authentication: it blinds password and produces the first AKE message.
func (c *Client) GenerateKE1(password []byte) (*ClientAuthState, *message.KE1) {
	return c.generateKE1(password, nil, ake.Options{})
}

// GenerateKE1Deterministic is the deterministic variant of GenerateKE1, for test-vector
// reproduction: the caller supplies the blind and the AKE ephemeral key share/nonce options
// instead of drawing them from the CSPRNG.
func (c *Client) GenerateKE1Deterministic(
	password []byte,
	blind *ecc.Scalar,
	options ake.Options,
) (*ClientAuthState, *message.KE1) {
	return c.generateKE1(password, blind, options)
}

func (c *Client) generateKE1(password []byte, blind *ecc.Scalar, options ake.Options) (*ClientAuthState, *message.KE1) {
	var blinded *ecc.Element

	if blind == nil {
		blind, blinded = c.conf.OPRF.Blind(password)
	} else {
		blinded = c.conf.OPRF.BlindWith(password, blind)
	}

	akeClient := ake.NewClient()
	ke1 := akeClient.Start(c.conf.Group, options)
	ke1.CredentialRequest = &message.CredentialRequest{BlindedMessage: blinded}

	state := &ClientAuthState{
		conf:     c.conf,
		ake:      akeClient,
		blind:    blind,
		password: append([]byte{}, password...),
		ke1:      ke1,
	}

	return state, ke1
}

// GenerateKE3 finishes authentication: it unmasks the CredentialResponse, recovers the client's
// long-term key pair from the envelope, verifies the server's MAC, and produces KE3, the session
// key, and the export key. Any failure along the way — tampered envelope, wrong server key, wrong
// password, bad server MAC — is reported as ErrAuthenticationFailed, indistinguishably, per Section
// 4.8.
func (s *ClientAuthState) GenerateKE3(
	serverIdentity, clientIdentity []byte,
	ke2 *message.KE2,
) (ke3 *message.KE3, sessionKey, exportKey []byte, err error) {
	if s.done {
		return nil, nil, nil, ErrStateAlreadyUsed
	}

	s.done = true
	defer s.zero()

	oprfOutput := s.conf.OPRF.Finalize(s.password, s.blind, ke2.CredentialResponse.EvaluatedMessage)
	randomizedPwd := s.conf.RandomizedPassword(oprfOutput)

	maskingKey := s.conf.KDF.Expand(randomizedPwd, []byte(tag.MaskingKey), s.conf.Hash.Size())

	plaintext, err := masking.Unmask(
		s.conf, ke2.CredentialResponse.MaskingNonce, maskingKey, ke2.CredentialResponse.MaskedResponse,
	)
	if err != nil {
		return nil, nil, nil, internal.ErrAuthenticationFailed
	}

	npk := int(s.conf.Group.ElementLength())
	if len(plaintext) != npk+s.conf.EnvelopeSize {
		return nil, nil, nil, internal.ErrAuthenticationFailed
	}

	serverPublicKey := plaintext[:npk]

	envU, err := message.DeserializeEnvelope(plaintext[npk:], s.conf.NonceLen, s.conf.MAC.Size())
	if err != nil {
		return nil, nil, nil, internal.ErrAuthenticationFailed
	}

	clientSecretKey, clientPublicKey, _, exportKey, err := keyrecovery.Recover(
		s.conf, randomizedPwd, serverPublicKey, clientIdentity, serverIdentity, envU,
	)
	if err != nil {
		return nil, nil, nil, err
	}

	pks := s.conf.Group.NewElement()
	if err := pks.Decode(serverPublicKey); err != nil {
		return nil, nil, nil, internal.ErrAuthenticationFailed
	}

	identities := &ake.Identities{ClientIdentity: clientIdentity, ServerIdentity: serverIdentity}
	identities.SetIdentities(clientPublicKey.Encode(), serverPublicKey)

	ke3, sessionKey, err = s.ake.Finalize(s.conf, identities, clientSecretKey, pks, s.ke1, ke2)
	if err != nil {
		return nil, nil, nil, err
	}

	return ke3, sessionKey, exportKey, nil
}

func (s *ClientAuthState) zero() {
	for i := range s.password {
		s.password[i] = 0
	}

	s.password = nil
	s.blind = nil
}
