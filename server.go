// SPDX-License-Identifier: MIT
//
// Copyright (C) 2020-2025 Daniel Bourdrez. All Rights Reserved.
//
// This source code is licensed under the MIT license found in the
// LICENSE file in the root directory of this source tree or at
// https://spdx.org/licenses/MIT.html

package opaque

import (
	"errors"
	"fmt"

	"github.com/bytemare/ecc"

	"github.com/wyne-labs/opaque/internal"
	"github.com/wyne-labs/opaque/internal/ake"
	"github.com/wyne-labs/opaque/internal/encoding"
	"github.com/wyne-labs/opaque/internal/masking"
	"github.com/wyne-labs/opaque/internal/tag"
	"github.com/wyne-labs/opaque/message"
)

var (
	// ErrNoServerKeyMaterial indicates that the server's key material has not been set.
	ErrNoServerKeyMaterial = errors.New("key material not set: call SetKeyMaterial() to set values")

	// ErrAkeInvalidClientMac indicates that the MAC contained in the KE3 message is not valid in the given session.
	// It is the same value as ErrAuthenticationFailed, so this stage cannot be told apart from the others.
	ErrAkeInvalidClientMac = ErrAuthenticationFailed

	// ErrInvalidState indicates that the given state is not valid due to a wrong length.
	ErrInvalidState = errors.New("invalid state length")

	// ErrInvalidEnvelopeLength indicates the envelope contained in the record is of invalid length.
	ErrInvalidEnvelopeLength = errors.New("record has invalid envelope length")

	// ErrInvalidPksLength indicates the input public key is not of right length.
	ErrInvalidPksLength = errors.New("input server public key's length is invalid")

	// ErrInvalidOPRFSeedLength indicates that the OPRF seed is not of right length.
	ErrInvalidOPRFSeedLength = errors.New("input OPRF seed length is invalid (must be of hash output length)")

	// ErrZeroSKS indicates that the server's private key is a zero scalar.
	ErrZeroSKS = errors.New("server private key is zero")
)

// Server represents an OPAQUE Server, exposing its functions and holding its state.
type Server struct {
	Deserialize *Deserializer
	conf        *internal.Configuration
	Ake         *ake.Server
	*keyMaterial
	responded bool
	finalized bool
}

type keyMaterial struct {
	serverIdentity  []byte
	serverSecretKey *ecc.Scalar
	serverPublicKey []byte
	oprfSeed        []byte
}

// NewServer returns a Server instantiation given the application Configuration.
func NewServer(c *Configuration) (*Server, error) {
	if c == nil {
		c = DefaultConfiguration()
	}

	conf, err := c.toInternal()
	if err != nil {
		return nil, err
	}

	return &Server{
		Deserialize: &Deserializer{conf: conf},
		conf:        conf,
		Ake:         ake.NewServer(),
		keyMaterial: nil,
	}, nil
}

// GetConf returns the internal configuration.
func (s *Server) GetConf() *internal.Configuration {
	return s.conf
}

// oprfResponse evaluates the per-credential OPRF key against element. The key derivation depends
// only on oprfSeed and credentialIdentifier, never on whether a record actually exists for that
// identifier: this is what lets generateFakeKE2 reuse it unchanged for unregistered accounts.
func (s *Server) oprfResponse(element *ecc.Element, oprfSeed, credentialIdentifier []byte) *ecc.Element {
	seed := s.conf.KDF.Expand(
		oprfSeed,
		encoding.SuffixString(credentialIdentifier, tag.ExpandOPRF),
		internal.SeedLength,
	)

	ku, _, err := s.conf.OPRF.DeriveKeyPair(seed, []byte(tag.DeriveKeyPair))
	if err != nil {
		// Unreachable in practice: rejection sampling fails with probability ~2^-2048.
		panic(err)
	}

	return s.conf.OPRF.Evaluate(ku, element)
}

// RegistrationResponse returns a RegistrationResponse message to the input RegistrationRequest message and given
// identifiers.
func (s *Server) RegistrationResponse(
	req *message.RegistrationRequest,
	serverPublicKey *ecc.Element,
	credentialIdentifier, oprfSeed []byte,
) *message.RegistrationResponse {
	z := s.oprfResponse(req.BlindedMessage, oprfSeed, credentialIdentifier)

	return &message.RegistrationResponse{
		EvaluatedMessage: z,
		Pks:              serverPublicKey,
	}
}

func (s *Server) credentialResponse(
	req *message.CredentialRequest,
	serverPublicKey []byte,
	record *message.RegistrationRecord,
	credentialIdentifier, oprfSeed, maskingNonce []byte,
) *message.CredentialResponse {
	z := s.oprfResponse(req.BlindedMessage, oprfSeed, credentialIdentifier)

	maskingNonce, maskedResponse := masking.Mask(
		s.conf,
		maskingNonce,
		record.MaskingKey,
		serverPublicKey,
		record.Envelope.Serialize(),
	)

	return message.NewCredentialResponse(z, maskingNonce, maskedResponse)
}

// generateFakeKE2 derives deterministic stand-in fields from oprfSeed for a credentialIdentifier
// with no stored record, per RFC 9807 Section 4.7.7: the same unregistered identifier always yields
// the same fake client public key and OPRF evaluation across restarts, with only the fresh nonces
// varying, so a passive observer cannot distinguish a login attempt against a real account from one
// against a nonexistent one.
func (s *Server) generateFakeKE2(
	ke1 *message.KE1,
	credentialIdentifier, maskingNonce []byte,
) (*message.CredentialResponse, *ecc.Element) {
	z := s.oprfResponse(ke1.CredentialRequest.BlindedMessage, s.oprfSeed, credentialIdentifier)

	fakeSkSeed := s.conf.KDF.Expand(
		s.oprfSeed, encoding.SuffixString(credentialIdentifier, tag.FakeClientKey), internal.SeedLength,
	)

	_, fakePk, err := s.conf.OPRF.DeriveKeyPair(fakeSkSeed, []byte(tag.DerivePrivateKey))
	if err != nil {
		// Unreachable in practice: rejection sampling fails with probability ~2^-2048.
		panic(err)
	}

	fakeMaskingKey := s.conf.KDF.Expand(
		s.oprfSeed, encoding.SuffixString(credentialIdentifier, tag.FakeMaskingKey), s.conf.Hash.Size(),
	)
	fakeEnvelope := make([]byte, s.conf.EnvelopeSize)

	maskingNonce, maskedResponse := masking.Mask(s.conf, maskingNonce, fakeMaskingKey, s.serverPublicKey, fakeEnvelope)

	return message.NewCredentialResponse(z, maskingNonce, maskedResponse), fakePk
}

// GenerateKE2Options enable setting optional values for the session, which default to secure random values if not
// set.
type GenerateKE2Options struct {
	// KeyShareSeed: optional.
	KeyShareSeed []byte
	// AKENonce: optional.
	AKENonce []byte
	// MaskingNonce: optional.
	MaskingNonce []byte
	// AKENonceLength: optional, overrides the default length of the nonce to be created if no nonce is provided.
	AKENonceLength uint32
}

func getGenerateKE2Options(options []GenerateKE2Options) (*ake.Options, []byte) {
	var (
		op           ake.Options
		maskingNonce []byte
	)

	if len(options) != 0 {
		op.KeyShareSeed = options[0].KeyShareSeed
		op.Nonce = options[0].AKENonce
		op.NonceLength = options[0].AKENonceLength
		maskingNonce = options[0].MaskingNonce
	}

	return &op, maskingNonce
}

// SetKeyMaterial set the server's identity and mandatory key material to be used during GenerateKE2().
// All these values must be the same as used during client registration and remain the same across protocol execution
// for a given registered client.
//
// - serverIdentity can be nil, in which case it will be set to serverPublicKey.
// - serverSecretKey is the server's secret AKE key.
// - serverPublicKey is the server's public AKE key to the serverSecretKey.
// - oprfSeed is the long-term OPRF input seed.
func (s *Server) SetKeyMaterial(serverIdentity, serverSecretKey, serverPublicKey, oprfSeed []byte) error {
	sks := s.conf.Group.NewScalar()
	if err := sks.Decode(serverSecretKey); err != nil {
		return fmt.Errorf("invalid server AKE secret key: %w", err)
	}

	if sks.IsZero() {
		return ErrZeroSKS
	}

	if len(oprfSeed) != s.conf.Hash.Size() {
		return ErrInvalidOPRFSeedLength
	}

	if len(serverPublicKey) != int(s.conf.Group.ElementLength()) {
		return ErrInvalidPksLength
	}

	if err := s.conf.Group.NewElement().Decode(serverPublicKey); err != nil {
		return fmt.Errorf("invalid server public key: %w", err)
	}

	s.keyMaterial = &keyMaterial{
		serverIdentity:  serverIdentity,
		serverSecretKey: sks,
		serverPublicKey: serverPublicKey,
		oprfSeed:        oprfSeed,
	}

	return nil
}

// GenerateKE2 responds to a KE1 message. Passing a nil record triggers the fake-KE2 path
// (generateFakeKE2), which an HTTP-facing caller should do whenever credentialIdentifier has no
// stored registration, so that an observer cannot tell a real account from a nonexistent one by the
// response's shape.
func (s *Server) GenerateKE2(
	ke1 *message.KE1,
	credentialIdentifier []byte,
	record *ClientRecord,
	options ...GenerateKE2Options,
) (*message.KE2, error) {
	if s.keyMaterial == nil {
		return nil, ErrNoServerKeyMaterial
	}

	if s.responded {
		return nil, ErrStateAlreadyUsed
	}

	op, maskingNonce := getGenerateKE2Options(options)

	var (
		response        *message.CredentialResponse
		clientPublicKey *ecc.Element
		clientIdentity  []byte
	)

	if record == nil {
		response, clientPublicKey = s.generateFakeKE2(ke1, credentialIdentifier, maskingNonce)
	} else {
		if len(record.Envelope.Serialize()) != s.conf.EnvelopeSize {
			return nil, ErrInvalidEnvelopeLength
		}

		// The server's public key and the client's envelope are now known to be of correct
		// length, so the masking pad and its plaintext are guaranteed to line up byte for byte.

		response = s.credentialResponse(
			ke1.CredentialRequest, s.serverPublicKey, record.RegistrationRecord, credentialIdentifier, s.oprfSeed, maskingNonce,
		)
		clientPublicKey = record.PublicKey
		clientIdentity = record.ClientIdentity
	}

	identities := ake.Identities{ClientIdentity: clientIdentity, ServerIdentity: s.serverIdentity}
	identities.SetIdentities(clientPublicKey.Encode(), s.serverPublicKey)

	ke2 := s.Ake.Response(s.conf, &identities, s.serverSecretKey, clientPublicKey, ke1, response, *op)
	s.responded = true

	return ke2, nil
}

// LoginFinish returns an error if the KE3 received from the client holds an invalid mac, and nil if correct.
func (s *Server) LoginFinish(ke3 *message.KE3) error {
	if s.finalized {
		return ErrStateAlreadyUsed
	}

	s.finalized = true

	if !s.Ake.Finalize(s.conf, ke3) {
		return ErrAkeInvalidClientMac
	}

	return nil
}

// SessionKey returns the session key if the previous call to GenerateKE2() was successful.
func (s *Server) SessionKey() []byte {
	return s.Ake.SessionKey()
}

// ExpectedMAC returns the expected client MAC if the previous call to GenerateKE2() was successful.
func (s *Server) ExpectedMAC() []byte {
	return s.Ake.ExpectedMAC()
}

// SetAKEState sets the internal state of the AKE server from the given bytes, for stateless request
// handlers that reconstruct a Server between the KE2 and KE3 legs of a login.
func (s *Server) SetAKEState(state []byte) error {
	if len(state) != s.conf.MAC.Size()+s.conf.KDF.Size() {
		return ErrInvalidState
	}

	if err := s.Ake.SetState(state[:s.conf.MAC.Size()], state[s.conf.MAC.Size():]); err != nil {
		return fmt.Errorf("setting AKE state: %w", err)
	}

	return nil
}

// SerializeState returns the internal state of the AKE server serialized to bytes.
func (s *Server) SerializeState() []byte {
	return s.Ake.SerializeState()
}

// Flush clears the server's per-login state (AKE values, MAC/session-key expectations, and the
// responded/finalized flags), allowing this Server value to be reused for a fresh login attempt.
func (s *Server) Flush() {
	s.Ake.Flush()
	s.responded = false
	s.finalized = false
}
