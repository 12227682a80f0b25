// SPDX-License-Identifier: MIT
//
// Copyright (C) 2020-2025 Daniel Bourdrez. All Rights Reserved.
//
// This source code is licensed under the MIT license found in the
// LICENSE file in the root directory of this source tree or at
// https://spdx.org/licenses/MIT.html

// Package message defines the wire-level structures exchanged during OPAQUE registration and
// login, along with their fixed-width, big-endian-length-prefix-free serialization (Section 6.1
// of the accompanying design document).
package message

import (
	"errors"

	"github.com/bytemare/ecc"

	"github.com/wyne-labs/opaque/internal/encoding"
)

// ErrInvalidMessageLength is returned when a message is decoded from a byte slice of the wrong size.
var ErrInvalidMessageLength = errors.New("message: invalid encoded length")

// RegistrationRequest is the client's first registration message: blindedElement.
type RegistrationRequest struct {
	BlindedMessage *ecc.Element
}

// Serialize returns the wire encoding of the request.
func (m *RegistrationRequest) Serialize() []byte {
	return m.BlindedMessage.Encode()
}

// DeserializeRegistrationRequest decodes a RegistrationRequest for the given group.
func DeserializeRegistrationRequest(data []byte, g ecc.Group) (*RegistrationRequest, error) {
	e := g.NewElement()
	if err := e.Decode(data); err != nil {
		return nil, err
	}

	return &RegistrationRequest{BlindedMessage: e}, nil
}

// RegistrationResponse is the server's registration reply: evaluatedElement || serverPublicKey.
type RegistrationResponse struct {
	EvaluatedMessage *ecc.Element
	Pks              *ecc.Element
}

// Serialize returns the wire encoding of the response.
func (m *RegistrationResponse) Serialize() []byte {
	return encoding.Concatenate(m.EvaluatedMessage.Encode(), m.Pks.Encode())
}

// DeserializeRegistrationResponse decodes a RegistrationResponse for the given group.
func DeserializeRegistrationResponse(data []byte, g ecc.Group) (*RegistrationResponse, error) {
	n := int(g.ElementLength())
	if len(data) != 2*n {
		return nil, ErrInvalidMessageLength
	}

	eval := g.NewElement()
	if err := eval.Decode(data[:n]); err != nil {
		return nil, err
	}

	pks := g.NewElement()
	if err := pks.Decode(data[n:]); err != nil {
		return nil, err
	}

	return &RegistrationResponse{EvaluatedMessage: eval, Pks: pks}, nil
}

// Envelope is the authenticated, nonce-keyed container recovered during login: envelopeNonce || authTag.
type Envelope struct {
	Nonce   []byte
	AuthTag []byte
}

// Serialize returns the wire encoding of the envelope.
func (e *Envelope) Serialize() []byte {
	return encoding.Concatenate(e.Nonce, e.AuthTag)
}

// DeserializeEnvelope decodes an Envelope given the nonce and MAC sizes.
func DeserializeEnvelope(data []byte, nonceLen, macLen int) (*Envelope, error) {
	if len(data) != nonceLen+macLen {
		return nil, ErrInvalidMessageLength
	}

	return &Envelope{
		Nonce:   append([]byte{}, data[:nonceLen]...),
		AuthTag: append([]byte{}, data[nonceLen:]...),
	}, nil
}

// RegistrationRecord is the server-stored result of a successful registration:
// clientPublicKey || maskingKey || envelope.
type RegistrationRecord struct {
	PublicKey  *ecc.Element
	MaskingKey []byte
	Envelope   *Envelope
}

// Serialize returns the wire encoding of the record.
func (m *RegistrationRecord) Serialize() []byte {
	return encoding.Concatenate(m.PublicKey.Encode(), m.MaskingKey, m.Envelope.Serialize())
}

// DeserializeRegistrationRecord decodes a RegistrationRecord for the given group, hash, and nonce sizes.
func DeserializeRegistrationRecord(data []byte, g ecc.Group, hashSize, nonceLen int) (*RegistrationRecord, error) {
	n := int(g.ElementLength())
	if len(data) < n+hashSize {
		return nil, ErrInvalidMessageLength
	}

	pk := g.NewElement()
	if err := pk.Decode(data[:n]); err != nil {
		return nil, err
	}

	maskingKey := append([]byte{}, data[n:n+hashSize]...)

	env, err := DeserializeEnvelope(data[n+hashSize:], nonceLen, hashSize)
	if err != nil {
		return nil, err
	}

	return &RegistrationRecord{PublicKey: pk, MaskingKey: maskingKey, Envelope: env}, nil
}

// CredentialRequest is the client's login OPRF message: blindedElement.
type CredentialRequest struct {
	BlindedMessage *ecc.Element
}

// Serialize returns the wire encoding of the request.
func (m *CredentialRequest) Serialize() []byte {
	return m.BlindedMessage.Encode()
}

// DeserializeCredentialRequest decodes a CredentialRequest for the given group.
func DeserializeCredentialRequest(data []byte, g ecc.Group) (*CredentialRequest, error) {
	e := g.NewElement()
	if err := e.Decode(data); err != nil {
		return nil, err
	}

	return &CredentialRequest{BlindedMessage: e}, nil
}

// CredentialResponse is the server's masked login reply: evaluatedElement || maskingNonce || maskedResponse.
type CredentialResponse struct {
	EvaluatedMessage *ecc.Element
	MaskingNonce     []byte
	MaskedResponse   []byte
}

// NewCredentialResponse builds a CredentialResponse from its three fields.
func NewCredentialResponse(evaluated *ecc.Element, maskingNonce, maskedResponse []byte) *CredentialResponse {
	return &CredentialResponse{
		EvaluatedMessage: evaluated,
		MaskingNonce:     maskingNonce,
		MaskedResponse:   maskedResponse,
	}
}

// Serialize returns the wire encoding of the response.
func (m *CredentialResponse) Serialize() []byte {
	return encoding.Concatenate(m.EvaluatedMessage.Encode(), m.MaskingNonce, m.MaskedResponse)
}

// DeserializeCredentialResponse decodes a CredentialResponse given the group, nonce length, and
// the size of the masked (serverPublicKey || envelope) payload it hides.
func DeserializeCredentialResponse(data []byte, g ecc.Group, nonceLen, maskedLen int) (*CredentialResponse, error) {
	n := int(g.ElementLength())
	if len(data) != n+nonceLen+maskedLen {
		return nil, ErrInvalidMessageLength
	}

	eval := g.NewElement()
	if err := eval.Decode(data[:n]); err != nil {
		return nil, err
	}

	maskingNonce := append([]byte{}, data[n:n+nonceLen]...)
	maskedResponse := append([]byte{}, data[n+nonceLen:]...)

	return NewCredentialResponse(eval, maskingNonce, maskedResponse), nil
}

// KE1 is the client's first AKE message: credentialRequest || clientNonce || clientAkePublicKey.
type KE1 struct {
	CredentialRequest    *CredentialRequest
	ClientNonce          []byte
	ClientPublicKeyshare *ecc.Element
}

// Serialize returns the wire encoding of KE1.
func (m *KE1) Serialize() []byte {
	return encoding.Concatenate(m.CredentialRequest.Serialize(), m.ClientNonce, m.ClientPublicKeyshare.Encode())
}

// DeserializeKE1 decodes a KE1 given the group and nonce length.
func DeserializeKE1(data []byte, g ecc.Group, nonceLen int) (*KE1, error) {
	n := int(g.ElementLength())
	if len(data) != 2*n+nonceLen {
		return nil, ErrInvalidMessageLength
	}

	credReq, err := DeserializeCredentialRequest(data[:n], g)
	if err != nil {
		return nil, err
	}

	clientNonce := append([]byte{}, data[n:n+nonceLen]...)

	epkc := g.NewElement()
	if err := epkc.Decode(data[n+nonceLen:]); err != nil {
		return nil, err
	}

	return &KE1{CredentialRequest: credReq, ClientNonce: clientNonce, ClientPublicKeyshare: epkc}, nil
}

// KE2 is the server's AKE response: credentialResponse || serverNonce || serverAkePublicKey || serverMac.
type KE2 struct {
	CredentialResponse   *CredentialResponse
	ServerNonce          []byte
	ServerPublicKeyshare *ecc.Element
	ServerMac            []byte
}

// Serialize returns the wire encoding of KE2.
func (m *KE2) Serialize() []byte {
	return encoding.Concatenate(
		m.CredentialResponse.Serialize(),
		m.ServerNonce,
		m.ServerPublicKeyshare.Encode(),
		m.ServerMac,
	)
}

// DeserializeKE2 decodes a KE2 given the group, nonce length, masked-response length, and MAC size.
func DeserializeKE2(data []byte, g ecc.Group, nonceLen, maskedLen, macLen int) (*KE2, error) {
	n := int(g.ElementLength())
	credRespLen := n + nonceLen + maskedLen

	if len(data) != credRespLen+nonceLen+n+macLen {
		return nil, ErrInvalidMessageLength
	}

	credResp, err := DeserializeCredentialResponse(data[:credRespLen], g, nonceLen, maskedLen)
	if err != nil {
		return nil, err
	}

	rest := data[credRespLen:]
	serverNonce := append([]byte{}, rest[:nonceLen]...)

	epks := g.NewElement()
	if err := epks.Decode(rest[nonceLen : nonceLen+n]); err != nil {
		return nil, err
	}

	serverMac := append([]byte{}, rest[nonceLen+n:]...)

	return &KE2{
		CredentialResponse:   credResp,
		ServerNonce:          serverNonce,
		ServerPublicKeyshare: epks,
		ServerMac:            serverMac,
	}, nil
}

// KE3 is the client's final AKE message: clientMac.
type KE3 struct {
	ClientMac []byte
}

// Serialize returns the wire encoding of KE3.
func (m *KE3) Serialize() []byte {
	return append([]byte{}, m.ClientMac...)
}

// DeserializeKE3 decodes a KE3 given the MAC size.
func DeserializeKE3(data []byte, macLen int) (*KE3, error) {
	if len(data) != macLen {
		return nil, ErrInvalidMessageLength
	}

	return &KE3{ClientMac: append([]byte{}, data...)}, nil
}
