// SPDX-License-Identifier: MIT
//
// Copyright (C) 2020-2025 Daniel Bourdrez. All Rights Reserved.
//
// This source code is licensed under the MIT license found in the
// LICENSE file in the root directory of this source tree or at
// https://spdx.org/licenses/MIT.html

package opaque

import (
	"github.com/wyne-labs/opaque/internal"
	"github.com/wyne-labs/opaque/message"
)

// Deserializer exposes every message decoder for a fixed Configuration: the wire format of several
// OPAQUE messages depends on the configuration's group (element size) and hash sizes, so decoding
// can't happen without first knowing which suite produced the bytes.
type Deserializer struct {
	conf *internal.Configuration
}

// RegistrationRequest decodes a RegistrationRequest.
func (d *Deserializer) RegistrationRequest(data []byte) (*message.RegistrationRequest, error) {
	return message.DeserializeRegistrationRequest(data, d.conf.Group)
}

// RegistrationResponse decodes a RegistrationResponse.
func (d *Deserializer) RegistrationResponse(data []byte) (*message.RegistrationResponse, error) {
	return message.DeserializeRegistrationResponse(data, d.conf.Group)
}

// RegistrationRecord decodes a RegistrationRecord.
func (d *Deserializer) RegistrationRecord(data []byte) (*message.RegistrationRecord, error) {
	return message.DeserializeRegistrationRecord(data, d.conf.Group, d.conf.MAC.Size(), d.conf.NonceLen)
}

// CredentialRequest decodes a CredentialRequest.
func (d *Deserializer) CredentialRequest(data []byte) (*message.CredentialRequest, error) {
	return message.DeserializeCredentialRequest(data, d.conf.Group)
}

// CredentialResponse decodes a CredentialResponse.
func (d *Deserializer) CredentialResponse(data []byte) (*message.CredentialResponse, error) {
	maskedLen := int(d.conf.Group.ElementLength()) + d.conf.EnvelopeSize
	return message.DeserializeCredentialResponse(data, d.conf.Group, d.conf.NonceLen, maskedLen)
}

// KE1 decodes a KE1.
func (d *Deserializer) KE1(data []byte) (*message.KE1, error) {
	return message.DeserializeKE1(data, d.conf.Group, d.conf.NonceLen)
}

// KE2 decodes a KE2.
func (d *Deserializer) KE2(data []byte) (*message.KE2, error) {
	maskedLen := int(d.conf.Group.ElementLength()) + d.conf.EnvelopeSize
	return message.DeserializeKE2(data, d.conf.Group, d.conf.NonceLen, maskedLen, d.conf.MAC.Size())
}

// KE3 decodes a KE3.
func (d *Deserializer) KE3(data []byte) (*message.KE3, error) {
	return message.DeserializeKE3(data, d.conf.MAC.Size())
}
