/*
 * Mongowire
 * Copyright (C) 2024  Gravitational, Inc.
 *
 * This program is free software: you can redistribute it and/or modify
 * it under the terms of the GNU Affero General Public License as published by
 * the Free Software Foundation, either version 3 of the License, or
 * (at your option) any later version.
 *
 * This program is distributed in the hope that it will be useful,
 * but WITHOUT ANY WARRANTY; without even the implied warranty of
 * MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
 * GNU Affero General Public License for more details.
 *
 * You should have received a copy of the GNU Affero General Public License
 * along with this program.  If not, see <http://www.gnu.org/licenses/>.
 */

// Package auth holds the credential model and the speculative first-round
// construction for the supported authentication mechanisms. The multi-round
// conversation engine that resumes a first round lives with the caller.
package auth

import (
	"fmt"

	"github.com/gravitational/mongowire/lib/wire"
)

// Mechanism names an authentication mechanism as it appears on the wire.
type Mechanism string

const (
	// MechanismScramSHA1 is SCRAM with SHA-1 and the MONGODB-CR password digest.
	MechanismScramSHA1 Mechanism = "SCRAM-SHA-1"
	// MechanismScramSHA256 is SCRAM with SHA-256 and SASLprep-ed passwords.
	MechanismScramSHA256 Mechanism = "SCRAM-SHA-256"
	// MechanismMongoDBX509 authenticates with the client TLS certificate.
	MechanismMongoDBX509 Mechanism = "MONGODB-X509"
	// MechanismPlain is SASL PLAIN, used for LDAP proxy authentication.
	MechanismPlain Mechanism = "PLAIN"
)

// Credential identifies a database user. Consumed read-only by the handshake:
// it contributes the mechanism negotiation hint and the speculative first
// authentication message.
type Credential struct {
	// Username is the user to authenticate as. May be empty for X509, where
	// the server derives the user from the certificate subject.
	Username string
	// Password is the user's password. Unused by X509.
	Password string
	// Source is the database the user is defined on. When empty the
	// mechanism's default source applies, see ResolvedSource.
	Source string
	// Mechanism is the declared authentication mechanism. When empty the
	// server is asked to negotiate one via the saslSupportedMechs hint.
	Mechanism Mechanism
	// MechanismProperties carries mechanism-specific settings.
	MechanismProperties map[string]string
}

// ResolvedSource returns the database authentication runs against: the
// declared source, or the mechanism's default when none was declared.
func (c *Credential) ResolvedSource() string {
	if c.Source != "" {
		return c.Source
	}
	switch c.Mechanism {
	case MechanismMongoDBX509, MechanismPlain:
		return "$external"
	default:
		return wire.DatabaseAdmin
	}
}

// AppendNegotiationHint adds the mechanism negotiation hint to the handshake
// command so the server reports which mechanisms are valid for this user
// before authentication proper begins. The hint is only needed when the
// mechanism is left for the server to choose.
func (c *Credential) AppendNegotiationHint(cmd *wire.Command) {
	if c.Username == "" || c.Mechanism != "" {
		return
	}
	cmd.Append("saslSupportedMechs", fmt.Sprintf("%s.%s", c.ResolvedSource(), c.Username))
}
