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

package auth

import (
	"crypto/md5"
	"fmt"
	"io"

	"github.com/gravitational/trace"
	"github.com/xdg-go/scram"
	"github.com/xdg-go/stringprep"
)

// scramMinIterations is the lowest iteration count the client accepts from
// the server, per the SCRAM specification for this protocol.
const scramMinIterations = 4096

// newScramConversation prepares the credential for the given SCRAM variant
// and starts a client conversation, returning it along with the client-first
// SCRAM payload.
func newScramConversation(mech Mechanism, cred *Credential) (*scram.ClientConversation, string, error) {
	if cred.Username == "" {
		return nil, "", trace.BadParameter("%s requires a username", mech)
	}

	var client *scram.Client
	var err error
	switch mech {
	case MechanismScramSHA1:
		// SCRAM-SHA-1 authenticates with the legacy password digest rather
		// than the raw password.
		client, err = scram.SHA1.NewClientUnprepped(cred.Username, passwordDigest(cred.Username, cred.Password), "")
	case MechanismScramSHA256:
		prepped, prepErr := stringprep.SASLprep.Prepare(cred.Password)
		if prepErr != nil {
			return nil, "", trace.BadParameter("SASLprep of password for %q failed: %v", cred.Username, prepErr)
		}
		client, err = scram.SHA256.NewClientUnprepped(cred.Username, prepped, "")
	default:
		return nil, "", trace.BadParameter("%s is not a SCRAM mechanism", mech)
	}
	if err != nil {
		return nil, "", trace.BadParameter("initializing %s client for %q: %v", mech, cred.Username, err)
	}

	conversation := client.WithMinIterations(scramMinIterations).NewConversation()
	payload, err := conversation.Step("")
	if err != nil {
		return nil, "", trace.BadParameter("building %s client-first message for %q: %v", mech, cred.Username, err)
	}
	return conversation, payload, nil
}

// passwordDigest computes the legacy MONGODB-CR digest used as the
// SCRAM-SHA-1 password.
func passwordDigest(username, password string) string {
	h := md5.New()
	io.WriteString(h, username)
	io.WriteString(h, ":mongo:")
	io.WriteString(h, password)
	return fmt.Sprintf("%x", h.Sum(nil))
}
