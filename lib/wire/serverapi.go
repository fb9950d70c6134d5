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

package wire

// ServerAPIVersion1 is the only stable server API version.
const ServerAPIVersion1 = "1"

// ServerAPI declares the versioned server API the client opts into. When set,
// the declaration rides on every command, the handshake included.
type ServerAPI struct {
	// Version is the declared API version, e.g. ServerAPIVersion1.
	Version string
	// Strict asks the server to reject commands outside the declared version.
	Strict *bool
	// DeprecationErrors asks the server to fail on deprecated behavior.
	DeprecationErrors *bool
}

// AppendTo adds the API version declaration elements to the command body.
func (api *ServerAPI) AppendTo(cmd *Command) {
	cmd.Append("apiVersion", api.Version)
	if api.Strict != nil {
		cmd.Append("apiStrict", *api.Strict)
	}
	if api.DeprecationErrors != nil {
		cmd.Append("apiDeprecationErrors", *api.DeprecationErrors)
	}
}
