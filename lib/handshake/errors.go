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

package handshake

import "errors"

// IncompatibleServerError is returned when the server's capability reply
// cannot satisfy the requested deployment mode. The connection is unusable
// and must be discarded by the caller.
type IncompatibleServerError struct {
	// Message explains the mismatch.
	Message string
}

// Error implements the error interface.
func (e *IncompatibleServerError) Error() string {
	return e.Message
}

// IsIncompatibleServerError reports whether err is, or wraps, an
// IncompatibleServerError.
func IsIncompatibleServerError(err error) bool {
	var incompatible *IncompatibleServerError
	return errors.As(err, &incompatible)
}
