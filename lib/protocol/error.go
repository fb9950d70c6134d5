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

package protocol

import (
	"fmt"

	"github.com/gravitational/trace"
	"go.mongodb.org/mongo-driver/bson"
)

// CommandError is an error the server reported in a command reply.
type CommandError struct {
	// Code is the server error code.
	Code int32
	// Name is the symbolic name of the code, e.g. "Unauthorized".
	Name string
	// Message is the server-provided error message.
	Message string
}

// Error implements the error interface.
func (e *CommandError) Error() string {
	if e.Name != "" {
		return fmt.Sprintf("server returned error %s (code %d): %s", e.Name, e.Code, e.Message)
	}
	return fmt.Sprintf("server returned error code %d: %s", e.Code, e.Message)
}

// CheckCommandReply inspects the reply's "ok" field and converts a failed
// command into a CommandError.
func CheckCommandReply(reply bson.Raw) error {
	var status struct {
		OK       float64 `bson:"ok"`
		Code     int32   `bson:"code"`
		CodeName string  `bson:"codeName"`
		ErrMsg   string  `bson:"errmsg"`
	}
	if err := bson.Unmarshal(reply, &status); err != nil {
		return trace.Wrap(err, "decoding command reply status")
	}
	if status.OK == 1 {
		return nil
	}
	return trace.Wrap(&CommandError{
		Code:    status.Code,
		Name:    status.CodeName,
		Message: status.ErrMsg,
	})
}
