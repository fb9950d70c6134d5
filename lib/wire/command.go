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

import (
	"github.com/gravitational/trace"
	"go.mongodb.org/mongo-driver/bson"
)

// Command is a single outbound database command: the command name, the
// database it targets and the ordered body document. The first element of
// the body is always the command name element.
type Command struct {
	// Name is the command name, e.g. "hello".
	Name string
	// Database is the database the command is executed against.
	Database string
	// Body is the command document. Order is significant on the wire so the
	// body is kept as bson.D rather than a map.
	Body bson.D
}

// NewCommand returns a command targeting the given database. The body starts
// out with the command name element only.
func NewCommand(name, database string) Command {
	return Command{
		Name:     name,
		Database: database,
		Body:     bson.D{{Key: name, Value: 1}},
	}
}

// Append adds an element to the end of the command body.
func (c *Command) Append(key string, value any) {
	c.Body = append(c.Body, bson.E{Key: key, Value: value})
}

// Clone returns a copy of the command whose body can be appended to without
// affecting the original. Element values are shared; callers must treat them
// as read-only.
func (c Command) Clone() Command {
	body := make(bson.D, len(c.Body), len(c.Body)+2)
	copy(body, c.Body)
	c.Body = body
	return c
}

// ContainsKey reports whether the command body has an element with the
// given key.
func (c Command) ContainsKey(key string) bool {
	for _, elem := range c.Body {
		if elem.Key == key {
			return true
		}
	}
	return false
}

// Marshal encodes the command body, including the "$db" element required by
// the OP_MSG body section, into a BSON document.
func (c Command) Marshal() ([]byte, error) {
	if c.Database == "" {
		return nil, trace.BadParameter("command %q is missing a target database", c.Name)
	}
	body := make(bson.D, len(c.Body), len(c.Body)+1)
	copy(body, c.Body)
	body = append(body, bson.E{Key: "$db", Value: c.Database})
	doc, err := bson.Marshal(body)
	if err != nil {
		return nil, trace.Wrap(err)
	}
	return doc, nil
}
