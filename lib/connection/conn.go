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

// Package connection wraps a raw transport connection with command execution
// and the negotiated server description.
package connection

import (
	"context"
	"log/slog"
	"net"
	"time"

	"github.com/google/uuid"
	"github.com/gravitational/trace"
	"github.com/jonboulle/clockwork"
	"go.mongodb.org/mongo-driver/bson"

	"github.com/gravitational/mongowire/lib/description"
	"github.com/gravitational/mongowire/lib/protocol"
	"github.com/gravitational/mongowire/lib/wire"
)

// Conn is a single server connection. It owns the transport, executes one
// command at a time and caches the server description assigned during the
// handshake. A Conn is not safe for concurrent command execution; the
// surrounding pool guarantees exclusive use.
type Conn struct {
	nc             net.Conn
	id             uuid.UUID
	log            *slog.Logger
	clock          clockwork.Clock
	maxMessageSize uint32
	desc           *description.Stream
}

// Option customizes a Conn.
type Option func(*Conn)

// WithLogger sets the logger commands are traced to.
func WithLogger(log *slog.Logger) Option {
	return func(c *Conn) { c.log = log }
}

// WithClock substitutes the clock, for tests.
func WithClock(clock clockwork.Clock) Option {
	return func(c *Conn) { c.clock = clock }
}

// WithMaxMessageSize overrides the reply size limit.
func WithMaxMessageSize(size uint32) Option {
	return func(c *Conn) { c.maxMessageSize = size }
}

// New wraps an established transport connection.
func New(nc net.Conn, opts ...Option) *Conn {
	conn := &Conn{
		nc:             nc,
		id:             uuid.New(),
		log:            slog.Default(),
		clock:          clockwork.NewRealClock(),
		maxMessageSize: protocol.DefaultMaxMessageSizeBytes,
	}
	for _, opt := range opts {
		opt(conn)
	}
	conn.log = conn.log.With("conn", conn.id.String())
	return conn
}

// ID returns the connection's process-local identifier.
func (c *Conn) ID() uuid.UUID {
	return c.id
}

// RunCommand executes the command over OP_MSG framing and returns the reply
// document. Server-reported command failures are returned as
// protocol.CommandError. Cancellation is honored through the context
// deadline; there is no mid-roundtrip cancellation beyond closing the
// transport.
func (c *Conn) RunCommand(ctx context.Context, cmd wire.Command) (bson.Raw, error) {
	if err := ctx.Err(); err != nil {
		return nil, trace.Wrap(err)
	}
	if deadline, ok := ctx.Deadline(); ok {
		if err := c.nc.SetDeadline(deadline); err != nil {
			return nil, trace.ConvertSystemError(err)
		}
		defer c.nc.SetDeadline(time.Time{})
	}

	body, err := cmd.Marshal()
	if err != nil {
		return nil, trace.Wrap(err)
	}

	start := c.clock.Now()
	if _, err := c.nc.Write(protocol.MakeOpMsg(body).ToWire()); err != nil {
		return nil, trace.ConvertSystemError(err)
	}
	reply, err := protocol.ReadMessage(c.nc, c.maxMessageSize)
	if err != nil {
		return nil, trace.Wrap(err)
	}
	c.log.DebugContext(ctx, "Command round trip completed.",
		"command", cmd.Name,
		"database", cmd.Database,
		"elapsed", c.clock.Since(start),
	)

	raw := bson.Raw(reply.Body)
	if err := protocol.CheckCommandReply(raw); err != nil {
		return nil, trace.Wrap(err)
	}
	return raw, nil
}

// SetDescription caches the server description negotiated by the handshake.
func (c *Conn) SetDescription(desc *description.Stream) {
	c.desc = desc
}

// Description returns the cached server description, or nil before the
// handshake completed.
func (c *Conn) Description() *description.Stream {
	return c.desc
}

// Close closes the underlying transport.
func (c *Conn) Close() error {
	return trace.ConvertSystemError(c.nc.Close())
}
