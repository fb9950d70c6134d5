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

// Package handshake negotiates capabilities and identity with a server on a
// freshly opened connection, before any application command is sent. It
// builds the capability command, optionally embeds the first round of an
// authentication exchange into it, validates the reply against the requested
// deployment mode, and hands off the reconciled server description together
// with any partial authentication state.
package handshake

import (
	"context"
	"log/slog"

	"github.com/gravitational/trace"
	"go.mongodb.org/mongo-driver/bson"

	"github.com/gravitational/mongowire/lib/auth"
	"github.com/gravitational/mongowire/lib/description"
	"github.com/gravitational/mongowire/lib/wire"
)

// Conn is the connection surface the handshake needs: command execution with
// a decoded reply document, and a slot for the negotiated server description.
// Implemented by lib/connection; tests substitute fakes.
type Conn interface {
	// RunCommand executes the command and returns the reply document.
	RunCommand(ctx context.Context, cmd wire.Command) (bson.Raw, error)
	// SetDescription caches the negotiated server description on the
	// connection for subsequent command routing.
	SetDescription(desc *description.Stream)
}

// Options configures a Handshaker. The zero value produces an anonymous,
// unauthenticated handshake.
type Options struct {
	// AppName is reported to the server under client.application.name.
	AppName string
	// Credential, when set, enables mechanism negotiation and speculative
	// authentication during the handshake.
	Credential *auth.Credential
	// DriverInfos identifies libraries wrapping this one, innermost first.
	DriverInfos []DriverInfo
	// ServerAPI opts the client into a versioned server API.
	ServerAPI *wire.ServerAPI
	// LoadBalanced requests load-balanced routing. The server must confirm
	// support by returning a service identifier or the handshake fails.
	LoadBalanced bool
	// Logger emits handshake debug logging. Defaults to slog.Default.
	Logger *slog.Logger
}

// Handshaker performs the connection handshake. Construct it once per
// connection pool configuration; the precomputed command template is
// immutable and is cloned for every handshake, so a single Handshaker is
// safe for concurrent use.
type Handshaker struct {
	command      wire.Command
	credential   *auth.Credential
	loadBalanced bool
	log          *slog.Logger
}

// Result is the outcome of a successful handshake: the server's capability
// reply and, when the server answered the embedded first authentication
// message, the completed first round for the caller's conversation engine.
type Result struct {
	// Reply is the server's decoded capability reply.
	Reply *wire.HelloReply
	// FirstRound is the completed speculative authentication round, or nil
	// when speculation was not attempted or the server did not answer it.
	FirstRound *auth.FirstRound
}

// NewHandshaker builds the immutable handshake command template from the
// process-wide client metadata and the supplied options.
func NewHandshaker(opts Options) *Handshaker {
	metadata := baseClientMetadata().withOptions(opts.AppName, opts.DriverInfos)

	// The modern command spelling is required by the versioned API and by
	// load-balanced mode; everywhere else the legacy spelling keeps old
	// servers answering, with helloOk advertising the upgrade.
	cmd := wire.NewCommand(wire.CommandHello, wire.DatabaseAdmin)
	if opts.ServerAPI == nil && !opts.LoadBalanced {
		cmd = wire.NewCommand(wire.CommandIsMaster, wire.DatabaseAdmin)
		cmd.Append("helloOk", true)
	}
	if opts.ServerAPI != nil {
		opts.ServerAPI.AppendTo(&cmd)
	}
	if opts.Credential != nil {
		opts.Credential.AppendNegotiationHint(&cmd)
		cmd.Database = opts.Credential.ResolvedSource()
	}
	if opts.LoadBalanced {
		cmd.Append("loadBalanced", true)
	}
	cmd.Append("client", metadata.Document())

	log := opts.Logger
	if log == nil {
		log = slog.Default()
	}
	return &Handshaker{
		command:      cmd,
		credential:   opts.Credential,
		loadBalanced: opts.LoadBalanced,
		log:          log,
	}
}

// Handshake performs the handshake on the given connection. It is a single
// linear attempt: any failure aborts the handshake, leaves the connection's
// description unset and must be treated as fatal to the connection by the
// caller. Retry policy, if any, belongs to the caller.
func (h *Handshaker) Handshake(ctx context.Context, conn Conn) (*Result, error) {
	cmd := h.command.Clone()

	clientFirst, err := setSpeculativeAuth(&cmd, h.credential)
	if err != nil {
		return nil, trace.Wrap(err)
	}

	h.log.DebugContext(ctx, "Sending handshake command.",
		"command", cmd.Name,
		"database", cmd.Database,
		"speculative_auth", clientFirst != nil,
	)
	raw, err := conn.RunCommand(ctx, cmd)
	if err != nil {
		return nil, trace.Wrap(err)
	}
	reply, err := wire.DecodeHelloReply(raw)
	if err != nil {
		return nil, trace.Wrap(err)
	}

	// The deployment-mode check must pass before the connection is usable:
	// a server that does not confirm load balancing cannot be routed to
	// through a balancer.
	if h.loadBalanced && reply.ServiceID == nil {
		return nil, trace.Wrap(&IncompatibleServerError{
			Message: "driver attempted to initialize in load balancing mode, but the server does not support this mode",
		})
	}

	conn.SetDescription(description.FromHelloReply(reply))

	// The first round is complete only if the server answered the embedded
	// client-first message; otherwise the caller's conversation engine
	// starts from scratch.
	var firstRound *auth.FirstRound
	if clientFirst != nil && len(reply.SpeculativeAuthenticate) > 0 {
		firstRound = clientFirst.PairWith(reply.SpeculativeAuthenticate)
	}

	h.log.DebugContext(ctx, "Handshake completed.",
		"max_wire_version", reply.MaxWireVersion,
		"speculative_auth_answered", firstRound != nil,
	)
	return &Result{
		Reply:      reply,
		FirstRound: firstRound,
	}, nil
}

// setSpeculativeAuth attaches the first message of the authentication
// exchange to the handshake command, if the credential's mechanism supports
// starting without a server round trip. The command body is modified only
// when speculation is attempted.
func setSpeculativeAuth(cmd *wire.Command, credential *auth.Credential) (*auth.ClientFirst, error) {
	if credential == nil {
		return nil, nil
	}
	clientFirst, err := auth.BuildSpeculativeClientFirst(credential)
	if err != nil {
		return nil, trace.Wrap(err)
	}
	if clientFirst == nil {
		return nil, nil
	}
	cmd.Append("speculativeAuthenticate", clientFirst.Document())
	return clientFirst, nil
}
