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

// Package description derives a connection's cached view of the remote
// server's negotiated capabilities from the handshake reply.
package description

import (
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/gravitational/mongowire/lib/wire"
)

// ServerKind is the role the server reported during the handshake.
type ServerKind int

const (
	// KindUnknown means the reply did not match any known role.
	KindUnknown ServerKind = iota
	// KindStandalone is a single server outside any replica set.
	KindStandalone
	// KindMongos is a sharded cluster router.
	KindMongos
	// KindRSPrimary is a writable replica set member.
	KindRSPrimary
	// KindRSSecondary is a read-only replica set member.
	KindRSSecondary
	// KindRSArbiter is a voting-only replica set member.
	KindRSArbiter
	// KindRSOther is a replica set member that is neither primary, secondary
	// nor arbiter (e.g. hidden or still syncing).
	KindRSOther
)

// String returns the kind's wire-spec name.
func (k ServerKind) String() string {
	switch k {
	case KindStandalone:
		return "Standalone"
	case KindMongos:
		return "Mongos"
	case KindRSPrimary:
		return "RSPrimary"
	case KindRSSecondary:
		return "RSSecondary"
	case KindRSArbiter:
		return "RSArbiter"
	case KindRSOther:
		return "RSOther"
	default:
		return "Unknown"
	}
}

// Default server limits, used when the reply omits the corresponding field.
const (
	DefaultMaxBSONObjectSize   = 16 * 1024 * 1024
	DefaultMaxMessageSizeBytes = 48000000
	DefaultMaxWriteBatchSize   = 100000
)

// Stream is a connection's cached summary of the remote server, assembled
// from the handshake reply and consulted when routing subsequent commands.
// It is immutable once assigned to a connection.
type Stream struct {
	// Kind is the server's reported role.
	Kind ServerKind
	// SetName is the replica set name, if any.
	SetName string
	// MinWireVersion and MaxWireVersion bound the wire protocol versions the
	// server speaks.
	MinWireVersion int32
	MaxWireVersion int32
	// MaxBSONObjectSize is the largest document the server accepts.
	MaxBSONObjectSize int32
	// MaxMessageSizeBytes is the largest wire message the server accepts.
	MaxMessageSizeBytes int32
	// MaxWriteBatchSize is the largest write batch the server accepts.
	MaxWriteBatchSize int32
	// HelloOK records whether the server understands the "hello" command.
	HelloOK bool
	// SessionTimeoutMinutes is the server's logical session idle timeout.
	SessionTimeoutMinutes int32
	// ServiceID identifies the backing service behind a load balancer.
	ServiceID *primitive.ObjectID
	// SASLSupportedMechs lists authentication mechanisms the server reported
	// as valid for the handshake's negotiated user.
	SASLSupportedMechs []string
	// Compression lists the wire compressors both sides support.
	Compression []string
}

// FromHelloReply assembles the stream description from a capability reply.
func FromHelloReply(reply *wire.HelloReply) *Stream {
	desc := &Stream{
		Kind:                  classify(reply),
		SetName:               reply.SetName,
		MinWireVersion:        reply.MinWireVersion,
		MaxWireVersion:        reply.MaxWireVersion,
		MaxBSONObjectSize:     orDefault(reply.MaxBSONObjectSize, DefaultMaxBSONObjectSize),
		MaxMessageSizeBytes:   orDefault(reply.MaxMessageSizeBytes, DefaultMaxMessageSizeBytes),
		MaxWriteBatchSize:     orDefault(reply.MaxWriteBatchSize, DefaultMaxWriteBatchSize),
		HelloOK:               reply.HelloOK,
		SessionTimeoutMinutes: reply.LogicalSessionTimeoutMinutes,
		ServiceID:             reply.ServiceID,
		SASLSupportedMechs:    reply.SASLSupportedMechs,
		Compression:           reply.Compression,
	}
	return desc
}

// SupportsOpMsg reports whether the server is recent enough for OP_MSG
// framing (wire version 6, server 3.6).
func (s *Stream) SupportsOpMsg() bool {
	return s.MaxWireVersion >= 6
}

func classify(reply *wire.HelloReply) ServerKind {
	switch {
	case reply.Msg == "isdbgrid":
		return KindMongos
	case reply.SetName != "":
		switch {
		case reply.IsWritablePrimary || reply.LegacyIsMaster:
			return KindRSPrimary
		case reply.Secondary:
			return KindRSSecondary
		case reply.ArbiterOnly:
			return KindRSArbiter
		default:
			return KindRSOther
		}
	case reply.IsWritablePrimary || reply.LegacyIsMaster:
		return KindStandalone
	default:
		return KindUnknown
	}
}

func orDefault(value, fallback int32) int32 {
	if value == 0 {
		return fallback
	}
	return value
}
