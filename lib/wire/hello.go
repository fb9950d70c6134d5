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
	"go.mongodb.org/mongo-driver/bson/primitive"
)

const (
	// CommandHello is the modern capability negotiation command.
	CommandHello = "hello"
	// CommandIsMaster is the legacy spelling of the capability negotiation
	// command, still accepted by every server version.
	CommandIsMaster = "isMaster"
	// DatabaseAdmin is the database capability commands are issued against
	// when no credential dictates otherwise.
	DatabaseAdmin = "admin"
)

// HelloReply is the decoded capability reply from the server's "hello" (or
// legacy "isMaster") command. Only the fields the connection-establishment
// path reads are decoded; the full reply stays available in Raw.
type HelloReply struct {
	// OK is the command status; 1 means success.
	OK float64 `bson:"ok"`
	// IsWritablePrimary indicates the server can accept writes.
	IsWritablePrimary bool `bson:"isWritablePrimary"`
	// LegacyIsMaster is the pre-hello spelling of IsWritablePrimary.
	LegacyIsMaster bool `bson:"ismaster"`
	// HelloOK indicates the server understands the "hello" command and the
	// client may stop sending "isMaster".
	HelloOK bool `bson:"helloOk"`
	// Secondary indicates a replica set secondary.
	Secondary bool `bson:"secondary"`
	// ArbiterOnly indicates a replica set arbiter.
	ArbiterOnly bool `bson:"arbiterOnly"`
	// Hidden indicates a hidden replica set member.
	Hidden bool `bson:"hidden"`
	// Msg is set to "isdbgrid" by mongos.
	Msg string `bson:"msg"`
	// SetName is the replica set name, if the server is a member of one.
	SetName string `bson:"setName"`
	// Hosts lists the members of the replica set.
	Hosts []string `bson:"hosts"`
	// Me is the address the server believes it is reachable at.
	Me string `bson:"me"`
	// MinWireVersion is the lowest wire protocol version the server supports.
	MinWireVersion int32 `bson:"minWireVersion"`
	// MaxWireVersion is the highest wire protocol version the server supports.
	MaxWireVersion int32 `bson:"maxWireVersion"`
	// MaxBSONObjectSize is the largest document the server accepts, in bytes.
	MaxBSONObjectSize int32 `bson:"maxBsonObjectSize"`
	// MaxMessageSizeBytes is the largest wire message the server accepts.
	MaxMessageSizeBytes int32 `bson:"maxMessageSizeBytes"`
	// MaxWriteBatchSize is the largest write batch the server accepts.
	MaxWriteBatchSize int32 `bson:"maxWriteBatchSize"`
	// LogicalSessionTimeoutMinutes is the server's session idle timeout.
	LogicalSessionTimeoutMinutes int32 `bson:"logicalSessionTimeoutMinutes"`
	// ServiceID identifies the backing service when the server sits behind a
	// load balancer. Absent on servers that do not support load balancing.
	ServiceID *primitive.ObjectID `bson:"serviceId"`
	// SASLSupportedMechs lists the authentication mechanisms valid for the
	// user named in the handshake's mechanism negotiation hint.
	SASLSupportedMechs []string `bson:"saslSupportedMechs"`
	// SpeculativeAuthenticate is the server's first response of a speculative
	// authentication exchange, present only when the server accepted the
	// client's embedded first message.
	SpeculativeAuthenticate bson.Raw `bson:"speculativeAuthenticate"`
	// Compression lists the wire compressors the server agreed to.
	Compression []string `bson:"compression"`

	// Raw is the complete reply document as received.
	Raw bson.Raw `bson:"-"`
}

// DecodeHelloReply decodes the capability reply document.
func DecodeHelloReply(raw bson.Raw) (*HelloReply, error) {
	var reply HelloReply
	if err := bson.Unmarshal(raw, &reply); err != nil {
		return nil, trace.Wrap(err, "decoding capability reply")
	}
	reply.Raw = raw
	return &reply, nil
}
