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
	"github.com/gravitational/trace"
	"github.com/xdg-go/scram"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// ClientFirst is the client's first message of an authentication exchange,
// built so it can be embedded into the handshake command. It is promoted to
// a FirstRound once the server's matching response arrives.
type ClientFirst struct {
	mechanism    Mechanism
	document     bson.D
	conversation *scram.ClientConversation
}

// Mechanism returns the mechanism the message was built for.
func (c *ClientFirst) Mechanism() Mechanism { return c.mechanism }

// Document returns the message in the shape the server expects under the
// handshake command's speculativeAuthenticate key.
func (c *ClientFirst) Document() bson.D { return c.document }

// PairWith combines the client's first message with the server's response
// into the first round of the exchange, handed to the conversation engine so
// it does not repeat round one.
func (c *ClientFirst) PairWith(serverFirst bson.Raw) *FirstRound {
	return &FirstRound{
		Mechanism:      c.mechanism,
		ClientDocument: c.document,
		ServerResponse: serverFirst,
		conversation:   c.conversation,
	}
}

// FirstRound is a completed first round of an authentication exchange: the
// client's message, the server's response and the in-progress SCRAM
// conversation when the mechanism has one.
type FirstRound struct {
	// Mechanism the round was performed with.
	Mechanism Mechanism
	// ClientDocument is the client's first message as sent.
	ClientDocument bson.D
	// ServerResponse is the server's first response as received.
	ServerResponse bson.Raw

	conversation *scram.ClientConversation
}

// Conversation returns the SCRAM conversation to resume, or nil for
// mechanisms without one.
func (r *FirstRound) Conversation() *scram.ClientConversation { return r.conversation }

// BuildSpeculativeClientFirst attempts to build the first message of the
// authentication exchange for embedding in the handshake command.
//
// A nil ClientFirst with a nil error means the mechanism does not support
// speculation and the handshake should proceed without it; an error means the
// credential material itself is unusable.
//
// When the credential declares no mechanism, SCRAM-SHA-256 is assumed. This
// does not cause issues with servers where SCRAM-SHA-256 is not the default:
// those servers are too old to support speculative authentication and ignore
// the field entirely.
func BuildSpeculativeClientFirst(cred *Credential) (*ClientFirst, error) {
	if cred == nil {
		return nil, nil
	}

	mechanism := cred.Mechanism
	if mechanism == "" {
		mechanism = MechanismScramSHA256
	}

	switch mechanism {
	case MechanismScramSHA1, MechanismScramSHA256:
		conversation, payload, err := newScramConversation(mechanism, cred)
		if err != nil {
			return nil, trace.Wrap(err)
		}
		return &ClientFirst{
			mechanism:    mechanism,
			conversation: conversation,
			document: bson.D{
				{Key: "saslStart", Value: 1},
				{Key: "mechanism", Value: string(mechanism)},
				{Key: "payload", Value: primitive.Binary{Data: []byte(payload)}},
				{Key: "db", Value: cred.ResolvedSource()},
				{Key: "options", Value: bson.D{{Key: "skipEmptyExchange", Value: true}}},
			},
		}, nil
	case MechanismMongoDBX509:
		document := bson.D{
			{Key: "authenticate", Value: 1},
			{Key: "mechanism", Value: string(mechanism)},
		}
		if cred.Username != "" {
			document = append(document, bson.E{Key: "user", Value: cred.Username})
		}
		document = append(document, bson.E{Key: "db", Value: "$external"})
		return &ClientFirst{mechanism: mechanism, document: document}, nil
	default:
		// Remaining mechanisms cannot start without a server round trip.
		return nil, nil
	}
}
