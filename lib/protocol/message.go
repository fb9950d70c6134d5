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

// Package protocol implements OP_MSG framing for command execution: enough
// of the wire protocol to carry a command document to the server and read
// the reply document back.
package protocol

import (
	"encoding/binary"
	"io"

	"github.com/gravitational/trace"
	"go.mongodb.org/mongo-driver/x/bsonx/bsoncore"
	"go.mongodb.org/mongo-driver/x/mongo/driver/wiremessage"
)

const (
	// DefaultMaxMessageSizeBytes is the server's default maximum message
	// size, used as the read limit until the handshake negotiates one.
	DefaultMaxMessageSizeBytes = uint32(48000000)

	// headerSizeBytes is the size of the standard wire message header.
	headerSizeBytes = 16
)

// MessageHeader is the standard wire message header.
type MessageHeader struct {
	MessageLength int32
	RequestID     int32
	ResponseTo    int32
	OpCode        wiremessage.OpCode
}

// MessageOpMsg is an OP_MSG wire message carrying a single body section.
// Document sequence sections are a bulk-write optimization and are rejected
// on replies; commands sent by this library never produce them.
type MessageOpMsg struct {
	Header MessageHeader
	Flags  wiremessage.MsgFlag
	Body   bsoncore.Document
}

// MakeOpMsg builds an OP_MSG message around the given command document.
func MakeOpMsg(body bsoncore.Document) *MessageOpMsg {
	return &MessageOpMsg{
		Body: body,
	}
}

// MoreToCome reports whether the peer indicated no reply should be awaited.
func (m *MessageOpMsg) MoreToCome() bool {
	return m.Flags&wiremessage.MoreToCome != 0
}

// ToWire encodes the message into its wire representation, assigning a fresh
// request id.
func (m *MessageOpMsg) ToWire() []byte {
	m.Header.RequestID = wiremessage.NextRequestID()
	idx, dst := wiremessage.AppendHeaderStart(nil, m.Header.RequestID, 0, wiremessage.OpMsg)
	dst = wiremessage.AppendMsgFlags(dst, m.Flags)
	dst = wiremessage.AppendMsgSectionType(dst, wiremessage.SingleDocument)
	dst = append(dst, m.Body...)
	return bsoncore.UpdateLength(dst, idx, int32(len(dst)))
}

// ReadMessage reads and parses one OP_MSG message from the reader,
// refusing messages above the size limit.
func ReadMessage(r io.Reader, maxMessageSize uint32) (*MessageOpMsg, error) {
	var headerBytes [headerSizeBytes]byte
	if _, err := io.ReadFull(r, headerBytes[:]); err != nil {
		return nil, trace.ConvertSystemError(err)
	}
	header := MessageHeader{
		MessageLength: int32(binary.LittleEndian.Uint32(headerBytes[0:4])),
		RequestID:     int32(binary.LittleEndian.Uint32(headerBytes[4:8])),
		ResponseTo:    int32(binary.LittleEndian.Uint32(headerBytes[8:12])),
		OpCode:        wiremessage.OpCode(binary.LittleEndian.Uint32(headerBytes[12:16])),
	}
	if header.OpCode != wiremessage.OpMsg {
		return nil, trace.BadParameter("expected OP_MSG reply, got opcode %d", header.OpCode)
	}
	if header.MessageLength < headerSizeBytes || uint32(header.MessageLength) > maxMessageSize {
		return nil, trace.BadParameter("invalid server message length %d", header.MessageLength)
	}

	payload := make([]byte, header.MessageLength-headerSizeBytes)
	if _, err := io.ReadFull(r, payload); err != nil {
		return nil, trace.ConvertSystemError(err)
	}
	return parseOpMsg(header, payload)
}

func parseOpMsg(header MessageHeader, payload []byte) (*MessageOpMsg, error) {
	flags, rem, ok := wiremessage.ReadMsgFlags(payload)
	if !ok {
		return nil, trace.BadParameter("malformed OP_MSG: missing flags")
	}
	if flags&wiremessage.ChecksumPresent != 0 {
		// CRC-32C trailer, not validated.
		if len(rem) < 4 {
			return nil, trace.BadParameter("malformed OP_MSG: missing checksum")
		}
		rem = rem[:len(rem)-4]
	}

	message := &MessageOpMsg{
		Header: header,
		Flags:  flags,
	}
	for len(rem) > 0 {
		var sectionType wiremessage.SectionType
		sectionType, rem, ok = wiremessage.ReadMsgSectionType(rem)
		if !ok {
			return nil, trace.BadParameter("malformed OP_MSG: missing section type")
		}
		switch sectionType {
		case wiremessage.SingleDocument:
			if message.Body != nil {
				return nil, trace.BadParameter("malformed OP_MSG: multiple body sections")
			}
			message.Body, rem, ok = wiremessage.ReadMsgSectionSingleDocument(rem)
			if !ok {
				return nil, trace.BadParameter("malformed OP_MSG: invalid body section")
			}
		default:
			return nil, trace.BadParameter("unexpected OP_MSG section type %v in server reply", sectionType)
		}
	}
	if message.Body == nil {
		return nil, trace.BadParameter("malformed OP_MSG: missing body section")
	}
	if err := message.Body.Validate(); err != nil {
		return nil, trace.Wrap(err, "malformed OP_MSG: invalid body document")
	}
	return message, nil
}
