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

package description

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/gravitational/mongowire/lib/wire"
)

// TestClassify verifies the server role classification from the reply's
// topology hints.
func TestClassify(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		reply wire.HelloReply
		want  ServerKind
	}{
		{
			name:  "standalone",
			reply: wire.HelloReply{IsWritablePrimary: true},
			want:  KindStandalone,
		},
		{
			name:  "legacy standalone",
			reply: wire.HelloReply{LegacyIsMaster: true},
			want:  KindStandalone,
		},
		{
			name:  "mongos",
			reply: wire.HelloReply{IsWritablePrimary: true, Msg: "isdbgrid"},
			want:  KindMongos,
		},
		{
			name:  "replica set primary",
			reply: wire.HelloReply{IsWritablePrimary: true, SetName: "rs0"},
			want:  KindRSPrimary,
		},
		{
			name:  "replica set secondary",
			reply: wire.HelloReply{Secondary: true, SetName: "rs0"},
			want:  KindRSSecondary,
		},
		{
			name:  "replica set arbiter",
			reply: wire.HelloReply{ArbiterOnly: true, SetName: "rs0"},
			want:  KindRSArbiter,
		},
		{
			name:  "replica set other",
			reply: wire.HelloReply{Hidden: true, SetName: "rs0"},
			want:  KindRSOther,
		},
		{
			name:  "unknown",
			reply: wire.HelloReply{},
			want:  KindUnknown,
		},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			desc := FromHelloReply(&test.reply)
			require.Equal(t, test.want, desc.Kind)
			require.Equal(t, test.want.String(), desc.Kind.String())
		})
	}
}

// TestFromHelloReplyLimits verifies server limits carry over with defaults
// for omitted fields.
func TestFromHelloReplyLimits(t *testing.T) {
	t.Parallel()

	t.Run("reported limits", func(t *testing.T) {
		desc := FromHelloReply(&wire.HelloReply{
			IsWritablePrimary:   true,
			MinWireVersion:      6,
			MaxWireVersion:      21,
			MaxBSONObjectSize:   1024,
			MaxMessageSizeBytes: 2048,
			MaxWriteBatchSize:   10,
		})
		require.EqualValues(t, 6, desc.MinWireVersion)
		require.EqualValues(t, 21, desc.MaxWireVersion)
		require.EqualValues(t, 1024, desc.MaxBSONObjectSize)
		require.EqualValues(t, 2048, desc.MaxMessageSizeBytes)
		require.EqualValues(t, 10, desc.MaxWriteBatchSize)
		require.True(t, desc.SupportsOpMsg())
	})

	t.Run("defaults", func(t *testing.T) {
		desc := FromHelloReply(&wire.HelloReply{IsWritablePrimary: true, MaxWireVersion: 5})
		require.EqualValues(t, DefaultMaxBSONObjectSize, desc.MaxBSONObjectSize)
		require.EqualValues(t, DefaultMaxMessageSizeBytes, desc.MaxMessageSizeBytes)
		require.EqualValues(t, DefaultMaxWriteBatchSize, desc.MaxWriteBatchSize)
		require.False(t, desc.SupportsOpMsg())
	})
}
