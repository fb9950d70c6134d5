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

import (
	"runtime"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
)

// TestBaseClientMetadata verifies the process-wide portion of the client
// document and its compute-once semantics.
func TestBaseClientMetadata(t *testing.T) {
	t.Parallel()

	base := baseClientMetadata()
	require.Equal(t, driverName, base.Driver.Name)
	require.Equal(t, driverVersion, base.Driver.Version)
	require.Equal(t, runtime.GOOS, base.OS.Type)
	require.Equal(t, runtime.GOARCH, base.OS.Architecture)
	require.NotEmpty(t, base.Platform)
	require.Nil(t, base.Application)

	// All callers observe the same cached value.
	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			require.Equal(t, base, baseClientMetadata())
		}()
	}
	wg.Wait()
}

// TestMetadataDocumentOmitsOptionalFields verifies that absent optional
// fields are left out of the document entirely.
func TestMetadataDocumentOmitsOptionalFields(t *testing.T) {
	t.Parallel()

	metadata := ClientMetadata{
		Driver: DriverMetadata{Name: "mongowire", Version: "1.0.0"},
		OS:     OSMetadata{Type: "linux", Architecture: "amd64"},
	}
	doc := metadata.Document()

	require.Nil(t, lookupKey(doc, "application"))
	require.Nil(t, lookupKey(doc, "platform"))
	require.Equal(t, bson.D{
		{Key: "name", Value: "mongowire"},
		{Key: "version", Value: "1.0.0"},
	}, lookupKey(doc, "driver"))
	require.Equal(t, bson.D{
		{Key: "type", Value: "linux"},
		{Key: "architecture", Value: "amd64"},
	}, lookupKey(doc, "os"))
}

// TestMetadataCustomize verifies the layering of application name and
// wrapping library identity onto the base metadata.
func TestMetadataCustomize(t *testing.T) {
	t.Parallel()

	base := ClientMetadata{
		Driver:   DriverMetadata{Name: "mongowire", Version: "1.0.0"},
		OS:       OSMetadata{Type: "linux", Architecture: "amd64"},
		Platform: "go1.25.1 (gc)",
	}

	tests := []struct {
		name        string
		appName     string
		infos       []DriverInfo
		wantName    string
		wantVersion string
		wantApp     *AppMetadata
		wantPlat    string
	}{
		{
			name:        "no customization",
			wantName:    "mongowire",
			wantVersion: "1.0.0",
			wantPlat:    "go1.25.1 (gc)",
		},
		{
			name:        "single wrapper",
			infos:       []DriverInfo{{Name: "wrapperA", Version: "9"}},
			wantName:    "mongowire|wrapperA",
			wantVersion: "1.0.0|9",
			wantPlat:    "go1.25.1 (gc)",
		},
		{
			name:        "wrapper without version",
			infos:       []DriverInfo{{Name: "wrapperA"}},
			wantName:    "mongowire|wrapperA",
			wantVersion: "1.0.0",
			wantPlat:    "go1.25.1 (gc)",
		},
		{
			name: "wrappers join in call order",
			infos: []DriverInfo{
				{Name: "wrapperA", Version: "9", Platform: "platA"},
				{Name: "wrapperB", Version: "2"},
			},
			wantName:    "mongowire|wrapperA|wrapperB",
			wantVersion: "1.0.0|9|2",
			wantPlat:    "go1.25.1 (gc)|platA",
		},
		{
			name:        "application name",
			appName:     "testapp",
			wantName:    "mongowire",
			wantVersion: "1.0.0",
			wantApp:     &AppMetadata{Name: "testapp"},
			wantPlat:    "go1.25.1 (gc)",
		},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			customized := base.withOptions(test.appName, test.infos)
			require.Equal(t, test.wantName, customized.Driver.Name)
			require.Equal(t, test.wantVersion, customized.Driver.Version)
			require.Equal(t, test.wantApp, customized.Application)
			require.Equal(t, test.wantPlat, customized.Platform)

			// The base is never mutated.
			require.Equal(t, "mongowire", base.Driver.Name)
			require.Equal(t, "1.0.0", base.Driver.Version)
			require.Nil(t, base.Application)
			require.Equal(t, "go1.25.1 (gc)", base.Platform)
		})
	}
}

func lookupKey(body bson.D, key string) any {
	for _, elem := range body {
		if elem.Key == key {
			return elem.Value
		}
	}
	return nil
}
