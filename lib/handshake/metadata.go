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
	"fmt"
	"os"
	"runtime"
	"strings"
	"sync"

	"go.mongodb.org/mongo-driver/bson"
)

const (
	// driverName identifies this library in the handshake's client document.
	driverName = "mongowire"
	// driverVersion is this library's release version.
	driverVersion = "1.0.0"
)

// metadataSeparator joins the base driver identity with each wrapping
// library's identity in the client document.
const metadataSeparator = "|"

// ClientMetadata is the identification document attached to the handshake
// command under the "client" key. Values have value semantics: customization
// copies, never mutates.
type ClientMetadata struct {
	// Application is the caller-supplied application name, if any.
	Application *AppMetadata
	// Driver identifies this library and any libraries wrapping it.
	Driver DriverMetadata
	// OS describes the host operating system.
	OS OSMetadata
	// Platform is a free-form runtime descriptor. Empty when probing failed.
	Platform string
}

// AppMetadata names the application on whose behalf the client runs.
type AppMetadata struct {
	Name string
}

// DriverMetadata identifies the driver. Name and Version may each be a
// "|"-joined chain: the base identity first, then each wrapping library in
// the order supplied.
type DriverMetadata struct {
	Name    string
	Version string
}

// OSMetadata describes the host operating system. Name and Version are
// omitted from the document when probing could not determine them.
type OSMetadata struct {
	Type         string
	Name         string
	Architecture string
	Version      string
}

// DriverInfo identifies a library layered on top of this one. Its fields are
// appended to the corresponding driver metadata chains.
type DriverInfo struct {
	// Name of the wrapping library. Required.
	Name string
	// Version of the wrapping library. Optional.
	Version string
	// Platform of the wrapping library. Optional.
	Platform string
}

// baseClientMetadata computes the process-wide portion of the client
// document once, on first use. The result is shared read-only by every
// handshaker in the process.
var baseClientMetadata = sync.OnceValue(func() ClientMetadata {
	metadata := ClientMetadata{
		Driver: DriverMetadata{
			Name:    driverName,
			Version: driverVersion,
		},
		OS: OSMetadata{
			Type:         runtime.GOOS,
			Architecture: runtime.GOARCH,
		},
		Platform: fmt.Sprintf("%s (%s)", runtime.Version(), runtime.Compiler),
	}
	// Probing failures leave the optional fields empty; they are then
	// omitted from the document rather than failing the handshake.
	metadata.OS.Name, metadata.OS.Version = probeOSRelease()
	return metadata
})

// withOptions layers per-handshaker customization onto a copy of the
// metadata. The receiver is passed by value and never mutated, so the shared
// base stays pristine under concurrent construction.
func (m ClientMetadata) withOptions(appName string, infos []DriverInfo) ClientMetadata {
	if appName != "" {
		m.Application = &AppMetadata{Name: appName}
	}
	for _, info := range infos {
		m.Driver.Name = m.Driver.Name + metadataSeparator + info.Name
		if info.Version != "" {
			m.Driver.Version = m.Driver.Version + metadataSeparator + info.Version
		}
		if m.Platform != "" && info.Platform != "" {
			m.Platform = m.Platform + metadataSeparator + info.Platform
		}
	}
	return m
}

// Document renders the metadata in its wire shape. Optional fields are
// omitted entirely, never emitted as null.
func (m ClientMetadata) Document() bson.D {
	doc := bson.D{}
	if m.Application != nil {
		doc = append(doc, bson.E{Key: "application", Value: bson.D{
			{Key: "name", Value: m.Application.Name},
		}})
	}
	doc = append(doc, bson.E{Key: "driver", Value: bson.D{
		{Key: "name", Value: m.Driver.Name},
		{Key: "version", Value: m.Driver.Version},
	}})

	osDoc := bson.D{{Key: "type", Value: m.OS.Type}}
	if m.OS.Name != "" {
		osDoc = append(osDoc, bson.E{Key: "name", Value: m.OS.Name})
	}
	osDoc = append(osDoc, bson.E{Key: "architecture", Value: m.OS.Architecture})
	if m.OS.Version != "" {
		osDoc = append(osDoc, bson.E{Key: "version", Value: m.OS.Version})
	}
	doc = append(doc, bson.E{Key: "os", Value: osDoc})

	if m.Platform != "" {
		doc = append(doc, bson.E{Key: "platform", Value: m.Platform})
	}
	return doc
}

// probeOSRelease reads the distribution name and version from the standard
// os-release file. Returns empty strings on any failure or on platforms
// without one.
func probeOSRelease() (name, version string) {
	data, err := os.ReadFile("/etc/os-release")
	if err != nil {
		return "", ""
	}
	for _, line := range strings.Split(string(data), "\n") {
		key, value, ok := strings.Cut(strings.TrimSpace(line), "=")
		if !ok {
			continue
		}
		value = strings.Trim(value, `"`)
		switch key {
		case "NAME":
			name = value
		case "VERSION_ID":
			version = value
		}
	}
	return name, version
}
