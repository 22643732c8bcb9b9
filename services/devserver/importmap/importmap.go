// Copyright (C) 2025 Swiss Labs (dev@swissjs.org)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package importmap pre-resolves bare specifiers to canonical URLs.
//
// The generator runs at build time (swite genmap) and writes
// {appRoot}/.swite/import-map.json. The dev server loads the document
// once at startup and consults it before any dynamic resolution, which
// turns the common bare-import case into a map lookup.
package importmap

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"time"
)

// Version is the document format version the loader accepts.
const Version = "1.0"

// WellKnownSubpaths are the package subpaths the generator pre-resolves
// in addition to each package's main entry.
var WellKnownSubpaths = []string{
	"jsx-runtime",
	"jsx-dev-runtime",
	"client",
	"server",
	"hooks",
	"utils",
}

// Document is the on-disk shape of the import map.
type Document struct {
	Version   string            `json:"version"`
	Generated int64             `json:"generated"`
	Imports   map[string]string `json:"imports"`
}

// Map is the loaded, immutable import map.
type Map struct {
	imports map[string]string
}

// Empty returns a Map with no entries.
func Empty() *Map {
	return &Map{imports: map[string]string{}}
}

// Lookup returns the pre-resolved URL for a bare specifier.
func (m *Map) Lookup(specifier string) (string, bool) {
	url, ok := m.imports[specifier]
	return url, ok
}

// Len reports the number of entries.
func (m *Map) Len() int { return len(m.imports) }

// Load reads the import map at path. An absent file is not an error:
// the server simply falls back to dynamic resolution. The document is
// read once; it is not watched.
func Load(path string, log *slog.Logger) (*Map, error) {
	if log == nil {
		log = slog.Default()
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			log.Info("no import map, using dynamic resolution only", "path", path)
			return Empty(), nil
		}
		return nil, err
	}
	var doc Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse import map %s: %w", path, err)
	}
	if doc.Version != Version {
		return nil, fmt.Errorf("import map %s: unsupported version %q", path, doc.Version)
	}
	if doc.Imports == nil {
		doc.Imports = map[string]string{}
	}
	log.Info("import map loaded", "path", path, "entries", len(doc.Imports))
	return &Map{imports: doc.Imports}, nil
}

// EntryResolver resolves one package entry (name plus optional subpath)
// to a canonical URL. The boolean is false when the entry cannot be
// resolved; the generator skips it.
type EntryResolver func(name, subpath string) (string, bool)

// Generate pre-resolves every listed package's main entry and each
// well-known subpath, and writes the serialized document to path.
func Generate(path string, packages []string, resolve EntryResolver, log *slog.Logger) (*Document, error) {
	if log == nil {
		log = slog.Default()
	}
	doc := &Document{
		Version:   Version,
		Generated: time.Now().UnixMilli(),
		Imports:   map[string]string{},
	}

	names := append([]string(nil), packages...)
	sort.Strings(names)
	for _, name := range names {
		if url, ok := resolve(name, ""); ok {
			doc.Imports[name] = url
		} else {
			log.Warn("could not pre-resolve package entry", "package", name)
		}
		for _, sub := range WellKnownSubpaths {
			if url, ok := resolve(name, sub); ok {
				doc.Imports[name+"/"+sub] = url
			}
		}
	}

	if err := writeAtomic(path, doc); err != nil {
		return nil, err
	}
	log.Info("import map written", "path", path, "entries", len(doc.Imports))
	return doc, nil
}

func writeAtomic(path string, doc *Document) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return err
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}
