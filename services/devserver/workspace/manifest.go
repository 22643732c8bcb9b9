// Copyright (C) 2025 Swiss Labs (dev@swissjs.org)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package workspace discovers workspace roots and indexes the packages
// they contain.
//
// A workspace root is a directory holding a workspace marker (a
// pnpm-workspace.yaml file, or a package.json with a "workspaces" field)
// plus at least one of the recognized package-holding directories. The
// package registry walks those directories once and serves name→path
// lookups for the resolver.
package workspace

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// ManifestFile is the package manifest file name.
const ManifestFile = "package.json"

// WorkspaceMarker is the pnpm workspace marker file name.
const WorkspaceMarker = "pnpm-workspace.yaml"

// Manifest is the subset of package.json the dev server cares about.
type Manifest struct {
	Name       string    `json:"name"`
	Main       string    `json:"main"`
	Module     string    `json:"module"`
	Types      string    `json:"types"`
	Exports    ExportMap `json:"exports"`
	Workspaces Globs     `json:"workspaces"`
}

// ReadManifest parses the package.json inside dir. The boolean is false
// when the file does not exist; malformed JSON is an error.
func ReadManifest(dir string) (*Manifest, bool, error) {
	data, err := os.ReadFile(filepath.Join(dir, ManifestFile))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, false, nil
		}
		return nil, false, err
	}
	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, false, fmt.Errorf("parse %s: %w", filepath.Join(dir, ManifestFile), err)
	}
	return &m, true, nil
}

// Globs holds the "workspaces" field, which npm allows either as an
// array or as an object with a "packages" array.
type Globs []string

// UnmarshalJSON accepts both encodings.
func (g *Globs) UnmarshalJSON(data []byte) error {
	var list []string
	if err := json.Unmarshal(data, &list); err == nil {
		*g = list
		return nil
	}
	var obj struct {
		Packages []string `json:"packages"`
	}
	if err := json.Unmarshal(data, &obj); err != nil {
		return err
	}
	*g = obj.Packages
	return nil
}

// ExportMap models the "exports" field of a manifest: either a single
// target string for the root entry, or a map from subpath ("." or
// "./sub") to a target.
type ExportMap struct {
	// Single is set when exports was a bare string.
	Single string

	// Subpaths maps "." and "./..." keys to their targets.
	Subpaths map[string]ExportTarget
}

// IsZero reports whether the manifest had no exports field.
func (e ExportMap) IsZero() bool {
	return e.Single == "" && len(e.Subpaths) == 0
}

// UnmarshalJSON handles the string form, the subpath-map form, and the
// bare condition-map form (conditions at top level apply to ".").
func (e *ExportMap) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		e.Single = s
		return nil
	}
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	subpaths := make(map[string]ExportTarget, len(raw))
	conditions := make(map[string]json.RawMessage)
	for k, v := range raw {
		if len(k) > 0 && k[0] == '.' {
			var t ExportTarget
			if err := json.Unmarshal(v, &t); err != nil {
				return err
			}
			subpaths[k] = t
		} else {
			conditions[k] = v
		}
	}
	if len(conditions) > 0 {
		merged, err := json.Marshal(conditions)
		if err != nil {
			return err
		}
		var t ExportTarget
		if err := json.Unmarshal(merged, &t); err != nil {
			return err
		}
		subpaths["."] = t
	}
	e.Subpaths = subpaths
	return nil
}

// ExportTarget is a single export entry: a relative file, or a nested
// condition map ("import", "default", ...).
type ExportTarget struct {
	File       string
	Conditions map[string]ExportTarget
}

// UnmarshalJSON accepts a string or a condition object. Arrays and null
// are tolerated and treated as empty.
func (t *ExportTarget) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		t.File = s
		return nil
	}
	var conds map[string]ExportTarget
	if err := json.Unmarshal(data, &conds); err == nil {
		t.Conditions = conds
		return nil
	}
	// Fallback arrays and null carry no information we use.
	return nil
}

// conditionOrder is the preference order when extracting a file from a
// condition map.
var conditionOrder = []string{"import", "default", "browser", "module", "development"}

// Resolve extracts the preferred file from the target, descending nested
// condition maps. Empty string means the target carries no usable file.
func (t ExportTarget) Resolve() string {
	if t.File != "" {
		return t.File
	}
	for _, cond := range conditionOrder {
		if nested, ok := t.Conditions[cond]; ok {
			if f := nested.Resolve(); f != "" {
				return f
			}
		}
	}
	for _, nested := range t.Conditions {
		if f := nested.Resolve(); f != "" {
			return f
		}
	}
	return ""
}

// pnpmWorkspace is the shape of pnpm-workspace.yaml.
type pnpmWorkspace struct {
	Packages []string `yaml:"packages"`
}

// ReadPnpmWorkspace parses dir/pnpm-workspace.yaml. The boolean is false
// when the marker does not exist.
func ReadPnpmWorkspace(dir string) ([]string, bool, error) {
	data, err := os.ReadFile(filepath.Join(dir, WorkspaceMarker))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, false, nil
		}
		return nil, false, err
	}
	var ws pnpmWorkspace
	if err := yaml.Unmarshal(data, &ws); err != nil {
		return nil, false, fmt.Errorf("parse %s: %w", filepath.Join(dir, WorkspaceMarker), err)
	}
	return ws.Packages, true, nil
}
