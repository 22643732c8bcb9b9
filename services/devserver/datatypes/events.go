// Copyright (C) 2025 Swiss Labs (dev@swissjs.org)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package datatypes holds the wire-level and shared types of the dev server.
package datatypes

import "time"

// UpdateType classifies a file change for connected browsers.
type UpdateType string

const (
	// UpdateStyle means the browser can hot-swap a stylesheet in place.
	UpdateStyle UpdateType = "style"

	// UpdateHot means the browser should re-import the changed module
	// with a cache-busting query parameter.
	UpdateHot UpdateType = "hot"

	// UpdateReload means a full document reload is required.
	UpdateReload UpdateType = "reload"
)

// ChangeEvent is a single classified file-system change.
type ChangeEvent struct {
	// Path is the absolute path of the changed file.
	Path string

	// Update is the classification decided from extension and location.
	Update UpdateType

	// Time is when the change stabilized (after debounce).
	Time time.Time
}

// UpdateMessage is the JSON payload broadcast on the push channel.
//
// Clients interpret "style" as a live stylesheet swap, "hot" as a module
// re-import of the changed path, and "reload" as a full document reload.
type UpdateMessage struct {
	Type       string     `json:"type"`
	Path       string     `json:"path"`
	UpdateType UpdateType `json:"updateType"`
	Timestamp  int64      `json:"timestamp"`
}

// NewUpdateMessage builds the payload for a classified change.
func NewUpdateMessage(ev ChangeEvent) UpdateMessage {
	return UpdateMessage{
		Type:       "update",
		Path:       ev.Path,
		UpdateType: ev.Update,
		Timestamp:  ev.Time.UnixMilli(),
	}
}

// Route is one entry of the serialized route table served at
// /__swite_routes. The dev server does not interpret Meta; it belongs to
// the route scanner that produced it.
type Route struct {
	Path string         `json:"path"`
	File string         `json:"file"`
	Meta map[string]any `json:"meta,omitempty"`
}
