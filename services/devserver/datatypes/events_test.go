// Copyright (C) 2025 Swiss Labs (dev@swissjs.org)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package datatypes

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewUpdateMessageShape(t *testing.T) {
	at := time.UnixMilli(1700000000123)
	msg := NewUpdateMessage(ChangeEvent{
		Path:   "/ws/src/components/nav.uix",
		Update: UpdateHot,
		Time:   at,
	})

	data, err := json.Marshal(msg)
	require.NoError(t, err)
	assert.JSONEq(t, `{
		"type": "update",
		"path": "/ws/src/components/nav.uix",
		"updateType": "hot",
		"timestamp": 1700000000123
	}`, string(data))
}

func TestCompileErrorWrapping(t *testing.T) {
	cause := errors.New("unexpected token")
	err := NewCompileError("/src/broken.ui", cause)
	assert.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "/src/broken.ui")

	var ce *CompileError
	require.ErrorAs(t, error(err), &ce)
	assert.Equal(t, "/src/broken.ui", ce.Path)
}

func TestConfigErrorMessage(t *testing.T) {
	err := &ConfigError{Key: "SWITE_PORT", Err: errors.New("invalid")}
	assert.Contains(t, err.Error(), "SWITE_PORT")
}
