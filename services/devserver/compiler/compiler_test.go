// Copyright (C) 2025 Swiss Labs (dev@swissjs.org)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package compiler

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExecCompilerMissingBinary(t *testing.T) {
	c := &ExecCompiler{Command: "swite-test-no-such-binary"}
	_, err := c.Compile(context.Background(), "source", "/tmp/x.ui")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "swite-test-no-such-binary")
}

func TestExecTransformerMissingBinary(t *testing.T) {
	tr := &ExecTransformer{Command: "swite-test-no-such-binary"}
	_, err := tr.Transform(context.Background(), "source", TransformOptions{Loader: "ts"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "swite-test-no-such-binary")
}

func TestExecCompilerHonorsContextCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	c := &ExecCompiler{Command: "sleep", Args: []string{"5"}}
	_, err := c.Compile(ctx, "", "/tmp/x.ui")
	assert.Error(t, err)
}
