// Copyright (C) 2025 Swiss Labs (dev@swissjs.org)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package compiler defines the narrow interfaces through which the dev
// server consumes the external component compiler and the TypeScript
// transformer, plus subprocess-backed adapters for both.
package compiler

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"
)

// Compiler transforms .ui/.uix source into browser script. Stateless
// between calls.
type Compiler interface {
	// Compile maps source text read from absPath to script text.
	Compile(ctx context.Context, source, absPath string) (string, error)
}

// TransformOptions configures a TypeScript transform.
type TransformOptions struct {
	// Loader selects the input syntax: "ts", "tsx", "js", "jsx".
	Loader string

	// SourcePath names the input for diagnostics.
	SourcePath string
}

// Transformer strips types from .ts/.tsx source.
type Transformer interface {
	Transform(ctx context.Context, source string, opts TransformOptions) (string, error)
}

// ExecCompiler shells out to the framework compiler binary. The source
// is piped on stdin and the script comes back on stdout; stderr carries
// the diagnostic on failure.
type ExecCompiler struct {
	// Command is the compiler binary, "swissc" by default.
	Command string

	// Args precede the source path argument.
	Args []string
}

// Compile implements Compiler.
func (c *ExecCompiler) Compile(ctx context.Context, source, absPath string) (string, error) {
	command := c.Command
	if command == "" {
		command = "swissc"
	}
	args := append(append([]string(nil), c.Args...), "--stdin", absPath)
	cmd := exec.CommandContext(ctx, command, args...)
	cmd.Stdin = strings.NewReader(source)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		msg := strings.TrimSpace(stderr.String())
		if msg == "" {
			msg = err.Error()
		}
		return "", fmt.Errorf("%s: %s", command, msg)
	}
	return stdout.String(), nil
}

// ExecTransformer shells out to an esbuild-compatible transform CLI.
type ExecTransformer struct {
	// Command is the transform binary, "esbuild" by default.
	Command string
}

// Transform implements Transformer.
func (t *ExecTransformer) Transform(ctx context.Context, source string, opts TransformOptions) (string, error) {
	command := t.Command
	if command == "" {
		command = "esbuild"
	}
	loader := opts.Loader
	if loader == "" {
		loader = "ts"
	}
	args := []string{"--loader=" + loader, "--format=esm", "--target=es2022"}
	if opts.SourcePath != "" {
		args = append(args, "--sourcefile="+opts.SourcePath)
	}
	cmd := exec.CommandContext(ctx, command, args...)
	cmd.Stdin = strings.NewReader(source)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		msg := strings.TrimSpace(stderr.String())
		if msg == "" {
			msg = err.Error()
		}
		return "", fmt.Errorf("%s: %s", command, msg)
	}
	return stdout.String(), nil
}
