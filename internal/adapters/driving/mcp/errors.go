// Package mcp provides an MCP (Model Context Protocol) server adapter for coachkb.
// It lets AI assistants retrieve coaching passages and score their own answers
// against the retrieved evidence.
package mcp

import "errors"

// ErrMissingRetriever is returned when the retriever is not provided.
var ErrMissingRetriever = errors.New("mcp: retriever is required")
