package singleinstance

// This file defines the API for single-instance ownership and action delegation.

import (
	"context"
)

// Server owns the TCP endpoint and answers delegated requests.
type Server interface {
	// Start begins listening on the first port of the configured range and accepting client requests.
	Start(ctx context.Context) error
	// Port returns the bound TCP port, or 0 if not started.
	Port() int
	// Next returns the next accepted connection as a Conn, or ctx error.
	Next(ctx context.Context) (Conn, error)
	// Close releases ownership and stops accepting clients.
	Close() error
}

// Conn represents one client connection and exposes request + response API.
type Conn interface {
	// Request returns the parsed client request.
	Request() Request
	// RespondSuccess sends success. For stdout mode, send text; for clipboard mode, send empty text.
	RespondSuccess(text string) error
	// RespondError sends an error with human-readable message.
	RespondError(msg string) error
	// Close closes the underlying connection.
	Close() error
}

// DefaultAction is what a bare second invocation asks the resident to do.
const DefaultAction = "ocr"

// Request represents a single delegated invocation.
type Request struct {
	// Action names the shortcut action to run, e.g. "capture-area".
	Action         string
	OutputToStdout bool
}

// Client attempts to delegate an invocation to a resident server.
type Client interface {
	// TryDelegate scans the port range, performs the handshake and hands req to the resident.
	// If no resident is found, returns delegated=false, err=nil.
	TryDelegate(ctx context.Context, req Request) (delegated bool, text string, err error)
}

// NewServer returns TCP implementation.
func NewServer() Server { return newTcpServer() }

// NewClient returns TCP implementation.
func NewClient() Client { return newTcpClient() }
