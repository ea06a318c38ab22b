// Package logging configures slog for folio. Logs are JSON lines written to
// a size-rotated file under ~/.folio/logs, optionally mirrored to stderr.
// MCP mode never touches stderr or stdout because stdout carries JSON-RPC.
package logging
