// Package mcp implements the Model Context Protocol server for folio.
package mcp

import (
	"context"
	"errors"
	"fmt"

	ferrors "github.com/Aman-CERP/folio/internal/errors"
)

// Custom MCP error codes for folio.
const (
	// ErrCodeIndexNotFound indicates no index exists at the configured path.
	ErrCodeIndexNotFound = -32001

	// ErrCodeIndexBusy indicates an ingest holds the index.
	ErrCodeIndexBusy = -32002

	// ErrCodeTimeout indicates the request timed out or was cancelled.
	ErrCodeTimeout = -32003

	// Standard JSON-RPC error codes.
	ErrCodeMethodNotFound = -32601
	ErrCodeInvalidParams  = -32602
	ErrCodeInternalError  = -32603
)

// MCPError represents an MCP protocol error with code and message.
type MCPError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// Error implements the error interface.
func (e *MCPError) Error() string {
	return fmt.Sprintf("MCP error %d: %s", e.Code, e.Message)
}

// MapError converts internal errors to MCP errors.
func MapError(err error) *MCPError {
	if err == nil {
		return nil
	}

	var mcpErr *MCPError
	if errors.As(err, &mcpErr) {
		return mcpErr
	}

	var fe *ferrors.FolioError
	if errors.As(err, &fe) {
		return mapFolioError(fe)
	}

	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return &MCPError{Code: ErrCodeTimeout, Message: "Request timed out."}
	case errors.Is(err, context.Canceled):
		return &MCPError{Code: ErrCodeTimeout, Message: "Request was canceled."}
	default:
		return &MCPError{Code: ErrCodeInternalError, Message: "Internal server error."}
	}
}

// NewInvalidParamsError creates an error for invalid parameters with a custom message.
func NewInvalidParamsError(msg string) *MCPError {
	return &MCPError{Code: ErrCodeInvalidParams, Message: msg}
}

// NewMethodNotFoundError creates an error for unknown tools.
func NewMethodNotFoundError(name string) *MCPError {
	return &MCPError{
		Code:    ErrCodeMethodNotFound,
		Message: fmt.Sprintf("Tool '%s' not found.", name),
	}
}

func mapFolioError(fe *ferrors.FolioError) *MCPError {
	message := fe.Message
	if fe.Suggestion != "" {
		message = fmt.Sprintf("%s %s", fe.Message, fe.Suggestion)
	}

	switch fe.Code {
	case ferrors.ErrCodeIndexOpen, ferrors.ErrCodeCorruptIndex:
		return &MCPError{Code: ErrCodeIndexNotFound, Message: message}
	case ferrors.ErrCodeIndexLocked:
		return &MCPError{Code: ErrCodeIndexBusy, Message: message}
	}

	switch fe.Category {
	case ferrors.CategoryUsage:
		if fe.Code == ferrors.ErrCodeUsageState {
			return &MCPError{Code: ErrCodeInternalError, Message: message}
		}
		return &MCPError{Code: ErrCodeInvalidParams, Message: message}
	default:
		return &MCPError{Code: ErrCodeInternalError, Message: message}
	}
}
