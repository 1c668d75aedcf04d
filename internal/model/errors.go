package model

import (
	"errors"
	"fmt"
)

// ErrorKind classifies failures raised by the core subsystems.
type ErrorKind string

const (
	KindConfig              ErrorKind = "config"
	KindInvalidInput        ErrorKind = "invalid_input"
	KindToolNotFound        ErrorKind = "tool_not_found"
	KindExternalToolFailure ErrorKind = "external_tool_failure"
	KindSource              ErrorKind = "source"
	KindTranscription       ErrorKind = "transcription"
	KindEmbedding           ErrorKind = "embedding"
	KindStore               ErrorKind = "store"
	KindRag                 ErrorKind = "rag"
	KindAgent               ErrorKind = "agent"
)

// Error is the typed error carried across subsystem boundaries. Tool names
// external binaries for KindToolNotFound / KindExternalToolFailure.
type Error struct {
	Kind    ErrorKind
	Tool    string
	Message string
	Cause   error
}

func (e *Error) Error() string {
	switch {
	case e == nil:
		return "<nil>"
	case e.Kind == KindToolNotFound:
		return fmt.Sprintf("required tool not found: %s", e.Tool)
	case e.Tool != "":
		return fmt.Sprintf("%s: %s: %s", e.Kind, e.Tool, e.Message)
	case e.Cause != nil && e.Message == "":
		return fmt.Sprintf("%s: %v", e.Kind, e.Cause)
	default:
		return fmt.Sprintf("%s: %s", e.Kind, e.Message)
	}
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Cause
}

// Errf builds a typed error with a formatted message.
func Errf(kind ErrorKind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Wrap attaches a kind and message to an underlying cause.
func Wrap(kind ErrorKind, cause error, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...), Cause: cause}
}

// ToolNotFound reports an absent external binary, distinguished from other
// IO errors so callers can print install hints.
func ToolNotFound(tool string) *Error {
	return &Error{Kind: KindToolNotFound, Tool: tool}
}

// ToolFailure reports a non-zero exit from an external binary together with
// its captured stderr.
func ToolFailure(tool, detail string) *Error {
	return &Error{Kind: KindExternalToolFailure, Tool: tool, Message: detail}
}

// IsKind reports whether err carries the given kind anywhere in its chain.
func IsKind(err error, kind ErrorKind) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind == kind
	}
	return false
}
