package domain

import (
	"errors"
	"fmt"
)

// ErrorKind classifies failures surfaced by the chat client.
type ErrorKind string

const (
	KindConnectionFailure ErrorKind = "CONNECTION_FAILURE"
	KindUnknownTool       ErrorKind = "UNKNOWN_TOOL"
	KindUnknownPrompt     ErrorKind = "UNKNOWN_PROMPT"
	KindUnknownResource   ErrorKind = "UNKNOWN_RESOURCE"
	KindToolExecution     ErrorKind = "TOOL_EXECUTION"
	KindModelCall         ErrorKind = "MODEL_CALL"
	KindConfigLoad        ErrorKind = "CONFIG_LOAD"
	KindInvalidCommand    ErrorKind = "INVALID_COMMAND"
)

var (
	ErrUnknownTool        = errors.New("unknown tool")
	ErrUnknownPrompt      = errors.New("unknown prompt")
	ErrUnknownResource    = errors.New("unknown resource")
	ErrProviderExists     = errors.New("provider already connected")
	ErrExecutableNotFound = errors.New("executable not found")
	ErrPermissionDenied   = errors.New("permission denied")
	ErrInvalidCommand     = errors.New("invalid command")
	ErrRoundLimit         = errors.New("model round limit exceeded")
	ErrManagerClosed      = errors.New("lifecycle manager is shut down")
)

type Error struct {
	Kind    ErrorKind
	Op      string
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	msg := e.Message
	if msg == "" && e.Cause != nil {
		msg = e.Cause.Error()
	}
	if e.Op == "" {
		if msg == "" {
			return string(e.Kind)
		}
		return fmt.Sprintf("%s: %s", e.Kind, msg)
	}
	if msg == "" {
		return fmt.Sprintf("%s: %s", e.Op, e.Kind)
	}
	return fmt.Sprintf("%s: %s: %s", e.Op, e.Kind, msg)
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Cause
}

func E(kind ErrorKind, op, msg string, cause error) *Error {
	if msg == "" && cause != nil {
		msg = cause.Error()
	}
	return &Error{
		Kind:    kind,
		Op:      op,
		Message: msg,
		Cause:   cause,
	}
}

// Wrap attaches a kind and operation to err, keeping an existing classification.
func Wrap(kind ErrorKind, op string, err error) *Error {
	if err == nil {
		return nil
	}
	var existing *Error
	if errors.As(err, &existing) {
		if existing.Op != "" || op == "" {
			return existing
		}
		return &Error{
			Kind:    existing.Kind,
			Op:      op,
			Message: existing.Message,
			Cause:   existing.Cause,
		}
	}
	return E(kind, op, "", err)
}

func KindFrom(err error) (ErrorKind, bool) {
	if err == nil {
		return "", false
	}
	var domainErr *Error
	if errors.As(err, &domainErr) && domainErr.Kind != "" {
		return domainErr.Kind, true
	}
	switch {
	case errors.Is(err, ErrUnknownTool):
		return KindUnknownTool, true
	case errors.Is(err, ErrUnknownPrompt):
		return KindUnknownPrompt, true
	case errors.Is(err, ErrUnknownResource):
		return KindUnknownResource, true
	case errors.Is(err, ErrExecutableNotFound), errors.Is(err, ErrPermissionDenied), errors.Is(err, ErrProviderExists):
		return KindConnectionFailure, true
	case errors.Is(err, ErrInvalidCommand):
		return KindInvalidCommand, true
	default:
		return "", false
	}
}
