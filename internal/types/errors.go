package types

import (
	"errors"
	"fmt"
)

var (
	ErrDeviceNotFound = errors.New("device not found")
	ErrNoStatistics   = errors.New("no statistics collected yet")
)

type ErrorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}

type ErrorResponse struct {
	Error ErrorBody `json:"error"`
}

// NewErrorResponse builds a consistent API error payload.
// details can be string, map, struct, etc.
func NewErrorResponse(code, message string, details any) ErrorResponse {
	return ErrorResponse{
		Error: ErrorBody{
			Code:    code,
			Message: message,
			Details: details,
		},
	}
}

// NotAuthorizedError is returned when the device rejects the login with HTTP 403.
type NotAuthorizedError struct {
	Message string
	Err     error
}

func (e *NotAuthorizedError) Error() string {
	if e == nil {
		return "not authorized"
	}
	if e.Err == nil {
		return e.Message
	}
	return fmt.Sprintf("%s: %v", e.Message, e.Err)
}

func (e *NotAuthorizedError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// TransportError covers every request failure between the host and a device.
// StatusCode is 0 when no HTTP response was received.
type TransportError struct {
	Method     string
	URI        string
	StatusCode int
	Body       string
	Err        error
}

func (e *TransportError) Error() string {
	if e == nil {
		return "transport error"
	}
	if e.StatusCode != 0 {
		if e.Body != "" {
			return fmt.Sprintf("%s %s: status %d: %s", e.Method, e.URI, e.StatusCode, e.Body)
		}
		return fmt.Sprintf("%s %s: status %d", e.Method, e.URI, e.StatusCode)
	}
	return fmt.Sprintf("%s %s: %v", e.Method, e.URI, e.Err)
}

func (e *TransportError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// ParseError means a device document could not be decoded or lacks a
// structurally required element.
type ParseError struct {
	Path string
	Err  error
}

func (e *ParseError) Error() string {
	if e == nil {
		return "parse error"
	}
	if e.Path == "" {
		return fmt.Sprintf("parse device document: %v", e.Err)
	}
	return fmt.Sprintf("parse device document at %s: %v", e.Path, e.Err)
}

func (e *ParseError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}
