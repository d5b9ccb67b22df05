package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// CodeNoResponse is the Error code used when no HTTP response was received.
const CodeNoResponse = http.StatusInternalServerError

const (
	MsgNetworkError   = "Network error. Please check your connection"
	MsgUnknownError   = "Unknown error occurred"
	MsgSessionExpired = "Session expired. Please sign in again"
)

// ErrorKind classifies an Error.
type ErrorKind int

const (
	// KindHTTP is a response with a failing status, or a success envelope carrying a failing code.
	KindHTTP ErrorKind = iota
	// KindNetwork means no response was received at all.
	KindNetwork
	// KindAuthFailure means the credential expired and could not be refreshed. The session has
	// been cleared.
	KindAuthFailure
	// KindCanceled means the caller's context ended before a response arrived.
	KindCanceled
)

func (k ErrorKind) String() string {
	switch k {
	case KindHTTP:
		return "http"
	case KindNetwork:
		return "network"
	case KindAuthFailure:
		return "auth_failure"
	case KindCanceled:
		return "canceled"
	default:
		return fmt.Sprintf("ErrorKind(%d)", int(k))
	}
}

// Error is the only error shape WebClient returns for a failed call.
type Error struct {
	Code    int
	Message string
	Kind    ErrorKind

	cause error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s error %d: %s", e.Kind, e.Code, e.Message)
}

func (e *Error) Unwrap() error {
	return e.cause
}

// AsError extracts the *Error in err's chain.
func AsError(err error) (*Error, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}

// StatusCode returns the code of the *Error in err's chain, or 0.
func StatusCode(err error) int {
	if e, ok := AsError(err); ok {
		return e.Code
	}
	return 0
}

func IsNetworkError(err error) bool {
	e, ok := AsError(err)
	return ok && e.Kind == KindNetwork
}

func IsAuthFailure(err error) bool {
	e, ok := AsError(err)
	return ok && e.Kind == KindAuthFailure
}

// newHTTPError builds the error for a response with a failing status.
func newHTTPError(status int, body []byte) *Error {
	return &Error{Code: status, Message: errorMessage(body), Kind: KindHTTP}
}

// newTransportError builds the error for a call that produced no response. The message is
// always the connectivity message, whatever the cause.
func newTransportError(ctx context.Context, err error) *Error {
	kind := KindNetwork
	if ctx.Err() != nil || errors.Is(err, context.Canceled) {
		kind = KindCanceled
		if ctx.Err() != nil {
			err = errors.Join(ctx.Err(), err)
		}
	}
	return &Error{Code: CodeNoResponse, Message: MsgNetworkError, Kind: kind, cause: err}
}

// authFailure converts a failed refresh into the error every waiting caller sees. It keeps the
// refresh's code and message.
func authFailure(err error) *Error {
	e, ok := AsError(err)
	if !ok {
		return &Error{Code: http.StatusUnauthorized, Message: MsgSessionExpired, Kind: KindAuthFailure, cause: err}
	}
	return &Error{Code: e.Code, Message: e.Message, Kind: KindAuthFailure, cause: e}
}

type errorBody struct {
	Detail  json.RawMessage `json:"detail"`
	Message string          `json:"message"`
	Msg     string          `json:"msg"`
}

// errorMessage picks the backend's explanation out of an error body: detail, then message,
// then the envelope msg.
func errorMessage(body []byte) string {
	var eb errorBody
	if err := json.Unmarshal(body, &eb); err != nil {
		return MsgUnknownError
	}
	if msg := detailMessage(eb.Detail); msg != "" {
		return msg
	}
	if eb.Message != "" {
		return eb.Message
	}
	if eb.Msg != "" {
		return eb.Msg
	}
	return MsgUnknownError
}

// detailMessage reads detail as a string, a validation list or an object.
func detailMessage(raw json.RawMessage) string {
	if len(raw) == 0 || string(raw) == "null" {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	var items []struct {
		Msg string `json:"msg"`
	}
	if err := json.Unmarshal(raw, &items); err == nil {
		msgs := make([]string, 0, len(items))
		for _, it := range items {
			if it.Msg != "" {
				msgs = append(msgs, it.Msg)
			}
		}
		return strings.Join(msgs, "; ")
	}
	var obj struct {
		Msg     string `json:"msg"`
		Message string `json:"message"`
	}
	if err := json.Unmarshal(raw, &obj); err == nil {
		if obj.Msg != "" {
			return obj.Msg
		}
		return obj.Message
	}
	return ""
}
