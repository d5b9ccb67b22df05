package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
)

// Envelope is the wrapper the backend puts around every payload. WebClient unwraps Data into
// the caller's result, so callers only see it when they decode a body themselves.
type Envelope[T any] struct {
	Code int    `json:"code"`
	Msg  string `json:"msg"`
	Data *T     `json:"data,omitempty"`
}

type rawEnvelope struct {
	Code *int            `json:"code"`
	Msg  string          `json:"msg"`
	Data json.RawMessage `json:"data"`
}

// decodeResponse normalizes a response: failing statuses become *Error, success envelopes are
// unwrapped into res. A body that is not an envelope is decoded into res as a whole.
func decodeResponse(status int, body []byte, res any) error {
	if status < http.StatusOK || status >= http.StatusMultipleChoices {
		return newHTTPError(status, body)
	}
	body = bytes.TrimSpace(body)
	if len(body) == 0 {
		return nil
	}

	var env rawEnvelope
	if err := json.Unmarshal(body, &env); err != nil || (env.Code == nil && env.Data == nil) {
		return decodeInto(status, body, res)
	}
	if env.Code != nil && *env.Code >= http.StatusBadRequest {
		return &Error{Code: *env.Code, Message: errorMessage(body), Kind: KindHTTP}
	}
	if len(env.Data) == 0 || string(env.Data) == "null" {
		return nil
	}
	return decodeInto(status, env.Data, res)
}

func decodeInto(status int, data []byte, res any) error {
	if res == nil {
		return nil
	}
	if err := json.Unmarshal(data, res); err != nil {
		return &Error{
			Code:    status,
			Message: fmt.Sprintf("decoding response into %T: %v", res, err),
			Kind:    KindHTTP,
			cause:   err,
		}
	}
	return nil
}
