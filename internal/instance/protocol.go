// Package instance keeps a single GUI process per user. The first process
// listens on a UNIX socket; later invocations talk to it instead of starting
// a second client.
//
// The protocol is newline-delimited JSON: each request and each response is
// one JSON object terminated by a newline.
package instance

import (
	"encoding/json"
	"errors"
)

// Command identifies the operation to perform.
type Command string

const (
	// CommandStatus queries the current connection status.
	CommandStatus Command = "status"
	// CommandConnect starts a connection with the running instance's settings.
	CommandConnect Command = "connect"
	// CommandDisconnect terminates the active connection.
	CommandDisconnect Command = "disconnect"
	// CommandQuit disconnects and ends the running instance.
	CommandQuit Command = "quit"
)

// Error codes for responses.
const (
	ErrCodeInvalidRequest = "INVALID_REQUEST"
	ErrCodeInvalidCommand = "INVALID_COMMAND"
	ErrCodeInvalidState   = "INVALID_STATE"
	ErrCodeFailed         = "FAILED"
)

// Request is a command sent by a second invocation.
type Request struct {
	ID      string  `json:"id"`
	Command Command `json:"command"`
}

// Response is the running instance's reply.
type Response struct {
	// ID matches the request ID.
	ID      string          `json:"id"`
	Success bool            `json:"success"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *ErrorInfo      `json:"error,omitempty"`
}

// ErrorInfo contains details about a failed command.
type ErrorInfo struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (e *ErrorInfo) Error() string {
	return e.Code + ": " + e.Message
}

// StatusResult is returned for the status command.
type StatusResult struct {
	State      string `json:"state"`
	Detail     string `json:"detail,omitempty"`
	Credential string `json:"credential,omitempty"`
	Mode       string `json:"mode,omitempty"`
	PID        int    `json:"pid"`
}

// NewSuccessResponse creates a successful response. A nil result is omitted.
func NewSuccessResponse(id string, result any) (*Response, error) {
	var raw json.RawMessage
	if result != nil {
		var err error
		raw, err = json.Marshal(result)
		if err != nil {
			return nil, err
		}
	}
	return &Response{ID: id, Success: true, Result: raw}, nil
}

// NewErrorResponse creates an error response.
func NewErrorResponse(id, code, message string) *Response {
	return &Response{
		ID:      id,
		Success: false,
		Error:   &ErrorInfo{Code: code, Message: message},
	}
}

// DecodeStatus extracts a StatusResult from a successful status response.
func (r *Response) DecodeStatus() (*StatusResult, error) {
	if !r.Success {
		if r.Error == nil {
			return nil, errors.New("request failed")
		}
		return nil, r.Error
	}
	var status StatusResult
	if err := json.Unmarshal(r.Result, &status); err != nil {
		return nil, err
	}
	return &status, nil
}
