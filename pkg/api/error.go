package api

import (
	"errors"
	"fmt"

	"github.com/goccy/go-json"
)

const (
	// MsgUnreachable is the message of every transport failure.
	MsgUnreachable = "Unable to connect to server. Please ensure the backend is running."
	// MsgGeneric is used when a failed response carries no usable message.
	MsgGeneric = "Something went wrong"
	// MsgInvalidResponse is used when a successful response could not be decoded.
	MsgInvalidResponse = "Invalid response from server"
)

// StatusTransport is the Status of an Error raised before any HTTP status
// existed.
const StatusTransport = 0

// Error is the classified failure of one request. It is built once and
// never modified.
type Error struct {
	// Status is the HTTP status, or StatusTransport.
	Status int
	// Message is safe to show to the user verbatim.
	Message string
	// Data is the raw error payload, if any.
	Data json.RawMessage
	// Err is the underlying cause for transport and decode failures.
	Err error
}

func (e *Error) Error() string {
	if e.Status == StatusTransport {
		return "api: " + e.Message
	}
	return fmt.Sprintf("api: %d: %s", e.Status, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

// IsTransport reports whether the request never got an HTTP response.
func (e *Error) IsTransport() bool { return e.Status == StatusTransport }

// DecodeData unmarshals the error payload into v.
func (e *Error) DecodeData(v any) error {
	if len(e.Data) == 0 {
		return errors.New("api: error carries no payload")
	}
	return json.Unmarshal(e.Data, v)
}

// AsError extracts an *Error from err's chain.
func AsError(err error) (*Error, bool) {
	var apiErr *Error
	if errors.As(err, &apiErr) {
		return apiErr, true
	}
	return nil, false
}

// StatusOf returns the HTTP status carried by err, or -1 if err is not an
// *Error.
func StatusOf(err error) int {
	if apiErr, ok := AsError(err); ok {
		return apiErr.Status
	}
	return -1
}

// MessageOf returns the message to show for err: the *Error message when
// there is one, fallback otherwise.
func MessageOf(err error, fallback string) string {
	if apiErr, ok := AsError(err); ok && apiErr.Message != "" {
		return apiErr.Message
	}
	return fallback
}

var networkErrorData = json.RawMessage(`{"networkError":true}`)

func transportError(cause error) *Error {
	return &Error{
		Status:  StatusTransport,
		Message: MsgUnreachable,
		Data:    networkErrorData,
		Err:     cause,
	}
}

// responseError classifies a non-2xx response from its status, status text
// and raw body.
func responseError(status int, statusText string, body []byte) *Error {
	if len(body) == 0 {
		return &Error{Status: status, Message: MsgGeneric}
	}

	if !json.Valid(body) {
		msg := statusText
		if msg == "" {
			msg = MsgGeneric
		}
		data, _ := json.Marshal(map[string]string{"message": statusText})
		return &Error{Status: status, Message: msg, Data: data}
	}

	msg := MsgGeneric
	var payload struct {
		Message string `json:"message"`
	}
	if err := json.Unmarshal(body, &payload); err == nil && payload.Message != "" {
		msg = payload.Message
	}
	return &Error{Status: status, Message: msg, Data: json.RawMessage(body)}
}
