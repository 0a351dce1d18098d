package ollama

import (
	"fmt"
	"strings"
)

// ErrorKind categorizes generation failures.
type ErrorKind string

const (
	// ErrorKindTransport is a connection-level failure before or during the stream.
	ErrorKindTransport ErrorKind = "transport"

	// ErrorKindStatus is a non-200 reply from the server, or an error record
	// inside a 200 reply.
	ErrorKindStatus ErrorKind = "status"

	// ErrorKindDecode is a 200 reply whose body could not be used at all.
	ErrorKindDecode ErrorKind = "decode"
)

// GenerationError is the failure carried by an error fragment.
type GenerationError struct {
	Kind       ErrorKind
	StatusCode int    // set for ErrorKindStatus
	Body       string // raw response body, set for ErrorKindStatus
	Message    string
	Cause      error
}

func (e *GenerationError) Error() string {
	switch e.Kind {
	case ErrorKindStatus:
		if e.Message != "" {
			return e.Message + ": " + strings.TrimSpace(e.Body)
		}
		return fmt.Sprintf("server returned %d: %s", e.StatusCode, strings.TrimSpace(e.Body))
	default:
		if e.Cause != nil {
			return e.Message + ": " + e.Cause.Error()
		}
		return e.Message
	}
}

func (e *GenerationError) Unwrap() error {
	return e.Cause
}

func transportError(message string, cause error) *GenerationError {
	return &GenerationError{Kind: ErrorKindTransport, Message: message, Cause: cause}
}

func decodeError(message string, cause error) *GenerationError {
	return &GenerationError{Kind: ErrorKindDecode, Message: message, Cause: cause}
}

// reportedError is a failure the server described in a record of an
// otherwise successful reply.
func reportedError(code int, message string) *GenerationError {
	return &GenerationError{Kind: ErrorKindStatus, StatusCode: code, Body: message, Message: "server reported error"}
}

func statusError(code int, body []byte) *GenerationError {
	return &GenerationError{Kind: ErrorKindStatus, StatusCode: code, Body: string(body)}
}
