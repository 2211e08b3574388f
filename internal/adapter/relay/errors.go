package relay

import "fmt"

// Code is the status carried by a failed relay call.
type Code string

// Relay status codes.
const (
	CodeUnauthenticated   Code = "UNAUTHENTICATED"
	CodePermissionDenied  Code = "PERMISSION_DENIED"
	CodeInvalidArgument   Code = "INVALID_ARGUMENT"
	CodeInternal          Code = "INTERNAL"
	CodeUnavailable       Code = "UNAVAILABLE"
	CodeDeadlineExceeded  Code = "DEADLINE_EXCEEDED"
	CodeResourceExhausted Code = "RESOURCE_EXHAUSTED"
	CodeUnknown           Code = "UNKNOWN"
)

// CallError is a coded failure returned by the relay.
type CallError struct {
	Code       Code
	Message    string
	HTTPStatus int // 0 when the failure happened before a response
}

func (e *CallError) Error() string {
	if e.HTTPStatus != 0 {
		return fmt.Sprintf("relay %s (HTTP %d): %s", e.Code, e.HTTPStatus, e.Message)
	}
	return fmt.Sprintf("relay %s: %s", e.Code, e.Message)
}

// codeForStatus derives a code from the HTTP status when the body carries none.
func codeForStatus(status int) Code {
	switch {
	case status == 400:
		return CodeInvalidArgument
	case status == 401:
		return CodeUnauthenticated
	case status == 403:
		return CodePermissionDenied
	case status == 429:
		return CodeResourceExhausted
	case status == 503:
		return CodeUnavailable
	case status == 504:
		return CodeDeadlineExceeded
	case status >= 500:
		return CodeInternal
	default:
		return CodeUnknown
	}
}
