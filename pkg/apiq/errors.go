package apiq

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
)

// Static errors for err113 compliance.
var (
	ErrNilBaseNode       = errors.New("base node is required")
	ErrNilStore          = errors.New("store is required")
	ErrContextMissing    = errors.New("no API client in context: wrap the context with apiq.NewContext")
	ErrNoNextPage        = errors.New("no next page available")
	ErrNextCursorMissing = errors.New("paged query requires a next-cursor extractor")
	ErrRouteNotDeclared  = errors.New("route not declared")
	ErrResultNotSettled  = errors.New("result is not settled")
)

// ResolutionError reports that a path could not be resolved against
// the transport's object graph: some segment has no node behind it.
type ResolutionError struct {
	// Path is the full path the caller addressed.
	Path Path
	// Segment is the first segment that failed to resolve.
	Segment string
}

// Error implements the error interface.
func (e *ResolutionError) Error() string {
	return fmt.Sprintf("cannot resolve %s: segment %q does not exist", e.Path, e.Segment)
}

// UnsupportedMethodError reports that the endpoint behind a path does
// not expose the requested HTTP method.
type UnsupportedMethodError struct {
	Path   Path
	Method Method
}

// Error implements the error interface.
func (e *UnsupportedMethodError) Error() string {
	return fmt.Sprintf("method %q is not supported at %s", e.Method, e.Path)
}

// RequestError is the normalized form of a completed call that came
// back with a non-success status. Payload holds the decoded error body
// when the transport returned parseable JSON, or a single-field
// {"message": <status text>} object when it did not.
type RequestError struct {
	// StatusCode is the numeric HTTP status of the response.
	StatusCode int
	// Status is the status text ("Not Found"). Derived from the
	// status code when the transport does not supply one.
	Status string
	// Payload is the decoded error body or the fallback message
	// object.
	Payload any
}

// Error implements the error interface.
func (e *RequestError) Error() string {
	return fmt.Sprintf("request failed with status %d %s", e.StatusCode, e.Status)
}

// Message returns the "message" field of the payload when present,
// falling back to the status text. It exists because the fallback
// payload always carries exactly that field.
func (e *RequestError) Message() string {
	if payload, ok := e.Payload.(map[string]any); ok {
		if msg, ok := payload["message"].(string); ok {
			return msg
		}
	}

	return e.Status
}

// NewRequestError normalizes a failed response into a RequestError.
// The body is decoded as JSON; if decoding fails the payload becomes
// {"message": <status text>} and the decode error is swallowed.
func NewRequestError(statusCode int, status string, body []byte) *RequestError {
	if status == "" {
		status = http.StatusText(statusCode)
	}

	reqErr := &RequestError{
		StatusCode: statusCode,
		Status:     status,
	}

	var payload any
	if err := json.Unmarshal(body, &payload); err != nil || payload == nil {
		reqErr.Payload = map[string]any{"message": status}

		return reqErr
	}

	reqErr.Payload = payload

	return reqErr
}

// IsResolutionError checks whether the error chain contains a
// ResolutionError.
func IsResolutionError(err error) bool {
	target := &ResolutionError{}

	return errors.As(err, &target)
}

// IsUnsupportedMethod checks whether the error chain contains an
// UnsupportedMethodError.
func IsUnsupportedMethod(err error) bool {
	target := &UnsupportedMethodError{}

	return errors.As(err, &target)
}

// IsRequestError checks whether the error chain contains a
// RequestError, returning it when found.
func IsRequestError(err error) (*RequestError, bool) {
	target := &RequestError{}
	if errors.As(err, &target) {
		return target, true
	}

	return nil, false
}

// IsNotFound checks whether the error is a RequestError with status
// 404.
func IsNotFound(err error) bool {
	reqErr, ok := IsRequestError(err)

	return ok && reqErr.StatusCode == http.StatusNotFound
}

// IsUnauthorized checks whether the error is a RequestError with
// status 401.
func IsUnauthorized(err error) bool {
	reqErr, ok := IsRequestError(err)

	return ok && reqErr.StatusCode == http.StatusUnauthorized
}
