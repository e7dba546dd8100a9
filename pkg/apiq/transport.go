package apiq

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
)

// Method is an HTTP verb in the lower-case form used for addressing
// endpoint callables.
type Method string

// Supported methods.
const (
	MethodGet    Method = "get"
	MethodPost   Method = "post"
	MethodPut    Method = "put"
	MethodPatch  Method = "patch"
	MethodDelete Method = "delete"
)

// Static errors for err113 compliance.
var (
	ErrUnknownMethod = errors.New("unknown method")
)

// Methods returns all supported methods in a stable order.
func Methods() []Method {
	return []Method{MethodGet, MethodPost, MethodPut, MethodPatch, MethodDelete}
}

// ParseMethod normalizes a method string ("GET", "get") into a Method.
func ParseMethod(s string) (Method, error) {
	method := Method(strings.ToLower(s))
	switch method {
	case MethodGet, MethodPost, MethodPut, MethodPatch, MethodDelete:
		return method, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownMethod, s)
	}
}

// IsMutation reports whether the method mutates server state. Only
// "get" is treated as safe.
func (m Method) IsMutation() bool {
	return m != MethodGet
}

// HTTP returns the upper-case wire form of the method.
func (m Method) HTTP() string {
	return strings.ToUpper(string(m))
}

// Input carries everything a single call needs: values for ":" path
// parameters, query parameters, extra headers, and a JSON body. All
// fields are optional; a nil *Input is a valid input for calls that
// need nothing. Input participates in cache-key derivation, so two
// structurally equal inputs are interchangeable.
type Input struct {
	// Params supplies values for ":" segments, keyed without the
	// sigil: path ["users", ":id"] reads Params["id"].
	Params map[string]string `json:"params,omitempty"`
	// Query holds query parameters appended to the request URL.
	Query url.Values `json:"query,omitempty"`
	// Headers holds additional request headers.
	Headers map[string]string `json:"headers,omitempty"`
	// Body is marshaled as the JSON request body when non-nil.
	Body any `json:"body,omitempty"`
}

// Clone returns a deep copy of the input. Cloning a nil input returns
// an empty one, which is convenient for callers that need to add a
// cursor or header without mutating the caller's value.
func (in *Input) Clone() *Input {
	cloned := &Input{}
	if in == nil {
		return cloned
	}

	if in.Params != nil {
		cloned.Params = make(map[string]string, len(in.Params))
		for k, v := range in.Params {
			cloned.Params[k] = v
		}
	}

	if in.Query != nil {
		cloned.Query = make(url.Values, len(in.Query))
		for k, vs := range in.Query {
			cloned.Query[k] = append([]string(nil), vs...)
		}
	}

	if in.Headers != nil {
		cloned.Headers = make(map[string]string, len(in.Headers))
		for k, v := range in.Headers {
			cloned.Headers[k] = v
		}
	}

	cloned.Body = in.Body

	return cloned
}

// Response is the transport's view of one completed call.
type Response interface {
	// OK reports whether the call succeeded (2xx).
	OK() bool
	// StatusCode returns the numeric HTTP status.
	StatusCode() int
	// Status returns the status text, or "" when unknown.
	Status() string
	// Body returns the raw response body.
	Body() []byte
	// DecodeBody unmarshals the body into v.
	DecodeBody(v any) error
}

// CallFunc performs the remote call an endpoint node exposes for one
// method.
type CallFunc func(ctx context.Context, input *Input) (Response, error)

// Node is one vertex of the transport's object graph. The engine
// walks nodes segment by segment and never retains them between
// calls.
type Node interface {
	// Child returns the node behind the given path segment, or
	// ok=false when no such node exists.
	Child(segment string) (Node, bool)
	// Call returns the callable for the given method, or ok=false
	// when the endpoint does not support it.
	Call(method Method) (CallFunc, bool)
}

// Supports reports whether the endpoint behind node exposes the given
// method.
func Supports(node Node, method Method) bool {
	if node == nil {
		return false
	}

	_, ok := node.Call(method)

	return ok
}
