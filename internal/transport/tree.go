package transport

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/fivetwenty-io/apiq/pkg/apiq"
)

// Static errors for err113 compliance.
var (
	ErrMissingPathParam = errors.New("missing path parameter")
)

// Tree exposes the route table as the node graph the proxy engine
// walks. A node exists for every prefix of a declared route; a callable
// exists where the table declares the method. Calls render parameter
// segments from the input, merge its query and headers, and marshal its
// body as JSON. A nil table yields a fully permissive graph that trusts
// the caller's addressing.
func Tree(client *Client, routes *apiq.Routes) apiq.Node {
	return &node{client: client, routes: routes, path: apiq.Path{}}
}

type node struct {
	client *Client
	routes *apiq.Routes
	path   apiq.Path
}

// Child returns the node one segment deeper when a declared route
// passes through it.
func (n *node) Child(segment string) (apiq.Node, bool) {
	next := n.path.Extend(segment)
	if !n.routes.OnRoute(next) {
		return nil, false
	}

	return &node{client: n.client, routes: n.routes, path: next}, true
}

// Call returns the callable for method when the route table declares it
// at this node's path.
func (n *node) Call(method apiq.Method) (apiq.CallFunc, bool) {
	if !n.routes.Allows(n.path, method) {
		return nil, false
	}

	path := n.path.Clone()

	return func(ctx context.Context, input *apiq.Input) (apiq.Response, error) {
		return n.client.call(ctx, method, path, input)
	}, true
}

func (c *Client) call(ctx context.Context, method apiq.Method, path apiq.Path, input *apiq.Input) (apiq.Response, error) {
	rendered, err := renderPath(path, input)
	if err != nil {
		return nil, err
	}

	req := &Request{
		Method: method.HTTP(),
		Path:   rendered,
	}

	if input != nil {
		req.Query = input.Query
		req.Headers = input.Headers
		req.Body = input.Body
	}

	resp, err := c.Do(ctx, req)
	if err != nil {
		return nil, err
	}

	return &callResponse{resp: resp}, nil
}

// renderPath substitutes parameter segments with their values from the
// input and escapes every segment for URL use.
func renderPath(path apiq.Path, input *apiq.Input) (string, error) {
	if len(path) == 0 {
		return "/", nil
	}

	var builder strings.Builder

	for _, segment := range path {
		builder.WriteByte('/')

		if strings.HasPrefix(segment, apiq.ParamSigil) {
			name := strings.TrimPrefix(segment, apiq.ParamSigil)

			value := ""
			if input != nil {
				value = input.Params[name]
			}

			if value == "" {
				return "", fmt.Errorf("%w: %s in %s", ErrMissingPathParam, segment, path)
			}

			builder.WriteString(url.PathEscape(value))

			continue
		}

		builder.WriteString(url.PathEscape(segment))
	}

	return builder.String(), nil
}

// callResponse adapts a transport response to the engine's view of one
// completed call.
type callResponse struct {
	resp *Response
}

func (r *callResponse) OK() bool {
	return r.resp.OK()
}

func (r *callResponse) StatusCode() int {
	return r.resp.StatusCode
}

func (r *callResponse) Status() string {
	return r.resp.Status
}

func (r *callResponse) Body() []byte {
	return r.resp.Body
}

func (r *callResponse) DecodeBody(v any) error {
	err := json.Unmarshal(r.resp.Body, v)
	if err != nil {
		return fmt.Errorf("decoding response body: %w", err)
	}

	return nil
}
