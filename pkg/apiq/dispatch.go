package apiq

import (
	"context"
	"fmt"
)

// Dispatch performs one remote call against the endpoint node at path.
// It is the single choke point every query and mutation goes through:
//
//  1. the method is checked against the node's capabilities,
//  2. the callable is invoked with the input,
//  3. a non-success response is normalized into a RequestError,
//  4. a success returns the raw payload bytes for the caller to
//     decode.
//
// Dispatch performs exactly one call and never retries; retry policy
// belongs to the store.
func Dispatch(ctx context.Context, node Node, method Method, path Path, input *Input) ([]byte, error) {
	call, ok := node.Call(method)
	if !ok || call == nil {
		return nil, &UnsupportedMethodError{Path: path.Clone(), Method: method}
	}

	resp, err := call(ctx, input)
	if err != nil {
		return nil, fmt.Errorf("calling %s %s: %w", method.HTTP(), path, err)
	}

	if !resp.OK() {
		return nil, NewRequestError(resp.StatusCode(), resp.Status(), resp.Body())
	}

	return resp.Body(), nil
}
