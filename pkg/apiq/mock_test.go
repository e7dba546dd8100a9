package apiq_test

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/fivetwenty-io/apiq/pkg/apiq"
)

// MockNode is an in-memory transport object graph for testing.
type MockNode struct {
	children map[string]*MockNode
	calls    map[apiq.Method]apiq.CallFunc
}

// NewMockTree creates an empty object graph root.
func NewMockTree() *MockNode {
	return &MockNode{
		children: make(map[string]*MockNode),
		calls:    make(map[apiq.Method]apiq.CallFunc),
	}
}

// Route ensures a chain of child nodes exists and returns the leaf.
func (n *MockNode) Route(segments ...string) *MockNode {
	node := n
	for _, segment := range segments {
		child, ok := node.children[segment]
		if !ok {
			child = NewMockTree()
			node.children[segment] = child
		}

		node = child
	}

	return node
}

// Handle registers a callable for a method on this node.
func (n *MockNode) Handle(method apiq.Method, fn apiq.CallFunc) *MockNode {
	n.calls[method] = fn

	return n
}

// HandleJSON registers a callable that always answers with the given
// status and JSON-encoded body.
func (n *MockNode) HandleJSON(method apiq.Method, status int, body any) *MockNode {
	return n.Handle(method, func(_ context.Context, _ *apiq.Input) (apiq.Response, error) {
		return NewMockResponse(status, body), nil
	})
}

// Child implements apiq.Node.
func (n *MockNode) Child(segment string) (apiq.Node, bool) {
	child, ok := n.children[segment]

	return child, ok
}

// Call implements apiq.Node.
func (n *MockNode) Call(method apiq.Method) (apiq.CallFunc, bool) {
	fn, ok := n.calls[method]

	return fn, ok
}

// MockResponse is a canned transport response.
type MockResponse struct {
	Code int
	Text string
	Raw  []byte
}

// NewMockResponse builds a response with a JSON-encoded body.
func NewMockResponse(status int, body any) *MockResponse {
	var raw []byte
	if body != nil {
		raw, _ = json.Marshal(body)
	}

	return &MockResponse{Code: status, Text: http.StatusText(status), Raw: raw}
}

// NewMockRawResponse builds a response with a verbatim body.
func NewMockRawResponse(status int, body []byte) *MockResponse {
	return &MockResponse{Code: status, Text: http.StatusText(status), Raw: body}
}

// OK implements apiq.Response.
func (r *MockResponse) OK() bool { return r.Code >= 200 && r.Code < 300 }

// StatusCode implements apiq.Response.
func (r *MockResponse) StatusCode() int { return r.Code }

// Status implements apiq.Response.
func (r *MockResponse) Status() string { return r.Text }

// Body implements apiq.Response.
func (r *MockResponse) Body() []byte { return r.Raw }

// DecodeBody implements apiq.Response.
func (r *MockResponse) DecodeBody(v any) error { return json.Unmarshal(r.Raw, v) }

// MockStore implements apiq.Store with just enough behavior to drive
// the engine: fetches run immediately, paged state is kept per key,
// and every request is recorded for assertions.
type MockStore struct {
	mu sync.Mutex

	QueryKeys     []apiq.Key
	MutationKeys  []apiq.Key
	Invalidated   []apiq.Key
	Events        []string
	pages         map[string]*apiq.PagedResult
	pageCursors   map[string]string
	pageHasCursor map[string]bool
}

// NewMockStore creates an empty store.
func NewMockStore() *MockStore {
	return &MockStore{
		pages:         make(map[string]*apiq.PagedResult),
		pageCursors:   make(map[string]string),
		pageHasCursor: make(map[string]bool),
	}
}

// Query implements apiq.Store.
func (s *MockStore) Query(ctx context.Context, req *apiq.QueryRequest) (*apiq.Result, error) {
	s.mu.Lock()
	s.QueryKeys = append(s.QueryKeys, req.Key)
	s.mu.Unlock()

	data, err := req.Fetch(ctx)
	result := &apiq.Result{Key: req.Key, UpdatedAt: time.Now()}

	if err != nil {
		result.Status = apiq.StatusFailure
		result.Err = err

		return result, err
	}

	result.Status = apiq.StatusSuccess
	result.Data = data

	return result, nil
}

// PagedQuery implements apiq.Store.
func (s *MockStore) PagedQuery(ctx context.Context, req *apiq.PagedQueryRequest) (*apiq.PagedResult, error) {
	data, err := req.FetchPage(ctx, "")
	if err != nil {
		return &apiq.PagedResult{Key: req.Key, Status: apiq.StatusFailure, Err: err}, err
	}

	cursor, more := req.NextCursor(data)

	result := &apiq.PagedResult{
		Key:       req.Key,
		Status:    apiq.StatusSuccess,
		Pages:     [][]byte{data},
		HasMore:   more,
		UpdatedAt: time.Now(),
	}

	s.mu.Lock()
	s.pages[req.Key.Encode()] = result
	s.pageCursors[req.Key.Encode()] = cursor
	s.pageHasCursor[req.Key.Encode()] = more
	s.mu.Unlock()

	return result, nil
}

// FetchNextPage implements apiq.Store.
func (s *MockStore) FetchNextPage(ctx context.Context, req *apiq.PagedQueryRequest) (*apiq.PagedResult, error) {
	s.mu.Lock()
	state, ok := s.pages[req.Key.Encode()]
	cursor := s.pageCursors[req.Key.Encode()]
	hasCursor := s.pageHasCursor[req.Key.Encode()]
	s.mu.Unlock()

	if !ok {
		return s.PagedQuery(ctx, req)
	}

	if !hasCursor {
		return state, apiq.ErrNoNextPage
	}

	data, err := req.FetchPage(ctx, cursor)
	if err != nil {
		return state, err
	}

	next, more := req.NextCursor(data)

	result := &apiq.PagedResult{
		Key:       req.Key,
		Status:    apiq.StatusSuccess,
		Pages:     append(append([][]byte{}, state.Pages...), data),
		HasMore:   more,
		UpdatedAt: time.Now(),
	}

	s.mu.Lock()
	s.pages[req.Key.Encode()] = result
	s.pageCursors[req.Key.Encode()] = next
	s.pageHasCursor[req.Key.Encode()] = more
	s.mu.Unlock()

	return result, nil
}

// Mutate implements apiq.Store. It follows the contract's ordering:
// run, then invalidations, then OnSuccess.
func (s *MockStore) Mutate(ctx context.Context, req *apiq.MutationRequest) (*apiq.Result, error) {
	s.mu.Lock()
	s.MutationKeys = append(s.MutationKeys, req.Key)
	s.mu.Unlock()

	data, err := req.Run(ctx)
	result := &apiq.Result{Key: req.Key, UpdatedAt: time.Now()}

	if err != nil {
		result.Status = apiq.StatusFailure
		result.Err = err

		if req.OnError != nil {
			req.OnError(err)
		}

		return result, err
	}

	for _, prefix := range req.Invalidations {
		_, _ = s.Invalidate(ctx, prefix)
	}

	if req.OnSuccess != nil {
		s.record("onSuccess")
		req.OnSuccess(data)
	}

	result.Status = apiq.StatusSuccess
	result.Data = data

	return result, nil
}

// Invalidate implements apiq.Store.
func (s *MockStore) Invalidate(_ context.Context, prefix apiq.Key) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.Invalidated = append(s.Invalidated, prefix)
	s.Events = append(s.Events, "invalidate "+prefix.String())

	return 0, nil
}

func (s *MockStore) record(event string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.Events = append(s.Events, event)
}
