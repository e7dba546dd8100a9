package integration

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sort"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/fivetwenty-io/apiq/pkg/apiq"
	"github.com/fivetwenty-io/apiq/pkg/restclient"
)

const demoRoutesYAML = `
routes:
  - path: /posts
    methods: [get, post]
  - path: /posts/:id
    methods: [get, patch, delete]
  - path: /events
    methods: [get]
`

const (
	eventCount    = 25
	eventPageSize = 10
)

type demoPost struct {
	ID    string `json:"id"`
	Title string `json:"title"`
}

type eventPage struct {
	Items []string `json:"items"`
	Next  string   `json:"next,omitempty"`
}

// demoAPI is the in-process REST API the workflow tests run against.
type demoAPI struct {
	server *httptest.Server

	mu     sync.Mutex
	posts  map[string]*demoPost
	nextID int
	hits   map[string]int
	delay  time.Duration
	token  string
}

// newDemoAPI starts a posts-and-events API seeded with two posts.
func newDemoAPI(t *testing.T) *demoAPI {
	t.Helper()

	api := &demoAPI{
		posts: map[string]*demoPost{
			"p1": {ID: "p1", Title: "first"},
			"p2": {ID: "p2", Title: "second"},
		},
		nextID: 3,
		hits:   make(map[string]int),
	}

	api.server = httptest.NewServer(api.handler())
	t.Cleanup(api.server.Close)

	return api
}

// SetDelay makes every request take at least d.
func (api *demoAPI) SetDelay(d time.Duration) {
	api.mu.Lock()
	defer api.mu.Unlock()
	api.delay = d
}

// RequireToken rejects requests without the given bearer token.
func (api *demoAPI) RequireToken(token string) {
	api.mu.Lock()
	defer api.mu.Unlock()
	api.token = token
}

// Hits returns how many requests reached the given handler, keyed as
// "METHOD /pattern". Every attempt counts, including rejected ones
// under "attempts".
func (api *demoAPI) Hits(key string) int {
	api.mu.Lock()
	defer api.mu.Unlock()

	return api.hits[key]
}

func (api *demoAPI) count(key string) {
	api.mu.Lock()
	defer api.mu.Unlock()
	api.hits[key]++
}

func (api *demoAPI) handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /posts", func(writer http.ResponseWriter, request *http.Request) {
		api.count("GET /posts")

		api.mu.Lock()
		list := make([]*demoPost, 0, len(api.posts))
		for _, post := range api.posts {
			list = append(list, post)
		}
		api.mu.Unlock()

		sort.Slice(list, func(i, j int) bool { return list[i].ID < list[j].ID })
		_ = json.NewEncoder(writer).Encode(list)
	})

	mux.HandleFunc("POST /posts", func(writer http.ResponseWriter, request *http.Request) {
		api.count("POST /posts")

		var body demoPost
		_ = json.NewDecoder(request.Body).Decode(&body)

		api.mu.Lock()
		post := &demoPost{ID: fmt.Sprintf("p%d", api.nextID), Title: body.Title}
		api.nextID++
		api.posts[post.ID] = post
		api.mu.Unlock()

		writer.WriteHeader(http.StatusCreated)
		_ = json.NewEncoder(writer).Encode(post)
	})

	mux.HandleFunc("GET /posts/{id}", func(writer http.ResponseWriter, request *http.Request) {
		api.count("GET /posts/:id")

		api.mu.Lock()
		post, found := api.posts[request.PathValue("id")]
		api.mu.Unlock()

		if !found {
			writer.WriteHeader(http.StatusNotFound)
			_, _ = writer.Write([]byte(`{"error":"no such post"}`))

			return
		}

		_ = json.NewEncoder(writer).Encode(post)
	})

	mux.HandleFunc("PATCH /posts/{id}", func(writer http.ResponseWriter, request *http.Request) {
		api.count("PATCH /posts/:id")

		var body demoPost
		_ = json.NewDecoder(request.Body).Decode(&body)

		api.mu.Lock()
		post, found := api.posts[request.PathValue("id")]
		if found && body.Title != "" {
			post.Title = body.Title
		}
		api.mu.Unlock()

		if !found {
			writer.WriteHeader(http.StatusNotFound)
			_, _ = writer.Write([]byte(`{"error":"no such post"}`))

			return
		}

		_ = json.NewEncoder(writer).Encode(post)
	})

	mux.HandleFunc("DELETE /posts/{id}", func(writer http.ResponseWriter, request *http.Request) {
		api.count("DELETE /posts/:id")

		api.mu.Lock()
		delete(api.posts, request.PathValue("id"))
		api.mu.Unlock()

		writer.WriteHeader(http.StatusNoContent)
	})

	mux.HandleFunc("GET /events", func(writer http.ResponseWriter, request *http.Request) {
		api.count("GET /events")

		offset := 0
		if cursor := request.URL.Query().Get("cursor"); cursor != "" {
			offset, _ = strconv.Atoi(cursor)
		}

		var page eventPage
		for i := offset; i < offset+eventPageSize && i < eventCount; i++ {
			page.Items = append(page.Items, fmt.Sprintf("event-%d", i))
		}

		if offset+eventPageSize < eventCount {
			page.Next = strconv.Itoa(offset + eventPageSize)
		}

		_ = json.NewEncoder(writer).Encode(page)
	})

	return http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
		api.count("attempts")

		api.mu.Lock()
		delay := api.delay
		token := api.token
		api.mu.Unlock()

		if delay > 0 {
			time.Sleep(delay)
		}

		if token != "" && request.Header.Get("Authorization") != "Bearer "+token {
			writer.WriteHeader(http.StatusUnauthorized)
			_, _ = writer.Write([]byte(`{"error":"unauthorized"}`))

			return
		}

		mux.ServeHTTP(writer, request)
	})
}

// newClient wires a proxy client against the demo API.
func newClient(t *testing.T, api *demoAPI, opts ...restclient.Option) *apiq.Client {
	t.Helper()

	client, err := restclient.New(&apiq.Config{
		BaseURL:    api.server.URL,
		RoutesYAML: []byte(demoRoutesYAML),
		QueryTTL:   time.Minute,
	}, opts...)
	require.NoError(t, err)

	return client
}
