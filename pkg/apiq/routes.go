package apiq

import (
	"fmt"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// Route declares one endpoint of the remote API: a path pattern and
// the methods it answers to. Patterns use the same segment form the
// proxy is addressed with, so a route "/users/:id" is reached via
// At("users", ":id"); pattern matching is literal, segment by segment.
type Route struct {
	Path    string   `json:"path"    yaml:"path"`
	Methods []string `json:"methods" yaml:"methods"`
}

// Routes is the compiled route table. It answers which methods are
// declared at a path, and whether a path is on the way to any declared
// endpoint. The engine consults it to expose or deny bindings before a
// call is dispatched; transports can use it to shape their object
// graph.
type Routes struct {
	ordered []Route
	methods map[string]map[Method]bool
	prefix  map[string]bool
}

// routesFile is the YAML document shape for ParseRoutesYAML.
type routesFile struct {
	Routes []Route `yaml:"routes"`
}

// NewRoutes compiles a route table. Methods are normalized to lower
// case; duplicate paths merge their method sets.
func NewRoutes(routes ...Route) (*Routes, error) {
	table := &Routes{
		methods: make(map[string]map[Method]bool),
		prefix:  make(map[string]bool),
	}

	for _, route := range routes {
		path := ParsePath(route.Path)

		parsed := make([]Method, 0, len(route.Methods))

		for _, raw := range route.Methods {
			method, err := ParseMethod(raw)
			if err != nil {
				return nil, fmt.Errorf("route %s: %w", path, err)
			}

			parsed = append(parsed, method)
		}

		table.add(path, parsed)
	}

	return table, nil
}

// ParseRoutesYAML compiles a route table from a YAML document of the
// form:
//
//	routes:
//	  - path: /users
//	    methods: [get, post]
//	  - path: /users/:id
//	    methods: [get, patch, delete]
func ParseRoutesYAML(data []byte) (*Routes, error) {
	var file routesFile

	err := yaml.Unmarshal(data, &file)
	if err != nil {
		return nil, fmt.Errorf("parsing routes: %w", err)
	}

	return NewRoutes(file.Routes...)
}

func (r *Routes) add(path Path, methods []Method) {
	key := indexKey(path)

	set, ok := r.methods[key]
	if !ok {
		set = make(map[Method]bool)
		r.methods[key] = set

		r.ordered = append(r.ordered, Route{Path: path.String()})
	}

	for _, method := range methods {
		set[method] = true
	}

	// Every prefix of a declared route is an addressable node.
	for i := 0; i <= len(path); i++ {
		r.prefix[indexKey(path[:i])] = true
	}
}

// Methods returns the declared method set at path in stable order, or
// nil when the path declares no endpoint.
func (r *Routes) Methods(path Path) []Method {
	if r == nil {
		return nil
	}

	set, ok := r.methods[indexKey(path)]
	if !ok {
		return nil
	}

	out := make([]Method, 0, len(set))

	for _, method := range Methods() {
		if set[method] {
			out = append(out, method)
		}
	}

	return out
}

// Allows reports whether path declares the given method. A nil Routes
// allows everything, so a client without a route table falls back to
// the transport's own capabilities.
func (r *Routes) Allows(path Path, method Method) bool {
	if r == nil {
		return true
	}

	set, ok := r.methods[indexKey(path)]

	return ok && set[method]
}

// Declared reports whether path is an endpoint of the table.
func (r *Routes) Declared(path Path) bool {
	if r == nil {
		return false
	}

	_, ok := r.methods[indexKey(path)]

	return ok
}

// OnRoute reports whether path is a prefix of (or equal to) some
// declared route, i.e. whether an object-graph node exists there. A
// nil Routes reports true for every path.
func (r *Routes) OnRoute(path Path) bool {
	if r == nil {
		return true
	}

	return r.prefix[indexKey(path)]
}

// All returns the declared routes with their method sets, ordered by
// path, for display and re-serialization.
func (r *Routes) All() []Route {
	if r == nil {
		return nil
	}

	out := make([]Route, 0, len(r.ordered))

	for _, route := range r.ordered {
		path := ParsePath(route.Path)

		methods := r.Methods(path)
		names := make([]string, len(methods))

		for i, method := range methods {
			names[i] = string(method)
		}

		out = append(out, Route{Path: route.Path, Methods: names})
	}

	sort.Slice(out, func(i, j int) bool { return out[i].Path < out[j].Path })

	return out
}

func indexKey(path Path) string {
	return strings.Join(path, "\x1f")
}
