package apiq

import "strings"

// Path addressing sigils.
const (
	// ParamSigil prefixes a path segment that stands for a path parameter,
	// e.g. ":id" in ["users", ":id"]. The segment is an opaque token here;
	// the transport substitutes the actual value from Input.Params.
	ParamSigil = ":"

	// methodSigil prefixes the transport's raw per-verb callable surface.
	// It must never appear in an addressed path; At marks proxies that
	// try to descend into it as unresolvable.
	methodSigil = "$"
)

// Path is an ordered sequence of segments addressing an endpoint,
// e.g. Path{"users", ":id", "posts"}. Paths are treated as immutable:
// every operation that derives a new path copies the backing slice.
type Path []string

// NewPath builds a path from the given segments.
func NewPath(segments ...string) Path {
	path := make(Path, len(segments))
	copy(path, segments)

	return path
}

// ParsePath splits a slash-separated path expression such as
// "users/:id/posts" into segments. Leading and trailing slashes are
// ignored; an empty expression yields the empty (root) path.
func ParsePath(expr string) Path {
	trimmed := strings.Trim(expr, "/")
	if trimmed == "" {
		return Path{}
	}

	return Path(strings.Split(trimmed, "/"))
}

// Extend returns a new path with the given segments appended. The
// receiver is not modified.
func (p Path) Extend(segments ...string) Path {
	extended := make(Path, 0, len(p)+len(segments))
	extended = append(extended, p...)
	extended = append(extended, segments...)

	return extended
}

// Parent returns the path without its final segment. The parent of the
// empty path is the empty path.
func (p Path) Parent() Path {
	if len(p) == 0 {
		return Path{}
	}

	parent := make(Path, len(p)-1)
	copy(parent, p[:len(p)-1])

	return parent
}

// Last returns the final segment, or "" for the empty path.
func (p Path) Last() string {
	if len(p) == 0 {
		return ""
	}

	return p[len(p)-1]
}

// IsResource reports whether the path addresses a single resource, i.e.
// whether its final segment is a path parameter such as ":id". Paths
// ending in a plain segment address a collection (or an RPC-style
// endpoint, which is treated the same way for invalidation purposes).
func (p Path) IsResource() bool {
	return strings.HasPrefix(p.Last(), ParamSigil)
}

// Equal reports segment-wise equality.
func (p Path) Equal(other Path) bool {
	if len(p) != len(other) {
		return false
	}

	for i := range p {
		if p[i] != other[i] {
			return false
		}
	}

	return true
}

// HasPrefix reports whether the path begins with all of prefix's
// segments. Every path has the empty path as a prefix.
func (p Path) HasPrefix(prefix Path) bool {
	if len(prefix) > len(p) {
		return false
	}

	for i := range prefix {
		if p[i] != prefix[i] {
			return false
		}
	}

	return true
}

// Clone returns an independent copy of the path.
func (p Path) Clone() Path {
	cloned := make(Path, len(p))
	copy(cloned, p)

	return cloned
}

// String renders the path in slash form, e.g. "/users/:id/posts". The
// empty path renders as "/".
func (p Path) String() string {
	if len(p) == 0 {
		return "/"
	}

	return "/" + strings.Join(p, "/")
}

// hasRawSegment reports whether any segment would address the
// transport's raw callable surface.
func (p Path) hasRawSegment() bool {
	for _, segment := range p {
		if strings.HasPrefix(segment, methodSigil) {
			return true
		}
	}

	return false
}
