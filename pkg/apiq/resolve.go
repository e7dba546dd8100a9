package apiq

import "strings"

// Resolve walks the transport's object graph from base along path and
// returns the endpoint node at its end. Resolution is re-done for
// every call; nodes are never cached, so a transport may rebuild its
// graph between calls.
//
// Paths that try to descend into the transport's raw callable surface
// are reported as unresolvable, the same way a missing segment is.
func Resolve(base Node, path Path) (Node, error) {
	if base == nil {
		return nil, &ResolutionError{Path: path.Clone(), Segment: path.Last()}
	}

	node := base

	for _, segment := range path {
		// The raw callable surface is not addressable even when the
		// transport would hand out a node for it.
		if strings.HasPrefix(segment, methodSigil) {
			return nil, &ResolutionError{Path: path.Clone(), Segment: segment}
		}

		child, ok := node.Child(segment)
		if !ok || child == nil {
			return nil, &ResolutionError{Path: path.Clone(), Segment: segment}
		}

		node = child
	}

	return node, nil
}
