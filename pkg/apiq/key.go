package apiq

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/ohler55/ojg"
	"github.com/ohler55/ojg/oj"
)

// keyEncodeOptions makes the input suffix of a cache key deterministic:
// map members are emitted in sorted key order at every nesting level.
var keyEncodeOptions = ojg.Options{Sort: true}

// Key identifies one stored call state. It is the addressed path
// followed by a canonical encoding of the call input, so
// Query["users", ":id"] with input {params: {id: "1"}} yields
// Key{"users", ":id", `{"params":{"id":"1"}}`}. A bare path (no input
// element) is a valid key too; invalidation uses such keys as
// prefixes.
type Key []string

// NewKey builds a key from raw elements.
func NewKey(elems ...string) Key {
	key := make(Key, len(elems))
	copy(key, elems)

	return key
}

// KeyFor derives the cache key for a call at path with the given
// input. A nil input contributes the canonical "null" element, keeping
// the key for an input-less query distinct from the bare path prefix.
func KeyFor(path Path, input *Input) (Key, error) {
	suffix, err := CanonicalJSON(input)
	if err != nil {
		return nil, fmt.Errorf("deriving cache key for %s: %w", path, err)
	}

	key := make(Key, 0, len(path)+1)
	key = append(key, path...)
	key = append(key, suffix)

	return key, nil
}

// PathKey converts a bare path into a key usable as an invalidation
// prefix. It matches every stored key derived from that path or any
// path beneath it.
func PathKey(path Path) Key {
	key := make(Key, len(path))
	copy(key, path)

	return key
}

// HasPrefix reports whether the key begins with all elements of
// prefix. This is the matching rule the store applies for
// invalidation.
func (k Key) HasPrefix(prefix Key) bool {
	if len(prefix) > len(k) {
		return false
	}

	for i := range prefix {
		if k[i] != prefix[i] {
			return false
		}
	}

	return true
}

// Clone returns an independent copy of the key.
func (k Key) Clone() Key {
	clone := make(Key, len(k))
	copy(clone, k)

	return clone
}

// Equal reports element-wise equality.
func (k Key) Equal(other Key) bool {
	if len(k) != len(other) {
		return false
	}

	for i := range k {
		if k[i] != other[i] {
			return false
		}
	}

	return true
}

// Encode renders the key as a single string suitable for use as a map
// key. Elements are joined with an ASCII unit separator, which cannot
// collide with path segments or the JSON input element.
func (k Key) Encode() string {
	return strings.Join(k, "\x1f")
}

// String renders the key for logs and error messages.
func (k Key) String() string {
	return strings.Join(k, "/")
}

// CanonicalJSON encodes a value as deterministic JSON: the value is
// first marshaled with encoding/json (honoring json tags and
// json.Marshaler implementations), then re-emitted with sorted map
// keys. Structurally equal values therefore produce identical strings
// regardless of map iteration order or pointer identity. nil encodes
// as "null".
func CanonicalJSON(value any) (string, error) {
	if value == nil {
		return "null", nil
	}

	raw, err := json.Marshal(value)
	if err != nil {
		return "", fmt.Errorf("marshaling value: %w", err)
	}

	parsed, err := oj.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("normalizing value: %w", err)
	}

	return oj.JSON(parsed, &keyEncodeOptions), nil
}
