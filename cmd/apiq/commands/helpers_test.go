//nolint:testpackage // Need access to internal types
package commands

import (
	"net/url"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fivetwenty-io/apiq/internal/constants"
	"github.com/fivetwenty-io/apiq/pkg/apiq"
)

const helperRoutesYAML = `
routes:
  - path: /posts
    methods: [get, post]
  - path: /posts/:id
    methods: [get, patch, delete]
  - path: /posts/:id/comments
    methods: [get]
`

func helperRoutes(t *testing.T) *apiq.Routes {
	t.Helper()

	routes, err := apiq.ParseRoutesYAML([]byte(helperRoutesYAML))
	require.NoError(t, err)

	return routes
}

func TestParsePairs(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		pairs    []string
		expected map[string]string
		wantErr  bool
	}{
		{
			name:     "empty input",
			pairs:    nil,
			expected: nil,
		},
		{
			name:     "single pair",
			pairs:    []string{"id=42"},
			expected: map[string]string{"id": "42"},
		},
		{
			name:     "later duplicate wins",
			pairs:    []string{"id=42", "id=99"},
			expected: map[string]string{"id": "99"},
		},
		{
			name:     "value may contain equals",
			pairs:    []string{"filter=a=b"},
			expected: map[string]string{"filter": "a=b"},
		},
		{
			name:    "missing separator",
			pairs:   []string{"noequals"},
			wantErr: true,
		},
		{
			name:    "empty key",
			pairs:   []string{"=value"},
			wantErr: true,
		},
	}

	for _, testCase := range tests {
		t.Run(testCase.name, func(t *testing.T) {
			t.Parallel()

			result, err := parsePairs(testCase.pairs)
			if testCase.wantErr {
				require.ErrorIs(t, err, ErrPairFormat)

				return
			}

			require.NoError(t, err)
			assert.Equal(t, testCase.expected, result)
		})
	}
}

func TestParseQueryPairs(t *testing.T) {
	t.Parallel()

	t.Run("repeated keys accumulate", func(t *testing.T) {
		t.Parallel()

		values, err := parseQueryPairs([]string{"tag=a", "tag=b", "sort=asc"})
		require.NoError(t, err)
		assert.Equal(t, url.Values{"tag": {"a", "b"}, "sort": {"asc"}}, values)
	})

	t.Run("empty input", func(t *testing.T) {
		t.Parallel()

		values, err := parseQueryPairs(nil)
		require.NoError(t, err)
		assert.Nil(t, values)
	})

	t.Run("invalid pair", func(t *testing.T) {
		t.Parallel()

		_, err := parseQueryPairs([]string{"bare"})
		require.ErrorIs(t, err, ErrPairFormat)
	})
}

func TestReadBody(t *testing.T) {
	t.Parallel()

	t.Run("empty", func(t *testing.T) {
		t.Parallel()

		decoded, err := readBody("", "")
		require.NoError(t, err)
		assert.Nil(t, decoded)
	})

	t.Run("inline body", func(t *testing.T) {
		t.Parallel()

		decoded, err := readBody(`{"title":"hello"}`, "")
		require.NoError(t, err)
		assert.Equal(t, map[string]interface{}{"title": "hello"}, decoded)
	})

	t.Run("body file", func(t *testing.T) {
		t.Parallel()

		path := filepath.Join(t.TempDir(), "body.json")
		require.NoError(t, os.WriteFile(path, []byte(`["a","b"]`), 0o600))

		decoded, err := readBody("", path)
		require.NoError(t, err)
		assert.Equal(t, []interface{}{"a", "b"}, decoded)
	})

	t.Run("body and file are exclusive", func(t *testing.T) {
		t.Parallel()

		_, err := readBody(`{}`, "body.json")
		require.ErrorIs(t, err, constants.ErrBodyAndFileExclusive)
	})

	t.Run("directory is not a body file", func(t *testing.T) {
		t.Parallel()

		_, err := readBody("", t.TempDir())
		require.ErrorIs(t, err, constants.ErrNotRegularFile)
	})

	t.Run("missing file", func(t *testing.T) {
		t.Parallel()

		_, err := readBody("", filepath.Join(t.TempDir(), "absent.json"))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "reading body file")
	})

	t.Run("invalid JSON", func(t *testing.T) {
		t.Parallel()

		_, err := readBody("not json", "")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "parsing body as JSON")
	})
}

func TestResolvePath(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name           string
		raw            string
		expectedPath   apiq.Path
		expectedParams map[string]string
	}{
		{
			name:         "collection path",
			raw:          "posts",
			expectedPath: apiq.Path{"posts"},
		},
		{
			name:           "concrete resource rewritten to pattern",
			raw:            "/posts/42",
			expectedPath:   apiq.Path{"posts", ":id"},
			expectedParams: map[string]string{"id": "42"},
		},
		{
			name:           "nested concrete path",
			raw:            "posts/42/comments",
			expectedPath:   apiq.Path{"posts", ":id", "comments"},
			expectedParams: map[string]string{"id": "42"},
		},
		{
			name:         "pattern-style path passes through",
			raw:          "posts/:id",
			expectedPath: apiq.Path{"posts", ":id"},
		},
		{
			name:         "unmatched path stays literal",
			raw:          "unknown/42",
			expectedPath: apiq.Path{"unknown", "42"},
		},
	}

	for _, testCase := range tests {
		t.Run(testCase.name, func(t *testing.T) {
			t.Parallel()

			path, params := resolvePath(helperRoutes(t), testCase.raw)
			assert.Equal(t, testCase.expectedPath, path)
			assert.Equal(t, testCase.expectedParams, params)
		})
	}
}

func TestResolvePath_NilRoutes(t *testing.T) {
	t.Parallel()

	path, params := resolvePath(nil, "posts/42")
	assert.Equal(t, apiq.Path{"posts", "42"}, path)
	assert.Nil(t, params)
}

func TestBuildInput(t *testing.T) {
	t.Parallel()

	t.Run("everything empty yields nil input", func(t *testing.T) {
		t.Parallel()

		input, err := buildInput(nil, nil, nil, nil, nil)
		require.NoError(t, err)
		assert.Nil(t, input)
	})

	t.Run("flag params win over path params", func(t *testing.T) {
		t.Parallel()

		input, err := buildInput(
			map[string]string{"id": "42"},
			[]string{"id=99", "sort=asc"},
			[]string{"tag=a"},
			[]string{"X-Trace=on"},
			map[string]interface{}{"title": "x"},
		)
		require.NoError(t, err)
		require.NotNil(t, input)

		assert.Equal(t, map[string]string{"id": "99", "sort": "asc"}, input.Params)
		assert.Equal(t, url.Values{"tag": {"a"}}, input.Query)
		assert.Equal(t, map[string]string{"X-Trace": "on"}, input.Headers)
		assert.Equal(t, map[string]interface{}{"title": "x"}, input.Body)
	})

	t.Run("path params alone survive", func(t *testing.T) {
		t.Parallel()

		input, err := buildInput(map[string]string{"id": "42"}, nil, nil, nil, nil)
		require.NoError(t, err)
		require.NotNil(t, input)
		assert.Equal(t, map[string]string{"id": "42"}, input.Params)
	})

	t.Run("bad param pair names the flag", func(t *testing.T) {
		t.Parallel()

		_, err := buildInput(nil, []string{"bare"}, nil, nil, nil)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "--param")
	})

	t.Run("bad header pair names the flag", func(t *testing.T) {
		t.Parallel()

		_, err := buildInput(nil, nil, nil, []string{"bare"}, nil)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "--header")
	})
}

func TestFormatCell(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		value    interface{}
		expected string
	}{
		{name: "nil", value: nil, expected: NotAvailable},
		{name: "string", value: "hello", expected: "hello"},
		{name: "number", value: float64(3.5), expected: "3.5"},
		{name: "bool", value: true, expected: "true"},
		{name: "object collapses to JSON", value: map[string]interface{}{"a": float64(1)}, expected: `{"a":1}`},
		{name: "array collapses to JSON", value: []interface{}{"a", "b"}, expected: `["a","b"]`},
	}

	for _, testCase := range tests {
		t.Run(testCase.name, func(t *testing.T) {
			t.Parallel()

			assert.Equal(t, testCase.expected, formatCell(testCase.value))
		})
	}
}

func TestOutputFormat(t *testing.T) {
	// viper state is process-global, so no t.Parallel here.
	defer viper.Set("output", "")

	viper.Set("output", "")

	format, err := outputFormat()
	require.NoError(t, err)
	assert.Equal(t, constants.FormatTable, format)

	viper.Set("output", "json")

	format, err = outputFormat()
	require.NoError(t, err)
	assert.Equal(t, constants.FormatJSON, format)

	viper.Set("output", "bogus")

	_, err = outputFormat()
	require.ErrorIs(t, err, constants.ErrInvalidOutputFormat)
}
