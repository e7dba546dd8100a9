package commands

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"os"
	"sort"
	"strings"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/fivetwenty-io/apiq/internal/constants"
	"github.com/fivetwenty-io/apiq/pkg/apiq"
)

// Common string constants used throughout the commands package.
const (
	NotAvailable = "N/A"
	Masked       = "***"
)

// Common static errors used throughout the commands package.
var (
	ErrPairFormat = errors.New("invalid pair, expected key=value")
)

// outputFormat reads and validates the configured output format.
func outputFormat() (string, error) {
	output := viper.GetString("output")
	if output == "" {
		return constants.FormatTable, nil
	}

	switch output {
	case constants.FormatTable, constants.FormatJSON, constants.FormatYAML:
		return output, nil
	default:
		return "", fmt.Errorf("%w: %q", constants.ErrInvalidOutputFormat, output)
	}
}

// parsePairs splits repeated key=value flag values into a map. Later
// duplicates win.
func parsePairs(pairs []string) (map[string]string, error) {
	if len(pairs) == 0 {
		return nil, nil
	}

	out := make(map[string]string, len(pairs))

	for _, pair := range pairs {
		key, value, ok := strings.Cut(pair, "=")
		if !ok || key == "" {
			return nil, fmt.Errorf("%w: %q", ErrPairFormat, pair)
		}

		out[key] = value
	}

	return out, nil
}

// parseQueryPairs splits repeated key=value flag values into query
// parameters. Repeated keys accumulate.
func parseQueryPairs(pairs []string) (url.Values, error) {
	if len(pairs) == 0 {
		return nil, nil
	}

	values := url.Values{}

	for _, pair := range pairs {
		key, value, ok := strings.Cut(pair, "=")
		if !ok || key == "" {
			return nil, fmt.Errorf("%w: %q", ErrPairFormat, pair)
		}

		values.Add(key, value)
	}

	return values, nil
}

// readBody loads a JSON request body from the --body flag or the
// --body-file flag, of which at most one may be set.
func readBody(body, bodyFile string) (interface{}, error) {
	if body != "" && bodyFile != "" {
		return nil, constants.ErrBodyAndFileExclusive
	}

	raw := []byte(body)

	if bodyFile != "" {
		info, err := os.Stat(bodyFile)
		if err != nil {
			return nil, fmt.Errorf("reading body file: %w", err)
		}

		if !info.Mode().IsRegular() {
			return nil, fmt.Errorf("%w: %s", constants.ErrNotRegularFile, bodyFile)
		}

		raw, err = os.ReadFile(bodyFile) // #nosec G304 -- user-supplied path by design
		if err != nil {
			return nil, fmt.Errorf("reading body file: %w", err)
		}
	}

	if len(raw) == 0 {
		return nil, nil
	}

	var decoded interface{}

	err := json.Unmarshal(raw, &decoded)
	if err != nil {
		return nil, fmt.Errorf("parsing body as JSON: %w", err)
	}

	return decoded, nil
}

// resolvePath turns a path argument into engine addressing. A concrete
// path like posts/42 is matched against the route table and rewritten
// to its pattern (posts/:id) with the parameter values extracted; a
// pattern-style path passes through and takes its values from --param
// flags. An unmatched concrete path passes through literally and is
// denied by the engine like any other off-route path.
func resolvePath(routes *apiq.Routes, raw string) (apiq.Path, map[string]string) {
	path := apiq.ParsePath(raw)

	for _, segment := range path {
		if strings.HasPrefix(segment, apiq.ParamSigil) {
			return path, nil
		}
	}

	if routes == nil {
		return path, nil
	}

	for _, route := range routes.All() {
		pattern := apiq.ParsePath(route.Path)
		if len(pattern) != len(path) {
			continue
		}

		params := make(map[string]string)
		matched := true

		for i, segment := range pattern {
			switch {
			case strings.HasPrefix(segment, apiq.ParamSigil):
				params[strings.TrimPrefix(segment, apiq.ParamSigil)] = path[i]
			case segment != path[i]:
				matched = false
			}

			if !matched {
				break
			}
		}

		if matched {
			if len(params) == 0 {
				params = nil
			}

			return pattern, params
		}
	}

	return path, nil
}

// buildInput assembles the binding input from the shared call/query
// flags. Parameter values extracted from the path argument are merged
// under explicit --param flags.
func buildInput(pathParams map[string]string, params, query, headers []string, body interface{}) (*apiq.Input, error) {
	flagParams, err := parsePairs(params)
	if err != nil {
		return nil, fmt.Errorf("--param: %w", err)
	}

	queryValues, err := parseQueryPairs(query)
	if err != nil {
		return nil, fmt.Errorf("--query: %w", err)
	}

	headerMap, err := parsePairs(headers)
	if err != nil {
		return nil, fmt.Errorf("--header: %w", err)
	}

	merged := pathParams
	if len(flagParams) > 0 {
		if merged == nil {
			merged = make(map[string]string, len(flagParams))
		}

		for key, value := range flagParams {
			merged[key] = value
		}
	}

	if merged == nil && queryValues == nil && headerMap == nil && body == nil {
		return nil, nil
	}

	return &apiq.Input{
		Params:  merged,
		Query:   queryValues,
		Headers: headerMap,
		Body:    body,
	}, nil
}

// renderPayload prints a JSON response payload in the configured
// output format. Payloads that are not JSON are printed verbatim.
func renderPayload(data []byte) error {
	format, err := outputFormat()
	if err != nil {
		return err
	}

	var decoded interface{}

	if len(data) == 0 || json.Unmarshal(data, &decoded) != nil {
		_, _ = os.Stdout.Write(data)

		if len(data) > 0 && data[len(data)-1] != '\n' {
			_, _ = os.Stdout.WriteString("\n")
		}

		return nil
	}

	switch format {
	case constants.FormatJSON:
		encoder := json.NewEncoder(os.Stdout)
		encoder.SetIndent("", "  ")

		if err := encoder.Encode(decoded); err != nil {
			return fmt.Errorf("encoding payload to JSON: %w", err)
		}

		return nil
	case constants.FormatYAML:
		encoder := yaml.NewEncoder(os.Stdout)

		if err := encoder.Encode(decoded); err != nil {
			return fmt.Errorf("encoding payload to YAML: %w", err)
		}

		return nil
	default:
		return renderPayloadTable(decoded)
	}
}

// renderPayloadTable renders decoded JSON as a table: objects become
// property/value rows, arrays of objects become one row per element.
// Anything else falls back to plain printing.
func renderPayloadTable(decoded interface{}) error {
	switch value := decoded.(type) {
	case map[string]interface{}:
		return renderObjectTable(value)
	case []interface{}:
		return renderListTable(value)
	default:
		fmt.Println(formatCell(decoded))

		return nil
	}
}

func renderObjectTable(object map[string]interface{}) error {
	table := tablewriter.NewWriter(os.Stdout)
	table.Header("Property", "Value")

	for _, key := range sortedKeys(object) {
		_ = table.Append(key, formatCell(object[key]))
	}

	if err := table.Render(); err != nil {
		return fmt.Errorf("failed to render table: %w", err)
	}

	return nil
}

func renderListTable(items []interface{}) error {
	if len(items) == 0 {
		fmt.Println("No results")

		return nil
	}

	first, ok := items[0].(map[string]interface{})
	if !ok {
		// A list of scalars: one per line.
		for _, item := range items {
			fmt.Println(formatCell(item))
		}

		return nil
	}

	columns := sortedKeys(first)

	table := tablewriter.NewWriter(os.Stdout)

	header := make([]interface{}, len(columns))
	for i, column := range columns {
		header[i] = column
	}

	table.Header(header...)

	for _, item := range items {
		object, ok := item.(map[string]interface{})
		if !ok {
			continue
		}

		row := make([]interface{}, len(columns))
		for i, column := range columns {
			row[i] = formatCell(object[column])
		}

		_ = table.Append(row...)
	}

	if err := table.Render(); err != nil {
		return fmt.Errorf("failed to render table: %w", err)
	}

	return nil
}

// formatCell renders one JSON value for a table cell; nested values
// collapse to compact JSON.
func formatCell(value interface{}) string {
	switch v := value.(type) {
	case nil:
		return NotAvailable
	case string:
		return v
	case float64, bool:
		return fmt.Sprintf("%v", v)
	default:
		compact, err := json.Marshal(v)
		if err != nil {
			return fmt.Sprintf("%v", v)
		}

		return string(compact)
	}
}

func sortedKeys(object map[string]interface{}) []string {
	keys := make([]string, 0, len(object))

	for key := range object {
		keys = append(keys, key)
	}

	sort.Strings(keys)

	return keys
}

// renderStructured prints a value as indented JSON or YAML; table
// format gets the rows the caller supplies.
func renderStructured(value interface{}, tableFn func() error) error {
	format, err := outputFormat()
	if err != nil {
		return err
	}

	switch format {
	case constants.FormatJSON:
		encoder := json.NewEncoder(os.Stdout)
		encoder.SetIndent("", "  ")

		if err := encoder.Encode(value); err != nil {
			return fmt.Errorf("encoding to JSON: %w", err)
		}

		return nil
	case constants.FormatYAML:
		encoder := yaml.NewEncoder(os.Stdout)

		if err := encoder.Encode(value); err != nil {
			return fmt.Errorf("encoding to YAML: %w", err)
		}

		return nil
	default:
		return tableFn()
	}
}
