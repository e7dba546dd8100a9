package commands

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/fivetwenty-io/apiq/internal/constants"
	"github.com/fivetwenty-io/apiq/pkg/apiq"
)

// NewCallCommand creates the call command group.
func NewCallCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "call",
		Short: "Dispatch a single request through the proxy",
		Long: `Dispatch one request to a declared route and print the response.

The path may be concrete (posts/42) or pattern-style (posts/:id with
--param id=42); concrete paths are matched against the route table.
GET requests bypass any cached state; mutation verbs apply the path's
invalidations on success.`,
	}

	for _, method := range apiq.Methods() {
		cmd.AddCommand(newCallVerbCommand(method))
	}

	return cmd
}

func newCallVerbCommand(method apiq.Method) *cobra.Command {
	var (
		params   []string
		query    []string
		headers  []string
		body     string
		bodyFile string
	)

	cmd := &cobra.Command{
		Use:   string(method) + " PATH",
		Short: fmt.Sprintf("Dispatch a %s request", strings.ToUpper(string(method))),
		Args:  cobra.MaximumNArgs(1),
		RunE: requireClient(func(cmd *cobra.Command, client *apiq.Client, args []string) error {
			if len(args) == 0 || args[0] == "" {
				return constants.ErrPathRequired
			}

			decoded, err := readBody(body, bodyFile)
			if err != nil {
				return err
			}

			path, pathParams := resolvePath(client.Routes(), args[0])

			input, err := buildInput(pathParams, params, query, headers, decoded)
			if err != nil {
				return err
			}

			ctx := cmd.Context()

			if method == apiq.MethodGet {
				result, err := client.At(path...).Query().Refetch(ctx, input)
				if err != nil {
					return err
				}

				return renderPayload(result.Data)
			}

			result, err := client.At(path...).Mutation(method).Mutate(ctx, input)
			if err != nil {
				return err
			}

			if len(result.Data) == 0 {
				fmt.Println("OK")

				return nil
			}

			return renderPayload(result.Data)
		}),
	}

	cmd.Flags().StringArrayVarP(&params, "param", "p", nil, "path parameter (key=value, repeatable)")
	cmd.Flags().StringArrayVarP(&query, "query", "q", nil, "query parameter (key=value, repeatable)")
	cmd.Flags().StringArrayVarP(&headers, "header", "H", nil, "request header (key=value, repeatable)")

	if method.IsMutation() {
		cmd.Flags().StringVarP(&body, "body", "b", "", "JSON request body")
		cmd.Flags().StringVar(&bodyFile, "body-file", "", "file containing the JSON request body")
	}

	return cmd
}
