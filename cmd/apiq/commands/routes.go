package commands

import (
	"fmt"
	"os"
	"strings"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/fivetwenty-io/apiq/pkg/apiq"
)

// NewRoutesCommand creates the routes command.
func NewRoutesCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "routes",
		Short: "Show the route table",
		Long:  "Display the declared routes and their methods from the configured route table",
		RunE: func(cmd *cobra.Command, args []string) error {
			routes, err := loadRoutes()
			if err != nil {
				return err
			}

			declared := routes.All()

			return renderStructured(declared, func() error {
				return renderRoutesTable(declared)
			})
		},
	}
}

func renderRoutesTable(routes []apiq.Route) error {
	if len(routes) == 0 {
		fmt.Println("No routes declared")

		return nil
	}

	table := tablewriter.NewWriter(os.Stdout)
	table.Header("Path", "Methods")

	for _, route := range routes {
		_ = table.Append(route.Path, strings.Join(route.Methods, ", "))
	}

	if err := table.Render(); err != nil {
		return fmt.Errorf("failed to render table: %w", err)
	}

	return nil
}
