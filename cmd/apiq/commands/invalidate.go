package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/fivetwenty-io/apiq/internal/constants"
	"github.com/fivetwenty-io/apiq/pkg/apiq"
)

// NewInvalidateCommand creates the invalidate command.
func NewInvalidateCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "invalidate PATH",
		Short: "Drop cached state under a path",
		Long: `Drop every stored query state whose key starts with the given path,
whatever input it was fetched with. Resource segments may stay
pattern-style (posts/:id) to drop all states of one route, or concrete
(posts/42) to drop one resource's states.`,
		Args: cobra.MaximumNArgs(1),
		RunE: requireClient(func(cmd *cobra.Command, client *apiq.Client, args []string) error {
			if len(args) == 0 || args[0] == "" {
				return constants.ErrPathRequired
			}

			path, _ := resolvePath(client.Routes(), args[0])

			count, err := client.Utils().At(path...).Invalidate(cmd.Context())
			if err != nil {
				return err
			}

			fmt.Printf("Invalidated %d cached state(s) under %s\n", count, path)

			return nil
		}),
	}
}
