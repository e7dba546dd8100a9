package commands

import (
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/fivetwenty-io/apiq/internal/constants"
	"github.com/fivetwenty-io/apiq/pkg/apiq"
	"github.com/fivetwenty-io/apiq/pkg/store"
)

// Static errors for err113 compliance.
var (
	ErrWatchUnsupported = errors.New("the configured store does not support subscriptions")
)

// NewQueryCommand creates the query command.
func NewQueryCommand() *cobra.Command {
	var (
		params  []string
		query   []string
		headers []string
		ttl     time.Duration
		refresh bool
		watch   bool
	)

	cmd := &cobra.Command{
		Use:   "query PATH",
		Short: "Run a cached query",
		Long: `Run a query through the store: fresh cached state is served without
touching the wire, anything else is fetched and cached. --refresh
forces a fetch; --watch keeps the session open and prints every state
transition under the query's key until interrupted.`,
		Args: cobra.MaximumNArgs(1),
		RunE: requireClient(func(cmd *cobra.Command, client *apiq.Client, args []string) error {
			if len(args) == 0 || args[0] == "" {
				return constants.ErrPathRequired
			}

			path, pathParams := resolvePath(client.Routes(), args[0])

			input, err := buildInput(pathParams, params, query, headers, nil)
			if err != nil {
				return err
			}

			binding := client.At(path...).Query()
			if ttl > 0 {
				binding = binding.WithTTL(ttl)
			}

			if watch {
				return watchQuery(cmd, client, binding, input)
			}

			ctx := cmd.Context()

			fetch := binding.Fetch
			if refresh {
				fetch = binding.Refetch
			}

			result, err := fetch(ctx, input)
			if err != nil {
				return err
			}

			return renderPayload(result.Data)
		}),
	}

	cmd.Flags().StringArrayVarP(&params, "param", "p", nil, "path parameter (key=value, repeatable)")
	cmd.Flags().StringArrayVarP(&query, "query", "q", nil, "query parameter (key=value, repeatable)")
	cmd.Flags().StringArrayVarP(&headers, "header", "H", nil, "request header (key=value, repeatable)")
	cmd.Flags().DurationVar(&ttl, "ttl", 0, "freshness window for this query (default from config)")
	cmd.Flags().BoolVar(&refresh, "refresh", false, "force a fetch even when fresh state exists")
	cmd.Flags().BoolVarP(&watch, "watch", "w", false, "subscribe and print state transitions until interrupted")

	return cmd
}

// watchQuery subscribes to the query's key, runs the initial fetch,
// and streams transitions until the command is interrupted.
func watchQuery(cmd *cobra.Command, client *apiq.Client, binding *apiq.Query, input *apiq.Input) error {
	watchable, ok := client.Store().(*store.Store)
	if !ok {
		return ErrWatchUnsupported
	}

	key, err := binding.Key(input)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	unsubscribe := watchable.Subscribe(key, printTransition)
	defer unsubscribe()

	fmt.Fprintf(os.Stderr, "Watching %s (ctrl-c to stop)\n", key)

	// The outcome arrives as a transition; a fetch error would be
	// printed twice if returned here.
	_, _ = binding.Fetch(ctx, input)

	<-ctx.Done()

	return nil
}

// printTransition prints one observed state transition.
func printTransition(event store.Event) {
	stamp := time.Now().Format("15:04:05")

	switch {
	case event.Result != nil && event.Result.Err != nil:
		fmt.Printf("%s  %s  %s  %v\n", stamp, event.Key, event.Result.Status, event.Result.Err)
	case event.Result != nil:
		fmt.Printf("%s  %s  %s  %d bytes\n", stamp, event.Key, event.Result.Status, len(event.Result.Data))
	case event.Paged != nil:
		fmt.Printf("%s  %s  %s  %d pages\n", stamp, event.Key, event.Paged.Status, len(event.Paged.Pages))
	default:
		fmt.Printf("%s  %s  invalidated\n", stamp, event.Key)
	}
}
