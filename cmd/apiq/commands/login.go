package commands

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/term"
)

// Static errors for err113 compliance.
var ErrEndpointRequired = errors.New("an API endpoint is required")

// NewLoginCommand creates the login command.
func NewLoginCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "login",
		Short: "Configure the API endpoint and access token",
		Long:  "Store the API endpoint, access token, and route table location in the config file",
		RunE: func(cmd *cobra.Command, args []string) error {
			endpoint := viper.GetString("base_url")
			if endpoint == "" {
				reader := bufio.NewReader(os.Stdin)
				fmt.Print("API endpoint: ")
				endpoint, _ = reader.ReadString('\n')
				endpoint = strings.TrimSpace(endpoint)
			}

			if endpoint == "" {
				return ErrEndpointRequired
			}

			token := viper.GetString("token")
			if token == "" {
				fmt.Print("Access token (empty for anonymous): ")

				byteToken, err := term.ReadPassword(int(syscall.Stdin))
				if err != nil {
					return fmt.Errorf("failed to read token: %w", err)
				}

				token = strings.TrimSpace(string(byteToken))

				fmt.Println()
			}

			config := loadConfig()
			config.BaseURL = endpoint
			config.Token = token

			if routesFile := viper.GetString("routes_file"); routesFile != "" {
				config.RoutesFile = routesFile
			}

			err := saveConfig(config)
			if err != nil {
				return fmt.Errorf("failed to save configuration: %w", err)
			}

			fmt.Printf("Logged in to %s\n", endpoint)

			if config.RoutesFile == "" {
				fmt.Println("No route table configured, set routes_file or pass --routes before querying")

				return nil
			}

			routes, err := loadRoutes()
			if err != nil {
				// Non-fatal: the endpoint and token are already saved.
				fmt.Printf("Warning: could not load route table: %v\n", err)

				return nil
			}

			fmt.Printf("Route table: %d routes\n", len(routes.All()))

			return nil
		},
	}
}

// NewLogoutCommand creates the logout command.
func NewLogoutCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Log out of the configured API",
		Long:  "Clear the stored access token, keeping the endpoint and route table",
		RunE: func(cmd *cobra.Command, args []string) error {
			config := loadConfig()
			config.Token = ""

			err := saveConfig(config)
			if err != nil {
				return fmt.Errorf("failed to save configuration: %w", err)
			}

			fmt.Println("Logged out")

			return nil
		},
	}
}
