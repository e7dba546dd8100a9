package commands

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/fivetwenty-io/apiq/internal/constants"
)

const maskedTokenEdge = 4

// NewTokenCommand creates the token command group.
func NewTokenCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Manage the access token",
		Long:  "Commands for inspecting and updating the stored API access token",
	}

	cmd.AddCommand(newTokenStatusCommand())
	cmd.AddCommand(newTokenSetCommand())

	return cmd
}

func newTokenStatusCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show access token status",
		Long:  "Display whether an access token is configured, with a masked preview",
		RunE: func(cmd *cobra.Command, args []string) error {
			token := viper.GetString("token")
			if token == "" {
				return constants.ErrNoTokenConfigured
			}

			endpoint := viper.GetString("base_url")
			if endpoint == "" {
				endpoint = NotAvailable
			}

			status := map[string]interface{}{
				"authenticated": true,
				"endpoint":      endpoint,
				"token":         maskToken(token),
			}

			return renderStructured(status, func() error {
				return renderObjectTable(status)
			})
		},
	}
}

func newTokenSetCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "set TOKEN",
		Short: "Store an access token in the config file",
		Long:  "Write the given access token to the config file, replacing any existing one",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			config := loadConfig()
			config.Token = args[0]

			err := saveConfig(config)
			if err != nil {
				return err
			}

			fmt.Println("Token saved")

			return nil
		},
	}
}

// maskToken keeps the edges of long tokens visible for identification.
func maskToken(token string) string {
	if len(token) <= 2*maskedTokenEdge {
		return Masked
	}

	return token[:maskedTokenEdge] + "..." + token[len(token)-maskedTokenEdge:]
}
