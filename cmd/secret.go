package cmd

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/Tiliavir/ticket-timer/internal/config"
)

var secretCmd = &cobra.Command{
	Use:   "secret",
	Short: "Manage service secrets in the OS keychain",
}

var secretSetCmd = &cobra.Command{
	Use:       "set <freshdesk|jira|teamwork>",
	Short:     "Read a secret from stdin and store it in the keychain",
	Long:      `Stores the API key, password or token for a service whose config section sets credential = "keyring".`,
	Args:      cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
	ValidArgs: []string{"freshdesk", "jira", "teamwork"},
	RunE:      runSecretSet,
}

func init() {
	secretCmd.AddCommand(secretSetCmd)
}

func runSecretSet(cmd *cobra.Command, args []string) error {
	service := args[0]
	fmt.Fprintf(cmd.ErrOrStderr(), "Enter %s secret: ", service)
	data, err := io.ReadAll(cmd.InOrStdin())
	if err != nil {
		return withCode(exitUsage, fmt.Errorf("reading secret: %w", err))
	}
	secret := strings.TrimSpace(string(data))
	if secret == "" {
		return withCode(exitUsage, fmt.Errorf("empty secret, nothing stored"))
	}
	if err := config.StoreSecret(service, secret); err != nil {
		return withCode(exitUsage, fmt.Errorf("storing %s secret: %w", service, err))
	}
	fmt.Fprintln(cmd.ErrOrStderr())
	fmt.Fprintf(cmd.OutOrStdout(), "Stored %s secret in the keychain under %q\n", service, config.KeyringService)
	return nil
}
