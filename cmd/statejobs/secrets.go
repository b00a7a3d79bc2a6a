package main

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/amishk599/statejobs/internal/secrets"
)

var secretsCmd = &cobra.Command{
	Use:   "secrets",
	Short: "Manage credentials in the OS keychain",
}

var secretsSetCmd = &cobra.Command{
	Use:   "set <account>",
	Short: "Store the AI API key for an account",
	Long:  "Reads an API key from stdin and stores it in the OS keychain; point ai.keyring_account at the same account.",
	Args:  cobra.ExactArgs(1),
	RunE:  runSecretsSet,
}

func init() {
	rootCmd.AddCommand(secretsCmd)
	secretsCmd.AddCommand(secretsSetCmd)
}

func runSecretsSet(cmd *cobra.Command, args []string) error {
	fmt.Fprint(os.Stderr, "API key: ")
	line, err := bufio.NewReader(os.Stdin).ReadString('\n')
	if err != nil && line == "" {
		return fmt.Errorf("reading key: %w", err)
	}
	key := strings.TrimSpace(line)
	if key == "" {
		return fmt.Errorf("empty key")
	}
	if err := secrets.StoreAPIKey(args[0], key); err != nil {
		return err
	}
	fmt.Fprintf(os.Stderr, "stored key for %q in service %q\n", args[0], secrets.KeyringService)
	return nil
}
