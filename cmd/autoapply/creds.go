package main

import (
	"bufio"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/jonathan/autoapply/internal/config"
	"github.com/jonathan/autoapply/internal/types"
)

var credsCommand = &cobra.Command{
	Use:   "creds",
	Short: "Manage portal passwords in the OS keychain",
}

var credsSetCommand = &cobra.Command{
	Use:   "set",
	Short: "Store a portal password (read from stdin)",
	Long: `Stores the password for --portal/--email in the OS keychain. The password is read
from the first line of stdin. Runs use it when the portal's PASSWORD variable is unset.`,
	RunE: credsSetCmd,
}

var credsDeleteCommand = &cobra.Command{
	Use:   "delete",
	Short: "Remove a stored portal password",
	RunE:  credsDeleteCmd,
}

var (
	credsPortal string
	credsEmail  string
)

func init() {
	for _, c := range []*cobra.Command{credsSetCommand, credsDeleteCommand} {
		c.Flags().StringVar(&credsPortal, "portal", "", "Portal: dice, linkedin or indeed")
		c.Flags().StringVar(&credsEmail, "email", "", "Account email")
		_ = c.MarkFlagRequired("portal")
		_ = c.MarkFlagRequired("email")
		credsCommand.AddCommand(c)
	}

	rootCmd.AddCommand(credsCommand)
}

func credsSetCmd(cmd *cobra.Command, _ []string) error {
	p, err := types.ParsePortal(credsPortal)
	if err != nil {
		return err
	}

	_, _ = fmt.Fprintf(cmd.ErrOrStderr(), "Password for %s (%s): ", credsEmail, p)
	line, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
	if err != nil && line == "" {
		return fmt.Errorf("failed to read password: %w", err)
	}
	password := strings.TrimRight(line, "\r\n")

	if err := config.SetKeyringPassword(p, credsEmail, password); err != nil {
		return fmt.Errorf("failed to store password: %w", err)
	}
	_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Stored password for %s\n", config.KeyringAccount(p, credsEmail))
	return nil
}

func credsDeleteCmd(cmd *cobra.Command, _ []string) error {
	p, err := types.ParsePortal(credsPortal)
	if err != nil {
		return err
	}
	if err := config.DeleteKeyringPassword(p, credsEmail); err != nil {
		return fmt.Errorf("failed to delete password: %w", err)
	}
	_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Deleted password for %s\n", config.KeyringAccount(p, credsEmail))
	return nil
}
