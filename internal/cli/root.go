package cli

import (
	"fmt"
	"slices"

	"github.com/spf13/cobra"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	Verbose    bool
	Format     string // "json" | "text"
	ConfigPath string

	// Store overrides; empty values leave the config untouched.
	Backend     string
	DatabaseURL string
	DataFile    string

	// Env replaces the process environment when non-nil (for testing).
	Env map[string]string
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

// NewRootCommand creates the root command for the marketdb CLI.
func NewRootCommand() *cobra.Command {
	return newRootCommand(&RootOptions{})
}

func newRootCommand(opts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "marketdb",
		Short: "marketdb - marketplace data store",
		Long: `Query and modify the marketplace data store.

The store is SQLite when DATABASE_URL points at a reachable SQLite database
and the JSON file store (.data/prisma-store.json) otherwise. The admin
account from ADMIN_EMAIL, ADMIN_PASSWORD and ADMIN_NAME is created on first
use.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !isValidFormat(opts.Format) {
				return NewExitError(ExitCommandError, fmt.Sprintf("invalid format %q: must be one of %v", opts.Format, ValidFormats))
			}
			return nil
		},
	}

	// Global flags
	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (json|text)")
	cmd.PersistentFlags().StringVar(&opts.ConfigPath, "config", "", "path to a YAML or TOML config file")
	cmd.PersistentFlags().StringVar(&opts.Backend, "backend", "", "store backend (auto|sqlite|json)")
	cmd.PersistentFlags().StringVar(&opts.DatabaseURL, "database-url", "", "SQLite database path (overrides DATABASE_URL)")
	cmd.PersistentFlags().StringVar(&opts.DataFile, "data-file", "", "JSON store file (overrides MARKETDB_DATA_FILE)")

	// Add subcommands
	cmd.AddCommand(NewModelsCommand(opts))
	cmd.AddCommand(NewFindCommand(opts))
	cmd.AddCommand(NewCountCommand(opts))
	cmd.AddCommand(NewCreateCommand(opts))
	cmd.AddCommand(NewUpdateCommand(opts))
	cmd.AddCommand(NewUpsertCommand(opts))
	cmd.AddCommand(NewDeleteCommand(opts))
	cmd.AddCommand(NewSeedAdminCommand(opts))
	cmd.AddCommand(NewProductCommand(opts))
	cmd.AddCommand(NewTestCommand(opts))

	return cmd
}

// isValidFormat checks if the format is one of the allowed values.
func isValidFormat(format string) bool {
	return slices.Contains(ValidFormats, format)
}

func (o *RootOptions) formatter(cmd *cobra.Command) *OutputFormatter {
	return &OutputFormatter{
		Format:    o.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   o.Verbose,
	}
}
