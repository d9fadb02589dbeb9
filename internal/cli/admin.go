package cli

import (
	"github.com/spf13/cobra"

	"github.com/roach88/marketdb/internal/seed"
)

// NewSeedAdminCommand creates the seed-admin command.
func NewSeedAdminCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "seed-admin",
		Short: "Create or reset the admin account",
		Long: `Create the admin account from ADMIN_EMAIL, ADMIN_PASSWORD and ADMIN_NAME,
or reset it when the email is already registered.

The account gets the SUPER_ADMIN role, is approved, and has its email marked
verified. Opening the store already creates a missing admin; this command
also resets the name and password of an existing one.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			f := opts.formatter(cmd)
			s, err := opts.open(cmd)
			if err != nil {
				return reportError(f, err)
			}
			defer s.Close()

			users, err := s.model("user")
			if err != nil {
				return reportError(f, err)
			}
			user, err := seed.UpsertAdmin(commandContext(cmd), users, s.cfg.Admin, nil)
			if err != nil {
				return reportError(f, err)
			}
			s.logger.Info("admin account ready", "email", s.cfg.Admin.Email)
			return f.Success(withoutPassword(user))
		},
	}
}
