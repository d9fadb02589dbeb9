package cli

import (
	"errors"

	"github.com/spf13/cobra"

	"github.com/roach88/marketdb/internal/market"
	"github.com/roach88/marketdb/internal/notify"
)

// ProductOptions holds flags for the product subcommands.
type ProductOptions struct {
	*RootOptions
	As   string // acting user id
	Role string // acting user role
	Data string // update patch
}

// NewProductCommand creates the product command group.
func NewProductCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ProductOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "product",
		Short: "Read and modify products as a marketplace user",
		Long: `Read and modify products with ownership checks.

Only the product's seller or a SUPER_ADMIN may update or delete it. After an
update the seller is sent a "Product updated" mail through the log mailer.`,
	}
	cmd.PersistentFlags().StringVar(&opts.As, "as", "", "id of the acting user")
	cmd.PersistentFlags().StringVar(&opts.Role, "role", "", "role of the acting user")

	get := &cobra.Command{
		Use:   "get <id>",
		Short: "Show a product",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runProduct(opts, cmd, func(svc *market.ProductService) (any, error) {
				return svc.Get(commandContext(cmd), args[0])
			})
		},
	}

	update := &cobra.Command{
		Use:   "update <id>",
		Short: "Update a product and notify its seller",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			patch, err := parseObject("data", opts.Data)
			if err != nil {
				return reportError(opts.formatter(cmd), err)
			}
			return runProduct(opts, cmd, func(svc *market.ProductService) (any, error) {
				return svc.Update(commandContext(cmd), opts.actor(), args[0], patch)
			})
		},
	}
	update.Flags().StringVar(&opts.Data, "data", "", "fields to change as a JSON object")
	_ = update.MarkFlagRequired("data")

	del := &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a product",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runProduct(opts, cmd, func(svc *market.ProductService) (any, error) {
				if err := svc.Delete(commandContext(cmd), opts.actor(), args[0]); err != nil {
					return nil, err
				}
				return map[string]any{"success": true}, nil
			})
		},
	}

	cmd.AddCommand(get, update, del)
	return cmd
}

func (o *ProductOptions) actor() market.Actor {
	return market.Actor{ID: o.As, Role: o.Role}
}

func runProduct(opts *ProductOptions, cmd *cobra.Command, fn func(*market.ProductService) (any, error)) error {
	f := opts.formatter(cmd)
	s, err := opts.open(cmd)
	if err != nil {
		return reportError(f, err)
	}
	defer s.Close()

	mailer := notify.NewLogNotifier(s.cfg.Mail.From, s.logger)
	svc, err := market.NewProductService(s.client, mailer, s.logger)
	if err != nil {
		return reportError(f, err)
	}

	out, err := fn(svc)
	switch {
	case errors.Is(err, market.ErrUnauthenticated):
		_ = f.Error("unauthenticated", err.Error(), nil)
		return WrapExitError(ExitFailure, "unauthenticated", err)
	case errors.Is(err, market.ErrForbidden):
		_ = f.Error("forbidden", err.Error(), nil)
		return WrapExitError(ExitFailure, "forbidden", err)
	case err != nil:
		return reportError(f, err)
	}
	return f.Success(out)
}
