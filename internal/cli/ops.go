package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/marketdb/internal/data"
	"github.com/roach88/marketdb/internal/record"
)

// requestFlags are the raw JSON flags shared by the store-operation
// commands.
type requestFlags struct {
	Where   string
	Data    string
	Create  string
	Update  string
	OrderBy string
	Take    int
}

// request decodes the flags into a data.Request for op. Take is only set
// when --take was given.
func (f *requestFlags) request(cmd *cobra.Command, op data.Op) (data.Request, error) {
	req := data.Request{Op: op}
	var err error
	if req.Where, err = parseObject("where", f.Where); err != nil {
		return req, err
	}
	if req.Data, err = parseObject("data", f.Data); err != nil {
		return req, err
	}
	if req.Create, err = parseObject("create", f.Create); err != nil {
		return req, err
	}
	if req.Update, err = parseObject("update", f.Update); err != nil {
		return req, err
	}
	if req.OrderBy, err = parseOrderFlag(f.OrderBy); err != nil {
		return req, err
	}
	if flag := cmd.Flags().Lookup("take"); flag != nil && flag.Changed {
		take := f.Take
		req.Take = &take
	}
	return req, nil
}

// parseOrderFlag accepts JSON ({"price":"desc"} or a list of such objects)
// or the shorthand "field" / "field:dir".
func parseOrderFlag(value string) (any, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil, nil
	}
	if strings.HasPrefix(value, "{") || strings.HasPrefix(value, "[") {
		return parseJSON("order-by", value)
	}
	field, dir, ok := strings.Cut(value, ":")
	if !ok {
		dir = "asc"
	}
	return map[string]any{field: dir}, nil
}

// runRequest opens the store, runs req against model and prints the result.
func runRequest(opts *RootOptions, cmd *cobra.Command, model string, req data.Request) error {
	f := opts.formatter(cmd)

	s, err := opts.open(cmd)
	if err != nil {
		return reportError(f, err)
	}
	defer s.Close()

	m, err := s.model(model)
	if err != nil {
		return reportError(f, err)
	}

	f.VerboseLog("%s %s on %s backend", req.Op, model, s.client.Backend())
	resp, err := data.Do(commandContext(cmd), m, req)
	if err != nil {
		return reportError(f, err)
	}
	return f.Success(resp.Value())
}

// NewModelsCommand creates the models command.
func NewModelsCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "models",
		Short: "List the models in the schema",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			f := opts.formatter(cmd)
			s, err := opts.open(cmd)
			if err != nil {
				return reportError(f, err)
			}
			defer s.Close()

			type modelInfo struct {
				Name string   `json:"name"`
				Key  []string `json:"key"`
			}
			var models []modelInfo
			for _, m := range s.client.Schema().Models() {
				models = append(models, modelInfo{Name: m.Name, Key: m.Key})
			}

			if opts.Format == "json" {
				return f.Success(models)
			}
			w := cmd.OutOrStdout()
			for _, m := range models {
				fmt.Fprintf(w, "%-18s %s\n", m.Name, strings.Join(m.Key, ", "))
			}
			return nil
		},
	}
}

// NewFindCommand creates the find command.
func NewFindCommand(opts *RootOptions) *cobra.Command {
	var (
		flags  requestFlags
		first  bool
		unique bool
	)
	cmd := &cobra.Command{
		Use:   "find <model>",
		Short: "Find records",
		Long: `Find records matching a filter.

Without --first or --unique the command prints every match, ordered by
--order-by and limited by --take. A negative --take keeps the last records.

Examples:
  marketdb find product --where '{"featured":true}' --order-by price:desc --take 10
  marketdb find user --unique --where '{"email":"admin@localhost"}'
  marketdb find user --where '{"OR":[{"role":"SUPER_ADMIN"},{"isApproved":true}]}'`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			op := data.OpFindMany
			switch {
			case first && unique:
				return NewExitError(ExitCommandError, "--first and --unique are mutually exclusive")
			case first:
				op = data.OpFindFirst
			case unique:
				op = data.OpFindUnique
			}
			req, err := flags.request(cmd, op)
			if err != nil {
				return reportError(opts.formatter(cmd), err)
			}
			return runRequest(opts, cmd, args[0], req)
		},
	}
	cmd.Flags().StringVar(&flags.Where, "where", "", "filter as a JSON object")
	cmd.Flags().StringVar(&flags.OrderBy, "order-by", "", `ordering as JSON or "field[:asc|desc]"`)
	cmd.Flags().IntVar(&flags.Take, "take", 0, "keep the first n records (last |n| when negative)")
	cmd.Flags().BoolVar(&first, "first", false, "return the first match only")
	cmd.Flags().BoolVar(&unique, "unique", false, "return the record matching the filter, or null")
	return cmd
}

// NewCountCommand creates the count command.
func NewCountCommand(opts *RootOptions) *cobra.Command {
	var flags requestFlags
	cmd := &cobra.Command{
		Use:   "count <model>",
		Short: "Count matching records",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			req, err := flags.request(cmd, data.OpCount)
			if err != nil {
				return reportError(opts.formatter(cmd), err)
			}
			return runRequest(opts, cmd, args[0], req)
		},
	}
	cmd.Flags().StringVar(&flags.Where, "where", "", "filter as a JSON object")
	return cmd
}

// NewCreateCommand creates the create command.
func NewCreateCommand(opts *RootOptions) *cobra.Command {
	var flags requestFlags
	cmd := &cobra.Command{
		Use:   "create <model>",
		Short: "Create a record",
		Long: `Create a record from a JSON object.

The id, timestamps and model defaults are filled in when absent.

Example:
  marketdb create product --data '{"title":"Lamp","price":12,"sellerId":"..."}'`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			req, err := flags.request(cmd, data.OpCreate)
			if err != nil {
				return reportError(opts.formatter(cmd), err)
			}
			return runRequest(opts, cmd, args[0], req)
		},
	}
	cmd.Flags().StringVar(&flags.Data, "data", "{}", "record fields as a JSON object")
	return cmd
}

// NewUpdateCommand creates the update command.
func NewUpdateCommand(opts *RootOptions) *cobra.Command {
	var flags requestFlags
	cmd := &cobra.Command{
		Use:   "update <model>",
		Short: "Update the first matching record",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			req, err := flags.request(cmd, data.OpUpdate)
			if err != nil {
				return reportError(opts.formatter(cmd), err)
			}
			return runRequest(opts, cmd, args[0], req)
		},
	}
	cmd.Flags().StringVar(&flags.Where, "where", "", "filter as a JSON object")
	cmd.Flags().StringVar(&flags.Data, "data", "", "fields to change as a JSON object")
	_ = cmd.MarkFlagRequired("where")
	_ = cmd.MarkFlagRequired("data")
	return cmd
}

// NewUpsertCommand creates the upsert command.
func NewUpsertCommand(opts *RootOptions) *cobra.Command {
	var flags requestFlags
	cmd := &cobra.Command{
		Use:   "upsert <model>",
		Short: "Update the first matching record or create one",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			req, err := flags.request(cmd, data.OpUpsert)
			if err != nil {
				return reportError(opts.formatter(cmd), err)
			}
			return runRequest(opts, cmd, args[0], req)
		},
	}
	cmd.Flags().StringVar(&flags.Where, "where", "", "filter as a JSON object")
	cmd.Flags().StringVar(&flags.Create, "create", "{}", "fields for a new record as a JSON object")
	cmd.Flags().StringVar(&flags.Update, "update", "{}", "fields to change on a match as a JSON object")
	_ = cmd.MarkFlagRequired("where")
	return cmd
}

// NewDeleteCommand creates the delete command.
func NewDeleteCommand(opts *RootOptions) *cobra.Command {
	var (
		flags requestFlags
		many  bool
	)
	cmd := &cobra.Command{
		Use:   "delete <model>",
		Short: "Delete matching records",
		Long: `Delete the first record matching --where, or every match with --many.

With --many the command prints the number of records removed.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			op := data.OpDelete
			if many {
				op = data.OpDeleteMany
			}
			req, err := flags.request(cmd, op)
			if err != nil {
				return reportError(opts.formatter(cmd), err)
			}
			return runRequest(opts, cmd, args[0], req)
		},
	}
	cmd.Flags().StringVar(&flags.Where, "where", "", "filter as a JSON object")
	cmd.Flags().BoolVar(&many, "many", false, "delete every matching record")
	return cmd
}

// withoutPassword drops the password hash before a user is printed.
func withoutPassword(user record.Record) record.Record {
	if user == nil {
		return nil
	}
	out := user.Clone()
	delete(out, "hashedPassword")
	return out
}
