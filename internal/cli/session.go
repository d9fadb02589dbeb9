package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/marketdb/internal/app"
	"github.com/roach88/marketdb/internal/config"
	"github.com/roach88/marketdb/internal/data"
	"github.com/roach88/marketdb/internal/logging"
)

// session is an open store plus the settings it was opened with.
type session struct {
	cfg     config.Config
	client  data.Client
	logger  *slog.Logger
	closers []io.Closer
}

func (s *session) Close() error {
	var errs []error
	if s.client != nil {
		errs = append(errs, s.client.Close())
	}
	for _, c := range s.closers {
		errs = append(errs, c.Close())
	}
	return errors.Join(errs...)
}

// loadConfig resolves config from the file, environment and global flags.
func (o *RootOptions) loadConfig() (config.Config, error) {
	flags := config.FlagOverrides{}
	if o.Backend != "" {
		flags.Backend = &o.Backend
	}
	if o.DatabaseURL != "" {
		flags.DatabaseURL = &o.DatabaseURL
	}
	if o.DataFile != "" {
		flags.DataFile = &o.DataFile
	}
	if o.Verbose {
		debug := "debug"
		flags.LogLevel = &debug
	}

	cfg, err := config.Load(config.LoadOptions{
		ConfigPath: o.ConfigPath,
		Env:        o.Env,
		Flags:      flags,
	})
	if err != nil {
		return config.Config{}, WrapExitError(ExitCommandError, "failed to load config", err)
	}
	return cfg, nil
}

// open loads config, builds the logger and opens the store. Logs go to the
// command's stderr unless a log file is configured.
func (o *RootOptions) open(cmd *cobra.Command) (*session, error) {
	cfg, err := o.loadConfig()
	if err != nil {
		return nil, err
	}

	logger, logCloser, err := logging.New(cfg.Logging, cmd.ErrOrStderr())
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to configure logging", err)
	}

	client, err := app.Open(commandContext(cmd), cfg, logger, app.Options{})
	if err != nil {
		_ = logCloser.Close()
		return nil, WrapExitError(ExitCommandError, "failed to open store", err)
	}
	logger.Debug("store ready", "backend", string(client.Backend()))

	return &session{cfg: cfg, client: client, logger: logger, closers: []io.Closer{logCloser}}, nil
}

func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}

// model returns the handler for name, as a command error when the model is
// not in the schema.
func (s *session) model(name string) (data.Model, error) {
	m, err := s.client.Model(name)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, fmt.Sprintf("unknown model %q (see 'marketdb models')", name), err)
	}
	return m, nil
}

// parseObject decodes a JSON object flag. An empty value yields nil.
func parseObject(flag, value string) (map[string]any, error) {
	if strings.TrimSpace(value) == "" {
		return nil, nil
	}
	var out map[string]any
	if err := json.Unmarshal([]byte(value), &out); err != nil {
		return nil, WrapExitError(ExitCommandError, fmt.Sprintf("invalid --%s JSON", flag), err)
	}
	if out == nil {
		return nil, NewExitError(ExitCommandError, fmt.Sprintf("--%s must be a JSON object", flag))
	}
	return out, nil
}

// parseJSON decodes any JSON value flag. An empty value yields nil.
func parseJSON(flag, value string) (any, error) {
	if strings.TrimSpace(value) == "" {
		return nil, nil
	}
	var out any
	if err := json.Unmarshal([]byte(value), &out); err != nil {
		return nil, WrapExitError(ExitCommandError, fmt.Sprintf("invalid --%s JSON", flag), err)
	}
	return out, nil
}

// reportError writes a failed operation in the configured format and
// returns the matching exit error.
func reportError(f *OutputFormatter, err error) error {
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		_ = f.Error("E_COMMAND", exitErr.Error(), nil)
		return err
	}

	kind := data.Kind(err)
	_ = f.Error(kind, err.Error(), nil)

	code := ExitFailure
	switch kind {
	case data.KindInvalidFilter, data.KindInvalidOrder, data.KindUnknownModel, data.KindUnknownOp:
		code = ExitCommandError
	}
	return WrapExitError(code, kind, err)
}
