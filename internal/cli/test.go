package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/marketdb/internal/harness"
)

// TestOptions holds flags for the test command.
type TestOptions struct {
	*RootOptions
	Update bool   // rewrite golden files from the current run
	Filter string // glob matched against scenario file names
}

// ScenarioResult is the outcome of one scenario file.
type ScenarioResult struct {
	Name   string   `json:"name"`
	Pass   bool     `json:"pass"`
	Errors []string `json:"errors,omitempty"`
}

// TestResult summarises a test run.
type TestResult struct {
	Scenarios []ScenarioResult `json:"scenarios"`
	Passed    int              `json:"passed"`
	Failed    int              `json:"failed"`
	Total     int              `json:"total"`
}

func (r *TestResult) add(s ScenarioResult) {
	r.Scenarios = append(r.Scenarios, s)
	r.Total++
	if s.Pass {
		r.Passed++
	} else {
		r.Failed++
	}
}

// NewTestCommand creates the test command.
func NewTestCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &TestOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "test <scenarios-dir>",
		Short: "Run store scenarios",
		Long: `Run YAML scenarios against a fresh JSON store each.

Every step's expectation and every assertion is checked. When a golden file
exists at <scenarios-dir>/golden/<name>.golden, the persisted store file must
match it byte for byte.

Exit codes:
  0 - All scenarios passed
  1 - One or more scenarios failed
  2 - Command error (invalid paths, etc.)

Examples:
  marketdb test ./scenarios
  marketdb test ./scenarios --filter "product-*"
  marketdb test ./scenarios --update
  marketdb test ./scenarios --format json`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTests(opts, args[0], cmd)
		},
	}

	cmd.Flags().BoolVar(&opts.Update, "update", false, "regenerate golden files")
	cmd.Flags().StringVar(&opts.Filter, "filter", "", "filter scenarios by glob pattern")

	return cmd
}

func runTests(opts *TestOptions, scenariosDir string, cmd *cobra.Command) error {
	info, err := os.Stat(scenariosDir)
	if err != nil || !info.IsDir() {
		return NewExitError(ExitCommandError, fmt.Sprintf("scenarios directory not found: %s", scenariosDir))
	}

	files, err := findScenarioFiles(scenariosDir, opts.Filter)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to find scenarios", err)
	}

	r := &scenarioRunner{opts: opts, cmd: cmd}
	if opts.Format != "json" {
		r.progress = cmd.OutOrStdout()
	}

	result := TestResult{Scenarios: []ScenarioResult{}}
	for _, file := range files {
		result.add(r.run(file))
	}

	if opts.Format == "json" {
		return writeTestJSON(cmd.OutOrStdout(), result)
	}
	return writeTestSummary(cmd.OutOrStdout(), result)
}

// findScenarioFiles lists .yaml and .yml files under dir, skipping golden
// directories. A non-empty filter is matched against the base name without
// extension.
func findScenarioFiles(dir string, filter string) ([]string, error) {
	if filter != "" {
		if _, err := filepath.Match(filter, ""); err != nil {
			return nil, fmt.Errorf("invalid filter pattern: %w", err)
		}
	}

	var files []string
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		switch {
		case err != nil:
			return err
		case d.IsDir() && path != dir && d.Name() == "golden":
			return filepath.SkipDir
		case d.IsDir():
			return nil
		}

		ext := filepath.Ext(path)
		if ext != ".yaml" && ext != ".yml" {
			return nil
		}
		if filter != "" {
			if ok, _ := filepath.Match(filter, strings.TrimSuffix(d.Name(), ext)); !ok {
				return nil
			}
		}
		files = append(files, path)
		return nil
	})
	return files, err
}

// scenarioRunner runs scenario files and prints one progress line each when
// progress is set.
type scenarioRunner struct {
	opts     *TestOptions
	cmd      *cobra.Command
	progress io.Writer
}

func (r *scenarioRunner) run(file string) ScenarioResult {
	scenario, err := harness.LoadScenario(file)
	if err != nil {
		return r.failed(filepath.Base(file), fmt.Sprintf("failed to load scenario: %v", err))
	}

	runOpts := harness.Options{}
	if r.opts.Verbose {
		runOpts.Logger = slog.New(slog.NewTextHandler(r.cmd.ErrOrStderr(), &slog.HandlerOptions{Level: slog.LevelDebug}))
	}
	result, err := harness.RunWithOptions(commandContext(r.cmd), scenario, runOpts)
	if err != nil {
		return r.failed(scenario.Name, fmt.Sprintf("execution failed: %v", err))
	}

	golden := harness.GoldenFilePath(file)
	note := ""
	switch {
	case r.opts.Update:
		if err := harness.UpdateGoldenFile(result, golden); err != nil {
			return r.failed(scenario.Name, fmt.Sprintf("failed to update golden file: %v", err))
		}
		note = " (golden updated)"
	case fileExists(golden):
		match, err := harness.CompareWithGolden(result, golden)
		if err != nil {
			return r.failed(scenario.Name, fmt.Sprintf("golden comparison failed: %v", err))
		}
		if !match {
			msgs := append([]string{"store file does not match golden file (run with --update to regenerate)"}, result.Errors...)
			return r.failed(scenario.Name, msgs...)
		}
	}

	if !result.Pass {
		return r.failed(scenario.Name, result.Errors...)
	}
	if r.progress != nil {
		fmt.Fprintf(r.progress, "✓ %s%s\n", scenario.Name, note)
	}
	return ScenarioResult{Name: scenario.Name, Pass: true}
}

func (r *scenarioRunner) failed(name string, msgs ...string) ScenarioResult {
	if r.progress != nil {
		fmt.Fprintf(r.progress, "✗ %s\n", name)
		for _, msg := range msgs {
			fmt.Fprintf(r.progress, "  %s\n", msg)
		}
	}
	return ScenarioResult{Name: name, Errors: msgs}
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

func testFailure(result TestResult) error {
	if result.Failed == 0 {
		return nil
	}
	return NewExitError(ExitFailure, fmt.Sprintf("%d scenario(s) failed", result.Failed))
}

// writeTestJSON writes the run as an indented CLIResponse.
func writeTestJSON(w io.Writer, result TestResult) error {
	response := CLIResponse{Status: "ok", Data: result}
	failure := testFailure(result)
	if failure != nil {
		response.Status = "error"
		response.Error = &CLIError{Code: "E_TEST_FAILED", Message: failure.Error()}
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(response); err != nil {
		return err
	}
	return failure
}

// writeTestSummary writes the closing summary of a text run.
func writeTestSummary(w io.Writer, result TestResult) error {
	if result.Total == 0 {
		fmt.Fprintln(w, "No scenarios found.")
		return nil
	}

	fmt.Fprintln(w)
	fmt.Fprintf(w, "Test Summary: %d passed, %d failed, %d total\n", result.Passed, result.Failed, result.Total)
	if err := testFailure(result); err != nil {
		return err
	}
	fmt.Fprintln(w, "✓ All scenarios passed")
	return nil
}
