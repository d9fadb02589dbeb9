package harness

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/roach88/marketdb/internal/data"
	"github.com/roach88/marketdb/internal/jsonstore"
	"github.com/roach88/marketdb/internal/record"
	"github.com/roach88/marketdb/internal/schema"
	"github.com/roach88/marketdb/internal/testutil"
)

// Harness executes one scenario against one store.
type Harness struct {
	store  *jsonstore.Store
	logger *slog.Logger
}

// Options configures Run.
type Options struct {
	// Schema defaults to the embedded schema.
	Schema *schema.Schema
	// Logger receives per-step debug output. Defaults to discarding.
	Logger *slog.Logger
}

// Run executes a scenario and returns the result.
//
// Each scenario runs in a fresh store file in a temporary directory that is
// removed afterwards. An error is returned only when the scenario could not
// be executed (setup failed, store unavailable); failed expectations are
// reported in the result.
func Run(scenario *Scenario) (*Result, error) {
	return RunWithOptions(context.Background(), scenario, Options{})
}

// RunWithOptions is Run with a context and options.
func RunWithOptions(ctx context.Context, scenario *Scenario, opts Options) (result *Result, err error) {
	if opts.Schema == nil {
		if opts.Schema, err = schema.Load(); err != nil {
			return nil, fmt.Errorf("load schema: %w", err)
		}
	}
	if opts.Logger == nil {
		opts.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	dir, err := os.MkdirTemp("", "marketdb-scenario-*")
	if err != nil {
		return nil, fmt.Errorf("create scenario directory: %w", err)
	}
	defer os.RemoveAll(dir)

	var ids data.IDGenerator = data.NewSequenceGenerator("id")
	if len(scenario.IDs) > 0 {
		ids = testutil.NewFixedGenerator(scenario.IDs...)
	}
	st, err := jsonstore.Open(jsonstore.Options{
		Path:       filepath.Join(dir, "store.json"),
		Schema:     opts.Schema,
		Clock:      testutil.NewDeterministicClock(),
		IDs:        ids,
		StrictRead: true,
		Logger:     opts.Logger,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open scenario store: %w", err)
	}
	defer st.Close()

	// FixedGenerator panics once its ids run out.
	defer func() {
		if r := recover(); r != nil {
			result, err = nil, fmt.Errorf("scenario %s: %v", scenario.Name, r)
		}
	}()

	h := &Harness{store: st, logger: opts.Logger}
	result = NewResult()

	if err := h.executeSetup(ctx, scenario.Setup, result); err != nil {
		return nil, fmt.Errorf("failed to execute setup: %w", err)
	}
	h.executeSteps(ctx, scenario.Steps, result)

	for _, msg := range EvaluateAssertions(ctx, result, scenario.Assertions, st) {
		result.AddError(msg)
	}

	result.Document = st.Snapshot()
	result.Snapshot, err = jsonstore.Encode(result.Document, opts.Schema)
	if err != nil {
		return nil, fmt.Errorf("encode final state: %w", err)
	}
	return result, nil
}

// executeSetup runs setup steps. The first failure aborts the scenario.
func (h *Harness) executeSetup(ctx context.Context, setup []Step, result *Result) error {
	for i, step := range setup {
		resp, err := h.execute(ctx, step)
		event := traceEvent(step, resp, err)
		result.AddTrace(event)
		if err != nil {
			return fmt.Errorf("setup step %d (%s.%s): %w", i, step.Model, step.Op, err)
		}
		h.logger.Debug("setup step completed", "step", i, "model", step.Model, "op", step.Op)
	}
	return nil
}

// executeSteps runs flow steps and checks each expect clause.
func (h *Harness) executeSteps(ctx context.Context, steps []Step, result *Result) {
	for i, step := range steps {
		resp, err := h.execute(ctx, step)
		event := traceEvent(step, resp, err)
		seq := result.AddTrace(event)

		for _, msg := range checkExpect(step, resp, err) {
			result.AddError(fmt.Sprintf("step %d (%s.%s, seq %d): %s", i, step.Model, step.Op, seq, msg))
		}

		h.logger.Debug("step completed",
			"step", i,
			"model", step.Model,
			"op", step.Op,
			"outcome", event.Outcome,
		)
	}
}

func (h *Harness) execute(ctx context.Context, step Step) (data.Response, error) {
	m, err := h.store.Model(step.Model)
	if err != nil {
		return data.Response{Op: data.Op(step.Op)}, err
	}
	return data.Do(ctx, m, step.Request())
}

func traceEvent(step Step, resp data.Response, err error) TraceEvent {
	event := TraceEvent{
		Model:   step.Model,
		Op:      step.Op,
		Args:    step.args(),
		Outcome: "ok",
	}
	if err != nil {
		event.Outcome = data.Kind(err)
		return event
	}
	value := resp.Value()
	if r, ok := value.(record.Record); ok && r == nil {
		return event
	}
	if v, serr := record.Serialize(value); serr == nil {
		event.Result = v
	}
	return event
}
