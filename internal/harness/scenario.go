package harness

import (
	"bytes"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/roach88/marketdb/internal/data"
)

// Scenario defines a store test scenario.
type Scenario struct {
	// Name uniquely identifies this scenario and names its golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// IDs are handed out in order to records created without an id. When
	// empty, ids are id-1, id-2, and so on.
	IDs []string `yaml:"ids,omitempty"`

	// Setup steps establish initial state. Any failure aborts the run.
	Setup []Step `yaml:"setup,omitempty"`

	// Steps are the operations under test.
	Steps []Step `yaml:"steps"`

	// Assertions validate the final trace and state.
	Assertions []Assertion `yaml:"assertions,omitempty"`
}

// Step is one model operation.
type Step struct {
	Model   string         `yaml:"model"`
	Op      string         `yaml:"op"`
	Where   map[string]any `yaml:"where,omitempty"`
	Data    map[string]any `yaml:"data,omitempty"`
	Create  map[string]any `yaml:"create,omitempty"`
	Update  map[string]any `yaml:"update,omitempty"`
	OrderBy any            `yaml:"orderBy,omitempty"`
	Take    *int           `yaml:"take,omitempty"`

	// Expect specifies the expected outcome. If nil, the step must succeed.
	Expect *Expect `yaml:"expect,omitempty"`
}

// Request converts the step to a data.Request.
func (s Step) Request() data.Request {
	return data.Request{
		Op:      data.Op(s.Op),
		Where:   s.Where,
		Data:    s.Data,
		Create:  s.Create,
		Update:  s.Update,
		OrderBy: s.OrderBy,
		Take:    s.Take,
	}
}

// args returns the non-empty request fields for the trace.
func (s Step) args() map[string]any {
	args := map[string]any{}
	if s.Where != nil {
		args["where"] = s.Where
	}
	if s.Data != nil {
		args["data"] = s.Data
	}
	if s.Create != nil {
		args["create"] = s.Create
	}
	if s.Update != nil {
		args["update"] = s.Update
	}
	if s.OrderBy != nil {
		args["orderBy"] = s.OrderBy
	}
	if s.Take != nil {
		args["take"] = *s.Take
	}
	if len(args) == 0 {
		return nil
	}
	return args
}

// Expect specifies the expected outcome of a step.
type Expect struct {
	// Error is the expected data.Kind of the failure. Empty means success.
	Error string `yaml:"error,omitempty"`

	// Record is a subset of the fields of the returned record.
	Record map[string]any `yaml:"record,omitempty"`

	// Records are subsets of the returned records, in order. The number of
	// records must match.
	Records []map[string]any `yaml:"records,omitempty"`

	// Count is the expected count, deleteMany total or findMany length.
	Count *int `yaml:"count,omitempty"`

	// None expects a find to return no record.
	None bool `yaml:"none,omitempty"`
}

// Assertion validates trace or final state.
type Assertion struct {
	// Type is one of the Assert* constants.
	Type string `yaml:"type"`

	// Model is the model queried by record_count and final_state, and an
	// optional model filter for trace_count.
	Model string `yaml:"model,omitempty"`

	// Where filters records (record_count, final_state).
	Where map[string]any `yaml:"where,omitempty"`

	// Expect is a subset of the matched record's fields (final_state).
	Expect map[string]any `yaml:"expect,omitempty"`

	// Op is the counted operation (trace_count).
	Op string `yaml:"op,omitempty"`

	// Count is the expected number (record_count, trace_count).
	Count int `yaml:"count,omitempty"`

	// Ops is the expected operation order (trace_order).
	Ops []string `yaml:"ops,omitempty"`
}

// Assertion type constants.
const (
	AssertRecordCount = "record_count"
	AssertFinalState  = "final_state"
	AssertTraceCount  = "trace_count"
	AssertTraceOrder  = "trace_order"
)

// LoadScenario reads and parses a scenario YAML file.
// Returns an error if the file doesn't exist, is malformed,
// contains unknown fields (typos), or is missing required fields.
func LoadScenario(path string) (*Scenario, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}
	return ParseScenario(raw)
}

// ParseScenario parses scenario YAML.
func ParseScenario(raw []byte) (*Scenario, error) {
	// Strict decoding catches typos like "assertion:" vs "assertions:".
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(raw))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	return &scenario, nil
}

// validateScenario checks that required fields are present and valid.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if s.Description == "" {
		return fmt.Errorf("description is required")
	}
	if len(s.Steps) == 0 {
		return fmt.Errorf("steps list is required and must be non-empty")
	}

	for i, step := range s.Setup {
		if err := validateStep(step); err != nil {
			return fmt.Errorf("setup[%d]: %w", i, err)
		}
	}
	for i, step := range s.Steps {
		if err := validateStep(step); err != nil {
			return fmt.Errorf("steps[%d]: %w", i, err)
		}
	}
	for i, assertion := range s.Assertions {
		if err := validateAssertion(assertion); err != nil {
			return fmt.Errorf("assertions[%d]: %w", i, err)
		}
	}
	return nil
}

func validateStep(step Step) error {
	if step.Model == "" {
		return fmt.Errorf("model is required")
	}
	op, err := data.ParseOp(step.Op)
	if err != nil {
		return err
	}
	switch op {
	case data.OpCreate:
		if step.Data == nil {
			return fmt.Errorf("data is required for create (use {} for no fields)")
		}
	case data.OpUpdate:
		if step.Data == nil {
			return fmt.Errorf("data is required for update")
		}
	case data.OpUpsert:
		if step.Create == nil || step.Update == nil {
			return fmt.Errorf("create and update are required for upsert")
		}
	}
	return nil
}

// validateAssertion validates a single assertion based on its type.
func validateAssertion(a Assertion) error {
	switch a.Type {
	case "":
		return fmt.Errorf("type is required")
	case AssertRecordCount:
		if a.Model == "" {
			return fmt.Errorf("model is required for record_count")
		}
		if a.Count < 0 {
			return fmt.Errorf("count must be non-negative for record_count")
		}
	case AssertFinalState:
		if a.Model == "" {
			return fmt.Errorf("model is required for final_state")
		}
		if len(a.Expect) == 0 {
			return fmt.Errorf("expect is required for final_state")
		}
	case AssertTraceCount:
		if _, err := data.ParseOp(a.Op); err != nil {
			return fmt.Errorf("trace_count: %w", err)
		}
		if a.Count < 0 {
			return fmt.Errorf("count must be non-negative for trace_count")
		}
	case AssertTraceOrder:
		if len(a.Ops) == 0 {
			return fmt.Errorf("ops list is required for trace_order")
		}
	default:
		return fmt.Errorf("unknown assertion type %q", a.Type)
	}
	return nil
}
