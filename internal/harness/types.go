package harness

import (
	"github.com/roach88/marketdb/internal/jsonstore"
)

// TraceEvent records one executed setup or flow step.
type TraceEvent struct {
	Seq     int            `json:"seq"`
	Model   string         `json:"model"`
	Op      string         `json:"op"`
	Args    map[string]any `json:"args,omitempty"`
	Outcome string         `json:"outcome"` // "ok" or a data.Kind value
	Result  any            `json:"result,omitempty"`
}

// Result is the outcome of a scenario execution.
type Result struct {
	// Pass is true when every expect clause and assertion held.
	Pass bool `json:"pass"`

	Trace []TraceEvent `json:"trace"`

	// Errors holds one message per failed expectation.
	Errors []string `json:"errors,omitempty"`

	// Document is the store contents after the last step.
	Document jsonstore.Document `json:"-"`

	// Snapshot is Document in its on-disk encoding.
	Snapshot []byte `json:"-"`
}

// NewResult creates a new passing result.
func NewResult() *Result {
	return &Result{
		Pass:   true,
		Trace:  []TraceEvent{},
		Errors: []string{},
	}
}

// AddError adds a validation error and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}

// AddTrace appends a step to the trace and returns its sequence number.
func (r *Result) AddTrace(event TraceEvent) int {
	event.Seq = len(r.Trace) + 1
	r.Trace = append(r.Trace, event)
	return event.Seq
}
