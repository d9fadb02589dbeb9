// Package schema loads the closed set of marketplace models and their
// per-model key specifications from the embedded CUE document.
//
// The schema is compiled once at startup with the CUE Go API (not the CLI):
//
//	s, err := schema.Load()
//	user, ok := s.Model("user")
//
// Every backend consumes the same Schema so that key handling, timestamp
// detection and create-time defaults are identical across them.
package schema

import (
	_ "embed"
	"fmt"
	"slices"
	"strings"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"cuelang.org/go/cue/errors"
	"cuelang.org/go/cue/token"
)

//go:embed schema.cue
var schemaCUE string

// Model describes one collection.
type Model struct {
	Name        string
	Key         []string
	GenerateID  bool
	CreatedAt   bool
	UpdatedAt   bool
	TouchAlways bool
	Defaults    map[string]any
}

// HasCompositeKey reports whether the model is keyed by more than one field.
func (m Model) HasCompositeKey() bool {
	return len(m.Key) > 1
}

// CompoundKeyName is the name under which a composite key can be addressed
// as a single filter field, e.g. "identifier_token". Empty for single-field
// keys.
func (m Model) CompoundKeyName() string {
	if !m.HasCompositeKey() {
		return ""
	}
	return strings.Join(m.Key, "_")
}

// IsKeyField reports whether field is part of the model's key.
func (m Model) IsKeyField(field string) bool {
	return slices.Contains(m.Key, field)
}

// Schema is the compiled model set.
type Schema struct {
	models   []Model
	byName   map[string]int
	suffixes []string
}

// Load compiles the embedded schema.
func Load() (*Schema, error) {
	return Compile(schemaCUE)
}

// MustLoad is Load for package initialisation and tests. It panics if the
// embedded schema does not compile.
func MustLoad() *Schema {
	s, err := Load()
	if err != nil {
		panic(fmt.Sprintf("schema: embedded schema invalid: %v", err))
	}
	return s
}

// Compile compiles a schema from CUE source.
func Compile(src string) (*Schema, error) {
	ctx := cuecontext.New()
	v := ctx.CompileString(src, cue.Filename("schema.cue"))
	if err := v.Err(); err != nil {
		return nil, formatCUEError(err)
	}
	if err := v.Validate(cue.Concrete(true)); err != nil {
		return nil, formatCUEError(err)
	}

	suffixes, err := parseStringList(v.LookupPath(cue.ParsePath("timestampSuffixes")))
	if err != nil {
		return nil, err
	}

	modelsVal := v.LookupPath(cue.ParsePath("models"))
	if !modelsVal.Exists() {
		return nil, &CompileError{Field: "models", Message: "models is required", Pos: v.Pos()}
	}
	iter, err := modelsVal.List()
	if err != nil {
		return nil, formatCUEError(err)
	}

	s := &Schema{byName: make(map[string]int)}
	for _, suffix := range suffixes {
		s.suffixes = append(s.suffixes, strings.ToLower(suffix))
	}

	for iter.Next() {
		m, err := parseModel(iter.Value())
		if err != nil {
			return nil, err
		}
		if _, dup := s.byName[m.Name]; dup {
			return nil, &CompileError{
				Field:   "models",
				Message: fmt.Sprintf("duplicate model %q", m.Name),
				Pos:     iter.Value().Pos(),
			}
		}
		s.byName[m.Name] = len(s.models)
		s.models = append(s.models, m)
	}

	if len(s.models) == 0 {
		return nil, &CompileError{Field: "models", Message: "at least one model is required", Pos: modelsVal.Pos()}
	}
	return s, nil
}

func parseModel(v cue.Value) (Model, error) {
	var m Model
	var err error

	if m.Name, err = stringField(v, "name"); err != nil {
		return m, err
	}
	if m.Key, err = parseStringList(v.LookupPath(cue.ParsePath("key"))); err != nil {
		return m, err
	}
	if m.GenerateID, err = boolField(v, "generateId"); err != nil {
		return m, err
	}
	if m.CreatedAt, err = boolField(v, "createdAt"); err != nil {
		return m, err
	}
	if m.UpdatedAt, err = boolField(v, "updatedAt"); err != nil {
		return m, err
	}
	if m.TouchAlways, err = boolField(v, "touchAlways"); err != nil {
		return m, err
	}
	if m.Defaults, err = parseDefaults(v.LookupPath(cue.ParsePath("defaults"))); err != nil {
		return m, err
	}

	if m.GenerateID && !slices.Equal(m.Key, []string{"id"}) {
		return m, &CompileError{
			Field:   m.Name + ".generateId",
			Message: `generated ids require key ["id"]`,
			Pos:     v.Pos(),
		}
	}
	if m.TouchAlways && !m.UpdatedAt {
		return m, &CompileError{
			Field:   m.Name + ".touchAlways",
			Message: "touchAlways requires updatedAt",
			Pos:     v.Pos(),
		}
	}
	return m, nil
}

func stringField(v cue.Value, name string) (string, error) {
	f, _ := v.LookupPath(cue.ParsePath(name)).Default()
	if !f.Exists() {
		return "", &CompileError{Field: name, Message: name + " is required", Pos: v.Pos()}
	}
	s, err := f.String()
	if err != nil {
		return "", formatCUEError(err)
	}
	return s, nil
}

func boolField(v cue.Value, name string) (bool, error) {
	f, _ := v.LookupPath(cue.ParsePath(name)).Default()
	if !f.Exists() {
		return false, nil
	}
	b, err := f.Bool()
	if err != nil {
		return false, formatCUEError(err)
	}
	return b, nil
}

func parseStringList(v cue.Value) ([]string, error) {
	v, _ = v.Default()
	if !v.Exists() {
		return nil, nil
	}
	iter, err := v.List()
	if err != nil {
		return nil, formatCUEError(err)
	}
	var out []string
	for iter.Next() {
		s, err := iter.Value().String()
		if err != nil {
			return nil, formatCUEError(err)
		}
		out = append(out, s)
	}
	return out, nil
}

func parseDefaults(v cue.Value) (map[string]any, error) {
	out := map[string]any{}
	if !v.Exists() {
		return out, nil
	}
	iter, err := v.Fields()
	if err != nil {
		return nil, formatCUEError(err)
	}
	for iter.Next() {
		val, _ := iter.Value().Default()
		switch val.Kind() {
		case cue.StringKind:
			s, _ := val.String()
			out[iter.Label()] = s
		case cue.BoolKind:
			b, _ := val.Bool()
			out[iter.Label()] = b
		case cue.IntKind, cue.FloatKind, cue.NumberKind:
			f, err := val.Float64()
			if err != nil {
				return nil, formatCUEError(err)
			}
			out[iter.Label()] = f
		case cue.NullKind:
			out[iter.Label()] = nil
		default:
			return nil, &CompileError{
				Field:   "defaults." + iter.Label(),
				Message: fmt.Sprintf("unsupported default kind %s", val.Kind()),
				Pos:     val.Pos(),
			}
		}
	}
	return out, nil
}

// Models returns every model in declaration order.
func (s *Schema) Models() []Model {
	return slices.Clone(s.models)
}

// Names returns model names in declaration order. This is also the order of
// collections in the persisted document.
func (s *Schema) Names() []string {
	names := make([]string, len(s.models))
	for i, m := range s.models {
		names[i] = m.Name
	}
	return names
}

// Model looks up a model by name.
func (s *Schema) Model(name string) (Model, bool) {
	i, ok := s.byName[name]
	if !ok {
		return Model{}, false
	}
	return s.models[i], true
}

// Has reports whether name is a declared model.
func (s *Schema) Has(name string) bool {
	_, ok := s.byName[name]
	return ok
}

// IsTimestampField reports whether a field holds a timestamp, judged by its
// name's suffix. The match is case-insensitive.
func (s *Schema) IsTimestampField(field string) bool {
	lower := strings.ToLower(field)
	for _, suffix := range s.suffixes {
		if strings.HasSuffix(lower, suffix) {
			return true
		}
	}
	return false
}

// CompileError reports an invalid schema with its CUE source position.
type CompileError struct {
	Field   string
	Message string
	Pos     token.Pos
}

func (e *CompileError) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s: %s",
			e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(),
			e.Field, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// formatCUEError extracts position info from CUE errors.
func formatCUEError(err error) error {
	if err == nil {
		return nil
	}

	errs := errors.Errors(err)
	if len(errs) == 0 {
		return err
	}

	first := errs[0]
	positions := errors.Positions(first)
	if len(positions) > 0 {
		return &CompileError{
			Field:   "cue",
			Message: first.Error(),
			Pos:     positions[0],
		}
	}
	return err
}
