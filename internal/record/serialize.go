package record

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"reflect"
	"time"
)

// TimeLayout is the on-disk timestamp format: UTC, millisecond precision,
// trailing "Z".
const TimeLayout = "2006-01-02T15:04:05.000Z07:00"

// ErrUnsupportedValue is returned when a value has no JSON representation.
var ErrUnsupportedValue = errors.New("unsupported value")

// FormatTime renders t in TimeLayout after converting it to UTC.
func FormatTime(t time.Time) string {
	return t.UTC().Format(TimeLayout)
}

// ParseTime parses an on-disk timestamp. Any RFC 3339 string is accepted,
// with or without fractional seconds, as is a bare calendar date.
func ParseTime(s string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t.UTC(), nil
	}
	if t, err := time.Parse(time.DateOnly, s); err == nil {
		return t.UTC(), nil
	}
	return time.Time{}, fmt.Errorf("invalid timestamp %q", s)
}

// Serialize converts caller input into serialized form.
//
// Set wrappers and single-key {"set": v} objects are replaced by v.
// Integers and float32 become float64, time.Time becomes a TimeLayout
// string, and typed slices and string-keyed maps are converted
// element-wise. NaN, infinities and values with no JSON shape yield
// ErrUnsupportedValue.
func Serialize(v any) (any, error) {
	switch val := v.(type) {
	case nil:
		return nil, nil
	case Set:
		return Serialize(val.Value)
	case *Set:
		if val == nil {
			return nil, nil
		}
		return Serialize(val.Value)
	case string, bool:
		return val, nil
	case float64:
		if math.IsNaN(val) || math.IsInf(val, 0) {
			return nil, fmt.Errorf("%w: %v", ErrUnsupportedValue, val)
		}
		return val, nil
	case float32:
		return Serialize(float64(val))
	case int:
		return float64(val), nil
	case int8:
		return float64(val), nil
	case int16:
		return float64(val), nil
	case int32:
		return float64(val), nil
	case int64:
		return float64(val), nil
	case uint:
		return float64(val), nil
	case uint8:
		return float64(val), nil
	case uint16:
		return float64(val), nil
	case uint32:
		return float64(val), nil
	case uint64:
		return float64(val), nil
	case json.Number:
		f, err := val.Float64()
		if err != nil {
			return nil, fmt.Errorf("%w: number %q", ErrUnsupportedValue, val)
		}
		return f, nil
	case time.Time:
		return FormatTime(val), nil
	case *time.Time:
		if val == nil {
			return nil, nil
		}
		return FormatTime(*val), nil
	case Record:
		return serializeObject(val)
	case Patch:
		return serializeObject(val)
	case map[string]any:
		return serializeObject(val)
	case []any:
		out := make([]any, len(val))
		for i, elem := range val {
			s, err := Serialize(elem)
			if err != nil {
				return nil, fmt.Errorf("[%d]: %w", i, err)
			}
			out[i] = s
		}
		return out, nil
	}
	return serializeReflect(v)
}

func serializeObject(m map[string]any) (any, error) {
	if len(m) == 1 {
		if inner, ok := m["set"]; ok {
			return Serialize(inner)
		}
	}
	out := make(map[string]any, len(m))
	for k, elem := range m {
		s, err := Serialize(elem)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", k, err)
		}
		out[k] = s
	}
	return out, nil
}

// serializeReflect handles typed slices ([]string, []Record, ...) and
// string-keyed maps that the type switch does not name.
func serializeReflect(v any) (any, error) {
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Slice, reflect.Array:
		if rv.Kind() == reflect.Slice && rv.IsNil() {
			return nil, nil
		}
		out := make([]any, rv.Len())
		for i := range out {
			s, err := Serialize(rv.Index(i).Interface())
			if err != nil {
				return nil, fmt.Errorf("[%d]: %w", i, err)
			}
			out[i] = s
		}
		return out, nil
	case reflect.Map:
		if rv.Type().Key().Kind() != reflect.String {
			return nil, fmt.Errorf("%w: map key type %s", ErrUnsupportedValue, rv.Type().Key())
		}
		if rv.IsNil() {
			return nil, nil
		}
		m := make(map[string]any, rv.Len())
		iter := rv.MapRange()
		for iter.Next() {
			m[iter.Key().String()] = iter.Value().Interface()
		}
		return serializeObject(m)
	case reflect.Pointer:
		if rv.IsNil() {
			return nil, nil
		}
		return Serialize(rv.Elem().Interface())
	case reflect.String:
		return rv.String(), nil
	case reflect.Bool:
		return rv.Bool(), nil
	}
	return nil, fmt.Errorf("%w: %T", ErrUnsupportedValue, v)
}

// SerializeRecord serializes every field of in. A nil input yields an
// empty record.
func SerializeRecord(in map[string]any) (Record, error) {
	out := make(Record, len(in))
	for k, v := range in {
		s, err := Serialize(v)
		if err != nil {
			return nil, fmt.Errorf("field %s: %w", k, err)
		}
		out[k] = s
	}
	return out, nil
}

// Hydrate returns a deep copy of r in which every top-level string field
// accepted by isTimestamp is parsed into a time.Time. Strings that do not
// parse are left unchanged.
func Hydrate(r Record, isTimestamp func(field string) bool) Record {
	out := r.Clone()
	if isTimestamp == nil {
		return out
	}
	for k, v := range out {
		s, ok := v.(string)
		if !ok || !isTimestamp(k) {
			continue
		}
		if t, err := ParseTime(s); err == nil {
			out[k] = t
		}
	}
	return out
}
