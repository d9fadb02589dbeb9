package query

import (
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/roach88/marketdb/internal/record"
)

// ErrInvalidOrder is wrapped by ordering parse failures.
var ErrInvalidOrder = errors.New("invalid ordering")

// Direction is a sort direction.
type Direction string

const (
	Asc  Direction = "asc"
	Desc Direction = "desc"
)

// ParseDirection parses "asc" or "desc" in any case. The empty string is Asc.
func ParseDirection(s string) (Direction, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "asc":
		return Asc, nil
	case "desc":
		return Desc, nil
	}
	return "", fmt.Errorf("%w: direction %q (want asc or desc)", ErrInvalidOrder, s)
}

// Order is one ordering clause.
type Order struct {
	Field     string
	Direction Direction
}

// OrderBy is shorthand for an ascending or descending clause.
func OrderBy(field string, dir Direction) Order {
	return Order{Field: field, Direction: dir}
}

// Sort orders records in place by the given clauses. The first clause whose
// values differ decides; records equal on every clause keep their relative
// order.
//
// Values rank null < bool < number < string. Objects and arrays compare equal
// to each other and to everything in their rank.
func Sort(records []record.Record, orders []Order) {
	if len(orders) == 0 {
		return
	}
	slices.SortStableFunc(records, func(a, b record.Record) int {
		return compareRecords(a, b, orders)
	})
}

func compareRecords(a, b record.Record, orders []Order) int {
	for _, o := range orders {
		c := record.Compare(a[o.Field], b[o.Field])
		if c == 0 {
			continue
		}
		if o.Direction == Desc {
			return -c
		}
		return c
	}
	return 0
}

// Paginate applies a take limit. A nil take keeps every item; take >= 0 keeps
// the first take items and take < 0 keeps the last |take| items, in their
// original order. The returned slice shares storage with items.
func Paginate[T any](items []T, take *int) []T {
	if take == nil {
		return items
	}
	n := *take
	if n >= 0 {
		if n > len(items) {
			return items
		}
		return items[:n]
	}
	// Compare before negating: -math.MinInt overflows.
	if n < -len(items) {
		return items
	}
	return items[len(items)+n:]
}

// Limit returns a pointer to n for use as a take value.
func Limit(n int) *int {
	return &n
}
