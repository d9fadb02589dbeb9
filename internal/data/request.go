package data

import (
	"context"
	"errors"
	"fmt"

	"github.com/roach88/marketdb/internal/query"
	"github.com/roach88/marketdb/internal/record"
)

// Op names a Model operation in its wire form.
type Op string

const (
	OpFindMany   Op = "findMany"
	OpFindUnique Op = "findUnique"
	OpFindFirst  Op = "findFirst"
	OpCreate     Op = "create"
	OpUpdate     Op = "update"
	OpDelete     Op = "delete"
	OpDeleteMany Op = "deleteMany"
	OpUpsert     Op = "upsert"
	OpCount      Op = "count"
)

// Ops lists every operation in a stable order.
var Ops = []Op{
	OpFindMany, OpFindUnique, OpFindFirst, OpCreate, OpUpdate,
	OpDelete, OpDeleteMany, OpUpsert, OpCount,
}

var ErrUnknownOp = errors.New("unknown operation")

// ParseOp validates an operation name.
func ParseOp(s string) (Op, error) {
	for _, op := range Ops {
		if string(op) == s {
			return op, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownOp, s)
}

// Request is an operation in decoded-JSON form, as read from the command
// line or a scenario file.
type Request struct {
	Op Op
	// Where is the object form of a filter; see query.FromMap.
	Where map[string]any
	// Data is the create input or update patch.
	Data map[string]any
	// Create and Update are the upsert inputs.
	Create map[string]any
	Update map[string]any
	// OrderBy is {"field": "asc"} or a list of such objects.
	OrderBy any
	Take    *int
}

// Response holds the result of Do. Exactly one field is meaningful,
// depending on the operation: Records for findMany, Count for count and
// deleteMany, Record otherwise. Record is nil when a find matched nothing.
type Response struct {
	Op      Op
	Record  record.Record
	Records []record.Record
	Count   int
}

// Value returns the meaningful field of r.
func (r Response) Value() any {
	switch r.Op {
	case OpFindMany:
		return r.Records
	case OpCount, OpDeleteMany:
		return r.Count
	}
	return r.Record
}

// Do parses req against m's schema entry and runs it.
func Do(ctx context.Context, m Model, req Request) (Response, error) {
	resp := Response{Op: req.Op}

	name := m.Spec().Name
	where, err := query.FromMap(req.Where, ParseOptions(m.Spec())...)
	if err != nil {
		return resp, Wrap(string(req.Op), name, err)
	}
	orders, err := query.ParseOrder(req.OrderBy)
	if err != nil {
		return resp, Wrap(string(req.Op), name, err)
	}
	args := FindArgs{Where: where, OrderBy: orders, Take: req.Take}

	switch req.Op {
	case OpFindMany:
		resp.Records, err = m.FindMany(ctx, args)
	case OpFindUnique:
		resp.Record, err = m.FindUnique(ctx, where)
	case OpFindFirst:
		resp.Record, err = m.FindFirst(ctx, args)
	case OpCreate:
		resp.Record, err = m.Create(ctx, req.Data)
	case OpUpdate:
		resp.Record, err = m.Update(ctx, where, req.Data)
	case OpDelete:
		resp.Record, err = m.Delete(ctx, where)
	case OpDeleteMany:
		resp.Count, err = m.DeleteMany(ctx, where)
	case OpUpsert:
		resp.Record, err = m.Upsert(ctx, where, req.Create, req.Update)
	case OpCount:
		resp.Count, err = m.Count(ctx, where)
	default:
		err = Wrap(string(req.Op), name, fmt.Errorf("%w: %q", ErrUnknownOp, req.Op))
	}
	return resp, err
}
