package expr

import (
	"context"
	"encoding/json"
	"fmt"

	id "soulbound/pkg/domain"
	dErrors "soulbound/pkg/domain-errors"
)

// maxDepth bounds expression nesting so hostile payloads cannot exhaust
// the stack.
const maxDepth = 32

// Expr is a boolean expression over credential classes. Exactly one field
// is set per node.
type Expr struct {
	Class id.ClassID
	And   []Expr
	Or    []Expr
	Not   *Expr
}

// Predicate is the atomic class-membership check an expression evaluates
// against.
type Predicate func(ctx context.Context, classID id.ClassID) (bool, error)

// Eval evaluates the expression left to right with short-circuiting. The
// predicate is called at most once per reachable atom.
func (e *Expr) Eval(ctx context.Context, pred Predicate) (bool, error) {
	switch {
	case !e.Class.IsNil():
		return pred(ctx, e.Class)
	case e.And != nil:
		for i := range e.And {
			ok, err := e.And[i].Eval(ctx, pred)
			if err != nil {
				return false, err
			}
			if !ok {
				return false, nil
			}
		}
		return true, nil
	case e.Or != nil:
		for i := range e.Or {
			ok, err := e.Or[i].Eval(ctx, pred)
			if err != nil {
				return false, err
			}
			if ok {
				return true, nil
			}
		}
		return false, nil
	case e.Not != nil:
		ok, err := e.Not.Eval(ctx, pred)
		if err != nil {
			return false, err
		}
		return !ok, nil
	}
	return false, dErrors.New(dErrors.CodeValidation, "empty expression node")
}

// wireExpr is the JSON form: {"class": "..."} | {"and": [...]} |
// {"or": [...]} | {"not": {...}}.
type wireExpr struct {
	Class string     `json:"class,omitempty"`
	And   []wireExpr `json:"and,omitempty"`
	Or    []wireExpr `json:"or,omitempty"`
	Not   *wireExpr  `json:"not,omitempty"`
}

// Parse decodes an expression from its JSON wire form and validates it.
func Parse(raw []byte) (*Expr, error) {
	var wire wireExpr
	if err := json.Unmarshal(raw, &wire); err != nil {
		return nil, dErrors.New(dErrors.CodeValidation, "malformed expression")
	}
	return fromWire(&wire, 0)
}

func fromWire(w *wireExpr, depth int) (*Expr, error) {
	if depth > maxDepth {
		return nil, dErrors.New(dErrors.CodeValidation, "expression too deeply nested")
	}

	set := 0
	if w.Class != "" {
		set++
	}
	if w.And != nil {
		set++
	}
	if w.Or != nil {
		set++
	}
	if w.Not != nil {
		set++
	}
	if set != 1 {
		return nil, dErrors.New(dErrors.CodeValidation, "expression node must set exactly one of class, and, or, not")
	}

	switch {
	case w.Class != "":
		classID, err := id.ParseClassID(w.Class)
		if err != nil {
			return nil, err
		}
		return &Expr{Class: classID}, nil
	case w.And != nil:
		children, err := childrenFromWire(w.And, depth, "and")
		if err != nil {
			return nil, err
		}
		return &Expr{And: children}, nil
	case w.Or != nil:
		children, err := childrenFromWire(w.Or, depth, "or")
		if err != nil {
			return nil, err
		}
		return &Expr{Or: children}, nil
	default:
		child, err := fromWire(w.Not, depth+1)
		if err != nil {
			return nil, err
		}
		return &Expr{Not: child}, nil
	}
}

func childrenFromWire(wires []wireExpr, depth int, op string) ([]Expr, error) {
	if len(wires) == 0 {
		return nil, dErrors.New(dErrors.CodeValidation, fmt.Sprintf("%s requires at least one operand", op))
	}
	out := make([]Expr, 0, len(wires))
	for i := range wires {
		child, err := fromWire(&wires[i], depth+1)
		if err != nil {
			return nil, err
		}
		out = append(out, *child)
	}
	return out, nil
}

// MarshalJSON renders the expression in its wire form.
func (e Expr) MarshalJSON() ([]byte, error) {
	return json.Marshal(e.toWire())
}

// UnmarshalJSON decodes and validates the wire form.
func (e *Expr) UnmarshalJSON(raw []byte) error {
	parsed, err := Parse(raw)
	if err != nil {
		return err
	}
	*e = *parsed
	return nil
}

func (e *Expr) toWire() wireExpr {
	switch {
	case !e.Class.IsNil():
		return wireExpr{Class: e.Class.String()}
	case e.And != nil:
		return wireExpr{And: wiresFrom(e.And)}
	case e.Or != nil:
		return wireExpr{Or: wiresFrom(e.Or)}
	case e.Not != nil:
		child := e.Not.toWire()
		return wireExpr{Not: &child}
	}
	return wireExpr{}
}

func wiresFrom(children []Expr) []wireExpr {
	out := make([]wireExpr, 0, len(children))
	for i := range children {
		out = append(out, children[i].toWire())
	}
	return out
}
