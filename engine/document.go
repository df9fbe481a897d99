package engine

import (
	"fmt"
	"strconv"

	"github.com/vektah/gqlparser/v2/ast"
	"github.com/vektah/gqlparser/v2/parser"

	"github.com/songlinshu/vector/errors"
)

// DefaultMaxDepth bounds client-requested selection nesting when the caller
// does not configure one. Documents deeper than the bound are rejected at
// validation time, before any resolver runs.
const DefaultMaxDepth = 10

// Operation is one parsed, depth-checked client request: a root operation
// definition plus its document (for fragment lookup) and coerced variable
// values. For subscriptions the Operation is retained for the connection's
// lifetime as the subscription's configuration record.
type Operation struct {
	Kind      ast.Operation
	Name      string
	doc       *ast.QueryDocument
	def       *ast.OperationDefinition
	variables map[string]any
}

// Parse parses an operation document, selects the requested operation,
// coerces variables, and enforces the nesting-depth bound. All failures are
// classified invalid: the operation is rejected before execution.
func Parse(query, operationName string, variables map[string]any, maxDepth int) (*Operation, error) {
	if maxDepth <= 0 {
		maxDepth = DefaultMaxDepth
	}

	doc, err := parser.ParseQuery(&ast.Source{Input: query})
	if err != nil {
		return nil, errors.WrapInvalid(err, "Document", "Parse", "syntax")
	}

	def := doc.Operations.ForName(operationName)
	if def == nil && operationName == "" && len(doc.Operations) == 1 {
		def = doc.Operations[0]
	}
	if def == nil {
		return nil, errors.WrapInvalid(errors.ErrUnknownOperation, "Document", "Parse",
			fmt.Sprintf("select operation %q", operationName))
	}
	if len(def.SelectionSet) == 0 {
		return nil, errors.WrapInvalid(errors.ErrEmptySelection, "Document", "Parse", "selection set")
	}

	coerced, err := coerceVariables(def, variables)
	if err != nil {
		return nil, errors.WrapInvalid(err, "Document", "Parse", "variables")
	}

	op := &Operation{
		Kind:      def.Operation,
		Name:      def.Name,
		doc:       doc,
		def:       def,
		variables: coerced,
	}

	if depth := op.depth(); depth > maxDepth {
		return nil, errors.WrapInvalid(errors.ErrDepthExceeded, "Document", "Parse",
			fmt.Sprintf("depth %d exceeds maximum %d", depth, maxDepth))
	}
	return op, nil
}

// depth measures the deepest field nesting in the operation. A fragment
// contributes its full depth at every spread site; only spreads that would
// re-enter a fragment already on the current expansion path are cut, which
// keeps the walk finite on cyclic fragments.
func (op *Operation) depth() int {
	c := &depthCounter{
		doc:    op.doc,
		memo:   map[string]int{},
		active: map[string]bool{},
	}
	return c.setDepth(op.def.SelectionSet)
}

type depthCounter struct {
	doc    *ast.QueryDocument
	memo   map[string]int  // resolved fragment depths
	active map[string]bool // fragments on the current expansion path
}

func (c *depthCounter) setDepth(set ast.SelectionSet) int {
	max := 0
	for _, sel := range set {
		d := 0
		switch s := sel.(type) {
		case *ast.Field:
			d = 1 + c.setDepth(s.SelectionSet)
		case *ast.InlineFragment:
			d = c.setDepth(s.SelectionSet)
		case *ast.FragmentSpread:
			d = c.fragmentDepth(s.Name)
		}
		if d > max {
			max = d
		}
	}
	return max
}

// fragmentDepth returns the nesting depth a spread of the named fragment
// adds. A fragment's depth is the same at every spread site, so it is
// computed once.
func (c *depthCounter) fragmentDepth(name string) int {
	if d, ok := c.memo[name]; ok {
		return d
	}
	if c.active[name] {
		// Cyclic spread; the cycle is cut and the document stays finite.
		return 0
	}
	frag := c.doc.Fragments.ForName(name)
	if frag == nil {
		return 0
	}

	c.active[name] = true
	d := c.setDepth(frag.SelectionSet)
	delete(c.active, name)
	c.memo[name] = d
	return d
}

// coerceVariables resolves declared variables against supplied values,
// applying declared defaults and rejecting missing non-null variables.
func coerceVariables(def *ast.OperationDefinition, supplied map[string]any) (map[string]any, error) {
	coerced := make(map[string]any, len(def.VariableDefinitions))
	for _, vd := range def.VariableDefinitions {
		val, ok := supplied[vd.Variable]
		if !ok {
			if vd.DefaultValue != nil {
				val = astValueToGo(vd.DefaultValue, nil)
			} else if vd.Type.NonNull {
				return nil, fmt.Errorf("variable $%s of required type %s was not provided",
					vd.Variable, vd.Type.String())
			} else {
				continue
			}
		}
		if val == nil && vd.Type.NonNull {
			return nil, fmt.Errorf("variable $%s of type %s cannot be null", vd.Variable, vd.Type.String())
		}
		coerced[vd.Variable] = val
	}
	return coerced, nil
}

// astValueToGo converts an AST literal to a Go value, substituting variable
// references from vars.
func astValueToGo(value *ast.Value, vars map[string]any) any {
	if value == nil {
		return nil
	}
	switch value.Kind {
	case ast.Variable:
		return vars[value.Raw]
	case ast.IntValue:
		if n, err := strconv.ParseInt(value.Raw, 10, 64); err == nil {
			return n
		}
		return value.Raw
	case ast.FloatValue:
		if f, err := strconv.ParseFloat(value.Raw, 64); err == nil {
			return f
		}
		return value.Raw
	case ast.BooleanValue:
		return value.Raw == "true"
	case ast.NullValue:
		return nil
	case ast.ListValue:
		items := make([]any, 0, len(value.Children))
		for _, child := range value.Children {
			items = append(items, astValueToGo(child.Value, vars))
		}
		return items
	case ast.ObjectValue:
		obj := make(map[string]any, len(value.Children))
		for _, child := range value.Children {
			obj[child.Name] = astValueToGo(child.Value, vars)
		}
		return obj
	default:
		// StringValue, BlockValue, EnumValue all carry their raw text.
		return value.Raw
	}
}

// rawArguments materializes a field's argument literals into Go values with
// variables substituted. Validation happens separately against the schema.
func rawArguments(field *ast.Field, vars map[string]any) map[string]any {
	if len(field.Arguments) == 0 {
		return nil
	}
	out := make(map[string]any, len(field.Arguments))
	for _, arg := range field.Arguments {
		// An omitted variable stays absent so defaults can apply.
		if arg.Value.Kind == ast.Variable {
			if _, ok := vars[arg.Value.Raw]; !ok {
				continue
			}
		}
		out[arg.Name] = astValueToGo(arg.Value, vars)
	}
	return out
}
