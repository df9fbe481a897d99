package engine

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/songlinshu/vector/errors"
	"github.com/songlinshu/vector/schema"
)

// ValidationError reports the first failing argument by name. It satisfies
// errors.IsInvalid through its wrapped sentinel.
type ValidationError struct {
	Field    string
	Argument string
	Reason   string
	Err      error
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid argument %q on field %q: %s", e.Argument, e.Field, e.Reason)
}

// Unwrap returns the sentinel classifying this failure.
func (e *ValidationError) Unwrap() error { return e.Err }

// Validator checks caller-supplied arguments against the registry's
// per-argument constraints. It is a pure function over schema and input;
// enum membership is the only reason it holds the registry.
type Validator struct {
	reg *schema.Registry
}

// NewValidator creates a validator over the given registry.
func NewValidator(reg *schema.Registry) *Validator {
	return &Validator{reg: reg}
}

// Validate resolves the supplied arguments of one field: type coercion,
// range and pattern constraints, default substitution, and required-ness,
// in declaration order. The first violation is returned; nothing is
// resolved past it.
func (v *Validator) Validate(field *schema.Field, supplied map[string]any) (map[string]any, error) {
	for name := range supplied {
		if field.Arg(name) == nil {
			return nil, &ValidationError{
				Field:    field.Name,
				Argument: name,
				Reason:   "argument is not declared",
				Err:      errors.ErrArgumentWrongType,
			}
		}
	}

	resolved := make(map[string]any, len(field.Args))
	for _, arg := range field.Args {
		raw, ok := supplied[arg.Name]
		if !ok {
			if arg.HasDefault {
				resolved[arg.Name] = arg.Default
				continue
			}
			if arg.Required() {
				return nil, &ValidationError{
					Field:    field.Name,
					Argument: arg.Name,
					Reason:   "required argument was not provided",
					Err:      errors.ErrMissingRequiredArgument,
				}
			}
			continue
		}

		if raw == nil {
			if arg.Type.IsNonNull() {
				return nil, &ValidationError{
					Field:    field.Name,
					Argument: arg.Name,
					Reason:   "non-null argument cannot be null",
					Err:      errors.ErrArgumentWrongType,
				}
			}
			resolved[arg.Name] = nil
			continue
		}

		val, err := v.coerce(field, arg, arg.Type, raw)
		if err != nil {
			return nil, err
		}
		resolved[arg.Name] = val
	}
	return resolved, nil
}

// coerce converts raw to the argument's declared type and applies the
// argument's constraints.
func (v *Validator) coerce(field *schema.Field, arg *schema.Argument, ref *schema.TypeRef, raw any) (any, error) {
	if ref.IsNonNull() {
		return v.coerce(field, arg, ref.Unwrap(), raw)
	}
	if ref.Kind == schema.RefList {
		items, ok := raw.([]any)
		if !ok {
			// Single-value shorthand coerces to a one-element list.
			items = []any{raw}
		}
		out := make([]any, len(items))
		for i, item := range items {
			cv, err := v.coerce(field, arg, ref.Unwrap(), item)
			if err != nil {
				return nil, err
			}
			out[i] = cv
		}
		return out, nil
	}

	typeName := ref.NamedType()
	declared, ok := v.reg.Lookup(typeName)
	if !ok {
		// Unreachable after registry integrity checks.
		return nil, &ValidationError{
			Field: field.Name, Argument: arg.Name,
			Reason: fmt.Sprintf("argument type %q not registered", typeName),
			Err:    errors.ErrTypeNotFound,
		}
	}

	if declared.Kind == schema.KindEnum {
		s, ok := raw.(string)
		if !ok {
			return nil, v.wrongType(field, arg, typeName, raw)
		}
		for _, ev := range declared.EnumValues {
			if ev == s {
				return s, nil
			}
		}
		return nil, &ValidationError{
			Field: field.Name, Argument: arg.Name,
			Reason: fmt.Sprintf("%q is not a value of enum %s", s, typeName),
			Err:    errors.ErrArgumentWrongType,
		}
	}

	switch typeName {
	case schema.ScalarInt:
		n, ok := toInt64(raw)
		if !ok {
			return nil, v.wrongType(field, arg, typeName, raw)
		}
		if err := v.checkRange(field, arg, float64(n), fmt.Sprintf("%d", n)); err != nil {
			return nil, err
		}
		return n, nil

	case schema.ScalarFloat:
		f, ok := toFloat64(raw)
		if !ok {
			return nil, v.wrongType(field, arg, typeName, raw)
		}
		if err := v.checkRange(field, arg, f, fmt.Sprintf("%g", f)); err != nil {
			return nil, err
		}
		return f, nil

	case schema.ScalarString, schema.ScalarID:
		s, ok := raw.(string)
		if !ok {
			return nil, v.wrongType(field, arg, typeName, raw)
		}
		if !arg.MatchesPattern(s) {
			return nil, &ValidationError{
				Field: field.Name, Argument: arg.Name,
				Reason: fmt.Sprintf("%q does not match pattern %s", s, arg.Pattern),
				Err:    errors.ErrArgumentPatternMismatch,
			}
		}
		return s, nil

	case schema.ScalarBoolean:
		b, ok := raw.(bool)
		if !ok {
			return nil, v.wrongType(field, arg, typeName, raw)
		}
		return b, nil

	case schema.ScalarTimestamp:
		switch ts := raw.(type) {
		case time.Time:
			return ts, nil
		case string:
			parsed, err := time.Parse(time.RFC3339Nano, ts)
			if err != nil {
				return nil, &ValidationError{
					Field: field.Name, Argument: arg.Name,
					Reason: "not a valid RFC 3339 timestamp",
					Err:    errors.ErrArgumentWrongType,
				}
			}
			return parsed, nil
		default:
			return nil, v.wrongType(field, arg, typeName, raw)
		}

	default:
		// Custom scalar arguments pass through unvalidated; the resolver
		// owns their semantics.
		return raw, nil
	}
}

func (v *Validator) checkRange(field *schema.Field, arg *schema.Argument, val float64, rendered string) error {
	if arg.Min != nil && val < *arg.Min {
		return &ValidationError{
			Field: field.Name, Argument: arg.Name,
			Reason: fmt.Sprintf("%s is below minimum %g", rendered, *arg.Min),
			Err:    errors.ErrArgumentOutOfRange,
		}
	}
	if arg.Max != nil && val > *arg.Max {
		return &ValidationError{
			Field: field.Name, Argument: arg.Name,
			Reason: fmt.Sprintf("%s is above maximum %g", rendered, *arg.Max),
			Err:    errors.ErrArgumentOutOfRange,
		}
	}
	return nil
}

func (v *Validator) wrongType(field *schema.Field, arg *schema.Argument, want string, raw any) error {
	return &ValidationError{
		Field: field.Name, Argument: arg.Name,
		Reason: fmt.Sprintf("expected %s, got %T", want, raw),
		Err:    errors.ErrArgumentWrongType,
	}
}

func toInt64(raw any) (int64, bool) {
	switch n := raw.(type) {
	case int64:
		return n, true
	case int:
		return int64(n), true
	case int32:
		return int64(n), true
	case float64:
		if n == float64(int64(n)) {
			return int64(n), true
		}
		return 0, false
	case json.Number:
		if v, err := n.Int64(); err == nil {
			return v, true
		}
		return 0, false
	default:
		return 0, false
	}
}

func toFloat64(raw any) (float64, bool) {
	switch n := raw.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int64:
		return float64(n), true
	case int:
		return float64(n), true
	case json.Number:
		if v, err := n.Float64(); err == nil {
			return v, true
		}
		return 0, false
	default:
		return 0, false
	}
}
