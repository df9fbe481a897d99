package engine

import (
	"context"
	"fmt"
	"log/slog"
	"reflect"
	"unicode"
	"unicode/utf8"

	"github.com/vektah/gqlparser/v2/ast"

	"github.com/songlinshu/vector/errors"
	"github.com/songlinshu/vector/schema"
)

// Executor walks a parsed operation's selection set depth-first against the
// registry, invoking resolvers and assembling the response envelope. A
// resolver failure nulls its own field and records an error at that field's
// path; siblings keep resolving. Null only climbs when it hits a non-null
// declaration.
type Executor struct {
	reg       *schema.Registry
	validator *Validator
	logger    *slog.Logger
}

// NewExecutor creates an executor over the given registry.
func NewExecutor(reg *schema.Registry, logger *slog.Logger) *Executor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Executor{
		reg:       reg,
		validator: NewValidator(reg),
		logger:    logger.With("component", "engine"),
	}
}

// Validator returns the executor's argument validator.
func (e *Executor) Validator() *Validator { return e.validator }

// Execute resolves a query or mutation operation against rootValue and
// returns the envelope. Root-field failures (unknown field, argument
// validation) reject the whole operation; failures below the root surface
// as field-level errors alongside whatever data did resolve. Subscriptions
// are not executed here.
func (e *Executor) Execute(ctx context.Context, op *Operation, rootValue any) *Envelope {
	var rootType *schema.Type
	switch op.Kind {
	case ast.Query:
		rootType = e.reg.QueryType()
	case ast.Mutation:
		rootType = e.reg.MutationType()
	case ast.Subscription:
		return ErrorEnvelope(errors.WrapInvalid(errors.ErrUnknownOperation, "Executor", "Execute",
			"subscription requires a streaming transport"))
	}
	if rootType == nil {
		return ErrorEnvelope(errors.WrapInvalid(errors.ErrNoRootType, "Executor", "Execute",
			fmt.Sprintf("schema declares no %s root", op.Kind)))
	}

	if err := e.validateRoot(rootType, op); err != nil {
		return ErrorEnvelope(err)
	}

	r := &resolution{exec: e, op: op}
	data, ok := r.executeSelectionSet(ctx, rootType, rootValue, op.def.SelectionSet, Path{})
	env := &Envelope{Errors: r.errs}
	if ok {
		env.Data = data
	}
	return env
}

// validateRoot checks every root field and its arguments before any
// resolver runs, so an invalid operation produces no partial side effects.
func (e *Executor) validateRoot(rootType *schema.Type, op *Operation) error {
	for _, cf := range collectFields(e.reg, op.doc, rootType, op.def.SelectionSet) {
		astField := cf.Fields[0]
		if astField.Name == typenameField {
			continue
		}
		fieldDef, ok := e.reg.Field(rootType.Name, astField.Name)
		if !ok {
			return errors.WrapInvalid(errors.ErrFieldNotFound, "Executor", "Execute",
				fmt.Sprintf("field %q on type %s", astField.Name, rootType.Name))
		}
		if _, err := e.validator.Validate(fieldDef, rawArguments(astField, op.variables)); err != nil {
			return err
		}
	}
	return nil
}

// SubscriptionField extracts the single root field of a subscription
// operation along with its schema declaration and validated arguments.
func (e *Executor) SubscriptionField(op *Operation) (*schema.Field, *ast.Field, map[string]any, error) {
	if op.Kind != ast.Subscription {
		return nil, nil, nil, errors.WrapInvalid(errors.ErrUnknownOperation, "Executor", "SubscriptionField",
			fmt.Sprintf("%s operation is not a subscription", op.Kind))
	}
	subType := e.reg.SubscriptionType()
	if subType == nil {
		return nil, nil, nil, errors.WrapInvalid(errors.ErrNoRootType, "Executor", "SubscriptionField",
			"schema declares no subscription root")
	}

	collected := collectFields(e.reg, op.doc, subType, op.def.SelectionSet)
	if len(collected) != 1 {
		return nil, nil, nil, errors.WrapInvalid(errors.ErrEmptySelection, "Executor", "SubscriptionField",
			fmt.Sprintf("subscription must select exactly one root field, got %d", len(collected)))
	}
	astField := collected[0].Fields[0]
	if astField.Name == typenameField {
		return nil, nil, nil, errors.WrapInvalid(errors.ErrFieldNotFound, "Executor", "SubscriptionField",
			"subscription cannot select only __typename")
	}
	fieldDef, ok := e.reg.Field(subType.Name, astField.Name)
	if !ok {
		return nil, nil, nil, errors.WrapInvalid(errors.ErrFieldNotFound, "Executor", "SubscriptionField",
			fmt.Sprintf("field %q on type %s", astField.Name, subType.Name))
	}
	if fieldDef.Subscribe == nil {
		return nil, nil, nil, errors.WrapInvalid(errors.ErrFieldNotFound, "Executor", "SubscriptionField",
			fmt.Sprintf("field %q is not subscribable", astField.Name))
	}
	args, err := e.validator.Validate(fieldDef, rawArguments(astField, op.variables))
	if err != nil {
		return nil, nil, nil, err
	}
	return fieldDef, astField, args, nil
}

// ResolveEmission completes one event-source emission through the
// subscription field's selection set, producing the envelope delivered to
// the subscriber. When the field declares a Resolve it maps the raw
// emission to the field's payload first.
func (e *Executor) ResolveEmission(ctx context.Context, op *Operation, fieldDef *schema.Field, astField *ast.Field, args map[string]any, emission any) *Envelope {
	responseName := astField.Alias
	if responseName == "" {
		responseName = astField.Name
	}

	r := &resolution{exec: e, op: op}
	payload := emission
	if fieldDef.Resolve != nil {
		var err error
		payload, err = r.invoke(ctx, fieldDef, emission, args)
		if err != nil {
			r.addError(Path{responseName}, err)
			return &Envelope{Errors: r.errs}
		}
	}

	value, ok := r.completeValue(ctx, fieldDef.Type, payload, astField.SelectionSet, Path{responseName})
	env := &Envelope{Errors: r.errs}
	if ok {
		env.Data = map[string]any{responseName: value}
	}
	return env
}

const typenameField = "__typename"

// resolution carries the error accumulator of one Execute pass.
type resolution struct {
	exec *Executor
	op   *Operation
	errs []*FieldError
}

func (r *resolution) addError(path Path, err error) {
	r.errs = append(r.errs, &FieldError{Message: err.Error(), Path: path})
}

// executeSelectionSet resolves every collected field of an object value.
// ok is false when a non-null field inside resolved to null and the null
// must climb past this object.
func (r *resolution) executeSelectionSet(ctx context.Context, objectType *schema.Type, parent any, set ast.SelectionSet, path Path) (map[string]any, bool) {
	collected := collectFields(r.exec.reg, r.op.doc, objectType, set)
	result := make(map[string]any, len(collected))
	for _, cf := range collected {
		value, ok := r.resolveField(ctx, objectType, parent, cf, path)
		if !ok {
			return nil, false
		}
		result[cf.ResponseName] = value
	}
	return result, true
}

// resolveField resolves one response key: argument validation, resolver
// invocation, value completion. ok is false only when null must propagate
// past the parent object.
func (r *resolution) resolveField(ctx context.Context, parentType *schema.Type, parent any, cf collectedField, path Path) (any, bool) {
	fieldPath := path.child(cf.ResponseName)
	astField := cf.Fields[0]

	if astField.Name == typenameField {
		return parentType.Name, true
	}

	fieldDef, ok := r.exec.reg.Field(parentType.Name, astField.Name)
	if !ok {
		r.addError(fieldPath, fmt.Errorf("unknown field %q on type %s", astField.Name, parentType.Name))
		return nil, true
	}

	args, err := r.exec.validator.Validate(fieldDef, rawArguments(astField, r.op.variables))
	if err != nil {
		r.addError(fieldPath, err)
		return r.nullFor(fieldDef.Type)
	}

	value, err := r.invoke(ctx, fieldDef, parent, args)
	if err != nil {
		r.addError(fieldPath, err)
		return r.nullFor(fieldDef.Type)
	}

	return r.completeValue(ctx, fieldDef.Type, value, mergeSelectionSets(cf.Fields), fieldPath)
}

// nullFor yields the null result for a failed field: propagation when the
// field is declared non-null, a plain null otherwise. The error has already
// been recorded.
func (r *resolution) nullFor(ref *schema.TypeRef) (any, bool) {
	if ref.IsNonNull() {
		return nil, false
	}
	return nil, true
}

// invoke calls the field's resolver, converting a panic into an error so a
// misbehaving resolver degrades to a field-level failure.
func (r *resolution) invoke(ctx context.Context, fieldDef *schema.Field, parent any, args map[string]any) (value any, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			r.exec.logger.Error("resolver panicked",
				"field", fieldDef.Name,
				"panic", rec)
			err = fmt.Errorf("resolver for field %q panicked: %v", fieldDef.Name, rec)
		}
	}()
	if fieldDef.Resolve == nil {
		return defaultResolve(parent, fieldDef.Name), nil
	}
	return fieldDef.Resolve(ctx, parent, args)
}

// completeValue converts a resolver result to its response form per the
// field's declared type, recursing through list and non-null modifiers.
func (r *resolution) completeValue(ctx context.Context, ref *schema.TypeRef, value any, set ast.SelectionSet, path Path) (any, bool) {
	if ref.IsNonNull() {
		inner, ok := r.completeValue(ctx, ref.Unwrap(), value, set, path)
		if !ok {
			return nil, false
		}
		if inner == nil {
			r.addError(path, fmt.Errorf("non-null field resolved to null"))
			return nil, false
		}
		return inner, true
	}

	if isNil(value) {
		return nil, true
	}

	if ref.Kind == schema.RefList {
		return r.completeList(ctx, ref, value, set, path)
	}

	typeName := ref.NamedType()
	t, ok := r.exec.reg.Lookup(typeName)
	if !ok {
		r.addError(path, fmt.Errorf("type %q not registered", typeName))
		return nil, true
	}

	switch t.Kind {
	case schema.KindScalar:
		if t.Encode == nil {
			return value, true
		}
		encoded, err := t.Encode(value)
		if err != nil {
			r.addError(path, fmt.Errorf("encode %s: %w", typeName, err))
			return nil, true
		}
		return encoded, true

	case schema.KindEnum:
		s := fmt.Sprintf("%v", value)
		for _, ev := range t.EnumValues {
			if ev == s {
				return s, true
			}
		}
		r.addError(path, fmt.Errorf("%q is not a value of enum %s", s, typeName))
		return nil, true

	case schema.KindObject:
		if len(set) == 0 {
			r.addError(path, fmt.Errorf("field of object type %s requires a selection set", typeName))
			return nil, true
		}
		obj, ok := r.executeSelectionSet(ctx, t, value, set, path)
		if !ok {
			// A non-null descendant nulled out; this object absorbs it
			// because it is itself nullable at this point.
			return nil, true
		}
		return obj, true

	case schema.KindUnion, schema.KindInterface:
		concreteName, err := t.ResolveConcrete(value)
		if err != nil {
			r.addError(path, fmt.Errorf("resolve concrete type of %s: %w", typeName, err))
			return nil, true
		}
		concrete, ok := r.exec.reg.Lookup(concreteName)
		if !ok || concrete.Kind != schema.KindObject {
			r.addError(path, fmt.Errorf("%s resolved to unknown object type %q", typeName, concreteName))
			return nil, true
		}
		obj, ok := r.executeSelectionSet(ctx, concrete, value, set, path)
		if !ok {
			return nil, true
		}
		return obj, true

	default:
		r.addError(path, fmt.Errorf("cannot complete value of kind %s", t.Kind))
		return nil, true
	}
}

// completeList completes each element at its indexed path. An element whose
// non-null constraint fails nulls the whole list.
func (r *resolution) completeList(ctx context.Context, ref *schema.TypeRef, value any, set ast.SelectionSet, path Path) (any, bool) {
	rv := reflect.ValueOf(value)
	if rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array {
		r.addError(path, fmt.Errorf("expected list value, got %T", value))
		return nil, true
	}

	elemRef := ref.Unwrap()
	out := make([]any, rv.Len())
	for i := 0; i < rv.Len(); i++ {
		elem, ok := r.completeValue(ctx, elemRef, rv.Index(i).Interface(), set, path.child(i))
		if !ok {
			return nil, true
		}
		out[i] = elem
	}
	return out, true
}

// defaultResolve extracts a field's value from its parent when no resolver
// is declared: map lookup by field name, or the exported struct field whose
// name matches with its first letter upcased.
func defaultResolve(parent any, name string) any {
	if parent == nil {
		return nil
	}
	if m, ok := parent.(map[string]any); ok {
		return m[name]
	}

	rv := reflect.ValueOf(parent)
	for rv.Kind() == reflect.Pointer {
		if rv.IsNil() {
			return nil
		}
		rv = rv.Elem()
	}
	if rv.Kind() != reflect.Struct {
		return nil
	}
	fv := rv.FieldByName(exportedName(name))
	if !fv.IsValid() || !fv.CanInterface() {
		return nil
	}
	return fv.Interface()
}

// isNil treats typed nil pointers, slices, and maps coming out of
// reflection-based resolvers the same as a plain nil.
func isNil(value any) bool {
	if value == nil {
		return true
	}
	rv := reflect.ValueOf(value)
	switch rv.Kind() {
	case reflect.Pointer, reflect.Slice, reflect.Map, reflect.Interface, reflect.Func, reflect.Chan:
		return rv.IsNil()
	}
	return false
}

func exportedName(name string) string {
	r, size := utf8.DecodeRuneInString(name)
	if r == utf8.RuneError {
		return name
	}
	return string(unicode.ToUpper(r)) + name[size:]
}
