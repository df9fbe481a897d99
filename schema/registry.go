package schema

import (
	"fmt"
	"regexp"

	"github.com/songlinshu/vector/errors"
)

// Config is the declarative input to a registry build: the root type names
// and every application type. Built-in scalars are registered implicitly.
type Config struct {
	// Query names the root query type. Required.
	Query string
	// Mutation and Subscription name their root types; empty disables the
	// corresponding operation kind.
	Mutation     string
	Subscription string

	Types []*Type
}

// Registry is the immutable set of all named types. Built once at process
// start; read-only afterwards, so lookups need no locking.
type Registry struct {
	types map[string]*Type
	order []string // registration order, for stable introspection output

	query        string
	mutation     string
	subscription string
}

// New builds a registry from descriptors and verifies its integrity: every
// field return type and argument type must resolve to a registered type,
// union and interface members must resolve to registered objects, and
// pattern constraints must compile. Any violation fails the build; the
// caller is expected to treat that as fatal at startup.
func New(cfg Config) (*Registry, error) {
	r := &Registry{
		types:        make(map[string]*Type),
		query:        cfg.Query,
		mutation:     cfg.Mutation,
		subscription: cfg.Subscription,
	}

	for _, t := range builtinScalars() {
		r.types[t.Name] = t
		r.order = append(r.order, t.Name)
	}

	for _, t := range cfg.Types {
		if t.Name == "" {
			return nil, errors.WrapFatal(errors.ErrInvalidConfig, "Registry", "New",
				"type descriptor with empty name")
		}
		if _, exists := r.types[t.Name]; exists {
			return nil, errors.WrapFatal(errors.ErrDuplicateType, "Registry", "New",
				fmt.Sprintf("register type %q", t.Name))
		}
		r.types[t.Name] = t
		r.order = append(r.order, t.Name)
	}

	if err := r.checkIntegrity(); err != nil {
		return nil, err
	}
	return r, nil
}

// checkIntegrity walks every declared reference once. This runs only at
// build time; a registry that survives it cannot produce dangling-type
// errors at runtime.
func (r *Registry) checkIntegrity() error {
	if r.query == "" {
		return errors.WrapFatal(errors.ErrNoRootType, "Registry", "checkIntegrity",
			"query root type name")
	}
	for _, root := range []struct{ role, name string }{
		{"query", r.query},
		{"mutation", r.mutation},
		{"subscription", r.subscription},
	} {
		if root.name == "" {
			continue
		}
		t, ok := r.types[root.name]
		if !ok {
			return errors.WrapFatal(errors.ErrTypeNotFound, "Registry", "checkIntegrity",
				fmt.Sprintf("%s root type %q", root.role, root.name))
		}
		if t.Kind != KindObject {
			return errors.WrapFatal(errors.ErrInvalidConfig, "Registry", "checkIntegrity",
				fmt.Sprintf("%s root type %q must be an object, got %s", root.role, root.name, t.Kind))
		}
	}

	for _, name := range r.order {
		t := r.types[name]
		switch t.Kind {
		case KindObject, KindInterface:
			if len(t.Fields) == 0 {
				return errors.WrapFatal(errors.ErrInvalidConfig, "Registry", "checkIntegrity",
					fmt.Sprintf("type %q declares no fields", name))
			}
			if err := r.checkFields(t); err != nil {
				return err
			}
		case KindEnum:
			if len(t.EnumValues) == 0 {
				return errors.WrapFatal(errors.ErrInvalidConfig, "Registry", "checkIntegrity",
					fmt.Sprintf("enum %q declares no values", name))
			}
		case KindScalar:
			// nothing to verify
		case KindUnion:
			if len(t.PossibleTypes) == 0 {
				return errors.WrapFatal(errors.ErrInvalidConfig, "Registry", "checkIntegrity",
					fmt.Sprintf("union %q declares no members", name))
			}
		default:
			return errors.WrapFatal(errors.ErrInvalidConfig, "Registry", "checkIntegrity",
				fmt.Sprintf("type %q has unknown kind %q", name, t.Kind))
		}

		for _, member := range t.PossibleTypes {
			mt, ok := r.types[member]
			if !ok {
				return errors.WrapFatal(errors.ErrDanglingTypeRef, "Registry", "checkIntegrity",
					fmt.Sprintf("%s member %q of %q", t.Kind, member, name))
			}
			if mt.Kind != KindObject {
				return errors.WrapFatal(errors.ErrInvalidConfig, "Registry", "checkIntegrity",
					fmt.Sprintf("%s member %q of %q must be an object", t.Kind, member, name))
			}
		}
		if (t.Kind == KindUnion || t.Kind == KindInterface) && t.ResolveConcrete == nil {
			return errors.WrapFatal(errors.ErrInvalidConfig, "Registry", "checkIntegrity",
				fmt.Sprintf("abstract type %q needs a concrete-type resolver", name))
		}
	}
	return nil
}

func (r *Registry) checkFields(owner *Type) error {
	seen := make(map[string]struct{}, len(owner.Fields))
	for _, f := range owner.Fields {
		if _, dup := seen[f.Name]; dup {
			return errors.WrapFatal(errors.ErrInvalidConfig, "Registry", "checkFields",
				fmt.Sprintf("duplicate field %q on type %q", f.Name, owner.Name))
		}
		seen[f.Name] = struct{}{}

		retName := f.Type.NamedType()
		if _, ok := r.types[retName]; !ok {
			return errors.WrapFatal(errors.ErrDanglingTypeRef, "Registry", "checkFields",
				fmt.Sprintf("field %s.%s returns unregistered type %q", owner.Name, f.Name, retName))
		}

		isSubscriptionRoot := owner.Name == r.subscription
		if isSubscriptionRoot && f.Subscribe == nil {
			return errors.WrapFatal(errors.ErrInvalidConfig, "Registry", "checkFields",
				fmt.Sprintf("subscription field %s.%s has no event source", owner.Name, f.Name))
		}
		if !isSubscriptionRoot && f.Subscribe != nil {
			return errors.WrapFatal(errors.ErrInvalidConfig, "Registry", "checkFields",
				fmt.Sprintf("field %s.%s declares an event source outside the subscription root", owner.Name, f.Name))
		}

		for _, a := range f.Args {
			argName := a.Type.NamedType()
			at, ok := r.types[argName]
			if !ok {
				return errors.WrapFatal(errors.ErrDanglingTypeRef, "Registry", "checkFields",
					fmt.Sprintf("argument %s.%s(%s:) declares unregistered type %q",
						owner.Name, f.Name, a.Name, argName))
			}
			if at.Kind != KindScalar && at.Kind != KindEnum {
				return errors.WrapFatal(errors.ErrInvalidConfig, "Registry", "checkFields",
					fmt.Sprintf("argument %s.%s(%s:) must be scalar or enum, got %s",
						owner.Name, f.Name, a.Name, at.Kind))
			}
			if a.Min != nil && a.Max != nil && *a.Min > *a.Max {
				return errors.WrapFatal(errors.ErrInvalidConfig, "Registry", "checkFields",
					fmt.Sprintf("argument %s.%s(%s:) range has min > max", owner.Name, f.Name, a.Name))
			}
			if a.Pattern != "" {
				re, err := regexp.Compile(a.Pattern)
				if err != nil {
					return errors.WrapFatal(err, "Registry", "checkFields",
						fmt.Sprintf("argument %s.%s(%s:) pattern", owner.Name, f.Name, a.Name))
				}
				a.pattern = re
			}
		}
	}
	return nil
}

// Lookup resolves a type by name.
func (r *Registry) Lookup(name string) (*Type, bool) {
	t, ok := r.types[name]
	return t, ok
}

// FieldsOf returns the declared fields of a type in declaration order.
// Non-composite types have none.
func (r *Registry) FieldsOf(t *Type) []*Field {
	if t == nil {
		return nil
	}
	return t.Fields
}

// Field resolves a field by owning type name and field name.
func (r *Registry) Field(typeName, fieldName string) (*Field, bool) {
	t, ok := r.types[typeName]
	if !ok {
		return nil, false
	}
	for _, f := range t.Fields {
		if f.Name == fieldName {
			return f, true
		}
	}
	return nil, false
}

// QueryType returns the root query type.
func (r *Registry) QueryType() *Type { return r.types[r.query] }

// MutationType returns the root mutation type, or nil when mutations are
// not exposed.
func (r *Registry) MutationType() *Type { return r.types[r.mutation] }

// SubscriptionType returns the root subscription type, or nil when
// subscriptions are not exposed.
func (r *Registry) SubscriptionType() *Type { return r.types[r.subscription] }

// Describe returns every registered type in registration order. The slice
// is rebuilt per call; the *Type values are shared and must not be mutated.
func (r *Registry) Describe() []*Type {
	out := make([]*Type, 0, len(r.order))
	for _, name := range r.order {
		out = append(out, r.types[name])
	}
	return out
}

// Len returns the number of registered types including built-in scalars.
func (r *Registry) Len() int { return len(r.types) }
