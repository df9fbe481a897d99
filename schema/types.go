// Package schema defines the type system for the observability API and the
// immutable registry built from it. The registry is constructed once at
// startup from declarative descriptors supplied by the host pipeline and is
// safe for unlocked concurrent reads afterwards.
package schema

import (
	"context"
	"regexp"
)

// Kind discriminates the variants of a named type.
type Kind string

const (
	KindScalar    Kind = "SCALAR"
	KindObject    Kind = "OBJECT"
	KindEnum      Kind = "ENUM"
	KindUnion     Kind = "UNION"
	KindInterface Kind = "INTERFACE"
)

// RefKind discriminates type reference wrappers.
type RefKind string

const (
	RefNamed   RefKind = "NAMED"
	RefList    RefKind = "LIST"
	RefNonNull RefKind = "NON_NULL"
)

// TypeRef references a named type, possibly wrapped in list and non-null
// modifiers.
type TypeRef struct {
	Kind   RefKind
	OfType *TypeRef // for RefList and RefNonNull
	Name   string   // for RefNamed
}

// Named returns a reference to the named type.
func Named(name string) *TypeRef { return &TypeRef{Kind: RefNamed, Name: name} }

// ListOf wraps a reference in a list modifier.
func ListOf(inner *TypeRef) *TypeRef { return &TypeRef{Kind: RefList, OfType: inner} }

// NonNull wraps a reference in a non-null modifier.
func NonNull(inner *TypeRef) *TypeRef { return &TypeRef{Kind: RefNonNull, OfType: inner} }

// IsNonNull reports whether the outermost modifier is non-null.
func (t *TypeRef) IsNonNull() bool { return t != nil && t.Kind == RefNonNull }

// IsList reports whether the reference is a list, ignoring an outer non-null.
func (t *TypeRef) IsList() bool {
	if t == nil {
		return false
	}
	if t.Kind == RefList {
		return true
	}
	return t.Kind == RefNonNull && t.OfType != nil && t.OfType.Kind == RefList
}

// Unwrap removes one modifier layer. Named references unwrap to themselves.
func (t *TypeRef) Unwrap() *TypeRef {
	if t.Kind == RefList || t.Kind == RefNonNull {
		return t.OfType
	}
	return t
}

// NamedType returns the innermost type name.
func (t *TypeRef) NamedType() string {
	for cur := t; cur != nil; cur = cur.OfType {
		if cur.Name != "" {
			return cur.Name
		}
	}
	return ""
}

// String renders the reference in type notation, e.g. "[Component!]!".
func (t *TypeRef) String() string {
	if t == nil {
		return ""
	}
	switch t.Kind {
	case RefNonNull:
		return t.OfType.String() + "!"
	case RefList:
		return "[" + t.OfType.String() + "]"
	default:
		return t.Name
	}
}

// ResolveFunc produces a field's value from its parent value and validated
// arguments. Returning an error records a field-level error at the field's
// path without aborting sibling resolution.
type ResolveFunc func(ctx context.Context, parent any, args map[string]any) (any, error)

// EncodeFunc serializes a scalar's raw resolver output to a JSON-safe value.
type EncodeFunc func(value any) (any, error)

// EventSource is a lazy, potentially infinite sequence of raw values backing
// one subscription. Next blocks until the next value is produced, ctx is
// cancelled, or the source fails. A non-nil error is terminal: the source
// will not be pulled again and Close is called exactly once afterwards.
type EventSource interface {
	Next(ctx context.Context) (any, error)
	Close() error
}

// SubscribeFunc creates the event source for one accepted subscription.
// Arguments have already passed validation.
type SubscribeFunc func(ctx context.Context, args map[string]any) (EventSource, error)

// Type is a named schema element.
type Type struct {
	Name        string
	Kind        Kind
	Description string

	Fields        []*Field   // KindObject, KindInterface
	EnumValues    []string   // KindEnum
	PossibleTypes []string   // KindUnion, KindInterface
	Encode        EncodeFunc // KindScalar, optional

	// ResolveConcrete maps a value of this abstract type to the name of its
	// concrete object type. Required for KindUnion and KindInterface.
	ResolveConcrete func(value any) (string, error)
}

// Field belongs to exactly one owning type.
type Field struct {
	Name        string
	Description string
	Type        *TypeRef
	Args        []*Argument

	Resolve ResolveFunc
	// Subscribe is set instead of Resolve for fields on the root
	// subscription type.
	Subscribe SubscribeFunc
}

// Arg returns the declared argument with the given name, or nil.
func (f *Field) Arg(name string) *Argument {
	for _, a := range f.Args {
		if a.Name == name {
			return a
		}
	}
	return nil
}

// Argument declares one field argument with its validation constraints.
type Argument struct {
	Name        string
	Description string
	Type        *TypeRef

	// Default is substituted when the caller omits the argument.
	// HasDefault distinguishes "no default" from "default null".
	Default    any
	HasDefault bool

	// Min and Max bound numeric arguments inclusively.
	Min *float64
	Max *float64

	// Pattern constrains string arguments; compiled during registry build.
	Pattern string
	pattern *regexp.Regexp
}

// Required reports whether the argument must be supplied: declared non-null
// with no default.
func (a *Argument) Required() bool {
	return a.Type.IsNonNull() && !a.HasDefault
}

// MatchesPattern reports whether s satisfies the compiled pattern
// constraint. Arguments without a pattern match everything.
func (a *Argument) MatchesPattern(s string) bool {
	if a.pattern == nil {
		return true
	}
	return a.pattern.MatchString(s)
}
