package introspection

import "github.com/songlinshu/vector/schema"

// Wrapper kinds used by reference views alongside the named kinds of
// schema.Kind.
const (
	kindList    = "LIST"
	kindNonNull = "NON_NULL"
)

// SchemaView is the resolved value of the __schema field.
type SchemaView struct {
	Types            []*TypeView
	QueryType        *TypeView
	MutationType     *TypeView
	SubscriptionType *TypeView
}

// TypeView represents one node of the type graph: a named type, or a LIST
// or NON_NULL wrapper whose OfType points inward. Named views are shared,
// so the graph is closed: every type reachable from any view is itself one
// of the schema's views.
type TypeView struct {
	Kind          string
	Name          any
	Description   any
	Fields        []*FieldView
	EnumValues    []*EnumValueView
	PossibleTypes []*TypeView
	OfType        *TypeView
}

// FieldView describes one output field.
type FieldView struct {
	Name        string
	Description any
	Args        []*InputValueView
	Type        *TypeView
}

// InputValueView describes one argument declaration.
type InputValueView struct {
	Name         string
	Description  any
	Type         *TypeView
	DefaultValue any
}

// EnumValueView describes one enum member.
type EnumValueView struct {
	Name        string
	Description any
}

// metaTypes returns the introspection type descriptors. They resolve
// through the executor's default field resolution over the view structs,
// so none of them carries an explicit resolver.
func metaTypes() []*schema.Type {
	return []*schema.Type{
		{
			Name:        "__TypeKind",
			Kind:        schema.KindEnum,
			Description: "The variants of a type node",
			EnumValues: []string{
				string(schema.KindScalar),
				string(schema.KindObject),
				string(schema.KindInterface),
				string(schema.KindUnion),
				string(schema.KindEnum),
				kindList,
				kindNonNull,
			},
		},
		{
			Name:        "__Schema",
			Kind:        schema.KindObject,
			Description: "The registry's complete type catalog and root bindings",
			Fields: []*schema.Field{
				{Name: "types", Type: schema.NonNull(schema.ListOf(schema.NonNull(schema.Named("__Type"))))},
				{Name: "queryType", Type: schema.NonNull(schema.Named("__Type"))},
				{Name: "mutationType", Type: schema.Named("__Type")},
				{Name: "subscriptionType", Type: schema.Named("__Type")},
			},
		},
		{
			Name:        "__Type",
			Kind:        schema.KindObject,
			Description: "A named type or a LIST/NON_NULL wrapper",
			Fields: []*schema.Field{
				{Name: "kind", Type: schema.NonNull(schema.Named("__TypeKind"))},
				{Name: "name", Type: schema.Named(schema.ScalarString)},
				{Name: "description", Type: schema.Named(schema.ScalarString)},
				{Name: "fields", Type: schema.ListOf(schema.NonNull(schema.Named("__Field")))},
				{Name: "enumValues", Type: schema.ListOf(schema.NonNull(schema.Named("__EnumValue")))},
				{Name: "possibleTypes", Type: schema.ListOf(schema.NonNull(schema.Named("__Type")))},
				{Name: "ofType", Type: schema.Named("__Type")},
			},
		},
		{
			Name: "__Field",
			Kind: schema.KindObject,
			Fields: []*schema.Field{
				{Name: "name", Type: schema.NonNull(schema.Named(schema.ScalarString))},
				{Name: "description", Type: schema.Named(schema.ScalarString)},
				{Name: "args", Type: schema.NonNull(schema.ListOf(schema.NonNull(schema.Named("__InputValue"))))},
				{Name: "type", Type: schema.NonNull(schema.Named("__Type"))},
			},
		},
		{
			Name: "__InputValue",
			Kind: schema.KindObject,
			Fields: []*schema.Field{
				{Name: "name", Type: schema.NonNull(schema.Named(schema.ScalarString))},
				{Name: "description", Type: schema.Named(schema.ScalarString)},
				{Name: "type", Type: schema.NonNull(schema.Named("__Type"))},
				{Name: "defaultValue", Type: schema.Named(schema.ScalarString)},
			},
		},
		{
			Name: "__EnumValue",
			Kind: schema.KindObject,
			Fields: []*schema.Field{
				{Name: "name", Type: schema.NonNull(schema.Named(schema.ScalarString))},
				{Name: "description", Type: schema.Named(schema.ScalarString)},
			},
		},
	}
}
