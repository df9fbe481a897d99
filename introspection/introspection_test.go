package introspection

import (
	"context"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/songlinshu/vector/engine"
	"github.com/songlinshu/vector/schema"
)

// boundService builds a small pipeline schema with introspection grafted on
// and returns the executor plus the service.
func boundService(t *testing.T) (*engine.Executor, *Service) {
	t.Helper()

	cfg := schema.Config{
		Query: "Query",
		Types: []*schema.Type{
			{
				Name:       "ComponentKind",
				Kind:       schema.KindEnum,
				EnumValues: []string{"INPUT", "PROCESSOR", "OUTPUT"},
			},
			{
				Name:        "Component",
				Kind:        schema.KindObject,
				Description: "One pipeline stage",
				Fields: []*schema.Field{
					{Name: "name", Type: schema.NonNull(schema.Named(schema.ScalarString))},
					{Name: "kind", Type: schema.NonNull(schema.Named("ComponentKind"))},
				},
			},
			{
				Name: "Query",
				Kind: schema.KindObject,
				Fields: []*schema.Field{
					{
						Name: "components",
						Type: schema.ListOf(schema.NonNull(schema.Named("Component"))),
						Args: []*schema.Argument{
							{
								Name:       "limit",
								Type:       schema.Named(schema.ScalarInt),
								Default:    int64(10),
								HasDefault: true,
							},
						},
						Resolve: func(context.Context, any, map[string]any) (any, error) {
							return []any{}, nil
						},
					},
				},
			},
		},
	}

	extended, svc, err := Extend(cfg)
	require.NoError(t, err)

	reg, err := schema.New(extended)
	require.NoError(t, err)
	svc.Bind(reg)

	return engine.NewExecutor(reg, nil), svc
}

func execute(t *testing.T, exec *engine.Executor, query string) map[string]any {
	t.Helper()
	op, err := engine.Parse(query, "", nil, 0)
	require.NoError(t, err)
	env := exec.Execute(context.Background(), op, nil)
	require.False(t, env.HasErrors(), "unexpected errors: %v", env.Errors)
	return env.Data.(map[string]any)
}

func TestSchemaQuery(t *testing.T) {
	exec, _ := boundService(t)

	data := execute(t, exec, `{
		__schema {
			queryType { name }
			mutationType { name }
			types { name kind }
		}
	}`)

	sch := data["__schema"].(map[string]any)
	assert.Equal(t, "Query", sch["queryType"].(map[string]any)["name"])
	assert.Nil(t, sch["mutationType"], "schema declares no mutation root")

	names := map[string]string{}
	for _, raw := range sch["types"].([]any) {
		tv := raw.(map[string]any)
		names[tv["name"].(string)] = tv["kind"].(string)
	}
	assert.Equal(t, "OBJECT", names["Component"])
	assert.Equal(t, "ENUM", names["ComponentKind"])
	assert.Equal(t, "SCALAR", names["Timestamp"])
	assert.Equal(t, "OBJECT", names["__Schema"], "meta types are themselves listed")
}

func TestTypeQuery(t *testing.T) {
	exec, _ := boundService(t)

	data := execute(t, exec, `{
		__type(name: "Component") {
			kind
			name
			description
			fields {
				name
				type { kind name ofType { kind name } }
			}
		}
	}`)

	tv := data["__type"].(map[string]any)
	assert.Equal(t, "OBJECT", tv["kind"])
	assert.Equal(t, "One pipeline stage", tv["description"])

	fields := tv["fields"].([]any)
	require.Len(t, fields, 2)
	nameField := fields[0].(map[string]any)
	assert.Equal(t, "name", nameField["name"])

	// String! renders as NON_NULL wrapping String.
	ref := nameField["type"].(map[string]any)
	assert.Equal(t, "NON_NULL", ref["kind"])
	assert.Nil(t, ref["name"])
	assert.Equal(t, "String", ref["ofType"].(map[string]any)["name"])
}

func TestTypeQueryArgumentsAndDefaults(t *testing.T) {
	exec, _ := boundService(t)

	data := execute(t, exec, `{
		__type(name: "Query") {
			fields { name args { name defaultValue type { kind } } }
		}
	}`)

	fields := data["__type"].(map[string]any)["fields"].([]any)
	require.Len(t, fields, 1, "meta fields stay out of the query root's listing")

	components := fields[0].(map[string]any)
	assert.Equal(t, "components", components["name"])
	args := components["args"].([]any)
	require.Len(t, args, 1)
	assert.Equal(t, "limit", args[0].(map[string]any)["name"])
	assert.Equal(t, "10", args[0].(map[string]any)["defaultValue"])
}

func TestTypeQueryUnknownName(t *testing.T) {
	exec, _ := boundService(t)

	data := execute(t, exec, `{ __type(name: "Nope") { name } }`)
	assert.Nil(t, data["__type"])
}

func TestEnumIntrospection(t *testing.T) {
	exec, _ := boundService(t)

	data := execute(t, exec, `{ __type(name: "ComponentKind") { enumValues { name } } }`)

	values := data["__type"].(map[string]any)["enumValues"].([]any)
	var names []string
	for _, v := range values {
		names = append(names, v.(map[string]any)["name"].(string))
	}
	assert.Equal(t, []string{"INPUT", "PROCESSOR", "OUTPUT"}, names)
}

// The snapshot is computed once: repeated schema queries return identical
// results and the same underlying views.
func TestSnapshotStable(t *testing.T) {
	exec, svc := boundService(t)

	first := execute(t, exec, `{ __schema { types { name kind } } }`)
	second := execute(t, exec, `{ __schema { types { name kind } } }`)
	assert.Empty(t, cmp.Diff(first, second))

	v1, err := svc.Schema()
	require.NoError(t, err)
	v2, err := svc.Schema()
	require.NoError(t, err)
	assert.Same(t, v1, v2)
}

// Every type reachable from any view is itself in the schema's type list:
// the views form a closed graph.
func TestViewClosure(t *testing.T) {
	_, svc := boundService(t)

	view, err := svc.Schema()
	require.NoError(t, err)

	listed := map[*TypeView]bool{}
	for _, tv := range view.Types {
		listed[tv] = true
	}

	visited := map[*TypeView]bool{}
	var check func(tv *TypeView)
	check = func(tv *TypeView) {
		if tv == nil {
			return
		}
		// Unwrap LIST/NON_NULL down to the named core.
		for tv.OfType != nil {
			tv = tv.OfType
		}
		assert.True(t, listed[tv], "type %v escapes the catalog", tv.Name)
		if visited[tv] {
			return
		}
		visited[tv] = true
		for _, f := range tv.Fields {
			check(f.Type)
			for _, a := range f.Args {
				check(a.Type)
			}
		}
		for _, p := range tv.PossibleTypes {
			check(p)
		}
	}
	check(view.QueryType)
	for _, tv := range view.Types {
		check(tv)
	}
}

func TestExtendRequiresQueryRoot(t *testing.T) {
	_, _, err := Extend(schema.Config{Query: "Query"})
	require.Error(t, err)
}

func TestUnboundServiceFails(t *testing.T) {
	cfg := schema.Config{
		Query: "Query",
		Types: []*schema.Type{
			{
				Name: "Query",
				Kind: schema.KindObject,
				Fields: []*schema.Field{
					{Name: "ok", Type: schema.Named(schema.ScalarBoolean)},
				},
			},
		},
	}
	_, svc, err := Extend(cfg)
	require.NoError(t, err)

	_, err = svc.Schema()
	require.Error(t, err)
}
