package engine

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vektah/gqlparser/v2/ast"

	"github.com/songlinshu/vector/errors"
)

func TestParseSelectsOperation(t *testing.T) {
	doc := `
		query Topology { topology { name } }
		query Health { health { state } }
	`

	op, err := Parse(doc, "Health", nil, 0)
	require.NoError(t, err)
	assert.Equal(t, ast.Query, op.Kind)
	assert.Equal(t, "Health", op.Name)

	_, err = Parse(doc, "", nil, 0)
	require.Error(t, err, "ambiguous document needs an operation name")
	assert.ErrorIs(t, err, errors.ErrUnknownOperation)

	_, err = Parse(doc, "Nope", nil, 0)
	require.Error(t, err)
	assert.ErrorIs(t, err, errors.ErrUnknownOperation)
}

func TestParseSingleOperationNeedsNoName(t *testing.T) {
	op, err := Parse(`subscription { heartbeat { utc } }`, "", nil, 0)
	require.NoError(t, err)
	assert.Equal(t, ast.Subscription, op.Kind)
}

func TestParseSyntaxError(t *testing.T) {
	_, err := Parse(`{ topology { `, "", nil, 0)
	require.Error(t, err)
	assert.True(t, errors.IsInvalid(err))
}

func TestParseDepthBound(t *testing.T) {
	build := func(depth int) string {
		q := "{ "
		for i := 0; i < depth; i++ {
			q += "f { "
		}
		q += "leaf"
		q += strings.Repeat(" }", depth)
		q += " }"
		return q
	}

	// depth+1 field levels total: the leaf adds one.
	_, err := Parse(build(9), "", nil, 10)
	require.NoError(t, err)

	_, err = Parse(build(10), "", nil, 10)
	require.Error(t, err)
	assert.ErrorIs(t, err, errors.ErrDepthExceeded)
	assert.True(t, errors.IsInvalid(err))
}

// Cyclic fragments must not loop the depth measurement.
func TestParseDepthCyclicFragments(t *testing.T) {
	doc := `
		query { topology { ...a } }
		fragment a on Topology { components { ...b } }
		fragment b on Component { edges { ...a } }
	`
	_, err := Parse(doc, "", nil, 0)
	require.NoError(t, err)
}

// A fragment spread at several nesting levels contributes its full depth at
// each site, so the deepest spread decides whether the bound is exceeded.
func TestParseDepthFragmentReusedDeeper(t *testing.T) {
	doc := `
		query { ...details x { y { z { ...details } } } }
		fragment details on Query { c { d { leaf } } }
	`

	// The spread under x.y.z reaches six field levels.
	_, err := Parse(doc, "", nil, 5)
	require.Error(t, err)
	assert.ErrorIs(t, err, errors.ErrDepthExceeded)
	assert.True(t, errors.IsInvalid(err))

	_, err = Parse(doc, "", nil, 6)
	require.NoError(t, err)
}

func TestParseVariables(t *testing.T) {
	doc := `query ($name: String!, $limit: Int = 25, $tag: String) {
		component(name: $name, limit: $limit, tag: $tag) { name }
	}`

	t.Run("supplied and defaulted", func(t *testing.T) {
		op, err := Parse(doc, "", map[string]any{"name": "udp-in"}, 0)
		require.NoError(t, err)
		assert.Equal(t, "udp-in", op.variables["name"])
		assert.Equal(t, int64(25), op.variables["limit"])
		_, present := op.variables["tag"]
		assert.False(t, present)
	})

	t.Run("missing required", func(t *testing.T) {
		_, err := Parse(doc, "", nil, 0)
		require.Error(t, err)
		assert.True(t, errors.IsInvalid(err))
		assert.Contains(t, err.Error(), "$name")
	})

	t.Run("null for non-null", func(t *testing.T) {
		_, err := Parse(doc, "", map[string]any{"name": nil}, 0)
		require.Error(t, err)
	})
}

// Arguments bound to omitted nullable variables stay absent so declared
// argument defaults can apply downstream.
func TestRawArgumentsOmittedVariable(t *testing.T) {
	op, err := Parse(
		`query ($interval: Int) { heartbeat(interval: $interval) { utc } }`,
		"", nil, 0)
	require.NoError(t, err)

	field := op.def.SelectionSet[0].(*ast.Field)
	raw := rawArguments(field, op.variables)
	_, present := raw["interval"]
	assert.False(t, present)
}

func TestPathString(t *testing.T) {
	p := Path{}.child("topology").child("components").child(2).child("health")
	assert.Equal(t, "topology.components[2].health", p.String())

	// child copies; extending one branch never mutates a sibling.
	base := Path{}.child("a")
	left := base.child("left")
	right := base.child("right")
	assert.Equal(t, "a.left", left.String())
	assert.Equal(t, "a.right", right.String())
}
