package engine

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/songlinshu/vector/errors"
	"github.com/songlinshu/vector/schema"
)

func validatorFixture(t *testing.T) (*Validator, *schema.Registry) {
	t.Helper()

	reg, err := schema.New(schema.Config{
		Query: "Query",
		Types: []*schema.Type{
			{
				Name:       "Severity",
				Kind:       schema.KindEnum,
				EnumValues: []string{"INFO", "WARN", "ERROR"},
			},
			{
				Name: "Query",
				Kind: schema.KindObject,
				Fields: []*schema.Field{
					{
						Name: "logs",
						Type: schema.ListOf(schema.Named(schema.ScalarString)),
						Args: []*schema.Argument{
							{
								Name:    "component",
								Type:    schema.NonNull(schema.Named(schema.ScalarString)),
								Pattern: `^[a-z][a-z0-9-]*$`,
							},
							{
								Name:       "limit",
								Type:       schema.Named(schema.ScalarInt),
								Default:    int64(20),
								HasDefault: true,
								Min:        ptr(1.0),
								Max:        ptr(500.0),
							},
							{
								Name: "severities",
								Type: schema.ListOf(schema.NonNull(schema.Named("Severity"))),
							},
							{
								Name: "since",
								Type: schema.Named(schema.ScalarTimestamp),
							},
							{
								Name: "ratio",
								Type: schema.Named(schema.ScalarFloat),
								Min:  ptr(0.0),
								Max:  ptr(1.0),
							},
						},
						Resolve: func(context.Context, any, map[string]any) (any, error) {
							return []string{}, nil
						},
					},
				},
			},
		},
	})
	require.NoError(t, err)
	return NewValidator(reg), reg
}

func TestValidateDefaultsAndCoercion(t *testing.T) {
	v, reg := validatorFixture(t)
	field, ok := reg.Field("Query", "logs")
	require.True(t, ok)

	resolved, err := v.Validate(field, map[string]any{"component": "udp-in"})
	require.NoError(t, err)

	assert.Equal(t, "udp-in", resolved["component"])
	assert.Equal(t, int64(20), resolved["limit"], "omitted argument takes its default")
	_, present := resolved["severities"]
	assert.False(t, present, "optional argument with no default stays absent")
}

func TestValidateFailures(t *testing.T) {
	v, reg := validatorFixture(t)
	field, ok := reg.Field("Query", "logs")
	require.True(t, ok)

	tests := []struct {
		name     string
		supplied map[string]any
		argument string
		sentinel error
	}{
		{
			name:     "missing required",
			supplied: map[string]any{"limit": int64(5)},
			argument: "component",
			sentinel: errors.ErrMissingRequiredArgument,
		},
		{
			name:     "limit above maximum",
			supplied: map[string]any{"component": "udp-in", "limit": int64(10000)},
			argument: "limit",
			sentinel: errors.ErrArgumentOutOfRange,
		},
		{
			name:     "limit below minimum",
			supplied: map[string]any{"component": "udp-in", "limit": int64(0)},
			argument: "limit",
			sentinel: errors.ErrArgumentOutOfRange,
		},
		{
			name:     "pattern mismatch",
			supplied: map[string]any{"component": "UDP In"},
			argument: "component",
			sentinel: errors.ErrArgumentPatternMismatch,
		},
		{
			name:     "wrong type",
			supplied: map[string]any{"component": "udp-in", "limit": "many"},
			argument: "limit",
			sentinel: errors.ErrArgumentWrongType,
		},
		{
			name:     "undeclared argument",
			supplied: map[string]any{"component": "udp-in", "verbose": true},
			argument: "verbose",
			sentinel: errors.ErrArgumentWrongType,
		},
		{
			name:     "unknown enum value",
			supplied: map[string]any{"component": "udp-in", "severities": []any{"INFO", "TRACE"}},
			argument: "severities",
			sentinel: errors.ErrArgumentWrongType,
		},
		{
			name:     "ratio out of range",
			supplied: map[string]any{"component": "udp-in", "ratio": 1.5},
			argument: "ratio",
			sentinel: errors.ErrArgumentOutOfRange,
		},
		{
			name:     "null for non-null",
			supplied: map[string]any{"component": nil},
			argument: "component",
			sentinel: errors.ErrArgumentWrongType,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := v.Validate(field, tt.supplied)
			require.Error(t, err)

			var verr *ValidationError
			require.ErrorAs(t, err, &verr)
			assert.Equal(t, tt.argument, verr.Argument)
			assert.ErrorIs(t, err, tt.sentinel)
			assert.True(t, errors.IsInvalid(err))
		})
	}
}

// The first failing argument in declaration order is the one reported, even
// when a later argument also violates its constraint.
func TestValidateFirstFailureWins(t *testing.T) {
	v, reg := validatorFixture(t)
	field, ok := reg.Field("Query", "logs")
	require.True(t, ok)

	_, err := v.Validate(field, map[string]any{
		"component": "Bad Name",
		"limit":     int64(9999),
	})
	require.Error(t, err)

	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "component", verr.Argument)
}

func TestValidateListShorthand(t *testing.T) {
	v, reg := validatorFixture(t)
	field, ok := reg.Field("Query", "logs")
	require.True(t, ok)

	resolved, err := v.Validate(field, map[string]any{
		"component":  "udp-in",
		"severities": "ERROR",
	})
	require.NoError(t, err)
	assert.Equal(t, []any{"ERROR"}, resolved["severities"])
}

func TestValidateTimestamp(t *testing.T) {
	v, reg := validatorFixture(t)
	field, ok := reg.Field("Query", "logs")
	require.True(t, ok)

	resolved, err := v.Validate(field, map[string]any{
		"component": "udp-in",
		"since":     "2026-08-26T10:00:00Z",
	})
	require.NoError(t, err)
	assert.Equal(t, time.Date(2026, 8, 26, 10, 0, 0, 0, time.UTC), resolved["since"])

	_, err = v.Validate(field, map[string]any{
		"component": "udp-in",
		"since":     "yesterday",
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, errors.ErrArgumentWrongType)
}
