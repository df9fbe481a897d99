package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/songlinshu/vector/schema"
)

// componentNamePattern constrains every name argument in the API.
const componentNamePattern = `^[a-z][a-z0-9-]*$`

func f64(v float64) *float64 { return &v }

// intervalArg declares the shared cadence argument: milliseconds, default
// one second, bounded to keep timer subscriptions sane.
func intervalArg() *schema.Argument {
	return &schema.Argument{
		Name:        "interval",
		Description: "Emission cadence in milliseconds",
		Type:        schema.Named(schema.ScalarInt),
		Default:     int64(1000),
		HasDefault:  true,
		Min:         f64(100),
		Max:         f64(60000),
	}
}

// APISchema builds the observability schema bound to p. When bus is non-nil
// the busMessages subscription is included, streaming raw NATS traffic.
func APISchema(p *Pipeline, bus *nats.Conn) schema.Config {
	asComponent := func(parent any) *Component { return parent.(*Component) }

	componentType := &schema.Type{
		Name:        "Component",
		Kind:        schema.KindObject,
		Description: "One pipeline stage",
		Fields: []*schema.Field{
			{
				Name: "name",
				Type: schema.NonNull(schema.Named(schema.ScalarString)),
				Resolve: func(_ context.Context, parent any, _ map[string]any) (any, error) {
					return asComponent(parent).Name(), nil
				},
			},
			{
				Name: "kind",
				Type: schema.NonNull(schema.Named("ComponentKind")),
				Resolve: func(_ context.Context, parent any, _ map[string]any) (any, error) {
					return asComponent(parent).Kind(), nil
				},
			},
			{
				Name: "paused",
				Type: schema.NonNull(schema.Named(schema.ScalarBoolean)),
				Resolve: func(_ context.Context, parent any, _ map[string]any) (any, error) {
					return asComponent(parent).Paused(), nil
				},
			},
			{
				Name: "health",
				Type: schema.NonNull(schema.Named("Health")),
				Resolve: func(_ context.Context, parent any, _ map[string]any) (any, error) {
					return asComponent(parent).Health(), nil
				},
			},
			{
				Name: "flow",
				Type: schema.NonNull(schema.Named("Flow")),
				Resolve: func(_ context.Context, parent any, _ map[string]any) (any, error) {
					return asComponent(parent).Flow(), nil
				},
			},
		},
	}

	queryType := &schema.Type{
		Name: "Query",
		Kind: schema.KindObject,
		Fields: []*schema.Field{
			{
				Name:        "topology",
				Description: "The full component graph",
				Type:        schema.NonNull(schema.Named("Topology")),
				Resolve: func(context.Context, any, map[string]any) (any, error) {
					return map[string]any{
						"name":       p.Name(),
						"components": p.Components("", 0),
						"edges":      p.Edges(),
					}, nil
				},
			},
			{
				Name: "component",
				Type: schema.Named("Component"),
				Args: []*schema.Argument{
					{
						Name:    "name",
						Type:    schema.NonNull(schema.Named(schema.ScalarString)),
						Pattern: componentNamePattern,
					},
				},
				Resolve: func(_ context.Context, _ any, args map[string]any) (any, error) {
					return p.Component(args["name"].(string)), nil
				},
			},
			{
				Name: "components",
				Type: schema.NonNull(schema.ListOf(schema.NonNull(schema.Named("Component")))),
				Args: []*schema.Argument{
					{
						Name: "kind",
						Type: schema.Named("ComponentKind"),
					},
					{
						Name:       "limit",
						Type:       schema.Named(schema.ScalarInt),
						Default:    int64(50),
						HasDefault: true,
						Min:        f64(1),
						Max:        f64(500),
					},
				},
				Resolve: func(_ context.Context, _ any, args map[string]any) (any, error) {
					kind := Kind("")
					if k, ok := args["kind"].(string); ok {
						kind = Kind(k)
					}
					return p.Components(kind, int(args["limit"].(int64))), nil
				},
			},
			{
				Name:        "health",
				Description: "Aggregate pipeline health, worst component wins",
				Type:        schema.NonNull(schema.Named("Health")),
				Resolve: func(context.Context, any, map[string]any) (any, error) {
					return p.Health(), nil
				},
			},
			{
				Name:        "uptime",
				Description: "Milliseconds since the pipeline came up",
				Type:        schema.NonNull(schema.Named(schema.ScalarInt)),
				Resolve: func(context.Context, any, map[string]any) (any, error) {
					return p.Uptime().Milliseconds(), nil
				},
			},
			{
				Name: "meta",
				Type: schema.NonNull(schema.Named("Meta")),
				Resolve: func(context.Context, any, map[string]any) (any, error) {
					return map[string]any{
						"name":      p.Name(),
						"version":   nullableString(p.Version()),
						"startedAt": p.StartedAt(),
					}, nil
				},
			},
		},
	}

	mutationType := &schema.Type{
		Name: "Mutation",
		Kind: schema.KindObject,
		Fields: []*schema.Field{
			{
				Name: "pauseComponent",
				Type: schema.NonNull(schema.Named("Component")),
				Args: []*schema.Argument{
					{Name: "name", Type: schema.NonNull(schema.Named(schema.ScalarString)), Pattern: componentNamePattern},
				},
				Resolve: func(_ context.Context, _ any, args map[string]any) (any, error) {
					return p.Pause(args["name"].(string))
				},
			},
			{
				Name: "resumeComponent",
				Type: schema.NonNull(schema.Named("Component")),
				Args: []*schema.Argument{
					{Name: "name", Type: schema.NonNull(schema.Named(schema.ScalarString)), Pattern: componentNamePattern},
				},
				Resolve: func(_ context.Context, _ any, args map[string]any) (any, error) {
					return p.Resume(args["name"].(string))
				},
			},
		},
	}

	subscriptionType := &schema.Type{
		Name: "Subscription",
		Kind: schema.KindObject,
		Fields: []*schema.Field{
			{
				Name:        "heartbeat",
				Description: "Liveness pulse at the requested cadence",
				Type:        schema.NonNull(schema.Named("Heartbeat")),
				Args:        []*schema.Argument{intervalArg()},
				Subscribe: func(_ context.Context, args map[string]any) (schema.EventSource, error) {
					interval := time.Duration(args["interval"].(int64)) * time.Millisecond
					return NewIntervalSource(interval, func(seq uint64, at time.Time) any {
						return map[string]any{
							"utc":          at,
							"seq":          int64(seq),
							"uptimeMillis": p.Uptime().Milliseconds(),
						}
					}), nil
				},
			},
			{
				Name:        "topologyChanges",
				Description: "Topology and state transitions as they happen",
				Type:        schema.NonNull(schema.Named("TopologyChange")),
				Subscribe: func(context.Context, map[string]any) (schema.EventSource, error) {
					return NewWatchSource(p, 64), nil
				},
			},
			{
				Name:        "componentFlow",
				Description: "Periodic flow counter samples for one component",
				Type:        schema.NonNull(schema.Named("FlowSample")),
				Args: []*schema.Argument{
					{
						Name:    "name",
						Type:    schema.NonNull(schema.Named(schema.ScalarString)),
						Pattern: componentNamePattern,
					},
					intervalArg(),
				},
				Subscribe: func(_ context.Context, args map[string]any) (schema.EventSource, error) {
					name := args["name"].(string)
					c := p.Component(name)
					if c == nil {
						return nil, fmt.Errorf("unknown component %q", name)
					}
					interval := time.Duration(args["interval"].(int64)) * time.Millisecond
					return NewIntervalSource(interval, func(_ uint64, at time.Time) any {
						return map[string]any{
							"component": name,
							"flow":      c.Flow(),
							"at":        at,
						}
					}), nil
				},
			},
		},
	}

	if bus != nil {
		subscriptionType.Fields = append(subscriptionType.Fields, &schema.Field{
			Name:        "busMessages",
			Description: "Raw pipeline bus traffic for one subject",
			Type:        schema.NonNull(schema.Named("BusMessage")),
			Args: []*schema.Argument{
				{
					Name:    "subject",
					Type:    schema.NonNull(schema.Named(schema.ScalarString)),
					Pattern: `^[a-zA-Z0-9_*>.-]+$`,
				},
			},
			Subscribe: func(_ context.Context, args map[string]any) (schema.EventSource, error) {
				return NewNATSSource(bus, args["subject"].(string), 64)
			},
		})
	}

	return schema.Config{
		Query:        "Query",
		Mutation:     "Mutation",
		Subscription: "Subscription",
		Types: []*schema.Type{
			{
				Name:        "ComponentKind",
				Kind:        schema.KindEnum,
				Description: "Role of a pipeline stage",
				EnumValues:  []string{string(KindInput), string(KindProcessor), string(KindOutput)},
			},
			{
				Name:       "HealthState",
				Kind:       schema.KindEnum,
				EnumValues: []string{string(StateHealthy), string(StateDegraded), string(StateUnhealthy)},
			},
			{
				Name: "ChangeType",
				Kind: schema.KindEnum,
				EnumValues: []string{
					string(ChangeComponentAdded),
					string(ChangeEdgeAdded),
					string(ChangeComponentPaused),
					string(ChangeComponentResumed),
					string(ChangeHealthChanged),
				},
			},
			{
				Name: "Health",
				Kind: schema.KindObject,
				Fields: []*schema.Field{
					{Name: "state", Type: schema.NonNull(schema.Named("HealthState"))},
					{Name: "message", Type: schema.Named(schema.ScalarString)},
					{Name: "since", Type: schema.NonNull(schema.Named(schema.ScalarTimestamp))},
				},
			},
			{
				Name: "Flow",
				Kind: schema.KindObject,
				Fields: []*schema.Field{
					{Name: "messagesIn", Type: schema.NonNull(schema.Named(schema.ScalarInt))},
					{Name: "messagesOut", Type: schema.NonNull(schema.Named(schema.ScalarInt))},
					{Name: "errors", Type: schema.NonNull(schema.Named(schema.ScalarInt))},
					{Name: "observedAt", Type: schema.NonNull(schema.Named(schema.ScalarTimestamp))},
				},
			},
			componentType,
			{
				Name: "Edge",
				Kind: schema.KindObject,
				Fields: []*schema.Field{
					{Name: "from", Type: schema.NonNull(schema.Named(schema.ScalarString))},
					{Name: "to", Type: schema.NonNull(schema.Named(schema.ScalarString))},
				},
			},
			{
				Name: "Topology",
				Kind: schema.KindObject,
				Fields: []*schema.Field{
					{Name: "name", Type: schema.NonNull(schema.Named(schema.ScalarString))},
					{Name: "components", Type: schema.NonNull(schema.ListOf(schema.NonNull(schema.Named("Component"))))},
					{Name: "edges", Type: schema.NonNull(schema.ListOf(schema.NonNull(schema.Named("Edge"))))},
				},
			},
			{
				Name: "Meta",
				Kind: schema.KindObject,
				Fields: []*schema.Field{
					{Name: "name", Type: schema.NonNull(schema.Named(schema.ScalarString))},
					{Name: "version", Type: schema.Named(schema.ScalarString)},
					{Name: "startedAt", Type: schema.NonNull(schema.Named(schema.ScalarTimestamp))},
				},
			},
			{
				Name: "Heartbeat",
				Kind: schema.KindObject,
				Fields: []*schema.Field{
					{Name: "utc", Type: schema.NonNull(schema.Named(schema.ScalarTimestamp))},
					{Name: "seq", Type: schema.NonNull(schema.Named(schema.ScalarInt))},
					{Name: "uptimeMillis", Type: schema.NonNull(schema.Named(schema.ScalarInt))},
				},
			},
			{
				Name: "TopologyChange",
				Kind: schema.KindObject,
				Fields: []*schema.Field{
					{Name: "type", Type: schema.NonNull(schema.Named("ChangeType"))},
					{Name: "component", Type: schema.Named(schema.ScalarString)},
					{Name: "at", Type: schema.NonNull(schema.Named(schema.ScalarTimestamp))},
				},
			},
			{
				Name: "FlowSample",
				Kind: schema.KindObject,
				Fields: []*schema.Field{
					{Name: "component", Type: schema.NonNull(schema.Named(schema.ScalarString))},
					{Name: "flow", Type: schema.NonNull(schema.Named("Flow"))},
					{Name: "at", Type: schema.NonNull(schema.Named(schema.ScalarTimestamp))},
				},
			},
			{
				Name: "BusMessage",
				Kind: schema.KindObject,
				Fields: []*schema.Field{
					{Name: "subject", Type: schema.NonNull(schema.Named(schema.ScalarString))},
					{Name: "data", Type: schema.NonNull(schema.Named(schema.ScalarString))},
					{Name: "receivedAt", Type: schema.NonNull(schema.Named(schema.ScalarTimestamp))},
				},
			},
			queryType,
			mutationType,
			subscriptionType,
		},
	}
}

// nullableString maps "" to null for optional string fields.
func nullableString(s string) any {
	if s == "" {
		return nil
	}
	return s
}
