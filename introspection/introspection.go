// Package introspection lets clients query the schema through the schema
// itself. Extend grafts the meta types and the __schema/__type root fields
// onto a schema configuration before the registry is built; the resolvers
// serve an immutable snapshot computed once from the finished registry, so
// introspection answers flow through the ordinary dispatch path with no
// special casing in the executor.
package introspection

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/songlinshu/vector/errors"
	"github.com/songlinshu/vector/schema"
)

// Service resolves introspection fields against a bound registry. The view
// snapshot is built lazily on first use and never rebuilt; the registry is
// immutable after construction, so the snapshot cannot go stale.
type Service struct {
	reg *schema.Registry

	once   sync.Once
	view   *SchemaView
	byName map[string]*TypeView
}

// Extend appends the introspection meta types to cfg and attaches the
// __schema and __type fields to its query root. The returned Service must
// be bound to the registry built from the returned config before any
// introspection field resolves.
func Extend(cfg schema.Config) (schema.Config, *Service, error) {
	svc := &Service{}

	var queryType *schema.Type
	for _, t := range cfg.Types {
		if t.Name == cfg.Query {
			queryType = t
			break
		}
	}
	if queryType == nil {
		return cfg, nil, errors.WrapFatal(errors.ErrNoRootType, "Introspection", "Extend",
			fmt.Sprintf("query root %q not among configured types", cfg.Query))
	}

	queryType.Fields = append(queryType.Fields,
		&schema.Field{
			Name:        "__schema",
			Description: "The schema of this API",
			Type:        schema.NonNull(schema.Named("__Schema")),
			Resolve: func(context.Context, any, map[string]any) (any, error) {
				return svc.Schema()
			},
		},
		&schema.Field{
			Name:        "__type",
			Description: "A named type of this API, if registered",
			Type:        schema.Named("__Type"),
			Args: []*schema.Argument{
				{Name: "name", Type: schema.NonNull(schema.Named(schema.ScalarString))},
			},
			Resolve: func(_ context.Context, _ any, args map[string]any) (any, error) {
				return svc.Type(args["name"].(string))
			},
		},
	)

	cfg.Types = append(cfg.Types, metaTypes()...)
	return cfg, svc, nil
}

// Bind attaches the finished registry. Must be called exactly once before
// the first introspection query.
func (s *Service) Bind(reg *schema.Registry) { s.reg = reg }

// Schema returns the full schema view.
func (s *Service) Schema() (*SchemaView, error) {
	if s.reg == nil {
		return nil, errors.WrapFatal(errors.ErrNotStarted, "Introspection", "Schema",
			"service not bound to a registry")
	}
	s.once.Do(s.build)
	return s.view, nil
}

// Type returns the view of one named type, or nil when the name is not
// registered.
func (s *Service) Type(name string) (*TypeView, error) {
	if _, err := s.Schema(); err != nil {
		return nil, err
	}
	return s.byName[name], nil
}

// build assembles the snapshot in two passes: allocate a view per named
// type first so recursive references resolve to shared pointers, then fill
// them in registration order.
func (s *Service) build() {
	described := s.reg.Describe()
	s.byName = make(map[string]*TypeView, len(described))
	for _, t := range described {
		s.byName[t.Name] = &TypeView{}
	}

	types := make([]*TypeView, 0, len(described))
	for _, t := range described {
		view := s.byName[t.Name]
		s.fill(view, t)
		types = append(types, view)
	}

	s.view = &SchemaView{
		Types:            types,
		QueryType:        s.rootView(s.reg.QueryType()),
		MutationType:     s.rootView(s.reg.MutationType()),
		SubscriptionType: s.rootView(s.reg.SubscriptionType()),
	}
}

func (s *Service) rootView(t *schema.Type) *TypeView {
	if t == nil {
		return nil
	}
	return s.byName[t.Name]
}

func (s *Service) fill(view *TypeView, t *schema.Type) {
	view.Kind = string(t.Kind)
	view.Name = t.Name
	if t.Description != "" {
		view.Description = t.Description
	}

	for _, f := range t.Fields {
		// Meta fields grafted onto the query root stay out of its listing.
		if strings.HasPrefix(f.Name, "__") {
			continue
		}
		view.Fields = append(view.Fields, s.fieldView(f))
	}
	for _, ev := range t.EnumValues {
		view.EnumValues = append(view.EnumValues, &EnumValueView{Name: ev})
	}
	for _, name := range t.PossibleTypes {
		view.PossibleTypes = append(view.PossibleTypes, s.byName[name])
	}
}

func (s *Service) fieldView(f *schema.Field) *FieldView {
	fv := &FieldView{
		Name: f.Name,
		Type: s.refView(f.Type),
	}
	if f.Description != "" {
		fv.Description = f.Description
	}
	fv.Args = make([]*InputValueView, 0, len(f.Args))
	for _, a := range f.Args {
		fv.Args = append(fv.Args, s.inputValueView(a))
	}
	return fv
}

func (s *Service) inputValueView(a *schema.Argument) *InputValueView {
	iv := &InputValueView{
		Name: a.Name,
		Type: s.refView(a.Type),
	}
	if a.Description != "" {
		iv.Description = a.Description
	}
	if a.HasDefault {
		iv.DefaultValue = renderDefault(a.Default)
	}
	return iv
}

// refView converts a type reference to its view form: wrapper views for
// list and non-null modifiers, the shared named view at the core.
func (s *Service) refView(ref *schema.TypeRef) *TypeView {
	switch ref.Kind {
	case schema.RefNonNull:
		return &TypeView{Kind: kindNonNull, OfType: s.refView(ref.Unwrap())}
	case schema.RefList:
		return &TypeView{Kind: kindList, OfType: s.refView(ref.Unwrap())}
	default:
		return s.byName[ref.Name]
	}
}

// renderDefault serializes an argument default the way it would appear in a
// request document.
func renderDefault(v any) string {
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprintf("%v", v)
	}
	return string(b)
}
