package engine

import (
	"github.com/vektah/gqlparser/v2/ast"

	"github.com/songlinshu/vector/schema"
)

// collectedField groups the selections that share one response key,
// preserving the order they first appear in the document.
type collectedField struct {
	ResponseName string
	Fields       []*ast.Field
}

type collectedFieldMap struct {
	fields []collectedField
	index  map[string]int
}

func newCollectedFieldMap() *collectedFieldMap {
	return &collectedFieldMap{index: make(map[string]int)}
}

func (cfm *collectedFieldMap) add(responseName string, field *ast.Field) {
	if idx, exists := cfm.index[responseName]; exists {
		cfm.fields[idx].Fields = append(cfm.fields[idx].Fields, field)
		return
	}
	cfm.index[responseName] = len(cfm.fields)
	cfm.fields = append(cfm.fields, collectedField{
		ResponseName: responseName,
		Fields:       []*ast.Field{field},
	})
}

// collectFields flattens a selection set over a concrete object type:
// aliases resolved, duplicate selections merged, inline fragments and
// fragment spreads expanded when their type condition matches.
func collectFields(reg *schema.Registry, doc *ast.QueryDocument, objectType *schema.Type, set ast.SelectionSet) []collectedField {
	grouped := newCollectedFieldMap()
	collectFieldsImpl(reg, doc, objectType, set, grouped, map[string]bool{})
	return grouped.fields
}

func collectFieldsImpl(
	reg *schema.Registry,
	doc *ast.QueryDocument,
	objectType *schema.Type,
	set ast.SelectionSet,
	grouped *collectedFieldMap,
	visitedFragments map[string]bool,
) {
	for _, selection := range set {
		switch sel := selection.(type) {
		case *ast.Field:
			responseName := sel.Alias
			if responseName == "" {
				responseName = sel.Name
			}
			grouped.add(responseName, sel)

		case *ast.InlineFragment:
			if !fragmentApplies(reg, objectType, sel.TypeCondition) {
				continue
			}
			collectFieldsImpl(reg, doc, objectType, sel.SelectionSet, grouped, visitedFragments)

		case *ast.FragmentSpread:
			if visitedFragments[sel.Name] {
				continue
			}
			visitedFragments[sel.Name] = true
			frag := doc.Fragments.ForName(sel.Name)
			if frag == nil || !fragmentApplies(reg, objectType, frag.TypeCondition) {
				continue
			}
			collectFieldsImpl(reg, doc, objectType, frag.SelectionSet, grouped, visitedFragments)
		}
	}
}

// fragmentApplies checks a fragment's type condition against the concrete
// object type being resolved. A condition naming a union or interface
// applies when the object is one of its members.
func fragmentApplies(reg *schema.Registry, objectType *schema.Type, condition string) bool {
	if condition == "" || condition == objectType.Name {
		return true
	}
	cond, ok := reg.Lookup(condition)
	if !ok {
		return false
	}
	for _, member := range cond.PossibleTypes {
		if member == objectType.Name {
			return true
		}
	}
	return false
}

// mergeSelectionSets concatenates the sub-selections of fields that were
// grouped under one response key.
func mergeSelectionSets(fields []*ast.Field) ast.SelectionSet {
	var merged ast.SelectionSet
	for _, f := range fields {
		merged = append(merged, f.SelectionSet...)
	}
	return merged
}
