package filter

import (
	"fmt"
)

// renderer turns predicates and groups into one output grammar. field returns
// "" when the predicate is dropped.
type renderer interface {
	field(f FilterField) (string, error)
	group(g FilterGroup, fields, children []string) (string, error)
}

// groupTree indexes fields and child groups by parent id once per call.
type groupTree struct {
	fields   map[ID][]FilterField
	children map[ID][]FilterGroup
}

func newGroupTree(spec *FilterSpec) *groupTree {
	t := &groupTree{
		fields:   make(map[ID][]FilterField, len(spec.GroupFields)),
		children: make(map[ID][]FilterGroup, len(spec.GroupFields)),
	}
	for _, f := range spec.FilterFields {
		t.fields[f.GroupID] = append(t.fields[f.GroupID], f)
	}
	// the root is addressed by position, never as somebody's child
	for i, g := range spec.GroupFields {
		if i == 0 {
			continue
		}
		t.children[g.GroupID] = append(t.children[g.GroupID], g)
	}
	return t
}

func (t *groupTree) resolve(root FilterGroup, r renderer) (string, error) {
	return t.resolveGroup(root, r, map[ID]bool{})
}

func (t *groupTree) resolveGroup(g FilterGroup, r renderer, path map[ID]bool) (string, error) {
	if path[g.ID] {
		return "", parseErr("group tree", fmt.Errorf("cycle through group %q", g.ID))
	}
	path[g.ID] = true
	defer delete(path, g.ID)

	fields, err := renderFields(t.fields[g.ID], r)
	if err != nil {
		return "", err
	}
	kids := t.children[g.ID]
	children := make([]string, 0, len(kids))
	for _, child := range kids {
		s, err := t.resolveGroup(child, r, path)
		if err != nil {
			return "", err
		}
		if s != "" {
			children = append(children, s)
		}
	}
	if len(fields) == 0 && len(children) == 0 {
		// logic is still checked so a bad operator is not hidden by drops
		if _, err := r.group(g, nil, nil); err != nil {
			return "", err
		}
		return "", nil
	}
	return r.group(g, fields, children)
}

func renderFields(fields []FilterField, r renderer) ([]string, error) {
	out := make([]string, 0, len(fields))
	for _, f := range fields {
		s, err := r.field(f)
		if err != nil {
			return nil, err
		}
		if s != "" {
			out = append(out, s)
		}
	}
	return out, nil
}

// dropReason reports why a predicate cannot be rendered, or "" when it can.
// Dropping is non-fatal: the predicate just disappears from the output.
func dropReason(f FilterField) string {
	switch f.Type {
	case FieldTypeDate:
		rng := f.Value.Range
		if rng == nil || rng.StartDate == nil {
			return "missing start date"
		}
		if f.Operator == "><" && rng.EndDate == nil {
			return "missing end date"
		}
		return ""
	case FieldTypeList:
		if !truthy(f.Value.Scalar) {
			return "empty value"
		}
		if f.Operator == "><" {
			return "range operator on scalar value"
		}
		return ""
	default:
		return "unsupported field type"
	}
}
