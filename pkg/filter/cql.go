package filter

import (
	"fmt"
	"strings"
)

// ToCQLFilter builds a CQL predicate from spec. The attribute and spatial
// parts are each parenthesized and joined with AND; a single part is still
// wrapped in one pair of parentheses.
func (e *Encoder) ToCQLFilter(spec *FilterSpec) (string, error) {
	if spec == nil {
		return "", ErrEmptyFilterSpec
	}
	r := cqlRenderer{e: e}

	var filters []string
	if spec.hasAttributes() {
		var (
			attr string
			err  error
		)
		if len(spec.GroupFields) > 0 {
			attr, err = newGroupTree(spec).resolve(spec.GroupFields[0], r)
		} else {
			var parts []string
			if parts, err = renderFields(spec.FilterFields, r); err == nil {
				attr, err = r.group(FilterGroup{Logic: "AND"}, parts, nil)
			}
		}
		if err != nil {
			return "", fmt.Errorf("encode attribute filter: %w", err)
		}
		if attr != "" {
			filters = append(filters, attr)
		}
	}
	if spec.HasSpatial() {
		s, err := cqlSpatial(spec.SpatialField)
		if err != nil {
			return "", fmt.Errorf("encode spatial filter: %w", err)
		}
		filters = append(filters, s)
	}
	if len(filters) == 0 {
		return "", ErrEmptyFilterSpec
	}
	return "(" + strings.Join(filters, ") AND (") + ")", nil
}

func cqlSpatial(sf *SpatialField) (string, error) {
	if err := checkOperator(KindSpatial, sf.Operation); err != nil {
		return "", err
	}
	geom, err := cqlGeometry(sf.Geometry)
	if err != nil {
		return "", err
	}
	args := sf.Attribute + ", " + geom
	if sf.Operation == "DWITHIN" {
		args += ", " + formatNumber(sf.Geometry.distance()) + ", meters"
	}
	return sf.Operation + "(" + args + ")", nil
}

type cqlRenderer struct {
	e *Encoder
}

func (r cqlRenderer) field(f FilterField) (string, error) {
	if reason := dropReason(f); reason != "" {
		r.e.dropped(FormatCQL, f, reason)
		return "", nil
	}
	if f.Type == FieldTypeDate && f.Operator == "><" {
		rng := f.Value.Range
		return "(" + f.Attribute + ">=" + quoteCQL(isoString(*rng.StartDate)) +
			" AND " + f.Attribute + "<=" + quoteCQL(isoString(*rng.EndDate)) + ")", nil
	}
	op, ok := cqlComparison[f.Operator]
	if !ok {
		return "", &OperatorError{Kind: KindComparison, Symbol: f.Operator}
	}
	if f.Type == FieldTypeDate {
		return f.Attribute + op + quoteCQL(isoString(*f.Value.Range.StartDate)), nil
	}
	return f.Attribute + op + quoteCQL(formatScalar(f.Value.Scalar)), nil
}

// A child group with nothing before it opens the expression, negated for
// AND NOT, instead of dangling behind a bare operator.
func (r cqlRenderer) group(g FilterGroup, fields, children []string) (string, error) {
	if err := checkOperator(KindLogical, g.Logic); err != nil {
		return "", err
	}
	out := strings.Join(fields, " "+g.Logic+" ")
	for _, child := range children {
		if child == "" {
			continue
		}
		switch {
		case out != "":
			out += " " + g.Logic + " (" + child + ")"
		case g.Logic == "AND NOT":
			out = "NOT (" + child + ")"
		default:
			out = "(" + child + ")"
		}
	}
	return out, nil
}
