package filter

import (
	"fmt"
	"strings"
)

// OperatorKind selects one of the operator tables.
type OperatorKind string

const (
	KindLogical    OperatorKind = "logical"
	KindComparison OperatorKind = "comparison"
	KindSpatial    OperatorKind = "spatial"
)

// Namespace is the XML prefix of filter elements: fes for WFS 2.0, ogc before.
type Namespace string

const (
	NamespaceFES Namespace = "fes"
	NamespaceOGC Namespace = "ogc"
)

// Version is a WFS protocol version.
type Version string

const (
	Version100 Version = "1.0.0"
	Version110 Version = "1.1.0"
	Version20  Version = "2.0"
	Version200 Version = "2.0.0"

	DefaultVersion = Version20
)

// ParseVersion maps "" to the default version and rejects unknown versions.
func ParseVersion(s string) (Version, error) {
	v := Version(strings.TrimSpace(s))
	switch v {
	case "":
		return DefaultVersion, nil
	case Version100, Version110, Version20, Version200:
		return v, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnsupportedVersion, s)
	}
}

func (v Version) isV2() bool { return v == Version20 || v == Version200 }

// Namespace is the filter namespace prefix used by v.
func (v Version) Namespace() Namespace {
	if v.isV2() {
		return NamespaceFES
	}
	return NamespaceOGC
}

// TagPair is the opening and closing tag of one namespaced element.
type TagPair struct {
	Start string
	End   string
}

type operatorTag struct {
	element string
	attrs   string
}

// Tables are never written after init. Namespaced tags are built per lookup.
var (
	logicalOperators = map[string]operatorTag{
		"AND":     {element: "And"},
		"OR":      {element: "Or"},
		"AND NOT": {element: "Not"},
	}

	comparisonOperators = map[string]operatorTag{
		"=":     {element: "PropertyIsEqualTo"},
		">":     {element: "PropertyIsGreaterThan"},
		"<":     {element: "PropertyIsLessThan"},
		">=":    {element: "PropertyIsGreaterThanOrEqualTo"},
		"<=":    {element: "PropertyIsLessThanOrEqualTo"},
		"<>":    {element: "PropertyIsNotEqualTo"},
		"><":    {element: "PropertyIsBetween"},
		"like":  {element: "PropertyIsLike", attrs: ` matchCase="true" wildCard="*" singleChar="." escapeChar="!"`},
		"ilike": {element: "PropertyIsLike", attrs: ` matchCase="false" wildCard="*" singleChar="." escapeChar="!"`},
	}

	spatialOperators = map[string]operatorTag{
		"INTERSECTS": {element: "Intersects"},
		"BBOX":       {element: "BBOX"},
		"CONTAINS":   {element: "Contains"},
		"DWITHIN":    {element: "DWithin"},
		"WITHIN":     {element: "Within"},
	}

	cqlComparison = map[string]string{
		"=":     "=",
		">":     ">",
		"<":     "<",
		">=":    ">=",
		"<=":    "<=",
		"<>":    "<>",
		"like":  " LIKE ",
		"ilike": " ILIKE ",
	}
)

func table(kind OperatorKind) map[string]operatorTag {
	switch kind {
	case KindLogical:
		return logicalOperators
	case KindComparison:
		return comparisonOperators
	case KindSpatial:
		return spatialOperators
	default:
		return nil
	}
}

// LookupTagPair returns the start/end tags of an operator in namespace ns.
// Logical symbols are AND, OR and AND NOT; comparison symbols are =, >, <, >=,
// <=, <>, ><, like and ilike; spatial symbols are INTERSECTS, BBOX, CONTAINS,
// DWITHIN and WITHIN. Anything else is an *OperatorError.
func LookupTagPair(kind OperatorKind, symbol string, ns Namespace) (TagPair, error) {
	op, ok := table(kind)[symbol]
	if !ok {
		return TagPair{}, &OperatorError{Kind: kind, Symbol: symbol}
	}
	return TagPair{
		Start: "<" + string(ns) + ":" + op.element + op.attrs + ">",
		End:   "</" + string(ns) + ":" + op.element + ">",
	}, nil
}

// PropertyTag is the property reference element for ns.
func PropertyTag(ns Namespace) TagPair {
	if ns == NamespaceFES {
		return TagPair{Start: "<fes:ValueReference>", End: "</fes:ValueReference>"}
	}
	return TagPair{Start: "<" + string(ns) + ":PropertyName>", End: "</" + string(ns) + ":PropertyName>"}
}

func checkOperator(kind OperatorKind, symbol string) error {
	if _, ok := table(kind)[symbol]; !ok {
		return &OperatorError{Kind: kind, Symbol: symbol}
	}
	return nil
}

func element(ns Namespace, name string) TagPair {
	return TagPair{Start: "<" + string(ns) + ":" + name + ">", End: "</" + string(ns) + ":" + name + ">"}
}
