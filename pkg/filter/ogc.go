package filter

import (
	"fmt"
	"strconv"
	"strings"
)

// ToOGCFilter builds a complete WFS GetFeature request body whose Query
// targets featureType and carries the Filter encoded from spec. An empty
// version selects 2.0. Sorting is emitted only when both sort fields are set.
func (e *Encoder) ToOGCFilter(featureType string, spec *FilterSpec, version string, sort *SortOptions) (string, error) {
	v, err := ParseVersion(version)
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(featureType) == "" {
		return "", fmt.Errorf("%w: feature type name", ErrMissingRequiredField)
	}
	if spec == nil {
		return "", ErrEmptyFilterSpec
	}
	ns := v.Namespace()
	r := ogcRenderer{e: e, ns: ns}

	var filters []string
	if spec.hasAttributes() {
		var attr string
		if len(spec.GroupFields) > 0 {
			attr, err = newGroupTree(spec).resolve(spec.GroupFields[0], r)
		} else {
			var parts []string
			if parts, err = renderFields(spec.FilterFields, r); err == nil {
				// ungrouped fields are ANDed; one field stays bare
				if len(parts) > 1 {
					attr, err = r.group(FilterGroup{Logic: "AND"}, parts, nil)
				} else {
					attr = strings.Join(parts, "")
				}
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
		s, err := ogcSpatial(spec.SpatialField, v, ns)
		if err != nil {
			return "", fmt.Errorf("encode spatial filter: %w", err)
		}
		filters = append(filters, s)
	}
	if len(filters) == 0 {
		return "", ErrEmptyFilterSpec
	}

	var b strings.Builder
	writeGetFeatureOpen(&b, v, spec.Pagination)

	typeAttr := "typeName"
	if v.isV2() {
		typeAttr = "typeNames"
	}
	b.WriteString(`<wfs:Query ` + typeAttr + `="` + escapeXML(featureType) + `" srsName="` + defaultSRS + `">`)

	filterTag := element(ns, "Filter")
	b.WriteString(filterTag.Start)
	if len(filters) > 1 {
		and := element(ns, "And")
		b.WriteString(and.Start + strings.Join(filters, "") + and.End)
	} else {
		b.WriteString(filters[0])
	}
	b.WriteString(filterTag.End)

	if sort != nil && sort.SortBy != "" && sort.SortOrder != "" {
		writeSortBy(&b, ns, sort)
	}
	b.WriteString("</wfs:Query></wfs:GetFeature>")
	return b.String(), nil
}

func writeGetFeatureOpen(b *strings.Builder, v Version, p *Pagination) {
	b.WriteString("<wfs:GetFeature ")
	if p != nil && p.StartIndex != nil {
		b.WriteString(`startIndex="` + strconv.Itoa(*p.StartIndex) + `" `)
	}
	maxFeatures := ""
	if p != nil && p.MaxFeatures != nil && *p.MaxFeatures != 0 {
		maxFeatures = strconv.Itoa(*p.MaxFeatures)
	}

	switch v {
	case Version100:
		if maxFeatures != "" {
			b.WriteString(`maxFeatures="` + maxFeatures + `" `)
		}
		b.WriteString(`service="WFS" version="` + string(v) + `" ` +
			`outputFormat="GML2" ` +
			`xmlns:gml="http://www.opengis.net/gml" ` +
			`xmlns:wfs="http://www.opengis.net/wfs" ` +
			`xmlns:ogc="http://www.opengis.net/ogc" ` +
			`xmlns:xsi="http://www.w3.org/2001/XMLSchema-instance" ` +
			`xsi:schemaLocation="http://www.opengis.net/wfs ` +
			`http://schemas.opengis.net/wfs/1.0.0/WFS-basic.xsd">`)
	case Version110:
		if maxFeatures != "" {
			b.WriteString(`maxFeatures="` + maxFeatures + `" `)
		}
		b.WriteString(`service="WFS" version="` + string(v) + `" ` +
			`xmlns:gml="http://www.opengis.net/gml" ` +
			`xmlns:wfs="http://www.opengis.net/wfs" ` +
			`xmlns:ogc="http://www.opengis.net/ogc" ` +
			`xmlns:xsi="http://www.w3.org/2001/XMLSchema-instance" ` +
			`xsi:schemaLocation="http://www.opengis.net/wfs ` +
			`http://schemas.opengis.net/wfs/1.1.0/wfs.xsd">`)
	default:
		if maxFeatures != "" {
			b.WriteString(`count="` + maxFeatures + `" `)
		}
		b.WriteString(`service="WFS" version="` + string(v) + `" ` +
			`xmlns:wfs="http://www.opengis.net/wfs/2.0" ` +
			`xmlns:fes="http://www.opengis.net/fes/2.0" ` +
			`xmlns:gml="http://www.opengis.net/gml/3.2" ` +
			`xmlns:xsi="http://www.w3.org/2001/XMLSchema-instance" ` +
			`xsi:schemaLocation="http://www.opengis.net/wfs/2.0 ` +
			`http://schemas.opengis.net/wfs/2.0/wfs.xsd ` +
			`http://www.opengis.net/gml/3.2 ` +
			`http://schemas.opengis.net/gml/3.2.1/gml.xsd">`)
	}
}

func writeSortBy(b *strings.Builder, ns Namespace, sort *SortOptions) {
	sortBy, sortProp, sortOrder := element(ns, "SortBy"), element(ns, "SortProperty"), element(ns, "SortOrder")
	prop := PropertyTag(ns)
	b.WriteString(sortBy.Start + sortProp.Start +
		prop.Start + escapeXML(sort.SortBy) + prop.End +
		sortOrder.Start + escapeXML(sort.SortOrder) + sortOrder.End +
		sortProp.End + sortBy.End)
}

func ogcSpatial(sf *SpatialField, v Version, ns Namespace) (string, error) {
	pair, err := LookupTagPair(KindSpatial, sf.Operation, ns)
	if err != nil {
		return "", err
	}
	prop := PropertyTag(ns)

	var b strings.Builder
	b.WriteString(pair.Start + prop.Start + escapeXML(sf.Attribute) + prop.End)
	if sf.Operation == "BBOX" {
		if err := writeGMLEnvelope(&b, sf.Geometry); err != nil {
			return "", err
		}
	} else {
		if err := writeGML(&b, sf.Geometry, v); err != nil {
			return "", err
		}
		if sf.Operation == "DWITHIN" {
			b.WriteString("<" + string(ns) + `:Distance units="m">` + formatNumber(sf.Geometry.distance()) +
				"</" + string(ns) + ":Distance>")
		}
	}
	b.WriteString(pair.End)
	return b.String(), nil
}

type ogcRenderer struct {
	e  *Encoder
	ns Namespace
}

func (r ogcRenderer) field(f FilterField) (string, error) {
	if reason := dropReason(f); reason != "" {
		r.e.dropped(FormatOGC, f, reason)
		return "", nil
	}
	pair, err := LookupTagPair(KindComparison, f.Operator, r.ns)
	if err != nil {
		return "", err
	}
	prop, lit := PropertyTag(r.ns), element(r.ns, "Literal")

	var b strings.Builder
	b.WriteString(pair.Start + prop.Start + escapeXML(f.Attribute) + prop.End)
	switch {
	case f.Type == FieldTypeDate && f.Operator == "><":
		lower, upper := element(r.ns, "LowerBoundary"), element(r.ns, "UpperBoundary")
		b.WriteString(lower.Start + lit.Start + isoString(*f.Value.Range.StartDate) + lit.End + lower.End)
		b.WriteString(upper.Start + lit.Start + isoString(*f.Value.Range.EndDate) + lit.End + upper.End)
	case f.Type == FieldTypeDate:
		b.WriteString(lit.Start + isoString(*f.Value.Range.StartDate) + lit.End)
	default:
		b.WriteString(lit.Start + escapeXML(formatScalar(f.Value.Scalar)) + lit.End)
	}
	b.WriteString(pair.End)
	return b.String(), nil
}

func (r ogcRenderer) group(g FilterGroup, fields, children []string) (string, error) {
	pair, err := LookupTagPair(KindLogical, g.Logic, r.ns)
	if err != nil {
		return "", err
	}
	if len(fields) == 0 && len(children) == 0 {
		return "", nil
	}
	return pair.Start + strings.Join(fields, "") + strings.Join(children, "") + pair.End, nil
}
