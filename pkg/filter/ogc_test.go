package filter

import (
	"encoding/xml"
	"errors"
	"io"
	"strings"
	"testing"
)

const envelope20 = `<wfs:GetFeature service="WFS" version="2.0" ` +
	`xmlns:wfs="http://www.opengis.net/wfs/2.0" ` +
	`xmlns:fes="http://www.opengis.net/fes/2.0" ` +
	`xmlns:gml="http://www.opengis.net/gml/3.2" ` +
	`xmlns:xsi="http://www.w3.org/2001/XMLSchema-instance" ` +
	`xsi:schemaLocation="http://www.opengis.net/wfs/2.0 http://schemas.opengis.net/wfs/2.0/wfs.xsd ` +
	`http://www.opengis.net/gml/3.2 http://schemas.opengis.net/gml/3.2.1/gml.xsd">`

func mustParse(t *testing.T, js string) *FilterSpec {
	t.Helper()
	spec, err := ParseFilterSpec([]byte(js))
	if err != nil {
		t.Fatalf("ParseFilterSpec: %v", err)
	}
	return spec
}

func assertWellFormed(t *testing.T, s string) {
	t.Helper()
	d := xml.NewDecoder(strings.NewReader(s))
	for {
		_, err := d.Token()
		if errors.Is(err, io.EOF) {
			return
		}
		if err != nil {
			t.Fatalf("not well-formed XML: %v\n%s", err, s)
		}
	}
}

func TestToOGCFilter_SingleListField(t *testing.T) {
	spec := mustParse(t, `{
		"groupFields": [{"id": 1, "logic": "OR"}],
		"filterFields": [{"id": 10, "groupId": 1, "attribute": "name", "type": "list", "operator": "=", "value": "Rome"}]
	}`)
	got, err := ToOGCFilter("topp:cities", spec, "", nil)
	if err != nil {
		t.Fatalf("ToOGCFilter: %v", err)
	}
	want := envelope20 +
		`<wfs:Query typeNames="topp:cities" srsName="EPSG:4326"><fes:Filter><fes:Or>` +
		`<fes:PropertyIsEqualTo><fes:ValueReference>name</fes:ValueReference><fes:Literal>Rome</fes:Literal></fes:PropertyIsEqualTo>` +
		`</fes:Or></fes:Filter></wfs:Query></wfs:GetFeature>`
	if got != want {
		t.Fatalf("got\n%s\nwant\n%s", got, want)
	}
	if n := strings.Count(got, "<fes:PropertyIsEqualTo>"); n != 1 {
		t.Fatalf("comparison start tags = %d want 1", n)
	}
	assertWellFormed(t, got)
}

func TestToOGCFilter_AttributeAndSpatialShareOneAnd(t *testing.T) {
	spec := mustParse(t, `{
		"groupFields": [{"id": 1, "logic": "AND"}],
		"filterFields": [
			{"groupId": 1, "attribute": "pop", "type": "list", "operator": ">", "value": 1000},
			{"groupId": 1, "attribute": "kind", "type": "list", "operator": "like", "value": "cap*"}
		],
		"spatialField": {
			"attribute": "the_geom", "operation": "INTERSECTS", "method": "Polygon",
			"geometry": {"type": "Polygon", "coordinates": [[[0,0],[1,0],[1,1],[0,0]]]}
		}
	}`)
	got, err := ToOGCFilter("topp:cities", spec, "2.0", nil)
	if err != nil {
		t.Fatal(err)
	}
	assertWellFormed(t, got)
	// the group's own And plus the wrapper
	if n := strings.Count(got, "<fes:And>"); n != 2 {
		t.Fatalf("want 2 <fes:And> (group + wrapper), got %d:\n%s", n, got)
	}
	if !strings.Contains(got, "<fes:Filter><fes:And><fes:And>") ||
		!strings.Contains(got, "</fes:And><fes:Intersects>") ||
		!strings.Contains(got, "</fes:Intersects></fes:And></fes:Filter>") {
		t.Fatalf("unexpected wrapping:\n%s", got)
	}
	if !strings.Contains(got, `<fes:PropertyIsLike matchCase="true" wildCard="*" singleChar="." escapeChar="!">`+
		`<fes:ValueReference>kind</fes:ValueReference><fes:Literal>cap*</fes:Literal></fes:PropertyIsLike>`) {
		t.Fatalf("like predicate missing:\n%s", got)
	}
	if !strings.Contains(got, "<fes:Literal>1000</fes:Literal>") {
		t.Fatalf("numeric literal missing:\n%s", got)
	}
}

func TestToOGCFilter_BBOX(t *testing.T) {
	spec := mustParse(t, `{
		"spatialField": {
			"attribute": "geom", "operation": "BBOX", "method": "BBOX",
			"geometry": {"type": "Polygon", "extent": [1,2,3,4], "projection": "EPSG:4326"}
		}
	}`)
	got, err := ToOGCFilter("topp:states", spec, "", nil)
	if err != nil {
		t.Fatal(err)
	}
	want := `<fes:Filter><fes:BBOX><fes:ValueReference>geom</fes:ValueReference>` +
		`<gml:Envelope srsName="EPSG:4326"><gml:lowerCorner>1 2</gml:lowerCorner><gml:upperCorner>3 4</gml:upperCorner></gml:Envelope>` +
		`</fes:BBOX></fes:Filter>`
	if !strings.Contains(got, want) {
		t.Fatalf("got\n%s\nwant fragment\n%s", got, want)
	}
	assertWellFormed(t, got)
}

func TestToOGCFilter_DWithinDistance(t *testing.T) {
	spec := mustParse(t, `{
		"spatialField": {
			"attribute": "the_geom", "operation": "DWITHIN", "method": "Circle",
			"geometry": {"type": "Point", "coordinates": [[[1,2]]], "distance": 100}
		}
	}`)
	got, err := ToOGCFilter("topp:states", spec, "1.1.0", nil)
	if err != nil {
		t.Fatal(err)
	}
	want := `<ogc:DWithin><ogc:PropertyName>the_geom</ogc:PropertyName>` +
		`<gml:Point srsDimension="2" srsName="EPSG:4326"><gml:pos>1 2</gml:pos></gml:Point>` +
		`<ogc:Distance units="m">100</ogc:Distance></ogc:DWithin>`
	if !strings.Contains(got, want) {
		t.Fatalf("got\n%s\nwant fragment\n%s", got, want)
	}
}

func TestToOGCFilter_Version100Envelope(t *testing.T) {
	spec := mustParse(t, `{
		"filterFields": [{"attribute": "name", "type": "list", "operator": "<>", "value": "x"}],
		"pagination": {"startIndex": 0, "maxFeatures": 20}
	}`)
	got, err := ToOGCFilter("topp:states", spec, "1.0.0", nil)
	if err != nil {
		t.Fatal(err)
	}
	want := `<wfs:GetFeature startIndex="0" maxFeatures="20" service="WFS" version="1.0.0" outputFormat="GML2" ` +
		`xmlns:gml="http://www.opengis.net/gml" xmlns:wfs="http://www.opengis.net/wfs" ` +
		`xmlns:ogc="http://www.opengis.net/ogc" xmlns:xsi="http://www.w3.org/2001/XMLSchema-instance" ` +
		`xsi:schemaLocation="http://www.opengis.net/wfs http://schemas.opengis.net/wfs/1.0.0/WFS-basic.xsd">` +
		`<wfs:Query typeName="topp:states" srsName="EPSG:4326"><ogc:Filter>` +
		`<ogc:PropertyIsNotEqualTo><ogc:PropertyName>name</ogc:PropertyName><ogc:Literal>x</ogc:Literal></ogc:PropertyIsNotEqualTo>` +
		`</ogc:Filter></wfs:Query></wfs:GetFeature>`
	if got != want {
		t.Fatalf("got\n%s\nwant\n%s", got, want)
	}
	if strings.Contains(got, "typeNames") || strings.Contains(got, "fes:") {
		t.Fatalf("1.0.0 must not use 2.0 naming:\n%s", got)
	}
}

func TestToOGCFilter_Version20UsesCountAndTypeNames(t *testing.T) {
	spec := mustParse(t, `{
		"filterFields": [{"attribute": "name", "type": "list", "operator": "=", "value": "x"}],
		"pagination": {"maxFeatures": 50}
	}`)
	got, err := ToOGCFilter("topp:states", spec, "", nil)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(got, `<wfs:GetFeature count="50" service="WFS" version="2.0" `) {
		t.Fatalf("unexpected envelope start:\n%s", got)
	}
	if !strings.Contains(got, `typeNames="topp:states"`) || !strings.Contains(got, `xmlns:fes="http://www.opengis.net/fes/2.0"`) {
		t.Fatalf("missing 2.0 naming:\n%s", got)
	}
	if strings.Contains(got, "startIndex") {
		t.Fatalf("startIndex must be absent when undefined:\n%s", got)
	}
}

func TestToOGCFilter_DateRangeMissingEndIsDropped(t *testing.T) {
	var dropped []string
	enc := New(WithDropHook(func(_ Format, f FilterField, reason string) {
		dropped = append(dropped, f.Attribute+":"+reason)
	}))
	spec := mustParse(t, `{
		"groupFields": [{"id": "g", "logic": "AND"}],
		"filterFields": [
			{"groupId": "g", "attribute": "when", "type": "date", "operator": "><", "value": {"startDate": "2016-01-01T00:00:00.000Z"}},
			{"groupId": "g", "attribute": "name", "type": "list", "operator": "=", "value": "a"}
		]
	}`)
	got, err := enc.ToOGCFilter("topp:states", spec, "", nil)
	if err != nil {
		t.Fatal(err)
	}
	if strings.Contains(got, "PropertyIsBetween") {
		t.Fatalf("between must be dropped:\n%s", got)
	}
	if len(dropped) != 1 || dropped[0] != "when:missing end date" {
		t.Fatalf("drop hook calls = %v", dropped)
	}
}

func TestToOGCFilter_DateRange(t *testing.T) {
	spec := mustParse(t, `{
		"groupFields": [{"id": 1, "logic": "AND"}],
		"filterFields": [
			{"groupId": 1, "attribute": "when", "type": "date", "operator": "><",
			 "value": {"startDate": "2016-01-01T00:00:00Z", "endDate": "2016-12-31T23:59:59.5Z"}},
			{"groupId": 1, "attribute": "since", "type": "date", "operator": ">=", "value": {"startDate": 1451606400000}}
		]
	}`)
	got, err := ToOGCFilter("topp:states", spec, "", nil)
	if err != nil {
		t.Fatal(err)
	}
	between := `<fes:PropertyIsBetween><fes:ValueReference>when</fes:ValueReference>` +
		`<fes:LowerBoundary><fes:Literal>2016-01-01T00:00:00.000Z</fes:Literal></fes:LowerBoundary>` +
		`<fes:UpperBoundary><fes:Literal>2016-12-31T23:59:59.500Z</fes:Literal></fes:UpperBoundary>` +
		`</fes:PropertyIsBetween>`
	if !strings.Contains(got, between) {
		t.Fatalf("missing between:\n%s", got)
	}
	if !strings.Contains(got, `<fes:PropertyIsGreaterThanOrEqualTo><fes:ValueReference>since</fes:ValueReference>`+
		`<fes:Literal>2016-01-01T00:00:00.000Z</fes:Literal></fes:PropertyIsGreaterThanOrEqualTo>`) {
		t.Fatalf("missing epoch-millis date:\n%s", got)
	}
}

// Concatenating ungrouped predicates straight under Filter, as in
// <Filter><PropertyIsEqualTo/><PropertyIsLessThan/></Filter>, is not valid FES
// once there is more than one, so they are wrapped in a single And.
func TestToOGCFilter_UngroupedFieldsAreANDed(t *testing.T) {
	spec := mustParse(t, `{"filterFields": [
		{"attribute": "a", "type": "list", "operator": "=", "value": "1"},
		{"attribute": "b", "type": "list", "operator": "<", "value": "2"}
	]}`)
	got, err := ToOGCFilter("t", spec, "1.1.0", nil)
	if err != nil {
		t.Fatal(err)
	}
	want := `<ogc:Filter><ogc:And>` +
		`<ogc:PropertyIsEqualTo><ogc:PropertyName>a</ogc:PropertyName><ogc:Literal>1</ogc:Literal></ogc:PropertyIsEqualTo>` +
		`<ogc:PropertyIsLessThan><ogc:PropertyName>b</ogc:PropertyName><ogc:Literal>2</ogc:Literal></ogc:PropertyIsLessThan>` +
		`</ogc:And></ogc:Filter>`
	if !strings.Contains(got, want) {
		t.Fatalf("got\n%s\nwant fragment\n%s", got, want)
	}
	assertWellFormed(t, got)
}

func TestToOGCFilter_SortBy(t *testing.T) {
	spec := mustParse(t, `{"filterFields": [{"attribute": "a", "type": "list", "operator": "=", "value": "b"}]}`)

	got, err := ToOGCFilter("t", spec, "", &SortOptions{SortBy: "name", SortOrder: "DESC"})
	if err != nil {
		t.Fatal(err)
	}
	want := `</fes:Filter><fes:SortBy><fes:SortProperty><fes:ValueReference>name</fes:ValueReference>` +
		`<fes:SortOrder>DESC</fes:SortOrder></fes:SortProperty></fes:SortBy></wfs:Query>`
	if !strings.Contains(got, want) {
		t.Fatalf("got\n%s\nwant fragment\n%s", got, want)
	}

	got, err = ToOGCFilter("t", spec, "1.1.0", &SortOptions{SortBy: "name"})
	if err != nil {
		t.Fatal(err)
	}
	if strings.Contains(got, "SortBy") {
		t.Fatalf("sort needs both fields:\n%s", got)
	}
}

func TestToOGCFilter_EscapesText(t *testing.T) {
	spec := mustParse(t, `{"filterFields": [{"attribute": "name", "type": "list", "operator": "=", "value": "A&B <C>"}]}`)
	got, err := ToOGCFilter("t", spec, "", nil)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(got, "<fes:Literal>A&amp;B &lt;C&gt;</fes:Literal>") {
		t.Fatalf("literal not escaped:\n%s", got)
	}
	assertWellFormed(t, got)
}

func TestToOGCFilter_Errors(t *testing.T) {
	enc := New()

	if _, err := enc.ToOGCFilterJSON("t", []byte(`{"filterFields": [`), "", nil); !errors.Is(err, ErrParseFailure) {
		t.Fatalf("malformed json: want ErrParseFailure, got %v", err)
	}

	unknown := mustParse(t, `{"filterFields": [{"attribute": "a", "type": "list", "operator": "~", "value": "b"}]}`)
	if _, err := enc.ToOGCFilter("t", unknown, "", nil); !errors.Is(err, ErrUnknownOperatorKind) {
		t.Fatalf("unknown operator: got %v", err)
	}

	badLogic := mustParse(t, `{
		"groupFields": [{"id": 1, "logic": "XOR"}],
		"filterFields": [{"groupId": 1, "attribute": "a", "type": "list", "operator": "=", "value": "b"}]
	}`)
	if _, err := enc.ToOGCFilter("t", badLogic, "", nil); !errors.Is(err, ErrUnknownOperatorKind) {
		t.Fatalf("unknown logic: got %v", err)
	}

	empty := mustParse(t, `{"filterFields": [{"attribute": "a", "type": "list", "operator": "=", "value": ""}]}`)
	out, err := enc.ToOGCFilter("t", empty, "", nil)
	if !errors.Is(err, ErrEmptyFilterSpec) || out != "" {
		t.Fatalf("empty: got %q, %v", out, err)
	}

	if _, err := enc.ToOGCFilter("t", &FilterSpec{}, "9.9", nil); !errors.Is(err, ErrUnsupportedVersion) {
		t.Fatalf("version: got %v", err)
	}

	if _, err := enc.ToOGCFilter(" ", unknown, "", nil); !errors.Is(err, ErrMissingRequiredField) {
		t.Fatalf("feature type: got %v", err)
	}

	badSpatial := mustParse(t, `{"spatialField": {"attribute": "g", "operation": "TOUCHES", "method": "Point",
		"geometry": {"type": "Point", "coordinates": [1,2]}}}`)
	if _, err := enc.ToOGCFilter("t", badSpatial, "", nil); !errors.Is(err, ErrUnknownOperatorKind) {
		t.Fatalf("spatial op: got %v", err)
	}
}

func TestToOGCFilter_UnknownTypeIsDroppedNotFatal(t *testing.T) {
	spec := mustParse(t, `{"filterFields": [
		{"attribute": "a", "type": "number", "operator": "=", "value": 3},
		{"attribute": "b", "type": "list", "operator": "=", "value": "x"}
	]}`)
	got, err := ToOGCFilter("t", spec, "", nil)
	if err != nil {
		t.Fatal(err)
	}
	if strings.Contains(got, ">a<") || !strings.Contains(got, ">b<") {
		t.Fatalf("unexpected predicates:\n%s", got)
	}
}
