package filter

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/paulmach/orb"
)

const defaultSRS = "EPSG:4326"

// NewGeometry converts an orb geometry into the filter geometry shape. A
// bound becomes a Polygon that also carries its extent for BBOX use.
func NewGeometry(g orb.Geometry, projection string) (*Geometry, error) {
	out := &Geometry{Projection: projection}
	switch t := g.(type) {
	case orb.Point, orb.MultiPoint, orb.Polygon, orb.MultiPolygon:
		out.Type = GeometryType(g.GeoJSONType())
	case orb.Ring:
		out.Type = GeometryPolygon
		g = orb.Polygon{t}
	case orb.Bound:
		out.Type = GeometryPolygon
		out.Extent = []float64{t.Min.X(), t.Min.Y(), t.Max.X(), t.Max.Y()}
		g = t.ToPolygon()
	default:
		return nil, fmt.Errorf("%w: %T", ErrUnsupportedGeometry, g)
	}
	coords, err := json.Marshal(g)
	if err != nil {
		return nil, fmt.Errorf("marshal coordinates: %w", err)
	}
	out.Coordinates = coords
	return out, nil
}

// Orb decodes the coordinates into the matching orb geometry. Point
// coordinates holding several positions decode to a MultiPoint.
func (g *Geometry) Orb() (orb.Geometry, error) {
	switch g.Type {
	case GeometryPoint:
		rings, err := pointRings(g.Coordinates)
		if err != nil {
			return nil, err
		}
		mp, err := flattenPoints(rings)
		if err != nil {
			return nil, err
		}
		if len(mp) == 1 {
			return mp[0], nil
		}
		return mp, nil
	case GeometryMultiPoint:
		members, err := multiPointMembers(g.Coordinates)
		if err != nil {
			return nil, err
		}
		var mp orb.MultiPoint
		for _, rings := range members {
			pts, err := flattenPoints(rings)
			if err != nil {
				return nil, err
			}
			mp = append(mp, pts...)
		}
		return mp, nil
	case GeometryPolygon:
		rings, err := decodeCoords[[][][]float64](g.Coordinates, "polygon coordinates")
		if err != nil {
			return nil, err
		}
		return toOrbPolygon(rings)
	case GeometryMultiPolygon:
		polys, err := decodeCoords[[][][][]float64](g.Coordinates, "multipolygon coordinates")
		if err != nil {
			return nil, err
		}
		var mp orb.MultiPolygon
		for _, rings := range polys {
			if rings == nil {
				continue
			}
			p, err := toOrbPolygon(rings)
			if err != nil {
				return nil, err
			}
			mp = append(mp, p)
		}
		return mp, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedGeometry, g.Type)
	}
}

// Bound is the bounding box of the coordinates.
func (g *Geometry) Bound() (orb.Bound, error) {
	o, err := g.Orb()
	if err != nil {
		return orb.Bound{}, err
	}
	return o.Bound(), nil
}

// Envelope is the explicit extent when one was drawn, else the coordinate
// bound.
func (g *Geometry) Envelope() (orb.Bound, error) {
	e, err := g.extent()
	if err != nil {
		return orb.Bound{}, err
	}
	return orb.Bound{Min: orb.Point{e[0], e[1]}, Max: orb.Point{e[2], e[3]}}, nil
}

func (g *Geometry) srsName() string {
	if g.Projection != "" {
		return g.Projection
	}
	return defaultSRS
}

// extent falls back to the coordinate bound when no explicit extent was drawn
func (g *Geometry) extent() ([4]float64, error) {
	if len(g.Extent) >= 4 {
		return [4]float64{g.Extent[0], g.Extent[1], g.Extent[2], g.Extent[3]}, nil
	}
	if len(bytes.TrimSpace(g.Coordinates)) == 0 {
		return [4]float64{}, fmt.Errorf("%w: bbox extent", ErrMissingRequiredField)
	}
	b, err := g.Bound()
	if err != nil {
		return [4]float64{}, err
	}
	return [4]float64{b.Min.X(), b.Min.Y(), b.Max.X(), b.Max.Y()}, nil
}

func (g *Geometry) distance() float64 {
	if g.Distance == nil {
		return 0
	}
	return *g.Distance
}

// writeGML renders g as a GML geometry element. MultiPolygon naming follows
// the GML generation of the WFS version.
func writeGML(b *strings.Builder, g *Geometry, v Version) error {
	srs := g.srsName()
	switch g.Type {
	case GeometryPoint:
		rings, err := pointRings(g.Coordinates)
		if err != nil {
			return err
		}
		return writeGMLPoint(b, rings, srs)
	case GeometryMultiPoint:
		members, err := multiPointMembers(g.Coordinates)
		if err != nil {
			return err
		}
		b.WriteString(`<gml:MultiPoint srsName="` + escapeXML(srs) + `">`)
		for _, rings := range members {
			b.WriteString("<gml:pointMember>")
			if err := writeGMLPoint(b, rings, ""); err != nil {
				return err
			}
			b.WriteString("</gml:pointMember>")
		}
		b.WriteString("</gml:MultiPoint>")
		return nil
	case GeometryPolygon:
		rings, err := decodeCoords[[][][]float64](g.Coordinates, "polygon coordinates")
		if err != nil {
			return err
		}
		return writeGMLPolygon(b, rings, srs)
	case GeometryMultiPolygon:
		polys, err := decodeCoords[[][][][]float64](g.Coordinates, "multipolygon coordinates")
		if err != nil {
			return err
		}
		tag, member := "MultiPolygon", "polygonMember"
		if v.isV2() {
			tag, member = "MultiSurface", "surfaceMembers"
		}
		b.WriteString(`<gml:` + tag + ` srsName="` + escapeXML(srs) + `">`)
		for _, rings := range polys {
			if rings == nil {
				continue
			}
			b.WriteString("<gml:" + member + ">")
			if err := writeGMLPolygon(b, rings, ""); err != nil {
				return err
			}
			b.WriteString("</gml:" + member + ">")
		}
		b.WriteString("</gml:" + tag + ">")
		return nil
	default:
		return fmt.Errorf("%w: %q", ErrUnsupportedGeometry, g.Type)
	}
}

// one <gml:pos> per ring, kept as the UI draws it
func writeGMLPoint(b *strings.Builder, rings [][][]float64, srs string) error {
	b.WriteString(`<gml:Point srsDimension="2"`)
	writeSRSClose(b, srs)
	for _, ring := range rings {
		s, err := joinPositions(ring, " ")
		if err != nil {
			return err
		}
		b.WriteString("<gml:pos>" + s + "</gml:pos>")
	}
	b.WriteString("</gml:Point>")
	return nil
}

func writeGMLPolygon(b *strings.Builder, rings [][][]float64, srs string) error {
	b.WriteString("<gml:Polygon")
	writeSRSClose(b, srs)
	for i, ring := range rings {
		s, err := joinPositions(ring, " ")
		if err != nil {
			return err
		}
		wrap := "interior"
		if i == 0 {
			wrap = "exterior"
		}
		b.WriteString("<gml:" + wrap + "><gml:LinearRing><gml:posList>" + s +
			"</gml:posList></gml:LinearRing></gml:" + wrap + ">")
	}
	b.WriteString("</gml:Polygon>")
	return nil
}

func writeGMLEnvelope(b *strings.Builder, g *Geometry) error {
	ext, err := g.extent()
	if err != nil {
		return err
	}
	b.WriteString(`<gml:Envelope srsName="` + escapeXML(g.srsName()) + `">` +
		"<gml:lowerCorner>" + formatNumber(ext[0]) + " " + formatNumber(ext[1]) + "</gml:lowerCorner>" +
		"<gml:upperCorner>" + formatNumber(ext[2]) + " " + formatNumber(ext[3]) + "</gml:upperCorner>" +
		"</gml:Envelope>")
	return nil
}

func writeSRSClose(b *strings.Builder, srs string) {
	if srs != "" {
		b.WriteString(` srsName="` + escapeXML(srs) + `">`)
		return
	}
	b.WriteString(">")
}

// cqlGeometry renders g as a CQL constructor, e.g. Polygon((0 0, 1 0, 1 1, 0 0)).
func cqlGeometry(g *Geometry) (string, error) {
	switch g.Type {
	case GeometryPoint:
		rings, err := pointRings(g.Coordinates)
		if err != nil {
			return "", err
		}
		pts, err := flattenPoints(rings)
		if err != nil {
			return "", err
		}
		if len(pts) == 0 {
			return "", parseErr("point coordinates", errors.New("no position"))
		}
		return "Point(" + formatNumber(pts[0].X()) + " " + formatNumber(pts[0].Y()) + ")", nil
	case GeometryMultiPoint:
		members, err := multiPointMembers(g.Coordinates)
		if err != nil {
			return "", err
		}
		parts := make([]string, 0, len(members))
		for _, rings := range members {
			for _, ring := range rings {
				s, err := joinPositions(ring, ", ")
				if err != nil {
					return "", err
				}
				parts = append(parts, s)
			}
		}
		return "MultiPoint(" + strings.Join(parts, ", ") + ")", nil
	case GeometryPolygon:
		rings, err := decodeCoords[[][][]float64](g.Coordinates, "polygon coordinates")
		if err != nil {
			return "", err
		}
		body, err := cqlPolygonBody(rings)
		if err != nil {
			return "", err
		}
		return "Polygon(" + body + ")", nil
	case GeometryMultiPolygon:
		polys, err := decodeCoords[[][][][]float64](g.Coordinates, "multipolygon coordinates")
		if err != nil {
			return "", err
		}
		parts := make([]string, 0, len(polys))
		for _, rings := range polys {
			if rings == nil {
				continue
			}
			body, err := cqlPolygonBody(rings)
			if err != nil {
				return "", err
			}
			parts = append(parts, "("+body+")")
		}
		return "MultiPolygon(" + strings.Join(parts, ", ") + ")", nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnsupportedGeometry, g.Type)
	}
}

func cqlPolygonBody(rings [][][]float64) (string, error) {
	parts := make([]string, 0, len(rings))
	for _, ring := range rings {
		s, err := joinPositions(ring, ", ")
		if err != nil {
			return "", err
		}
		parts = append(parts, "("+s+")")
	}
	return strings.Join(parts, ", "), nil
}

// --- coordinate decoding ---

func coordDepth(raw json.RawMessage) int {
	d := 0
	for _, c := range raw {
		switch c {
		case '[':
			d++
		case ' ', '\t', '\n', '\r':
		default:
			return d
		}
	}
	return d
}

func decodeCoords[T any](raw json.RawMessage, what string) (T, error) {
	var v T
	if len(bytes.TrimSpace(raw)) == 0 {
		return v, parseErr(what, errors.New("missing coordinates"))
	}
	if err := json.Unmarshal(raw, &v); err != nil {
		return v, parseErr(what, err)
	}
	return v, nil
}

// pointRings lifts a position, a ring, or a ring list to the ring-list shape
// the GML point writer expects.
func pointRings(raw json.RawMessage) ([][][]float64, error) {
	switch d := coordDepth(raw); d {
	case 1:
		p, err := decodeCoords[[]float64](raw, "point coordinates")
		if err != nil {
			return nil, err
		}
		return [][][]float64{{p}}, nil
	case 2:
		r, err := decodeCoords[[][]float64](raw, "point coordinates")
		if err != nil {
			return nil, err
		}
		return [][][]float64{r}, nil
	case 3:
		return decodeCoords[[][][]float64](raw, "point coordinates")
	default:
		return nil, parseErr("point coordinates", fmt.Errorf("unexpected nesting depth %d", d))
	}
}

// null members are skipped
func multiPointMembers(raw json.RawMessage) ([][][][]float64, error) {
	items, err := decodeCoords[[]json.RawMessage](raw, "multipoint coordinates")
	if err != nil {
		return nil, err
	}
	out := make([][][][]float64, 0, len(items))
	for _, item := range items {
		if string(bytes.TrimSpace(item)) == "null" {
			continue
		}
		rings, err := pointRings(item)
		if err != nil {
			return nil, err
		}
		out = append(out, rings)
	}
	return out, nil
}

func position(p []float64) (string, error) {
	if len(p) < 2 {
		return "", parseErr("position", fmt.Errorf("want [x,y], got %d values", len(p)))
	}
	return formatNumber(p[0]) + " " + formatNumber(p[1]), nil
}

func joinPositions(ring [][]float64, sep string) (string, error) {
	parts := make([]string, 0, len(ring))
	for _, p := range ring {
		s, err := position(p)
		if err != nil {
			return "", err
		}
		parts = append(parts, s)
	}
	return strings.Join(parts, sep), nil
}

func toOrbPoint(p []float64) (orb.Point, error) {
	if len(p) < 2 {
		return orb.Point{}, parseErr("position", fmt.Errorf("want [x,y], got %d values", len(p)))
	}
	return orb.Point{p[0], p[1]}, nil
}

func flattenPoints(rings [][][]float64) (orb.MultiPoint, error) {
	var mp orb.MultiPoint
	for _, ring := range rings {
		for _, p := range ring {
			pt, err := toOrbPoint(p)
			if err != nil {
				return nil, err
			}
			mp = append(mp, pt)
		}
	}
	return mp, nil
}

func toOrbPolygon(rings [][][]float64) (orb.Polygon, error) {
	poly := make(orb.Polygon, 0, len(rings))
	for _, ring := range rings {
		r := make(orb.Ring, 0, len(ring))
		for _, p := range ring {
			pt, err := toOrbPoint(p)
			if err != nil {
				return nil, err
			}
			r = append(r, pt)
		}
		poly = append(poly, r)
	}
	return poly, nil
}
