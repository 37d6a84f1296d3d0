package main

import (
	"encoding/json"
	"fmt"
	"math"
	"math/rand"

	"github.com/paulmach/orb"

	"github.com/mohammed-shakir/wfs-filter-encoding/internal/core/model"
	"github.com/mohammed-shakir/wfs-filter-encoding/pkg/filter"
)

// makeBounds creates a mix of "hot" boxes around a few cities and "cold"
// boxes spread over Sweden.
func makeBounds(count int, r *rand.Rand) []orb.Bound {
	centers := []orb.Point{
		{18.0686, 59.3293}, // Stockholm
		{11.9746, 57.7089}, // Göteborg
		{13.0038, 55.6050}, // Malmö
		{22.1547, 65.5848}, // Luleå
	}
	out := make([]orb.Bound, 0, count)

	hot := min(count, int(math.Max(8, float64(count/4))))
	for i := range hot {
		c := centers[i%len(centers)]
		dx, dy := (r.Float64()-0.5)*0.20, (r.Float64()-0.5)*0.20
		w, h := 0.12+r.Float64()*0.08, 0.12+r.Float64()*0.08
		out = append(out, boxAround(orb.Point{c[0] + dx, c[1] + dy}, w, h))
	}
	for len(out) < count {
		lon := 11 + r.Float64()*(24-11)
		lat := 55 + r.Float64()*(66-55)
		w, h := 0.2*r.Float64()+0.05, 0.2*r.Float64()+0.05
		out = append(out, boxAround(orb.Point{lon, lat}, w, h))
	}
	return out
}

func boxAround(c orb.Point, w, h float64) orb.Bound {
	return orb.Bound{
		Min: orb.Point{c[0] - w/2, c[1] - h/2},
		Max: orb.Point{c[0] + w/2, c[1] + h/2},
	}
}

// requestBody builds the encode request for one box. Every third box also
// carries an attribute predicate so grouped output is exercised.
func requestBody(typeName, geomAttr string, idx int, b orb.Bound) ([]byte, error) {
	geom, err := filter.NewGeometry(b, "EPSG:4326")
	if err != nil {
		return nil, fmt.Errorf("geometry: %w", err)
	}
	spec := filter.FilterSpec{
		SpatialField: &filter.SpatialField{
			Attribute: geomAttr,
			Operation: "BBOX",
			Method:    "BBOX",
			Geometry:  geom,
		},
	}
	if idx%3 == 0 {
		spec.FilterFields = []filter.FilterField{{
			Attribute: "kind",
			Type:      filter.FieldTypeList,
			Operator:  "=",
			Value:     filter.Scalar("city"),
		}}
	}
	raw, err := json.Marshal(spec)
	if err != nil {
		return nil, fmt.Errorf("marshal spec: %w", err)
	}
	return json.Marshal(model.EncodeRequest{TypeName: typeName, Filter: raw})
}
