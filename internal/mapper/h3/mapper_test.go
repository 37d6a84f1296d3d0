package h3mapper

import (
	"errors"
	"testing"

	"github.com/paulmach/orb"
	h3 "github.com/uber/h3-go/v4"

	"github.com/mohammed-shakir/wfs-filter-encoding/pkg/filter"
)

func TestCell_PointMatchesDirectIndex(t *testing.T) {
	g, err := filter.NewGeometry(orb.Point{18.0686, 59.3293}, "")
	if err != nil {
		t.Fatal(err)
	}
	got, err := New().Cell(g, 8)
	if err != nil {
		t.Fatalf("Cell: %v", err)
	}
	want, err := h3.LatLngToCell(h3.LatLng{Lat: 59.3293, Lng: 18.0686}, 8)
	if err != nil {
		t.Fatal(err)
	}
	if got != want.String() {
		t.Fatalf("got %s want %s", got, want)
	}
}

func TestCell_UsesEnvelopeCentre(t *testing.T) {
	g := &filter.Geometry{Type: filter.GeometryPolygon, Extent: []float64{17.95, 59.30, 18.15, 59.40}}
	got, err := New().Cell(g, 7)
	if err != nil {
		t.Fatalf("Cell: %v", err)
	}
	want, _ := CellForPoint(orb.Point{18.05, 59.35}, 7)
	if got != want {
		t.Fatalf("got %s want %s", got, want)
	}
}

func TestCell_Errors(t *testing.T) {
	m := New()
	g, _ := filter.NewGeometry(orb.Point{1, 2}, "")
	if _, err := m.Cell(g, 16); err == nil {
		t.Fatal("expected invalid resolution error")
	}
	if _, err := m.Cell(nil, 8); err == nil {
		t.Fatal("expected nil geometry error")
	}
	g.Projection = "EPSG:3857"
	if _, err := m.Cell(g, 8); !errors.Is(err, ErrProjection) {
		t.Fatalf("want ErrProjection, got %v", err)
	}
	if _, err := m.Cell(&filter.Geometry{Type: filter.GeometryPolygon}, 8); err == nil {
		t.Fatal("expected error for geometry without coordinates or extent")
	}
	if _, err := CellForPoint(orb.Point{200, 0}, 8); err == nil {
		t.Fatal("expected range error")
	}
}
