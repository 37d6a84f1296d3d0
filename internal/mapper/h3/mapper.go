package h3mapper

import (
	"errors"
	"fmt"
	"strings"

	"github.com/paulmach/orb"
	h3 "github.com/uber/h3-go/v4"

	"github.com/mohammed-shakir/wfs-filter-encoding/pkg/filter"
)

var ErrProjection = errors.New("h3mapper: geometry is not in EPSG:4326")

type Mapper struct{}

func New() *Mapper { return &Mapper{} }

func (m *Mapper) Cell(g *filter.Geometry, res int) (string, error) {
	if err := validateRes(res); err != nil {
		return "", err
	}
	if g == nil {
		return "", errors.New("h3mapper: nil geometry")
	}
	if !geographic(g.Projection) {
		return "", fmt.Errorf("%w: %s", ErrProjection, g.Projection)
	}
	b, err := g.Envelope()
	if err != nil {
		return "", fmt.Errorf("h3mapper: envelope: %w", err)
	}
	return CellForPoint(b.Center(), res)
}

// CellForPoint indexes a lon/lat point in degrees.
func CellForPoint(p orb.Point, res int) (string, error) {
	if err := validateRes(res); err != nil {
		return "", err
	}
	if p.Lat() < -90 || p.Lat() > 90 || p.Lon() < -180 || p.Lon() > 180 {
		return "", fmt.Errorf("h3mapper: point %v outside lon/lat range", p)
	}
	c, err := h3.LatLngToCell(h3.LatLng{Lat: p.Lat(), Lng: p.Lon()}, res)
	if err != nil {
		return "", fmt.Errorf("h3 index: %w", err)
	}
	return c.String(), nil
}

func validateRes(res int) error {
	if res < 0 || res > 15 {
		return fmt.Errorf("invalid H3 resolution %d (must be 0..15)", res)
	}
	return nil
}

func geographic(srs string) bool {
	switch strings.ToUpper(strings.TrimSpace(srs)) {
	case "", "EPSG:4326", "CRS:84", "OGC:CRS84", "URN:OGC:DEF:CRS:EPSG::4326", "HTTP://WWW.OPENGIS.NET/GML/SRS/EPSG.XML#4326":
		return true
	}
	return false
}
