// Package mapper tags spatial predicates with a coarse index cell.
package mapper

import (
	"github.com/mohammed-shakir/wfs-filter-encoding/pkg/filter"
)

type Interface interface {
	// Cell returns the index cell at res that contains the centre of g's
	// envelope.
	Cell(g *filter.Geometry, res int) (string, error)
}
