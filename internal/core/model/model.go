// Package model defines the request and response shapes of the HTTP API.
package model

import (
	"encoding/json"

	"github.com/mohammed-shakir/wfs-filter-encoding/pkg/filter"
)

const (
	FormatOGC = "ogc"
	FormatCQL = "cql"
)

// EncodeRequest is the body of /encode/{ogc,cql} and /features. Filter holds
// the UI filter description verbatim; it is parsed by pkg/filter.
type EncodeRequest struct {
	TypeName string              `json:"typeName,omitempty"`
	Version  string              `json:"version,omitempty"`
	Sort     *filter.SortOptions `json:"sort,omitempty"`
	Filter   json.RawMessage     `json:"filter"`
	// Format selects how /features queries the upstream; ignored elsewhere.
	Format string `json:"format,omitempty"`
	// OutputFormat is passed to the WFS as outputFormat on /features.
	OutputFormat string `json:"outputFormat,omitempty"`
}

// FeatureQuery is an encoded filter ready to be sent to a WFS.
type FeatureQuery struct {
	Format       string
	TypeName     string
	Version      string
	Body         string // GetFeature XML for ogc, CQL text for cql
	OutputFormat string
	Pagination   *filter.Pagination
	Sort         *filter.SortOptions
}

type ErrorResponse struct {
	Error string `json:"error"`
	Kind  string `json:"kind,omitempty"`
}
