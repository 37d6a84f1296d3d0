package ogc

import (
	"net/url"
	"strconv"
	"strings"

	"github.com/mohammed-shakir/wfs-filter-encoding/internal/core/model"
)

const DefaultOutputFormat = "application/json"

func OWSEndpoint(geoServerBase string) string {
	return strings.TrimRight(geoServerBase, "/") + "/ows"
}

// BuildGetFeatureParams builds the KVP form of a GetFeature carrying a CQL
// filter. Pagination and sorting map onto the KVP names of the version.
func BuildGetFeatureParams(q model.FeatureQuery) url.Values {
	version := q.Version
	if version == "" || version == "2.0" {
		version = "2.0.0"
	}
	v2 := strings.HasPrefix(version, "2")

	params := url.Values{}
	params.Set("service", "WFS")
	params.Set("version", version)
	params.Set("request", "GetFeature")
	if v2 {
		params.Set("typeNames", q.TypeName)
	} else {
		params.Set("typeName", q.TypeName)
	}
	if q.Body != "" {
		params.Set("CQL_FILTER", q.Body)
	}
	if p := q.Pagination; p != nil {
		if p.StartIndex != nil {
			params.Set("startIndex", strconv.Itoa(*p.StartIndex))
		}
		if p.MaxFeatures != nil && *p.MaxFeatures != 0 {
			if v2 {
				params.Set("count", strconv.Itoa(*p.MaxFeatures))
			} else {
				params.Set("maxFeatures", strconv.Itoa(*p.MaxFeatures))
			}
		}
	}
	if s := q.Sort; s != nil && s.SortBy != "" && s.SortOrder != "" {
		params.Set("sortBy", s.SortBy+" "+strings.ToUpper(s.SortOrder))
	}
	params.Set("outputFormat", outputFormat(q.OutputFormat))
	return params
}

// PostQueryParams are the query parameters sent alongside an XML GetFeature
// body. Only the output format travels outside the document.
func PostQueryParams(q model.FeatureQuery) url.Values {
	params := url.Values{}
	params.Set("outputFormat", outputFormat(q.OutputFormat))
	return params
}

func outputFormat(f string) string {
	if strings.TrimSpace(f) == "" {
		return DefaultOutputFormat
	}
	return f
}
