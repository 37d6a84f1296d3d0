package filter

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"
)

type FieldType string

const (
	FieldTypeDate FieldType = "date"
	FieldTypeList FieldType = "list"
)

type GeometryType string

const (
	GeometryPoint        GeometryType = "Point"
	GeometryMultiPoint   GeometryType = "MultiPoint"
	GeometryPolygon      GeometryType = "Polygon"
	GeometryMultiPolygon GeometryType = "MultiPolygon"
)

// ID identifies a field or group. UI payloads send ids as numbers or strings;
// both decode to their textual form so references compare equal.
type ID string

func (id *ID) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || string(b) == "null" {
		*id = ""
		return nil
	}
	if b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return fmt.Errorf("id: %w", err)
		}
		*id = ID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return fmt.Errorf("id: %w", err)
	}
	*id = ID(n.String())
	return nil
}

// FilterSpec is the UI filter description handed to an encoder.
type FilterSpec struct {
	FilterFields []FilterField `json:"filterFields,omitempty"`
	GroupFields  []FilterGroup `json:"groupFields,omitempty"`
	SpatialField *SpatialField `json:"spatialField,omitempty"`
	Pagination   *Pagination   `json:"pagination,omitempty"`
}

type FilterField struct {
	ID        ID         `json:"id,omitempty"`
	GroupID   ID         `json:"groupId,omitempty"`
	Attribute string     `json:"attribute"`
	Type      FieldType  `json:"type"`
	Operator  string     `json:"operator"`
	Value     FieldValue `json:"value"`
}

type FilterGroup struct {
	ID      ID     `json:"id,omitempty"`
	GroupID ID     `json:"groupId,omitempty"`
	Logic   string `json:"logic"`
}

// SpatialField is encoded only when both Geometry and Method are set; Method
// names the drawing tool that produced the geometry.
type SpatialField struct {
	Attribute string    `json:"attribute"`
	Operation string    `json:"operation"`
	Geometry  *Geometry `json:"geometry,omitempty"`
	Method    string    `json:"method,omitempty"`
}

// Geometry carries GeoJSON-style coordinates whose nesting depends on Type.
// Extent is only read by BBOX and Distance only by DWITHIN.
type Geometry struct {
	Type        GeometryType    `json:"type"`
	Coordinates json.RawMessage `json:"coordinates,omitempty"`
	Projection  string          `json:"projection,omitempty"`
	Extent      []float64       `json:"extent,omitempty"`
	Distance    *float64        `json:"distance,omitempty"`
}

type Pagination struct {
	StartIndex  *int `json:"startIndex,omitempty"`
	MaxFeatures *int `json:"maxFeatures,omitempty"`
}

type SortOptions struct {
	SortBy    string `json:"sortBy"`
	SortOrder string `json:"sortOrder"`
}

// DateRange is the value of a "date" field. EndDate is only used by the
// between operator.
type DateRange struct {
	StartDate *time.Time `json:"startDate,omitempty"`
	EndDate   *time.Time `json:"endDate,omitempty"`
}

// FieldValue is either a DateRange (date fields) or a scalar (list fields).
type FieldValue struct {
	Scalar any
	Range  *DateRange
}

func Scalar(v any) FieldValue { return FieldValue{Scalar: v} }

func Between(start, end time.Time) FieldValue {
	return FieldValue{Range: &DateRange{StartDate: &start, EndDate: &end}}
}

func Since(start time.Time) FieldValue {
	return FieldValue{Range: &DateRange{StartDate: &start}}
}

func (v *FieldValue) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	*v = FieldValue{}
	if len(b) == 0 || string(b) == "null" {
		return nil
	}
	if b[0] == '{' {
		var raw struct {
			StartDate json.RawMessage `json:"startDate"`
			EndDate   json.RawMessage `json:"endDate"`
		}
		if err := json.Unmarshal(b, &raw); err != nil {
			return fmt.Errorf("date value: %w", err)
		}
		start, err := parseDate(raw.StartDate)
		if err != nil {
			return fmt.Errorf("startDate: %w", err)
		}
		end, err := parseDate(raw.EndDate)
		if err != nil {
			return fmt.Errorf("endDate: %w", err)
		}
		v.Range = &DateRange{StartDate: start, EndDate: end}
		return nil
	}
	var s any
	if err := json.Unmarshal(b, &s); err != nil {
		return fmt.Errorf("value: %w", err)
	}
	v.Scalar = s
	return nil
}

func (v FieldValue) MarshalJSON() ([]byte, error) {
	if v.Range != nil {
		return json.Marshal(v.Range)
	}
	return json.Marshal(v.Scalar)
}

// accepts ISO-8601 text, a plain date, or epoch milliseconds; empty means absent
func parseDate(raw json.RawMessage) (*time.Time, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || string(raw) == "null" {
		return nil, nil
	}
	if raw[0] == '"' {
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return nil, err
		}
		s = strings.TrimSpace(s)
		if s == "" {
			return nil, nil
		}
		for _, layout := range []string{time.RFC3339Nano, "2006-01-02T15:04:05", "2006-01-02"} {
			if t, err := time.Parse(layout, s); err == nil {
				return &t, nil
			}
		}
		return nil, fmt.Errorf("unrecognized date %q", s)
	}
	var ms float64
	if err := json.Unmarshal(raw, &ms); err != nil {
		return nil, err
	}
	if math.IsNaN(ms) || math.IsInf(ms, 0) {
		return nil, errors.New("invalid epoch millis")
	}
	t := time.UnixMilli(int64(ms)).UTC()
	return &t, nil
}

// ParseFilterSpec decodes JSON text into a FilterSpec. Malformed input yields
// a *ParseError.
func ParseFilterSpec(data []byte) (*FilterSpec, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, parseErr("filter spec", errors.New("empty input"))
	}
	var spec FilterSpec
	if err := json.Unmarshal(data, &spec); err != nil {
		return nil, parseErr("filter spec", err)
	}
	return &spec, nil
}

func (s *FilterSpec) hasAttributes() bool {
	return s != nil && len(s.FilterFields) > 0
}

// HasSpatial reports whether the spatial predicate will be encoded.
func (s *FilterSpec) HasSpatial() bool {
	return s != nil && s.SpatialField != nil && s.SpatialField.Geometry != nil && s.SpatialField.Method != ""
}
