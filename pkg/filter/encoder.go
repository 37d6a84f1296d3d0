// Package filter encodes UI filter descriptions into OGC Filter Encoding
// (wrapped in a WFS GetFeature request) and CQL.
//
// An Encoder holds only immutable configuration; every call works on local
// state, so one Encoder can serve any number of goroutines.
package filter

import (
	"log/slog"
)

type Format string

const (
	FormatOGC Format = "ogc"
	FormatCQL Format = "cql"
)

// DropFunc observes predicates skipped because a required value is missing.
type DropFunc func(format Format, f FilterField, reason string)

type Encoder struct {
	logger *slog.Logger
	onDrop DropFunc
}

type Option func(*Encoder)

func WithLogger(l *slog.Logger) Option {
	return func(e *Encoder) {
		if l != nil {
			e.logger = l
		}
	}
}

func WithDropHook(fn DropFunc) Option {
	return func(e *Encoder) { e.onDrop = fn }
}

func New(opts ...Option) *Encoder {
	e := &Encoder{logger: slog.New(slog.DiscardHandler)}
	for _, o := range opts {
		o(e)
	}
	return e
}

var std = New()

// ToOGCFilter encodes spec with a default Encoder.
func ToOGCFilter(featureType string, spec *FilterSpec, version string, sort *SortOptions) (string, error) {
	return std.ToOGCFilter(featureType, spec, version, sort)
}

// ToCQLFilter encodes spec with a default Encoder.
func ToCQLFilter(spec *FilterSpec) (string, error) {
	return std.ToCQLFilter(spec)
}

// ToOGCFilterJSON parses data and encodes it as a GetFeature request.
func (e *Encoder) ToOGCFilterJSON(featureType string, data []byte, version string, sort *SortOptions) (string, error) {
	spec, err := ParseFilterSpec(data)
	if err != nil {
		return "", err
	}
	return e.ToOGCFilter(featureType, spec, version, sort)
}

// ToCQLFilterJSON parses data and encodes it as a CQL predicate.
func (e *Encoder) ToCQLFilterJSON(data []byte) (string, error) {
	spec, err := ParseFilterSpec(data)
	if err != nil {
		return "", err
	}
	return e.ToCQLFilter(spec)
}

func (e *Encoder) dropped(format Format, f FilterField, reason string) {
	e.logger.Debug("filter predicate dropped",
		"format", string(format),
		"field", string(f.ID),
		"attribute", f.Attribute,
		"operator", f.Operator,
		"reason", reason,
		"err", ErrMissingRequiredField)
	if e.onDrop != nil {
		e.onDrop(format, f, reason)
	}
}
