// Package filtersvc serves encode requests: cache lookup, encoding on miss,
// write-back and an encode event per request.
package filtersvc

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/mohammed-shakir/wfs-filter-encoding/internal/cache"
	"github.com/mohammed-shakir/wfs-filter-encoding/internal/cache/keys"
	"github.com/mohammed-shakir/wfs-filter-encoding/internal/core/observability"
	"github.com/mohammed-shakir/wfs-filter-encoding/internal/encodeevents"
	"github.com/mohammed-shakir/wfs-filter-encoding/internal/logger"
	"github.com/mohammed-shakir/wfs-filter-encoding/internal/mapper"
	"github.com/mohammed-shakir/wfs-filter-encoding/pkg/filter"
)

var ErrUnknownFormat = errors.New("unknown output format")

type Request struct {
	Format   filter.Format
	TypeName string
	Version  string
	Sort     *filter.SortOptions
	Spec     *filter.FilterSpec
}

type Result struct {
	Output string
	Key    string
	Tier   string
	Cell   string
}

type Cache interface {
	Get(ctx context.Context, key string) ([]byte, string, bool)
	Set(ctx context.Context, key string, val []byte)
}

type Publisher interface {
	Publish(ev encodeevents.Event) bool
}

type Service struct {
	enc            *filter.Encoder
	cache          Cache
	events         Publisher
	mapper         mapper.Interface
	h3Res          int
	defaultVersion string
	log            *slog.Logger
}

type Option func(*Service)

func WithCache(c Cache) Option { return func(s *Service) { s.cache = c } }

func WithEvents(p Publisher) Option { return func(s *Service) { s.events = p } }

func WithMapper(m mapper.Interface, res int) Option {
	return func(s *Service) { s.mapper, s.h3Res = m, res }
}

// WithDefaultVersion sets the WFS version used when a request names none.
func WithDefaultVersion(v string) Option {
	return func(s *Service) { s.defaultVersion = strings.TrimSpace(v) }
}

func WithLogger(l *slog.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.log = l
		}
	}
}

func New(opts ...Option) *Service {
	s := &Service{
		log:            slog.New(slog.DiscardHandler),
		defaultVersion: string(filter.DefaultVersion),
	}
	for _, o := range opts {
		o(s)
	}
	s.enc = filter.New(
		filter.WithLogger(s.log),
		filter.WithDropHook(func(f filter.Format, _ filter.FilterField, reason string) {
			observability.IncPredicateDropped(string(f), reason)
		}),
	)
	return s
}

// Encode returns the encoded filter for req, from cache when possible.
func (s *Service) Encode(ctx context.Context, req Request) (Result, error) {
	switch req.Format {
	case filter.FormatOGC:
		if req.Version == "" {
			req.Version = s.defaultVersion
		}
		v, err := filter.ParseVersion(req.Version)
		if err != nil {
			return Result{}, err
		}
		req.Version = string(v)
	case filter.FormatCQL:
	default:
		return Result{}, fmt.Errorf("%w: %q", ErrUnknownFormat, req.Format)
	}
	if req.Spec == nil {
		return Result{}, filter.ErrEmptyFilterSpec
	}
	ctx = logger.WithFormat(ctx, string(req.Format))

	key, err := keys.Key(keys.Request{
		Format:   string(req.Format),
		Version:  req.Version,
		TypeName: req.TypeName,
		Sort:     req.Sort,
		Spec:     req.Spec,
	})
	if err != nil {
		return Result{}, fmt.Errorf("cache key: %w", err)
	}

	res := Result{Key: key, Tier: cache.TierNone, Cell: s.cell(ctx, req.Spec)}
	if s.cache != nil {
		if v, tier, ok := s.cache.Get(ctx, key); ok {
			res.Output, res.Tier = string(v), tier
			s.publish(req, res)
			s.log.DebugContext(logger.WithCacheTier(ctx, tier), "encode served from cache", "key", key)
			return res, nil
		}
	}

	start := time.Now()
	out, err := s.encode(req)
	observability.ObserveEncode(string(req.Format), err, time.Since(start).Seconds())
	if err != nil {
		return Result{}, err
	}
	res.Output = out

	if s.cache != nil {
		s.cache.Set(ctx, key, []byte(out))
	}
	s.publish(req, res)
	s.log.DebugContext(logger.WithCacheTier(ctx, res.Tier), "filter encoded",
		"key", key, "bytes", len(out), "cell", res.Cell)
	return res, nil
}

func (s *Service) encode(req Request) (string, error) {
	if req.Format == filter.FormatOGC {
		return s.enc.ToOGCFilter(req.TypeName, req.Spec, req.Version, req.Sort)
	}
	return s.enc.ToCQLFilter(req.Spec)
}

// cell tags the request with the H3 cell of its spatial predicate; failures
// only cost the tag.
func (s *Service) cell(ctx context.Context, spec *filter.FilterSpec) string {
	if s.mapper == nil || !spec.HasSpatial() {
		return ""
	}
	c, err := s.mapper.Cell(spec.SpatialField.Geometry, s.h3Res)
	if err != nil {
		s.log.DebugContext(ctx, "no h3 cell for spatial predicate", "err", err)
		return ""
	}
	return c
}

func (s *Service) publish(req Request, res Result) {
	if s.events == nil {
		return
	}
	s.events.Publish(encodeevents.Event{
		Format:   string(req.Format),
		TypeName: req.TypeName,
		Version:  req.Version,
		Cell:     res.Cell,
		Key:      res.Key,
		Bytes:    len(res.Output),
		Cached:   res.Tier,
		TS:       time.Now().UTC(),
	})
}
