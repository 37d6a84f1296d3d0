package filtersvc

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"

	"github.com/mohammed-shakir/wfs-filter-encoding/internal/cache"
	"github.com/mohammed-shakir/wfs-filter-encoding/internal/cache/memo"
	"github.com/mohammed-shakir/wfs-filter-encoding/internal/cache/redisstore"
	"github.com/mohammed-shakir/wfs-filter-encoding/internal/encodeevents"
	h3mapper "github.com/mohammed-shakir/wfs-filter-encoding/internal/mapper/h3"
	"github.com/mohammed-shakir/wfs-filter-encoding/pkg/filter"
)

type recordingPublisher struct {
	mu     sync.Mutex
	events []encodeevents.Event
}

func (p *recordingPublisher) Publish(ev encodeevents.Event) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, ev)
	return true
}

func mustSpec(t *testing.T, js string) *filter.FilterSpec {
	t.Helper()
	s, err := filter.ParseFilterSpec([]byte(js))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	return s
}

const stockholm = `{
	"filterFields": [{"attribute": "kind", "type": "list", "operator": "=", "value": "city"}],
	"spatialField": {"attribute": "geom", "operation": "INTERSECTS", "method": "Point",
		"geometry": {"type": "Point", "coordinates": [18.0686, 59.3293]}}
}`

func TestEncode_MissThenMemoHit(t *testing.T) {
	pub := &recordingPublisher{}
	svc := New(
		WithCache(cache.New(memo.New(16, time.Minute), nil, cache.Config{TTL: time.Minute}, nil)),
		WithEvents(pub),
		WithMapper(h3mapper.New(), 8),
	)
	ctx := context.Background()
	req := Request{Format: filter.FormatCQL, Spec: mustSpec(t, stockholm)}

	first, err := svc.Encode(ctx, req)
	if err != nil {
		t.Fatal(err)
	}
	want := "(kind='city') AND (INTERSECTS(geom, Point(18.0686 59.3293)))"
	if first.Output != want || first.Tier != cache.TierNone {
		t.Fatalf("first = %+v", first)
	}
	if first.Cell == "" {
		t.Fatal("expected an h3 cell for the point")
	}

	second, err := svc.Encode(ctx, req)
	if err != nil {
		t.Fatal(err)
	}
	if second.Output != want || second.Tier != cache.TierMemo || second.Key != first.Key {
		t.Fatalf("second = %+v", second)
	}

	if len(pub.events) != 2 {
		t.Fatalf("events = %d want 2", len(pub.events))
	}
	if ev := pub.events[1]; ev.Cached != cache.TierMemo || ev.Bytes != len(want) || ev.Cell != first.Cell {
		t.Fatalf("event = %+v", ev)
	}
}

func TestEncode_RedisSharedAcrossInstances(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(mr.Close)
	rc, err := redisstore.New(context.Background(), mr.Addr())
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = rc.Close() })

	newSvc := func() *Service {
		return New(WithCache(cache.New(memo.New(16, time.Minute), rc, cache.Config{TTL: time.Minute}, nil)))
	}
	req := Request{Format: filter.FormatOGC, TypeName: "demo:places", Spec: mustSpec(t, stockholm)}

	a, err := newSvc().Encode(context.Background(), req)
	if err != nil {
		t.Fatal(err)
	}
	b, err := newSvc().Encode(context.Background(), req)
	if err != nil {
		t.Fatal(err)
	}
	if b.Tier != cache.TierRedis || b.Output != a.Output {
		t.Fatalf("second instance: tier=%s", b.Tier)
	}
	if !strings.Contains(a.Output, `version="2.0"`) || !strings.Contains(a.Output, "<fes:And>") {
		t.Fatalf("unexpected ogc output %s", a.Output)
	}
	if ttl := mr.TTL(a.Key); ttl != time.Minute {
		t.Fatalf("redis ttl = %v", ttl)
	}
}

func TestEncode_DefaultVersionApplies(t *testing.T) {
	svc := New(WithDefaultVersion("1.1.0"))
	res, err := svc.Encode(context.Background(), Request{
		Format: filter.FormatOGC, TypeName: "t", Spec: mustSpec(t, stockholm),
	})
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(res.Output, `version="1.1.0"`) || !strings.Contains(res.Output, "<ogc:Filter>") {
		t.Fatalf("default version ignored: %s", res.Output)
	}
}

func TestEncode_Errors(t *testing.T) {
	svc := New()
	ctx := context.Background()
	spec := mustSpec(t, stockholm)

	cases := []struct {
		name string
		req  Request
		want error
	}{
		{"unknown format", Request{Format: "wkt", Spec: spec}, ErrUnknownFormat},
		{"nil spec", Request{Format: filter.FormatCQL}, filter.ErrEmptyFilterSpec},
		{"bad version", Request{Format: filter.FormatOGC, TypeName: "t", Version: "3.0", Spec: spec}, filter.ErrUnsupportedVersion},
		{"empty spec", Request{Format: filter.FormatCQL, Spec: &filter.FilterSpec{}}, filter.ErrEmptyFilterSpec},
		{"missing type", Request{Format: filter.FormatOGC, Spec: spec}, filter.ErrMissingRequiredField},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := svc.Encode(ctx, tc.req); !errors.Is(err, tc.want) {
				t.Fatalf("want %v, got %v", tc.want, err)
			}
		})
	}
}

func TestEncode_ErrorsAreNotCached(t *testing.T) {
	m := memo.New(8, 0)
	svc := New(WithCache(cache.New(m, nil, cache.Config{}, nil)))
	_, err := svc.Encode(context.Background(), Request{Format: filter.FormatCQL, Spec: &filter.FilterSpec{
		FilterFields: []filter.FilterField{{Attribute: "a", Type: filter.FieldTypeList, Operator: "!=", Value: filter.Scalar("x")}},
	}})
	if !errors.Is(err, filter.ErrUnknownOperatorKind) {
		t.Fatalf("want ErrUnknownOperatorKind, got %v", err)
	}
	if m.Len() != 0 {
		t.Fatalf("error result was cached")
	}
}
