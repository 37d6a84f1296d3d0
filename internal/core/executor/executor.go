// Package executor sends encoded filters to the WFS and streams the response back.
package executor

import (
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httputil"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/mohammed-shakir/wfs-filter-encoding/internal/core/model"
	"github.com/mohammed-shakir/wfs-filter-encoding/internal/core/observability"
	"github.com/mohammed-shakir/wfs-filter-encoding/internal/core/ogc"
)

type Interface interface {
	ForwardFeatures(w http.ResponseWriter, r *http.Request, q model.FeatureQuery)
}

type Executor struct {
	logger   *slog.Logger
	client   *http.Client
	owsURL   *url.URL
	startNow func() time.Time // for tests
}

func New(logger *slog.Logger, client *http.Client, ows string) (*Executor, error) {
	u, err := url.Parse(ows)
	if err != nil {
		return nil, fmt.Errorf("parse ows url: %w", err)
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("ows url %q must be absolute", ows)
	}
	return &Executor{
		logger:   logger,
		client:   client,
		owsURL:   u,
		startNow: time.Now,
	}, nil
}

// ForwardFeatures proxies a GetFeature to the WFS: ogc queries are POSTed as
// XML, cql queries go as KVP with CQL_FILTER. The response is streamed.
func (e *Executor) ForwardFeatures(w http.ResponseWriter, r *http.Request, q model.FeatureQuery) {
	start := e.startNow()

	rt := http.RoundTripper(http.DefaultTransport)
	if e.client != nil && e.client.Transport != nil {
		rt = e.client.Transport
	}

	accept := q.OutputFormat
	if accept == "" {
		accept = ogc.DefaultOutputFormat
	}

	proxy := &httputil.ReverseProxy{
		Transport: rt,

		Rewrite: func(p *httputil.ProxyRequest) {
			p.Out.URL.Scheme = e.owsURL.Scheme
			p.Out.URL.Host = e.owsURL.Host
			p.Out.URL.Path = e.owsURL.Path
			p.Out.URL.RawPath = e.owsURL.EscapedPath()
			p.Out.Host = e.owsURL.Host
			p.Out.Header.Del("Content-Encoding")
			p.Out.Header.Set("Accept", accept)

			if q.Format == model.FormatOGC {
				body := q.Body
				p.Out.Method = http.MethodPost
				p.Out.URL.RawQuery = ogc.PostQueryParams(q).Encode()
				p.Out.Body = io.NopCloser(strings.NewReader(body))
				p.Out.GetBody = func() (io.ReadCloser, error) {
					return io.NopCloser(strings.NewReader(body)), nil
				}
				p.Out.ContentLength = int64(len(body))
				p.Out.Header.Set("Content-Type", "text/xml; charset=utf-8")
				p.Out.Header.Set("Content-Length", strconv.Itoa(len(body)))
			} else {
				p.Out.Method = http.MethodGet
				p.Out.URL.RawQuery = ogc.BuildGetFeatureParams(q).Encode()
				p.Out.Body = http.NoBody
				p.Out.GetBody = nil
				p.Out.ContentLength = 0
				p.Out.Header.Del("Content-Type")
				p.Out.Header.Del("Content-Length")
			}
			p.SetXForwarded()
		},

		ModifyResponse: func(resp *http.Response) error {
			dur := time.Since(start)
			e.logger.DebugContext(r.Context(), "forward done",
				"status", resp.StatusCode,
				"duration", dur.String())
			observability.ObserveUpstreamLatency("geoserver", dur.Seconds())
			return nil
		},

		ErrorHandler: func(w http.ResponseWriter, req *http.Request, err error) {
			e.logger.ErrorContext(req.Context(), "reverse proxy error", "err", err)
			observability.ObserveUpstreamLatency("geoserver", time.Since(start).Seconds())
			http.Error(w, "upstream proxy error: "+err.Error(), http.StatusBadGateway)
		},
	}

	e.logger.DebugContext(r.Context(), "forward WFS GetFeature",
		"type_name", q.TypeName,
		"format", q.Format,
		"geoserver_ows", e.owsURL.String())

	proxy.ServeHTTP(w, r)
}
