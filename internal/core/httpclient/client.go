// Package httpclient builds the HTTP clients used for GeoServer and load generation.
package httpclient

import (
	"net"
	"net/http"
	"time"

	"github.com/mohammed-shakir/wfs-filter-encoding/internal/logger"
)

const UserAgent = "wfs-filter-encoding/1"

// NewOutbound returns a pooled client that stamps each request with the
// service user agent and the request id found in its context. timeout <= 0
// keeps 30s.
func NewOutbound(timeout time.Duration) *http.Client {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	base := &http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		DialContext:           (&net.Dialer{Timeout: 5 * time.Second, KeepAlive: 30 * time.Second}).DialContext,
		ForceAttemptHTTP2:     true,
		MaxIdleConns:          128,
		MaxIdleConnsPerHost:   64,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   5 * time.Second,
		ExpectContinueTimeout: time.Second,
	}
	return &http.Client{Transport: stamping{next: base}, Timeout: timeout}
}

type stamping struct {
	next http.RoundTripper
}

func (s stamping) RoundTrip(r *http.Request) (*http.Response, error) {
	id := logger.RequestID(r.Context())
	if r.Header.Get("User-Agent") != "" && (id == "" || r.Header.Get("X-Request-ID") != "") {
		return s.next.RoundTrip(r)
	}
	r = r.Clone(r.Context())
	if r.Header.Get("User-Agent") == "" {
		r.Header.Set("User-Agent", UserAgent)
	}
	if id != "" && r.Header.Get("X-Request-ID") == "" {
		r.Header.Set("X-Request-ID", id)
	}
	return s.next.RoundTrip(r)
}
