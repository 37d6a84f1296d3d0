package httpclient

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/mohammed-shakir/wfs-filter-encoding/internal/logger"
)

func TestNewOutbound_StampsHeaders(t *testing.T) {
	var ua, rid string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ua, rid = r.Header.Get("User-Agent"), r.Header.Get("X-Request-ID")
	}))
	t.Cleanup(srv.Close)

	c := NewOutbound(time.Second)
	ctx := logger.WithRequestID(context.Background(), "req-42")
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL, nil)
	if err != nil {
		t.Fatal(err)
	}
	resp, err := c.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	_ = resp.Body.Close()

	if ua != UserAgent || rid != "req-42" {
		t.Fatalf("ua=%q rid=%q", ua, rid)
	}
	if req.Header.Get("X-Request-ID") != "" {
		t.Fatal("caller's request was mutated")
	}
}

func TestNewOutbound_DefaultTimeout(t *testing.T) {
	if c := NewOutbound(0); c.Timeout != 30*time.Second {
		t.Fatalf("timeout = %v", c.Timeout)
	}
}
