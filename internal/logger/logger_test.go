package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"
)

func TestFromContext_AttachesFields(t *testing.T) {
	var buf bytes.Buffer
	base := Build(Config{Level: "info", Component: "filtersvc"}, &buf)

	ctx := WithRequestID(context.Background(), "abc")
	ctx = WithFormat(ctx, "cql")
	ctx = WithCacheTier(ctx, "memo")
	FromContext(ctx, &base).Info().Msg("hello")

	var rec map[string]any
	if err := json.Unmarshal(buf.Bytes(), &rec); err != nil {
		t.Fatalf("decode log line: %v (%q)", err, buf.String())
	}
	for k, want := range map[string]string{
		"request_id": "abc", "format": "cql", "cache": "memo", "component": "filtersvc", "msg": "hello",
	} {
		if rec[k] != want {
			t.Fatalf("%s = %v, want %q", k, rec[k], want)
		}
	}
}

func TestWithRequestID_GeneratesWhenEmpty(t *testing.T) {
	ctx := WithRequestID(context.Background(), "")
	if id := RequestID(ctx); len(id) != 16 {
		t.Fatalf("generated id %q", id)
	}
}

func TestNewSlog_RespectsLevelAndGroups(t *testing.T) {
	var buf bytes.Buffer
	base := Build(Config{Level: "info"}, &buf)
	sl := NewSlog(&base)

	sl.Debug("hidden")
	if buf.Len() != 0 {
		t.Fatalf("debug should be filtered, got %q", buf.String())
	}

	sl.WithGroup("pred").Info("dropped", "attribute", "pop", "n", 2)
	var rec map[string]any
	if err := json.Unmarshal(buf.Bytes(), &rec); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if rec["pred.attribute"] != "pop" || rec["pred.n"] != float64(2) {
		t.Fatalf("group keys missing: %v", rec)
	}
	if rec["level"] != "info" {
		t.Fatalf("level = %v", rec["level"])
	}
}
