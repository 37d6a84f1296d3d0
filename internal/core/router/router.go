package router

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"strings"
	"time"

	"github.com/vmihailenco/msgpack/v5"

	"github.com/mohammed-shakir/wfs-filter-encoding/internal/core/model"
	"github.com/mohammed-shakir/wfs-filter-encoding/internal/core/observability"
	"github.com/mohammed-shakir/wfs-filter-encoding/internal/filtersvc"
	"github.com/mohammed-shakir/wfs-filter-encoding/pkg/filter"
)

const (
	contentTypeJSON    = "application/json"
	contentTypeMsgpack = "application/msgpack"
)

// Encoder is the encode service seen by the handlers.
type Encoder interface {
	Encode(ctx context.Context, req filtersvc.Request) (filtersvc.Result, error)
}

// Forwarder sends an encoded query upstream and streams the reply.
type Forwarder interface {
	ForwardFeatures(w http.ResponseWriter, r *http.Request, q model.FeatureQuery)
}

type EncodeResponse struct {
	Format string `json:"format" msgpack:"format"`
	Output string `json:"output" msgpack:"output"`
	Key    string `json:"key" msgpack:"key"`
	Cache  string `json:"cache" msgpack:"cache"`
	Cell   string `json:"cell,omitempty" msgpack:"cell,omitempty"`
}

// HandleEncode serves POST /encode/{ogc,cql}. The body is JSON or
// MessagePack; the reply is the raw filter unless the client accepts JSON
// or MessagePack.
func HandleEncode(logger *slog.Logger, enc Encoder, format filter.Format) http.HandlerFunc {
	route := "/encode/" + string(format)
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		sw := &statusWriter{ResponseWriter: w, code: http.StatusOK}
		defer func() {
			observability.ObserveHTTP(r.Method, route, sw.code, time.Since(start).Seconds())
		}()

		req, spec, err := decodeRequest(r)
		if err != nil {
			writeError(r.Context(), logger, sw, err)
			return
		}
		res, err := enc.Encode(r.Context(), filtersvc.Request{
			Format:   format,
			TypeName: req.TypeName,
			Version:  req.Version,
			Sort:     req.Sort,
			Spec:     spec,
		})
		if err != nil {
			writeError(r.Context(), logger, sw, err)
			return
		}

		sw.Header().Set("X-Cache", res.Tier)
		sw.Header().Set("X-Cache-Key", res.Key)
		if res.Cell != "" {
			sw.Header().Set("X-H3-Cell", res.Cell)
		}
		body := EncodeResponse{Format: string(format), Output: res.Output, Key: res.Key, Cache: res.Tier, Cell: res.Cell}
		switch negotiate(r.Header.Get("Accept")) {
		case contentTypeMsgpack:
			b, err := msgpack.Marshal(body)
			if err != nil {
				writeError(r.Context(), logger, sw, err)
				return
			}
			sw.Header().Set("Content-Type", contentTypeMsgpack)
			_, _ = sw.Write(b)
		case contentTypeJSON:
			sw.Header().Set("Content-Type", contentTypeJSON)
			_ = json.NewEncoder(sw).Encode(body)
		default:
			if format == filter.FormatOGC {
				sw.Header().Set("Content-Type", "application/xml; charset=utf-8")
			} else {
				sw.Header().Set("Content-Type", "text/plain; charset=utf-8")
			}
			_, _ = io.WriteString(sw, res.Output)
		}
	}
}

// HandleFeatures serves POST /features: encode, then query the WFS with the
// result. format defaults to ogc.
func HandleFeatures(logger *slog.Logger, enc Encoder, fwd Forwarder) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		sw := &statusWriter{ResponseWriter: w, code: http.StatusOK}
		defer func() {
			observability.ObserveHTTP(r.Method, "/features", sw.code, time.Since(start).Seconds())
		}()

		req, spec, err := decodeRequest(r)
		if err != nil {
			writeError(r.Context(), logger, sw, err)
			return
		}
		format := filter.Format(strings.ToLower(strings.TrimSpace(req.Format)))
		if format == "" {
			format = filter.FormatOGC
		}
		if strings.TrimSpace(req.TypeName) == "" {
			writeError(r.Context(), logger, sw, fmt.Errorf("%w: typeName", filter.ErrMissingRequiredField))
			return
		}
		res, err := enc.Encode(r.Context(), filtersvc.Request{
			Format:   format,
			TypeName: req.TypeName,
			Version:  req.Version,
			Sort:     req.Sort,
			Spec:     spec,
		})
		if err != nil {
			writeError(r.Context(), logger, sw, err)
			return
		}

		q := model.FeatureQuery{
			Format:       string(format),
			TypeName:     req.TypeName,
			Version:      req.Version,
			Body:         res.Output,
			OutputFormat: req.OutputFormat,
			Pagination:   spec.Pagination,
			Sort:         req.Sort,
		}
		sw.Header().Set("X-Cache", res.Tier)
		fwd.ForwardFeatures(sw, r, q)
	}
}

type statusWriter struct {
	http.ResponseWriter
	code int
}

func (w *statusWriter) WriteHeader(code int) {
	w.code = code
	w.ResponseWriter.WriteHeader(code)
}

func (w *statusWriter) Unwrap() http.ResponseWriter { return w.ResponseWriter }

func (w *statusWriter) Flush() {
	if f, ok := w.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

var (
	errBadBody          = errors.New("invalid request body")
	errUnsupportedMedia = errors.New("unsupported content type")
)

func decodeRequest(r *http.Request) (model.EncodeRequest, *filter.FilterSpec, error) {
	var req model.EncodeRequest

	raw, err := io.ReadAll(r.Body)
	if err != nil {
		var mbe *http.MaxBytesError
		if errors.As(err, &mbe) {
			return req, nil, mbe
		}
		return req, nil, fmt.Errorf("%w: read: %w", errBadBody, err)
	}

	mt := contentTypeJSON
	if ct := r.Header.Get("Content-Type"); ct != "" {
		if parsed, _, err := mime.ParseMediaType(ct); err == nil {
			mt = parsed
		}
	}
	switch mt {
	case contentTypeMsgpack, "application/x-msgpack", "application/vnd.msgpack":
		if raw, err = msgpackToJSON(raw); err != nil {
			return req, nil, fmt.Errorf("%w: msgpack: %w", errBadBody, err)
		}
	case contentTypeJSON, "text/plain", "":
	default:
		if !strings.HasSuffix(mt, "+json") {
			return req, nil, fmt.Errorf("%w %q", errUnsupportedMedia, mt)
		}
	}

	if err := json.Unmarshal(raw, &req); err != nil {
		return req, nil, fmt.Errorf("%w: %w", errBadBody, err)
	}
	spec, err := filter.ParseFilterSpec(req.Filter)
	if err != nil {
		return req, nil, err
	}
	return req, spec, nil
}

// msgpackToJSON re-encodes a MessagePack document as JSON so both body
// encodings share one decoding path.
func msgpackToJSON(b []byte) ([]byte, error) {
	var v any
	if err := msgpack.Unmarshal(b, &v); err != nil {
		return nil, err
	}
	return json.Marshal(v)
}

func negotiate(accept string) string {
	for part := range strings.SplitSeq(accept, ",") {
		mt, _, err := mime.ParseMediaType(strings.TrimSpace(part))
		if err != nil {
			continue
		}
		switch mt {
		case contentTypeMsgpack, "application/x-msgpack":
			return contentTypeMsgpack
		case contentTypeJSON:
			return contentTypeJSON
		}
	}
	return ""
}

// StatusFor maps service errors onto HTTP status codes.
func StatusFor(err error) int {
	var mbe *http.MaxBytesError
	switch {
	case errors.As(err, &mbe):
		return http.StatusRequestEntityTooLarge
	case errors.Is(err, errUnsupportedMedia):
		return http.StatusUnsupportedMediaType
	case errors.Is(err, filter.ErrUnknownOperatorKind):
		return http.StatusUnprocessableEntity
	case errors.Is(err, errBadBody),
		errors.Is(err, filter.ErrParseFailure),
		errors.Is(err, filter.ErrEmptyFilterSpec),
		errors.Is(err, filter.ErrMissingRequiredField),
		errors.Is(err, filter.ErrUnsupportedGeometry),
		errors.Is(err, filter.ErrUnsupportedVersion),
		errors.Is(err, filtersvc.ErrUnknownFormat):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func errorKind(err error) string {
	switch {
	case errors.Is(err, filter.ErrUnknownOperatorKind):
		return "unknown_operator"
	case errors.Is(err, filter.ErrParseFailure), errors.Is(err, errBadBody):
		return "parse_failure"
	case errors.Is(err, filter.ErrEmptyFilterSpec):
		return "empty_filter"
	case errors.Is(err, filter.ErrMissingRequiredField):
		return "missing_field"
	case errors.Is(err, filter.ErrUnsupportedGeometry):
		return "unsupported_geometry"
	case errors.Is(err, filter.ErrUnsupportedVersion):
		return "unsupported_version"
	case errors.Is(err, filtersvc.ErrUnknownFormat):
		return "unknown_format"
	case errors.Is(err, errUnsupportedMedia):
		return "unsupported_media_type"
	default:
		return ""
	}
}

func writeError(ctx context.Context, logger *slog.Logger, w http.ResponseWriter, err error) {
	code := StatusFor(err)
	if code >= http.StatusInternalServerError {
		logger.ErrorContext(ctx, "request failed", "err", err)
	} else {
		logger.DebugContext(ctx, "request rejected", "status", code, "err", err)
	}
	w.Header().Set("Content-Type", contentTypeJSON)
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(model.ErrorResponse{Error: err.Error(), Kind: errorKind(err)})
}
