package keys

import (
	"encoding/json"
	"fmt"
	"strings"
	"unicode"

	"github.com/cespare/xxhash/v2"

	"github.com/mohammed-shakir/wfs-filter-encoding/pkg/filter"
)

// Request is the part of an encode call that determines its output.
type Request struct {
	Format   string
	Version  string
	TypeName string
	Sort     *filter.SortOptions
	Spec     *filter.FilterSpec
}

// Key derives a cache key of the form
//
//	fe:<format>:<version>:<type>:f=<xxhash64>
//
// where the hash covers the canonical JSON of the raw version, type name, spec
// and sort. The version and type segments are a lossy readable copy; only the
// hash tells requests apart. CQL output does not depend on version or type, so
// both collapse to "-".
func Key(r Request) (string, error) {
	version, typeName := "", ""
	if r.Format == "ogc" {
		version = strings.TrimSpace(r.Version)
		typeName = strings.TrimSpace(r.TypeName)
	}

	var sort *filter.SortOptions
	if r.Format == "ogc" && r.Sort != nil && r.Sort.SortBy != "" && r.Sort.SortOrder != "" {
		sort = r.Sort
	}
	canon, err := json.Marshal(struct {
		Version  string              `json:"v,omitempty"`
		TypeName string              `json:"t,omitempty"`
		Spec     *filter.FilterSpec  `json:"s"`
		Sort     *filter.SortOptions `json:"o,omitempty"`
	}{version, typeName, r.Spec, sort})
	if err != nil {
		return "", fmt.Errorf("canonical spec: %w", err)
	}

	sum := xxhash.Sum64(canon)
	return fmt.Sprintf("fe:%s:%s:%s:f=%016x", sanitize(r.Format), orDash(sanitize(version)), orDash(sanitize(typeName)), sum), nil
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

func sanitize(s string) string {
	if s == "" {
		return ""
	}
	var b strings.Builder
	b.Grow(len(s))
	var prev rune
	for _, r := range s {
		out := rune(0)
		switch {
		case r == ' ' || r == '\t' || r == '\n' || r == '\r' || r == '\v' || r == '\f':
			out = '_'
		case isAlphaNum(r) || r == ':' || r == '_' || r == '-' || r == '.':
			out = r
		default:
			out = '-'
		}
		if (out == '_' || out == '-') && out == prev {
			continue
		}
		b.WriteRune(out)
		prev = out
	}
	return b.String()
}

func isAlphaNum(r rune) bool {
	return (r >= 'a' && r <= 'z') ||
		(r >= 'A' && r <= 'Z') ||
		(r < unicode.MaxASCII && unicode.IsDigit(r))
}
