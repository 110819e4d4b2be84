// Package convert rewrites Kibana dashboards written against logstash
// event-v0 field names ("@fields.host", "@message") to event-v1 names
// ("host", "message"). "@timestamp" keeps its marker in both schemas.
package convert

import (
	"bytes"
	"encoding/json"
	"fmt"
	"regexp"
	"sort"
	"strings"
)

const (
	ModeText       = "text"
	ModeStructural = "structural"
)

// Converter turns a v0 dashboard document into its v1 form.
type Converter interface {
	Name() string
	Convert(in []byte) ([]byte, error)
}

// ByName selects a converter by mode. An empty mode is the text converter.
func ByName(mode string) (Converter, error) {
	switch strings.ToLower(mode) {
	case "", ModeText:
		return Text{}, nil
	case ModeStructural:
		return Structural{}, nil
	default:
		return nil, fmt.Errorf("unknown conversion mode %q (want %s or %s)", mode, ModeText, ModeStructural)
	}
}

var (
	// The unescaped dot is deliberate: previously converted files were
	// produced with it, so "@fields" followed by any character is dropped.
	fieldsPrefix = regexp.MustCompile(`@fields.`)
	markedName   = regexp.MustCompile(`@[A-Za-z0-9_-]+`)
	fieldRef     = regexp.MustCompile(`^@[A-Za-z0-9_.-]+$`)
)

const protectedName = "timestamp"

func rewrite(s string) string {
	s = fieldsPrefix.ReplaceAllString(s, "")
	return markedName.ReplaceAllStringFunc(s, func(m string) string {
		if strings.HasPrefix(m[1:], protectedName) {
			return m
		}
		return m[1:]
	})
}

// Text rewrites the raw document text with two patterns and never parses it.
// Output is byte-compatible with files converted by earlier tooling. It
// assumes '@' only occurs in field names: a value such as "ops@example.com"
// is rewritten too, silently.
type Text struct{}

func (Text) Name() string { return ModeText }

func (Text) Convert(in []byte) ([]byte, error) {
	return []byte(rewrite(string(in))), nil
}

// Structural decodes the document and rewrites object keys, plus string
// values that consist of a single field reference. Free-form strings are left
// alone. The output is re-encoded JSON, so key order and formatting differ
// from the input.
type Structural struct{}

func (Structural) Name() string { return ModeStructural }

func (Structural) Convert(in []byte) ([]byte, error) {
	dec := json.NewDecoder(bytes.NewReader(in))
	dec.UseNumber()
	var doc any
	if err := dec.Decode(&doc); err != nil {
		return nil, fmt.Errorf("decode dashboard: %w", err)
	}
	out, err := walk(doc)
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(out); err != nil {
		return nil, fmt.Errorf("encode dashboard: %w", err)
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}

func walk(v any) (any, error) {
	switch val := v.(type) {
	case map[string]any:
		keys := make([]string, 0, len(val))
		for k := range val {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		out := make(map[string]any, len(val))
		for _, k := range keys {
			nk := rewrite(k)
			if _, dup := out[nk]; dup {
				return nil, fmt.Errorf("field %q collides with an existing %q after conversion", k, nk)
			}
			child, err := walk(val[k])
			if err != nil {
				return nil, err
			}
			out[nk] = child
		}
		return out, nil
	case []any:
		out := make([]any, len(val))
		for i, item := range val {
			child, err := walk(item)
			if err != nil {
				return nil, err
			}
			out[i] = child
		}
		return out, nil
	case string:
		if fieldRef.MatchString(val) {
			return rewrite(val), nil
		}
		return val, nil
	default:
		return val, nil
	}
}
